package diskscheduler

import "errors"

var (
	// ErrClosed is returned by ScheduleWrite/ScheduleRead/BatchWrite once
	// the scheduler has been closed.
	ErrClosed = errors.New("diskscheduler: scheduler is closed")

	// ErrQueueFull is returned when the bounded request queue has no
	// room left and the caller's context expires before a slot frees up.
	ErrQueueFull = errors.New("diskscheduler: pending request queue is full")
)
