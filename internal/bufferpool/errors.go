package bufferpool

import "errors"

var (
	// ErrPoolFull is returned by NewPage when every frame is pinned and
	// the replacer has nothing left to evict. Not fatal: the caller may
	// unpin pages and retry.
	ErrPoolFull = errors.New("bufferpool: pool is full, no frame available to evict")

	// ErrPageNotFound is returned when an operation names a page that is
	// not currently resident.
	ErrPageNotFound = errors.New("bufferpool: page not found")

	// ErrDataAccess is returned when a page cannot be constructed from
	// the bytes returned by the disk scheduler.
	ErrDataAccess = errors.New("bufferpool: data access error")

	// ErrDiskWriteFailed wraps a scheduler/disk manager write failure.
	ErrDiskWriteFailed = errors.New("bufferpool: disk write failed")

	// ErrDiskReadFailed wraps a scheduler/disk manager read failure.
	ErrDiskReadFailed = errors.New("bufferpool: disk read failed")

	// ErrPinCountOverflow is fatal: the page must not be used further.
	ErrPinCountOverflow = errors.New("bufferpool: pin count overflow")
)
