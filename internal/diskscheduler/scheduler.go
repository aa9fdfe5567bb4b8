// Package diskscheduler sits between the buffer pool and the disk
// manager. It turns page-level read/write intents into asynchronous
// DiskRequests, services them off a bounded queue, and gives callers
// the choice of waiting for a write to land (Immediate) or letting it
// ride along with other writes until a buffer fills or a timer fires
// (Buffered).
package diskscheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sourcegraph/conc"
	"go.uber.org/multierr"

	"github.com/novasql/bufcore/internal/diskmanager"
)

const (
	// DefaultFlushInterval is how often the buffered write queue is
	// drained even if it never reaches DefaultMaxBufferSize.
	DefaultFlushInterval = 5 * time.Second
	// DefaultMaxBufferSize is the buffered-write queue length at which
	// a ScheduleWrite(..., Buffered) call triggers an immediate drain.
	DefaultMaxBufferSize = 32
	// DefaultMaxPendingRequests bounds the scheduler's request queue.
	DefaultMaxPendingRequests = 32
)

var logPrefix = "diskscheduler: "

// Config tunes the scheduler's buffering and queueing behavior. The
// zero value is not usable; use NewConfig for defaults.
type Config struct {
	FlushInterval      time.Duration
	MaxBufferSize      int
	MaxPendingRequests int
}

// NewConfig returns the scheduler's documented defaults.
func NewConfig() Config {
	return Config{
		FlushInterval:      DefaultFlushInterval,
		MaxBufferSize:      DefaultMaxBufferSize,
		MaxPendingRequests: DefaultMaxPendingRequests,
	}
}

// Scheduler dispatches DiskRequests against a disk manager. One
// goroutine drains the request queue, spawning a child goroutine per
// request so a slow write never stalls requests behind it; a second
// goroutine drains the buffered-write queue on a timer.
type Scheduler struct {
	dm  *diskmanager.Manager
	cfg Config

	queue chan *DiskRequest

	bufMu  sync.Mutex
	buffer []*DiskRequest

	inflight conc.WaitGroup

	closeOnce sync.Once
	stop      chan struct{}
	stopped   chan struct{}
}

// New starts a scheduler backed by dm. Call Close to drain in-flight
// work and stop its background goroutines.
func New(dm *diskmanager.Manager, cfg Config) *Scheduler {
	s := &Scheduler{
		dm:      dm,
		cfg:     cfg,
		queue:   make(chan *DiskRequest, cfg.MaxPendingRequests),
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
	}

	go s.dispatchLoop()
	go s.flushLoop()

	return s
}

// Close stops accepting new work, waits for in-flight requests and any
// buffered writes to finish, then returns.
func (s *Scheduler) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.stop)
		<-s.stopped
		s.inflight.Wait()
		err = s.drainBuffer()
	})
	return err
}

func (s *Scheduler) dispatchLoop() {
	defer close(s.stopped)
	for {
		select {
		case req, ok := <-s.queue:
			if !ok {
				return
			}
			req := req
			s.inflight.Go(func() { s.serviceRequest(req) })
		case <-s.stop:
			return
		}
	}
}

func (s *Scheduler) flushLoop() {
	ticker := time.NewTicker(s.cfg.FlushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := s.drainBuffer(); err != nil {
				slog.Error(logPrefix+"periodic flush failed", "error", err)
			}
		case <-s.stop:
			return
		}
	}
}

// enqueue pushes req onto the bounded queue, respecting ctx and the
// scheduler's own shutdown.
func (s *Scheduler) enqueue(ctx context.Context, req *DiskRequest) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	select {
	case <-s.stop:
		return ErrClosed
	default:
	}

	select {
	case s.queue <- req:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrQueueFull, ctx.Err())
	case <-s.stop:
		return ErrClosed
	}
}

func (s *Scheduler) serviceRequest(req *DiskRequest) {
	if req.IsWrite {
		err := s.dm.WriteData(req.PageID, req.Data)
		if err != nil {
			slog.Error(logPrefix+"write failed", "pageID", req.PageID, "error", err)
		}
		req.complete(err)
		return
	}

	data, err := s.dm.ReadData(req.PageID)
	if err != nil {
		slog.Error(logPrefix+"read failed", "pageID", req.PageID, "error", err)
		data = make([]byte, diskmanager.PageSize)
	}
	if req.ReadDataSender != nil {
		req.ReadDataSender <- data
	}
	req.complete(err)
}

// ScheduleWrite writes data for pageID. Under Immediate, it blocks
// until the write lands (or ctx is cancelled) and returns any I/O
// error. Under Buffered, it queues the write and returns once queued;
// if that brings the queue to MaxBufferSize, the queue is drained inline
// first and any write errors from that drain are returned. Otherwise the
// write happens on a later drain, with failures only observable through
// logs.
func (s *Scheduler) ScheduleWrite(ctx context.Context, pageID uint32, data []byte, strategy WriteStrategy) error {
	switch strategy {
	case Immediate:
		done := make(chan struct{})
		req := &DiskRequest{IsWrite: true, PageID: pageID, Data: data, CompletionSignal: done}
		if err := s.enqueue(ctx, req); err != nil {
			return err
		}
		select {
		case <-done:
			return req.resultErr
		case <-ctx.Done():
			return ctx.Err()
		}
	case Buffered:
		return s.bufferWrite(pageID, data)
	default:
		return fmt.Errorf("diskscheduler: unknown write strategy %v", strategy)
	}
}

func (s *Scheduler) bufferWrite(pageID uint32, data []byte) error {
	select {
	case <-s.stop:
		return ErrClosed
	default:
	}

	req := &DiskRequest{IsWrite: true, PageID: pageID, Data: data}

	s.bufMu.Lock()
	s.buffer = append(s.buffer, req)
	full := len(s.buffer) >= s.cfg.MaxBufferSize
	s.bufMu.Unlock()

	if full {
		return s.drainBuffer()
	}
	return nil
}

// drainBuffer swaps out the current buffered-write queue and writes
// every entry to disk, fanning the writes out across goroutines.
func (s *Scheduler) drainBuffer() error {
	s.bufMu.Lock()
	pending := s.buffer
	s.buffer = nil
	s.bufMu.Unlock()

	if len(pending) == 0 {
		return nil
	}

	var (
		mu   sync.Mutex
		errs error
	)
	var wg conc.WaitGroup
	for _, req := range pending {
		req := req
		if !req.IsWrite {
			slog.Warn(logPrefix + "non-write request found in buffered write queue, skipping")
			continue
		}
		wg.Go(func() {
			if err := s.dm.WriteData(req.PageID, req.Data); err != nil {
				slog.Error(logPrefix+"buffered write failed", "pageID", req.PageID, "error", err)
				mu.Lock()
				errs = multierr.Append(errs, err)
				mu.Unlock()
			}
		})
	}
	wg.Wait()

	slog.Debug(logPrefix+"drained buffered writes", "count", len(pending))
	return errs
}

// ScheduleRead reads pageID's data, suspending the caller until the
// read completes or ctx is cancelled.
func (s *Scheduler) ScheduleRead(ctx context.Context, pageID uint32) ([]byte, error) {
	done := make(chan struct{})
	dataCh := make(chan []byte, 1)
	req := &DiskRequest{IsWrite: false, PageID: pageID, CompletionSignal: done, ReadDataSender: dataCh}

	if err := s.enqueue(ctx, req); err != nil {
		return nil, err
	}

	select {
	case <-done:
		if req.resultErr != nil {
			return nil, req.resultErr
		}
		return <-dataCh, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// WriteItem is one entry of a BatchWrite call.
type WriteItem struct {
	PageID uint32
	Data   []byte
}

// BatchWrite issues an Immediate write for every item concurrently and
// waits for all of them to land, returning the combined error (if
// any) of every write that failed.
func (s *Scheduler) BatchWrite(ctx context.Context, items []WriteItem) error {
	var (
		mu   sync.Mutex
		errs error
	)
	var wg conc.WaitGroup
	for _, item := range items {
		item := item
		wg.Go(func() {
			if err := s.ScheduleWrite(ctx, item.PageID, item.Data, Immediate); err != nil {
				mu.Lock()
				errs = multierr.Append(errs, err)
				mu.Unlock()
			}
		})
	}
	wg.Wait()
	return errs
}
