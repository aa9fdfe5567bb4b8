// Package bufferpool presents a pinned, cached view over pages backed by
// a pluggable eviction Replacer and the asynchronous disk scheduler.
package bufferpool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/novasql/bufcore/internal/diskscheduler"
)

var logPrefix = "bufferpool: "

// DefaultPoolSize matches the configuration surface's documented
// default of 10 frames.
const DefaultPoolSize = 10

// Config selects the pool's fixed frame count and eviction policy at
// construction time; neither is a per-request parameter.
type Config struct {
	PoolSize int
	Policy   Policy
}

// NewConfig returns the pool's documented defaults.
func NewConfig() Config {
	return Config{PoolSize: DefaultPoolSize, Policy: PolicyLRU}
}

// Pool is a fixed-size buffer pool manager. Every mutating operation
// takes the pool's single mutex for its full duration, including the
// disk I/O reached through the scheduler -- the same single-writer-lock
// model the teacher's Pool/GlobalPool types use. The scheduler itself is
// internally concurrent (one goroutine per in-flight request), so I/O
// parallelism still exists one layer down; it simply isn't exposed
// across distinct pool method calls.
type Pool struct {
	scheduler *diskscheduler.Scheduler
	policy    Policy

	mu        sync.Mutex
	replacer  Replacer
	frames    []Page
	occupied  []bool
	pageTable map[PageID]FrameID
	freeList  []FrameID

	nextPageID uint32
}

// NewPool constructs a pool of cfg.PoolSize frames backed by scheduler,
// using the replacer named by cfg.Policy.
func NewPool(scheduler *diskscheduler.Scheduler, cfg Config) *Pool {
	size := cfg.PoolSize
	if size <= 0 {
		size = DefaultPoolSize
	}

	free := make([]FrameID, size)
	for i := range free {
		free[i] = FrameID(i)
	}

	return &Pool{
		scheduler: scheduler,
		policy:    cfg.Policy,
		replacer:  NewReplacer(cfg.Policy, size),
		frames:    make([]Page, size),
		occupied:  make([]bool, size),
		pageTable: make(map[PageID]FrameID, size),
		freeList:  free,
	}
}

// NewPage allocates the next monotonic PageId, pins it once, and
// returns a caller-owned copy.
func (p *Pool) NewPage(ctx context.Context) (PageID, Page, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	frame, err := p.allocateFrameLocked(ctx)
	if err != nil {
		return 0, Page{}, err
	}

	pid := PageID(p.nextPageID)
	p.nextPageID++

	page := Page{ID: pid, LastAccessed: time.Now(), AccessCount: 1}
	if err := page.incrementPin(); err != nil {
		p.freeList = append(p.freeList, frame)
		return 0, Page{}, err
	}

	p.installLocked(frame, page)

	slog.Debug(logPrefix+"new page", "pageID", pid, "frameID", frame)
	return pid, page, nil
}

// FetchPage returns a pinned, caller-owned copy of pid, loading it from
// disk if not already resident. A nil Page with a nil error means every
// frame is pinned -- not found is not an error per spec.
func (p *Pool) FetchPage(ctx context.Context, pid PageID) (*Page, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if frame, ok := p.pageTable[pid]; ok {
		page := &p.frames[frame]
		if err := page.incrementPin(); err != nil {
			return nil, err
		}
		page.LastAccessed = time.Now()
		page.AccessCount++
		p.replacer.RecordAccess(frame)
		p.replacer.SetEvictable(frame, false)

		cp := *page
		slog.Debug(logPrefix+"fetch hit", "pageID", pid, "frameID", frame)
		return &cp, nil
	}

	frame, err := p.allocateFrameLocked(ctx)
	if err != nil {
		if errors.Is(err, ErrPoolFull) {
			slog.Debug(logPrefix+"fetch: pool full, no page returned", "pageID", pid)
			return nil, nil
		}
		return nil, err
	}

	data, err := p.scheduler.ScheduleRead(ctx, uint32(pid))
	if err != nil {
		p.freeList = append(p.freeList, frame)
		return nil, fmt.Errorf("%w: fetching page %d: %v", ErrDataAccess, pid, err)
	}
	if len(data) != PageSize {
		p.freeList = append(p.freeList, frame)
		return nil, fmt.Errorf("%w: page %d returned %d bytes, want %d", ErrDataAccess, pid, len(data), PageSize)
	}

	page := Page{ID: pid, LastAccessed: time.Now(), AccessCount: 1}
	copy(page.Data[:], data)
	if err := page.incrementPin(); err != nil {
		p.freeList = append(p.freeList, frame)
		return nil, err
	}

	p.installLocked(frame, page)

	slog.Debug(logPrefix+"fetch miss, loaded from disk", "pageID", pid, "frameID", frame)
	cp := page
	return &cp, nil
}

// installLocked places page into frame, wiring the page table, occupied
// bit, and replacer bookkeeping. Caller holds p.mu.
func (p *Pool) installLocked(frame FrameID, page Page) {
	p.frames[frame] = page
	p.occupied[frame] = true
	p.pageTable[page.ID] = frame
	p.replacer.RecordAccess(frame)
	p.replacer.SetEvictable(frame, false)
}

// allocateFrameLocked implements the eviction algorithm: free list
// first, else evict via the replacer, flushing a dirty victim through
// the scheduler before reclaiming its frame. Caller holds p.mu.
func (p *Pool) allocateFrameLocked(ctx context.Context) (FrameID, error) {
	if n := len(p.freeList); n > 0 {
		frame := p.freeList[n-1]
		p.freeList = p.freeList[:n-1]
		return frame, nil
	}

	frame, ok := p.replacer.Evict()
	if !ok {
		return 0, ErrPoolFull
	}

	evicted := p.frames[frame]
	if evicted.IsDirty {
		if err := p.scheduler.ScheduleWrite(ctx, uint32(evicted.ID), evicted.Data[:], diskscheduler.Immediate); err != nil {
			// The frame remains installed; give the caller a chance to retry
			// the evict later by re-marking it evictable.
			p.replacer.RecordAccess(frame)
			p.replacer.SetEvictable(frame, true)
			return 0, fmt.Errorf("%w: evicting page %d: %v", ErrDiskWriteFailed, evicted.ID, err)
		}
	}

	delete(p.pageTable, evicted.ID)
	p.occupied[frame] = false
	return frame, nil
}

// UnpinPage decrements pid's pin count, marking it dirty if requested.
// Dirty is OR'd in, never cleared here. A pin count already at zero logs
// a warning rather than erroring.
func (p *Pool) UnpinPage(pid PageID, isDirty bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	frame, ok := p.pageTable[pid]
	if !ok {
		return fmt.Errorf("%w: page %d", ErrPageNotFound, pid)
	}

	page := &p.frames[frame]
	if isDirty {
		page.IsDirty = true
	}
	if underflowed := page.decrementPin(); underflowed {
		slog.Warn(logPrefix+"unpin called with pin count already zero", "pageID", pid)
	}
	if page.PinCount == 0 {
		p.replacer.SetEvictable(frame, true)
	}

	slog.Debug(logPrefix+"unpin", "pageID", pid, "isDirty", page.IsDirty, "pinCount", page.PinCount)
	return nil
}

// FlushPage writes pid to disk via the scheduler's immediate strategy if
// it is resident and dirty. Not an error if clean; ErrPageNotFound if
// absent.
func (p *Pool) FlushPage(ctx context.Context, pid PageID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.flushPageLocked(ctx, pid)
}

func (p *Pool) flushPageLocked(ctx context.Context, pid PageID) error {
	frame, ok := p.pageTable[pid]
	if !ok {
		return fmt.Errorf("%w: page %d", ErrPageNotFound, pid)
	}

	page := &p.frames[frame]
	if !page.IsDirty {
		return nil
	}

	if err := p.scheduler.ScheduleWrite(ctx, uint32(pid), page.Data[:], diskscheduler.Immediate); err != nil {
		return fmt.Errorf("%w: flushing page %d: %v", ErrDiskWriteFailed, pid, err)
	}
	page.IsDirty = false
	return nil
}

// FlushAllPages batches every dirty page through the scheduler's
// BatchWrite and clears IsDirty on the pages that succeeded.
func (p *Pool) FlushAllPages(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.flushAllLocked(ctx)
}

func (p *Pool) flushAllLocked(ctx context.Context) error {
	var items []diskscheduler.WriteItem
	var frames []FrameID

	for pid, frame := range p.pageTable {
		page := &p.frames[frame]
		if !page.IsDirty {
			continue
		}
		payload := make([]byte, PageSize)
		copy(payload, page.Data[:])
		items = append(items, diskscheduler.WriteItem{PageID: uint32(pid), Data: payload})
		frames = append(frames, frame)
	}

	if len(items) == 0 {
		return nil
	}

	if err := p.scheduler.BatchWrite(ctx, items); err != nil {
		return fmt.Errorf("%w: flush all pages: %v", ErrDiskWriteFailed, err)
	}

	for _, frame := range frames {
		p.frames[frame].IsDirty = false
	}

	slog.Debug(logPrefix+"flushed all dirty pages", "count", len(items))
	return nil
}

// DeletePage flushes pid if dirty, removes it from the page table, and
// returns its frame to the free list. A page not currently resident is
// a no-op.
func (p *Pool) DeletePage(ctx context.Context, pid PageID) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	frame, ok := p.pageTable[pid]
	if !ok {
		return nil
	}

	if p.frames[frame].IsDirty {
		if err := p.flushPageLocked(ctx, pid); err != nil {
			return err
		}
	}

	delete(p.pageTable, pid)
	p.occupied[frame] = false
	p.frames[frame] = Page{}
	// The replacer has no explicit "forget" primitive; marking the frame
	// non-evictable keeps it out of future victim selection until it is
	// reinstalled by NewPage/FetchPage, which re-records it.
	p.replacer.SetEvictable(frame, false)
	p.freeList = append(p.freeList, frame)

	slog.Debug(logPrefix+"deleted page", "pageID", pid, "frameID", frame)
	return nil
}

// Reset flushes every dirty page, then clears the page table, free
// list, and replacer, and rewinds the next-page-id counter to zero.
func (p *Pool) Reset(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	flushErr := p.flushAllLocked(ctx)

	size := len(p.frames)
	p.frames = make([]Page, size)
	p.occupied = make([]bool, size)
	p.pageTable = make(map[PageID]FrameID, size)
	p.freeList = make([]FrameID, size)
	for i := range p.freeList {
		p.freeList[i] = FrameID(i)
	}
	p.replacer = NewReplacer(p.policy, size)
	p.nextPageID = 0

	slog.Debug(logPrefix + "reset pool")
	return multierr.Combine(flushErr)
}

// WriteData copies data into pid's buffer (zero-padding a shorter
// payload) and marks the page dirty.
func (p *Pool) WriteData(pid PageID, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	frame, ok := p.pageTable[pid]
	if !ok {
		return fmt.Errorf("%w: page %d", ErrPageNotFound, pid)
	}
	if len(data) > PageSize {
		return fmt.Errorf("%w: payload of %d bytes exceeds %d", ErrDataAccess, len(data), PageSize)
	}

	page := &p.frames[frame]
	var buf [PageSize]byte
	copy(buf[:], data)
	page.Data = buf
	page.IsDirty = true
	return nil
}

// ReadData copies pid's buffer out.
func (p *Pool) ReadData(pid PageID) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	frame, ok := p.pageTable[pid]
	if !ok {
		return nil, fmt.Errorf("%w: page %d", ErrPageNotFound, pid)
	}

	out := make([]byte, PageSize)
	copy(out, p.frames[frame].Data[:])
	return out, nil
}
