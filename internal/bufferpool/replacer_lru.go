package bufferpool

import (
	"container/list"
	"sync"
)

// lruEntry is the payload stored in each list element.
type lruEntry struct {
	frame     FrameID
	evictable bool
}

// lruStyleReplacer backs both the LRU and MRU policies: a doubly linked
// list ordered by recency (front = most recently touched, back = least),
// grounded in the teacher's container/list-based pkg/cache.LRUManager.
// RecordAccess moves a frame to the front; Evict walks from the back
// (LRU) or the front (MRU), skipping non-evictable frames in order.
type lruStyleReplacer struct {
	mu       sync.Mutex
	order    *list.List
	byFrame  map[FrameID]*list.Element
	capacity int
	mru      bool
}

func newLRUStyleReplacer(capacity int, mru bool) *lruStyleReplacer {
	return &lruStyleReplacer{
		order:    list.New(),
		byFrame:  make(map[FrameID]*list.Element),
		capacity: capacity,
		mru:      mru,
	}
}

func (r *lruStyleReplacer) RecordAccess(frame FrameID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recordAccessLocked(frame)
}

func (r *lruStyleReplacer) recordAccessLocked(frame FrameID) {
	if elem, ok := r.byFrame[frame]; ok {
		r.order.MoveToFront(elem)
		return
	}
	elem := r.order.PushFront(&lruEntry{frame: frame})
	r.byFrame[frame] = elem

	if r.capacity > 0 && r.order.Len() > r.capacity {
		r.evictOldestLocked()
	}
}

func (r *lruStyleReplacer) SetEvictable(frame FrameID, evictable bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if elem, ok := r.byFrame[frame]; ok {
		elem.Value.(*lruEntry).evictable = evictable
	}
}

// Evict walks the list in victim order, skipping non-evictable frames.
// LRU's victim order is back-to-front (oldest first); MRU's is
// front-to-back (newest first).
func (r *lruStyleReplacer) Evict() (FrameID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.evictLocked()
}

func (r *lruStyleReplacer) evictLocked() (FrameID, bool) {
	next := r.order.Back
	if r.mru {
		next = r.order.Front
	}

	for elem := next(); elem != nil; elem = r.step(elem) {
		entry := elem.Value.(*lruEntry)
		if !entry.evictable {
			continue
		}
		r.order.Remove(elem)
		delete(r.byFrame, entry.frame)
		return entry.frame, true
	}
	return 0, false
}

func (r *lruStyleReplacer) step(elem *list.Element) *list.Element {
	if r.mru {
		return elem.Next()
	}
	return elem.Prev()
}

// evictOldestLocked drops the single oldest evictable frame to enforce
// capacity; if nothing is currently evictable it is a no-op, since
// pinned frames cannot be forced out by a mere capacity overrun.
func (r *lruStyleReplacer) evictOldestLocked() {
	for elem := r.order.Back(); elem != nil; elem = elem.Prev() {
		entry := elem.Value.(*lruEntry)
		if entry.evictable {
			r.order.Remove(elem)
			delete(r.byFrame, entry.frame)
			return
		}
	}
}

func (r *lruStyleReplacer) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.order.Len()
}

func (r *lruStyleReplacer) BulkAdd(frames []FrameID, evictable bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range frames {
		r.recordAccessLocked(f)
		if elem, ok := r.byFrame[f]; ok {
			elem.Value.(*lruEntry).evictable = evictable
		}
	}
}

func (r *lruStyleReplacer) BulkEvict(n int) []FrameID {
	return bulkEvictGeneric(r, n)
}
