package bufferpool

import (
	"container/heap"
	"sync"
	"time"
)

// lfuState is the canonical, up-to-date record for a tracked frame.
// Heap entries are only ever a snapshot taken at push time; they are
// reconciled against this map on pop, per the policy's documented
// stale-entry handling.
type lfuState struct {
	freq       uint64
	lastAccess time.Time
	evictable  bool
}

// lfuItem is one snapshot pushed onto the heap.
type lfuItem struct {
	frame      FrameID
	freq       uint64
	lastAccess time.Time
}

// lfuHeap orders items by ascending frequency, then by oldest
// lastAccess for ties, so Pop always yields the least-frequently (then
// least-recently) used snapshot first.
type lfuHeap []*lfuItem

func (h lfuHeap) Len() int { return len(h) }
func (h lfuHeap) Less(i, j int) bool {
	if h[i].freq != h[j].freq {
		return h[i].freq < h[j].freq
	}
	return h[i].lastAccess.Before(h[j].lastAccess)
}
func (h lfuHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *lfuHeap) Push(x any)   { *h = append(*h, x.(*lfuItem)) }
func (h *lfuHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// lfuReplacer implements the LFU policy: container/heap keyed on
// (frequency, last-access), reconciled against lfuState on pop since
// the heap accumulates one stale snapshot per RecordAccess. Grounded
// in the original Rust replacer/lfu.rs's heap-plus-frequency-map
// design.
type lfuReplacer struct {
	mu    sync.Mutex
	state map[FrameID]*lfuState
	heap  lfuHeap
}

func newLFUReplacer(capacity int) *lfuReplacer {
	return &lfuReplacer{
		state: make(map[FrameID]*lfuState, capacity),
	}
}

func (r *lfuReplacer) RecordAccess(frame FrameID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.state[frame]
	if !ok {
		st = &lfuState{freq: 1, lastAccess: time.Now()}
		r.state[frame] = st
	} else {
		st.freq++
		st.lastAccess = time.Now()
	}
	heap.Push(&r.heap, &lfuItem{frame: frame, freq: st.freq, lastAccess: st.lastAccess})
}

func (r *lfuReplacer) SetEvictable(frame FrameID, evictable bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if st, ok := r.state[frame]; ok {
		st.evictable = evictable
	}
}

func (r *lfuReplacer) Evict() (FrameID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.evictLocked()
}

func (r *lfuReplacer) evictLocked() (FrameID, bool) {
	var skipped []*lfuItem
	var victim *lfuItem

	for r.heap.Len() > 0 {
		item := heap.Pop(&r.heap).(*lfuItem)
		st, ok := r.state[item.frame]
		if !ok || st.freq != item.freq || !st.lastAccess.Equal(item.lastAccess) {
			continue // stale snapshot, superseded by a later access
		}
		if !st.evictable {
			skipped = append(skipped, item)
			continue
		}
		victim = item
		break
	}

	for _, item := range skipped {
		heap.Push(&r.heap, item)
	}

	if victim == nil {
		return 0, false
	}
	delete(r.state, victim.frame)
	return victim.frame, true
}

func (r *lfuReplacer) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.state)
}

func (r *lfuReplacer) BulkAdd(frames []FrameID, evictable bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range frames {
		st, ok := r.state[f]
		if !ok {
			st = &lfuState{freq: 1, lastAccess: time.Now()}
			r.state[f] = st
		} else {
			st.freq++
			st.lastAccess = time.Now()
		}
		st.evictable = evictable
		heap.Push(&r.heap, &lfuItem{frame: f, freq: st.freq, lastAccess: st.lastAccess})
	}
}

func (r *lfuReplacer) BulkEvict(n int) []FrameID {
	return bulkEvictGeneric(r, n)
}
