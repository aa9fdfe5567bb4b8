package bufferpool

import (
	"sync"
	"time"
)

// defaultLRUK is the classic LRU-K backward distance, K=2.
const defaultLRUK = 2

// lrukState tracks a frame's bounded ring of its most recent K accesses.
// history holds at most K timestamps, oldest at index 0, so the frame's
// "K-th most recent access" is always history[0] once the ring is full.
type lrukState struct {
	history     []time.Time
	firstAccess time.Time
	evictable   bool
}

// lrukReplacer implements LRU-K: a frame with fewer than K recorded
// accesses has an "infinite" backward distance and is always evicted
// before any frame with a full K-access history. Grounded in the
// original Rust replacer/lru_k.rs's policy description (the source
// left the body unimplemented) plus the LFU file's pattern of
// reconciling per-frame state against canonical bookkeeping.
type lrukReplacer struct {
	mu    sync.Mutex
	k     int
	state map[FrameID]*lrukState
}

func newLRUKReplacer(capacity, k int) *lrukReplacer {
	if k <= 0 {
		k = defaultLRUK
	}
	return &lrukReplacer{
		k:     k,
		state: make(map[FrameID]*lrukState, capacity),
	}
}

func (r *lrukReplacer) RecordAccess(frame FrameID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recordAccessLocked(frame)
}

func (r *lrukReplacer) recordAccessLocked(frame FrameID) {
	now := time.Now()
	st, ok := r.state[frame]
	if !ok {
		st = &lrukState{firstAccess: now}
		r.state[frame] = st
	}
	st.history = append(st.history, now)
	if len(st.history) > r.k {
		st.history = st.history[len(st.history)-r.k:]
	}
}

func (r *lrukReplacer) SetEvictable(frame FrameID, evictable bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if st, ok := r.state[frame]; ok {
		st.evictable = evictable
	}
}

func (r *lrukReplacer) Evict() (FrameID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.evictLocked()
}

func (r *lrukReplacer) evictLocked() (FrameID, bool) {
	var (
		victim         FrameID
		victimKey      time.Time
		victimInfinite bool
		found          bool
	)

	for frame, st := range r.state {
		if !st.evictable {
			continue
		}
		infinite := len(st.history) < r.k
		var key time.Time
		if infinite {
			key = st.firstAccess
		} else {
			key = st.history[0]
		}

		switch {
		case !found:
			victim, victimKey, victimInfinite, found = frame, key, infinite, true
		case infinite && !victimInfinite:
			victim, victimKey, victimInfinite = frame, key, true
		case infinite == victimInfinite && key.Before(victimKey):
			victim, victimKey = frame, key
		}
	}

	if !found {
		return 0, false
	}
	delete(r.state, victim)
	return victim, true
}

func (r *lrukReplacer) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.state)
}

func (r *lrukReplacer) BulkAdd(frames []FrameID, evictable bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range frames {
		r.recordAccessLocked(f)
		r.state[f].evictable = evictable
	}
}

func (r *lrukReplacer) BulkEvict(n int) []FrameID {
	return bulkEvictGeneric(r, n)
}
