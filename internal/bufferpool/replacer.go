package bufferpool

// Policy names one of the pool's pluggable eviction policies, selected at
// construction time per the pool's configuration, never per request.
type Policy string

const (
	PolicyLRU  Policy = "LRU"
	PolicyMRU  Policy = "MRU"
	PolicyLFU  Policy = "LFU"
	PolicyLRUK Policy = "LRU_K"
)

// Replacer is the uniform contract every eviction policy implements. The
// pool calls RecordAccess on every pin and SetEvictable whenever a page's
// pin count crosses to or from zero; it never reaches into policy-specific
// state directly.
type Replacer interface {
	// RecordAccess notes that frame was touched. Idempotent with respect
	// to the frame's presence; always updates recency/frequency metadata.
	RecordAccess(frame FrameID)

	// SetEvictable marks whether frame is eligible to be chosen as a
	// victim. Frames start non-evictable until explicitly marked.
	SetEvictable(frame FrameID, evictable bool)

	// Evict returns and removes one evictable frame per the policy's
	// ordering, or ok=false if none is evictable.
	Evict() (frame FrameID, ok bool)

	// Size reports the number of frames currently tracked (evictable or
	// not).
	Size() int

	// BulkAdd records an access for every frame in frames and sets their
	// evictable flag in one call.
	BulkAdd(frames []FrameID, evictable bool)

	// BulkEvict evicts up to n frames, stopping early if none remain.
	BulkEvict(n int) []FrameID
}

// NewReplacer constructs the Replacer named by policy, sized for
// capacity frames. An unrecognized policy falls back to LRU, the pool's
// documented default.
func NewReplacer(policy Policy, capacity int) Replacer {
	switch policy {
	case PolicyMRU:
		return newLRUStyleReplacer(capacity, true)
	case PolicyLFU:
		return newLFUReplacer(capacity)
	case PolicyLRUK:
		return newLRUKReplacer(capacity, defaultLRUK)
	case PolicyLRU:
		fallthrough
	default:
		return newLRUStyleReplacer(capacity, false)
	}
}

func bulkEvictGeneric(r Replacer, n int) []FrameID {
	victims := make([]FrameID, 0, n)
	for i := 0; i < n; i++ {
		frame, ok := r.Evict()
		if !ok {
			break
		}
		victims = append(victims, frame)
	}
	return victims
}
