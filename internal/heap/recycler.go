package heap

// Stats accumulates lifetime counters for the cycle collector, surfaced by
// internal/runtime as Prometheus gauges/counters.
type Stats struct {
	Runs          uint64
	Reclaimed     uint64
	CandidatesNow int
	LiveObjects   int64
}

// GC owns the candidate ("possible root") list and implements the
// synchronous Recycler cycle collector of Bacon & Rajan. It is
// single-threaded, matching the confined-to-one-goroutine runtime model.
type GC struct {
	head      *Header // sentinel; head.next/prev form the candidate ring
	suspended int
	threshold int
	stats     Stats
}

// NewGC builds a collector that triggers automatically once the candidate
// list reaches threshold entries (on top of explicit Collect calls).
func NewGC(threshold int) *GC {
	gc := &GC{threshold: threshold}
	gc.head = &Header{}
	gc.head.prev = gc.head
	gc.head.next = gc.head
	return gc
}

func (gc *GC) Stats() Stats {
	s := gc.stats
	s.CandidatesNow = gc.candidateCount()
	return s
}

func (gc *GC) candidateCount() int {
	n := 0
	for h := gc.head.next; h != gc.head; h = h.next {
		n++
	}
	return n
}

// Suspend brackets a critical section (class bootstrap, runtime teardown)
// during which no collection runs.
func (gc *GC) Suspend() { gc.suspended++ }

// Resume ends a Suspend bracket.
func (gc *GC) Resume() {
	if gc.suspended > 0 {
		gc.suspended--
	}
}

// Retain increments o's reference count.
func (gc *GC) Retain(o Object) {
	if o == nil {
		return
	}
	o.Hdr().refcnt++
	gc.stats.LiveObjects++
}

// Release decrements o's reference count; destroys it immediately if the
// count reaches zero, otherwise colours it Purple and adds it to the
// candidate list (unless it is Green, which is never a candidate).
func (gc *GC) Release(o Object) {
	if o == nil {
		return
	}
	h := o.Hdr()
	if h.refcnt == 0 {
		return // already destroyed; defensive against double-release
	}
	h.refcnt--
	gc.stats.LiveObjects--
	if h.refcnt > 0 {
		if h.color != Green && h.color != Purple {
			h.color = Purple
			gc.addCandidate(h)
			if !gc.suspended1() && gc.candidateCount() >= gc.threshold {
				gc.Collect()
			}
		}
		return
	}
	gc.removeCandidate(h)
	if d, ok := o.(Destroyable); ok {
		// Destroy releases the object's children; suspending here keeps a
		// threshold-triggered collection from re-entering mid-teardown.
		gc.suspended++
		d.Destroy()
		gc.suspended--
	}
}

func (gc *GC) suspended1() bool { return gc.suspended > 0 }

func (gc *GC) addCandidate(h *Header) {
	if h.inList {
		return
	}
	h.inList = true
	last := gc.head.prev
	last.next = h
	h.prev = last
	h.next = gc.head
	gc.head.prev = h
}

func (gc *GC) removeCandidate(h *Header) {
	if !h.inList {
		return
	}
	h.prev.next = h.next
	h.next.prev = h.prev
	h.prev, h.next = nil, nil
	h.inList = false
}

// Collect runs one synchronous Recycler pass over the candidate list:
// MarkCandidates, Scan, CollectWhite. It is idempotent:
// running it again immediately with no intervening mutation reclaims
// nothing (testable property #6).
func (gc *GC) Collect() {
	if gc.suspended1() {
		return
	}
	var roots []*Header
	for h := gc.head.next; h != gc.head; h = h.next {
		roots = append(roots, h)
	}

	// Phase 1: MarkCandidates.
	for _, h := range roots {
		if h.color == Purple {
			gc.markGrey(h)
		} else {
			gc.removeCandidate(h)
		}
	}

	// Phase 2: Scan.
	for _, h := range roots {
		gc.scan(h)
	}

	// Phase 3: CollectWhite. Every root leaves the candidate list here:
	// survivors were re-blackened by Scan, the rest are garbage.
	for _, h := range roots {
		gc.removeCandidate(h)
	}
	reclaimed := uint64(0)
	for _, h := range roots {
		if h.color == White {
			reclaimed += gc.collectWhite(h)
		}
	}

	gc.stats.Runs++
	gc.stats.Reclaimed += reclaimed
}

func (gc *GC) markGrey(h *Header) {
	if h.color == Grey {
		return
	}
	h.color = Grey
	h.scratch = int32(h.refcnt)
	if c, ok := h.self.(Collectable); ok {
		c.Traverse(func(child Object) {
			ch := child.Hdr()
			if ch.color == Green {
				return
			}
			// Grey the child first: markGrey seeds its scratch count from
			// the true refcount, and the decrement for this edge must land
			// on the seeded value.
			if ch.color != Grey {
				gc.markGrey(ch)
			}
			ch.scratch--
		})
	}
}

func (gc *GC) scan(h *Header) {
	if h.color != Grey {
		return
	}
	if h.scratch > 0 {
		gc.scanBlack(h)
	} else {
		h.color = White
		if c, ok := h.self.(Collectable); ok {
			c.Traverse(func(child Object) {
				ch := child.Hdr()
				if ch.color == Grey {
					gc.scan(ch)
				}
			})
		}
	}
}

func (gc *GC) scanBlack(h *Header) {
	h.color = Black
	if c, ok := h.self.(Collectable); ok {
		c.Traverse(func(child Object) {
			ch := child.Hdr()
			if ch.color == Green {
				return
			}
			ch.scratch++
			if ch.color != Black {
				gc.scanBlack(ch)
			}
		})
	}
}

// collectWhite reclaims the garbage cycle rooted at h: the white members
// are gathered first, their refcounts pinned to a sentinel so the releases
// their destructors perform on each other cannot re-destroy a peer, and
// only then are the destructors run.
func (gc *GC) collectWhite(h *Header) uint64 {
	var dead []*Header
	gc.gatherWhite(h, &dead)
	if len(dead) == 0 {
		return 0
	}
	for _, w := range dead {
		w.refcnt = sentinelRefcnt
	}
	gc.suspended++ // destructors must not re-enter the collector
	for _, w := range dead {
		if d, ok := w.self.(Destroyable); ok {
			d.Destroy()
		}
	}
	gc.suspended--
	for _, w := range dead {
		// Releases between dying peers recolour them Purple and re-list
		// them as candidates; strike all of that out along with the
		// sentinel count.
		w.refcnt = 0
		w.color = Black
		gc.removeCandidate(w)
	}
	return uint64(len(dead))
}

// sentinelRefcnt is large enough that releases from dying cycle peers can
// never drive a member to zero while destructors run.
const sentinelRefcnt = 1 << 30

func (gc *GC) gatherWhite(h *Header, dead *[]*Header) {
	if h.color != White {
		return
	}
	h.color = Black // mark processed so a shared member is gathered once
	gc.removeCandidate(h)
	*dead = append(*dead, h)
	if c, ok := h.self.(Collectable); ok {
		c.Traverse(func(child Object) {
			gc.gatherWhite(child.Hdr(), dead)
		})
	}
}
