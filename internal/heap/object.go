// Package heap implements the heap object header and the backup cycle
// collector: a synchronous Recycler in the style of Bacon & Rajan (2001).
// The package is deliberately ignorant of the
// value model above it -- it only ever sees heap.Object references, never
// the tagged Value union -- so that the built-in boxed types (lists,
// tables, closures...) can live in a higher package without an import
// cycle back down to heap.
package heap

// Color is the mark-colour of a heap object header.
type Color uint8

const (
	// Black is the default colour for a freshly allocated collectable
	// object: reachable, not currently a candidate.
	Black Color = iota
	// Grey marks an object during the MarkCandidates phase, while its
	// children are being speculatively decremented.
	Grey
	// White marks an object provisionally dead at the end of Scan.
	White
	// Purple marks an object whose refcount was decremented to a
	// non-zero value: a candidate root for the next collection.
	Purple
	// Green marks an acyclic type (string, regex, file, iterator,
	// routine, numeric array): destroyed the instant its refcount hits
	// zero, never a cycle-collector candidate.
	Green
)

// ClassInfo is the minimal view the heap package needs of a value's class:
// just enough to label a header for debugging. The class registry lives in
// internal/class and satisfies this interface structurally, so heap never
// imports it.
type ClassInfo interface {
	ClassName() string
}

// Header is the fixed-size header every heap object carries.
type Header struct {
	self    Object
	class   ClassInfo
	refcnt  uint32
	scratch int32 // scratch refcount used by MarkCandidates/Scan
	color   Color
	inList  bool
	prev    *Header
	next    *Header
}

// NewHeader builds a header for self, owned by class ci. green objects are
// never added to the candidate list and are destroyed the instant their
// refcount reaches zero.
func NewHeader(self Object, ci ClassInfo, green bool) *Header {
	c := Black
	if green {
		c = Green
	}
	return &Header{self: self, class: ci, refcnt: 1, color: c}
}

func (h *Header) RefCount() uint32  { return h.refcnt }
func (h *Header) Color() Color      { return h.color }
func (h *Header) Class() ClassInfo  { return h.class }
func (h *Header) IsCandidate() bool { return h.inList }

// Object is any heap-allocated, reference-counted value.
type Object interface {
	Hdr() *Header
}

// Collectable is a heap object that may participate in a reference cycle
// and therefore must expose its owned children to the cycle collector.
// Acyclic (Green) types need not implement this.
type Collectable interface {
	Object
	// Traverse invokes visit once for every heap.Object this object owns
	// a reference to.
	Traverse(visit func(Object))
}

// Destroyable releases any resources (file handles, owned children) a
// heap object holds, once its refcount has reached zero. Destroy must not
// re-enter the collector.
type Destroyable interface {
	Destroy()
}
