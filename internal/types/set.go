package types

import (
	"github.com/dolthub/swiss"

	"lumen/internal/class"
	"lumen/internal/heap"
	"lumen/internal/value"
)

type setEntry struct {
	key   value.Value
	order int
}

// Set is the built-in unordered-membership collection, implemented the
// same way as Table but without a stored value per key.
type Set struct {
	hdr     *heap.Header
	gc      *heap.GC
	cls     *class.Class
	buckets *swiss.Map[uint64, []*setEntry]
	size    int
	seq     int
}

func NewSet(gc *heap.GC, cls *class.Class) *Set {
	s := &Set{gc: gc, cls: cls, buckets: swiss.NewMap[uint64, []*setEntry](8)}
	s.hdr = heap.NewHeader(s, cls, false)
	return s
}

func (s *Set) Hdr() *heap.Header { return s.hdr }

func (s *Set) Traverse(visit func(heap.Object)) {
	s.buckets.Iter(func(_ uint64, chain []*setEntry) bool {
		for _, e := range chain {
			if e.key.Tag() == value.Obj {
				if o := e.key.AsObject(); o != nil {
					visit(o)
				}
			}
		}
		return false
	})
}

func (s *Set) Destroy() {
	s.buckets.Iter(func(_ uint64, chain []*setEntry) bool {
		for _, e := range chain {
			value.Drop(s.gc, e.key)
		}
		return false
	})
	s.buckets = nil
}

func (s *Set) Size() int { return s.size }

func (s *Set) Contains(k value.Value) bool {
	h := value.Hash(k)
	chain, _ := s.buckets.Get(h)
	for _, e := range chain {
		if value.Equal(e.key, k) {
			return true
		}
	}
	return false
}

// Insert returns false (and drops k) if k was already a member.
func (s *Set) Insert(k value.Value) bool {
	h := value.Hash(k)
	chain, _ := s.buckets.Get(h)
	for _, e := range chain {
		if value.Equal(e.key, k) {
			value.Drop(s.gc, k)
			return false
		}
	}
	chain = append(chain, &setEntry{key: k, order: s.seq})
	s.seq++
	s.buckets.Put(h, chain)
	s.size++
	return true
}

func (s *Set) Remove(k value.Value) bool {
	h := value.Hash(k)
	chain, _ := s.buckets.Get(h)
	for i, e := range chain {
		if value.Equal(e.key, k) {
			value.Drop(s.gc, e.key)
			chain = append(chain[:i], chain[i+1:]...)
			if len(chain) == 0 {
				s.buckets.Delete(h)
			} else {
				s.buckets.Put(h, chain)
			}
			s.size--
			return true
		}
	}
	return false
}

func (s *Set) Clear() {
	s.buckets.Iter(func(h uint64, chain []*setEntry) bool {
		for _, e := range chain {
			value.Drop(s.gc, e.key)
		}
		return false
	})
	s.buckets.Clear()
	s.size = 0
}

func (s *Set) entries() []*setEntry {
	out := make([]*setEntry, 0, s.size)
	s.buckets.Iter(func(_ uint64, chain []*setEntry) bool {
		out = append(out, chain...)
		return false
	})
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1].order > out[j].order; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

func (s *Set) Elems() []value.Value {
	es := s.entries()
	out := make([]value.Value, len(es))
	for i, e := range es {
		out[i] = value.Copy(s.gc, e.key)
	}
	return out
}

func (s *Set) Clone() *Set {
	clone := NewSet(s.gc, s.cls)
	for _, e := range s.entries() {
		clone.Insert(value.Copy(s.gc, e.key))
	}
	return clone
}

// Union, Intersect and Subtract all return a freshly allocated Set,
// leaving s and other untouched.
func (s *Set) Union(other *Set) *Set {
	out := s.Clone()
	for _, v := range other.Elems() {
		out.Insert(v)
	}
	return out
}

func (s *Set) Intersect(other *Set) *Set {
	out := NewSet(s.gc, s.cls)
	for _, e := range s.entries() {
		if other.Contains(e.key) {
			out.Insert(value.Copy(s.gc, e.key))
		}
	}
	return out
}

func (s *Set) Subtract(other *Set) *Set {
	out := NewSet(s.gc, s.cls)
	for _, e := range s.entries() {
		if !other.Contains(e.key) {
			out.Insert(value.Copy(s.gc, e.key))
		}
	}
	return out
}

func toStringSet(o heap.Object, quote bool) string {
	s := o.(*Set)
	var sb []byte
	sb = append(sb, "Set{"...)
	for i, e := range s.entries() {
		if i > 0 {
			sb = append(sb, ", "...)
		}
		sb = append(sb, value.ToString(e.key, true)...)
	}
	sb = append(sb, '}')
	return string(sb)
}

func cloneSet(o heap.Object) heap.Object { return o.(*Set).Clone() }

func registerSetSlots(cls *class.Class) {
	cls.Slots.ToString = value.ToStringFunc(toStringSet)
	cls.Slots.Clone = value.CloneFunc(cloneSet)
}
