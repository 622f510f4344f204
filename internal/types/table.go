package types

import (
	"github.com/dolthub/swiss"

	"lumen/internal/class"
	"lumen/internal/errors"
	"lumen/internal/heap"
	"lumen/internal/value"
)

// tableEntry is one key/value pair in a hash bucket's collision chain.
type tableEntry struct {
	key   value.Value
	val   value.Value
	order int // insertion sequence, for deterministic iteration order
}

// Table is the built-in hash map, keyed by arbitrary
// Values via value.Hash/value.Equal. Buckets are chained on hash collision;
// the swiss.Map gives O(1) expected bucket lookup for the common case of no
// collision (grounded on dolthub/swiss, the corpus's flat hash map).
type Table struct {
	hdr     *heap.Header
	gc      *heap.GC
	cls     *class.Class
	buckets *swiss.Map[uint64, []*tableEntry]
	size    int
	seq     int
}

func NewTable(gc *heap.GC, cls *class.Class) *Table {
	t := &Table{gc: gc, cls: cls, buckets: swiss.NewMap[uint64, []*tableEntry](8)}
	t.hdr = heap.NewHeader(t, cls, false)
	return t
}

func (t *Table) Hdr() *heap.Header { return t.hdr }

func (t *Table) Traverse(visit func(heap.Object)) {
	t.buckets.Iter(func(_ uint64, chain []*tableEntry) bool {
		for _, e := range chain {
			if e.key.Tag() == value.Obj {
				if o := e.key.AsObject(); o != nil {
					visit(o)
				}
			}
			if e.val.Tag() == value.Obj {
				if o := e.val.AsObject(); o != nil {
					visit(o)
				}
			}
		}
		return false
	})
}

func (t *Table) Destroy() {
	t.buckets.Iter(func(_ uint64, chain []*tableEntry) bool {
		for _, e := range chain {
			value.Drop(t.gc, e.key)
			value.Drop(t.gc, e.val)
		}
		return false
	})
	t.buckets = nil
}

func (t *Table) Clone() *Table {
	clone := NewTable(t.gc, t.cls)
	t.buckets.Iter(func(h uint64, chain []*tableEntry) bool {
		out := make([]*tableEntry, len(chain))
		for i, e := range chain {
			out[i] = &tableEntry{
				key:   value.Copy(t.gc, e.key),
				val:   value.Copy(t.gc, e.val),
				order: e.order,
			}
		}
		clone.buckets.Put(h, out)
		return false
	})
	clone.size = t.size
	clone.seq = t.seq
	return clone
}

func (t *Table) Size() int { return t.size }

func (t *Table) findLocked(k value.Value) (chain []*tableEntry, idx int, ok bool) {
	h := value.Hash(k)
	chain, _ = t.buckets.Get(h)
	for i, e := range chain {
		if value.Equal(e.key, k) {
			return chain, i, true
		}
	}
	return chain, -1, false
}

func (t *Table) Get(k value.Value) (value.Value, bool) {
	chain, idx, ok := t.findLocked(k)
	if !ok {
		return value.Value{}, false
	}
	return value.Copy(t.gc, chain[idx].val), true
}

// GetRef returns an alias to the slot's value for indexed reference writes
//; ok is false if k is absent.
func (t *Table) GetRef(k value.Value) (value.Value, bool) {
	h := value.Hash(k)
	chain, _ := t.buckets.Get(h)
	for _, e := range chain {
		if value.Equal(e.key, k) {
			value.MakeAlias(&e.val)
			return value.Copy(t.gc, e.val), true
		}
	}
	return value.Value{}, false
}

func (t *Table) Set(k, v value.Value) {
	h := value.Hash(k)
	chain, _ := t.buckets.Get(h)
	for _, e := range chain {
		if value.Equal(e.key, k) {
			old := e.val
			e.val = v
			value.Drop(t.gc, old)
			value.Drop(t.gc, k) // caller's key reference is superseded by the existing one
			return
		}
	}
	chain = append(chain, &tableEntry{key: k, val: v, order: t.seq})
	t.seq++
	t.buckets.Put(h, chain)
	t.size++
}

func (t *Table) Remove(k value.Value) bool {
	h := value.Hash(k)
	chain, _ := t.buckets.Get(h)
	for i, e := range chain {
		if value.Equal(e.key, k) {
			value.Drop(t.gc, e.key)
			value.Drop(t.gc, e.val)
			chain = append(chain[:i], chain[i+1:]...)
			if len(chain) == 0 {
				t.buckets.Delete(h)
			} else {
				t.buckets.Put(h, chain)
			}
			t.size--
			return true
		}
	}
	return false
}

func (t *Table) Contains(k value.Value) bool {
	_, _, ok := t.findLocked(k)
	return ok
}

func (t *Table) Clear() {
	t.buckets.Iter(func(h uint64, chain []*tableEntry) bool {
		for _, e := range chain {
			value.Drop(t.gc, e.key)
			value.Drop(t.gc, e.val)
		}
		return false
	})
	t.buckets.Clear()
	t.size = 0
}

// entries returns every entry in insertion order, used by Keys/Values and
// by TableIterator.
func (t *Table) entries() []*tableEntry {
	out := make([]*tableEntry, 0, t.size)
	t.buckets.Iter(func(_ uint64, chain []*tableEntry) bool {
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

func (t *Table) Keys() []value.Value {
	es := t.entries()
	out := make([]value.Value, len(es))
	for i, e := range es {
		out[i] = value.Copy(t.gc, e.key)
	}
	return out
}

func (t *Table) Values() []value.Value {
	es := t.entries()
	out := make([]value.Value, len(es))
	for i, e := range es {
		out[i] = value.Copy(t.gc, e.val)
	}
	return out
}

func toStringTable(o heap.Object, quote bool) string {
	t := o.(*Table)
	var sb []byte
	sb = append(sb, '{')
	for i, e := range t.entries() {
		if i > 0 {
			sb = append(sb, ", "...)
		}
		sb = append(sb, value.ToString(e.key, true)...)
		sb = append(sb, ": "...)
		sb = append(sb, value.ToString(e.val, true)...)
	}
	sb = append(sb, '}')
	return string(sb)
}

func cloneTable(o heap.Object) heap.Object { return o.(*Table).Clone() }

func getItemTable(o heap.Object, line int, indices []value.Value, needsRef bool) (value.Value, error) {
	t := o.(*Table)
	if len(indices) != 1 {
		return value.Value{}, errors.New(errors.IndexError, line, "table indexing takes exactly one key, got %d", len(indices))
	}
	if needsRef {
		if v, ok := t.GetRef(indices[0]); ok {
			return v, nil
		}
		return value.Value{}, errors.New(errors.IndexError, line, "key %s not found in table", value.ToString(indices[0], true))
	}
	v, ok := t.Get(indices[0])
	if !ok {
		return value.Value{}, errors.New(errors.IndexError, line, "key %s not found in table", value.ToString(indices[0], true))
	}
	return v, nil
}

func setItemTable(o heap.Object, line int, indices []value.Value, v value.Value) error {
	t := o.(*Table)
	if len(indices) != 1 {
		return errors.New(errors.IndexError, line, "table indexing takes exactly one key, got %d", len(indices))
	}
	// indices are borrowed from the caller; Set takes ownership of its key.
	t.Set(value.Copy(t.gc, indices[0]), v)
	return nil
}

func registerTableSlots(cls *class.Class) {
	cls.Slots.ToString = value.ToStringFunc(toStringTable)
	cls.Slots.Clone = value.CloneFunc(cloneTable)
	cls.Slots.GetItem = value.ItemGetFunc(getItemTable)
	cls.Slots.SetItem = value.ItemSetFunc(setItemTable)
}
