package types

import (
	"sort"

	"lumen/internal/class"
	"lumen/internal/errors"
	"lumen/internal/heap"
	"lumen/internal/value"
)

// List is the built-in ordered, mutable, reference-typed sequence. Its
// elements are owned Values: the list retains
// each on insert and drops it on removal/destroy.
type List struct {
	hdr   *heap.Header
	gc    *heap.GC
	cls   *class.Class
	elems []value.Value
}

// NewList takes ownership of elems (each must already be retained by the
// caller on the list's behalf).
func NewList(gc *heap.GC, cls *class.Class, elems []value.Value) *List {
	l := &List{gc: gc, cls: cls, elems: elems}
	l.hdr = heap.NewHeader(l, cls, false)
	return l
}

func (l *List) Hdr() *heap.Header { return l.hdr }

func (l *List) Traverse(visit func(heap.Object)) {
	for _, v := range l.elems {
		if v.Tag() == value.Obj {
			if o := v.AsObject(); o != nil {
				visit(o)
			}
		}
	}
}

func (l *List) Destroy() {
	for _, v := range l.elems {
		value.Drop(l.gc, v)
	}
	l.elems = nil
}

func (l *List) Clone() *List {
	out := make([]value.Value, len(l.elems))
	for i, v := range l.elems {
		out[i] = value.Copy(l.gc, v)
	}
	return NewList(l.gc, l.cls, out)
}

func (l *List) Size() int { return len(l.elems) }

// index converts a 1-based, possibly-negative script index into a Go slice
// index; negative indices count from the end.
func (l *List) index(line int, i int64) (int, error) {
	n := int64(len(l.elems))
	if i < 0 {
		i = n + i + 1
	}
	if i < 1 || i > n {
		return 0, errors.New(errors.IndexError, line, "list index %d out of range (size %d)", i, n)
	}
	return int(i - 1), nil
}

// GetItem returns the element at script-index i. When needsRef is set, the
// returned Value is converted to an Alias in place so the caller can write
// through it.
func (l *List) GetItem(line int, i int64, needsRef bool) (value.Value, error) {
	idx, err := l.index(line, i)
	if err != nil {
		return value.Value{}, err
	}
	if needsRef {
		value.MakeAlias(&l.elems[idx])
	}
	return value.Copy(l.gc, l.elems[idx]), nil
}

func (l *List) SetItem(line int, i int64, v value.Value) error {
	idx, err := l.index(line, i)
	if err != nil {
		return err
	}
	old := l.elems[idx]
	l.elems[idx] = v
	value.Drop(l.gc, old)
	return nil
}

func (l *List) Append(v value.Value) { l.elems = append(l.elems, v) }

func (l *List) Prepend(v value.Value) {
	l.elems = append([]value.Value{v}, l.elems...)
}

func (l *List) InsertAt(line int, i int64, v value.Value) error {
	n := int64(len(l.elems))
	if i < 0 {
		i = n + i + 1
	}
	if i < 1 || i > n+1 {
		return errors.New(errors.IndexError, line, "list insert index %d out of range (size %d)", i, n)
	}
	idx := int(i - 1)
	l.elems = append(l.elems, value.Value{})
	copy(l.elems[idx+1:], l.elems[idx:])
	l.elems[idx] = v
	return nil
}

func (l *List) RemoveAt(line int, i int64) (value.Value, error) {
	idx, err := l.index(line, i)
	if err != nil {
		return value.Value{}, err
	}
	v := l.elems[idx]
	l.elems = append(l.elems[:idx], l.elems[idx+1:]...)
	return v, nil
}

func (l *List) Pop() (value.Value, bool) {
	if len(l.elems) == 0 {
		return value.Value{}, false
	}
	v := l.elems[len(l.elems)-1]
	l.elems = l.elems[:len(l.elems)-1]
	return v, true
}

func (l *List) First() (value.Value, bool) {
	if len(l.elems) == 0 {
		return value.Value{}, false
	}
	return l.elems[0], true
}

func (l *List) Last() (value.Value, bool) {
	if len(l.elems) == 0 {
		return value.Value{}, false
	}
	return l.elems[len(l.elems)-1], true
}

func (l *List) Contains(v value.Value) bool {
	for _, e := range l.elems {
		if value.Equal(e, v) {
			return true
		}
	}
	return false
}

// IndexOf returns the 1-based script index of the first match, or 0.
func (l *List) IndexOf(v value.Value) int64 {
	for i, e := range l.elems {
		if value.Equal(e, v) {
			return int64(i + 1)
		}
	}
	return 0
}

// RIndexOf returns the 1-based script index of the last match, or 0.
func (l *List) RIndexOf(v value.Value) int64 {
	for i := len(l.elems) - 1; i >= 0; i-- {
		if value.Equal(l.elems[i], v) {
			return int64(i + 1)
		}
	}
	return 0
}

func (l *List) Clear() {
	for _, v := range l.elems {
		value.Drop(l.gc, v)
	}
	l.elems = l.elems[:0]
}

func (l *List) Sort(line int, less func(a, b value.Value) (bool, error)) error {
	var sortErr error
	sort.SliceStable(l.elems, func(i, j int) bool {
		if sortErr != nil {
			return false
		}
		lt, err := less(l.elems[i], l.elems[j])
		if err != nil {
			sortErr = err
			return false
		}
		return lt
	})
	return sortErr
}

func (l *List) Reverse() {
	for i, j := 0, len(l.elems)-1; i < j; i, j = i+1, j-1 {
		l.elems[i], l.elems[j] = l.elems[j], l.elems[i]
	}
}

func (l *List) Concat(other *List) *List {
	out := make([]value.Value, 0, len(l.elems)+len(other.elems))
	for _, v := range l.elems {
		out = append(out, value.Copy(l.gc, v))
	}
	for _, v := range other.elems {
		out = append(out, value.Copy(l.gc, v))
	}
	return NewList(l.gc, l.cls, out)
}

func (l *List) Elems() []value.Value { return l.elems }

func toStringList(o heap.Object, quote bool) string {
	l := o.(*List)
	var sb []byte
	sb = append(sb, '[')
	for i, v := range l.elems {
		if i > 0 {
			sb = append(sb, ", "...)
		}
		sb = append(sb, value.ToString(v, true)...)
	}
	sb = append(sb, ']')
	return string(sb)
}

func cloneList(o heap.Object) heap.Object { return o.(*List).Clone() }

func getItemList(o heap.Object, line int, indices []value.Value, needsRef bool) (value.Value, error) {
	l := o.(*List)
	if len(indices) != 1 {
		return value.Value{}, errors.New(errors.IndexError, line, "list indexing takes exactly one index, got %d", len(indices))
	}
	i, err := value.ToInteger(line, indices[0])
	if err != nil {
		return value.Value{}, err
	}
	return l.GetItem(line, i, needsRef)
}

func setItemList(o heap.Object, line int, indices []value.Value, v value.Value) error {
	l := o.(*List)
	if len(indices) != 1 {
		return errors.New(errors.IndexError, line, "list indexing takes exactly one index, got %d", len(indices))
	}
	i, err := value.ToInteger(line, indices[0])
	if err != nil {
		return err
	}
	return l.SetItem(line, i, v)
}

func registerListSlots(cls *class.Class) {
	cls.Slots.ToString = value.ToStringFunc(toStringList)
	cls.Slots.Clone = value.CloneFunc(cloneList)
	cls.Slots.GetItem = value.ItemGetFunc(getItemList)
	cls.Slots.SetItem = value.ItemSetFunc(setItemList)
}
