package types

import (
	"github.com/rivo/uniseg"

	"lumen/internal/class"
	"lumen/internal/errors"
	"lumen/internal/heap"
	"lumen/internal/value"
)

// Iterator is the protocol every built-in iterator implements:
// get_key, get_value, at_end.
type Iterator interface {
	heap.Object
	AtEnd() bool
	Advance()
	GetKey() value.Value
	GetValue() value.Value
	// WantsRef reports whether this iterator was constructed for a `foreach
	// ref` loop, so NextValue should bind through GetValueRef instead of
	// copying.
	WantsRef() bool
}

// RefIterator is additionally implemented by iterators over reference
// collections (List, Table), letting foreach bind the loop variable as an
// alias back into the collection. Iterators over String, File and Regex do
// not implement this: taking a reference through them raises
// ReferenceError.
type RefIterator interface {
	Iterator
	GetValueRef() (value.Value, error)
}

// ---- ListIterator ----

type ListIterator struct {
	hdr    *heap.Header
	gc     *heap.GC
	source *List
	pos    int
	ref    bool
}

func NewListIterator(gc *heap.GC, cls *class.Class, l *List, ref bool) *ListIterator {
	gc.Retain(l)
	it := &ListIterator{gc: gc, source: l, ref: ref}
	it.hdr = heap.NewHeader(it, cls, true)
	return it
}

func (it *ListIterator) Hdr() *heap.Header { return it.hdr }
func (it *ListIterator) Destroy()          { it.gc.Release(it.source) }
func (it *ListIterator) AtEnd() bool       { return it.pos >= it.source.Size() }
func (it *ListIterator) Advance()          { it.pos++ }
func (it *ListIterator) WantsRef() bool    { return it.ref }
func (it *ListIterator) GetKey() value.Value {
	return value.IntValue(int64(it.pos + 1))
}
func (it *ListIterator) GetValue() value.Value {
	v, _ := it.source.GetItem(0, int64(it.pos+1), false)
	return v
}
func (it *ListIterator) GetValueRef() (value.Value, error) {
	return it.source.GetItem(0, int64(it.pos+1), true)
}

// ---- TableIterator ----

type TableIterator struct {
	hdr     *heap.Header
	gc      *heap.GC
	source  *Table
	entries []*tableEntry
	pos     int
	ref     bool
}

func NewTableIterator(gc *heap.GC, cls *class.Class, t *Table, ref bool) *TableIterator {
	gc.Retain(t)
	it := &TableIterator{gc: gc, source: t, entries: t.entries(), ref: ref}
	it.hdr = heap.NewHeader(it, cls, true)
	return it
}

func (it *TableIterator) Hdr() *heap.Header   { return it.hdr }
func (it *TableIterator) Destroy()            { it.gc.Release(it.source) }
func (it *TableIterator) AtEnd() bool         { return it.pos >= len(it.entries) }
func (it *TableIterator) Advance()            { it.pos++ }
func (it *TableIterator) WantsRef() bool      { return it.ref }
func (it *TableIterator) GetKey() value.Value { return value.Copy(it.gc, it.entries[it.pos].key) }
func (it *TableIterator) GetValue() value.Value {
	return value.Copy(it.gc, it.entries[it.pos].val)
}
func (it *TableIterator) GetValueRef() (value.Value, error) {
	e := it.entries[it.pos]
	value.MakeAlias(&e.val)
	return value.Copy(it.gc, e.val), nil
}

// ---- StringIterator ----

// StringIterator walks a string by grapheme cluster (not byte or rune),
// grounded on github.com/rivo/uniseg's user-perceived-character
// segmentation, so e.g. combining accents and emoji sequences iterate as a
// single element.
type StringIterator struct {
	hdr        *heap.Header
	graphemes  []string
	pos        int
}

func NewStringIterator(cls *class.Class, s string) *StringIterator {
	it := &StringIterator{}
	gr := uniseg.NewGraphemes(s)
	for gr.Next() {
		it.graphemes = append(it.graphemes, gr.Str())
	}
	it.hdr = heap.NewHeader(it, cls, true)
	return it
}

func (it *StringIterator) Hdr() *heap.Header   { return it.hdr }
func (it *StringIterator) AtEnd() bool         { return it.pos >= len(it.graphemes) }
func (it *StringIterator) Advance()            { it.pos++ }
func (it *StringIterator) WantsRef() bool      { return false }
func (it *StringIterator) GetKey() value.Value { return value.IntValue(int64(it.pos + 1)) }
func (it *StringIterator) GetValue() value.Value {
	return value.StringValue(it.graphemes[it.pos])
}

// ---- FileIterator ----

// FileIterator yields successive lines of a File; it is forward-only,
// matching the File's own forward-only buffered reader.
type FileIterator struct {
	hdr     *heap.Header
	gc      *heap.GC
	source  *File
	current string
	atEnd   bool
	idx     int
}

func NewFileIterator(gc *heap.GC, cls *class.Class, f *File) *FileIterator {
	gc.Retain(f)
	it := &FileIterator{gc: gc, source: f}
	it.hdr = heap.NewHeader(it, cls, true)
	it.pull()
	return it
}

func (it *FileIterator) pull() {
	line, ok, err := it.source.ReadLine(0)
	if err != nil || !ok {
		it.atEnd = true
		return
	}
	it.current = line
}

func (it *FileIterator) Hdr() *heap.Header { return it.hdr }
func (it *FileIterator) Destroy()          { it.gc.Release(it.source) }
func (it *FileIterator) AtEnd() bool       { return it.atEnd }
func (it *FileIterator) Advance() {
	it.idx++
	it.pull()
}
func (it *FileIterator) GetKey() value.Value   { return value.IntValue(int64(it.idx + 1)) }
func (it *FileIterator) GetValue() value.Value { return value.StringValue(it.current) }
func (it *FileIterator) WantsRef() bool        { return false }

// ---- RegexIterator ----

// RegexIterator walks every match the Regex finds in the subject of its
// most recent match operation, computed eagerly at construction.
type RegexIterator struct {
	hdr     *heap.Header
	matches []string
	pos     int
}

func NewRegexIterator(cls *class.Class, re *Regex) *RegexIterator {
	it := &RegexIterator{matches: re.re.FindAllString(re.Subject(), -1)}
	it.hdr = heap.NewHeader(it, cls, true)
	return it
}

func (it *RegexIterator) Hdr() *heap.Header   { return it.hdr }
func (it *RegexIterator) AtEnd() bool         { return it.pos >= len(it.matches) }
func (it *RegexIterator) Advance()            { it.pos++ }
func (it *RegexIterator) WantsRef() bool      { return false }
func (it *RegexIterator) GetKey() value.Value { return value.IntValue(int64(it.pos + 1)) }
func (it *RegexIterator) GetValue() value.Value {
	return value.StringValue(it.matches[it.pos])
}

// NoRefErr is the error GetValueRef-style callers should raise when asked
// for a by-reference binding through a non-reference iterator (String,
// File, Regex).
func NoRefErr(line int, kind string) error {
	return errors.New(errors.ReferenceError, line, "%s iteration does not support reference binding", kind)
}

// NewIteratorFor builds the right concrete Iterator for v's runtime
// class. ref requests a `foreach ref` loop; it is rejected up front for
// String, File and Regex, whose iterators never support reference binding.
func NewIteratorFor(gc *heap.GC, b Builtins, v value.Value, ref bool, line int) (value.Value, error) {
	v = value.Resolve(v)
	switch v.Tag() {
	case value.Str:
		if ref {
			return value.Value{}, NoRefErr(line, "String")
		}
		return value.ObjectValue(NewStringIterator(b.StringIterator, v.AsString())), nil
	case value.Obj:
		switch o := v.AsObject().(type) {
		case *List:
			return value.ObjectValue(NewListIterator(gc, b.ListIterator, o, ref)), nil
		case *Table:
			return value.ObjectValue(NewTableIterator(gc, b.TableIterator, o, ref)), nil
		case *File:
			if ref {
				return value.Value{}, NoRefErr(line, "File")
			}
			return value.ObjectValue(NewFileIterator(gc, b.FileIterator, o)), nil
		case *Regex:
			if ref {
				return value.Value{}, NoRefErr(line, "Regex")
			}
			return value.ObjectValue(NewRegexIterator(b.RegexIterator, o)), nil
		}
	}
	return value.Value{}, errors.New(errors.TypeError, line, "%s is not iterable", value.ClassOf(v).Name)
}
