// Package value implements the tagged polymorphic Value container
// plus the Alias cell that gives multiple names a
// shared mutable location. Arithmetic, comparison, hashing and
// conversions live in arith.go; this file covers the tag itself and the
// lifecycle operations (copy/move/drop/resolve/make_alias/unalias/
// unshare).
package value

import "lumen/internal/heap"

// Tag identifies which arm of the union a Value currently holds.
type Tag uint8

const (
	Null Tag = iota
	Bool
	Int
	Float
	Str
	Obj
	AliasTag
)

// Value is the uniform tagged container for every runtime datum. Bool,
// Int, Float and Str fit inline; Obj holds a (retained) heap.Object;
// AliasTag holds a (retained) pointer to an Alias cell.
type Value struct {
	tag   Tag
	b     bool
	i     int64
	f     float64
	s     string
	obj   heap.Object
	alias *AliasCell
}

// AliasCell is a heap-allocated box carrying its own reference count and
// one inner Value, giving multiple names a shared mutable cell so writes
// through any alias are visible through all.
type AliasCell struct {
	refcount uint32
	inner    Value
}

func NullValue() Value          { return Value{tag: Null} }
func BoolValue(b bool) Value    { return Value{tag: Bool, b: b} }
func IntValue(i int64) Value    { return Value{tag: Int, i: i} }
func FloatValue(f float64) Value { return Value{tag: Float, f: f} }
func StringValue(s string) Value { return Value{tag: Str, s: s} }

// ObjectValue wraps an already-retained heap.Object (refcount already
// accounts for this new owning reference) as a Value.
func ObjectValue(o heap.Object) Value { return Value{tag: Obj, obj: o} }

func (v Value) Tag() Tag            { return v.tag }
func (v Value) IsNull() bool        { return v.tag == Null }
func (v Value) IsAlias() bool       { return v.tag == AliasTag }
func (v Value) AsBool() bool        { return v.b }
func (v Value) AsInt() int64        { return v.i }
func (v Value) AsFloat() float64    { return v.f }
func (v Value) AsString() string    { return v.s }
func (v Value) AsObject() heap.Object { return v.obj }

func (v Value) IsNumber() bool { return v.tag == Int || v.tag == Float }

// Resolve returns the final non-alias value along the alias chain. It is a
// non-owning borrow: the caller must Copy() the result before storing it
// anywhere that outlives the alias cell it came from. Idempotent and
// terminates because no core operation constructs a cycle of aliases.
func Resolve(v Value) Value {
	for v.tag == AliasTag {
		v = v.alias.inner
	}
	return v
}

// Copy retains any underlying sharable resource (object refcount, alias
// refcount) so the result is an independently owned value.
func Copy(gc *heap.GC, v Value) Value {
	switch v.tag {
	case Obj:
		gc.Retain(v.obj)
	case AliasTag:
		v.alias.refcount++
	}
	return v
}

// Move transfers ownership out of src, leaving it Null.
func Move(src *Value) Value {
	out := *src
	*src = Value{tag: Null}
	return out
}

// Drop releases any underlying sharable resource. Dropping the last
// reference to an Alias cell moves the cell's inner value out and drops
// that in turn, then frees the cell.
func Drop(gc *heap.GC, v Value) {
	switch v.tag {
	case Obj:
		gc.Release(v.obj)
	case AliasTag:
		v.alias.refcount--
		if v.alias.refcount == 0 {
			inner := v.alias.inner
			v.alias.inner = Value{tag: Null}
			Drop(gc, inner)
		}
	}
}

// MakeAlias in-place converts v to an Alias cell wrapping its former
// contents; a no-op if v is already an alias. Used to pass arguments by
// reference and to share mutable cells across foreach loop variables.
func MakeAlias(v *Value) {
	if v.tag == AliasTag {
		return
	}
	cell := &AliasCell{refcount: 1, inner: *v}
	*v = Value{tag: AliasTag, alias: cell}
}

// Unalias collapses the alias indirection: after this call v is a fresh,
// independently owned value equal to Resolve(v).
func Unalias(gc *heap.GC, v *Value) {
	if v.tag != AliasTag {
		return
	}
	old := *v
	resolved := Copy(gc, Resolve(old))
	*v = resolved
	Drop(gc, old)
}

// SetAliasInner overwrites the inner contents of v's Alias cell in place,
// without touching the cell's own refcount or identity -- every other
// holder of the same cell observes the write immediately. v must already be
// an Alias (callers check IsAlias first); the caller owns whatever value it
// passes in and is responsible for dropping the previous inner value.
func SetAliasInner(v Value, inner Value) {
	v.alias.inner = inner
}

// Unshare ensures v does not hold a heap object shared (refcount > 1) with
// another owner, cloning it in place if necessary via the class's clone
// slot. Used before mutating indexed collections so that a[i] = x on an
// aliased list does not mutate an unintended list. Operates through alias
// indirection: if v is an alias, the cell's inner value is what gets
// unshared, since that is the value actually referenced by other holders.
func Unshare(gc *heap.GC, v *Value) {
	if v.tag == AliasTag {
		Unshare(gc, &v.alias.inner)
		return
	}
	if v.tag != Obj || v.obj == nil {
		return
	}
	if v.obj.Hdr().RefCount() <= 1 {
		return
	}
	clone := CloneIfShared(v.obj, ClassOf(*v))
	if clone == nil {
		return // class has no Clone slot: nothing we can safely do
	}
	old := v.obj
	v.obj = clone
	gc.Release(old)
}
