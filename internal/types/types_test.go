package types_test

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lumen/internal/class"
	"lumen/internal/errors"
	"lumen/internal/heap"
	"lumen/internal/types"
	"lumen/internal/value"
)

func setup(t *testing.T) (*heap.GC, types.Builtins) {
	t.Helper()
	gc := heap.NewGC(1 << 20)
	reg := class.NewRegistry()
	reg.Bootstrap()
	obj := reg.Object()
	value.InitPrimitives(value.Primitives{
		Null:    reg.Register("Null", obj, nil),
		Boolean: reg.Register("Boolean", obj, reflect.TypeOf(false)),
		Integer: reg.Register("Integer", obj, reflect.TypeOf(int64(0))),
		Float:   reg.Register("Float", obj, reflect.TypeOf(float64(0))),
		String:  reg.Register("String", obj, reflect.TypeOf("")),
	})
	return gc, types.RegisterBuiltins(gc, reg)
}

func ints(vs ...int64) []value.Value {
	out := make([]value.Value, len(vs))
	for i, v := range vs {
		out[i] = value.IntValue(v)
	}
	return out
}

func TestListIndexingOneBased(t *testing.T) {
	gc, b := setup(t)
	l := types.NewList(gc, b.List, ints(10, 20, 30))

	v, err := l.GetItem(1, 1, false)
	require.NoError(t, err)
	assert.Equal(t, int64(10), value.Resolve(v).AsInt())

	v, err = l.GetItem(1, -1, false)
	require.NoError(t, err)
	assert.Equal(t, int64(30), value.Resolve(v).AsInt(), "negative indices count from the end")

	_, err = l.GetItem(1, 0, false)
	assert.True(t, errors.Is(err, errors.IndexError))
	_, err = l.GetItem(1, 4, false)
	assert.True(t, errors.Is(err, errors.IndexError))
}

func TestListGetItemRefAliases(t *testing.T) {
	gc, b := setup(t)
	l := types.NewList(gc, b.List, ints(1, 2))

	ref, err := l.GetItem(1, 2, true)
	require.NoError(t, err)
	require.True(t, ref.IsAlias())

	value.SetAliasInner(ref, value.IntValue(99))
	v, err := l.GetItem(1, 2, false)
	require.NoError(t, err)
	assert.Equal(t, int64(99), value.Resolve(v).AsInt(), "writes through the alias land in the list")
}

func TestListFindSortReverse(t *testing.T) {
	gc, b := setup(t)
	l := types.NewList(gc, b.List, ints(3, 1, 2, 1))

	assert.Equal(t, int64(2), l.IndexOf(value.IntValue(1)))
	assert.Equal(t, int64(4), l.RIndexOf(value.IntValue(1)))
	assert.True(t, l.Contains(value.IntValue(3)))
	assert.False(t, l.Contains(value.IntValue(9)))

	require.NoError(t, l.Sort(1, func(a, b value.Value) (bool, error) {
		c, err := value.Compare(1, a, b)
		return c < 0, err
	}))
	assert.Equal(t, int64(1), l.Elems()[0].AsInt())
	assert.Equal(t, int64(3), l.Elems()[3].AsInt())

	l.Reverse()
	assert.Equal(t, int64(3), l.Elems()[0].AsInt())
}

func TestTableSetGetRemove(t *testing.T) {
	gc, b := setup(t)
	tbl := types.NewTable(gc, b.Table)
	tbl.Set(value.StringValue("k"), value.IntValue(1))
	tbl.Set(value.StringValue("k"), value.IntValue(2)) // overwrite

	v, ok := tbl.Get(value.StringValue("k"))
	require.True(t, ok)
	assert.Equal(t, int64(2), value.Resolve(v).AsInt())
	assert.Equal(t, 1, tbl.Size())

	assert.True(t, tbl.Remove(value.StringValue("k")))
	assert.False(t, tbl.Remove(value.StringValue("k")))
	assert.Equal(t, 0, tbl.Size())
}

func TestTableKeysPreserveInsertionOrder(t *testing.T) {
	gc, b := setup(t)
	tbl := types.NewTable(gc, b.Table)
	tbl.Set(value.StringValue("z"), value.IntValue(1))
	tbl.Set(value.StringValue("a"), value.IntValue(2))
	tbl.Set(value.IntValue(7), value.IntValue(3))

	keys := tbl.Keys()
	require.Len(t, keys, 3)
	assert.Equal(t, "z", value.Resolve(keys[0]).AsString())
	assert.Equal(t, "a", value.Resolve(keys[1]).AsString())
	assert.Equal(t, int64(7), value.Resolve(keys[2]).AsInt())
}

func TestSetSemantics(t *testing.T) {
	gc, b := setup(t)
	s := types.NewSet(gc, b.Set)
	assert.True(t, s.Insert(value.IntValue(1)))
	assert.False(t, s.Insert(value.IntValue(1)), "duplicate insert reports false")
	s.Insert(value.IntValue(2))

	assert.Equal(t, 2, s.Size())
	assert.True(t, s.Contains(value.IntValue(2)))
	assert.True(t, s.Remove(value.IntValue(2)))
	assert.False(t, s.Contains(value.IntValue(2)))
}

func TestIteratorProtocol(t *testing.T) {
	gc, b := setup(t)
	l := types.NewList(gc, b.List, ints(5, 6))
	it := types.NewListIterator(gc, b.ListIterator, l, false)

	var keys, vals []int64
	for !it.AtEnd() {
		keys = append(keys, value.Resolve(it.GetKey()).AsInt())
		vals = append(vals, value.Resolve(it.GetValue()).AsInt())
		it.Advance()
	}
	assert.Equal(t, []int64{1, 2}, keys)
	assert.Equal(t, []int64{5, 6}, vals)
}

func TestStringIteratorWalksGraphemes(t *testing.T) {
	_, b := setup(t)
	it := types.NewStringIterator(b.StringIterator, "é🇫🇷x")

	var got []string
	for !it.AtEnd() {
		got = append(got, value.Resolve(it.GetValue()).AsString())
		it.Advance()
	}
	assert.Equal(t, []string{"é", "🇫🇷", "x"}, got, "iteration is by grapheme cluster, not rune")
}

func TestNewIteratorForRejectsRefOnString(t *testing.T) {
	gc, b := setup(t)
	_, err := types.NewIteratorFor(gc, b, value.StringValue("ab"), true, 3)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ReferenceError))
}

func TestArrayBounds(t *testing.T) {
	_, b := setup(t)
	a := types.NewArray(b.Array, 2, 2, []float64{1, 2, 3, 4})

	v, err := a.Get(1, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, 3.0, v)

	_, err = a.Get(1, 3, 1)
	assert.True(t, errors.Is(err, errors.IndexError))
}

func TestRegexIteratorWalksLastSubjectMatches(t *testing.T) {
	_, b := setup(t)
	re, err := types.CompileRegex(b.Regex, 1, `\d+`)
	require.NoError(t, err)
	require.Equal(t, 3, re.Count("a1 b22 c333"))

	it := types.NewRegexIterator(b.RegexIterator, re)
	var keys []int64
	var got []string
	for !it.AtEnd() {
		keys = append(keys, value.Resolve(it.GetKey()).AsInt())
		got = append(got, value.Resolve(it.GetValue()).AsString())
		it.Advance()
	}
	assert.Equal(t, []int64{1, 2, 3}, keys)
	assert.Equal(t, []string{"1", "22", "333"}, got)

	// No match operation yet: nothing to iterate.
	fresh, err := types.CompileRegex(b.Regex, 1, `\d+`)
	require.NoError(t, err)
	assert.True(t, types.NewRegexIterator(b.RegexIterator, fresh).AtEnd())
}

func TestNewIteratorForRegex(t *testing.T) {
	gc, b := setup(t)
	re, err := types.CompileRegex(b.Regex, 1, `[a-z]+`)
	require.NoError(t, err)
	re.HasMatch("one two")

	v, err := types.NewIteratorFor(gc, b, value.ObjectValue(re), false, 1)
	require.NoError(t, err)
	it, ok := value.Resolve(v).AsObject().(types.Iterator)
	require.True(t, ok)
	assert.False(t, it.AtEnd())

	_, err = types.NewIteratorFor(gc, b, value.ObjectValue(re), true, 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ReferenceError))
}

func TestRegexOperations(t *testing.T) {
	_, b := setup(t)
	re, err := types.CompileRegex(b.Regex, 1, `(\d+)-(\d+)`)
	require.NoError(t, err)

	assert.True(t, re.HasMatch("order 12-34 shipped"))
	assert.Equal(t, "12-34", re.Match("order 12-34 shipped"))
	assert.Equal(t, 2, re.Count("1-2 and 3-4"))

	caps := re.Capture("12-34")
	require.Len(t, caps, 3)
	assert.Equal(t, "12", caps[1])

	_, err = types.CompileRegex(b.Regex, 1, `(unclosed`)
	assert.Error(t, err)
}

func TestFunctionOverloadOwnership(t *testing.T) {
	gc, b := setup(t)
	fn := types.NewFunction(gc, b.Function, "f")
	r := types.NewRoutine("f")
	cl := types.NewClosure(gc, b.Closure, r, nil)
	fn.AddOverload(&types.Overload{Closure: cl, Name: "f", Arity: 0})

	visited := 0
	fn.Traverse(func(o heap.Object) { visited++ })
	assert.Equal(t, 1, visited, "function traverses its closure overloads")
}
