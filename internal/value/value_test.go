package value_test

import (
	"math"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lumen/internal/class"
	"lumen/internal/errors"
	"lumen/internal/heap"
	"lumen/internal/value"
)

func bootstrap(t *testing.T) (*heap.GC, *class.Registry) {
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
	return gc, reg
}

func kindOf(t *testing.T, err error) errors.Kind {
	t.Helper()
	le, ok := err.(*errors.LumenError)
	require.True(t, ok, "expected a LumenError, got %T: %v", err, err)
	return le.Kind
}

func TestMoveLeavesNull(t *testing.T) {
	bootstrap(t)
	v := value.IntValue(7)
	out := value.Move(&v)
	assert.Equal(t, int64(7), out.AsInt())
	assert.True(t, v.IsNull())
}

func TestResolveIdempotent(t *testing.T) {
	gc, _ := bootstrap(t)
	v := value.IntValue(42)
	value.MakeAlias(&v)
	r1 := value.Resolve(v)
	r2 := value.Resolve(r1)
	assert.Equal(t, r1, r2)
	assert.Equal(t, int64(42), r2.AsInt())
	assert.Equal(t, value.ClassOf(v), value.ClassOf(r1), "class_of(v) sees through the alias")
	value.Drop(gc, v)
}

func TestAliasSharesWrites(t *testing.T) {
	gc, _ := bootstrap(t)
	v := value.IntValue(1)
	value.MakeAlias(&v)
	other := value.Copy(gc, v)

	value.SetAliasInner(v, value.IntValue(99))
	assert.Equal(t, int64(99), value.Resolve(other).AsInt(), "write through one alias is visible through all")

	value.Drop(gc, v)
	value.Drop(gc, other)
}

func TestUnaliasDetaches(t *testing.T) {
	gc, _ := bootstrap(t)
	v := value.IntValue(5)
	value.MakeAlias(&v)
	other := value.Copy(gc, v)

	value.Unalias(gc, &v)
	assert.Equal(t, value.Int, v.Tag())
	value.SetAliasInner(other, value.IntValue(6))
	assert.Equal(t, int64(5), v.AsInt(), "unaliased value no longer tracks the cell")
	value.Drop(gc, other)
}

func TestIntegerAddOverflow(t *testing.T) {
	bootstrap(t)
	_, err := value.Add(1, value.IntValue(math.MaxInt64), value.IntValue(1))
	assert.Equal(t, errors.MathError, kindOf(t, err))
	_, err = value.Add(1, value.IntValue(math.MinInt64), value.IntValue(-1))
	assert.Equal(t, errors.MathError, kindOf(t, err))
}

func TestArithmeticShapes(t *testing.T) {
	bootstrap(t)

	v, err := value.Add(1, value.IntValue(2), value.IntValue(3))
	require.NoError(t, err)
	assert.Equal(t, value.Int, v.Tag())
	assert.Equal(t, int64(5), v.AsInt())

	v, err = value.Div(1, value.IntValue(7), value.IntValue(2))
	require.NoError(t, err)
	assert.Equal(t, value.Float, v.Tag(), "division always produces Float")
	assert.InDelta(t, 3.5, v.AsFloat(), 1e-12)

	v, err = value.Pow(1, value.IntValue(2), value.IntValue(10))
	require.NoError(t, err)
	assert.Equal(t, value.Float, v.Tag(), "power always produces Float")

	v, err = value.Mod(1, value.IntValue(7), value.IntValue(3))
	require.NoError(t, err)
	assert.Equal(t, int64(1), v.AsInt())

	_, err = value.Mod(1, value.IntValue(1), value.IntValue(0))
	assert.Equal(t, errors.MathError, kindOf(t, err))
}

func TestFloatOverflowRaises(t *testing.T) {
	bootstrap(t)
	_, err := value.Mul(1, value.FloatValue(math.MaxFloat64), value.FloatValue(2))
	assert.Equal(t, errors.MathError, kindOf(t, err))
}

func TestNegateMinIntRaises(t *testing.T) {
	bootstrap(t)
	_, err := value.Negate(1, value.IntValue(math.MinInt64))
	assert.Equal(t, errors.MathError, kindOf(t, err))
}

func TestNullEquality(t *testing.T) {
	bootstrap(t)
	assert.True(t, value.Equal(value.NullValue(), value.NullValue()))
	assert.False(t, value.Equal(value.NullValue(), value.IntValue(0)))

	_, err := value.Compare(1, value.NullValue(), value.IntValue(1))
	assert.Equal(t, errors.TypeError, kindOf(t, err))
}

func TestMixedNumericComparison(t *testing.T) {
	bootstrap(t)
	assert.True(t, value.Equal(value.IntValue(3), value.FloatValue(3.0)))

	cmp, err := value.Compare(1, value.IntValue(2), value.FloatValue(2.5))
	require.NoError(t, err)
	assert.Equal(t, -1, cmp)

	// |i| > 2^53 cannot promote safely.
	huge := int64(1)<<53 + 3
	_, err = value.Compare(1, value.IntValue(huge), value.FloatValue(1))
	assert.Equal(t, errors.CastError, kindOf(t, err))
}

func TestCompareAntisymmetric(t *testing.T) {
	bootstrap(t)
	pairs := [][2]value.Value{
		{value.IntValue(1), value.IntValue(2)},
		{value.FloatValue(1.5), value.FloatValue(-3)},
		{value.StringValue("abc"), value.StringValue("abd")},
	}
	for _, p := range pairs {
		ab, err := value.Compare(1, p[0], p[1])
		require.NoError(t, err)
		ba, err := value.Compare(1, p[1], p[0])
		require.NoError(t, err)
		assert.Equal(t, ab, -ba)
	}
}

func TestFalsinessRule(t *testing.T) {
	bootstrap(t)
	assert.False(t, value.ToBoolean(value.NullValue()))
	assert.False(t, value.ToBoolean(value.BoolValue(false)))
	assert.False(t, value.ToBoolean(value.FloatValue(math.NaN())))

	assert.True(t, value.ToBoolean(value.IntValue(0)), "zero is true")
	assert.True(t, value.ToBoolean(value.StringValue("")), "empty string is true")
	assert.True(t, value.ToBoolean(value.FloatValue(0)))
}

func TestToStringRoundTrip(t *testing.T) {
	bootstrap(t)
	for _, n := range []int64{0, -1, 14, math.MaxInt64, math.MinInt64 + 1} {
		s := value.ToString(value.IntValue(n), false)
		back, err := value.ToInteger(1, value.StringValue(s))
		require.NoError(t, err)
		assert.Equal(t, n, back)
	}
}

func TestToIntegerCastErrors(t *testing.T) {
	bootstrap(t)
	_, err := value.ToInteger(1, value.StringValue("not a number"))
	assert.Equal(t, errors.CastError, kindOf(t, err))
}

func TestHashStability(t *testing.T) {
	bootstrap(t)
	assert.Equal(t, value.Hash(value.StringValue("grapheme")), value.Hash(value.StringValue("grapheme")))
	assert.NotEqual(t, value.Hash(value.StringValue("a")), value.Hash(value.StringValue("b")))
	assert.Equal(t, value.Hash(value.IntValue(12)), value.Hash(value.IntValue(12)))
}

// ranked is a minimal heap object whose class supplies Compare but not
// Equal, so equality must fall back through the Compare slot.
type ranked struct {
	hdr  *heap.Header
	rank int
}

func (r *ranked) Hdr() *heap.Header { return r.hdr }

func TestEqualFallsBackToCompareSlot(t *testing.T) {
	_, reg := bootstrap(t)
	cls := reg.Register("Ranked", reg.Object(), reflect.TypeOf(ranked{}))
	cls.Slots.Compare = value.CompareFunc(func(a, b heap.Object) (int, error) {
		ra, rb := a.(*ranked).rank, b.(*ranked).rank
		switch {
		case ra < rb:
			return -1, nil
		case ra > rb:
			return 1, nil
		default:
			return 0, nil
		}
	})

	mk := func(rank int) value.Value {
		r := &ranked{rank: rank}
		r.hdr = heap.NewHeader(r, cls, true)
		return value.ObjectValue(r)
	}

	assert.True(t, value.Equal(mk(3), mk(3)), "compare(a,b) == 0 implies equal(a,b)")
	assert.False(t, value.Equal(mk(3), mk(4)))

	cmp, err := value.Compare(1, mk(3), mk(3))
	require.NoError(t, err)
	assert.Equal(t, 0, cmp)
}

// clonable is a minimal heap object with a Clone slot, for Unshare.
type clonable struct {
	hdr *heap.Header
	n   int
}

func (c *clonable) Hdr() *heap.Header { return c.hdr }

func TestUnshareClonesSharedObjects(t *testing.T) {
	gc, reg := bootstrap(t)
	cls := reg.Register("Clonable", reg.Object(), reflect.TypeOf(clonable{}))
	cls.Slots.Clone = value.CloneFunc(func(o heap.Object) heap.Object {
		src := o.(*clonable)
		out := &clonable{n: src.n}
		out.hdr = heap.NewHeader(out, cls, false)
		return out
	})

	orig := &clonable{n: 1}
	orig.hdr = heap.NewHeader(orig, cls, false)
	v := value.ObjectValue(orig)
	shared := value.Copy(gc, v)

	value.Unshare(gc, &v)
	assert.NotSame(t, shared.AsObject(), v.AsObject(), "shared object is cloned before mutation")

	value.Drop(gc, shared)
	value.Drop(gc, v)

	// A uniquely held object is left alone.
	solo := &clonable{n: 2}
	solo.hdr = heap.NewHeader(solo, cls, false)
	u := value.ObjectValue(solo)
	value.Unshare(gc, &u)
	assert.Same(t, solo, u.AsObject())
	value.Drop(gc, u)
}
