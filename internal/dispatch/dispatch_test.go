package dispatch_test

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lumen/internal/class"
	"lumen/internal/dispatch"
	"lumen/internal/errors"
	"lumen/internal/heap"
	"lumen/internal/types"
	"lumen/internal/value"
)

type fixture struct {
	gc       *heap.GC
	reg      *class.Registry
	fnCls    *class.Class
	animal   *class.Class
	dog      *class.Class
	puppy    *class.Class
}

// instance is a bare heap object used only for its class.
type instance struct{ hdr *heap.Header }

func (i *instance) Hdr() *heap.Header { return i.hdr }

func (f *fixture) of(cls *class.Class) value.Value {
	inst := &instance{}
	inst.hdr = heap.NewHeader(inst, cls, true)
	return value.ObjectValue(inst)
}

func setup(t *testing.T) *fixture {
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
	f := &fixture{gc: gc, reg: reg}
	f.fnCls = reg.Register("Function", obj, reflect.TypeOf(types.Function{}))
	f.animal = reg.Register("Animal", obj, nil)
	f.dog = reg.Register("Dog", f.animal, nil)
	f.puppy = reg.Register("Puppy", f.dog, nil)
	return f
}

func nop(ctx types.NativeContext, args []value.Value) (value.Value, error) {
	return value.NullValue(), nil
}

func (f *fixture) fn(name string, overloads ...*types.Overload) *types.Function {
	fn := types.NewFunction(f.gc, f.fnCls, name)
	for _, ov := range overloads {
		ov.Native = nop
		fn.AddOverload(ov)
	}
	return fn
}

func TestExactMatchWins(t *testing.T) {
	f := setup(t)
	animalOv := &types.Overload{Name: "feed", Arity: 1, ParamClasses: []*class.Class{f.animal}}
	dogOv := &types.Overload{Name: "feed", Arity: 1, ParamClasses: []*class.Class{f.dog}}
	fn := f.fn("feed", animalOv, dogOv)

	r := dispatch.NewResolver(16)
	ov, err := r.Resolve(1, fn, []value.Value{f.of(f.dog)})
	require.NoError(t, err)
	assert.Same(t, dogOv, ov)

	ov, err = r.Resolve(1, fn, []value.Value{f.of(f.animal)})
	require.NoError(t, err)
	assert.Same(t, animalOv, ov)
}

func TestNearestAncestorWins(t *testing.T) {
	f := setup(t)
	animalOv := &types.Overload{Name: "feed", Arity: 1, ParamClasses: []*class.Class{f.animal}}
	dogOv := &types.Overload{Name: "feed", Arity: 1, ParamClasses: []*class.Class{f.dog}}
	fn := f.fn("feed", animalOv, dogOv)

	ov, err := dispatch.NewResolver(16).Resolve(1, fn, []value.Value{f.of(f.puppy)})
	require.NoError(t, err)
	assert.Same(t, dogOv, ov, "distance 1 beats distance 2")
}

func TestWrongArityRejected(t *testing.T) {
	f := setup(t)
	one := &types.Overload{Name: "g", Arity: 1, ParamClasses: []*class.Class{f.reg.MustGet("Integer")}}
	two := &types.Overload{Name: "g", Arity: 2, ParamClasses: []*class.Class{f.reg.MustGet("Integer"), f.reg.MustGet("Integer")}}
	fn := f.fn("g", one, two)

	ov, err := dispatch.NewResolver(16).Resolve(1, fn, []value.Value{value.IntValue(1)})
	require.NoError(t, err)
	assert.Same(t, one, ov)
}

func TestNoMatchListsArgumentTypes(t *testing.T) {
	f := setup(t)
	fn := f.fn("h", &types.Overload{Name: "h", Arity: 1, ParamClasses: []*class.Class{f.dog}})

	_, err := dispatch.NewResolver(16).Resolve(1, fn, []value.Value{value.IntValue(5)})
	require.Error(t, err)
	le := err.(*errors.LumenError)
	assert.Equal(t, errors.TypeError, le.Kind)
	assert.Contains(t, le.Message, "Integer")
}

func TestAmbiguityIsAnError(t *testing.T) {
	f := setup(t)
	// (Animal, Dog) vs (Dog, Animal): cost 1 each for a (Dog, Dog) call.
	fn := f.fn("amb",
		&types.Overload{Name: "amb", Arity: 2, ParamClasses: []*class.Class{f.animal, f.dog}},
		&types.Overload{Name: "amb", Arity: 2, ParamClasses: []*class.Class{f.dog, f.animal}},
	)

	_, err := dispatch.NewResolver(16).Resolve(1, fn, []value.Value{f.of(f.dog), f.of(f.dog)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ambiguous")
}

func TestNullMatchesAnyParameterClass(t *testing.T) {
	f := setup(t)
	dogOv := &types.Overload{Name: "n", Arity: 1, ParamClasses: []*class.Class{f.dog}}
	fn := f.fn("n", dogOv)

	ov, err := dispatch.NewResolver(16).Resolve(1, fn, []value.Value{value.NullValue()})
	require.NoError(t, err)
	assert.Same(t, dogOv, ov)
}

func TestUntypedParameterMatchesEverything(t *testing.T) {
	f := setup(t)
	any := &types.Overload{Name: "u", Arity: 1, ParamClasses: []*class.Class{nil}}
	fn := f.fn("u", any)

	r := dispatch.NewResolver(16)
	for _, arg := range []value.Value{value.IntValue(1), value.StringValue("s"), f.of(f.puppy)} {
		ov, err := r.Resolve(1, fn, []value.Value{arg})
		require.NoError(t, err)
		assert.Same(t, any, ov)
	}
}

func TestCacheHitsOnRepeatShapes(t *testing.T) {
	f := setup(t)
	fn := f.fn("c", &types.Overload{Name: "c", Arity: 1, ParamClasses: []*class.Class{f.reg.MustGet("Integer")}})

	r := dispatch.NewResolver(16)
	_, err := r.Resolve(1, fn, []value.Value{value.IntValue(1)})
	require.NoError(t, err)
	_, err = r.Resolve(1, fn, []value.Value{value.IntValue(2)})
	require.NoError(t, err)

	hits, misses := r.CacheStats()
	assert.Equal(t, uint64(1), hits)
	assert.Equal(t, uint64(1), misses)
}

func TestReferenceConsistency(t *testing.T) {
	f := setup(t)
	a := &types.Overload{Name: "r", Arity: 2, RefFlags: 0b01}
	b := &types.Overload{Name: "r", Arity: 2, RefFlags: 0b01}
	fn := f.fn("r", a, b)
	assert.NoError(t, dispatch.CheckReferenceConsistency(fn))

	c := &types.Overload{Name: "r", Arity: 2, RefFlags: 0b10}
	c.Native = nop
	fn.AddOverload(c)
	assert.Error(t, dispatch.CheckReferenceConsistency(fn))
}

// Ref flags must agree over the common prefix of every overload pair, not
// just between overloads of identical arity.
func TestReferenceConsistencyAcrossArities(t *testing.T) {
	f := setup(t)
	one := &types.Overload{Name: "m", Arity: 1, RefFlags: 0b1}
	two := &types.Overload{Name: "m", Arity: 2, RefFlags: 0b10} // position 1 by value
	fn := f.fn("m", one, two)
	assert.Error(t, dispatch.CheckReferenceConsistency(fn))

	agree1 := &types.Overload{Name: "n", Arity: 1, RefFlags: 0b1}
	agree3 := &types.Overload{Name: "n", Arity: 3, RefFlags: 0b101}
	fn = f.fn("n", agree1, agree3)
	assert.NoError(t, dispatch.CheckReferenceConsistency(fn))

	// Variadic natives declare no positional signature and are exempt.
	variadic := &types.Overload{Name: "n", Arity: -1}
	variadic.Native = nop
	fn.AddOverload(variadic)
	assert.NoError(t, dispatch.CheckReferenceConsistency(fn))
}
