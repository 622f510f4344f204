package value

import (
	"fmt"
	"math"
	"strconv"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/exp/constraints"

	"lumen/internal/class"
	"lumen/internal/errors"
	"lumen/internal/heap"
)

// The polymorphic operation slots a class may supply,
// typed concretely here since internal/class stores them only as opaque
// interface{} to stay independent of this package.
type (
	ToStringFunc func(o heap.Object, quote bool) string
	CompareFunc  func(a, b heap.Object) (int, error)
	EqualFunc    func(a, b heap.Object) bool
	HashFunc     func(o heap.Object) uint64
	CloneFunc    func(o heap.Object) heap.Object
)

func toStringViaSlot(v Value, quote bool) string {
	cls := ClassOf(v)
	if f, ok := cls.Slots.ToString.(ToStringFunc); ok {
		return f(v.obj, quote)
	}
	return fmt.Sprintf("<%s>", cls.Name)
}

func equalViaSlot(a, b Value) bool {
	cls := ClassOf(a)
	if cls != ClassOf(b) {
		return false
	}
	if f, ok := cls.Slots.Equal.(EqualFunc); ok {
		return f(a.obj, b.obj)
	}
	// No Equal slot: equality falls back to the Compare slot, so
	// compare(a,b) == 0 always implies equal(a,b); identity is the last
	// resort when the type orders nothing either.
	if f, ok := cls.Slots.Compare.(CompareFunc); ok {
		c, err := f(a.obj, b.obj)
		return err == nil && c == 0
	}
	return a.obj == b.obj
}

func compareViaSlot(line int, a, b Value) (int, error) {
	cls := ClassOf(a)
	if f, ok := cls.Slots.Compare.(CompareFunc); ok {
		return f(a.obj, b.obj)
	}
	return 0, errors.New(errors.TypeError, line, "%s does not support ordering", cls.Name)
}

func hashViaSlot(v Value) uint64 {
	cls := ClassOf(v)
	if f, ok := cls.Slots.Hash.(HashFunc); ok {
		return f(v.obj)
	}
	return 0
}

// CloneIfShared looks up v's Clone slot (if any) and invokes it; used as
// the cloner callback Unshare expects.
func CloneIfShared(o heap.Object, cls *class.Class) heap.Object {
	if f, ok := cls.Slots.Clone.(CloneFunc); ok {
		return f(o)
	}
	return nil
}

const floatEpsilon = 1e-9

// safeIntToFloat is the largest magnitude an Integer can take while still
// round-tripping exactly through a Float (2^53).
const safeIntToFloat = int64(1) << 53

// Primitives holds the classes of the five inline tags, registered once
// during runtime bootstrap and consulted by ClassOf.
type Primitives struct {
	Null, Boolean, Integer, Float, String *class.Class
}

var primitives Primitives

// InitPrimitives wires the bootstrap-registered primitive classes into the
// value package, so ClassOf can answer in O(1) without threading a
// registry through every call site.
func InitPrimitives(p Primitives) { primitives = p }

// ClassOf returns the class of v, resolving through alias indirection
// first, so an alias reports the class of its underlying value.
func ClassOf(v Value) *class.Class {
	v = Resolve(v)
	switch v.tag {
	case Null:
		return primitives.Null
	case Bool:
		return primitives.Boolean
	case Int:
		return primitives.Integer
	case Float:
		return primitives.Float
	case Str:
		return primitives.String
	case Obj:
		if v.obj == nil {
			return primitives.Null
		}
		return v.obj.Hdr().Class().(*class.Class)
	}
	return primitives.Null
}

// Add, Sub, Mul keep two Integers integer, promote to Float if either
// operand is Float. Div and Pow always produce Float. Mod uses integer
// modulo on two Integers, fmod otherwise. Overflow/NaN/Inf are converted to
// MathError.

func Add(line int, a, b Value) (Value, error) {
	a, b = Resolve(a), Resolve(b)
	if a.tag == Int && b.tag == Int {
		x, y := a.i, b.i
		if (y > 0 && x > math.MaxInt64-y) || (y < 0 && x < math.MinInt64-y) {
			return Value{}, errors.New(errors.MathError, line, "integer overflow in %d + %d", x, y)
		}
		return IntValue(x + y), nil
	}
	x, y, err := bothFloat(line, a, b)
	if err != nil {
		return Value{}, err
	}
	return checkFloat(line, x+y, "+")
}

func Sub(line int, a, b Value) (Value, error) {
	a, b = Resolve(a), Resolve(b)
	if a.tag == Int && b.tag == Int {
		x, y := a.i, b.i
		if (y < 0 && x > math.MaxInt64+y) || (y > 0 && x < math.MinInt64+y) {
			return Value{}, errors.New(errors.MathError, line, "integer overflow in %d - %d", x, y)
		}
		return IntValue(x - y), nil
	}
	x, y, err := bothFloat(line, a, b)
	if err != nil {
		return Value{}, err
	}
	return checkFloat(line, x-y, "-")
}

func Mul(line int, a, b Value) (Value, error) {
	a, b = Resolve(a), Resolve(b)
	if a.tag == Int && b.tag == Int {
		x, y := a.i, b.i
		if x != 0 && y != 0 {
			r := x * y
			if r/y != x {
				return Value{}, errors.New(errors.MathError, line, "integer overflow in %d * %d", x, y)
			}
			return IntValue(r), nil
		}
		return IntValue(0), nil
	}
	x, y, err := bothFloat(line, a, b)
	if err != nil {
		return Value{}, err
	}
	return checkFloat(line, x*y, "*")
}

func Div(line int, a, b Value) (Value, error) {
	x, y, err := bothFloat(line, a, b)
	if err != nil {
		return Value{}, err
	}
	return checkFloat(line, x/y, "/")
}

func Pow(line int, a, b Value) (Value, error) {
	x, y, err := bothFloat(line, a, b)
	if err != nil {
		return Value{}, err
	}
	return checkFloat(line, math.Pow(x, y), "^")
}

func Mod(line int, a, b Value) (Value, error) {
	a, b = Resolve(a), Resolve(b)
	if a.tag == Int && b.tag == Int {
		if b.i == 0 {
			return Value{}, errors.New(errors.MathError, line, "integer modulo by zero")
		}
		r := a.i % b.i
		return IntValue(r), nil
	}
	x, y, err := bothFloat(line, a, b)
	if err != nil {
		return Value{}, err
	}
	return checkFloat(line, math.Mod(x, y), "%")
}

func Negate(line int, a Value) (Value, error) {
	a = Resolve(a)
	switch a.tag {
	case Int:
		if a.i == math.MinInt64 {
			return Value{}, errors.New(errors.MathError, line, "integer negation overflow")
		}
		return IntValue(-a.i), nil
	case Float:
		return FloatValue(-a.f), nil
	}
	return Value{}, errors.New(errors.TypeError, line, "cannot negate a %s", typeName(a))
}

func Not(v Value) Value { return BoolValue(!ToBoolean(v)) }

func checkFloat(line int, f float64, op string) (Value, error) {
	if math.IsNaN(f) {
		return Value{}, errors.New(errors.MathError, line, "invalid floating point result in %s", op)
	}
	if math.IsInf(f, 0) {
		return Value{}, errors.New(errors.MathError, line, "floating point overflow in %s", op)
	}
	return FloatValue(f), nil
}

// bothFloat promotes Integer x Float comparisons/arithmetic to Float when
// safe (|i| <= 2^53), else raises a CastError.
func bothFloat(line int, a, b Value) (float64, float64, error) {
	x, err := toFloatSafe(line, a)
	if err != nil {
		return 0, 0, err
	}
	y, err := toFloatSafe(line, b)
	if err != nil {
		return 0, 0, err
	}
	return x, y, nil
}

func toFloatSafe(line int, v Value) (float64, error) {
	v = Resolve(v)
	switch v.tag {
	case Int:
		if v.i > safeIntToFloat || v.i < -safeIntToFloat {
			return 0, errors.New(errors.CastError, line, "integer %d exceeds safe float range", v.i)
		}
		return float64(v.i), nil
	case Float:
		return v.f, nil
	}
	return 0, errors.New(errors.TypeError, line, "expected a number, got %s", typeName(v))
}

// ToInteger converts v to an Integer where possible.
func ToInteger(line int, v Value) (int64, error) {
	v = Resolve(v)
	switch v.tag {
	case Int:
		return v.i, nil
	case Float:
		if v.f > float64(math.MaxInt64) || v.f < float64(math.MinInt64) {
			return 0, errors.New(errors.CastError, line, "float %v out of integer range", v.f)
		}
		return int64(v.f), nil
	case Bool:
		if v.b {
			return 1, nil
		}
		return 0, nil
	case Str:
		n, err := strconv.ParseInt(v.s, 10, 64)
		if err != nil {
			return 0, errors.New(errors.CastError, line, "cannot convert %q to Integer", v.s)
		}
		return n, nil
	}
	return 0, errors.New(errors.CastError, line, "cannot convert %s to Integer", typeName(v))
}

// ToFloat converts v to a Float where possible.
func ToFloat(line int, v Value) (float64, error) {
	v = Resolve(v)
	switch v.tag {
	case Float:
		return v.f, nil
	case Int:
		return float64(v.i), nil
	case Str:
		f, err := strconv.ParseFloat(v.s, 64)
		if err != nil {
			return 0, errors.New(errors.CastError, line, "cannot convert %q to Float", v.s)
		}
		return f, nil
	}
	return 0, errors.New(errors.CastError, line, "cannot convert %s to Float", typeName(v))
}

// ToBoolean implements the falsiness rule: only Null, boolean false and
// NaN are false.
func ToBoolean(v Value) bool {
	v = Resolve(v)
	switch v.tag {
	case Null:
		return false
	case Bool:
		return v.b
	case Float:
		return !math.IsNaN(v.f)
	default:
		return true
	}
}

// ToString converts v to its display form; quote wraps strings in double
// quotes (used by container-element printing).
func ToString(v Value, quote bool) string {
	v = Resolve(v)
	switch v.tag {
	case Null:
		return "null"
	case Bool:
		if v.b {
			return "true"
		}
		return "false"
	case Int:
		return strconv.FormatInt(v.i, 10)
	case Float:
		if math.IsNaN(v.f) {
			return "nan"
		}
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case Str:
		if quote {
			return strconv.Quote(v.s)
		}
		return v.s
	case Obj:
		if v.obj == nil {
			return "null"
		}
		return toStringViaSlot(v, quote)
	}
	return "?"
}

func typeName(v Value) string { return ClassOf(v).Name }

// Equal implements value equality: Null equals only Null; numeric
// equality promotes Integer x Float to Float with an epsilon; Object
// equality dispatches through the class's Equal slot, falling back to the
// Compare slot and then to identity when absent.
func Equal(a, b Value) bool {
	a, b = Resolve(a), Resolve(b)
	if a.tag == Null || b.tag == Null {
		return a.tag == Null && b.tag == Null
	}
	if a.IsNumber() && b.IsNumber() {
		if a.tag == Int && b.tag == Int {
			return a.i == b.i
		}
		x, _ := toFloatSafe(0, a)
		y, _ := toFloatSafe(0, b)
		return floatEqual(x, y)
	}
	switch a.tag {
	case Bool:
		return b.tag == Bool && a.b == b.b
	case Str:
		return b.tag == Str && a.s == b.s
	case Obj:
		if b.tag != Obj {
			return false
		}
		return equalViaSlot(a, b)
	}
	return false
}

// cmpOrdered collapses the three-way comparison over any ordered scalar.
func cmpOrdered[T constraints.Ordered](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func floatEqual(x, y float64) bool {
	scale := math.Max(1, math.Max(math.Abs(x), math.Abs(y)))
	return math.Abs(x-y) <= floatEpsilon*scale
}

// Compare returns -1, 0 or 1. Ordering Null against anything raises
// TypeError; only equality is defined for Null.
func Compare(line int, a, b Value) (int, error) {
	a, b = Resolve(a), Resolve(b)
	if a.tag == Null || b.tag == Null {
		return 0, errors.New(errors.TypeError, line, "cannot order Null values")
	}
	if a.IsNumber() && b.IsNumber() {
		if a.tag == Int && b.tag == Int {
			return cmpOrdered(a.i, b.i), nil
		}
		x, err := toFloatSafe(line, a)
		if err != nil {
			return 0, err
		}
		y, err := toFloatSafe(line, b)
		if err != nil {
			return 0, err
		}
		switch {
		case floatEqual(x, y):
			return 0, nil
		case x < y:
			return -1, nil
		default:
			return 1, nil
		}
	}
	if a.tag == Str && b.tag == Str {
		return cmpOrdered(a.s, b.s), nil
	}
	if a.tag == Obj && b.tag == Obj {
		return compareViaSlot(line, a, b)
	}
	return 0, errors.New(errors.TypeError, line, "cannot compare %s with %s", typeName(a), typeName(b))
}

// Hash returns a process-stable hash of v, used by Table/Set keys.
func Hash(v Value) uint64 {
	v = Resolve(v)
	switch v.tag {
	case Null:
		return 0
	case Bool:
		if v.b {
			return 1
		}
		return 2
	case Int:
		return uint64(v.i)
	case Float:
		return math.Float64bits(v.f)
	case Str:
		sum := blake2b.Sum256([]byte(v.s))
		var h uint64
		for i := 0; i < 8; i++ {
			h = h<<8 | uint64(sum[i])
		}
		return h
	case Obj:
		if v.obj == nil {
			return 0
		}
		return hashViaSlot(v)
	}
	return 0
}

// String returns ToString(v, false), satisfying fmt.Stringer for debugging.
func (v Value) String() string { return ToString(v, false) }
