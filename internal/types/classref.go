package types

import (
	"os"

	"lumen/internal/class"
	"lumen/internal/errors"
	"lumen/internal/heap"
	"lumen/internal/value"
)

// ClassRef is the boxed runtime Value a built-in type's bare name resolves
// to: `List`, `Table`,
// `Set`, `Array`, `File` and `Regex` are globals bound to one of these, and
// Precall's "if TOS is a Class, replace it with that class's constructor"
// rule turns a ClassRef into its Ctor Function just before Call resolves
// overloads against the argument list. It carries no other state and is
// registered Green -- one immutable instance per built-in type, never
// mutated or cloned.
type ClassRef struct {
	hdr   *heap.Header
	Class *class.Class
	Ctor  *Function
}

func NewClassRef(classOfClasses *class.Class, target *class.Class, ctor *Function) *ClassRef {
	c := &ClassRef{Class: target, Ctor: ctor}
	c.hdr = heap.NewHeader(c, classOfClasses, true)
	return c
}

func (c *ClassRef) Hdr() *heap.Header          { return c.hdr }
func (c *ClassRef) Destroy()                   {}
func (c *ClassRef) Traverse(func(heap.Object)) {}

func ctorFunction(gc *heap.GC, fnCls *class.Class, name string, fn NativeCallback) *Function {
	f := NewFunction(gc, fnCls, name)
	f.AddOverload(&Overload{Name: name, Arity: -1, Native: fn})
	return f
}

// BuiltinConstructors builds the ClassRef globals for every built-in type
// callable as a constructor: `List(...)`, `Table(...)`,
// `Set(...)`, `Array(rows, cols)`, `File(path, mode)`, `Regex(pattern)`.
// There is no script-level class declaration syntax in this language, so
// these six are the entire set of constructible Classes; every other
// Class (Function, Closure, Routine, the iterators) exists purely for
// dispatch typing and is never itself called.
func BuiltinConstructors(gc *heap.GC, classOfClasses *class.Class, b Builtins) map[string]value.Value {
	ctor := func(name string, fn NativeCallback) value.Value {
		target, _ := map[string]*class.Class{
			"List": b.List, "Table": b.Table, "Set": b.Set,
			"Array": b.Array, "File": b.File, "Regex": b.Regex,
		}[name]
		return value.ObjectValue(NewClassRef(classOfClasses, target, ctorFunction(gc, b.Function, name, fn)))
	}

	out := map[string]value.Value{}

	out["List"] = ctor("List", func(ctx NativeContext, args []value.Value) (value.Value, error) {
		elems := make([]value.Value, len(args))
		for i, a := range args {
			elems[i] = value.Copy(gc, a)
		}
		return value.ObjectValue(NewList(gc, b.List, elems)), nil
	})

	out["Table"] = ctor("Table", func(ctx NativeContext, args []value.Value) (value.Value, error) {
		if len(args)%2 != 0 {
			return value.Value{}, errors.New(errors.TypeError, 0, "Table(...) takes key/value pairs, got an odd number of arguments")
		}
		t := NewTable(gc, b.Table)
		for i := 0; i < len(args); i += 2 {
			t.Set(value.Copy(gc, args[i]), value.Copy(gc, args[i+1]))
		}
		return value.ObjectValue(t), nil
	})

	out["Set"] = ctor("Set", func(ctx NativeContext, args []value.Value) (value.Value, error) {
		s := NewSet(gc, b.Set)
		for _, a := range args {
			s.Insert(value.Copy(gc, a))
		}
		return value.ObjectValue(s), nil
	})

	out["Array"] = ctor("Array", func(ctx NativeContext, args []value.Value) (value.Value, error) {
		if len(args) != 2 {
			return value.Value{}, errors.New(errors.TypeError, 0, "Array(rows, cols) takes exactly two arguments, got %d", len(args))
		}
		rows, err := value.ToInteger(0, args[0])
		if err != nil {
			return value.Value{}, err
		}
		cols, err := value.ToInteger(0, args[1])
		if err != nil {
			return value.Value{}, err
		}
		if rows < 0 || cols < 0 {
			return value.Value{}, errors.New(errors.IndexError, 0, "Array(rows, cols) dimensions must not be negative, got (%d,%d)", rows, cols)
		}
		return value.ObjectValue(NewArray(b.Array, int(rows), int(cols), make([]float64, rows*cols))), nil
	})

	out["File"] = ctor("File", func(ctx NativeContext, args []value.Value) (value.Value, error) {
		if len(args) != 2 {
			return value.Value{}, errors.New(errors.TypeError, 0, "File(path, mode) takes exactly two arguments, got %d", len(args))
		}
		path, err := stringArg(0, args[0])
		if err != nil {
			return value.Value{}, err
		}
		mode, err := stringArg(0, args[1])
		if err != nil {
			return value.Value{}, err
		}
		flag, ok := map[string]int{
			"r": os.O_RDONLY, "w": os.O_WRONLY | os.O_CREATE | os.O_TRUNC,
			"a": os.O_WRONLY | os.O_CREATE | os.O_APPEND,
		}[mode]
		if !ok {
			return value.Value{}, errors.New(errors.RuntimeError, 0, "unknown file mode %q", mode)
		}
		f, err := os.OpenFile(path, flag, 0644)
		if err != nil {
			return value.Value{}, errors.New(errors.RuntimeError, 0, "cannot open %q: %v", path, err)
		}
		return value.ObjectValue(NewFile(b.File, f, path)), nil
	})

	out["Regex"] = ctor("Regex", func(ctx NativeContext, args []value.Value) (value.Value, error) {
		if len(args) != 1 {
			return value.Value{}, errors.New(errors.TypeError, 0, "Regex(pattern) takes exactly one argument, got %d", len(args))
		}
		pattern, err := stringArg(0, args[0])
		if err != nil {
			return value.Value{}, err
		}
		re, err := CompileRegex(b.Regex, 0, pattern)
		if err != nil {
			return value.Value{}, err
		}
		return value.ObjectValue(re), nil
	})

	return out
}

func toStringClassRef(o heap.Object, quote bool) string {
	return "<class " + o.(*ClassRef).Class.Name + ">"
}

func registerClassRefSlots(cls *class.Class) {
	cls.Slots.ToString = value.ToStringFunc(toStringClassRef)
}
