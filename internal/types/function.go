package types

import (
	"lumen/internal/class"
	"lumen/internal/heap"
	"lumen/internal/value"
)

// Overload is one callable signature contributing to a Function's multiple
// dispatch set: either a user-defined Closure, or a
// native Go implementation registered by the runtime's standard library.
type Overload struct {
	Closure  *Closure // nil for natives
	Native   NativeCallback
	Receiver heap.Object // non-nil for a built-in method bound to an instance
	Name     string

	Arity        int
	ParamClasses []*class.Class // nil entry = untyped (matches Object)
	RefFlags     uint64
}

func (o *Overload) ParamBoundByRef(i int) bool {
	if i < 0 || i >= 64 {
		return false
	}
	return o.RefFlags&(1<<uint(i)) != 0
}

// Function is the Black, heap-managed value bound to a name: the set of
// overloads multiple dispatch chooses among at call time. It owns (retains) every Closure overload's Value wrapper.
type Function struct {
	hdr      *heap.Header
	gc       *heap.GC
	Name     string
	Overloads []*Overload
}

func NewFunction(gc *heap.GC, cls *class.Class, name string) *Function {
	f := &Function{gc: gc, Name: name}
	f.hdr = heap.NewHeader(f, cls, false)
	return f
}

func (f *Function) Hdr() *heap.Header { return f.hdr }

// AddOverload appends one overload. If it wraps a Closure, ownership of
// that Closure's retained reference (the caller must already have
// retained it via the GC, matching every other "takes ownership" call in
// this package) transfers to the Function.
func (f *Function) AddOverload(o *Overload) { f.Overloads = append(f.Overloads, o) }

func (f *Function) Traverse(visit func(heap.Object)) {
	for _, o := range f.Overloads {
		if o.Closure != nil {
			visit(o.Closure)
		}
		if o.Receiver != nil {
			visit(o.Receiver)
		}
	}
}

func (f *Function) Destroy() {
	for _, o := range f.Overloads {
		if o.Closure != nil {
			f.gc.Release(o.Closure)
		}
		if o.Receiver != nil {
			f.gc.Release(o.Receiver)
		}
	}
	f.Overloads = nil
}

func toStringFunction(o heap.Object, quote bool) string {
	fn := o.(*Function)
	return "<function " + fn.Name + ">"
}

func registerFunctionSlots(cls *class.Class) {
	cls.Slots.ToString = value.ToStringFunc(toStringFunction)
}
