package types

import (
	"lumen/internal/class"
	"lumen/internal/errors"
	"lumen/internal/heap"
	"lumen/internal/value"
)

// Method is a built-in bound-callable member. A zero-arity Method is
// invoked immediately on field access
// ("property style", e.g. `t.keys`); anything else comes back as a
// single-overload Function with the receiver curried in, for a later Call
// (e.g. `list.append(x)`). Fn draws its GC from recv, since every built-in
// container already closes over the one it was allocated with.
type Method struct {
	Name  string
	Arity int // -1 = variadic
	Fn    func(recv heap.Object, line int, args []value.Value) (value.Value, error)
}

// methodTable is a plain name->Method map; class.Class.Members stores
// these as opaque interface{} values, type-asserted back to *Method here.
type methodTable map[string]*Method

func registerMethods(cls *class.Class, methods methodTable) {
	if cls.Members == nil {
		cls.Members = make(map[string]interface{}, len(methods))
	}
	for name, m := range methods {
		cls.Members[name] = m
	}
}

func bindMethod(gc *heap.GC, fnCls *class.Class, recv heap.Object, m *Method) value.Value {
	gc.Retain(recv)
	fn := NewFunction(gc, fnCls, m.Name)
	fn.AddOverload(&Overload{
		Receiver: recv,
		Name:     m.Name,
		Arity:    m.Arity,
		Native: func(ctx NativeContext, args []value.Value) (value.Value, error) {
			return m.Fn(recv, 0, args)
		},
	})
	return value.ObjectValue(fn)
}

// classGetField builds the class.OpSlots.GetField implementation shared by
// every built-in container. gc and fnCls are fixed at bootstrap (one GC,
// one Function class, for the life of the program).
func classGetField(gc *heap.GC, fnCls *class.Class) value.FieldGetFunc {
	return func(o heap.Object, line int, name string) (value.Value, error) {
		cls := o.Hdr().Class().(*class.Class)
		raw, ok := cls.Lookup(name)
		if !ok {
			return value.Value{}, errors.New(errors.TypeError, line, "%s has no field or method %q", cls.Name, name)
		}
		m := raw.(*Method)
		if m.Arity == 0 {
			return m.Fn(o, line, nil)
		}
		return bindMethod(gc, fnCls, o, m), nil
	}
}

// classSetField is shared by every built-in container: none of them expose
// an assignable field (only methods), so this always raises TypeError.
func classSetField(o heap.Object, line int, name string, v value.Value) error {
	cls := o.Hdr().Class().(*class.Class)
	return errors.New(errors.TypeError, line, "%s has no assignable field %q", cls.Name, name)
}
