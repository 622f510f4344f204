package value

import (
	"lumen/internal/errors"
	"lumen/internal/heap"
)

// FieldGetFunc/FieldSetFunc are the class.OpSlots.GetField/SetField
// function shapes. A zero-arity member is invoked immediately by the slot
// implementation ("property style", e.g. `t.keys`); anything else comes
// back bound for a later Call (e.g. `list.append`).
type FieldGetFunc func(o heap.Object, line int, name string) (Value, error)
type FieldSetFunc func(o heap.Object, line int, name string, v Value) error

// StringFieldGetter lets internal/types register String's built-in method
// table without this package importing types (which itself imports value
// for the Value type) -- the same "register the hook, don't import the
// registrant" pattern as InitPrimitives.
var StringFieldGetter func(s string, line int, name string) (Value, error)

// GetField dispatches v through its class's GetField slot.
func GetField(v Value, line int, name string) (Value, error) {
	v = Resolve(v)
	if v.tag == Str {
		if StringFieldGetter != nil {
			return StringFieldGetter(v.s, line, name)
		}
		return Value{}, fieldUnsupported(line, "String", name)
	}
	cls := ClassOf(v)
	f, ok := cls.Slots.GetField.(FieldGetFunc)
	if !ok {
		return Value{}, fieldUnsupported(line, cls.Name, name)
	}
	return f(v.obj, line, name)
}

func SetField(v Value, line int, name string, rhs Value) error {
	v = Resolve(v)
	cls := ClassOf(v)
	f, ok := cls.Slots.SetField.(FieldSetFunc)
	if !ok {
		return fieldUnsupported(line, cls.Name, name)
	}
	return f(v.obj, line, name, rhs)
}

func fieldUnsupported(line int, className, name string) error {
	return errors.New(errors.TypeError, line, "%s has no field or method %q", className, name)
}
