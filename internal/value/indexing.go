package value

import (
	"lumen/internal/errors"
	"lumen/internal/heap"
)

// ItemGetFunc/ItemSetFunc are the class.OpSlots.GetItem/SetItem function
// shapes: dispatched by the
// receiver's class, indices are whatever the bracket expression evaluated
// to (already resolved past aliases by the caller). needsRef mirrors the
// …Ref opcode variants: the returned Value is an alias the caller may
// write through.
type ItemGetFunc func(o heap.Object, line int, indices []Value, needsRef bool) (Value, error)
type ItemSetFunc func(o heap.Object, line int, indices []Value, v Value) error

// GetItem dispatches v through its class's GetItem slot.
func GetItem(v Value, line int, indices []Value, needsRef bool) (Value, error) {
	v = Resolve(v)
	cls := ClassOf(v)
	f, ok := cls.Slots.GetItem.(ItemGetFunc)
	if !ok {
		return Value{}, indexUnsupported(line, cls.Name)
	}
	return f(v.obj, line, indices, needsRef)
}

func SetItem(v Value, line int, indices []Value, rhs Value) error {
	v = Resolve(v)
	cls := ClassOf(v)
	f, ok := cls.Slots.SetItem.(ItemSetFunc)
	if !ok {
		return indexUnsupported(line, cls.Name)
	}
	return f(v.obj, line, indices, rhs)
}

func indexUnsupported(line int, className string) error {
	return errors.New(errors.TypeError, line, "%s does not support indexing", className)
}
