package types

import (
	"lumen/internal/class"
	"lumen/internal/errors"
	"lumen/internal/heap"
	"lumen/internal/value"
)

func setArg(line int, v value.Value) (*Set, error) {
	v = value.Resolve(v)
	s, ok := v.AsObject().(*Set)
	if !ok {
		return nil, errors.New(errors.TypeError, line, "expected a Set argument")
	}
	return s, nil
}

func setMethods() methodTable {
	return methodTable{
		"insert": {Name: "insert", Arity: 1, Fn: func(recv heap.Object, line int, args []value.Value) (value.Value, error) {
			s := recv.(*Set)
			return value.BoolValue(s.Insert(value.Copy(s.gc, args[0]))), nil
		}},
		"remove": {Name: "remove", Arity: 1, Fn: func(recv heap.Object, line int, args []value.Value) (value.Value, error) {
			return value.BoolValue(recv.(*Set).Remove(args[0])), nil
		}},
		"contains": {Name: "contains", Arity: 1, Fn: func(recv heap.Object, line int, args []value.Value) (value.Value, error) {
			return value.BoolValue(recv.(*Set).Contains(args[0])), nil
		}},
		"is_empty": {Name: "is_empty", Arity: 0, Fn: func(recv heap.Object, line int, args []value.Value) (value.Value, error) {
			return value.BoolValue(recv.(*Set).Size() == 0), nil
		}},
		"clear": {Name: "clear", Arity: 0, Fn: func(recv heap.Object, line int, args []value.Value) (value.Value, error) {
			recv.(*Set).Clear()
			return value.NullValue(), nil
		}},
		"size": {Name: "size", Arity: 0, Fn: func(recv heap.Object, line int, args []value.Value) (value.Value, error) {
			return value.IntValue(int64(recv.(*Set).Size())), nil
		}},
		"intersect": {Name: "intersect", Arity: 1, Fn: func(recv heap.Object, line int, args []value.Value) (value.Value, error) {
			other, err := setArg(line, args[0])
			if err != nil {
				return value.Value{}, err
			}
			return value.ObjectValue(recv.(*Set).Intersect(other)), nil
		}},
		"unite": {Name: "unite", Arity: 1, Fn: func(recv heap.Object, line int, args []value.Value) (value.Value, error) {
			other, err := setArg(line, args[0])
			if err != nil {
				return value.Value{}, err
			}
			return value.ObjectValue(recv.(*Set).Union(other)), nil
		}},
		"subtract": {Name: "subtract", Arity: 1, Fn: func(recv heap.Object, line int, args []value.Value) (value.Value, error) {
			other, err := setArg(line, args[0])
			if err != nil {
				return value.Value{}, err
			}
			return value.ObjectValue(recv.(*Set).Subtract(other)), nil
		}},
	}
}

func registerSetMethods(cls *class.Class) { registerMethods(cls, setMethods()) }
