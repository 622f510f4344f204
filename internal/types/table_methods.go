package types

import (
	"lumen/internal/class"
	"lumen/internal/errors"
	"lumen/internal/heap"
	"lumen/internal/value"
)

func tableMethods() methodTable {
	return methodTable{
		"get": {Name: "get", Arity: 1, Fn: func(recv heap.Object, line int, args []value.Value) (value.Value, error) {
			t := recv.(*Table)
			v, ok := t.Get(args[0])
			if !ok {
				return value.Value{}, errors.New(errors.IndexError, line, "key %s not found in table", value.ToString(args[0], true))
			}
			return v, nil
		}},
		"get_default": {Name: "get_default", Arity: 2, Fn: func(recv heap.Object, line int, args []value.Value) (value.Value, error) {
			t := recv.(*Table)
			if v, ok := t.Get(args[0]); ok {
				return v, nil
			}
			return value.Copy(t.gc, args[1]), nil
		}},
		"keys": {Name: "keys", Arity: 0, Fn: func(recv heap.Object, line int, args []value.Value) (value.Value, error) {
			t := recv.(*Table)
			return value.ObjectValue(NewList(t.gc, builtins.List, t.Keys())), nil
		}},
		"values": {Name: "values", Arity: 0, Fn: func(recv heap.Object, line int, args []value.Value) (value.Value, error) {
			t := recv.(*Table)
			return value.ObjectValue(NewList(t.gc, builtins.List, t.Values())), nil
		}},
		"contains": {Name: "contains", Arity: 1, Fn: func(recv heap.Object, line int, args []value.Value) (value.Value, error) {
			return value.BoolValue(recv.(*Table).Contains(args[0])), nil
		}},
		"clear": {Name: "clear", Arity: 0, Fn: func(recv heap.Object, line int, args []value.Value) (value.Value, error) {
			recv.(*Table).Clear()
			return value.NullValue(), nil
		}},
		"remove": {Name: "remove", Arity: 1, Fn: func(recv heap.Object, line int, args []value.Value) (value.Value, error) {
			return value.BoolValue(recv.(*Table).Remove(args[0])), nil
		}},
		"size": {Name: "size", Arity: 0, Fn: func(recv heap.Object, line int, args []value.Value) (value.Value, error) {
			return value.IntValue(int64(recv.(*Table).Size())), nil
		}},
	}
}

func registerTableMethods(cls *class.Class) { registerMethods(cls, tableMethods()) }
