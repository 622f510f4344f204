package types

import (
	"math/rand"

	"lumen/internal/class"
	"lumen/internal/errors"
	"lumen/internal/heap"
	"lumen/internal/value"
)

func listMethods() methodTable {
	return methodTable{
		"append": {Name: "append", Arity: 1, Fn: func(recv heap.Object, line int, args []value.Value) (value.Value, error) {
			recv.(*List).Append(value.Copy(recv.(*List).gc, args[0]))
			return value.NullValue(), nil
		}},
		"prepend": {Name: "prepend", Arity: 1, Fn: func(recv heap.Object, line int, args []value.Value) (value.Value, error) {
			l := recv.(*List)
			l.Prepend(value.Copy(l.gc, args[0]))
			return value.NullValue(), nil
		}},
		"insert": {Name: "insert", Arity: 2, Fn: func(recv heap.Object, line int, args []value.Value) (value.Value, error) {
			l := recv.(*List)
			i, err := value.ToInteger(line, args[0])
			if err != nil {
				return value.Value{}, err
			}
			if err := l.InsertAt(line, i, value.Copy(l.gc, args[1])); err != nil {
				return value.Value{}, err
			}
			return value.NullValue(), nil
		}},
		"remove_at": {Name: "remove_at", Arity: 1, Fn: func(recv heap.Object, line int, args []value.Value) (value.Value, error) {
			l := recv.(*List)
			i, err := value.ToInteger(line, args[0])
			if err != nil {
				return value.Value{}, err
			}
			return l.RemoveAt(line, i)
		}},
		"remove": {Name: "remove", Arity: 1, Fn: func(recv heap.Object, line int, args []value.Value) (value.Value, error) {
			l := recv.(*List)
			idx := l.IndexOf(args[0])
			if idx == 0 {
				return value.BoolValue(false), nil
			}
			v, err := l.RemoveAt(line, idx)
			if err != nil {
				return value.Value{}, err
			}
			value.Drop(l.gc, v)
			return value.BoolValue(true), nil
		}},
		"find": {Name: "find", Arity: 1, Fn: func(recv heap.Object, line int, args []value.Value) (value.Value, error) {
			return value.IntValue(recv.(*List).IndexOf(args[0])), nil
		}},
		"rfind": {Name: "rfind", Arity: 1, Fn: func(recv heap.Object, line int, args []value.Value) (value.Value, error) {
			return value.IntValue(recv.(*List).RIndexOf(args[0])), nil
		}},
		"first": {Name: "first", Arity: 0, Fn: func(recv heap.Object, line int, args []value.Value) (value.Value, error) {
			l := recv.(*List)
			v, ok := l.First()
			if !ok {
				return value.Value{}, errors.New(errors.IndexError, line, "first() on empty list")
			}
			return value.Copy(l.gc, v), nil
		}},
		"last": {Name: "last", Arity: 0, Fn: func(recv heap.Object, line int, args []value.Value) (value.Value, error) {
			l := recv.(*List)
			v, ok := l.Last()
			if !ok {
				return value.Value{}, errors.New(errors.IndexError, line, "last() on empty list")
			}
			return value.Copy(l.gc, v), nil
		}},
		"contains": {Name: "contains", Arity: 1, Fn: func(recv heap.Object, line int, args []value.Value) (value.Value, error) {
			return value.BoolValue(recv.(*List).Contains(args[0])), nil
		}},
		"size": {Name: "size", Arity: 0, Fn: func(recv heap.Object, line int, args []value.Value) (value.Value, error) {
			return value.IntValue(int64(recv.(*List).Size())), nil
		}},
		"sort": {Name: "sort", Arity: 0, Fn: func(recv heap.Object, line int, args []value.Value) (value.Value, error) {
			l := recv.(*List)
			err := l.Sort(line, func(a, b value.Value) (bool, error) {
				c, err := value.Compare(line, a, b)
				return c < 0, err
			})
			if err != nil {
				return value.Value{}, err
			}
			l.gc.Retain(l)
			return value.ObjectValue(l), nil
		}},
		"reverse": {Name: "reverse", Arity: 0, Fn: func(recv heap.Object, line int, args []value.Value) (value.Value, error) {
			l := recv.(*List)
			l.Reverse()
			l.gc.Retain(l)
			return value.ObjectValue(l), nil
		}},
		"shuffle": {Name: "shuffle", Arity: 0, Fn: func(recv heap.Object, line int, args []value.Value) (value.Value, error) {
			l := recv.(*List)
			elems := l.Elems()
			rand.Shuffle(len(elems), func(i, j int) { elems[i], elems[j] = elems[j], elems[i] })
			l.gc.Retain(l)
			return value.ObjectValue(l), nil
		}},
		"sample": {Name: "sample", Arity: 0, Fn: func(recv heap.Object, line int, args []value.Value) (value.Value, error) {
			l := recv.(*List)
			if l.Size() == 0 {
				return value.Value{}, errors.New(errors.IndexError, line, "sample() on empty list")
			}
			v, err := l.GetItem(line, int64(rand.Intn(l.Size())+1), false)
			return v, err
		}},
		"intersect": {Name: "intersect", Arity: 1, Fn: func(recv heap.Object, line int, args []value.Value) (value.Value, error) {
			l := recv.(*List)
			other, err := listArg(line, args[0])
			if err != nil {
				return value.Value{}, err
			}
			var out []value.Value
			for _, v := range l.Elems() {
				if other.Contains(v) {
					out = append(out, value.Copy(l.gc, v))
				}
			}
			return value.ObjectValue(NewList(l.gc, l.cls, out)), nil
		}},
		"unite": {Name: "unite", Arity: 1, Fn: func(recv heap.Object, line int, args []value.Value) (value.Value, error) {
			l := recv.(*List)
			other, err := listArg(line, args[0])
			if err != nil {
				return value.Value{}, err
			}
			out := make([]value.Value, 0, l.Size()+other.Size())
			for _, v := range l.Elems() {
				out = append(out, value.Copy(l.gc, v))
			}
			for _, v := range other.Elems() {
				if !l.Contains(v) {
					out = append(out, value.Copy(l.gc, v))
				}
			}
			return value.ObjectValue(NewList(l.gc, l.cls, out)), nil
		}},
		"subtract": {Name: "subtract", Arity: 1, Fn: func(recv heap.Object, line int, args []value.Value) (value.Value, error) {
			l := recv.(*List)
			other, err := listArg(line, args[0])
			if err != nil {
				return value.Value{}, err
			}
			var out []value.Value
			for _, v := range l.Elems() {
				if !other.Contains(v) {
					out = append(out, value.Copy(l.gc, v))
				}
			}
			return value.ObjectValue(NewList(l.gc, l.cls, out)), nil
		}},
	}
}

func listArg(line int, v value.Value) (*List, error) {
	v = value.Resolve(v)
	l, ok := v.AsObject().(*List)
	if !ok {
		return nil, errors.New(errors.TypeError, line, "expected a List argument")
	}
	return l, nil
}

func registerListMethods(cls *class.Class) { registerMethods(cls, listMethods()) }
