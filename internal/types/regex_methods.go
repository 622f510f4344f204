package types

import (
	"lumen/internal/class"
	"lumen/internal/heap"
	"lumen/internal/value"
)

func regexMethods() methodTable {
	return methodTable{
		"match": {Name: "match", Arity: 1, Fn: func(recv heap.Object, line int, args []value.Value) (value.Value, error) {
			s, err := stringArg(line, args[0])
			if err != nil {
				return value.Value{}, err
			}
			return value.StringValue(recv.(*Regex).Match(s)), nil
		}},
		"has_match": {Name: "has_match", Arity: 1, Fn: func(recv heap.Object, line int, args []value.Value) (value.Value, error) {
			s, err := stringArg(line, args[0])
			if err != nil {
				return value.Value{}, err
			}
			return value.BoolValue(recv.(*Regex).HasMatch(s)), nil
		}},
		"count": {Name: "count", Arity: 1, Fn: func(recv heap.Object, line int, args []value.Value) (value.Value, error) {
			s, err := stringArg(line, args[0])
			if err != nil {
				return value.Value{}, err
			}
			return value.IntValue(int64(recv.(*Regex).Count(s))), nil
		}},
		"capture": {Name: "capture", Arity: 2, Fn: func(recv heap.Object, line int, args []value.Value) (value.Value, error) {
			s, err := stringArg(line, args[0])
			if err != nil {
				return value.Value{}, err
			}
			n, err := value.ToInteger(line, args[1])
			if err != nil {
				return value.Value{}, err
			}
			groups := recv.(*Regex).Capture(s)
			if n < 0 || int(n) >= len(groups) {
				return value.NullValue(), nil
			}
			return value.StringValue(groups[n]), nil
		}},
		"capture_start": {Name: "capture_start", Arity: 2, Fn: func(recv heap.Object, line int, args []value.Value) (value.Value, error) {
			s, err := stringArg(line, args[0])
			if err != nil {
				return value.Value{}, err
			}
			n, err := value.ToInteger(line, args[1])
			if err != nil {
				return value.Value{}, err
			}
			return value.IntValue(int64(recv.(*Regex).CaptureStart(s, int(n)))), nil
		}},
		"capture_end": {Name: "capture_end", Arity: 2, Fn: func(recv heap.Object, line int, args []value.Value) (value.Value, error) {
			s, err := stringArg(line, args[0])
			if err != nil {
				return value.Value{}, err
			}
			n, err := value.ToInteger(line, args[1])
			if err != nil {
				return value.Value{}, err
			}
			return value.IntValue(int64(recv.(*Regex).CaptureEnd(s, int(n)))), nil
		}},
		"pattern": {Name: "pattern", Arity: 0, Fn: func(recv heap.Object, line int, args []value.Value) (value.Value, error) {
			return value.StringValue(recv.(*Regex).Pattern()), nil
		}},
	}
}

func registerRegexMethods(cls *class.Class) { registerMethods(cls, regexMethods()) }
