package types

import (
	"lumen/internal/class"
	"lumen/internal/heap"
	"lumen/internal/value"
)

func fileMethods() methodTable {
	return methodTable{
		"read_line": {Name: "read_line", Arity: 0, Fn: func(recv heap.Object, line int, args []value.Value) (value.Value, error) {
			f := recv.(*File)
			s, ok, err := f.ReadLine(line)
			if err != nil {
				return value.Value{}, err
			}
			if !ok {
				return value.NullValue(), nil
			}
			return value.StringValue(s), nil
		}},
		"read_all": {Name: "read_all", Arity: 0, Fn: func(recv heap.Object, line int, args []value.Value) (value.Value, error) {
			s, err := recv.(*File).ReadAll(line)
			if err != nil {
				return value.Value{}, err
			}
			return value.StringValue(s), nil
		}},
		"read_lines": {Name: "read_lines", Arity: 0, Fn: func(recv heap.Object, line int, args []value.Value) (value.Value, error) {
			f := recv.(*File)
			var out []value.Value
			for {
				s, ok, err := f.ReadLine(line)
				if err != nil {
					return value.Value{}, err
				}
				if !ok {
					break
				}
				out = append(out, value.StringValue(s))
			}
			return value.ObjectValue(NewList(programGC, builtins.List, out)), nil
		}},
		"write": {Name: "write", Arity: 1, Fn: func(recv heap.Object, line int, args []value.Value) (value.Value, error) {
			s, err := stringArg(line, args[0])
			if err != nil {
				return value.Value{}, err
			}
			return value.NullValue(), recv.(*File).Write(line, s)
		}},
		"write_line": {Name: "write_line", Arity: 1, Fn: func(recv heap.Object, line int, args []value.Value) (value.Value, error) {
			s, err := stringArg(line, args[0])
			if err != nil {
				return value.Value{}, err
			}
			return value.NullValue(), recv.(*File).WriteLine(line, s)
		}},
		"write_lines": {Name: "write_lines", Arity: 1, Fn: func(recv heap.Object, line int, args []value.Value) (value.Value, error) {
			l, err := listArg(line, args[0])
			if err != nil {
				return value.Value{}, err
			}
			f := recv.(*File)
			for _, v := range l.Elems() {
				s := value.ToString(v, false)
				if err := f.WriteLine(line, s); err != nil {
					return value.Value{}, err
				}
			}
			return value.NullValue(), nil
		}},
		"seek": {Name: "seek", Arity: 2, Fn: func(recv heap.Object, line int, args []value.Value) (value.Value, error) {
			off, err := value.ToInteger(line, args[0])
			if err != nil {
				return value.Value{}, err
			}
			whence, err := value.ToInteger(line, args[1])
			if err != nil {
				return value.Value{}, err
			}
			return value.NullValue(), recv.(*File).Seek(line, off, int(whence))
		}},
		"tell": {Name: "tell", Arity: 0, Fn: func(recv heap.Object, line int, args []value.Value) (value.Value, error) {
			off, err := recv.(*File).Tell(line)
			if err != nil {
				return value.Value{}, err
			}
			return value.IntValue(off), nil
		}},
		"at_end": {Name: "at_end", Arity: 0, Fn: func(recv heap.Object, line int, args []value.Value) (value.Value, error) {
			return value.BoolValue(recv.(*File).AtEnd()), nil
		}},
		"close": {Name: "close", Arity: 0, Fn: func(recv heap.Object, line int, args []value.Value) (value.Value, error) {
			return value.NullValue(), recv.(*File).Close(line)
		}},
	}
}

func registerFileMethods(cls *class.Class) { registerMethods(cls, fileMethods()) }
