package types

import (
	"strings"

	"github.com/rivo/uniseg"

	"lumen/internal/class"
	"lumen/internal/errors"
	"lumen/internal/heap"
	"lumen/internal/value"
)

// stringMethod mirrors Method but over a plain Go string, since the Str tag
// is inline rather than heap-allocated and so has no
// heap.Object receiver to dispatch through.
type stringMethod struct {
	Name  string
	Arity int
	Fn    func(s string, line int, args []value.Value) (value.Value, error)
}

func stringArg(line int, v value.Value) (string, error) {
	v = value.Resolve(v)
	if v.Tag() != value.Str {
		return "", errors.New(errors.TypeError, line, "expected a String argument")
	}
	return v.AsString(), nil
}

// graphemes splits s into user-perceived characters via uniseg, so
// grapheme_count/next_grapheme/left/right/mid operate on what a reader
// sees rather than raw UTF-8 code points.
func graphemes(s string) []string {
	var out []string
	g := uniseg.NewGraphemes(s)
	for g.Next() {
		out = append(out, g.Str())
	}
	return out
}

func stringMethodTable(gc *heap.GC) map[string]*stringMethod {
	return map[string]*stringMethod{
		"contains": {Name: "contains", Arity: 1, Fn: func(s string, line int, args []value.Value) (value.Value, error) {
			sub, err := stringArg(line, args[0])
			if err != nil {
				return value.Value{}, err
			}
			return value.BoolValue(strings.Contains(s, sub)), nil
		}},
		"starts_with": {Name: "starts_with", Arity: 1, Fn: func(s string, line int, args []value.Value) (value.Value, error) {
			sub, err := stringArg(line, args[0])
			if err != nil {
				return value.Value{}, err
			}
			return value.BoolValue(strings.HasPrefix(s, sub)), nil
		}},
		"ends_with": {Name: "ends_with", Arity: 1, Fn: func(s string, line int, args []value.Value) (value.Value, error) {
			sub, err := stringArg(line, args[0])
			if err != nil {
				return value.Value{}, err
			}
			return value.BoolValue(strings.HasSuffix(s, sub)), nil
		}},
		"find": {Name: "find", Arity: 1, Fn: func(s string, line int, args []value.Value) (value.Value, error) {
			sub, err := stringArg(line, args[0])
			if err != nil {
				return value.Value{}, err
			}
			i := strings.Index(s, sub)
			if i < 0 {
				return value.IntValue(0), nil
			}
			return value.IntValue(int64(len(graphemes(s[:i])) + 1)), nil
		}},
		"rfind": {Name: "rfind", Arity: 1, Fn: func(s string, line int, args []value.Value) (value.Value, error) {
			sub, err := stringArg(line, args[0])
			if err != nil {
				return value.Value{}, err
			}
			i := strings.LastIndex(s, sub)
			if i < 0 {
				return value.IntValue(0), nil
			}
			return value.IntValue(int64(len(graphemes(s[:i])) + 1)), nil
		}},
		"left": {Name: "left", Arity: 1, Fn: func(s string, line int, args []value.Value) (value.Value, error) {
			n, err := value.ToInteger(line, args[0])
			if err != nil {
				return value.Value{}, err
			}
			g := graphemes(s)
			if n < 0 {
				n = 0
			}
			if n > int64(len(g)) {
				n = int64(len(g))
			}
			return value.StringValue(strings.Join(g[:n], "")), nil
		}},
		"right": {Name: "right", Arity: 1, Fn: func(s string, line int, args []value.Value) (value.Value, error) {
			n, err := value.ToInteger(line, args[0])
			if err != nil {
				return value.Value{}, err
			}
			g := graphemes(s)
			if n < 0 {
				n = 0
			}
			if n > int64(len(g)) {
				n = int64(len(g))
			}
			return value.StringValue(strings.Join(g[int64(len(g))-n:], "")), nil
		}},
		"mid": {Name: "mid", Arity: 2, Fn: func(s string, line int, args []value.Value) (value.Value, error) {
			start, err := value.ToInteger(line, args[0])
			if err != nil {
				return value.Value{}, err
			}
			length, err := value.ToInteger(line, args[1])
			if err != nil {
				return value.Value{}, err
			}
			g := graphemes(s)
			n := int64(len(g))
			if start < 1 {
				start = 1
			}
			if start > n+1 {
				return value.StringValue(""), nil
			}
			end := start - 1 + length
			if end > n {
				end = n
			}
			return value.StringValue(strings.Join(g[start-1:end], "")), nil
		}},
		"count": {Name: "count", Arity: 1, Fn: func(s string, line int, args []value.Value) (value.Value, error) {
			sub, err := stringArg(line, args[0])
			if err != nil {
				return value.Value{}, err
			}
			return value.IntValue(int64(strings.Count(s, sub))), nil
		}},
		"split": {Name: "split", Arity: 1, Fn: func(s string, line int, args []value.Value) (value.Value, error) {
			sep, err := stringArg(line, args[0])
			if err != nil {
				return value.Value{}, err
			}
			parts := strings.Split(s, sep)
			out := make([]value.Value, len(parts))
			for i, p := range parts {
				out[i] = value.StringValue(p)
			}
			return value.ObjectValue(NewList(gc, builtins.List, out)), nil
		}},
		"to_upper": {Name: "to_upper", Arity: 0, Fn: func(s string, line int, args []value.Value) (value.Value, error) {
			return value.StringValue(strings.ToUpper(s)), nil
		}},
		"to_lower": {Name: "to_lower", Arity: 0, Fn: func(s string, line int, args []value.Value) (value.Value, error) {
			return value.StringValue(strings.ToLower(s)), nil
		}},
		"reverse": {Name: "reverse", Arity: 0, Fn: func(s string, line int, args []value.Value) (value.Value, error) {
			g := graphemes(s)
			for i, j := 0, len(g)-1; i < j; i, j = i+1, j-1 {
				g[i], g[j] = g[j], g[i]
			}
			return value.StringValue(strings.Join(g, "")), nil
		}},
		"format": {Name: "format", Arity: -1, Fn: func(s string, line int, args []value.Value) (value.Value, error) {
			var sb strings.Builder
			i := 0
			for {
				j := strings.Index(s[i:], "{}")
				if j < 0 {
					sb.WriteString(s[i:])
					break
				}
				sb.WriteString(s[i : i+j])
				if len(args) > 0 {
					sb.WriteString(value.ToString(args[0], false))
					args = args[1:]
				}
				i += j + 2
			}
			return value.StringValue(sb.String()), nil
		}},
		"grapheme_count": {Name: "grapheme_count", Arity: 0, Fn: func(s string, line int, args []value.Value) (value.Value, error) {
			return value.IntValue(int64(len(graphemes(s)))), nil
		}},
		"next_grapheme": {Name: "next_grapheme", Arity: 1, Fn: func(s string, line int, args []value.Value) (value.Value, error) {
			pos, err := value.ToInteger(line, args[0])
			if err != nil {
				return value.Value{}, err
			}
			g := graphemes(s)
			if pos < 1 || pos > int64(len(g)) {
				return value.IntValue(0), nil
			}
			return value.IntValue(pos + 1), nil
		}},
		"compare": {Name: "compare", Arity: 1, Fn: func(s string, line int, args []value.Value) (value.Value, error) {
			other, err := stringArg(line, args[0])
			if err != nil {
				return value.Value{}, err
			}
			return value.IntValue(int64(strings.Compare(s, other))), nil
		}},
		"hash": {Name: "hash", Arity: 0, Fn: func(s string, line int, args []value.Value) (value.Value, error) {
			return value.IntValue(int64(value.Hash(value.StringValue(s)))), nil
		}},
	}
}

var stringMethods map[string]*stringMethod

func bindStringMethod(gc *heap.GC, fnCls *class.Class, s string, m *stringMethod) value.Value {
	fn := NewFunction(gc, fnCls, m.Name)
	fn.AddOverload(&Overload{
		Name:  m.Name,
		Arity: m.Arity,
		Native: func(ctx NativeContext, args []value.Value) (value.Value, error) {
			return m.Fn(s, 0, args)
		},
	})
	return value.ObjectValue(fn)
}

// registerStringMethods populates the String method table and wires
// value.StringFieldGetter, so `.contains`/`.to_upper`/... resolve the same
// way field access on any other built-in type does.
func registerStringMethods(gc *heap.GC, fnCls *class.Class) {
	stringMethods = stringMethodTable(gc)
	value.StringFieldGetter = func(s string, line int, name string) (value.Value, error) {
		m, ok := stringMethods[name]
		if !ok {
			return value.Value{}, errors.New(errors.TypeError, line, "String has no field or method %q", name)
		}
		if m.Arity == 0 {
			return m.Fn(s, line, nil)
		}
		return bindStringMethod(gc, fnCls, s, m), nil
	}
}
