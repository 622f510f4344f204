package interp

import (
	"fmt"
	"math"
	"strings"

	"lumen/internal/bytecode"
	"lumen/internal/dispatch"
	"lumen/internal/errors"
	"lumen/internal/types"
	"lumen/internal/value"
)

// cleanTo drops every stack slot above base; used by Return, by error
// unwinding, and by runtime teardown so no slot is double-freed.
func (i *Interp) cleanTo(base int) {
	for len(i.stack) > base {
		value.Drop(i.gc, i.pop())
	}
}

// fail normalises err for propagation out of fr: plain Go errors become
// RuntimeErrors, a missing source line is filled in from the current
// instruction, and fr's routine is recorded on the unwind path.
func (i *Interp) fail(fr *frame, err error) error {
	le, ok := err.(*errors.LumenError)
	if !ok {
		le = errors.New(errors.RuntimeError, fr.line, "%s", err.Error())
	}
	if le.Location.Line == 0 {
		le.Location.Line = fr.line
	}
	name := fr.routine.Name
	le.Push(name, fr.line)
	return le
}

func (i *Interp) refWanted(pos int) bool {
	if len(i.pending) == 0 || pos < 0 || pos >= 64 {
		return false
	}
	return i.pending[len(i.pending)-1]&(1<<uint(pos)) != 0
}

func asIterator(v value.Value) (types.Iterator, bool) {
	v = value.Resolve(v)
	if v.Tag() != value.Obj {
		return nil, false
	}
	it, ok := v.AsObject().(types.Iterator)
	return it, ok
}

func functionOf(v value.Value) (*types.Function, bool) {
	v = value.Resolve(v)
	if v.Tag() != value.Obj {
		return nil, false
	}
	fn, ok := v.AsObject().(*types.Function)
	return fn, ok
}

// runFrame executes fr's routine until Return or an error. The frame's
// locals live at stack[fr.base : fr.base+nlocal]; on every exit path the
// stack is drained back to fr.base.
func (i *Interp) runFrame(fr *frame) (value.Value, error) {
	code := fr.routine.Code
	nlocal := 0

	bail := func(err error) (value.Value, error) {
		i.cleanTo(fr.base)
		value.Drop(i.gc, fr.iterScratch)
		fr.iterScratch = value.NullValue()
		return value.Value{}, i.fail(fr, err)
	}

	for fr.ip < len(code.Slots) {
		addr := fr.ip
		op := bytecode.Op(code.Slots[addr])
		fr.line = code.LineFor(addr)
		fr.ip = addr + 1 + op.Operands()
		arg := func(k int) uint16 { return code.Slots[addr+1+k] }

		switch op {

		// ---- pushes ----

		case bytecode.PushNull:
			i.push(value.NullValue())
		case bytecode.PushTrue:
			i.push(value.BoolValue(true))
		case bytecode.PushFalse:
			i.push(value.BoolValue(false))
		case bytecode.PushBoolean:
			i.push(value.BoolValue(arg(0) != 0))
		case bytecode.PushNan:
			i.push(value.FloatValue(math.NaN()))
		case bytecode.PushSmallInt:
			i.push(value.IntValue(int64(int16(arg(0)))))
		case bytecode.PushInteger:
			i.push(value.IntValue(code.Ints[arg(0)]))
		case bytecode.PushFloat:
			i.push(value.FloatValue(code.Floats[arg(0)]))
		case bytecode.PushString:
			i.push(value.StringValue(code.Strings[arg(0)]))

		case bytecode.Pop:
			value.Drop(i.gc, i.pop())

		// ---- arithmetic / comparison ----

		case bytecode.Add, bytecode.Sub, bytecode.Mul, bytecode.Div, bytecode.Mod, bytecode.Pow:
			b := i.pop()
			a := i.pop()
			var r value.Value
			var err error
			switch op {
			case bytecode.Add:
				r, err = value.Add(fr.line, a, b)
			case bytecode.Sub:
				r, err = value.Sub(fr.line, a, b)
			case bytecode.Mul:
				r, err = value.Mul(fr.line, a, b)
			case bytecode.Div:
				r, err = value.Div(fr.line, a, b)
			case bytecode.Mod:
				r, err = value.Mod(fr.line, a, b)
			default:
				r, err = value.Pow(fr.line, a, b)
			}
			value.Drop(i.gc, a)
			value.Drop(i.gc, b)
			if err != nil {
				return bail(err)
			}
			i.push(r)

		case bytecode.Negate:
			a := i.pop()
			r, err := value.Negate(fr.line, a)
			value.Drop(i.gc, a)
			if err != nil {
				return bail(err)
			}
			i.push(r)

		case bytecode.Not:
			a := i.pop()
			r := value.Not(a)
			value.Drop(i.gc, a)
			i.push(r)

		case bytecode.Equal, bytecode.NotEqual:
			b := i.pop()
			a := i.pop()
			eq := value.Equal(a, b)
			value.Drop(i.gc, a)
			value.Drop(i.gc, b)
			i.push(value.BoolValue(eq == (op == bytecode.Equal)))

		case bytecode.Less, bytecode.LessEqual, bytecode.Greater, bytecode.GreaterEqual, bytecode.Compare:
			b := i.pop()
			a := i.pop()
			cmp, err := value.Compare(fr.line, a, b)
			value.Drop(i.gc, a)
			value.Drop(i.gc, b)
			if err != nil {
				return bail(err)
			}
			switch op {
			case bytecode.Less:
				i.push(value.BoolValue(cmp < 0))
			case bytecode.LessEqual:
				i.push(value.BoolValue(cmp <= 0))
			case bytecode.Greater:
				i.push(value.BoolValue(cmp > 0))
			case bytecode.GreaterEqual:
				i.push(value.BoolValue(cmp >= 0))
			default:
				i.push(value.IntValue(int64(cmp)))
			}

		case bytecode.Concat:
			n := int(arg(0))
			parts := i.popN(n)
			var sb strings.Builder
			for _, p := range parts {
				sb.WriteString(value.ToString(p, false))
				value.Drop(i.gc, p)
			}
			i.push(value.StringValue(sb.String()))

		// ---- control flow ----

		case bytecode.Jump:
			fr.ip = code.JumpTarget(addr)

		case bytecode.JumpFalse, bytecode.JumpTrue:
			v := i.pop()
			truthy := value.ToBoolean(v)
			value.Drop(i.gc, v)
			if truthy == (op == bytecode.JumpTrue) {
				fr.ip = code.JumpTarget(addr)
			}

		case bytecode.NewFrame:
			nlocal = int(arg(0))
			for len(i.stack) < fr.base+nlocal {
				i.push(value.NullValue())
			}

		// ---- locals ----

		case bytecode.GetLocal:
			i.push(value.Copy(i.gc, value.Resolve(*i.local(fr, int(arg(0))))))

		case bytecode.GetLocalRef:
			slot := i.local(fr, int(arg(0)))
			value.MakeAlias(slot)
			i.push(value.Copy(i.gc, *slot))

		case bytecode.GetLocalArg:
			slot := i.local(fr, int(arg(0)))
			if i.refWanted(int(arg(1))) {
				value.MakeAlias(slot)
				i.push(value.Copy(i.gc, *slot))
			} else {
				i.push(value.Copy(i.gc, value.Resolve(*slot)))
			}

		case bytecode.GetUniqueLocal:
			slot := i.local(fr, int(arg(0)))
			value.Unshare(i.gc, slot)
			i.push(value.Copy(i.gc, value.Resolve(*slot)))

		case bytecode.SetLocal:
			v := i.pop()
			slot := i.local(fr, int(arg(0)))
			if err := i.storeInto(fr.line, slot, v); err != nil {
				return bail(err)
			}

		case bytecode.DefineLocal:
			v := i.pop()
			slot := i.local(fr, int(arg(0)))
			value.Drop(i.gc, *slot)
			*slot = v

		case bytecode.ClearLocal:
			slot := i.local(fr, int(arg(0)))
			value.Drop(i.gc, *slot)
			*slot = value.NullValue()

		case bytecode.IncrementLocal, bytecode.DecrementLocal:
			slot := i.local(fr, int(arg(0)))
			cur := value.Resolve(*slot)
			var r value.Value
			var err error
			if op == bytecode.IncrementLocal {
				r, err = value.Add(fr.line, cur, value.IntValue(1))
			} else {
				r, err = value.Sub(fr.line, cur, value.IntValue(1))
			}
			if err != nil {
				return bail(err)
			}
			i.writeThroughAlias(slot, r)

		// ---- globals ----

		case bytecode.GetGlobal:
			v, ok := i.globals[code.Strings[arg(0)]]
			if !ok {
				return bail(errors.New(errors.NameError, fr.line, "undefined variable %q", code.Strings[arg(0)]))
			}
			i.push(value.Copy(i.gc, value.Resolve(v)))

		case bytecode.GetGlobalRef:
			name := code.Strings[arg(0)]
			v, ok := i.globals[name]
			if !ok {
				return bail(errors.New(errors.NameError, fr.line, "undefined variable %q", name))
			}
			value.MakeAlias(&v)
			i.globals[name] = v
			i.push(value.Copy(i.gc, v))

		case bytecode.GetGlobalArg:
			name := code.Strings[arg(0)]
			v, ok := i.globals[name]
			if !ok {
				return bail(errors.New(errors.NameError, fr.line, "undefined variable %q", name))
			}
			if i.refWanted(int(arg(1))) {
				value.MakeAlias(&v)
				i.globals[name] = v
				i.push(value.Copy(i.gc, v))
			} else {
				i.push(value.Copy(i.gc, value.Resolve(v)))
			}

		case bytecode.GetUniqueGlobal:
			name := code.Strings[arg(0)]
			v, ok := i.globals[name]
			if !ok {
				return bail(errors.New(errors.NameError, fr.line, "undefined variable %q", name))
			}
			value.Unshare(i.gc, &v)
			i.globals[name] = v
			i.push(value.Copy(i.gc, value.Resolve(v)))

		case bytecode.SetGlobal:
			v := i.pop()
			if err := i.assignGlobal(fr.line, code.Strings[arg(0)], v); err != nil {
				return bail(err)
			}

		case bytecode.DefineGlobal:
			v := i.pop()
			name := code.Strings[arg(0)]
			if old, ok := i.globals[name]; ok {
				value.Drop(i.gc, old)
			}
			i.globals[name] = v

		// ---- upvalues ----

		case bytecode.GetUpvalue:
			i.push(value.Copy(i.gc, value.Resolve(fr.closure.Upvalues[arg(0)])))

		case bytecode.GetUpvalueRef:
			slot := &fr.closure.Upvalues[arg(0)]
			value.MakeAlias(slot)
			i.push(value.Copy(i.gc, *slot))

		case bytecode.GetUpvalueArg:
			slot := &fr.closure.Upvalues[arg(0)]
			if i.refWanted(int(arg(1))) {
				value.MakeAlias(slot)
				i.push(value.Copy(i.gc, *slot))
			} else {
				i.push(value.Copy(i.gc, value.Resolve(*slot)))
			}

		case bytecode.GetUniqueUpvalue:
			slot := &fr.closure.Upvalues[arg(0)]
			value.Unshare(i.gc, slot)
			i.push(value.Copy(i.gc, value.Resolve(*slot)))

		case bytecode.SetUpvalue:
			v := i.pop()
			if err := i.storeInto(fr.line, &fr.closure.Upvalues[arg(0)], v); err != nil {
				return bail(err)
			}

		// ---- indexing and fields ----

		case bytecode.GetIndex, bytecode.GetIndexRef:
			n := int(arg(0))
			idxs := i.popN(n)
			obj := i.pop()
			v, err := value.GetItem(obj, fr.line, idxs, op == bytecode.GetIndexRef)
			for _, ix := range idxs {
				value.Drop(i.gc, ix)
			}
			value.Drop(i.gc, obj)
			if err != nil {
				return bail(err)
			}
			i.push(v)

		case bytecode.GetIndexArg:
			n := int(arg(0))
			idxs := i.popN(n)
			obj := i.pop()
			v, err := value.GetItem(obj, fr.line, idxs, i.refWanted(int(arg(1))))
			for _, ix := range idxs {
				value.Drop(i.gc, ix)
			}
			value.Drop(i.gc, obj)
			if err != nil {
				return bail(err)
			}
			i.push(v)

		case bytecode.SetIndex:
			n := int(arg(0))
			rhs := i.pop()
			idxs := i.popN(n)
			obj := i.pop()
			err := value.SetItem(obj, fr.line, idxs, rhs)
			for _, ix := range idxs {
				value.Drop(i.gc, ix)
			}
			value.Drop(i.gc, obj)
			if err != nil {
				value.Drop(i.gc, rhs)
				return bail(err)
			}

		case bytecode.GetField:
			obj := i.pop()
			v, err := value.GetField(obj, fr.line, code.Strings[arg(0)])
			value.Drop(i.gc, obj)
			if err != nil {
				return bail(err)
			}
			i.push(v)

		case bytecode.GetFieldRef:
			return bail(errors.New(errors.ReferenceError, fr.line, "cannot take a reference to field %q", code.Strings[arg(0)]))

		case bytecode.GetFieldArg:
			if i.refWanted(int(arg(1))) {
				return bail(errors.New(errors.ReferenceError, fr.line, "cannot take a reference to field %q", code.Strings[arg(0)]))
			}
			obj := i.pop()
			v, err := value.GetField(obj, fr.line, code.Strings[arg(0)])
			value.Drop(i.gc, obj)
			if err != nil {
				return bail(err)
			}
			i.push(v)

		case bytecode.SetField:
			rhs := i.pop()
			obj := i.pop()
			err := value.SetField(obj, fr.line, code.Strings[arg(0)], rhs)
			value.Drop(i.gc, obj)
			if err != nil {
				value.Drop(i.gc, rhs)
				return bail(err)
			}

		// ---- container literals ----

		case bytecode.NewList:
			elems := i.popN(int(arg(0)))
			i.push(value.ObjectValue(types.NewList(i.gc, i.builtins.List, elems)))

		case bytecode.NewTable:
			pairs := i.popN(2 * int(arg(0)))
			t := types.NewTable(i.gc, i.builtins.Table)
			for k := 0; k < len(pairs); k += 2 {
				t.Set(pairs[k], pairs[k+1])
			}
			i.push(value.ObjectValue(t))

		case bytecode.NewSet:
			elems := i.popN(int(arg(0)))
			s := types.NewSet(i.gc, i.builtins.Set)
			for _, e := range elems {
				s.Insert(e) // Insert drops duplicates itself
			}
			i.push(value.ObjectValue(s))

		case bytecode.NewArray:
			rows, cols := int(arg(0)), int(arg(1))
			cells := i.popN(rows * cols)
			data := make([]float64, len(cells))
			for k, cell := range cells {
				f, err := value.ToFloat(fr.line, cell)
				value.Drop(i.gc, cell)
				if err != nil {
					for _, rest := range cells[k+1:] {
						value.Drop(i.gc, rest)
					}
					return bail(err)
				}
				data[k] = f
			}
			i.push(value.ObjectValue(types.NewArray(i.builtins.Array, rows, cols, data)))

		// ---- closures ----

		case bytecode.NewClosure:
			child := fr.routine.Nested[arg(0)]
			uvs := make([]value.Value, len(child.Upvalues))
			for k, d := range child.Upvalues {
				if d.IsLocal {
					slot := i.local(fr, d.Index)
					value.MakeAlias(slot)
					uvs[k] = value.Copy(i.gc, *slot)
				} else {
					uvs[k] = value.Copy(i.gc, fr.closure.Upvalues[d.Index])
				}
			}
			cl := types.NewClosure(i.gc, i.builtins.Closure, child, uvs)
			fn := types.NewFunction(i.gc, i.builtins.Function, child.Name)
			fn.AddOverload(&types.Overload{
				Closure:      cl,
				Name:         child.Name,
				Arity:        child.Arity,
				ParamClasses: child.ParamClasses,
				RefFlags:     child.RefFlags,
			})
			i.push(value.ObjectValue(fn))

		case bytecode.SetSignature:
			// Parameter classes and ref flags are attached to the nested
			// routine at compile time; nothing is pending at run time.

		// ---- iterators ----

		case bytecode.NewIterator:
			v := i.pop()
			it, err := types.NewIteratorFor(i.gc, i.builtins, v, arg(0) != 0, fr.line)
			value.Drop(i.gc, v)
			if err != nil {
				return bail(err)
			}
			i.push(it)

		case bytecode.TestIterator:
			it, ok := asIterator(i.peek())
			if !ok {
				return bail(errors.New(errors.InternalError, fr.line, "TestIterator on a non-iterator"))
			}
			i.push(value.BoolValue(!it.AtEnd()))

		case bytecode.NextKey:
			v := i.pop()
			it, ok := asIterator(v)
			if !ok {
				value.Drop(i.gc, v)
				return bail(errors.New(errors.InternalError, fr.line, "NextKey on a non-iterator"))
			}
			key := it.GetKey()
			value.Drop(i.gc, fr.iterScratch)
			fr.iterScratch = value.NullValue()
			if it.WantsRef() {
				rif, refOK := it.(types.RefIterator)
				if !refOK {
					kind := value.ClassOf(v).Name
					value.Drop(i.gc, v)
					value.Drop(i.gc, key)
					return bail(types.NoRefErr(fr.line, kind))
				}
				val, err := rif.GetValueRef()
				if err != nil {
					value.Drop(i.gc, v)
					value.Drop(i.gc, key)
					return bail(err)
				}
				fr.iterScratch = val
			} else {
				fr.iterScratch = it.GetValue()
			}
			it.Advance()
			value.Drop(i.gc, v)
			i.push(key)

		case bytecode.NextValue:
			v := i.pop()
			value.Drop(i.gc, v)
			i.push(fr.iterScratch)
			fr.iterScratch = value.NullValue()

		// ---- calls ----

		case bytecode.Precall:
			top := &i.stack[len(i.stack)-1]
			resolved := value.Resolve(*top)
			if resolved.Tag() == value.Obj {
				if cr, ok := resolved.AsObject().(*types.ClassRef); ok {
					i.gc.Retain(cr.Ctor)
					old := *top
					*top = value.ObjectValue(cr.Ctor)
					value.Drop(i.gc, old)
					resolved = *top
				}
			}
			fn, ok := functionOf(resolved)
			if !ok {
				return bail(errors.New(errors.TypeError, fr.line, "%s is not callable", value.ClassOf(resolved).Name))
			}
			var flags uint64
			for _, ov := range fn.Overloads {
				flags |= ov.RefFlags
			}
			i.pending = append(i.pending, flags)

		case bytecode.Call:
			narg := int(arg(0)) & 0x7fff
			if len(i.pending) > 0 {
				i.pending = i.pending[:len(i.pending)-1]
			}
			argsStart := len(i.stack) - narg
			fn, ok := functionOf(i.stack[argsStart-1])
			if !ok {
				return bail(errors.New(errors.InternalError, fr.line, "Call without a resolved Function"))
			}
			ov, err := i.resolver.Resolve(fr.line, fn, i.stack[argsStart:])
			if err != nil {
				return bail(err)
			}

			if ov.Native != nil {
				args := i.popN(narg)
				fnVal := i.pop()
				res, err := ov.Native(i, args)
				for _, a := range args {
					value.Drop(i.gc, a)
				}
				value.Drop(i.gc, fnVal)
				if err != nil {
					return bail(err)
				}
				i.push(res)
				break
			}

			if i.callDepth >= MaxCallDepth {
				return bail(errors.New(errors.RuntimeError, fr.line, "call depth exceeds %d in %s", MaxCallDepth, ov.Name))
			}
			for pos := 0; pos < narg; pos++ {
				slot := &i.stack[argsStart+pos]
				if ov.Closure.Routine.ParamBoundByRef(pos) {
					value.MakeAlias(slot)
				} else {
					value.Unalias(i.gc, slot)
				}
			}
			i.callDepth++
			child := &frame{routine: ov.Closure.Routine, closure: ov.Closure, base: argsStart}
			ret, err := i.runFrame(child)
			i.callDepth--
			if err != nil {
				return bail(err)
			}
			fnVal := i.pop()
			value.Drop(i.gc, fnVal)
			i.push(ret)

		case bytecode.Return:
			var rv value.Value
			if len(i.stack) > fr.base+nlocal {
				rv = i.pop()
			} else {
				rv = value.NullValue()
			}
			i.cleanTo(fr.base)
			value.Drop(i.gc, fr.iterScratch)
			fr.iterScratch = value.NullValue()
			return rv, nil

		// ---- output, assertion, throw ----

		case bytecode.Print, bytecode.PrintLine:
			args := i.popN(int(arg(0)))
			i.Print(args, op == bytecode.PrintLine)
			for _, a := range args {
				value.Drop(i.gc, a)
			}

		case bytecode.Assert:
			narg := int(arg(0))
			var msg value.Value
			if narg == 2 {
				msg = i.pop()
			}
			cond := i.pop()
			ok := value.ToBoolean(cond)
			value.Drop(i.gc, cond)
			if !ok {
				text := "assertion failed"
				if narg == 2 {
					text = "assertion failed: " + value.ToString(msg, false)
				}
				value.Drop(i.gc, msg)
				return bail(errors.New(errors.RuntimeError, fr.line, "%s", text))
			}
			value.Drop(i.gc, msg)

		case bytecode.Throw:
			v := i.pop()
			text := value.ToString(v, false)
			value.Drop(i.gc, v)
			return bail(errors.New(errors.RuntimeError, fr.line, "%s", text))

		default:
			return bail(errors.New(errors.InternalError, fr.line, "unknown opcode %v", op))
		}
	}

	// Fell off the end of the stream without a Return: well-formed
	// routines always end in Return, so this is a compiler invariant
	// violation.
	return bail(errors.Internal(fr.line, fmt.Errorf("code ran off the end of routine %s", fr.routine.Name)))
}

// storeInto implements the move-assign of SetLocal/SetUpvalue, plus the
// function-overload merge: redefining a function name whose slot already
// holds a Function of the same name appends the new overloads rather than
// replacing the value.
func (i *Interp) storeInto(line int, slot *value.Value, v value.Value) error {
	if merged, err := i.tryMergeOverloads(line, *slot, v); merged || err != nil {
		return err
	}
	i.writeThroughAlias(slot, v)
	return nil
}

// assignGlobal is SetGlobal: write through an existing binding (preserving
// alias identity and merging function overloads), or hoist a first write
// when the value is itself a Function.
func (i *Interp) assignGlobal(line int, name string, v value.Value) error {
	existing, ok := i.globals[name]
	if !ok {
		if _, isFn := functionOf(v); isFn {
			i.globals[name] = v
			return nil
		}
		value.Drop(i.gc, v)
		return errors.New(errors.NameError, line, "assignment to undefined variable %q", name)
	}
	if merged, err := i.tryMergeOverloads(line, existing, v); merged || err != nil {
		return err
	}
	if existing.IsAlias() {
		inner := value.Resolve(existing)
		value.Drop(i.gc, inner)
		value.SetAliasInner(existing, v)
		return nil
	}
	value.Drop(i.gc, existing)
	i.globals[name] = v
	return nil
}

// tryMergeOverloads appends v's overloads onto the Function already bound
// in dst when both are Functions carrying the same name -- that is, when v
// is a fresh definition of an already-defined function rather than a
// deliberate rebinding of the variable. Reference consistency across the
// combined overload set is checked immediately.
func (i *Interp) tryMergeOverloads(line int, dst, v value.Value) (bool, error) {
	df, ok1 := functionOf(dst)
	nf, ok2 := functionOf(v)
	if !ok1 || !ok2 || df == nf || df.Name != nf.Name {
		return false, nil
	}
	for _, ov := range nf.Overloads {
		df.AddOverload(ov)
	}
	nf.Overloads = nil
	value.Drop(i.gc, v)
	if err := dispatch.CheckReferenceConsistency(df); err != nil {
		return true, errors.New(errors.ReferenceError, line, "%s", err.Error())
	}
	return true, nil
}
