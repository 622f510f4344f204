// Package compiler lowers an internal/ast tree into internal/bytecode
//: a visitor that walks statements and expressions,
// emitting opcodes into the Routine currently being built, resolving
// variables to locals/upvalues/globals, and back-patching jumps for
// control flow.
package compiler

import (
	"fmt"

	"lumen/internal/ast"
	"lumen/internal/bytecode"
	"lumen/internal/class"
	"lumen/internal/types"
)

type localVar struct {
	name  string
	idx   int
	depth int
}

type loopCtx struct {
	breakJumps     []int
	continueTarget int
}

type frame struct {
	routine *types.Routine
	parent  *frame
	locals  []localVar
	depth   int
	nlocal  int
	loops   []*loopCtx
}

// Compiler implements ast.ExprVisitor and ast.StmtVisitor, emitting into
// whichever frame is currently active.
type Compiler struct {
	reg *class.Registry
	cur *frame
	errs []string
}

func New(reg *class.Registry) *Compiler { return &Compiler{reg: reg} }

// CompileProgram compiles a top-level statement block into the script's
// root Routine.
func (c *Compiler) CompileProgram(block *ast.Block) (*types.Routine, []string) {
	root := types.NewRoutine("<script>")
	c.cur = &frame{routine: root}
	frameAddr := c.code().Emit(bytecode.NewFrame, 0)
	c.compileStmts(block.Stmts)
	c.code().Emit(bytecode.PushNull)
	c.code().Emit(bytecode.Return)
	c.patchFrameSize(frameAddr)
	return root, c.errs
}

func (c *Compiler) code() *bytecode.Code { return c.cur.routine.Code }

func (c *Compiler) errf(line int, format string, args ...interface{}) {
	c.errs = append(c.errs, fmt.Sprintf("line %d: %s", line, fmt.Sprintf(format, args...)))
}

func (c *Compiler) patchFrameSize(addr int) {
	c.code().Slots[addr+1] = uint16(c.cur.nlocal)
}

// ---- scope / variable resolution ----

func (c *Compiler) allocLocal(name string) int {
	return c.allocLocalIn(c.cur, name)
}

// findLocalAt searches fr's locals back-to-front for name, accepting the
// first entry whose depth is within maxDepth -- this naturally respects
// both shadowing (most recent wins) and scope exit (an entry from an
// already-closed deeper scope is skipped once maxDepth drops below it),
// without needing to prune the locals table on scope exit.
func findLocalAt(fr *frame, name string, maxDepth int) (int, bool) {
	for i := len(fr.locals) - 1; i >= 0; i-- {
		if fr.locals[i].name == name && fr.locals[i].depth <= maxDepth {
			return fr.locals[i].idx, true
		}
	}
	return 0, false
}

func (c *Compiler) findLocalSameDepth(name string) (int, bool) {
	for i := len(c.cur.locals) - 1; i >= 0; i-- {
		if c.cur.locals[i].depth < c.cur.depth {
			break
		}
		if c.cur.locals[i].name == name && c.cur.locals[i].depth == c.cur.depth {
			return c.cur.locals[i].idx, true
		}
	}
	return 0, false
}

func (c *Compiler) resolveUpvalue(fr *frame, name string) (int, bool) {
	if fr.parent == nil {
		return 0, false
	}
	if idx, ok := findLocalAt(fr.parent, name, fr.parent.depth); ok {
		return c.addUpvalue(fr, name, idx, true), true
	}
	if idx, ok := c.resolveUpvalue(fr.parent, name); ok {
		return c.addUpvalue(fr, name, idx, false), true
	}
	return 0, false
}

func (c *Compiler) addUpvalue(fr *frame, name string, index int, isLocal bool) int {
	for i, uv := range fr.routine.Upvalues {
		if uv.Index == index && uv.IsLocal == isLocal {
			return i
		}
	}
	fr.routine.Upvalues = append(fr.routine.Upvalues, types.UpvalueDesc{Name: name, Index: index, IsLocal: isLocal})
	return len(fr.routine.Upvalues) - 1
}

type varKind int

const (
	varLocal varKind = iota
	varUpvalue
	varGlobal
)

func (c *Compiler) resolveVar(name string) (varKind, int) {
	if idx, ok := findLocalAt(c.cur, name, c.cur.depth); ok {
		return varLocal, idx
	}
	if idx, ok := c.resolveUpvalue(c.cur, name); ok {
		return varUpvalue, idx
	}
	return varGlobal, 0
}

func (c *Compiler) compileVarRead(name string, line int) {
	code := c.code()
	switch kind, idx := c.resolveVar(name); kind {
	case varLocal:
		code.Emit(bytecode.GetLocal, uint16(idx))
	case varUpvalue:
		code.Emit(bytecode.GetUpvalue, uint16(idx))
	default:
		nameIdx := code.AddString(name)
		code.Emit(bytecode.GetGlobal, uint16(nameIdx))
	}
}

func (c *Compiler) compileVarReadRef(name string) {
	code := c.code()
	switch kind, idx := c.resolveVar(name); kind {
	case varLocal:
		code.Emit(bytecode.GetLocalRef, uint16(idx))
	case varUpvalue:
		code.Emit(bytecode.GetUpvalueRef, uint16(idx))
	default:
		nameIdx := code.AddString(name)
		code.Emit(bytecode.GetGlobalRef, uint16(nameIdx))
	}
}

func (c *Compiler) compileVarReadArg(name string, argPos int) {
	code := c.code()
	switch kind, idx := c.resolveVar(name); kind {
	case varLocal:
		code.Emit(bytecode.GetLocalArg, uint16(idx), uint16(argPos))
	case varUpvalue:
		code.Emit(bytecode.GetUpvalueArg, uint16(idx), uint16(argPos))
	default:
		nameIdx := code.AddString(name)
		code.Emit(bytecode.GetGlobalArg, uint16(nameIdx), uint16(argPos))
	}
}

func (c *Compiler) compileVarAssign(name string) {
	code := c.code()
	switch kind, idx := c.resolveVar(name); kind {
	case varLocal:
		code.Emit(bytecode.SetLocal, uint16(idx))
	case varUpvalue:
		code.Emit(bytecode.SetUpvalue, uint16(idx))
	default:
		nameIdx := code.AddString(name)
		code.Emit(bytecode.SetGlobal, uint16(nameIdx))
	}
}

// ---- reference-expression compilation (for `ref x`, `ref x[i]`, `ref x.f`) ----

// compileObjectForMutation emits the receiver of an indexed or field
// mutation (SetIndex/SetField, or a ref binding into a container element).
// When the receiver is a bare variable, it is fetched with the GetUnique*
// opcode variant rather than a plain Get, so a receiver sharing its heap
// object with another owner (`b = a; a[1] = 9`) is cloned in place first
// instead of silently mutating through b too.
// Chained receivers (`a.b[0] = 1`) fall back to a plain read: each Get
// already hands back a value this expression owns no other name for.
func (c *Compiler) compileObjectForMutation(e ast.Expr) {
	code := c.code()
	ident, ok := e.(*ast.Ident)
	if !ok {
		c.emitExpr(e)
		return
	}
	switch kind, idx := c.resolveVar(ident.Name); kind {
	case varLocal:
		code.Emit(bytecode.GetUniqueLocal, uint16(idx))
	case varUpvalue:
		code.Emit(bytecode.GetUniqueUpvalue, uint16(idx))
	default:
		nameIdx := code.AddString(ident.Name)
		code.Emit(bytecode.GetUniqueGlobal, uint16(nameIdx))
	}
}

func (c *Compiler) compileRefTarget(e ast.Expr) {
	switch n := e.(type) {
	case *ast.Ident:
		c.compileVarReadRef(n.Name)
	case *ast.Index:
		c.compileObjectForMutation(n.Object)
		for _, ix := range n.Indices {
			c.emitExpr(ix)
		}
		c.code().Emit(bytecode.GetIndexRef, uint16(len(n.Indices)))
	case *ast.Field:
		c.compileObjectForMutation(n.Object)
		nameIdx := c.code().AddString(n.Name)
		c.code().Emit(bytecode.GetFieldRef, uint16(nameIdx))
	default:
		c.errf(e.Line(), "cannot take a reference to this expression")
		c.emitExpr(e)
	}
}

// ---- expression compile entry ----

func (c *Compiler) emitExpr(e ast.Expr) {
	c.code().SetLine(e.Line())
	e.Accept(c)
}

func (c *Compiler) compileStmts(stmts []ast.Stmt) {
	for _, s := range stmts {
		c.code().SetLine(s.Line())
		s.Accept(c)
	}
}

func intLitOp(v int64) (bytecode.Op, bool) {
	if v >= -32768 && v <= 32767 {
		return bytecode.PushSmallInt, true
	}
	return bytecode.PushInteger, false
}

// ---- ExprVisitor ----

func (c *Compiler) VisitConst(n *ast.Const) interface{} {
	switch n.Kind {
	case ast.ConstNull, ast.ConstPass:
		c.code().Emit(bytecode.PushNull)
	case ast.ConstTrue:
		c.code().Emit(bytecode.PushTrue)
	case ast.ConstFalse:
		c.code().Emit(bytecode.PushFalse)
	case ast.ConstNan:
		c.code().Emit(bytecode.PushNan)
	}
	return nil
}

func (c *Compiler) VisitIntLit(n *ast.IntLit) interface{} {
	if op, small := intLitOp(n.Value); small {
		c.code().Emit(op, uint16(int16(n.Value)))
	} else {
		idx := c.code().AddInt(n.Value)
		c.code().Emit(bytecode.PushInteger, uint16(idx))
	}
	return nil
}

func (c *Compiler) VisitFloatLit(n *ast.FloatLit) interface{} {
	idx := c.code().AddFloat(n.Value)
	c.code().Emit(bytecode.PushFloat, uint16(idx))
	return nil
}

func (c *Compiler) VisitStringLit(n *ast.StringLit) interface{} {
	idx := c.code().AddString(n.Value)
	c.code().Emit(bytecode.PushString, uint16(idx))
	return nil
}

func (c *Compiler) VisitIdent(n *ast.Ident) interface{} {
	c.compileVarRead(n.Name, n.Line())
	return nil
}

func (c *Compiler) VisitUnary(n *ast.Unary) interface{} {
	// Minus on a numeric literal folds at compile time. The one
	// unrepresentable case, -(-2^63), cannot be written: its operand
	// already overflows the literal parser.
	if n.Op == "-" {
		switch lit := n.Operand.(type) {
		case *ast.IntLit:
			c.VisitIntLit(ast.NewIntLit(lit.Line(), -lit.Value))
			return nil
		case *ast.FloatLit:
			c.VisitFloatLit(ast.NewFloatLit(lit.Line(), -lit.Value))
			return nil
		}
	}
	c.emitExpr(n.Operand)
	if n.Op == "-" {
		c.code().Emit(bytecode.Negate)
	} else {
		c.code().Emit(bytecode.Not)
	}
	return nil
}

var binOps = map[string]bytecode.Op{
	"+": bytecode.Add, "-": bytecode.Sub, "*": bytecode.Mul, "/": bytecode.Div,
	"%": bytecode.Mod, "^": bytecode.Pow,
	"==": bytecode.Equal, "!=": bytecode.NotEqual,
	"<": bytecode.Less, ">": bytecode.Greater,
	"<=": bytecode.LessEqual, ">=": bytecode.GreaterEqual,
	"<=>": bytecode.Compare,
}

func (c *Compiler) VisitBinary(n *ast.Binary) interface{} {
	c.emitExpr(n.Left)
	c.emitExpr(n.Right)
	if op, ok := binOps[n.Op]; ok {
		c.code().Emit(op)
	} else {
		c.errf(n.Line(), "unknown binary operator %q", n.Op)
	}
	return nil
}

// VisitLogical lowers `and`/`or` via short-circuit jumps. The instruction
// set has no stack-duplicate opcode, so the discarded side of a
// short-circuit is replaced by its canonical boolean rather than its
// original (possibly non-boolean-but-falsy/truthy) value; this is a
// documented simplification, not full truthy-value-preserving semantics.
func (c *Compiler) VisitLogical(n *ast.Logical) interface{} {
	c.emitExpr(n.Left)
	if n.Op == "and" {
		skip := c.code().EmitJump(bytecode.JumpFalse)
		c.emitExpr(n.Right)
		end := c.code().EmitJump(bytecode.Jump)
		c.code().PatchJump(skip)
		c.code().Emit(bytecode.PushFalse)
		c.code().PatchJump(end)
	} else {
		skip := c.code().EmitJump(bytecode.JumpTrue)
		c.emitExpr(n.Right)
		end := c.code().EmitJump(bytecode.Jump)
		c.code().PatchJump(skip)
		c.code().Emit(bytecode.PushTrue)
		c.code().PatchJump(end)
	}
	return nil
}

func (c *Compiler) VisitConcat(n *ast.Concat) interface{} {
	for _, p := range n.Parts {
		c.emitExpr(p)
	}
	c.code().Emit(bytecode.Concat, uint16(len(n.Parts)))
	return nil
}

func (c *Compiler) VisitCall(n *ast.Call) interface{} {
	c.emitExpr(n.Callee)
	c.code().Emit(bytecode.Precall)
	for pos, a := range n.Args {
		switch arg := a.(type) {
		case *ast.Ref:
			c.compileRefTarget(arg.Target)
		case *ast.Ident:
			// Bare variables bind via the Arg opcode variants: the
			// interpreter consults the callee's ref_flags (stashed by
			// Precall) and materialises an alias only when parameter pos
			// is declared `ref`.
			c.compileVarReadArg(arg.Name, pos)
		default:
			c.emitExpr(a)
		}
	}
	c.code().Emit(bytecode.Call, uint16(len(n.Args)))
	return nil
}

func (c *Compiler) VisitRef(n *ast.Ref) interface{} {
	c.compileRefTarget(n.Target)
	return nil
}

func (c *Compiler) VisitAssign(n *ast.Assign) interface{} {
	switch lhs := n.Lhs.(type) {
	case *ast.Ident:
		c.emitExpr(n.Rhs)
		c.compileVarAssign(lhs.Name)
	case *ast.Index:
		c.compileObjectForMutation(lhs.Object)
		for _, ix := range lhs.Indices {
			c.emitExpr(ix)
		}
		c.emitExpr(n.Rhs)
		c.code().Emit(bytecode.SetIndex, uint16(len(lhs.Indices)))
	case *ast.Field:
		c.compileObjectForMutation(lhs.Object)
		c.emitExpr(n.Rhs)
		nameIdx := c.code().AddString(lhs.Name)
		c.code().Emit(bytecode.SetField, uint16(nameIdx))
	default:
		c.errf(n.Line(), "invalid assignment target")
	}
	return nil
}

func (c *Compiler) VisitIndex(n *ast.Index) interface{} {
	c.emitExpr(n.Object)
	for _, ix := range n.Indices {
		c.emitExpr(ix)
	}
	c.code().Emit(bytecode.GetIndex, uint16(len(n.Indices)))
	return nil
}

func (c *Compiler) VisitField(n *ast.Field) interface{} {
	c.emitExpr(n.Object)
	nameIdx := c.code().AddString(n.Name)
	c.code().Emit(bytecode.GetField, uint16(nameIdx))
	return nil
}

func (c *Compiler) VisitListLit(n *ast.ListLit) interface{} {
	for _, e := range n.Elems {
		c.emitExpr(e)
	}
	c.code().Emit(bytecode.NewList, uint16(len(n.Elems)))
	return nil
}

func (c *Compiler) VisitArrayLit(n *ast.ArrayLit) interface{} {
	rows := len(n.Rows)
	cols := 0
	if rows > 0 {
		cols = len(n.Rows[0])
	}
	for _, row := range n.Rows {
		if len(row) != cols {
			c.errf(n.Line(), "ragged array literal: row has %d elements, expected %d", len(row), cols)
		}
		for _, e := range row {
			c.emitExpr(e)
		}
	}
	c.code().Emit(bytecode.NewArray, uint16(rows), uint16(cols))
	return nil
}

func (c *Compiler) VisitTableLit(n *ast.TableLit) interface{} {
	for i := range n.Keys {
		c.emitExpr(n.Keys[i])
		c.emitExpr(n.Values[i])
	}
	c.code().Emit(bytecode.NewTable, uint16(len(n.Keys)))
	return nil
}

// ---- StmtVisitor ----

func (c *Compiler) VisitExprStmt(n *ast.ExprStmt) interface{} {
	if _, isAssign := n.X.(*ast.Assign); isAssign {
		c.emitExpr(n.X)
		return nil
	}
	c.emitExpr(n.X)
	c.code().Emit(bytecode.Pop)
	return nil
}

func (c *Compiler) VisitBlock(n *ast.Block) interface{} {
	if n.NewScope {
		c.cur.depth++
	}
	c.compileStmts(n.Stmts)
	if n.NewScope {
		c.cur.depth--
	}
	return nil
}

func (c *Compiler) VisitDecl(n *ast.Decl) interface{} {
	if len(n.Rhs) != 0 && len(n.Rhs) != len(n.Names) {
		c.errf(n.Line(), "declaration has %d names but %d initializers", len(n.Names), len(n.Rhs))
	}
	isLocal := n.Local || c.cur.depth > 0
	for i, name := range n.Names {
		if i < len(n.Rhs) {
			c.emitExpr(n.Rhs[i])
		} else {
			c.code().Emit(bytecode.PushNull)
		}
		if isLocal {
			if _, dup := c.findLocalSameDepth(name); dup {
				c.errf(n.Line(), "duplicate local %q in this scope", name)
			}
			idx := c.allocLocal(name)
			c.code().Emit(bytecode.DefineLocal, uint16(idx))
		} else {
			nameIdx := c.code().AddString(name)
			c.code().Emit(bytecode.DefineGlobal, uint16(nameIdx))
		}
	}
	return nil
}

func (c *Compiler) VisitPrint(n *ast.Print) interface{} {
	for _, a := range n.Args {
		c.emitExpr(a)
	}
	op := bytecode.Print
	if n.Newline {
		op = bytecode.PrintLine
	}
	c.code().Emit(op, uint16(len(n.Args)))
	return nil
}

func (c *Compiler) VisitAssert(n *ast.Assert) interface{} {
	c.emitExpr(n.Cond)
	if n.Message != nil {
		c.emitExpr(n.Message)
		c.code().Emit(bytecode.Assert, 2)
	} else {
		c.code().Emit(bytecode.Assert, 1)
	}
	return nil
}

func (c *Compiler) VisitIf(n *ast.If) interface{} {
	var endJumps []int
	for _, cond := range n.Conds {
		c.emitExpr(cond.Cond)
		skip := c.code().EmitJump(bytecode.JumpFalse)
		c.VisitBlock(cond.Block)
		endJumps = append(endJumps, c.code().EmitJump(bytecode.Jump))
		c.code().PatchJump(skip)
	}
	if n.Else != nil {
		c.VisitBlock(n.Else)
	}
	for _, j := range endJumps {
		c.code().PatchJump(j)
	}
	return nil
}

func (c *Compiler) pushLoop(continueTarget int) *loopCtx {
	lc := &loopCtx{continueTarget: continueTarget}
	c.cur.loops = append(c.cur.loops, lc)
	return lc
}

func (c *Compiler) popLoop() {
	lc := c.cur.loops[len(c.cur.loops)-1]
	c.cur.loops = c.cur.loops[:len(c.cur.loops)-1]
	for _, j := range lc.breakJumps {
		c.code().PatchJump(j)
	}
}

func (c *Compiler) VisitWhile(n *ast.While) interface{} {
	loopStart := c.code().Here()
	c.pushLoop(loopStart)
	c.emitExpr(n.Cond)
	exit := c.code().EmitJump(bytecode.JumpFalse)
	c.VisitBlock(n.Body)
	j := c.code().EmitJump(bytecode.Jump)
	c.code().PatchJumpTo(j, loopStart)
	c.code().PatchJump(exit)
	c.popLoop()
	return nil
}

func (c *Compiler) VisitFor(n *ast.For) interface{} {
	c.cur.depth++
	varIdx := c.allocLocal(n.Var)
	c.emitExpr(n.Start)
	c.code().Emit(bytecode.DefineLocal, uint16(varIdx))
	endIdx := c.allocLocal("$end")
	c.emitExpr(n.End)
	c.code().Emit(bytecode.DefineLocal, uint16(endIdx))
	var stepIdx int
	hasStep := n.Step != nil
	if hasStep {
		stepIdx = c.allocLocal("$step")
		c.emitExpr(n.Step)
		c.code().Emit(bytecode.DefineLocal, uint16(stepIdx))
	}

	loopStart := c.code().Here()
	c.pushLoop(loopStart)
	c.code().Emit(bytecode.GetLocal, uint16(varIdx))
	c.code().Emit(bytecode.GetLocal, uint16(endIdx))
	if n.Down {
		c.code().Emit(bytecode.Less)
	} else {
		c.code().Emit(bytecode.Greater)
	}
	exit := c.code().EmitJump(bytecode.JumpTrue)

	c.VisitBlock(n.Body)

	if hasStep {
		c.code().Emit(bytecode.GetLocal, uint16(varIdx))
		c.code().Emit(bytecode.GetLocal, uint16(stepIdx))
		if n.Down {
			c.code().Emit(bytecode.Sub)
		} else {
			c.code().Emit(bytecode.Add)
		}
		c.code().Emit(bytecode.SetLocal, uint16(varIdx))
	} else if n.Down {
		c.code().Emit(bytecode.DecrementLocal, uint16(varIdx))
	} else {
		c.code().Emit(bytecode.IncrementLocal, uint16(varIdx))
	}
	j := c.code().EmitJump(bytecode.Jump)
	c.code().PatchJumpTo(j, loopStart)
	c.code().PatchJump(exit)
	c.popLoop()
	c.cur.depth--
	return nil
}

func (c *Compiler) VisitForeach(n *ast.Foreach) interface{} {
	c.cur.depth++
	c.emitExpr(n.Iterable)
	refFlag := uint16(0)
	if n.RefValue {
		refFlag = 1
	}
	c.code().Emit(bytecode.NewIterator, refFlag)
	iterIdx := c.allocLocal("$iter")
	c.code().Emit(bytecode.DefineLocal, uint16(iterIdx))
	keyIdx := c.allocLocal(n.Key)
	hasValue := n.Value != ""
	var valIdx int
	if hasValue {
		valIdx = c.allocLocal(n.Value)
	}

	loopStart := c.code().Here()
	c.pushLoop(loopStart)
	c.code().Emit(bytecode.GetLocal, uint16(iterIdx))
	c.code().Emit(bytecode.TestIterator)
	exit := c.code().EmitJump(bytecode.JumpFalse)

	// TestIterator peeked: the iterator copy it tested is still on the
	// stack, and NextKey consumes it.
	c.code().Emit(bytecode.NextKey)
	c.code().Emit(bytecode.DefineLocal, uint16(keyIdx))
	if hasValue {
		c.code().Emit(bytecode.GetLocal, uint16(iterIdx))
		c.code().Emit(bytecode.NextValue)
		c.code().Emit(bytecode.DefineLocal, uint16(valIdx))
	}

	c.VisitBlock(n.Body)
	j := c.code().EmitJump(bytecode.Jump)
	c.code().PatchJumpTo(j, loopStart)
	// The exhausted-test exit lands with the peeked iterator still on the
	// stack; break jumps (patched by popLoop) land after the Pop, with a
	// clean stack.
	c.code().PatchJump(exit)
	c.code().Emit(bytecode.Pop)
	c.popLoop()
	c.cur.depth--
	return nil
}

func (c *Compiler) VisitLoopExit(n *ast.LoopExit) interface{} {
	if len(c.cur.loops) == 0 {
		c.errf(n.Line(), "break/continue outside of a loop")
		return nil
	}
	lc := c.cur.loops[len(c.cur.loops)-1]
	j := c.code().EmitJump(bytecode.Jump)
	if n.IsBreak {
		lc.breakJumps = append(lc.breakJumps, j)
	} else {
		c.code().PatchJumpTo(j, lc.continueTarget)
	}
	return nil
}

func (c *Compiler) VisitRoutineDef(n *ast.RoutineDef) interface{} {
	child := types.NewRoutine(n.Name)
	child.Arity = len(n.Params)
	child.Parent = c.cur.routine
	for i, p := range n.Params {
		child.ParamNames = append(child.ParamNames, p.Name)
		var cls *class.Class
		if p.Type != nil {
			if ident, ok := p.Type.(*ast.Ident); ok {
				if found, ok2 := c.reg.Get(ident.Name); ok2 {
					cls = found
				} else {
					c.errf(n.Line(), "unknown type %q", ident.Name)
				}
			}
		}
		child.ParamClasses = append(child.ParamClasses, cls)
		if p.ByRef {
			child.SetParamBoundByRef(i)
		}
	}

	parentFrame := c.cur
	c.cur = &frame{routine: child, parent: parentFrame}
	frameAddr := c.code().Emit(bytecode.NewFrame, 0)
	for _, p := range n.Params {
		c.allocLocal(p.Name)
	}
	c.compileStmts(n.Body.Stmts)
	c.code().Emit(bytecode.PushNull)
	c.code().Emit(bytecode.Return)
	c.patchFrameSize(frameAddr)
	c.cur = parentFrame

	parentFrame.routine.Nested = append(parentFrame.routine.Nested, child)
	routineIdx := len(parentFrame.routine.Nested) - 1
	// Parameter classes and ref flags are resolved and attached directly
	// above, rather than via a runtime SetSignature pop sequence; narg is
	// 0 because no class values are popped at this site.
	c.code().Emit(bytecode.NewClosure, uint16(routineIdx), 0)

	if n.Local || parentFrame.depth > 0 || parentFrame.routine.Parent != nil {
		if idx, exists := c.findLocalSameDepthIn(parentFrame, n.Name); exists {
			c.code().Emit(bytecode.SetLocal, uint16(idx))
		} else {
			idx := c.allocLocalIn(parentFrame, n.Name)
			c.code().Emit(bytecode.DefineLocal, uint16(idx))
		}
	} else {
		nameIdx := c.code().AddString(n.Name)
		c.code().Emit(bytecode.SetGlobal, uint16(nameIdx))
	}
	return nil
}

// findLocalSameDepthIn/allocLocalIn mirror their c.cur counterparts but
// operate on an arbitrary frame, needed because VisitRoutineDef swaps
// c.cur to the child frame while compiling the body and must bind the
// resulting Function back into the *parent* frame's scope.
func (c *Compiler) findLocalSameDepthIn(fr *frame, name string) (int, bool) {
	for i := len(fr.locals) - 1; i >= 0; i-- {
		if fr.locals[i].depth < fr.depth {
			break
		}
		if fr.locals[i].name == name && fr.locals[i].depth == fr.depth {
			return fr.locals[i].idx, true
		}
	}
	return 0, false
}

func (c *Compiler) allocLocalIn(fr *frame, name string) int {
	idx := fr.nlocal
	fr.nlocal++
	fr.locals = append(fr.locals, localVar{name: name, idx: idx, depth: fr.depth})
	fr.routine.Locals = append(fr.routine.Locals, types.LocalSlot{Name: name, Depth: fr.depth})
	return idx
}

func (c *Compiler) VisitReturn(n *ast.Return) interface{} {
	if n.Value != nil {
		c.emitExpr(n.Value)
	} else {
		c.code().Emit(bytecode.PushNull)
	}
	c.code().Emit(bytecode.Return)
	return nil
}

func (c *Compiler) VisitThrow(n *ast.Throw) interface{} {
	c.emitExpr(n.Value)
	c.code().Emit(bytecode.Throw)
	return nil
}
