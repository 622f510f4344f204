package compiler_test

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lumen/internal/bytecode"
	"lumen/internal/class"
	"lumen/internal/compiler"
	"lumen/internal/lexer"
	"lumen/internal/parser"
	"lumen/internal/types"
)

func newRegistry(t *testing.T) *class.Registry {
	t.Helper()
	reg := class.NewRegistry()
	reg.Bootstrap()
	obj := reg.Object()
	reg.Register("Null", obj, nil)
	reg.Register("Boolean", obj, reflect.TypeOf(false))
	reg.Register("Integer", obj, reflect.TypeOf(int64(0)))
	reg.Register("Float", obj, reflect.TypeOf(float64(0)))
	reg.Register("String", obj, reflect.TypeOf(""))
	return reg
}

func compile(t *testing.T, src string) (*types.Routine, []string) {
	t.Helper()
	toks, lexErrs := lexer.New(src).Scan()
	require.Empty(t, lexErrs)
	block, parseErrs := parser.New(toks).Parse()
	require.Empty(t, parseErrs)
	return compiler.New(newRegistry(t)).CompileProgram(block)
}

func mustCompile(t *testing.T, src string) *types.Routine {
	t.Helper()
	r, errs := compile(t, src)
	require.Empty(t, errs)
	return r
}

// ops flattens the instruction stream into opcode/operand tuples.
type instr struct {
	addr int
	op   bytecode.Op
	args []uint16
}

func decode(r *types.Routine) []instr {
	var out []instr
	slots := r.Code.Slots
	for ip := 0; ip < len(slots); {
		op := bytecode.Op(slots[ip])
		n := op.Operands()
		out = append(out, instr{addr: ip, op: op, args: slots[ip+1 : ip+1+n]})
		ip += 1 + n
	}
	return out
}

func opcodes(r *types.Routine) []bytecode.Op {
	var out []bytecode.Op
	for _, in := range decode(r) {
		out = append(out, in.op)
	}
	return out
}

func TestSmallIntBoundary(t *testing.T) {
	r := mustCompile(t, "var a = 32767\nvar b = 32768\nvar c = -32768\nvar d = -32769")
	ins := decode(r)

	var smalls []int16
	var pooled []int64
	for _, in := range ins {
		switch in.op {
		case bytecode.PushSmallInt:
			smalls = append(smalls, int16(in.args[0]))
		case bytecode.PushInteger:
			pooled = append(pooled, r.Code.Ints[in.args[0]])
		}
	}
	assert.Equal(t, []int16{32767, -32768}, smalls)
	assert.Equal(t, []int64{32768, -32769}, pooled)
}

func TestNegativeLiteralFolded(t *testing.T) {
	r := mustCompile(t, "var a = -5")
	assert.NotContains(t, opcodes(r), bytecode.Negate)
	assert.Contains(t, opcodes(r), bytecode.PushSmallInt)
}

func TestJumpTargetsInRange(t *testing.T) {
	src := `
var n = 0
for i = 1 to 10 do
  if i % 2 == 0 then
    continue
  elsif i == 9 then
    break
  else
    n = n + i
  end
end
while n > 0 do n = n - 1 end
`
	r := mustCompile(t, src)
	for _, in := range decode(r) {
		if in.op.IsJump() {
			target := r.Code.JumpTarget(in.addr)
			assert.GreaterOrEqual(t, target, 0)
			assert.LessOrEqual(t, target, len(r.Code.Slots), "jump at %d escapes the code range", in.addr)
		}
	}
}

func TestLocalIndicesWithinFrame(t *testing.T) {
	src := `
function f(a, b)
  local x = a + b
  local y = x * 2
  return y
end
`
	r := mustCompile(t, src)
	require.Len(t, r.Nested, 1)
	child := r.Nested[0]
	ins := decode(child)

	require.Equal(t, bytecode.NewFrame, ins[0].op)
	nlocal := int(ins[0].args[0])
	assert.Equal(t, 4, nlocal)

	for _, in := range ins {
		switch in.op {
		case bytecode.GetLocal, bytecode.SetLocal, bytecode.DefineLocal, bytecode.GetLocalRef, bytecode.GetUniqueLocal:
			assert.Less(t, int(in.args[0]), nlocal)
		}
	}
}

func TestDuplicateLocalSameScope(t *testing.T) {
	_, errs := compile(t, "local x = 1\nlocal x = 2")
	require.NotEmpty(t, errs)
	assert.Contains(t, errs[0], "duplicate local")
}

func TestShadowingAcrossScopesAllowed(t *testing.T) {
	src := `
local x = 1
if true then
  local x = 2
end
`
	mustCompile(t, src)
}

func TestBreakOutsideLoop(t *testing.T) {
	_, errs := compile(t, "break")
	require.NotEmpty(t, errs)
	assert.Contains(t, errs[0], "outside of a loop")
}

func TestConcatFlattened(t *testing.T) {
	r := mustCompile(t, `var s = "a" & "b" & "c" & "d"`)
	var concats []uint16
	for _, in := range decode(r) {
		if in.op == bytecode.Concat {
			concats = append(concats, in.args[0])
		}
	}
	require.Len(t, concats, 1, "nested & chains flatten into one Concat")
	assert.Equal(t, uint16(4), concats[0])
}

func TestUpvalueCapture(t *testing.T) {
	src := `
function outer()
  local n = 0
  function inner()
    n = n + 1
    return n
  end
  return inner
end
`
	r := mustCompile(t, src)
	require.Len(t, r.Nested, 1)
	outer := r.Nested[0]
	require.Len(t, outer.Nested, 1)
	inner := outer.Nested[0]

	require.Len(t, inner.Upvalues, 1)
	assert.True(t, inner.Upvalues[0].IsLocal)
	assert.Equal(t, "n", inner.Upvalues[0].Name)

	ops := opcodes(inner)
	assert.Contains(t, ops, bytecode.GetUpvalue)
	assert.Contains(t, ops, bytecode.SetUpvalue)
}

func TestUpvalueChainThroughMiddleRoutine(t *testing.T) {
	src := `
function a()
  local v = 1
  function b()
    function c()
      return v
    end
    return c
  end
  return b
end
`
	r := mustCompile(t, src)
	b := r.Nested[0].Nested[0]
	c := b.Nested[0]
	require.Len(t, b.Upvalues, 1)
	assert.True(t, b.Upvalues[0].IsLocal, "b captures a's local directly")
	require.Len(t, c.Upvalues, 1)
	assert.False(t, c.Upvalues[0].IsLocal, "c forwards through b's upvalue")
}

func TestRefParameterFlags(t *testing.T) {
	r := mustCompile(t, `
function swapish(ref a, b as Integer)
  a = b
end
`)
	child := r.Nested[0]
	assert.True(t, child.ParamBoundByRef(0))
	assert.False(t, child.ParamBoundByRef(1))
	require.Len(t, child.ParamClasses, 2)
	assert.Nil(t, child.ParamClasses[0])
	require.NotNil(t, child.ParamClasses[1])
	assert.Equal(t, "Integer", child.ParamClasses[1].Name)
}

func TestCallEmitsPrecallAndArgVariants(t *testing.T) {
	r := mustCompile(t, `
function f(x) return x end
var a = 1
f(a)
`)
	ops := opcodes(r)
	assert.Contains(t, ops, bytecode.Precall)
	assert.Contains(t, ops, bytecode.Call)
	assert.Contains(t, ops, bytecode.GetGlobalArg, "bare identifier arguments use the Arg variant")
}

func TestForLoopUsesIncrementSpecialisation(t *testing.T) {
	r := mustCompile(t, "var total = 0\nfor i = 1 to 3 do total = total + i end")
	assert.Contains(t, opcodes(r), bytecode.IncrementLocal)
	assert.NotContains(t, opcodes(r), bytecode.DecrementLocal)

	r = mustCompile(t, "var total = 0\nfor i = 3 downto 1 do total = total + i end")
	assert.Contains(t, opcodes(r), bytecode.DecrementLocal)

	r = mustCompile(t, "var total = 0\nfor i = 1 to 10 step 2 do total = total + i end")
	assert.NotContains(t, opcodes(r), bytecode.IncrementLocal, "an explicit step defeats the specialisation")
}

func TestForeachLowering(t *testing.T) {
	r := mustCompile(t, "foreach k, v in [1, 2] do print k, v end")
	ops := opcodes(r)
	assert.Contains(t, ops, bytecode.NewIterator)
	assert.Contains(t, ops, bytecode.TestIterator)
	assert.Contains(t, ops, bytecode.NextKey)
	assert.Contains(t, ops, bytecode.NextValue)
}

func TestDeclarationArityMismatch(t *testing.T) {
	_, errs := compile(t, "var a, b = 1")
	require.NotEmpty(t, errs)
	assert.Contains(t, errs[0], "initializers")
}

func TestGlobalVsLocalDefinition(t *testing.T) {
	r := mustCompile(t, "var g = 1\nlocal l = 2")
	ops := opcodes(r)
	assert.Contains(t, ops, bytecode.DefineGlobal)
	assert.Contains(t, ops, bytecode.DefineLocal)
}
