package parser_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lumen/internal/ast"
	"lumen/internal/lexer"
	"lumen/internal/parser"
)

func parse(t *testing.T, src string) *ast.Block {
	t.Helper()
	toks, lexErrs := lexer.New(src).Scan()
	require.Empty(t, lexErrs)
	block, errs := parser.New(toks).Parse()
	require.Empty(t, errs)
	return block
}

func TestPrecedence(t *testing.T) {
	block := parse(t, "var x = 2 + 3 * 4")
	decl := block.Stmts[0].(*ast.Decl)
	add := decl.Rhs[0].(*ast.Binary)
	assert.Equal(t, "+", add.Op)
	mul := add.Right.(*ast.Binary)
	assert.Equal(t, "*", mul.Op)
}

func TestConcatIsFlattened(t *testing.T) {
	block := parse(t, `var s = "a" & "b" & "c"`)
	decl := block.Stmts[0].(*ast.Decl)
	concat := decl.Rhs[0].(*ast.Concat)
	assert.Len(t, concat.Parts, 3)
}

func TestLogicalNodes(t *testing.T) {
	block := parse(t, "var x = true and false or true")
	decl := block.Stmts[0].(*ast.Decl)
	or := decl.Rhs[0].(*ast.Logical)
	assert.Equal(t, "or", or.Op)
	and := or.Left.(*ast.Logical)
	assert.Equal(t, "and", and.Op)
}

func TestFunctionParams(t *testing.T) {
	block := parse(t, "function f(ref a, b as Integer, c) return a end")
	def := block.Stmts[0].(*ast.RoutineDef)
	require.Len(t, def.Params, 3)
	assert.True(t, def.Params[0].ByRef)
	assert.Nil(t, def.Params[0].Type)
	require.NotNil(t, def.Params[1].Type)
	assert.Equal(t, "Integer", def.Params[1].Type.(*ast.Ident).Name)
	assert.False(t, def.Params[2].ByRef)
}

func TestLocalFunction(t *testing.T) {
	block := parse(t, "local function f() return 1 end")
	def := block.Stmts[0].(*ast.RoutineDef)
	assert.True(t, def.Local)
}

func TestForeachWithRefValue(t *testing.T) {
	block := parse(t, "foreach k, ref v in xs do print v end")
	fe := block.Stmts[0].(*ast.Foreach)
	assert.Equal(t, "k", fe.Key)
	assert.Equal(t, "v", fe.Value)
	assert.True(t, fe.RefValue)
}

func TestForDowntoWithStep(t *testing.T) {
	block := parse(t, "for i = 10 downto 0 step 2 do pass end")
	f := block.Stmts[0].(*ast.For)
	assert.True(t, f.Down)
	assert.NotNil(t, f.Step)
}

func TestIfElsifElse(t *testing.T) {
	block := parse(t, `
if a then print 1
elsif b then print 2
elsif c then print 3
else print 4
end`)
	stmt := block.Stmts[0].(*ast.If)
	assert.Len(t, stmt.Conds, 3)
	assert.NotNil(t, stmt.Else)
}

func TestTableAndListLiterals(t *testing.T) {
	block := parse(t, `var t = {"a": 1}
var l = [1, 2, 3]
var m = @[1, 2; 3, 4]`)
	tbl := block.Stmts[0].(*ast.Decl).Rhs[0].(*ast.TableLit)
	assert.Len(t, tbl.Keys, 1)
	lst := block.Stmts[1].(*ast.Decl).Rhs[0].(*ast.ListLit)
	assert.Len(t, lst.Elems, 3)
	arr := block.Stmts[2].(*ast.Decl).Rhs[0].(*ast.ArrayLit)
	require.Len(t, arr.Rows, 2)
	assert.Len(t, arr.Rows[0], 2)
}

func TestIndexFieldCallChain(t *testing.T) {
	block := parse(t, "t.keys.sort")
	field := block.Stmts[0].(*ast.ExprStmt).X.(*ast.Field)
	assert.Equal(t, "sort", field.Name)
	inner := field.Object.(*ast.Field)
	assert.Equal(t, "keys", inner.Name)

	block = parse(t, "m[1, 2]")
	idx := block.Stmts[0].(*ast.ExprStmt).X.(*ast.Index)
	assert.Len(t, idx.Indices, 2)
}

func TestRefArgument(t *testing.T) {
	block := parse(t, "f(ref x, 1)")
	call := block.Stmts[0].(*ast.ExprStmt).X.(*ast.Call)
	require.Len(t, call.Args, 2)
	_, isRef := call.Args[0].(*ast.Ref)
	assert.True(t, isRef)
}

func TestSyntaxErrorReported(t *testing.T) {
	toks, _ := lexer.New("if then").Scan()
	_, errs := parser.New(toks).Parse()
	assert.NotEmpty(t, errs)
}
