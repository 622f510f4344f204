package disasm_test

import (
	"reflect"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lumen/internal/class"
	"lumen/internal/compiler"
	"lumen/internal/disasm"
	"lumen/internal/lexer"
	"lumen/internal/parser"
	"lumen/internal/types"
)

func compile(t *testing.T, src string) *types.Routine {
	t.Helper()
	reg := class.NewRegistry()
	reg.Bootstrap()
	obj := reg.Object()
	reg.Register("Integer", obj, reflect.TypeOf(int64(0)))
	reg.Register("String", obj, reflect.TypeOf(""))

	toks, lexErrs := lexer.New(src).Scan()
	require.Empty(t, lexErrs)
	block, parseErrs := parser.New(toks).Parse()
	require.Empty(t, parseErrs)
	root, errs := compiler.New(reg).CompileProgram(block)
	require.Empty(t, errs)
	return root
}

func TestLineFormat(t *testing.T) {
	root := compile(t, "var x = 5")
	lines := disasm.Lines(root)
	require.NotEmpty(t, lines)

	// offset   line   NAME   operands   ; comment
	pattern := regexp.MustCompile(`^\d{4}\s+\d+\s+\w+`)
	for _, l := range lines {
		assert.Regexp(t, pattern, l)
	}
}

func TestCommentsResolvePools(t *testing.T) {
	root := compile(t, `var s = "hello"
var big = 100000`)
	out := disasm.Program(root)
	assert.Contains(t, out, `"hello"`, "string pool indices resolve to their values")
	assert.Contains(t, out, "100,000", "large integers are humanised")
	assert.Contains(t, out, `"s"`, "global writes name their target")
}

func TestNestedRoutinesAppended(t *testing.T) {
	root := compile(t, `
function outer()
  function inner()
    return 1
  end
  return inner
end
`)
	out := disasm.Program(root)
	assert.Contains(t, out, "routine outer")
	assert.Contains(t, out, "routine inner")
	assert.Contains(t, out, "routine <script>")
}

func TestLocalAndUpvalueComments(t *testing.T) {
	root := compile(t, `
function outer()
  local n = 1
  function inner()
    return n
  end
  return inner
end
`)
	out := disasm.Program(root)
	assert.Contains(t, out, "GetUpvalue")
	assert.Contains(t, out, "; n")
}
