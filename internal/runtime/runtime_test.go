package runtime_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lumen/internal/errors"
	"lumen/internal/runtime"
	"lumen/internal/value"
)

// run executes src on a fresh runtime and returns captured output.
func run(t *testing.T, src string) (string, *runtime.Runtime) {
	t.Helper()
	rt := runtime.New(runtime.Options{})
	t.Cleanup(rt.Close)
	var out bytes.Buffer
	rt.SetOutput(&out)
	_, err := rt.RunSource("<test>", src)
	require.NoError(t, err)
	return out.String(), rt
}

// runErr executes src expecting a failure and returns the error.
func runErr(t *testing.T, src string) *errors.LumenError {
	t.Helper()
	rt := runtime.New(runtime.Options{})
	t.Cleanup(rt.Close)
	rt.SetOutput(&bytes.Buffer{})
	_, err := rt.RunSource("<test>", src)
	require.Error(t, err)
	le, ok := err.(*errors.LumenError)
	require.True(t, ok, "expected a LumenError, got %T: %v", err, err)
	return le
}

func TestArithmeticPrecedence(t *testing.T) {
	_, rt := run(t, "var x = 2 + 3 * 4")
	v, ok := rt.Global("x")
	require.True(t, ok)
	resolved := value.Resolve(v)
	assert.Equal(t, value.Int, resolved.Tag())
	assert.Equal(t, int64(14), resolved.AsInt())
}

func TestRecursiveFactorial(t *testing.T) {
	out, _ := run(t, `
function fact(n as Integer)
  if n < 2 then return 1 end
  return n * fact(n - 1)
end
print fact(6)
`)
	assert.Equal(t, "720\n", out)
}

func TestForeachByRefMutatesList(t *testing.T) {
	out, _ := run(t, `
var a = [10, 20, 30]
foreach i, ref v in a do v = v + 1 end
print a
`)
	assert.Equal(t, "[11, 21, 31]\n", out)
}

func TestMultipleDispatch(t *testing.T) {
	out, _ := run(t, `
function pick(x as Integer) return "int" end
function pick(x as String)  return "str" end
print pick(1), pick("hi")
`)
	assert.Equal(t, "intstr\n", out)
}

func TestDispatchPrefersMatchingArity(t *testing.T) {
	out, _ := run(t, `
function pick(x as Integer) return "one" end
function pick(x as Integer, y as Integer) return "two" end
print pick(1)
print pick(1, 2)
`)
	assert.Equal(t, "one\ntwo\n", out)
}

func TestTableIndexingAndKeys(t *testing.T) {
	out, _ := run(t, `
var t = {"a": 1, "b": 2}
t["a"] = t["a"] + 10
print t.keys.sort, t["a"]
`)
	assert.Equal(t, "[\"a\", \"b\"]11\n", out)
}

func TestCycleReclaimed(t *testing.T) {
	_, rt := run(t, `
var a = []
var b = []
a.append(b)
b.append(a)
a = null
b = null
`)
	rt.Collect()
	stats := rt.GC().Stats()
	assert.GreaterOrEqual(t, stats.Reclaimed, uint64(2), "both lists of the cycle are reclaimed")
	assert.Equal(t, 0, stats.CandidatesNow)

	before := stats.Reclaimed
	rt.Collect()
	assert.Equal(t, before, rt.GC().Stats().Reclaimed, "a second pass reclaims nothing")
}

func TestWhileLoopWithBreakContinue(t *testing.T) {
	out, _ := run(t, `
var n = 0
var total = 0
while true do
  n = n + 1
  if n > 10 then break end
  if n % 2 == 0 then continue end
  total = total + n
end
print total
`)
	assert.Equal(t, "25\n", out) // 1+3+5+7+9
}

func TestForLoopVariants(t *testing.T) {
	out, _ := run(t, `
var up = 0
for i = 1 to 5 do up = up + i end
var down = 0
for i = 5 downto 1 do down = down + i end
var stepped = 0
for i = 1 to 10 step 3 do stepped = stepped + i end
print up, " ", down, " ", stepped
`)
	assert.Equal(t, "15 15 22\n", out) // stepped: 1+4+7+10
}

func TestClosureCapturesUpvalue(t *testing.T) {
	out, _ := run(t, `
function counter()
  local n = 0
  function inc()
    n = n + 1
    return n
  end
  return inc
end
var c = counter()
print c(), c(), c()
`)
	assert.Equal(t, "123\n", out)
}

func TestByRefParameter(t *testing.T) {
	out, _ := run(t, `
function bump(ref x)
  x = x + 1
end
var n = 5
bump(n)
bump(n)
print n
`)
	assert.Equal(t, "7\n", out)
}

func TestLogicalShortCircuit(t *testing.T) {
	out, _ := run(t, `
function boom()
  throw "must not evaluate"
end
print false and boom(), " ", true or boom()
`)
	assert.Equal(t, "false true\n", out)
}

func TestConcatOperator(t *testing.T) {
	out, _ := run(t, `print "n=" & 4 & "!" & 1.5`)
	assert.Equal(t, "n=4!1.5\n", out)
}

func TestSpaceshipOperator(t *testing.T) {
	out, _ := run(t, `print 1 <=> 2, 2 <=> 2, 3 <=> 2`)
	assert.Equal(t, "-101\n", out)
}

func TestWriteOmitsNewline(t *testing.T) {
	out, _ := run(t, "write \"a\"\nwrite \"b\"\nprint \"c\"")
	assert.Equal(t, "abc\n", out)
}

func TestStringMethods(t *testing.T) {
	out, _ := run(t, `
var s = "Hello, World"
print s.to_upper, " ", s.contains("World"), " ", s.grapheme_count
`)
	assert.Equal(t, "HELLO, WORLD true 12\n", out)
}

func TestStringIteration(t *testing.T) {
	out, _ := run(t, `
foreach i, ch in "abc" do write i, ch end
print ""
`)
	assert.Equal(t, "1a2b3c\n", out)
}

func TestSetOperations(t *testing.T) {
	out, _ := run(t, `
var s = Set(1, 2, 3)
var u = Set(3, 4)
print s.contains(2), " ", s.intersect(u).size, " ", s.unite(u).size
`)
	assert.Equal(t, "true 1 4\n", out)
}

func TestListUnshareOnIndexedWrite(t *testing.T) {
	out, _ := run(t, `
var a = [1, 2, 3]
var b = a
a[1] = 99
print a[1], " ", b[1]
`)
	assert.Equal(t, "99 1\n", out)
}

func TestArrayLiteral(t *testing.T) {
	out, _ := run(t, `
var m = @[1, 2; 3, 4]
print m[2, 1]
`)
	assert.Equal(t, "3\n", out)
}

func TestAssertPassesAndFails(t *testing.T) {
	run(t, "assert 1 + 1 == 2")

	le := runErr(t, `assert 1 == 2, "math broke"`)
	assert.Equal(t, errors.RuntimeError, le.Kind)
	assert.Contains(t, le.Message, "math broke")
}

func TestThrowRaisesRuntimeError(t *testing.T) {
	le := runErr(t, `throw "boom"`)
	assert.Equal(t, errors.RuntimeError, le.Kind)
	assert.Contains(t, le.Message, "boom")
}

func TestUndefinedVariableIsNameError(t *testing.T) {
	le := runErr(t, "print missing")
	assert.Equal(t, errors.NameError, le.Kind)
}

func TestAssignToUndefinedGlobalIsNameError(t *testing.T) {
	le := runErr(t, "x = 1")
	assert.Equal(t, errors.NameError, le.Kind)
}

func TestIndexOutOfRange(t *testing.T) {
	le := runErr(t, "var a = [1]\nprint a[5]")
	assert.Equal(t, errors.IndexError, le.Kind)
}

func TestEmptyListFirstRaises(t *testing.T) {
	le := runErr(t, "var a = []\nprint a.first")
	assert.Equal(t, errors.IndexError, le.Kind)
}

func TestStringIterationByRefRaises(t *testing.T) {
	le := runErr(t, `foreach i, ref ch in "ab" do print ch end`)
	assert.Equal(t, errors.ReferenceError, le.Kind)
}

func TestNoMatchingOverloadIsTypeError(t *testing.T) {
	le := runErr(t, `
function f(x as Integer) return x end
f("nope")
`)
	assert.Equal(t, errors.TypeError, le.Kind)
}

func TestMixedRefFlagsIsReferenceError(t *testing.T) {
	le := runErr(t, `
function g(ref x) return x end
function g(x as Integer) return x end
`)
	assert.Equal(t, errors.ReferenceError, le.Kind)
}

func TestMixedRefFlagsAcrossAritiesIsReferenceError(t *testing.T) {
	le := runErr(t, `
function h(ref x) return x end
function h(x as Integer, y as Integer) return x end
`)
	assert.Equal(t, errors.ReferenceError, le.Kind)
}

func TestRegexIteration(t *testing.T) {
	out, _ := run(t, `
var re = Regex("[0-9]+")
assert re.has_match("a1 b22 c333")
foreach i, m in re do write i, ":", m, " " end
print ""
`)
	assert.Equal(t, "1:1 2:22 3:333 \n", out)
}

func TestRegexIterationByRefRaises(t *testing.T) {
	le := runErr(t, `
var re = Regex("x")
assert re.has_match("xx")
foreach i, ref m in re do print m end
`)
	assert.Equal(t, errors.ReferenceError, le.Kind)
}

func TestCallingNonCallableIsTypeError(t *testing.T) {
	le := runErr(t, "var x = 1\nx(2)")
	assert.Equal(t, errors.TypeError, le.Kind)
}

func TestDivisionProducesFloat(t *testing.T) {
	out, _ := run(t, "print 7 / 2, \" \", 4 / 2")
	assert.Equal(t, "3.5 2\n", out)
}

func TestIntegerOverflowIsMathError(t *testing.T) {
	le := runErr(t, "var big = 9223372036854775807\nvar x = big + 1")
	assert.Equal(t, errors.MathError, le.Kind)
}

func TestErrorsCarrySourceLine(t *testing.T) {
	le := runErr(t, "var a = 1\nvar b = 2\nthrow \"here\"")
	assert.Equal(t, 3, le.Location.Line)
}

func TestTableForeach(t *testing.T) {
	out, _ := run(t, `
var t = {"x": 1, "y": 2}
var total = 0
foreach k, v in t do total = total + v end
print total
`)
	assert.Equal(t, "3\n", out)
}

func TestNullComparisons(t *testing.T) {
	out, _ := run(t, "print null == null, \" \", null == 1, \" \", null != 1")
	assert.Equal(t, "true false true\n", out)
}

func TestNanIsFalsy(t *testing.T) {
	out, _ := run(t, `
if nan then
  print "truthy"
else
  print "falsy"
end
`)
	assert.Equal(t, "falsy\n", out)
}

func TestLocalFunctionOverloadsInOneScope(t *testing.T) {
	out, _ := run(t, `
local function sq(x as Integer) return x * x end
local function sq(x as Float) return "float" end
print sq(3)
`)
	assert.Equal(t, "9\n", out)
}

func TestStatsLineRenders(t *testing.T) {
	_, rt := run(t, "var a = [1, 2, 3]")
	assert.Contains(t, rt.StatsLine(), "gc:")
}
