package bytecode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmitAndOperandWidths(t *testing.T) {
	c := NewCode()
	c.SetLine(1)
	addr := c.Emit(PushSmallInt, 7)
	assert.Equal(t, 0, addr)
	assert.Equal(t, 2, c.Here())

	addr = c.Emit(Add)
	assert.Equal(t, 2, addr)
	assert.Equal(t, 3, c.Here())

	assert.Equal(t, 0, Add.Operands())
	assert.Equal(t, 1, PushSmallInt.Operands())
	assert.Equal(t, 2, Jump.Operands())
	assert.Equal(t, 2, NewClosure.Operands())
	assert.Equal(t, 2, GetLocalArg.Operands())
}

func TestJumpBackPatch(t *testing.T) {
	c := NewCode()
	c.SetLine(1)
	j := c.EmitJump(JumpFalse)
	c.Emit(PushNull)
	c.Emit(Pop)
	c.PatchJump(j)

	assert.Equal(t, c.Here(), c.JumpTarget(j))
}

// Targets above 16 bits must survive the two-slot little-endian encoding.
func TestJumpTargetWideRoundTrip(t *testing.T) {
	c := NewCode()
	c.SetLine(1)
	j := c.EmitJump(Jump)
	c.PatchJumpTo(j, 0x12345)
	assert.Equal(t, 0x12345, c.JumpTarget(j))
	assert.Equal(t, uint16(0x2345), c.Slots[j+1], "low half first")
	assert.Equal(t, uint16(0x1), c.Slots[j+2])
}

func TestStringPoolDeduplicates(t *testing.T) {
	c := NewCode()
	i1 := c.AddString("x")
	i2 := c.AddString("y")
	i3 := c.AddString("x")
	assert.Equal(t, i1, i3)
	assert.NotEqual(t, i1, i2)
	assert.Len(t, c.Strings, 2)
}

func TestLineTableRunLength(t *testing.T) {
	c := NewCode()
	c.SetLine(1)
	c.Emit(PushNull)         // slots 0
	c.Emit(PushSmallInt, 3)  // slots 1-2
	c.SetLine(2)
	jump := c.Emit(Jump, 0, 0) // slots 3-5
	c.SetLine(5)
	c.Emit(Return) // slot 6

	assert.Equal(t, 1, c.LineFor(0))
	assert.Equal(t, 1, c.LineFor(1))
	assert.Equal(t, 2, c.LineFor(jump))
	assert.Equal(t, 5, c.LineFor(6))

	runs := c.Lines()
	require.Len(t, runs, 3)
	assert.Equal(t, LineRun{Line: 1, Count: 3}, runs[0])
	assert.Equal(t, LineRun{Line: 2, Count: 3}, runs[1])
	assert.Equal(t, LineRun{Line: 5, Count: 1}, runs[2])
}
