package bytecode

// LineRun is one run-length entry of the line table: count consecutive
// instruction slots all originate from source line Line.
type LineRun struct {
	Line  int
	Count int
}

// Code is the instruction stream of a single routine plus its constant
// pools and its line table. Jump targets are absolute slot offsets into
// Code.Slots, embedded as two little-endian 16-bit slots.
type Code struct {
	Slots []uint16

	Ints    []int64
	Floats  []float64
	Strings []string

	lines      []LineRun
	curLine    int
	curLineRun int // index into lines of the run currently being extended
}

func NewCode() *Code {
	return &Code{curLine: 0}
}

// SetLine records the source line that subsequent Emit calls belong to.
func (c *Code) SetLine(line int) {
	if line == c.curLine && len(c.lines) > 0 {
		return
	}
	c.curLine = line
	c.lines = append(c.lines, LineRun{Line: line, Count: 0})
	c.curLineRun = len(c.lines) - 1
}

func (c *Code) bump(n int) {
	if len(c.lines) == 0 {
		c.lines = append(c.lines, LineRun{Line: c.curLine, Count: 0})
		c.curLineRun = 0
	}
	c.lines[c.curLineRun].Count += n
}

// Emit appends op and its fixed operand slots, returning the address
// (slot index) the opcode was written at.
func (c *Code) Emit(op Op, operands ...uint16) int {
	addr := len(c.Slots)
	c.Slots = append(c.Slots, uint16(op))
	c.Slots = append(c.Slots, operands...)
	c.bump(1 + len(operands))
	return addr
}

// EmitJump appends a jump opcode with a placeholder 32-bit target and
// returns the address of the opcode, for later back-patching via PatchJump.
func (c *Code) EmitJump(op Op) int {
	return c.Emit(op, 0, 0)
}

// PatchJump rewrites the placeholder target of the jump opcode at addr to
// the current end of the instruction stream.
func (c *Code) PatchJump(addr int) {
	c.PatchJumpTo(addr, len(c.Slots))
}

// PatchJumpTo rewrites the placeholder target of the jump opcode at addr to
// the given absolute slot address.
func (c *Code) PatchJumpTo(addr, target int) {
	hi, lo := uint16(uint32(target)>>16), uint16(uint32(target)&0xffff)
	c.Slots[addr+1] = lo
	c.Slots[addr+2] = hi
}

// JumpTarget reads the 32-bit absolute address embedded at addr+1/addr+2.
func (c *Code) JumpTarget(addr int) int {
	lo, hi := c.Slots[addr+1], c.Slots[addr+2]
	return int(uint32(hi)<<16 | uint32(lo))
}

func (c *Code) AddInt(v int64) int {
	c.Ints = append(c.Ints, v)
	return len(c.Ints) - 1
}

func (c *Code) AddFloat(v float64) int {
	c.Floats = append(c.Floats, v)
	return len(c.Floats) - 1
}

func (c *Code) AddString(v string) int {
	for i, s := range c.Strings {
		if s == v {
			return i
		}
	}
	c.Strings = append(c.Strings, v)
	return len(c.Strings) - 1
}

// Here returns the address instructions emitted next would land at; used by
// loop-start bookmarks in the compiler.
func (c *Code) Here() int { return len(c.Slots) }

// LineFor maps an instruction address to its originating source line via
// the run-length line table, without bloating the bytecode with a
// per-instruction line field.
func (c *Code) LineFor(addr int) int {
	remaining := addr
	for _, run := range c.lines {
		if remaining < run.Count {
			return run.Line
		}
		remaining -= run.Count
	}
	if len(c.lines) > 0 {
		return c.lines[len(c.lines)-1].Line
	}
	return 0
}

// Lines exposes the run-length line table, e.g. for the disassembler.
func (c *Code) Lines() []LineRun { return c.lines }
