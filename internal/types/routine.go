package types

import (
	"github.com/google/uuid"

	"lumen/internal/bytecode"
	"lumen/internal/class"
)

// LocalSlot describes one local variable slot within a Routine's frame.
type LocalSlot struct {
	Name  string
	Depth int
}

// UpvalueDesc describes how a Routine captures one upvalue: either lifted
// directly from the enclosing frame's local slot (IsLocal), or forwarded
// from the enclosing routine's own upvalue list.
type UpvalueDesc struct {
	Name    string
	Index   int
	IsLocal bool
}

// Routine is compiled code for one function body: the
// bytecode, its local/upvalue layout, and per-parameter dispatch types.
// It is never heap-managed on its own -- it is reachable only via the
// Closure(s) that share it, and Go's own GC reclaims it once every closure
// referencing it is gone: a Closure owns its Routine, shared, unmanaged.
type Routine struct {
	ID       uuid.UUID
	Name     string
	Code     *bytecode.Code
	Arity    int
	RefFlags uint64 // bit i set means parameter i is bound by reference

	ParamNames   []string
	ParamClasses []*class.Class // nil entry means "untyped" (matches Object)

	Locals   []LocalSlot
	Upvalues []UpvalueDesc

	Nested []*Routine // routines for nested function literals, by pool index
	Parent *Routine
}

func NewRoutine(name string) *Routine {
	return &Routine{ID: uuid.New(), Name: name, Code: bytecode.NewCode()}
}

// ParamBoundByRef reports whether the i'th parameter is bound as an alias
//, 0-indexed.
func (r *Routine) ParamBoundByRef(i int) bool {
	if i < 0 || i >= 64 {
		return false
	}
	return r.RefFlags&(1<<uint(i)) != 0
}

func (r *Routine) SetParamBoundByRef(i int) {
	if i >= 0 && i < 64 {
		r.RefFlags |= 1 << uint(i)
	}
}
