// Package disasm renders compiled routines, one line per instruction --
// `offset   line   NAME   op1 op2   ; comment` -- with nested routines
// appended as an indented tree below their parent.
package disasm

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/kr/pretty"
	"github.com/xlab/treeprint"

	"lumen/internal/bytecode"
	"lumen/internal/types"
)

// Program renders root and every nested routine, outermost first.
func Program(root *types.Routine) string {
	tree := treeprint.NewWithRoot(routineTitle(root))
	addRoutine(tree, root)
	return tree.String()
}

func routineTitle(r *types.Routine) string {
	return fmt.Sprintf("routine %s (arity %d, %d upvalues) %s", r.Name, r.Arity, len(r.Upvalues), r.ID)
}

func addRoutine(node treeprint.Tree, r *types.Routine) {
	for _, line := range Lines(r) {
		node.AddNode(line)
	}
	if pools := poolSummary(r); pools != "" {
		node.AddNode(pools)
	}
	for _, child := range r.Nested {
		sub := node.AddBranch(routineTitle(child))
		addRoutine(sub, child)
	}
}

// poolSummary formats the non-empty constant pools compactly; composite
// pools go through kr/pretty so long entries stay readable.
func poolSummary(r *types.Routine) string {
	var parts []string
	if len(r.Code.Ints) > 0 {
		parts = append(parts, "ints: "+pretty.Sprint(r.Code.Ints))
	}
	if len(r.Code.Floats) > 0 {
		parts = append(parts, "floats: "+pretty.Sprint(r.Code.Floats))
	}
	if len(r.Code.Strings) > 0 {
		parts = append(parts, "strings: "+pretty.Sprint(r.Code.Strings))
	}
	if len(parts) == 0 {
		return ""
	}
	return "pools  " + strings.Join(parts, "  ")
}

// Lines disassembles one routine's instruction stream, one string per
// instruction.
func Lines(r *types.Routine) []string {
	code := r.Code
	var out []string
	for ip := 0; ip < len(code.Slots); {
		op := bytecode.Op(code.Slots[ip])
		n := op.Operands()
		ops := make([]uint16, n)
		for k := 0; k < n; k++ {
			ops[k] = code.Slots[ip+1+k]
		}
		out = append(out, formatOne(r, ip, op, ops))
		ip += 1 + n
	}
	return out
}

func formatOne(r *types.Routine, ip int, op bytecode.Op, ops []uint16) string {
	code := r.Code
	var sb strings.Builder
	fmt.Fprintf(&sb, "%04d   %4d   %-18s", ip, code.LineFor(ip), op.String())

	if op.IsJump() {
		fmt.Fprintf(&sb, "%-12d", code.JumpTarget(ip))
	} else {
		var rendered []string
		for _, o := range ops {
			rendered = append(rendered, strconv.Itoa(int(o)))
		}
		fmt.Fprintf(&sb, "%-12s", strings.Join(rendered, " "))
	}

	if c := comment(r, op, ops); c != "" {
		sb.WriteString("; " + c)
	}
	return strings.TrimRight(sb.String(), " ")
}

// comment resolves pool indices and names so the listing reads without
// cross-referencing the pools.
func comment(r *types.Routine, op bytecode.Op, ops []uint16) string {
	code := r.Code
	switch op {
	case bytecode.PushSmallInt:
		return strconv.Itoa(int(int16(ops[0])))
	case bytecode.PushInteger:
		return humanize.Comma(code.Ints[ops[0]])
	case bytecode.PushFloat:
		return strconv.FormatFloat(code.Floats[ops[0]], 'g', -1, 64)
	case bytecode.PushString, bytecode.GetGlobal, bytecode.GetGlobalRef,
		bytecode.GetGlobalArg, bytecode.GetUniqueGlobal,
		bytecode.SetGlobal, bytecode.DefineGlobal,
		bytecode.GetField, bytecode.GetFieldRef, bytecode.GetFieldArg, bytecode.SetField:
		return strconv.Quote(code.Strings[ops[0]])
	case bytecode.GetLocal, bytecode.GetLocalRef, bytecode.GetLocalArg,
		bytecode.GetUniqueLocal, bytecode.SetLocal, bytecode.ClearLocal,
		bytecode.DefineLocal, bytecode.IncrementLocal, bytecode.DecrementLocal:
		if int(ops[0]) < len(r.Locals) {
			return r.Locals[ops[0]].Name
		}
	case bytecode.GetUpvalue, bytecode.GetUpvalueRef, bytecode.GetUpvalueArg,
		bytecode.GetUniqueUpvalue, bytecode.SetUpvalue:
		if int(ops[0]) < len(r.Upvalues) {
			return r.Upvalues[ops[0]].Name
		}
	case bytecode.NewClosure:
		if int(ops[0]) < len(r.Nested) {
			return r.Nested[ops[0]].Name
		}
	}
	return ""
}
