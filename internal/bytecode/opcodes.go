// Package bytecode defines the instruction set the compiler emits and the
// interpreter executes: a 16-bit opcode followed by 0-2
// operand slots of 16 bits each, with jump targets as 32-bit little-endian
// values spanning two adjacent slots.
package bytecode

// Op is one instruction opcode.
type Op uint16

const (
	PushNull Op = iota
	PushTrue
	PushFalse
	PushBoolean
	PushNan
	PushSmallInt
	PushInteger
	PushFloat
	PushString

	Pop

	Add
	Sub
	Mul
	Div
	Mod
	Pow
	Negate
	Not

	Equal
	NotEqual
	Less
	LessEqual
	Greater
	GreaterEqual
	Compare

	Concat

	Jump
	JumpFalse
	JumpTrue

	NewFrame

	GetLocal
	GetLocalArg
	GetLocalRef
	GetUniqueLocal
	SetLocal
	ClearLocal
	DefineLocal
	IncrementLocal
	DecrementLocal

	GetGlobal
	GetGlobalArg
	GetGlobalRef
	GetUniqueGlobal
	SetGlobal
	DefineGlobal

	GetUpvalue
	GetUpvalueArg
	GetUpvalueRef
	GetUniqueUpvalue
	SetUpvalue

	GetIndex
	GetIndexArg
	GetIndexRef
	SetIndex

	GetField
	GetFieldArg
	GetFieldRef
	SetField

	NewList
	NewTable
	NewSet
	NewArray

	NewClosure
	SetSignature

	NewIterator
	TestIterator
	NextKey
	NextValue

	Precall
	Call
	Return

	Print
	PrintLine

	Assert
	Throw
)

var names = map[Op]string{
	PushNull: "PushNull", PushTrue: "PushTrue", PushFalse: "PushFalse",
	PushBoolean: "PushBoolean", PushNan: "PushNan", PushSmallInt: "PushSmallInt",
	PushInteger: "PushInteger", PushFloat: "PushFloat", PushString: "PushString",
	Pop: "Pop",
	Add: "Add", Sub: "Sub", Mul: "Mul", Div: "Div", Mod: "Mod", Pow: "Pow",
	Negate: "Negate", Not: "Not",
	Equal: "Equal", NotEqual: "NotEqual", Less: "Less", LessEqual: "LessEqual",
	Greater: "Greater", GreaterEqual: "GreaterEqual", Compare: "Compare",
	Concat: "Concat",
	Jump:   "Jump", JumpFalse: "JumpFalse", JumpTrue: "JumpTrue",
	NewFrame: "NewFrame",
	GetLocal: "GetLocal", GetLocalArg: "GetLocalArg", GetLocalRef: "GetLocalRef",
	GetUniqueLocal: "GetUniqueLocal", SetLocal: "SetLocal", ClearLocal: "ClearLocal",
	DefineLocal: "DefineLocal", IncrementLocal: "IncrementLocal", DecrementLocal: "DecrementLocal",
	GetGlobal: "GetGlobal", GetGlobalArg: "GetGlobalArg", GetGlobalRef: "GetGlobalRef",
	GetUniqueGlobal: "GetUniqueGlobal", SetGlobal: "SetGlobal", DefineGlobal: "DefineGlobal",
	GetUpvalue: "GetUpvalue", GetUpvalueArg: "GetUpvalueArg", GetUpvalueRef: "GetUpvalueRef",
	GetUniqueUpvalue: "GetUniqueUpvalue", SetUpvalue: "SetUpvalue",
	GetIndex: "GetIndex", GetIndexArg: "GetIndexArg", GetIndexRef: "GetIndexRef", SetIndex: "SetIndex",
	GetField: "GetField", GetFieldArg: "GetFieldArg", GetFieldRef: "GetFieldRef", SetField: "SetField",
	NewList: "NewList", NewTable: "NewTable", NewSet: "NewSet", NewArray: "NewArray",
	NewClosure: "NewClosure", SetSignature: "SetSignature",
	NewIterator: "NewIterator", TestIterator: "TestIterator", NextKey: "NextKey", NextValue: "NextValue",
	Precall: "Precall", Call: "Call", Return: "Return",
	Print: "Print", PrintLine: "PrintLine",
	Assert: "Assert", Throw: "Throw",
}

func (op Op) String() string {
	if n, ok := names[op]; ok {
		return n
	}
	return "Op(?)"
}

// Operands reports how many 16-bit operand slots follow op in the stream.
func (op Op) Operands() int {
	switch op {
	case PushNull, PushTrue, PushFalse, PushNan, Pop,
		Add, Sub, Mul, Div, Mod, Pow, Negate, Not,
		Equal, NotEqual, Less, LessEqual, Greater, GreaterEqual, Compare,
		Return, Precall, TestIterator, NextKey, NextValue, Throw:
		return 0
	case Jump, JumpFalse, JumpTrue, NewArray, NewClosure, SetSignature,
		GetLocalArg, GetGlobalArg, GetUpvalueArg, GetIndexArg, GetFieldArg:
		return 2
	default:
		return 1
	}
}

// IsJump reports whether op carries an absolute 32-bit jump address in its
// first two operand slots.
func (op Op) IsJump() bool {
	return op == Jump || op == JumpFalse || op == JumpTrue
}
