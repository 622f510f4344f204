// Package types implements the concrete built-in boxed heap types the
// compiler and interpreter rely on: string handle
// operations over the inline Str tag, List, Table, Set, File, Regex,
// Routine/Closure/Function, and the iterator hierarchy.
package types

import (
	"reflect"

	"lumen/internal/class"
	"lumen/internal/heap"
	"lumen/internal/value"
)

// NativeContext is the minimal host surface a NativeCallback needs: access
// to the garbage collector, to retain/release Values it stores or drops.
// Kept as a small interface (rather than an import of internal/runtime) so
// this package never depends upward on the runtime that assembles it.
type NativeContext interface {
	GC() *heap.GC
	Print(args []value.Value, newline bool)
}

// NativeCallback is the signature of every native (Go-implemented)
// callable the interpreter can invoke directly.
type NativeCallback func(ctx NativeContext, args []value.Value) (value.Value, error)

// Builtins collects the classes registered for every built-in boxed type,
// handed back to internal/runtime so the compiler/interpreter can look
// host types up in O(1).
type Builtins struct {
	List     *class.Class
	Table    *class.Class
	Set      *class.Class
	Array    *class.Class
	File     *class.Class
	Regex    *class.Class
	Function *class.Class
	Closure  *class.Class
	Routine  *class.Class

	ListIterator   *class.Class
	TableIterator  *class.Class
	StringIterator *class.Class
	FileIterator   *class.Class
	RegexIterator  *class.Class
}

// programGC and builtins are the process-wide GC and class snapshot that
// built-in method bodies reach for when they need to allocate a new
// container or look up a sibling type's class -- set once by
// RegisterBuiltins at bootstrap, for the single Interp a process runs.
var programGC *heap.GC
var builtins Builtins

// RegisterBuiltins registers every built-in boxed type's class descriptor
// (in dependency order, root to leaves), wires its polymorphic operation
// slots, and populates its built-in method table.
func RegisterBuiltins(gc *heap.GC, reg *class.Registry) Builtins {
	b := Builtins{}
	obj := reg.Object()

	b.List = reg.Register("List", obj, reflect.TypeOf(List{}))
	registerListSlots(b.List)
	registerListMethods(b.List)

	b.Table = reg.Register("Table", obj, reflect.TypeOf(Table{}))
	registerTableSlots(b.Table)
	registerTableMethods(b.Table)

	b.Set = reg.Register("Set", obj, reflect.TypeOf(Set{}))
	registerSetSlots(b.Set)
	registerSetMethods(b.Set)

	b.Array = reg.Register("Array", obj, reflect.TypeOf(Array{}))
	registerArraySlots(b.Array)

	b.File = reg.Register("File", obj, reflect.TypeOf(File{}))
	registerFileSlots(b.File)
	registerFileMethods(b.File)

	b.Regex = reg.Register("Regex", obj, reflect.TypeOf(Regex{}))
	registerRegexSlots(b.Regex)
	registerRegexMethods(b.Regex)

	b.Routine = reg.Register("Routine", obj, reflect.TypeOf(Routine{}))

	b.Closure = reg.Register("Closure", obj, reflect.TypeOf(Closure{}))
	registerClosureSlots(b.Closure)

	b.Function = reg.Register("Function", obj, reflect.TypeOf(Function{}))
	registerFunctionSlots(b.Function)

	b.ListIterator = reg.Register("ListIterator", obj, reflect.TypeOf(ListIterator{}))
	b.TableIterator = reg.Register("TableIterator", obj, reflect.TypeOf(TableIterator{}))
	b.StringIterator = reg.Register("StringIterator", obj, reflect.TypeOf(StringIterator{}))
	b.FileIterator = reg.Register("FileIterator", obj, reflect.TypeOf(FileIterator{}))
	b.RegexIterator = reg.Register("RegexIterator", obj, reflect.TypeOf(RegexIterator{}))

	registerClassRefSlots(reg.ClassOfClasses())

	programGC = gc
	builtins = b

	// Field access is dispatched
	// through the same generic member-table lookup for every container
	// type; only the classes exposing script-visible methods need it.
	get, set := value.FieldGetFunc(classGetField(gc, b.Function)), value.FieldSetFunc(classSetField)
	for _, cls := range []*class.Class{b.List, b.Table, b.Set, b.File, b.Regex} {
		cls.Slots.GetField = get
		cls.Slots.SetField = set
	}
	registerStringMethods(gc, b.Function)

	return b
}
