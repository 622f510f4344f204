// Package runtime assembles the engine: it bootstraps the class registry,
// registers the built-in boxed types, owns the garbage collector, the
// global module and the string intern set, and hands out interpreters.
package runtime

import (
	"io"
	"math/rand"
	"reflect"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"lumen/internal/class"
	"lumen/internal/compiler"
	"lumen/internal/dispatch"
	"lumen/internal/errors"
	"lumen/internal/heap"
	"lumen/internal/interp"
	"lumen/internal/lexer"
	"lumen/internal/parser"
	"lumen/internal/types"
	"lumen/internal/value"
)

// Options are the runtime's handful of knobs; the zero value is usable.
type Options struct {
	// GCThreshold is the candidate-list size at which a cycle
	// collection triggers automatically. 0 means the default.
	GCThreshold int
	// DispatchCacheSize bounds the overload-resolution memo. 0 means the
	// default.
	DispatchCacheSize int
	// Metrics registers the runtime's collectors on Registerer when set.
	Metrics    bool
	Registerer prometheus.Registerer
	// Seed seeds the PRNG behind list shuffle/sample; 0 leaves the
	// process default in place.
	Seed int64
}

const (
	defaultGCThreshold   = 256
	defaultDispatchCache = 512
)

// Runtime is one confined engine instance: it must only be used from the
// goroutine that created it.
type Runtime struct {
	gc       *heap.GC
	reg      *class.Registry
	builtins types.Builtins
	resolver *dispatch.Resolver
	globals  map[string]value.Value
	interner *Interner
	interp   *interp.Interp

	metrics *metrics
	closed  bool
}

// New bootstraps a runtime: Object and Class first, then the primitive
// classes, then every built-in boxed type in dependency order, and finally
// the constructor globals.
func New(opts Options) *Runtime {
	if opts.GCThreshold <= 0 {
		opts.GCThreshold = defaultGCThreshold
	}
	if opts.DispatchCacheSize <= 0 {
		opts.DispatchCacheSize = defaultDispatchCache
	}
	if opts.Seed != 0 {
		rand.Seed(opts.Seed)
	}

	gc := heap.NewGC(opts.GCThreshold)
	gc.Suspend() // no collection during bootstrap

	reg := class.NewRegistry()
	reg.Bootstrap()
	obj := reg.Object()

	prims := value.Primitives{
		Null:    reg.Register("Null", obj, nil),
		Boolean: reg.Register("Boolean", obj, reflect.TypeOf(false)),
		Integer: reg.Register("Integer", obj, reflect.TypeOf(int64(0))),
		Float:   reg.Register("Float", obj, reflect.TypeOf(float64(0))),
		String:  reg.Register("String", obj, reflect.TypeOf("")),
	}
	// Last-created runtime wins the process-wide primitive-class hookup;
	// runtimes are goroutine-confined and in practice a
	// process hosts exactly one.
	value.InitPrimitives(prims)

	builtins := types.RegisterBuiltins(gc, reg)

	rt := &Runtime{
		gc:       gc,
		reg:      reg,
		builtins: builtins,
		resolver: dispatch.NewResolver(opts.DispatchCacheSize),
		globals:  map[string]value.Value{},
		interner: NewInterner(),
	}
	for name, v := range types.BuiltinConstructors(gc, reg.ClassOfClasses(), builtins) {
		rt.globals[rt.interner.Intern(name)] = v
	}
	rt.interp = interp.New(gc, reg, builtins, rt.resolver, rt.globals)

	gc.Resume()

	if opts.Metrics {
		registerer := opts.Registerer
		if registerer == nil {
			registerer = prometheus.DefaultRegisterer
		}
		rt.metrics = newMetrics(registerer, rt)
	}
	return rt
}

// SetOutput redirects print/write output (stdout by default).
func (r *Runtime) SetOutput(w io.Writer) { r.interp.SetOutput(w) }

// GC exposes the collector, e.g. for an explicit collect from the CLI.
func (r *Runtime) GC() *heap.GC { return r.gc }

// Registry exposes the class registry (the disassembler and tests use it).
func (r *Runtime) Registry() *class.Registry { return r.reg }

// Builtins exposes the built-in type classes.
func (r *Runtime) Builtins() types.Builtins { return r.builtins }

// Global returns the current value of a global binding, if defined.
func (r *Runtime) Global(name string) (value.Value, bool) {
	return r.interp.Global(name)
}

// Compile turns source text into the program's root Routine. Scanner,
// parser and compiler diagnostics are folded into one SyntaxError.
func (r *Runtime) Compile(name, src string) (*types.Routine, error) {
	toks, lexErrs := lexer.New(src).Scan()
	if len(lexErrs) > 0 {
		return nil, errors.New(errors.SyntaxError, 0, "%s", strings.Join(lexErrs, "\n")).WithFile(name)
	}
	block, parseErrs := parser.New(toks).Parse()
	if len(parseErrs) > 0 {
		return nil, errors.New(errors.SyntaxError, 0, "%s", strings.Join(parseErrs, "\n")).WithFile(name)
	}
	root, compErrs := compiler.New(r.reg).CompileProgram(block)
	if len(compErrs) > 0 {
		return nil, errors.New(errors.SyntaxError, 0, "%s", strings.Join(compErrs, "\n")).WithFile(name)
	}
	return root, nil
}

// Run executes a compiled root routine to completion.
func (r *Runtime) Run(root *types.Routine) (value.Value, error) {
	return r.interp.Run(root)
}

// RunSource compiles and executes src in one step; run errors are stamped
// with the source name.
func (r *Runtime) RunSource(name, src string) (value.Value, error) {
	root, err := r.Compile(name, src)
	if err != nil {
		return value.Value{}, err
	}
	v, err := r.Run(root)
	if le, ok := err.(*errors.LumenError); ok && le.Location.File == "" {
		le.WithFile(name)
	}
	return v, err
}

// Collect forces one synchronous cycle-collection pass.
func (r *Runtime) Collect() { r.gc.Collect() }

// Close tears the runtime down in a fixed order:
// cycle collection is suspended for the whole teardown, globals are
// dropped, class member tables are finalised (breaking their cycles), and
// the heap statistics stop moving. Idempotent.
func (r *Runtime) Close() {
	if r.closed {
		return
	}
	r.closed = true
	r.gc.Suspend()
	for name, v := range r.globals {
		value.Drop(r.gc, v)
		delete(r.globals, name)
	}
	r.reg.Finalize()
}
