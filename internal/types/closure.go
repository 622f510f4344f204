package types

import (
	"lumen/internal/class"
	"lumen/internal/heap"
	"lumen/internal/value"
)

// Closure pairs a Routine with the upvalues it captured at creation
// time. Each upvalue is stored as an Alias-tagged Value so
// writes through the closure are visible to whatever else shares the same
// cell, and so the existing Copy/Drop/Resolve machinery handles its
// lifetime without a parallel bookkeeping path.
type Closure struct {
	hdr      *heap.Header
	gc       *heap.GC
	Routine  *Routine
	Upvalues []value.Value
}

func NewClosure(gc *heap.GC, cls *class.Class, r *Routine, upvalues []value.Value) *Closure {
	c := &Closure{gc: gc, Routine: r, Upvalues: upvalues}
	c.hdr = heap.NewHeader(c, cls, false)
	return c
}

func (c *Closure) Hdr() *heap.Header { return c.hdr }

func (c *Closure) Traverse(visit func(heap.Object)) {
	for _, uv := range c.Upvalues {
		resolved := value.Resolve(uv)
		if resolved.Tag() == value.Obj {
			if o := resolved.AsObject(); o != nil {
				visit(o)
			}
		}
	}
}

func (c *Closure) Destroy() {
	for _, uv := range c.Upvalues {
		value.Drop(c.gc, uv)
	}
	c.Upvalues = nil
}

func toStringClosure(o heap.Object, quote bool) string {
	c := o.(*Closure)
	return "<closure " + c.Routine.Name + ">"
}

func registerClosureSlots(cls *class.Class) {
	cls.Slots.ToString = value.ToStringFunc(toStringClosure)
}
