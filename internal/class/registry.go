package class

import "reflect"

// Registry is the process-wide (in practice, per-runtime) sequence of
// class descriptors. Bootstrap registers Object then Class before any
// other type. Neither root is patched afterwards: a Class descriptor
// carries no class pointer of its own.
type Registry struct {
	classes []*Class
	byName  map[string]*Class

	objectClass *Class
	classClass  *Class
}

func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]*Class)}
}

// Bootstrap registers the two root classes: Object (the universal base)
// and Class (the class of classes, so that class values passed around as
// constructors have a class themselves). Must run exactly once, before any
// other Register call.
func (r *Registry) Bootstrap() {
	if r.objectClass != nil {
		return // already bootstrapped; guards the one-shot invariant
	}
	object := &Class{Name: "Object", Members: map[string]interface{}{}}
	object.Chain = []*Class{object}
	object.Depth = 0
	r.add(object)
	r.objectClass = object

	classClass := &Class{Name: "Class", Members: map[string]interface{}{}}
	classClass.Chain = []*Class{object, classClass}
	classClass.Depth = 1
	r.add(classClass)
	r.classClass = classClass
}

func (r *Registry) add(c *Class) {
	r.classes = append(r.classes, c)
	r.byName[c.Name] = c
}

// Register adds a new class inheriting (singly) from base, in dependency
// order (root to leaves). hostType identifies
// the Go representation backing this class, for safe downcasts.
func (r *Registry) Register(name string, base *Class, hostType reflect.Type) *Class {
	if base == nil {
		base = r.objectClass
	}
	c := &Class{
		Name:     name,
		HostType: hostType,
		Members:  map[string]interface{}{},
	}
	c.Chain = append(append([]*Class{}, base.Chain...), c)
	c.Depth = len(c.Chain) - 1
	r.add(c)
	return c
}

// Get looks up a registered class by name.
func (r *Registry) Get(name string) (*Class, bool) {
	c, ok := r.byName[name]
	return c, ok
}

// MustGet panics if name was never registered; used only for classes the
// bootstrap sequence is known to have already registered.
func (r *Registry) MustGet(name string) *Class {
	c, ok := r.byName[name]
	if !ok {
		panic("class: unregistered class " + name)
	}
	return c
}

// Object returns the root class every value ultimately inherits from.
func (r *Registry) Object() *Class { return r.objectClass }

// ClassOfClasses returns the "Class" class (the class of classes).
func (r *Registry) ClassOfClasses() *Class { return r.classClass }

// All returns every registered class in registration order.
func (r *Registry) All() []*Class { return r.classes }

// Finalize breaks member-table cycles before classes themselves are
// released: built-in methods often close over the class they belong to,
// and class Members can hold Function values capturing classes as
// parameter types, so the table is a genuine (if finite, process-lifetime)
// reference cycle. Clearing it lets the classes themselves be released in
// a controlled order at shutdown.
func (r *Registry) Finalize() {
	for _, c := range r.classes {
		for k := range c.Members {
			delete(c.Members, k)
		}
	}
}
