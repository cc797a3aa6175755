package value

import (
	"sort"
	"sync/atomic"
)

// TypeObject is an object group: objects created at the same site share a
// group, and the group accumulates the heap types written to their
// properties and elements. A singleton group has exactly one member.
type TypeObject struct {
	id        uint32
	proto     *Object
	singleton bool
	props     map[string]*TypeSet
	elems     TypeSet
}

var groupIDs atomic.Uint32

func NewTypeObject(proto *Object) *TypeObject {
	return &TypeObject{id: groupIDs.Add(1), proto: proto}
}

// NewSingletonTypeObject returns a group for exactly one object.
func NewSingletonTypeObject(proto *Object) *TypeObject {
	g := NewTypeObject(proto)
	g.singleton = true
	return g
}

func (g *TypeObject) ID() uint32      { return g.id }
func (g *TypeObject) Proto() *Object  { return g.proto }
func (g *TypeObject) Singleton() bool { return g.singleton }

// PropertyTypes returns the heap type set of the named property, creating
// it on first use.
func (g *TypeObject) PropertyTypes(name string) *TypeSet {
	if g.props == nil {
		g.props = make(map[string]*TypeSet)
	}
	ts, ok := g.props[name]
	if !ok {
		ts = &TypeSet{}
		g.props[name] = ts
	}
	return ts
}

// ElementTypes returns the heap type set shared by all indexed elements.
func (g *TypeObject) ElementTypes() *TypeSet { return &g.elems }

// PropertyNames lists the properties with recorded types, sorted.
func (g *TypeObject) PropertyNames() []string {
	names := make([]string, 0, len(g.props))
	for n := range g.props {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// MaxTypeSetObjects bounds the number of distinct objects and groups a type
// set tracks before it degrades to "any object".
const MaxTypeSetObjects = 8

// TypeSet is a set of observed value types: primitive tags, specific
// singleton objects, and groups.
type TypeSet struct {
	flags     uint32
	anyObject bool
	objects   []*Object
	groups    []*TypeObject
}

const flagUnknown = 1 << 31

func primitiveFlag(t Type) uint32 { return 1 << t }

// Add records the type of v and reports whether the set changed.
func (ts *TypeSet) Add(v Value) bool {
	if ts.flags&flagUnknown != 0 {
		return false
	}
	if !v.IsObject() {
		f := primitiveFlag(v.Type())
		if ts.flags&f != 0 {
			return false
		}
		ts.flags |= f
		return true
	}
	if ts.Has(v) {
		return false
	}
	if len(ts.objects)+len(ts.groups) >= MaxTypeSetObjects {
		ts.anyObject = true
		ts.objects, ts.groups = nil, nil
		return true
	}
	o := v.ToObject()
	if g := o.Group(); g != nil && !g.Singleton() {
		ts.groups = append(ts.groups, g)
	} else {
		ts.objects = append(ts.objects, o)
	}
	return true
}

// Has reports whether the type of v is already in the set.
func (ts *TypeSet) Has(v Value) bool {
	if ts.flags&flagUnknown != 0 {
		return true
	}
	if !v.IsObject() {
		return ts.flags&primitiveFlag(v.Type()) != 0
	}
	if ts.anyObject {
		return true
	}
	o := v.ToObject()
	for _, obj := range ts.objects {
		if obj == o {
			return true
		}
	}
	if g := o.Group(); g != nil {
		for _, grp := range ts.groups {
			if grp == g {
				return true
			}
		}
	}
	return false
}

// SetUnknown makes the set contain every type.
func (ts *TypeSet) SetUnknown() { ts.flags |= flagUnknown }

func (ts *TypeSet) Unknown() bool   { return ts.flags&flagUnknown != 0 }
func (ts *TypeSet) AnyObject() bool { return ts.anyObject }
func (ts *TypeSet) Empty() bool {
	return ts.flags == 0 && !ts.anyObject && len(ts.objects) == 0 && len(ts.groups) == 0
}

// Primitives returns the primitive tags in the set in tag order.
func (ts *TypeSet) Primitives() []Type {
	var out []Type
	for t := Type(0); t < NumTypes; t++ {
		if t != TypeObjectTag && ts.flags&primitiveFlag(t) != 0 {
			out = append(out, t)
		}
	}
	return out
}

func (ts *TypeSet) NumObjects() int { return len(ts.objects) }
func (ts *TypeSet) NumGroups() int  { return len(ts.groups) }

// Clear forgets everything. Used when a sweep drops type feedback.
func (ts *TypeSet) Clear() { *ts = TypeSet{} }
