package value

import (
	"sync"
	"sync/atomic"
)

// Class distinguishes object representations that stubs specialize on.
type Class uint8

const (
	ClassPlain Class = iota
	ClassArray
	ClassTypedArray
	ClassFunction
	ClassIterator
	ClassGlobal
	ClassScope
)

var classNames = map[Class]string{
	ClassPlain:      "Object",
	ClassArray:      "Array",
	ClassTypedArray: "TypedArray",
	ClassFunction:   "Function",
	ClassIterator:   "Iterator",
	ClassGlobal:     "Global",
	ClassScope:      "Scope",
}

func (c Class) String() string {
	if n, ok := classNames[c]; ok {
		return n
	}
	return "Unknown"
}

// DefaultFixedSlots is the number of inline slots given to plain objects.
const DefaultFixedSlots = 4

// Shape describes the layout of an object: its class, prototype, and the
// ordered set of named properties with their slot numbers. Shapes are
// immutable and shared; adding a property moves an object along a
// transition to a child shape. Two objects with the same shape store the
// same property at the same slot, which is what shape guards rely on.
type Shape struct {
	id       uint32
	class    Class
	proto    *Object
	numFixed int

	parent *Shape
	key    string
	slots  map[string]int
	order  []string

	mu          sync.Mutex
	transitions map[string]*Shape
}

var shapeIDs atomic.Uint32

type rootKey struct {
	class    Class
	proto    *Object
	numFixed int
}

var (
	rootsMu sync.Mutex
	roots   = make(map[rootKey]*Shape)
)

// EmptyShape returns the shared property-less shape for the given class,
// prototype and inline slot count.
func EmptyShape(class Class, proto *Object, numFixed int) *Shape {
	k := rootKey{class, proto, numFixed}
	rootsMu.Lock()
	defer rootsMu.Unlock()
	if s, ok := roots[k]; ok {
		return s
	}
	s := &Shape{
		id:       shapeIDs.Add(1),
		class:    class,
		proto:    proto,
		numFixed: numFixed,
		slots:    map[string]int{},
	}
	roots[k] = s
	return s
}

// UniqueShape returns a fresh property-less shape that no other object will
// reach by transition. Scope objects use one per activation layout.
func UniqueShape(class Class, proto *Object, numFixed int) *Shape {
	return &Shape{
		id:       shapeIDs.Add(1),
		class:    class,
		proto:    proto,
		numFixed: numFixed,
		slots:    map[string]int{},
	}
}

func (s *Shape) ID() uint32      { return s.id }
func (s *Shape) Class() Class    { return s.class }
func (s *Shape) Proto() *Object  { return s.proto }
func (s *Shape) NumFixed() int   { return s.numFixed }
func (s *Shape) Parent() *Shape  { return s.parent }
func (s *Shape) SlotCount() int  { return len(s.order) }
func (s *Shape) Keys() []string  { return append([]string(nil), s.order...) }
func (s *Shape) LastKey() string { return s.key }

// Lookup returns the slot holding name.
func (s *Shape) Lookup(name string) (int, bool) {
	slot, ok := s.slots[name]
	return slot, ok
}

// IsFixedSlot reports whether slot is stored inline in the object.
func (s *Shape) IsFixedSlot(slot int) bool {
	return slot < s.numFixed
}

// WithProperty returns the shape reached by adding name. Repeated calls
// with the same name return the same child.
func (s *Shape) WithProperty(name string) *Shape {
	s.mu.Lock()
	defer s.mu.Unlock()
	if child, ok := s.transitions[name]; ok {
		return child
	}
	child := &Shape{
		id:       shapeIDs.Add(1),
		class:    s.class,
		proto:    s.proto,
		numFixed: s.numFixed,
		parent:   s,
		key:      name,
		slots:    make(map[string]int, len(s.slots)+1),
		order:    make([]string, len(s.order), len(s.order)+1),
	}
	for k, v := range s.slots {
		child.slots[k] = v
	}
	copy(child.order, s.order)
	child.slots[name] = len(s.order)
	child.order = append(child.order, name)
	if s.transitions == nil {
		s.transitions = make(map[string]*Shape)
	}
	s.transitions[name] = child
	return child
}
