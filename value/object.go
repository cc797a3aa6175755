package value

import (
	"math"
)

// Object is a heap object: a shape, a type group, slot storage, and the
// class-specific payload (dense elements, typed array, function, iterator).
type Object struct {
	shape *Shape
	group *TypeObject
	fixed []Value
	dyn   []Value

	elements  []Value
	typed     *TypedArray
	fn        *Function
	iter      *Iterator
	enclosing *Object
}

// NewObject allocates an object with the given shape and group. The shape
// must be property-less; properties are added with Define.
func NewObject(shape *Shape, group *TypeObject) *Object {
	return &Object{
		shape: shape,
		group: group,
		fixed: make([]Value, shape.numFixed),
	}
}

// NewArray allocates an array object holding elems as dense elements.
func NewArray(shape *Shape, group *TypeObject, elems []Value) *Object {
	o := NewObject(shape, group)
	o.elements = elems
	return o
}

// NewTypedArrayObject allocates a typed array object of n zeroed elements.
func NewTypedArrayObject(shape *Shape, group *TypeObject, kind ElementType, n int) *Object {
	o := NewObject(shape, group)
	o.typed = &TypedArray{kind: kind, data: make([]float64, n)}
	return o
}

// NewFunctionObject allocates a function object.
func NewFunctionObject(shape *Shape, group *TypeObject, fn *Function) *Object {
	o := NewObject(shape, group)
	o.fn = fn
	return o
}

// NewIteratorObject allocates a native iterator over values.
func NewIteratorObject(shape *Shape, group *TypeObject, values []Value) *Object {
	o := NewObject(shape, group)
	o.iter = &Iterator{values: values}
	return o
}

// NewScopeObject allocates a scope (call object) whose enclosing scope is
// enclosing.
func NewScopeObject(shape *Shape, enclosing *Object) *Object {
	o := NewObject(shape, nil)
	o.enclosing = enclosing
	return o
}

func (o *Object) Shape() *Shape        { return o.shape }
func (o *Object) Group() *TypeObject   { return o.group }
func (o *Object) Class() Class         { return o.shape.class }
func (o *Object) Proto() *Object       { return o.shape.proto }
func (o *Object) Enclosing() *Object   { return o.enclosing }
func (o *Object) Function() *Function  { return o.fn }
func (o *Object) Iterator() *Iterator  { return o.iter }
func (o *Object) Typed() *TypedArray   { return o.typed }
func (o *Object) SetGroup(g *TypeObject) { o.group = g }

// ---------------------------------------------------------------------------
// Named properties
// ---------------------------------------------------------------------------

// GetSlot reads slot, which the object's shape must define.
func (o *Object) GetSlot(slot int) Value {
	if slot < len(o.fixed) {
		return o.fixed[slot]
	}
	return o.dyn[slot-len(o.fixed)]
}

// SetSlot writes slot, which the object's shape must define.
func (o *Object) SetSlot(slot int, v Value) {
	if slot < len(o.fixed) {
		o.fixed[slot] = v
		return
	}
	o.dyn[slot-len(o.fixed)] = v
}

// GetOwn returns the value of an own named property.
func (o *Object) GetOwn(name string) (Value, bool) {
	slot, ok := o.shape.Lookup(name)
	if !ok {
		return Undefined(), false
	}
	return o.GetSlot(slot), true
}

// Lookup finds name on o or its prototype chain and returns the holder
// together with the slot.
func (o *Object) Lookup(name string) (*Object, int, bool) {
	for cur := o; cur != nil; cur = cur.Proto() {
		if slot, ok := cur.shape.Lookup(name); ok {
			return cur, slot, true
		}
	}
	return nil, 0, false
}

// Define sets an own property, adding it (and changing shape) if needed.
func (o *Object) Define(name string, v Value) {
	if slot, ok := o.shape.Lookup(name); ok {
		o.SetSlot(slot, v)
		return
	}
	o.shape = o.shape.WithProperty(name)
	slot, _ := o.shape.Lookup(name)
	if slot >= len(o.fixed) {
		o.dyn = append(o.dyn, v)
		return
	}
	o.fixed[slot] = v
}

// ---------------------------------------------------------------------------
// Dense elements
// ---------------------------------------------------------------------------

// DenseLength is the initialized length of the dense element vector.
func (o *Object) DenseLength() int { return len(o.elements) }

// DenseElement returns element i, which may be a hole.
func (o *Object) DenseElement(i int) Value { return o.elements[i] }

func (o *Object) SetDenseElement(i int, v Value) { o.elements[i] = v }

// AppendDense adds v at the initialized length.
func (o *Object) AppendDense(v Value) { o.elements = append(o.elements, v) }

// SetDenseLength truncates the element vector or extends it with holes.
func (o *Object) SetDenseLength(n int) {
	if n <= len(o.elements) {
		o.elements = o.elements[:n]
		return
	}
	for len(o.elements) < n {
		o.elements = append(o.elements, Hole())
	}
}

// Elements returns the dense element vector. Callers must not retain it
// across writes.
func (o *Object) Elements() []Value { return o.elements }

// ---------------------------------------------------------------------------
// Typed arrays
// ---------------------------------------------------------------------------

// ElementType is the storage type of a typed array.
type ElementType uint8

const (
	ElemInt8 ElementType = iota
	ElemUint8
	ElemInt16
	ElemUint16
	ElemInt32
	ElemUint32
	ElemFloat32
	ElemFloat64
	ElemUint8Clamped
)

var elementTypeNames = [...]string{"Int8", "Uint8", "Int16", "Uint16", "Int32", "Uint32", "Float32", "Float64", "Uint8Clamped"}

func (t ElementType) String() string {
	if int(t) < len(elementTypeNames) {
		return elementTypeNames[t]
	}
	return "Unknown"
}

// TypedArray stores numbers coerced to a fixed element type.
type TypedArray struct {
	kind ElementType
	data []float64
}

func (t *TypedArray) Kind() ElementType { return t.kind }
func (t *TypedArray) Len() int          { return len(t.data) }
func (t *TypedArray) Get(i int) float64 { return t.data[i] }

// Set stores f at i after coercing it to the element type.
func (t *TypedArray) Set(i int, f float64) {
	t.data[i] = coerceElement(t.kind, f)
}

func coerceElement(kind ElementType, f float64) float64 {
	switch kind {
	case ElemInt8:
		return float64(int8(ToInt32Bits(f)))
	case ElemUint8:
		return float64(uint8(ToInt32Bits(f)))
	case ElemInt16:
		return float64(int16(ToInt32Bits(f)))
	case ElemUint16:
		return float64(uint16(ToInt32Bits(f)))
	case ElemInt32:
		return float64(ToInt32Bits(f))
	case ElemUint32:
		return float64(ToUint32Bits(f))
	case ElemFloat32:
		return float64(float32(f))
	case ElemUint8Clamped:
		if math.IsNaN(f) || f <= 0 {
			return 0
		}
		if f >= 255 {
			return 255
		}
		return math.RoundToEven(f)
	default:
		return f
	}
}

// ---------------------------------------------------------------------------
// Functions and iterators
// ---------------------------------------------------------------------------

// NativeFunc is the Go body of a function.
type NativeFunc func(this Value, args []Value) (Value, error)

// Function is the callable payload of a function object. Scripted functions
// stand in for compiled script bodies; natives are host functions.
type Function struct {
	Name     string
	Nargs    int
	Scripted bool
	Impl     NativeFunc
}

// Invoke calls the function, padding missing formals with undefined.
func (fn *Function) Invoke(this Value, args []Value) (Value, error) {
	if fn.Scripted && len(args) < fn.Nargs {
		padded := make([]Value, fn.Nargs)
		copy(padded, args)
		for i := len(args); i < fn.Nargs; i++ {
			padded[i] = Undefined()
		}
		args = padded
	}
	return fn.Impl(this, args)
}

// Iterator is a native iterator over a snapshot of values.
type Iterator struct {
	values []Value
	pos    int
	closed bool
}

func (it *Iterator) More() bool { return !it.closed && it.pos < len(it.values) }

// Next returns the next value, or undefined once exhausted.
func (it *Iterator) Next() Value {
	if !it.More() {
		return Undefined()
	}
	v := it.values[it.pos]
	it.pos++
	return v
}

func (it *Iterator) Close() { it.closed = true }
