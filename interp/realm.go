// Package interp is the generic operation executor behind the IC
// fallbacks. Every operation here is complete and always correct; the
// inline caches only ever skip work this package would otherwise do.
package interp

import (
	"math"

	"github.com/chazu/baseline/ic"
	"github.com/chazu/baseline/value"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("baseline.interp")

// DefaultMaxStackDepth is the recursion limit enforced by CheckStack.
const DefaultMaxStackDepth = 1000

// Realm is one global environment: the built-in prototypes, the global
// object and the intrinsics table. It implements ic.Runtime.
type Realm struct {
	ObjectProto   *value.Object
	ArrayProto    *value.Object
	FunctionProto *value.Object
	StringProto   *value.Object
	IteratorProto *value.Object

	global     *value.Object
	intrinsics map[string]value.Value

	plainGroup *value.TypeObject
	arrayGroup *value.TypeObject
	ctorGroups map[*value.Object]*value.TypeObject

	MaxStackDepth int
}

var _ ic.Runtime = (*Realm)(nil)

// NewRealm creates a realm with its prototypes, global object and
// intrinsics.
func NewRealm() *Realm {
	r := &Realm{
		intrinsics:    make(map[string]value.Value),
		MaxStackDepth: DefaultMaxStackDepth,
	}

	r.ObjectProto = value.NewObject(value.UniqueShape(value.ClassPlain, nil, value.DefaultFixedSlots), value.NewSingletonTypeObject(nil))
	r.ArrayProto = r.singleton(value.ClassPlain, r.ObjectProto)
	r.FunctionProto = r.singleton(value.ClassPlain, r.ObjectProto)
	r.StringProto = r.singleton(value.ClassPlain, r.ObjectProto)
	r.IteratorProto = r.singleton(value.ClassPlain, r.ObjectProto)

	r.plainGroup = value.NewTypeObject(r.ObjectProto)
	r.arrayGroup = value.NewTypeObject(r.ArrayProto)

	r.global = value.NewObject(value.UniqueShape(value.ClassGlobal, r.ObjectProto, value.DefaultFixedSlots), value.NewSingletonTypeObject(r.ObjectProto))

	r.installBuiltins()
	return r
}

func (r *Realm) singleton(class value.Class, proto *value.Object) *value.Object {
	return value.NewObject(value.UniqueShape(class, proto, value.DefaultFixedSlots), value.NewSingletonTypeObject(proto))
}

func (r *Realm) installBuiltins() {
	r.intrinsics["undefined"] = value.Undefined()
	r.intrinsics["NaN"] = value.Double(math.NaN())
	r.intrinsics["Infinity"] = value.Double(math.Inf(1))
	r.intrinsics["PI"] = value.Double(math.Pi)
	r.intrinsics["E"] = value.Double(math.E)
	r.intrinsics["MAX_INT32"] = value.Int32(math.MaxInt32)

	r.StringProto.Define("charAt", value.ObjectValue(r.NewNativeFunction("charAt", 1, func(this value.Value, args []value.Value) (value.Value, error) {
		s, err := r.ToString(this)
		if err != nil {
			return value.Value{}, err
		}
		i := 0
		if len(args) > 0 {
			n, err := r.toNumber(args[0])
			if err != nil {
				return value.Value{}, err
			}
			i = int(value.ToInt32Bits(n))
		}
		c, _ := value.CharAt(s, i)
		return value.String(c), nil
	})))
	r.ObjectProto.Define("toString", value.ObjectValue(r.NewNativeFunction("toString", 0, func(this value.Value, args []value.Value) (value.Value, error) {
		return value.String(r.defaultString(this)), nil
	})))

	r.global.Define("globalThis", value.ObjectValue(r.global))
	r.global.Define("Math", value.ObjectValue(r.newMath()))
}

func (r *Realm) newMath() *value.Object {
	m := r.NewPlainObject()
	unary := func(name string, fn func(float64) float64) {
		m.Define(name, value.ObjectValue(r.NewNativeFunction(name, 1, func(this value.Value, args []value.Value) (value.Value, error) {
			x := math.NaN()
			if len(args) > 0 {
				n, err := r.toNumber(args[0])
				if err != nil {
					return value.Value{}, err
				}
				x = n
			}
			return value.Number(fn(x)), nil
		})))
	}
	unary("abs", math.Abs)
	unary("floor", math.Floor)
	unary("ceil", math.Ceil)
	unary("sqrt", math.Sqrt)
	return m
}

// Global returns the global object.
func (r *Realm) Global() *value.Object { return r.global }

// DefineGlobal creates or overwrites a global binding.
func (r *Realm) DefineGlobal(name string, v value.Value) {
	r.global.Define(name, v)
}

// DefineIntrinsic registers a constant visible to GetIntrinsic.
func (r *Realm) DefineIntrinsic(name string, v value.Value) {
	r.intrinsics[name] = v
}

func (r *Realm) StringPrototype() *value.Object { return r.StringProto }

// ---------------------------------------------------------------------------
// Object construction
// ---------------------------------------------------------------------------

// NewGroup returns a fresh object group for objects created at one site.
func (r *Realm) NewGroup() *value.TypeObject {
	return value.NewTypeObject(r.ObjectProto)
}

// NewPlainObject allocates an empty object in the realm's default group.
func (r *Realm) NewPlainObject() *value.Object {
	return value.NewObject(value.EmptyShape(value.ClassPlain, r.ObjectProto, value.DefaultFixedSlots), r.plainGroup)
}

// NewObjectIn allocates an empty object with the given prototype and
// group. A nil proto means the object prototype.
func (r *Realm) NewObjectIn(proto *value.Object, group *value.TypeObject) *value.Object {
	if proto == nil {
		proto = r.ObjectProto
	}
	return value.NewObject(value.EmptyShape(value.ClassPlain, proto, value.DefaultFixedSlots), group)
}

// NewArrayOf allocates an array holding vals.
func (r *Realm) NewArrayOf(vals ...value.Value) *value.Object {
	elems := append([]value.Value(nil), vals...)
	return value.NewArray(value.EmptyShape(value.ClassArray, r.ArrayProto, 0), r.arrayGroup, elems)
}

// NewArrayIn allocates an array in a specific group.
func (r *Realm) NewArrayIn(group *value.TypeObject, vals ...value.Value) *value.Object {
	elems := append([]value.Value(nil), vals...)
	return value.NewArray(value.EmptyShape(value.ClassArray, r.ArrayProto, 0), group, elems)
}

// NewTypedArray allocates a zeroed typed array.
func (r *Realm) NewTypedArray(kind value.ElementType, n int) *value.Object {
	return value.NewTypedArrayObject(value.EmptyShape(value.ClassTypedArray, r.ObjectProto, 0), nil, kind, n)
}

// NewNativeFunction allocates a host function.
func (r *Realm) NewNativeFunction(name string, nargs int, impl value.NativeFunc) *value.Object {
	return r.newFunction(&value.Function{Name: name, Nargs: nargs, Impl: impl})
}

// NewScriptedFunction allocates a function standing in for a compiled
// script body. It gets a prototype object for construct calls.
func (r *Realm) NewScriptedFunction(name string, nargs int, impl value.NativeFunc) *value.Object {
	fn := r.newFunction(&value.Function{Name: name, Nargs: nargs, Scripted: true, Impl: impl})
	fn.Define("prototype", value.ObjectValue(r.NewObjectIn(nil, value.NewTypeObject(r.ObjectProto))))
	return fn
}

func (r *Realm) newFunction(f *value.Function) *value.Object {
	return value.NewFunctionObject(value.EmptyShape(value.ClassFunction, r.FunctionProto, value.DefaultFixedSlots), value.NewSingletonTypeObject(r.FunctionProto), f)
}

// NewIterator allocates a native iterator over vals.
func (r *Realm) NewIterator(vals []value.Value) *value.Object {
	return value.NewIteratorObject(value.EmptyShape(value.ClassIterator, r.IteratorProto, 0), nil, vals)
}

// ScopeLayout is the shared layout of the activation scopes of one
// function: every scope instantiated from it has the same shape.
type ScopeLayout struct {
	root  *value.Shape
	names []string
}

// NewScopeLayout creates a layout binding names in order.
func NewScopeLayout(names ...string) *ScopeLayout {
	return &ScopeLayout{
		root:  value.UniqueShape(value.ClassScope, nil, value.DefaultFixedSlots),
		names: append([]string(nil), names...),
	}
}

// Instantiate allocates a scope of this layout inside enclosing, with
// the bindings initialized from vals and undefined past its end.
func (l *ScopeLayout) Instantiate(enclosing *value.Object, vals ...value.Value) *value.Object {
	s := value.NewScopeObject(l.root, enclosing)
	for i, name := range l.names {
		v := value.Undefined()
		if i < len(vals) {
			v = vals[i]
		}
		s.Define(name, v)
	}
	return s
}
