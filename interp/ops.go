package interp

import (
	"math"
	"strings"

	"github.com/chazu/baseline/ic"
	"github.com/chazu/baseline/value"
)

// maxHoleRun bounds how far past the end an element write may extend an
// array with holes.
const maxHoleRun = 1 << 20

// ---------------------------------------------------------------------------
// Comparison
// ---------------------------------------------------------------------------

func (r *Realm) Compare(op ic.Op, lhs, rhs value.Value) (bool, error) {
	switch op {
	case ic.OpStrictEq:
		return strictEquals(lhs, rhs), nil
	case ic.OpStrictNe:
		return !strictEquals(lhs, rhs), nil
	case ic.OpEq:
		return r.looseEquals(lhs, rhs)
	case ic.OpNe:
		eq, err := r.looseEquals(lhs, rhs)
		return !eq, err
	case ic.OpLt:
		return r.relational(lhs, rhs, func(c int) bool { return c < 0 })
	case ic.OpLe:
		return r.relational(lhs, rhs, func(c int) bool { return c <= 0 })
	case ic.OpGt:
		return r.relational(lhs, rhs, func(c int) bool { return c > 0 })
	case ic.OpGe:
		return r.relational(lhs, rhs, func(c int) bool { return c >= 0 })
	}
	return false, newError(TypeError, "%s is not a comparison", op)
}

func strictEquals(a, b value.Value) bool {
	switch {
	case a.IsNumber() && b.IsNumber():
		return a.ToNumber() == b.ToNumber()
	case a.Type() != b.Type():
		return false
	case a.IsString():
		return a.ToString() == b.ToString()
	case a.IsBoolean():
		return a.ToBoolean() == b.ToBoolean()
	case a.IsObject():
		return a.ToObject() == b.ToObject()
	case a.IsMagic():
		return a.MagicWhy() == b.MagicWhy()
	}
	// undefined, null
	return true
}

func (r *Realm) looseEquals(a, b value.Value) (bool, error) {
	switch {
	case a.IsNumber() && b.IsNumber(), a.Type() == b.Type():
		return strictEquals(a, b), nil
	case a.IsNullOrUndefined() || b.IsNullOrUndefined():
		return a.IsNullOrUndefined() && b.IsNullOrUndefined(), nil
	case a.IsBoolean():
		n, _ := r.toNumber(a)
		return r.looseEquals(value.Number(n), b)
	case b.IsBoolean():
		n, _ := r.toNumber(b)
		return r.looseEquals(a, value.Number(n))
	case a.IsNumber() && b.IsString():
		return a.ToNumber() == stringToNumber(b.ToString()), nil
	case a.IsString() && b.IsNumber():
		return stringToNumber(a.ToString()) == b.ToNumber(), nil
	case a.IsObject() && b.IsPrimitive():
		p, err := r.toPrimitive(a, false)
		if err != nil {
			return false, err
		}
		return r.looseEquals(p, b)
	case a.IsPrimitive() && b.IsObject():
		p, err := r.toPrimitive(b, false)
		if err != nil {
			return false, err
		}
		return r.looseEquals(a, p)
	}
	return false, nil
}

// relational compares two values after primitive conversion. Strings
// compare by code unit; everything else numerically, where NaN makes every
// comparison false.
func (r *Realm) relational(a, b value.Value, test func(int) bool) (bool, error) {
	pa, err := r.toPrimitive(a, false)
	if err != nil {
		return false, err
	}
	pb, err := r.toPrimitive(b, false)
	if err != nil {
		return false, err
	}
	if pa.IsString() && pb.IsString() {
		return test(strings.Compare(pa.ToString(), pb.ToString())), nil
	}
	x, err := r.toNumber(pa)
	if err != nil {
		return false, err
	}
	y, err := r.toNumber(pb)
	if err != nil {
		return false, err
	}
	if math.IsNaN(x) || math.IsNaN(y) {
		return false, nil
	}
	c := 0
	if x < y {
		c = -1
	} else if x > y {
		c = 1
	}
	return test(c), nil
}

// ---------------------------------------------------------------------------
// Arithmetic
// ---------------------------------------------------------------------------

func (r *Realm) BinaryArith(op ic.Op, lhs, rhs value.Value) (value.Value, error) {
	if op == ic.OpAdd {
		pa, err := r.toPrimitive(lhs, false)
		if err != nil {
			return value.Value{}, err
		}
		pb, err := r.toPrimitive(rhs, false)
		if err != nil {
			return value.Value{}, err
		}
		if pa.IsString() || pb.IsString() {
			return value.String(primitiveString(pa) + primitiveString(pb)), nil
		}
		lhs, rhs = pa, pb
	}
	a, err := r.toNumber(lhs)
	if err != nil {
		return value.Value{}, err
	}
	b, err := r.toNumber(rhs)
	if err != nil {
		return value.Value{}, err
	}
	shift := value.ToUint32Bits(b) & 31
	switch op {
	case ic.OpAdd:
		return value.Number(a + b), nil
	case ic.OpSub:
		return value.Number(a - b), nil
	case ic.OpMul:
		return value.Number(a * b), nil
	case ic.OpDiv:
		return value.Number(a / b), nil
	case ic.OpMod:
		return value.Number(math.Mod(a, b)), nil
	case ic.OpBitOr:
		return value.Int32(value.ToInt32Bits(a) | value.ToInt32Bits(b)), nil
	case ic.OpBitXor:
		return value.Int32(value.ToInt32Bits(a) ^ value.ToInt32Bits(b)), nil
	case ic.OpBitAnd:
		return value.Int32(value.ToInt32Bits(a) & value.ToInt32Bits(b)), nil
	case ic.OpLsh:
		return value.Int32(int32(value.ToUint32Bits(a) << shift)), nil
	case ic.OpRsh:
		return value.Int32(value.ToInt32Bits(a) >> shift), nil
	case ic.OpUrsh:
		return value.Number(float64(value.ToUint32Bits(a) >> shift)), nil
	}
	return value.Value{}, newError(TypeError, "%s is not a binary operator", op)
}

func (r *Realm) UnaryArith(op ic.Op, v value.Value) (value.Value, error) {
	n, err := r.toNumber(v)
	if err != nil {
		return value.Value{}, err
	}
	switch op {
	case ic.OpBitNot:
		return value.Int32(^value.ToInt32Bits(n)), nil
	case ic.OpNeg:
		return value.Number(-n), nil
	}
	return value.Value{}, newError(TypeError, "%s is not a unary operator", op)
}

// ---------------------------------------------------------------------------
// Properties
// ---------------------------------------------------------------------------

func lookup(o *value.Object, name string) value.Value {
	holder, slot, ok := o.Lookup(name)
	if !ok {
		return value.Undefined()
	}
	return holder.GetSlot(slot)
}

func (r *Realm) GetProp(obj value.Value, name string) (value.Value, error) {
	switch {
	case obj.IsNullOrUndefined():
		return value.Value{}, newError(TypeError, "cannot read property %q of %s", name, primitiveString(obj))
	case obj.IsString():
		if name == "length" {
			return value.Int32(int32(value.StringLength(obj.ToString()))), nil
		}
		if i, ok := parseIndex(name); ok {
			if c, ok := value.CharAt(obj.ToString(), i); ok {
				return value.String(c), nil
			}
		}
		return lookup(r.StringProto, name), nil
	case !obj.IsObject():
		return lookup(r.ObjectProto, name), nil
	}

	o := obj.ToObject()
	switch o.Class() {
	case value.ClassArray:
		if name == "length" {
			return value.Number(float64(o.DenseLength())), nil
		}
		if i, ok := parseIndex(name); ok {
			if v, ok := denseGet(o, i); ok {
				return v, nil
			}
		}
	case value.ClassTypedArray:
		if name == "length" {
			return value.Int32(int32(o.Typed().Len())), nil
		}
		if i, ok := parseIndex(name); ok {
			if i < o.Typed().Len() {
				return value.Number(o.Typed().Get(i)), nil
			}
			return value.Undefined(), nil
		}
	}
	return lookup(o, name), nil
}

func denseGet(o *value.Object, i int) (value.Value, bool) {
	if i >= o.DenseLength() {
		return value.Value{}, false
	}
	v := o.DenseElement(i)
	if v.IsHole() {
		return value.Value{}, false
	}
	return v, true
}

func (r *Realm) SetProp(obj value.Value, name string, v value.Value) error {
	if obj.IsNullOrUndefined() {
		return newError(TypeError, "cannot set property %q of %s", name, primitiveString(obj))
	}
	if !obj.IsObject() {
		return nil
	}
	o := obj.ToObject()
	switch o.Class() {
	case value.ClassArray:
		if name == "length" {
			n, err := r.toNumber(v)
			if err != nil {
				return err
			}
			if n < 0 || n != math.Trunc(n) || n > math.MaxInt32 || n-float64(o.DenseLength()) > maxHoleRun {
				return newError(RangeError, "invalid array length")
			}
			o.SetDenseLength(int(n))
			return nil
		}
		if i, ok := parseIndex(name); ok {
			return r.setDense(o, i, v)
		}
	case value.ClassTypedArray:
		if name == "length" {
			return nil
		}
		if i, ok := parseIndex(name); ok {
			return r.setTyped(o, i, v)
		}
	}
	o.Define(name, v)
	return nil
}

func (r *Realm) setDense(o *value.Object, i int, v value.Value) error {
	n := o.DenseLength()
	switch {
	case i < n:
		o.SetDenseElement(i, v)
	case i == n:
		o.AppendDense(v)
	case i-n > maxHoleRun:
		return newError(RangeError, "index %d is too far past the end of the array", i)
	default:
		o.SetDenseLength(i)
		o.AppendDense(v)
	}
	return nil
}

func (r *Realm) setTyped(o *value.Object, i int, v value.Value) error {
	n, err := r.toNumber(v)
	if err != nil {
		return err
	}
	if i < o.Typed().Len() {
		o.Typed().Set(i, n)
	}
	return nil
}

func (r *Realm) GetElem(obj, key value.Value) (value.Value, error) {
	if obj.IsNullOrUndefined() {
		return value.Value{}, newError(TypeError, "cannot read element of %s", primitiveString(obj))
	}
	if i, ok := elemIndex(key); ok {
		switch {
		case obj.IsString():
			if c, ok := value.CharAt(obj.ToString(), i); ok {
				return value.String(c), nil
			}
			return value.Undefined(), nil
		case obj.IsObject() && obj.ToObject().Class() == value.ClassArray:
			if v, ok := denseGet(obj.ToObject(), i); ok {
				return v, nil
			}
		case obj.IsObject() && obj.ToObject().Class() == value.ClassTypedArray:
			t := obj.ToObject().Typed()
			if i < t.Len() {
				return value.Number(t.Get(i)), nil
			}
			return value.Undefined(), nil
		}
	}
	name, err := r.propertyKey(key)
	if err != nil {
		return value.Value{}, err
	}
	return r.GetProp(obj, name)
}

func (r *Realm) SetElem(obj, key, v value.Value) error {
	if obj.IsNullOrUndefined() {
		return newError(TypeError, "cannot set element of %s", primitiveString(obj))
	}
	if !obj.IsObject() {
		return nil
	}
	o := obj.ToObject()
	if i, ok := elemIndex(key); ok {
		switch o.Class() {
		case value.ClassArray:
			return r.setDense(o, i, v)
		case value.ClassTypedArray:
			return r.setTyped(o, i, v)
		}
	}
	name, err := r.propertyKey(key)
	if err != nil {
		return err
	}
	return r.SetProp(obj, name, v)
}

func (r *Realm) In(key, obj value.Value) (bool, error) {
	if !obj.IsObject() {
		return false, newError(TypeError, "cannot use 'in' to search for a key in %s", describe(obj))
	}
	o := obj.ToObject()
	if i, ok := elemIndex(key); ok {
		switch o.Class() {
		case value.ClassArray:
			if _, ok := denseGet(o, i); ok {
				return true, nil
			}
		case value.ClassTypedArray:
			return i < o.Typed().Len(), nil
		}
	}
	name, err := r.propertyKey(key)
	if err != nil {
		return false, err
	}
	if name == "length" && (o.Class() == value.ClassArray || o.Class() == value.ClassTypedArray) {
		return true, nil
	}
	if i, ok := parseIndex(name); ok && o.Class() == value.ClassArray {
		if _, ok := denseGet(o, i); ok {
			return true, nil
		}
	}
	_, _, found := o.Lookup(name)
	return found, nil
}

// ---------------------------------------------------------------------------
// Names
// ---------------------------------------------------------------------------

// GetName resolves name through the scope chain, ending at the global
// object. A nil scope means global code.
func (r *Realm) GetName(scope *value.Object, name string) (value.Value, error) {
	for cur := scope; cur != nil; cur = cur.Enclosing() {
		if cur.Class() == value.ClassGlobal {
			return r.globalLookup(cur, name)
		}
		if v, ok := cur.GetOwn(name); ok {
			return v, nil
		}
	}
	return r.globalLookup(r.global, name)
}

func (r *Realm) globalLookup(global *value.Object, name string) (value.Value, error) {
	holder, slot, ok := global.Lookup(name)
	if !ok {
		return value.Value{}, newError(ReferenceError, "%s is not defined", name)
	}
	return holder.GetSlot(slot), nil
}

// BindName returns the object holding the binding for name, or the
// global object when the name is unbound.
func (r *Realm) BindName(scope *value.Object, name string) (*value.Object, error) {
	for cur := scope; cur != nil; cur = cur.Enclosing() {
		if cur.Class() == value.ClassGlobal {
			return cur, nil
		}
		if _, ok := cur.Shape().Lookup(name); ok {
			return cur, nil
		}
	}
	return r.global, nil
}

func (r *Realm) GetIntrinsic(name string) (value.Value, error) {
	v, ok := r.intrinsics[name]
	if !ok {
		return value.Value{}, newError(ReferenceError, "unknown intrinsic %s", name)
	}
	return v, nil
}

// ---------------------------------------------------------------------------
// Calls
// ---------------------------------------------------------------------------

func (r *Realm) Call(callee, this value.Value, args []value.Value, constructing bool) (value.Value, error) {
	if !callee.IsObject() || callee.ToObject().Function() == nil {
		return value.Value{}, newError(TypeError, "%s is not a function", describe(callee))
	}
	fnObj := callee.ToObject()
	fn := fnObj.Function()
	if !constructing {
		return fn.Invoke(this, args)
	}
	if !fn.Scripted {
		return value.Value{}, newError(TypeError, "%s is not a constructor", fn.Name)
	}

	proto := r.ObjectProto
	if p, ok := fnObj.GetOwn("prototype"); ok && p.IsObject() {
		proto = p.ToObject()
	}
	obj := r.NewObjectIn(proto, r.constructGroup(proto))
	res, err := fn.Invoke(value.ObjectValue(obj), args)
	if err != nil {
		return value.Value{}, err
	}
	if res.IsObject() {
		return res, nil
	}
	return value.ObjectValue(obj), nil
}

// constructGroup returns the group of objects constructed with proto.
// Objects built by one constructor share a group.
func (r *Realm) constructGroup(proto *value.Object) *value.TypeObject {
	if r.ctorGroups == nil {
		r.ctorGroups = make(map[*value.Object]*value.TypeObject)
	}
	g, ok := r.ctorGroups[proto]
	if !ok {
		g = value.NewTypeObject(proto)
		r.ctorGroups[proto] = g
	}
	return g
}

// ---------------------------------------------------------------------------
// Iteration
// ---------------------------------------------------------------------------

func (r *Realm) IteratorNew(v value.Value) (value.Value, error) {
	if v.IsString() {
		var chars []value.Value
		for _, c := range v.ToString() {
			chars = append(chars, value.String(string(c)))
		}
		return value.ObjectValue(r.NewIterator(chars)), nil
	}
	if !v.IsObject() {
		return value.Value{}, newError(TypeError, "%s is not iterable", describe(v))
	}
	o := v.ToObject()
	switch o.Class() {
	case value.ClassIterator:
		return v, nil
	case value.ClassArray:
		vals := make([]value.Value, o.DenseLength())
		for i := range vals {
			e := o.DenseElement(i)
			if e.IsHole() {
				e = value.Undefined()
			}
			vals[i] = e
		}
		return value.ObjectValue(r.NewIterator(vals)), nil
	case value.ClassTypedArray:
		vals := make([]value.Value, o.Typed().Len())
		for i := range vals {
			vals[i] = value.Number(o.Typed().Get(i))
		}
		return value.ObjectValue(r.NewIterator(vals)), nil
	}
	return value.Value{}, newError(TypeError, "%s is not iterable", describe(v))
}

func (r *Realm) iterator(v value.Value) (*value.Iterator, error) {
	if !v.IsObject() || v.ToObject().Iterator() == nil {
		return nil, newError(TypeError, "%s is not an iterator", describe(v))
	}
	return v.ToObject().Iterator(), nil
}

func (r *Realm) IteratorMore(iter value.Value) (bool, error) {
	it, err := r.iterator(iter)
	if err != nil {
		return false, err
	}
	return it.More(), nil
}

func (r *Realm) IteratorNext(iter value.Value) (value.Value, error) {
	it, err := r.iterator(iter)
	if err != nil {
		return value.Value{}, err
	}
	return it.Next(), nil
}

func (r *Realm) IteratorClose(iter value.Value) error {
	it, err := r.iterator(iter)
	if err != nil {
		return err
	}
	it.Close()
	return nil
}

// ---------------------------------------------------------------------------
// Miscellaneous
// ---------------------------------------------------------------------------

func (r *Realm) InstanceOf(v, ctor value.Value) (bool, error) {
	if !ctor.IsObject() || ctor.ToObject().Function() == nil {
		return false, newError(TypeError, "right-hand side of instanceof is not callable")
	}
	p, _ := ctor.ToObject().GetOwn("prototype")
	if !p.IsObject() {
		return false, newError(TypeError, "function %s has no prototype object", ctor.ToObject().Function().Name)
	}
	if !v.IsObject() {
		return false, nil
	}
	proto := p.ToObject()
	for cur := v.ToObject().Proto(); cur != nil; cur = cur.Proto() {
		if cur == proto {
			return true, nil
		}
	}
	return false, nil
}

func (r *Realm) TypeOf(v value.Value) string {
	switch v.Type() {
	case value.TypeUndefined, value.TypeMagic:
		return "undefined"
	case value.TypeBoolean:
		return "boolean"
	case value.TypeInt32, value.TypeDouble:
		return "number"
	case value.TypeString:
		return "string"
	case value.TypeObjectTag:
		if v.ToObject().Function() != nil {
			return "function"
		}
	}
	return "object"
}

func (r *Realm) NewArray(length int) (value.Value, error) {
	if length < 0 || length > maxHoleRun {
		return value.Value{}, newError(RangeError, "invalid array length %d", length)
	}
	a := r.NewArrayOf()
	a.SetDenseLength(length)
	return value.ObjectValue(a), nil
}

func (r *Realm) NewObject() (value.Value, error) {
	return value.ObjectValue(r.NewPlainObject()), nil
}

// This computes the this value of a non-strict function: null and
// undefined become the global object.
func (r *Realm) This(v value.Value) (value.Value, error) {
	if v.IsNullOrUndefined() {
		return value.ObjectValue(r.global), nil
	}
	return v, nil
}

func (r *Realm) CheckStack(depth int) error {
	if depth > r.MaxStackDepth {
		log.Debugf("stack check failed at depth %d", depth)
		return newError(RangeError, "too much recursion")
	}
	return nil
}
