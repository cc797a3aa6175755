package value

import (
	"math"
	"testing"
)

func TestNumberNormalizes(t *testing.T) {
	if v := Number(3); !v.IsInt32() || v.ToInt32() != 3 {
		t.Errorf("Expected int32 3, got %v %v", v.Type(), v.ToNumber())
	}
	if v := Number(1.5); !v.IsDouble() {
		t.Errorf("Expected double, got %v", v.Type())
	}
	if v := Number(math.Copysign(0, -1)); !v.IsDouble() {
		t.Error("Expected -0 to stay a double")
	}
	if v := Number(math.MaxInt32 + 1); !v.IsDouble() {
		t.Error("Expected out of range value to be a double")
	}
	if v := Number(math.NaN()); !v.IsDouble() {
		t.Error("Expected NaN to be a double")
	}
}

func TestSameValue(t *testing.T) {
	if !Int32(1).SameValue(Int32(1)) {
		t.Error("Expected equal int32 values to be the same")
	}
	if Int32(1).SameValue(Double(1)) {
		t.Error("Expected different tags to differ")
	}
	if !Double(math.NaN()).SameValue(Double(math.NaN())) {
		t.Error("Expected NaN to be the same as NaN")
	}
	if !String("a").SameValue(String("a")) {
		t.Error("Expected equal strings to be the same")
	}
	if !Undefined().SameValue(Undefined()) {
		t.Error("Expected undefined to be the same as undefined")
	}
}

func TestObjectTag(t *testing.T) {
	o := NewObject(EmptyShape(ClassPlain, nil, 0), NewTypeObject(nil))
	v := ObjectValue(o)
	if v.Type() != TypeObjectTag || !v.IsObject() || v.IsPrimitive() {
		t.Errorf("Expected an object-tagged value, got %v", v.Type())
	}
	if TypeObjectTag.String() != "object" {
		t.Errorf("Expected tag name object, got %s", TypeObjectTag)
	}
	if Null().IsObject() {
		t.Error("Expected null not to be an object")
	}
}

func TestToInt32Bits(t *testing.T) {
	cases := []struct {
		in   float64
		want int32
	}{
		{0, 0},
		{1.9, 1},
		{-1.9, -1},
		{4294967296 + 5, 5},
		{2147483648, math.MinInt32},
		{math.NaN(), 0},
		{math.Inf(1), 0},
	}
	for _, c := range cases {
		if got := ToInt32Bits(c.in); got != c.want {
			t.Errorf("ToInt32Bits(%v): expected %d, got %d", c.in, c.want, got)
		}
	}
}

func TestCharAt(t *testing.T) {
	if s, ok := CharAt("héllo", 1); !ok || s != "é" {
		t.Errorf("Expected é, got %q (%v)", s, ok)
	}
	if _, ok := CharAt("abc", 3); ok {
		t.Error("Expected out of range index to fail")
	}
	if n := StringLength("héllo"); n != 5 {
		t.Errorf("Expected length 5, got %d", n)
	}
}

func TestShapeTransitionsAreShared(t *testing.T) {
	root := EmptyShape(ClassPlain, nil, 2)
	if EmptyShape(ClassPlain, nil, 2) != root {
		t.Fatal("Expected EmptyShape to return the shared root")
	}
	a := root.WithProperty("x")
	b := root.WithProperty("x")
	if a != b {
		t.Error("Expected the same transition to yield the same shape")
	}
	if a.ID() == root.ID() {
		t.Error("Expected child shape to have its own id")
	}
	if slot, ok := a.Lookup("x"); !ok || slot != 0 {
		t.Errorf("Expected x at slot 0, got %d (%v)", slot, ok)
	}
	if root.WithProperty("y") == a {
		t.Error("Expected different properties to yield different shapes")
	}
}

func TestObjectDefineFixedAndDynamicSlots(t *testing.T) {
	shape := EmptyShape(ClassPlain, nil, 1)
	o := NewObject(shape, NewTypeObject(nil))
	o.Define("a", Int32(1))
	o.Define("b", Int32(2))
	o.Define("c", Int32(3))

	if !o.Shape().IsFixedSlot(0) || o.Shape().IsFixedSlot(1) {
		t.Error("Expected only slot 0 to be fixed")
	}
	for name, want := range map[string]int32{"a": 1, "b": 2, "c": 3} {
		v, ok := o.GetOwn(name)
		if !ok || v.ToInt32() != want {
			t.Errorf("Expected %s = %d, got %v (%v)", name, want, v.ToNumber(), ok)
		}
	}

	before := o.Shape()
	o.Define("b", Int32(20))
	if o.Shape() != before {
		t.Error("Expected overwriting a property to keep the shape")
	}
	if v, _ := o.GetOwn("b"); v.ToInt32() != 20 {
		t.Errorf("Expected b = 20, got %v", v.ToNumber())
	}
}

func TestObjectLookupWalksPrototypes(t *testing.T) {
	proto := NewObject(EmptyShape(ClassPlain, nil, 2), nil)
	proto.Define("greet", String("hi"))
	o := NewObject(EmptyShape(ClassPlain, proto, 2), nil)

	holder, slot, ok := o.Lookup("greet")
	if !ok || holder != proto {
		t.Fatal("Expected lookup to find the prototype property")
	}
	if holder.GetSlot(slot).ToString() != "hi" {
		t.Error("Expected prototype slot value")
	}
	if _, _, ok := o.Lookup("missing"); ok {
		t.Error("Expected missing property lookup to fail")
	}
}

func TestTypedArrayCoercion(t *testing.T) {
	o := NewTypedArrayObject(EmptyShape(ClassTypedArray, nil, 0), nil, ElemUint8, 2)
	o.Typed().Set(0, 257)
	o.Typed().Set(1, -1)
	if o.Typed().Get(0) != 1 || o.Typed().Get(1) != 255 {
		t.Errorf("Expected wrapped uint8 values, got %v %v", o.Typed().Get(0), o.Typed().Get(1))
	}

	c := NewTypedArrayObject(EmptyShape(ClassTypedArray, nil, 0), nil, ElemUint8Clamped, 1)
	c.Typed().Set(0, 300)
	if c.Typed().Get(0) != 255 {
		t.Errorf("Expected clamped 255, got %v", c.Typed().Get(0))
	}
}

func TestTypeSet(t *testing.T) {
	var ts TypeSet
	if !ts.Empty() {
		t.Error("Expected new set to be empty")
	}
	if !ts.Add(Int32(1)) {
		t.Error("Expected first int32 to change the set")
	}
	if ts.Add(Int32(2)) {
		t.Error("Expected second int32 not to change the set")
	}
	if !ts.Has(Int32(9)) || ts.Has(String("x")) {
		t.Error("Expected membership by tag")
	}

	g := NewTypeObject(nil)
	a := NewObject(EmptyShape(ClassPlain, nil, 0), g)
	b := NewObject(EmptyShape(ClassPlain, nil, 0), g)
	ts.Add(ObjectValue(a))
	if !ts.Has(ObjectValue(b)) {
		t.Error("Expected objects of the same group to share membership")
	}
	if ts.NumGroups() != 1 {
		t.Errorf("Expected 1 group, got %d", ts.NumGroups())
	}

	single := NewObject(EmptyShape(ClassPlain, nil, 0), NewSingletonTypeObject(nil))
	ts.Add(ObjectValue(single))
	if ts.NumObjects() != 1 {
		t.Errorf("Expected 1 singleton object, got %d", ts.NumObjects())
	}
}

func TestTypeSetDegradesToAnyObject(t *testing.T) {
	var ts TypeSet
	for i := 0; i <= MaxTypeSetObjects; i++ {
		o := NewObject(EmptyShape(ClassPlain, nil, 0), NewTypeObject(nil))
		ts.Add(ObjectValue(o))
	}
	if !ts.AnyObject() {
		t.Error("Expected set to degrade to any object")
	}
	fresh := NewObject(EmptyShape(ClassPlain, nil, 0), NewTypeObject(nil))
	if !ts.Has(ObjectValue(fresh)) {
		t.Error("Expected any-object set to contain every object")
	}
}

func TestWeak(t *testing.T) {
	s := EmptyShape(ClassPlain, nil, 0)
	w := MakeWeak(s)
	if !w.IsAlive() || !w.Is(s) {
		t.Fatal("Expected live weak reference")
	}
	if w.Clear() != s {
		t.Error("Expected Clear to return the old target")
	}
	if w.IsAlive() || w.Is(nil) {
		t.Error("Expected cleared reference to match nothing")
	}
}
