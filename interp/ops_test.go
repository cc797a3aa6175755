package interp

import (
	"math"
	"testing"

	"github.com/chazu/baseline/ic"
	"github.com/chazu/baseline/value"
)

func TestCompare(t *testing.T) {
	r := NewRealm()
	obj := value.ObjectValue(r.NewPlainObject())
	tests := []struct {
		name     string
		op       ic.Op
		lhs, rhs value.Value
		expected bool
	}{
		{"int equals double", ic.OpStrictEq, value.Int32(2), value.Double(2), true},
		{"strict string/number", ic.OpStrictEq, value.String("1"), value.Int32(1), false},
		{"loose string/number", ic.OpEq, value.String("1"), value.Int32(1), true},
		{"loose bool/number", ic.OpEq, value.Bool(true), value.Int32(1), true},
		{"null equals undefined", ic.OpEq, value.Null(), value.Undefined(), true},
		{"null strict undefined", ic.OpStrictEq, value.Null(), value.Undefined(), false},
		{"number vs undefined", ic.OpEq, value.Int32(0), value.Undefined(), false},
		{"object identity", ic.OpStrictEq, obj, obj, true},
		{"object vs undefined", ic.OpNe, obj, value.Undefined(), true},
		{"NaN not equal to itself", ic.OpStrictEq, value.Double(math.NaN()), value.Double(math.NaN()), false},
		{"string order", ic.OpLt, value.String("apple"), value.String("banana"), true},
		{"numeric string order", ic.OpLt, value.String("10"), value.Int32(9), false},
		{"le", ic.OpLe, value.Int32(3), value.Double(3), true},
		{"NaN compares false", ic.OpGe, value.Double(math.NaN()), value.Int32(0), false},
		{"gt", ic.OpGt, value.Double(2.5), value.Int32(2), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Compare(tt.op, tt.lhs, tt.rhs)
			if err != nil {
				t.Fatalf("Compare failed: %v", err)
			}
			if got != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestBinaryArith(t *testing.T) {
	r := NewRealm()
	tests := []struct {
		name     string
		op       ic.Op
		lhs, rhs value.Value
		expected value.Value
	}{
		{"int add", ic.OpAdd, value.Int32(2), value.Int32(3), value.Int32(5)},
		{"add overflows to double", ic.OpAdd, value.Int32(math.MaxInt32), value.Int32(1), value.Double(math.MaxInt32 + 1)},
		{"double add normalizes", ic.OpAdd, value.Double(1.5), value.Double(2.5), value.Int32(4)},
		{"concat", ic.OpAdd, value.Int32(1), value.String("2"), value.String("12")},
		{"concat undefined", ic.OpAdd, value.String("x"), value.Undefined(), value.String("xundefined")},
		{"sub string", ic.OpSub, value.String("7"), value.Int32(2), value.Int32(5)},
		{"div", ic.OpDiv, value.Int32(1), value.Int32(2), value.Double(0.5)},
		{"mod", ic.OpMod, value.Int32(7), value.Int32(3), value.Int32(1)},
		{"negative zero", ic.OpMul, value.Int32(-1), value.Int32(0), value.Double(math.Copysign(0, -1))},
		{"bitor", ic.OpBitOr, value.Int32(5), value.Int32(2), value.Int32(7)},
		{"bitand double", ic.OpBitAnd, value.Double(7.9), value.Int32(3), value.Int32(3)},
		{"lsh wraps", ic.OpLsh, value.Int32(1), value.Int32(33), value.Int32(2)},
		{"rsh keeps sign", ic.OpRsh, value.Int32(-8), value.Int32(1), value.Int32(-4)},
		{"ursh", ic.OpUrsh, value.Int32(-1), value.Int32(0), value.Double(4294967295)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.BinaryArith(tt.op, tt.lhs, tt.rhs)
			if err != nil {
				t.Fatalf("BinaryArith failed: %v", err)
			}
			if got.Type() != tt.expected.Type() || !got.SameValue(tt.expected) {
				t.Errorf("Expected %s %v, got %s %v", tt.expected.Type(), tt.expected, got.Type(), got)
			}
		})
	}
}

func TestUnaryArith(t *testing.T) {
	r := NewRealm()
	v, err := r.UnaryArith(ic.OpBitNot, value.Int32(0))
	if err != nil || !v.IsInt32() || v.ToInt32() != -1 {
		t.Errorf("Expected ~0 == -1, got %v (%v)", v, err)
	}
	v, err = r.UnaryArith(ic.OpNeg, value.Int32(0))
	if err != nil || !v.IsDouble() || !math.Signbit(v.ToDouble()) {
		t.Errorf("Expected -0 as a double, got %v (%v)", v, err)
	}
	if _, err := r.UnaryArith(ic.OpAdd, value.Int32(0)); !IsError(err, TypeError) {
		t.Errorf("Expected TypeError for a binary op, got %v", err)
	}
}

func TestObjectToPrimitive(t *testing.T) {
	r := NewRealm()
	obj := r.NewPlainObject()
	obj.Define("valueOf", value.ObjectValue(r.NewNativeFunction("valueOf", 0, func(this value.Value, args []value.Value) (value.Value, error) {
		return value.Int32(40), nil
	})))
	got, err := r.BinaryArith(ic.OpAdd, value.ObjectValue(obj), value.Int32(2))
	if err != nil {
		t.Fatalf("BinaryArith failed: %v", err)
	}
	if !got.IsInt32() || got.ToInt32() != 42 {
		t.Errorf("Expected 42, got %v", got)
	}

	s, err := r.ToString(value.ObjectValue(r.NewPlainObject()))
	if err != nil {
		t.Fatalf("ToString failed: %v", err)
	}
	if s != "[object Object]" {
		t.Errorf("Expected [object Object], got %q", s)
	}
	s, _ = r.ToString(value.ObjectValue(r.NewArrayOf(value.Int32(1), value.Null(), value.String("b"))))
	if s != "1,,b" {
		t.Errorf("Expected 1,,b, got %q", s)
	}
}

func TestStringToNumber(t *testing.T) {
	tests := []struct {
		in       string
		expected float64
	}{
		{"", 0},
		{"  12 ", 12},
		{"0x1f", 31},
		{"1e3", 1000},
		{"-Infinity", math.Inf(-1)},
	}
	for _, tt := range tests {
		if got := stringToNumber(tt.in); got != tt.expected {
			t.Errorf("stringToNumber(%q): expected %v, got %v", tt.in, tt.expected, got)
		}
	}
	for _, in := range []string{"abc", "inf", "nan", "1_000", "0xZZ"} {
		if got := stringToNumber(in); !math.IsNaN(got) {
			t.Errorf("stringToNumber(%q): expected NaN, got %v", in, got)
		}
	}
}

func TestNumberToString(t *testing.T) {
	tests := map[float64]string{
		0:                    "0",
		math.Copysign(0, -1): "0",
		1.5:                  "1.5",
		-42:                  "-42",
		1e21:                 "1e+21",
		math.Inf(1):          "Infinity",
	}
	for in, expected := range tests {
		if got := numberToString(in); got != expected {
			t.Errorf("numberToString(%v): expected %q, got %q", in, expected, got)
		}
	}
}

func TestGetProp(t *testing.T) {
	r := NewRealm()
	base := r.NewPlainObject()
	base.Define("inherited", value.Int32(7))
	obj := r.NewObjectIn(base, r.NewGroup())
	obj.Define("own", value.String("yes"))

	v, _ := r.GetProp(value.ObjectValue(obj), "own")
	if v.ToString() != "yes" {
		t.Errorf("Expected own property, got %v", v)
	}
	v, _ = r.GetProp(value.ObjectValue(obj), "inherited")
	if v.ToInt32() != 7 {
		t.Errorf("Expected inherited property 7, got %v", v)
	}
	v, _ = r.GetProp(value.ObjectValue(obj), "missing")
	if !v.IsUndefined() {
		t.Errorf("Expected undefined, got %v", v)
	}

	v, _ = r.GetProp(value.String("héllo"), "length")
	if !v.IsInt32() || v.ToInt32() != 5 {
		t.Errorf("Expected string length 5, got %v", v)
	}
	v, _ = r.GetProp(value.String("abc"), "charAt")
	if !v.IsObject() || v.ToObject().Function() == nil {
		t.Errorf("Expected charAt from the string prototype, got %v", v)
	}
	v, _ = r.GetProp(value.ObjectValue(r.NewArrayOf(value.Int32(1), value.Int32(2))), "length")
	if !v.IsInt32() || v.ToInt32() != 2 {
		t.Errorf("Expected array length 2, got %v", v)
	}
	v, _ = r.GetProp(value.ObjectValue(r.NewTypedArray(value.ElemInt8, 4)), "length")
	if v.ToInt32() != 4 {
		t.Errorf("Expected typed array length 4, got %v", v)
	}

	if _, err := r.GetProp(value.Undefined(), "x"); !IsError(err, TypeError) {
		t.Errorf("Expected TypeError reading from undefined, got %v", err)
	}
}

func TestSetPropArrayLength(t *testing.T) {
	r := NewRealm()
	arr := r.NewArrayOf(value.Int32(1), value.Int32(2), value.Int32(3))

	if err := r.SetProp(value.ObjectValue(arr), "length", value.Int32(1)); err != nil {
		t.Fatalf("SetProp failed: %v", err)
	}
	if arr.DenseLength() != 1 {
		t.Errorf("Expected length 1 after truncation, got %d", arr.DenseLength())
	}
	if err := r.SetProp(value.ObjectValue(arr), "length", value.Double(1.5)); !IsError(err, RangeError) {
		t.Errorf("Expected RangeError for a fractional length, got %v", err)
	}
	if err := r.SetProp(value.Int32(1), "x", value.Int32(2)); err != nil {
		t.Errorf("Expected writes to primitives to be ignored, got %v", err)
	}
}

func TestElements(t *testing.T) {
	r := NewRealm()
	arr := r.NewArrayOf(value.Int32(10), value.Int32(20))
	av := value.ObjectValue(arr)

	if err := r.SetElem(av, value.Int32(2), value.Int32(30)); err != nil {
		t.Fatalf("SetElem append failed: %v", err)
	}
	if err := r.SetElem(av, value.Int32(5), value.Int32(60)); err != nil {
		t.Fatalf("SetElem past the end failed: %v", err)
	}
	if arr.DenseLength() != 6 {
		t.Errorf("Expected length 6, got %d", arr.DenseLength())
	}
	v, _ := r.GetElem(av, value.Int32(4))
	if !v.IsUndefined() {
		t.Errorf("Expected hole to read as undefined, got %v", v)
	}
	v, _ = r.GetElem(av, value.Double(2))
	if v.ToInt32() != 30 {
		t.Errorf("Expected 30, got %v", v)
	}
	v, _ = r.GetElem(av, value.String("1"))
	if v.ToInt32() != 20 {
		t.Errorf("Expected string key to index, got %v", v)
	}

	ta := r.NewTypedArray(value.ElemUint8, 2)
	tv := value.ObjectValue(ta)
	r.SetElem(tv, value.Int32(0), value.Int32(300))
	v, _ = r.GetElem(tv, value.Int32(0))
	if !v.IsInt32() || v.ToInt32() != 44 {
		t.Errorf("Expected uint8 wraparound to 44, got %v", v)
	}
	r.SetElem(tv, value.Int32(9), value.Int32(1))
	v, _ = r.GetElem(tv, value.Int32(9))
	if !v.IsUndefined() {
		t.Errorf("Expected out-of-range typed read to be undefined, got %v", v)
	}

	v, _ = r.GetElem(value.String("abc"), value.Int32(1))
	if v.ToString() != "b" {
		t.Errorf("Expected b, got %v", v)
	}

	if err := r.SetElem(av, value.Int32(maxHoleRun*4), value.Int32(1)); !IsError(err, RangeError) {
		t.Errorf("Expected RangeError for a far sparse write, got %v", err)
	}
}

func TestIn(t *testing.T) {
	r := NewRealm()
	arr := value.ObjectValue(r.NewArrayOf(value.Int32(1)))
	for _, tt := range []struct {
		key      value.Value
		expected bool
	}{
		{value.Int32(0), true},
		{value.Int32(1), false},
		{value.String("length"), true},
		{value.String("toString"), true},
		{value.String("nope"), false},
	} {
		got, err := r.In(tt.key, arr)
		if err != nil {
			t.Fatalf("In failed: %v", err)
		}
		if got != tt.expected {
			t.Errorf("In(%v): expected %v, got %v", tt.key, tt.expected, got)
		}
	}
	if _, err := r.In(value.String("x"), value.Int32(1)); !IsError(err, TypeError) {
		t.Errorf("Expected TypeError for in on a primitive, got %v", err)
	}
}

func TestNames(t *testing.T) {
	r := NewRealm()
	r.DefineGlobal("g", value.Int32(1))
	layout := NewScopeLayout("a", "b")
	outer := layout.Instantiate(r.Global(), value.Int32(2))
	inner := NewScopeLayout("c").Instantiate(outer, value.Int32(3))

	for name, expected := range map[string]value.Value{
		"a": value.Int32(2),
		"b": value.Undefined(),
		"c": value.Int32(3),
		"g": value.Int32(1),
	} {
		got, err := r.GetName(inner, name)
		if err != nil {
			t.Fatalf("GetName(%s) failed: %v", name, err)
		}
		if !got.SameValue(expected) {
			t.Errorf("GetName(%s): expected %v, got %v", name, expected, got)
		}
	}
	if _, err := r.GetName(inner, "zzz"); !IsError(err, ReferenceError) {
		t.Errorf("Expected ReferenceError, got %v", err)
	}

	holder, _ := r.BindName(inner, "a")
	if holder != outer {
		t.Error("Expected BindName to find the declaring scope")
	}
	holder, _ = r.BindName(inner, "undeclared")
	if holder != r.Global() {
		t.Error("Expected BindName to fall back to the global object")
	}

	if shape1, shape2 := layout.Instantiate(nil).Shape(), layout.Instantiate(nil).Shape(); shape1 != shape2 {
		t.Error("Expected scopes of one layout to share a shape")
	}

	pi, err := r.GetIntrinsic("PI")
	if err != nil || pi.ToNumber() != math.Pi {
		t.Errorf("Expected PI, got %v (%v)", pi, err)
	}
	if _, err := r.GetIntrinsic("nope"); !IsError(err, ReferenceError) {
		t.Errorf("Expected ReferenceError, got %v", err)
	}
}

func TestCall(t *testing.T) {
	r := NewRealm()
	var seenThis value.Value
	ctor := r.NewScriptedFunction("Thing", 1, func(this value.Value, args []value.Value) (value.Value, error) {
		seenThis = this
		return value.Undefined(), r.SetProp(this, "v", args[0])
	})

	res, err := r.Call(value.ObjectValue(ctor), value.Undefined(), []value.Value{value.Int32(5)}, true)
	if err != nil {
		t.Fatalf("Construct failed: %v", err)
	}
	if !res.IsObject() || res.ToObject() != seenThis.ToObject() {
		t.Fatal("Expected construct to return the new this object")
	}
	ok, _ := r.InstanceOf(res, value.ObjectValue(ctor))
	if !ok {
		t.Error("Expected constructed object to be an instance of its constructor")
	}
	res2, _ := r.Call(value.ObjectValue(ctor), value.Undefined(), []value.Value{value.Int32(6)}, true)
	if res.ToObject().Group() != res2.ToObject().Group() {
		t.Error("Expected objects of one constructor to share a group")
	}

	if _, err := r.Call(value.Int32(3), value.Undefined(), nil, false); !IsError(err, TypeError) {
		t.Errorf("Expected TypeError calling a number, got %v", err)
	}
	abs, _ := r.GetProp(mustGlobal(t, r, "Math"), "abs")
	if _, err := r.Call(abs, value.Undefined(), nil, true); !IsError(err, TypeError) {
		t.Errorf("Expected TypeError constructing a native, got %v", err)
	}
	v, err := r.Call(abs, value.Undefined(), []value.Value{value.Int32(-3)}, false)
	if err != nil || !v.IsInt32() || v.ToInt32() != 3 {
		t.Errorf("Expected abs(-3) == 3, got %v (%v)", v, err)
	}
}

func mustGlobal(t *testing.T, r *Realm, name string) value.Value {
	t.Helper()
	v, err := r.GetName(r.Global(), name)
	if err != nil {
		t.Fatalf("GetName(%s) failed: %v", name, err)
	}
	return v
}

func TestIterators(t *testing.T) {
	r := NewRealm()
	arr := r.NewArrayOf(value.Int32(1))
	arr.SetDenseLength(2)

	it, err := r.IteratorNew(value.ObjectValue(arr))
	if err != nil {
		t.Fatalf("IteratorNew failed: %v", err)
	}
	var got []value.Value
	for {
		more, _ := r.IteratorMore(it)
		if !more {
			break
		}
		v, _ := r.IteratorNext(it)
		got = append(got, v)
	}
	if len(got) != 2 || got[0].ToInt32() != 1 || !got[1].IsUndefined() {
		t.Errorf("Expected [1 undefined], got %v", got)
	}
	r.IteratorClose(it)

	it, _ = r.IteratorNew(value.String("ab"))
	first, _ := r.IteratorNext(it)
	if first.ToString() != "a" {
		t.Errorf("Expected a, got %v", first)
	}
	if _, err := r.IteratorNew(value.Int32(1)); !IsError(err, TypeError) {
		t.Errorf("Expected TypeError iterating a number, got %v", err)
	}
	if _, err := r.IteratorMore(value.ObjectValue(arr)); !IsError(err, TypeError) {
		t.Errorf("Expected TypeError for a non-iterator, got %v", err)
	}
}

func TestMisc(t *testing.T) {
	r := NewRealm()
	fn := value.ObjectValue(r.NewNativeFunction("f", 0, nil))
	for v, expected := range map[*value.Value]string{
		ptr(value.Undefined()):             "undefined",
		ptr(value.Null()):                  "object",
		ptr(value.Double(1.5)):             "number",
		ptr(value.String("")):              "string",
		ptr(value.Bool(false)):             "boolean",
		&fn:                                "function",
		ptr(value.ObjectValue(r.Global())): "object",
	} {
		if got := r.TypeOf(*v); got != expected {
			t.Errorf("TypeOf(%v): expected %s, got %s", *v, expected, got)
		}
	}

	arr, err := r.NewArray(3)
	if err != nil || arr.ToObject().DenseLength() != 3 {
		t.Errorf("Expected an array of length 3, got %v (%v)", arr, err)
	}
	if _, err := r.NewArray(-1); !IsError(err, RangeError) {
		t.Errorf("Expected RangeError, got %v", err)
	}

	this, _ := r.This(value.Undefined())
	if this.ToObject() != r.Global() {
		t.Error("Expected undefined this to become the global object")
	}
	if err := r.CheckStack(r.MaxStackDepth + 1); !IsError(err, RangeError) {
		t.Errorf("Expected RangeError past the stack limit, got %v", err)
	}
	if err := r.CheckStack(r.MaxStackDepth); err != nil {
		t.Errorf("Expected no error at the limit, got %v", err)
	}
}

func ptr(v value.Value) *value.Value { return &v }

func TestErrorString(t *testing.T) {
	err := newError(ReferenceError, "%s is not defined", "x")
	if err.Error() != "ReferenceError: x is not defined" {
		t.Errorf("Expected formatted error, got %q", err.Error())
	}
	if IsError(err, TypeError) {
		t.Error("Expected kind mismatch to report false")
	}
}
