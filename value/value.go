// Package value is the value model inline caches guard on: tagged values,
// shapes, objects, type groups and weak references.
package value

import (
	"math"
)

// Type is the tag of a Value. Stub guards compare these tags directly, and
// monitor stubs store them in their extra field, so the numbering is stable.
type Type uint8

const (
	TypeDouble Type = iota
	TypeInt32
	TypeUndefined
	TypeBoolean
	TypeMagic
	TypeString
	TypeNull
	TypeObjectTag

	NumTypes
)

var typeNames = [NumTypes]string{
	TypeDouble:    "double",
	TypeInt32:     "int32",
	TypeUndefined: "undefined",
	TypeBoolean:   "boolean",
	TypeMagic:     "magic",
	TypeString:    "string",
	TypeNull:      "null",
	TypeObjectTag: "object",
}

func (t Type) String() string {
	if t < NumTypes {
		return typeNames[t]
	}
	return "invalid"
}

// Magic payloads. Holes in dense element vectors are the only magic value
// that escapes into object storage.
const (
	MagicHole uint64 = iota
	MagicUninitialized
)

// Value is a tagged runtime value.
//
// Numbers, booleans and magic payloads live in bits; strings and objects
// carry their own reference. The zero Value is the double 0.
type Value struct {
	typ  Type
	bits uint64
	str  string
	obj  *Object
}

// ---------------------------------------------------------------------------
// Constructors
// ---------------------------------------------------------------------------

func Int32(i int32) Value { return Value{typ: TypeInt32, bits: uint64(uint32(i))} }

func Double(f float64) Value { return Value{typ: TypeDouble, bits: math.Float64bits(f)} }

// Number returns f as an Int32 value when it is integral, in range and not
// negative zero, and as a Double otherwise. Every arithmetic result goes
// through Number so that generic and specialized paths agree on the tag.
func Number(f float64) Value {
	if f >= math.MinInt32 && f <= math.MaxInt32 {
		i := int32(f)
		if float64(i) == f && !(f == 0 && math.Signbit(f)) {
			return Int32(i)
		}
	}
	return Double(f)
}

func Bool(b bool) Value {
	if b {
		return Value{typ: TypeBoolean, bits: 1}
	}
	return Value{typ: TypeBoolean}
}

func String(s string) Value { return Value{typ: TypeString, str: s} }

func Undefined() Value { return Value{typ: TypeUndefined} }

func Null() Value { return Value{typ: TypeNull} }

func Magic(why uint64) Value { return Value{typ: TypeMagic, bits: why} }

// Hole is the magic value stored in unset dense element slots.
func Hole() Value { return Magic(MagicHole) }

// ObjectValue wraps o. A nil object yields null.
func ObjectValue(o *Object) Value {
	if o == nil {
		return Null()
	}
	return Value{typ: TypeObjectTag, obj: o}
}

// ---------------------------------------------------------------------------
// Type checking
// ---------------------------------------------------------------------------

func (v Value) Type() Type { return v.typ }

func (v Value) IsInt32() bool     { return v.typ == TypeInt32 }
func (v Value) IsDouble() bool    { return v.typ == TypeDouble }
func (v Value) IsNumber() bool    { return v.typ == TypeInt32 || v.typ == TypeDouble }
func (v Value) IsBoolean() bool   { return v.typ == TypeBoolean }
func (v Value) IsString() bool    { return v.typ == TypeString }
func (v Value) IsObject() bool    { return v.typ == TypeObjectTag }
func (v Value) IsUndefined() bool { return v.typ == TypeUndefined }
func (v Value) IsNull() bool      { return v.typ == TypeNull }
func (v Value) IsMagic() bool     { return v.typ == TypeMagic }
func (v Value) IsHole() bool      { return v.typ == TypeMagic && v.bits == MagicHole }

func (v Value) IsNullOrUndefined() bool {
	return v.typ == TypeNull || v.typ == TypeUndefined
}

// IsPrimitive reports whether v is anything other than an object.
func (v Value) IsPrimitive() bool { return v.typ != TypeObjectTag }

// ---------------------------------------------------------------------------
// Accessors
// ---------------------------------------------------------------------------

// ToInt32 returns the payload of an Int32 value.
func (v Value) ToInt32() int32 { return int32(uint32(v.bits)) }

// ToDouble returns the payload of a Double value.
func (v Value) ToDouble() float64 { return math.Float64frombits(v.bits) }

// ToNumber returns the numeric payload of an Int32 or Double value.
func (v Value) ToNumber() float64 {
	if v.typ == TypeInt32 {
		return float64(v.ToInt32())
	}
	return v.ToDouble()
}

func (v Value) ToBoolean() bool { return v.bits != 0 }

func (v Value) ToString() string { return v.str }

func (v Value) ToObject() *Object { return v.obj }

func (v Value) MagicWhy() uint64 { return v.bits }

// SameValue is identity comparison: same tag and same payload. Doubles are
// compared bitwise, so NaN equals NaN and 0 differs from -0.
func (v Value) SameValue(o Value) bool {
	if v.typ != o.typ {
		return false
	}
	switch v.typ {
	case TypeString:
		return v.str == o.str
	case TypeObjectTag:
		return v.obj == o.obj
	case TypeUndefined, TypeNull:
		return true
	default:
		return v.bits == o.bits
	}
}
