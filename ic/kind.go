package ic

// Kind identifies what a stub does. The set is closed: every stub the
// engine can build has one of these kinds, and the per-kind payload is
// selected by it.
type Kind uint16

const (
	KindInvalid Kind = iota

	StackCheckFallback
	UseCountFallback

	TypeMonitorFallback
	TypeMonitorPrimitive
	TypeMonitorSingleObject
	TypeMonitorTypeObject

	TypeUpdateFallback
	TypeUpdatePrimitive
	TypeUpdateSingleObject
	TypeUpdateTypeObject

	ThisFallback
	NewArrayFallback
	NewObjectFallback

	CompareFallback
	CompareInt32
	CompareDouble
	CompareNumberWithUndefined
	CompareString
	CompareBoolean
	CompareObject
	CompareObjectWithUndefined

	ToBoolFallback
	ToBoolInt32
	ToBoolString
	ToBoolNullUndefined

	ToNumberFallback

	BinaryArithFallback
	BinaryArithInt32
	BinaryArithDouble
	BinaryArithStringConcat
	BinaryArithStringObjectConcat

	UnaryArithFallback
	UnaryArithInt32
	UnaryArithDouble

	CallFallback
	CallScripted
	CallNative

	GetElemFallback
	GetElemNative
	GetElemNativePrototype
	GetElemString
	GetElemDense
	GetElemTypedArray

	SetElemFallback
	SetElemDense
	SetElemDenseAdd
	SetElemTypedArray

	InFallback

	GetNameFallback
	GetNameGlobal
	GetNameScope0
	GetNameScope1
	GetNameScope2
	GetNameScope3
	GetNameScope4

	BindNameFallback

	GetIntrinsicFallback
	GetIntrinsicConstant

	GetPropFallback
	GetPropArrayLength
	GetPropTypedArrayLength
	GetPropString
	GetPropStringLength
	GetPropNative
	GetPropNativePrototype

	SetPropFallback
	SetPropNative

	TableSwitch

	IteratorNewFallback
	IteratorMoreFallback
	IteratorMoreNative
	IteratorNextFallback
	IteratorNextNative
	IteratorCloseFallback

	InstanceOfFallback
	TypeOfFallback

	kindLimit
)

// MaxScopeHops is the deepest scope chain walk a GetName stub specializes.
const MaxScopeHops = 4

type kindInfo struct {
	name     string
	fallback Kind // the fallback kind of this kind's chain
	role     Trait
}

var kinds = [kindLimit]kindInfo{
	StackCheckFallback: {"StackCheck_Fallback", StackCheckFallback, TraitFallback},
	UseCountFallback:   {"UseCount_Fallback", UseCountFallback, TraitFallback},

	TypeMonitorFallback:     {"TypeMonitor_Fallback", TypeMonitorFallback, TraitFallback},
	TypeMonitorPrimitive:    {"TypeMonitor_Primitive", TypeMonitorFallback, TraitRegular},
	TypeMonitorSingleObject: {"TypeMonitor_SingleObject", TypeMonitorFallback, TraitRegular},
	TypeMonitorTypeObject:   {"TypeMonitor_TypeObject", TypeMonitorFallback, TraitRegular},

	TypeUpdateFallback:     {"TypeUpdate_Fallback", TypeUpdateFallback, TraitFallback},
	TypeUpdatePrimitive:    {"TypeUpdate_Primitive", TypeUpdateFallback, TraitRegular},
	TypeUpdateSingleObject: {"TypeUpdate_SingleObject", TypeUpdateFallback, TraitRegular},
	TypeUpdateTypeObject:   {"TypeUpdate_TypeObject", TypeUpdateFallback, TraitRegular},

	ThisFallback:      {"This_Fallback", ThisFallback, TraitFallback},
	NewArrayFallback:  {"NewArray_Fallback", NewArrayFallback, TraitFallback},
	NewObjectFallback: {"NewObject_Fallback", NewObjectFallback, TraitFallback},

	CompareFallback:            {"Compare_Fallback", CompareFallback, TraitFallback},
	CompareInt32:               {"Compare_Int32", CompareFallback, TraitRegular},
	CompareDouble:              {"Compare_Double", CompareFallback, TraitRegular},
	CompareNumberWithUndefined: {"Compare_NumberWithUndefined", CompareFallback, TraitRegular},
	CompareString:              {"Compare_String", CompareFallback, TraitRegular},
	CompareBoolean:             {"Compare_Boolean", CompareFallback, TraitRegular},
	CompareObject:              {"Compare_Object", CompareFallback, TraitRegular},
	CompareObjectWithUndefined: {"Compare_ObjectWithUndefined", CompareFallback, TraitRegular},

	ToBoolFallback:      {"ToBool_Fallback", ToBoolFallback, TraitFallback},
	ToBoolInt32:         {"ToBool_Int32", ToBoolFallback, TraitRegular},
	ToBoolString:        {"ToBool_String", ToBoolFallback, TraitRegular},
	ToBoolNullUndefined: {"ToBool_NullUndefined", ToBoolFallback, TraitRegular},

	ToNumberFallback: {"ToNumber_Fallback", ToNumberFallback, TraitFallback},

	BinaryArithFallback:           {"BinaryArith_Fallback", BinaryArithFallback, TraitFallback},
	BinaryArithInt32:              {"BinaryArith_Int32", BinaryArithFallback, TraitRegular},
	BinaryArithDouble:             {"BinaryArith_Double", BinaryArithFallback, TraitRegular},
	BinaryArithStringConcat:       {"BinaryArith_StringConcat", BinaryArithFallback, TraitRegular},
	BinaryArithStringObjectConcat: {"BinaryArith_StringObjectConcat", BinaryArithFallback, TraitRegular},

	UnaryArithFallback: {"UnaryArith_Fallback", UnaryArithFallback, TraitFallback},
	UnaryArithInt32:    {"UnaryArith_Int32", UnaryArithFallback, TraitRegular},
	UnaryArithDouble:   {"UnaryArith_Double", UnaryArithFallback, TraitRegular},

	CallFallback: {"Call_Fallback", CallFallback, TraitMonitoredFallback},
	CallScripted: {"Call_Scripted", CallFallback, TraitMonitored},
	CallNative:   {"Call_Native", CallFallback, TraitMonitored},

	GetElemFallback:        {"GetElem_Fallback", GetElemFallback, TraitMonitoredFallback},
	GetElemNative:          {"GetElem_Native", GetElemFallback, TraitMonitored},
	GetElemNativePrototype: {"GetElem_NativePrototype", GetElemFallback, TraitMonitored},
	GetElemString:          {"GetElem_String", GetElemFallback, TraitMonitored},
	GetElemDense:           {"GetElem_Dense", GetElemFallback, TraitMonitored},
	GetElemTypedArray:      {"GetElem_TypedArray", GetElemFallback, TraitMonitored},

	SetElemFallback:   {"SetElem_Fallback", SetElemFallback, TraitFallback},
	SetElemDense:      {"SetElem_Dense", SetElemFallback, TraitUpdated},
	SetElemDenseAdd:   {"SetElem_DenseAdd", SetElemFallback, TraitUpdated},
	SetElemTypedArray: {"SetElem_TypedArray", SetElemFallback, TraitRegular},

	InFallback: {"In_Fallback", InFallback, TraitFallback},

	GetNameFallback: {"GetName_Fallback", GetNameFallback, TraitMonitoredFallback},
	GetNameGlobal:   {"GetName_Global", GetNameFallback, TraitMonitored},
	GetNameScope0:   {"GetName_Scope0", GetNameFallback, TraitMonitored},
	GetNameScope1:   {"GetName_Scope1", GetNameFallback, TraitMonitored},
	GetNameScope2:   {"GetName_Scope2", GetNameFallback, TraitMonitored},
	GetNameScope3:   {"GetName_Scope3", GetNameFallback, TraitMonitored},
	GetNameScope4:   {"GetName_Scope4", GetNameFallback, TraitMonitored},

	BindNameFallback: {"BindName_Fallback", BindNameFallback, TraitFallback},

	GetIntrinsicFallback: {"GetIntrinsic_Fallback", GetIntrinsicFallback, TraitMonitoredFallback},
	GetIntrinsicConstant: {"GetIntrinsic_Constant", GetIntrinsicFallback, TraitRegular},

	GetPropFallback:         {"GetProp_Fallback", GetPropFallback, TraitMonitoredFallback},
	GetPropArrayLength:      {"GetProp_ArrayLength", GetPropFallback, TraitMonitored},
	GetPropTypedArrayLength: {"GetProp_TypedArrayLength", GetPropFallback, TraitMonitored},
	GetPropString:           {"GetProp_String", GetPropFallback, TraitMonitored},
	GetPropStringLength:     {"GetProp_StringLength", GetPropFallback, TraitMonitored},
	GetPropNative:           {"GetProp_Native", GetPropFallback, TraitMonitored},
	GetPropNativePrototype:  {"GetProp_NativePrototype", GetPropFallback, TraitMonitored},

	SetPropFallback: {"SetProp_Fallback", SetPropFallback, TraitFallback},
	SetPropNative:   {"SetProp_Native", SetPropFallback, TraitUpdated},

	TableSwitch: {"TableSwitch", TableSwitch, TraitFallback},

	IteratorNewFallback:   {"IteratorNew_Fallback", IteratorNewFallback, TraitFallback},
	IteratorMoreFallback:  {"IteratorMore_Fallback", IteratorMoreFallback, TraitFallback},
	IteratorMoreNative:    {"IteratorMore_Native", IteratorMoreFallback, TraitRegular},
	IteratorNextFallback:  {"IteratorNext_Fallback", IteratorNextFallback, TraitFallback},
	IteratorNextNative:    {"IteratorNext_Native", IteratorNextFallback, TraitRegular},
	IteratorCloseFallback: {"IteratorClose_Fallback", IteratorCloseFallback, TraitFallback},

	InstanceOfFallback: {"InstanceOf_Fallback", InstanceOfFallback, TraitFallback},
	TypeOfFallback:     {"TypeOf_Fallback", TypeOfFallback, TraitFallback},
}

// Valid reports whether k is a real kind.
func (k Kind) Valid() bool {
	return k > KindInvalid && k < kindLimit
}

func (k Kind) String() string {
	if !k.Valid() {
		return "Invalid"
	}
	return kinds[k].name
}

// IsFallback reports whether k terminates a chain.
func (k Kind) IsFallback() bool {
	return k.Valid() && kinds[k].fallback == k
}

// FallbackKind returns the kind of the fallback that terminates chains
// holding stubs of kind k.
func (k Kind) FallbackKind() Kind {
	if !k.Valid() {
		return KindInvalid
	}
	return kinds[k].fallback
}

// DefaultTrait is the role a freshly built stub of kind k carries.
func (k Kind) DefaultTrait() Trait {
	if !k.Valid() {
		return TraitRegular
	}
	return kinds[k].role
}

// IsMonitorKind reports whether k belongs to a type monitor chain.
func (k Kind) IsMonitorKind() bool {
	return k.Valid() && kinds[k].fallback == TypeMonitorFallback
}

// IsUpdateKind reports whether k belongs to a type update chain.
func (k Kind) IsUpdateKind() bool {
	return k.Valid() && kinds[k].fallback == TypeUpdateFallback
}

// KindByName looks up a kind by its display name.
func KindByName(name string) (Kind, bool) {
	for k := KindInvalid + 1; k < kindLimit; k++ {
		if kinds[k].name == name {
			return k, true
		}
	}
	return KindInvalid, false
}

// CanMakeCalls reports whether stubs of kind k may call out to arbitrary
// code, and so may be an active return target on the stack during a sweep.
// Such stubs are allocated in the fallback space and survive purges.
func CanMakeCalls(k Kind) bool {
	switch k {
	case CallScripted, CallNative, CallFallback, UseCountFallback,
		BinaryArithStringObjectConcat:
		return true
	}
	return false
}

// MaxMonitorStubs caps the number of optimized stubs in a monitor chain.
const MaxMonitorStubs = 8

// MaxUpdateStubs caps the number of optimized stubs in an update chain.
const MaxUpdateStubs = 8

// defaultMaxOptimizedStubs holds the per-family cap on attached stubs.
// Fallback kinds not listed never specialize.
var defaultMaxOptimizedStubs = map[Kind]int{
	CompareFallback:      8,
	ToBoolFallback:       8,
	BinaryArithFallback:  8,
	UnaryArithFallback:   8,
	CallFallback:         8,
	GetElemFallback:      16,
	SetElemFallback:      8,
	GetNameFallback:      8,
	GetIntrinsicFallback: 1,
	GetPropFallback:      8,
	SetPropFallback:      8,
	IteratorMoreFallback: 1,
	IteratorNextFallback: 1,
}

// MaxOptimizedStubs returns the default cap for chains terminated by the
// fallback kind k.
func MaxOptimizedStubs(k Kind) int {
	return defaultMaxOptimizedStubs[k.FallbackKind()]
}

// SpecializingKinds lists the fallback kinds that attach stubs.
func SpecializingKinds() []Kind {
	var out []Kind
	for k := KindInvalid + 1; k < kindLimit; k++ {
		if k.IsFallback() && defaultMaxOptimizedStubs[k] > 0 {
			out = append(out, k)
		}
	}
	return out
}
