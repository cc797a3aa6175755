package ic

import (
	"github.com/chazu/baseline/value"
)

// StubData is the per-kind payload of a stub. The set of payloads is
// closed; each one enumerates its heap references for tracing.
type StubData interface {
	trace(t Tracer)
}

// ShapeGuard is embedded in payloads guarding on the receiver's shape.
type ShapeGuard struct {
	Shape value.Weak[value.Shape]
}

func (g *ShapeGuard) matches(o *value.Object) bool {
	return g.Shape.Is(o.Shape())
}

// SlotRef names a property slot on a holder object.
type SlotRef struct {
	Holder      value.Weak[value.Object]
	HolderShape value.Weak[value.Shape]
	Slot        int
}

// ---------------------------------------------------------------------------
// Element access
// ---------------------------------------------------------------------------

// GetElemNativeData serves GetElem_Native and GetElem_NativePrototype.
// Holder is unset for own properties.
type GetElemNativeData struct {
	ShapeGuard
	Key string
	SlotRef
}

func (d *GetElemNativeData) trace(t Tracer) {
	t.TraceShape(&d.Shape)
	t.TraceObject(&d.Holder)
	t.TraceShape(&d.HolderShape)
}

// GetElemDenseData serves GetElem_Dense and GetElem_TypedArray.
type GetElemDenseData struct {
	ShapeGuard
}

func (d *GetElemDenseData) trace(t Tracer) { t.TraceShape(&d.Shape) }

// SetElemDenseData serves SetElem_Dense.
type SetElemDenseData struct {
	ShapeGuard
	Group value.Weak[value.TypeObject]
}

func (d *SetElemDenseData) trace(t Tracer) {
	t.TraceShape(&d.Shape)
	t.TraceGroup(&d.Group)
}

// SetElemDenseAddData serves SetElem_DenseAdd. ProtoShapes guards each
// object on the prototype chain, which must have no indexed elements.
type SetElemDenseAddData struct {
	ShapeGuard
	Group       value.Weak[value.TypeObject]
	ProtoShapes []value.Weak[value.Shape]
}

func (d *SetElemDenseAddData) trace(t Tracer) {
	t.TraceShape(&d.Shape)
	t.TraceGroup(&d.Group)
	for i := range d.ProtoShapes {
		t.TraceShape(&d.ProtoShapes[i])
	}
}

// SetElemTypedArrayData serves SetElem_TypedArray.
type SetElemTypedArrayData struct {
	ShapeGuard
}

func (d *SetElemTypedArrayData) trace(t Tracer) { t.TraceShape(&d.Shape) }

// ---------------------------------------------------------------------------
// Names
// ---------------------------------------------------------------------------

// GetNameGlobalData serves GetName_Global.
type GetNameGlobalData struct {
	ShapeGuard
	Slot int
}

func (d *GetNameGlobalData) trace(t Tracer) { t.TraceShape(&d.Shape) }

// GetNameScopeData serves GetName_Scope0 through GetName_Scope4. Shapes
// holds one shape per scope walked, hops plus one.
type GetNameScopeData struct {
	Shapes []value.Weak[value.Shape]
	Slot   int
}

func (d *GetNameScopeData) trace(t Tracer) {
	for i := range d.Shapes {
		t.TraceShape(&d.Shapes[i])
	}
}

// GetIntrinsicData serves GetIntrinsic_Constant. Object constants are held
// weakly; once cleared the stub falls through to the fallback.
type GetIntrinsicData struct {
	Primitive value.Value
	Object    value.Weak[value.Object]
	IsObject  bool
}

func newGetIntrinsicData(v value.Value) *GetIntrinsicData {
	if v.IsObject() {
		return &GetIntrinsicData{Object: value.MakeWeak(v.ToObject()), IsObject: true}
	}
	return &GetIntrinsicData{Primitive: v}
}

// Constant returns the cached value, or false if the object it named has
// been cleared.
func (d *GetIntrinsicData) Constant() (value.Value, bool) {
	if !d.IsObject {
		return d.Primitive, true
	}
	if !d.Object.IsAlive() {
		return value.Value{}, false
	}
	return value.ObjectValue(d.Object.Get()), true
}

func (d *GetIntrinsicData) trace(t Tracer) {
	if d.IsObject {
		t.TraceObject(&d.Object)
	}
}

// ---------------------------------------------------------------------------
// Properties
// ---------------------------------------------------------------------------

// GetPropNativeData serves GetProp_Native and GetProp_NativePrototype.
// Holder is unset for own properties.
type GetPropNativeData struct {
	ShapeGuard
	SlotRef
}

func (d *GetPropNativeData) trace(t Tracer) {
	t.TraceShape(&d.Shape)
	t.TraceObject(&d.Holder)
	t.TraceShape(&d.HolderShape)
}

// GetPropStringData serves GetProp_String: a property found on the string
// prototype.
type GetPropStringData struct {
	SlotRef
}

func (d *GetPropStringData) trace(t Tracer) {
	t.TraceObject(&d.Holder)
	t.TraceShape(&d.HolderShape)
}

// SetPropNativeData serves SetProp_Native.
type SetPropNativeData struct {
	ShapeGuard
	Group value.Weak[value.TypeObject]
	Name  string
	Slot  int
}

func (d *SetPropNativeData) trace(t Tracer) {
	t.TraceShape(&d.Shape)
	t.TraceGroup(&d.Group)
}

// ---------------------------------------------------------------------------
// Calls, switches, type feedback
// ---------------------------------------------------------------------------

// CallData serves Call_Scripted and Call_Native.
type CallData struct {
	Callee value.Weak[value.Object]
}

func (d *CallData) trace(t Tracer) { t.TraceObject(&d.Callee) }

// TableSwitchData is the jump table of a TableSwitch stub.
type TableSwitchData struct {
	Low     int32
	Targets []uint32
	Default uint32
}

func (d *TableSwitchData) trace(Tracer) {}

// ObjectTypeData serves the SingleObject monitor and update stubs.
type ObjectTypeData struct {
	Object value.Weak[value.Object]
}

func (d *ObjectTypeData) trace(t Tracer) { t.TraceObject(&d.Object) }

// GroupTypeData serves the TypeObject monitor and update stubs.
type GroupTypeData struct {
	Group value.Weak[value.TypeObject]
}

func (d *GroupTypeData) trace(t Tracer) { t.TraceGroup(&d.Group) }
