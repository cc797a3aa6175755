package ic

import (
	"github.com/chazu/baseline/value"
)

// extraFixedSlot marks stubs whose slot is stored inline in the object.
const extraFixedSlot = 1

func fixedSlotFlag(shape *value.Shape, slot int) uint16 {
	if shape.IsFixedSlot(slot) {
		return extraFixedSlot
	}
	return 0
}

// ---------------------------------------------------------------------------
// GetProp stub bodies
// ---------------------------------------------------------------------------

func getPropArrayLength(s *Stub, f *Frame) (bool, error) {
	if !f.Lhs.IsObject() || f.Lhs.ToObject().Class() != value.ClassArray {
		return false, nil
	}
	f.Result = value.Number(float64(f.Lhs.ToObject().DenseLength()))
	return true, nil
}

func getPropTypedArrayLength(s *Stub, f *Frame) (bool, error) {
	if !f.Lhs.IsObject() || f.Lhs.ToObject().Class() != value.ClassTypedArray {
		return false, nil
	}
	f.Result = value.Int32(int32(f.Lhs.ToObject().Typed().Len()))
	return true, nil
}

func getPropStringLength(s *Stub, f *Frame) (bool, error) {
	if !f.Lhs.IsString() {
		return false, nil
	}
	f.Result = value.Int32(int32(value.StringLength(f.Lhs.ToString())))
	return true, nil
}

func getPropString(s *Stub, f *Frame) (bool, error) {
	if !f.Lhs.IsString() {
		return false, nil
	}
	d := s.data.(*GetPropStringData)
	holder := d.Holder.Get()
	if holder == nil || !d.HolderShape.Is(holder.Shape()) {
		return false, nil
	}
	f.Result = holder.GetSlot(d.Slot)
	return true, nil
}

func getPropNative(s *Stub, f *Frame) (bool, error) {
	if !f.Lhs.IsObject() {
		return false, nil
	}
	obj := f.Lhs.ToObject()
	d := s.data.(*GetPropNativeData)
	if !d.matches(obj) {
		return false, nil
	}
	f.Result = obj.GetSlot(d.Slot)
	return true, nil
}

func getPropNativePrototype(s *Stub, f *Frame) (bool, error) {
	if !f.Lhs.IsObject() {
		return false, nil
	}
	obj := f.Lhs.ToObject()
	d := s.data.(*GetPropNativeData)
	if !d.matches(obj) {
		return false, nil
	}
	holder := d.Holder.Get()
	if holder == nil || !d.HolderShape.Is(holder.Shape()) {
		return false, nil
	}
	f.Result = holder.GetSlot(d.Slot)
	return true, nil
}

func (e *Engine) getPropFallback(fb *Stub, f *Frame) error {
	name := f.entry.inst.Name
	recv := f.Lhs
	r, err := e.rt.GetProp(recv, name)
	if err != nil {
		return err
	}
	f.Result = r

	if !e.canAttach(fb) {
		return nil
	}
	e.tryAttachGetProp(fb, recv, name)
	return nil
}

func (e *Engine) tryAttachGetProp(fb *Stub, recv value.Value, name string) {
	if recv.IsString() {
		if name == "length" {
			if !fb.HasStub(GetPropStringLength) {
				e.attach(fb, GetPropStringLength, 0, CodeParams{}, nil)
			}
			return
		}
		proto := e.rt.StringPrototype()
		if proto == nil {
			e.unspecializable()
			return
		}
		slot, ok := proto.Shape().Lookup(name)
		if !ok {
			e.unspecializable()
			return
		}
		if fb.HasStub(GetPropString) {
			return
		}
		e.attach(fb, GetPropString, fixedSlotFlag(proto.Shape(), slot), CodeParams{}, &GetPropStringData{
			SlotRef: SlotRef{
				Holder:      value.MakeWeak(proto),
				HolderShape: value.MakeWeak(proto.Shape()),
				Slot:        slot,
			},
		})
		return
	}

	if !recv.IsObject() {
		e.unspecializable()
		return
	}
	obj := recv.ToObject()
	if name == "length" {
		switch obj.Class() {
		case value.ClassArray:
			if !fb.HasStub(GetPropArrayLength) {
				e.attach(fb, GetPropArrayLength, 0, CodeParams{}, nil)
			}
			return
		case value.ClassTypedArray:
			if !fb.HasStub(GetPropTypedArrayLength) {
				e.attach(fb, GetPropTypedArrayLength, 0, CodeParams{}, nil)
			}
			return
		}
	}

	holder, slot, ok := obj.Lookup(name)
	if !ok {
		e.unspecializable()
		return
	}
	shape := obj.Shape()
	if holder == obj {
		if fb.findStub(GetPropNative, func(s *Stub) bool {
			return s.data.(*GetPropNativeData).Shape.Is(shape)
		}) != nil {
			return
		}
		e.attach(fb, GetPropNative, fixedSlotFlag(shape, slot), CodeParams{Flags: uint8(fixedSlotFlag(shape, slot))}, &GetPropNativeData{
			ShapeGuard: ShapeGuard{Shape: value.MakeWeak(shape)},
			SlotRef:    SlotRef{Slot: slot},
		})
		return
	}

	// Only the direct prototype is specialized: the receiver's shape pins
	// the prototype, and the holder's shape pins its properties.
	if holder != obj.Proto() {
		e.unspecializable()
		return
	}
	if fb.findStub(GetPropNativePrototype, func(s *Stub) bool {
		d := s.data.(*GetPropNativeData)
		return d.Shape.Is(shape) && d.HolderShape.Is(holder.Shape())
	}) != nil {
		return
	}
	flag := fixedSlotFlag(holder.Shape(), slot)
	e.attach(fb, GetPropNativePrototype, flag, CodeParams{Flags: uint8(flag)}, &GetPropNativeData{
		ShapeGuard: ShapeGuard{Shape: value.MakeWeak(shape)},
		SlotRef: SlotRef{
			Holder:      value.MakeWeak(holder),
			HolderShape: value.MakeWeak(holder.Shape()),
			Slot:        slot,
		},
	})
}

// ---------------------------------------------------------------------------
// SetProp
// ---------------------------------------------------------------------------

// setPropNative writes an existing own data property. The value's type is
// checked against the update chain first; an unknown type takes the slow
// path once and is then known.
func setPropNative(s *Stub, f *Frame) (bool, error) {
	if !f.Lhs.IsObject() {
		return false, nil
	}
	obj := f.Lhs.ToObject()
	d := s.data.(*SetPropNativeData)
	if !d.matches(obj) || !d.Group.Is(obj.Group()) {
		return false, nil
	}
	if !s.upd.Check(f.Val) {
		f.engine.typeUpdateSlowPath(s, obj.Group().PropertyTypes(d.Name), f.Val)
	}
	obj.SetSlot(d.Slot, f.Val)
	f.Result = f.Val
	return true, nil
}

func (e *Engine) setPropFallback(fb *Stub, f *Frame) error {
	name := f.entry.inst.Name
	recv, v := f.Lhs, f.Val

	var oldShape *value.Shape
	if recv.IsObject() {
		oldShape = recv.ToObject().Shape()
	}
	if err := e.rt.SetProp(recv, name, v); err != nil {
		return err
	}
	f.Result = v
	if !recv.IsObject() {
		if e.canAttach(fb) {
			e.unspecializable()
		}
		return nil
	}
	obj := recv.ToObject()
	group := obj.Group()
	if group != nil {
		group.PropertyTypes(name).Add(v)
	}

	if !e.canAttach(fb) {
		return nil
	}
	slot, own := obj.Shape().Lookup(name)
	if !own || obj.Shape() != oldShape || group == nil || obj.Class() == value.ClassArray && name == "length" {
		e.unspecializable()
		return nil
	}
	if fb.findStub(SetPropNative, func(s *Stub) bool {
		d := s.data.(*SetPropNativeData)
		return d.Shape.Is(oldShape) && d.Group.Is(group)
	}) != nil {
		return nil
	}
	flag := fixedSlotFlag(oldShape, slot)
	s := e.attach(fb, SetPropNative, flag, CodeParams{Flags: uint8(flag)}, &SetPropNativeData{
		ShapeGuard: ShapeGuard{Shape: value.MakeWeak(oldShape)},
		Group:      value.MakeWeak(group),
		Name:       name,
		Slot:       slot,
	})
	if s != nil {
		e.addUpdateStubForValue(s, v)
	}
	return nil
}
