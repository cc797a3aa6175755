package ic

import (
	"github.com/chazu/baseline/value"
)

// maxDenseAddProtoDepth bounds the prototype chain a DenseAdd stub guards.
const maxDenseAddProtoDepth = 4

// int32Index returns key as a non-negative element index.
func int32Index(key value.Value) (int, bool) {
	if !key.IsInt32() || key.ToInt32() < 0 {
		return 0, false
	}
	return int(key.ToInt32()), true
}

// ---------------------------------------------------------------------------
// GetElem stub bodies
// ---------------------------------------------------------------------------

func getElemNative(s *Stub, f *Frame) (bool, error) {
	if !f.Lhs.IsObject() || !f.Rhs.IsString() {
		return false, nil
	}
	obj := f.Lhs.ToObject()
	d := s.data.(*GetElemNativeData)
	if !d.matches(obj) || f.Rhs.ToString() != d.Key {
		return false, nil
	}
	f.Result = obj.GetSlot(d.Slot)
	return true, nil
}

func getElemNativePrototype(s *Stub, f *Frame) (bool, error) {
	if !f.Lhs.IsObject() || !f.Rhs.IsString() {
		return false, nil
	}
	obj := f.Lhs.ToObject()
	d := s.data.(*GetElemNativeData)
	if !d.matches(obj) || f.Rhs.ToString() != d.Key {
		return false, nil
	}
	holder := d.Holder.Get()
	if holder == nil || !d.HolderShape.Is(holder.Shape()) {
		return false, nil
	}
	f.Result = holder.GetSlot(d.Slot)
	return true, nil
}

func getElemString(s *Stub, f *Frame) (bool, error) {
	if !f.Lhs.IsString() {
		return false, nil
	}
	i, ok := int32Index(f.Rhs)
	if !ok {
		return false, nil
	}
	c, ok := value.CharAt(f.Lhs.ToString(), i)
	if !ok {
		return false, nil
	}
	f.Result = value.String(c)
	return true, nil
}

func getElemDense(s *Stub, f *Frame) (bool, error) {
	if !f.Lhs.IsObject() {
		return false, nil
	}
	obj := f.Lhs.ToObject()
	d := s.data.(*GetElemDenseData)
	if !d.matches(obj) {
		return false, nil
	}
	i, ok := int32Index(f.Rhs)
	if !ok || i >= obj.DenseLength() {
		return false, nil
	}
	v := obj.DenseElement(i)
	if v.IsHole() {
		return false, nil
	}
	f.Result = v
	return true, nil
}

func getElemTypedArray(s *Stub, f *Frame) (bool, error) {
	if !f.Lhs.IsObject() {
		return false, nil
	}
	obj := f.Lhs.ToObject()
	d := s.data.(*GetElemDenseData)
	if !d.matches(obj) {
		return false, nil
	}
	i, ok := int32Index(f.Rhs)
	if !ok || i >= obj.Typed().Len() {
		return false, nil
	}
	f.Result = value.Number(obj.Typed().Get(i))
	return true, nil
}

func (e *Engine) getElemFallback(fb *Stub, f *Frame) error {
	recv, key := f.Lhs, f.Rhs
	r, err := e.rt.GetElem(recv, key)
	if err != nil {
		return err
	}
	f.Result = r

	if !e.canAttach(fb) {
		return nil
	}
	e.tryAttachGetElem(fb, recv, key)
	return nil
}

func (e *Engine) tryAttachGetElem(fb *Stub, recv, key value.Value) {
	if recv.IsString() {
		if i, ok := int32Index(key); ok && i < value.StringLength(recv.ToString()) {
			if !fb.HasStub(GetElemString) {
				e.attach(fb, GetElemString, 0, CodeParams{}, nil)
			}
			return
		}
		e.unspecializable()
		return
	}
	if !recv.IsObject() {
		e.unspecializable()
		return
	}
	obj := recv.ToObject()
	shape := obj.Shape()

	if key.IsString() {
		name := key.ToString()
		holder, slot, ok := obj.Lookup(name)
		if !ok || obj.Class() == value.ClassArray && name == "length" {
			e.unspecializable()
			return
		}
		same := func(s *Stub) bool {
			d := s.data.(*GetElemNativeData)
			return d.Shape.Is(shape) && d.Key == name
		}
		if holder == obj {
			if fb.findStub(GetElemNative, same) != nil {
				return
			}
			flag := fixedSlotFlag(shape, slot)
			e.attach(fb, GetElemNative, flag, CodeParams{Flags: uint8(flag)}, &GetElemNativeData{
				ShapeGuard: ShapeGuard{Shape: value.MakeWeak(shape)},
				Key:        name,
				SlotRef:    SlotRef{Slot: slot},
			})
			return
		}
		if holder != obj.Proto() {
			e.unspecializable()
			return
		}
		if fb.findStub(GetElemNativePrototype, same) != nil {
			return
		}
		flag := fixedSlotFlag(holder.Shape(), slot)
		e.attach(fb, GetElemNativePrototype, flag, CodeParams{Flags: uint8(flag)}, &GetElemNativeData{
			ShapeGuard: ShapeGuard{Shape: value.MakeWeak(shape)},
			Key:        name,
			SlotRef: SlotRef{
				Holder:      value.MakeWeak(holder),
				HolderShape: value.MakeWeak(holder.Shape()),
				Slot:        slot,
			},
		})
		return
	}

	i, ok := int32Index(key)
	if !ok {
		e.unspecializable()
		return
	}
	sameShape := func(s *Stub) bool { return s.data.(*GetElemDenseData).Shape.Is(shape) }
	switch obj.Class() {
	case value.ClassArray:
		if i >= obj.DenseLength() || obj.DenseElement(i).IsHole() {
			e.unspecializable()
			return
		}
		if fb.findStub(GetElemDense, sameShape) != nil {
			return
		}
		e.attach(fb, GetElemDense, 0, CodeParams{}, &GetElemDenseData{ShapeGuard{value.MakeWeak(shape)}})
	case value.ClassTypedArray:
		if i >= obj.Typed().Len() {
			e.unspecializable()
			return
		}
		if fb.findStub(GetElemTypedArray, sameShape) != nil {
			return
		}
		kind := uint16(obj.Typed().Kind())
		e.attach(fb, GetElemTypedArray, kind, CodeParams{Flags: uint8(kind)}, &GetElemDenseData{ShapeGuard{value.MakeWeak(shape)}})
	default:
		e.unspecializable()
	}
}

// ---------------------------------------------------------------------------
// SetElem
// ---------------------------------------------------------------------------

func setElemDense(s *Stub, f *Frame) (bool, error) {
	if !f.Lhs.IsObject() {
		return false, nil
	}
	obj := f.Lhs.ToObject()
	d := s.data.(*SetElemDenseData)
	if !d.matches(obj) || !d.Group.Is(obj.Group()) {
		return false, nil
	}
	i, ok := int32Index(f.Rhs)
	if !ok || i >= obj.DenseLength() || obj.DenseElement(i).IsHole() {
		return false, nil
	}
	if !s.upd.Check(f.Val) {
		f.engine.typeUpdateSlowPath(s, obj.Group().ElementTypes(), f.Val)
	}
	obj.SetDenseElement(i, f.Val)
	f.Result = f.Val
	return true, nil
}

func setElemDenseAdd(s *Stub, f *Frame) (bool, error) {
	if !f.Lhs.IsObject() {
		return false, nil
	}
	obj := f.Lhs.ToObject()
	d := s.data.(*SetElemDenseAddData)
	if !d.matches(obj) || !d.Group.Is(obj.Group()) {
		return false, nil
	}
	i, ok := int32Index(f.Rhs)
	if !ok || i != obj.DenseLength() {
		return false, nil
	}
	proto := obj.Proto()
	for k := range d.ProtoShapes {
		if proto == nil || !d.ProtoShapes[k].Is(proto.Shape()) || proto.DenseLength() != 0 {
			return false, nil
		}
		proto = proto.Proto()
	}
	if !s.upd.Check(f.Val) {
		f.engine.typeUpdateSlowPath(s, obj.Group().ElementTypes(), f.Val)
	}
	obj.AppendDense(f.Val)
	f.Result = f.Val
	return true, nil
}

func setElemTypedArray(s *Stub, f *Frame) (bool, error) {
	if !f.Lhs.IsObject() || !f.Val.IsNumber() {
		return false, nil
	}
	obj := f.Lhs.ToObject()
	d := s.data.(*SetElemTypedArrayData)
	if !d.matches(obj) {
		return false, nil
	}
	i, ok := int32Index(f.Rhs)
	if !ok || i >= obj.Typed().Len() {
		return false, nil
	}
	obj.Typed().Set(i, f.Val.ToNumber())
	f.Result = f.Val
	return true, nil
}

func (e *Engine) setElemFallback(fb *Stub, f *Frame) error {
	recv, key, v := f.Lhs, f.Rhs, f.Val

	// Capture the pre-write state the stub decision depends on.
	var (
		obj      *value.Object
		shape    *value.Shape
		oldLen   int
		wasHole  bool
		index    int
		intIndex bool
	)
	if recv.IsObject() {
		obj = recv.ToObject()
		shape = obj.Shape()
		index, intIndex = int32Index(key)
		if obj.Class() == value.ClassArray {
			oldLen = obj.DenseLength()
			wasHole = intIndex && index < oldLen && obj.DenseElement(index).IsHole()
		}
	}

	if err := e.rt.SetElem(recv, key, v); err != nil {
		return err
	}
	f.Result = v
	if obj != nil && obj.Group() != nil && obj.Class() == value.ClassArray && intIndex {
		obj.Group().ElementTypes().Add(v)
	}

	if !e.canAttach(fb) {
		return nil
	}
	if obj == nil || !intIndex || obj.Shape() != shape {
		e.unspecializable()
		return nil
	}

	switch obj.Class() {
	case value.ClassTypedArray:
		if !v.IsNumber() || index >= obj.Typed().Len() {
			e.unspecializable()
			return nil
		}
		if fb.findStub(SetElemTypedArray, func(s *Stub) bool {
			return s.data.(*SetElemTypedArrayData).Shape.Is(shape)
		}) != nil {
			return nil
		}
		kind := uint16(obj.Typed().Kind())
		e.attach(fb, SetElemTypedArray, kind, CodeParams{Flags: uint8(kind)}, &SetElemTypedArrayData{ShapeGuard{value.MakeWeak(shape)}})

	case value.ClassArray:
		group := obj.Group()
		if group == nil {
			e.unspecializable()
			return nil
		}
		var s *Stub
		switch {
		case index < oldLen && !wasHole:
			if fb.findStub(SetElemDense, func(s *Stub) bool {
				d := s.data.(*SetElemDenseData)
				return d.Shape.Is(shape) && d.Group.Is(group)
			}) != nil {
				return nil
			}
			s = e.attach(fb, SetElemDense, 0, CodeParams{}, &SetElemDenseData{
				ShapeGuard: ShapeGuard{value.MakeWeak(shape)},
				Group:      value.MakeWeak(group),
			})
		case index == oldLen:
			protoShapes, ok := denseAddProtoShapes(obj)
			if !ok {
				e.unspecializable()
				return nil
			}
			if fb.findStub(SetElemDenseAdd, func(s *Stub) bool {
				d := s.data.(*SetElemDenseAddData)
				return d.Shape.Is(shape) && d.Group.Is(group)
			}) != nil {
				return nil
			}
			s = e.attach(fb, SetElemDenseAdd, uint16(len(protoShapes)), CodeParams{}, &SetElemDenseAddData{
				ShapeGuard:  ShapeGuard{value.MakeWeak(shape)},
				Group:       value.MakeWeak(group),
				ProtoShapes: protoShapes,
			})
		default:
			e.unspecializable()
			return nil
		}
		if s != nil {
			e.addUpdateStubForValue(s, v)
		}

	default:
		e.unspecializable()
	}
	return nil
}

// denseAddProtoShapes collects the shapes of obj's prototype chain, which
// must be short and free of indexed elements for an append to be plain.
func denseAddProtoShapes(obj *value.Object) ([]value.Weak[value.Shape], bool) {
	var out []value.Weak[value.Shape]
	for p := obj.Proto(); p != nil; p = p.Proto() {
		if len(out) == maxDenseAddProtoDepth || p.DenseLength() != 0 {
			return nil, false
		}
		out = append(out, value.MakeWeak(p.Shape()))
	}
	return out, true
}
