package ic

import (
	"github.com/chazu/baseline/value"
)

func getNameGlobal(s *Stub, f *Frame) (bool, error) {
	scope := f.Scope
	d := s.data.(*GetNameGlobalData)
	if scope == nil || !d.matches(scope) {
		return false, nil
	}
	f.Result = scope.GetSlot(d.Slot)
	return true, nil
}

// getNameScope walks len(Shapes)-1 enclosing scopes, guarding the shape of
// each one, and reads the slot of the last.
func getNameScope(s *Stub, f *Frame) (bool, error) {
	d := s.data.(*GetNameScopeData)
	scope := f.Scope
	for i := range d.Shapes {
		if scope == nil || !d.Shapes[i].Is(scope.Shape()) {
			return false, nil
		}
		if i < len(d.Shapes)-1 {
			scope = scope.Enclosing()
		}
	}
	f.Result = scope.GetSlot(d.Slot)
	return true, nil
}

func (e *Engine) getNameFallback(fb *Stub, f *Frame) error {
	name := f.entry.inst.Name
	scope := f.Scope
	r, err := e.rt.GetName(scope, name)
	if err != nil {
		return err
	}
	f.Result = r

	if !e.canAttach(fb) {
		return nil
	}
	e.tryAttachGetName(fb, scope, name)
	return nil
}

func (e *Engine) tryAttachGetName(fb *Stub, scope *value.Object, name string) {
	if scope == nil {
		e.unspecializable()
		return
	}
	if scope.Class() == value.ClassGlobal {
		slot, ok := scope.Shape().Lookup(name)
		if !ok {
			e.unspecializable()
			return
		}
		shape := scope.Shape()
		if fb.findStub(GetNameGlobal, func(s *Stub) bool {
			return s.data.(*GetNameGlobalData).Shape.Is(shape)
		}) != nil {
			return
		}
		flag := fixedSlotFlag(shape, slot)
		e.attach(fb, GetNameGlobal, flag, CodeParams{Flags: uint8(flag)}, &GetNameGlobalData{
			ShapeGuard: ShapeGuard{value.MakeWeak(shape)},
			Slot:       slot,
		})
		return
	}

	var shapes []value.Weak[value.Shape]
	for cur, hops := scope, 0; cur != nil && hops <= MaxScopeHops; cur, hops = cur.Enclosing(), hops+1 {
		if cur.Class() != value.ClassScope {
			break
		}
		shapes = append(shapes, value.MakeWeak(cur.Shape()))
		slot, ok := cur.Shape().Lookup(name)
		if !ok {
			continue
		}
		kind := GetNameScope0 + Kind(hops)
		if fb.findStub(kind, func(s *Stub) bool {
			return sameShapes(s.data.(*GetNameScopeData).Shapes, shapes)
		}) != nil {
			return
		}
		flag := fixedSlotFlag(cur.Shape(), slot)
		e.attach(fb, kind, flag, CodeParams{Flags: uint8(flag)}, &GetNameScopeData{
			Shapes: shapes,
			Slot:   slot,
		})
		return
	}
	e.unspecializable()
}

func sameShapes(a, b []value.Weak[value.Shape]) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Is(b[i].Get()) {
			return false
		}
	}
	return true
}

func (e *Engine) bindNameFallback(fb *Stub, f *Frame) error {
	obj, err := e.rt.BindName(f.Scope, f.entry.inst.Name)
	if err != nil {
		return err
	}
	f.Result = value.ObjectValue(obj)
	return nil
}

// ---------------------------------------------------------------------------
// Intrinsics
// ---------------------------------------------------------------------------

func getIntrinsicConstant(s *Stub, f *Frame) (bool, error) {
	v, ok := s.data.(*GetIntrinsicData).Constant()
	if !ok {
		return false, nil
	}
	f.Result = v
	return true, nil
}

func (e *Engine) getIntrinsicFallback(fb *Stub, f *Frame) error {
	r, err := e.rt.GetIntrinsic(f.entry.inst.Name)
	if err != nil {
		return err
	}
	f.Result = r

	if !e.canAttach(fb) || fb.HasStub(GetIntrinsicConstant) {
		return nil
	}
	e.attach(fb, GetIntrinsicConstant, 0, CodeParams{}, newGetIntrinsicData(r))
	return nil
}
