package ic

import (
	"github.com/chazu/baseline/value"
)

// extraConstructing marks call fallbacks of new-expressions.
const extraConstructing = 1

// callKnown is the body of Call_Scripted and Call_Native: the callee is
// the function the stub was built for, so it is invoked directly without
// generic call dispatch.
func callKnown(s *Stub, f *Frame) (bool, error) {
	if !f.Lhs.IsObject() {
		return false, nil
	}
	callee := f.Lhs.ToObject()
	d := s.data.(*CallData)
	if !d.Callee.Is(callee) {
		return false, nil
	}
	r, err := callee.Function().Invoke(f.This, f.Args)
	if err != nil {
		return true, err
	}
	f.Result = r
	return true, nil
}

func (e *Engine) callFallback(fb *Stub, f *Frame) error {
	constructing := fb.extra&extraConstructing != 0
	callee := f.Lhs
	r, err := e.rt.Call(callee, f.This, f.Args, constructing)
	if err != nil {
		return err
	}
	f.Result = r

	if !e.canAttach(fb) {
		return nil
	}
	// Construct calls create their this object through the runtime and
	// always stay generic.
	if constructing || !callee.IsObject() || callee.ToObject().Function() == nil {
		e.unspecializable()
		return nil
	}
	obj := callee.ToObject()
	kind := CallNative
	if obj.Function().Scripted {
		kind = CallScripted
	}
	if fb.findStub(kind, func(s *Stub) bool { return s.data.(*CallData).Callee.Is(obj) }) != nil {
		return nil
	}
	e.attach(fb, kind, 0, CodeParams{}, &CallData{Callee: value.MakeWeak(obj)})
	return nil
}
