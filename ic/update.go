package ic

import (
	"github.com/chazu/baseline/value"
)

// UpdateChain answers whether a value about to be written by an updated
// stub has a type already recorded in the heap type set. It is a list of
// pure type checks ending in a TypeUpdate_Fallback whose check always
// fails. Nothing on this path can reach the engine or the runtime; the
// owning write stub handles a failed check by calling typeUpdateSlowPath.
type UpdateChain struct {
	first        *Stub
	fallback     *Stub
	numOptimized int
	capped       bool
}

func (u *UpdateChain) First() *Stub           { return u.first }
func (u *UpdateChain) Fallback() *Stub        { return u.fallback }
func (u *UpdateChain) NumOptimizedStubs() int { return u.numOptimized }
func (u *UpdateChain) Capped() bool           { return u.capped }

// Check runs v through the chain.
func (u *UpdateChain) Check(v value.Value) bool {
	for s := u.first; s != nil; s = s.next {
		if s.code.check(s, v) {
			return true
		}
	}
	return false
}

// Stubs returns the chain in check order, fallback last.
func (u *UpdateChain) Stubs() []*Stub {
	var out []*Stub
	for s := u.first; s != nil; s = s.next {
		out = append(out, s)
	}
	return out
}

// initUpdateChain gives an updated stub its update fallback.
func (e *Engine) initUpdateChain(s *Stub) bool {
	assertf(s.IsUpdated(), "%s is not updated", s)
	fb := e.newStub(TypeUpdateFallback, 0, CodeParams{}, nil)
	if fb == nil {
		return false
	}
	s.upd = &UpdateChain{first: fb, fallback: fb}
	return true
}

// addUpdateStubForValue puts a stub recognizing v at the head of s's
// update chain, unless the chain is capped.
func (e *Engine) addUpdateStubForValue(s *Stub, v value.Value) {
	u := s.upd
	if u.capped || u.Check(v) {
		return
	}
	if u.numOptimized >= MaxUpdateStubs {
		u.capped = true
		return
	}
	kind, extra, data := typeStubFor(v, TypeUpdatePrimitive, TypeUpdateSingleObject, TypeUpdateTypeObject)
	stub := e.newStub(kind, extra, CodeParams{}, data)
	if stub == nil {
		return
	}
	stub.next = u.first
	u.first = stub
	u.numOptimized++
	e.stats.UpdateStubsAttached++
}

// typeUpdateSlowPath is taken by an updated stub whose update chain
// rejected v. It records v in the heap type set and teaches the chain v's
// type, so later writes of that type stay on the fast path.
func (e *Engine) typeUpdateSlowPath(s *Stub, types *value.TypeSet, v value.Value) {
	e.stats.UpdateSlowPaths++
	if types != nil {
		types.Add(v)
	}
	e.addUpdateStubForValue(s, v)
}
