package ic

import (
	"github.com/chazu/baseline/value"
)

func nativeIterator(v value.Value) *value.Iterator {
	if !v.IsObject() || v.ToObject().Class() != value.ClassIterator {
		return nil
	}
	return v.ToObject().Iterator()
}

func iteratorMoreNative(s *Stub, f *Frame) (bool, error) {
	it := nativeIterator(f.Lhs)
	if it == nil {
		return false, nil
	}
	f.Result = value.Bool(it.More())
	return true, nil
}

func iteratorNextNative(s *Stub, f *Frame) (bool, error) {
	it := nativeIterator(f.Lhs)
	if it == nil {
		return false, nil
	}
	f.Result = it.Next()
	return true, nil
}

func (e *Engine) iteratorNewFallback(fb *Stub, f *Frame) error {
	r, err := e.rt.IteratorNew(f.Lhs)
	if err != nil {
		return err
	}
	f.Result = r
	return nil
}

func (e *Engine) iteratorMoreFallback(fb *Stub, f *Frame) error {
	more, err := e.rt.IteratorMore(f.Lhs)
	if err != nil {
		return err
	}
	f.Result = value.Bool(more)
	e.tryAttachIterator(fb, IteratorMoreNative, f.Lhs)
	return nil
}

func (e *Engine) iteratorNextFallback(fb *Stub, f *Frame) error {
	iter := f.Lhs
	r, err := e.rt.IteratorNext(iter)
	if err != nil {
		return err
	}
	f.Result = r
	e.tryAttachIterator(fb, IteratorNextNative, iter)
	return nil
}

func (e *Engine) tryAttachIterator(fb *Stub, kind Kind, iter value.Value) {
	if !e.canAttach(fb) || fb.HasStub(kind) {
		return
	}
	if nativeIterator(iter) == nil {
		e.unspecializable()
		return
	}
	e.attach(fb, kind, 0, CodeParams{}, nil)
}

func (e *Engine) iteratorCloseFallback(fb *Stub, f *Frame) error {
	f.Result = value.Undefined()
	return e.rt.IteratorClose(f.Lhs)
}
