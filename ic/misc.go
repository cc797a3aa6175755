package ic

import (
	"github.com/chazu/baseline/value"
)

// Fallback-only operations: these run the generic operation every time.

func (e *Engine) inFallback(fb *Stub, f *Frame) error {
	r, err := e.rt.In(f.Lhs, f.Rhs)
	if err != nil {
		return err
	}
	f.Result = value.Bool(r)
	return nil
}

func (e *Engine) instanceOfFallback(fb *Stub, f *Frame) error {
	r, err := e.rt.InstanceOf(f.Lhs, f.Rhs)
	if err != nil {
		return err
	}
	f.Result = value.Bool(r)
	return nil
}

func (e *Engine) typeOfFallback(fb *Stub, f *Frame) error {
	f.Result = value.String(e.rt.TypeOf(f.Lhs))
	return nil
}

func (e *Engine) thisFallback(fb *Stub, f *Frame) error {
	r, err := e.rt.This(f.This)
	if err != nil {
		return err
	}
	f.Result = r
	return nil
}

func (e *Engine) newArrayFallback(fb *Stub, f *Frame) error {
	r, err := e.rt.NewArray(int(f.entry.inst.Operand))
	if err != nil {
		return err
	}
	f.Result = r
	return nil
}

func (e *Engine) newObjectFallback(fb *Stub, f *Frame) error {
	r, err := e.rt.NewObject()
	if err != nil {
		return err
	}
	f.Result = r
	return nil
}

func (e *Engine) stackCheckFallback(fb *Stub, f *Frame) error {
	f.Result = value.Undefined()
	return e.rt.CheckStack(f.Depth)
}

// useCountFallback counts a loop entry and reports the script to the
// profiler, which may declare it hot.
func (e *Engine) useCountFallback(fb *Stub, f *Frame) error {
	f.Result = value.Undefined()
	e.profiler.RecordLoopEntry(f.entry.script)
	return nil
}

// tableSwitch resolves the jump target of a switch on an integer. Non
// integers and out-of-range values take the default target.
func (e *Engine) tableSwitch(fb *Stub, f *Frame) error {
	d := fb.data.(*TableSwitchData)
	target := d.Default
	var key int64
	ok := false
	switch {
	case f.Lhs.IsInt32():
		key, ok = int64(f.Lhs.ToInt32()), true
	case f.Lhs.IsDouble():
		n := f.Lhs.ToDouble()
		if n == float64(int32(n)) {
			key, ok = int64(int32(n)), true
		}
	}
	if ok {
		i := key - int64(d.Low)
		if i >= 0 && i < int64(len(d.Targets)) {
			target = d.Targets[i]
		}
	}
	f.Result = value.Number(float64(target))
	return nil
}
