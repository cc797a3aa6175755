package ic

import (
	"github.com/chazu/baseline/value"
)

// Frame carries the operands of one IC execution and receives its result.
// Which fields an op reads depends on its family:
//
//	compare, arith, in, instanceof   Lhs, Rhs
//	tobool, tonumber, unary, typeof  Lhs
//	getprop, getelem                 Lhs (receiver), Rhs (key)
//	setprop, setelem                 Lhs (receiver), Rhs (key), Val
//	getname, bindname                Scope
//	call, new                        Lhs (callee), This, Args
//	iterators, tableswitch           Lhs
//	this                             This
//	stackcheck                       Depth
type Frame struct {
	Lhs   value.Value
	Rhs   value.Value
	Val   value.Value
	This  value.Value
	Args  []value.Value
	Scope *value.Object
	Depth int

	Result value.Value

	engine *Engine
	entry  *Entry
}

// Engine returns the engine running the frame, once dispatch has begun.
func (f *Frame) Engine() *Engine { return f.engine }

// Run dispatches through the entry's chain. Each stub either handles the
// operation or passes to the next; the fallback always handles it. A
// monitored stub or fallback then feeds the result to its monitor chain.
func (en *Entry) Run(f *Frame) error {
	assertf(en.isForOp, "synthetic entry at pc %d cannot run an op", en.pcOffset)
	e := en.script.engine
	f.engine = e
	f.entry = en

	for s := en.firstStub; s != nil; s = s.next {
		ok, err := s.code.run(s, f)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if s.IsFallback() {
			en.misses++
			e.stats.FallbackHits++
		} else {
			en.hits++
			e.stats.StubHits++
		}
		switch s.trait {
		case TraitMonitored:
			s.mon.Monitor(e, f.Result)
		case TraitMonitoredFallback:
			if m := e.ensureMonitorChain(s); m != nil {
				m.Monitor(e, f.Result)
			}
		}
		return nil
	}
	invariantf("chain at pc %d does not end in a fallback", en.pcOffset)
	return nil
}

// runFallbackStub is the shared body of every main-chain fallback.
func runFallbackStub(s *Stub, f *Frame) (bool, error) {
	return true, f.engine.runFallback(s, f)
}

// runFallback calls the generic handler for s's kind.
func (e *Engine) runFallback(fb *Stub, f *Frame) error {
	switch fb.kind {
	case CompareFallback:
		return e.compareFallback(fb, f)
	case ToBoolFallback:
		return e.toBoolFallback(fb, f)
	case ToNumberFallback:
		return e.toNumberFallback(fb, f)
	case BinaryArithFallback:
		return e.binaryArithFallback(fb, f)
	case UnaryArithFallback:
		return e.unaryArithFallback(fb, f)
	case CallFallback:
		return e.callFallback(fb, f)
	case GetElemFallback:
		return e.getElemFallback(fb, f)
	case SetElemFallback:
		return e.setElemFallback(fb, f)
	case InFallback:
		return e.inFallback(fb, f)
	case GetNameFallback:
		return e.getNameFallback(fb, f)
	case BindNameFallback:
		return e.bindNameFallback(fb, f)
	case GetIntrinsicFallback:
		return e.getIntrinsicFallback(fb, f)
	case GetPropFallback:
		return e.getPropFallback(fb, f)
	case SetPropFallback:
		return e.setPropFallback(fb, f)
	case TableSwitch:
		return e.tableSwitch(fb, f)
	case IteratorNewFallback:
		return e.iteratorNewFallback(fb, f)
	case IteratorMoreFallback:
		return e.iteratorMoreFallback(fb, f)
	case IteratorNextFallback:
		return e.iteratorNextFallback(fb, f)
	case IteratorCloseFallback:
		return e.iteratorCloseFallback(fb, f)
	case InstanceOfFallback:
		return e.instanceOfFallback(fb, f)
	case TypeOfFallback:
		return e.typeOfFallback(fb, f)
	case ThisFallback:
		return e.thisFallback(fb, f)
	case NewArrayFallback:
		return e.newArrayFallback(fb, f)
	case NewObjectFallback:
		return e.newObjectFallback(fb, f)
	case UseCountFallback:
		return e.useCountFallback(fb, f)
	case StackCheckFallback:
		return e.stackCheckFallback(fb, f)
	}
	invariantf("no fallback handler for %s", fb.kind)
	return nil
}
