package ic

import (
	"github.com/chazu/baseline/value"
)

// BytecodeResultIndex marks a monitor chain that watches an op's result
// rather than this or an argument.
const BytecodeResultIndex = ^uint32(0)

// MonitorState is the lifecycle of a monitored site's type monitor.
type MonitorState uint8

const (
	MonitorNoFallbackYet MonitorState = iota
	MonitorHasFallbackOnly
	MonitorHasOptimizedStubs
	MonitorCapped
)

var monitorStateNames = [...]string{"NoFallbackYet", "HasFallbackOnly", "HasOptimizedStubs", "Capped"}

func (s MonitorState) String() string { return monitorStateNames[s] }

// MonitorChain records the types of values flowing out of an operation.
// The chain is a list of type-check stubs ending in a TypeMonitor_Fallback
// record. New stubs go at the head. One chain is shared by a monitored
// fallback and every monitored stub attached ahead of it.
type MonitorChain struct {
	first         *Stub
	fallback      *Stub
	mainFallback  *Stub
	entry         *Entry
	argumentIndex uint32
	numOptimized  int
	capped        bool
	types         value.TypeSet
	observed      uint64
}

// newMonitorChain allocates the terminator of a new chain. mainFallback is
// nil for this/argument monitors, which are bound to their synthetic entry
// later by fixupEntry.
func (e *Engine) newMonitorChain(mainFallback *Stub, argumentIndex uint32) (*MonitorChain, error) {
	code, err := e.stubCode(TypeMonitorFallback, CodeParams{})
	if err != nil {
		return nil, err
	}
	s := e.spaceFor(TypeMonitorFallback).alloc()
	if s == nil {
		return nil, ErrStubSpaceExhausted
	}
	m := &MonitorChain{
		first:         s,
		fallback:      s,
		mainFallback:  mainFallback,
		argumentIndex: argumentIndex,
	}
	*s = Stub{
		kind:  TypeMonitorFallback,
		trait: TraitFallback,
		code:  code,
		mon:   m,
	}
	return m, nil
}

// ensureMonitorChain returns the monitor chain of a monitored fallback,
// creating it on the first monitored value. It returns nil if the chain
// cannot be allocated.
func (e *Engine) ensureMonitorChain(fb *Stub) *MonitorChain {
	assertf(fb.IsMonitoredFallback(), "%s is not a monitored fallback", fb)
	if fb.mon != nil {
		return fb.mon
	}
	m, err := e.newMonitorChain(fb, BytecodeResultIndex)
	if err != nil {
		log.Warningf("pc %d: cannot create type monitor: %s", fb.fb.entry.pcOffset, err)
		e.stats.AttachFailures++
		return nil
	}
	fb.mon = m
	return m
}

// fixupEntry binds a this/argument monitor chain to its synthetic entry.
func (m *MonitorChain) fixupEntry(en *Entry) {
	assertf(m.entry == nil && m.mainFallback == nil, "monitor chain is already bound")
	assertf(en.firstStub == m.first, "entry does not start with the monitor chain")
	m.entry = en
}

func (m *MonitorChain) First() *Stub           { return m.first }
func (m *MonitorChain) Fallback() *Stub        { return m.fallback }
func (m *MonitorChain) ArgumentIndex() uint32  { return m.argumentIndex }
func (m *MonitorChain) NumOptimizedStubs() int { return m.numOptimized }
func (m *MonitorChain) Observed() uint64       { return m.observed }

// Types is the type feedback recorded by the chain's fallback.
func (m *MonitorChain) Types() *value.TypeSet { return &m.types }

// State reports where the chain is in its lifecycle.
func (m *MonitorChain) State() MonitorState {
	switch {
	case m.capped:
		return MonitorCapped
	case m.numOptimized > 0:
		return MonitorHasOptimizedStubs
	default:
		return MonitorHasFallbackOnly
	}
}

// MonitorState reports the monitor lifecycle of a monitored fallback.
func (s *Stub) MonitorState() MonitorState {
	assertf(s.IsMonitoredFallback(), "%s is not a monitored fallback", s)
	if s.mon == nil {
		return MonitorNoFallbackYet
	}
	return s.mon.State()
}

// Stubs returns the chain in check order, fallback last.
func (m *MonitorChain) Stubs() []*Stub {
	var out []*Stub
	for s := m.first; s != nil; s = s.next {
		out = append(out, s)
	}
	return out
}

// Contains reports whether some optimized stub in the chain matches v.
func (m *MonitorChain) Contains(v value.Value) bool {
	for s := m.first; s != m.fallback; s = s.next {
		if s.code.check(s, v) {
			return true
		}
	}
	return false
}

// Monitor checks v against the chain. The first matching stub ends the
// walk; reaching the fallback records v's type and may add a stub.
func (m *MonitorChain) Monitor(e *Engine, v value.Value) {
	for s := m.first; s != nil; s = s.next {
		if s.IsFallback() {
			m.addMonitorStubForValue(e, v)
			return
		}
		if s.code.check(s, v) {
			e.stats.MonitorHits++
			return
		}
	}
	invariantf("monitor chain does not end in a fallback")
}

func (m *MonitorChain) addMonitorStubForValue(e *Engine, v value.Value) {
	m.types.Add(v)
	m.observed++
	if m.capped {
		return
	}
	if m.numOptimized >= MaxMonitorStubs {
		m.capped = true
		log.Debugf("type monitor capped at %d stubs", MaxMonitorStubs)
		return
	}

	kind, extra, data := typeStubFor(v, TypeMonitorPrimitive, TypeMonitorSingleObject, TypeMonitorTypeObject)
	s := e.newStub(kind, extra, CodeParams{}, data)
	if s == nil {
		return
	}
	s.next = m.first
	m.first = s
	m.numOptimized++
	if m.entry != nil {
		m.entry.firstStub = s
	}
	e.stats.MonitorStubsAttached++
}

// reset drops every optimized stub, returning the chain to
// HasFallbackOnly. Recorded types are kept.
func (m *MonitorChain) reset() {
	m.first = m.fallback
	m.numOptimized = 0
	m.capped = false
	if m.entry != nil {
		m.entry.firstStub = m.fallback
	}
}

// typeStubFor chooses the type-check stub that recognizes v: a primitive
// tag, a specific object, or a group.
func typeStubFor(v value.Value, primitive, single, group Kind) (Kind, uint16, StubData) {
	if !v.IsObject() {
		return primitive, uint16(v.Type()), nil
	}
	o := v.ToObject()
	if g := o.Group(); g != nil && !g.Singleton() {
		return group, 0, &GroupTypeData{Group: value.MakeWeak(g)}
	}
	return single, 0, &ObjectTypeData{Object: value.MakeWeak(o)}
}

// ---------------------------------------------------------------------------
// Type-check bodies shared by monitor and update stubs
// ---------------------------------------------------------------------------

func checkPrimitive(s *Stub, v value.Value) bool {
	want := value.Type(s.extra)
	return v.Type() == want || (want == value.TypeDouble && v.IsInt32())
}

func checkSingleObject(s *Stub, v value.Value) bool {
	if !v.IsObject() {
		return false
	}
	d := s.data.(*ObjectTypeData)
	return d.Object.Is(v.ToObject())
}

func checkTypeObject(s *Stub, v value.Value) bool {
	if !v.IsObject() {
		return false
	}
	g := v.ToObject().Group()
	d := s.data.(*GroupTypeData)
	return g != nil && d.Group.Is(g)
}

// checkNever is the body of the type-feedback fallbacks.
func checkNever(*Stub, value.Value) bool { return false }
