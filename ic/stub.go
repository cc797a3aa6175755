package ic

import (
	"fmt"
)

// Trait is the role of a stub within its chain. Roles are mutually
// exclusive.
type Trait uint8

const (
	TraitRegular Trait = iota
	TraitFallback
	TraitMonitored
	TraitMonitoredFallback
	TraitUpdated
)

var traitNames = [...]string{"Regular", "Fallback", "Monitored", "MonitoredFallback", "Updated"}

func (t Trait) String() string {
	if int(t) < len(traitNames) {
		return traitNames[t]
	}
	return fmt.Sprintf("Trait(%d)", t)
}

// Stub is one record of a chain: a guard plus a specialized operation.
//
// Everything but next is fixed at construction. Role state lives in the
// fb, mon and upd fields and only the ones matching the trait are set:
//
//   - Fallback and MonitoredFallback stubs own a FallbackState.
//   - Monitored stubs share the monitor chain of their fallback, and a
//     MonitoredFallback stub owns it once the first value has been seen.
//   - Updated stubs own an UpdateChain.
//   - The terminator of a monitor chain points back at its chain.
type Stub struct {
	kind      Kind
	trait     Trait
	extra     uint16
	code      *Code
	next      *Stub
	data      StubData
	optimized bool

	fb  *FallbackState
	mon *MonitorChain
	upd *UpdateChain
}

func (s *Stub) Kind() Kind      { return s.kind }
func (s *Stub) Trait() Trait    { return s.trait }
func (s *Stub) Extra() uint16   { return s.extra }
func (s *Stub) Code() *Code     { return s.code }
func (s *Stub) Next() *Stub     { return s.next }
func (s *Stub) HasNext() bool   { return s.next != nil }
func (s *Stub) Data() StubData  { return s.data }
func (s *Stub) Optimized() bool { return s.optimized }

func (s *Stub) IsFallback() bool {
	return s.trait == TraitFallback || s.trait == TraitMonitoredFallback
}

func (s *Stub) IsMonitored() bool         { return s.trait == TraitMonitored }
func (s *Stub) IsMonitoredFallback() bool { return s.trait == TraitMonitoredFallback }
func (s *Stub) IsUpdated() bool           { return s.trait == TraitUpdated }

func (s *Stub) String() string {
	return fmt.Sprintf("%s[%s]", s.kind, s.trait)
}

// DataAs returns the payload of s as T when the stub carries one.
func DataAs[T StubData](s *Stub) (T, bool) {
	d, ok := s.data.(T)
	return d, ok
}

// ChainFallback walks to the terminator of the chain containing s.
func (s *Stub) ChainFallback() *Stub {
	cur := s
	for cur.next != nil {
		cur = cur.next
	}
	assertf(cur.IsFallback(), "chain ends in non-fallback stub %s", cur)
	return cur
}

// ---------------------------------------------------------------------------
// Role accessors
// ---------------------------------------------------------------------------

// FirstMonitorStub returns the head of the monitor chain used by a
// monitored stub or owned by a monitored fallback, or nil before the
// first value has been monitored.
func (s *Stub) FirstMonitorStub() *Stub {
	assertf(s.IsMonitored() || s.IsMonitoredFallback(), "%s is not monitored", s)
	if s.mon == nil {
		return nil
	}
	return s.mon.first
}

// MonitorChain returns the monitor chain associated with s.
func (s *Stub) MonitorChain() *MonitorChain { return s.mon }

// FirstUpdateStub returns the head of an updated stub's update chain.
func (s *Stub) FirstUpdateStub() *Stub {
	assertf(s.IsUpdated(), "%s is not updated", s)
	return s.upd.first
}

// UpdateChain returns the update chain of an updated stub.
func (s *Stub) UpdateChain() *UpdateChain {
	assertf(s.IsUpdated(), "%s is not updated", s)
	return s.upd
}

// NumOptimizedStubs is the number of specialized stubs attached ahead of a
// fallback.
func (s *Stub) NumOptimizedStubs() int {
	return s.fallbackState().numOptimized
}

// Entry returns the call-site entry a fallback is bound to.
func (s *Stub) Entry() *Entry {
	return s.fallbackState().entry
}

// Capped reports whether a fallback has stopped attaching stubs.
func (s *Stub) Capped() bool {
	return s.fallbackState().capped
}

// MaxOptimized returns the cap of a fallback.
func (s *Stub) MaxOptimized() int {
	return s.fallbackState().cap
}

// LastStubLink returns the insertion cursor of a fallback: the link that
// currently points at it.
func (s *Stub) LastStubLink() **Stub {
	return s.fallbackState().lastLink
}

func (s *Stub) fallbackState() *FallbackState {
	assertf(s.fb != nil, "%s has no fallback state", s)
	return s.fb
}
