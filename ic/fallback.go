package ic

// FallbackState is the bookkeeping a main-chain fallback carries: the entry
// it is bound to, the number of stubs attached ahead of it, and the link
// that currently points at it. New stubs are spliced in through that link,
// so attaching never walks the chain.
type FallbackState struct {
	entry        *Entry
	numOptimized int
	lastLink     **Stub
	cap          int
	capped       bool
}

// FixupEntry binds a fallback created at code generation time to the entry
// allocated once the script's layout is final.
func (s *Stub) FixupEntry(e *Entry) {
	fb := s.fallbackState()
	if fb.entry != nil {
		invariantf("%s is already bound to pc %d", s, fb.entry.pcOffset)
	}
	assertf(e.firstStub == s, "entry at pc %d does not start with %s", e.pcOffset, s)
	fb.entry = e
	fb.lastLink = &e.firstStub
}

// AddNewStub splices stub into the chain immediately before the fallback s.
func (s *Stub) AddNewStub(stub *Stub) {
	fb := s.fallbackState()
	assertf(fb.lastLink != nil, "%s is not bound to an entry", s)
	assertf(*fb.lastLink == s, "insertion cursor of %s does not point at it", s)
	assertf(stub.next == nil, "%s is already linked", stub)
	assertf(!stub.IsFallback(), "cannot attach fallback %s", stub)

	stub.next = s
	*fb.lastLink = stub
	fb.lastLink = &stub.next
	fb.numOptimized++
}

// UnlinkStub removes stub from the chain ending in s. prev is the stub
// before it, or nil when stub is first in the chain.
func (s *Stub) UnlinkStub(prev, stub *Stub) {
	fb := s.fallbackState()
	assertf(stub != s, "cannot unlink the fallback %s", s)
	assertf(stub.next != nil, "%s is not linked", stub)
	assertf(fb.numOptimized > 0, "%s has no optimized stubs to unlink", s)

	if prev != nil {
		assertf(prev.next == stub, "%s does not precede %s", prev, stub)
		prev.next = stub.next
	} else {
		assertf(fb.entry.firstStub == stub, "%s is not first at pc %d", stub, fb.entry.pcOffset)
		fb.entry.firstStub = stub.next
	}

	if fb.lastLink == &stub.next {
		assertf(stub.next == s, "cursor stub %s is not last", stub)
		if prev != nil {
			fb.lastLink = &prev.next
		} else {
			fb.lastLink = &fb.entry.firstStub
		}
	}

	stub.next = nil
	fb.numOptimized--
}

// UnlinkStubsWithKind removes every stub of the given kind from the chain
// ending in s and returns how many were removed.
func (s *Stub) UnlinkStubsWithKind(kind Kind) int {
	fb := s.fallbackState()
	removed := 0
	var prev *Stub
	for cur := fb.entry.firstStub; cur != s; {
		next := cur.next
		if cur.kind == kind {
			s.UnlinkStub(prev, cur)
			removed++
		} else {
			prev = cur
		}
		cur = next
	}
	return removed
}

// HasStub reports whether a stub of the given kind is attached ahead of s.
func (s *Stub) HasStub(kind Kind) bool {
	return s.findStub(kind, nil) != nil
}

// findStub returns the first attached stub of the given kind for which
// match (if any) reports true.
func (s *Stub) findStub(kind Kind, match func(*Stub) bool) *Stub {
	fb := s.fallbackState()
	for cur := fb.entry.firstStub; cur != s; cur = cur.next {
		if cur.kind == kind && (match == nil || match(cur)) {
			return cur
		}
	}
	return nil
}

// checkCount verifies that the attached count matches the chain.
func (s *Stub) checkCount() {
	fb := s.fallbackState()
	n := 0
	for cur := fb.entry.firstStub; cur != s; cur = cur.next {
		assertf(cur != nil, "chain at pc %d does not reach its fallback", fb.entry.pcOffset)
		n++
	}
	assertf(n == fb.numOptimized, "pc %d: %d stubs linked, %d counted", fb.entry.pcOffset, n, fb.numOptimized)
}
