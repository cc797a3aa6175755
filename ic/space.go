package ic

// stubChunkSize is the number of records in one arena chunk.
const stubChunkSize = 64

// StubSpace is an arena for stub records. Records are carved out of
// fixed-size chunks and never move. The whole space is released at once,
// or single records are returned to a free list for reuse.
//
// The engine keeps two: the optimized space, released when a sweep purges
// specialized stubs, and the fallback space, which holds fallbacks and
// every stub that can make calls and lives as long as the engine.
type StubSpace struct {
	name   string
	chunks [][]Stub
	free   []*Stub
	used   int
	count  int
	limit  int
	total  uint64
}

// NewStubSpace creates a space. A limit of zero means unbounded.
func NewStubSpace(name string, limit int) *StubSpace {
	return &StubSpace{name: name, limit: limit}
}

// alloc returns a zeroed record, or nil when the limit is reached.
func (sp *StubSpace) alloc() *Stub {
	if sp.limit > 0 && sp.count >= sp.limit {
		return nil
	}
	sp.count++
	sp.total++
	if n := len(sp.free); n > 0 {
		s := sp.free[n-1]
		sp.free = sp.free[:n-1]
		return s
	}
	if len(sp.chunks) == 0 || sp.used == stubChunkSize {
		sp.chunks = append(sp.chunks, make([]Stub, stubChunkSize))
		sp.used = 0
	}
	s := &sp.chunks[len(sp.chunks)-1][sp.used]
	sp.used++
	return s
}

// release returns a record no chain references to the free list.
func (sp *StubSpace) release(s *Stub) {
	*s = Stub{}
	sp.free = append(sp.free, s)
	sp.count--
}

// FreeAll releases every record. Callers must have unlinked them first.
func (sp *StubSpace) FreeAll() {
	sp.chunks = nil
	sp.free = nil
	sp.used = 0
	sp.count = 0
}

func (sp *StubSpace) Name() string { return sp.name }

// Len is the number of live records.
func (sp *StubSpace) Len() int { return sp.count }

// Limit is the record limit, zero when unbounded.
func (sp *StubSpace) Limit() int { return sp.limit }

// TotalAllocated counts every record ever allocated, across releases.
func (sp *StubSpace) TotalAllocated() uint64 { return sp.total }

// spaceFor selects the space a stub of kind k is allocated in. Fallbacks of
// main and monitor chains are owned by long-lived entries; call-capable
// stubs may be on the stack during a sweep.
func (e *Engine) spaceFor(k Kind) *StubSpace {
	if CanMakeCalls(k) {
		return e.fallbackSpace
	}
	if k.IsFallback() && k != TypeUpdateFallback {
		return e.fallbackSpace
	}
	return e.optimizedSpace
}
