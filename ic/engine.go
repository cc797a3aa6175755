package ic

import (
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("baseline.ic")

// Options configures an Engine.
type Options struct {
	// Generator compiles stub code. Defaults to ClosureGenerator.
	Generator CodeGenerator

	// Caps overrides the attached-stub cap per fallback kind.
	Caps map[Kind]int

	// OptimizedSpaceLimit and FallbackSpaceLimit bound the number of stub
	// records in each space. Zero means unbounded.
	OptimizedSpaceLimit int
	FallbackSpaceLimit  int

	// UseCountThreshold is the number of loop entries after which a script
	// is reported hot. Zero disables tier-up reporting.
	UseCountThreshold uint64

	// OnHot is called once per script when it becomes hot.
	OnHot func(*Script)

	// SweepTracer is applied to every chain when a requested sweep runs at
	// a safe point. Nil means sweeps only purge.
	SweepTracer Tracer
}

// Engine owns the inline caches of one runtime: its scripts, its stub
// spaces and its code cache. An engine has a single mutator; separate
// runtimes use separate engines and share nothing.
type Engine struct {
	id   uuid.UUID
	rt   Runtime
	gen  CodeGenerator
	opts Options

	codes          map[int32]*Code
	optimizedSpace *StubSpace
	fallbackSpace  *StubSpace
	scripts        []*Script

	profiler *Profiler
	stats    Stats

	sweepRequested atomic.Bool
	purgeRequested atomic.Bool
	lastSweep      SweepStats
}

// NewEngine creates an engine whose fallbacks run generic operations on rt.
func NewEngine(rt Runtime, opts Options) *Engine {
	gen := opts.Generator
	if gen == nil {
		gen = NewClosureGenerator()
	}
	e := &Engine{
		id:             uuid.New(),
		rt:             rt,
		gen:            gen,
		opts:           opts,
		codes:          make(map[int32]*Code),
		optimizedSpace: NewStubSpace("optimized", opts.OptimizedSpaceLimit),
		fallbackSpace:  NewStubSpace("fallback", opts.FallbackSpaceLimit),
	}
	e.profiler = NewProfiler(opts.UseCountThreshold)
	if opts.OnHot != nil {
		e.profiler.OnHot = opts.OnHot
	}
	return e
}

func (e *Engine) ID() uuid.UUID              { return e.id }
func (e *Engine) Runtime() Runtime           { return e.rt }
func (e *Engine) Profiler() *Profiler        { return e.profiler }
func (e *Engine) OptimizedSpace() *StubSpace { return e.optimizedSpace }
func (e *Engine) FallbackSpace() *StubSpace  { return e.fallbackSpace }

// CodeCacheSize is the number of distinct compiled stub bodies.
func (e *Engine) CodeCacheSize() int { return len(e.codes) }

// Scripts returns the live scripts in compilation order.
func (e *Engine) Scripts() []*Script {
	return append([]*Script(nil), e.scripts...)
}

// Discard drops a script and its entries. Records its chains hold in the
// fallback space are freed for reuse; optimized-space records go with the
// next purge.
func (e *Engine) Discard(s *Script) {
	for i, cur := range e.scripts {
		if cur == s {
			e.scripts = append(e.scripts[:i], e.scripts[i+1:]...)
			e.profiler.Forget(s)
			e.releaseChains(s)
			return
		}
	}
}

// releaseChains frees the fallback-space records reachable from s's
// entries: main chains, their monitor chains and any update chains.
func (e *Engine) releaseChains(s *Script) {
	seen := make(map[*Stub]bool)
	var visit func(first *Stub)
	visit = func(first *Stub) {
		for st := first; st != nil; st = st.next {
			if seen[st] {
				return
			}
			seen[st] = true
			if st.upd != nil {
				visit(st.upd.first)
			}
		}
	}
	for _, en := range s.Entries() {
		visit(en.firstStub)
		if m := en.FallbackStub().mon; m != nil {
			visit(m.first)
		}
	}
	n := 0
	for st := range seen {
		if e.spaceFor(st.kind) == e.fallbackSpace {
			e.fallbackSpace.release(st)
			n++
		}
	}
	log.Debugf("%s: released %d fallback-space stubs", s.name, n)
}

// capFor returns the attached-stub cap for chains ending in fallback kind k.
func (e *Engine) capFor(k Kind) int {
	if n, ok := e.opts.Caps[k]; ok {
		return n
	}
	return MaxOptimizedStubs(k)
}

// ---------------------------------------------------------------------------
// Stub construction and attachment
// ---------------------------------------------------------------------------

// newStub compiles (or reuses) code and allocates a record. It returns nil
// on allocation or code generation failure; callers treat that as "do not
// specialize".
func (e *Engine) newStub(kind Kind, extra uint16, p CodeParams, data StubData) *Stub {
	code, err := e.stubCode(kind, p)
	if err != nil {
		log.Warningf("cannot build %s: %s", kind, err)
		e.stats.AttachFailures++
		return nil
	}
	space := e.spaceFor(kind)
	s := space.alloc()
	if s == nil {
		log.Warningf("cannot allocate %s: %s space is full", kind, space.name)
		e.stats.AttachFailures++
		return nil
	}
	*s = Stub{
		kind:      kind,
		trait:     kind.DefaultTrait(),
		extra:     extra,
		code:      code,
		data:      data,
		optimized: space == e.optimizedSpace,
	}
	return s
}

// newFallbackStub builds the fallback of a main chain. Failure here is a
// compile failure, not a soft one: an entry cannot exist without it.
func (e *Engine) newFallbackStub(kind Kind, extra uint16, data StubData) (*Stub, error) {
	code, err := e.stubCode(kind, CodeParams{})
	if err != nil {
		return nil, err
	}
	s := e.spaceFor(kind).alloc()
	if s == nil {
		return nil, ErrStubSpaceExhausted
	}
	*s = Stub{
		kind:  kind,
		trait: kind.DefaultTrait(),
		extra: extra,
		code:  code,
		data:  data,
		fb:    &FallbackState{cap: e.capFor(kind)},
	}
	return s, nil
}

// canAttach applies admission control for the chain ending in fb. Once the
// cap is reached the chain is frozen for the rest of its entry's life.
func (e *Engine) canAttach(fb *Stub) bool {
	st := fb.fallbackState()
	if st.capped {
		return false
	}
	if st.numOptimized >= st.cap {
		st.capped = true
		if st.cap > 0 {
			e.stats.SitesCapped++
			log.Noticef("pc %d: %s capped at %d stubs", st.entry.pcOffset, fb.kind, st.cap)
		}
		return false
	}
	return true
}

// attach builds a stub and splices it ahead of fb. Monitored stubs are
// given the fallback's monitor chain.
func (e *Engine) attach(fb *Stub, kind Kind, extra uint16, p CodeParams, data StubData) *Stub {
	s := e.newStub(kind, extra, p, data)
	if s == nil {
		return nil
	}
	if s.IsMonitored() {
		m := e.ensureMonitorChain(fb)
		if m == nil {
			return nil
		}
		s.mon = m
	}
	if s.IsUpdated() && !e.initUpdateChain(s) {
		return nil
	}
	fb.AddNewStub(s)
	e.stats.StubsAttached++
	log.Debugf("pc %d: attached %s (%d/%d)", fb.fb.entry.pcOffset, s, fb.fb.numOptimized, fb.fb.cap)
	return s
}

// unspecializable records that a fallback saw operands it cannot build a
// stub for.
func (e *Engine) unspecializable() {
	e.stats.Unspecializable++
}
