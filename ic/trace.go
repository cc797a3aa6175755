package ic

import (
	"time"

	"github.com/chazu/baseline/value"
)

// Tracer visits every heap reference held in stub data. A collector uses
// it to clear references to dead cells and to update references to moved
// ones; each method may rewrite the reference in place.
type Tracer interface {
	TraceShape(*value.Weak[value.Shape])
	TraceObject(*value.Weak[value.Object])
	TraceGroup(*value.Weak[value.TypeObject])
	TraceValue(*value.Value)
}

// Trace applies t to every stub of every script: main chains, monitor
// chains and update chains.
func (e *Engine) Trace(t Tracer) {
	for _, s := range e.scripts {
		s.Trace(t)
	}
}

// Trace applies t to every stub reachable from the script's entries.
func (s *Script) Trace(t Tracer) {
	for i := range s.entries {
		for st := s.entries[i].firstStub; st != nil; st = st.next {
			traceStub(st, t)
		}
	}
}

func traceStub(s *Stub, t Tracer) {
	if s.data != nil {
		s.data.trace(t)
	}
	if s.upd != nil {
		for u := s.upd.first; u != nil; u = u.next {
			if u.data != nil {
				u.data.trace(t)
			}
		}
	}
	// A shared monitor chain is traced once, through the fallback owning
	// it. Synthetic entries reach their monitor stubs as the main chain.
	if s.IsMonitoredFallback() && s.mon != nil {
		for m := s.mon.first; m != nil; m = m.next {
			if m.data != nil {
				m.data.trace(t)
			}
		}
	}
}

// ClearingTracer clears every reference whose target IsLive rejects. A
// cleared guard never matches, so its stub falls through until the next
// purge.
type ClearingTracer struct {
	IsLive  func(target any) bool
	Cleared int
}

func (c *ClearingTracer) TraceShape(w *value.Weak[value.Shape]) {
	if w.IsAlive() && !c.IsLive(w.Get()) {
		w.Clear()
		c.Cleared++
	}
}

func (c *ClearingTracer) TraceObject(w *value.Weak[value.Object]) {
	if w.IsAlive() && !c.IsLive(w.Get()) {
		w.Clear()
		c.Cleared++
	}
}

func (c *ClearingTracer) TraceGroup(w *value.Weak[value.TypeObject]) {
	if w.IsAlive() && !c.IsLive(w.Get()) {
		w.Clear()
		c.Cleared++
	}
}

func (c *ClearingTracer) TraceValue(v *value.Value) {
	if v.IsObject() && !c.IsLive(v.ToObject()) {
		*v = value.Undefined()
		c.Cleared++
	}
}

// RelocatingTracer rewrites references to cells a moving collector has
// relocated. Targets missing from the maps stay put.
type RelocatingTracer struct {
	Shapes  map[*value.Shape]*value.Shape
	Objects map[*value.Object]*value.Object
	Groups  map[*value.TypeObject]*value.TypeObject
	Moved   int
}

func (r *RelocatingTracer) TraceShape(w *value.Weak[value.Shape]) {
	if to, ok := r.Shapes[w.Get()]; ok {
		w.Set(to)
		r.Moved++
	}
}

func (r *RelocatingTracer) TraceObject(w *value.Weak[value.Object]) {
	if to, ok := r.Objects[w.Get()]; ok {
		w.Set(to)
		r.Moved++
	}
}

func (r *RelocatingTracer) TraceGroup(w *value.Weak[value.TypeObject]) {
	if to, ok := r.Groups[w.Get()]; ok {
		w.Set(to)
		r.Moved++
	}
}

func (r *RelocatingTracer) TraceValue(v *value.Value) {
	if !v.IsObject() {
		return
	}
	if to, ok := r.Objects[v.ToObject()]; ok {
		*v = value.ObjectValue(to)
		r.Moved++
	}
}

// RefCounter counts live references by kind without changing them.
type RefCounter struct {
	Shapes  int
	Objects int
	Groups  int
	Values  int
}

func (c *RefCounter) TraceShape(w *value.Weak[value.Shape]) {
	if w.IsAlive() {
		c.Shapes++
	}
}

func (c *RefCounter) TraceObject(w *value.Weak[value.Object]) {
	if w.IsAlive() {
		c.Objects++
	}
}

func (c *RefCounter) TraceGroup(w *value.Weak[value.TypeObject]) {
	if w.IsAlive() {
		c.Groups++
	}
}

func (c *RefCounter) TraceValue(v *value.Value) {
	if v.IsObject() {
		c.Values++
	}
}

// Total is the number of references counted.
func (c *RefCounter) Total() int {
	return c.Shapes + c.Objects + c.Groups + c.Values
}

// ---------------------------------------------------------------------------
// Sweeps and purges
// ---------------------------------------------------------------------------

// SweepStats holds statistics from a single sweep.
type SweepStats struct {
	Scripts       int
	Traced        bool
	Purged        bool
	StubsPurged   int
	SweepDuration time.Duration
	Timestamp     time.Time
}

// Sweep traces every chain with t, when t is non-nil, and then purges the
// optimized stubs if purge is set. It must run at a point where no stub
// is executing, which is what SafePoint arranges.
func (e *Engine) Sweep(t Tracer, purge bool) SweepStats {
	start := time.Now()
	stats := SweepStats{
		Scripts:   len(e.scripts),
		Timestamp: start,
	}
	if t != nil {
		e.Trace(t)
		stats.Traced = true
	}
	if purge {
		stats.StubsPurged = e.PurgeOptimizedStubs()
		stats.Purged = true
	}
	stats.SweepDuration = time.Since(start)

	e.stats.Sweeps++
	e.lastSweep = stats
	log.Infof("sweep: %d scripts, %d stubs purged in %s", stats.Scripts, stats.StubsPurged, stats.SweepDuration)
	return stats
}

// LastSweep returns statistics from the most recent sweep.
func (e *Engine) LastSweep() SweepStats { return e.lastSweep }

// RequestSweep asks for a sweep at the next safe point. It may be called
// from any goroutine. A purge request is not lost if a plain request
// arrives before the safe point.
func (e *Engine) RequestSweep(purge bool) {
	if purge {
		e.purgeRequested.Store(true)
	}
	e.sweepRequested.Store(true)
}

// SweepPending reports whether a sweep has been requested and not run.
func (e *Engine) SweepPending() bool { return e.sweepRequested.Load() }

// SafePoint runs a requested sweep. The mutator calls it between IC
// executions.
func (e *Engine) SafePoint() (SweepStats, bool) {
	if !e.sweepRequested.Swap(false) {
		return SweepStats{}, false
	}
	purge := e.purgeRequested.Swap(false)
	return e.Sweep(e.opts.SweepTracer, purge), true
}

// PurgeOptimizedStubs unlinks every stub allocated in the optimized space,
// resets every monitor chain, and releases the space. Stubs that can make
// calls live in the fallback space and stay attached, since a frame may be
// returning into one. Returns the number of main-chain stubs removed.
//
// Fallbacks that have reached their cap stay frozen.
func (e *Engine) PurgeOptimizedStubs() int {
	removed := 0
	for _, s := range e.scripts {
		for i := range s.entries {
			en := &s.entries[i]
			fb := en.FallbackStub()
			if fb.fb != nil {
				var prev *Stub
				for cur := en.firstStub; cur != fb; {
					next := cur.next
					if cur.optimized {
						fb.UnlinkStub(prev, cur)
						removed++
					} else {
						prev = cur
					}
					cur = next
				}
				fb.checkCount()
			}
			if fb.mon != nil {
				fb.mon.reset()
			}
		}
	}
	e.optimizedSpace.FreeAll()
	e.stats.Purges++
	log.Debugf("purged %d optimized stubs", removed)
	return removed
}
