package ic

// Stats are the engine's running counters.
type Stats struct {
	StubsAttached        uint64
	AttachFailures       uint64 // code generation or allocation failed
	Unspecializable      uint64 // fallback saw operands no stub can serve
	SitesCapped          uint64
	MonitorStubsAttached uint64
	UpdateStubsAttached  uint64
	UpdateSlowPaths      uint64
	FallbackHits         uint64
	StubHits             uint64
	MonitorHits          uint64
	Sweeps               uint64
	Purges               uint64
}

// Stats returns a copy of the engine's counters.
func (e *Engine) Stats() Stats { return e.stats }

// SiteState classifies a call site by the number of stubs attached ahead
// of its fallback.
type SiteState uint8

const (
	SiteEmpty SiteState = iota
	SiteMonomorphic
	SitePolymorphic
	SiteCapped
)

var siteStateNames = [...]string{"empty", "monomorphic", "polymorphic", "capped"}

func (s SiteState) String() string { return siteStateNames[s] }

// State classifies the entry of a real op.
func (en *Entry) State() SiteState {
	fb := en.FallbackStub()
	switch {
	case fb.fb == nil:
		return SiteEmpty
	case fb.fb.capped && fb.fb.cap > 0:
		return SiteCapped
	case fb.fb.numOptimized == 0:
		return SiteEmpty
	case fb.fb.numOptimized == 1:
		return SiteMonomorphic
	default:
		return SitePolymorphic
	}
}

// SiteStats holds aggregate call-site statistics.
type SiteStats struct {
	TotalSites      int     // Entries of real ops
	Empty           int     // Sites with no stubs
	Monomorphic     int     // Sites with one stub
	Polymorphic     int     // Sites with several stubs
	Capped          int     // Sites frozen at their cap
	TotalHits       uint64  // Executions handled by a stub
	TotalMisses     uint64  // Executions that reached the fallback
	HitRate         float64 // Percentage of executions handled by a stub
	MonomorphicRate float64 // Percentage of non-empty sites that are monomorphic
	MonitorStubs    int     // Type-monitor stubs across all chains
}

// CollectSiteStats gathers call-site statistics over every script.
func (e *Engine) CollectSiteStats() SiteStats {
	var stats SiteStats
	for _, s := range e.scripts {
		collectFromScript(s, &stats)
	}

	total := stats.TotalHits + stats.TotalMisses
	if total > 0 {
		stats.HitRate = float64(stats.TotalHits) * 100 / float64(total)
	}
	nonEmpty := stats.TotalSites - stats.Empty
	if nonEmpty > 0 {
		stats.MonomorphicRate = float64(stats.Monomorphic) * 100 / float64(nonEmpty)
	}
	return stats
}

func collectFromScript(s *Script, stats *SiteStats) {
	for i := range s.entries {
		en := &s.entries[i]
		if m := en.MonitorChain(); m != nil {
			stats.MonitorStubs += m.numOptimized
		}
		if !en.isForOp {
			continue
		}
		stats.TotalSites++
		stats.TotalHits += en.hits
		stats.TotalMisses += en.misses
		switch en.State() {
		case SiteEmpty:
			stats.Empty++
		case SiteMonomorphic:
			stats.Monomorphic++
		case SitePolymorphic:
			stats.Polymorphic++
		case SiteCapped:
			stats.Capped++
		}
	}
}
