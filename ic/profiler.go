package ic

import (
	"sync"
	"sync/atomic"
)

// Profiler counts loop entries per script, as seen by the UseCount
// fallbacks, to tell the embedder which scripts deserve an optimizing
// compile.

// ScriptProfile holds profiling data for a single script.
type ScriptProfile struct {
	LoopEntries uint64 // Atomic counter
	IsHot       bool
}

// Profiler tracks the scripts of one engine.
type Profiler struct {
	profiles sync.Map // *Script -> *ScriptProfile

	// HotThreshold is the loop-entry count at which a script becomes hot.
	// Zero disables hotness.
	HotThreshold uint64

	// Called once per script when it becomes hot.
	OnHot func(*Script)

	hotCount uint64
}

// NewProfiler creates a profiler with the given hot threshold.
func NewProfiler(threshold uint64) *Profiler {
	return &Profiler{HotThreshold: threshold}
}

// RecordLoopEntry counts one loop entry in s. Returns true if this entry
// made the script hot.
func (p *Profiler) RecordLoopEntry(s *Script) bool {
	if s == nil {
		return false
	}

	val, _ := p.profiles.LoadOrStore(s, &ScriptProfile{})
	profile := val.(*ScriptProfile)

	count := atomic.AddUint64(&profile.LoopEntries, 1)

	if p.HotThreshold == 0 || profile.IsHot || count < p.HotThreshold {
		return false
	}
	profile.IsHot = true
	atomic.AddUint64(&p.hotCount, 1)
	log.Infof("%s is hot after %d loop entries", s.name, count)

	if p.OnHot != nil {
		p.OnHot(s)
	}
	return true
}

// Profile returns the profile of s, or nil if s has not entered a loop.
func (p *Profiler) Profile(s *Script) *ScriptProfile {
	if val, ok := p.profiles.Load(s); ok {
		return val.(*ScriptProfile)
	}
	return nil
}

// IsHot returns true if s has reached the hot threshold.
func (p *Profiler) IsHot(s *Script) bool {
	profile := p.Profile(s)
	return profile != nil && profile.IsHot
}

// Forget drops the profile of a discarded script.
func (p *Profiler) Forget(s *Script) {
	if val, ok := p.profiles.LoadAndDelete(s); ok && val.(*ScriptProfile).IsHot {
		atomic.AddUint64(&p.hotCount, ^uint64(0))
	}
}

// ProfilerStats holds aggregate profiling statistics.
type ProfilerStats struct {
	Scripts     int    // Scripts that entered a loop
	HotScripts  int    // Scripts past the threshold
	LoopEntries uint64 // Total loop entries
}

// Stats returns aggregate profiling statistics.
func (p *Profiler) Stats() ProfilerStats {
	var stats ProfilerStats
	p.profiles.Range(func(key, val any) bool {
		profile := val.(*ScriptProfile)
		stats.Scripts++
		stats.LoopEntries += atomic.LoadUint64(&profile.LoopEntries)
		if profile.IsHot {
			stats.HotScripts++
		}
		return true
	})
	return stats
}

// HotScripts returns every script past the hot threshold.
func (p *Profiler) HotScripts() []*Script {
	var hot []*Script
	p.profiles.Range(func(key, val any) bool {
		if val.(*ScriptProfile).IsHot {
			hot = append(hot, key.(*Script))
		}
		return true
	})
	return hot
}

// HotCount is the number of scripts that have become hot.
func (p *Profiler) HotCount() uint64 {
	return atomic.LoadUint64(&p.hotCount)
}
