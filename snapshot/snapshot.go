// Package snapshot captures the inline-cache state of an engine and
// serializes it as canonical CBOR.
package snapshot

import (
	"fmt"
	"time"

	"github.com/chazu/baseline/ic"
	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
)

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("snapshot: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Snapshot is a point-in-time capture of every script's site table.
type Snapshot struct {
	ID       string   `cbor:"1,keyasint"`
	EngineID string   `cbor:"2,keyasint"`
	Label    string   `cbor:"3,keyasint,omitempty"`
	TakenAt  int64    `cbor:"4,keyasint"` // unix nanoseconds
	Stats    Stats    `cbor:"5,keyasint"`
	Scripts  []Script `cbor:"6,keyasint"`
}

// Stats mirrors the engine counters.
type Stats struct {
	StubsAttached        uint64 `cbor:"1,keyasint"`
	AttachFailures       uint64 `cbor:"2,keyasint"`
	Unspecializable      uint64 `cbor:"3,keyasint"`
	SitesCapped          uint64 `cbor:"4,keyasint"`
	MonitorStubsAttached uint64 `cbor:"5,keyasint"`
	UpdateStubsAttached  uint64 `cbor:"6,keyasint"`
	UpdateSlowPaths      uint64 `cbor:"7,keyasint"`
	FallbackHits         uint64 `cbor:"8,keyasint"`
	StubHits             uint64 `cbor:"9,keyasint"`
	MonitorHits          uint64 `cbor:"10,keyasint"`
	Sweeps               uint64 `cbor:"11,keyasint"`
	Purges               uint64 `cbor:"12,keyasint"`
}

// Script is the site table of one script.
type Script struct {
	Name        string    `cbor:"1,keyasint"`
	Hot         bool      `cbor:"2,keyasint,omitempty"`
	LoopEntries uint64    `cbor:"3,keyasint,omitempty"`
	Sites       []Site    `cbor:"4,keyasint"`
	Arguments   []Monitor `cbor:"5,keyasint,omitempty"`
}

// Site is one call-site entry and its chain.
type Site struct {
	PC      uint32   `cbor:"1,keyasint"`
	Op      string   `cbor:"2,keyasint"`
	Name    string   `cbor:"3,keyasint,omitempty"`
	State   string   `cbor:"4,keyasint"`
	Hits    uint64   `cbor:"5,keyasint"`
	Misses  uint64   `cbor:"6,keyasint"`
	Stubs   []Stub   `cbor:"7,keyasint"`
	Monitor *Monitor `cbor:"8,keyasint,omitempty"`
}

// Stub is one record of a main chain, fallback last.
type Stub struct {
	Kind      string   `cbor:"1,keyasint"`
	Extra     uint16   `cbor:"2,keyasint,omitempty"`
	Optimized bool     `cbor:"3,keyasint,omitempty"`
	Updates   []string `cbor:"4,keyasint,omitempty"`
}

// Monitor is a type monitor chain and the types it has observed.
type Monitor struct {
	ArgumentIndex uint32   `cbor:"1,keyasint"`
	State         string   `cbor:"2,keyasint"`
	Observed      uint64   `cbor:"3,keyasint"`
	Stubs         []string `cbor:"4,keyasint"`
	Primitives    []string `cbor:"5,keyasint,omitempty"`
	Objects       int      `cbor:"6,keyasint,omitempty"`
	Groups        int      `cbor:"7,keyasint,omitempty"`
	AnyObject     bool     `cbor:"8,keyasint,omitempty"`
}

// Time returns the capture time.
func (s *Snapshot) Time() time.Time {
	return time.Unix(0, s.TakenAt)
}

// NumSites counts the sites of every script.
func (s *Snapshot) NumSites() int {
	n := 0
	for _, sc := range s.Scripts {
		n += len(sc.Sites)
	}
	return n
}

// Capture records the current state of e. It must run on the engine's
// mutator.
func Capture(e *ic.Engine, label string) *Snapshot {
	snap := &Snapshot{
		ID:       uuid.NewString(),
		EngineID: e.ID().String(),
		Label:    label,
		TakenAt:  time.Now().UnixNano(),
		Stats:    StatsOf(e.Stats()),
	}
	for _, s := range e.Scripts() {
		snap.Scripts = append(snap.Scripts, CaptureScript(e, s))
	}
	return snap
}

// StatsOf copies the engine counters.
func StatsOf(st ic.Stats) Stats {
	return Stats{
		StubsAttached:        st.StubsAttached,
		AttachFailures:       st.AttachFailures,
		Unspecializable:      st.Unspecializable,
		SitesCapped:          st.SitesCapped,
		MonitorStubsAttached: st.MonitorStubsAttached,
		UpdateStubsAttached:  st.UpdateStubsAttached,
		UpdateSlowPaths:      st.UpdateSlowPaths,
		FallbackHits:         st.FallbackHits,
		StubHits:             st.StubHits,
		MonitorHits:          st.MonitorHits,
		Sweeps:               st.Sweeps,
		Purges:               st.Purges,
	}
}

// CaptureScript records one script's site table.
func CaptureScript(e *ic.Engine, s *ic.Script) Script {
	out := Script{Name: s.Name()}
	if p := e.Profiler().Profile(s); p != nil {
		out.Hot = p.IsHot
		out.LoopEntries = p.LoopEntries
	}
	for _, en := range s.Entries() {
		if !en.IsForOp() {
			out.Arguments = append(out.Arguments, captureMonitor(en.MonitorChain()))
			continue
		}
		out.Sites = append(out.Sites, captureSite(en))
	}
	return out
}

func captureSite(en *ic.Entry) Site {
	inst := en.Instruction()
	site := Site{
		PC:     en.PCOffset(),
		Op:     inst.Op.String(),
		Name:   inst.Name,
		State:  en.State().String(),
		Hits:   en.Hits(),
		Misses: en.Misses(),
	}
	for _, st := range en.Stubs() {
		rec := Stub{Kind: st.Kind().String(), Extra: st.Extra(), Optimized: st.Optimized()}
		if st.IsUpdated() {
			for _, u := range st.UpdateChain().Stubs() {
				rec.Updates = append(rec.Updates, u.Kind().String())
			}
		}
		site.Stubs = append(site.Stubs, rec)
	}
	if m := en.MonitorChain(); m != nil {
		mon := captureMonitor(m)
		site.Monitor = &mon
	}
	return site
}

func captureMonitor(m *ic.MonitorChain) Monitor {
	types := m.Types()
	mon := Monitor{
		ArgumentIndex: m.ArgumentIndex(),
		State:         m.State().String(),
		Observed:      m.Observed(),
		Objects:       types.NumObjects(),
		Groups:        types.NumGroups(),
		AnyObject:     types.AnyObject(),
	}
	for _, st := range m.Stubs() {
		mon.Stubs = append(mon.Stubs, st.Kind().String())
	}
	for _, t := range types.Primitives() {
		mon.Primitives = append(mon.Primitives, t.String())
	}
	return mon
}

// Marshal serializes a Snapshot to CBOR bytes.
func Marshal(s *Snapshot) ([]byte, error) {
	return cborEncMode.Marshal(s)
}

// Unmarshal deserializes a Snapshot from CBOR bytes.
func Unmarshal(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := cbor.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("snapshot: unmarshal: %w", err)
	}
	return &s, nil
}
