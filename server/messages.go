package server

import (
	"github.com/chazu/baseline/ic"
	"github.com/chazu/baseline/snapshot"
)

// ProfileServiceName is the fully-qualified name of the profile service.
const ProfileServiceName = "baseline.v1.ProfileService"

// Procedure paths, in the /service/method form connect routes on.
const (
	RunProcedure             = "/" + ProfileServiceName + "/Run"
	StatsProcedure           = "/" + ProfileServiceName + "/Stats"
	CaptureProcedure         = "/" + ProfileServiceName + "/Capture"
	SweepProcedure           = "/" + ProfileServiceName + "/Sweep"
	ListSnapshotsProcedure   = "/" + ProfileServiceName + "/ListSnapshots"
	GetSnapshotProcedure     = "/" + ProfileServiceName + "/GetSnapshot"
	GenerateProfileProcedure = "/" + ProfileServiceName + "/GenerateProfile"
)

type RunRequest struct {
	Iterations int `cbor:"1,keyasint"`
}

type RunResponse struct {
	Iterations int       `cbor:"1,keyasint"`
	Checksum   float64   `cbor:"2,keyasint"`
	Sites      SiteStats `cbor:"3,keyasint"`
}

type StatsRequest struct{}

type StatsResponse struct {
	EngineID       string         `cbor:"1,keyasint"`
	Counters       snapshot.Stats `cbor:"2,keyasint"`
	Sites          SiteStats      `cbor:"3,keyasint"`
	OptimizedStubs int            `cbor:"4,keyasint"`
	FallbackStubs  int            `cbor:"5,keyasint"`
	CodeCacheSize  int            `cbor:"6,keyasint"`
	Scripts        int            `cbor:"7,keyasint"`
}

// SiteStats mirrors ic.SiteStats.
type SiteStats struct {
	TotalSites      int     `cbor:"1,keyasint"`
	Empty           int     `cbor:"2,keyasint"`
	Monomorphic     int     `cbor:"3,keyasint"`
	Polymorphic     int     `cbor:"4,keyasint"`
	Capped          int     `cbor:"5,keyasint"`
	TotalHits       uint64  `cbor:"6,keyasint"`
	TotalMisses     uint64  `cbor:"7,keyasint"`
	HitRate         float64 `cbor:"8,keyasint"`
	MonomorphicRate float64 `cbor:"9,keyasint"`
	MonitorStubs    int     `cbor:"10,keyasint"`
}

func siteStatsOf(s ic.SiteStats) SiteStats {
	return SiteStats{
		TotalSites:      s.TotalSites,
		Empty:           s.Empty,
		Monomorphic:     s.Monomorphic,
		Polymorphic:     s.Polymorphic,
		Capped:          s.Capped,
		TotalHits:       s.TotalHits,
		TotalMisses:     s.TotalMisses,
		HitRate:         s.HitRate,
		MonomorphicRate: s.MonomorphicRate,
		MonitorStubs:    s.MonitorStubs,
	}
}

type CaptureRequest struct {
	Label string `cbor:"1,keyasint,omitempty"`
	Save  bool   `cbor:"2,keyasint,omitempty"`
}

type CaptureResponse struct {
	Snapshot *snapshot.Snapshot `cbor:"1,keyasint"`
	Saved    bool               `cbor:"2,keyasint,omitempty"`
}

type SweepRequest struct {
	Purge bool `cbor:"1,keyasint,omitempty"`
}

type SweepResponse struct {
	Scripts       int   `cbor:"1,keyasint"`
	Purged        bool  `cbor:"2,keyasint,omitempty"`
	StubsPurged   int   `cbor:"3,keyasint"`
	DurationNanos int64 `cbor:"4,keyasint"`
}

type ListSnapshotsRequest struct{}

type ListSnapshotsResponse struct {
	Entries []SnapshotEntry `cbor:"1,keyasint"`
}

// SnapshotEntry is the summary of a stored snapshot.
type SnapshotEntry struct {
	ID       string `cbor:"1,keyasint"`
	EngineID string `cbor:"2,keyasint"`
	Label    string `cbor:"3,keyasint,omitempty"`
	TakenAt  int64  `cbor:"4,keyasint"`
	Sites    int    `cbor:"5,keyasint"`
}

type GetSnapshotRequest struct {
	ID string `cbor:"1,keyasint"`
}

type GetSnapshotResponse struct {
	Snapshot *snapshot.Snapshot `cbor:"1,keyasint"`
}

// GenerateProfileRequest renders a stored snapshot, or a fresh capture
// when ID is empty, as Go source.
type GenerateProfileRequest struct {
	ID      string `cbor:"1,keyasint,omitempty"`
	Package string `cbor:"2,keyasint,omitempty"`
}

type GenerateProfileResponse struct {
	Code     string   `cbor:"1,keyasint"`
	Warnings []string `cbor:"2,keyasint,omitempty"`
}
