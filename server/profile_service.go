package server

import (
	"context"
	"errors"
	"fmt"

	"connectrpc.com/connect"

	"github.com/chazu/baseline/aot"
	"github.com/chazu/baseline/profilestore"
	"github.com/chazu/baseline/snapshot"
)

// maxRunIterations bounds a single Run call so one request cannot hold the
// worker indefinitely.
const maxRunIterations = 1_000_000

// ProfileService implements the ProfileService Connect handlers.
type ProfileService struct {
	worker *EngineWorker
	store  *profilestore.Store
}

// NewProfileService creates a ProfileService. store may be nil, in which
// case the snapshot listing calls fail with FailedPrecondition.
func NewProfileService(worker *EngineWorker, store *profilestore.Store) *ProfileService {
	return &ProfileService{
		worker: worker,
		store:  store,
	}
}

// Run executes the demo workload on the engine.
func (s *ProfileService) Run(
	ctx context.Context,
	req *connect.Request[RunRequest],
) (*connect.Response[RunResponse], error) {
	n := req.Msg.Iterations
	if n <= 0 || n > maxRunIterations {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("iterations must be in 1..%d, got %d", maxRunIterations, n))
	}

	result, err := s.worker.Do(func(st *EngineState) (interface{}, error) {
		w, err := st.Workload()
		if err != nil {
			return nil, err
		}
		if err := w.Run(n); err != nil {
			return nil, err
		}
		return &RunResponse{
			Iterations: n,
			Checksum:   w.Checksum(),
			Sites:      siteStatsOf(st.Engine.CollectSiteStats()),
		}, nil
	})
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(result.(*RunResponse)), nil
}

// Stats reports the engine counters and per-site statistics.
func (s *ProfileService) Stats(
	ctx context.Context,
	req *connect.Request[StatsRequest],
) (*connect.Response[StatsResponse], error) {
	result, err := s.worker.Do(func(st *EngineState) (interface{}, error) {
		e := st.Engine
		return &StatsResponse{
			EngineID:       e.ID().String(),
			Counters:       snapshot.StatsOf(e.Stats()),
			Sites:          siteStatsOf(e.CollectSiteStats()),
			OptimizedStubs: e.OptimizedSpace().Len(),
			FallbackStubs:  e.FallbackSpace().Len(),
			CodeCacheSize:  e.CodeCacheSize(),
			Scripts:        len(e.Scripts()),
		}, nil
	})
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(result.(*StatsResponse)), nil
}

// Capture snapshots the engine, saving it to the store when asked.
func (s *ProfileService) Capture(
	ctx context.Context,
	req *connect.Request[CaptureRequest],
) (*connect.Response[CaptureResponse], error) {
	if req.Msg.Save && s.store == nil {
		return nil, connect.NewError(connect.CodeFailedPrecondition, errors.New("no profile store configured"))
	}

	snap, err := s.capture(req.Msg.Label)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	resp := &CaptureResponse{Snapshot: snap}
	if req.Msg.Save {
		if err := s.store.Save(snap); err != nil {
			return nil, connect.NewError(connect.CodeInternal, err)
		}
		resp.Saved = true
	}
	return connect.NewResponse(resp), nil
}

func (s *ProfileService) capture(label string) (*snapshot.Snapshot, error) {
	result, err := s.worker.Do(func(st *EngineState) (interface{}, error) {
		return snapshot.Capture(st.Engine, label), nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*snapshot.Snapshot), nil
}

// Sweep runs a sweep on the worker, purging optimized stubs when asked.
func (s *ProfileService) Sweep(
	ctx context.Context,
	req *connect.Request[SweepRequest],
) (*connect.Response[SweepResponse], error) {
	purge := req.Msg.Purge
	result, err := s.worker.Do(func(st *EngineState) (interface{}, error) {
		st.Engine.RequestSweep(purge)
		stats, _ := st.Engine.SafePoint()
		return &SweepResponse{
			Scripts:       stats.Scripts,
			Purged:        stats.Purged,
			StubsPurged:   stats.StubsPurged,
			DurationNanos: stats.SweepDuration.Nanoseconds(),
		}, nil
	})
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(result.(*SweepResponse)), nil
}

// ListSnapshots lists stored snapshots, newest first.
func (s *ProfileService) ListSnapshots(
	ctx context.Context,
	req *connect.Request[ListSnapshotsRequest],
) (*connect.Response[ListSnapshotsResponse], error) {
	if s.store == nil {
		return nil, connect.NewError(connect.CodeFailedPrecondition, errors.New("no profile store configured"))
	}
	entries, err := s.store.List()
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	resp := &ListSnapshotsResponse{}
	for _, e := range entries {
		resp.Entries = append(resp.Entries, SnapshotEntry{
			ID:       e.ID,
			EngineID: e.EngineID,
			Label:    e.Label,
			TakenAt:  e.TakenAt.UnixNano(),
			Sites:    e.Sites,
		})
	}
	return connect.NewResponse(resp), nil
}

// GetSnapshot loads a stored snapshot.
func (s *ProfileService) GetSnapshot(
	ctx context.Context,
	req *connect.Request[GetSnapshotRequest],
) (*connect.Response[GetSnapshotResponse], error) {
	snap, err := s.load(req.Msg.ID)
	if err != nil {
		return nil, err
	}
	return connect.NewResponse(&GetSnapshotResponse{Snapshot: snap}), nil
}

func (s *ProfileService) load(id string) (*snapshot.Snapshot, error) {
	if id == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("id is required"))
	}
	if s.store == nil {
		return nil, connect.NewError(connect.CodeFailedPrecondition, errors.New("no profile store configured"))
	}
	snap, err := s.store.Load(id)
	if errors.Is(err, profilestore.ErrSnapshotNotFound) {
		return nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("snapshot %q not found", id))
	}
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return snap, nil
}

// GenerateProfile renders a snapshot as Go source.
func (s *ProfileService) GenerateProfile(
	ctx context.Context,
	req *connect.Request[GenerateProfileRequest],
) (*connect.Response[GenerateProfileResponse], error) {
	var snap *snapshot.Snapshot
	var err error
	if req.Msg.ID == "" {
		snap, err = s.capture("generate")
		if err != nil {
			return nil, connect.NewError(connect.CodeInternal, err)
		}
	} else if snap, err = s.load(req.Msg.ID); err != nil {
		return nil, err
	}

	res, err := aot.Generate(snap, aot.Options{Package: req.Msg.Package})
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(&GenerateProfileResponse{
		Code:     res.Code,
		Warnings: res.Warnings,
	}), nil
}
