// Package server exposes a running engine over Connect. Messages are plain
// Go structs encoded with CBOR.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"connectrpc.com/connect"
	"github.com/tliron/commonlog"

	"github.com/chazu/baseline/ic"
	"github.com/chazu/baseline/interp"
	"github.com/chazu/baseline/profilestore"
)

var log = commonlog.GetLogger("baseline.server")

// ProfileServer is the inspection server wrapping a running engine.
type ProfileServer struct {
	worker  *EngineWorker
	sweeper *ic.Sweeper
	mux     *http.ServeMux
}

// ServerOption configures a ProfileServer.
type ServerOption func(*serverConfig)

type serverConfig struct {
	store         *profilestore.Store
	sweepInterval time.Duration
	sweepPurge    bool
}

// WithStore sets the profile store used for saved snapshots. Without it the
// listing calls fail with FailedPrecondition.
func WithStore(store *profilestore.Store) ServerOption {
	return func(c *serverConfig) { c.store = store }
}

// WithSweeper starts a sweeper that requests a sweep every interval. The
// sweep runs on the worker after the next request.
func WithSweeper(interval time.Duration, purge bool) ServerOption {
	return func(c *serverConfig) {
		c.sweepInterval = interval
		c.sweepPurge = purge
	}
}

// New creates a ProfileServer wrapping the given engine and realm. The
// caller must not touch e afterwards except through the server.
func New(e *ic.Engine, r *interp.Realm, opts ...ServerOption) *ProfileServer {
	cfg := &serverConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	worker := NewEngineWorker(e, r)
	s := &ProfileServer{
		worker: worker,
		mux:    http.NewServeMux(),
	}

	svc := NewProfileService(worker, cfg.store)
	codec := connect.WithCodec(cborCodec{})

	s.mux.Handle(RunProcedure, connect.NewUnaryHandler(RunProcedure, svc.Run, codec))
	s.mux.Handle(StatsProcedure, connect.NewUnaryHandler(StatsProcedure, svc.Stats, codec))
	s.mux.Handle(CaptureProcedure, connect.NewUnaryHandler(CaptureProcedure, svc.Capture, codec))
	s.mux.Handle(SweepProcedure, connect.NewUnaryHandler(SweepProcedure, svc.Sweep, codec))
	s.mux.Handle(ListSnapshotsProcedure, connect.NewUnaryHandler(ListSnapshotsProcedure, svc.ListSnapshots, codec))
	s.mux.Handle(GetSnapshotProcedure, connect.NewUnaryHandler(GetSnapshotProcedure, svc.GetSnapshot, codec))
	s.mux.Handle(GenerateProfileProcedure, connect.NewUnaryHandler(GenerateProfileProcedure, svc.GenerateProfile, codec))

	if cfg.sweepInterval > 0 {
		s.sweeper = ic.NewSweeper(e, cfg.sweepInterval, cfg.sweepPurge)
		s.sweeper.Start()
	}

	return s
}

// Handler returns the HTTP handler serving every procedure.
func (s *ProfileServer) Handler() http.Handler {
	return s.mux
}

// Worker returns the engine worker.
func (s *ProfileServer) Worker() *EngineWorker {
	return s.worker
}

// Sweeper returns the background sweeper, or nil when none was configured.
func (s *ProfileServer) Sweeper() *ic.Sweeper {
	return s.sweeper
}

// ListenAndServe serves on addr until ctx is cancelled.
// The address should be in the form "host:port" or ":port".
func (s *ProfileServer) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.mux}
	errc := make(chan error, 1)
	go func() {
		log.Noticef("baseline profile server listening on %s", addr)
		log.Infof("  Connect (CBOR): http://%s%s", addr, StatsProcedure)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// Stop shuts down the server.
func (s *ProfileServer) Stop() {
	if s.sweeper != nil {
		s.sweeper.Stop()
	}
	s.worker.Stop()
}
