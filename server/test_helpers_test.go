package server

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"connectrpc.com/connect"

	"github.com/chazu/baseline/ic"
	"github.com/chazu/baseline/interp"
	"github.com/chazu/baseline/profilestore"
)

// ---------------------------------------------------------------------------
// Shared test infrastructure for server package tests.
//
// Tests that only read the engine share one worker created in TestMain.
// Tests that depend on exact counters create an isolated environment.
// ---------------------------------------------------------------------------

var testWorker *EngineWorker

// TestMain starts a single worker for the read-only server tests.
func TestMain(m *testing.M) {
	r := interp.NewRealm()
	testWorker = NewEngineWorker(ic.NewEngine(r, ic.Options{}), r)

	code := m.Run()

	testWorker.Stop()
	os.Exit(code)
}

// testEnv bundles a fresh engine with its worker and an optional store.
type testEnv struct {
	Engine  *ic.Engine
	Worker  *EngineWorker
	Store   *profilestore.Store
	Service *ProfileService
}

// newIsolatedEnv creates a brand-new engine and worker. With withStore it
// also opens a sqlite store in a temporary directory. Cleanup is
// registered on t.
func newIsolatedEnv(t *testing.T, withStore bool) *testEnv {
	t.Helper()
	r := interp.NewRealm()
	e := ic.NewEngine(r, ic.Options{UseCountThreshold: 10})
	env := &testEnv{Engine: e, Worker: NewEngineWorker(e, r)}
	t.Cleanup(env.Worker.Stop)

	if withStore {
		store, err := profilestore.Open("sqlite", filepath.Join(t.TempDir(), "profiles.db"))
		if err != nil {
			t.Fatalf("opening store: %v", err)
		}
		t.Cleanup(func() { store.Close() })
		env.Store = store
	}
	env.Service = NewProfileService(env.Worker, env.Store)
	return env
}

// ---------------------------------------------------------------------------
// Request builder helpers
// ---------------------------------------------------------------------------

func connectReq[T any](msg *T) *connect.Request[T] {
	return connect.NewRequest(msg)
}

func bg() context.Context {
	return context.Background()
}

func expectCode(t *testing.T, err error, code connect.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("Expected %s error, got nil", code)
	}
	if got := connect.CodeOf(err); got != code {
		t.Errorf("Expected code %s, got %s (%v)", code, got, err)
	}
}
