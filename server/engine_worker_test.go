package server

import (
	"errors"
	"sync"
	"testing"

	"github.com/chazu/baseline/ic"
)

func TestWorkerDo(t *testing.T) {
	v, err := testWorker.Do(func(st *EngineState) (interface{}, error) {
		return st.Engine.ID().String(), nil
	})
	if err != nil {
		t.Fatalf("Do returned error: %v", err)
	}
	if v.(string) != testWorker.Engine().ID().String() {
		t.Errorf("Expected engine id %s, got %v", testWorker.Engine().ID(), v)
	}
}

func TestWorkerReturnsError(t *testing.T) {
	want := errors.New("boom")
	_, err := testWorker.Do(func(*EngineState) (interface{}, error) {
		return nil, want
	})
	if !errors.Is(err, want) {
		t.Errorf("Expected %v, got %v", want, err)
	}
}

func TestWorkerRecoversPanic(t *testing.T) {
	_, err := testWorker.Do(func(*EngineState) (interface{}, error) {
		panic("kaboom")
	})
	if err == nil || err.Error() != "kaboom" {
		t.Errorf("Expected error kaboom, got %v", err)
	}

	// The worker keeps serving after a panic.
	if _, err := testWorker.Do(func(*EngineState) (interface{}, error) { return nil, nil }); err != nil {
		t.Errorf("Expected worker to survive panic, got %v", err)
	}
}

func TestWorkerPoisonedByInvariantViolation(t *testing.T) {
	env := newIsolatedEnv(t, false)
	_, err := env.Worker.Do(func(st *EngineState) (interface{}, error) {
		s, err := st.Engine.Compile(&ic.ScriptSource{
			Name: "broken",
			Code: []ic.Instruction{{Op: ic.OpIntrinsic, Name: "MAX_INT32"}},
		})
		if err != nil {
			return nil, err
		}
		en, _ := s.EntryForPC(0)
		fb := en.FallbackStub()
		fb.UnlinkStub(nil, fb)
		return nil, nil
	})
	var ie *ic.InvariantError
	if !errors.As(err, &ie) {
		t.Fatalf("Expected an invariant violation, got %v", err)
	}

	// Later requests are refused rather than run against corrupted chains.
	ran := false
	_, err = env.Worker.Do(func(*EngineState) (interface{}, error) {
		ran = true
		return nil, nil
	})
	if ran {
		t.Error("Expected poisoned worker not to run further requests")
	}
	if !errors.As(err, &ie) {
		t.Errorf("Expected later requests to fail with the violation, got %v", err)
	}
}

func TestWorkerSerializesAccess(t *testing.T) {
	env := newIsolatedEnv(t, false)
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			env.Worker.Do(func(*EngineState) (interface{}, error) {
				counter++
				return nil, nil
			})
		}()
	}
	wg.Wait()
	if counter != 50 {
		t.Errorf("Expected 50 increments, got %d", counter)
	}
}

func TestWorkerRunsRequestedSweep(t *testing.T) {
	env := newIsolatedEnv(t, false)
	env.Worker.Do(func(st *EngineState) (interface{}, error) {
		w, err := st.Workload()
		if err != nil {
			return nil, err
		}
		return nil, w.Run(3)
	})

	env.Engine.RequestSweep(true)
	v, err := env.Worker.Do(func(st *EngineState) (interface{}, error) {
		return st.Engine.Stats().Sweeps, nil
	})
	if err != nil {
		t.Fatalf("Do returned error: %v", err)
	}
	// The sweep runs after the request that observed the counter.
	if v.(uint64) != 0 {
		t.Errorf("Expected no sweep before the safe point, got %d", v)
	}
	v, _ = env.Worker.Do(func(st *EngineState) (interface{}, error) {
		return st.Engine.Stats().Purges, nil
	})
	if v.(uint64) != 1 {
		t.Errorf("Expected 1 purge after the safe point, got %d", v)
	}
}
