package server

import (
	"errors"
	"fmt"

	"github.com/chazu/baseline/ic"
	"github.com/chazu/baseline/interp"
)

// EngineState is the mutator-side state a worker function may touch.
type EngineState struct {
	Engine *ic.Engine
	Realm  *interp.Realm

	workload *interp.Workload
}

// Workload returns the demo workload, compiling it on first use.
func (s *EngineState) Workload() (*interp.Workload, error) {
	if s.workload == nil {
		w, err := interp.NewWorkload(s.Engine, s.Realm)
		if err != nil {
			return nil, err
		}
		s.workload = w
	}
	return s.workload, nil
}

// engineRequest represents a unit of work to be executed on the engine goroutine.
type engineRequest struct {
	fn   func(*EngineState) (interface{}, error)
	done chan engineResult
}

// engineResult holds the return value from an engine operation.
type engineResult struct {
	value interface{}
	err   error
}

// EngineWorker serializes all engine access through a single goroutine.
// Chains are mutated without locks, so every handler must go through the
// worker. Requested sweeps run between requests.
//
// An ic.InvariantError poisons the worker: the engine's chains can no longer
// be trusted, so that request and every later one fail with the violation.
type EngineWorker struct {
	state    *EngineState
	requests chan engineRequest
	quit     chan struct{}
	poisoned error
}

// NewEngineWorker creates an EngineWorker and starts the processing goroutine.
func NewEngineWorker(e *ic.Engine, r *interp.Realm) *EngineWorker {
	w := &EngineWorker{
		state:    &EngineState{Engine: e, Realm: r},
		requests: make(chan engineRequest, 64),
		quit:     make(chan struct{}),
	}
	go w.loop()
	return w
}

func (w *EngineWorker) loop() {
	for {
		select {
		case req := <-w.requests:
			if w.poisoned != nil {
				req.done <- engineResult{err: fmt.Errorf("engine unavailable: %w", w.poisoned)}
				continue
			}
			result := w.execute(req.fn)
			if w.poisoned != nil {
				req.done <- result
				continue
			}
			if st, ok := w.state.Engine.SafePoint(); ok {
				log.Debugf("sweep at safe point: %d stubs purged", st.StubsPurged)
			}
			req.done <- result
		case <-w.quit:
			return
		}
	}
}

// execute runs a function on the engine, recovering from panics. Invariant
// violations poison the worker instead of being reported as ordinary errors.
func (w *EngineWorker) execute(fn func(*EngineState) (interface{}, error)) engineResult {
	var result engineResult
	func() {
		defer func() {
			if r := recover(); r != nil {
				var ie *ic.InvariantError
				if err, ok := r.(error); ok && errors.As(err, &ie) {
					log.Errorf("engine worker poisoned: %v", ie)
					w.poisoned = ie
					result.value, result.err = nil, ie
					return
				}
				log.Errorf("engine worker panic: %v", r)
				result.err = fmt.Errorf("%v", r)
			}
		}()
		result.value, result.err = fn(w.state)
	}()
	return result
}

// Do submits a function for execution on the engine goroutine and blocks
// until it completes. Returns the result and any error (including panics).
func (w *EngineWorker) Do(fn func(*EngineState) (interface{}, error)) (interface{}, error) {
	req := engineRequest{
		fn:   fn,
		done: make(chan engineResult, 1),
	}
	w.requests <- req
	result := <-req.done
	return result.value, result.err
}

// Stop shuts down the worker goroutine.
func (w *EngineWorker) Stop() {
	close(w.quit)
}

// Engine returns the underlying engine, for metadata that is safe to read
// off the mutator such as its id.
func (w *EngineWorker) Engine() *ic.Engine {
	return w.state.Engine
}
