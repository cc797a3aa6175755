package ic

import (
	"sync"
	"sync/atomic"
	"time"
)

// ---------------------------------------------------------------------------
// Sweeper: periodic sweep requests
// ---------------------------------------------------------------------------

// Sweeper periodically asks an engine to sweep. The engine's mutator runs
// the sweep at its next SafePoint; the sweeper goroutine never touches a
// chain itself.
type Sweeper struct {
	engine   *Engine
	interval time.Duration
	purge    atomic.Bool
	enabled  atomic.Bool
	stop     chan struct{}
	stopped  chan struct{}
	mu       sync.Mutex // protects start/stop lifecycle

	requestCount atomic.Uint64
}

// DefaultSweepInterval is the default interval between sweep requests.
const DefaultSweepInterval = 30 * time.Second

// NewSweeper creates a sweeper for e. Each request purges optimized stubs
// when purge is set. A non-positive interval means DefaultSweepInterval.
func NewSweeper(e *Engine, interval time.Duration, purge bool) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	sw := &Sweeper{
		engine:   e,
		interval: interval,
	}
	sw.purge.Store(purge)
	sw.enabled.Store(true)
	return sw
}

// Start begins the request goroutine. It is safe to call Start multiple
// times; only one loop will run.
func (sw *Sweeper) Start() {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	if sw.stop != nil {
		return
	}

	sw.stop = make(chan struct{})
	sw.stopped = make(chan struct{})

	// The loop keeps its own copies; Stop nils the fields.
	stopCh := sw.stop
	stoppedCh := sw.stopped
	go sw.loop(stopCh, stoppedCh)
}

// Stop halts the request goroutine and waits for it to finish. It is safe
// to call Stop multiple times or on a sweeper that was never started.
func (sw *Sweeper) Stop() {
	sw.mu.Lock()
	stopCh := sw.stop
	stoppedCh := sw.stopped
	sw.stop = nil
	sw.stopped = nil
	sw.mu.Unlock()

	if stopCh != nil {
		close(stopCh)
		<-stoppedCh
	}
}

// SetEnabled enables or disables requests. When disabled the goroutine
// keeps ticking but asks for nothing.
func (sw *Sweeper) SetEnabled(enabled bool) {
	sw.enabled.Store(enabled)
}

func (sw *Sweeper) IsEnabled() bool { return sw.enabled.Load() }

// SetPurge chooses whether later requests purge optimized stubs.
func (sw *Sweeper) SetPurge(purge bool) { sw.purge.Store(purge) }

func (sw *Sweeper) Interval() time.Duration { return sw.interval }

// RequestCount returns the number of sweeps requested so far.
func (sw *Sweeper) RequestCount() uint64 {
	return sw.requestCount.Load()
}

// RequestNow asks for a sweep immediately, regardless of the timer.
func (sw *Sweeper) RequestNow() {
	sw.request()
}

func (sw *Sweeper) loop(stopCh <-chan struct{}, stoppedCh chan struct{}) {
	defer close(stoppedCh)

	ticker := time.NewTicker(sw.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			if sw.enabled.Load() {
				sw.request()
			}
		}
	}
}

func (sw *Sweeper) request() {
	sw.engine.RequestSweep(sw.purge.Load())
	sw.requestCount.Add(1)
}
