package throttle

import (
	"log/slog"
	"sync"
	"time"
)

// Reaper periodically sweeps expired window records from a set of stores to
// bound memory growth. It owns a single ticker goroutine; sweeps never run
// concurrently with each other and never block request handling, which takes
// each store's lock only briefly per key.
type Reaper struct {
	interval time.Duration
	stores   []*WindowStore
	now      func() time.Time

	startOnce sync.Once
	stopOnce  sync.Once
	done      chan struct{}
	stopped   chan struct{}
}

// NewReaper creates a reaper over the given stores. Call Start to begin
// sweeping and Stop on shutdown.
func NewReaper(interval time.Duration, stores ...*WindowStore) *Reaper {
	return &Reaper{
		interval: interval,
		stores:   stores,
		now:      time.Now,
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
}

// Start launches the background sweep goroutine. Subsequent calls are no-ops.
func (r *Reaper) Start() {
	r.startOnce.Do(func() {
		go r.run()
	})
}

// Stop cancels the ticker and waits for the sweep goroutine to exit. Safe to
// call multiple times and before Start.
func (r *Reaper) Stop() {
	r.stopOnce.Do(func() {
		close(r.done)
	})
	r.startOnce.Do(func() {
		close(r.stopped)
	})
	<-r.stopped
}

func (r *Reaper) run() {
	defer close(r.stopped)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.done:
			return
		case <-ticker.C:
			r.sweep()
		}
	}
}

// sweep evicts expired records from every store. A panic in one sweep is
// logged and must not take down the host process or stop future ticks.
func (r *Reaper) sweep() {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("throttle sweep panic", "panic", rec)
		}
	}()

	now := r.now()
	for _, store := range r.stores {
		if removed := store.SweepExpired(now); removed > 0 {
			slog.Debug("throttle records swept", "removed", removed)
		}
	}
}
