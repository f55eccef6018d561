// SPDX-License-Identifier: MIT
/*
Package pipeline drives the tick loop: once per tick the audio
intelligence produces the enriched description, the spatial network
consumes it, and the resulting frame goes to every attached transport.

Exactly one Analyze/Update cycle executes per tick; the analysis and
simulation state is touched only from the runner goroutine. The
snapshot held for pull-based publishers is the single cross-goroutine
value and sits behind its own lock.
*/
package pipeline

import (
	"sync"
	"time"

	"pulseviz/internal/analysis"
	applog "pulseviz/internal/log"
	"pulseviz/internal/network"
	"pulseviz/internal/transport"
)

// Runner owns the tick loop. Start/Stop follow the ticker + done
// channel + WaitGroup pattern; Stop waits for the loop to exit.
type Runner struct {
	intel      *analysis.AudioIntelligence
	net        *network.Network
	transports []transport.Transport
	interval   time.Duration

	ticker   *time.Ticker
	doneChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	mu       sync.Mutex // Protects ticker/doneChan during Start/Stop.

	snapMu   sync.RWMutex
	snapshot transport.Frame
	hasSnap  bool
}

// NewRunner creates a tick loop at tickRate ticks per second.
func NewRunner(intel *analysis.AudioIntelligence, net *network.Network, tickRate int, transports ...transport.Transport) *Runner {
	if tickRate <= 0 {
		tickRate = 60
	}
	return &Runner{
		intel:      intel,
		net:        net,
		transports: transports,
		interval:   time.Second / time.Duration(tickRate),
	}
}

// Start launches the tick goroutine. A second call while running is a no-op.
func (r *Runner) Start() {
	r.mu.Lock()
	if r.ticker != nil {
		r.mu.Unlock()
		applog.Warnf("Pipeline: Start called but already running.")
		return
	}

	r.ticker = time.NewTicker(r.interval)
	r.doneChan = make(chan struct{})
	r.stopOnce = sync.Once{}

	ticker := r.ticker
	doneChan := r.doneChan
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		applog.Infof("Pipeline: Tick loop started (interval %s)", r.interval)
		for {
			select {
			case <-ticker.C:
				r.tick()
			case <-doneChan:
				return
			}
		}
	}()
}

// Stop signals the tick loop to exit and waits for it. Stopping the
// loop is the cancellation model: no more Analyze/Update calls happen
// after Stop returns.
func (r *Runner) Stop() error {
	r.mu.Lock()
	if r.ticker == nil {
		r.mu.Unlock()
		return nil
	}
	r.stopOnce.Do(func() {
		close(r.doneChan)
		r.ticker.Stop()
		r.ticker = nil
	})
	r.mu.Unlock()

	r.wg.Wait()
	applog.Infof("Pipeline: Tick loop stopped")
	return nil
}

// tick runs one full cycle: analysis, simulation, fan-out.
func (r *Runner) tick() {
	desc := r.intel.Analyze()
	r.net.Update(&desc)

	frame := transport.Frame{
		Type:  "frame",
		Audio: &desc,
		Stats: r.net.Stats(),
	}

	r.snapMu.Lock()
	r.snapshot = frame
	r.hasSnap = true
	r.snapMu.Unlock()

	for _, t := range r.transports {
		if err := t.Send(&frame); err != nil {
			applog.Debugf("Pipeline: Transport send failed: %v", err)
		}
	}
}

// Snapshot returns a copy of the latest frame for pull-based
// publishers. ok is false before the first tick.
func (r *Runner) Snapshot() (transport.Frame, bool) {
	r.snapMu.RLock()
	defer r.snapMu.RUnlock()
	return r.snapshot, r.hasSnap
}

var _ transport.FrameProvider = (*Runner)(nil)
