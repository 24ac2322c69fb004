package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Engine drives a scenario forward in real time.
type Engine struct {
	Scenario  *Scenario
	DeltaTime float64       // Simulated seconds per tick
	Interval  time.Duration // Base tick interval at speed 1 (default 1 second)

	// ReportEvery logs a summary every N ticks. 0 disables it.
	ReportEvery uint64

	mu      sync.RWMutex // Guards the scenario across Step and View
	speed   float64      // Multiplier: 1.0 = real-time, 0 = paused
	running bool
	cancel  context.CancelFunc
}

// NewEngine creates an engine with default settings.
func NewEngine(s *Scenario) *Engine {
	return &Engine{
		Scenario:    s,
		DeltaTime:   1.0,
		Interval:    time.Second,
		ReportEvery: 60,
		speed:       1.0,
	}
}

// Speed returns the current speed multiplier.
func (e *Engine) Speed() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.speed
}

// SetSpeed changes the speed multiplier. 0 pauses the loop.
func (e *Engine) SetSpeed(v float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.speed = v
}

// Running reports whether Run is active.
func (e *Engine) Running() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.running
}

// Step advances the scenario by one tick.
func (e *Engine) Step() TickReport {
	e.mu.Lock()
	defer e.mu.Unlock()
	report := e.Scenario.Advance(e.DeltaTime)
	if e.ReportEvery > 0 && report.Tick%e.ReportEvery == 0 {
		logReport(report)
	}
	return report
}

// logReport summarizes a tick: how many agents acted or stalled and which
// behaviors won.
func logReport(r TickReport) {
	stalled := 0
	wins := make(map[string]int)
	for _, a := range r.Order {
		h := r.Decisions[a]
		if h == nil || h.Winner == nil {
			stalled++
			continue
		}
		wins[h.Winner.Behavior.Name]++
	}

	slog.Info("tick report",
		"tick", r.Tick,
		"agents", len(r.Order),
		"stalled", stalled,
		"custom_actions", len(r.CustomActions),
	)
	for name, n := range wins {
		slog.Debug("behavior wins", "tick", r.Tick, "behavior", name, "agents", n)
	}
}

// Subscribe registers a tick observer on the scenario. Observers run while
// Step holds the scenario lock and must not call View or Step.
func (e *Engine) Subscribe(fn func(TickReport)) (cancel func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	unsub := e.Scenario.Subscribe(fn)
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		unsub()
	}
}

// View runs fn with the scenario locked against Step. fn must not retain
// per-tick state after it returns.
func (e *Engine) View(fn func(s *Scenario)) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	fn(e.Scenario)
}

// Run steps the scenario until ctx is done or Stop is called.
func (e *Engine) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	e.mu.Lock()
	e.running = true
	e.cancel = cancel
	e.mu.Unlock()
	defer func() {
		cancel()
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
	}()

	slog.Info("simulation engine started", "tick", e.Scenario.Tick(), "speed", e.Speed())

	for ctx.Err() == nil {
		speed := e.Speed()
		if speed <= 0 {
			// Paused — sleep briefly and check again.
			if !sleepCtx(ctx, 100*time.Millisecond) {
				break
			}
			continue
		}

		start := time.Now()

		e.Step()

		// Sleep for the remainder of the tick interval, adjusted for speed.
		elapsed := time.Since(start)
		target := time.Duration(float64(e.Interval) / speed)
		if elapsed < target {
			if !sleepCtx(ctx, target-elapsed) {
				break
			}
		}
	}

	slog.Info("simulation engine stopped", "tick", e.Scenario.Tick())
}

// Stop halts the simulation loop.
func (e *Engine) Stop() {
	e.mu.RLock()
	cancel := e.cancel
	e.mu.RUnlock()
	if cancel != nil {
		cancel()
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
