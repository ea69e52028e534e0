package sync

import (
	"context"
	"time"
)

// Config holds the engine timing knobs.
type Config struct {
	// Interval is the pause between scheduled cycles.
	Interval time.Duration
	// Tick is the cancellation check granularity while the worker sleeps.
	Tick time.Duration
	// Cooldown is the extra pause after a failed iteration.
	Cooldown time.Duration
	// StopTimeout bounds how long Stop waits for the worker to exit.
	StopTimeout time.Duration
	// AutoSync enables scheduled cycles.
	AutoSync bool
}

// DefaultConfig returns the production timing configuration.
func DefaultConfig() Config {
	return Config{
		Interval:    30 * time.Minute,
		Tick:        10 * time.Second,
		Cooldown:    time.Minute,
		StopTimeout: 5 * time.Second,
		AutoSync:    true,
	}
}

// EngineStatus is the snapshot returned by Engine.Status for UI display.
type EngineStatus struct {
	State           Status
	Running         bool
	AutoSync        bool
	IntervalMinutes int
	LastResult      Result
}

// Engine is the replication engine facade handed to the rest of the
// application. It is owned by the composition root and passed by reference;
// there is no package-level instance.
type Engine struct {
	coordinator *Coordinator
	scheduler   *Scheduler
	broadcaster *Broadcaster
}

// NewEngine wires a broadcaster, coordinator and scheduler together.
// Replicators run in the given order every cycle.
func NewEngine(cfg Config, cursors CursorStore, replicators ...Replicator) *Engine {
	broadcaster := NewBroadcaster()
	coordinator := NewCoordinator(cursors, broadcaster, replicators...)
	scheduler := NewScheduler(coordinator, broadcaster, cfg)
	return &Engine{
		coordinator: coordinator,
		scheduler:   scheduler,
		broadcaster: broadcaster,
	}
}

// Start launches the background worker. Idempotent.
func (e *Engine) Start() { e.scheduler.Start() }

// Stop shuts the background worker down cooperatively.
func (e *Engine) Stop() { e.scheduler.Stop() }

// SyncNow triggers an immediate cycle; see Coordinator.SyncNow.
func (e *Engine) SyncNow(ctx context.Context, force bool) Result {
	return e.coordinator.SyncNow(ctx, force)
}

// SetAutoSync enables or disables scheduled cycles.
func (e *Engine) SetAutoSync(enabled bool) { e.scheduler.SetAutoSync(enabled) }

// SetInterval changes the pause between scheduled cycles.
func (e *Engine) SetInterval(minutes int) { e.scheduler.SetInterval(minutes) }

// Subscribe registers a status listener.
func (e *Engine) Subscribe(l Listener) Subscription { return e.broadcaster.Subscribe(l) }

// Unsubscribe removes a status listener.
func (e *Engine) Unsubscribe(s Subscription) { e.broadcaster.Unsubscribe(s) }

// Status returns the current engine state for UI display.
func (e *Engine) Status() EngineStatus {
	state, last := e.coordinator.Status()
	return EngineStatus{
		State:           state,
		Running:         e.scheduler.Running(),
		AutoSync:        e.scheduler.AutoSync(),
		IntervalMinutes: int(e.scheduler.Interval() / time.Minute),
		LastResult:      last,
	}
}
