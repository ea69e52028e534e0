package sync

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Scheduler drives periodic cycles on a single background worker without
// blocking its caller.
type Scheduler struct {
	coordinator *Coordinator
	broadcaster *Broadcaster

	mu       sync.Mutex
	interval time.Duration
	autoSync bool
	running  bool
	cancel   context.CancelFunc
	done     chan struct{}

	tick        time.Duration
	cooldown    time.Duration
	stopTimeout time.Duration
}

// NewScheduler creates a stopped scheduler.
func NewScheduler(coordinator *Coordinator, broadcaster *Broadcaster, cfg Config) *Scheduler {
	return &Scheduler{
		coordinator: coordinator,
		broadcaster: broadcaster,
		interval:    cfg.Interval,
		autoSync:    cfg.AutoSync,
		tick:        cfg.Tick,
		cooldown:    cfg.Cooldown,
		stopTimeout: cfg.StopTimeout,
	}
}

// Start spawns the background worker. Calling Start while already running is
// a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		logrus.Debug("Sync scheduler already running")
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.running = true
	s.cancel = cancel
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	go s.loop(ctx, done)

	s.broadcaster.Publish(Result{
		Status:    StatusScheduled,
		Message:   "Background sync service started",
		Timestamp: time.Now(),
	})
	logrus.Info("Sync scheduler started")
}

// Stop cancels the worker cooperatively and waits for it to exit, bounded by
// the stop timeout. An in-flight cycle is allowed to finish; only the next
// iteration is suppressed.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel := s.cancel
	done := s.done
	s.mu.Unlock()

	cancel()
	select {
	case <-done:
		logrus.Info("Sync scheduler stopped")
	case <-time.After(s.stopTimeout):
		logrus.Warn("Sync worker did not stop within timeout")
	}

	s.broadcaster.Publish(Result{
		Status:    StatusIdle,
		Message:   "Background sync service stopped",
		Timestamp: time.Now(),
	})
}

// SetInterval changes the pause between cycles, effective from the next tick.
func (s *Scheduler) SetInterval(minutes int) {
	s.mu.Lock()
	s.interval = time.Duration(minutes) * time.Minute
	s.mu.Unlock()
	logrus.WithField("minutes", minutes).Info("Sync interval changed")
}

// SetAutoSync enables or disables scheduled cycles without stopping the
// worker; manual SyncNow calls are unaffected.
func (s *Scheduler) SetAutoSync(enabled bool) {
	s.mu.Lock()
	s.autoSync = enabled
	s.mu.Unlock()
	logrus.WithField("enabled", enabled).Info("Auto sync toggled")
}

// AutoSync reports whether scheduled cycles are enabled.
func (s *Scheduler) AutoSync() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.autoSync
}

// Interval returns the configured pause between cycles.
func (s *Scheduler) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

// Running reports whether the background worker is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	logrus.Info("Background sync worker started")

	for {
		if ctx.Err() != nil {
			return
		}

		if s.AutoSync() {
			if !s.runIteration(ctx) {
				// Transient trouble; back off before trying again so a
				// degraded remote is not hammered every interval.
				if !s.sleep(ctx, s.cooldown) {
					return
				}
			}
		}

		if !s.sleepInterval(ctx) {
			return
		}
	}
}

// runIteration runs one scheduled cycle. The worker never dies from a
// transient error: panics are contained here and reported as a failure.
func (s *Scheduler) runIteration(ctx context.Context) (ok bool) {
	defer func() {
		if p := recover(); p != nil {
			logrus.WithField("panic", p).Error("Scheduled sync panicked")
			ok = false
		}
	}()

	result := s.coordinator.SyncNow(ctx, false)
	if result.Status == StatusError {
		logrus.WithField("error", result.Err).Warn("Scheduled sync failed")
		return false
	}
	logrus.WithField("records", result.RecordsSynced).Info("Scheduled sync completed")
	return true
}

// sleep waits for d in tick-sized steps, re-checking cancellation every tick
// so Stop takes effect within one tick rather than a full interval. Returns
// false when the context was cancelled.
func (s *Scheduler) sleep(ctx context.Context, d time.Duration) bool {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	var waited time.Duration
	for waited < d {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
			waited += s.tick
		}
	}
	return true
}

// sleepInterval waits out the configured interval, re-reading it every tick
// so SetInterval takes effect from the next tick without a restart. Returns
// false when the context was cancelled.
func (s *Scheduler) sleepInterval(ctx context.Context) bool {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	var waited time.Duration
	for waited < s.Interval() {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
			waited += s.tick
		}
	}
	return true
}
