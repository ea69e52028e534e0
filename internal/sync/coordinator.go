package sync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// CursorStore is the durable per-table watermark consumed by the coordinator.
// Implemented by store.CursorStore.
type CursorStore interface {
	Get(ctx context.Context, table string) (time.Time, error)
	Set(ctx context.Context, table string, t time.Time) error
}

// Coordinator runs one full cycle over all registered replicators, enforces
// single-flight execution and aggregates per-table results into one outcome.
type Coordinator struct {
	cursors     CursorStore
	replicators []Replicator
	broadcaster *Broadcaster

	// runMu is held for the duration of a cycle; stateMu guards the fields
	// below. Splitting them keeps status reads non-blocking while a cycle runs.
	runMu      sync.Mutex
	stateMu    sync.Mutex
	status     Status
	lastResult Result
}

// NewCoordinator creates a coordinator. Replicators run in the given order
// every cycle; referenced entities must come before referencing ones.
func NewCoordinator(cursors CursorStore, broadcaster *Broadcaster, replicators ...Replicator) *Coordinator {
	return &Coordinator{
		cursors:     cursors,
		replicators: replicators,
		broadcaster: broadcaster,
		status:      StatusIdle,
		lastResult: Result{
			Status:    StatusIdle,
			Message:   "Service initialized",
			Timestamp: time.Now(),
		},
	}
}

// Status returns the current state and the most recent result.
func (c *Coordinator) Status() (Status, Result) {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.status, c.lastResult
}

// SyncNow runs one cycle and returns its result. If a cycle is already in
// flight and force is false, the most recent result is returned immediately
// without starting anything. With force true the call waits for the running
// cycle to finish and then runs its own; cycles never overlap.
func (c *Coordinator) SyncNow(ctx context.Context, force bool) Result {
	if !c.beginCycle(force) {
		_, last := c.Status()
		return last
	}
	defer c.endCycle()

	c.publish(Result{
		Status:    StatusSyncing,
		Message:   "Synchronization in progress",
		Timestamp: time.Now(),
	})

	result := c.runCycle(ctx)
	c.publish(result)
	return result
}

// beginCycle claims the run lock and takes the Idle -> Syncing transition.
// Only the runMu holder ever writes the Syncing claim, so a finishing cycle
// cannot clobber the claim of a waiter that is about to run. A plain flag
// check would race: two callers could both observe Idle and start.
func (c *Coordinator) beginCycle(force bool) bool {
	if force {
		c.runMu.Lock()
	} else if !c.runMu.TryLock() {
		return false
	}
	c.stateMu.Lock()
	c.status = StatusSyncing
	c.stateMu.Unlock()
	return true
}

func (c *Coordinator) endCycle() {
	c.stateMu.Lock()
	c.status = StatusIdle
	c.stateMu.Unlock()
	c.runMu.Unlock()
}

func (c *Coordinator) publish(result Result) {
	c.stateMu.Lock()
	c.lastResult = result
	c.stateMu.Unlock()
	c.broadcaster.Publish(result)
}

// runCycle replicates every table in order. A failed table leaves its cursor
// untouched and does not stop later tables; cursors of successful tables are
// advanced immediately, so partial progress survives a later failure.
func (c *Coordinator) runCycle(ctx context.Context) Result {
	started := time.Now()
	counts := make(map[string]int, len(c.replicators))
	var firstErr error
	var firstErrTable string

	for _, r := range c.replicators {
		table := r.Table()
		log := logrus.WithField("table", table)

		count, err := c.replicateTable(ctx, r)
		counts[table] = count
		if err != nil {
			log.WithError(err).Error("Table sync failed")
			if firstErr == nil {
				firstErr = err
				firstErrTable = table
			}
			continue
		}
		log.WithField("count", count).Debug("Table sync succeeded")
	}

	if firstErr != nil {
		return Result{
			Status:        StatusError,
			Message:       fmt.Sprintf("Sync failed for table %s", firstErrTable),
			Timestamp:     started,
			RecordsSynced: counts,
			Err:           firstErr.Error(),
		}
	}
	return Result{
		Status:        StatusSuccess,
		Message:       "Sync completed successfully",
		Timestamp:     started,
		RecordsSynced: counts,
	}
}

// replicateTable runs one replicator against its cursor. A cursor that fails
// to persist counts as a failed table: reporting success without durable
// progress would resend nothing next cycle after a crash.
func (c *Coordinator) replicateTable(ctx context.Context, r Replicator) (int, error) {
	table := r.Table()

	since, err := c.cursors.Get(ctx, table)
	if err != nil {
		return 0, fmt.Errorf("cursor read failed: %w", err)
	}

	newWatermark, count, err := runReplicator(ctx, r, since)
	if err != nil {
		return 0, err
	}

	// Invariant: the watermark never regresses.
	if newWatermark.Before(since) {
		newWatermark = since
	}
	if newWatermark.Equal(since) {
		// No-op cycle, nothing to persist.
		return count, nil
	}

	if err := c.cursors.Set(ctx, table, newWatermark); err != nil {
		return 0, fmt.Errorf("cursor write failed: %w", err)
	}
	return count, nil
}

// runReplicator contains a panicking replicator to a per-table failure;
// nothing escapes SyncNow.
func runReplicator(ctx context.Context, r Replicator, since time.Time) (watermark time.Time, count int, err error) {
	defer func() {
		if p := recover(); p != nil {
			watermark, count = since, 0
			err = fmt.Errorf("replicator panicked: %v", p)
		}
	}()
	return r.Replicate(ctx, since)
}
