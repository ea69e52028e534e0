// Package sync implements the background replication engine: per-table
// replicators, a single-flight coordinator, a periodic scheduler and a status
// broadcaster.
package sync

import (
	"time"
)

// Status is the engine state machine:
// Idle -> Scheduled -> Syncing -> Success|Error -> Idle.
type Status int

const (
	StatusIdle Status = iota
	StatusScheduled
	StatusSyncing
	StatusSuccess
	StatusError
)

// String returns the lower-case status name used in logs and the UI.
func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusScheduled:
		return "scheduled"
	case StatusSyncing:
		return "syncing"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Result is an immutable snapshot of one cycle's outcome.
type Result struct {
	Status        Status
	Message       string
	Timestamp     time.Time
	RecordsSynced map[string]int
	Err           string
}
