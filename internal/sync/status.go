package sync

import "time"

// State is the orchestrator's externally visible phase.
type State string

const (
	StateIdle    State = "idle"
	StateSyncing State = "syncing"
	StateError   State = "error"
)

// Status is a point-in-time view of the engine. Err is set only in
// [StateError]; LastSync is the wall-clock end of the last fully successful
// cycle, zero before the first one.
type Status struct {
	State    State
	Err      error
	LastSync time.Time
}
