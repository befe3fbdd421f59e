package api

import (
	"strings"
	"time"
)

type (
	// StepStatus represents the current state of a step on one participant
	StepStatus string

	// StepState tracks one step's execution on the local participant. It is
	// created lazily when a session is joined and only ever appended to; the
	// full transition history is retained for the progress log
	StepState struct {
		StepID      StepID       `json:"step_id"`
		Status      StepStatus   `json:"status"`
		MyAction    bool         `json:"my_action"`
		StartedAt   time.Time    `json:"started_at,omitempty"`
		CompletedAt time.Time    `json:"completed_at,omitempty"`
		OutputDir   string       `json:"output_dir,omitempty"`
		Outputs     []string     `json:"outputs,omitempty"`
		Error       string       `json:"error,omitempty"`
		Attempts    int          `json:"attempts,omitempty"`
		History     []Transition `json:"history,omitempty"`
	}

	// Transition records one status change for the progress log
	Transition struct {
		From StepStatus `json:"from"`
		To   StepStatus `json:"to"`
		At   time.Time  `json:"at"`
	}
)

const (
	StepWaitingForDependencies StepStatus = "WaitingForDependencies"
	StepWaitingForInputs       StepStatus = "WaitingForInputs"
	StepReady                  StepStatus = "Ready"
	StepRunning                StepStatus = "Running"
	StepCompleted              StepStatus = "Completed"
	StepShared                 StepStatus = "Shared"
	StepFailed                 StepStatus = "Failed"
)

// statusRanks orders statuses by progress so that peer views can be merged
// by taking the furthest status observed. Failed ranks above Shared: a
// failure report must never be masked by an earlier optimistic snapshot
var statusRanks = map[StepStatus]int{
	StepFailed:                 100,
	StepShared:                 90,
	StepCompleted:              80,
	StepRunning:                60,
	StepReady:                  50,
	StepWaitingForInputs:       40,
	StepWaitingForDependencies: 10,
}

// Rank returns the merge rank of a status; unknown statuses rank lowest
func (s StepStatus) Rank() int {
	return statusRanks[s]
}

// Terminal reports whether the step has reached Completed or Shared
func (s StepStatus) Terminal() bool {
	return s == StepCompleted || s == StepShared
}

// NormalizeStatus maps free-form status strings found in peer progress
// documents onto the canonical status set. Unrecognized values collapse to
// WaitingForDependencies, i.e. "not yet known"
func NormalizeStatus(raw string) StepStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "shared":
		return StepShared
	case "completed", "complete", "success", "succeeded", "done":
		return StepCompleted
	case "running", "in_progress", "in-progress":
		return StepRunning
	case "ready":
		return StepReady
	case "waitingforinputs", "waiting_for_inputs", "waiting-for-inputs":
		return StepWaitingForInputs
	case "failed", "error":
		return StepFailed
	default:
		return StepWaitingForDependencies
	}
}

// Advance appends a transition and moves the state to the new status
func (st *StepState) Advance(to StepStatus, now time.Time) {
	st.History = append(st.History, Transition{
		From: st.Status,
		To:   to,
		At:   now,
	})
	st.Status = to
}
