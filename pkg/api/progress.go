package api

import "time"

type (
	// ProgressDocument is one participant's published view of its own step
	// statuses for a run: a current snapshot plus an append-only transition
	// log. It lives at a well-known path readable by every session
	// participant and writable only by the owner
	ProgressDocument struct {
		Owner     Identity                  `json:"owner"`
		Role      Role                      `json:"role"`
		RunID     RunID                     `json:"run_id"`
		Steps     map[StepID]*ProgressEntry `json:"steps"`
		UpdatedAt time.Time                 `json:"updated_at"`
	}

	// ProgressEntry is the published snapshot of one step's status
	ProgressEntry struct {
		Status    StepStatus `json:"status"`
		Timestamp int64      `json:"timestamp"`
		OutputDir string     `json:"output_dir,omitempty"`
	}

	// ProgressEvent is one line of the append-only progress log
	ProgressEvent struct {
		Event     string    `json:"event"`
		StepID    StepID    `json:"step_id,omitempty"`
		Role      Role      `json:"role"`
		Timestamp time.Time `json:"timestamp"`
	}

	// ParticipantProgress is a peer's merged progress as observed locally
	ParticipantProgress struct {
		Identity Identity                  `json:"identity"`
		Role     Role                      `json:"role"`
		Steps    map[StepID]*ProgressEntry `json:"steps"`
	}

	// SessionProgress is the whole-session view reconstructed by the
	// aggregator from every participant's progress document
	SessionProgress struct {
		SessionID    SessionID                        `json:"session_id"`
		RunID        RunID                            `json:"run_id"`
		Participants map[Identity]*ParticipantProgress `json:"participants"`
	}
)

// Better reports whether a candidate entry should replace an existing one
// when merging progress views: higher rank wins, then the later timestamp,
// then the record that carries a usable output path
func (e *ProgressEntry) Better(existing *ProgressEntry) bool {
	if existing == nil {
		return true
	}
	if r, er := e.Status.Rank(), existing.Status.Rank(); r != er {
		return r > er
	}
	if e.Timestamp != existing.Timestamp {
		return e.Timestamp > existing.Timestamp
	}
	return e.OutputDir != "" && existing.OutputDir == ""
}

// StatusOf returns the furthest observed status for a participant's step,
// or WaitingForDependencies when nothing has been observed yet. Staleness
// and missing documents are "not yet known", never failure
func (sp *SessionProgress) StatusOf(id Identity, step StepID) StepStatus {
	p, ok := sp.Participants[id]
	if !ok {
		return StepWaitingForDependencies
	}
	entry, ok := p.Steps[step]
	if !ok {
		return StepWaitingForDependencies
	}
	return entry.Status
}
