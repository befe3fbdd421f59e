package api

type (
	// InviteRequest contains parameters for creating a new session. The flow
	// may be given parsed or as raw YAML; exactly one is required
	InviteRequest struct {
		Flow         *FlowSpec     `json:"flow,omitempty"`
		FlowYAML     string        `json:"flow_yaml,omitempty"`
		Participants []Participant `json:"participants"`
	}

	// JoinRequest carries the invitation a participant accepts
	JoinRequest struct {
		Invitation *Invitation `json:"invitation"`
	}

	// SessionStateResponse is the local view of one session: the frozen
	// session record plus per-step state in flow order
	SessionStateResponse struct {
		Session *Session     `json:"session"`
		Steps   []*StepState `json:"steps"`
	}

	// SessionsListResponse lists the joined sessions
	SessionsListResponse struct {
		Sessions []SessionID `json:"sessions"`
		Count    int         `json:"count"`
	}

	// StepActionResponse acknowledges an accepted run or share action
	StepActionResponse struct {
		SessionID SessionID `json:"session_id"`
		StepID    StepID    `json:"step_id"`
		Action    string    `json:"action"`
	}

	// StepOutputsResponse lists a step's locally produced output files
	StepOutputsResponse struct {
		StepID  StepID   `json:"step_id"`
		Outputs []string `json:"outputs"`
		Count   int      `json:"count"`
	}

	// DiagnosticsResponse reports the observable mesh channel state
	DiagnosticsResponse struct {
		Channels []ChannelDiagnostics `json:"channels"`
		Count    int                  `json:"count"`
	}

	// HealthResponse provides service health information
	HealthResponse struct {
		Service  string   `json:"service"`
		Status   string   `json:"status"`
		Identity Identity `json:"identity"`
		Sessions int      `json:"sessions"`
	}

	// MessageResponse contains a simple message string
	MessageResponse struct {
		Message string `json:"message"`
	}

	// ErrorResponse contains error details for failed requests
	ErrorResponse struct {
		Error  string `json:"error"`
		Status int    `json:"status,omitempty"`
	}
)
