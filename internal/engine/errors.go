package engine

import (
	"errors"
	"fmt"

	"github.com/meshweave/engine/pkg/api"
)

// Error taxonomy. NotReady is transient and retried by callers; execution
// failures are terminal for the attempt; publish failures leave the step
// Completed so the share can be retried; topology inconsistencies are fatal
// and reported distinctly from execution failures because they signal a
// derivation bug or tampering rather than delay
var (
	ErrSessionNotFound   = errors.New("session not found")
	ErrNotParticipant    = errors.New("local identity not named by invitation")
	ErrStepNotFound      = errors.New("step not found")
	ErrNotReady          = errors.New("step not ready")
	ErrNotTarget         = errors.New("participant not in step target group")
	ErrStepAlreadyActive = errors.New("step already running")
	ErrStepNotCompleted  = errors.New("step must be completed before sharing")
	ErrStepDoesNotShare  = errors.New("step declares no share binding")
	ErrExecutionFailed   = errors.New("module execution failed")
	ErrPublishFailed     = errors.New("failed to publish shared outputs")
	ErrInvalidTransition = errors.New("invalid step status transition")
	ErrTopologyMismatch  = errors.New("channel topology inconsistency")
)

// TopologyError reports two directed markers for the same unordered pair
// that disagree on port or port map
type TopologyError struct {
	ChannelID string
	Forward   *api.ChannelMarker
	Reverse   *api.ChannelMarker
}

func (e *TopologyError) Error() string {
	return fmt.Sprintf(
		"%s: markers for %s disagree", ErrTopologyMismatch, e.ChannelID,
	)
}

func (e *TopologyError) Unwrap() error {
	return ErrTopologyMismatch
}
