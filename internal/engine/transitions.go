package engine

import (
	"github.com/meshweave/engine/pkg/api"
	"github.com/meshweave/engine/pkg/util"
)

// StateTransitions maps states to their set of valid next states
type StateTransitions[T comparable] map[T]util.Set[T]

// stepTransitions encodes the step state machine. Statuses only ever move
// forward along this partial order; Failed admits Running again because an
// explicit re-run starts a fresh attempt record
var stepTransitions = StateTransitions[api.StepStatus]{
	api.StepWaitingForDependencies: util.SetOf(
		api.StepWaitingForInputs,
		api.StepReady,
	),
	api.StepWaitingForInputs: util.SetOf(
		api.StepReady,
	),
	api.StepReady: util.SetOf(
		api.StepWaitingForInputs,
		api.StepRunning,
	),
	api.StepRunning: util.SetOf(
		api.StepCompleted,
		api.StepFailed,
	),
	api.StepCompleted: util.SetOf(
		api.StepShared,
	),
	api.StepShared: {},
	api.StepFailed: util.SetOf(
		api.StepRunning,
	),
}

// CanTransition returns whether transition from one state to another is valid
func (t StateTransitions[T]) CanTransition(from, to T) bool {
	allowed, ok := t[from]
	if !ok {
		return false
	}
	return allowed.Contains(to)
}
