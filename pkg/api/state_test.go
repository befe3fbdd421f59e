package api_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/meshweave/engine/pkg/api"
)

func TestStatusRankOrdering(t *testing.T) {
	ordered := []api.StepStatus{
		api.StepWaitingForDependencies,
		api.StepWaitingForInputs,
		api.StepReady,
		api.StepRunning,
		api.StepCompleted,
		api.StepShared,
		api.StepFailed,
	}
	for i := 1; i < len(ordered); i++ {
		assert.Greater(t, ordered[i].Rank(), ordered[i-1].Rank(),
			"%s should outrank %s", ordered[i], ordered[i-1])
	}
}

func TestFailedOutranksShared(t *testing.T) {
	// A failure report must win the merge even against a Shared snapshot
	assert.Greater(t, api.StepFailed.Rank(), api.StepShared.Rank())
}

func TestNormalizeStatus(t *testing.T) {
	tests := []struct {
		raw      string
		expected api.StepStatus
	}{
		{"Shared", api.StepShared},
		{"shared", api.StepShared},
		{"Completed", api.StepCompleted},
		{"success", api.StepCompleted},
		{"  done ", api.StepCompleted},
		{"running", api.StepRunning},
		{"in_progress", api.StepRunning},
		{"Ready", api.StepReady},
		{"waiting_for_inputs", api.StepWaitingForInputs},
		{"Failed", api.StepFailed},
		{"error", api.StepFailed},
		{"bogus", api.StepWaitingForDependencies},
		{"", api.StepWaitingForDependencies},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.expected, api.NormalizeStatus(tt.raw))
		})
	}
}

func TestTerminal(t *testing.T) {
	assert.True(t, api.StepCompleted.Terminal())
	assert.True(t, api.StepShared.Terminal())
	assert.False(t, api.StepFailed.Terminal())
	assert.False(t, api.StepRunning.Terminal())
}

func TestAdvanceRecordsHistory(t *testing.T) {
	st := &api.StepState{
		StepID: "gen_variants",
		Status: api.StepReady,
	}
	now := time.Now().UTC()
	st.Advance(api.StepRunning, now)
	st.Advance(api.StepCompleted, now.Add(time.Second))

	assert.Equal(t, api.StepCompleted, st.Status)
	assert.Len(t, st.History, 2)
	assert.Equal(t, api.StepReady, st.History[0].From)
	assert.Equal(t, api.StepRunning, st.History[0].To)
	assert.Equal(t, api.StepRunning, st.History[1].From)
	assert.Equal(t, api.StepCompleted, st.History[1].To)
}
