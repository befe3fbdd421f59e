package api_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/meshweave/engine/pkg/api"
)

func TestBetterPrefersHigherRank(t *testing.T) {
	shared := &api.ProgressEntry{Status: api.StepShared, Timestamp: 10}
	running := &api.ProgressEntry{Status: api.StepRunning, Timestamp: 99}
	assert.True(t, shared.Better(running))
	assert.False(t, running.Better(shared))
}

func TestBetterBreaksTiesByTimestamp(t *testing.T) {
	older := &api.ProgressEntry{Status: api.StepCompleted, Timestamp: 10}
	newer := &api.ProgressEntry{Status: api.StepCompleted, Timestamp: 20}
	assert.True(t, newer.Better(older))
	assert.False(t, older.Better(newer))
}

func TestBetterPrefersUsableOutputPath(t *testing.T) {
	bare := &api.ProgressEntry{Status: api.StepShared, Timestamp: 10}
	withDir := &api.ProgressEntry{
		Status:    api.StepShared,
		Timestamp: 10,
		OutputDir: "/work/1-gen_variants",
	}
	assert.True(t, withDir.Better(bare))
	assert.False(t, bare.Better(withDir))
}

func TestBetterAgainstNil(t *testing.T) {
	entry := &api.ProgressEntry{Status: api.StepWaitingForDependencies}
	assert.True(t, entry.Better(nil))
}

func TestStatusOfUnknownIsNotYetKnown(t *testing.T) {
	sp := &api.SessionProgress{
		Participants: map[api.Identity]*api.ParticipantProgress{
			"alice@example.com": {
				Identity: "alice@example.com",
				Steps: map[api.StepID]*api.ProgressEntry{
					"gen_variants": {Status: api.StepShared},
				},
			},
		},
	}

	assert.Equal(t, api.StepShared,
		sp.StatusOf("alice@example.com", "gen_variants"))
	assert.Equal(t, api.StepWaitingForDependencies,
		sp.StatusOf("alice@example.com", "build_master"))
	assert.Equal(t, api.StepWaitingForDependencies,
		sp.StatusOf("bob@example.com", "gen_variants"))
}
