package helpers

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/meshweave/engine/internal/config"
	"github.com/meshweave/engine/internal/engine"
	"github.com/meshweave/engine/internal/substrate"
	"github.com/meshweave/engine/pkg/api"
)

// TestEnv holds one participant's engine over a substrate shared by every
// participant of the test, mirroring a real deployment where each engine is
// a separate process and the substrate is the only common medium
type TestEnv struct {
	Engine    *engine.Engine
	Runner    *MockRunner
	Config    *config.Config
	Substrate substrate.Interface
}

// NewTestConfig creates a fast-polling configuration for one participant
func NewTestConfig(t *testing.T, identity string) *config.Config {
	t.Helper()
	cfg := config.NewDefaultConfig()
	cfg.Identity = identity
	cfg.Role = "member"
	cfg.BucketURL = "mem://"
	cfg.WorkDir = t.TempDir()
	cfg.LogLevel = "debug"
	cfg.SyncInterval = 10 * time.Millisecond
	cfg.SyncAttempts = 50
	cfg.PollInterval = 50 * time.Millisecond
	cfg.StepTimeout = 5 * time.Second
	cfg.Workers = 2
	return cfg
}

// NewSharedSubstrate opens one in-memory bucket for all participants of a
// test to share
func NewSharedSubstrate(t *testing.T) *substrate.Blob {
	t.Helper()
	sub, err := substrate.OpenBlob(context.Background(), "mem://", "")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = sub.Close()
	})
	return sub
}

// NewTestEngine creates one participant's engine environment on the shared
// substrate. The engine is started and stopped with the test
func NewTestEngine(
	t *testing.T, identity string, sub substrate.Interface,
) *TestEnv {
	t.Helper()
	cfg := NewTestConfig(t, identity)
	runner := NewMockRunner()
	eng := engine.New(cfg, sub, substrate.NopSyncer, runner)
	eng.Start()
	t.Cleanup(func() {
		_ = eng.Stop()
	})
	return &TestEnv{
		Engine:    eng,
		Runner:    runner,
		Config:    cfg,
		Substrate: sub,
	}
}

// NewParticipants builds a participant list from identities, first as
// organizer, the rest as members
func NewParticipants(identities ...string) []api.Participant {
	out := make([]api.Participant, len(identities))
	for i, id := range identities {
		role := api.Role("member")
		if i == 0 {
			role = "organizer"
		}
		out[i] = api.Participant{Identity: api.Identity(id), Role: role}
	}
	return out
}

// NewTestFlow creates a minimal single-step flow run by everyone
func NewTestFlow() *api.FlowSpec {
	return &api.FlowSpec{
		Name:    "test-flow-" + uuid.NewString()[:8],
		Version: "1.0.0",
		Steps: []*api.Step{{
			ID:     "compute",
			Uses:   "compute",
			RunsOn: []string{api.TargetAll},
		}},
		Modules: map[string]*api.Module{
			"compute": {
				Entrypoint: "compute.py",
				Outputs:    []string{"result.json"},
			},
		},
	}
}

// NewAggregationFlow builds the canonical fan-in flow: every client
// produces and shares variants, the aggregator consumes them, aligns, and
// runs a secure aggregation over the mesh
func NewAggregationFlow(aggregator string, clients ...string) *api.FlowSpec {
	return &api.FlowSpec{
		Name:    "aggregation-" + uuid.NewString()[:8],
		Version: "1.0.0",
		Groups: map[api.GroupName][]string{
			"clients":    clients,
			"aggregator": {aggregator},
		},
		Mesh: &api.MeshSpec{Transport: api.TransportTCP},
		Steps: []*api.Step{
			{
				ID:     "gen_variants",
				Uses:   "gen_variants",
				RunsOn: []string{"clients"},
				Share:  &api.ShareSpec{To: []string{aggregator}},
			},
			{
				ID:     "build_master",
				Uses:   "build_master",
				RunsOn: []string{"aggregator"},
				Inputs: []*api.InputBinding{{
					Name: "variants",
					Step: "gen_variants",
					File: "variants.json",
				}},
				Share: &api.ShareSpec{To: []string{api.TargetAll}},
			},
			{
				ID:     "align_counts",
				Uses:   "align_counts",
				RunsOn: []string{"clients"},
				Inputs: []*api.InputBinding{{
					Name: "master",
					Step: "build_master",
					File: "master.json",
				}},
				Share: &api.ShareSpec{To: []string{aggregator}},
			},
			{
				ID:        "secure_aggregate",
				Uses:      "secure_aggregate",
				RunsOn:    []string{api.TargetAll},
				DependsOn: []api.StepID{"align_counts"},
				Secure:    true,
			},
		},
		Modules: map[string]*api.Module{
			"gen_variants": {
				Entrypoint: "gen_variants.py",
				Outputs:    []string{"variants.json"},
			},
			"build_master": {
				Entrypoint: "build_master.py",
				Outputs:    []string{"master.json"},
			},
			"align_counts": {
				Entrypoint: "align_counts.py",
				Outputs:    []string{"aligned.json"},
			},
			"secure_aggregate": {
				Entrypoint: "secure_aggregate.py",
				Outputs:    []string{"aggregate.json"},
			},
		},
	}
}
