package tests

import (
	"context"
	"testing"
	"time"

	"github.com/meshweave/engine/internal/assert"
	"github.com/meshweave/engine/internal/assert/helpers"
	"github.com/meshweave/engine/internal/engine"
	"github.com/meshweave/engine/pkg/api"
)

// TestAggregationPipeline drives the full fan-in flow across three engines
// sharing one substrate: clients generate and share variants, the
// aggregator builds and shares a master list, clients align against it,
// and everyone runs the secure aggregation over the verified mesh
func TestAggregationPipeline(t *testing.T) {
	as := assert.New(t)
	ctx := context.Background()
	sub := helpers.NewSharedSubstrate(t)

	carol := helpers.NewTestEngine(t, "carol@example.com", sub)
	alice := helpers.NewTestEngine(t, "alice@example.com", sub)
	bob := helpers.NewTestEngine(t, "bob@example.com", sub)
	clients := []*helpers.TestEnv{alice, bob}

	spec := helpers.NewAggregationFlow(
		"carol@example.com", "alice@example.com", "bob@example.com",
	)

	inv, err := carol.Engine.Invite(ctx, spec, helpers.NewParticipants(
		"carol@example.com", "alice@example.com", "bob@example.com",
	))
	as.Require.NoError(err)
	_, err = alice.Engine.Join(ctx, inv)
	as.Require.NoError(err)
	_, err = bob.Engine.Join(ctx, inv)
	as.Require.NoError(err)

	// Stage 1: clients generate and share variants
	for _, env := range clients {
		as.NoError(env.Engine.RunStep(ctx, inv.SessionID, "gen_variants"))
		as.NoError(env.Engine.ShareStep(ctx, inv.SessionID, "gen_variants"))
	}

	// Stage 2: the aggregator becomes Ready only after every client shared
	as.EventuallyWithError(func() error {
		return carol.Engine.Evaluate(ctx, inv.SessionID)
	}, 5*time.Second, "aggregator evaluation failed")
	as.NoError(carol.Engine.RunStep(ctx, inv.SessionID, "build_master"))
	as.NoError(carol.Engine.ShareStep(ctx, inv.SessionID, "build_master"))

	// The aggregator saw both client artifacts
	_, states, err := carol.Engine.GetState(inv.SessionID)
	as.Require.NoError(err)
	as.StepStatus(states, "build_master", api.StepShared)

	// Stage 3: clients align against the shared master list
	for _, env := range clients {
		as.NoError(env.Engine.Evaluate(ctx, inv.SessionID))
		as.NoError(env.Engine.RunStep(ctx, inv.SessionID, "align_counts"))
		as.NoError(env.Engine.ShareStep(ctx, inv.SessionID, "align_counts"))
	}

	// Stage 4: the secure step runs everywhere once alignment converged
	for _, env := range []*helpers.TestEnv{carol, alice, bob} {
		as.NoError(env.Engine.Evaluate(ctx, inv.SessionID))
		as.NoError(env.Engine.RunStep(ctx, inv.SessionID, "secure_aggregate"))
	}

	// Every participant's merged view shows the whole mesh converged
	progress, err := carol.Engine.Aggregate(ctx, inv.SessionID)
	as.Require.NoError(err)
	for _, id := range []api.Identity{
		"carol@example.com", "alice@example.com", "bob@example.com",
	} {
		as.Equal(api.StepCompleted,
			progress.StatusOf(id, "secure_aggregate"),
			"participant %s", id)
	}
}

// TestAggregatorGatingOnPartialShares checks that a single lagging client
// keeps the fan-in step out of Ready
func TestAggregatorGatingOnPartialShares(t *testing.T) {
	as := assert.New(t)
	ctx := context.Background()
	sub := helpers.NewSharedSubstrate(t)

	carol := helpers.NewTestEngine(t, "carol@example.com", sub)
	alice := helpers.NewTestEngine(t, "alice@example.com", sub)
	bob := helpers.NewTestEngine(t, "bob@example.com", sub)

	spec := helpers.NewAggregationFlow(
		"carol@example.com", "alice@example.com", "bob@example.com",
	)
	inv, err := carol.Engine.Invite(ctx, spec, helpers.NewParticipants(
		"carol@example.com", "alice@example.com", "bob@example.com",
	))
	as.Require.NoError(err)
	_, err = alice.Engine.Join(ctx, inv)
	as.Require.NoError(err)
	_, err = bob.Engine.Join(ctx, inv)
	as.Require.NoError(err)

	// Only alice shares; bob lags behind
	as.NoError(alice.Engine.RunStep(ctx, inv.SessionID, "gen_variants"))
	as.NoError(alice.Engine.ShareStep(ctx, inv.SessionID, "gen_variants"))

	as.NoError(carol.Engine.Evaluate(ctx, inv.SessionID))
	_, states, err := carol.Engine.GetState(inv.SessionID)
	as.Require.NoError(err)
	as.StepStatus(states, "build_master", api.StepWaitingForDependencies)

	err = carol.Engine.RunStep(ctx, inv.SessionID, "build_master")
	as.ErrorIs(err, engine.ErrNotReady)

	// Bob catches up and the gate opens
	as.NoError(bob.Engine.RunStep(ctx, inv.SessionID, "gen_variants"))
	as.NoError(bob.Engine.ShareStep(ctx, inv.SessionID, "gen_variants"))

	as.NoError(carol.Engine.Evaluate(ctx, inv.SessionID))
	as.NoError(carol.Engine.RunStep(ctx, inv.SessionID, "build_master"))
}

// TestFailurePropagatesThroughProgress checks that a client failure becomes
// visible in every peer's merged view and outranks earlier snapshots
func TestFailurePropagatesThroughProgress(t *testing.T) {
	as := assert.New(t)
	ctx := context.Background()
	sub := helpers.NewSharedSubstrate(t)

	carol := helpers.NewTestEngine(t, "carol@example.com", sub)
	alice := helpers.NewTestEngine(t, "alice@example.com", sub)

	spec := helpers.NewAggregationFlow(
		"carol@example.com", "alice@example.com",
	)
	inv, err := carol.Engine.Invite(ctx, spec, helpers.NewParticipants(
		"carol@example.com", "alice@example.com",
	))
	as.Require.NoError(err)
	_, err = alice.Engine.Join(ctx, inv)
	as.Require.NoError(err)

	alice.Runner.FailWith("gen_variants", "bad input data")
	err = alice.Engine.RunStep(ctx, inv.SessionID, "gen_variants")
	as.ErrorIs(err, engine.ErrExecutionFailed)

	progress, err := carol.Engine.Aggregate(ctx, inv.SessionID)
	as.Require.NoError(err)
	as.Equal(api.StepFailed,
		progress.StatusOf("alice@example.com", "gen_variants"))

	// The failure never unblocks the consumer
	as.NoError(carol.Engine.Evaluate(ctx, inv.SessionID))
	_, states, err := carol.Engine.GetState(inv.SessionID)
	as.Require.NoError(err)
	as.StepStatus(states, "build_master", api.StepWaitingForDependencies)
}

// TestBarrierStepWaitsForAllTargets exercises a barrier-only step that
// releases once every targeted participant finished the awaited step
func TestBarrierStepWaitsForAllTargets(t *testing.T) {
	as := assert.New(t)
	ctx := context.Background()
	sub := helpers.NewSharedSubstrate(t)

	alice := helpers.NewTestEngine(t, "alice@example.com", sub)
	bob := helpers.NewTestEngine(t, "bob@example.com", sub)

	spec := &api.FlowSpec{
		Name:    "barrier-flow",
		Version: "1.0.0",
		Steps: []*api.Step{
			{
				ID:     "compute",
				Uses:   "compute",
				RunsOn: []string{api.TargetAll},
			},
			{
				ID:      "sync_point",
				Barrier: &api.BarrierSpec{WaitFor: "compute"},
			},
		},
		Modules: map[string]*api.Module{
			"compute": {
				Entrypoint: "compute.py",
				Outputs:    []string{"result.json"},
			},
		},
	}

	inv, err := alice.Engine.Invite(ctx, spec, helpers.NewParticipants(
		"alice@example.com", "bob@example.com",
	))
	as.Require.NoError(err)
	_, err = bob.Engine.Join(ctx, inv)
	as.Require.NoError(err)

	// Barrier holds while bob has not finished
	as.NoError(alice.Engine.RunStep(ctx, inv.SessionID, "compute"))
	as.NoError(alice.Engine.Evaluate(ctx, inv.SessionID))
	_, states, err := alice.Engine.GetState(inv.SessionID)
	as.Require.NoError(err)
	as.StepStatus(states, "sync_point", api.StepWaitingForDependencies)

	// Barrier releases once everyone converged
	as.NoError(bob.Engine.RunStep(ctx, inv.SessionID, "compute"))
	as.NoError(alice.Engine.Evaluate(ctx, inv.SessionID))
	as.NoError(alice.Engine.RunStep(ctx, inv.SessionID, "sync_point"))

	_, states, err = alice.Engine.GetState(inv.SessionID)
	as.Require.NoError(err)
	as.StepStatus(states, "sync_point", api.StepCompleted)
}

// TestAutoRunStepsExecuteFromThePollLoop checks that auto_run steps are
// picked up without an explicit run action
func TestAutoRunStepsExecuteFromThePollLoop(t *testing.T) {
	as := assert.New(t)
	ctx := context.Background()
	sub := helpers.NewSharedSubstrate(t)
	env := helpers.NewTestEngine(t, "alice@example.com", sub)

	spec := helpers.NewTestFlow()
	spec.Steps[0].AutoRun = true

	inv, err := env.Engine.Invite(
		ctx, spec, helpers.NewParticipants("alice@example.com"),
	)
	as.Require.NoError(err)

	as.Eventually(func() bool {
		_, states, err := env.Engine.GetState(inv.SessionID)
		if err != nil {
			return false
		}
		for _, st := range states {
			if st.StepID == "compute" {
				return st.Status == api.StepCompleted
			}
		}
		return false
	}, 5*time.Second, "auto-run step should complete without a run action")
	as.Equal([]api.StepID{"compute"}, env.Runner.Invoked())
}
