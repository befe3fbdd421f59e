package api_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/meshweave/engine/pkg/api"
)

const flowYAML = `
name: variant-aggregation
version: "1.0.0"
groups:
  clients: [alice@example.com, bob@example.com]
mesh:
  transport: tcp
modules:
  gen_variants:
    entrypoint: gen_variants.py
    outputs: [variants.json]
  build_master:
    entrypoint: build_master.py
    outputs: [master.json]
steps:
  - id: gen_variants
    uses: gen_variants
    runs_on: [clients]
    share:
      to: [carol@example.com]
  - id: build_master
    uses: build_master
    runs_on: [carol@example.com]
    inputs:
      - name: variants
        step: gen_variants
        file: variants.json
`

func TestParseFlowSpec(t *testing.T) {
	spec, err := api.ParseFlowSpec([]byte(flowYAML))
	assert.NoError(t, err)
	assert.Equal(t, "variant-aggregation", spec.Name)
	assert.Len(t, spec.Steps, 2)
	assert.Equal(t, api.TransportTCP, spec.Mesh.Transport)

	master := spec.FindStep("build_master")
	assert.NotNil(t, master)
	assert.Equal(t, api.StepID("gen_variants"), master.Inputs[0].Step)
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*api.FlowSpec)
		expected error
	}{
		{
			name:     "empty name",
			mutate:   func(f *api.FlowSpec) { f.Name = "" },
			expected: api.ErrFlowNameEmpty,
		},
		{
			name:     "no steps",
			mutate:   func(f *api.FlowSpec) { f.Steps = nil },
			expected: api.ErrFlowNoSteps,
		},
		{
			name: "duplicate step IDs",
			mutate: func(f *api.FlowSpec) {
				f.Steps = append(f.Steps, f.Steps[0])
			},
			expected: api.ErrStepIDDuplicate,
		},
		{
			name: "unknown module reference",
			mutate: func(f *api.FlowSpec) {
				f.Steps[0].Uses = "nonexistent"
			},
			expected: api.ErrUnknownModule,
		},
		{
			name: "unknown dependency",
			mutate: func(f *api.FlowSpec) {
				f.Steps[0].DependsOn = []api.StepID{"ghost"}
			},
			expected: api.ErrUnknownDependency,
		},
		{
			name: "input bound to unknown step",
			mutate: func(f *api.FlowSpec) {
				f.Steps[1].Inputs[0].Step = "ghost"
			},
			expected: api.ErrUnknownInputStep,
		},
		{
			name: "secure step without mesh",
			mutate: func(f *api.FlowSpec) {
				f.Mesh = nil
				f.Steps[0].Secure = true
			},
			expected: api.ErrSecureWithoutMesh,
		},
		{
			name: "barrier waits for unknown step",
			mutate: func(f *api.FlowSpec) {
				f.Steps[0].Barrier = &api.BarrierSpec{WaitFor: "ghost"}
			},
			expected: api.ErrBarrierUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec, err := api.ParseFlowSpec([]byte(flowYAML))
			assert.NoError(t, err)
			tt.mutate(spec)
			assert.ErrorIs(t, spec.Validate(), tt.expected)
		})
	}
}

func TestDependenciesUnion(t *testing.T) {
	step := &api.Step{
		ID:        "aggregate",
		DependsOn: []api.StepID{"align", "gen"},
		Inputs: []*api.InputBinding{
			{Name: "a", Step: "gen", File: "a.json"},
			{Name: "b", Step: "master", File: "b.json"},
		},
	}
	assert.Equal(t,
		[]api.StepID{"align", "gen", "master"}, step.Dependencies())
}

func TestStepNumberIsOneBased(t *testing.T) {
	spec, err := api.ParseFlowSpec([]byte(flowYAML))
	assert.NoError(t, err)
	assert.Equal(t, 1, spec.StepNumber("gen_variants"))
	assert.Equal(t, 2, spec.StepNumber("build_master"))
	assert.Equal(t, 0, spec.StepNumber("ghost"))
}

func TestSharesOutput(t *testing.T) {
	spec, err := api.ParseFlowSpec([]byte(flowYAML))
	assert.NoError(t, err)
	assert.True(t, spec.FindStep("gen_variants").SharesOutput())
	assert.False(t, spec.FindStep("build_master").SharesOutput())
}
