package api

import (
	"errors"
	"fmt"
	"slices"

	"github.com/goccy/go-yaml"
)

type (
	// FlowSpec is the immutable declarative definition of a multi-step
	// computation. Once attached to a Session it is never modified; every
	// participant receives the full spec by value inside the invitation
	FlowSpec struct {
		Name    string                 `json:"name" yaml:"name"`
		Version string                 `json:"version" yaml:"version"`
		Steps   []*Step                `json:"steps" yaml:"steps"`
		Modules map[string]*Module     `json:"modules,omitempty" yaml:"modules,omitempty"`
		Groups  map[GroupName][]string `json:"groups,omitempty" yaml:"groups,omitempty"`
		Mesh    *MeshSpec              `json:"mesh,omitempty" yaml:"mesh,omitempty"`
	}

	// Step is a unit of work bound to a module, a target participant group,
	// input bindings, and an optional share declaration
	Step struct {
		ID          StepID          `json:"id" yaml:"id"`
		Name        string          `json:"name,omitempty" yaml:"name,omitempty"`
		Description string          `json:"description,omitempty" yaml:"description,omitempty"`
		Uses        string          `json:"uses" yaml:"uses"`
		RunsOn      []string        `json:"runs_on" yaml:"runs_on"`
		DependsOn   []StepID        `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`
		Inputs      []*InputBinding `json:"inputs,omitempty" yaml:"inputs,omitempty"`
		Share       *ShareSpec      `json:"share,omitempty" yaml:"share,omitempty"`
		Barrier     *BarrierSpec    `json:"barrier,omitempty" yaml:"barrier,omitempty"`
		Secure      bool            `json:"secure,omitempty" yaml:"secure,omitempty"`
		AutoRun     bool            `json:"auto_run,omitempty" yaml:"auto_run,omitempty"`
	}

	// Module references an opaque executable payload run inside a step. The
	// engine resolves inputs and collects outputs; module internals are not
	// interpreted
	Module struct {
		Entrypoint string   `json:"entrypoint" yaml:"entrypoint"`
		Source     string   `json:"source,omitempty" yaml:"source,omitempty"`
		Outputs    []string `json:"outputs,omitempty" yaml:"outputs,omitempty"`
	}

	// InputBinding binds a named input file to the shared output of a
	// producer step
	InputBinding struct {
		Name string `json:"name" yaml:"name"`
		Step StepID `json:"step" yaml:"step"`
		File string `json:"file" yaml:"file"`
	}

	// ShareSpec declares which identities may read a step's published
	// outputs. Entries may be identities, group names, or TargetAll
	ShareSpec struct {
		To []string `json:"to" yaml:"to"`
	}

	// BarrierSpec makes a step wait until every participant targeted by the
	// awaited step has completed or shared it
	BarrierSpec struct {
		WaitFor StepID `json:"wait_for" yaml:"wait_for"`
	}

	// MeshSpec declares that the flow's secure steps require a full mesh of
	// pairwise channels among the resolved participants
	MeshSpec struct {
		Transport string `json:"transport,omitempty" yaml:"transport,omitempty"`
		PollMS    int64  `json:"poll_ms,omitempty" yaml:"poll_ms,omitempty"`
	}
)

// TargetAll addresses every session participant in runs_on and share.to
const TargetAll = "all"

const (
	// TransportFile exchanges secure-channel payloads through channel files
	TransportFile = "file"

	// TransportTCP proxies secure-channel payloads over derived TCP ports
	TransportTCP = "tcp"
)

var (
	ErrFlowNameEmpty     = errors.New("flow name empty")
	ErrFlowNoSteps       = errors.New("flow has no steps")
	ErrStepIDEmpty       = errors.New("step ID empty")
	ErrStepIDDuplicate   = errors.New("duplicate step ID")
	ErrStepModuleEmpty   = errors.New("step module reference empty")
	ErrStepNoTargets     = errors.New("step has no run targets")
	ErrUnknownModule     = errors.New("unknown module reference")
	ErrUnknownDependency = errors.New("unknown dependency step")
	ErrUnknownInputStep  = errors.New("input bound to unknown step")
	ErrSecureWithoutMesh = errors.New("secure step requires mesh declaration")
	ErrBarrierUnknown    = errors.New("barrier waits for unknown step")
)

// ParseFlowSpec decodes a YAML flow specification
func ParseFlowSpec(data []byte) (*FlowSpec, error) {
	var spec FlowSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, err
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return &spec, nil
}

// Validate checks structural integrity of the flow specification
func (f *FlowSpec) Validate() error {
	if f.Name == "" {
		return ErrFlowNameEmpty
	}
	if len(f.Steps) == 0 {
		return ErrFlowNoSteps
	}

	ids := make(map[StepID]bool, len(f.Steps))
	for _, s := range f.Steps {
		if s.ID == "" {
			return ErrStepIDEmpty
		}
		if ids[s.ID] {
			return fmt.Errorf("%w: %s", ErrStepIDDuplicate, s.ID)
		}
		ids[s.ID] = true
	}

	for _, s := range f.Steps {
		if err := f.validateStep(s, ids); err != nil {
			return err
		}
	}
	return nil
}

func (f *FlowSpec) validateStep(s *Step, ids map[StepID]bool) error {
	if s.Uses == "" && s.Barrier == nil {
		return fmt.Errorf("%w: %s", ErrStepModuleEmpty, s.ID)
	}
	if s.Uses != "" && len(f.Modules) > 0 {
		if _, ok := f.Modules[s.Uses]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownModule, s.Uses)
		}
	}
	if len(s.RunsOn) == 0 && s.Barrier == nil {
		return fmt.Errorf("%w: %s", ErrStepNoTargets, s.ID)
	}
	for _, dep := range s.DependsOn {
		if !ids[dep] {
			return fmt.Errorf("%w: %s -> %s", ErrUnknownDependency, s.ID, dep)
		}
	}
	for _, in := range s.Inputs {
		if !ids[in.Step] {
			return fmt.Errorf("%w: %s -> %s", ErrUnknownInputStep, s.ID, in.Step)
		}
	}
	if s.Secure && f.Mesh == nil {
		return fmt.Errorf("%w: %s", ErrSecureWithoutMesh, s.ID)
	}
	if s.Barrier != nil && !ids[s.Barrier.WaitFor] {
		return fmt.Errorf("%w: %s -> %s", ErrBarrierUnknown, s.ID, s.Barrier.WaitFor)
	}
	return nil
}

// FindStep returns the step with the given ID, or nil
func (f *FlowSpec) FindStep(id StepID) *Step {
	for _, s := range f.Steps {
		if s.ID == id {
			return s
		}
	}
	return nil
}

// StepNumber returns the 1-based position of a step, used in the shared
// directory name, or 0 if the step is not part of the flow
func (f *FlowSpec) StepNumber(id StepID) int {
	for i, s := range f.Steps {
		if s.ID == id {
			return i + 1
		}
	}
	return 0
}

// Dependencies returns the union of a step's declared dependencies and those
// inferred from its input bindings, sorted and de-duplicated
func (s *Step) Dependencies() []StepID {
	seen := map[StepID]bool{}
	var deps []StepID
	add := func(id StepID) {
		if id == s.ID || seen[id] {
			return
		}
		seen[id] = true
		deps = append(deps, id)
	}
	for _, dep := range s.DependsOn {
		add(dep)
	}
	for _, in := range s.Inputs {
		add(in.Step)
	}
	slices.Sort(deps)
	return deps
}

// SharesOutput reports whether the step declares a share binding
func (s *Step) SharesOutput() bool {
	return s.Share != nil && len(s.Share.To) > 0
}
