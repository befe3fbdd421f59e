package helpers

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/meshweave/engine/internal/engine"
	"github.com/meshweave/engine/pkg/api"
)

// MockRunner is a ModuleRunner that writes each module's declared output
// files instead of executing anything. Failures and custom behaviors can be
// configured per step
type MockRunner struct {
	errors  map[api.StepID]string
	outputs map[api.StepID][]byte
	hooks   map[api.StepID]func(*engine.RunRequest) error
	invoked []api.StepID
	mu      sync.Mutex
}

// NewMockRunner creates a runner that succeeds for every step, producing
// the module's declared outputs with placeholder content
func NewMockRunner() *MockRunner {
	return &MockRunner{
		errors:  map[api.StepID]string{},
		outputs: map[api.StepID][]byte{},
		hooks:   map[api.StepID]func(*engine.RunRequest) error{},
	}
}

// FailWith makes the given step report a module failure; an empty message
// clears a previously configured failure
func (r *MockRunner) FailWith(id api.StepID, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if msg == "" {
		delete(r.errors, id)
		return
	}
	r.errors[id] = msg
}

// OutputContent overrides the placeholder content written for a step
func (r *MockRunner) OutputContent(id api.StepID, data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outputs[id] = data
}

// OnRun installs a hook invoked instead of the default output writing
func (r *MockRunner) OnRun(
	id api.StepID, hook func(*engine.RunRequest) error,
) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks[id] = hook
}

// Invoked returns the step IDs run so far, in invocation order
func (r *MockRunner) Invoked() []api.StepID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]api.StepID(nil), r.invoked...)
}

func (r *MockRunner) Run(
	_ context.Context, req *engine.RunRequest,
) (*engine.RunResult, error) {
	r.mu.Lock()
	r.invoked = append(r.invoked, req.Step.ID)
	msg, failed := r.errors[req.Step.ID]
	content, hasContent := r.outputs[req.Step.ID]
	hook := r.hooks[req.Step.ID]
	r.mu.Unlock()

	if failed {
		return &engine.RunResult{Error: msg}, nil
	}
	if hook != nil {
		if err := hook(req); err != nil {
			return &engine.RunResult{Error: err.Error()}, nil
		}
		return &engine.RunResult{Success: true}, nil
	}

	if !hasContent {
		content = []byte(`{"step":"` + string(req.Step.ID) + `"}`)
	}
	for _, name := range req.Module.Outputs {
		path := filepath.Join(req.OutputDir, name)
		if err := os.WriteFile(path, content, 0o644); err != nil {
			return nil, err
		}
	}
	return &engine.RunResult{Success: true}, nil
}
