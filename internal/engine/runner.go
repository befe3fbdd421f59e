package engine

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"strings"

	"github.com/meshweave/engine/pkg/api"
)

type (
	// ModuleRunner executes one step's module with its inputs materialized
	// and reports success or failure. The engine treats the module as a
	// black box; only the files it leaves in OutputDir matter
	ModuleRunner interface {
		Run(context.Context, *RunRequest) (*RunResult, error)
	}

	// RunRequest carries everything a module needs to execute one step
	RunRequest struct {
		Session   *api.Session
		Step      *api.Step
		Module    *api.Module
		Inputs    map[string]string
		OutputDir string
	}

	// RunResult reports the outcome of a module execution
	RunResult struct {
		Success bool
		Error   string
	}

	// ExecRunner runs modules as local subprocesses. The module entrypoint
	// is the command; step context is passed through the environment so
	// modules stay agnostic of the engine's internals
	ExecRunner struct {
		command string
	}
)

// NewExecRunner creates a subprocess runner. When command is non-empty it
// wraps every entrypoint (e.g. an interpreter); otherwise the entrypoint
// runs directly
func NewExecRunner(command string) *ExecRunner {
	return &ExecRunner{command: command}
}

func (r *ExecRunner) Run(
	ctx context.Context, req *RunRequest,
) (*RunResult, error) {
	name := req.Module.Entrypoint
	var args []string
	if r.command != "" {
		parts := strings.Fields(r.command)
		name = parts[0]
		args = append(parts[1:], req.Module.Entrypoint)
	}

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = req.OutputDir
	cmd.Env = append(os.Environ(), r.environment(req)...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return &RunResult{Error: msg}, nil
	}
	return &RunResult{Success: true}, nil
}

func (r *ExecRunner) environment(req *RunRequest) []string {
	env := []string{
		"MESHWEAVE_SESSION_ID=" + string(req.Session.ID),
		"MESHWEAVE_RUN_ID=" + string(req.Session.RunID),
		"MESHWEAVE_FLOW=" + req.Session.FlowName,
		"MESHWEAVE_STEP_ID=" + string(req.Step.ID),
		"MESHWEAVE_OUTPUT_DIR=" + req.OutputDir,
	}
	for name, dir := range req.Inputs {
		env = append(env, "MESHWEAVE_INPUT_"+strings.ToUpper(name)+"="+dir)
	}
	return env
}
