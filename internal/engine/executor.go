package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/meshweave/engine/pkg/api"
	"github.com/meshweave/engine/pkg/log"
)

// Evaluate recomputes readiness for every local-action step from the merged
// cross-participant progress view. It never blocks: a step whose inputs have
// not replicated yet parks in WaitingForInputs and is re-examined on the
// next cycle
func (e *Engine) Evaluate(
	ctx context.Context, sessionID api.SessionID,
) error {
	ss, err := e.getSession(sessionID)
	if err != nil {
		return err
	}
	progress, err := e.Aggregate(ctx, sessionID)
	if err != nil {
		return err
	}

	changed := false
	ss.mu.Lock()
	for _, step := range ss.session.Spec.Steps {
		st := ss.steps[step.ID]
		if !st.MyAction {
			continue
		}
		if st.Status != api.StepWaitingForDependencies &&
			st.Status != api.StepWaitingForInputs {
			continue
		}
		if !e.dependenciesMet(ss.session, progress, step) {
			continue
		}
		target := api.StepReady
		if !e.inputsReplicated(ctx, ss.session, step) {
			if st.Status == api.StepWaitingForInputs {
				continue
			}
			target = api.StepWaitingForInputs
		}
		if st.Status == target {
			continue
		}
		event := "step_ready"
		if target == api.StepWaitingForInputs {
			event = "step_waiting_for_inputs"
		}
		if err := ss.transition(
			st, target, event, ss.session.RoleOf(e.identity),
		); err != nil {
			ss.mu.Unlock()
			return err
		}
		changed = true
	}
	ss.mu.Unlock()

	if changed {
		return e.publishProgress(ctx, ss)
	}
	return nil
}

// dependenciesMet checks every data binding of a step against the merged
// progress view, per producer. A producer whose step declares a share
// binding must show Shared; Completed alone never satisfies a downstream
// consumer because its artifacts are not yet visible. Barrier steps wait
// for every target of the awaited step
func (e *Engine) dependenciesMet(
	session *api.Session, progress *api.SessionProgress, step *api.Step,
) bool {
	for _, dep := range step.Dependencies() {
		if !e.dependencySatisfied(session, progress, dep) {
			return false
		}
	}
	if step.Barrier != nil {
		return e.dependencySatisfied(session, progress, step.Barrier.WaitFor)
	}
	return true
}

func (e *Engine) dependencySatisfied(
	session *api.Session, progress *api.SessionProgress, dep api.StepID,
) bool {
	depStep := session.Spec.FindStep(dep)
	if depStep == nil {
		return false
	}
	needShared := depStep.SharesOutput()
	for _, producer := range session.ResolveTargets(depStep) {
		status := progress.StatusOf(producer, dep)
		if needShared {
			if status != api.StepShared {
				return false
			}
			continue
		}
		if !status.Terminal() {
			return false
		}
	}
	return true
}

// inputsReplicated checks whether every bound input artifact is observable
// locally: the local participant's own outputs on disk, peers' outputs on
// the substrate
func (e *Engine) inputsReplicated(
	ctx context.Context, session *api.Session, step *api.Step,
) bool {
	for _, in := range step.Inputs {
		depStep := session.Spec.FindStep(in.Step)
		if depStep == nil {
			return false
		}
		number := session.Spec.StepNumber(in.Step)
		for _, producer := range session.ResolveTargets(depStep) {
			if producer == e.identity {
				path := filepath.Join(
					e.stepWorkDir(session, number, in.Step), in.File,
				)
				if _, err := os.Stat(path); err != nil {
					return false
				}
				continue
			}
			key := api.StepDir(
				e.runRoot(session, producer), number, in.Step,
			) + "/" + in.File
			ok, err := e.sub.Exists(ctx, key)
			if err != nil || !ok {
				return false
			}
		}
	}
	return true
}

// RunStep performs the explicit run action for a step: it verifies target
// membership and readiness, materializes inputs, establishes the secure
// mesh when required, and invokes the module. A per-(session, step) mutex
// prevents duplicate concurrent execution by this participant
func (e *Engine) RunStep(
	ctx context.Context, sessionID api.SessionID, stepID api.StepID,
) error {
	ss, err := e.getSession(sessionID)
	if err != nil {
		return err
	}
	step := ss.session.Spec.FindStep(stepID)
	if step == nil {
		return fmt.Errorf("%w: %s", ErrStepNotFound, stepID)
	}
	if !ss.session.IsTarget(step, e.identity) {
		return fmt.Errorf("%w: %s", ErrNotTarget, e.identity)
	}

	lock := ss.stepLock(stepID)
	if !lock.TryLock() {
		return fmt.Errorf("%w: %s", ErrStepAlreadyActive, stepID)
	}
	defer lock.Unlock()

	if err := e.Evaluate(ctx, sessionID); err != nil {
		return err
	}

	role := ss.session.RoleOf(e.identity)
	ss.mu.Lock()
	st := ss.steps[stepID]
	if st.Status != api.StepReady && st.Status != api.StepFailed {
		status := st.Status
		ss.mu.Unlock()
		return fmt.Errorf("%w: %s is %s", ErrNotReady, stepID, status)
	}
	st.Attempts++
	st.StartedAt = time.Now().UTC()
	st.Error = ""
	if err := ss.transition(st, api.StepRunning, "step_running", role); err != nil {
		ss.mu.Unlock()
		return err
	}
	ss.mu.Unlock()
	if err := e.publishProgress(ctx, ss); err != nil {
		return err
	}

	if err := e.executeStep(ctx, ss, step); err != nil {
		e.failStep(ctx, ss, stepID, err)
		return err
	}
	return nil
}

func (e *Engine) executeStep(
	ctx context.Context, ss *sessionState, step *api.Step,
) error {
	session := ss.session
	number := session.Spec.StepNumber(step.ID)
	outputDir := e.stepWorkDir(session, number, step.ID)
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrExecutionFailed, err)
	}

	inputs, err := e.materializeInputs(ctx, session, step, outputDir)
	if err != nil {
		return err
	}

	// A secure step must not start its payload phase until the full mesh of
	// matching channel markers is observable
	if step.Secure {
		if err := e.verifyMesh(ctx, session); err != nil {
			return err
		}
	}

	// A barrier-only step has no module; reaching this point means the
	// awaited step converged, so it completes immediately
	module := session.Spec.Modules[step.Uses]
	if module == nil {
		module = &api.Module{Entrypoint: step.Uses}
	}
	if step.Uses != "" {
		runCtx, cancel := context.WithTimeout(ctx, e.cfg.StepTimeout)
		defer cancel()
		result, err := e.runner.Run(runCtx, &RunRequest{
			Session:   session,
			Step:      step,
			Module:    module,
			Inputs:    inputs,
			OutputDir: outputDir,
		})
		if err != nil {
			return fmt.Errorf("%w: %v", ErrExecutionFailed, err)
		}
		if !result.Success {
			return fmt.Errorf("%w: %s", ErrExecutionFailed, result.Error)
		}
	}

	role := session.RoleOf(e.identity)
	ss.mu.Lock()
	st := ss.steps[step.ID]
	st.CompletedAt = time.Now().UTC()
	st.OutputDir = outputDir
	st.Outputs = e.collectOutputs(module, outputDir)
	err = ss.transition(st, api.StepCompleted, "step_completed", role)
	ss.mu.Unlock()
	if err != nil {
		return err
	}

	slog.Info("Step completed",
		log.SessionID(session.ID),
		log.StepID(step.ID),
		log.Participant(e.identity))
	return e.publishProgress(ctx, ss)
}

// failStep records an execution failure. Failed is terminal for the
// attempt; peers learn of it only through progress replication and decide
// independently how to react
func (e *Engine) failStep(
	ctx context.Context, ss *sessionState, stepID api.StepID, cause error,
) {
	role := ss.session.RoleOf(e.identity)
	ss.mu.Lock()
	st := ss.steps[stepID]
	st.Error = cause.Error()
	st.CompletedAt = time.Now().UTC()
	if err := ss.transition(st, api.StepFailed, "step_failed", role); err != nil {
		ss.mu.Unlock()
		slog.Error("Failed to record step failure",
			log.StepID(stepID), log.Error(err))
		return
	}
	ss.mu.Unlock()

	slog.Error("Step failed",
		log.SessionID(ss.session.ID),
		log.StepID(stepID),
		log.Error(cause))
	if err := e.publishProgress(ctx, ss); err != nil {
		slog.Error("Failed to publish failure",
			log.SessionID(ss.session.ID), log.Error(err))
	}
}

// materializeInputs copies every bound input artifact to a local path the
// module can read. Peer artifacts are awaited with the bounded sync
// discipline; the local participant's own outputs are linked directly
func (e *Engine) materializeInputs(
	ctx context.Context, session *api.Session, step *api.Step,
	outputDir string,
) (map[string]string, error) {
	inputs := map[string]string{}
	for _, in := range step.Inputs {
		depStep := session.Spec.FindStep(in.Step)
		number := session.Spec.StepNumber(in.Step)
		bindDir := filepath.Join(outputDir, "inputs", in.Name)
		inputs[in.Name] = bindDir

		for _, producer := range session.ResolveTargets(depStep) {
			dest := filepath.Join(bindDir, string(producer), in.File)
			if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrExecutionFailed, err)
			}

			var data []byte
			var err error
			if producer == e.identity {
				src := filepath.Join(
					e.stepWorkDir(session, number, in.Step), in.File,
				)
				data, err = os.ReadFile(src)
			} else {
				key := api.StepDir(
					e.runRoot(session, producer), number, in.Step,
				) + "/" + in.File
				data, err = e.waiter.Wait(ctx, key)
			}
			if err != nil {
				return nil, err
			}
			if err := os.WriteFile(dest, data, 0o644); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrExecutionFailed, err)
			}
		}
	}
	return inputs, nil
}

// collectOutputs lists the files the module actually produced. When the
// module declares its outputs, only those are recorded; otherwise every
// regular file in the output directory counts, except materialized inputs
func (e *Engine) collectOutputs(
	module *api.Module, outputDir string,
) []string {
	if len(module.Outputs) > 0 {
		var present []string
		for _, name := range module.Outputs {
			if _, err := os.Stat(filepath.Join(outputDir, name)); err == nil {
				present = append(present, name)
			}
		}
		return present
	}

	entries, err := os.ReadDir(outputDir)
	if err != nil {
		return nil
	}
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && entry.Name() != api.ManifestFileName {
			files = append(files, entry.Name())
		}
	}
	return files
}

// StepOutputs returns the local files produced by a completed step
func (e *Engine) StepOutputs(
	sessionID api.SessionID, stepID api.StepID,
) ([]string, error) {
	ss, err := e.getSession(sessionID)
	if err != nil {
		return nil, err
	}
	ss.mu.Lock()
	defer ss.mu.Unlock()
	st, ok := ss.steps[stepID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrStepNotFound, stepID)
	}
	return append([]string(nil), st.Outputs...), nil
}

// stepWorkDir is the local directory a step's module writes its outputs to
func (e *Engine) stepWorkDir(
	session *api.Session, number int, stepID api.StepID,
) string {
	return filepath.Join(
		e.cfg.WorkDir, session.FlowName, string(session.RunID),
		api.StepDirName(number, stepID),
	)
}
