package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/meshweave/engine/pkg/api"
	"github.com/meshweave/engine/pkg/log"
)

// ShareStep performs the explicit share action: it publishes the step's
// local outputs to the participant's run subtree and then writes the
// permission manifest granting read access to exactly the declared reader
// set. Artifacts go first and the manifest last, so readers never observe a
// grant over a partially written directory. A publish failure leaves the
// step Completed; sharing is retryable and idempotent
func (e *Engine) ShareStep(
	ctx context.Context, sessionID api.SessionID, stepID api.StepID,
) error {
	ss, err := e.getSession(sessionID)
	if err != nil {
		return err
	}
	session := ss.session
	step := session.Spec.FindStep(stepID)
	if step == nil {
		return fmt.Errorf("%w: %s", ErrStepNotFound, stepID)
	}
	if !session.IsTarget(step, e.identity) {
		return fmt.Errorf("%w: %s", ErrNotTarget, e.identity)
	}
	if !step.SharesOutput() {
		return fmt.Errorf("%w: %s", ErrStepDoesNotShare, stepID)
	}

	lock := ss.stepLock(stepID)
	if !lock.TryLock() {
		return fmt.Errorf("%w: %s", ErrStepAlreadyActive, stepID)
	}
	defer lock.Unlock()

	ss.mu.Lock()
	st := ss.steps[stepID]
	if st.Status != api.StepCompleted && st.Status != api.StepShared {
		status := st.Status
		ss.mu.Unlock()
		return fmt.Errorf("%w: %s is %s", ErrStepNotCompleted, stepID, status)
	}
	alreadyShared := st.Status == api.StepShared
	outputDir := st.OutputDir
	outputs := append([]string(nil), st.Outputs...)
	ss.mu.Unlock()

	number := session.Spec.StepNumber(stepID)
	dir := api.StepDir(e.runRoot(session, e.identity), number, stepID)
	for _, name := range outputs {
		data, err := os.ReadFile(filepath.Join(outputDir, name))
		if err != nil {
			return fmt.Errorf("%w: %v", ErrPublishFailed, err)
		}
		if err := e.sub.WriteAll(ctx, dir+"/"+name, data); err != nil {
			return fmt.Errorf("%w: %v", ErrPublishFailed, err)
		}
	}

	readers := session.ResolveReaders(step.Share)
	manifest, err := api.NewShareManifest(e.identity, readers).Marshal()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPublishFailed, err)
	}
	if err := e.sub.WriteAll(
		ctx, dir+"/"+api.ManifestFileName, manifest,
	); err != nil {
		return fmt.Errorf("%w: %v", ErrPublishFailed, err)
	}

	if !alreadyShared {
		role := session.RoleOf(e.identity)
		ss.mu.Lock()
		err = ss.transition(st, api.StepShared, "step_shared", role)
		ss.mu.Unlock()
		if err != nil {
			return err
		}
	}

	slog.Info("Step outputs shared",
		log.SessionID(session.ID),
		log.StepID(stepID),
		log.Participant(e.identity))
	return e.publishProgress(ctx, ss)
}
