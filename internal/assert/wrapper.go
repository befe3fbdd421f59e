package assert

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/meshweave/engine/internal/config"
	"github.com/meshweave/engine/pkg/api"
)

// Wrapper wraps testify assertions with meshweave-specific helpers
type Wrapper struct {
	*testing.T
	*assert.Assertions
	Require *assert.Assertions
}

// DefaultRetryInterval is the default polling interval for Eventually checks
const DefaultRetryInterval = 100 * time.Millisecond

// New creates a new test assertion wrapper with both assert and require from
// testify plus meshweave-specific helpers
func New(t *testing.T) *Wrapper {
	return &Wrapper{
		T:          t,
		Assertions: assert.New(t),
		Require:    assert.New(t),
	}
}

// FlowValid asserts that a flow specification is valid
func (w *Wrapper) FlowValid(spec *api.FlowSpec) {
	w.Helper()
	w.NoError(spec.Validate())
	w.NotEmpty(spec.Name)
	w.NotEmpty(spec.Steps)
}

// FlowInvalid asserts that a flow specification is invalid and returns the
// validation error
func (w *Wrapper) FlowInvalid(
	spec *api.FlowSpec, expectedErrorContains string,
) error {
	w.Helper()
	err := spec.Validate()
	w.Error(err)
	if err != nil && expectedErrorContains != "" {
		w.Contains(err.Error(), expectedErrorContains)
	}
	return err
}

// StepStatus asserts the local status of one step in a state list
func (w *Wrapper) StepStatus(
	states []*api.StepState, id api.StepID, expected api.StepStatus,
) {
	w.Helper()
	for _, st := range states {
		if st.StepID == id {
			w.Equal(expected, st.Status, "step %s", id)
			return
		}
	}
	w.Fail("step not found in state list", "step %s", id)
}

// ConfigValid asserts that a configuration is valid
func (w *Wrapper) ConfigValid(cfg *config.Config) {
	w.Helper()
	w.NoError(cfg.Validate())
	w.True(cfg.APIPort > 0 && cfg.APIPort <= 65535)
	w.True(cfg.StepTimeout > 0)
}

// ConfigInvalid asserts that a configuration is invalid
func (w *Wrapper) ConfigInvalid(cfg *config.Config, contains string) {
	w.Helper()
	err := cfg.Validate()
	w.Error(err)
	if contains != "" {
		w.Contains(err.Error(), contains)
	}
}

// Eventually runs a condition repeatedly until it passes or times out
func (w *Wrapper) Eventually(
	condition func() bool, timeout time.Duration, msg string, args ...any,
) {
	w.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(DefaultRetryInterval)
	}
	w.Fail(msg, args...)
}

// EventuallyWithError runs a condition that returns an error until it succeeds
// or times out
func (w *Wrapper) EventuallyWithError(
	condition func() error, timeout time.Duration, msg string, args ...any,
) {
	w.Helper()
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		err := condition()
		if err == nil {
			return
		}
		lastErr = err
		time.Sleep(DefaultRetryInterval)
	}
	if lastErr != nil {
		w.Fail(msg+": last error: "+lastErr.Error(), args...)
		return
	}
	w.Fail(msg, args...)
}
