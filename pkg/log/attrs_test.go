package log_test

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/meshweave/engine/pkg/api"
	"github.com/meshweave/engine/pkg/log"
)

func TestTypedAttrs(t *testing.T) {
	sess := log.SessionID(api.SessionID("sess-1"))
	assert.Equal(t, "session_id", sess.Key)
	assert.Equal(t, "sess-1", sess.Value.String())

	step := log.StepID(api.StepID("gen_variants"))
	assert.Equal(t, "step_id", step.Key)
	assert.Equal(t, "gen_variants", step.Value.String())

	status := log.Status(api.StepReady)
	assert.Equal(t, "status", status.Key)
	assert.Equal(t, "Ready", status.Value.String())

	who := log.Participant(api.Identity("c1@example.com"))
	assert.Equal(t, "participant", who.Key)
	assert.Equal(t, "c1@example.com", who.Value.String())

	attempts := log.Attempts(7)
	assert.Equal(t, "attempts", attempts.Key)
	assert.Equal(t, int64(7), attempts.Value.Int64())
}

func TestErrorAttr(t *testing.T) {
	attr := log.Error(errors.New("boom"))
	assert.Equal(t, "error", attr.Key)
	assert.Equal(t, "boom", attr.Value.String())

	attr = log.Error(nil)
	assert.Equal(t, "", attr.Value.String())

	attr = log.ErrorString("kaput")
	assert.Equal(t, slog.KindString, attr.Value.Kind())
	assert.Equal(t, "kaput", attr.Value.String())
}
