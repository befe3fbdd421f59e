package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/meshweave/engine/internal/config"
)

func validConfig() *config.Config {
	cfg := config.NewDefaultConfig()
	cfg.Identity = "a@example.com"
	cfg.BucketURL = "mem://"
	return cfg
}

func TestDefaultConfigNeedsIdentity(t *testing.T) {
	cfg := config.NewDefaultConfig()
	assert.ErrorIs(t, cfg.Validate(), config.ErrIdentityEmpty)

	cfg.Identity = "a@example.com"
	assert.ErrorIs(t, cfg.Validate(), config.ErrBucketURLEmpty)

	cfg.BucketURL = "mem://"
	assert.NoError(t, cfg.Validate())
}

func TestValidateRanges(t *testing.T) {
	cfg := validConfig()
	cfg.APIPort = 70000
	assert.ErrorIs(t, cfg.Validate(), config.ErrInvalidAPIPort)

	cfg = validConfig()
	cfg.Workers = 0
	assert.ErrorIs(t, cfg.Validate(), config.ErrInvalidWorkers)

	cfg = validConfig()
	cfg.SyncInterval = 0
	assert.ErrorIs(t, cfg.Validate(), config.ErrInvalidSyncInterval)

	cfg = validConfig()
	cfg.SyncAttempts = -1
	assert.ErrorIs(t, cfg.Validate(), config.ErrInvalidSyncAttempts)

	cfg = validConfig()
	cfg.StepTimeout = 0
	assert.ErrorIs(t, cfg.Validate(), config.ErrInvalidStepTimeout)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("MESHWEAVE_IDENTITY", "c1@example.com")
	t.Setenv("MESHWEAVE_BUCKET_URL", "file:///tmp/datasites")
	t.Setenv("MESHWEAVE_WORKERS", "8")
	t.Setenv("MESHWEAVE_SYNC_INTERVAL", "500ms")
	t.Setenv("API_PORT", "9000")

	cfg := config.NewDefaultConfig()
	assert.NoError(t, cfg.LoadFromEnv())
	assert.Equal(t, "c1@example.com", cfg.Identity)
	assert.Equal(t, "file:///tmp/datasites", cfg.BucketURL)
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, 500*time.Millisecond, cfg.SyncInterval)
	assert.Equal(t, 9000, cfg.APIPort)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromEnvRejectsBadValues(t *testing.T) {
	t.Setenv("MESHWEAVE_WORKERS", "not-a-number")
	cfg := config.NewDefaultConfig()
	assert.Error(t, cfg.LoadFromEnv())

	t.Setenv("MESHWEAVE_WORKERS", "4")
	t.Setenv("MESHWEAVE_SYNC_INTERVAL", "-2s")
	cfg = config.NewDefaultConfig()
	assert.Error(t, cfg.LoadFromEnv())
}
