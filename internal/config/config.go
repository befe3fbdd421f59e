package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds configuration settings for one participant's engine
type Config struct {
	// Identity
	Identity string
	Role     string

	// API Server
	APIHost  string
	APIPort  int
	LogLevel string

	// Sync substrate
	BucketURL    string
	SyncCommand  string
	SyncInterval time.Duration
	SyncAttempts int

	// Execution
	WorkDir         string
	ModuleCommand   string
	StepTimeout     time.Duration
	Workers         int
	PollInterval    time.Duration
	ShutdownTimeout time.Duration
}

const (
	DefaultAPIHost = "127.0.0.1"
	DefaultAPIPort = 8642
	MaxTCPPort     = 65535

	DefaultSyncInterval = 2 * time.Second
	DefaultSyncAttempts = 150
	DefaultPollInterval = 3 * time.Second
	DefaultStepTimeout  = 30 * time.Minute

	DefaultWorkers         = 4
	MaxWorkers             = 256
	MaxSyncAttempts        = 100_000
	DefaultShutdownTimeout = 10 * time.Second
)

var (
	ErrIdentityEmpty       = errors.New("participant identity required")
	ErrBucketURLEmpty      = errors.New("substrate bucket URL required")
	ErrInvalidAPIPort      = errors.New("invalid API port")
	ErrInvalidStepTimeout  = errors.New("step timeout must be positive")
	ErrInvalidWorkers      = errors.New("worker count must be positive")
	ErrInvalidSyncInterval = errors.New("sync interval must be positive")
	ErrInvalidSyncAttempts = errors.New("sync attempts must be positive")
)

// NewDefaultConfig creates a configuration with sensible defaults for the
// engine, sync discipline, and API server
func NewDefaultConfig() *Config {
	return &Config{
		APIHost:         DefaultAPIHost,
		APIPort:         DefaultAPIPort,
		LogLevel:        "info",
		SyncInterval:    DefaultSyncInterval,
		SyncAttempts:    DefaultSyncAttempts,
		PollInterval:    DefaultPollInterval,
		StepTimeout:     DefaultStepTimeout,
		Workers:         DefaultWorkers,
		ShutdownTimeout: DefaultShutdownTimeout,
	}
}

// LoadFromEnv populates configuration values from environment variables.
// Returns an error if any env var cannot be parsed
func (c *Config) LoadFromEnv() error {
	if v := os.Getenv("MESHWEAVE_IDENTITY"); v != "" {
		c.Identity = v
	}
	if v := os.Getenv("MESHWEAVE_ROLE"); v != "" {
		c.Role = v
	}
	if v := os.Getenv("MESHWEAVE_BUCKET_URL"); v != "" {
		c.BucketURL = v
	}
	if v := os.Getenv("MESHWEAVE_SYNC_COMMAND"); v != "" {
		c.SyncCommand = v
	}
	if v := os.Getenv("MESHWEAVE_WORK_DIR"); v != "" {
		c.WorkDir = v
	}
	if v := os.Getenv("MESHWEAVE_MODULE_COMMAND"); v != "" {
		c.ModuleCommand = v
	}
	if v := os.Getenv("API_HOST"); v != "" {
		c.APIHost = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}

	if err := loadEnvInt("API_PORT", &c.APIPort, 0, MaxTCPPort); err != nil {
		return err
	}
	if err := loadEnvInt(
		"MESHWEAVE_WORKERS", &c.Workers, 0, MaxWorkers,
	); err != nil {
		return err
	}
	if err := loadEnvInt(
		"MESHWEAVE_SYNC_ATTEMPTS", &c.SyncAttempts, 0, MaxSyncAttempts,
	); err != nil {
		return err
	}

	if err := loadEnvDuration(
		"MESHWEAVE_SYNC_INTERVAL", &c.SyncInterval,
	); err != nil {
		return err
	}
	if err := loadEnvDuration(
		"MESHWEAVE_POLL_INTERVAL", &c.PollInterval,
	); err != nil {
		return err
	}
	return loadEnvDuration("MESHWEAVE_STEP_TIMEOUT", &c.StepTimeout)
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	if c.Identity == "" {
		return ErrIdentityEmpty
	}
	if c.BucketURL == "" {
		return ErrBucketURLEmpty
	}
	if c.APIPort <= 0 || c.APIPort > MaxTCPPort {
		return fmt.Errorf("%w: %d", ErrInvalidAPIPort, c.APIPort)
	}
	if c.StepTimeout <= 0 {
		return ErrInvalidStepTimeout
	}
	if c.Workers <= 0 {
		return ErrInvalidWorkers
	}
	if c.SyncInterval <= 0 {
		return ErrInvalidSyncInterval
	}
	if c.SyncAttempts <= 0 {
		return ErrInvalidSyncAttempts
	}
	return nil
}

func loadEnvInt(key string, target *int, minVal, maxVal int) error {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	if val <= minVal || val > maxVal {
		return fmt.Errorf("%s out of range: %d", key, val)
	}
	*target = val
	return nil
}

func loadEnvDuration(key string, target *time.Duration) error {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	val, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	if val <= 0 {
		return fmt.Errorf("%s must be positive: %s", key, raw)
	}
	*target = val
	return nil
}
