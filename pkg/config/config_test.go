package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitializeDefaultsWithoutFile(t *testing.T) {
	cfg, err := Initialize(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Bus.MaxRetries)
	assert.Equal(t, 500*time.Millisecond, cfg.Bus.RetryDelay)
	assert.True(t, cfg.Bus.DLQOn())
	assert.Equal(t, 30.0, cfg.Orchestrator.UrgentMaintenanceDays)
	assert.Equal(t, 0.5, cfg.Orchestrator.VeryUrgentFactor)
	assert.Equal(t, 0.90, cfg.Orchestrator.HighConfidenceThreshold)
	assert.Equal(t, 0.75, cfg.Orchestrator.ModerateConfidenceThreshold)
	assert.Equal(t, 90.0, cfg.Orchestrator.AutoApprovalMaxDays)
	assert.Equal(t, 0.7, cfg.Validation.CredibleThreshold)
	assert.Equal(t, 0.4, cfg.Validation.FalsePositiveThreshold)
	assert.Equal(t, 5.0, cfg.Detection.DefaultHistoricalStd)
	assert.Equal(t, 0.7, cfg.Prediction.ConfidenceGate)
	assert.Equal(t, 8080, cfg.API.Port)
}

func TestInitializeMergesYAMLOverDefaults(t *testing.T) {
	dir := t.TempDir()
	yaml := `
event_bus:
  max_retries: 5
orchestrator:
  urgent_maintenance_days: 14
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(yaml), 0o644))

	cfg, err := Initialize(dir)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Bus.MaxRetries)
	assert.Equal(t, 14.0, cfg.Orchestrator.UrgentMaintenanceDays)
	// Untouched sections keep their defaults.
	assert.Equal(t, 0.90, cfg.Orchestrator.HighConfidenceThreshold)
	assert.Equal(t, 500*time.Millisecond, cfg.Bus.RetryDelay)
}

func TestInitializeEnvOverrides(t *testing.T) {
	t.Setenv("EVENT_HANDLER_MAX_RETRIES", "7")
	t.Setenv("EVENT_HANDLER_RETRY_DELAY_SECONDS", "0.25")
	t.Setenv("DLQ_ENABLED", "false")
	t.Setenv("ORCHESTRATOR_HIGH_CONFIDENCE_THRESHOLD", "0.85")

	cfg, err := Initialize(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Bus.MaxRetries)
	assert.Equal(t, 250*time.Millisecond, cfg.Bus.RetryDelay)
	assert.False(t, cfg.Bus.DLQOn())
	assert.Equal(t, 0.85, cfg.Orchestrator.HighConfidenceThreshold)
}

func TestInitializeRejectsBadEnvValue(t *testing.T) {
	t.Setenv("EVENT_HANDLER_MAX_RETRIES", "lots")

	_, err := Initialize(t.TempDir())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidValue)
}

func TestInitializeRejectsInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte("event_bus: ["), 0o644))

	_, err := Initialize(dir)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidYAML)
}

func TestInitializeRejectsOutOfRangeThreshold(t *testing.T) {
	dir := t.TempDir()
	yaml := `
orchestrator:
  high_confidence_threshold: 1.7
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(yaml), 0o644))

	_, err := Initialize(dir)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidationFailed)
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("MAINTFLOW_TEST_DLQ", "/var/log/dlq.jsonl")

	out := ExpandEnv([]byte("dlq_log_file: {{.MAINTFLOW_TEST_DLQ}}"))
	assert.Contains(t, string(out), "/var/log/dlq.jsonl")
}
