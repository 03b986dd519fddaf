package config

import "time"

// BusConfig controls event bus dispatch behavior: per-handler retries and the
// dead-letter sink for handlers that exhaust them.
type BusConfig struct {
	// MaxRetries is the number of retries after the first attempt.
	// A handler is invoked at most MaxRetries+1 times per event.
	MaxRetries int `yaml:"max_retries"`

	// RetryDelay is the constant wait between attempts for one handler.
	RetryDelay time.Duration `yaml:"retry_delay"`

	// DLQEnabled turns the dead-letter sink on or off.
	// Pointer so an explicit `false` in YAML survives the defaults merge.
	DLQEnabled *bool `yaml:"dlq_enabled"`

	// DLQLogFile is the dead-letter output path. Empty means stderr.
	DLQLogFile string `yaml:"dlq_log_file"`
}

// DLQOn reports whether the dead-letter sink is enabled.
func (c *BusConfig) DLQOn() bool {
	return c.DLQEnabled == nil || *c.DLQEnabled
}

// OrchestratorConfig holds the cut-points of the maintenance routing table.
type OrchestratorConfig struct {
	// UrgentMaintenanceDays is the TTF boundary between urgent and routine.
	// A TTF exactly at this value is routine ("not urgent").
	UrgentMaintenanceDays float64 `yaml:"urgent_maintenance_days"`

	// VeryUrgentFactor scales UrgentMaintenanceDays down to the very-urgent
	// boundary (TTF < urgent_days * factor).
	VeryUrgentFactor float64 `yaml:"very_urgent_days_factor"`

	// HighConfidenceThreshold marks high prediction confidence.
	// A confidence exactly at this value counts as high.
	HighConfidenceThreshold float64 `yaml:"high_confidence_threshold"`

	// ModerateConfidenceThreshold marks moderate prediction confidence.
	ModerateConfidenceThreshold float64 `yaml:"moderate_confidence_threshold"`

	// AutoApprovalMaxDays is the longest horizon (in days) a routine
	// moderate-confidence prediction may still be auto-approved for.
	AutoApprovalMaxDays float64 `yaml:"auto_approval_max_days_moderate_confidence"`
}

// ValidationConfig tunes the anomaly validation agent.
type ValidationConfig struct {
	// CredibleThreshold is the final confidence at or above which an anomaly
	// is classified credible.
	CredibleThreshold float64 `yaml:"credible_threshold"`

	// FalsePositiveThreshold is the final confidence at or below which an
	// anomaly is classified a potential false positive.
	FalsePositiveThreshold float64 `yaml:"false_positive_threshold"`

	// HistoricalCheckLimit caps how many historical readings are fetched for
	// contextual adjustment.
	HistoricalCheckLimit int `yaml:"historical_check_limit"`

	// RecentStabilityWindow is how many of the most recent historical values
	// the stability check averages over.
	RecentStabilityWindow int `yaml:"recent_stability_window"`
}

// DetectionConfig tunes the anomaly detection ensemble.
type DetectionConfig struct {
	// UseServerlessModels enables the remote model-registry detector.
	// When false (or the registry is unreachable) the fallback z-score model
	// is used instead.
	UseServerlessModels *bool `yaml:"use_serverless_models"`

	// DefaultHistoricalStd bootstraps the statistical baseline for sensors
	// with no observed history yet.
	DefaultHistoricalStd float64 `yaml:"default_historical_std"`

	// ZScoreThreshold is the statistical detector's anomaly cut-off, in
	// standard deviations from the per-sensor baseline mean.
	ZScoreThreshold float64 `yaml:"z_score_threshold"`

	// BaselineWindow caps how many recent values feed a sensor's baseline.
	BaselineWindow int `yaml:"baseline_window"`

	// PublishMaxAttempts bounds retries when publishing AnomalyDetected.
	PublishMaxAttempts int `yaml:"publish_max_attempts"`

	// PublishRetryDelay is the wait between publish attempts.
	PublishRetryDelay time.Duration `yaml:"publish_retry_delay"`
}

// ServerlessOn reports whether the remote model registry should be consulted.
func (c *DetectionConfig) ServerlessOn() bool {
	return c.UseServerlessModels != nil && *c.UseServerlessModels
}

// PredictionConfig tunes the failure prediction agent.
type PredictionConfig struct {
	// HistoricalDataLimit caps how many readings feed the forecaster.
	HistoricalDataLimit int `yaml:"historical_data_limit"`

	// MinHistoricalPoints is the minimum history required to forecast at all.
	MinHistoricalPoints int `yaml:"min_historical_points"`

	// ConfidenceGate is the validation confidence at or above which an
	// anomaly triggers a prediction even without a credible status.
	ConfidenceGate float64 `yaml:"confidence_gate"`
}

// InferenceConfig configures the model-registry gRPC client.
type InferenceConfig struct {
	// Addr is the model registry service address (host:port).
	Addr string `yaml:"addr"`

	// RequestTimeout bounds each model load / predict call.
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// APIConfig configures the HTTP ingress.
type APIConfig struct {
	// Port the HTTP server listens on.
	Port int `yaml:"port"`

	// APIKey protects the ingest and decision endpoints. Empty disables auth
	// (local development only).
	APIKey string `yaml:"api_key"`

	// IdempotencyTTL is how long an Idempotency-Key deduplicates ingests.
	IdempotencyTTL time.Duration `yaml:"idempotency_ttl"`
}

// RetentionConfig controls the background pruning of old sensor readings.
type RetentionConfig struct {
	// Enabled turns the retention service on or off.
	// Pointer so an explicit `false` in YAML survives the defaults merge.
	Enabled *bool `yaml:"enabled"`

	// ReadingRetention is how long sensor readings are kept.
	ReadingRetention time.Duration `yaml:"reading_retention"`

	// Interval is how often the retention pass runs.
	Interval time.Duration `yaml:"interval"`
}

// On reports whether the retention service is enabled.
func (c *RetentionConfig) On() bool {
	return c.Enabled == nil || *c.Enabled
}

// DefaultConfig returns the built-in configuration. User YAML and environment
// overrides are merged on top of these values.
func DefaultConfig() *Config {
	dlqEnabled := true
	serverless := false
	return &Config{
		Bus: &BusConfig{
			MaxRetries: 2,
			RetryDelay: 500 * time.Millisecond,
			DLQEnabled: &dlqEnabled,
		},
		Orchestrator: &OrchestratorConfig{
			UrgentMaintenanceDays:       30,
			VeryUrgentFactor:            0.5,
			HighConfidenceThreshold:     0.90,
			ModerateConfidenceThreshold: 0.75,
			AutoApprovalMaxDays:         90,
		},
		Validation: &ValidationConfig{
			CredibleThreshold:      0.7,
			FalsePositiveThreshold: 0.4,
			HistoricalCheckLimit:   10,
			RecentStabilityWindow:  5,
		},
		Detection: &DetectionConfig{
			UseServerlessModels:  &serverless,
			DefaultHistoricalStd: 5.0,
			ZScoreThreshold:      3.0,
			BaselineWindow:       100,
			PublishMaxAttempts:   3,
			PublishRetryDelay:    100 * time.Millisecond,
		},
		Prediction: &PredictionConfig{
			HistoricalDataLimit: 50,
			MinHistoricalPoints: 10,
			ConfidenceGate:      0.7,
		},
		Inference: &InferenceConfig{
			Addr:           "localhost:50051",
			RequestTimeout: 10 * time.Second,
		},
		API: &APIConfig{
			Port:           8080,
			IdempotencyTTL: 10 * time.Minute,
		},
		Retention: &RetentionConfig{
			ReadingRetention: 30 * 24 * time.Hour,
			Interval:         time.Hour,
		},
	}
}
