package config

import "fmt"

// validate checks every configuration section for out-of-range values.
// Called by Initialize after defaults and environment overrides are applied.
func validate(cfg *Config) error {
	if cfg.Bus.MaxRetries < 0 {
		return NewValidationError("event_bus", "max_retries",
			fmt.Errorf("%w: must be >= 0, got %d", ErrInvalidValue, cfg.Bus.MaxRetries))
	}
	if cfg.Bus.RetryDelay < 0 {
		return NewValidationError("event_bus", "retry_delay",
			fmt.Errorf("%w: must be >= 0, got %v", ErrInvalidValue, cfg.Bus.RetryDelay))
	}

	o := cfg.Orchestrator
	if o.UrgentMaintenanceDays <= 0 {
		return NewValidationError("orchestrator", "urgent_maintenance_days",
			fmt.Errorf("%w: must be > 0, got %v", ErrInvalidValue, o.UrgentMaintenanceDays))
	}
	if o.VeryUrgentFactor <= 0 || o.VeryUrgentFactor > 1 {
		return NewValidationError("orchestrator", "very_urgent_days_factor",
			fmt.Errorf("%w: must be in (0,1], got %v", ErrInvalidValue, o.VeryUrgentFactor))
	}
	for _, th := range []struct {
		field string
		value float64
	}{
		{"high_confidence_threshold", o.HighConfidenceThreshold},
		{"moderate_confidence_threshold", o.ModerateConfidenceThreshold},
	} {
		if th.value <= 0 || th.value > 1 {
			return NewValidationError("orchestrator", th.field,
				fmt.Errorf("%w: must be in (0,1], got %v", ErrInvalidValue, th.value))
		}
	}
	if o.ModerateConfidenceThreshold > o.HighConfidenceThreshold {
		return NewValidationError("orchestrator", "moderate_confidence_threshold",
			fmt.Errorf("%w: moderate threshold %v exceeds high threshold %v",
				ErrInvalidValue, o.ModerateConfidenceThreshold, o.HighConfidenceThreshold))
	}

	v := cfg.Validation
	if v.CredibleThreshold < 0 || v.CredibleThreshold > 1 {
		return NewValidationError("validation", "credible_threshold",
			fmt.Errorf("%w: must be in [0,1], got %v", ErrInvalidValue, v.CredibleThreshold))
	}
	if v.FalsePositiveThreshold < 0 || v.FalsePositiveThreshold > v.CredibleThreshold {
		return NewValidationError("validation", "false_positive_threshold",
			fmt.Errorf("%w: must be in [0, credible_threshold], got %v", ErrInvalidValue, v.FalsePositiveThreshold))
	}
	if v.RecentStabilityWindow <= 0 {
		return NewValidationError("validation", "recent_stability_window",
			fmt.Errorf("%w: must be > 0, got %d", ErrInvalidValue, v.RecentStabilityWindow))
	}
	if v.HistoricalCheckLimit < v.RecentStabilityWindow {
		return NewValidationError("validation", "historical_check_limit",
			fmt.Errorf("%w: must be >= recent_stability_window (%d), got %d",
				ErrInvalidValue, v.RecentStabilityWindow, v.HistoricalCheckLimit))
	}

	d := cfg.Detection
	if d.DefaultHistoricalStd <= 0 {
		return NewValidationError("detection", "default_historical_std",
			fmt.Errorf("%w: must be > 0, got %v", ErrInvalidValue, d.DefaultHistoricalStd))
	}
	if d.ZScoreThreshold <= 0 {
		return NewValidationError("detection", "z_score_threshold",
			fmt.Errorf("%w: must be > 0, got %v", ErrInvalidValue, d.ZScoreThreshold))
	}
	if d.PublishMaxAttempts < 1 {
		return NewValidationError("detection", "publish_max_attempts",
			fmt.Errorf("%w: must be >= 1, got %d", ErrInvalidValue, d.PublishMaxAttempts))
	}

	p := cfg.Prediction
	if p.MinHistoricalPoints < 1 {
		return NewValidationError("prediction", "min_historical_points",
			fmt.Errorf("%w: must be >= 1, got %d", ErrInvalidValue, p.MinHistoricalPoints))
	}
	if p.HistoricalDataLimit < p.MinHistoricalPoints {
		return NewValidationError("prediction", "historical_data_limit",
			fmt.Errorf("%w: must be >= min_historical_points (%d), got %d",
				ErrInvalidValue, p.MinHistoricalPoints, p.HistoricalDataLimit))
	}

	if cfg.API.Port <= 0 || cfg.API.Port > 65535 {
		return NewValidationError("api", "port",
			fmt.Errorf("%w: must be in (0,65535], got %d", ErrInvalidValue, cfg.API.Port))
	}
	if cfg.API.IdempotencyTTL <= 0 {
		return NewValidationError("api", "idempotency_ttl",
			fmt.Errorf("%w: must be > 0, got %v", ErrInvalidValue, cfg.API.IdempotencyTTL))
	}

	r := cfg.Retention
	if r.ReadingRetention <= 0 {
		return NewValidationError("retention", "reading_retention",
			fmt.Errorf("%w: must be > 0, got %v", ErrInvalidValue, r.ReadingRetention))
	}
	if r.Interval <= 0 {
		return NewValidationError("retention", "interval",
			fmt.Errorf("%w: must be > 0, got %v", ErrInvalidValue, r.Interval))
	}

	return nil
}
