package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// ConfigFileName is the expected YAML file inside the configuration directory.
const ConfigFileName = "maintflow.yaml"

// Initialize loads, merges, and validates configuration.
// This is the primary entry point for configuration loading.
//
// Steps performed:
//  1. Read maintflow.yaml from configDir (optional — defaults apply if absent)
//  2. Expand environment variables in the file content
//  3. Parse YAML into structs
//  4. Merge built-in defaults underneath user values
//  5. Apply recognized environment variable overrides
//  6. Validate all configuration
func Initialize(configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("Initializing configuration")

	cfg, err := load(configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidationFailed, err)
	}

	log.Info("Configuration initialized successfully",
		"bus_max_retries", cfg.Bus.MaxRetries,
		"dlq_enabled", cfg.Bus.DLQOn(),
		"urgent_maintenance_days", cfg.Orchestrator.UrgentMaintenanceDays,
		"serverless_models", cfg.Detection.ServerlessOn())

	return cfg, nil
}

// load reads the YAML file (if present) and merges defaults underneath.
func load(configDir string) (*Config, error) {
	cfg := &Config{configDir: configDir}

	if configDir != "" {
		path := filepath.Join(configDir, ConfigFileName)
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			slog.Info("No configuration file found, using defaults", "path", path)
		case err != nil:
			return nil, NewLoadError(ConfigFileName, err)
		default:
			expanded := ExpandEnv(data)
			if err := yaml.Unmarshal(expanded, cfg); err != nil {
				return nil, NewLoadError(ConfigFileName, fmt.Errorf("%w: %w", ErrInvalidYAML, err))
			}
		}
	}

	// Fill anything the user left unset from the built-in defaults.
	if err := mergo.Merge(cfg, DefaultConfig()); err != nil {
		return nil, fmt.Errorf("failed to merge defaults: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies the documented environment variables on top of
// the merged configuration. Unset variables leave the current value alone.
func applyEnvOverrides(cfg *Config) error {
	if v, err := envInt("EVENT_HANDLER_MAX_RETRIES"); err != nil {
		return err
	} else if v != nil {
		cfg.Bus.MaxRetries = *v
	}

	if v, err := envFloat("EVENT_HANDLER_RETRY_DELAY_SECONDS"); err != nil {
		return err
	} else if v != nil {
		cfg.Bus.RetryDelay = time.Duration(*v * float64(time.Second))
	}

	if v, err := envBool("DLQ_ENABLED"); err != nil {
		return err
	} else if v != nil {
		cfg.Bus.DLQEnabled = v
	}

	if v := os.Getenv("DLQ_LOG_FILE"); v != "" {
		cfg.Bus.DLQLogFile = v
	}

	orchFloats := []struct {
		name string
		dst  *float64
	}{
		{"ORCHESTRATOR_URGENT_MAINTENANCE_DAYS", &cfg.Orchestrator.UrgentMaintenanceDays},
		{"ORCHESTRATOR_VERY_URGENT_MAINTENANCE_DAYS_FACTOR", &cfg.Orchestrator.VeryUrgentFactor},
		{"ORCHESTRATOR_HIGH_CONFIDENCE_THRESHOLD", &cfg.Orchestrator.HighConfidenceThreshold},
		{"ORCHESTRATOR_MODERATE_CONFIDENCE_THRESHOLD", &cfg.Orchestrator.ModerateConfidenceThreshold},
		{"ORCHESTRATOR_AUTO_APPROVAL_MAX_DAYS_MODERATE_CONFIDENCE", &cfg.Orchestrator.AutoApprovalMaxDays},
	}
	for _, o := range orchFloats {
		v, err := envFloat(o.name)
		if err != nil {
			return err
		}
		if v != nil {
			*o.dst = *v
		}
	}

	if v, err := envBool("RETENTION_ENABLED"); err != nil {
		return err
	} else if v != nil {
		cfg.Retention.Enabled = v
	}

	if v, err := envFloat("RETENTION_READING_RETENTION_DAYS"); err != nil {
		return err
	} else if v != nil {
		cfg.Retention.ReadingRetention = time.Duration(*v * 24 * float64(time.Hour))
	}

	return nil
}

func envInt(name string) (*int, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s=%q is not an integer", ErrInvalidValue, name, raw)
	}
	return &v, nil
}

func envFloat(name string) (*float64, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %s=%q is not a number", ErrInvalidValue, name, raw)
	}
	return &v, nil
}

func envBool(name string) (*bool, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s=%q is not a boolean", ErrInvalidValue, name, raw)
	}
	return &v, nil
}
