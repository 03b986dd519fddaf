// Package config loads, merges, and validates MaintFlow configuration.
//
// Configuration comes from three layers, later layers overriding earlier:
//  1. Built-in defaults (DefaultConfig)
//  2. maintflow.yaml in the configuration directory (optional)
//  3. Recognized environment variables (EVENT_HANDLER_*, DLQ_*, ORCHESTRATOR_*)
package config

// Config is the umbrella configuration object returned by Initialize and
// threaded through the application.
type Config struct {
	configDir string // for reference in logs

	Bus          *BusConfig          `yaml:"event_bus"`
	Orchestrator *OrchestratorConfig `yaml:"orchestrator"`
	Validation   *ValidationConfig   `yaml:"validation"`
	Detection    *DetectionConfig    `yaml:"detection"`
	Prediction   *PredictionConfig   `yaml:"prediction"`
	Inference    *InferenceConfig    `yaml:"inference"`
	API          *APIConfig          `yaml:"api"`
	Retention    *RetentionConfig    `yaml:"retention"`
}

// ConfigDir returns the configuration directory path this Config was loaded
// from (empty when built purely from defaults).
func (c *Config) ConfigDir() string {
	return c.configDir
}
