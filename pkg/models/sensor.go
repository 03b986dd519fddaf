// Package models defines the domain types shared across the MaintFlow
// pipeline: sensor readings, anomaly severities, maintenance actions, and
// human decision requests/responses.
package models

import (
	"fmt"
	"math"
	"time"
)

// SensorType identifies the physical quantity a sensor measures.
type SensorType string

// Known sensor types.
const (
	SensorTypeTemperature SensorType = "temperature"
	SensorTypeVibration   SensorType = "vibration"
	SensorTypePressure    SensorType = "pressure"
	SensorTypeHumidity    SensorType = "humidity"
	SensorTypeCurrent     SensorType = "current"
	SensorTypeRPM         SensorType = "rpm"
)

// SensorReading is a single validated measurement from one sensor.
type SensorReading struct {
	SensorID   string         `json:"sensor_id"`          // non-empty
	Value      float64        `json:"value"`              // finite
	Timestamp  time.Time      `json:"timestamp"`          // UTC
	SensorType SensorType     `json:"sensor_type"`
	Unit       string         `json:"unit,omitempty"`
	Quality    float64        `json:"quality"`            // [0, 1]
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Validate checks the SensorReading invariants: non-empty sensor ID, finite
// value, and quality within [0, 1].
func (r *SensorReading) Validate() error {
	if r.SensorID == "" {
		return fmt.Errorf("sensor_id must not be empty")
	}
	if math.IsNaN(r.Value) || math.IsInf(r.Value, 0) {
		return fmt.Errorf("sensor %s: value must be finite, got %v", r.SensorID, r.Value)
	}
	if r.Quality < 0 || r.Quality > 1 {
		return fmt.Errorf("sensor %s: quality must be in [0,1], got %v", r.SensorID, r.Quality)
	}
	return nil
}

// Severity ranks how serious a detected anomaly is.
type Severity string

// Severity levels, lowest to highest.
const (
	SeverityVeryLow  Severity = "very_low"
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// SeverityFromLevel maps a numeric level (1..5) to a Severity.
// Out-of-range levels clamp to the nearest bound.
func SeverityFromLevel(level int) Severity {
	switch {
	case level <= 1:
		return SeverityVeryLow
	case level == 2:
		return SeverityLow
	case level == 3:
		return SeverityMedium
	case level == 4:
		return SeverityHigh
	default:
		return SeverityCritical
	}
}

// SeverityLevelFromConfidence buckets an ensemble confidence into a numeric
// severity level (1..5). Monotone in confidence.
func SeverityLevelFromConfidence(confidence float64) int {
	switch {
	case confidence > 0.8:
		return 5
	case confidence > 0.6:
		return 4
	case confidence > 0.4:
		return 3
	case confidence > 0.2:
		return 2
	default:
		return 1
	}
}
