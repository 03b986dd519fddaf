package validation

import (
	"fmt"

	"github.com/predictix/maintflow/pkg/events"
	"github.com/predictix/maintflow/pkg/models"
)

// RuleEngine adjusts an anomaly's confidence based on domain rules.
// EvaluateRules returns a confidence delta in [-1, 1] and the ordered
// reasons contributing to it.
type RuleEngine interface {
	EvaluateRules(anomaly *events.AnomalyDetected, reading models.SensorReading) (delta float64, reasons []string, err error)
}

// DefaultRuleEngine applies the built-in adjustment rules: severity
// reinforcement, reading quality penalties, and quality-floor rejection.
type DefaultRuleEngine struct{}

// NewDefaultRuleEngine creates the built-in rule engine.
func NewDefaultRuleEngine() *DefaultRuleEngine {
	return &DefaultRuleEngine{}
}

// EvaluateRules implements RuleEngine.
func (e *DefaultRuleEngine) EvaluateRules(anomaly *events.AnomalyDetected, reading models.SensorReading) (float64, []string, error) {
	var (
		delta   float64
		reasons []string
	)

	switch anomaly.Severity {
	case models.SeverityCritical:
		delta += 0.10
		reasons = append(reasons, "Critical severity reinforces anomaly")
	case models.SeverityHigh:
		delta += 0.05
		reasons = append(reasons, "High severity reinforces anomaly")
	}

	switch {
	case reading.Quality < 0.3:
		delta -= 0.20
		reasons = append(reasons, fmt.Sprintf("Very low reading quality (%.2f)", reading.Quality))
	case reading.Quality < 0.6:
		delta -= 0.10
		reasons = append(reasons, fmt.Sprintf("Low reading quality (%.2f)", reading.Quality))
	}

	// Detector agreement: evidence from both detectors is stronger than
	// either alone.
	if flagged, ok := anomaly.AnomalyDetails["stat_is_anomaly"].(bool); ok && flagged {
		if _, mlRan := anomaly.AnomalyDetails["ml_prediction"]; mlRan {
			delta += 0.05
			reasons = append(reasons, "ML and statistical detectors agree")
		}
	}

	if delta > 1 {
		delta = 1
	} else if delta < -1 {
		delta = -1
	}
	return delta, reasons, nil
}
