package detection

import (
	"math"

	"github.com/predictix/maintflow/pkg/inference"
)

// MLResult is the machine-learning detector's verdict on one reading.
// Prediction follows the model contract: -1 anomaly, +1 normal.
type MLResult struct {
	Prediction int
	Score      float64
	ModelName  string
}

// Flagged reports whether the ML detector called the reading anomalous.
func (r *MLResult) Flagged() bool {
	return r != nil && r.Prediction == inference.PredictionAnomaly
}

// mlConfidence maps the raw model score into [0.1, 1]: a flagged reading
// scores 0.5 + 0.5·min(1, |score|); an unflagged one contributes a floor
// of 0.1 to the ensemble.
func mlConfidence(r *MLResult) float64 {
	if r.Flagged() {
		return 0.5 + 0.5*math.Min(1, math.Abs(r.Score))
	}
	return 0.1
}

// combine merges the two detector verdicts into the ensemble decision.
// Either detector may be nil when it failed and the ensemble degrades to
// the surviving one. Weights: 0.6 ML / 0.4 statistical when both agree,
// 0.8 of the single detector otherwise. The result is clamped to [0, 1].
func combine(ml *MLResult, stat *StatResult) (isAnomaly bool, confidence float64) {
	mlFlagged := ml.Flagged()
	statFlagged := stat != nil && stat.IsAnomaly

	isAnomaly = mlFlagged || statFlagged
	if !isAnomaly {
		return false, 0
	}

	switch {
	case mlFlagged && statFlagged:
		confidence = 0.6*mlConfidence(ml) + 0.4*stat.Confidence
	case mlFlagged:
		confidence = 0.8 * mlConfidence(ml)
	default:
		confidence = 0.8 * stat.Confidence
	}

	return true, math.Max(0, math.Min(1, confidence))
}
