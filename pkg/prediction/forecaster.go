package prediction

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/predictix/maintflow/pkg/agent"
	"github.com/predictix/maintflow/pkg/models"
)

// Forecast is a failure forecast for one sensor's equipment.
type Forecast struct {
	PredictedFailureDate    time.Time
	ConfidenceIntervalLower time.Time
	ConfidenceIntervalUpper time.Time
	Confidence              float64 // [0, 1]
}

// Forecaster produces a failure forecast from a sensor's history, newest
// reading first. Implementations may call external services; the default is
// a local trend model.
type Forecaster interface {
	Forecast(ctx context.Context, history []models.SensorReading) (*Forecast, error)
}

// TrendForecaster is the built-in forecaster: a least-squares trend over
// the history, extrapolated to the point where the value drifts a
// configured number of baseline standard deviations away. The interval
// width and confidence derive from the fit quality.
type TrendForecaster struct {
	// DriftLimitStd is how many standard deviations of drift from the
	// historical mean count as failure.
	DriftLimitStd float64

	// MaxHorizonDays caps predictions; flat trends predict this horizon
	// with low confidence.
	MaxHorizonDays float64
}

// NewTrendForecaster creates the built-in forecaster with its defaults.
func NewTrendForecaster() *TrendForecaster {
	return &TrendForecaster{
		DriftLimitStd:  6.0,
		MaxHorizonDays: 365,
	}
}

// Forecast implements Forecaster.
func (f *TrendForecaster) Forecast(_ context.Context, history []models.SensorReading) (*Forecast, error) {
	if len(history) < 2 {
		return nil, fmt.Errorf("%w: trend forecast needs at least 2 points, got %d", agent.ErrProcessing, len(history))
	}

	// Oldest first for the regression.
	points := make([]models.SensorReading, len(history))
	copy(points, history)
	for i, j := 0, len(points)-1; i < j; i, j = i+1, j-1 {
		points[i], points[j] = points[j], points[i]
	}

	t0 := points[0].Timestamp
	var sumX, sumY, sumXX, sumXY float64
	n := float64(len(points))
	for _, p := range points {
		x := p.Timestamp.Sub(t0).Hours() / 24 // days since first point
		sumX += x
		sumY += p.Value
		sumXX += x * x
		sumXY += x * p.Value
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return nil, fmt.Errorf("%w: degenerate history timestamps", agent.ErrProcessing)
	}
	slope := (n*sumXY - sumX*sumY) / denom
	intercept := (sumY - slope*sumX) / n
	mean := sumY / n

	var variance, residual float64
	for _, p := range points {
		x := p.Timestamp.Sub(t0).Hours() / 24
		variance += (p.Value - mean) * (p.Value - mean)
		fit := intercept + slope*x
		residual += (p.Value - fit) * (p.Value - fit)
	}
	std := math.Sqrt(variance / (n - 1))
	if std == 0 {
		std = 1
	}

	// Fit quality drives confidence: R² scaled into [0.3, 0.95].
	r2 := 0.0
	if variance > 0 {
		r2 = math.Max(0, 1-residual/variance)
	}
	confidence := 0.3 + 0.65*r2

	last := points[len(points)-1]
	ttfDays := f.MaxHorizonDays
	if math.Abs(slope) > 1e-9 {
		// Days until the trend drifts DriftLimitStd standard deviations
		// from the historical mean.
		limit := mean + math.Copysign(f.DriftLimitStd*std, slope)
		d := (limit - last.Value) / slope
		if d > 0 && d < f.MaxHorizonDays {
			ttfDays = d
		} else if d <= 0 {
			// Already past the drift limit.
			ttfDays = 1
		}
	} else {
		confidence = math.Min(confidence, 0.4)
	}

	failureDate := last.Timestamp.Add(time.Duration(ttfDays * 24 * float64(time.Hour)))
	// Interval widens as confidence drops.
	spread := time.Duration(ttfDays * (1.05 - confidence) * 24 * float64(time.Hour))

	return &Forecast{
		PredictedFailureDate:    failureDate,
		ConfidenceIntervalLower: failureDate.Add(-spread),
		ConfidenceIntervalUpper: failureDate.Add(spread),
		Confidence:              clamp01(confidence),
	}, nil
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
