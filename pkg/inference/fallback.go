package inference

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/predictix/maintflow/pkg/agent"
	"github.com/predictix/maintflow/pkg/models"
)

// ZScoreLoader is the local fallback ModelLoader used when no model
// registry is configured. It maintains a rolling per-sensor baseline and
// serves a z-score model over it: readings far from the baseline mean are
// anomalous. Predictions are in {-1, +1} with a negative score for
// anomalies, matching the remote model contract.
type ZScoreLoader struct {
	threshold float64 // z-score anomaly cut-off
	window    int     // rolling window size per sensor

	mu        sync.Mutex
	baselines map[string]*rollingWindow // sensor_id → recent values
}

// NewZScoreLoader creates the fallback loader.
func NewZScoreLoader(threshold float64, window int) *ZScoreLoader {
	if threshold <= 0 {
		threshold = 3.0
	}
	if window <= 0 {
		window = 100
	}
	return &ZScoreLoader{
		threshold: threshold,
		window:    window,
		baselines: make(map[string]*rollingWindow),
	}
}

// LoadModelForSensor feeds the reading into the sensor's rolling baseline
// and returns a model bound to that baseline.
func (l *ZScoreLoader) LoadModelForSensor(_ context.Context, r models.SensorReading) (Model, Preprocessor, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.baselines[r.SensorID]
	if !ok {
		w = newRollingWindow(l.window)
		l.baselines[r.SensorID] = w
	}
	w.add(r.Value)

	return &zScoreModel{window: w, threshold: l.threshold, mu: &l.mu}, valuePreprocessor{}, nil
}

// ListAvailableModels returns the single built-in model name.
func (l *ZScoreLoader) ListAvailableModels(_ context.Context, _ models.SensorType) ([]string, error) {
	return []string{"zscore-fallback"}, nil
}

// ClearCache drops all per-sensor baselines.
func (l *ZScoreLoader) ClearCache() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.baselines = make(map[string]*rollingWindow)
}

// zScoreModel scores features against one sensor's rolling baseline.
type zScoreModel struct {
	window    *rollingWindow
	threshold float64
	mu        *sync.Mutex
}

// Name implements Model.
func (m *zScoreModel) Name() string { return "zscore-fallback" }

// Predict implements Model. The first feature is the raw value; the
// baseline's std falls back to 1 while the window is too small to estimate.
func (m *zScoreModel) Predict(_ context.Context, features []float64) (int, float64, error) {
	if len(features) == 0 {
		return 0, 0, fmt.Errorf("%w: empty feature vector", agent.ErrMLModel)
	}
	value := features[0]

	m.mu.Lock()
	mean, std := m.window.stats()
	m.mu.Unlock()

	if std == 0 {
		std = 1
	}
	z := math.Abs(value-mean) / std
	if z > m.threshold {
		// Negative score scaled into [-1, 0), stronger deviations closer to -1.
		score := -math.Min(1, z/(2*m.threshold))
		return PredictionAnomaly, score, nil
	}
	return PredictionNormal, z / m.threshold, nil
}

// rollingWindow holds the most recent values for one sensor.
type rollingWindow struct {
	values []float64
	max    int
}

func newRollingWindow(max int) *rollingWindow {
	return &rollingWindow{max: max}
}

func (w *rollingWindow) add(v float64) {
	w.values = append(w.values, v)
	if len(w.values) > w.max {
		w.values = w.values[len(w.values)-w.max:]
	}
}

// stats returns the sample mean and standard deviation of the window.
func (w *rollingWindow) stats() (mean, std float64) {
	n := len(w.values)
	if n == 0 {
		return 0, 0
	}
	for _, v := range w.values {
		mean += v
	}
	mean /= float64(n)
	if n < 2 {
		return mean, 0
	}
	var sq float64
	for _, v := range w.values {
		sq += (v - mean) * (v - mean)
	}
	return mean, math.Sqrt(sq / float64(n-1))
}
