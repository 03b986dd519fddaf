package detection

import (
	"math"
	"sync"

	"github.com/predictix/maintflow/pkg/models"
)

// Statistical detector descriptions.
const (
	descThresholdBreach = "statistical_threshold_breach"
	descWithinBaseline  = "within_statistical_baseline"
)

// minBaselineSamples is how many observations a sensor needs before its own
// standard deviation replaces the configured bootstrap value.
const minBaselineSamples = 5

// StatResult is the statistical detector's verdict on one reading.
type StatResult struct {
	IsAnomaly   bool
	Confidence  float64
	Description string
}

// StatDetector flags readings that deviate from a cached per-sensor
// baseline by more than a z-score threshold. Unseen sensors bootstrap with
// the configured default standard deviation.
type StatDetector struct {
	zThreshold float64
	defaultStd float64
	window     int

	mu        sync.Mutex
	baselines map[string]*baseline
}

// baseline accumulates a rolling window of one sensor's values.
type baseline struct {
	values []float64
}

// NewStatDetector creates the detector.
func NewStatDetector(zThreshold, defaultStd float64, window int) *StatDetector {
	return &StatDetector{
		zThreshold: zThreshold,
		defaultStd: defaultStd,
		window:     window,
		baselines:  make(map[string]*baseline),
	}
}

// Detect scores one reading against the sensor's baseline, then folds the
// reading into the baseline for subsequent detections.
func (d *StatDetector) Detect(r models.SensorReading) StatResult {
	d.mu.Lock()
	defer d.mu.Unlock()

	b, ok := d.baselines[r.SensorID]
	if !ok {
		b = &baseline{}
		d.baselines[r.SensorID] = b
	}

	mean, std := b.stats()
	if len(b.values) < minBaselineSamples || std == 0 {
		std = d.defaultStd
	}
	if len(b.values) == 0 {
		mean = r.Value
	}

	b.add(r.Value, d.window)

	z := math.Abs(r.Value-mean) / std
	if z < d.zThreshold {
		return StatResult{IsAnomaly: false, Confidence: 0, Description: descWithinBaseline}
	}
	// Confidence grows with how far past the threshold the deviation is.
	confidence := math.Min(1, 0.5+0.5*(z-d.zThreshold)/d.zThreshold)
	return StatResult{IsAnomaly: true, Confidence: confidence, Description: descThresholdBreach}
}

// BaselineSize reports how many observations a sensor's baseline holds.
func (d *StatDetector) BaselineSize(sensorID string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if b, ok := d.baselines[sensorID]; ok {
		return len(b.values)
	}
	return 0
}

func (b *baseline) add(v float64, window int) {
	b.values = append(b.values, v)
	if window > 0 && len(b.values) > window {
		b.values = b.values[len(b.values)-window:]
	}
}

func (b *baseline) stats() (mean, std float64) {
	n := len(b.values)
	if n == 0 {
		return 0, 0
	}
	for _, v := range b.values {
		mean += v
	}
	mean /= float64(n)
	if n < 2 {
		return mean, 0
	}
	var sq float64
	for _, v := range b.values {
		sq += (v - mean) * (v - mean)
	}
	return mean, math.Sqrt(sq / float64(n-1))
}
