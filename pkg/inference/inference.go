// Package inference provides the model-loading contract the anomaly
// detection agent consumes, a gRPC client for the remote model registry,
// and a local z-score fallback used when no registry is configured.
package inference

import (
	"context"

	"github.com/predictix/maintflow/pkg/models"
)

// Model prediction values.
const (
	PredictionAnomaly = -1
	PredictionNormal  = 1
)

// Model scores feature vectors. Predict returns PredictionAnomaly or
// PredictionNormal plus the raw model score (negative scores indicate
// anomalous inputs, following the isolation-forest convention).
type Model interface {
	Name() string
	Predict(ctx context.Context, features []float64) (prediction int, score float64, err error)
}

// Preprocessor turns a sensor reading into the model's feature vector.
type Preprocessor interface {
	Transform(r models.SensorReading) []float64
}

// ModelLoader resolves the model (and its preprocessor) that serves a given
// sensor reading. Load failures are ml_model errors.
type ModelLoader interface {
	LoadModelForSensor(ctx context.Context, r models.SensorReading) (Model, Preprocessor, error)
	ListAvailableModels(ctx context.Context, sensorType models.SensorType) ([]string, error)
	ClearCache()
}

// valuePreprocessor is the default feature extraction: the raw value and
// the reading quality.
type valuePreprocessor struct{}

// Transform implements Preprocessor.
func (valuePreprocessor) Transform(r models.SensorReading) []float64 {
	return []float64{r.Value, r.Quality}
}
