// Package detection hosts the anomaly detection agent: an ensemble of a
// machine-learning detector (remote model registry or local fallback) and
// a statistical baseline detector, with graceful degradation when either
// side fails.
package detection

import (
	"context"
	"fmt"
	"time"

	"github.com/predictix/maintflow/pkg/agent"
	"github.com/predictix/maintflow/pkg/config"
	"github.com/predictix/maintflow/pkg/events"
	"github.com/predictix/maintflow/pkg/inference"
	"github.com/predictix/maintflow/pkg/models"
)

// AgentID is the anomaly detection agent's stable identifier.
const AgentID = "anomaly-detection-agent"

// Agent consumes DataProcessed, runs the detector ensemble, and publishes
// AnomalyDetected with bounded publish retries.
type Agent struct {
	*agent.Base
	cfg    *config.DetectionConfig
	loader inference.ModelLoader
	stat   *StatDetector
}

// New creates the detection agent.
func New(bus agent.EventBus, cfg *config.DetectionConfig, loader inference.ModelLoader) (*Agent, error) {
	if bus == nil || cfg == nil || loader == nil {
		return nil, fmt.Errorf("%w: detection agent requires a bus, config, and model loader", agent.ErrConfiguration)
	}
	return &Agent{
		Base:   agent.NewBase(AgentID, bus),
		cfg:    cfg,
		loader: loader,
		stat:   NewStatDetector(cfg.ZScoreThreshold, cfg.DefaultHistoricalStd, cfg.BaselineWindow),
	}, nil
}

// Start registers capabilities, subscribes, and marks the agent running.
func (a *Agent) Start(_ context.Context) error {
	a.RegisterCapability(agent.Capability{
		Name:        "anomaly_detection",
		Description: "Ensemble ML + statistical anomaly detection over processed readings",
		InputTypes:  []string{events.TypeDataProcessed},
		OutputTypes: []string{events.TypeAnomalyDetected},
	})
	a.Bus().Subscribe(events.TypeDataProcessed, AgentID, a.Guard("detect_anomaly", a.detect))
	a.MarkRunning()
	return nil
}

// Stop unsubscribes and marks the agent stopped.
func (a *Agent) Stop() {
	a.Bus().Unsubscribe(events.TypeDataProcessed, AgentID)
	a.MarkStopped()
}

// detect handles one DataProcessed event end to end.
func (a *Agent) detect(ctx context.Context, e events.Event) error {
	processed, ok := e.(*events.DataProcessed)
	if !ok {
		return fmt.Errorf("%w: expected DataProcessed, got %s", agent.ErrDataValidation, e.Base().EventType)
	}
	reading := processed.ProcessedData

	ml, mlErr := a.runML(ctx, reading)
	stat, statErr := a.runStat(reading)

	// Graceful degradation: the ensemble proceeds on whichever detector
	// survived. Only a double failure is surfaced as a model error.
	if mlErr != nil && statErr != nil {
		return fmt.Errorf("%w: both detectors failed for sensor %s: ml: %v; stat: %v",
			agent.ErrMLModel, reading.SensorID, mlErr, statErr)
	}
	if mlErr != nil {
		a.Log().Warn("ML detector failed, continuing with statistical detector only",
			"sensor_id", reading.SensorID, "correlation_id", processed.CorrelationID, "error", mlErr)
	}
	if statErr != nil {
		a.Log().Warn("Statistical detector failed, continuing with ML detector only",
			"sensor_id", reading.SensorID, "correlation_id", processed.CorrelationID, "error", statErr)
	}

	isAnomaly, confidence := combine(ml, stat)
	if !isAnomaly {
		return nil
	}

	level := models.SeverityLevelFromConfidence(confidence)
	detected := &events.AnomalyDetected{
		BaseEvent:      events.DeriveBase(events.TypeAnomalyDetected, processed),
		TriggeringData: reading,
		Severity:       models.SeverityFromLevel(level),
		AnomalyDetails: a.buildDetails(reading, ml, stat, confidence, level),
	}

	if err := a.publishWithRetry(detected); err != nil {
		return err
	}

	a.Log().Info("Anomaly detected",
		"sensor_id", reading.SensorID,
		"severity", detected.Severity,
		"confidence", confidence,
		"correlation_id", detected.CorrelationID)
	return nil
}

// runML loads the serving model for the reading and scores it.
func (a *Agent) runML(ctx context.Context, reading models.SensorReading) (*MLResult, error) {
	model, pre, err := a.loader.LoadModelForSensor(ctx, reading)
	if err != nil {
		return nil, err
	}
	prediction, score, err := model.Predict(ctx, pre.Transform(reading))
	if err != nil {
		return nil, err
	}
	return &MLResult{Prediction: prediction, Score: score, ModelName: model.Name()}, nil
}

// runStat scores the reading against the statistical baseline, converting
// a detector panic into an error so the ensemble can degrade.
func (a *Agent) runStat(reading models.SensorReading) (res *StatResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = fmt.Errorf("statistical detector panicked: %v", r)
		}
	}()
	out := a.stat.Detect(reading)
	return &out, nil
}

// buildDetails assembles the evidence payload carried on AnomalyDetected.
func (a *Agent) buildDetails(reading models.SensorReading, ml *MLResult, stat *StatResult, confidence float64, level int) map[string]any {
	details := map[string]any{
		"confidence":     confidence,
		"severity_level": level,
		"sensor_id":      reading.SensorID,
		"value":          reading.Value,
	}
	if ml != nil {
		details["ml_prediction"] = ml.Prediction
		details["ml_score"] = ml.Score
		details["ml_model"] = ml.ModelName
	}
	if stat != nil {
		details["stat_is_anomaly"] = stat.IsAnomaly
		details["stat_confidence"] = stat.Confidence
		details["description"] = stat.Description
	}
	return details
}

// publishWithRetry publishes AnomalyDetected with bounded retries.
// Exhausted retries surface an event publish error; the caller may continue
// gracefully.
func (a *Agent) publishWithRetry(detected *events.AnomalyDetected) error {
	var lastErr error
	for attempt := 1; attempt <= a.cfg.PublishMaxAttempts; attempt++ {
		lastErr = a.Bus().Publish(detected)
		if lastErr == nil {
			return nil
		}
		a.Log().Warn("Failed to publish AnomalyDetected, retrying",
			"attempt", attempt,
			"max_attempts", a.cfg.PublishMaxAttempts,
			"correlation_id", detected.CorrelationID,
			"error", lastErr)
		if attempt < a.cfg.PublishMaxAttempts {
			time.Sleep(a.cfg.PublishRetryDelay)
		}
	}
	return fmt.Errorf("%w: publishing AnomalyDetected after %d attempts: %w",
		agent.ErrEventPublish, a.cfg.PublishMaxAttempts, lastErr)
}
