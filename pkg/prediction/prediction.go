// Package prediction hosts the failure prediction agent: validated
// anomalies trigger a time-series forecast over the sensor's history,
// producing MaintenancePredicted events for the orchestrator.
package prediction

import (
	"context"
	"fmt"
	"time"

	"github.com/predictix/maintflow/pkg/agent"
	"github.com/predictix/maintflow/pkg/config"
	"github.com/predictix/maintflow/pkg/events"
	"github.com/predictix/maintflow/pkg/models"
	"github.com/predictix/maintflow/pkg/storage"
)

// AgentID is the prediction agent's stable identifier.
const AgentID = "failure-prediction-agent"

// statusAliasConfirmed is accepted as equivalent to the canonical credible
// status when gating predictions.
const statusAliasConfirmed = "confirmed"

// Agent consumes AnomalyValidated and emits MaintenancePredicted.
type Agent struct {
	*agent.Base
	cfg        *config.PredictionConfig
	readings   storage.ReadingStore
	forecaster Forecaster
}

// New creates the prediction agent.
func New(bus agent.EventBus, cfg *config.PredictionConfig, readings storage.ReadingStore, forecaster Forecaster) (*Agent, error) {
	if bus == nil || cfg == nil || readings == nil || forecaster == nil {
		return nil, fmt.Errorf("%w: prediction agent requires a bus, config, reading store, and forecaster", agent.ErrConfiguration)
	}
	return &Agent{
		Base:       agent.NewBase(AgentID, bus),
		cfg:        cfg,
		readings:   readings,
		forecaster: forecaster,
	}, nil
}

// Start registers capabilities, subscribes, and marks the agent running.
func (a *Agent) Start(_ context.Context) error {
	a.RegisterCapability(agent.Capability{
		Name:        "failure_prediction",
		Description: "Forecasts equipment failure from validated anomalies and sensor history",
		InputTypes:  []string{events.TypeAnomalyValidated},
		OutputTypes: []string{events.TypeMaintenancePredicted},
	})
	a.Bus().Subscribe(events.TypeAnomalyValidated, AgentID, a.Guard("predict_failure", a.predict))
	a.MarkRunning()
	return nil
}

// Stop unsubscribes and marks the agent stopped.
func (a *Agent) Stop() {
	a.Bus().Unsubscribe(events.TypeAnomalyValidated, AgentID)
	a.MarkStopped()
}

// predict handles one AnomalyValidated event.
func (a *Agent) predict(ctx context.Context, e events.Event) error {
	validated, ok := e.(*events.AnomalyValidated)
	if !ok {
		return fmt.Errorf("%w: expected AnomalyValidated, got %s", agent.ErrDataValidation, e.Base().EventType)
	}

	if !a.shouldPredict(validated) {
		return nil
	}
	sensorID := validated.TriggeringReading.SensorID
	if sensorID == "" {
		a.Log().Debug("No sensor ID on validated anomaly, skipping prediction",
			"correlation_id", validated.CorrelationID)
		return nil
	}

	history, err := a.readings.GetBySensorID(ctx, sensorID, a.cfg.HistoricalDataLimit, validated.TriggeringReading.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to fetch history for sensor %s: %w", sensorID, err)
	}
	if len(history) < a.cfg.MinHistoricalPoints {
		a.Log().Info("Insufficient history for prediction",
			"sensor_id", sensorID,
			"points", len(history),
			"required", a.cfg.MinHistoricalPoints,
			"correlation_id", validated.CorrelationID)
		return nil
	}

	forecast, err := a.forecaster.Forecast(ctx, history)
	if err != nil {
		return fmt.Errorf("forecast failed for sensor %s: %w", sensorID, err)
	}

	ttfDays := time.Until(forecast.PredictedFailureDate).Hours() / 24
	if ttfDays < 0 {
		ttfDays = 0
	}
	maintenanceType := maintenanceTypeForTTF(ttfDays)

	predicted := &events.MaintenancePredicted{
		BaseEvent:               events.DeriveBase(events.TypeMaintenancePredicted, validated),
		EquipmentID:             equipmentIDFor(validated.TriggeringReading),
		PredictedFailureDate:    forecast.PredictedFailureDate,
		ConfidenceIntervalLower: forecast.ConfidenceIntervalLower,
		ConfidenceIntervalUpper: forecast.ConfidenceIntervalUpper,
		PredictionConfidence:    forecast.Confidence,
		TimeToFailureDays:       ttfDays,
		MaintenanceType:         maintenanceType,
		RecommendedActions:      recommendedActions(maintenanceType, validated.TriggeringReading.SensorType),
		AgentID:                 AgentID,
	}
	if err := a.Bus().Publish(predicted); err != nil {
		return fmt.Errorf("%w: %w", agent.ErrEventPublish, err)
	}

	a.Log().Info("Maintenance predicted",
		"equipment_id", predicted.EquipmentID,
		"ttf_days", ttfDays,
		"confidence", forecast.Confidence,
		"maintenance_type", maintenanceType,
		"correlation_id", predicted.CorrelationID)
	return nil
}

// shouldPredict gates on validation outcome: a credible status (canonical
// or the "confirmed" alias) or a final confidence at the gate or above.
func (a *Agent) shouldPredict(v *events.AnomalyValidated) bool {
	if v.ValidationStatus == events.ValidationStatusCredible || v.ValidationStatus == statusAliasConfirmed {
		return true
	}
	return v.FinalConfidence >= a.cfg.ConfidenceGate
}

// equipmentIDFor resolves the equipment a sensor is mounted on, preferring
// explicit metadata over the sensor's own ID.
func equipmentIDFor(r models.SensorReading) string {
	if id, ok := r.Metadata["equipment_id"].(string); ok && id != "" {
		return id
	}
	return r.SensorID
}

// maintenanceTypeForTTF picks the maintenance type from the horizon.
func maintenanceTypeForTTF(ttfDays float64) models.MaintenanceType {
	switch {
	case ttfDays < 14:
		return models.MaintenanceTypeUrgentCorrective
	case ttfDays < 60:
		return models.MaintenanceTypePreventive
	default:
		return models.MaintenanceTypeInspection
	}
}

// recommendedActions returns the action checklist for a maintenance type.
func recommendedActions(t models.MaintenanceType, sensorType models.SensorType) []string {
	switch t {
	case models.MaintenanceTypeUrgentCorrective:
		return []string{
			fmt.Sprintf("Take equipment offline and replace degraded %s components", sensorType),
			"Order replacement parts with expedited delivery",
			"Schedule certified technician within the week",
		}
	case models.MaintenanceTypePreventive:
		return []string{
			fmt.Sprintf("Service %s subsystem during next planned downtime", sensorType),
			"Verify lubrication and fastening torque",
			"Re-baseline sensor after service",
		}
	default:
		return []string{
			fmt.Sprintf("Add %s readings to the weekly inspection round", sensorType),
			"Compare against commissioning baseline",
		}
	}
}
