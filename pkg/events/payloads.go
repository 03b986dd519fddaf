package events

import (
	"time"

	"github.com/predictix/maintflow/pkg/models"
)

// SensorDataReceived carries a raw ingested reading before normalization.
// First event of every pipeline flow; published by the HTTP ingress.
type SensorDataReceived struct {
	BaseEvent
	SensorID string         `json:"sensor_id"`
	RawData  map[string]any `json:"raw_data"`
}

// DataProcessed carries a normalized, validated SensorReading.
// Published by the data acquisition agent.
type DataProcessed struct {
	BaseEvent
	ProcessedData   models.SensorReading `json:"processed_data"`
	OriginalEventID string               `json:"original_event_id"` // SensorDataReceived.EventID
	SourceSensorID  string               `json:"source_sensor_id"`
}

// DataProcessingFailed reports that an agent could not process an event.
// Observability only; nothing in the core pipeline subscribes to it.
type DataProcessingFailed struct {
	BaseEvent
	AgentID              string         `json:"agent_id"`
	ErrorMessage         string         `json:"error_message"`
	Traceback            string         `json:"traceback,omitempty"`
	OriginalEventType    string         `json:"original_event_type"`
	OriginalEventPayload map[string]any `json:"original_event_payload,omitempty"`
}

// AnomalyDetected is the detection ensemble's verdict on one reading.
type AnomalyDetected struct {
	BaseEvent
	AnomalyDetails map[string]any       `json:"anomaly_details"` // confidence, description, detector evidence
	TriggeringData models.SensorReading `json:"triggering_data"`
	Severity       models.Severity      `json:"severity"`
}

// Validation status values carried by AnomalyValidated.
// "credible_anomaly" is the canonical credible spelling; "confirmed" is
// accepted as an input alias when gating predictions.
const (
	ValidationStatusCredible      = "credible_anomaly"
	ValidationStatusFalsePositive = "false_positive_suspected"
	ValidationStatusInvestigate   = "further_investigation_needed"
	ValidationStatusUncertain     = "uncertain"
)

// AnomalyValidated is the validation agent's assessment of a detected anomaly.
type AnomalyValidated struct {
	BaseEvent
	OriginalAnomaly   map[string]any       `json:"original_anomaly_alert_payload"`
	TriggeringReading models.SensorReading `json:"triggering_reading_payload"`
	ValidationStatus  string               `json:"validation_status"` // see ValidationStatus* constants
	FinalConfidence   float64              `json:"final_confidence"`  // [0, 1]
	ValidationReasons []string             `json:"validation_reasons"`
	ValidatedAt       time.Time            `json:"validated_at"`
	AgentID           string               `json:"agent_id"`
}

// MaintenancePredicted is the prediction agent's failure forecast for one
// piece of equipment. The orchestrator's decision table consumes it.
type MaintenancePredicted struct {
	BaseEvent
	EquipmentID             string                 `json:"equipment_id"`
	PredictedFailureDate    time.Time              `json:"predicted_failure_date"`
	ConfidenceIntervalLower time.Time              `json:"confidence_interval_lower"`
	ConfidenceIntervalUpper time.Time              `json:"confidence_interval_upper"`
	PredictionConfidence    float64                `json:"prediction_confidence"` // [0, 1]
	TimeToFailureDays       float64                `json:"time_to_failure_days"`
	MaintenanceType         models.MaintenanceType `json:"maintenance_type"`
	RecommendedActions      []string               `json:"recommended_actions,omitempty"`
	AgentID                 string                 `json:"agent_id"`
}

// HumanDecisionRequired asks an operator to decide on a proposed action.
type HumanDecisionRequired struct {
	BaseEvent
	Payload models.DecisionRequest `json:"payload"`
}

// HumanDecisionResponse carries the operator's answer back into the pipeline.
type HumanDecisionResponse struct {
	BaseEvent
	Payload models.DecisionResponse `json:"payload"`
}

// ScheduleMaintenanceCommand instructs the scheduling collaborator to book
// maintenance. Emitted by the orchestrator, either auto-approved or after a
// human approval.
type ScheduleMaintenanceCommand struct {
	BaseEvent
	MaintenanceData         map[string]any      `json:"maintenance_data"`
	UrgencyLevel            models.UrgencyLevel `json:"urgency_level"`
	AutoApproved            bool                `json:"auto_approved"`
	HumanApproved           bool                `json:"human_approved,omitempty"`
	SourcePredictionEventID string              `json:"source_prediction_event_id"`
}

// MaintenanceScheduled reports a concrete technician assignment.
type MaintenanceScheduled struct {
	BaseEvent
	Schedule models.MaintenanceSchedule `json:"schedule"`
}

// MaintenanceCompleted reports a finished maintenance task.
type MaintenanceCompleted struct {
	BaseEvent
	Completion models.MaintenanceCompletion `json:"completion"`
}
