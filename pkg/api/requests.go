package api

import "github.com/predictix/maintflow/pkg/models"

// IngestRequest is the body of POST /api/v1/data/ingest. Raw carries the
// sensor payload as received; normalization happens in the acquisition
// agent, not at the ingress.
type IngestRequest struct {
	SensorID string         `json:"sensor_id" binding:"required"`
	Raw      map[string]any `json:"raw_data" binding:"required"`
}

// IngestResponse acknowledges one ingested reading.
type IngestResponse struct {
	Status        string `json:"status"` // accepted | duplicate_ignored
	EventID       string `json:"event_id"`
	CorrelationID string `json:"correlation_id,omitempty"`
	SensorID      string `json:"sensor_id,omitempty"`
}

// DecisionSubmitRequest is the body of POST /api/v1/decisions/submit.
type DecisionSubmitRequest struct {
	RequestID     string         `json:"request_id" binding:"required"`
	Decision      string         `json:"decision" binding:"required"` // approve, approved, modify, reject, defer
	DecidedBy     string         `json:"decided_by"`
	Justification string         `json:"justification"`
	Modifications map[string]any `json:"modifications"`
}

// ManualScheduleRequest is the body of POST /api/v1/maintenance/schedule:
// an operator-initiated maintenance command outside the prediction flow.
type ManualScheduleRequest struct {
	EquipmentID     string                 `json:"equipment_id" binding:"required"`
	MaintenanceType models.MaintenanceType `json:"maintenance_type" binding:"required"`
	UrgencyLevel    models.UrgencyLevel    `json:"urgency_level"`
	Notes           string                 `json:"notes"`
}

// CompleteRequest is the body of POST /api/v1/maintenance/complete: a
// technician reports the outcome of a finished task.
type CompleteRequest struct {
	TaskID              string  `json:"task_id" binding:"required"`
	EquipmentID         string  `json:"equipment_id" binding:"required"`
	TechnicianID        string  `json:"technician_id"`
	Status              string  `json:"status" binding:"required"` // completed, partial, aborted
	Notes               string  `json:"notes"`
	ActualDurationHours float64 `json:"actual_duration_hours"`
}
