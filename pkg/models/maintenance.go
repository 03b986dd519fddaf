package models

import "time"

// MaintenanceType classifies the kind of maintenance a prediction calls for.
type MaintenanceType string

// Maintenance types, most to least invasive.
const (
	MaintenanceTypeUrgentCorrective MaintenanceType = "urgent_corrective"
	MaintenanceTypePreventive       MaintenanceType = "preventive"
	MaintenanceTypeInspection       MaintenanceType = "inspection"
)

// UrgencyLevel is the scheduling urgency attached to a maintenance command.
type UrgencyLevel string

// Urgency levels.
const (
	UrgencyLow    UrgencyLevel = "low"
	UrgencyMedium UrgencyLevel = "medium"
	UrgencyHigh   UrgencyLevel = "high"
)

// MaintenanceSchedule is a concrete technician assignment produced by the
// scheduling collaborator in response to a ScheduleMaintenanceCommand.
type MaintenanceSchedule struct {
	ScheduleID           string         `json:"schedule_id"`
	EquipmentID          string         `json:"equipment_id"`
	AssignedTechnicianID string         `json:"assigned_technician_id"`
	ScheduledStartTime   time.Time      `json:"scheduled_start_time"`
	ScheduledEndTime     time.Time      `json:"scheduled_end_time"`
	ScheduleDetails      map[string]any `json:"schedule_details,omitempty"`
	ConstraintsViolated  []string       `json:"constraints_violated,omitempty"`
	CreatedAt            time.Time      `json:"created_at"`
}

// MaintenanceCompletion records the outcome of a finished maintenance task.
type MaintenanceCompletion struct {
	TaskID              string    `json:"task_id"`
	EquipmentID         string    `json:"equipment_id"`
	TechnicianID        string    `json:"technician_id"`
	CompletionDate      time.Time `json:"completion_date"`
	Status              string    `json:"status"` // completed, partial, aborted
	Notes               string    `json:"notes,omitempty"`
	ActualDurationHours float64   `json:"actual_duration_hours"`
}
