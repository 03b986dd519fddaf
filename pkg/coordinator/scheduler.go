package coordinator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/predictix/maintflow/pkg/agent"
	"github.com/predictix/maintflow/pkg/events"
	"github.com/predictix/maintflow/pkg/models"
	"github.com/predictix/maintflow/pkg/storage"
)

// SchedulerAgentID is the scheduling collaborator's stable identifier.
const SchedulerAgentID = "maintenance-scheduler-agent"

// Scheduling durations by urgency. High urgency books the next slot;
// lower urgencies leave planning room.
var leadTimeByUrgency = map[models.UrgencyLevel]time.Duration{
	models.UrgencyHigh:   4 * time.Hour,
	models.UrgencyMedium: 48 * time.Hour,
	models.UrgencyLow:    7 * 24 * time.Hour,
}

const defaultTaskDuration = 4 * time.Hour

// SchedulerAgent is the scheduling collaborator: it converts approved
// ScheduleMaintenanceCommand events into concrete technician assignments,
// persists them, and announces MaintenanceScheduled. Assignment is a
// greedy rotation over the configured technician pool.
type SchedulerAgent struct {
	*agent.Base
	schedules   storage.ScheduleStore
	technicians []string

	mu   sync.Mutex
	next int
}

// NewScheduler creates the scheduling collaborator.
func NewScheduler(bus agent.EventBus, schedules storage.ScheduleStore, technicians []string) (*SchedulerAgent, error) {
	if bus == nil || schedules == nil {
		return nil, fmt.Errorf("%w: scheduler agent requires a bus and schedule store", agent.ErrConfiguration)
	}
	if len(technicians) == 0 {
		technicians = []string{"tech-001", "tech-002"}
	}
	return &SchedulerAgent{
		Base:        agent.NewBase(SchedulerAgentID, bus),
		schedules:   schedules,
		technicians: technicians,
	}, nil
}

// Start registers capabilities, subscribes, and marks the agent running.
func (a *SchedulerAgent) Start(_ context.Context) error {
	a.RegisterCapability(agent.Capability{
		Name:        "maintenance_scheduling",
		Description: "Assigns technicians and time slots for approved maintenance commands",
		InputTypes:  []string{events.TypeScheduleMaintenanceCommand},
		OutputTypes: []string{events.TypeMaintenanceScheduled},
	})
	a.Bus().Subscribe(events.TypeScheduleMaintenanceCommand, SchedulerAgentID, a.Guard("schedule_maintenance", a.schedule))
	a.MarkRunning()
	return nil
}

// Stop unsubscribes and marks the agent stopped.
func (a *SchedulerAgent) Stop() {
	a.Bus().Unsubscribe(events.TypeScheduleMaintenanceCommand, SchedulerAgentID)
	a.MarkStopped()
}

// schedule handles one ScheduleMaintenanceCommand.
func (a *SchedulerAgent) schedule(ctx context.Context, e events.Event) error {
	command, ok := e.(*events.ScheduleMaintenanceCommand)
	if !ok {
		return fmt.Errorf("%w: expected ScheduleMaintenanceCommand, got %s", agent.ErrDataValidation, e.Base().EventType)
	}
	equipmentID, _ := command.MaintenanceData["equipment_id"].(string)
	if equipmentID == "" {
		return fmt.Errorf("%w: maintenance command carries no equipment ID", agent.ErrDataValidation)
	}

	lead, ok := leadTimeByUrgency[command.UrgencyLevel]
	if !ok {
		lead = leadTimeByUrgency[models.UrgencyMedium]
	}
	start := time.Now().UTC().Add(lead)

	schedule := models.MaintenanceSchedule{
		ScheduleID:           uuid.NewString(),
		EquipmentID:          equipmentID,
		AssignedTechnicianID: a.assignTechnician(),
		ScheduledStartTime:   start,
		ScheduledEndTime:     start.Add(defaultTaskDuration),
		ScheduleDetails: map[string]any{
			"urgency_level":              string(command.UrgencyLevel),
			"auto_approved":              command.AutoApproved,
			"human_approved":             command.HumanApproved,
			"source_prediction_event_id": command.SourcePredictionEventID,
			"maintenance_type":           command.MaintenanceData["maintenance_type"],
		},
		CreatedAt: time.Now().UTC(),
	}

	if err := a.schedules.SaveSchedule(ctx, schedule); err != nil {
		return fmt.Errorf("failed to persist schedule for %s: %w", equipmentID, err)
	}

	scheduled := &events.MaintenanceScheduled{
		BaseEvent: events.DeriveBase(events.TypeMaintenanceScheduled, command),
		Schedule:  schedule,
	}
	if err := a.Bus().Publish(scheduled); err != nil {
		return fmt.Errorf("%w: publishing MaintenanceScheduled: %w", agent.ErrEventPublish, err)
	}

	a.Log().Info("Maintenance scheduled",
		"equipment_id", equipmentID,
		"technician_id", schedule.AssignedTechnicianID,
		"start", schedule.ScheduledStartTime,
		"correlation_id", scheduled.CorrelationID)
	return nil
}

func (a *SchedulerAgent) assignTechnician() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	id := a.technicians[a.next%len(a.technicians)]
	a.next++
	return id
}
