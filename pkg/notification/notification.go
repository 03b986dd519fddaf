package notification

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/predictix/maintflow/pkg/agent"
	"github.com/predictix/maintflow/pkg/events"
)

// AgentID is the notification agent's stable identifier.
const AgentID = "notification-agent"

// Agent observes scheduling commands, decision requests, and confirmed
// schedules, and delivers a notification for each through the configured
// providers. Delivery is best-effort; failures are logged, never retried
// into the pipeline.
type Agent struct {
	*agent.Base
	providers []Provider
	channel   Channel
}

// New creates the notification agent. At least one provider is required.
func New(bus agent.EventBus, channel Channel, providers ...Provider) (*Agent, error) {
	if bus == nil || len(providers) == 0 {
		return nil, fmt.Errorf("%w: notification agent requires a bus and at least one provider", agent.ErrConfiguration)
	}
	return &Agent{
		Base:      agent.NewBase(AgentID, bus),
		providers: providers,
		channel:   channel,
	}, nil
}

// Start registers capabilities, subscribes, and marks the agent running.
func (a *Agent) Start(_ context.Context) error {
	a.RegisterCapability(agent.Capability{
		Name:        "maintenance_notifications",
		Description: "Delivers notifications for maintenance commands, decision requests, and schedules",
		InputTypes: []string{
			events.TypeScheduleMaintenanceCommand,
			events.TypeHumanDecisionRequired,
			events.TypeMaintenanceScheduled,
		},
		OutputTypes: nil,
	})
	a.Bus().Subscribe(events.TypeScheduleMaintenanceCommand, AgentID, a.Guard("notify_command", a.notify))
	a.Bus().Subscribe(events.TypeHumanDecisionRequired, AgentID, a.Guard("notify_decision", a.notify))
	a.Bus().Subscribe(events.TypeMaintenanceScheduled, AgentID, a.Guard("notify_schedule", a.notify))
	a.MarkRunning()
	return nil
}

// Stop unsubscribes and marks the agent stopped.
func (a *Agent) Stop() {
	a.Bus().Unsubscribe(events.TypeScheduleMaintenanceCommand, AgentID)
	a.Bus().Unsubscribe(events.TypeHumanDecisionRequired, AgentID)
	a.Bus().Unsubscribe(events.TypeMaintenanceScheduled, AgentID)
	a.MarkStopped()
}

// notify renders and delivers one event.
func (a *Agent) notify(ctx context.Context, e events.Event) error {
	req, ok := a.render(e)
	if !ok {
		return nil
	}
	req.Channel = a.channel
	req.RequestedAt = time.Now().UTC()
	req.Metadata = map[string]any{
		"event_type":     e.Base().EventType,
		"event_id":       e.Base().EventID,
		"correlation_id": e.Base().CorrelationID,
	}

	delivered := false
	for _, p := range a.providers {
		if !p.SupportsChannel(a.channel) {
			continue
		}
		result, err := p.Send(ctx, req)
		if err != nil {
			a.Log().Warn("Notification delivery failed",
				"provider", p.Name(),
				"event_type", e.Base().EventType,
				"correlation_id", e.Base().CorrelationID,
				"error", err)
			continue
		}
		delivered = delivered || result.Delivered
	}
	if !delivered {
		a.Log().Warn("No provider delivered notification",
			"channel", a.channel,
			"event_type", e.Base().EventType,
			"correlation_id", e.Base().CorrelationID)
	}
	return nil
}

// render builds the subject and body for a supported event.
func (a *Agent) render(e events.Event) (Request, bool) {
	switch ev := e.(type) {
	case *events.ScheduleMaintenanceCommand:
		equipment, _ := ev.MaintenanceData["equipment_id"].(string)
		approval := "auto-approved"
		if ev.HumanApproved {
			approval = "human-approved"
		}
		return Request{
			Subject: fmt.Sprintf("Maintenance commanded for %s (%s, urgency %s)", equipment, approval, ev.UrgencyLevel),
			Body:    renderMap(ev.MaintenanceData),
		}, true
	case *events.HumanDecisionRequired:
		return Request{
			Subject: fmt.Sprintf("Decision required: %s (priority %s)", ev.Payload.RequestID, ev.Payload.Priority),
			Body: fmt.Sprintf("Options: %s\n%s",
				strings.Join(ev.Payload.Options, ", "), renderMap(ev.Payload.Context)),
		}, true
	case *events.MaintenanceScheduled:
		s := ev.Schedule
		return Request{
			Subject: fmt.Sprintf("Maintenance scheduled for %s", s.EquipmentID),
			Body: fmt.Sprintf("Technician %s assigned from %s to %s",
				s.AssignedTechnicianID,
				s.ScheduledStartTime.Format(time.RFC3339),
				s.ScheduledEndTime.Format(time.RFC3339)),
		}, true
	default:
		return Request{}, false
	}
}

func renderMap(m map[string]any) string {
	if len(m) == 0 {
		return "(no details)"
	}
	var b strings.Builder
	for k, v := range m {
		fmt.Fprintf(&b, "  %s: %v\n", k, v)
	}
	return strings.TrimRight(b.String(), "\n")
}
