// Package orchestrator hosts the maintenance orchestration agent: a state
// machine that turns failure predictions into auto-approved scheduling
// commands or human decision requests, with per-equipment suppression of
// duplicate requests while a decision is outstanding.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/predictix/maintflow/pkg/agent"
	"github.com/predictix/maintflow/pkg/config"
	"github.com/predictix/maintflow/pkg/events"
	"github.com/predictix/maintflow/pkg/models"
)

// AgentID is the orchestrator agent's stable identifier.
const AgentID = "maintenance-orchestrator-agent"

// RequestIDPrefix prefixes decision request IDs; the suffix is the
// originating prediction's event ID.
const RequestIDPrefix = "maintenance_approval_"

// proceedConfidence is the validated-anomaly confidence above which the
// orchestrator expects a prediction to follow.
const proceedConfidence = 0.7

// routing is the outcome of the decision table for one prediction.
type routing struct {
	autoApprove bool
	urgency     models.UrgencyLevel
	priority    models.DecisionPriority
	rationale   string
}

// Agent consumes AnomalyValidated, MaintenancePredicted, and
// HumanDecisionResponse, and emits ScheduleMaintenanceCommand or
// HumanDecisionRequired.
type Agent struct {
	*agent.Base
	cfg   *config.OrchestratorConfig
	state *state
}

// New creates the orchestrator agent.
func New(bus agent.EventBus, cfg *config.OrchestratorConfig) (*Agent, error) {
	if bus == nil || cfg == nil {
		return nil, fmt.Errorf("%w: orchestrator agent requires a bus and config", agent.ErrConfiguration)
	}
	return &Agent{
		Base:  agent.NewBase(AgentID, bus),
		cfg:   cfg,
		state: newState(),
	}, nil
}

// Start registers capabilities, subscribes, and marks the agent running.
func (a *Agent) Start(_ context.Context) error {
	a.RegisterCapability(agent.Capability{
		Name:        "maintenance_orchestration",
		Description: "Routes failure predictions to auto-approved scheduling or human approval",
		InputTypes:  []string{events.TypeAnomalyValidated, events.TypeMaintenancePredicted, events.TypeHumanDecisionResponse},
		OutputTypes: []string{events.TypeScheduleMaintenanceCommand, events.TypeHumanDecisionRequired},
	})
	a.Bus().Subscribe(events.TypeAnomalyValidated, AgentID, a.Guard("track_anomaly", a.handleAnomalyValidated))
	a.Bus().Subscribe(events.TypeMaintenancePredicted, AgentID, a.Guard("route_prediction", a.handleMaintenancePredicted))
	a.Bus().Subscribe(events.TypeHumanDecisionResponse, AgentID, a.Guard("apply_decision", a.handleHumanDecisionResponse))
	a.MarkRunning()
	return nil
}

// Stop unsubscribes and marks the agent stopped.
func (a *Agent) Stop() {
	a.Bus().Unsubscribe(events.TypeAnomalyValidated, AgentID)
	a.Bus().Unsubscribe(events.TypeMaintenancePredicted, AgentID)
	a.Bus().Unsubscribe(events.TypeHumanDecisionResponse, AgentID)
	a.MarkStopped()
}

// handleAnomalyValidated records the validation outcome. No event is
// emitted at this stage; the prediction agent decides independently.
func (a *Agent) handleAnomalyValidated(_ context.Context, e events.Event) error {
	validated, ok := e.(*events.AnomalyValidated)
	if !ok {
		return fmt.Errorf("%w: expected AnomalyValidated, got %s", agent.ErrDataValidation, e.Base().EventType)
	}

	a.state.mu.Lock()
	a.state.anomalies[validated.EventID] = AnomalySummary{
		SensorID:        validated.TriggeringReading.SensorID,
		Status:          validated.ValidationStatus,
		FinalConfidence: validated.FinalConfidence,
		CorrelationID:   validated.CorrelationID,
		RecordedAt:      time.Now().UTC(),
	}
	a.state.mu.Unlock()

	if validated.FinalConfidence > proceedConfidence {
		a.Log().Info("Validated anomaly recorded, proceed to prediction",
			"sensor_id", validated.TriggeringReading.SensorID,
			"final_confidence", validated.FinalConfidence,
			"correlation_id", validated.CorrelationID)
	} else {
		a.Log().Info("Validated anomaly recorded, monitoring only",
			"sensor_id", validated.TriggeringReading.SensorID,
			"final_confidence", validated.FinalConfidence,
			"correlation_id", validated.CorrelationID)
	}
	return nil
}

// handleMaintenancePredicted runs the decision table for one prediction.
func (a *Agent) handleMaintenancePredicted(_ context.Context, e events.Event) error {
	predicted, ok := e.(*events.MaintenancePredicted)
	if !ok {
		return fmt.Errorf("%w: expected MaintenancePredicted, got %s", agent.ErrDataValidation, e.Base().EventType)
	}
	if predicted.EquipmentID == "" {
		return fmt.Errorf("%w: prediction carries no equipment ID", agent.ErrDataValidation)
	}

	route := a.route(predicted)
	requestID := RequestIDPrefix + predicted.EventID

	a.state.mu.Lock()
	if pending, exists := a.state.pending[predicted.EquipmentID]; exists {
		a.state.appendLog(DecisionLogEntry{
			Type:      LogTypeDuplicateHandling,
			Rationale: fmt.Sprintf("Prediction for %s ignored due to pending decision %s", predicted.EquipmentID, pending.RequestID),
			Action:    "suppressed",
			Context: map[string]any{
				"equipment_id":       predicted.EquipmentID,
				"pending_request_id": pending.RequestID,
				"ttf_days":           predicted.TimeToFailureDays,
			},
			CorrelationID: predicted.CorrelationID,
		})
		a.state.mu.Unlock()
		a.Log().Info("Prediction ignored due to pending decision",
			"equipment_id", predicted.EquipmentID,
			"pending_request_id", pending.RequestID,
			"correlation_id", predicted.CorrelationID)
		return nil
	}

	a.state.predictions[predicted.EventID] = predicted
	if route.autoApprove {
		a.state.appendLog(DecisionLogEntry{
			Type:          LogTypeAutoApproval,
			Rationale:     route.rationale,
			Action:        "schedule_maintenance",
			Context:       decisionContext(predicted, route.rationale),
			CorrelationID: predicted.CorrelationID,
		})
	} else {
		a.state.pending[predicted.EquipmentID] = PendingApproval{
			RequestID: requestID,
			Timestamp: time.Now().UTC(),
		}
		a.state.requestPred[requestID] = predicted.EventID
		a.state.appendLog(DecisionLogEntry{
			Type:          LogTypeHumanApproval,
			Rationale:     route.rationale,
			Action:        "request_human_decision",
			Context:       decisionContext(predicted, route.rationale),
			CorrelationID: predicted.CorrelationID,
		})
	}
	a.state.mu.Unlock()

	if route.autoApprove {
		return a.emitScheduleCommand(predicted, route.urgency, true, false)
	}
	return a.emitDecisionRequest(predicted, requestID, route)
}

// route applies the decision table. TTF exactly at the urgent boundary is
// routine; confidence exactly at a threshold meets it.
func (a *Agent) route(p *events.MaintenancePredicted) routing {
	ttf := p.TimeToFailureDays
	c := p.PredictionConfidence
	veryUrgentDays := a.cfg.UrgentMaintenanceDays * a.cfg.VeryUrgentFactor
	high := c >= a.cfg.HighConfidenceThreshold
	moderate := c >= a.cfg.ModerateConfidenceThreshold

	switch {
	case ttf < veryUrgentDays && high:
		return routing{autoApprove: true, urgency: models.UrgencyHigh,
			rationale: fmt.Sprintf("Auto-approving very urgent maintenance: high confidence (%.2f) with %.1f days to failure", c, ttf)}
	case ttf < veryUrgentDays:
		return routing{priority: models.DecisionPriorityHigh,
			rationale: fmt.Sprintf("Very urgent horizon (%.1f days) but confidence %.2f below high threshold, requesting human decision", ttf, c)}
	case ttf < a.cfg.UrgentMaintenanceDays && high:
		return routing{autoApprove: true, urgency: models.UrgencyHigh,
			rationale: fmt.Sprintf("Auto-approving urgent maintenance: high confidence (%.2f) with %.1f days to failure", c, ttf)}
	case ttf < a.cfg.UrgentMaintenanceDays:
		return routing{priority: models.DecisionPriorityHigh,
			rationale: fmt.Sprintf("Urgent horizon (%.1f days) with confidence %.2f, requesting human decision", ttf, c)}
	case high:
		return routing{autoApprove: true, urgency: models.UrgencyMedium,
			rationale: fmt.Sprintf("Auto-approving routine maintenance: high confidence (%.2f) with %.1f days to failure", c, ttf)}
	case moderate && ttf < a.cfg.AutoApprovalMaxDays:
		return routing{autoApprove: true, urgency: models.UrgencyMedium,
			rationale: fmt.Sprintf("Auto-approving routine maintenance: moderate confidence (%.2f) within the %.0f-day auto-approval window", c, a.cfg.AutoApprovalMaxDays)}
	case moderate:
		return routing{priority: models.DecisionPriorityMedium,
			rationale: fmt.Sprintf("Moderate confidence (%.2f) with a long horizon (%.1f days), requesting human decision", c, ttf)}
	default:
		return routing{priority: models.DecisionPriorityMedium,
			rationale: fmt.Sprintf("Low confidence (%.2f), requesting human decision", c)}
	}
}

// handleHumanDecisionResponse applies an operator's answer. The pending
// lock for the equipment is cleared whatever the decision was.
func (a *Agent) handleHumanDecisionResponse(_ context.Context, e events.Event) error {
	response, ok := e.(*events.HumanDecisionResponse)
	if !ok {
		return fmt.Errorf("%w: expected HumanDecisionResponse, got %s", agent.ErrDataValidation, e.Base().EventType)
	}
	requestID := response.Payload.RequestID

	a.state.mu.Lock()
	predictionID, known := a.state.requestPred[requestID]
	if !known {
		a.state.mu.Unlock()
		return fmt.Errorf("%w: no prediction recorded for decision request %s", agent.ErrWorkflow, requestID)
	}
	predicted := a.state.predictions[predictionID]
	if _, seen := a.state.decisions[requestID]; seen {
		delete(a.state.pending, predicted.EquipmentID)
		a.state.mu.Unlock()
		a.Log().Info("Duplicate decision response ignored",
			"request_id", requestID, "correlation_id", response.CorrelationID)
		return nil
	}
	a.state.decisions[requestID] = response.Payload
	delete(a.state.pending, predicted.EquipmentID)
	a.state.appendLog(DecisionLogEntry{
		Type:      LogTypeHumanDecision,
		Rationale: fmt.Sprintf("Human decision %q for %s", response.Payload.Decision, predicted.EquipmentID),
		Action:    response.Payload.Decision,
		Context: map[string]any{
			"request_id":   requestID,
			"equipment_id": predicted.EquipmentID,
			"decided_by":   response.Payload.DecidedBy,
		},
		CorrelationID: response.CorrelationID,
	})
	a.state.mu.Unlock()

	if !response.Payload.Approved() {
		a.Log().Info("Human decision did not approve maintenance, no command emitted",
			"request_id", requestID,
			"decision", response.Payload.Decision,
			"equipment_id", predicted.EquipmentID,
			"correlation_id", response.CorrelationID)
		return nil
	}
	return a.emitScheduleCommand(predicted, models.UrgencyHigh, false, true)
}

// emitScheduleCommand publishes a ScheduleMaintenanceCommand derived from a
// prediction.
func (a *Agent) emitScheduleCommand(p *events.MaintenancePredicted, urgency models.UrgencyLevel, auto, human bool) error {
	command := &events.ScheduleMaintenanceCommand{
		BaseEvent: events.DeriveBase(events.TypeScheduleMaintenanceCommand, p),
		MaintenanceData: map[string]any{
			"equipment_id":           p.EquipmentID,
			"maintenance_type":       string(p.MaintenanceType),
			"predicted_failure_date": p.PredictedFailureDate,
			"time_to_failure_days":   p.TimeToFailureDays,
			"prediction_confidence":  p.PredictionConfidence,
			"recommended_actions":    p.RecommendedActions,
		},
		UrgencyLevel:            urgency,
		AutoApproved:            auto,
		HumanApproved:           human,
		SourcePredictionEventID: p.EventID,
	}
	if err := a.Bus().Publish(command); err != nil {
		return fmt.Errorf("%w: publishing ScheduleMaintenanceCommand: %w", agent.ErrEventPublish, err)
	}
	a.Log().Info("Maintenance command emitted",
		"equipment_id", p.EquipmentID,
		"urgency_level", urgency,
		"auto_approved", auto,
		"human_approved", human,
		"correlation_id", command.CorrelationID)
	return nil
}

// emitDecisionRequest publishes HumanDecisionRequired. The pending lock was
// already set; a publish failure rolls it back so the equipment is not
// locked out.
func (a *Agent) emitDecisionRequest(p *events.MaintenancePredicted, requestID string, route routing) error {
	request := &events.HumanDecisionRequired{
		BaseEvent: events.DeriveBase(events.TypeHumanDecisionRequired, p),
		Payload: models.DecisionRequest{
			RequestID:    requestID,
			DecisionType: models.DecisionTypeMaintenanceApproval,
			Priority:     route.priority,
			Options:      []string{models.DecisionApprove, models.DecisionModify, models.DecisionReject, models.DecisionDefer},
			Context:      decisionContext(p, route.rationale),
			RequestedAt:  time.Now().UTC(),
		},
	}
	if err := a.Bus().Publish(request); err != nil {
		a.state.mu.Lock()
		delete(a.state.pending, p.EquipmentID)
		delete(a.state.requestPred, requestID)
		a.state.mu.Unlock()
		return fmt.Errorf("%w: publishing HumanDecisionRequired: %w", agent.ErrEventPublish, err)
	}
	a.Log().Info("Human decision requested",
		"equipment_id", p.EquipmentID,
		"request_id", requestID,
		"priority", route.priority,
		"correlation_id", request.CorrelationID)
	return nil
}

// decisionContext is the shared context payload attached to decision
// requests and log entries.
func decisionContext(p *events.MaintenancePredicted, urgencyReason string) map[string]any {
	return map[string]any{
		"equipment_id":           p.EquipmentID,
		"time_to_failure_days":   p.TimeToFailureDays,
		"prediction_confidence":  p.PredictionConfidence,
		"maintenance_type":       string(p.MaintenanceType),
		"predicted_failure_date": p.PredictedFailureDate,
		"recommended_actions":    p.RecommendedActions,
		"urgency_reason":         urgencyReason,
	}
}
