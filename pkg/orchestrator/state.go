package orchestrator

import (
	"sync"
	"time"

	"github.com/predictix/maintflow/pkg/events"
	"github.com/predictix/maintflow/pkg/models"
)

// Decision log entry types.
const (
	LogTypeAnomalyAssessment = "anomaly_assessment"
	LogTypeAutoApproval      = "auto_approval"
	LogTypeHumanApproval     = "human_approval_requested"
	LogTypeDuplicateHandling = "duplicate_prediction_handling"
	LogTypeHumanDecision     = "human_decision_processed"
)

// DecisionLogEntry is one record in the orchestrator's append-only log.
type DecisionLogEntry struct {
	Type          string         `json:"type"`
	Rationale     string         `json:"rationale"`
	Action        string         `json:"action"`
	Context       map[string]any `json:"context,omitempty"`
	CorrelationID string         `json:"correlation_id"`
	Timestamp     time.Time      `json:"timestamp"`
}

// AnomalySummary is the retained view of one validated anomaly.
type AnomalySummary struct {
	SensorID        string    `json:"sensor_id"`
	Status          string    `json:"status"`
	FinalConfidence float64   `json:"final_confidence"`
	CorrelationID   string    `json:"correlation_id"`
	RecordedAt      time.Time `json:"recorded_at"`
}

// PendingApproval marks an outstanding human decision for one equipment.
// While present, no further decision requests are issued for it.
type PendingApproval struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

// state is the orchestrator's process-wide state. Every mutation and every
// read snapshot holds mu; publishing happens outside the lock.
type state struct {
	mu sync.Mutex

	anomalies   map[string]AnomalySummary               // keyed by anomaly event ID
	predictions map[string]*events.MaintenancePredicted // keyed by prediction event ID
	pending     map[string]PendingApproval              // keyed by equipment ID
	decisions   map[string]models.DecisionResponse      // keyed by request ID
	requestPred map[string]string                       // request ID -> prediction event ID
	log         []DecisionLogEntry
}

func newState() *state {
	return &state{
		anomalies:   make(map[string]AnomalySummary),
		predictions: make(map[string]*events.MaintenancePredicted),
		pending:     make(map[string]PendingApproval),
		decisions:   make(map[string]models.DecisionResponse),
		requestPred: make(map[string]string),
	}
}

func (s *state) appendLog(entry DecisionLogEntry) {
	entry.Timestamp = time.Now().UTC()
	s.log = append(s.log, entry)
}

// DecisionLog returns a snapshot copy of the append-only decision log.
func (a *Agent) DecisionLog() []DecisionLogEntry {
	a.state.mu.Lock()
	defer a.state.mu.Unlock()
	out := make([]DecisionLogEntry, len(a.state.log))
	copy(out, a.state.log)
	return out
}

// PendingApprovals returns a snapshot of outstanding human decisions by
// equipment ID.
func (a *Agent) PendingApprovals() map[string]PendingApproval {
	a.state.mu.Lock()
	defer a.state.mu.Unlock()
	out := make(map[string]PendingApproval, len(a.state.pending))
	for k, v := range a.state.pending {
		out[k] = v
	}
	return out
}

// RecordedDecision returns the stored human response for a request, if any.
func (a *Agent) RecordedDecision(requestID string) (models.DecisionResponse, bool) {
	a.state.mu.Lock()
	defer a.state.mu.Unlock()
	d, ok := a.state.decisions[requestID]
	return d, ok
}
