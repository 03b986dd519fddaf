package agent

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/predictix/maintflow/pkg/events"
)

// Base provides the common agent runtime: identity, lifecycle status,
// capability registry, health counters, and the Guard wrapper that turns a
// processing function into a bus handler with error classification.
// Concrete agents embed Base and implement their own Start.
type Base struct {
	id  string
	bus EventBus
	log *slog.Logger

	mu     sync.Mutex
	status Status
	caps   []Capability

	processed atomic.Int64
	failed    atomic.Int64
}

// NewBase creates the shared runtime for one agent.
func NewBase(id string, bus EventBus) *Base {
	return &Base{
		id:     id,
		bus:    bus,
		log:    slog.With("agent_id", id),
		status: StatusInitializing,
	}
}

// AgentID returns the agent's stable identifier.
func (b *Base) AgentID() string { return b.id }

// Bus returns the event bus handle the agent was wired with.
func (b *Base) Bus() EventBus { return b.bus }

// Log returns the agent-scoped logger.
func (b *Base) Log() *slog.Logger { return b.log }

// RegisterCapability records one capability descriptor. Called from the
// concrete agent's Start, before any bus subscription.
func (b *Base) RegisterCapability(c Capability) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.caps = append(b.caps, c)
}

// Capabilities returns a copy of the registered descriptors.
func (b *Base) Capabilities() []Capability {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Capability, len(b.caps))
	copy(out, b.caps)
	return out
}

// MarkRunning transitions the agent to running. Call after subscriptions
// are in place.
func (b *Base) MarkRunning() {
	b.setStatus(StatusRunning)
	b.log.Info("Agent started")
}

// MarkStopped transitions the agent to stopped.
func (b *Base) MarkStopped() {
	b.setStatus(StatusStopped)
	b.log.Info("Agent stopped")
}

func (b *Base) setStatus(s Status) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.status = s
}

// Status returns the current lifecycle state.
func (b *Base) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status
}

// Health returns the agent's health snapshot.
func (b *Base) Health() Health {
	return Health{
		AgentID:         b.id,
		Status:          b.Status(),
		Timestamp:       time.Now().UTC(),
		EventsProcessed: b.processed.Load(),
		EventsFailed:    b.failed.Load(),
	}
}

// Guard wraps a processing function into a bus handler. On failure it
// classifies the error into the taxonomy, logs it once with the event's
// correlation ID, updates the health counters, and — for data validation
// failures — publishes a DataProcessingFailed event. The classified error
// is returned to the bus, which owns retry and dead-lettering.
//
// A stopped agent declines events without error so in-flight dispatches
// drain cleanly during shutdown.
func (b *Base) Guard(step string, fn func(ctx context.Context, e events.Event) error) events.Handler {
	return func(ctx context.Context, e events.Event) error {
		if b.Status() == StatusStopped {
			b.log.Debug("Agent stopped, declining event",
				"event_type", e.Base().EventType, "event_id", e.Base().EventID)
			return nil
		}

		err := fn(ctx, e)
		if err == nil {
			b.processed.Add(1)
			return nil
		}

		classified := Classify(err)
		b.failed.Add(1)
		b.log.Error("Processing step failed",
			"step", step,
			"error_kind", Kind(classified),
			"event_type", e.Base().EventType,
			"event_id", e.Base().EventID,
			"correlation_id", e.Base().CorrelationID,
			"error", classified)

		if errors.Is(classified, ErrDataValidation) {
			b.reportProcessingFailure(e, classified)
		}
		return classified
	}
}

// reportProcessingFailure publishes a DataProcessingFailed event for
// observers. Best-effort: a publish failure here is only logged.
func (b *Base) reportProcessingFailure(source events.Event, cause error) {
	failure := &events.DataProcessingFailed{
		BaseEvent:            events.DeriveBase(events.TypeDataProcessingFailed, source),
		AgentID:              b.id,
		ErrorMessage:         cause.Error(),
		Traceback:            string(debug.Stack()),
		OriginalEventType:    source.Base().EventType,
		OriginalEventPayload: eventPayload(source),
	}
	if err := b.bus.Publish(failure); err != nil {
		b.log.Warn("Failed to publish DataProcessingFailed", "error", err)
	}
}

// eventPayload renders the source event as a generic map for failure
// reports. Serialization problems degrade to a minimal envelope.
func eventPayload(e events.Event) map[string]any {
	data, err := json.Marshal(e)
	if err != nil {
		return map[string]any{"event_id": e.Base().EventID}
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return map[string]any{"event_id": e.Base().EventID}
	}
	return out
}
