// Package agent provides the runtime every MaintFlow agent is built on:
// the lifecycle contract, the capability descriptor model, health
// reporting, and the error taxonomy used to classify processing failures.
package agent

import (
	"context"
	"time"

	"github.com/predictix/maintflow/pkg/events"
)

// Status is an agent's lifecycle state.
type Status string

// Lifecycle states. Transitions: initializing → running → stopped.
const (
	StatusInitializing Status = "initializing"
	StatusRunning      Status = "running"
	StatusStopped      Status = "stopped"
)

// Capability is a pure descriptor of one function an agent offers,
// consumed by registries and dashboards.
type Capability struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	InputTypes  []string `json:"input_types"`
	OutputTypes []string `json:"output_types"`
}

// Health is a point-in-time snapshot of an agent's state.
type Health struct {
	AgentID         string         `json:"agent_id"`
	Status          Status         `json:"status"`
	Timestamp       time.Time      `json:"timestamp"`
	EventsProcessed int64          `json:"events_processed"`
	EventsFailed    int64          `json:"events_failed"`
	Details         map[string]any `json:"details,omitempty"`
}

// Publisher is the minimal bus surface agents use to emit events.
// Agents depend on this contract rather than the concrete bus so the
// agent ↔ bus reference cycle stays cut; the coordinator wires instances.
type Publisher interface {
	Publish(e events.Event) error
}

// Subscriber is the minimal bus surface agents use to receive events.
type Subscriber interface {
	Subscribe(eventType, name string, fn events.Handler)
	Unsubscribe(eventType, name string)
}

// EventBus is what agents are handed at construction time.
type EventBus interface {
	Publisher
	Subscriber
}

// Agent is the contract every MaintFlow agent satisfies.
// Start must register capabilities before subscribing to the bus.
type Agent interface {
	AgentID() string
	Start(ctx context.Context) error
	Stop()
	Capabilities() []Capability
	Health() Health
}
