// Package coordinator wires the event bus and the agents into one running
// system: ordered startup and shutdown, the agent registry, and the
// scheduling collaborator.
package coordinator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/predictix/maintflow/pkg/agent"
	"github.com/predictix/maintflow/pkg/events"
)

// Coordinator owns the process-lifetime handles: the bus and the agents,
// in startup order. Agents are started in registration order and stopped
// in reverse, so downstream consumers outlive their producers during
// shutdown.
type Coordinator struct {
	bus    *events.Bus
	agents []agent.Agent
	log    *slog.Logger
}

// New creates a coordinator over a bus.
func New(bus *events.Bus) (*Coordinator, error) {
	if bus == nil {
		return nil, fmt.Errorf("%w: coordinator requires a bus", agent.ErrConfiguration)
	}
	return &Coordinator{
		bus: bus,
		log: slog.With("component", "coordinator"),
	}, nil
}

// Register adds agents in startup order. Call before StartAll.
func (c *Coordinator) Register(agents ...agent.Agent) {
	c.agents = append(c.agents, agents...)
}

// Bus returns the coordinator's bus handle.
func (c *Coordinator) Bus() *events.Bus { return c.bus }

// StartAll starts the bus, then every registered agent in order. On any
// failure the already-started agents are stopped in reverse and the error
// is returned.
func (c *Coordinator) StartAll(ctx context.Context) error {
	c.bus.Start()
	for i, a := range c.agents {
		if err := a.Start(ctx); err != nil {
			c.log.Error("Agent failed to start, rolling back", "agent_id", a.AgentID(), "error", err)
			for j := i - 1; j >= 0; j-- {
				c.agents[j].Stop()
			}
			c.bus.Stop()
			return fmt.Errorf("starting agent %s: %w", a.AgentID(), err)
		}
	}
	c.log.Info("System started", "agents", len(c.agents))
	return nil
}

// StopAll stops agents in reverse registration order, then stops the bus,
// draining in-flight dispatches.
func (c *Coordinator) StopAll() {
	for i := len(c.agents) - 1; i >= 0; i-- {
		c.agents[i].Stop()
	}
	c.bus.Stop()
	c.log.Info("System stopped")
}

// AgentHealth returns the health snapshot of every registered agent.
func (c *Coordinator) AgentHealth() []agent.Health {
	out := make([]agent.Health, 0, len(c.agents))
	for _, a := range c.agents {
		out = append(out, a.Health())
	}
	return out
}

// Capabilities returns the capability descriptors of every registered
// agent, keyed by agent ID.
func (c *Coordinator) Capabilities() map[string][]agent.Capability {
	out := make(map[string][]agent.Capability, len(c.agents))
	for _, a := range c.agents {
		out[a.AgentID()] = a.Capabilities()
	}
	return out
}
