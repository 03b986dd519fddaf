package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/predictix/maintflow/pkg/config"
)

// ErrBusStopped is returned by Publish when the bus is not accepting events.
var ErrBusStopped = errors.New("event bus is not running")

// Handler processes one delivered event. Handlers must be safe for
// concurrent invocation across different events; the bus guarantees that
// attempts for the same (event, subscriber) pair run sequentially.
type Handler func(ctx context.Context, e Event) error

// subscription pairs a stable handler name with its function. The name is
// the identity used for idempotent registration and for DLQ records.
type subscription struct {
	name string
	fn   Handler
}

// Bus is the in-process typed event bus. It routes each published event to
// every subscriber of the event's type, concurrently across subscribers,
// with bounded per-subscriber retries and dead-lettering of final failures.
//
// A subscriber's failure never affects other subscribers or later events.
type Bus struct {
	cfg *config.BusConfig
	dlq DLQSink

	mu      sync.RWMutex
	subs    map[string][]subscription
	running bool

	// wg tracks in-flight dispatches so Stop can drain them.
	wg sync.WaitGroup

	published    atomic.Int64
	deadLettered atomic.Int64
	failures     atomic.Int64
}

// BusStats is a point-in-time snapshot of bus counters.
type BusStats struct {
	Running         bool  `json:"running"`
	Published       int64 `json:"published"`
	HandlerFailures int64 `json:"handler_failures"` // individual failed attempts
	DeadLettered    int64 `json:"dead_lettered"`
}

// NewBus creates an event bus. dlq may be nil when dead-lettering is
// disabled; final failures are then only logged.
func NewBus(cfg *config.BusConfig, dlq DLQSink) *Bus {
	return &Bus{
		cfg:  cfg,
		dlq:  dlq,
		subs: make(map[string][]subscription),
	}
}

// Start makes the bus accept Publish calls. Safe to call multiple times.
func (b *Bus) Start() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.running {
		return
	}
	b.running = true
	slog.Info("Event bus started",
		"max_retries", b.cfg.MaxRetries,
		"retry_delay", b.cfg.RetryDelay,
		"dlq_enabled", b.dlq != nil)
}

// Stop rejects new publishes and drains in-flight dispatches before
// returning. In-flight handlers are never force-cancelled.
func (b *Bus) Stop() {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return
	}
	b.running = false
	b.mu.Unlock()

	b.wg.Wait()
	slog.Info("Event bus stopped", "published", b.published.Load(), "dead_lettered", b.deadLettered.Load())
}

// Subscribe registers a named handler for one event type. Registration is
// idempotent: a second Subscribe with the same (eventType, name) is a no-op.
func (b *Bus) Subscribe(eventType, name string, fn Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range b.subs[eventType] {
		if sub.name == name {
			return
		}
	}
	b.subs[eventType] = append(b.subs[eventType], subscription{name: name, fn: fn})
	slog.Debug("Subscribed handler", "event_type", eventType, "handler", name)
}

// Unsubscribe removes a registration. Missing entries are a no-op.
func (b *Bus) Unsubscribe(eventType, name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subs[eventType]
	for i, sub := range subs {
		if sub.name == name {
			b.subs[eventType] = append(subs[:i:i], subs[i+1:]...)
			return
		}
	}
}

// Publish dispatches the event to every subscriber registered at call time
// and returns without waiting for handlers. Handler failures never surface
// here; they are retried and finally dead-lettered. The only errors are a
// nil event or a stopped bus.
func (b *Bus) Publish(e Event) error {
	if e == nil {
		return fmt.Errorf("cannot publish nil event")
	}

	b.mu.RLock()
	if !b.running {
		b.mu.RUnlock()
		return fmt.Errorf("publish %s: %w", e.Base().EventType, ErrBusStopped)
	}
	// Snapshot under the read lock so concurrent (un)subscribes cannot
	// affect this dispatch. The WaitGroup is also bumped under the lock:
	// Stop flips running under the write lock before it waits, so every
	// dispatch that passed the running check is registered before Wait can
	// observe the counter.
	subs := make([]subscription, len(b.subs[e.Base().EventType]))
	copy(subs, b.subs[e.Base().EventType])
	b.wg.Add(len(subs))
	b.mu.RUnlock()

	b.published.Add(1)

	for _, sub := range subs {
		go b.dispatch(e, sub)
	}
	return nil
}

// Stats returns a snapshot of the bus counters.
func (b *Bus) Stats() BusStats {
	b.mu.RLock()
	running := b.running
	b.mu.RUnlock()
	return BusStats{
		Running:         running,
		Published:       b.published.Load(),
		HandlerFailures: b.failures.Load(),
		DeadLettered:    b.deadLettered.Load(),
	}
}

// dispatch delivers one event to one subscriber with bounded retries.
// Attempts are sequential with a constant delay between them.
func (b *Bus) dispatch(e Event, sub subscription) {
	defer b.wg.Done()

	base := e.Base()
	maxAttempts := b.cfg.MaxRetries + 1

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		lastErr = b.invoke(sub, e)
		if lastErr == nil {
			return
		}

		b.failures.Add(1)
		slog.Warn("Event handler failed",
			"event_type", base.EventType,
			"event_id", base.EventID,
			"correlation_id", base.CorrelationID,
			"handler", sub.name,
			"attempt", attempt,
			"max_attempts", maxAttempts,
			"error", lastErr)

		if attempt < maxAttempts {
			time.Sleep(b.cfg.RetryDelay)
		}
	}

	b.deadLetter(e, sub, lastErr, maxAttempts)
}

// invoke runs one handler attempt, converting a panic into an error so a
// misbehaving handler cannot take down the dispatcher.
func (b *Bus) invoke(sub subscription, e Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return sub.fn(context.Background(), e)
}

// deadLetter records a final failure. With no sink configured it only logs.
func (b *Bus) deadLetter(e Event, sub subscription, cause error, attempts int) {
	base := e.Base()
	b.deadLettered.Add(1)

	slog.Error("Event handler exhausted retries",
		"event_type", base.EventType,
		"event_id", base.EventID,
		"correlation_id", base.CorrelationID,
		"handler", sub.name,
		"attempts", attempts,
		"error", cause)

	if b.dlq == nil {
		return
	}
	b.dlq.Write(DLQRecord{
		EventType:   base.EventType,
		HandlerName: sub.name,
		Error:       cause.Error(),
		EventData:   serializeEventData(e),
		Attempts:    attempts,
		Timestamp:   time.Now().UTC().Format(time.RFC3339Nano),
	})
}
