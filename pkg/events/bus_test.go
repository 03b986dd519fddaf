package events

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/predictix/maintflow/pkg/config"
)

// memorySink captures DLQ records for assertions.
type memorySink struct {
	mu      sync.Mutex
	records []DLQRecord
}

func (s *memorySink) Write(rec DLQRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
}

func (s *memorySink) Close() error { return nil }

func (s *memorySink) Records() []DLQRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]DLQRecord, len(s.records))
	copy(out, s.records)
	return out
}

func testBusConfig(maxRetries int) *config.BusConfig {
	return &config.BusConfig{
		MaxRetries: maxRetries,
		RetryDelay: time.Millisecond,
	}
}

func newTestEvent() *SensorDataReceived {
	return &SensorDataReceived{
		BaseEvent: NewBase(TypeSensorDataReceived, ""),
		SensorID:  "pump-1-temp",
		RawData:   map[string]any{"value": 71.3},
	}
}

func TestBusDeliversToAllSubscribers(t *testing.T) {
	bus := NewBus(testBusConfig(0), nil)
	bus.Start()

	var first, second atomic.Int32
	bus.Subscribe(TypeSensorDataReceived, "first", func(_ context.Context, _ Event) error {
		first.Add(1)
		return nil
	})
	bus.Subscribe(TypeSensorDataReceived, "second", func(_ context.Context, _ Event) error {
		second.Add(1)
		return nil
	})

	require.NoError(t, bus.Publish(newTestEvent()))
	bus.Stop()

	assert.Equal(t, int32(1), first.Load())
	assert.Equal(t, int32(1), second.Load())
}

func TestBusRetriesUntilSuccess(t *testing.T) {
	bus := NewBus(testBusConfig(2), nil)
	bus.Start()

	var calls atomic.Int32
	bus.Subscribe(TypeSensorDataReceived, "flaky", func(_ context.Context, _ Event) error {
		if calls.Add(1) < 3 {
			return errors.New("transient")
		}
		return nil
	})

	require.NoError(t, bus.Publish(newTestEvent()))
	bus.Stop()

	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, int64(0), bus.Stats().DeadLettered)
}

func TestBusDeadLettersAfterExhaustedRetries(t *testing.T) {
	sink := &memorySink{}
	cfg := testBusConfig(2)
	bus := NewBus(cfg, sink)
	bus.Start()

	var calls atomic.Int32
	bus.Subscribe(TypeSensorDataReceived, "failing-handler", func(_ context.Context, _ Event) error {
		calls.Add(1)
		return errors.New("permanent failure")
	})

	require.NoError(t, bus.Publish(newTestEvent()))
	bus.Stop()

	// MaxRetries+1 attempts, then exactly one dead-letter record.
	assert.Equal(t, int32(cfg.MaxRetries+1), calls.Load())

	records := sink.Records()
	require.Len(t, records, 1)
	assert.Equal(t, "SensorDataReceivedEvent", records[0].EventType)
	assert.Contains(t, records[0].HandlerName, "failing")
	assert.NotEmpty(t, records[0].Error)
	assert.Equal(t, cfg.MaxRetries+1, records[0].Attempts)
	assert.Equal(t, int64(1), bus.Stats().DeadLettered)
}

func TestBusIsolatesFailingSubscriber(t *testing.T) {
	bus := NewBus(testBusConfig(1), &memorySink{})
	bus.Start()

	var healthy atomic.Int32
	bus.Subscribe(TypeSensorDataReceived, "failing", func(_ context.Context, _ Event) error {
		return errors.New("boom")
	})
	bus.Subscribe(TypeSensorDataReceived, "healthy", func(_ context.Context, _ Event) error {
		healthy.Add(1)
		return nil
	})

	require.NoError(t, bus.Publish(newTestEvent()))
	bus.Stop()

	assert.Equal(t, int32(1), healthy.Load())
}

func TestBusRecoversPanickingHandler(t *testing.T) {
	sink := &memorySink{}
	bus := NewBus(testBusConfig(0), sink)
	bus.Start()

	bus.Subscribe(TypeSensorDataReceived, "panicking", func(_ context.Context, _ Event) error {
		panic("handler blew up")
	})

	require.NoError(t, bus.Publish(newTestEvent()))
	bus.Stop()

	records := sink.Records()
	require.Len(t, records, 1)
	assert.Contains(t, records[0].Error, "panicked")
}

func TestBusStopWaitsForInFlightHandler(t *testing.T) {
	bus := NewBus(testBusConfig(0), nil)
	bus.Start()

	entered := make(chan struct{})
	release := make(chan struct{})
	var completed atomic.Bool
	bus.Subscribe(TypeSensorDataReceived, "slow", func(_ context.Context, _ Event) error {
		close(entered)
		<-release
		completed.Store(true)
		return nil
	})

	require.NoError(t, bus.Publish(newTestEvent()))
	<-entered

	stopped := make(chan struct{})
	go func() {
		bus.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned while a handler was still running")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	<-stopped
	assert.True(t, completed.Load())
}

func TestBusStopDrainsConcurrentPublishers(t *testing.T) {
	// Publishers race Stop; once Stop returns, no handler may run anymore.
	for i := 0; i < 200; i++ {
		bus := NewBus(testBusConfig(0), nil)
		bus.Start()

		var calls atomic.Int64
		bus.Subscribe(TypeSensorDataReceived, "counting", func(_ context.Context, _ Event) error {
			calls.Add(1)
			return nil
		})

		var publishers sync.WaitGroup
		for p := 0; p < 4; p++ {
			publishers.Add(1)
			go func() {
				defer publishers.Done()
				for {
					if err := bus.Publish(newTestEvent()); err != nil {
						return
					}
				}
			}()
		}

		bus.Stop()
		drained := calls.Load()
		publishers.Wait()
		assert.Equal(t, drained, calls.Load(), "handler ran after Stop returned")
	}
}

func TestBusPublishAfterStop(t *testing.T) {
	bus := NewBus(testBusConfig(0), nil)
	bus.Start()
	bus.Stop()

	err := bus.Publish(newTestEvent())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBusStopped)
}

func TestBusPublishNilEvent(t *testing.T) {
	bus := NewBus(testBusConfig(0), nil)
	bus.Start()
	defer bus.Stop()

	assert.Error(t, bus.Publish(nil))
}

func TestBusSubscribeIdempotentByName(t *testing.T) {
	bus := NewBus(testBusConfig(0), nil)
	bus.Start()

	var calls atomic.Int32
	handler := func(_ context.Context, _ Event) error {
		calls.Add(1)
		return nil
	}
	bus.Subscribe(TypeSensorDataReceived, "dup", handler)
	bus.Subscribe(TypeSensorDataReceived, "dup", handler)

	require.NoError(t, bus.Publish(newTestEvent()))
	bus.Stop()

	assert.Equal(t, int32(1), calls.Load())
}

func TestBusUnsubscribe(t *testing.T) {
	bus := NewBus(testBusConfig(0), nil)
	bus.Start()

	var calls atomic.Int32
	bus.Subscribe(TypeSensorDataReceived, "gone", func(_ context.Context, _ Event) error {
		calls.Add(1)
		return nil
	})
	bus.Unsubscribe(TypeSensorDataReceived, "gone")

	require.NoError(t, bus.Publish(newTestEvent()))
	bus.Stop()

	assert.Equal(t, int32(0), calls.Load())
}

func TestCorrelationPropagation(t *testing.T) {
	origin := newTestEvent()
	require.NotEmpty(t, origin.CorrelationID)

	derived := DeriveBase(TypeDataProcessed, origin)
	assert.Equal(t, origin.CorrelationID, derived.CorrelationID)
	assert.NotEqual(t, origin.EventID, derived.EventID)
	assert.Equal(t, TypeDataProcessed, derived.EventType)
}
