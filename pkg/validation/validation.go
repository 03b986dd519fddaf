// Package validation hosts the anomaly validation agent. It re-scores
// detected anomalies with a pluggable rule engine and historical context,
// then classifies them as credible, suspected false positives, or
// uncertain.
package validation

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/predictix/maintflow/pkg/agent"
	"github.com/predictix/maintflow/pkg/config"
	"github.com/predictix/maintflow/pkg/events"
	"github.com/predictix/maintflow/pkg/models"
	"github.com/predictix/maintflow/pkg/storage"
)

// AgentID is the validation agent's stable identifier.
const AgentID = "anomaly-validation-agent"

// Historical adjustment constants.
const (
	stabilityTolerance  = 0.05 // mean within 5% of current value
	stabilityAdjustment = -0.10
	recurringPairRatio  = 0.25 // more than 25% of consecutive pairs
	recurringPairJump   = 0.50 // differ by at least 50%
	recurringAdjustment = -0.05
)

// Agent consumes AnomalyDetected and produces AnomalyValidated.
type Agent struct {
	*agent.Base
	cfg      *config.ValidationConfig
	rules    RuleEngine
	readings storage.ReadingStore
}

// New creates the validation agent.
func New(bus agent.EventBus, cfg *config.ValidationConfig, rules RuleEngine, readings storage.ReadingStore) (*Agent, error) {
	if bus == nil || cfg == nil || rules == nil || readings == nil {
		return nil, fmt.Errorf("%w: validation agent requires a bus, config, rule engine, and reading store", agent.ErrConfiguration)
	}
	return &Agent{
		Base:     agent.NewBase(AgentID, bus),
		cfg:      cfg,
		rules:    rules,
		readings: readings,
	}, nil
}

// Start registers capabilities, subscribes, and marks the agent running.
func (a *Agent) Start(_ context.Context) error {
	a.RegisterCapability(agent.Capability{
		Name:        "anomaly_validation",
		Description: "Adjusts anomaly confidence from rules and historical context",
		InputTypes:  []string{events.TypeAnomalyDetected},
		OutputTypes: []string{events.TypeAnomalyValidated},
	})
	a.Bus().Subscribe(events.TypeAnomalyDetected, AgentID, a.Guard("validate_anomaly", a.validate))
	a.MarkRunning()
	return nil
}

// Stop unsubscribes and marks the agent stopped.
func (a *Agent) Stop() {
	a.Bus().Unsubscribe(events.TypeAnomalyDetected, AgentID)
	a.MarkStopped()
}

// validate handles one AnomalyDetected event.
func (a *Agent) validate(ctx context.Context, e events.Event) error {
	detected, ok := e.(*events.AnomalyDetected)
	if !ok {
		return fmt.Errorf("%w: expected AnomalyDetected, got %s", agent.ErrDataValidation, e.Base().EventType)
	}
	reading := detected.TriggeringData
	if err := reading.Validate(); err != nil {
		return fmt.Errorf("%w: triggering reading: %w", agent.ErrDataValidation, err)
	}

	initial, ok := toFloat(detected.AnomalyDetails["confidence"])
	if !ok {
		return fmt.Errorf("%w: anomaly details carry no numeric confidence", agent.ErrDataValidation)
	}

	rulesDelta, reasons, err := a.rules.EvaluateRules(detected, reading)
	if err != nil {
		return fmt.Errorf("rule evaluation failed: %w", err)
	}

	histDelta, histReasons, histAvailable := a.historicalAdjustment(ctx, reading)
	reasons = append(reasons, histReasons...)

	final := clamp01(initial + rulesDelta + histDelta)
	status := a.classify(final, histAvailable)

	validated := &events.AnomalyValidated{
		BaseEvent:         events.DeriveBase(events.TypeAnomalyValidated, detected),
		OriginalAnomaly:   detected.AnomalyDetails,
		TriggeringReading: reading,
		ValidationStatus:  status,
		FinalConfidence:   final,
		ValidationReasons: reasons,
		ValidatedAt:       time.Now().UTC(),
		AgentID:           AgentID,
	}
	if err := a.Bus().Publish(validated); err != nil {
		return fmt.Errorf("%w: %w", agent.ErrEventPublish, err)
	}

	a.Log().Info("Anomaly validated",
		"sensor_id", reading.SensorID,
		"status", status,
		"initial_confidence", initial,
		"final_confidence", final,
		"correlation_id", validated.CorrelationID)
	return nil
}

// historicalAdjustment applies the two historical-context checks. A fetch
// error contributes a reason but no adjustment, and marks the history as
// unavailable for classification.
func (a *Agent) historicalAdjustment(ctx context.Context, reading models.SensorReading) (delta float64, reasons []string, available bool) {
	history, err := a.readings.GetBySensorID(ctx, reading.SensorID, a.cfg.HistoricalCheckLimit, reading.Timestamp)
	if err != nil {
		a.Log().Warn("Historical context unavailable",
			"sensor_id", reading.SensorID, "error", err)
		return 0, []string{fmt.Sprintf("Historical context unavailable: %v", err)}, false
	}
	if len(history) == 0 {
		return 0, nil, true
	}

	// Recent stability: a current value close to the recent mean weakens
	// the anomaly.
	window := a.cfg.RecentStabilityWindow
	if window > len(history) {
		window = len(history)
	}
	var sum float64
	for _, h := range history[:window] {
		sum += h.Value
	}
	mean := sum / float64(window)
	if reading.Value != 0 && math.Abs(mean-reading.Value)/math.Abs(reading.Value) <= stabilityTolerance {
		delta += stabilityAdjustment
		reasons = append(reasons, "Recent value stability")
	}

	// Recurring anomaly pattern: frequent large jumps in the history
	// suggest the behavior is normal for this sensor.
	if len(history) >= 2 {
		jumps := 0
		pairs := len(history) - 1
		for i := 0; i < pairs; i++ {
			prev, cur := history[i+1].Value, history[i].Value
			if prev == 0 {
				continue
			}
			if math.Abs(cur-prev)/math.Abs(prev) >= recurringPairJump {
				jumps++
			}
		}
		if float64(jumps)/float64(pairs) > recurringPairRatio {
			delta += recurringAdjustment
			reasons = append(reasons, "Recurring anomaly pattern")
		}
	}

	return delta, reasons, true
}

// classify maps a final confidence to a validation status. With no
// historical context available, mid-band confidences ask for further
// investigation rather than plain uncertainty.
func (a *Agent) classify(final float64, histAvailable bool) string {
	switch {
	case final >= a.cfg.CredibleThreshold:
		return events.ValidationStatusCredible
	case final <= a.cfg.FalsePositiveThreshold:
		return events.ValidationStatusFalsePositive
	case !histAvailable:
		return events.ValidationStatusInvestigate
	default:
		return events.ValidationStatusUncertain
	}
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}
