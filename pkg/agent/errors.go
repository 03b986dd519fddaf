package agent

import (
	"errors"
	"fmt"
)

// The agent error taxonomy. Every failure an agent surfaces is classified
// into exactly one of these kinds via errors.Is.
var (
	// ErrConfiguration indicates invalid startup wiring. Fatal to the agent;
	// constructors return it and refuse to build.
	ErrConfiguration = errors.New("configuration error")

	// ErrDataValidation indicates a malformed event payload. Processing
	// stops for that event and a DataProcessingFailed is published.
	ErrDataValidation = errors.New("data validation error")

	// ErrMLModel indicates a model load or predict failure. Detectors
	// degrade gracefully before surfacing it.
	ErrMLModel = errors.New("ml model error")

	// ErrProcessing is the wrap-and-raise kind for unclassified runtime
	// failures inside an agent step.
	ErrProcessing = errors.New("agent processing error")

	// ErrWorkflow indicates an orchestration consistency violation, such as
	// a decision response without matching prediction state.
	ErrWorkflow = errors.New("workflow error")

	// ErrEventPublish indicates the bus rejected a publish after the
	// caller's bounded retries. Callers may continue gracefully.
	ErrEventPublish = errors.New("event publish error")

	// ErrServiceUnavailable indicates an external provider is unreachable.
	// Scoped to the single operation; the agent keeps running.
	ErrServiceUnavailable = errors.New("service unavailable")
)

// Kind names the taxonomy bucket an error belongs to, for structured logs.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrDataValidation):
		return "data_validation"
	case errors.Is(err, ErrMLModel):
		return "ml_model"
	case errors.Is(err, ErrWorkflow):
		return "workflow"
	case errors.Is(err, ErrEventPublish):
		return "event_publish"
	case errors.Is(err, ErrServiceUnavailable):
		return "service_unavailable"
	case errors.Is(err, ErrProcessing):
		return "processing"
	default:
		return "unclassified"
	}
}

// Classify maps an arbitrary error into the taxonomy. Errors already
// carrying a taxonomy kind pass through unchanged; anything else is wrapped
// as an agent processing error.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if Kind(err) != "unclassified" {
		return err
	}
	return fmt.Errorf("%w: %w", ErrProcessing, err)
}
