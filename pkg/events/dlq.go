package events

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
)

// maxDLQEventBytes caps the serialized event payload stored in one DLQ
// record. Larger payloads are replaced with a minimal envelope so a single
// oversized event cannot bloat the dead-letter file.
const maxDLQEventBytes = 8000

// DLQRecord is one structured dead-letter entry: a (event, handler) pair
// whose delivery exhausted all retry attempts.
type DLQRecord struct {
	EventType   string          `json:"event_type"`
	HandlerName string          `json:"handler_name"`
	Error       string          `json:"error"`
	EventData   json.RawMessage `json:"event_data"`
	Attempts    int             `json:"attempts"`
	Timestamp   string          `json:"timestamp"` // RFC3339Nano
}

// DLQSink receives dead-letter records. Implementations must be safe for
// concurrent use; the bus writes from dispatch goroutines.
type DLQSink interface {
	Write(rec DLQRecord)
	Close() error
}

// FileDLQ writes dead-letter records as JSON lines to a file, or to stderr
// when no path is configured.
type FileDLQ struct {
	mu   sync.Mutex
	out  *os.File
	ownd bool // whether Close should close out
}

// NewFileDLQ opens (appending) the dead-letter file at path. An empty path
// selects stderr.
func NewFileDLQ(path string) (*FileDLQ, error) {
	if path == "" {
		return &FileDLQ{out: os.Stderr}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open DLQ file %s: %w", path, err)
	}
	return &FileDLQ{out: f, ownd: true}, nil
}

// Write appends one record as a JSON line. Failures to write are logged and
// swallowed: the DLQ is best-effort and must never fail a dispatch.
func (d *FileDLQ) Write(rec DLQRecord) {
	line, err := json.Marshal(rec)
	if err != nil {
		slog.Error("Failed to marshal DLQ record", "event_type", rec.EventType, "error", err)
		return
	}
	line = append(line, '\n')

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, err := d.out.Write(line); err != nil {
		slog.Error("Failed to write DLQ record", "event_type", rec.EventType, "error", err)
	}
}

// Close releases the underlying file (no-op for stderr).
func (d *FileDLQ) Close() error {
	if !d.ownd {
		return nil
	}
	return d.out.Close()
}

// serializeEventData renders an event for a DLQ record defensively:
// timestamps marshal as RFC3339 via encoding/json, marshal failures fall
// back to a stringified form, and oversized payloads are replaced with a
// minimal envelope marked truncated.
func serializeEventData(e Event) json.RawMessage {
	data, err := json.Marshal(e)
	if err != nil {
		fallback, _ := json.Marshal(map[string]any{
			"event_id":      e.Base().EventID,
			"event_type":    e.Base().EventType,
			"marshal_error": err.Error(),
			"stringified":   truncateString(fmt.Sprintf("%+v", e), 512),
		})
		return fallback
	}
	if len(data) <= maxDLQEventBytes {
		return data
	}

	base := e.Base()
	truncated, _ := json.Marshal(map[string]any{
		"event_id":       base.EventID,
		"event_type":     base.EventType,
		"correlation_id": base.CorrelationID,
		"truncated":      true,
		"original_bytes": len(data),
	})
	return truncated
}

func truncateString(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
