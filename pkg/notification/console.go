package notification

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// ConsoleProvider writes notifications to a writer, one block per
// notification. The default target is stdout.
type ConsoleProvider struct {
	mu  sync.Mutex
	out io.Writer
}

// NewConsoleProvider creates a console provider writing to stdout.
func NewConsoleProvider() *ConsoleProvider {
	return &ConsoleProvider{out: os.Stdout}
}

// NewConsoleProviderTo creates a console provider writing to w.
func NewConsoleProviderTo(w io.Writer) *ConsoleProvider {
	return &ConsoleProvider{out: w}
}

// Name implements Provider.
func (p *ConsoleProvider) Name() string { return "console" }

// SupportsChannel implements Provider.
func (p *ConsoleProvider) SupportsChannel(channel Channel) bool {
	return channel == ChannelConsole
}

// HealthCheck implements Provider.
func (p *ConsoleProvider) HealthCheck(_ context.Context) error { return nil }

// Send implements Provider.
func (p *ConsoleProvider) Send(_ context.Context, req Request) (Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now().UTC()
	if _, err := fmt.Fprintf(p.out, "=== NOTIFICATION [%s] ===\n%s\n\n%s\n\n",
		now.Format(time.RFC3339), req.Subject, req.Body); err != nil {
		return Result{Provider: p.Name(), SentAt: now}, fmt.Errorf("console write failed: %w", err)
	}
	return Result{Delivered: true, Provider: p.Name(), SentAt: now}, nil
}
