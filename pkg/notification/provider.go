// Package notification hosts the notification agent and its pluggable
// delivery providers. The agent observes pipeline outcomes and fans them
// out to whichever providers support the requested channel.
package notification

import (
	"context"
	"time"
)

// Channel identifies a delivery mechanism.
type Channel string

// Delivery channels.
const (
	ChannelConsole Channel = "console"
	ChannelEmail   Channel = "email"
	ChannelSMS     Channel = "sms"
)

// Request is one notification to deliver.
type Request struct {
	Channel     Channel        `json:"channel"`
	Recipient   string         `json:"recipient,omitempty"`
	Subject     string         `json:"subject"`
	Body        string         `json:"body"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	RequestedAt time.Time      `json:"requested_at"`
}

// Result reports one delivery attempt.
type Result struct {
	Delivered bool      `json:"delivered"`
	Provider  string    `json:"provider"`
	Detail    string    `json:"detail,omitempty"`
	SentAt    time.Time `json:"sent_at"`
}

// Provider delivers notifications over one or more channels.
type Provider interface {
	Name() string
	Send(ctx context.Context, req Request) (Result, error)
	SupportsChannel(channel Channel) bool
	HealthCheck(ctx context.Context) error
}
