package service

import (
	"context"
	"time"
)

// LoginAttemptEvent is the wire shape of one recorded attempt, published for
// downstream consumers (audit pipeline, SIEM forwarder).
type LoginAttemptEvent struct {
	RequestID     string    `json:"request_id,omitempty"` // For distributed tracing.
	AttemptID     string    `json:"attempt_id"`
	UserID        string    `json:"user_id,omitempty"` // Empty when the email resolved to no account.
	Email         string    `json:"email"`
	Success       bool      `json:"success"`
	FailureReason string    `json:"failure_reason,omitempty"`
	IPAddress     string    `json:"ip_address"`
	City          string    `json:"city,omitempty"`
	Country       string    `json:"country,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// EventPublisher defines the interface for publishing events to a message queue.
type EventPublisher interface {
	// PublishLoginAttempt publishes one attempt event for async processing.
	PublishLoginAttempt(ctx context.Context, event *LoginAttemptEvent) error

	// Close releases any resources held by the publisher.
	Close() error
}
