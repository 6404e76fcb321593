// Package usecase contains the application-specific business rules.
package usecase

import (
	"context"

	"academy/internal/domain/entity"

	"github.com/google/uuid"
)

// AttemptRecord is everything the recorder needs to persist one attempt:
// the outcome plus the client context resolved at the delivery edge.
type AttemptRecord struct {
	UserID        *uuid.UUID // nil when the email resolved to no account.
	Email         string
	Success       bool
	FailureReason entity.FailureReason
	ClientContext entity.ClientContext
	RequestID     string
}

// AttemptRecorder persists login attempts and drives anomaly evaluation.
// Recording is strictly observational: it has no error return because no
// recording failure is allowed to alter an authentication outcome.
type AttemptRecorder interface {
	// Record enriches, persists, publishes, and evaluates one attempt.
	// All failures inside are logged and discarded.
	Record(ctx context.Context, rec AttemptRecord)
}

// AnomalyDetector classifies one recorded attempt against the account's
// attempt history and dispatches alerts for what it finds.
type AnomalyDetector interface {
	// Evaluate runs the detection rules for the attempt and returns the
	// signals raised. Detection requires a known principal; attempts with a
	// nil UserID only feed the burst counters via their stored row.
	Evaluate(ctx context.Context, attempt *entity.LoginAttempt) ([]*entity.AnomalySignal, error)
}
