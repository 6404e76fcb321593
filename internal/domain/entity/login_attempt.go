package entity

import (
	"time"

	"github.com/google/uuid"
)

// FailureReason is the closed taxonomy of authentication failure outcomes.
// The values are stable identifiers used both for logging and for the
// failure_reason column on login attempts.
type FailureReason string

const (
	FailureReasonUserNotFound     FailureReason = "user_not_found"
	FailureReasonAccountNotActive FailureReason = "account_not_active"
	FailureReasonPasswordNotSet   FailureReason = "password_not_set"
	FailureReasonInvalidPassword  FailureReason = "invalid_password"
	FailureReasonInvalidInput     FailureReason = "invalid_input"
	FailureReasonUnknownError     FailureReason = "unknown_error"
)

// LoginAttempt is an immutable, append-only record of one authentication
// attempt. UserID is nil when the submitted email did not resolve to any
// account; the attempt is still recorded for burst detection by email.
type LoginAttempt struct {
	ID            uuid.UUID     // Unique id of the attempt row.
	UserID        *uuid.UUID    // The account, or nil if the email matched nothing.
	Email         string        // The email exactly as submitted (lowercased).
	Success       bool          // Whether authentication succeeded.
	FailureReason FailureReason // Empty on success; one taxonomy value on failure.
	ClientContext ClientContext // Resolved context at attempt time.
	CreatedAt     time.Time     // Attempt timestamp.
}

// AnomalyKind names a detected security-anomaly condition.
type AnomalyKind string

const (
	// AnomalyNewLocation is a successful login from a (city, country) pair the
	// account has never logged in from before.
	AnomalyNewLocation AnomalyKind = "new_location"
	// AnomalyBurstFailure is a run of failed logins for one email inside a
	// rolling window, the shape of credential stuffing or brute force.
	AnomalyBurstFailure AnomalyKind = "burst_failure"
)

// AnomalySignal is the derived classification of one attempt against history.
// It is computed per attempt and never persisted as its own row.
type AnomalySignal struct {
	Kind       AnomalyKind
	Attempt    *LoginAttempt
	FailCount  int // For burst_failure: failed attempts in the trailing window, current attempt included.
	DetectedAt time.Time
}
