// Package repository defines the interfaces for the persistence layer.
package repository

import (
	"context"
	"time"

	"academy/internal/domain/entity"

	"github.com/google/uuid"
)

// LoginAttemptRepository persists the append-only login-attempt history and
// answers the two counting queries anomaly detection runs against it. The
// history is the single source of truth for detection, so the counts must be
// served from storage rather than any per-process state.
type LoginAttemptRepository interface {
	// CreateAttempt appends one immutable attempt row. Rows are never updated or deleted here.
	CreateAttempt(ctx context.Context, attempt *entity.LoginAttempt) error

	// CountSuccessesAtLocation counts the user's successful attempts from the
	// exact (city, country) pair with timestamps strictly before the given instant.
	CountSuccessesAtLocation(ctx context.Context, userID uuid.UUID, city, country string, before time.Time) (int64, error)

	// CountFailuresByEmail counts failed attempts for the submitted email in the
	// window (until-window, until], inclusive of an attempt stamped exactly at until.
	CountFailuresByEmail(ctx context.Context, email string, since, until time.Time) (int64, error)

	// FindRecentByEmail returns the most recent attempts for an email, newest
	// first, capped at limit. Used by the security review surface.
	FindRecentByEmail(ctx context.Context, email string, limit int) ([]*entity.LoginAttempt, error)
}
