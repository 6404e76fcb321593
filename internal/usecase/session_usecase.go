// Package usecase contains the application-specific business rules.
package usecase

import (
	"context"

	"academy/internal/domain/entity"

	"github.com/google/uuid"
)

// SessionUsecase defines the interface for session management operations.
type SessionUsecase interface {
	// ListSessions returns the user's active sessions, most recently active first.
	ListSessions(ctx context.Context, userID uuid.UUID) ([]*entity.Session, error)

	// RevokeSession deletes one of the user's own sessions. Revoking a session
	// that is already gone reports entity absence, not success.
	RevokeSession(ctx context.Context, userID, sessionID uuid.UUID) error

	// RevokeAllOtherSessions deletes every session of the user except the
	// current one and returns the number revoked.
	RevokeAllOtherSessions(ctx context.Context, userID, currentSessionID uuid.UUID) (int64, error)

	// SweepExpired deletes all expired sessions and returns the number removed.
	// Safe to run concurrently; overlapping sweeps never double-count a row.
	SweepExpired(ctx context.Context) (int64, error)
}
