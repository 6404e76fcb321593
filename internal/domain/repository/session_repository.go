// Package repository defines the interfaces for the persistence layer.
package repository

import (
	"context"
	"time"

	"academy/internal/domain/entity"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Domain-specific errors for session persistence.
var (
	// ErrSessionNotFound is returned when a session row is absent.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionExpired is returned when a session row exists but is past expiry.
	ErrSessionExpired = errors.New("session has expired")
)

// SessionRepository defines the operations backing the session registry.
// Reads are row-level and safe at high frequency; bulk deletes use
// delete-where semantics so concurrent sweeps never race a read-then-delete.
type SessionRepository interface {
	// CreateSession persists a new session record, representing one logged-in device.
	CreateSession(ctx context.Context, session *entity.Session) error

	// FindSessionByID retrieves a session by its opaque id. Rows past their
	// expiry read as ErrSessionExpired, absent rows as ErrSessionNotFound.
	FindSessionByID(ctx context.Context, id uuid.UUID) (*entity.Session, error)

	// FindSessionsByUserID retrieves all non-expired sessions for a user,
	// ordered by most recent activity first so the caller can distinguish the
	// current session from stale ones.
	FindSessionsByUserID(ctx context.Context, userID uuid.UUID) ([]*entity.Session, error)

	// IsSessionValid reports whether the session exists and is not expired.
	// Absent rows and expired rows both read as invalid, without error.
	IsSessionValid(ctx context.Context, id uuid.UUID) (bool, error)

	// TouchSession updates the session's last-activity timestamp.
	TouchSession(ctx context.Context, id uuid.UUID, at time.Time) error

	// DeleteSessionOwned deletes the session only if it belongs to the given
	// user. Returns false when the row is absent or owned by someone else.
	DeleteSessionOwned(ctx context.Context, userID, sessionID uuid.UUID) (bool, error)

	// DeleteSession removes a session by id regardless of ownership (logout path,
	// where possession of the token is the authorization).
	DeleteSession(ctx context.Context, id uuid.UUID) error

	// DeleteSessionsByUserID removes all sessions for a user except the one to
	// keep; pass uuid.Nil to delete every session. Returns the number deleted.
	DeleteSessionsByUserID(ctx context.Context, userID uuid.UUID, keep uuid.UUID) (int64, error)

	// DeleteExpiredSessions removes all sessions past expiry in one statement
	// and returns the number deleted. Idempotent and safe to run concurrently.
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}
