package impl

import (
	"context"
	"log/slog"
	"time"

	deliverycontext "academy/internal/delivery/context"
	"academy/internal/domain/entity"
	domainerrors "academy/internal/domain/errors"
	"academy/internal/domain/repository"
	"academy/internal/usecase"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/fx"
)

// sessionService implements the SessionUsecase interface.
type sessionService struct {
	sessionRepo repository.SessionRepository
	logger      *slog.Logger
}

// SessionServiceParams holds dependencies for sessionService, injected by Fx.
type SessionServiceParams struct {
	fx.In

	SessionRepo repository.SessionRepository
	Logger      *slog.Logger
}

// NewSessionService is the constructor for sessionService.
func NewSessionService(params SessionServiceParams) usecase.SessionUsecase {
	return &sessionService{
		sessionRepo: params.SessionRepo,
		logger:      params.Logger,
	}
}

func (srv *sessionService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

// ListSessions returns the user's active sessions, most recently active first.
func (srv *sessionService) ListSessions(ctx context.Context, userID uuid.UUID) ([]*entity.Session, error) {
	sessions, err := srv.sessionRepo.FindSessionsByUserID(ctx, userID)
	if err != nil {
		srv.log(ctx).Error("Failed to list sessions", slog.Any("userID", userID), slog.Any("error", err))

		return nil, errors.Wrap(err, "failed to list sessions")
	}

	return sessions, nil
}

// RevokeSession deletes one of the user's own sessions. The ownership check
// and the delete are a single statement, so there is no window where another
// user's session id could be confirmed to exist.
func (srv *sessionService) RevokeSession(ctx context.Context, userID, sessionID uuid.UUID) error {
	deleted, err := srv.sessionRepo.DeleteSessionOwned(ctx, userID, sessionID)
	if err != nil {
		srv.log(ctx).Error("Failed to revoke session", slog.Any("userID", userID), slog.Any("sessionID", sessionID), slog.Any("error", err))

		return errors.Wrap(err, "failed to revoke session")
	}
	if !deleted {
		// Absent and not-owned are indistinguishable on purpose.
		return domainerrors.ErrSessionNotFound
	}

	srv.log(ctx).Info("Successfully revoked session", slog.Any("userID", userID), slog.Any("sessionID", sessionID))

	return nil
}

// RevokeAllOtherSessions deletes every session of the user except the current one.
func (srv *sessionService) RevokeAllOtherSessions(ctx context.Context, userID, currentSessionID uuid.UUID) (int64, error) {
	revoked, err := srv.sessionRepo.DeleteSessionsByUserID(ctx, userID, currentSessionID)
	if err != nil {
		srv.log(ctx).Error("Failed to revoke other sessions", slog.Any("userID", userID), slog.Any("error", err))

		return 0, errors.Wrap(err, "failed to revoke other sessions")
	}

	srv.log(ctx).Info("Successfully revoked other sessions",
		slog.Any("userID", userID),
		slog.Int64("revoked", revoked))

	return revoked, nil
}

// SweepExpired deletes all expired sessions in one statement. Overlapping
// sweeps are safe: each expired row is counted by exactly one of them.
func (srv *sessionService) SweepExpired(ctx context.Context) (int64, error) {
	removed, err := srv.sessionRepo.DeleteExpiredSessions(ctx, time.Now())
	if err != nil {
		srv.log(ctx).Error("Failed to sweep expired sessions", slog.Any("error", err))

		return 0, errors.Wrap(err, "failed to sweep expired sessions")
	}

	if removed > 0 {
		srv.log(ctx).Info("Successfully swept expired sessions", slog.Int64("removed", removed))
	}

	return removed, nil
}
