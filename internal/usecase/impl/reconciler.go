package impl

import (
	"context"
	"log/slog"
	"time"

	"academy/config"
	deliverycontext "academy/internal/delivery/context"
	"academy/internal/domain/repository"
	"academy/internal/domain/service"
	"academy/internal/usecase"

	"github.com/pkg/errors"
	"go.uber.org/fx"
)

// reconcilerService implements the ReconcileUsecase interface. It is the
// bridge between stateless tokens and the session registry: a revoked
// session's token keeps working for at most the reconcile window.
type reconcilerService struct {
	sessionRepo repository.SessionRepository
	metrics     service.MetricsRecorder
	window      time.Duration
	now         func() time.Time
	logger      *slog.Logger
}

// ReconcilerParams holds dependencies for reconcilerService, injected by Fx.
type ReconcilerParams struct {
	fx.In

	SessionRepo repository.SessionRepository
	Metrics     service.MetricsRecorder
	Config      *config.Config
	Logger      *slog.Logger
}

// NewReconcilerService is the constructor for reconcilerService.
func NewReconcilerService(params ReconcilerParams) usecase.ReconcileUsecase {
	window := params.Config.Auth.ReconcileInterval
	if window <= 0 {
		window = time.Minute
	}

	return &reconcilerService{
		sessionRepo: params.SessionRepo,
		metrics:     params.Metrics,
		window:      window,
		now:         time.Now,
		logger:      params.Logger,
	}
}

func (srv *reconcilerService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

// Reconcile checks the claims' backing session when the last check is stale.
// Fresh claims are passed through untouched: at most one registry read per
// session per window, regardless of request rate.
func (srv *reconcilerService) Reconcile(ctx context.Context, claims *service.TokenClaims) (bool, error) {
	now := srv.now()

	if now.Sub(claims.LastValidityCheck) < srv.window {
		srv.metrics.RecordReconciliation(true, false)

		return false, nil
	}

	valid, err := srv.sessionRepo.IsSessionValid(ctx, claims.SessionID)
	if err != nil {
		// Registry unavailability must not log users out: keep the token as it
		// is and retry on a later request. LastValidityCheck stays stale so the
		// next request reconciles again.
		srv.log(ctx).Error("Session registry read failed during reconciliation",
			slog.Any("sessionID", claims.SessionID),
			slog.Any("error", err))
		srv.metrics.RecordReconciliation(false, false)

		return false, errors.Wrap(err, "failed to reconcile session")
	}

	if !valid {
		claims.SessionInvalid = true
		srv.metrics.RecordReconciliation(false, true)
		srv.log(ctx).Info("Reconciliation flagged revoked session",
			slog.Any("userID", claims.UserID),
			slog.Any("sessionID", claims.SessionID))

		return false, nil
	}

	// The session lives: refresh the claim and note the activity for listings.
	claims.LastValidityCheck = now
	if err := srv.sessionRepo.TouchSession(ctx, claims.SessionID, now); err != nil {
		// Activity tracking is best effort; the rewritten claim still stands.
		srv.log(ctx).Warn("Failed to touch session during reconciliation",
			slog.Any("sessionID", claims.SessionID),
			slog.Any("error", err))
	}
	srv.metrics.RecordReconciliation(false, false)

	return true, nil
}
