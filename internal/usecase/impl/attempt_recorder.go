package impl

import (
	"context"
	"log/slog"
	"time"

	deliverycontext "academy/internal/delivery/context"
	"academy/internal/domain/entity"
	"academy/internal/domain/repository"
	"academy/internal/domain/service"
	"academy/internal/usecase"

	"go.uber.org/fx"
)

// attemptRecorder implements the AttemptRecorder interface. It is the
// observational tail of every login: enrich, persist, publish, evaluate.
// Nothing in here may change an authentication outcome, so Record returns
// nothing and every internal failure is logged and dropped.
type attemptRecorder struct {
	attemptRepo repository.LoginAttemptRepository
	geoResolver service.GeolocationResolver
	publisher   service.EventPublisher
	detector    usecase.AnomalyDetector
	metrics     service.MetricsRecorder
	logger      *slog.Logger
}

// AttemptRecorderParams holds dependencies for attemptRecorder, injected by Fx.
type AttemptRecorderParams struct {
	fx.In

	AttemptRepo repository.LoginAttemptRepository
	GeoResolver service.GeolocationResolver
	Publisher   service.EventPublisher
	Detector    usecase.AnomalyDetector
	Metrics     service.MetricsRecorder
	Logger      *slog.Logger
}

// NewAttemptRecorder is the constructor for attemptRecorder.
func NewAttemptRecorder(params AttemptRecorderParams) usecase.AttemptRecorder {
	return &attemptRecorder{
		attemptRepo: params.AttemptRepo,
		geoResolver: params.GeoResolver,
		publisher:   params.Publisher,
		detector:    params.Detector,
		metrics:     params.Metrics,
		logger:      params.Logger,
	}
}

func (srv *attemptRecorder) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

// Record enriches, persists, publishes, and evaluates one attempt.
func (srv *attemptRecorder) Record(ctx context.Context, rec usecase.AttemptRecord) {
	srv.metrics.RecordLoginAttempt(rec.Success, rec.FailureReason)

	attempt := &entity.LoginAttempt{
		UserID:        rec.UserID,
		Email:         rec.Email,
		Success:       rec.Success,
		FailureReason: rec.FailureReason,
		ClientContext: rec.ClientContext,
		CreatedAt:     time.Now(),
	}

	// Fill in the location when the edge did not already resolve it. A failed
	// lookup leaves the location empty; the attempt is stored regardless.
	if attempt.ClientContext.Location.IsZero() && attempt.ClientContext.IPAddress != "" {
		loc, err := srv.geoResolver.Resolve(ctx, attempt.ClientContext.IPAddress)
		if err != nil {
			srv.log(ctx).Warn("Failed to resolve attempt location",
				slog.String("ip", attempt.ClientContext.IPAddress),
				slog.Any("error", err))
		} else {
			attempt.ClientContext.Location = loc
		}
	}

	if err := srv.attemptRepo.CreateAttempt(ctx, attempt); err != nil {
		// Without a stored row there is no history to evaluate against; give up
		// on this attempt entirely.
		srv.log(ctx).Error("Failed to persist login attempt",
			slog.String("email", attempt.Email),
			slog.Any("error", err))

		return
	}

	srv.publish(ctx, attempt, rec.RequestID)

	// Anomaly evaluation needs a known principal. Attempts against unknown
	// emails still feed the burst counters through their stored rows.
	if attempt.UserID == nil {
		return
	}

	if _, err := srv.detector.Evaluate(ctx, attempt); err != nil {
		srv.log(ctx).Error("Anomaly evaluation failed",
			slog.Any("userID", *attempt.UserID),
			slog.Any("error", err))
	}
}

func (srv *attemptRecorder) publish(ctx context.Context, attempt *entity.LoginAttempt, requestID string) {
	event := &service.LoginAttemptEvent{
		RequestID:     requestID,
		AttemptID:     attempt.ID.String(),
		Email:         attempt.Email,
		Success:       attempt.Success,
		FailureReason: string(attempt.FailureReason),
		IPAddress:     attempt.ClientContext.IPAddress,
		City:          attempt.ClientContext.Location.City,
		Country:       attempt.ClientContext.Location.Country,
		OccurredAt:    attempt.CreatedAt,
	}
	if attempt.UserID != nil {
		event.UserID = attempt.UserID.String()
	}

	if err := srv.publisher.PublishLoginAttempt(ctx, event); err != nil {
		srv.log(ctx).Error("Failed to publish login attempt event",
			slog.String("attemptID", event.AttemptID),
			slog.Any("error", err))
	}
}
