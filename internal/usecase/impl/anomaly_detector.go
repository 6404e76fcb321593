package impl

import (
	"context"
	"log/slog"
	"time"

	"academy/config"
	deliverycontext "academy/internal/delivery/context"
	"academy/internal/domain/entity"
	"academy/internal/domain/repository"
	"academy/internal/domain/service"
	"academy/internal/usecase"

	"github.com/pkg/errors"
	"go.uber.org/fx"
)

// anomalyDetector implements the AnomalyDetector interface. It classifies one
// attempt against the account's stored history and dispatches alert mail for
// what it finds.
type anomalyDetector struct {
	attemptRepo    repository.LoginAttemptRepository
	mailer         service.Mailer
	metrics        service.MetricsRecorder
	burstThreshold int
	burstWindow    time.Duration
	logger         *slog.Logger
}

// AnomalyDetectorParams holds dependencies for anomalyDetector, injected by Fx.
type AnomalyDetectorParams struct {
	fx.In

	AttemptRepo repository.LoginAttemptRepository
	Mailer      service.Mailer
	Metrics     service.MetricsRecorder
	Config      *config.Config
	Logger      *slog.Logger
}

// NewAnomalyDetector is the constructor for anomalyDetector.
func NewAnomalyDetector(params AnomalyDetectorParams) usecase.AnomalyDetector {
	threshold := params.Config.Security.BurstThreshold
	if threshold <= 0 {
		threshold = 3
	}
	window := params.Config.Security.BurstWindow
	if window <= 0 {
		window = 15 * time.Minute
	}

	return &anomalyDetector{
		attemptRepo:    params.AttemptRepo,
		mailer:         params.Mailer,
		metrics:        params.Metrics,
		burstThreshold: threshold,
		burstWindow:    window,
		logger:         params.Logger,
	}
}

func (srv *anomalyDetector) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

// Evaluate runs the detection rules for one attempt against stored history.
func (srv *anomalyDetector) Evaluate(ctx context.Context, attempt *entity.LoginAttempt) ([]*entity.AnomalySignal, error) {
	if attempt.UserID == nil {
		return nil, nil
	}

	var signals []*entity.AnomalySignal

	if attempt.Success {
		signal, err := srv.checkNewLocation(ctx, attempt)
		if err != nil {
			return signals, err
		}
		if signal != nil {
			signals = append(signals, signal)
		}

		return signals, nil
	}

	signal, err := srv.checkBurstFailure(ctx, attempt)
	if err != nil {
		return signals, err
	}
	if signal != nil {
		signals = append(signals, signal)
	}

	return signals, nil
}

// checkNewLocation flags a successful login from a (city, country) pair with
// no prior successful login. Attempts whose location could not be resolved
// never raise the signal: an absent location is not a new location.
func (srv *anomalyDetector) checkNewLocation(ctx context.Context, attempt *entity.LoginAttempt) (*entity.AnomalySignal, error) {
	loc := attempt.ClientContext.Location
	if loc.Country == "" {
		return nil, nil
	}

	priorSuccesses, err := srv.attemptRepo.CountSuccessesAtLocation(ctx, *attempt.UserID, loc.City, loc.Country, attempt.CreatedAt)
	if err != nil {
		return nil, errors.Wrap(err, "failed to count prior successes at location")
	}
	if priorSuccesses > 0 {
		return nil, nil
	}

	signal := &entity.AnomalySignal{
		Kind:       entity.AnomalyNewLocation,
		Attempt:    attempt,
		DetectedAt: time.Now(),
	}
	srv.metrics.RecordAnomaly(entity.AnomalyNewLocation)
	srv.log(ctx).Info("Detected login from new location",
		slog.Any("userID", *attempt.UserID),
		slog.String("city", loc.City),
		slog.String("country", loc.Country))

	srv.dispatchAlert(ctx, attempt.Email, entity.AnomalyNewLocation, service.TemplateNewLocationAlert, map[string]any{
		"city":       loc.City,
		"country":    loc.Country,
		"ip_address": attempt.ClientContext.IPAddress,
		"device":     string(attempt.ClientContext.Device),
		"browser":    attempt.ClientContext.Browser,
		"os":         attempt.ClientContext.OS,
		"time":       attempt.CreatedAt,
	})

	return signal, nil
}

// checkBurstFailure flags runs of failed logins inside the rolling window.
// The alert fires on exact multiples of the threshold (3, 6, 9, ...): enough
// to re-alert on a sustained attack without mailing the owner on every single
// failure past the third.
func (srv *anomalyDetector) checkBurstFailure(ctx context.Context, attempt *entity.LoginAttempt) (*entity.AnomalySignal, error) {
	since := attempt.CreatedAt.Add(-srv.burstWindow)
	failCount, err := srv.attemptRepo.CountFailuresByEmail(ctx, attempt.Email, since, attempt.CreatedAt)
	if err != nil {
		return nil, errors.Wrap(err, "failed to count failures in window")
	}

	count := int(failCount)
	if count < srv.burstThreshold || count%srv.burstThreshold != 0 {
		return nil, nil
	}

	signal := &entity.AnomalySignal{
		Kind:       entity.AnomalyBurstFailure,
		Attempt:    attempt,
		FailCount:  count,
		DetectedAt: time.Now(),
	}
	srv.metrics.RecordAnomaly(entity.AnomalyBurstFailure)
	srv.log(ctx).Warn("Detected burst of failed logins",
		slog.String("email", attempt.Email),
		slog.Int("failCount", count))

	srv.dispatchAlert(ctx, attempt.Email, entity.AnomalyBurstFailure, service.TemplateBurstFailureAlert, map[string]any{
		"fail_count": count,
		"window":     srv.burstWindow.String(),
		"ip_address": attempt.ClientContext.IPAddress,
		"time":       attempt.CreatedAt,
	})

	return signal, nil
}

// dispatchAlert sends one alert mail. Delivery failures are logged and
// dropped; the signal already stands on its own.
func (srv *anomalyDetector) dispatchAlert(ctx context.Context, recipient string, kind entity.AnomalyKind, template service.TemplateKind, data map[string]any) {
	if err := srv.mailer.Send(ctx, recipient, template, data); err != nil {
		srv.metrics.RecordAlert(kind, false)
		srv.log(ctx).Error("Failed to dispatch alert mail",
			slog.String("kind", string(kind)),
			slog.Any("error", err))

		return
	}

	srv.metrics.RecordAlert(kind, true)
}
