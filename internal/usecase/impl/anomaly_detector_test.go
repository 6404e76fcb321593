package impl

import (
	"context"
	"testing"
	"time"

	"academy/internal/domain/entity"
	"academy/internal/domain/service"
	"academy/internal/errors"
	"academy/internal/usecase"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDetector(t *testing.T, attemptRepo *memAttemptRepo, mailer *capturingMailer) usecase.AnomalyDetector {
	t.Helper()

	return NewAnomalyDetector(AnomalyDetectorParams{
		AttemptRepo: attemptRepo,
		Mailer:      mailer,
		Metrics:     &fakeMetrics{},
		Config:      newTestConfig(),
		Logger:      newDiscardLogger(),
	})
}

func successAttempt(userID uuid.UUID, email, city, country string, at time.Time) *entity.LoginAttempt {
	return &entity.LoginAttempt{
		ID:      uuid.New(),
		UserID:  &userID,
		Email:   email,
		Success: true,
		ClientContext: entity.ClientContext{
			IPAddress: "203.0.113.7",
			Location:  entity.Location{City: city, Country: country},
		},
		CreatedAt: at,
	}
}

func failedAttempt(userID *uuid.UUID, email string, at time.Time) *entity.LoginAttempt {
	return &entity.LoginAttempt{
		ID:            uuid.New(),
		UserID:        userID,
		Email:         email,
		Success:       false,
		FailureReason: entity.FailureReasonInvalidPassword,
		CreatedAt:     at,
	}
}

func TestAnomalyDetector_NewLocation_FirstLoginAlerts(t *testing.T) {
	attemptRepo := &memAttemptRepo{}
	mailer := &capturingMailer{}
	detector := newTestDetector(t, attemptRepo, mailer)

	userID := uuid.New()
	attempt := successAttempt(userID, "alice@example.com", "Paris", "France", time.Now())
	require.NoError(t, attemptRepo.CreateAttempt(context.Background(), attempt))

	signals, err := detector.Evaluate(context.Background(), attempt)
	require.NoError(t, err)
	require.Len(t, signals, 1)
	assert.Equal(t, entity.AnomalyNewLocation, signals[0].Kind)

	sends := mailer.sends()
	require.Len(t, sends, 1)
	assert.Equal(t, "alice@example.com", sends[0].Recipient)
	assert.Equal(t, service.TemplateNewLocationAlert, sends[0].Kind)
	assert.Equal(t, "Paris", sends[0].Data["city"])
	assert.Equal(t, "France", sends[0].Data["country"])
}

func TestAnomalyDetector_NewLocation_KnownLocationStaysSilent(t *testing.T) {
	attemptRepo := &memAttemptRepo{}
	mailer := &capturingMailer{}
	detector := newTestDetector(t, attemptRepo, mailer)

	userID := uuid.New()
	prior := successAttempt(userID, "alice@example.com", "Paris", "France", time.Now().Add(-24*time.Hour))
	require.NoError(t, attemptRepo.CreateAttempt(context.Background(), prior))

	attempt := successAttempt(userID, "alice@example.com", "Paris", "France", time.Now())
	require.NoError(t, attemptRepo.CreateAttempt(context.Background(), attempt))

	signals, err := detector.Evaluate(context.Background(), attempt)
	require.NoError(t, err)
	assert.Empty(t, signals)
	assert.Empty(t, mailer.sends())
}

func TestAnomalyDetector_NewLocation_DifferentCityAlerts(t *testing.T) {
	attemptRepo := &memAttemptRepo{}
	mailer := &capturingMailer{}
	detector := newTestDetector(t, attemptRepo, mailer)

	userID := uuid.New()
	prior := successAttempt(userID, "alice@example.com", "Paris", "France", time.Now().Add(-24*time.Hour))
	require.NoError(t, attemptRepo.CreateAttempt(context.Background(), prior))

	attempt := successAttempt(userID, "alice@example.com", "Lyon", "France", time.Now())
	require.NoError(t, attemptRepo.CreateAttempt(context.Background(), attempt))

	signals, err := detector.Evaluate(context.Background(), attempt)
	require.NoError(t, err)
	require.Len(t, signals, 1)
	assert.Equal(t, entity.AnomalyNewLocation, signals[0].Kind)
}

func TestAnomalyDetector_NewLocation_UnresolvedLocationNeverAlerts(t *testing.T) {
	attemptRepo := &memAttemptRepo{}
	mailer := &capturingMailer{}
	detector := newTestDetector(t, attemptRepo, mailer)

	userID := uuid.New()
	attempt := successAttempt(userID, "alice@example.com", "", "", time.Now())
	require.NoError(t, attemptRepo.CreateAttempt(context.Background(), attempt))

	signals, err := detector.Evaluate(context.Background(), attempt)
	require.NoError(t, err)
	assert.Empty(t, signals)
	assert.Empty(t, mailer.sends())
}

func TestAnomalyDetector_NilUserIDSkipsEvaluation(t *testing.T) {
	detector := newTestDetector(t, &memAttemptRepo{}, &capturingMailer{})

	attempt := failedAttempt(nil, "nobody@example.com", time.Now())

	signals, err := detector.Evaluate(context.Background(), attempt)
	require.NoError(t, err)
	assert.Nil(t, signals)
}

func TestAnomalyDetector_BurstFailure_FiresOnExactMultiples(t *testing.T) {
	attemptRepo := &memAttemptRepo{}
	mailer := &capturingMailer{}
	detector := newTestDetector(t, attemptRepo, mailer)

	userID := uuid.New()
	base := time.Now()

	// Failures 1..7 arrive a minute apart; the alert fires at 3 and 6 only.
	wantSignalAt := map[int]bool{3: true, 6: true}
	for i := 1; i <= 7; i++ {
		attempt := failedAttempt(&userID, "alice@example.com", base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, attemptRepo.CreateAttempt(context.Background(), attempt))

		signals, err := detector.Evaluate(context.Background(), attempt)
		require.NoError(t, err)

		if wantSignalAt[i] {
			require.Len(t, signals, 1, "failure %d should alert", i)
			assert.Equal(t, entity.AnomalyBurstFailure, signals[0].Kind)
			assert.Equal(t, i, signals[0].FailCount)
		} else {
			assert.Empty(t, signals, "failure %d should not alert", i)
		}
	}

	sends := mailer.sends()
	require.Len(t, sends, 2)
	assert.Equal(t, service.TemplateBurstFailureAlert, sends[0].Kind)
	assert.Equal(t, 3, sends[0].Data["fail_count"])
	assert.Equal(t, 6, sends[1].Data["fail_count"])
}

func TestAnomalyDetector_BurstFailure_IgnoresFailuresOutsideWindow(t *testing.T) {
	attemptRepo := &memAttemptRepo{}
	mailer := &capturingMailer{}
	detector := newTestDetector(t, attemptRepo, mailer)

	userID := uuid.New()
	now := time.Now()

	// Three stale failures well before the window plus two fresh ones.
	for i := 0; i < 3; i++ {
		stale := failedAttempt(&userID, "alice@example.com", now.Add(-20*time.Minute))
		require.NoError(t, attemptRepo.CreateAttempt(context.Background(), stale))
	}
	fresh := failedAttempt(&userID, "alice@example.com", now.Add(-time.Minute))
	require.NoError(t, attemptRepo.CreateAttempt(context.Background(), fresh))

	attempt := failedAttempt(&userID, "alice@example.com", now)
	require.NoError(t, attemptRepo.CreateAttempt(context.Background(), attempt))

	signals, err := detector.Evaluate(context.Background(), attempt)
	require.NoError(t, err)
	assert.Empty(t, signals)
	assert.Empty(t, mailer.sends())
}

func TestAnomalyDetector_AlertMailFailureDoesNotFailEvaluation(t *testing.T) {
	attemptRepo := &memAttemptRepo{}
	mailer := &capturingMailer{sendErr: errors.New("relay down")}
	detector := newTestDetector(t, attemptRepo, mailer)

	userID := uuid.New()
	attempt := successAttempt(userID, "alice@example.com", "Paris", "France", time.Now())
	require.NoError(t, attemptRepo.CreateAttempt(context.Background(), attempt))

	signals, err := detector.Evaluate(context.Background(), attempt)
	require.NoError(t, err)
	require.Len(t, signals, 1)
}

func TestAnomalyDetector_CountErrorSurfaces(t *testing.T) {
	attemptRepo := &memAttemptRepo{countErr: errors.New("query failed")}
	detector := newTestDetector(t, attemptRepo, &capturingMailer{})

	userID := uuid.New()
	attempt := successAttempt(userID, "alice@example.com", "Paris", "France", time.Now())

	_, err := detector.Evaluate(context.Background(), attempt)
	require.Error(t, err)
}
