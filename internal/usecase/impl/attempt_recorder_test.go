package impl

import (
	"context"
	"testing"

	"academy/internal/domain/entity"
	"academy/internal/errors"
	"academy/internal/usecase"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorderTestEnv struct {
	recorder    usecase.AttemptRecorder
	attemptRepo *memAttemptRepo
	geo         *fakeGeoResolver
	publisher   *capturingPublisher
	detector    *fakeDetector
	metrics     *fakeMetrics
}

func newRecorderTestEnv(t *testing.T) *recorderTestEnv {
	t.Helper()

	env := &recorderTestEnv{
		attemptRepo: &memAttemptRepo{},
		geo:         &fakeGeoResolver{location: entity.Location{City: "Paris", Country: "France"}},
		publisher:   &capturingPublisher{},
		detector:    &fakeDetector{},
		metrics:     &fakeMetrics{},
	}

	env.recorder = NewAttemptRecorder(AttemptRecorderParams{
		AttemptRepo: env.attemptRepo,
		GeoResolver: env.geo,
		Publisher:   env.publisher,
		Detector:    env.detector,
		Metrics:     env.metrics,
		Logger:      newDiscardLogger(),
	})

	return env
}

func TestAttemptRecorder_PersistsPublishesAndEvaluates(t *testing.T) {
	env := newRecorderTestEnv(t)

	userID := uuid.New()
	env.recorder.Record(context.Background(), usecase.AttemptRecord{
		UserID:  &userID,
		Email:   "alice@example.com",
		Success: true,
		ClientContext: entity.ClientContext{
			IPAddress: "203.0.113.7",
			Location:  entity.Location{City: "Lyon", Country: "France"},
		},
		RequestID: "req-1",
	})

	stored := env.attemptRepo.stored()
	require.Len(t, stored, 1)
	assert.True(t, stored[0].Success)
	assert.Equal(t, "alice@example.com", stored[0].Email)
	assert.NotEqual(t, uuid.Nil, stored[0].ID)

	// The edge already resolved the location; no lookup happens.
	assert.Equal(t, int64(0), env.geo.calls.Load())

	events := env.publisher.published()
	require.Len(t, events, 1)
	assert.Equal(t, "req-1", events[0].RequestID)
	assert.Equal(t, stored[0].ID.String(), events[0].AttemptID)
	assert.Equal(t, userID.String(), events[0].UserID)
	assert.Equal(t, "Lyon", events[0].City)

	require.Len(t, env.detector.evaluatedAttempts(), 1)
	assert.Equal(t, int64(1), env.metrics.attempts.Load())
}

func TestAttemptRecorder_FillsMissingLocation(t *testing.T) {
	env := newRecorderTestEnv(t)

	userID := uuid.New()
	env.recorder.Record(context.Background(), usecase.AttemptRecord{
		UserID:        &userID,
		Email:         "alice@example.com",
		Success:       true,
		ClientContext: entity.ClientContext{IPAddress: "203.0.113.7"},
	})

	assert.Equal(t, int64(1), env.geo.calls.Load())

	stored := env.attemptRepo.stored()
	require.Len(t, stored, 1)
	assert.Equal(t, "Paris", stored[0].ClientContext.Location.City)
	assert.Equal(t, "France", stored[0].ClientContext.Location.Country)
}

func TestAttemptRecorder_GeoFailureStillPersists(t *testing.T) {
	env := newRecorderTestEnv(t)
	env.geo.err = errors.New("lookup service down")

	userID := uuid.New()
	env.recorder.Record(context.Background(), usecase.AttemptRecord{
		UserID:        &userID,
		Email:         "alice@example.com",
		Success:       true,
		ClientContext: entity.ClientContext{IPAddress: "203.0.113.7"},
	})

	stored := env.attemptRepo.stored()
	require.Len(t, stored, 1)
	assert.True(t, stored[0].ClientContext.Location.IsZero())

	// Evaluation still runs against the stored row.
	assert.Len(t, env.detector.evaluatedAttempts(), 1)
}

func TestAttemptRecorder_PersistFailureStopsPipeline(t *testing.T) {
	env := newRecorderTestEnv(t)
	env.attemptRepo.createErr = errors.New("insert failed")

	userID := uuid.New()
	env.recorder.Record(context.Background(), usecase.AttemptRecord{
		UserID:  &userID,
		Email:   "alice@example.com",
		Success: true,
	})

	// Without a stored row there is nothing to publish or evaluate.
	assert.Empty(t, env.publisher.published())
	assert.Empty(t, env.detector.evaluatedAttempts())
}

func TestAttemptRecorder_UnknownEmailSkipsDetector(t *testing.T) {
	env := newRecorderTestEnv(t)

	env.recorder.Record(context.Background(), usecase.AttemptRecord{
		Email:         "nobody@example.com",
		Success:       false,
		FailureReason: entity.FailureReasonUserNotFound,
	})

	// The row is stored and published so burst counters still see it.
	require.Len(t, env.attemptRepo.stored(), 1)
	events := env.publisher.published()
	require.Len(t, events, 1)
	assert.Empty(t, events[0].UserID)

	assert.Empty(t, env.detector.evaluatedAttempts())
}

func TestAttemptRecorder_DetectorErrorIsSwallowed(t *testing.T) {
	env := newRecorderTestEnv(t)
	env.detector.err = errors.New("history unavailable")

	userID := uuid.New()
	env.recorder.Record(context.Background(), usecase.AttemptRecord{
		UserID:  &userID,
		Email:   "alice@example.com",
		Success: true,
	})

	require.Len(t, env.attemptRepo.stored(), 1)
	require.Len(t, env.detector.evaluatedAttempts(), 1)
}

func TestAttemptRecorder_PublisherErrorIsSwallowed(t *testing.T) {
	env := newRecorderTestEnv(t)
	env.publisher.err = errors.New("broker unreachable")

	userID := uuid.New()
	env.recorder.Record(context.Background(), usecase.AttemptRecord{
		UserID:  &userID,
		Email:   "alice@example.com",
		Success: true,
	})

	require.Len(t, env.attemptRepo.stored(), 1)
	assert.Len(t, env.detector.evaluatedAttempts(), 1)
}
