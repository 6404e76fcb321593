package impl

import (
	"context"
	"testing"
	"time"

	"academy/internal/domain/entity"
	"academy/internal/domain/service"
	"academy/internal/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestReconciler(t *testing.T, sessionRepo *memSessionRepo, now time.Time) (*reconcilerService, *fakeMetrics) {
	t.Helper()

	metrics := &fakeMetrics{}
	uc := NewReconcilerService(ReconcilerParams{
		SessionRepo: sessionRepo,
		Metrics:     metrics,
		Config:      newTestConfig(),
		Logger:      newDiscardLogger(),
	})

	svc, ok := uc.(*reconcilerService)
	require.True(t, ok)
	svc.now = func() time.Time { return now }

	return svc, metrics
}

func seedSession(t *testing.T, repo *memSessionRepo, userID uuid.UUID, expiresAt time.Time) *entity.Session {
	t.Helper()

	session := &entity.Session{
		ID:             uuid.New(),
		UserID:         userID,
		ExpiresAt:      expiresAt,
		LastActivityAt: time.Now().Add(-time.Hour),
	}
	require.NoError(t, repo.CreateSession(context.Background(), session))

	return session
}

func TestReconciler_FreshClaimsSkipRegistryRead(t *testing.T) {
	now := time.Now()
	sessionRepo := newMemSessionRepo()
	// Any registry read would surface this error.
	sessionRepo.isValidErr = errors.New("registry must not be read")

	svc, metrics := newTestReconciler(t, sessionRepo, now)

	lastCheck := now.Add(-59 * time.Second)
	claims := &service.TokenClaims{
		UserID:            uuid.New(),
		SessionID:         uuid.New(),
		LastValidityCheck: lastCheck,
	}

	rewritten, err := svc.Reconcile(context.Background(), claims)
	require.NoError(t, err)
	assert.False(t, rewritten)
	assert.False(t, claims.SessionInvalid)
	assert.Equal(t, lastCheck, claims.LastValidityCheck)
	assert.Equal(t, int64(1), metrics.reconciliations.Load())
}

func TestReconciler_StaleClaimsRewriteOnLiveSession(t *testing.T) {
	now := time.Now()
	sessionRepo := newMemSessionRepo()
	userID := uuid.New()
	session := seedSession(t, sessionRepo, userID, now.Add(time.Hour))

	svc, _ := newTestReconciler(t, sessionRepo, now)

	claims := &service.TokenClaims{
		UserID:            userID,
		SessionID:         session.ID,
		LastValidityCheck: now.Add(-61 * time.Second),
	}

	rewritten, err := svc.Reconcile(context.Background(), claims)
	require.NoError(t, err)
	assert.True(t, rewritten)
	assert.False(t, claims.SessionInvalid)
	assert.Equal(t, now, claims.LastValidityCheck)

	// Reconciliation also refreshes the session's activity timestamp.
	assert.Equal(t, int64(1), sessionRepo.touchCalls.Load())
	stored, err := sessionRepo.FindSessionByID(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Equal(t, now, stored.LastActivityAt)
}

func TestReconciler_RevokedSessionFlagsClaims(t *testing.T) {
	now := time.Now()
	sessionRepo := newMemSessionRepo()

	svc, _ := newTestReconciler(t, sessionRepo, now)

	lastCheck := now.Add(-2 * time.Minute)
	claims := &service.TokenClaims{
		UserID:            uuid.New(),
		SessionID:         uuid.New(), // Never created: same as revoked.
		LastValidityCheck: lastCheck,
	}

	rewritten, err := svc.Reconcile(context.Background(), claims)
	require.NoError(t, err)
	assert.False(t, rewritten)
	assert.True(t, claims.SessionInvalid)
	assert.Equal(t, lastCheck, claims.LastValidityCheck)
}

func TestReconciler_ExpiredSessionReadsAsInvalid(t *testing.T) {
	now := time.Now()
	sessionRepo := newMemSessionRepo()
	userID := uuid.New()
	session := seedSession(t, sessionRepo, userID, now.Add(-time.Minute))

	svc, _ := newTestReconciler(t, sessionRepo, now)

	claims := &service.TokenClaims{
		UserID:            userID,
		SessionID:         session.ID,
		LastValidityCheck: now.Add(-2 * time.Minute),
	}

	rewritten, err := svc.Reconcile(context.Background(), claims)
	require.NoError(t, err)
	assert.False(t, rewritten)
	assert.True(t, claims.SessionInvalid)
}

func TestReconciler_RegistryErrorKeepsClaimsUntouched(t *testing.T) {
	now := time.Now()
	sessionRepo := newMemSessionRepo()
	sessionRepo.isValidErr = errors.New("registry unavailable")

	svc, _ := newTestReconciler(t, sessionRepo, now)

	lastCheck := now.Add(-2 * time.Minute)
	claims := &service.TokenClaims{
		UserID:            uuid.New(),
		SessionID:         uuid.New(),
		LastValidityCheck: lastCheck,
	}

	rewritten, err := svc.Reconcile(context.Background(), claims)
	require.Error(t, err)
	assert.False(t, rewritten)

	// A registry outage must not log users out or advance the check.
	assert.False(t, claims.SessionInvalid)
	assert.Equal(t, lastCheck, claims.LastValidityCheck)
}
