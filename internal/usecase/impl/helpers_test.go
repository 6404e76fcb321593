package impl

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"academy/config"
	"academy/internal/domain/entity"
	"academy/internal/domain/repository"
	"academy/internal/domain/service"
	"academy/internal/errors"
	"academy/internal/usecase"

	"github.com/google/uuid"
)

func newDiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Auth = config.Auth{
		BcryptCost:        12,
		TokenTTL:          time.Hour,
		SessionTTL:        24 * time.Hour,
		ReconcileInterval: time.Minute,
	}
	cfg.Security = config.Security{
		BurstThreshold: 3,
		BurstWindow:    15 * time.Minute,
	}

	return cfg
}

// passthroughTxManager runs the function directly against one shared factory.
type passthroughTxManager struct {
	factory repository.RepositoryFactory
}

func (tm *passthroughTxManager) Execute(_ context.Context, fn func(txRepoFactory repository.RepositoryFactory) error) error {
	return fn(tm.factory)
}

type testRepoFactory struct {
	userRepo    repository.UserRepository
	authRepo    repository.AuthRepository
	sessionRepo repository.SessionRepository
	attemptRepo repository.LoginAttemptRepository
}

func (f *testRepoFactory) UserRepo() repository.UserRepository { return f.userRepo }

func (f *testRepoFactory) AuthRepo() repository.AuthRepository { return f.authRepo }

func (f *testRepoFactory) SessionRepo() repository.SessionRepository { return f.sessionRepo }

func (f *testRepoFactory) LoginAttemptRepo() repository.LoginAttemptRepository {
	return f.attemptRepo
}

type memUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]*entity.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[uuid.UUID]*entity.User)}
}

func (r *memUserRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	copied := *user

	return &copied, nil
}

func (r *memUserRepo) FindByEmail(_ context.Context, email string) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, user := range r.users {
		if user.Email == email {
			copied := *user

			return &copied, nil
		}
	}

	return nil, repository.ErrUserNotFound
}

func (r *memUserRepo) Create(_ context.Context, user *entity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	copied := *user
	r.users[user.ID] = &copied

	return nil
}

func (r *memUserRepo) Update(_ context.Context, user *entity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[user.ID]; !ok {
		return repository.ErrUserNotFound
	}
	user.UpdatedAt = time.Now()
	copied := *user
	r.users[user.ID] = &copied

	return nil
}

type memAuthRepo struct {
	mu      sync.Mutex
	records []*entity.Authentication

	// upsertExisting, when set, is what UpsertAuthentication answers for its
	// provider pair instead of inserting. It stands in for a row committed by
	// a concurrent transaction that this one's reads never saw.
	upsertExisting *entity.Authentication
}

func (r *memAuthRepo) CreateAuthentication(_ context.Context, auth *entity.Authentication) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if auth.ID == uuid.Nil {
		auth.ID = uuid.New()
	}
	auth.CreatedAt = time.Now()
	copied := *auth
	r.records = append(r.records, &copied)

	return nil
}

func (r *memAuthRepo) UpsertAuthentication(_ context.Context, auth *entity.Authentication) (*entity.Authentication, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, rec := range r.records {
		if rec.Provider == auth.Provider && rec.ProviderUserID == auth.ProviderUserID {
			copied := *rec

			return &copied, nil
		}
	}

	if r.upsertExisting != nil &&
		r.upsertExisting.Provider == auth.Provider &&
		r.upsertExisting.ProviderUserID == auth.ProviderUserID {
		copied := *r.upsertExisting

		return &copied, nil
	}

	if auth.ID == uuid.Nil {
		auth.ID = uuid.New()
	}
	auth.CreatedAt = time.Now()
	copied := *auth
	r.records = append(r.records, &copied)
	returned := copied

	return &returned, nil
}

func (r *memAuthRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.records)
}

func (r *memAuthRepo) FindAuthentication(_ context.Context, provider entity.ProviderType, providerUserID string) (*entity.Authentication, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, rec := range r.records {
		if rec.Provider == provider && rec.ProviderUserID == providerUserID {
			copied := *rec

			return &copied, nil
		}
	}

	return nil, repository.ErrAuthNotFound
}

func (r *memAuthRepo) FindAuthenticationByUserIDAndProvider(_ context.Context, userID uuid.UUID, provider entity.ProviderType) (*entity.Authentication, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, rec := range r.records {
		if rec.UserID == userID && rec.Provider == provider {
			copied := *rec

			return &copied, nil
		}
	}

	return nil, repository.ErrAuthNotFound
}

func (r *memAuthRepo) ListAuthenticationsByUserID(_ context.Context, userID uuid.UUID) ([]*entity.Authentication, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*entity.Authentication
	for _, rec := range r.records {
		if rec.UserID == userID {
			copied := *rec
			out = append(out, &copied)
		}
	}

	return out, nil
}

func (r *memAuthRepo) DeleteAuthentication(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, rec := range r.records {
		if rec.ID == id {
			r.records = append(r.records[:i], r.records[i+1:]...)

			return nil
		}
	}

	return repository.ErrAuthNotFound
}

type memSessionRepo struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*entity.Session

	createErr  error
	isValidErr error
	touchCalls atomic.Int64
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{sessions: make(map[uuid.UUID]*entity.Session)}
}

func (r *memSessionRepo) CreateSession(_ context.Context, session *entity.Session) error {
	if r.createErr != nil {
		return r.createErr
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	session.CreatedAt = time.Now()
	copied := *session
	r.sessions[session.ID] = &copied

	return nil
}

func (r *memSessionRepo) FindSessionByID(_ context.Context, id uuid.UUID) (*entity.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[id]
	if !ok {
		return nil, repository.ErrSessionNotFound
	}
	if session.IsExpired(time.Now()) {
		return nil, repository.ErrSessionExpired
	}
	copied := *session

	return &copied, nil
}

func (r *memSessionRepo) FindSessionsByUserID(_ context.Context, userID uuid.UUID) ([]*entity.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	var out []*entity.Session
	for _, session := range r.sessions {
		if session.UserID == userID && session.ExpiresAt.After(now) {
			copied := *session
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastActivityAt.After(out[j].LastActivityAt)
	})

	return out, nil
}

func (r *memSessionRepo) IsSessionValid(_ context.Context, id uuid.UUID) (bool, error) {
	if r.isValidErr != nil {
		return false, r.isValidErr
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[id]
	if !ok {
		return false, nil
	}

	return session.ExpiresAt.After(time.Now()), nil
}

func (r *memSessionRepo) TouchSession(_ context.Context, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[id]
	if !ok {
		return repository.ErrSessionNotFound
	}
	session.LastActivityAt = at
	r.touchCalls.Add(1)

	return nil
}

func (r *memSessionRepo) DeleteSessionOwned(_ context.Context, userID, sessionID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[sessionID]
	if !ok || session.UserID != userID {
		return false, nil
	}
	delete(r.sessions, sessionID)

	return true, nil
}

func (r *memSessionRepo) DeleteSession(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[id]; !ok {
		return repository.ErrSessionNotFound
	}
	delete(r.sessions, id)

	return nil
}

func (r *memSessionRepo) DeleteSessionsByUserID(_ context.Context, userID uuid.UUID, keep uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var deleted int64
	for id, session := range r.sessions {
		if session.UserID == userID && id != keep {
			delete(r.sessions, id)
			deleted++
		}
	}

	return deleted, nil
}

func (r *memSessionRepo) DeleteExpiredSessions(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var deleted int64
	for id, session := range r.sessions {
		if !session.ExpiresAt.After(now) {
			delete(r.sessions, id)
			deleted++
		}
	}

	return deleted, nil
}

func (r *memSessionRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.sessions)
}

type memAttemptRepo struct {
	mu       sync.Mutex
	attempts []*entity.LoginAttempt

	createErr error
	countErr  error
}

func (r *memAttemptRepo) CreateAttempt(_ context.Context, attempt *entity.LoginAttempt) error {
	if r.createErr != nil {
		return r.createErr
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if attempt.ID == uuid.Nil {
		attempt.ID = uuid.New()
	}
	copied := *attempt
	r.attempts = append(r.attempts, &copied)

	return nil
}

func (r *memAttemptRepo) CountSuccessesAtLocation(_ context.Context, userID uuid.UUID, city, country string, before time.Time) (int64, error) {
	if r.countErr != nil {
		return 0, r.countErr
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var count int64
	for _, attempt := range r.attempts {
		if attempt.UserID == nil || *attempt.UserID != userID || !attempt.Success {
			continue
		}
		if attempt.ClientContext.Location.City != city || attempt.ClientContext.Location.Country != country {
			continue
		}
		if attempt.CreatedAt.Before(before) {
			count++
		}
	}

	return count, nil
}

func (r *memAttemptRepo) CountFailuresByEmail(_ context.Context, email string, since, until time.Time) (int64, error) {
	if r.countErr != nil {
		return 0, r.countErr
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var count int64
	for _, attempt := range r.attempts {
		if attempt.Email != email || attempt.Success {
			continue
		}
		if attempt.CreatedAt.After(since) && !attempt.CreatedAt.After(until) {
			count++
		}
	}

	return count, nil
}

func (r *memAttemptRepo) FindRecentByEmail(_ context.Context, email string, limit int) ([]*entity.LoginAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*entity.LoginAttempt
	for _, attempt := range r.attempts {
		if attempt.Email == email {
			copied := *attempt
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}

	return out, nil
}

func (r *memAttemptRepo) stored() []*entity.LoginAttempt {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*entity.LoginAttempt, len(r.attempts))
	copy(out, r.attempts)

	return out
}

type fakeHasher struct{}

func (h *fakeHasher) Hash(password string) (string, error) {
	return "hashed-" + password, nil
}

func (h *fakeHasher) Check(password, hash string) bool {
	return hash == "hashed-"+password
}

func (h *fakeHasher) ValidatePasswordStrength(password string) error {
	if len(password) < 8 {
		return errors.New("password too weak")
	}

	return nil
}

// fakeTokenService hands out sequential opaque tokens and decodes only
// tokens it issued itself.
type fakeTokenService struct {
	mu     sync.Mutex
	seq    atomic.Int64
	issued map[string]*service.TokenClaims

	issueErr error
}

func newFakeTokenService() *fakeTokenService {
	return &fakeTokenService{issued: make(map[string]*service.TokenClaims)}
}

func (s *fakeTokenService) IssueToken(userID, sessionID uuid.UUID) (string, error) {
	if s.issueErr != nil {
		return "", s.issueErr
	}

	now := time.Now()
	token := fmt.Sprintf("token-%d", s.seq.Add(1))

	s.mu.Lock()
	s.issued[token] = &service.TokenClaims{
		UserID:            userID,
		SessionID:         sessionID,
		LastValidityCheck: now,
		IssuedAt:          now,
		ExpiresAt:         now.Add(time.Hour),
	}
	s.mu.Unlock()

	return token, nil
}

func (s *fakeTokenService) RefreshToken(claims *service.TokenClaims) (string, error) {
	token := fmt.Sprintf("token-%d", s.seq.Add(1))

	s.mu.Lock()
	copied := *claims
	s.issued[token] = &copied
	s.mu.Unlock()

	return token, nil
}

func (s *fakeTokenService) DecodeToken(token string) (*service.TokenClaims, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	claims, ok := s.issued[token]
	if !ok {
		return nil, errors.New("unknown token")
	}
	copied := *claims

	return &copied, nil
}

func (s *fakeTokenService) TokenTTL() time.Duration {
	return time.Hour
}

type fakeOAuthService struct {
	user *service.OAuthUser
	err  error
}

func (s *fakeOAuthService) VerifyIDToken(_ context.Context, _ string) (*service.OAuthUser, error) {
	if s.err != nil {
		return nil, s.err
	}
	copied := *s.user

	return &copied, nil
}

func (s *fakeOAuthService) GetProvider() entity.ProviderType {
	return entity.ProviderTypeGoogle
}

type sentMail struct {
	Recipient string
	Kind      service.TemplateKind
	Data      map[string]any
}

type capturingMailer struct {
	mu      sync.Mutex
	sent    []sentMail
	sendErr error
}

func (m *capturingMailer) Send(_ context.Context, recipient string, kind service.TemplateKind, data map[string]any) error {
	if m.sendErr != nil {
		return m.sendErr
	}

	m.mu.Lock()
	m.sent = append(m.sent, sentMail{Recipient: recipient, Kind: kind, Data: data})
	m.mu.Unlock()

	return nil
}

func (m *capturingMailer) sends() []sentMail {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]sentMail, len(m.sent))
	copy(out, m.sent)

	return out
}

type capturingPublisher struct {
	mu     sync.Mutex
	events []*service.LoginAttemptEvent
	err    error
}

func (p *capturingPublisher) PublishLoginAttempt(_ context.Context, event *service.LoginAttemptEvent) error {
	if p.err != nil {
		return p.err
	}

	p.mu.Lock()
	copied := *event
	p.events = append(p.events, &copied)
	p.mu.Unlock()

	return nil
}

func (p *capturingPublisher) Close() error { return nil }

func (p *capturingPublisher) published() []*service.LoginAttemptEvent {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]*service.LoginAttemptEvent, len(p.events))
	copy(out, p.events)

	return out
}

type fakeMetrics struct {
	attempts        atomic.Int64
	anomalies       atomic.Int64
	alerts          atomic.Int64
	reconciliations atomic.Int64
	geoLookups      atomic.Int64
}

func (m *fakeMetrics) RecordLoginAttempt(_ bool, _ entity.FailureReason) { m.attempts.Add(1) }

func (m *fakeMetrics) RecordAnomaly(_ entity.AnomalyKind) { m.anomalies.Add(1) }

func (m *fakeMetrics) RecordAlert(_ entity.AnomalyKind, _ bool) { m.alerts.Add(1) }

func (m *fakeMetrics) RecordGeoLookup(_ time.Duration, _ bool) { m.geoLookups.Add(1) }

func (m *fakeMetrics) RecordReconciliation(_, _ bool) { m.reconciliations.Add(1) }

type fakeGeoResolver struct {
	location entity.Location
	err      error
	calls    atomic.Int64
}

func (g *fakeGeoResolver) Resolve(_ context.Context, _ string) (entity.Location, error) {
	g.calls.Add(1)
	if g.err != nil {
		return entity.Location{}, g.err
	}

	return g.location, nil
}

// recordingAttemptRecorder captures attempt records without any of the
// persistence or evaluation behavior behind the real one.
type recordingAttemptRecorder struct {
	mu      sync.Mutex
	records []usecase.AttemptRecord
}

func (r *recordingAttemptRecorder) Record(_ context.Context, rec usecase.AttemptRecord) {
	r.mu.Lock()
	r.records = append(r.records, rec)
	r.mu.Unlock()
}

func (r *recordingAttemptRecorder) recorded() []usecase.AttemptRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]usecase.AttemptRecord, len(r.records))
	copy(out, r.records)

	return out
}

type fakeDetector struct {
	mu        sync.Mutex
	evaluated []*entity.LoginAttempt
	err       error
}

func (d *fakeDetector) Evaluate(_ context.Context, attempt *entity.LoginAttempt) ([]*entity.AnomalySignal, error) {
	d.mu.Lock()
	d.evaluated = append(d.evaluated, attempt)
	d.mu.Unlock()

	if d.err != nil {
		return nil, d.err
	}

	return nil, nil
}

func (d *fakeDetector) evaluatedAttempts() []*entity.LoginAttempt {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]*entity.LoginAttempt, len(d.evaluated))
	copy(out, d.evaluated)

	return out
}
