package postgres

import (
	"context"
	"time"

	"academy/internal/domain/entity"
	domainerrors "academy/internal/domain/errors"
	"academy/internal/domain/repository"
	"academy/internal/infra/persistence/model"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// sessionRepository implements the domain.SessionRepository interface using GORM.
type sessionRepository struct {
	db *gorm.DB
}

// NewSessionRepository is the constructor for sessionRepository.
func NewSessionRepository(db *gorm.DB) repository.SessionRepository {
	return &sessionRepository{db: db}
}

// CreateSession persists a new session record.
func (repo *sessionRepository) CreateSession(ctx context.Context, session *entity.Session) error {
	sessionM := fromSessionDomain(session)

	if err := repo.db.WithContext(ctx).Create(sessionM).Error; err != nil {
		if isForeignKeyConstraintViolation(err) {
			return domainerrors.ErrValidationFailed.WrapMessage("session references unknown user")
		}

		return domainerrors.NewDatabaseExecuteError(err, "failed to create session")
	}

	session.CreatedAt = sessionM.CreatedAt

	return nil
}

// FindSessionByID retrieves a session by its opaque id. A row past its expiry
// reads as ErrSessionExpired; the sweeper just has not collected it yet.
func (repo *sessionRepository) FindSessionByID(ctx context.Context, id uuid.UUID) (*entity.Session, error) {
	var sessionM model.SessionModel
	if err := repo.db.WithContext(ctx).Where("id = ?", id).First(&sessionM).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrSessionNotFound
		}

		return nil, errors.Wrap(err, "failed to find session by id")
	}

	session := toSessionDomain(&sessionM)
	if session.IsExpired(time.Now()) {
		return nil, repository.ErrSessionExpired
	}

	return session, nil
}

// FindSessionsByUserID retrieves all non-expired sessions for a user, most
// recently active first.
func (repo *sessionRepository) FindSessionsByUserID(ctx context.Context, userID uuid.UUID) ([]*entity.Session, error) {
	var sessionMs []model.SessionModel
	err := repo.db.WithContext(ctx).
		Where("user_id = ? AND expires_at > ?", userID, time.Now()).
		Order("last_activity_at DESC").
		Find(&sessionMs).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list sessions")
	}

	sessions := make([]*entity.Session, 0, len(sessionMs))
	for i := range sessionMs {
		sessions = append(sessions, toSessionDomain(&sessionMs[i]))
	}

	return sessions, nil
}

// IsSessionValid reports whether the session exists and is not expired.
// Absence and expiry both read as invalid without an error; only a storage
// failure surfaces as one.
func (repo *sessionRepository) IsSessionValid(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	err := repo.db.WithContext(ctx).
		Model(&model.SessionModel{}).
		Where("id = ? AND expires_at > ?", id, time.Now()).
		Count(&count).Error
	if err != nil {
		return false, errors.Wrap(err, "failed to check session validity")
	}

	return count > 0, nil
}

// TouchSession updates the session's last-activity timestamp.
func (repo *sessionRepository) TouchSession(ctx context.Context, id uuid.UUID, at time.Time) error {
	err := repo.db.WithContext(ctx).
		Model(&model.SessionModel{}).
		Where("id = ?", id).
		Update("last_activity_at", at).Error
	if err != nil {
		return errors.Wrap(err, "failed to touch session")
	}

	return nil
}

// DeleteSessionOwned deletes the session only if it belongs to the given user.
func (repo *sessionRepository) DeleteSessionOwned(ctx context.Context, userID, sessionID uuid.UUID) (bool, error) {
	result := repo.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", sessionID, userID).
		Delete(&model.SessionModel{})
	if result.Error != nil {
		return false, errors.Wrap(result.Error, "failed to delete owned session")
	}

	return result.RowsAffected > 0, nil
}

// DeleteSession removes a session by id regardless of ownership.
func (repo *sessionRepository) DeleteSession(ctx context.Context, id uuid.UUID) error {
	result := repo.db.WithContext(ctx).Where("id = ?", id).Delete(&model.SessionModel{})
	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to delete session")
	}
	if result.RowsAffected == 0 {
		return repository.ErrSessionNotFound
	}

	return nil
}

// DeleteSessionsByUserID removes all of a user's sessions except the one to
// keep; uuid.Nil keeps nothing.
func (repo *sessionRepository) DeleteSessionsByUserID(ctx context.Context, userID uuid.UUID, keep uuid.UUID) (int64, error) {
	query := repo.db.WithContext(ctx).Where("user_id = ?", userID)
	if keep != uuid.Nil {
		query = query.Where("id <> ?", keep)
	}

	result := query.Delete(&model.SessionModel{})
	if result.Error != nil {
		return 0, errors.Wrap(result.Error, "failed to delete sessions by user")
	}

	return result.RowsAffected, nil
}

// DeleteExpiredSessions removes all sessions past expiry in one statement.
// The single delete-where keeps concurrent sweeps from racing each other.
func (repo *sessionRepository) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	result := repo.db.WithContext(ctx).
		Where("expires_at <= ?", now).
		Delete(&model.SessionModel{})
	if result.Error != nil {
		return 0, errors.Wrap(result.Error, "failed to delete expired sessions")
	}

	return result.RowsAffected, nil
}

// --- Mapper Functions ---

func toSessionDomain(data *model.SessionModel) *entity.Session {
	if data == nil {
		return nil
	}

	return &entity.Session{
		ID:     data.ID,
		UserID: data.UserID,
		ClientContext: entity.ClientContext{
			IPAddress: data.IPAddress,
			UserAgent: data.UserAgent,
			Device:    entity.DeviceType(data.Device),
			Browser:   data.Browser,
			OS:        data.OS,
			Location: entity.Location{
				Country:   data.Country,
				City:      data.City,
				Region:    data.Region,
				Latitude:  data.Latitude,
				Longitude: data.Longitude,
			},
		},
		CreatedAt:      data.CreatedAt,
		ExpiresAt:      data.ExpiresAt,
		LastActivityAt: data.LastActivityAt,
	}
}

func fromSessionDomain(data *entity.Session) *model.SessionModel {
	if data == nil {
		return nil
	}

	return &model.SessionModel{
		ID:             data.ID,
		UserID:         data.UserID,
		IPAddress:      data.ClientContext.IPAddress,
		UserAgent:      data.ClientContext.UserAgent,
		Device:         string(data.ClientContext.Device),
		Browser:        data.ClientContext.Browser,
		OS:             data.ClientContext.OS,
		Country:        data.ClientContext.Location.Country,
		City:           data.ClientContext.Location.City,
		Region:         data.ClientContext.Location.Region,
		Latitude:       data.ClientContext.Location.Latitude,
		Longitude:      data.ClientContext.Location.Longitude,
		CreatedAt:      data.CreatedAt,
		ExpiresAt:      data.ExpiresAt,
		LastActivityAt: data.LastActivityAt,
	}
}
