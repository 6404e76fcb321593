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

// loginAttemptRepository implements the domain.LoginAttemptRepository interface using GORM.
type loginAttemptRepository struct {
	db *gorm.DB
}

// NewLoginAttemptRepository is the constructor for loginAttemptRepository.
func NewLoginAttemptRepository(db *gorm.DB) repository.LoginAttemptRepository {
	return &loginAttemptRepository{db: db}
}

// CreateAttempt appends one immutable attempt row.
func (repo *loginAttemptRepository) CreateAttempt(ctx context.Context, attempt *entity.LoginAttempt) error {
	attemptM := fromAttemptDomain(attempt)

	if err := repo.db.WithContext(ctx).Create(attemptM).Error; err != nil {
		return domainerrors.NewDatabaseExecuteError(err, "failed to record login attempt")
	}

	attempt.ID = attemptM.ID
	attempt.CreatedAt = attemptM.CreatedAt

	return nil
}

// CountSuccessesAtLocation counts the user's successful attempts from the
// exact (city, country) pair strictly before the given instant. The current
// attempt is excluded by the strict inequality, so a count of zero means the
// place is new to the account.
func (repo *loginAttemptRepository) CountSuccessesAtLocation(ctx context.Context, userID uuid.UUID, city, country string, before time.Time) (int64, error) {
	var count int64
	err := repo.db.WithContext(ctx).
		Model(&model.LoginAttemptModel{}).
		Where("user_id = ? AND success = ? AND city = ? AND country = ? AND created_at < ?",
			userID, true, city, country, before).
		Count(&count).Error
	if err != nil {
		return 0, errors.Wrap(err, "failed to count successes at location")
	}

	return count, nil
}

// CountFailuresByEmail counts failed attempts for the email in (since, until].
func (repo *loginAttemptRepository) CountFailuresByEmail(ctx context.Context, email string, since, until time.Time) (int64, error) {
	var count int64
	err := repo.db.WithContext(ctx).
		Model(&model.LoginAttemptModel{}).
		Where("email = ? AND success = ? AND created_at > ? AND created_at <= ?",
			email, false, since, until).
		Count(&count).Error
	if err != nil {
		return 0, errors.Wrap(err, "failed to count failures by email")
	}

	return count, nil
}

// FindRecentByEmail returns the most recent attempts for an email, newest first.
func (repo *loginAttemptRepository) FindRecentByEmail(ctx context.Context, email string, limit int) ([]*entity.LoginAttempt, error) {
	var attemptMs []model.LoginAttemptModel
	err := repo.db.WithContext(ctx).
		Where("email = ?", email).
		Order("created_at DESC").
		Limit(limit).
		Find(&attemptMs).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list recent attempts")
	}

	attempts := make([]*entity.LoginAttempt, 0, len(attemptMs))
	for i := range attemptMs {
		attempts = append(attempts, toAttemptDomain(&attemptMs[i]))
	}

	return attempts, nil
}

// --- Mapper Functions ---

func toAttemptDomain(data *model.LoginAttemptModel) *entity.LoginAttempt {
	if data == nil {
		return nil
	}

	return &entity.LoginAttempt{
		ID:            data.ID,
		UserID:        data.UserID,
		Email:         data.Email,
		Success:       data.Success,
		FailureReason: entity.FailureReason(data.FailureReason),
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
		CreatedAt: data.CreatedAt,
	}
}

func fromAttemptDomain(data *entity.LoginAttempt) *model.LoginAttemptModel {
	if data == nil {
		return nil
	}

	return &model.LoginAttemptModel{
		ID:            data.ID,
		UserID:        data.UserID,
		Email:         data.Email,
		Success:       data.Success,
		FailureReason: string(data.FailureReason),
		IPAddress:     data.ClientContext.IPAddress,
		UserAgent:     data.ClientContext.UserAgent,
		Device:        string(data.ClientContext.Device),
		Browser:       data.ClientContext.Browser,
		OS:            data.ClientContext.OS,
		Country:       data.ClientContext.Location.Country,
		City:          data.ClientContext.Location.City,
		Region:        data.ClientContext.Location.Region,
		Latitude:      data.ClientContext.Location.Latitude,
		Longitude:     data.ClientContext.Location.Longitude,
		CreatedAt:     data.CreatedAt,
	}
}
