package model

import (
	"time"

	"github.com/google/uuid"
)

// LoginAttemptModel mirrors the append-only 'login_attempts' table. The two
// composite indexes back the anomaly-detection counting queries: successes by
// user and place, failures by email over a time window.
type LoginAttemptModel struct {
	ID            uuid.UUID  `gorm:"type:uuid;primary_key;default:uuid_generate_v4()"`
	UserID        *uuid.UUID `gorm:"type:uuid;index:idx_attempts_user_location"`
	Email         string     `gorm:"type:varchar(255);not null;index:idx_attempts_email_time"`
	Success       bool       `gorm:"not null"`
	FailureReason string     `gorm:"type:varchar(50)"`
	IPAddress     string     `gorm:"type:varchar(45)"`
	UserAgent     string     `gorm:"type:text"`
	Device        string     `gorm:"type:varchar(20)"`
	Browser       string     `gorm:"type:varchar(50)"`
	OS            string     `gorm:"type:varchar(50)"`
	Country       string     `gorm:"type:varchar(100);index:idx_attempts_user_location"`
	City          string     `gorm:"type:varchar(100);index:idx_attempts_user_location"`
	Region        string     `gorm:"type:varchar(100)"`
	Latitude      float64
	Longitude     float64
	CreatedAt     time.Time `gorm:"not null;index:idx_attempts_email_time"`
}

// TableName explicitly sets the table name for GORM.
func (LoginAttemptModel) TableName() string {
	return "login_attempts"
}
