package model

import (
	"time"

	"github.com/google/uuid"
)

// SessionModel mirrors the 'sessions' table. One row per logged-in device;
// deleting the row is what revokes access. IDs are generated by the
// application so the value can be embedded in the stateless token before the
// row is visible.
type SessionModel struct {
	ID             uuid.UUID `gorm:"type:uuid;primary_key"`
	UserID         uuid.UUID `gorm:"type:uuid;not null;index"`
	IPAddress      string    `gorm:"type:varchar(45)"`
	UserAgent      string    `gorm:"type:text"`
	Device         string    `gorm:"type:varchar(20)"`
	Browser        string    `gorm:"type:varchar(50)"`
	OS             string    `gorm:"type:varchar(50)"`
	Country        string    `gorm:"type:varchar(100)"`
	City           string    `gorm:"type:varchar(100)"`
	Region         string    `gorm:"type:varchar(100)"`
	Latitude       float64
	Longitude      float64
	CreatedAt      time.Time
	ExpiresAt      time.Time `gorm:"not null;index"`
	LastActivityAt time.Time `gorm:"not null"`
}

// TableName explicitly sets the table name for GORM.
func (SessionModel) TableName() string {
	return "sessions"
}
