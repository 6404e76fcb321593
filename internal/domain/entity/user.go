// Package entity contains the core business objects of the project,
// each representing a unique, identifiable concept within the domain.
package entity

import (
	"time"

	"github.com/google/uuid"
)

// UserStatus is the lifecycle state of a user account.
type UserStatus string

const (
	// UserStatusPending marks an account that registered but has not verified its email yet.
	UserStatusPending UserStatus = "pending"
	// UserStatusActive marks a fully usable account.
	UserStatusActive UserStatus = "active"
	// UserStatusSuspended marks an account that has been administratively disabled.
	UserStatusSuspended UserStatus = "suspended"
)

// CanLogin reports whether an account in this status may authenticate.
func (s UserStatus) CanLogin() bool {
	return s == UserStatusActive
}

// User is the core entity in the system, representing a registered account (a principal).
// It carries only identity information; credentials live in Authentication records.
type User struct {
	ID            uuid.UUID  // Unique identifier for the account.
	Email         string     // Primary contact email, case-normalized, used as the login identifier.
	Name          string     // Display name.
	Status        UserStatus // Lifecycle status: pending -> active, or suspended.
	EmailVerified bool       // Whether the email address has been verified (directly or via an OAuth provider).
	Locale        string     // Preferred locale, e.g. "en", "fr".
	Timezone      string     // IANA timezone name, e.g. "Europe/Paris".
	CreatedAt     time.Time  // Timestamp of account creation.
	UpdatedAt     time.Time  // Timestamp of the last modification.
}
