// Package entity contains the core business objects of the project,
// each representing a unique, identifiable concept within the domain.
package entity

import (
	"time"

	"github.com/google/uuid"
)

// ProviderType identifies an authentication provider.
type ProviderType string

const (
	// ProviderTypeEmail is the local email/password credential.
	ProviderTypeEmail ProviderType = "email"
	// ProviderTypeGoogle is Google Sign-In.
	ProviderTypeGoogle ProviderType = "google"
	// ProviderTypeGitHub is GitHub OAuth.
	ProviderTypeGitHub ProviderType = "github"
)

// Authentication represents a single method of logging in (a credential).
// The email/password pair is one record; each linked external identity-provider
// account is another. The (Provider, ProviderUserID) pair is globally unique.
type Authentication struct {
	ID             uuid.UUID    // Unique ID for this authentication record.
	UserID         uuid.UUID    // The user this credential belongs to.
	Provider       ProviderType // Which provider authenticated this credential.
	ProviderUserID string       // The provider's stable account id (the 'sub' claim); the email for local credentials.
	PasswordHash   string       // bcrypt hash, only set for the email provider.
	AccessToken    string       // Opaque provider access token, if the provider handed one over.
	RefreshToken   string       // Opaque provider refresh token, if any.
	CreatedAt      time.Time    // When this credential was linked to the account.
}

// HasPassword reports whether this record carries a local password credential.
func (a *Authentication) HasPassword() bool {
	return a.Provider == ProviderTypeEmail && a.PasswordHash != ""
}
