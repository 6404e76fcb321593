// Package usecase contains the application-specific business rules.
// It orchestrates the domain layer to perform tasks.
package usecase

import (
	"context"

	"academy/internal/domain/entity"

	"github.com/google/uuid"
)

// --- Input DTOs ---

// RegisterInput defines the data required to register a new account.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Locale   string
	Timezone string
}

// VerifyEmailInput carries the verification token from the emailed link.
type VerifyEmailInput struct {
	Token string
}

// LoginInput defines the data required for a password login, together with
// the resolved client context of the device attempting it.
type LoginInput struct {
	Email         string
	Password      string
	ClientContext entity.ClientContext
	RequestID     string
}

// OAuthLoginInput defines the data required for an identity-provider login.
type OAuthLoginInput struct {
	IDToken       string
	ClientContext entity.ClientContext
	RequestID     string
}

// --- Output DTOs ---

// RegisterOutput returns the newly created account's basic information.
type RegisterOutput struct {
	User *entity.User
}

// LoginOutput returns the signed token and session after successful authentication.
type LoginOutput struct {
	Token   string
	User    *entity.User
	Session *entity.Session
}

// AuthUsecase defines the interface for authentication business operations.
// This is the contract that the delivery layer (e.g., API handlers) will depend on.
type AuthUsecase interface {
	// Register creates a pending account with an email/password credential.
	Register(ctx context.Context, input RegisterInput) (*RegisterOutput, error)

	// VerifyEmail activates a pending account from an emailed verification token.
	VerifyEmail(ctx context.Context, input VerifyEmailInput) error

	// Login authenticates an email/password pair, creates a session, and
	// returns a signed token. Every call records one login attempt regardless
	// of outcome.
	Login(ctx context.Context, input LoginInput) (*LoginOutput, error)

	// OAuthLogin authenticates a provider-issued ID token, linking or creating
	// the account as needed, and returns a signed token like Login.
	OAuthLogin(ctx context.Context, input OAuthLoginInput) (*LoginOutput, error)

	// Logout deletes the session backing the presented token. Deleting an
	// already-deleted session is a successful logout.
	Logout(ctx context.Context, sessionID uuid.UUID) error

	// UnlinkProvider removes one of the account's sign-in methods. The last
	// remaining method can never be removed.
	UnlinkProvider(ctx context.Context, userID uuid.UUID, provider entity.ProviderType) error

	// RecentActivity returns the newest login attempts recorded against the
	// account's email, successes and failures alike, capped at limit.
	RecentActivity(ctx context.Context, userID uuid.UUID, limit int) ([]*entity.LoginAttempt, error)
}
