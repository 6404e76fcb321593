package service

import (
	"context"

	"academy/internal/domain/entity"
)

// OAuthUser represents user information vouched for by an external identity provider.
type OAuthUser struct {
	ID            string              // Provider-specific stable user ID (e.g., Google's 'sub' claim).
	Email         string              // User's email address, as asserted by the provider.
	Name          string              // User's display name.
	Provider      entity.ProviderType // Which provider authenticated the user.
	AvatarURL     string              // URL to user's profile picture.
	EmailVerified bool                // Whether the provider has verified the email.
	Locale        string              // User's locale, if the provider exposes it.
	AccessToken   string              // Opaque provider access token, if handed over.
	RefreshToken  string              // Opaque provider refresh token, if any.
}

// OAuthAuthService defines the interface for verifying identity-provider credentials.
// A malformed or expired provider token surfaces as an error here, which the
// caller converts into an ordinary authentication failure.
type OAuthAuthService interface {
	// VerifyIDToken verifies a provider-issued ID token and returns the asserted user.
	VerifyIDToken(ctx context.Context, idToken string) (*OAuthUser, error)

	// GetProvider returns which provider this service verifies for.
	GetProvider() entity.ProviderType
}
