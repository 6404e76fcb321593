package google

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"academy/config"
	"academy/internal/domain/entity"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAuthService() *AuthServiceImpl {
	cfg := &config.Config{}
	cfg.GoogleOAuth.ClientID = "test_client_id"

	return NewAuthService(cfg, slog.Default()).(*AuthServiceImpl)
}

// buildIDToken signs the claims with a throwaway key. The verifier only
// inspects the claims, so the signing key never has to match Google's.
func buildIDToken(t *testing.T, claims IDTokenClaims) string {
	t.Helper()

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-key"))
	require.NoError(t, err)

	return token
}

func validClaims() IDTokenClaims {
	return IDTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "https://accounts.google.com",
			Subject:   "google_user_123",
			Audience:  jwt.ClaimStrings{"test_client_id"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		Email:         "student@example.com",
		EmailVerified: true,
		Name:          "Test Student",
		Picture:       "https://example.com/avatar.png",
	}
}

func TestAuthService_VerifyIDToken(t *testing.T) {
	svc := newTestAuthService()

	user, err := svc.VerifyIDToken(context.Background(), buildIDToken(t, validClaims()))
	require.NoError(t, err)
	assert.Equal(t, "google_user_123", user.ID)
	assert.Equal(t, "student@example.com", user.Email)
	assert.Equal(t, "Test Student", user.Name)
	assert.Equal(t, entity.ProviderTypeGoogle, user.Provider)
	assert.True(t, user.EmailVerified)
}

func TestAuthService_VerifyIDToken_Rejections(t *testing.T) {
	svc := newTestAuthService()
	ctx := context.Background()

	expired := validClaims()
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))

	wrongAudience := validClaims()
	wrongAudience.Audience = jwt.ClaimStrings{"another_client_id"}

	wrongIssuer := validClaims()
	wrongIssuer.Issuer = "https://evil.example.com"

	unverifiedEmail := validClaims()
	unverifiedEmail.EmailVerified = false

	for name, claims := range map[string]IDTokenClaims{
		"expired":          expired,
		"wrong audience":   wrongAudience,
		"wrong issuer":     wrongIssuer,
		"unverified email": unverifiedEmail,
	} {
		user, err := svc.VerifyIDToken(ctx, buildIDToken(t, claims))
		assert.Error(t, err, name)
		assert.Nil(t, user, name)
		assert.Contains(t, err.Error(), "token verification failed", name)
	}
}

func TestAuthService_InvalidJWT(t *testing.T) {
	svc := newTestAuthService()

	user, err := svc.VerifyIDToken(context.Background(), "invalid_token_format")
	assert.Error(t, err)
	assert.Nil(t, user)
	assert.Contains(t, err.Error(), "invalid ID token")
}

func TestAuthService_GetProvider(t *testing.T) {
	assert.Equal(t, entity.ProviderTypeGoogle, newTestAuthService().GetProvider())
}
