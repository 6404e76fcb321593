// Package auth provides concrete implementations for authentication-related domain services.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"academy/config"
	domainerrors "academy/internal/domain/errors"
	"academy/internal/domain/service"
	"academy/internal/errors"
)

// sessionClaims is the on-wire claim set. "sid" binds the token to exactly one
// server-side session and "lvc" records when that session was last confirmed
// to exist in the registry.
type sessionClaims struct {
	SessionID         string `json:"sid"`
	LastValidityCheck int64  `json:"lvc"`
	jwt.RegisteredClaims
}

// jwtService is a concrete implementation of the TokenService interface using the JWT standard.
type jwtService struct {
	secret []byte        // Secret key for signing tokens.
	ttl    time.Duration // Time-to-live for issued tokens.
	now    func() time.Time
}

// NewJWTService is the constructor for jwtService.
// It takes configuration values to create a new token service instance.
func NewJWTService(cfg *config.Config) (service.TokenService, error) {
	if cfg.SecretKey.Token == "" {
		return nil, errors.New("jwt secret must be provided")
	}

	return &jwtService{
		secret: []byte(cfg.SecretKey.Token),
		ttl:    cfg.Auth.TokenTTL,
		now:    time.Now,
	}, nil
}

// IssueToken signs a fresh token for a principal and its backing session.
func (s *jwtService) IssueToken(userID, sessionID uuid.UUID) (string, error) {
	now := s.now()

	return s.sign(&service.TokenClaims{
		UserID:            userID,
		SessionID:         sessionID,
		LastValidityCheck: now,
		IssuedAt:          now,
		ExpiresAt:         now.Add(s.ttl),
	})
}

// RefreshToken re-signs existing claims without touching their timestamps.
// Reconciliation rewrites LastValidityCheck on the claims before calling this.
func (s *jwtService) RefreshToken(claims *service.TokenClaims) (string, error) {
	return s.sign(claims)
}

// DecodeToken verifies the signature and expiry and returns the embedded claims.
func (s *jwtService) DecodeToken(tokenString string) (*service.TokenClaims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &sessionClaims{}, func(token *jwt.Token) (any, error) {
		// Ensure the signing method is what we expect.
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}

		return s.secret, nil
	})
	if err != nil {
		return nil, domainerrors.ErrTokenInvalid.WrapMessage(err.Error())
	}

	claims, ok := parsed.Claims.(*sessionClaims)
	if !ok || !parsed.Valid {
		return nil, domainerrors.ErrTokenInvalid
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, domainerrors.ErrTokenInvalid.WrapMessage("malformed subject claim")
	}
	sessionID, err := uuid.Parse(claims.SessionID)
	if err != nil {
		return nil, domainerrors.ErrTokenInvalid.WrapMessage("malformed session claim")
	}

	out := &service.TokenClaims{
		UserID:            userID,
		SessionID:         sessionID,
		LastValidityCheck: time.Unix(claims.LastValidityCheck, 0),
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}

	return out, nil
}

// TokenTTL returns the configured token lifetime.
func (s *jwtService) TokenTTL() time.Duration {
	return s.ttl
}

func (s *jwtService) sign(claims *service.TokenClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &sessionClaims{
		SessionID:         claims.SessionID.String(),
		LastValidityCheck: claims.LastValidityCheck.Unix(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   claims.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(claims.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(claims.ExpiresAt),
		},
	})

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", errors.Wrap(err, "failed to sign token")
	}

	return signed, nil
}
