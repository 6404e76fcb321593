package service

import (
	"time"

	"github.com/google/uuid"
)

// TokenClaims is the full, explicit shape of a stateless token: the identity
// claims plus the reconciliation bookkeeping. It is built once when a token is
// decoded and threaded through the request by value; SessionInvalid is derived
// per request cycle and never encoded back into the token.
type TokenClaims struct {
	UserID            uuid.UUID // The authenticated principal.
	SessionID         uuid.UUID // The backing server-side session, exactly one.
	LastValidityCheck time.Time // Last time the backing session was confirmed to exist.
	IssuedAt          time.Time
	ExpiresAt         time.Time

	// SessionInvalid is set during reconciliation when the backing session no
	// longer exists. The token itself is not discarded here; the delivery edge
	// is responsible for turning this flag into a hard sign-out.
	SessionInvalid bool
}

// TokenService defines the interface for issuing and decoding stateless tokens.
// A token is authoritative for identity but not for liveness; liveness comes
// from reconciling SessionID against the session registry.
type TokenService interface {
	// IssueToken signs a fresh token for the given principal and session, with
	// LastValidityCheck set to now.
	IssueToken(userID, sessionID uuid.UUID) (string, error)

	// RefreshToken re-signs a token from existing claims, preserving their
	// LastValidityCheck. Used after reconciliation rewrites the check timestamp.
	RefreshToken(claims *TokenClaims) (string, error)

	// DecodeToken verifies the signature and returns the embedded claims.
	DecodeToken(token string) (*TokenClaims, error)

	// TokenTTL returns the configured token lifetime.
	TokenTTL() time.Duration
}
