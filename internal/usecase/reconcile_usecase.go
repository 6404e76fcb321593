// Package usecase contains the application-specific business rules.
package usecase

import (
	"context"

	"academy/internal/domain/service"
)

// ReconcileUsecase bridges stateless tokens and the server-side session
// registry. It bounds how long a revoked session's token keeps working without
// paying a registry read on every request.
type ReconcileUsecase interface {
	// Reconcile checks the claims' backing session when the last check is older
	// than the configured window. It mutates the claims in place: a fresh
	// LastValidityCheck when the session still exists, or SessionInvalid when it
	// does not. Returns whether the claims were rewritten (and so the token
	// should be re-signed).
	Reconcile(ctx context.Context, claims *service.TokenClaims) (rewritten bool, err error)
}
