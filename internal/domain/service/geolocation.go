package service

import (
	"context"

	"academy/internal/domain/entity"
)

// GeolocationResolver resolves a network address to a coarse location.
// Resolution is best-effort enrichment: implementations return the zero
// Location together with the error rather than making callers choose between
// a location and proceeding with authentication.
type GeolocationResolver interface {
	// Resolve maps an IP address to a location. Loopback and private addresses
	// resolve to the Local pseudo-location without any external call.
	Resolve(ctx context.Context, ip string) (entity.Location, error)
}
