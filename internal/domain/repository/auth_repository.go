// Package repository defines the interfaces for the persistence layer.
package repository

import (
	"context"
	"errors"

	"academy/internal/domain/entity"

	"github.com/google/uuid"
)

// ErrAuthNotFound is returned when an authentication method is not found.
var ErrAuthNotFound = errors.New("authentication method not found")

// AuthRepository defines the standard operations for authentication-related persistence.
type AuthRepository interface {
	// CreateAuthentication persists a new authentication method (email/password or provider link).
	CreateAuthentication(ctx context.Context, auth *entity.Authentication) error

	// UpsertAuthentication persists a new authentication method, or returns the
	// existing record if the (provider, providerUserID) pair is already linked.
	// The uniqueness constraint lives in the storage layer, so two concurrent
	// provider callbacks for the same pair resolve to a single row.
	UpsertAuthentication(ctx context.Context, auth *entity.Authentication) (*entity.Authentication, error)

	// FindAuthentication retrieves an authentication method by its provider and provider-specific ID.
	FindAuthentication(ctx context.Context, provider entity.ProviderType, providerUserID string) (*entity.Authentication, error)

	// FindAuthenticationByUserIDAndProvider finds an authentication method for a specific user and provider.
	FindAuthenticationByUserIDAndProvider(ctx context.Context, userID uuid.UUID, provider entity.ProviderType) (*entity.Authentication, error)

	// ListAuthenticationsByUserID returns all authentication methods for a specific user.
	ListAuthenticationsByUserID(ctx context.Context, userID uuid.UUID) ([]*entity.Authentication, error)

	// DeleteAuthentication removes an authentication method by its ID.
	DeleteAuthentication(ctx context.Context, id uuid.UUID) error
}
