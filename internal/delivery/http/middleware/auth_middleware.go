package middleware

import (
	"log/slog"
	"strings"

	deliverycontext "academy/internal/delivery/context"
	"academy/internal/delivery/http/response"
	"academy/internal/domain/service"
	"academy/internal/usecase"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// HeaderXRenewedToken carries a re-signed token back to the client after a
// reconciliation rewrote the embedded validity-check timestamp. Clients that
// see the header replace their stored token; clients that ignore it just
// reconcile again on a later request.
const HeaderXRenewedToken = "X-Renewed-Token"

// Context keys set on echo.Context for handlers.
const (
	ContextKeyUserID    = "userID"
	ContextKeySessionID = "sessionID"
)

// AuthMiddleware validates the bearer token and reconciles its backing
// session against the registry before letting the request through.
type AuthMiddleware struct {
	tokenSvc   service.TokenService
	reconciler usecase.ReconcileUsecase
	logger     *slog.Logger
}

// NewAuthMiddleware is the constructor for AuthMiddleware.
func NewAuthMiddleware(tokenSvc service.TokenService, reconciler usecase.ReconcileUsecase, logger *slog.Logger) *AuthMiddleware {
	return &AuthMiddleware{tokenSvc: tokenSvc, reconciler: reconciler, logger: logger}
}

// Authenticate validates the token, reconciles the session, and stashes the
// principal on the context. A token whose backing session is gone is rejected
// here; that is the hard edge of revocation.
func (m *AuthMiddleware) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		authHeader := c.Request().Header.Get("Authorization")
		if authHeader == "" {
			return response.Unauthorized(c, "TOKEN_MISSING", "Authorization header is missing")
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			return response.Unauthorized(c, "TOKEN_INVALID", "Invalid token format, must be Bearer token")
		}

		claims, err := m.tokenSvc.DecodeToken(tokenString)
		if err != nil {
			return response.Unauthorized(c, "TOKEN_INVALID", "Invalid or expired token")
		}
		if claims.SessionID == uuid.Nil {
			// Verification tokens never authenticate requests.
			return response.Unauthorized(c, "TOKEN_INVALID", "Invalid or expired token")
		}

		ctx := c.Request().Context()
		rewritten, err := m.reconciler.Reconcile(ctx, claims)
		if err != nil {
			// Registry unavailability keeps the token valid; the claim stays
			// stale so a later request reconciles again.
			deliverycontext.GetLoggerOrDefault(ctx, m.logger).Warn("Reconciliation unavailable, token accepted",
				slog.Any("sessionID", claims.SessionID),
				slog.Any("error", err))
		}

		if claims.SessionInvalid {
			return response.Unauthorized(c, "SESSION_EXPIRED", "Session has been revoked or expired")
		}

		if rewritten {
			if renewed, signErr := m.tokenSvc.RefreshToken(claims); signErr == nil {
				c.Response().Header().Set(HeaderXRenewedToken, renewed)
			} else {
				deliverycontext.GetLoggerOrDefault(ctx, m.logger).Warn("Failed to re-sign reconciled token",
					slog.Any("sessionID", claims.SessionID),
					slog.Any("error", signErr))
			}
		}

		c.Set(ContextKeyUserID, claims.UserID)
		c.Set(ContextKeySessionID, claims.SessionID)

		return next(c)
	}
}

// PrincipalFromContext returns the authenticated user and session ids set by
// Authenticate. The bool is false on routes that skipped the middleware.
func PrincipalFromContext(c echo.Context) (userID, sessionID uuid.UUID, ok bool) {
	userID, okUser := c.Get(ContextKeyUserID).(uuid.UUID)
	sessionID, okSession := c.Get(ContextKeySessionID).(uuid.UUID)

	return userID, sessionID, okUser && okSession
}
