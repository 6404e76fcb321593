package handler

import (
	"log/slog"
	"net/http"
	"time"

	"academy/internal/delivery/http/middleware"
	"academy/internal/delivery/http/response"
	"academy/internal/domain/entity"
	"academy/internal/usecase"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// sessionView is the outward shape of one active session.
type sessionView struct {
	ID             string    `json:"id"`
	IPAddress      string    `json:"ip_address"`
	Device         string    `json:"device"`
	Browser        string    `json:"browser"`
	OS             string    `json:"os"`
	City           string    `json:"city,omitempty"`
	Country        string    `json:"country,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
	Current        bool      `json:"current"`
}

func toSessionView(session *entity.Session, currentSessionID uuid.UUID) sessionView {
	return sessionView{
		ID:             session.ID.String(),
		IPAddress:      session.ClientContext.IPAddress,
		Device:         string(session.ClientContext.Device),
		Browser:        session.ClientContext.Browser,
		OS:             session.ClientContext.OS,
		City:           session.ClientContext.Location.City,
		Country:        session.ClientContext.Location.Country,
		CreatedAt:      session.CreatedAt,
		LastActivityAt: session.LastActivityAt,
		Current:        session.ID == currentSessionID,
	}
}

// SessionHandler holds dependencies for session management handlers.
// All routes sit behind the reconciling auth middleware.
type SessionHandler struct {
	uc     usecase.SessionUsecase
	logger *slog.Logger
}

// NewSessionHandler is the constructor for SessionHandler, injected by Fx.
func NewSessionHandler(uc usecase.SessionUsecase, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{uc: uc, logger: logger}
}

// List returns the caller's active sessions, most recently active first.
func (h *SessionHandler) List(c echo.Context) error {
	userID, sessionID, ok := middleware.PrincipalFromContext(c)
	if !ok {
		return response.Unauthorized(c, "TOKEN_MISSING", "Authentication required")
	}

	sessions, err := h.uc.ListSessions(c.Request().Context(), userID)
	if err != nil {
		return errors.WithStack(err)
	}

	views := make([]sessionView, 0, len(sessions))
	for _, session := range sessions {
		views = append(views, toSessionView(session, sessionID))
	}

	return response.Success(c, http.StatusOK, views, "")
}

// Revoke deletes one of the caller's sessions by id.
func (h *SessionHandler) Revoke(c echo.Context) error {
	userID, _, ok := middleware.PrincipalFromContext(c)
	if !ok {
		return response.Unauthorized(c, "TOKEN_MISSING", "Authentication required")
	}

	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return response.BindingError(c, "INVALID_INPUT", "Invalid session id")
	}

	if err := h.uc.RevokeSession(c.Request().Context(), userID, sessionID); err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, nil, "Session revoked")
}

// RevokeOthers deletes every session of the caller except the current one.
func (h *SessionHandler) RevokeOthers(c echo.Context) error {
	userID, sessionID, ok := middleware.PrincipalFromContext(c)
	if !ok {
		return response.Unauthorized(c, "TOKEN_MISSING", "Authentication required")
	}

	revoked, err := h.uc.RevokeAllOtherSessions(c.Request().Context(), userID, sessionID)
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, map[string]int64{"revoked": revoked}, "Other sessions revoked")
}
