// Package handler contains the HTTP handlers for the application.
package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	deliverycontext "academy/internal/delivery/context"
	"academy/internal/delivery/http/middleware"
	"academy/internal/delivery/http/response"
	"academy/internal/domain/entity"
	"academy/internal/infra/clientinfo"
	"academy/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// userView is the outward shape of an account; it never carries credentials.
type userView struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	Name          string    `json:"name"`
	Status        string    `json:"status"`
	EmailVerified bool      `json:"email_verified"`
	CreatedAt     time.Time `json:"created_at"`
}

func toUserView(user *entity.User) userView {
	return userView{
		ID:            user.ID.String(),
		Email:         user.Email,
		Name:          user.Name,
		Status:        string(user.Status),
		EmailVerified: user.EmailVerified,
		CreatedAt:     user.CreatedAt,
	}
}

type registerRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Locale   string `json:"locale"`
	Timezone string `json:"timezone"`
}

type verifyEmailRequest struct {
	Token string `json:"token" validate:"required"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type oauthLoginRequest struct {
	IDToken string `json:"id_token" validate:"required"`
}

// attemptView is the outward shape of one login attempt in the activity
// listing. The failure reason stays internal; the outcome flag is enough for
// the account owner to spot activity that was not theirs.
type attemptView struct {
	Success   bool      `json:"success"`
	IPAddress string    `json:"ip_address"`
	Device    string    `json:"device"`
	City      string    `json:"city,omitempty"`
	Country   string    `json:"country,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func toAttemptView(attempt *entity.LoginAttempt) attemptView {
	return attemptView{
		Success:   attempt.Success,
		IPAddress: attempt.ClientContext.IPAddress,
		Device:    string(attempt.ClientContext.Device),
		City:      attempt.ClientContext.Location.City,
		Country:   attempt.ClientContext.Location.Country,
		CreatedAt: attempt.CreatedAt,
	}
}

type loginResponse struct {
	Token     string   `json:"token"`
	SessionID string   `json:"session_id"`
	User      userView `json:"user"`
}

// AuthHandler holds dependencies for authentication handlers.
type AuthHandler struct {
	uc        usecase.AuthUsecase
	extractor *clientinfo.Extractor
	logger    *slog.Logger
}

// NewAuthHandler is the constructor for AuthHandler, injected by Fx.
func NewAuthHandler(uc usecase.AuthUsecase, extractor *clientinfo.Extractor, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		uc:        uc,
		extractor: extractor,
		logger:    logger,
	}
}

// Register handles the account registration request.
func (h *AuthHandler) Register(c echo.Context) error {
	var input registerRequest
	if err := c.Bind(&input); err != nil {
		return response.BindingError(c, "INVALID_INPUT", "Invalid registration input")
	}
	if err := c.Validate(&input); err != nil {
		return errors.WithStack(err)
	}

	output, err := h.uc.Register(c.Request().Context(), usecase.RegisterInput{
		Name:     input.Name,
		Email:    input.Email,
		Password: input.Password,
		Locale:   input.Locale,
		Timezone: input.Timezone,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusCreated, toUserView(output.User), "Account registered, verification mail sent")
}

// VerifyEmail handles the emailed verification link.
func (h *AuthHandler) VerifyEmail(c echo.Context) error {
	var input verifyEmailRequest
	if err := c.Bind(&input); err != nil {
		return response.BindingError(c, "INVALID_INPUT", "Invalid verification input")
	}
	if err := c.Validate(&input); err != nil {
		return errors.WithStack(err)
	}

	if err := h.uc.VerifyEmail(c.Request().Context(), usecase.VerifyEmailInput{Token: input.Token}); err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, nil, "Email verified")
}

// Login handles the password login request.
func (h *AuthHandler) Login(c echo.Context) error {
	var input loginRequest
	if err := c.Bind(&input); err != nil {
		return response.BindingError(c, "INVALID_INPUT", "Invalid login input")
	}
	if err := c.Validate(&input); err != nil {
		return errors.WithStack(err)
	}

	output, err := h.uc.Login(c.Request().Context(), usecase.LoginInput{
		Email:         input.Email,
		Password:      input.Password,
		ClientContext: h.extractor.Extract(c.Request()),
		RequestID:     deliverycontext.GetRequestID(c),
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, loginResponse{
		Token:     output.Token,
		SessionID: output.Session.ID.String(),
		User:      toUserView(output.User),
	}, "Login successful")
}

// OAuthGoogle handles a Google ID-token login.
func (h *AuthHandler) OAuthGoogle(c echo.Context) error {
	var input oauthLoginRequest
	if err := c.Bind(&input); err != nil {
		return response.BindingError(c, "INVALID_INPUT", "Invalid OAuth input")
	}
	if err := c.Validate(&input); err != nil {
		return errors.WithStack(err)
	}

	output, err := h.uc.OAuthLogin(c.Request().Context(), usecase.OAuthLoginInput{
		IDToken:       input.IDToken,
		ClientContext: h.extractor.Extract(c.Request()),
		RequestID:     deliverycontext.GetRequestID(c),
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, loginResponse{
		Token:     output.Token,
		SessionID: output.Session.ID.String(),
		User:      toUserView(output.User),
	}, "Login successful")
}

// Activity returns the newest login attempts recorded against the caller's
// email, successes and failures alike.
func (h *AuthHandler) Activity(c echo.Context) error {
	userID, _, ok := middleware.PrincipalFromContext(c)
	if !ok {
		return response.Unauthorized(c, "TOKEN_MISSING", "Authentication required")
	}

	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	attempts, err := h.uc.RecentActivity(c.Request().Context(), userID, limit)
	if err != nil {
		return errors.WithStack(err)
	}

	views := make([]attemptView, 0, len(attempts))
	for _, attempt := range attempts {
		views = append(views, toAttemptView(attempt))
	}

	return response.Success(c, http.StatusOK, views, "")
}

// UnlinkProvider removes one of the caller's sign-in methods.
func (h *AuthHandler) UnlinkProvider(c echo.Context) error {
	userID, _, ok := middleware.PrincipalFromContext(c)
	if !ok {
		return response.Unauthorized(c, "TOKEN_MISSING", "Authentication required")
	}

	provider := entity.ProviderType(c.Param("provider"))
	switch provider {
	case entity.ProviderTypeEmail, entity.ProviderTypeGoogle, entity.ProviderTypeGitHub:
	default:
		return response.BindingError(c, "INVALID_INPUT", "Unknown provider")
	}

	if err := h.uc.UnlinkProvider(c.Request().Context(), userID, provider); err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, nil, "Sign-in method removed")
}

// Logout deletes the session behind the presented token.
func (h *AuthHandler) Logout(c echo.Context) error {
	_, sessionID, ok := middleware.PrincipalFromContext(c)
	if !ok {
		return response.Unauthorized(c, "TOKEN_MISSING", "Authentication required")
	}

	if err := h.uc.Logout(c.Request().Context(), sessionID); err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, nil, "Logout successful")
}
