// Package router contains routing and server setup for the HTTP delivery.
package router

import (
	"academy/internal/delivery/http/middleware"
	"academy/internal/delivery/http/router/handler"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
)

type RouterParams struct {
	fx.In

	AuthHandler    *handler.AuthHandler
	SessionHandler *handler.SessionHandler
	AuthMiddleware *middleware.AuthMiddleware
}

// router holds all the handlers that need to be registered.
type router struct {
	authHandler    *handler.AuthHandler
	sessionHandler *handler.SessionHandler
	authMiddleware *middleware.AuthMiddleware
}

// NewRouter is the constructor for the Router.
// Fx will inject the required handlers here.
func NewRouter(params RouterParams) *router {
	return &router{
		authHandler:    params.AuthHandler,
		sessionHandler: params.SessionHandler,
		authMiddleware: params.AuthMiddleware,
	}
}

// RegisterRoutes sets up all the API routes for the application.
func (r *router) RegisterRoutes(e *echo.Echo) {
	// Health check and metrics endpoints
	e.GET("/health", handler.HealthCheck)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Auth routes
	authGroup := e.Group("/auth")
	{
		authGroup.POST("/register", r.authHandler.Register)
		authGroup.POST("/verify-email", r.authHandler.VerifyEmail)
		authGroup.POST("/login", r.authHandler.Login)
		authGroup.POST("/oauth/google", r.authHandler.OAuthGoogle)
	}

	// Account routes that need the principal from the presented token.
	e.POST("/auth/logout", r.authHandler.Logout, r.authMiddleware.Authenticate)
	e.GET("/auth/activity", r.authHandler.Activity, r.authMiddleware.Authenticate)
	e.DELETE("/auth/providers/:provider", r.authHandler.UnlinkProvider, r.authMiddleware.Authenticate)

	// Session management routes behind the reconciling auth middleware
	sessionGroup := e.Group("/sessions")
	sessionGroup.Use(r.authMiddleware.Authenticate)
	{
		sessionGroup.GET("", r.sessionHandler.List)
		sessionGroup.DELETE("/:id", r.sessionHandler.Revoke)
		sessionGroup.POST("/revoke-others", r.sessionHandler.RevokeOthers)
	}
}
