package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/image-tattoo/internal/handler"
	"github.com/iliyamo/image-tattoo/internal/middleware"
)

// RegisterRoutes registers routes that never require authentication.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers signup and login behind the rate limiter, and
// GET /me behind the JWT middleware.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string, limit echo.MiddlewareFunc) {
	e.POST("/signup", a.Signup, present(limit)...)
	e.POST("/login", a.Login, present(limit)...)
	e.GET("/me", a.Me, middleware.JWTAuth(jwtSecret))
}

// present drops nil middleware so optional layers can be passed unchecked.
func present(ms ...echo.MiddlewareFunc) []echo.MiddlewareFunc {
	var out []echo.MiddlewareFunc
	for _, m := range ms {
		if m != nil {
			out = append(out, m)
		}
	}
	return out
}
