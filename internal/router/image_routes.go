package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/image-tattoo/internal/handler"
	"github.com/iliyamo/image-tattoo/internal/middleware"
)

// ImageRouteOptions controls the middleware placed in front of the image
// endpoints.
type ImageRouteOptions struct {
	// AuthRequired guards every image route with the JWT middleware.
	AuthRequired bool
	JWTSecret    string
	// DeleteRoles restricts DELETE /images/:id when AuthRequired is set.
	// Empty means any authenticated user.
	DeleteRoles []string
	// RateLimit wraps POST /upload.
	RateLimit echo.MiddlewareFunc
	// Cache wraps GET /images.
	Cache echo.MiddlewareFunc
}

// RegisterImages registers the upload, verify, listing, export and delete
// endpoints at the root of e.
func RegisterImages(e *echo.Echo, h *handler.ImageHandler, opts ImageRouteOptions) {
	var guard echo.MiddlewareFunc
	var deleteRole echo.MiddlewareFunc
	if opts.AuthRequired {
		guard = middleware.JWTAuth(opts.JWTSecret)
		if len(opts.DeleteRoles) > 0 {
			deleteRole = middleware.RequireRole(opts.DeleteRoles...)
		}
	}

	// Routes are registered one by one: an echo group with an empty prefix
	// and middleware would also capture unknown paths.
	e.POST("/upload", h.Upload, present(guard, opts.RateLimit)...)
	e.POST("/verify", h.VerifyUpload, present(guard)...)
	e.GET("/images", h.List, present(guard, opts.Cache)...)
	e.GET("/images/:id/metadata", h.Metadata, present(guard)...)
	e.GET("/export", h.Export, present(guard)...)
	e.DELETE("/images/:id", h.Delete, present(guard, deleteRole)...)
}
