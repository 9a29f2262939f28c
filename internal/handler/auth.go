package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/image-tattoo/internal/middleware"
	"github.com/iliyamo/image-tattoo/internal/service"
)

// AuthHandler bundles dependencies for the signup and login endpoints.
type AuthHandler struct {
	Auth *service.AuthService
}

func NewAuthHandler(auth *service.AuthService) *AuthHandler {
	return &AuthHandler{Auth: auth}
}

type signupReq struct {
	Username  string `json:"username" validate:"required"`
	Email     string `json:"email" validate:"required"`
	Role      string `json:"type_u"`
	Password  string `json:"password" validate:"required"`
	CreatedBy string `json:"create_by"`
}

type loginReq struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Signup creates a user and returns its id.
func (h *AuthHandler) Signup(c echo.Context) error {
	var req signupReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(c, "username, email and password are required")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	id, err := h.Auth.Signup(ctx, service.SignupInput{
		Username:  req.Username,
		Email:     req.Email,
		Role:      req.Role,
		Password:  req.Password,
		CreatedBy: req.CreatedBy,
	})
	switch {
	case errors.Is(err, service.ErrValidation):
		return badRequest(c, "username, email and password are required")
	case errors.Is(err, service.ErrEmailExists):
		return c.JSON(http.StatusConflict, echo.Map{"error": "email already exists"})
	case err != nil:
		return internalError(c, "create user failed", err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"message":       "user created",
		"createdUserId": id,
	})
}

// Login verifies the password and returns a signed session token.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(c, "email and password are required")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	sess, err := h.Auth.Login(ctx, req.Email, req.Password)
	switch {
	case errors.Is(err, service.ErrValidation):
		return badRequest(c, "email and password are required")
	case errors.Is(err, service.ErrUserNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
	case errors.Is(err, service.ErrInvalidCredentials), errors.Is(err, service.ErrAmbiguousAccount):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	case err != nil:
		return internalError(c, "login failed", err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"token":    sess.Token,
		"userId":   sess.UserID,
		"userName": sess.UserName,
	})
}

// Me echoes the claims of the caller's session token.
func (h *AuthHandler) Me(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"user_id":   middleware.UserID(c),
		"user_name": middleware.UserName(c),
		"role":      middleware.Role(c),
	})
}
