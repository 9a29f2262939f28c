package middleware

import "github.com/labstack/echo/v4"

// UserID returns the authenticated user id stored by JWTAuth, or "" for an
// anonymous request.
func UserID(c echo.Context) string {
	if s, ok := c.Get(CtxUserID).(string); ok {
		return s
	}
	return ""
}

// UserName returns the username claim stored by JWTAuth, or "".
func UserName(c echo.Context) string {
	if s, ok := c.Get(CtxUserName).(string); ok {
		return s
	}
	return ""
}

// Role returns the role claim stored by JWTAuth, or "".
func Role(c echo.Context) string {
	if s, ok := c.Get(CtxRole).(string); ok {
		return s
	}
	return ""
}

// userKey identifies the caller in rate-limit keys; anonymous callers
// share the "anon" bucket part.
func userKey(c echo.Context) string {
	if id := UserID(c); id != "" {
		return id
	}
	return "anon"
}
