package handler

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
)

// internalError logs err and answers 500 with a fixed message.  The
// internal error never reaches the client.
func internalError(c echo.Context, msg string, err error) error {
	slog.Error(msg, "err", err, "method", c.Request().Method, "path", c.Path())
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": msg})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
}

// ErrorHandler renders errors returned by handlers and middleware as
// {"error": "<message>"}.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code := http.StatusInternalServerError
	msg := http.StatusText(code)
	if he, ok := err.(*echo.HTTPError); ok {
		code = he.Code
		if s, ok := he.Message.(string); ok {
			msg = s
		} else {
			msg = http.StatusText(code)
		}
	} else {
		slog.Error("unhandled error", "err", err, "method", c.Request().Method, "path", c.Path())
	}
	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(code)
		return
	}
	_ = c.JSON(code, echo.Map{"error": msg})
}
