package http

import (
	"context"
	"log/slog"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const maxRequestIDLen = 128

type requestIDKey struct{}

// RequestIDMiddleware tags every request with an id, reusing the caller's
// X-Request-Id when it is a short printable token. The id is echoed back and
// carried on the request context.
func RequestIDMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := c.Request().Header.Get(echo.HeaderXRequestID)
			if !validRequestID(id) {
				id = uuid.NewString()
			}
			c.Response().Header().Set(echo.HeaderXRequestID, id)

			req := c.Request()
			c.SetRequest(req.WithContext(context.WithValue(req.Context(), requestIDKey{}, id)))
			return next(c)
		}
	}
}

// RequestID returns the id RequestIDMiddleware attached to ctx, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func requestID(c echo.Context) string {
	return RequestID(c.Request().Context())
}

func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}
	for _, r := range id {
		if r > unicode.MaxASCII || !unicode.IsPrint(r) || r == ' ' {
			return false
		}
	}
	return true
}

// LoggingMiddleware writes one record per request: server errors at error
// level, client errors at warn, the rest at info. Handler errors are resolved
// here so the logged status is the one sent.
func LoggingMiddleware(logger *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			if err := next(c); err != nil {
				c.Error(err)
			}

			res := c.Response()
			level := slog.LevelInfo
			switch {
			case res.Status >= 500:
				level = slog.LevelError
			case res.Status >= 400:
				level = slog.LevelWarn
			}

			ctx := c.Request().Context()
			logger.LogAttrs(ctx, level, "request",
				slog.String("request_id", RequestID(ctx)),
				slog.String("method", c.Request().Method),
				slog.String("route", c.Path()),
				slog.Int("status", res.Status),
				slog.Int64("bytes_out", res.Size),
				slog.String("remote_ip", c.RealIP()),
				slog.Duration("latency", time.Since(start)),
			)
			return nil
		}
	}
}
