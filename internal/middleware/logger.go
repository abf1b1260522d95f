package middleware

import (
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/vacation-rental-marketplace/internal/lib/logger/sl"
)

// RequestLogger writes one structured line per request.  It expects echo's
// RequestID middleware to run first.
func RequestLogger(log *slog.Logger) echo.MiddlewareFunc {
	log = log.With(slog.String("component", "middleware/logger"))
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				// let echo's error handler write the response so the status
				// below is the one the client sees
				c.Error(err)
			}

			req := c.Request()
			res := c.Response()
			attrs := []any{
				slog.String("method", req.Method),
				slog.String("path", req.URL.Path),
				slog.String("route", c.Path()),
				slog.Int("status", res.Status),
				slog.Int64("bytes", res.Size),
				slog.String("remote_addr", c.RealIP()),
				slog.String("request_id", res.Header().Get(echo.HeaderXRequestID)),
				slog.Duration("latency", time.Since(start)),
			}
			if id, ok := UserID(c); ok {
				attrs = append(attrs, slog.Uint64("user_id", id))
			}
			switch {
			case err != nil:
				log.Error("request failed", append(attrs, sl.Err(err))...)
			case res.Status >= 500:
				log.Error("request completed", attrs...)
			default:
				log.Info("request completed", attrs...)
			}
			return nil
		}
	}
}
