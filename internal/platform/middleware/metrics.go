package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/Ariful-Islam-Shihab/CrisisIntel/internal/platform/auth"
)

// MetricsEntry is one request's timing sample.
type MetricsEntry struct {
	Path       string
	Method     string
	StatusCode int
	DurationMS int64
	UserID     string
	Timestamp  time.Time
}

// MetricsRecorder persists request samples. Recording is best-effort: a
// failed write must never affect the response.
type MetricsRecorder interface {
	RecordRequest(entry MetricsEntry) error
}

// MetricsRecorderFunc is a function adapter for MetricsRecorder.
type MetricsRecorderFunc func(entry MetricsEntry) error

func (f MetricsRecorderFunc) RecordRequest(entry MetricsEntry) error {
	return f(entry)
}

// Metrics samples every request's path, method, status and duration into the
// recorder. Unlike the audit trail it covers reads too; it is the raw
// material for latency and traffic dashboards.
func Metrics(logger zerolog.Logger, recorders ...MetricsRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			entry := MetricsEntry{
				Path:       truncate(c.Request().URL.Path, 255),
				Method:     truncate(c.Request().Method, 8),
				StatusCode: c.Response().Status,
				DurationMS: time.Since(start).Milliseconds(),
				UserID:     auth.UserIDFromContext(c.Request().Context()),
				Timestamp:  time.Now().UTC(),
			}

			if len(recorders) > 0 && recorders[0] != nil {
				if recErr := recorders[0].RecordRequest(entry); recErr != nil {
					logger.Debug().Err(recErr).Str("path", entry.Path).
						Msg("failed to record request metric")
				}
			}

			return err
		}
	}
}

func truncate(s string, max int) string {
	if len(s) > max {
		return s[:max]
	}
	return s
}
