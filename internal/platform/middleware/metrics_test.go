package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/Ariful-Islam-Shihab/CrisisIntel/internal/platform/auth"
)

type mockMetricsRecorder struct {
	mu      sync.Mutex
	entries []MetricsEntry
	err     error
}

func (m *mockMetricsRecorder) RecordRequest(entry MetricsEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, entry)
	return nil
}

func (m *mockMetricsRecorder) recorded() []MetricsEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MetricsEntry(nil), m.entries...)
}

func metricsRequest(t *testing.T, rec *mockMetricsRecorder, method, path, user string,
	handler echo.HandlerFunc) {
	t.Helper()
	logger := zerolog.New(os.Stderr)
	e := echo.New()
	req := httptest.NewRequest(method, path, nil)
	res := httptest.NewRecorder()
	c := e.NewContext(req, res)

	if user != "" {
		ctx := context.WithValue(req.Context(), auth.UserIDKey, user)
		c.SetRequest(req.WithContext(ctx))
	}

	mw := Metrics(logger, rec)
	if err := mw(handler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestMetrics_SamplesReadsToo(t *testing.T) {
	rec := &mockMetricsRecorder{}
	metricsRequest(t, rec, http.MethodGet, "/api/v1/bookings", "user-1",
		func(c echo.Context) error { return c.String(http.StatusOK, "ok") })

	entries := rec.recorded()
	if len(entries) != 1 {
		t.Fatalf("expected 1 sample, got %d", len(entries))
	}
	e := entries[0]
	if e.Path != "/api/v1/bookings" || e.Method != http.MethodGet {
		t.Errorf("unexpected sample %+v", e)
	}
	if e.StatusCode != http.StatusOK {
		t.Errorf("expected status 200, got %d", e.StatusCode)
	}
	if e.UserID != "user-1" {
		t.Errorf("expected user-1, got %q", e.UserID)
	}
	if e.DurationMS < 0 {
		t.Errorf("expected non-negative duration, got %d", e.DurationMS)
	}
}

func TestMetrics_AnonymousRequestHasEmptyUser(t *testing.T) {
	rec := &mockMetricsRecorder{}
	metricsRequest(t, rec, http.MethodGet, "/health", "",
		func(c echo.Context) error { return c.String(http.StatusOK, "ok") })

	entries := rec.recorded()
	if len(entries) != 1 {
		t.Fatalf("expected 1 sample, got %d", len(entries))
	}
	if entries[0].UserID != "" {
		t.Errorf("expected empty user id, got %q", entries[0].UserID)
	}
}

func TestMetrics_TruncatesLongPaths(t *testing.T) {
	rec := &mockMetricsRecorder{}
	long := "/api/v1/" + strings.Repeat("x", 400)
	metricsRequest(t, rec, http.MethodGet, long, "",
		func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })

	entries := rec.recorded()
	if len(entries) != 1 {
		t.Fatalf("expected 1 sample, got %d", len(entries))
	}
	if got := len(entries[0].Path); got != 255 {
		t.Errorf("expected path truncated to 255, got %d", got)
	}
}

func TestMetrics_RecorderFailureDoesNotFailRequest(t *testing.T) {
	rec := &mockMetricsRecorder{err: errors.New("metrics store down")}
	logger := zerolog.New(os.Stderr)
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/hospitals", nil)
	res := httptest.NewRecorder()
	c := e.NewContext(req, res)

	mw := Metrics(logger, rec)
	err := mw(func(c echo.Context) error { return c.String(http.StatusOK, "ok") })(c)
	if err != nil {
		t.Fatalf("recorder failure must not fail the request, got %v", err)
	}
	if res.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", res.Code)
	}
}
