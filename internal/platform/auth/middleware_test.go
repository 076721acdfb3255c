package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

const testSecret = "unit-test-secret"

func doRequest(t *testing.T, mw echo.MiddlewareFunc, header string) (*httptest.ResponseRecorder, echo.Context) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/bookings", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := mw(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	if err := handler(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	return rec, c
}

func TestMiddleware_ValidToken(t *testing.T) {
	token, err := IssueToken(testSecret, "user-123", RoleDoctor, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	rec, c := doRequest(t, Middleware(testSecret), "Bearer "+token)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	ctx := c.Request().Context()
	if got := UserIDFromContext(ctx); got != "user-123" {
		t.Errorf("expected user-123 in context, got %q", got)
	}
	if got := RoleFromContext(ctx); got != RoleDoctor {
		t.Errorf("expected doctor role in context, got %q", got)
	}
}

func TestMiddleware_MissingHeader(t *testing.T) {
	rec, _ := doRequest(t, Middleware(testSecret), "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestMiddleware_MalformedHeader(t *testing.T) {
	rec, _ := doRequest(t, Middleware(testSecret), "Token abc")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestMiddleware_WrongSecret(t *testing.T) {
	token, err := IssueToken("other-secret", "user-123", RoleDoctor, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	rec, _ := doRequest(t, Middleware(testSecret), "Bearer "+token)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestMiddleware_ExpiredToken(t *testing.T) {
	token, err := IssueToken(testSecret, "user-123", RoleDoctor, -time.Minute)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	rec, _ := doRequest(t, Middleware(testSecret), "Bearer "+token)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestDevMiddleware_DefaultsToAdmin(t *testing.T) {
	rec, c := doRequest(t, DevMiddleware(), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := RoleFromContext(c.Request().Context()); got != RoleAdmin {
		t.Errorf("expected admin role, got %q", got)
	}
}

func TestIsAdmin(t *testing.T) {
	rec, c := doRequest(t, DevMiddleware(), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !IsAdmin(c.Request().Context()) {
		t.Error("expected IsAdmin true for dev identity")
	}
}
