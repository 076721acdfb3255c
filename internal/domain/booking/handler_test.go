package booking

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Ariful-Islam-Shihab/CrisisIntel/internal/platform/auth"
)

func mustAllocateViaHandler(t *testing.T, f *fixture, requester uuid.UUID) *Booking {
	t.Helper()
	b, err := f.allocate(t, requester, -1)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	return b
}

func doJSON(t *testing.T, h *Handler, method, path, body string, userID uuid.UUID, role string,
	fn func(echo.Context) error) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if userID != uuid.Nil {
		ctx := req.Context()
		ctx = context.WithValue(ctx, auth.UserIDKey, userID.String())
		ctx = context.WithValue(ctx, auth.UserRoleKey, role)
		c.SetRequest(req.WithContext(ctx))
	}

	if err := fn(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	return rec
}

func errCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid error body %q: %v", rec.Body.String(), err)
	}
	return body.Error.Code
}

func TestHandler_BookAppointment(t *testing.T) {
	f := newFixture(t, Options{})
	h := NewHandler(f.svc)

	body := fmt.Sprintf(`{"doctor_id":%q,"hospital_id":%q,"day":"2026-09-01","desired_time":"10:00"}`,
		f.ref.DoctorID, f.ref.HospitalID)
	rec := doJSON(t, h, http.MethodPost, "/api/v1/appointments/book", body,
		uuid.New(), auth.RoleRequester, h.BookAppointment)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var got bookingResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("invalid body: %v", err)
	}
	if got.Serial != 1 {
		t.Errorf("expected serial 1, got %d", got.Serial)
	}
	if got.ApproxTime != "10:00" {
		t.Errorf("expected approx_time 10:00, got %q", got.ApproxTime)
	}
	if got.Status != StatusBooked {
		t.Errorf("expected booked, got %s", got.Status)
	}
	want := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	if !got.ScheduledAt.Equal(want) {
		t.Errorf("expected scheduled_at %s, got %s", want, got.ScheduledAt)
	}
}

func TestHandler_BookAppointment_UppercaseIDs(t *testing.T) {
	f := newFixture(t, Options{})
	h := NewHandler(f.svc)

	body := fmt.Sprintf(`{"doctor_id":%q,"hospital_id":%q,"day":"2026-09-01","desired_time":"10:00"}`,
		strings.ToUpper(f.ref.DoctorID.String()), strings.ToUpper(f.ref.HospitalID.String()))
	rec := doJSON(t, h, http.MethodPost, "/api/v1/appointments/book", body,
		uuid.New(), auth.RoleRequester, h.BookAppointment)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected uppercase ids to be accepted, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandler_BookAppointment_Unauthenticated(t *testing.T) {
	f := newFixture(t, Options{})
	h := NewHandler(f.svc)

	body := fmt.Sprintf(`{"doctor_id":%q,"hospital_id":%q,"day":"2026-09-01"}`,
		f.ref.DoctorID, f.ref.HospitalID)
	rec := doJSON(t, h, http.MethodPost, "/api/v1/appointments/book", body,
		uuid.Nil, "", h.BookAppointment)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestHandler_BookAppointment_MissingFields(t *testing.T) {
	f := newFixture(t, Options{})
	h := NewHandler(f.svc)

	rec := doJSON(t, h, http.MethodPost, "/api/v1/appointments/book",
		`{"day":"2026-09-01"}`, uuid.New(), auth.RoleRequester, h.BookAppointment)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if code := errCode(t, rec); code != "missing_fields" {
		t.Errorf("expected missing_fields, got %q", code)
	}
}

func TestHandler_BookAppointment_BadDay(t *testing.T) {
	f := newFixture(t, Options{})
	h := NewHandler(f.svc)

	body := fmt.Sprintf(`{"doctor_id":%q,"hospital_id":%q,"day":"September 1st"}`,
		f.ref.DoctorID, f.ref.HospitalID)
	rec := doJSON(t, h, http.MethodPost, "/api/v1/appointments/book", body,
		uuid.New(), auth.RoleRequester, h.BookAppointment)

	if code := errCode(t, rec); code != "invalid_time" {
		t.Errorf("expected invalid_time, got %q", code)
	}
}

func TestHandler_BookAppointment_Duplicate(t *testing.T) {
	f := newFixture(t, Options{})
	h := NewHandler(f.svc)
	requester := uuid.New()

	body := fmt.Sprintf(`{"doctor_id":%q,"hospital_id":%q,"day":"2026-09-01"}`,
		f.ref.DoctorID, f.ref.HospitalID)

	rec := doJSON(t, h, http.MethodPost, "/api/v1/appointments/book", body,
		requester, auth.RoleRequester, h.BookAppointment)
	if rec.Code != http.StatusCreated {
		t.Fatalf("first booking failed: %d", rec.Code)
	}

	rec = doJSON(t, h, http.MethodPost, "/api/v1/appointments/book", body,
		requester, auth.RoleRequester, h.BookAppointment)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if code := errCode(t, rec); code != "duplicate_booking" {
		t.Errorf("expected duplicate_booking, got %q", code)
	}
}

func TestHandler_BookService_ContentionMapsTo409(t *testing.T) {
	f := newFixture(t, Options{LockWait: 20 * time.Millisecond})
	h := NewHandler(f.svc)

	ref := ServiceRef(uuid.New())
	f.avail.providers[ref] = &ProviderInfo{Ref: ref, OwnerUserID: f.owner}
	f.avail.windows[ref] = []Window{{StartMin: 9 * 60, EndMin: 12 * 60, SlotMinutes: 30}}

	key := ref.LockKey(f.day)
	if ok, _ := f.locker.TryAcquire(context.Background(), key, 0); !ok {
		t.Fatal("failed to pre-hold lock")
	}
	defer f.locker.Release(context.Background(), key)

	body := fmt.Sprintf(`{"service_id":%q,"day":"2026-09-01"}`, ref.ServiceID)
	rec := doJSON(t, h, http.MethodPost, "/api/v1/services/book", body,
		uuid.New(), auth.RoleRequester, h.BookService)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	if code := errCode(t, rec); code != "booking_contention" {
		t.Errorf("expected booking_contention, got %q", code)
	}
}

func TestHandler_Cancel_InsideCutoff(t *testing.T) {
	f := newFixture(t, Options{})
	h := NewHandler(f.svc)
	requester := uuid.New()
	b := mustAllocateViaHandler(t, f, requester)

	f.now = b.AllocatedAt.Add(-30 * time.Minute)

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings/"+b.ID.String()+"/cancel", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(b.ID.String())
	ctx := context.WithValue(req.Context(), auth.UserIDKey, requester.String())
	c.SetRequest(req.WithContext(ctx))

	if err := h.Cancel(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if code := errCode(t, rec); code != "cancel_window_closed" {
		t.Errorf("expected cancel_window_closed, got %q", code)
	}
}

func TestHandler_ListMine_InvalidStatus(t *testing.T) {
	f := newFixture(t, Options{})
	h := NewHandler(f.svc)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/bookings?status=waiting", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	ctx := context.WithValue(req.Context(), auth.UserIDKey, uuid.NewString())
	c.SetRequest(req.WithContext(ctx))

	if err := h.ListMine(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if code := errCode(t, rec); code != "invalid_status" {
		t.Errorf("expected invalid_status, got %q", code)
	}
}

func TestHandler_ListMine_ReturnsOwnBookingsOnly(t *testing.T) {
	f := newFixture(t, Options{})
	h := NewHandler(f.svc)
	mine := uuid.New()
	other := uuid.New()

	mustAllocateViaHandler(t, f, mine)
	mustAllocateViaHandler(t, f, other)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/bookings", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	ctx := context.WithValue(req.Context(), auth.UserIDKey, mine.String())
	c.SetRequest(req.WithContext(ctx))

	if err := h.ListMine(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body struct {
		Data  []json.RawMessage `json:"data"`
		Total int               `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid body: %v", err)
	}
	if body.Total != 1 || len(body.Data) != 1 {
		t.Errorf("expected exactly the caller's booking, total=%d len=%d", body.Total, len(body.Data))
	}
}
