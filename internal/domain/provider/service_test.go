package provider

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Ariful-Islam-Shihab/CrisisIntel/internal/domain/booking"
)

func intp(n int) *int { return &n }

type memRepo struct {
	mu       sync.Mutex
	doctors  map[uuid.UUID]*Doctor
	services map[uuid.UUID]*HospitalService
	windows  map[uuid.UUID]*AvailabilityWindow
	admins   map[uuid.UUID]uuid.UUID

	weekdayCalls int
}

func newMemRepo() *memRepo {
	return &memRepo{
		doctors:  make(map[uuid.UUID]*Doctor),
		services: make(map[uuid.UUID]*HospitalService),
		windows:  make(map[uuid.UUID]*AvailabilityWindow),
		admins:   make(map[uuid.UUID]uuid.UUID),
	}
}

func (m *memRepo) CreateDoctor(_ context.Context, d *Doctor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	m.doctors[d.ID] = d
	return nil
}

func (m *memRepo) GetDoctor(_ context.Context, id uuid.UUID) (*Doctor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.doctors[id]
	if !ok {
		return nil, ErrNotFound
	}
	return d, nil
}

func (m *memRepo) ListDoctors(_ context.Context, f DoctorFilter, limit, offset int) ([]*Doctor, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Doctor
	for _, d := range m.doctors {
		if f.HospitalID != nil && d.HospitalID != *f.HospitalID {
			continue
		}
		if f.Specialty != "" && d.Specialty != f.Specialty {
			continue
		}
		if f.ActiveOnly && !d.Active {
			continue
		}
		out = append(out, d)
	}
	return out, len(out), nil
}

func (m *memRepo) SetDoctorActive(_ context.Context, id uuid.UUID, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.doctors[id]
	if !ok {
		return ErrNotFound
	}
	d.Active = active
	return nil
}

func (m *memRepo) CreateService(_ context.Context, s *HospitalService) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	m.services[s.ID] = s
	return nil
}

func (m *memRepo) GetService(_ context.Context, id uuid.UUID) (*HospitalService, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.services[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

func (m *memRepo) ListServices(_ context.Context, hospitalID uuid.UUID, limit, offset int) ([]*HospitalService, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*HospitalService
	for _, s := range m.services {
		if s.HospitalID == hospitalID {
			out = append(out, s)
		}
	}
	return out, len(out), nil
}

func (m *memRepo) SetServiceActive(_ context.Context, id uuid.UUID, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.services[id]
	if !ok {
		return ErrNotFound
	}
	s.Active = active
	return nil
}

func (m *memRepo) CreateWindow(_ context.Context, w *AvailabilityWindow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	m.windows[w.ID] = w
	return nil
}

func (m *memRepo) DeleteWindow(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.windows[id]; !ok {
		return ErrNotFound
	}
	delete(m.windows, id)
	return nil
}

func (m *memRepo) ListWindows(_ context.Context, doctorID uuid.UUID) ([]*AvailabilityWindow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*AvailabilityWindow
	for _, w := range m.windows {
		if w.DoctorID == doctorID {
			out = append(out, w)
		}
	}
	return out, nil
}

func (m *memRepo) WindowsForWeekday(_ context.Context, doctorID, hospitalID uuid.UUID, weekday time.Weekday) ([]*AvailabilityWindow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.weekdayCalls++
	var out []*AvailabilityWindow
	for _, w := range m.windows {
		if w.DoctorID == doctorID && w.HospitalID == hospitalID && w.Weekday == weekday {
			out = append(out, w)
		}
	}
	return out, nil
}

func (m *memRepo) HospitalAdmin(_ context.Context, hospitalID uuid.UUID) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	admin, ok := m.admins[hospitalID]
	if !ok {
		return uuid.Nil, ErrNotFound
	}
	return admin, nil
}

type provFixture struct {
	repo *memRepo
	svc  *Service

	hospitalID uuid.UUID
	doctor     *Doctor
}

func newProvFixture(t *testing.T) *provFixture {
	t.Helper()
	f := &provFixture{repo: newMemRepo(), hospitalID: uuid.New()}
	f.svc = NewService(f.repo, time.Minute, zerolog.Nop())
	f.repo.admins[f.hospitalID] = uuid.New()

	f.doctor = &Doctor{UserID: uuid.New(), HospitalID: f.hospitalID, FullName: "Dr. Rahman", Specialty: "medicine"}
	if err := f.svc.CreateDoctor(context.Background(), f.doctor); err != nil {
		t.Fatalf("create doctor: %v", err)
	}
	return f
}

// addWindow adds a doctor window; capacity 0 means unlimited.
func (f *provFixture) addWindow(t *testing.T, weekday time.Weekday, startMin, endMin, step, capacity int) *AvailabilityWindow {
	t.Helper()
	w := &AvailabilityWindow{
		DoctorID:    f.doctor.ID,
		HospitalID:  f.hospitalID,
		Weekday:     weekday,
		StartMin:    startMin,
		EndMin:      endMin,
		SlotMinutes: step,
	}
	if capacity > 0 {
		w.CapacityPerDay = &capacity
	}
	if err := f.svc.AddWindow(context.Background(), w); err != nil {
		t.Fatalf("add window: %v", err)
	}
	return w
}

// dayOn returns a date in September 2026 falling on the given weekday.
// 2026-09-06 is a Sunday.
func dayOn(weekday time.Weekday) time.Time {
	return time.Date(2026, 9, 6+int(weekday), 0, 0, 0, 0, time.UTC)
}

func TestWindowValidation(t *testing.T) {
	cases := []struct {
		name string
		w    AvailabilityWindow
		ok   bool
	}{
		{"valid", AvailabilityWindow{Weekday: time.Monday, StartMin: 540, EndMin: 720, SlotMinutes: 30, CapacityPerDay: intp(10)}, true},
		{"unlimited capacity", AvailabilityWindow{Weekday: time.Monday, StartMin: 540, EndMin: 720, SlotMinutes: 30}, true},
		{"start after end", AvailabilityWindow{Weekday: time.Monday, StartMin: 720, EndMin: 540, SlotMinutes: 30, CapacityPerDay: intp(10)}, false},
		{"zero length", AvailabilityWindow{Weekday: time.Monday, StartMin: 540, EndMin: 540, SlotMinutes: 30, CapacityPerDay: intp(10)}, false},
		{"negative start", AvailabilityWindow{Weekday: time.Monday, StartMin: -5, EndMin: 540, SlotMinutes: 30, CapacityPerDay: intp(10)}, false},
		{"end past midnight", AvailabilityWindow{Weekday: time.Monday, StartMin: 540, EndMin: 1500, SlotMinutes: 30, CapacityPerDay: intp(10)}, false},
		{"zero step", AvailabilityWindow{Weekday: time.Monday, StartMin: 540, EndMin: 720, SlotMinutes: 0, CapacityPerDay: intp(10)}, false},
		{"step wider than window", AvailabilityWindow{Weekday: time.Monday, StartMin: 540, EndMin: 720, SlotMinutes: 240, CapacityPerDay: intp(10)}, false},
		{"zero capacity", AvailabilityWindow{Weekday: time.Monday, StartMin: 540, EndMin: 720, SlotMinutes: 30, CapacityPerDay: intp(0)}, false},
		{"bad weekday", AvailabilityWindow{Weekday: time.Weekday(9), StartMin: 540, EndMin: 720, SlotMinutes: 30, CapacityPerDay: intp(10)}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.w.Validate()
			if tc.ok && err != nil {
				t.Errorf("expected valid, got %v", err)
			}
			if !tc.ok && !errors.Is(err, ErrInvalidWindow) {
				t.Errorf("expected ErrInvalidWindow, got %v", err)
			}
		})
	}
}

func TestServiceValidation(t *testing.T) {
	five := 5
	zero := 0

	good := HospitalService{WindowStartMin: 480, WindowEndMin: 1020, SlotMinutes: 60, CapacityPerDay: &five}
	if err := good.Validate(); err != nil {
		t.Errorf("expected valid, got %v", err)
	}

	immediate := HospitalService{Immediate: true}
	if err := immediate.Validate(); err != nil {
		t.Errorf("immediate service skips window checks, got %v", err)
	}

	badCap := HospitalService{Immediate: true, CapacityPerDay: &zero}
	if !errors.Is(badCap.Validate(), ErrInvalidWindow) {
		t.Error("zero capacity should be rejected even for immediate services")
	}

	badWindow := HospitalService{WindowStartMin: 1020, WindowEndMin: 480, SlotMinutes: 60}
	if !errors.Is(badWindow.Validate(), ErrInvalidWindow) {
		t.Error("inverted window should be rejected")
	}
}

func TestAddWindow_UnknownDoctor(t *testing.T) {
	f := newProvFixture(t)
	w := &AvailabilityWindow{
		DoctorID: uuid.New(), HospitalID: f.hospitalID,
		Weekday: time.Monday, StartMin: 540, EndMin: 720, SlotMinutes: 30, CapacityPerDay: intp(10),
	}
	if err := f.svc.AddWindow(context.Background(), w); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestWindowsForDay_FiltersByWeekday(t *testing.T) {
	f := newProvFixture(t)
	f.addWindow(t, time.Monday, 540, 720, 30, 10)
	f.addWindow(t, time.Wednesday, 600, 780, 30, 10)

	ref := booking.DoctorRef(f.doctor.ID, f.hospitalID)

	monday, err := f.svc.WindowsForDay(context.Background(), ref, dayOn(time.Monday))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(monday) != 1 || monday[0].StartMin != 540 {
		t.Errorf("expected only the Monday window, got %+v", monday)
	}

	sunday, err := f.svc.WindowsForDay(context.Background(), ref, dayOn(time.Sunday))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sunday) != 0 {
		t.Errorf("expected no Sunday windows, got %+v", sunday)
	}
}

func TestWindowsForDay_UnlimitedWindowHasZeroCapacity(t *testing.T) {
	f := newProvFixture(t)
	f.addWindow(t, time.Monday, 540, 720, 30, 0)

	ref := booking.DoctorRef(f.doctor.ID, f.hospitalID)
	windows, err := f.svc.WindowsForDay(context.Background(), ref, dayOn(time.Monday))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(windows) != 1 {
		t.Fatalf("expected one window, got %d", len(windows))
	}
	if windows[0].Capacity != 0 {
		t.Errorf("unlimited window should map to capacity 0, got %d", windows[0].Capacity)
	}
	if got := booking.DayCapacity(windows); got != 0 {
		t.Errorf("expected unlimited day capacity, got %d", got)
	}
}

func TestWindowsForDay_OverlappingWindowsBothReturned(t *testing.T) {
	f := newProvFixture(t)
	f.addWindow(t, time.Monday, 540, 720, 30, 6)
	f.addWindow(t, time.Monday, 660, 840, 30, 4)

	ref := booking.DoctorRef(f.doctor.ID, f.hospitalID)
	windows, err := f.svc.WindowsForDay(context.Background(), ref, dayOn(time.Monday))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(windows) != 2 {
		t.Fatalf("expected both overlapping windows, got %d", len(windows))
	}
	if got := booking.DayCapacity(windows); got != 10 {
		t.Errorf("expected capacities to sum to 10, got %d", got)
	}
}

func TestWindowsForDay_CachesPerWeekday(t *testing.T) {
	f := newProvFixture(t)
	f.addWindow(t, time.Monday, 540, 720, 30, 10)
	ref := booking.DoctorRef(f.doctor.ID, f.hospitalID)

	f.repo.weekdayCalls = 0
	for i := 0; i < 5; i++ {
		if _, err := f.svc.WindowsForDay(context.Background(), ref, dayOn(time.Monday)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if f.repo.weekdayCalls != 1 {
		t.Errorf("expected one repo read, got %d", f.repo.weekdayCalls)
	}
}

func TestWindowsForDay_CacheExpires(t *testing.T) {
	f := newProvFixture(t)
	f.addWindow(t, time.Monday, 540, 720, 30, 10)
	ref := booking.DoctorRef(f.doctor.ID, f.hospitalID)

	now := time.Now()
	f.svc.cache.now = func() time.Time { return now }

	f.repo.weekdayCalls = 0
	f.svc.WindowsForDay(context.Background(), ref, dayOn(time.Monday))
	now = now.Add(2 * time.Minute)
	f.svc.WindowsForDay(context.Background(), ref, dayOn(time.Monday))

	if f.repo.weekdayCalls != 2 {
		t.Errorf("expected a fresh read after TTL, got %d calls", f.repo.weekdayCalls)
	}
}

func TestWindowsForDay_CacheInvalidatedOnWrite(t *testing.T) {
	f := newProvFixture(t)
	f.addWindow(t, time.Monday, 540, 720, 30, 10)
	ref := booking.DoctorRef(f.doctor.ID, f.hospitalID)

	before, _ := f.svc.WindowsForDay(context.Background(), ref, dayOn(time.Monday))
	if len(before) != 1 {
		t.Fatalf("expected one window, got %d", len(before))
	}

	f.addWindow(t, time.Monday, 780, 900, 30, 5)
	after, err := f.svc.WindowsForDay(context.Background(), ref, dayOn(time.Monday))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(after) != 2 {
		t.Errorf("expected the new window to be visible, got %d", len(after))
	}
}

func TestResolve_Doctor(t *testing.T) {
	f := newProvFixture(t)
	ref := booking.DoctorRef(f.doctor.ID, f.hospitalID)

	info, err := f.svc.Resolve(context.Background(), ref)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.OwnerUserID != f.doctor.UserID {
		t.Errorf("expected owner %s, got %s", f.doctor.UserID, info.OwnerUserID)
	}
	if info.HospitalID != f.hospitalID {
		t.Errorf("expected hospital %s, got %s", f.hospitalID, info.HospitalID)
	}
	if info.Immediate || info.RequiresBed {
		t.Error("doctors are never immediate or bed-backed")
	}
}

func TestResolve_InactiveDoctor(t *testing.T) {
	f := newProvFixture(t)
	if err := f.svc.SetDoctorActive(context.Background(), f.doctor.ID, false); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	_, err := f.svc.Resolve(context.Background(), booking.DoctorRef(f.doctor.ID, f.hospitalID))
	if !errors.Is(err, booking.ErrUnknownProvider) {
		t.Errorf("expected ErrUnknownProvider, got %v", err)
	}
}

func TestResolve_DoctorAtWrongHospital(t *testing.T) {
	f := newProvFixture(t)
	_, err := f.svc.Resolve(context.Background(), booking.DoctorRef(f.doctor.ID, uuid.New()))
	if !errors.Is(err, booking.ErrUnknownProvider) {
		t.Errorf("expected ErrUnknownProvider, got %v", err)
	}
}

func TestResolve_Service(t *testing.T) {
	f := newProvFixture(t)
	svc := &HospitalService{
		HospitalID: f.hospitalID, Name: "Ambulance",
		Immediate: true, RequiresBed: true,
	}
	if err := f.svc.CreateService(context.Background(), svc); err != nil {
		t.Fatalf("create service: %v", err)
	}

	info, err := f.svc.Resolve(context.Background(), booking.ServiceRef(svc.ID))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !info.Immediate || !info.RequiresBed {
		t.Error("expected immediate bed-backed service")
	}
	if info.OwnerUserID != f.repo.admins[f.hospitalID] {
		t.Error("service owner should be the hospital admin")
	}
}

func TestWindowsForDay_Service(t *testing.T) {
	f := newProvFixture(t)
	capacity := 8
	svc := &HospitalService{
		HospitalID: f.hospitalID, Name: "X-Ray",
		WindowStartMin: 480, WindowEndMin: 1020, SlotMinutes: 60, CapacityPerDay: &capacity,
	}
	if err := f.svc.CreateService(context.Background(), svc); err != nil {
		t.Fatalf("create service: %v", err)
	}

	windows, err := f.svc.WindowsForDay(context.Background(), booking.ServiceRef(svc.ID), dayOn(time.Friday))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(windows) != 1 {
		t.Fatalf("expected a single service window, got %d", len(windows))
	}
	w := windows[0]
	if w.StartMin != 480 || w.EndMin != 1020 || w.SlotMinutes != 60 || w.Capacity != 8 {
		t.Errorf("unexpected window %+v", w)
	}
}

func TestWindowsForDay_ImmediateServiceHasNone(t *testing.T) {
	f := newProvFixture(t)
	svc := &HospitalService{HospitalID: f.hospitalID, Name: "Ambulance", Immediate: true}
	if err := f.svc.CreateService(context.Background(), svc); err != nil {
		t.Fatalf("create service: %v", err)
	}

	windows, err := f.svc.WindowsForDay(context.Background(), booking.ServiceRef(svc.ID), dayOn(time.Monday))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(windows) != 0 {
		t.Errorf("immediate services have no slot windows, got %+v", windows)
	}
}
