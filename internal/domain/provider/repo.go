package provider

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DoctorFilter narrows doctor listings.
type DoctorFilter struct {
	HospitalID *uuid.UUID
	Specialty  string
	ActiveOnly bool
}

// Repository is the storage contract for doctors, hospital services and
// availability windows.
type Repository interface {
	CreateDoctor(ctx context.Context, d *Doctor) error
	GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error)
	ListDoctors(ctx context.Context, f DoctorFilter, limit, offset int) ([]*Doctor, int, error)
	SetDoctorActive(ctx context.Context, id uuid.UUID, active bool) error

	CreateService(ctx context.Context, s *HospitalService) error
	GetService(ctx context.Context, id uuid.UUID) (*HospitalService, error)
	ListServices(ctx context.Context, hospitalID uuid.UUID, limit, offset int) ([]*HospitalService, int, error)
	SetServiceActive(ctx context.Context, id uuid.UUID, active bool) error

	CreateWindow(ctx context.Context, w *AvailabilityWindow) error
	DeleteWindow(ctx context.Context, id uuid.UUID) error
	ListWindows(ctx context.Context, doctorID uuid.UUID) ([]*AvailabilityWindow, error)
	WindowsForWeekday(ctx context.Context, doctorID, hospitalID uuid.UUID, weekday time.Weekday) ([]*AvailabilityWindow, error)

	// HospitalAdmin returns the admin account that owns a hospital's
	// services.
	HospitalAdmin(ctx context.Context, hospitalID uuid.UUID) (uuid.UUID, error)
}
