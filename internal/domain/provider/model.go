package provider

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrInvalidWindow is returned when a window fails validation.
	ErrInvalidWindow = errors.New("invalid availability window")
	// ErrInvalidInput is returned when a doctor or service lacks required fields.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound is returned when a doctor, service or window does not exist.
	ErrNotFound = errors.New("not found")
)

// Doctor is a practitioner attached to one hospital. UserID is the login
// account that receives booking notifications and may confirm or decline.
type Doctor struct {
	ID         uuid.UUID `json:"id"`
	UserID     uuid.UUID `json:"user_id"`
	HospitalID uuid.UUID `json:"hospital_id"`
	FullName   string    `json:"full_name"`
	Specialty  string    `json:"specialty"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// HospitalService is a bookable hospital-run service such as an ambulance
// dispatch or a diagnostic unit. Immediate services skip the slot grid and
// are dispatched right away; the window fields are ignored for them.
// CapacityPerDay nil means unlimited.
type HospitalService struct {
	ID             uuid.UUID `json:"id"`
	HospitalID     uuid.UUID `json:"hospital_id"`
	Name           string    `json:"name"`
	WindowStartMin int       `json:"window_start_min"`
	WindowEndMin   int       `json:"window_end_min"`
	SlotMinutes    int       `json:"slot_minutes"`
	CapacityPerDay *int      `json:"capacity_per_day,omitempty"`
	Immediate      bool      `json:"immediate"`
	RequiresBed    bool      `json:"requires_bed"`
	Active         bool      `json:"active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Validate checks the slot-window fields of a non-immediate service.
func (s *HospitalService) Validate() error {
	if err := validateCapacity(s.CapacityPerDay); err != nil {
		return err
	}
	if s.Immediate {
		return nil
	}
	return validateWindow(s.WindowStartMin, s.WindowEndMin, s.SlotMinutes)
}

// AvailabilityWindow is one recurring weekly sitting of a doctor at a
// hospital. Times are minutes since midnight. Overlapping windows on the
// same weekday are allowed; their capacities add up. CapacityPerDay nil
// means unlimited.
type AvailabilityWindow struct {
	ID             uuid.UUID    `json:"id"`
	DoctorID       uuid.UUID    `json:"doctor_id"`
	HospitalID     uuid.UUID    `json:"hospital_id"`
	Weekday        time.Weekday `json:"weekday"`
	StartMin       int          `json:"start_min"`
	EndMin         int          `json:"end_min"`
	SlotMinutes    int          `json:"slot_minutes"`
	CapacityPerDay *int         `json:"capacity_per_day,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
}

// Validate rejects degenerate windows before they reach storage.
func (w *AvailabilityWindow) Validate() error {
	if w.Weekday < time.Sunday || w.Weekday > time.Saturday {
		return ErrInvalidWindow
	}
	if err := validateCapacity(w.CapacityPerDay); err != nil {
		return err
	}
	return validateWindow(w.StartMin, w.EndMin, w.SlotMinutes)
}

// DayCapacity is the window's contribution to the provider's daily cap,
// 0 meaning unlimited.
func (w *AvailabilityWindow) DayCapacity() int {
	if w.CapacityPerDay == nil {
		return 0
	}
	return *w.CapacityPerDay
}

func validateWindow(start, end, step int) error {
	if start < 0 || end > 24*60 || start >= end {
		return ErrInvalidWindow
	}
	if step <= 0 || step > end-start {
		return ErrInvalidWindow
	}
	return nil
}

func validateCapacity(capacity *int) error {
	if capacity != nil && *capacity <= 0 {
		return ErrInvalidWindow
	}
	return nil
}
