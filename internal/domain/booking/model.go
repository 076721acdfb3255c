// Package booking implements the allocation engine: serialized slot
// assignment for doctor appointments and hospital service reservations, plus
// the booking lifecycle that follows.
package booking

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a booking.
type Status string

const (
	StatusBooked    Status = "booked"
	StatusConfirmed Status = "confirmed"
	StatusDeclined  Status = "declined"
	StatusCancelled Status = "cancelled"
	StatusDone      Status = "done"
)

// Active reports whether the booking still occupies capacity. Only active
// bookings count toward serials, duplicates and taken slots.
func (s Status) Active() bool {
	return s == StatusBooked || s == StatusConfirmed
}

// Valid reports whether s is a recognized status.
func (s Status) Valid() bool {
	switch s {
	case StatusBooked, StatusConfirmed, StatusDeclined, StatusCancelled, StatusDone:
		return true
	}
	return false
}

// transitions lists the allowed status moves. Terminal states have no entry.
var transitions = map[Status][]Status{
	StatusBooked:    {StatusConfirmed, StatusDeclined, StatusCancelled},
	StatusConfirmed: {StatusDone, StatusCancelled},
}

// CanTransition reports whether a booking may move from one status to
// another.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ProviderKind distinguishes the two bookable provider types.
type ProviderKind string

const (
	KindDoctor  ProviderKind = "doctor"
	KindService ProviderKind = "service"
)

// ProviderRef identifies one bookable target. Doctor bookings are scoped to
// a doctor at a specific hospital; service bookings reference a hospital
// service directly.
type ProviderRef struct {
	Kind       ProviderKind `json:"kind"`
	DoctorID   uuid.UUID    `json:"doctor_id,omitempty"`
	HospitalID uuid.UUID    `json:"hospital_id,omitempty"`
	ServiceID  uuid.UUID    `json:"service_id,omitempty"`
}

// DoctorRef builds a reference to a doctor practicing at a hospital.
func DoctorRef(doctorID, hospitalID uuid.UUID) ProviderRef {
	return ProviderRef{Kind: KindDoctor, DoctorID: doctorID, HospitalID: hospitalID}
}

// ServiceRef builds a reference to a hospital service.
func ServiceRef(serviceID uuid.UUID) ProviderRef {
	return ProviderRef{Kind: KindService, ServiceID: serviceID}
}

// Validate checks that the reference is internally consistent.
func (r ProviderRef) Validate() error {
	switch r.Kind {
	case KindDoctor:
		if r.DoctorID == uuid.Nil || r.HospitalID == uuid.Nil {
			return fmt.Errorf("doctor reference requires doctor_id and hospital_id")
		}
	case KindService:
		if r.ServiceID == uuid.Nil {
			return fmt.Errorf("service reference requires service_id")
		}
	default:
		return fmt.Errorf("unknown provider kind %q", r.Kind)
	}
	return nil
}

// LockKey returns the mutual-exclusion key for this provider on a given day.
// All allocation for one provider-day happens under this key.
func (r ProviderRef) LockKey(day time.Time) string {
	d := day.Format("2006-01-02")
	if r.Kind == KindDoctor {
		return fmt.Sprintf("booking:doctor:%s:%s:%s", r.DoctorID, r.HospitalID, d)
	}
	return fmt.Sprintf("booking:service:%s:%s", r.ServiceID, d)
}

func (r ProviderRef) String() string {
	if r.Kind == KindDoctor {
		return fmt.Sprintf("doctor %s at hospital %s", r.DoctorID, r.HospitalID)
	}
	return fmt.Sprintf("service %s", r.ServiceID)
}

// Booking is one requester's claim on a provider slot for a day.
type Booking struct {
	ID          uuid.UUID   `json:"id"`
	RequesterID uuid.UUID   `json:"requester_id"`
	Ref         ProviderRef `json:"provider"`
	Day         time.Time   `json:"day"`
	// RequestedMin is the desired time as minutes since midnight, or -1 when
	// the requester expressed no preference.
	RequestedMin int `json:"requested_min"`
	// AllocatedMin is the assigned slot start as minutes since midnight.
	AllocatedMin int       `json:"allocated_min"`
	AllocatedAt  time.Time `json:"scheduled_at"`
	Serial       int       `json:"serial"`
	Status       Status    `json:"status"`
	Notes        string    `json:"notes,omitempty"`
	Lat          *float64  `json:"lat,omitempty"`
	Lng          *float64  `json:"lng,omitempty"`
	BedReserved  bool      `json:"bed_reserved,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ApproxTime renders the allocated slot as a wall-clock string (HH:MM).
func (b *Booking) ApproxTime() string {
	return MinutesToClock(b.AllocatedMin)
}

// MinutesToClock formats minutes-since-midnight as HH:MM.
func MinutesToClock(min int) string {
	return fmt.Sprintf("%02d:%02d", min/60, min%60)
}

// ClockToMinutes parses HH:MM into minutes since midnight.
func ClockToMinutes(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("parse clock time %q: %w", s, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// CombineDayMinutes builds the full timestamp for a slot on a given day.
func CombineDayMinutes(day time.Time, min int) time.Time {
	d := day.Truncate(24 * time.Hour)
	return time.Date(d.Year(), d.Month(), d.Day(), min/60, min%60, 0, 0, day.Location())
}

// Window is one availability stretch on a day, in minutes since midnight.
// Capacity 0 means unlimited.
type Window struct {
	StartMin    int
	EndMin      int
	SlotMinutes int
	Capacity    int
}

// ProviderInfo is the resolved view of a bookable provider that the engine
// needs: who to notify, whether allocation is immediate-mode, and whether a
// confirmation claims a bed.
type ProviderInfo struct {
	Ref         ProviderRef
	OwnerUserID uuid.UUID
	HospitalID  uuid.UUID
	Immediate   bool
	RequiresBed bool
}
