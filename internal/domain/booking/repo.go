package booking

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence boundary for bookings. All day parameters
// are dates; implementations compare on the calendar day only.
type Repository interface {
	Create(ctx context.Context, b *Booking) error
	GetByID(ctx context.Context, id uuid.UUID) (*Booking, error)

	// CountActive returns the number of active bookings for a provider-day.
	// Serial assignment and capacity checks derive from this count.
	CountActive(ctx context.Context, ref ProviderRef, day time.Time) (int, error)

	// TakenMinutes returns the slot starts (minutes since midnight) already
	// held by active bookings for a provider-day.
	TakenMinutes(ctx context.Context, ref ProviderRef, day time.Time) (map[int]bool, error)

	// HasActive reports whether the requester already holds an active
	// booking for this provider-day.
	HasActive(ctx context.Context, requesterID uuid.UUID, ref ProviderRef, day time.Time) (bool, error)

	// UpdateStatus moves a booking from one status to another, returning
	// false when the booking was not in the expected status. The compare is
	// atomic so concurrent transitions cannot both win.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (bool, error)

	// SetBedReserved flips the bed flag. Clearing returns false when the
	// flag was already clear, so a give-back cannot run twice.
	SetBedReserved(ctx context.Context, id uuid.UUID, reserved bool) (bool, error)

	ListByRequester(ctx context.Context, requesterID uuid.UUID, status Status, limit, offset int) ([]*Booking, int, error)
	ListByProvider(ctx context.Context, ref ProviderRef, day time.Time, limit, offset int) ([]*Booking, int, error)
}
