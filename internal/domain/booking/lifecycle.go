package booking

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/Ariful-Islam-Shihab/CrisisIntel/internal/platform/notify"
)

// Actor identifies who is performing a lifecycle action.
type Actor struct {
	UserID uuid.UUID
	Admin  bool
}

// Confirm moves a booked booking to confirmed. Only the provider owner or an
// admin may confirm. For bed-backed services a bed is claimed atomically; if
// the pool is empty the confirmation is rolled back and ErrNoBeds returned.
func (s *Service) Confirm(ctx context.Context, id uuid.UUID, actor Actor) (*Booking, error) {
	b, info, err := s.loadForProviderAction(ctx, id, actor)
	if err != nil {
		return nil, err
	}

	ok, err := s.repo.UpdateStatus(ctx, id, StatusBooked, StatusConfirmed)
	if err != nil {
		return nil, fmt.Errorf("confirm booking: %w", err)
	}
	if !ok {
		return nil, ErrInvalidTransition
	}

	if info.RequiresBed && s.beds != nil {
		if err := s.beds.Reserve(ctx, info.HospitalID); err != nil {
			// Undo the confirmation so the booking stays claimable.
			if _, revErr := s.repo.UpdateStatus(ctx, id, StatusConfirmed, StatusBooked); revErr != nil {
				s.log.Error().Err(revErr).
					Str("booking_id", id.String()).
					Msg("failed to revert confirmation after bed shortage")
			}
			return nil, err
		}
		if _, err := s.repo.SetBedReserved(ctx, id, true); err != nil {
			s.log.Error().Err(err).Str("booking_id", id.String()).Msg("failed to flag reserved bed")
		}
	}

	b, err = s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.notifyTransition(ctx, b, notify.EventBookingConfirmed)
	return b, nil
}

// Decline moves a booked booking to declined. Provider owner or admin only.
func (s *Service) Decline(ctx context.Context, id uuid.UUID, actor Actor) (*Booking, error) {
	_, _, err := s.loadForProviderAction(ctx, id, actor)
	if err != nil {
		return nil, err
	}

	ok, err := s.repo.UpdateStatus(ctx, id, StatusBooked, StatusDeclined)
	if err != nil {
		return nil, fmt.Errorf("decline booking: %w", err)
	}
	if !ok {
		return nil, ErrInvalidTransition
	}

	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.notifyTransition(ctx, b, notify.EventBookingDeclined)
	return b, nil
}

// Cancel voids a booked or confirmed booking. Requesters may cancel their
// own bookings until CancelCutoff before the slot; admins cancel anything,
// any time. A bed claimed at confirmation is returned to the pool.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, actor Actor) (*Booking, error) {
	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !actor.Admin {
		if b.RequesterID != actor.UserID {
			return nil, ErrForbidden
		}
		if b.AllocatedAt.Sub(s.now()) < s.cancelCutoff {
			return nil, ErrCancelWindowClosed
		}
	}

	from := b.Status
	if !CanTransition(from, StatusCancelled) {
		return nil, ErrInvalidTransition
	}

	ok, err := s.repo.UpdateStatus(ctx, id, from, StatusCancelled)
	if err != nil {
		return nil, fmt.Errorf("cancel booking: %w", err)
	}
	if !ok {
		return nil, ErrInvalidTransition
	}

	s.releaseBedIfHeld(ctx, b)

	b, err = s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.notifyTransition(ctx, b, notify.EventBookingCancelled)
	return b, nil
}

// MarkDone closes out a confirmed booking after the visit happened.
// Provider owner or admin only.
func (s *Service) MarkDone(ctx context.Context, id uuid.UUID, actor Actor) (*Booking, error) {
	_, _, err := s.loadForProviderAction(ctx, id, actor)
	if err != nil {
		return nil, err
	}

	ok, err := s.repo.UpdateStatus(ctx, id, StatusConfirmed, StatusDone)
	if err != nil {
		return nil, fmt.Errorf("complete booking: %w", err)
	}
	if !ok {
		return nil, ErrInvalidTransition
	}

	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.notifyTransition(ctx, b, notify.EventBookingDone)
	return b, nil
}

// loadForProviderAction fetches the booking and checks that the actor is the
// provider owner or an admin.
func (s *Service) loadForProviderAction(ctx context.Context, id uuid.UUID, actor Actor) (*Booking, *ProviderInfo, error) {
	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	info, err := s.avail.Resolve(ctx, b.Ref)
	if err != nil {
		return nil, nil, err
	}
	if !actor.Admin && info.OwnerUserID != actor.UserID {
		return nil, nil, ErrForbidden
	}
	return b, info, nil
}

// releaseBedIfHeld returns a claimed bed to its pool exactly once. The flag
// clear is conditional, so a raced double-cancel cannot double-increment.
func (s *Service) releaseBedIfHeld(ctx context.Context, b *Booking) {
	if !b.BedReserved || s.beds == nil {
		return
	}
	cleared, err := s.repo.SetBedReserved(ctx, b.ID, false)
	if err != nil {
		s.log.Error().Err(err).Str("booking_id", b.ID.String()).Msg("failed to clear bed flag")
		return
	}
	if !cleared {
		return
	}

	info, err := s.avail.Resolve(ctx, b.Ref)
	if err != nil {
		s.log.Error().Err(err).Str("booking_id", b.ID.String()).Msg("failed to resolve provider for bed release")
		return
	}
	if err := s.beds.Release(ctx, info.HospitalID); err != nil {
		s.log.Error().Err(err).
			Str("booking_id", b.ID.String()).
			Str("hospital_id", info.HospitalID.String()).
			Msg("failed to return bed to pool")
	}
}

func (s *Service) notifyTransition(ctx context.Context, b *Booking, event string) {
	payload := map[string]any{
		"booking_id":   b.ID.String(),
		"serial":       b.Serial,
		"approx_time":  b.ApproxTime(),
		"scheduled_at": b.AllocatedAt,
		"status":       string(b.Status),
		"provider":     b.Ref.String(),
	}
	s.notifier.Notify(ctx, b.RequesterID, event, payload)

	if info, err := s.avail.Resolve(ctx, b.Ref); err == nil &&
		info.OwnerUserID != uuid.Nil && info.OwnerUserID != b.RequesterID {
		s.notifier.Notify(ctx, info.OwnerUserID, event, payload)
	}
}
