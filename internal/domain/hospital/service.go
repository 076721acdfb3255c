package hospital

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Ariful-Islam-Shihab/CrisisIntel/internal/domain/booking"
)

// Service manages hospitals and their bed pools. It implements
// booking.BedAllocator for bed-backed service bookings.
type Service struct {
	repo Repository
	log  zerolog.Logger
}

func NewService(repo Repository, log zerolog.Logger) *Service {
	return &Service{repo: repo, log: log.With().Str("component", "hospital").Logger()}
}

func (s *Service) Create(ctx context.Context, h *Hospital) error {
	if err := h.Validate(); err != nil {
		return err
	}
	return s.repo.Create(ctx, h)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Hospital, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Hospital, int, error) {
	return s.repo.List(ctx, limit, offset)
}

// SetBeds lets an admin resize the pool. Available may be lowered below the
// number of beds currently claimed; in-flight bookings keep theirs and the
// counters converge as they are released.
func (s *Service) SetBeds(ctx context.Context, id uuid.UUID, total, available int) error {
	if total < 0 || available < 0 || available > total {
		return ErrInvalidInput
	}
	return s.repo.SetBeds(ctx, id, total, available)
}

// Reserve claims one bed or fails with booking.ErrNoBeds.
func (s *Service) Reserve(ctx context.Context, hospitalID uuid.UUID) error {
	ok, err := s.repo.DecrementBeds(ctx, hospitalID)
	if err != nil {
		return err
	}
	if !ok {
		return booking.ErrNoBeds
	}
	return nil
}

// Release gives a bed back. Hitting the ceiling means the pool was resized
// after the claim; the give-back is logged and dropped.
func (s *Service) Release(ctx context.Context, hospitalID uuid.UUID) error {
	ok, err := s.repo.IncrementBeds(ctx, hospitalID)
	if err != nil {
		return err
	}
	if !ok {
		s.log.Warn().Str("hospital_id", hospitalID.String()).
			Msg("bed give-back dropped, pool already full")
	}
	return nil
}
