package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Ariful-Islam-Shihab/CrisisIntel/internal/platform/db"
	"github.com/Ariful-Islam-Shihab/CrisisIntel/internal/platform/notify"
)

// AvailabilitySource resolves provider references and yields the windows
// governing a provider's day. Implemented by the provider domain.
type AvailabilitySource interface {
	Resolve(ctx context.Context, ref ProviderRef) (*ProviderInfo, error)
	WindowsForDay(ctx context.Context, ref ProviderRef, day time.Time) ([]Window, error)
}

// BedAllocator guards the bed pool of a hospital. Reserve fails with
// ErrNoBeds when the pool is empty; both operations are atomic.
type BedAllocator interface {
	Reserve(ctx context.Context, hospitalID uuid.UUID) error
	Release(ctx context.Context, hospitalID uuid.UUID) error
}

// Options tunes the engine's timing behavior.
type Options struct {
	// LockWait bounds how long Allocate waits for the provider-day lock.
	LockWait time.Duration
	// CancelCutoff is the minimum remaining time before the slot that still
	// allows a requester-initiated cancel.
	CancelCutoff time.Duration
	// ImmediateLead is the fixed now-to-slot offset for immediate services.
	ImmediateLead time.Duration
	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time
}

// Service is the allocation coordinator: it owns the serialize-allocate-
// persist sequence and the lifecycle transitions that follow.
type Service struct {
	repo     Repository
	avail    AvailabilitySource
	beds     BedAllocator
	locker   db.Locker
	notifier notify.Notifier
	log      zerolog.Logger

	lockWait      time.Duration
	cancelCutoff  time.Duration
	immediateLead time.Duration
	now           func() time.Time
}

func NewService(repo Repository, avail AvailabilitySource, beds BedAllocator,
	locker db.Locker, notifier notify.Notifier, log zerolog.Logger, opts Options) *Service {
	if opts.LockWait <= 0 {
		opts.LockWait = 10 * time.Second
	}
	if opts.CancelCutoff <= 0 {
		opts.CancelCutoff = 2 * time.Hour
	}
	if opts.ImmediateLead <= 0 {
		opts.ImmediateLead = 15 * time.Minute
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Service{
		repo:          repo,
		avail:         avail,
		beds:          beds,
		locker:        locker,
		notifier:      notifier,
		log:           log,
		lockWait:      opts.LockWait,
		cancelCutoff:  opts.CancelCutoff,
		immediateLead: opts.ImmediateLead,
		now:           opts.Now,
	}
}

// AllocateRequest is one requester's booking attempt.
type AllocateRequest struct {
	RequesterID uuid.UUID
	Ref         ProviderRef
	Day         time.Time
	// DesiredMin is the preferred time in minutes since midnight, or -1 for
	// no preference ("earliest in window").
	DesiredMin int
	Notes      string
	Lat        *float64
	Lng        *float64
}

func (req *AllocateRequest) validate() error {
	if req.RequesterID == uuid.Nil {
		return fmt.Errorf("requester_id is required")
	}
	if err := req.Ref.Validate(); err != nil {
		return err
	}
	if req.Day.IsZero() {
		return fmt.Errorf("day is required")
	}
	if req.DesiredMin < -1 || req.DesiredMin >= 24*60 {
		return fmt.Errorf("desired time out of range")
	}
	return nil
}

// Allocate runs the full booking sequence: resolve the provider, serialize
// on the provider-day lock, pick a slot, persist, then notify. Exactly one
// concurrent caller per provider-day executes the critical section at a
// time; the rest wait or fail with ErrContention.
func (s *Service) Allocate(ctx context.Context, req AllocateRequest) (*Booking, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	info, err := s.avail.Resolve(ctx, req.Ref)
	if err != nil {
		return nil, err
	}

	day := req.Day.Truncate(24 * time.Hour)
	if info.Immediate {
		// Immediate services schedule relative to now regardless of the
		// requested day.
		day = s.now().Truncate(24 * time.Hour)
	}

	// Fast-path duplicate check outside the lock. Re-checked inside: this
	// one only spares doomed requests the lock wait.
	if dup, err := s.repo.HasActive(ctx, req.RequesterID, req.Ref, day); err != nil {
		return nil, fmt.Errorf("duplicate pre-check: %w", err)
	} else if dup {
		return nil, ErrDuplicate
	}

	var windows []Window
	if !info.Immediate {
		windows, err = s.avail.WindowsForDay(ctx, req.Ref, day)
		if err != nil {
			return nil, err
		}
		if len(windows) == 0 {
			return nil, ErrOutsideWindow
		}
	}

	key := req.Ref.LockKey(day)
	acquired, err := s.locker.TryAcquire(ctx, key, s.lockWait)
	if err != nil {
		return nil, fmt.Errorf("acquire booking lock: %w", err)
	}
	if !acquired {
		return nil, ErrContention
	}

	b, err := s.allocateLocked(ctx, req, info, day, windows, key)
	if err != nil {
		return nil, err
	}

	// Notifications go out after the lock is released so slow delivery
	// cannot extend the critical section.
	payload := map[string]any{
		"booking_id":   b.ID.String(),
		"serial":       b.Serial,
		"approx_time":  b.ApproxTime(),
		"scheduled_at": b.AllocatedAt,
		"status":       string(b.Status),
		"provider":     b.Ref.String(),
	}
	s.notifier.Notify(ctx, b.RequesterID, notify.EventBookingCreated, payload)
	if info.OwnerUserID != uuid.Nil && info.OwnerUserID != b.RequesterID {
		s.notifier.Notify(ctx, info.OwnerUserID, notify.EventBookingCreated, payload)
	}

	return b, nil
}

// allocateLocked is the critical section. The lock is always released on
// exit, success or not.
func (s *Service) allocateLocked(ctx context.Context, req AllocateRequest, info *ProviderInfo,
	day time.Time, windows []Window, key string) (*Booking, error) {
	defer func() {
		// Release must not inherit a cancelled request context.
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := s.locker.Release(releaseCtx, key); err != nil {
			s.log.Error().Err(err).Str("lock_key", key).Msg("failed to release booking lock")
		}
	}()

	// Re-check under the lock: another request may have slipped in between
	// the fast-path check and acquisition.
	if dup, err := s.repo.HasActive(ctx, req.RequesterID, req.Ref, day); err != nil {
		return nil, fmt.Errorf("duplicate check: %w", err)
	} else if dup {
		return nil, ErrDuplicate
	}

	count, err := s.repo.CountActive(ctx, req.Ref, day)
	if err != nil {
		return nil, fmt.Errorf("count active bookings: %w", err)
	}

	var allocatedMin int
	var allocatedAt time.Time
	if info.Immediate {
		allocatedAt, allocatedMin = ImmediateSlot(s.now(), s.immediateLead)
	} else {
		if limit := DayCapacity(windows); limit > 0 && count >= limit {
			return nil, ErrCapacityFull
		}

		taken, err := s.repo.TakenMinutes(ctx, req.Ref, day)
		if err != nil {
			return nil, fmt.Errorf("read taken slots: %w", err)
		}

		desired := req.DesiredMin
		if desired < 0 {
			desired = windows[0].StartMin
		}

		min, ok := ChooseSlot(desired, windows, taken)
		if !ok {
			return nil, ErrCapacityFull
		}
		allocatedMin = min
		allocatedAt = CombineDayMinutes(day, min)
	}

	b := &Booking{
		ID:           uuid.New(),
		RequesterID:  req.RequesterID,
		Ref:          req.Ref,
		Day:          day,
		RequestedMin: req.DesiredMin,
		AllocatedMin: allocatedMin,
		AllocatedAt:  allocatedAt,
		Serial:       count + 1,
		Status:       StatusBooked,
		Notes:        req.Notes,
		Lat:          req.Lat,
		Lng:          req.Lng,
		CreatedAt:    s.now(),
		UpdatedAt:    s.now(),
	}
	if err := s.repo.Create(ctx, b); err != nil {
		return nil, fmt.Errorf("persist booking: %w", err)
	}

	s.log.Info().
		Str("booking_id", b.ID.String()).
		Str("provider", b.Ref.String()).
		Str("day", day.Format("2006-01-02")).
		Int("serial", b.Serial).
		Str("slot", b.ApproxTime()).
		Msg("booking allocated")

	return b, nil
}

// Get returns a booking visible to the actor: its requester, the provider
// owner, or an admin.
func (s *Service) Get(ctx context.Context, id uuid.UUID, actor Actor) (*Booking, error) {
	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.Admin && b.RequesterID != actor.UserID && !s.isOwner(ctx, b, actor) {
		return nil, ErrForbidden
	}
	return b, nil
}

// ListForRequester pages through the actor's own bookings.
func (s *Service) ListForRequester(ctx context.Context, requesterID uuid.UUID, status Status, limit, offset int) ([]*Booking, int, error) {
	if status != "" && !status.Valid() {
		return nil, 0, fmt.Errorf("unknown status %q", status)
	}
	return s.repo.ListByRequester(ctx, requesterID, status, limit, offset)
}

// ListForProvider pages through a provider's bookings for one day, in serial
// order. Only the provider owner or an admin may call it.
func (s *Service) ListForProvider(ctx context.Context, ref ProviderRef, day time.Time, actor Actor, limit, offset int) ([]*Booking, int, error) {
	if err := ref.Validate(); err != nil {
		return nil, 0, err
	}
	info, err := s.avail.Resolve(ctx, ref)
	if err != nil {
		return nil, 0, err
	}
	if !actor.Admin && info.OwnerUserID != actor.UserID {
		return nil, 0, ErrForbidden
	}
	return s.repo.ListByProvider(ctx, ref, day.Truncate(24*time.Hour), limit, offset)
}

func (s *Service) isOwner(ctx context.Context, b *Booking, actor Actor) bool {
	info, err := s.avail.Resolve(ctx, b.Ref)
	if err != nil {
		return false
	}
	return info.OwnerUserID == actor.UserID
}
