package provider

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Ariful-Islam-Shihab/CrisisIntel/internal/domain/booking"
)

// windowEntry holds cached windows and their expiration time.
type windowEntry struct {
	windows   []booking.Window
	expiresAt time.Time
}

// windowCache is a thread-safe in-process cache with lazy expiration.
// Availability windows change rarely but are read on every booking, so a
// short TTL takes the repo off the hot path.
type windowCache struct {
	mu      sync.RWMutex
	entries map[string]*windowEntry
	ttl     time.Duration
	now     func() time.Time
}

func newWindowCache(ttl time.Duration) *windowCache {
	return &windowCache{
		entries: make(map[string]*windowEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (c *windowCache) get(key string) ([]booking.Window, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if c.now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, false
	}
	return entry.windows, true
}

func (c *windowCache) set(key string, windows []booking.Window) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = &windowEntry{windows: windows, expiresAt: c.now().Add(c.ttl)}
}

func (c *windowCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*windowEntry)
}

// Service manages doctors, hospital services and availability windows, and
// answers the booking engine's availability questions. It implements
// booking.AvailabilitySource.
type Service struct {
	repo  Repository
	cache *windowCache
	log   zerolog.Logger
}

func NewService(repo Repository, cacheTTL time.Duration, log zerolog.Logger) *Service {
	if cacheTTL <= 0 {
		cacheTTL = time.Minute
	}
	return &Service{
		repo:  repo,
		cache: newWindowCache(cacheTTL),
		log:   log.With().Str("component", "provider").Logger(),
	}
}

func (s *Service) CreateDoctor(ctx context.Context, d *Doctor) error {
	if d.UserID == uuid.Nil || d.HospitalID == uuid.Nil || d.FullName == "" {
		return fmt.Errorf("doctor requires user, hospital and name: %w", ErrInvalidInput)
	}
	d.Active = true
	return s.repo.CreateDoctor(ctx, d)
}

func (s *Service) GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return s.repo.GetDoctor(ctx, id)
}

func (s *Service) ListDoctors(ctx context.Context, f DoctorFilter, limit, offset int) ([]*Doctor, int, error) {
	return s.repo.ListDoctors(ctx, f, limit, offset)
}

func (s *Service) SetDoctorActive(ctx context.Context, id uuid.UUID, active bool) error {
	if err := s.repo.SetDoctorActive(ctx, id, active); err != nil {
		return err
	}
	s.cache.clear()
	return nil
}

func (s *Service) CreateService(ctx context.Context, svc *HospitalService) error {
	if svc.HospitalID == uuid.Nil || svc.Name == "" {
		return ErrInvalidInput
	}
	if err := svc.Validate(); err != nil {
		return err
	}
	svc.Active = true
	if err := s.repo.CreateService(ctx, svc); err != nil {
		return err
	}
	s.cache.clear()
	return nil
}

func (s *Service) GetService(ctx context.Context, id uuid.UUID) (*HospitalService, error) {
	return s.repo.GetService(ctx, id)
}

func (s *Service) ListServices(ctx context.Context, hospitalID uuid.UUID, limit, offset int) ([]*HospitalService, int, error) {
	return s.repo.ListServices(ctx, hospitalID, limit, offset)
}

func (s *Service) SetServiceActive(ctx context.Context, id uuid.UUID, active bool) error {
	if err := s.repo.SetServiceActive(ctx, id, active); err != nil {
		return err
	}
	s.cache.clear()
	return nil
}

func (s *Service) AddWindow(ctx context.Context, w *AvailabilityWindow) error {
	if err := w.Validate(); err != nil {
		return err
	}
	if _, err := s.repo.GetDoctor(ctx, w.DoctorID); err != nil {
		return err
	}
	if err := s.repo.CreateWindow(ctx, w); err != nil {
		return err
	}
	s.cache.clear()
	return nil
}

func (s *Service) RemoveWindow(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.DeleteWindow(ctx, id); err != nil {
		return err
	}
	s.cache.clear()
	return nil
}

func (s *Service) ListWindows(ctx context.Context, doctorID uuid.UUID) ([]*AvailabilityWindow, error) {
	return s.repo.ListWindows(ctx, doctorID)
}

// Resolve maps a provider reference onto its live metadata. Inactive or
// mismatched providers are indistinguishable from missing ones.
func (s *Service) Resolve(ctx context.Context, ref booking.ProviderRef) (*booking.ProviderInfo, error) {
	switch ref.Kind {
	case booking.KindDoctor:
		d, err := s.repo.GetDoctor(ctx, ref.DoctorID)
		if err != nil {
			return nil, booking.ErrUnknownProvider
		}
		if !d.Active || d.HospitalID != ref.HospitalID {
			return nil, booking.ErrUnknownProvider
		}
		return &booking.ProviderInfo{
			Ref:         ref,
			OwnerUserID: d.UserID,
			HospitalID:  d.HospitalID,
		}, nil

	case booking.KindService:
		svc, err := s.repo.GetService(ctx, ref.ServiceID)
		if err != nil {
			return nil, booking.ErrUnknownProvider
		}
		if !svc.Active {
			return nil, booking.ErrUnknownProvider
		}
		owner, err := s.repo.HospitalAdmin(ctx, svc.HospitalID)
		if err != nil {
			return nil, fmt.Errorf("resolve service owner: %w", err)
		}
		return &booking.ProviderInfo{
			Ref:         ref,
			OwnerUserID: owner,
			HospitalID:  svc.HospitalID,
			Immediate:   svc.Immediate,
			RequiresBed: svc.RequiresBed,
		}, nil

	default:
		return nil, booking.ErrUnknownProvider
	}
}

// WindowsForDay returns the bookable windows a provider has on a given day.
// Immediate services have none. Results are cached per provider and weekday.
func (s *Service) WindowsForDay(ctx context.Context, ref booking.ProviderRef, day time.Time) ([]booking.Window, error) {
	weekday := day.Weekday()
	key := fmt.Sprintf("%s:%d", ref.String(), weekday)
	if windows, ok := s.cache.get(key); ok {
		return windows, nil
	}

	var windows []booking.Window
	switch ref.Kind {
	case booking.KindDoctor:
		rows, err := s.repo.WindowsForWeekday(ctx, ref.DoctorID, ref.HospitalID, weekday)
		if err != nil {
			return nil, err
		}
		for _, w := range rows {
			windows = append(windows, booking.Window{
				StartMin:    w.StartMin,
				EndMin:      w.EndMin,
				SlotMinutes: w.SlotMinutes,
				Capacity:    w.DayCapacity(),
			})
		}

	case booking.KindService:
		svc, err := s.repo.GetService(ctx, ref.ServiceID)
		if err != nil {
			return nil, booking.ErrUnknownProvider
		}
		if !svc.Immediate {
			capacity := 0
			if svc.CapacityPerDay != nil {
				capacity = *svc.CapacityPerDay
			}
			windows = []booking.Window{{
				StartMin:    svc.WindowStartMin,
				EndMin:      svc.WindowEndMin,
				SlotMinutes: svc.SlotMinutes,
				Capacity:    capacity,
			}}
		}

	default:
		return nil, booking.ErrUnknownProvider
	}

	s.cache.set(key, windows)
	return windows, nil
}
