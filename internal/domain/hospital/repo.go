package hospital

import (
	"context"

	"github.com/google/uuid"
)

// Repository is the storage contract for hospitals. DecrementBeds and
// IncrementBeds are conditional single-statement updates: they report false
// instead of crossing the zero floor or the TotalBeds ceiling.
type Repository interface {
	Create(ctx context.Context, h *Hospital) error
	GetByID(ctx context.Context, id uuid.UUID) (*Hospital, error)
	List(ctx context.Context, limit, offset int) ([]*Hospital, int, error)
	DecrementBeds(ctx context.Context, id uuid.UUID) (bool, error)
	IncrementBeds(ctx context.Context, id uuid.UUID) (bool, error)
	SetBeds(ctx context.Context, id uuid.UUID, total, available int) error
}
