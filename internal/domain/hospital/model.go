package hospital

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a hospital does not exist.
	ErrNotFound = errors.New("hospital not found")
	// ErrInvalidInput is returned when a hospital fails validation.
	ErrInvalidInput = errors.New("invalid hospital")
)

// Hospital is a facility with a finite bed pool. AvailableBeds only moves
// through the conditional repo operations so it can never go negative or
// exceed TotalBeds.
type Hospital struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	Address       string    `json:"address"`
	Lat           *float64  `json:"lat,omitempty"`
	Lng           *float64  `json:"lng,omitempty"`
	AdminUserID   uuid.UUID `json:"admin_user_id"`
	TotalBeds     int       `json:"total_beds"`
	AvailableBeds int       `json:"available_beds"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Validate checks the fields an admin supplies at creation.
func (h *Hospital) Validate() error {
	if h.Name == "" || h.AdminUserID == uuid.Nil {
		return ErrInvalidInput
	}
	if h.TotalBeds < 0 || h.AvailableBeds < 0 || h.AvailableBeds > h.TotalBeds {
		return ErrInvalidInput
	}
	return nil
}
