package booking

import "errors"

var (
	// ErrUnknownProvider means the referenced doctor or service does not exist.
	ErrUnknownProvider = errors.New("provider not found")
	// ErrOutsideWindow means no availability window covers the requested day.
	ErrOutsideWindow = errors.New("no availability window covers the requested day")
	// ErrCapacityFull means the day's capacity or slot grid is exhausted.
	ErrCapacityFull = errors.New("no capacity left for the requested day")
	// ErrDuplicate means the requester already holds an active booking for
	// this provider and day.
	ErrDuplicate = errors.New("an active booking already exists for this provider and day")
	// ErrContention means the provider-day lock could not be acquired in
	// time. The request is safe to retry.
	ErrContention = errors.New("booking lock busy, retry")
	// ErrNotFound means the booking does not exist.
	ErrNotFound = errors.New("booking not found")
	// ErrForbidden means the caller may not act on this booking.
	ErrForbidden = errors.New("not permitted to act on this booking")
	// ErrInvalidTransition means the booking's current status does not allow
	// the requested action.
	ErrInvalidTransition = errors.New("booking status does not allow this action")
	// ErrCancelWindowClosed means the allocated time is too close for a
	// requester-initiated cancellation.
	ErrCancelWindowClosed = errors.New("too close to the scheduled time to cancel")
	// ErrNoBeds means the hospital has no free beds to back a confirmation.
	ErrNoBeds = errors.New("no beds available")
)
