// Package errcode defines the stable API error catalog. Every error response
// carries a machine-readable code so clients can branch without parsing
// human-readable text. Unknown codes fall back to internal_error.
package errcode

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

const (
	AuthRequired       = "auth_required"
	Forbidden          = "forbidden"
	NotFound           = "not_found"
	MissingFields      = "missing_fields"
	InvalidTime        = "invalid_time"
	InvalidStatus      = "invalid_status"
	InvalidTransition  = "invalid_transition"
	UnknownProvider    = "unknown_provider"
	OutsideWindow      = "outside_window"
	BookingFull        = "booking_full"
	DuplicateBooking   = "duplicate_booking"
	BookingContention  = "booking_contention"
	CancelWindowClosed = "cancel_window_closed"
	NoBedsAvailable    = "no_beds_available"
	RateLimited        = "rate_limited"
	PayloadTooLarge    = "payload_too_large"
	RequestTimeout     = "request_timeout"
	MethodNotAllowed   = "method_not_allowed"
	Internal           = "internal_error"
)

type entry struct {
	status int
	detail string
}

var catalog = map[string]entry{
	AuthRequired:       {http.StatusUnauthorized, "authentication required"},
	Forbidden:          {http.StatusForbidden, "you do not have permission to perform this action"},
	NotFound:           {http.StatusNotFound, "resource not found"},
	MissingFields:      {http.StatusBadRequest, "required fields are missing or invalid"},
	InvalidTime:        {http.StatusBadRequest, "time value is malformed or out of range"},
	InvalidStatus:      {http.StatusBadRequest, "status value is not recognized"},
	InvalidTransition:  {http.StatusBadRequest, "booking is not in a state that allows this action"},
	UnknownProvider:    {http.StatusNotFound, "no such doctor or service"},
	OutsideWindow:      {http.StatusBadRequest, "no availability window covers the requested day"},
	BookingFull:        {http.StatusBadRequest, "no capacity left for the requested day"},
	DuplicateBooking:   {http.StatusBadRequest, "an active booking already exists for this provider and day"},
	BookingContention:  {http.StatusConflict, "booking is busy, please retry"},
	CancelWindowClosed: {http.StatusBadRequest, "too close to the scheduled time to cancel"},
	NoBedsAvailable:    {http.StatusBadRequest, "no beds available at this hospital"},
	RateLimited:        {http.StatusTooManyRequests, "too many requests"},
	PayloadTooLarge:    {http.StatusRequestEntityTooLarge, "request body too large"},
	RequestTimeout:     {http.StatusGatewayTimeout, "request processing exceeded the allowed time limit"},
	MethodNotAllowed:   {http.StatusMethodNotAllowed, "method not allowed"},
	Internal:           {http.StatusInternalServerError, "internal server error"},
}

// Status returns the HTTP status mapped to code.
func Status(code string) int {
	if s, ok := catalog[code]; ok {
		return s.status
	}
	return http.StatusInternalServerError
}

// Detail returns the default human-readable detail for code.
func Detail(code string) string {
	if s, ok := catalog[code]; ok {
		return s.detail
	}
	return catalog[Internal].detail
}

// Known reports whether code is part of the catalog.
func Known(code string) bool {
	_, ok := catalog[code]
	return ok
}

type body struct {
	Error payload `json:"error"`
}

type payload struct {
	Code   string `json:"code"`
	Detail string `json:"detail"`
}

// Respond writes the standard error envelope for code using the catalog's
// default detail text.
func Respond(c echo.Context, code string) error {
	return RespondDetail(c, code, Detail(code))
}

// RespondDetail writes the standard error envelope with a custom detail.
func RespondDetail(c echo.Context, code, detail string) error {
	return c.JSON(Status(code), body{Error: payload{Code: code, Detail: detail}})
}
