package booking

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Ariful-Islam-Shihab/CrisisIntel/internal/platform/auth"
	"github.com/Ariful-Islam-Shihab/CrisisIntel/internal/platform/errcode"
	"github.com/Ariful-Islam-Shihab/CrisisIntel/pkg/pagination"
)

// Handler exposes the booking HTTP surface.
type Handler struct {
	svc      *Service
	validate *validator.Validate
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc, validate: validator.New()}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/appointments/book", h.BookAppointment)
	g.POST("/services/book", h.BookService)
	g.GET("/bookings", h.ListMine)
	g.GET("/bookings/provider", h.ListForProvider)
	g.GET("/bookings/:id", h.Get)
	g.POST("/bookings/:id/confirm", h.Confirm)
	g.POST("/bookings/:id/decline", h.Decline)
	g.POST("/bookings/:id/cancel", h.Cancel)
	g.POST("/bookings/:id/done", h.MarkDone)
}

type bookAppointmentRequest struct {
	DoctorID    string   `json:"doctor_id" validate:"required,uuid"`
	HospitalID  string   `json:"hospital_id" validate:"required,uuid"`
	Day         string   `json:"day" validate:"required"`
	DesiredTime string   `json:"desired_time" validate:"omitempty"`
	Notes       string   `json:"notes" validate:"max=1000"`
	Lat         *float64 `json:"lat" validate:"omitempty,latitude"`
	Lng         *float64 `json:"lng" validate:"omitempty,longitude"`
}

type bookServiceRequest struct {
	ServiceID   string   `json:"service_id" validate:"required,uuid"`
	Day         string   `json:"day" validate:"required"`
	DesiredTime string   `json:"desired_time" validate:"omitempty"`
	Notes       string   `json:"notes" validate:"max=1000"`
	Lat         *float64 `json:"lat" validate:"omitempty,latitude"`
	Lng         *float64 `json:"lng" validate:"omitempty,longitude"`
}

type bookingResponse struct {
	ID          uuid.UUID `json:"id"`
	Serial      int       `json:"serial"`
	ApproxTime  string    `json:"approx_time"`
	ScheduledAt time.Time `json:"scheduled_at"`
	Status      Status    `json:"status"`
}

func toResponse(b *Booking) bookingResponse {
	return bookingResponse{
		ID:          b.ID,
		Serial:      b.Serial,
		ApproxTime:  b.ApproxTime(),
		ScheduledAt: b.AllocatedAt,
		Status:      b.Status,
	}
}

// BookAppointment allocates a slot with a doctor at a hospital.
func (h *Handler) BookAppointment(c echo.Context) error {
	var req bookAppointmentRequest
	if err := c.Bind(&req); err != nil {
		return errcode.Respond(c, errcode.MissingFields)
	}
	if err := h.validate.Struct(&req); err != nil {
		return errcode.RespondDetail(c, errcode.MissingFields, err.Error())
	}

	doctorID, _ := uuid.Parse(req.DoctorID)
	hospitalID, _ := uuid.Parse(req.HospitalID)
	return h.book(c, ProviderRef{Kind: KindDoctor, DoctorID: doctorID, HospitalID: hospitalID},
		req.Day, req.DesiredTime, req.Notes, req.Lat, req.Lng)
}

// BookService allocates a slot (or an immediate dispatch) for a hospital
// service.
func (h *Handler) BookService(c echo.Context) error {
	var req bookServiceRequest
	if err := c.Bind(&req); err != nil {
		return errcode.Respond(c, errcode.MissingFields)
	}
	if err := h.validate.Struct(&req); err != nil {
		return errcode.RespondDetail(c, errcode.MissingFields, err.Error())
	}

	serviceID, _ := uuid.Parse(req.ServiceID)
	return h.book(c, ServiceRef(serviceID), req.Day, req.DesiredTime, req.Notes, req.Lat, req.Lng)
}

func (h *Handler) book(c echo.Context, ref ProviderRef, day, desiredTime, notes string, lat, lng *float64) error {
	requesterID, err := uuid.Parse(auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return errcode.Respond(c, errcode.AuthRequired)
	}

	d, err := time.Parse("2006-01-02", day)
	if err != nil {
		return errcode.RespondDetail(c, errcode.InvalidTime, "day must be YYYY-MM-DD")
	}

	desiredMin := -1
	if desiredTime != "" {
		desiredMin, err = ClockToMinutes(desiredTime)
		if err != nil {
			return errcode.RespondDetail(c, errcode.InvalidTime, "desired_time must be HH:MM")
		}
	}

	b, err := h.svc.Allocate(c.Request().Context(), AllocateRequest{
		RequesterID: requesterID,
		Ref:         ref,
		Day:         d,
		DesiredMin:  desiredMin,
		Notes:       notes,
		Lat:         lat,
		Lng:         lng,
	})
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusCreated, toResponse(b))
}

// ListMine returns the caller's own bookings.
func (h *Handler) ListMine(c echo.Context) error {
	requesterID, err := uuid.Parse(auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return errcode.Respond(c, errcode.AuthRequired)
	}

	status := Status(c.QueryParam("status"))
	if status != "" && !status.Valid() {
		return errcode.Respond(c, errcode.InvalidStatus)
	}

	p := pagination.FromContext(c)
	items, total, err := h.svc.ListForRequester(c.Request().Context(), requesterID, status, p.Limit, p.Offset)
	if err != nil {
		return h.respondError(c, err)
	}
	if items == nil {
		items = []*Booking{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, p.Limit, p.Offset))
}

// ListForProvider returns one provider-day's bookings in serial order.
func (h *Handler) ListForProvider(c echo.Context) error {
	actor, err := h.actor(c)
	if err != nil {
		return errcode.Respond(c, errcode.AuthRequired)
	}

	ref, err := refFromQuery(c)
	if err != nil {
		return errcode.RespondDetail(c, errcode.MissingFields, err.Error())
	}

	day, err := time.Parse("2006-01-02", c.QueryParam("day"))
	if err != nil {
		return errcode.RespondDetail(c, errcode.InvalidTime, "day must be YYYY-MM-DD")
	}

	p := pagination.FromContext(c)
	items, total, err := h.svc.ListForProvider(c.Request().Context(), ref, day, actor, p.Limit, p.Offset)
	if err != nil {
		return h.respondError(c, err)
	}
	if items == nil {
		items = []*Booking{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, p.Limit, p.Offset))
}

// Get returns one booking.
func (h *Handler) Get(c echo.Context) error {
	actor, err := h.actor(c)
	if err != nil {
		return errcode.Respond(c, errcode.AuthRequired)
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return errcode.RespondDetail(c, errcode.MissingFields, "invalid booking id")
	}

	b, err := h.svc.Get(c.Request().Context(), id, actor)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

// Confirm accepts a pending booking (provider side).
func (h *Handler) Confirm(c echo.Context) error {
	return h.transition(c, h.svc.Confirm)
}

// Decline rejects a pending booking (provider side).
func (h *Handler) Decline(c echo.Context) error {
	return h.transition(c, h.svc.Decline)
}

// Cancel voids a booking (requester side, or admin override).
func (h *Handler) Cancel(c echo.Context) error {
	return h.transition(c, h.svc.Cancel)
}

// MarkDone closes a confirmed booking after the visit.
func (h *Handler) MarkDone(c echo.Context) error {
	return h.transition(c, h.svc.MarkDone)
}

func (h *Handler) transition(c echo.Context,
	op func(ctx context.Context, id uuid.UUID, actor Actor) (*Booking, error)) error {
	actor, err := h.actor(c)
	if err != nil {
		return errcode.Respond(c, errcode.AuthRequired)
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return errcode.RespondDetail(c, errcode.MissingFields, "invalid booking id")
	}

	b, err := op(c.Request().Context(), id, actor)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, toResponse(b))
}

func (h *Handler) actor(c echo.Context) (Actor, error) {
	ctx := c.Request().Context()
	userID, err := uuid.Parse(auth.UserIDFromContext(ctx))
	if err != nil {
		return Actor{}, err
	}
	return Actor{UserID: userID, Admin: auth.IsAdmin(ctx)}, nil
}

func refFromQuery(c echo.Context) (ProviderRef, error) {
	switch ProviderKind(c.QueryParam("kind")) {
	case KindDoctor:
		doctorID, err := uuid.Parse(c.QueryParam("doctor_id"))
		if err != nil {
			return ProviderRef{}, errors.New("doctor_id is required")
		}
		hospitalID, err := uuid.Parse(c.QueryParam("hospital_id"))
		if err != nil {
			return ProviderRef{}, errors.New("hospital_id is required")
		}
		return DoctorRef(doctorID, hospitalID), nil
	case KindService:
		serviceID, err := uuid.Parse(c.QueryParam("service_id"))
		if err != nil {
			return ProviderRef{}, errors.New("service_id is required")
		}
		return ServiceRef(serviceID), nil
	}
	return ProviderRef{}, errors.New("kind must be doctor or service")
}

// respondError maps engine errors onto the stable error catalog.
func (h *Handler) respondError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, ErrUnknownProvider):
		return errcode.Respond(c, errcode.UnknownProvider)
	case errors.Is(err, ErrNotFound):
		return errcode.Respond(c, errcode.NotFound)
	case errors.Is(err, ErrForbidden):
		return errcode.Respond(c, errcode.Forbidden)
	case errors.Is(err, ErrOutsideWindow):
		return errcode.Respond(c, errcode.OutsideWindow)
	case errors.Is(err, ErrCapacityFull):
		return errcode.Respond(c, errcode.BookingFull)
	case errors.Is(err, ErrDuplicate):
		return errcode.Respond(c, errcode.DuplicateBooking)
	case errors.Is(err, ErrContention):
		return errcode.Respond(c, errcode.BookingContention)
	case errors.Is(err, ErrInvalidTransition):
		return errcode.Respond(c, errcode.InvalidTransition)
	case errors.Is(err, ErrCancelWindowClosed):
		return errcode.Respond(c, errcode.CancelWindowClosed)
	case errors.Is(err, ErrNoBeds):
		return errcode.Respond(c, errcode.NoBedsAvailable)
	default:
		return errcode.Respond(c, errcode.Internal)
	}
}
