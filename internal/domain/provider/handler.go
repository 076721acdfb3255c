package provider

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Ariful-Islam-Shihab/CrisisIntel/internal/domain/booking"
	"github.com/Ariful-Islam-Shihab/CrisisIntel/internal/platform/auth"
	"github.com/Ariful-Islam-Shihab/CrisisIntel/internal/platform/errcode"
	"github.com/Ariful-Islam-Shihab/CrisisIntel/pkg/pagination"
)

// Handler exposes the provider directory HTTP surface.
type Handler struct {
	svc      *Service
	validate *validator.Validate
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc, validate: validator.New()}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	manage := auth.RequireRole(auth.RoleHospitalAdmin)

	g.POST("/doctors", h.CreateDoctor, manage)
	g.GET("/doctors", h.ListDoctors)
	g.GET("/doctors/:id", h.GetDoctor)
	g.PATCH("/doctors/:id", h.SetDoctorActive, manage)
	g.POST("/doctors/:id/windows", h.AddWindow, manage)
	g.GET("/doctors/:id/windows", h.ListWindows)
	g.DELETE("/windows/:id", h.RemoveWindow, manage)

	g.POST("/hospitals/:id/services", h.CreateService, manage)
	g.GET("/hospitals/:id/services", h.ListServices)
	g.GET("/services/:id", h.GetService)
	g.PATCH("/services/:id", h.SetServiceActive, manage)
}

type createDoctorRequest struct {
	UserID     string `json:"user_id" validate:"required,uuid"`
	HospitalID string `json:"hospital_id" validate:"required,uuid"`
	FullName   string `json:"full_name" validate:"required,max=200"`
	Specialty  string `json:"specialty" validate:"max=100"`
}

func (h *Handler) CreateDoctor(c echo.Context) error {
	var req createDoctorRequest
	if err := c.Bind(&req); err != nil {
		return errcode.Respond(c, errcode.MissingFields)
	}
	if err := h.validate.Struct(&req); err != nil {
		return errcode.RespondDetail(c, errcode.MissingFields, err.Error())
	}

	userID, _ := uuid.Parse(req.UserID)
	hospitalID, _ := uuid.Parse(req.HospitalID)
	d := &Doctor{
		UserID:     userID,
		HospitalID: hospitalID,
		FullName:   req.FullName,
		Specialty:  req.Specialty,
	}
	if err := h.svc.CreateDoctor(c.Request().Context(), d); err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusCreated, d)
}

func (h *Handler) ListDoctors(c echo.Context) error {
	var f DoctorFilter
	if raw := c.QueryParam("hospital_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return errcode.RespondDetail(c, errcode.MissingFields, "invalid hospital_id")
		}
		f.HospitalID = &id
	}
	f.Specialty = c.QueryParam("specialty")
	f.ActiveOnly = c.QueryParam("all") == ""

	p := pagination.FromContext(c)
	items, total, err := h.svc.ListDoctors(c.Request().Context(), f, p.Limit, p.Offset)
	if err != nil {
		return h.respondError(c, err)
	}
	if items == nil {
		items = []*Doctor{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, p.Limit, p.Offset))
}

func (h *Handler) GetDoctor(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return errcode.RespondDetail(c, errcode.MissingFields, "invalid doctor id")
	}
	d, err := h.svc.GetDoctor(c.Request().Context(), id)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) SetDoctorActive(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return errcode.RespondDetail(c, errcode.MissingFields, "invalid doctor id")
	}
	var req struct {
		Active *bool `json:"active" validate:"required"`
	}
	if err := c.Bind(&req); err != nil || req.Active == nil {
		return errcode.RespondDetail(c, errcode.MissingFields, "active is required")
	}
	if err := h.svc.SetDoctorActive(c.Request().Context(), id, *req.Active); err != nil {
		return h.respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

type addWindowRequest struct {
	HospitalID  string `json:"hospital_id" validate:"required,uuid"`
	Weekday     int    `json:"weekday" validate:"min=0,max=6"`
	Start       string `json:"start" validate:"required"`
	End         string `json:"end" validate:"required"`
	SlotMinutes int    `json:"slot_minutes" validate:"required,min=1"`
	// Omitted capacity means the window is unlimited.
	CapacityPerDay *int `json:"capacity_per_day" validate:"omitempty,min=1"`
}

func (h *Handler) AddWindow(c echo.Context) error {
	doctorID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return errcode.RespondDetail(c, errcode.MissingFields, "invalid doctor id")
	}
	var req addWindowRequest
	if err := c.Bind(&req); err != nil {
		return errcode.Respond(c, errcode.MissingFields)
	}
	if err := h.validate.Struct(&req); err != nil {
		return errcode.RespondDetail(c, errcode.MissingFields, err.Error())
	}

	startMin, err := booking.ClockToMinutes(req.Start)
	if err != nil {
		return errcode.RespondDetail(c, errcode.InvalidTime, "start must be HH:MM")
	}
	endMin, err := booking.ClockToMinutes(req.End)
	if err != nil {
		return errcode.RespondDetail(c, errcode.InvalidTime, "end must be HH:MM")
	}

	hospitalID, _ := uuid.Parse(req.HospitalID)
	w := &AvailabilityWindow{
		DoctorID:       doctorID,
		HospitalID:     hospitalID,
		Weekday:        time.Weekday(req.Weekday),
		StartMin:       startMin,
		EndMin:         endMin,
		SlotMinutes:    req.SlotMinutes,
		CapacityPerDay: req.CapacityPerDay,
	}
	if err := h.svc.AddWindow(c.Request().Context(), w); err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusCreated, w)
}

func (h *Handler) ListWindows(c echo.Context) error {
	doctorID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return errcode.RespondDetail(c, errcode.MissingFields, "invalid doctor id")
	}
	windows, err := h.svc.ListWindows(c.Request().Context(), doctorID)
	if err != nil {
		return h.respondError(c, err)
	}
	if windows == nil {
		windows = []*AvailabilityWindow{}
	}
	return c.JSON(http.StatusOK, windows)
}

func (h *Handler) RemoveWindow(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return errcode.RespondDetail(c, errcode.MissingFields, "invalid window id")
	}
	if err := h.svc.RemoveWindow(c.Request().Context(), id); err != nil {
		return h.respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

type createServiceRequest struct {
	Name           string `json:"name" validate:"required,max=200"`
	WindowStart    string `json:"window_start" validate:"omitempty"`
	WindowEnd      string `json:"window_end" validate:"omitempty"`
	SlotMinutes    int    `json:"slot_minutes" validate:"omitempty,min=1"`
	CapacityPerDay *int   `json:"capacity_per_day" validate:"omitempty,min=1"`
	Immediate      bool   `json:"immediate"`
	RequiresBed    bool   `json:"requires_bed"`
}

func (h *Handler) CreateService(c echo.Context) error {
	hospitalID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return errcode.RespondDetail(c, errcode.MissingFields, "invalid hospital id")
	}
	var req createServiceRequest
	if err := c.Bind(&req); err != nil {
		return errcode.Respond(c, errcode.MissingFields)
	}
	if err := h.validate.Struct(&req); err != nil {
		return errcode.RespondDetail(c, errcode.MissingFields, err.Error())
	}

	svc := &HospitalService{
		HospitalID:     hospitalID,
		Name:           req.Name,
		SlotMinutes:    req.SlotMinutes,
		CapacityPerDay: req.CapacityPerDay,
		Immediate:      req.Immediate,
		RequiresBed:    req.RequiresBed,
	}
	if !req.Immediate {
		svc.WindowStartMin, err = booking.ClockToMinutes(req.WindowStart)
		if err != nil {
			return errcode.RespondDetail(c, errcode.InvalidTime, "window_start must be HH:MM")
		}
		svc.WindowEndMin, err = booking.ClockToMinutes(req.WindowEnd)
		if err != nil {
			return errcode.RespondDetail(c, errcode.InvalidTime, "window_end must be HH:MM")
		}
	}
	if err := h.svc.CreateService(c.Request().Context(), svc); err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusCreated, svc)
}

func (h *Handler) ListServices(c echo.Context) error {
	hospitalID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return errcode.RespondDetail(c, errcode.MissingFields, "invalid hospital id")
	}
	p := pagination.FromContext(c)
	items, total, err := h.svc.ListServices(c.Request().Context(), hospitalID, p.Limit, p.Offset)
	if err != nil {
		return h.respondError(c, err)
	}
	if items == nil {
		items = []*HospitalService{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, p.Limit, p.Offset))
}

func (h *Handler) GetService(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return errcode.RespondDetail(c, errcode.MissingFields, "invalid service id")
	}
	svc, err := h.svc.GetService(c.Request().Context(), id)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, svc)
}

func (h *Handler) SetServiceActive(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return errcode.RespondDetail(c, errcode.MissingFields, "invalid service id")
	}
	var req struct {
		Active *bool `json:"active"`
	}
	if err := c.Bind(&req); err != nil || req.Active == nil {
		return errcode.RespondDetail(c, errcode.MissingFields, "active is required")
	}
	if err := h.svc.SetServiceActive(c.Request().Context(), id, *req.Active); err != nil {
		return h.respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) respondError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return errcode.Respond(c, errcode.NotFound)
	case errors.Is(err, ErrInvalidWindow):
		return errcode.RespondDetail(c, errcode.InvalidTime, "window is invalid")
	case errors.Is(err, ErrInvalidInput):
		return errcode.Respond(c, errcode.MissingFields)
	default:
		return errcode.Respond(c, errcode.Internal)
	}
}
