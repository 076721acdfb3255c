package hospital

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Ariful-Islam-Shihab/CrisisIntel/internal/platform/auth"
	"github.com/Ariful-Islam-Shihab/CrisisIntel/internal/platform/errcode"
	"github.com/Ariful-Islam-Shihab/CrisisIntel/pkg/pagination"
)

// Handler exposes the hospital directory HTTP surface.
type Handler struct {
	svc      *Service
	validate *validator.Validate
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc, validate: validator.New()}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/hospitals", h.Create, auth.RequireRole(auth.RoleAdmin))
	g.GET("/hospitals", h.List)
	g.GET("/hospitals/:id", h.Get)
	g.PUT("/hospitals/:id/beds", h.SetBeds, auth.RequireRole(auth.RoleHospitalAdmin))
}

type createHospitalRequest struct {
	Name        string   `json:"name" validate:"required,max=200"`
	Address     string   `json:"address" validate:"max=500"`
	Lat         *float64 `json:"lat" validate:"omitempty,latitude"`
	Lng         *float64 `json:"lng" validate:"omitempty,longitude"`
	AdminUserID string   `json:"admin_user_id" validate:"required,uuid"`
	TotalBeds   int      `json:"total_beds" validate:"min=0"`
}

func (h *Handler) Create(c echo.Context) error {
	var req createHospitalRequest
	if err := c.Bind(&req); err != nil {
		return errcode.Respond(c, errcode.MissingFields)
	}
	if err := h.validate.Struct(&req); err != nil {
		return errcode.RespondDetail(c, errcode.MissingFields, err.Error())
	}

	adminID, _ := uuid.Parse(req.AdminUserID)
	hosp := &Hospital{
		Name:          req.Name,
		Address:       req.Address,
		Lat:           req.Lat,
		Lng:           req.Lng,
		AdminUserID:   adminID,
		TotalBeds:     req.TotalBeds,
		AvailableBeds: req.TotalBeds,
	}
	if err := h.svc.Create(c.Request().Context(), hosp); err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusCreated, hosp)
}

func (h *Handler) List(c echo.Context) error {
	p := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), p.Limit, p.Offset)
	if err != nil {
		return h.respondError(c, err)
	}
	if items == nil {
		items = []*Hospital{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, p.Limit, p.Offset))
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return errcode.RespondDetail(c, errcode.MissingFields, "invalid hospital id")
	}
	hosp, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, hosp)
}

type setBedsRequest struct {
	TotalBeds     int `json:"total_beds" validate:"min=0"`
	AvailableBeds int `json:"available_beds" validate:"min=0"`
}

func (h *Handler) SetBeds(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return errcode.RespondDetail(c, errcode.MissingFields, "invalid hospital id")
	}
	var req setBedsRequest
	if err := c.Bind(&req); err != nil {
		return errcode.Respond(c, errcode.MissingFields)
	}
	if err := h.validate.Struct(&req); err != nil {
		return errcode.RespondDetail(c, errcode.MissingFields, err.Error())
	}
	if err := h.svc.SetBeds(c.Request().Context(), id, req.TotalBeds, req.AvailableBeds); err != nil {
		return h.respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) respondError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return errcode.Respond(c, errcode.NotFound)
	case errors.Is(err, ErrInvalidInput):
		return errcode.Respond(c, errcode.MissingFields)
	default:
		return errcode.Respond(c, errcode.Internal)
	}
}
