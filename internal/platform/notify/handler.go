package notify

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Ariful-Islam-Shihab/CrisisIntel/internal/platform/auth"
	"github.com/Ariful-Islam-Shihab/CrisisIntel/internal/platform/errcode"
	"github.com/Ariful-Islam-Shihab/CrisisIntel/pkg/pagination"
)

// Handler exposes the stored-notification endpoints.
type Handler struct {
	store Store
}

func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/notifications", h.List)
	g.POST("/notifications/:id/read", h.MarkRead)
}

// List returns the caller's notifications, newest first. Pass unread=true to
// restrict to unread ones.
func (h *Handler) List(c echo.Context) error {
	userID, err := uuid.Parse(auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return errcode.Respond(c, errcode.AuthRequired)
	}

	p := pagination.FromContext(c)
	unreadOnly := c.QueryParam("unread") == "true"

	items, total, err := h.store.ListByUser(c.Request().Context(), userID, unreadOnly, p.Limit, p.Offset)
	if err != nil {
		return errcode.Respond(c, errcode.Internal)
	}
	if items == nil {
		items = []*Message{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, p.Limit, p.Offset))
}

// MarkRead flags one of the caller's notifications as read.
func (h *Handler) MarkRead(c echo.Context) error {
	userID, err := uuid.Parse(auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return errcode.Respond(c, errcode.AuthRequired)
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return errcode.RespondDetail(c, errcode.MissingFields, "invalid notification id")
	}

	ok, err := h.store.MarkRead(c.Request().Context(), id, userID)
	if err != nil {
		return errcode.Respond(c, errcode.Internal)
	}
	if !ok {
		return errcode.Respond(c, errcode.NotFound)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "read"})
}
