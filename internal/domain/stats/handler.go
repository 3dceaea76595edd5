package stats

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/labdesk/labdesk/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/bills/statistics", h.Get, auth.RequireRole(auth.RoleStaff))
}

func (h *Handler) Get(c echo.Context) error {
	q := Query{
		Range:     c.QueryParam("range"),
		StartDate: c.QueryParam("startDate"),
		EndDate:   c.QueryParam("endDate"),
	}
	sum, err := h.svc.Summarize(c.Request().Context(), q)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sum)
}
