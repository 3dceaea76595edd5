package report

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/labdesk/labdesk/internal/platform/auth"
	"github.com/labdesk/labdesk/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/reports", auth.RequireRole(auth.RoleStaff))
	g.GET("", h.List)
	g.GET("/bill/:billId", h.GetByBill)
	g.GET("/:id", h.Get)
	g.PUT("/:id/results", h.UpdateResults)
	g.PUT("/:id/date", h.SetReportDate)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	f := Filter{Search: c.QueryParam("search")}
	if v := c.QueryParam("generated"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid generated")
		}
		f.Generated = &b
	}
	items, total, err := h.svc.List(c.Request().Context(), f, pg.Limit, pg.Offset())
	if err != nil {
		return err
	}
	if items == nil {
		items = []*Report{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	rep, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rep)
}

func (h *Handler) GetByBill(c echo.Context) error {
	billID, err := uuid.Parse(c.Param("billId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid billId")
	}
	rep, err := h.svc.GetByBill(c.Request().Context(), billID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rep)
}

type resultsRequest struct {
	Results []ResultInput `json:"results"`
}

func (h *Handler) UpdateResults(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req resultsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	rep, err := h.svc.UpdateResults(c.Request().Context(), id, req.Results)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rep)
}

type dateRequest struct {
	ReportDate time.Time `json:"reportDate"`
}

func (h *Handler) SetReportDate(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req dateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	rep, err := h.svc.SetReportDate(c.Request().Context(), id, req.ReportDate)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rep)
}
