package billing

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/labdesk/labdesk/internal/platform/auth"
	"github.com/labdesk/labdesk/pkg/pagination"
)

// DayLayout is the date format of day-granular query parameters.
const DayLayout = "2006-01-02"

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/bills", auth.RequireRole(auth.RoleStaff))
	g.GET("", h.List)
	g.POST("", h.Create)
	g.GET("/next-number", h.NextNumber)
	g.GET("/number/:billNumber", h.GetByNumber)
	g.GET("/:id", h.Get)
	g.PUT("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
	g.PATCH("/:id/status", h.UpdateStatus)
	g.POST("/:id/payments", h.AddPayment)
}

// StartOfDay parses a YYYY-MM-DD value as local midnight.
func StartOfDay(v string) (time.Time, error) {
	return time.ParseInLocation(DayLayout, v, time.Local)
}

// EndOfDay parses a YYYY-MM-DD value as the last millisecond of that local
// day.
func EndOfDay(v string) (time.Time, error) {
	t, err := StartOfDay(v)
	if err != nil {
		return t, err
	}
	return t.AddDate(0, 0, 1).Add(-time.Millisecond), nil
}

func parseListFilter(c echo.Context) (ListFilter, error) {
	f := ListFilter{
		Search:        c.QueryParam("search"),
		SearchBy:      c.QueryParam("searchBy"),
		Status:        c.QueryParam("status"),
		PaymentStatus: c.QueryParam("paymentStatus"),
		AmountOp:      c.QueryParam("amountOp"),
		SortBy:        c.QueryParam("sortBy"),
		SortOrder:     c.QueryParam("sortOrder"),
	}
	if v := c.QueryParam("startDate"); v != "" {
		t, err := StartOfDay(v)
		if err != nil {
			return f, echo.NewHTTPError(http.StatusBadRequest, "invalid startDate, expected YYYY-MM-DD")
		}
		f.StartDate = &t
	}
	if v := c.QueryParam("endDate"); v != "" {
		t, err := EndOfDay(v)
		if err != nil {
			return f, echo.NewHTTPError(http.StatusBadRequest, "invalid endDate, expected YYYY-MM-DD")
		}
		f.EndDate = &t
	}
	if v := c.QueryParam("amount"); v != "" {
		amount, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return f, echo.NewHTTPError(http.StatusBadRequest, "invalid amount")
		}
		f.Amount = &amount
	}
	if v := c.QueryParam("doctorId"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return f, echo.NewHTTPError(http.StatusBadRequest, "invalid doctorId")
		}
		f.DoctorID = &id
	}
	return f, nil
}

func (h *Handler) List(c echo.Context) error {
	f, err := parseListFilter(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListBills(c.Request().Context(), f, pg.Limit, pg.Offset())
	if err != nil {
		return err
	}
	if items == nil {
		items = []*Bill{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) Create(c echo.Context) error {
	var in BillInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	b, err := h.svc.CreateBill(c.Request().Context(), &in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, b)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	b, err := h.svc.GetBill(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, b)
}

func (h *Handler) GetByNumber(c echo.Context) error {
	b, err := h.svc.GetByNumber(c.Request().Context(), c.Param("billNumber"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, b)
}

func (h *Handler) NextNumber(c echo.Context) error {
	n, err := h.svc.NextBillNumber(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"billNumber": n})
}

func (h *Handler) Update(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var in BillInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	b, err := h.svc.UpdateBill(c.Request().Context(), id, &in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, b)
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeleteBill(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	b, err := h.svc.UpdateStatus(c.Request().Context(), id, req.Status)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, b)
}

func (h *Handler) AddPayment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var in PaymentInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	b, err := h.svc.AddPayment(c.Request().Context(), id, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, b)
}
