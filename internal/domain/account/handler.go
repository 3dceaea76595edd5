package account

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/labdesk/labdesk/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/auth")
	g.POST("/login", h.Login)
	g.POST("/verify-pin", h.VerifyPIN)
	g.PUT("/password", h.ChangePassword)
	g.PUT("/pin", h.ChangePIN)
	g.GET("/me", h.Me)
}

// RegisterAdminRoutes mounts client provisioning. Only wired in development.
func (h *Handler) RegisterAdminRoutes(api *echo.Group) {
	g := api.Group("/admin/clients")
	g.POST("", h.CreateClient)
	g.GET("", h.ListClients)
	g.PATCH("/:id/status", h.SetClientStatus)
}

func (h *Handler) Login(c echo.Context) error {
	var in LoginInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	res, err := h.svc.Login(c.Request().Context(), &in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) VerifyPIN(c echo.Context) error {
	var in VerifyPinInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.svc.VerifyPIN(c.Request().Context(), in.Pin); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]bool{"valid": true})
}

func (h *Handler) ChangePassword(c echo.Context) error {
	var in PasswordInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.svc.ChangePassword(c.Request().Context(), &in); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "password updated"})
}

func (h *Handler) ChangePIN(c echo.Context) error {
	var in PinInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.svc.ChangePIN(c.Request().Context(), &in); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "pin updated"})
}

func (h *Handler) Me(c echo.Context) error {
	client, err := h.svc.Me(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, client)
}

func (h *Handler) CreateClient(c echo.Context) error {
	var in ClientInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	client, err := h.svc.CreateClient(c.Request().Context(), &in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, client)
}

func (h *Handler) ListClients(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListClients(c.Request().Context(), pg.Limit, pg.Offset())
	if err != nil {
		return err
	}
	if items == nil {
		items = []*Client{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) SetClientStatus(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var in StatusInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	client, err := h.svc.SetClientStatus(c.Request().Context(), id, &in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, client)
}
