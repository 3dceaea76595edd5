package catalog

import (
	"net/http"
	"strconv"

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
	g := api.Group("/test-groups")

	read := g.Group("", auth.RequireRole(auth.RoleStaff))
	read.GET("", h.ListGroups)
	read.GET("/tests", h.ListTests)
	read.GET("/tests/:id", h.GetTest)
	read.GET("/:id", h.GetGroup)

	write := g.Group("", auth.RequireRole(auth.RoleAdmin))
	write.POST("", h.CreateGroup)
	write.PUT("/:id", h.UpdateGroup)
	write.DELETE("/:id", h.DeleteGroup)
	write.POST("/:id/tests", h.AddTests)
	write.DELETE("/:id/tests/:testId", h.RemoveTest)
	write.POST("/tests", h.CreateTest)
	write.PUT("/tests/:id", h.UpdateTest)
	write.DELETE("/tests/:id", h.DeleteTest)
}

// -- Test Group Handlers --

func (h *Handler) CreateGroup(c echo.Context) error {
	var in GroupInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	g, err := h.svc.CreateGroup(c.Request().Context(), &in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, g)
}

func (h *Handler) GetGroup(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	g, err := h.svc.GetGroup(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, g)
}

func (h *Handler) ListGroups(c echo.Context) error {
	pg := pagination.FromContext(c)
	active, err := parseBool(c, "active")
	if err != nil {
		return err
	}
	f := GroupFilter{Search: c.QueryParam("search"), Active: active}
	items, total, err := h.svc.ListGroups(c.Request().Context(), f, pg.Limit, pg.Offset())
	if err != nil {
		return err
	}
	if items == nil {
		items = []*TestGroup{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) UpdateGroup(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var in GroupInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	g, err := h.svc.UpdateGroup(c.Request().Context(), id, &in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, g)
}

func (h *Handler) DeleteGroup(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteGroup(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

type membershipRequest struct {
	TestID  *uuid.UUID  `json:"testId"`
	TestIDs []uuid.UUID `json:"testIds"`
}

func (h *Handler) AddTests(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req membershipRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	ids := req.TestIDs
	if req.TestID != nil {
		ids = append(ids, *req.TestID)
	}
	if len(ids) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "testId or testIds is required")
	}
	ctx := c.Request().Context()
	for _, testID := range ids {
		if err := h.svc.AddTest(ctx, id, testID); err != nil {
			return err
		}
	}
	g, err := h.svc.GetGroup(ctx, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, g)
}

func (h *Handler) RemoveTest(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	testID, err := parseID(c, "testId")
	if err != nil {
		return err
	}
	if err := h.svc.RemoveTest(c.Request().Context(), id, testID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Test Handlers --

func (h *Handler) CreateTest(c echo.Context) error {
	var in TestInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	t, err := h.svc.CreateTest(c.Request().Context(), &in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, t)
}

func (h *Handler) GetTest(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	t, err := h.svc.GetTest(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) ListTests(c echo.Context) error {
	pg := pagination.FromContext(c)
	active, err := parseBool(c, "active")
	if err != nil {
		return err
	}
	f := TestFilter{Search: c.QueryParam("search"), Active: active}
	switch v := c.QueryParam("groupId"); v {
	case "":
	case "none":
		f.Unassigned = true
	default:
		gid, err := uuid.Parse(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid groupId")
		}
		f.GroupID = &gid
	}
	items, total, err := h.svc.ListTests(c.Request().Context(), f, pg.Limit, pg.Offset())
	if err != nil {
		return err
	}
	if items == nil {
		items = []*Test{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) UpdateTest(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var in TestInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	t, err := h.svc.UpdateTest(c.Request().Context(), id, &in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) DeleteTest(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteTest(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func parseID(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

func parseBool(c echo.Context, name string) (*bool, error) {
	v := c.QueryParam(name)
	if v == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return &b, nil
}
