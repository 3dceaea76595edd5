package settings

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/labdesk/labdesk/internal/platform/auth"
	"github.com/labdesk/labdesk/internal/platform/blobstore"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequireRole(auth.RoleStaff))
	read.GET("/settings", h.GetSettings)
	read.GET("/lab", h.GetLab)

	write := api.Group("", auth.RequireRole(auth.RoleAdmin))
	write.PUT("/settings", h.UpdateSettings)
	write.PUT("/lab", h.UpdateLab)
	write.POST("/lab/logo", h.UploadLogo)
}

func (h *Handler) GetSettings(c echo.Context) error {
	s, err := h.svc.GetSettings(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s)
}

func (h *Handler) UpdateSettings(c echo.Context) error {
	var in SettingsInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	s, err := h.svc.UpdateSettings(c.Request().Context(), &in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s)
}

func (h *Handler) GetLab(c echo.Context) error {
	lab, err := h.svc.GetLab(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, lab)
}

func (h *Handler) UpdateLab(c echo.Context) error {
	var in LabInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	lab, err := h.svc.UpdateLab(c.Request().Context(), &in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, lab)
}

// UploadLogo accepts a multipart form with the image in the "logo" field.
func (h *Handler) UploadLogo(c echo.Context) error {
	fh, err := c.FormFile("logo")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "logo file is required")
	}
	f, err := fh.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unreadable logo file").SetInternal(err)
	}
	defer f.Close()

	lab, err := h.svc.UploadLogo(c.Request().Context(), fh.Header.Get(echo.HeaderContentType), f)
	switch {
	case errors.Is(err, blobstore.ErrFileTooLarge):
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "logo exceeds the maximum upload size")
	case err != nil:
		return err
	}
	return c.JSON(http.StatusOK, lab)
}
