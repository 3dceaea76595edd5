package auth

import (
	"strings"

	"github.com/labstack/echo/v4"
)

// publicPaths bypass authentication and tenant resolution.
var publicPaths = map[string]bool{
	"/health":         true,
	"/health/db":      true,
	"/metrics":        true,
	"/api/auth/login": true,
}

// AuthSkipper returns true for requests that need no bearer token: health
// checks, metrics, login, uploaded assets and, in development, the admin
// provisioning API.
func AuthSkipper(dev bool) func(c echo.Context) bool {
	return func(c echo.Context) bool {
		return IsPublicPath(c.Request().URL.Path, dev)
	}
}

func IsPublicPath(path string, dev bool) bool {
	if publicPaths[path] || strings.HasPrefix(path, "/uploads/") {
		return true
	}
	return dev && strings.HasPrefix(path, "/api/admin/")
}
