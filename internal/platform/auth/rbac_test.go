package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func contextWithRoles(roles []string) echo.Context {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	ctx := WithIdentity(context.Background(), "client-1", "", roles)
	return e.NewContext(req.WithContext(ctx), httptest.NewRecorder())
}

func TestRequireRole_Allowed(t *testing.T) {
	c := contextWithRoles([]string{RoleStaff})
	called := false
	err := RequireRole(RoleStaff)(func(c echo.Context) error { called = true; return nil })(c)
	if err != nil || !called {
		t.Fatalf("expected handler to run, err=%v", err)
	}
}

func TestRequireRole_AdminPassesAll(t *testing.T) {
	c := contextWithRoles([]string{RoleAdmin})
	if err := RequireRole("auditor")(func(c echo.Context) error { return nil })(c); err != nil {
		t.Fatalf("expected admin to pass, got %v", err)
	}
}

func TestRequireRole_Forbidden(t *testing.T) {
	c := contextWithRoles([]string{RoleStaff})
	err := RequireRole(RoleAdmin)(func(c echo.Context) error { return nil })(c)
	assertHTTPStatus(t, err, http.StatusForbidden)
}

func TestRequireRole_NoRoles(t *testing.T) {
	c := contextWithRoles(nil)
	err := RequireRole(RoleStaff)(func(c echo.Context) error { return nil })(c)
	assertHTTPStatus(t, err, http.StatusForbidden)
}
