package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

var testKey = []byte("test-signing-key-with-enough-length!!")

func newAuthContext(authHeader string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/bills", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestJWTMiddleware_ValidToken(t *testing.T) {
	issuer := NewIssuer("labdesk", testKey, time.Hour)
	token, _, err := issuer.Issue("client-1", "acme", "lab@acme.test", []string{RoleStaff})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	c, _ := newAuthContext("Bearer " + token)
	var gotUser, gotTenant string
	var gotRoles []string
	handler := func(c echo.Context) error {
		gotUser = UserIDFromContext(c.Request().Context())
		gotRoles = RolesFromContext(c.Request().Context())
		gotTenant, _ = c.Get("jwt_tenant_id").(string)
		return c.NoContent(http.StatusOK)
	}

	if err := JWTMiddleware(issuer.Config())(handler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotUser != "client-1" {
		t.Errorf("expected client-1, got %s", gotUser)
	}
	if gotTenant != "acme" {
		t.Errorf("expected tenant acme, got %s", gotTenant)
	}
	if len(gotRoles) != 1 || gotRoles[0] != RoleStaff {
		t.Errorf("unexpected roles %v", gotRoles)
	}
}

func TestJWTMiddleware_MissingHeader(t *testing.T) {
	c, _ := newAuthContext("")
	err := JWTMiddleware(JWTConfig{SigningKey: testKey})(func(c echo.Context) error { return nil })(c)
	assertHTTPStatus(t, err, http.StatusUnauthorized)
}

func TestJWTMiddleware_InvalidFormat(t *testing.T) {
	c, _ := newAuthContext("Token abc")
	err := JWTMiddleware(JWTConfig{SigningKey: testKey})(func(c echo.Context) error { return nil })(c)
	assertHTTPStatus(t, err, http.StatusUnauthorized)
}

func TestJWTMiddleware_WrongKey(t *testing.T) {
	token, _, _ := NewIssuer("labdesk", []byte("another-key-entirely-different-123"), time.Hour).
		Issue("client-1", "acme", "", nil)

	c, _ := newAuthContext("Bearer " + token)
	err := JWTMiddleware(JWTConfig{Issuer: "labdesk", SigningKey: testKey})(func(c echo.Context) error { return nil })(c)
	assertHTTPStatus(t, err, http.StatusUnauthorized)
}

func TestJWTMiddleware_Expired(t *testing.T) {
	issuer := NewIssuer("labdesk", testKey, time.Hour)
	issuer.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, _, _ := issuer.Issue("client-1", "acme", "", nil)

	c, _ := newAuthContext("Bearer " + token)
	err := JWTMiddleware(issuer.Config())(func(c echo.Context) error { return nil })(c)
	assertHTTPStatus(t, err, http.StatusUnauthorized)
}

func TestJWTMiddleware_RejectsNoneAlgorithm(t *testing.T) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "client-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		TenantID: "acme",
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	c, _ := newAuthContext("Bearer " + token)
	err = JWTMiddleware(JWTConfig{SigningKey: testKey})(func(c echo.Context) error { return nil })(c)
	assertHTTPStatus(t, err, http.StatusUnauthorized)
}

func TestJWTMiddleware_RequiresTenant(t *testing.T) {
	token, _, _ := NewIssuer("labdesk", testKey, time.Hour).Issue("client-1", "", "", nil)

	c, _ := newAuthContext("Bearer " + token)
	err := JWTMiddleware(JWTConfig{SigningKey: testKey})(func(c echo.Context) error { return nil })(c)
	assertHTTPStatus(t, err, http.StatusUnauthorized)
}

func TestJWTMiddleware_Skipper(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodPost, "/api/auth/login", nil), httptest.NewRecorder())

	called := false
	cfg := JWTConfig{SigningKey: testKey, Skipper: AuthSkipper(false)}
	if err := JWTMiddleware(cfg)(func(c echo.Context) error { called = true; return nil })(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Error("expected login to bypass authentication")
	}
}

func TestIsPublicPath(t *testing.T) {
	tests := []struct {
		path string
		dev  bool
		want bool
	}{
		{"/health", false, true},
		{"/metrics", false, true},
		{"/api/auth/login", false, true},
		{"/uploads/acme/logo-1.png", false, true},
		{"/api/auth/me", false, false},
		{"/api/bills", false, false},
		{"/api/admin/clients", false, false},
		{"/api/admin/clients", true, true},
	}
	for _, tt := range tests {
		if got := IsPublicPath(tt.path, tt.dev); got != tt.want {
			t.Errorf("IsPublicPath(%q, %v) = %v, want %v", tt.path, tt.dev, got, tt.want)
		}
	}
}

func TestContextHelpers_Empty(t *testing.T) {
	ctx := context.Background()
	if UserIDFromContext(ctx) != "" || EmailFromContext(ctx) != "" || RolesFromContext(ctx) != nil {
		t.Error("expected zero values from empty context")
	}
}

func assertHTTPStatus(t *testing.T, err error, want int) {
	t.Helper()
	he, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected *echo.HTTPError, got %T (%v)", err, err)
	}
	if he.Code != want {
		t.Errorf("expected %d, got %d", want, he.Code)
	}
}
