package apperr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want Kind
	}{
		{Validation("bad"), KindValidation},
		{Auth("nope"), KindAuth},
		{Forbidden("inactive"), KindForbidden},
		{NotFound("missing"), KindNotFound},
		{Conflict("dup"), KindConflict},
		{fmt.Errorf("wrapped: %w", Conflict("dup")), KindConflict},
		{errors.New("plain"), KindInternal},
	}
	for _, tt := range tests {
		if got := KindOf(tt.err); got != tt.want {
			t.Errorf("KindOf(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestError_Status(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{Validation("x"), http.StatusBadRequest},
		{Auth("x"), http.StatusUnauthorized},
		{Forbidden("x"), http.StatusForbidden},
		{NotFound("x"), http.StatusNotFound},
		{Conflict("x"), http.StatusConflict},
		{Internal("x", nil), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		status, _ := render(tt.err, false)
		if status != tt.want {
			t.Errorf("render(%v) status = %d, want %d", tt.err, status, tt.want)
		}
	}
}

func runHandler(t *testing.T, err error, dev bool) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	HTTPErrorHandler(zerolog.Nop(), dev)(err, c)

	var body Response
	if jerr := json.Unmarshal(rec.Body.Bytes(), &body); jerr != nil {
		t.Fatalf("decode body: %v", jerr)
	}
	return rec, body
}

func TestHTTPErrorHandler_Validation(t *testing.T) {
	rec, body := runHandler(t, Validation("invalid test group"), false)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
	if body.Message != "invalid test group" {
		t.Errorf("unexpected message %q", body.Message)
	}
	if body.Error != "" {
		t.Errorf("expected no detail, got %q", body.Error)
	}
}

func TestHTTPErrorHandler_InternalHidesDetailInProduction(t *testing.T) {
	rec, body := runHandler(t, errors.New("pq: connection refused"), false)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
	if body.Error != "" {
		t.Errorf("expected detail to be suppressed, got %q", body.Error)
	}
}

func TestHTTPErrorHandler_InternalShowsDetailInDev(t *testing.T) {
	_, body := runHandler(t, Internal("failed to create bill", errors.New("boom")), true)
	if body.Message != "failed to create bill" {
		t.Errorf("unexpected message %q", body.Message)
	}
	if body.Error != "boom" {
		t.Errorf("expected detail boom, got %q", body.Error)
	}
}

func TestHTTPErrorHandler_EchoHTTPError(t *testing.T) {
	rec, body := runHandler(t, echo.NewHTTPError(http.StatusRequestEntityTooLarge, "request body too large"), false)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413, got %d", rec.Code)
	}
	if body.Message != "request body too large" {
		t.Errorf("unexpected message %q", body.Message)
	}
}
