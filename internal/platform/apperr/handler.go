package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Response is the JSON body written for every failed request.
type Response struct {
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// HTTPErrorHandler renders application errors, echo HTTP errors and anything
// unexpected. Detail for 500s is only included when dev is true.
func HTTPErrorHandler(logger zerolog.Logger, dev bool) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, body := render(err, dev)
		if status >= http.StatusInternalServerError {
			rid, _ := c.Get("request_id").(string)
			logger.Error().
				Err(err).
				Str("request_id", rid).
				Str("path", c.Request().URL.Path).
				Msg("request failed")
		}

		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(status)
		} else {
			werr = c.JSON(status, body)
		}
		if werr != nil {
			logger.Error().Err(werr).Msg("write error response")
		}
	}
}

func render(err error, dev bool) (int, Response) {
	var ae *Error
	if errors.As(err, &ae) {
		resp := Response{Message: ae.Message}
		status := ae.Status()
		if status == http.StatusInternalServerError {
			if ae.Message == "" {
				resp.Message = "internal server error"
			}
			if dev && ae.Err != nil {
				resp.Error = ae.Err.Error()
			}
		}
		return status, resp
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := fmt.Sprintf("%v", he.Message)
		resp := Response{Message: msg}
		if he.Internal != nil && dev {
			resp.Error = he.Internal.Error()
		}
		return he.Code, resp
	}

	resp := Response{Message: "internal server error"}
	if dev {
		resp.Error = err.Error()
	}
	return http.StatusInternalServerError, resp
}
