package router

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/mohammed-shakir/osrm-access/internal/access"
	"github.com/mohammed-shakir/osrm-access/internal/access/grid"
	"github.com/mohammed-shakir/osrm-access/internal/access/interp"
	"github.com/mohammed-shakir/osrm-access/internal/access/isoline"
	"github.com/mohammed-shakir/osrm-access/internal/access/matrix"
	"github.com/mohammed-shakir/osrm-access/internal/osrm"
)

// badRequest marks a parameter the caller got wrong.
type badRequest struct{ msg string }

func (e *badRequest) Error() string { return e.msg }

func invalid(msg string) error { return &badRequest{msg: msg} }

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
	Limit int    `json:"limit,omitempty"`
	Count int    `json:"count,omitempty"`
}

// statusFor maps failures to HTTP statuses. Anything unrecognised came
// from the routing backend and is reported as 502.
func statusFor(err error) (int, errorBody) {
	body := errorBody{Error: err.Error()}

	var (
		br  *badRequest
		tl  *access.TooLargeError
		ins *interp.InsufficientSamplesError
		of  *matrix.OracleFailure
		re  *osrm.ResponseError
		se  *osrm.StatusError
	)
	switch {
	case errors.As(err, &br),
		errors.Is(err, access.ErrInvalidRequest),
		errors.Is(err, grid.ErrInvalidResolution),
		errors.Is(err, grid.ErrEmptyRegion),
		errors.Is(err, isoline.ErrInvalidClassCount),
		errors.Is(err, matrix.ErrEmptyInput):
		return http.StatusBadRequest, body
	case errors.As(err, &tl):
		body.Code, body.Limit, body.Count = "TooLarge", tl.Limit, tl.Count
		return http.StatusRequestEntityTooLarge, body
	case errors.As(err, &ins), errors.Is(err, isoline.ErrEmptyRaster):
		body.Code = "InsufficientSamples"
		return http.StatusUnprocessableEntity, body
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, body
	case errors.As(err, &re):
		body.Code = re.Code
		switch re.Code {
		case "NoRoute", "NoSegment", "NoMatch", "NoTrip":
			return http.StatusNotFound, body
		case "InvalidQuery", "InvalidValue", "InvalidOptions", "TooBig":
			return http.StatusBadRequest, body
		}
		return http.StatusBadGateway, body
	case errors.As(err, &of):
		body.Code = "OracleFailure"
		return http.StatusBadGateway, body
	case errors.As(err, &se):
		return http.StatusBadGateway, body
	}
	return http.StatusBadGateway, body
}

func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status, body := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "status", status, "err", err)
	} else {
		logger.DebugContext(r.Context(), "request rejected", "path", r.URL.Path, "status", status, "err", err)
	}
	writeJSON(w, status, body)
}
