package web

// errors.go provides unified error responses for the API.
//
// Every error is logged with its technical detail and the request id, then
// returned as {error, message, action, code} from core.MapError. The status
// code comes from statusFor, which branches on the sentinel errors.

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/JonMunkholm/m2o/internal/core"
	"github.com/JonMunkholm/m2o/internal/logging"
	"github.com/JonMunkholm/m2o/internal/market"
	"github.com/JonMunkholm/m2o/internal/selection"
)

// ErrorResponse is the JSON body of every API error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// respondError logs err and writes the mapped user message.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	userMsg := core.MapError(err)

	logger := logging.FromContext(r.Context())
	attrs := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", userMsg.Code,
	}
	if status >= http.StatusInternalServerError {
		logger.Error("request error", attrs...)
	} else {
		logger.Warn("request rejected", attrs...)
	}

	respondErrorJSON(w, userMsg, status)
}

// respondErrorJSON writes a JSON error response.
func respondErrorJSON(w http.ResponseWriter, msg core.UserMessage, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}

// statusFor maps an error to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrSessionNotFound),
		errors.Is(err, core.ErrUnknownFamily),
		errors.Is(err, core.ErrItemNotFound):
		return http.StatusNotFound

	case errors.Is(err, core.ErrInvalidRequest),
		errors.Is(err, market.ErrUnknownCurrency),
		errors.Is(err, selection.ErrUnknownCombination),
		errors.Is(err, selection.ErrBaseChoiceNotRequired),
		errors.Is(err, selection.ErrBaseNotAvailable):
		return http.StatusBadRequest

	case errors.Is(err, core.ErrNoCurrency),
		errors.Is(err, selection.ErrNotSelected):
		return http.StatusConflict

	case errors.Is(err, core.ErrNothingToExport):
		return http.StatusUnprocessableEntity

	case errors.Is(err, core.ErrTooManyExports),
		errors.Is(err, core.ErrTooManySessions):
		return http.StatusServiceUnavailable

	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout

	case errors.Is(err, context.Canceled):
		// Client went away; the status is only logged.
		return 499
	}
	return http.StatusInternalServerError
}
