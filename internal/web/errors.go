package web

// errors.go turns errors into JSON responses.
//
// The technical error is logged with the request id. The client receives
// the coded message from core.MapError, never the raw error text.

import (
	"errors"
	"net/http"
	"strings"

	"github.com/JonMunkholm/recimport/internal/core"
	"github.com/JonMunkholm/recimport/internal/logging"
)

// ErrorResponse is the body of every API error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// respondError logs err and writes its user-facing form with statusCode.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	userMsg := core.MapError(err)

	logger := logging.FromContext(r.Context())
	if statusCode >= 500 {
		logger.Error("request error",
			"path", r.URL.Path,
			"method", r.Method,
			"status", statusCode,
			"error", err.Error(),
			"code", userMsg.Code,
		)
	} else {
		logger.Warn("request rejected",
			"path", r.URL.Path,
			"method", r.Method,
			"status", statusCode,
			"error", err.Error(),
			"code", userMsg.Code,
		)
	}

	if errors.Is(err, core.ErrTooManyImports) || errors.Is(err, core.ErrBatchRunning) {
		w.Header().Set("Retry-After", "30")
	}
	writeJSON(w, statusCode, ErrorResponse{
		Error:   userMsg.Message,
		Message: userMsg.Message,
		Action:  userMsg.Action,
		Code:    userMsg.Code,
	})
}

// statusFor picks the HTTP status for an error from the import path.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, core.ErrTooManyImports),
		errors.Is(err, core.ErrSchemaUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, core.ErrBatchRunning):
		return http.StatusConflict
	case errors.Is(err, core.ErrEmptyFile),
		errors.Is(err, core.ErrUnsupportedFormat),
		errors.Is(err, core.ErrNoFile):
		return http.StatusBadRequest
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "invalid csv") || strings.Contains(msg, "invalid xlsx") {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
