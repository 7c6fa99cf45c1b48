package web

// errors.go provides unified error response handling for the web layer.
//
// It ensures all errors are:
//   - Logged with full technical details for debugging (server-side)
//   - Returned to clients as user-friendly messages with action suggestions
//   - Given the HTTP status that matches their support code
//
// The error flow:
//  1. Handler encounters an error
//  2. Calls s.respondError(w, r, err)
//  3. Error is mapped via core.MapError to get user-friendly message
//  4. Technical error + context is logged with request ID for correlation
//  5. User message and status are written as JSON

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/JonMunkholm/chemflux/internal/core"
	"github.com/JonMunkholm/chemflux/internal/logging"
)

var (
	errNoFile      = errors.New(`no file provided: use form field "file"`)
	errInvalidForm = errors.New("invalid upload form")
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
// Detail carries the technical reason for client errors only.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
	Detail  string `json:"detail,omitempty"`
}

// codeStatus maps support codes to HTTP statuses. Unlisted codes are 500.
var codeStatus = map[string]int{
	"FILE001": http.StatusRequestEntityTooLarge,
	"FILE002": http.StatusBadRequest,
	"FILE003": http.StatusBadRequest,
	"FILE004": http.StatusBadRequest,
	"FILE005": http.StatusBadRequest,
	"DS001":   http.StatusNotFound,
	"DS002":   http.StatusBadRequest,
	"UPL002":  http.StatusTooManyRequests,
	"UPL004":  http.StatusRequestTimeout,
	"UPL005":  http.StatusGatewayTimeout,
	"RATE001": http.StatusTooManyRequests,
	"DB004":   http.StatusServiceUnavailable,
	"DB005":   http.StatusServiceUnavailable,
	"DB006":   http.StatusGatewayTimeout,
	"DB007":   http.StatusServiceUnavailable,
}

// statusFor returns the HTTP status for err.
func statusFor(err error) int {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return http.StatusRequestEntityTooLarge
	}
	if status, ok := codeStatus[core.MapError(err).Code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// respondError logs the technical error server-side and writes the mapped
// user message with the matching status.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	userMsg := core.MapError(err)
	status := statusFor(err)

	logger := logging.FromContext(r.Context())
	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	logger.Log(r.Context(), level, "request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", userMsg.Code,
	)

	if status == http.StatusTooManyRequests {
		w.Header().Set("Retry-After", strconv.Itoa(int(s.cfg.Upload.MaxWaitTime.Seconds())))
	}

	resp := ErrorResponse{
		Error:   userMsg.Message,
		Message: userMsg.Message,
		Action:  userMsg.Action,
		Code:    userMsg.Code,
	}
	if status < http.StatusInternalServerError {
		resp.Detail = err.Error()
	}
	writeJSONStatus(w, status, resp)
}

// statusCode labels errors raised outside respondError.
func statusCode(status int) string {
	if status == http.StatusTooManyRequests {
		return "RATE001"
	}
	return "HTTP" + strconv.Itoa(status)
}
