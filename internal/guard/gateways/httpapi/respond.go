package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/guardhome/guardhome/internal/guard/domain"
	"github.com/guardhome/guardhome/internal/guard/metrics"
)

// errorResponse is the standard control API error shape. RollbackFailed
// is only set on mutation endpoints so callers know whether the previous
// rule set was restored.
type errorResponse struct {
	Success        bool   `json:"success"`
	Error          string `json:"error"`
	Detail         string `json:"detail,omitempty"`
	RollbackFailed *bool  `json:"rollback_failed,omitempty"`
}

// writeJSON sends a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// writeError maps a guard error onto the control API error contract.
func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, errorStatus(err), errorResponse{
		Error:  errorLabel(err),
		Detail: err.Error(),
	})
}

// writeMutationError is writeError plus the rollback outcome, for the
// endpoints that mutate the upstream rule set.
func writeMutationError(w http.ResponseWriter, err error) {
	rollbackFailed := errors.Is(err, domain.ErrRollbackFailed)
	writeJSON(w, errorStatus(err), errorResponse{
		Error:          errorLabel(err),
		Detail:         err.Error(),
		RollbackFailed: &rollbackFailed,
	})
}

// errorStatus maps the error taxonomy onto HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrRollbackFailed):
		// Checked before the upstream buckets: a failed rollback is always
		// surfaced as a server-side fault needing manual intervention.
		return http.StatusInternalServerError
	case errors.Is(err, domain.ErrUpstreamAuth):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrUpstreamProtocol):
		return http.StatusBadGateway
	default:
		// Covers ErrBackupWrite and anything unexpected.
		return http.StatusInternalServerError
	}
}

// errorLabel names the taxonomy bucket for machine consumption.
func errorLabel(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return "InvalidInput"
	case errors.Is(err, domain.ErrRollbackFailed):
		return "RollbackFailed"
	case errors.Is(err, domain.ErrUpstreamAuth):
		return "UpstreamAuthError"
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		return "UpstreamUnavailable"
	case errors.Is(err, domain.ErrUpstreamProtocol):
		return "UpstreamProtocolError"
	case errors.Is(err, domain.ErrBackupWrite):
		return "BackupWriteError"
	default:
		return "InternalError"
	}
}

// statusRecorder captures the response code for request metrics.
type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument counts requests per route and response code.
func (s *Server) instrument(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		next(rec, r)
		metrics.Get().APIRequests.WithLabelValues(route, strconv.Itoa(rec.code)).Inc()
	}
}
