package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/guardhome/guardhome/internal/guard/domain"
)

const defaultAttemptLimit = 50

// handleCheckHost answers GET /control/filtering/check_host?name=<domain>
// with the normalized check result.
func (s *Server) handleCheckHost(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	result, err := s.service.Check(r.Context(), name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleWhitelistAdd answers POST /control/filtering/whitelist/add,
// running the full snapshot/backup/mutate/rollback guard flow.
func (s *Server) handleWhitelistAdd(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := s.service.Unblock(r.Context(), req.Name)
	if err != nil {
		writeMutationError(w, err)
		return
	}

	message := fmt.Sprintf("%s has been unblocked", result.Domain)
	if result.Already {
		message = fmt.Sprintf("%s is already unblocked", result.Domain)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"domain":      result.Domain,
		"already":     result.Already,
		"message":     message,
		"backup_file": result.BackupFile,
	})
}

// handleSetRules answers POST /control/filtering/set_rules, replacing the
// whole user rule list under backup/rollback protection.
func (s *Server) handleSetRules(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Rules []string `json:"rules"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Rules == nil {
		writeError(w, fmt.Errorf("%w: rules list is required", domain.ErrInvalidInput))
		return
	}

	result, err := s.service.ReplaceRules(r.Context(), req.Rules)
	if err != nil {
		writeMutationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"message":     "rule set replaced",
		"backup_file": result.BackupFile,
	})
}

// handleFilteringStatus answers GET /control/filtering/status with the
// upstream filtering snapshot.
func (s *Server) handleFilteringStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.service.Status(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// handleBackups answers GET /control/filtering/backups with the
// accumulated pre-mutation backup records, newest first.
func (s *Server) handleBackups(w http.ResponseWriter, r *http.Request) {
	records, err := s.service.Backups()
	if err != nil {
		writeError(w, err)
		return
	}
	if records == nil {
		records = []domain.BackupRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"backups": records})
}

// handleAttempts answers GET /control/filtering/attempts?limit=<n> with
// the most recent journaled mutation attempts.
func (s *Server) handleAttempts(w http.ResponseWriter, r *http.Request) {
	limit := defaultAttemptLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, fmt.Errorf("%w: limit must be a positive integer", domain.ErrInvalidInput))
			return
		}
		limit = n
	}

	attempts, err := s.service.Attempts(limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if attempts == nil {
		attempts = []domain.Attempt{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"attempts": attempts})
}

// handleStatus answers GET /control/status with composite health. The
// response is always 200; degraded states are reported in the body so
// monitoring can distinguish "app down" from "upstream down".
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.Health(r.Context()))
}

// decodeBody parses a small JSON request body, mapping malformed input
// onto ErrInvalidInput.
func decodeBody(w http.ResponseWriter, r *http.Request, out any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: malformed request body: %v", domain.ErrInvalidInput, err)
	}
	return nil
}
