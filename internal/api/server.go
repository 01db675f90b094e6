// internal/api/server.go
package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"bushfire-beacon/internal/common/errors"
	"bushfire-beacon/internal/common/logger"
	"bushfire-beacon/internal/engine"
	"bushfire-beacon/internal/intake"
)

// Server exposes the engine over HTTP: report submission, alert status and
// withdrawal.
type Server struct {
	engine *engine.Engine
	logger logger.Logger
}

func NewServer(e *engine.Engine, log logger.Logger) *Server {
	return &Server{engine: e, logger: log}
}

// Routes builds the HTTP mux.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/reports", s.handleReports)
	mux.HandleFunc("/api/v1/alerts/", s.handleAlerts)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ready", s.handleHealth)
	return mux
}

func (s *Server) handleReports(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "", "method not allowed")
		return
	}

	var report intake.Report
	if err := json.NewDecoder(r.Body).Decode(&report); err != nil {
		writeError(w, http.StatusBadRequest, string(errors.ErrCodeInvalidReport), "malformed request body")
		return
	}

	result, err := s.engine.Submit(r.Context(), report)
	if err != nil {
		if errors.IsInvalidReport(err) {
			writeError(w, http.StatusUnprocessableEntity, string(errors.CodeOf(err)), err.Error())
			return
		}
		s.logger.Error("report submission failed", map[string]interface{}{"error": err.Error()})
		writeError(w, http.StatusServiceUnavailable, string(errors.CodeOf(err)), "report could not be processed")
		return
	}

	status := http.StatusAccepted
	if result.Duplicate {
		status = http.StatusOK
	}
	writeJSON(w, status, result)
}

// handleAlerts serves GET /api/v1/alerts/{id} and POST /api/v1/alerts/{id}/withdraw.
func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/alerts/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")

	switch {
	case len(parts) == 1 && parts[0] != "" && r.Method == http.MethodGet:
		s.handleStatus(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "withdraw" && r.Method == http.MethodPost:
		s.handleWithdraw(w, r, parts[0])
	default:
		writeError(w, http.StatusNotFound, "", "not found")
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request, alertID string) {
	status, err := s.engine.Status(r.Context(), alertID)
	if err != nil {
		if errors.CodeOf(err) == errors.ErrCodeAlertNotFound {
			writeError(w, http.StatusNotFound, string(errors.ErrCodeAlertNotFound), "alert not found")
			return
		}
		s.logger.Error("status lookup failed", map[string]interface{}{
			"alert_id": alertID,
			"error":    err.Error(),
		})
		writeError(w, http.StatusServiceUnavailable, string(errors.CodeOf(err)), "status unavailable")
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request, alertID string) {
	if err := s.engine.Withdraw(r.Context(), alertID); err != nil {
		if errors.CodeOf(err) == errors.ErrCodeAlertNotFound {
			writeError(w, http.StatusNotFound, string(errors.ErrCodeAlertNotFound), "alert not found")
			return
		}
		s.logger.Error("withdraw failed", map[string]interface{}{
			"alert_id": alertID,
			"error":    err.Error(),
		})
		writeError(w, http.StatusServiceUnavailable, string(errors.CodeOf(err)), "withdraw failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{
		"code":  code,
		"error": message,
	})
}
