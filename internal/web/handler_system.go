package web

import (
	"net/http"
	"strconv"
)

const defaultDiagnosticsLimit = 50

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleDiagnostics(w http.ResponseWriter, r *http.Request) {
	limit := defaultDiagnosticsLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.writeErrors(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	entries, err := s.service.RecentDiagnostics(r.Context(), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"success": true, "diagnostics": entries})
}

// handleLogError receives an error log block mirrored from another instance
// in the form field "errorLog".
func (s *Server) handleLogError(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	text := r.FormValue("errorLog")
	if text == "" {
		s.writeJSON(w, http.StatusBadRequest, statusResponse{Status: "error", Message: "No error log provided"})
		return
	}

	s.logger.Error("client error log",
		"path", r.URL.Path,
		"client", r.RemoteAddr,
		"user_agent", r.UserAgent(),
		"text", text,
	)
	s.writeJSON(w, http.StatusOK, statusResponse{Status: "success"})
}
