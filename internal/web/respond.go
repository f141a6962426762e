package web

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/vbonduro/renobudget/internal/blobstore"
	"github.com/vbonduro/renobudget/internal/domain"
	"github.com/vbonduro/renobudget/internal/imagestore"
	"github.com/vbonduro/renobudget/internal/persistence"
	"github.com/vbonduro/renobudget/internal/service"
)

type errorResponse struct {
	Success bool     `json:"success"`
	Errors  []string `json:"errors,omitempty"`
	Error   string   `json:"error,omitempty"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("write response failed", "error", err)
	}
}

func (s *Server) writeErrors(w http.ResponseWriter, status int, msgs ...string) {
	s.writeJSON(w, status, errorResponse{Errors: msgs})
}

// writeError maps a service error onto a status code and JSON body.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verr *domain.ValidationError
		cerr *domain.ChatError
		uerr *domain.ImageUploadError
		perr *domain.PersistenceError
	)
	switch {
	case errors.As(err, &verr):
		s.writeErrors(w, http.StatusUnprocessableEntity, verr.Messages...)
	case errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrRoomNotFound),
		errors.Is(err, blobstore.ErrNotFound),
		errors.Is(err, imagestore.ErrNotFound),
		errors.Is(err, persistence.ErrSampleNotFound):
		s.writeErrors(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrEmptyMessage), errors.Is(err, service.ErrUnknownAdvice):
		s.writeErrors(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &cerr):
		status := http.StatusBadGateway
		if cerr.Kind == domain.ChatTimeout {
			status = http.StatusGatewayTimeout
		}
		s.writeJSON(w, status, errorResponse{Error: cerr.Err.Error()})
	case errors.As(err, &uerr):
		s.writeErrors(w, http.StatusBadGateway, uerr.Error())
	case errors.As(err, &perr):
		s.logger.Error("persistence failure", "path", r.URL.Path, "error", err)
		s.writeErrors(w, http.StatusInternalServerError, perr.Error())
	default:
		s.logger.Error("request failed", "path", r.URL.Path, "error", err)
		s.writeErrors(w, http.StatusInternalServerError, "internal error")
	}
}

// decodeJSON reads a JSON request body of at most limit bytes into v.
func decodeJSON(r *http.Request, limit int64, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, limit))
	return dec.Decode(v)
}

// closeWithLog closes c and logs any error, using label to identify the resource.
func closeWithLog(c io.Closer, label string, logger *slog.Logger) {
	if err := c.Close(); err != nil {
		logger.Error("failed to close resource", "label", label, "error", err)
	}
}
