package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

type chatRequest struct {
	Message string         `json:"message"`
	Context map[string]any `json:"context"`
}

type adviceRequest struct {
	Kind    string `json:"kind"`
	Subject string `json:"subject"`
}

func (s *Server) handleChatStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{"available": s.service.ChatAvailable(r.Context())})
}

func (s *Server) handleChatHistory(w http.ResponseWriter, r *http.Request) {
	msgs, err := s.service.ChatHistory(r.Context(), chi.URLParam(r, "room"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"success": true, "messages": msgs})
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(r, maxJSONBody, &req); err != nil {
		s.writeErrors(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	reply, err := s.service.SendMessage(r.Context(), chi.URLParam(r, "room"), req.Message, req.Context)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"success": true, "response": reply})
}

func (s *Server) handleClearChat(w http.ResponseWriter, r *http.Request) {
	if err := s.service.ClearChat(r.Context(), chi.URLParam(r, "room")); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleAdvice(w http.ResponseWriter, r *http.Request) {
	var req adviceRequest
	if err := decodeJSON(r, maxJSONBody, &req); err != nil {
		s.writeErrors(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	reply, err := s.service.Advise(r.Context(), chi.URLParam(r, "room"), req.Kind, req.Subject)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"success": true, "response": reply})
}
