package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/hyperjump/copilot/internal/generation"
	"github.com/hyperjump/copilot/internal/models"
	"github.com/hyperjump/copilot/internal/pipeline"
	"github.com/hyperjump/copilot/internal/retrieval"
)

const maxBodyBytes = 1 << 20

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeAsk(w, r)
	if !ok {
		return
	}
	resp, err := s.asker.Retrieve(r.Context(), req.Question, req.TopK)
	if err != nil {
		s.respondFailure(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAskLLM(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeAsk(w, r)
	if !ok {
		return
	}
	resp, err := s.asker.Answer(r.Context(), req.Question, req.TopK)
	if err != nil {
		s.respondFailure(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.status.Status(r.Context())
	if err != nil {
		s.logger.Error("status failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, st)
}

func (s *Server) decodeAsk(w http.ResponseWriter, r *http.Request) (*models.AskRequest, bool) {
	var req models.AskRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return nil, false
	}
	if err := req.Validate(s.config.DefaultTopK, s.config.MaxTopK); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	return &req, true
}

// respondFailure maps pipeline errors to status codes. Availability problems are 503
// so callers can tell them apart from bugs.
func (s *Server) respondFailure(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, pipeline.ErrEmptyQuestion):
		s.respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, retrieval.ErrUnavailable), errors.Is(err, generation.ErrBackend):
		s.logger.Warn("dependency unavailable", zap.Error(err))
		s.respondError(w, http.StatusServiceUnavailable, err.Error())
	default:
		s.logger.Error("request failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
