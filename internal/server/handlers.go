package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/hayasui/kioku/internal/orchestrator"
)

type embedRequest struct {
	Text string `json:"text"`
}

type embedResponse struct {
	Embedding  []float32 `json:"embedding"`
	Dimensions int       `json:"dimensions"`
}

type batchRequest struct {
	Texts []string `json:"texts"`
}

type batchResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
	Count      int         `json:"count"`
	Dimensions int         `json:"dimensions"`
}

type healthResponse struct {
	Status     string             `json:"status"`
	ModelReady bool               `json:"modelReady"`
	Dimensions int                `json:"dimensions"`
	Stats      orchestrator.Stats `json:"stats"`
}

func (s *Server) handleEmbed(w http.ResponseWriter, r *http.Request) {
	var req embedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	embedding, err := s.orch.ResolveOne(r.Context(), req.Text)
	if err != nil {
		s.respondResolveError(w, err, "missing or invalid text field")
		return
	}
	s.respondJSON(w, http.StatusOK, embedResponse{
		Embedding:  embedding,
		Dimensions: len(embedding),
	})
}

func (s *Server) handleEmbedBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// A missing texts field decodes to nil, which the orchestrator rejects;
	// an explicit empty array is valid and yields count 0.
	embeddings, err := s.orch.ResolveBatch(r.Context(), req.Texts)
	if err != nil {
		s.respondResolveError(w, err, "texts must be an array of strings")
		return
	}

	dimensions := 0
	if len(embeddings) > 0 {
		dimensions = len(embeddings[0])
	}
	s.respondJSON(w, http.StatusOK, batchResponse{
		Embeddings: embeddings,
		Count:      len(embeddings),
		Dimensions: dimensions,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ready := s.orch.Ready()
	status := "loading"
	if ready {
		status = "ok"
	}
	s.respondJSON(w, http.StatusOK, healthResponse{
		Status:     status,
		ModelReady: ready,
		Dimensions: s.orch.Dimensions(),
		Stats:      s.orch.Stats(),
	})
}

func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	cleared := s.orch.ClearCache()
	s.respondJSON(w, http.StatusOK, map[string]int{"cleared": cleared})
}

// respondResolveError maps orchestrator errors to HTTP status codes:
// invalid input is a client error, a not-ready model is retryable, and
// generation failures are internal errors surfaced with their message.
func (s *Server) respondResolveError(w http.ResponseWriter, err error, invalidMsg string) {
	switch {
	case errors.Is(err, orchestrator.ErrInvalidInput):
		s.respondError(w, http.StatusBadRequest, invalidMsg)
	case errors.Is(err, orchestrator.ErrModelNotReady):
		s.respondError(w, http.StatusServiceUnavailable, "model is still loading, retry shortly")
	default:
		s.logger.Error("embedding request failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
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
