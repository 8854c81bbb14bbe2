package retrieval

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type searchResponse struct {
	Query      string `json:"query"`
	Results    []Hit  `json:"results"`
	TotalFound int    `json:"total_found"`
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req struct {
		Query string `json:"query"`
		Limit int    `json:"limit"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Query == "" {
		h.writeError(w, "query is required", http.StatusBadRequest)
		return
	}

	hits, err := h.service.Search(ctx, req.Query, req.Limit)
	if err != nil {
		slog.ErrorContext(ctx, "search failed", "error", err)
		h.writeError(w, "Search failed", http.StatusInternalServerError)
		return
	}
	if hits == nil {
		hits = []Hit{}
	}

	w.Header().Set("Content-Type", "application/json")
	resp := searchResponse{Query: req.Query, Results: hits, TotalFound: len(hits)}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (h *Handler) Query(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req struct {
		Query string `json:"query"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Query == "" {
		h.writeError(w, "query is required", http.StatusBadRequest)
		return
	}

	answer, hits, err := h.service.Answer(ctx, req.Query)
	if err != nil {
		slog.ErrorContext(ctx, "query failed", "error", err)
		h.writeError(w, "Query failed", http.StatusInternalServerError)
		return
	}
	if hits == nil {
		hits = []Hit{}
	}

	w.Header().Set("Content-Type", "application/json")
	resp := map[string]interface{}{
		"answer":  answer,
		"query":   req.Query,
		"results": hits,
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": message}); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}
