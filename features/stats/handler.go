package stats

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"ragline/features/task"
)

type TaskRepo interface {
	CountByStatus(ctx context.Context) (map[task.Status]int, error)
}

type VectorStore interface {
	CountChunks(ctx context.Context) (int, error)
}

type Handler struct {
	taskRepo    TaskRepo
	vectorStore VectorStore
}

func NewHandler(t TaskRepo, v VectorStore) *Handler {
	return &Handler{taskRepo: t, vectorStore: v}
}

type StatsResponse struct {
	Tasks  map[task.Status]int `json:"tasks"`
	Chunks int                 `json:"chunks"`
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	counts, err := h.taskRepo.CountByStatus(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count tasks", "error", err)
		h.writeError(w, "failed to count tasks", http.StatusInternalServerError)
		return
	}

	chunks, err := h.vectorStore.CountChunks(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count chunks", "error", err)
		h.writeError(w, "failed to count chunks", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(StatsResponse{Tasks: counts, Chunks: chunks}); err != nil {
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
