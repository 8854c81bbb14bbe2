package task

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req struct {
		FileName    string `json:"file_name"`
		FileContent string `json:"file_content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.FileName == "" {
		h.writeError(w, "file_name is required", http.StatusBadRequest)
		return
	}
	if req.FileContent == "" {
		h.writeError(w, "file_content is required", http.StatusBadRequest)
		return
	}
	// Content is opaque binary, base64-encoded at the boundary.
	if _, err := base64.StdEncoding.DecodeString(req.FileContent); err != nil {
		h.writeError(w, "file_content must be base64 encoded", http.StatusBadRequest)
		return
	}

	t, err := h.service.Submit(ctx, req.FileName, req.FileContent)
	if err != nil {
		slog.ErrorContext(ctx, "failed to create task", "error", err)
		h.writeError(w, "Failed to create task", http.StatusInternalServerError)
		return
	}

	h.writeJSON(ctx, w, http.StatusCreated, t)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		h.writeError(w, "Invalid task id", http.StatusBadRequest)
		return
	}

	t, err := h.service.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			h.writeError(w, "Task not found", http.StatusNotFound)
			return
		}
		slog.ErrorContext(ctx, "failed to get task", "id", id, "error", err)
		h.writeError(w, "Failed to get task", http.StatusInternalServerError)
		return
	}

	h.writeJSON(ctx, w, http.StatusOK, t)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var status *Status
	if s := r.URL.Query().Get("status"); s != "" {
		parsed, err := ParseStatus(s)
		if err != nil {
			h.writeError(w, "Invalid status filter", http.StatusBadRequest)
			return
		}
		status = &parsed
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	tasks, err := h.service.List(ctx, status, limit, offset)
	if err != nil {
		slog.ErrorContext(ctx, "failed to list tasks", "error", err)
		h.writeError(w, "Failed to list tasks", http.StatusInternalServerError)
		return
	}
	if tasks == nil {
		tasks = []Task{}
	}

	h.writeJSON(ctx, w, http.StatusOK, tasks)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		h.writeError(w, "Invalid task id", http.StatusBadRequest)
		return
	}

	var req struct {
		Status         *string `json:"status"`
		ErrorMessage   *string `json:"error_message"`
		EmbeddingCount *int    `json:"embedding_count"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	patch := Patch{ErrorMessage: req.ErrorMessage, EmbeddingCount: req.EmbeddingCount}
	if req.Status != nil {
		parsed, err := ParseStatus(*req.Status)
		if err != nil {
			h.writeError(w, "Invalid status value", http.StatusBadRequest)
			return
		}
		patch.Status = &parsed
	}

	t, err := h.service.Update(ctx, id, patch)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			h.writeError(w, "Task not found", http.StatusNotFound)
		case errors.Is(err, ErrConflictingState):
			h.writeError(w, "Illegal status transition", http.StatusConflict)
		default:
			slog.ErrorContext(ctx, "failed to update task", "id", id, "error", err)
			h.writeError(w, "Failed to update task", http.StatusInternalServerError)
		}
		return
	}

	h.writeJSON(ctx, w, http.StatusOK, t)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		h.writeError(w, "Invalid task id", http.StatusBadRequest)
		return
	}

	if err := h.service.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			h.writeError(w, "Task not found", http.StatusNotFound)
			return
		}
		slog.ErrorContext(ctx, "failed to delete task", "id", id, "error", err)
		h.writeError(w, "Failed to delete task", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeJSON(ctx context.Context, w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

// Internal detail never leaks to API clients; only the error kind and a
// short message do.
func (h *Handler) writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": message}); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}
