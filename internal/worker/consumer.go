package worker

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/nsqio/go-nsq"

	"ragline/features/task"
	"ragline/internal/middleware"
)

// errPermanent marks failures that redelivery cannot fix (malformed content,
// unsupported encoding). The task is marked failed immediately; everything
// else is transient and left to NSQ redelivery up to MaxAttempts.
var errPermanent = errors.New("permanent ingest failure")

type Consumer struct {
	tasks    TaskStore
	embedder Embedder
	store    VectorStore
	chunker  Chunker

	embedTimeout time.Duration
	maxAttempts  uint16
}

func NewConsumer(tasks TaskStore, e Embedder, s VectorStore, c Chunker, embedTimeout time.Duration, maxAttempts uint16) *Consumer {
	return &Consumer{
		tasks:        tasks,
		embedder:     e,
		store:        s,
		chunker:      c,
		embedTimeout: embedTimeout,
		maxAttempts:  maxAttempts,
	}
}

// HandleMessage drives one task through the pipeline state machine. Returning
// nil acknowledges the message; returning an error requeues it. Every state
// decision is re-derived from the task store, so redelivered events are safe.
func (h *Consumer) HandleMessage(m *nsq.Message) error {
	if len(m.Body) == 0 {
		return nil
	}

	var event task.TaskSubmittedEvent
	if err := json.Unmarshal(m.Body, &event); err != nil {
		// Poison pill: requeueing invalid JSON can never succeed.
		slog.Error("dropping malformed task event", "error", err)
		return nil
	}

	ctx := context.Background()
	if event.CorrelationID != "" {
		ctx = middleware.WithCorrelationID(ctx, event.CorrelationID)
	}

	t, err := h.tasks.Get(ctx, event.TaskID)
	if err != nil {
		if errors.Is(err, task.ErrNotFound) {
			// The task was deleted while this event was in flight. An earlier
			// attempt may have indexed chunks after the delete's purge ran, so
			// purge again before acknowledging; nothing may stay indexed under
			// a dead task id.
			if delErr := h.store.DeleteChunksByTask(ctx, event.TaskID); delErr != nil {
				slog.ErrorContext(ctx, "failed to purge vectors of deleted task", "task_id", event.TaskID, "error", delErr)
				return delErr
			}
			slog.WarnContext(ctx, "task gone, dropping event", "task_id", event.TaskID)
			return nil
		}
		return err
	}
	if task.IsTerminal(t.Status) {
		slog.InfoContext(ctx, "task already terminal, dropping redelivered event", "task_id", t.ID, "status", t.Status)
		return nil
	}

	ok, err := h.claim(ctx, t, m.Attempts)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	count, err := h.process(ctx, event)
	if err != nil {
		return h.fail(ctx, event.TaskID, m.Attempts, err)
	}

	completed := task.StatusCompleted
	if _, err := h.tasks.Update(ctx, event.TaskID, task.Patch{Status: &completed, EmbeddingCount: &count}); err != nil {
		slog.ErrorContext(ctx, "failed to mark task completed", "task_id", event.TaskID, "error", err)
		return err
	}

	slog.InfoContext(ctx, "task completed", "task_id", event.TaskID, "embedding_count", count)
	return nil
}

// claim transitions the task to processing. The store's transition guard is
// the serialization point between concurrent workers: exactly one claim of a
// pending task succeeds, the loser drops its delivery. A task found already
// processing on a redelivery (attempts > 1) is this consumer's own failed
// attempt being retried, so processing resumes without a new transition.
func (h *Consumer) claim(ctx context.Context, t *task.Task, attempts uint16) (bool, error) {
	if t.Status == task.StatusProcessing {
		if attempts > 1 {
			slog.InfoContext(ctx, "resuming task after requeue", "task_id", t.ID, "attempt", attempts)
			return true, nil
		}
		slog.InfoContext(ctx, "task claimed by another worker, dropping event", "task_id", t.ID)
		return false, nil
	}

	processing := task.StatusProcessing
	if _, err := h.tasks.Update(ctx, t.ID, task.Patch{Status: &processing}); err != nil {
		if errors.Is(err, task.ErrConflictingState) {
			slog.InfoContext(ctx, "lost claim race, dropping event", "task_id", t.ID)
			return false, nil
		}
		slog.ErrorContext(ctx, "claim failed", "task_id", t.ID, "error", err)
		return false, err
	}
	return true, nil
}

// process decodes, chunks, embeds and indexes the document, returning the
// number of vectors written. Vectors only become visible to retrieval once
// the task is marked completed; any error here leaves no partial writes
// behind because fail() purges them.
func (h *Consumer) process(ctx context.Context, event task.TaskSubmittedEvent) (int, error) {
	raw, err := base64.StdEncoding.DecodeString(event.FileContent)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid base64 content: %v", errPermanent, err)
	}
	if !utf8.Valid(raw) {
		return 0, fmt.Errorf("%w: content is not valid UTF-8", errPermanent)
	}

	text := string(raw)
	chunks := h.chunker.Chunk(text)
	if len(chunks) == 0 {
		return 0, fmt.Errorf("%w: document produced no chunks", errPermanent)
	}

	vectors := make([]Chunk, 0, len(chunks))
	for i, content := range chunks {
		vec, err := h.embed(ctx, content)
		if err != nil {
			return 0, fmt.Errorf("embedding chunk %d: %w", i, err)
		}
		vectors = append(vectors, Chunk{
			TaskID:  event.TaskID,
			ChunkID: i,
			Content: content,
			Vector:  vec,
		})
	}

	if err := h.store.StoreChunks(ctx, vectors); err != nil {
		return 0, fmt.Errorf("indexing vectors: %w", err)
	}

	return len(vectors), nil
}

func (h *Consumer) embed(ctx context.Context, text string) ([]float32, error) {
	embedCtx, cancel := context.WithTimeout(ctx, h.embedTimeout)
	defer cancel()
	return h.embedder.Embed(embedCtx, text)
}

// fail handles a processing error. Partial vector writes are purged first so
// a failed task never has indexed chunks. Permanent errors and exhausted
// retries mark the task failed and acknowledge; transient errors requeue.
func (h *Consumer) fail(ctx context.Context, taskID int64, attempts uint16, procErr error) error {
	if err := h.store.DeleteChunksByTask(ctx, taskID); err != nil {
		slog.ErrorContext(ctx, "failed to purge partial vectors", "task_id", taskID, "error", err)
		return err
	}

	permanent := errors.Is(procErr, errPermanent)
	exhausted := attempts >= h.maxAttempts

	if !permanent && !exhausted {
		slog.WarnContext(ctx, "transient failure, requeueing", "task_id", taskID, "attempt", attempts, "error", procErr)
		return procErr
	}

	msg := procErr.Error()
	if !permanent {
		msg = fmt.Sprintf("retries exhausted after %d attempts: %s", attempts, msg)
	}

	failed := task.StatusFailed
	if _, err := h.tasks.Update(ctx, taskID, task.Patch{Status: &failed, ErrorMessage: &msg}); err != nil {
		slog.ErrorContext(ctx, "failed to mark task failed", "task_id", taskID, "error", err)
		return err
	}

	slog.ErrorContext(ctx, "task failed", "task_id", taskID, "error", procErr)
	return nil
}
