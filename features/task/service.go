package task

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"ragline/internal/config"
	"ragline/internal/middleware"
)

type EventPublisher interface {
	Publish(topic string, body []byte) error
}

// ChunkStore is the slice of the vector index the task feature needs:
// deleting a task must also purge its vectors.
type ChunkStore interface {
	DeleteChunksByTask(ctx context.Context, taskID int64) error
}

type Service struct {
	repo       Repository
	pub        EventPublisher
	chunkStore ChunkStore
}

func NewService(repo Repository, pub EventPublisher, chunkStore ChunkStore) *Service {
	return &Service{repo: repo, pub: pub, chunkStore: chunkStore}
}

// Submit persists a pending task, then publishes a submission event carrying
// the task reference and content. The insert is the durability point: if it
// fails nothing is published and the caller sees the error. If the publish
// fails after the insert, the task is left pending and the error is returned
// so the caller can resubmit; an external sweep may also republish stale
// pending tasks. This is the at-least-once boundary of the pipeline.
func (s *Service) Submit(ctx context.Context, fileName, fileContent string) (*Task, error) {
	t, err := s.repo.Create(ctx, fileName)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(TaskSubmittedEvent{
		TaskID:        t.ID,
		FileName:      t.FileName,
		FileContent:   fileContent,
		CorrelationID: middleware.GetCorrelationID(ctx),
	})
	if err != nil {
		return nil, err
	}

	if err := s.pub.Publish(config.TopicTaskSubmitted, payload); err != nil {
		slog.ErrorContext(ctx, "failed to publish task event, task left pending", "task_id", t.ID, "error", err)
		return nil, fmt.Errorf("task %d persisted but not published: %w", t.ID, err)
	}
	slog.InfoContext(ctx, "published task event", "task_id", t.ID, "file_name", t.FileName)

	return t, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*Task, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, status *Status, limit, offset int) ([]Task, error) {
	return s.repo.List(ctx, status, limit, offset)
}

func (s *Service) Update(ctx context.Context, id int64, patch Patch) (*Task, error) {
	return s.repo.Update(ctx, id, patch)
}

// Delete removes a task and its vectors in two phases: the vector purge runs
// first, and only when it succeeds is the row removed. A failed purge leaves
// the row in place so no vector can outlive its task record.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return err
	}

	if err := s.chunkStore.DeleteChunksByTask(ctx, id); err != nil {
		slog.ErrorContext(ctx, "vector purge failed, keeping task row", "task_id", id, "error", err)
		return fmt.Errorf("failed to purge vectors for task %d: %w", id, err)
	}

	return s.repo.Delete(ctx, id)
}

func (s *Service) CountByStatus(ctx context.Context) (map[Status]int, error) {
	return s.repo.CountByStatus(ctx)
}
