package retrieval

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"ragline/features/task"
)

// Hit is one ranked search result. Score is the raw cosine-derived score in
// [0, 1]; thresholding is the caller's decision, the engine never coerces or
// cuts off low scores.
type Hit struct {
	TaskID   int64   `json:"task_id"`
	ChunkID  int     `json:"chunk_id"`
	FileName string  `json:"file_name,omitempty"`
	Content  string  `json:"content_snippet,omitempty"`
	Score    float32 `json:"score"`
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type VectorStore interface {
	Search(ctx context.Context, queryVector []float32, limit int) ([]Hit, error)
}

type TaskStore interface {
	Get(ctx context.Context, id int64) (*task.Task, error)
}

type Generator interface {
	Generate(ctx context.Context, query string, contexts []string) (string, error)
}

type Service struct {
	embedder Embedder
	store    VectorStore
	tasks    TaskStore
	gen      Generator
	logger   *QueryLogger
}

func NewService(e Embedder, s VectorStore, t TaskStore, g Generator, l *QueryLogger) *Service {
	return &Service{embedder: e, store: s, tasks: t, gen: g, logger: l}
}

const defaultLimit = 5

// overfetchFactor widens the index query so hits dropped by the
// completed-task join still leave enough candidates to fill the limit.
const overfetchFactor = 2

// Search embeds the query with the ingestion embedder, ranks the nearest
// chunks, and joins each hit back to its task: only chunks whose task is
// completed are returned, which guards against the partial-write window
// between indexing and the completed transition. An empty result is valid.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]Hit, error) {
	start := time.Now()

	if limit <= 0 {
		limit = defaultLimit
	}

	queryVector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	hits, err := s.store.Search(ctx, queryVector, limit*overfetchFactor)
	if err != nil {
		return nil, err
	}

	// Join to the task store and cache per task; one task owns many chunks.
	statuses := make(map[int64]*task.Task)
	results := make([]Hit, 0, len(hits))
	for _, hit := range hits {
		t, seen := statuses[hit.TaskID]
		if !seen {
			t, err = s.tasks.Get(ctx, hit.TaskID)
			if err != nil && !errors.Is(err, task.ErrNotFound) {
				return nil, err
			}
			statuses[hit.TaskID] = t
		}
		if t == nil || t.Status != task.StatusCompleted {
			slog.DebugContext(ctx, "dropping hit for non-completed task", "task_id", hit.TaskID)
			continue
		}
		hit.FileName = t.FileName
		results = append(results, hit)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > limit {
		results = results[:limit]
	}

	if s.logger != nil {
		s.logger.Log(QueryLogEntry{
			Query:      query,
			NumResults: len(results),
			Duration:   time.Since(start),
		})
	}

	return results, nil
}

// Answer retrieves the top chunks for the query and feeds them as context to
// the generative model.
func (s *Service) Answer(ctx context.Context, query string) (string, []Hit, error) {
	hits, err := s.Search(ctx, query, defaultLimit)
	if err != nil {
		return "", nil, err
	}
	if len(hits) == 0 {
		return "No indexed content matched the query.", hits, nil
	}

	contexts := make([]string, len(hits))
	for i, hit := range hits {
		contexts[i] = hit.Content
	}

	answer, err := s.gen.Generate(ctx, query, contexts)
	if err != nil {
		return "", nil, err
	}
	return answer, hits, nil
}
