package worker

import (
	"context"

	"ragline/features/task"
)

// Chunk is one embedded span of a task's document, keyed by (TaskID, ChunkID).
type Chunk struct {
	TaskID  int64
	ChunkID int
	Content string
	Vector  []float32
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type VectorStore interface {
	StoreChunks(ctx context.Context, chunks []Chunk) error
	DeleteChunksByTask(ctx context.Context, taskID int64) error
}

// TaskStore is the slice of the task repository the consumer needs. Every
// state decision is re-derived from the store on each delivery; the consumer
// keeps no state of its own across messages.
type TaskStore interface {
	Get(ctx context.Context, id int64) (*task.Task, error)
	Update(ctx context.Context, id int64, patch task.Patch) (*task.Task, error)
}

type Chunker interface {
	Chunk(text string) []string
}
