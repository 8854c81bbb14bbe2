package weaviate

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"

	"ragline/internal/retrieval"
	"ragline/internal/vector"
	"ragline/internal/worker"
)

type Store struct {
	client *weaviate.Client
}

func NewStore(client *weaviate.Client) *Store {
	return &Store{client: client}
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	return vector.EnsureSchema(ctx, vector.NewWeaviateClientAdapter(s.client))
}

// chunkID derives a deterministic object ID from (task, chunk), so a
// redelivered write replaces the same object instead of duplicating it.
func chunkID(taskID int64, chunkIndex int) string {
	name := fmt.Sprintf("task:%d:chunk:%d", taskID, chunkIndex)
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)).String()
}

func (s *Store) StoreChunks(ctx context.Context, chunks []worker.Chunk) error {
	for _, chunk := range chunks {
		_, err := s.client.Data().Creator().
			WithClassName(vector.ClassName).
			WithID(chunkID(chunk.TaskID, chunk.ChunkID)).
			WithProperties(map[string]interface{}{
				"content": chunk.Content,
				"taskId":  chunk.TaskID,
				"chunkId": chunk.ChunkID,
			}).
			WithVector(chunk.Vector).
			Do(ctx)
		if err != nil {
			return fmt.Errorf("storing chunk %d of task %d: %w", chunk.ChunkID, chunk.TaskID, err)
		}
	}
	return nil
}

func (s *Store) DeleteChunksByTask(ctx context.Context, taskID int64) error {
	_, err := s.client.Batch().ObjectsBatchDeleter().
		WithClassName(vector.ClassName).
		WithOutput("minimal").
		WithWhere(filters.Where().
			WithPath([]string{"taskId"}).
			WithOperator(filters.Equal).
			WithValueInt(taskID)).
		Do(ctx)
	return err
}

// Search runs a nearVector query and maps Weaviate certainty to the result
// score. Certainty is derived from cosine distance and lands in [0, 1], so
// ordering by it matches ordering by cosine similarity.
func (s *Store) Search(ctx context.Context, queryVector []float32, limit int) ([]retrieval.Hit, error) {
	nearVector := s.client.GraphQL().NearVectorArgBuilder().
		WithVector(queryVector)

	fields := []graphql.Field{
		{Name: "content"},
		{Name: "taskId"},
		{Name: "chunkId"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "certainty"}}},
	}

	res, err := s.client.GraphQL().Get().
		WithClassName(vector.ClassName).
		WithNearVector(nearVector).
		WithLimit(limit).
		WithFields(fields...).
		Do(ctx)
	if err != nil {
		return nil, err
	}
	if len(res.Errors) > 0 {
		return nil, fmt.Errorf("graphql error: %v", res.Errors)
	}

	var hits []retrieval.Hit
	data, ok := res.Data["Get"].(map[string]interface{})
	if !ok {
		return hits, nil
	}
	objects, ok := data[vector.ClassName].([]interface{})
	if !ok {
		return hits, nil
	}

	for _, obj := range objects {
		props, ok := obj.(map[string]interface{})
		if !ok {
			continue
		}

		var hit retrieval.Hit
		if content, ok := props["content"].(string); ok {
			hit.Content = content
		}
		if taskID, ok := props["taskId"].(float64); ok {
			hit.TaskID = int64(taskID)
		}
		if chunkIdx, ok := props["chunkId"].(float64); ok {
			hit.ChunkID = int(chunkIdx)
		}
		if additional, ok := props["_additional"].(map[string]interface{}); ok {
			if certainty, ok := additional["certainty"].(float64); ok {
				hit.Score = float32(certainty)
			}
		}
		hits = append(hits, hit)
	}

	return hits, nil
}

func (s *Store) CountChunks(ctx context.Context) (int, error) {
	res, err := s.client.GraphQL().Aggregate().
		WithClassName(vector.ClassName).
		WithFields(graphql.Field{Name: "meta", Fields: []graphql.Field{{Name: "count"}}}).
		Do(ctx)
	if err != nil {
		return 0, err
	}
	if len(res.Errors) > 0 {
		return 0, fmt.Errorf("graphql error: %v", res.Errors)
	}

	data, ok := res.Data["Aggregate"].(map[string]interface{})
	if !ok {
		return 0, nil
	}
	objects, ok := data[vector.ClassName].([]interface{})
	if !ok || len(objects) == 0 {
		return 0, nil
	}
	props, ok := objects[0].(map[string]interface{})
	if !ok {
		return 0, nil
	}
	meta, ok := props["meta"].(map[string]interface{})
	if !ok {
		return 0, nil
	}
	count, _ := meta["count"].(float64)
	return int(count), nil
}
