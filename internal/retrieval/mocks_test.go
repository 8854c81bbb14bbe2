package retrieval_test

import (
	"context"

	"github.com/stretchr/testify/mock"
	"ragline/features/task"
	"ragline/internal/retrieval"
)

type MockEmbedder struct{ mock.Mock }

func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

type MockVectorStore struct{ mock.Mock }

func (m *MockVectorStore) Search(ctx context.Context, queryVector []float32, limit int) ([]retrieval.Hit, error) {
	args := m.Called(ctx, queryVector, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]retrieval.Hit), args.Error(1)
}

type MockTaskStore struct{ mock.Mock }

func (m *MockTaskStore) Get(ctx context.Context, id int64) (*task.Task, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*task.Task), args.Error(1)
}

type MockGenerator struct{ mock.Mock }

func (m *MockGenerator) Generate(ctx context.Context, query string, contexts []string) (string, error) {
	args := m.Called(ctx, query, contexts)
	return args.String(0), args.Error(1)
}
