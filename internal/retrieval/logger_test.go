package retrieval_test

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"ragline/internal/retrieval"
)

func TestQueryLogger_Log(t *testing.T) {
	var buf bytes.Buffer
	l := retrieval.NewQueryLogger(&buf)

	l.Log(retrieval.QueryLogEntry{
		Query:      "how do I deploy",
		NumResults: 3,
		Duration:   42 * time.Millisecond,
	})

	var entry retrieval.QueryLogEntry
	assert.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "how do I deploy", entry.Query)
	assert.Equal(t, 3, entry.NumResults)
	assert.Equal(t, int64(42), entry.LatencyMs)
	assert.False(t, entry.Timestamp.IsZero())
}

func TestQueryLogger_OneLinePerQuery(t *testing.T) {
	var buf bytes.Buffer
	l := retrieval.NewQueryLogger(&buf)

	l.Log(retrieval.QueryLogEntry{Query: "first"})
	l.Log(retrieval.QueryLogEntry{Query: "second"})

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	assert.Len(t, lines, 2)
}

func TestNewFileQueryLogger(t *testing.T) {
	path := t.TempDir() + "/logs/query.log"

	l, err := retrieval.NewFileQueryLogger(path)
	assert.NoError(t, err)
	l.Log(retrieval.QueryLogEntry{Query: "persisted"})

	assert.FileExists(t, path)
}
