package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johnpham4/legal-rag-llm/internal/model"
	"github.com/johnpham4/legal-rag-llm/internal/repository"
	"github.com/johnpham4/legal-rag-llm/pkg/tasks"
)

func TestReadChunks(t *testing.T) {
	input := `{"id":"c1","content":"Điều 1. Phạm vi điều chỉnh","document_type":"Luật"}

{"id":"c2","content":"Điều 2. Đối tượng áp dụng","field":"Lao động"}
`
	var got []model.Chunk
	err := readChunks(strings.NewReader(input), func(c model.Chunk) error {
		got = append(got, c)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "c1", got[0].ID)
	assert.Equal(t, "Luật", got[0].DocumentType)
	assert.Equal(t, "Lao động", got[1].Field)
}

func TestReadChunksReportsLine(t *testing.T) {
	input := "{\"id\":\"a\"}\n{not json}\n"
	err := readChunks(strings.NewReader(input), func(model.Chunk) error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestReadChunksStopsOnCallbackError(t *testing.T) {
	stop := errors.New("stop")
	calls := 0
	err := readChunks(strings.NewReader("{}\n{}\n{}\n"), func(model.Chunk) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func writeJSONL(t *testing.T, n int) string {
	t.Helper()
	var buf bytes.Buffer
	for i := 0; i < n; i++ {
		line, err := json.Marshal(model.Chunk{Content: "Điều " + string(rune('A'+i))})
		require.NoError(t, err)
		buf.Write(line)
		buf.WriteByte('\n')
	}
	path := filepath.Join(t.TempDir(), "chunks.jsonl")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func TestPublishBatches(t *testing.T) {
	path := writeJSONL(t, 5)

	var got []tasks.ChunkIndexTask
	total, err := publishBatches(context.Background(), []string{path}, 2, func(_ context.Context, task tasks.ChunkIndexTask) error {
		got = append(got, task)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, got, 3)
	assert.Len(t, got[0].Chunks, 2)
	assert.Len(t, got[2].Chunks, 1)
	assert.Equal(t, path, got[0].Source)
	assert.NotEqual(t, got[0].BatchID, got[1].BatchID)
}

func TestPublishBatchesSinkError(t *testing.T) {
	path := writeJSONL(t, 3)
	boom := errors.New("broker down")
	total, err := publishBatches(context.Background(), []string{path}, 2, func(context.Context, tasks.ChunkIndexTask) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, total)
}

func TestPublishBatchesInvalidSize(t *testing.T) {
	_, err := publishBatches(context.Background(), nil, 0, nil)
	assert.ErrorIs(t, err, model.ErrInvalidArgument)
}

// pagedStore 按 ID 顺序分页返回预置片段。
type pagedStore struct {
	repository.VectorStore
	chunks []model.EmbeddedChunk
	err    error
}

func (s *pagedStore) Scroll(_ context.Context, limit int, cursor string) ([]model.EmbeddedChunk, string, error) {
	if s.err != nil {
		return nil, "", s.err
	}
	start := 0
	if cursor != "" {
		for i, c := range s.chunks {
			if c.ID == cursor {
				start = i + 1
			}
		}
	}
	end := start + limit
	if end > len(s.chunks) {
		end = len(s.chunks)
	}
	page := s.chunks[start:end]
	next := ""
	if len(page) == limit {
		next = page[len(page)-1].ID
	}
	return page, next, nil
}

func TestExportChunks(t *testing.T) {
	store := &pagedStore{chunks: []model.EmbeddedChunk{
		{Chunk: model.Chunk{ID: "a", Content: "một"}, Embedding: []float32{1}},
		{Chunk: model.Chunk{ID: "b", Content: "hai"}},
		{Chunk: model.Chunk{ID: "c", Content: "ba"}},
		{Chunk: model.Chunk{ID: "d", Content: "bốn"}},
	}}

	var out bytes.Buffer
	total, err := exportChunks(context.Background(), store, &out, 2)
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	assert.NotContains(t, out.String(), "embedding")

	var ids []string
	require.NoError(t, readChunks(&out, func(c model.Chunk) error {
		ids = append(ids, c.ID)
		return nil
	}))
	assert.Equal(t, []string{"a", "b", "c", "d"}, ids)
}

func TestExportChunksError(t *testing.T) {
	_, err := exportChunks(context.Background(), &pagedStore{err: errors.New("es down")}, &bytes.Buffer{}, 10)
	assert.Error(t, err)
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"train", "search", "index", "export", "token"} {
		assert.True(t, names[want], want)
	}
	assert.Error(t, searchCmd.Args(searchCmd, nil))
	assert.NoError(t, searchCmd.Args(searchCmd, []string{"mức lương tối thiểu"}))
	assert.Error(t, indexCmd.Args(indexCmd, nil))
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "ngắn", preview("ngắn", 10))
	assert.Equal(t, "đđ...", preview("đđđđ", 2))
}
