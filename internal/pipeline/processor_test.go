package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johnpham4/legal-rag-llm/internal/model"
	"github.com/johnpham4/legal-rag-llm/internal/rag/ragtest"
	"github.com/johnpham4/legal-rag-llm/internal/repository"
	"github.com/johnpham4/legal-rag-llm/pkg/sparse"
	"github.com/johnpham4/legal-rag-llm/pkg/tasks"
)

type captureStore struct {
	repository.VectorStore
	upserted []model.EmbeddedChunk
	err      error
}

func (s *captureStore) Upsert(_ context.Context, chunks []model.EmbeddedChunk) error {
	if s.err != nil {
		return s.err
	}
	s.upserted = append(s.upserted, chunks...)
	return nil
}

type captureRepo struct {
	repository.ChunkRepository
	saved   []model.Chunk
	version string
	err     error
}

func (r *captureRepo) Upsert(_ context.Context, chunks []model.Chunk, modelVersion string) error {
	if r.err != nil {
		return r.err
	}
	r.saved = append(r.saved, chunks...)
	r.version = modelVersion
	return nil
}

func task(chunks ...model.Chunk) tasks.ChunkIndexTask {
	return tasks.ChunkIndexTask{BatchID: "b1", Chunks: chunks}
}

func TestProcessIndexesDenseAndSparse(t *testing.T) {
	enc, err := sparse.NewEncoder("tfidf")
	require.NoError(t, err)
	require.NoError(t, enc.Fit([]string{"thuế thu nhập cá nhân", "hợp đồng lao động", "đất đai"}))

	embedder := &ragtest.Embedder{Dims: 3}
	store := &captureStore{}
	repo := &captureRepo{}
	p := NewProcessor(embedder, enc, repo, store, 2, "bi-encoder")

	err = p.Process(context.Background(), task(
		model.Chunk{ID: "c1", Content: "thuế thu nhập cá nhân", DocumentID: "d1"},
		model.Chunk{ID: "c2", Content: "hợp đồng lao động", DocumentID: "d1"},
		model.Chunk{ID: "c3", Content: "xyz", DocumentID: "d2"},
	))
	require.NoError(t, err)

	require.Len(t, store.upserted, 3)
	assert.Len(t, embedder.Texts, 3)
	assert.Len(t, store.upserted[0].Embedding, 3)
	require.NotNil(t, store.upserted[0].SparseEmbedding)
	assert.False(t, store.upserted[0].SparseEmbedding.IsEmpty())
	// 不在词表中的内容没有稀疏向量
	assert.Nil(t, store.upserted[2].SparseEmbedding)
	assert.Equal(t, model.DefaultPlatform, store.upserted[0].Platform)

	assert.Len(t, repo.saved, 3)
	assert.Equal(t, "bi-encoder", repo.version)
}

func TestProcessUnfittedEncoderWritesDenseOnly(t *testing.T) {
	enc, err := sparse.NewEncoder("bm25")
	require.NoError(t, err)
	store := &captureStore{}
	p := NewProcessor(&ragtest.Embedder{}, enc, nil, store, 0, "")

	require.NoError(t, p.Process(context.Background(), task(model.Chunk{ID: "c1", Content: "nội dung"})))
	require.Len(t, store.upserted, 1)
	assert.Nil(t, store.upserted[0].SparseEmbedding)
}

func TestProcessPrepare(t *testing.T) {
	store := &captureStore{}
	p := NewProcessor(&ragtest.Embedder{}, nil, nil, store, 10, "")

	require.NoError(t, p.Process(context.Background(), task(
		model.Chunk{Content: "  Điều 1  ", DocumentID: "d1"},
		model.Chunk{Content: "Điều 1", DocumentID: "d1"},
		model.Chunk{ID: "empty", Content: "   "},
	)))
	require.Len(t, store.upserted, 1)
	assert.Equal(t, ChunkID(model.Chunk{Content: "Điều 1", DocumentID: "d1"}), store.upserted[0].ID)
	assert.Equal(t, "Điều 1", store.upserted[0].Content)
}

func TestProcessEmptyTask(t *testing.T) {
	store := &captureStore{}
	p := NewProcessor(&ragtest.Embedder{}, nil, nil, store, 10, "")
	require.NoError(t, p.Process(context.Background(), task()))
	assert.Empty(t, store.upserted)
}

func TestProcessErrors(t *testing.T) {
	c := model.Chunk{ID: "c1", Content: "x"}

	p := NewProcessor(&ragtest.Embedder{Err: errors.New("503")}, nil, nil, &captureStore{}, 10, "")
	assert.ErrorIs(t, p.Process(context.Background(), task(c)), model.ErrCollaboratorFailure)

	p = NewProcessor(&ragtest.Embedder{}, nil, nil, &captureStore{err: errors.New("bulk")}, 10, "")
	assert.ErrorIs(t, p.Process(context.Background(), task(c)), model.ErrCollaboratorFailure)

	repo := &captureRepo{err: errors.New("mysql gone")}
	store := &captureStore{}
	p = NewProcessor(&ragtest.Embedder{}, nil, repo, store, 10, "")
	assert.Error(t, p.Process(context.Background(), task(c)))
	assert.Empty(t, store.upserted)
}

func TestChunkIDDeterministic(t *testing.T) {
	a := model.Chunk{DocumentID: "d", Content: "c"}
	assert.Equal(t, ChunkID(a), ChunkID(a))
	assert.NotEqual(t, ChunkID(a), ChunkID(model.Chunk{DocumentID: "d2", Content: "c"}))
}
