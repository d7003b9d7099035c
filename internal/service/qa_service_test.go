package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johnpham4/legal-rag-llm/internal/model"
	"github.com/johnpham4/legal-rag-llm/internal/rag/ragtest"
)

// stubSearch 返回固定结果并记录参数。
type stubSearch struct {
	SearchService
	result    []model.EmbeddedChunk
	err       error
	gotK      int
	gotExpand int
	gotSparse bool
}

func (s *stubSearch) Search(_ context.Context, _ string, k, expandToN int, useSparse bool) ([]model.EmbeddedChunk, error) {
	s.gotK, s.gotExpand, s.gotSparse = k, expandToN, useSparse
	return s.result, s.err
}

func TestAnswer(t *testing.T) {
	long := strings.Repeat("a", 300)
	search := &stubSearch{result: []model.EmbeddedChunk{
		{Chunk: model.Chunk{ID: "1", DocumentID: "d1", DocumentType: "Luật", Field: "Lao động", DocumentNumber: "45/2019/QH14", Content: long}},
	}}
	llm := &ragtest.LLM{Responses: []string{"Người lao động làm việc không quá 8 giờ trong 01 ngày."}}
	qa, err := NewQAService(search, llm, 3, true)
	require.NoError(t, err)

	ans, err := qa.Answer(context.Background(), " Thời giờ làm việc? ", 3, 0.3)
	require.NoError(t, err)

	assert.Equal(t, 3, search.gotK)
	assert.Equal(t, 3, search.gotExpand)
	assert.True(t, search.gotSparse)

	assert.Equal(t, "Thời giờ làm việc?", ans.Query)
	assert.Equal(t, "Người lao động làm việc không quá 8 giờ trong 01 ngày.", ans.Answer)
	require.Len(t, ans.Sources, 1)
	assert.Equal(t, "45/2019/QH14", ans.Sources[0].DocumentNumber)
	assert.Len(t, ans.Sources[0].ContentPreview, model.PreviewRunes)
	assert.Equal(t, map[string]interface{}{"query": "Thời giờ làm việc?", "k": 3, "temperature": 0.3}, ans.Metadata)

	require.Len(t, llm.Prompts, 1)
	assert.Contains(t, llm.Prompts[0], "Chunk 1:\nPlatform: thuvienphapluat.vn\nType: Luật")
	assert.Contains(t, llm.Prompts[0], "Câu hỏi: Thời giờ làm việc?")
}

func TestAnswerValidation(t *testing.T) {
	qa, err := NewQAService(&stubSearch{}, &ragtest.LLM{}, 0, false)
	require.NoError(t, err)

	_, err = qa.Answer(context.Background(), "q", 11, 0.3)
	assert.ErrorIs(t, err, model.ErrInvalidArgument)
	_, err = qa.Answer(context.Background(), "q", 2, 0.3)
	assert.ErrorIs(t, err, model.ErrInvalidArgument)
	_, err = qa.Answer(context.Background(), "q", 3, -1)
	assert.ErrorIs(t, err, model.ErrInvalidArgument)

	_, err = NewQAService(nil, &ragtest.LLM{}, 3, true)
	assert.ErrorIs(t, err, model.ErrNilDependency)
}

func TestAnswerErrors(t *testing.T) {
	qa, _ := NewQAService(&stubSearch{err: model.ErrCollaboratorFailure}, &ragtest.LLM{}, 3, true)
	_, err := qa.Answer(context.Background(), "q", 3, 0.3)
	assert.ErrorIs(t, err, model.ErrCollaboratorFailure)

	qa, _ = NewQAService(&stubSearch{}, &ragtest.LLM{Err: errors.New("quota")}, 3, true)
	_, err = qa.Answer(context.Background(), "q", 3, 0.3)
	assert.ErrorIs(t, err, model.ErrCollaboratorFailure)
}
