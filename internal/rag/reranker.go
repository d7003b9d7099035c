package rag

import (
	"context"
	"fmt"
	"sort"

	"github.com/johnpham4/legal-rag-llm/internal/model"
	"github.com/johnpham4/legal-rag-llm/pkg/crossencoder"
)

// Reranker 使用 cross-encoder 对候选片段重新打分排序。
type Reranker struct {
	scorer crossencoder.Scorer
	mock   bool
}

// NewReranker 创建重排序器；mock 为 true 时原样返回输入。
func NewReranker(scorer crossencoder.Scorer, mock bool) (*Reranker, error) {
	if scorer == nil && !mock {
		return nil, fmt.Errorf("%w: reranker needs a scorer", model.ErrNilDependency)
	}
	return &Reranker{scorer: scorer, mock: mock}, nil
}

// Rerank 按得分降序（同分保持输入顺序）返回前 topK 个片段。
func (r *Reranker) Rerank(ctx context.Context, q model.Query, chunks []model.EmbeddedChunk, topK int) ([]model.EmbeddedChunk, error) {
	if r.mock {
		return chunks, nil
	}
	if len(chunks) == 0 {
		return []model.EmbeddedChunk{}, nil
	}

	pairs := make([]crossencoder.Pair, len(chunks))
	for i, c := range chunks {
		pairs[i] = crossencoder.Pair{Query: q.Content, Passage: c.Content}
	}
	scores, err := r.scorer.Score(ctx, pairs)
	if err != nil {
		return nil, fmt.Errorf("%w: cross-encoder score: %v", model.ErrCollaboratorFailure, err)
	}
	if len(scores) != len(chunks) {
		return nil, fmt.Errorf("%w: cross-encoder returned %d scores for %d chunks", model.ErrCollaboratorFailure, len(scores), len(chunks))
	}

	order := make([]int, len(chunks))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	if topK < 0 {
		topK = 0
	}
	if topK > len(order) {
		topK = len(order)
	}
	out := make([]model.EmbeddedChunk, topK)
	for i := 0; i < topK; i++ {
		out[i] = chunks[order[i]]
	}
	return out, nil
}
