package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/johnpham4/legal-rag-llm/internal/model"
	"github.com/johnpham4/legal-rag-llm/pkg/llm"
	"github.com/johnpham4/legal-rag-llm/pkg/log"
)

// QueryExpander 通过 LLM 将一个问题改写为多个语义相近的问题。
type QueryExpander struct {
	llm  llm.Client
	mock bool
}

// NewQueryExpander 创建扩展器；mock 为 true 时不调用 LLM。
func NewQueryExpander(client llm.Client, mock bool) (*QueryExpander, error) {
	if client == nil && !mock {
		return nil, fmt.Errorf("%w: query expander needs an llm client", model.ErrNilDependency)
	}
	return &QueryExpander{llm: client, mock: mock}, nil
}

// Expand 返回以原问题开头、最多 n 个问题的列表。改写均保留原问题的 ID 与元数据。
func (e *QueryExpander) Expand(ctx context.Context, q model.Query, n int) ([]model.Query, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: expand_to_n must be positive, got %d", model.ErrInvalidArgument, n)
	}
	if e.mock {
		out := make([]model.Query, n)
		for i := range out {
			out[i] = q
		}
		return out, nil
	}
	if n == 1 {
		return []model.Query{q}, nil
	}

	resp, err := e.llm.Generate(ctx, ExpansionPrompt(q.Content, n-1), 0)
	if err != nil {
		log.Warnf("[QueryExpander] 查询扩展失败，仅使用原问题: %v", fmt.Errorf("%w: %v", model.ErrCollaboratorFailure, err))
		return []model.Query{q}, nil
	}

	out := []model.Query{q}
	for _, part := range strings.Split(strings.TrimSpace(resp), ExpansionSeparator) {
		if len(out) == n {
			break
		}
		if content := strings.TrimSpace(part); content != "" {
			out = append(out, q.ReplaceContent(content))
		}
	}
	log.Debugf("[QueryExpander] 扩展出 %d 个问题", len(out))
	return out, nil
}
