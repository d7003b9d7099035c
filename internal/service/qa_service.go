package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/johnpham4/legal-rag-llm/internal/model"
	"github.com/johnpham4/legal-rag-llm/internal/rag"
	"github.com/johnpham4/legal-rag-llm/pkg/llm"
	"github.com/johnpham4/legal-rag-llm/pkg/log"
)

const (
	DefaultAnswerK           = 3
	MaxAnswerK               = 10
	DefaultAnswerTemperature = 0.3
	maxTemperature           = 2.0
)

// QAService 基于检索结果调用 LLM 生成答案。
type QAService interface {
	Answer(ctx context.Context, queryText string, k int, temperature float64) (*model.AnswerDTO, error)
}

type qaService struct {
	search    SearchService
	llm       llm.Client
	expandToN int
	useSparse bool
}

// NewQAService 创建一个新的 QAService 实例。
func NewQAService(search SearchService, client llm.Client, expandToN int, useSparse bool) (QAService, error) {
	if search == nil || client == nil {
		return nil, fmt.Errorf("%w: qa service needs a search service and an llm client", model.ErrNilDependency)
	}
	if expandToN <= 0 {
		expandToN = 3
	}
	return &qaService{search: search, llm: client, expandToN: expandToN, useSparse: useSparse}, nil
}

func (s *qaService) Answer(ctx context.Context, queryText string, k int, temperature float64) (*model.AnswerDTO, error) {
	if k < MinK || k > MaxAnswerK {
		return nil, fmt.Errorf("%w: k must be between %d and %d, got %d", model.ErrInvalidArgument, MinK, MaxAnswerK, k)
	}
	if temperature < 0 || temperature > maxTemperature {
		return nil, fmt.Errorf("%w: temperature must be between 0 and %.1f", model.ErrInvalidArgument, maxTemperature)
	}
	question := strings.TrimSpace(queryText)

	chunks, err := s.search.Search(ctx, question, k, s.expandToN, s.useSparse)
	if err != nil {
		return nil, err
	}

	prompt := rag.AnswerPrompt(question, rag.FormatContext(chunks))
	answer, err := s.llm.Generate(ctx, prompt, temperature)
	if err != nil {
		log.Errorf("[QAService] 生成答案失败: %v", err)
		return nil, fmt.Errorf("%w: generate answer: %v", model.ErrCollaboratorFailure, err)
	}

	sources := make([]model.SourceDTO, 0, len(chunks))
	for _, c := range chunks {
		sources = append(sources, model.NewSourceDTO(c))
	}
	log.Infof("[QAService] 答案生成完成, query: '%s', sources: %d", question, len(sources))

	return &model.AnswerDTO{
		Query:   question,
		Answer:  answer,
		Sources: sources,
		Metadata: map[string]interface{}{
			"query":       question,
			"k":           k,
			"temperature": temperature,
		},
		GeneratedAt: model.Now(),
	}, nil
}
