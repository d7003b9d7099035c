// Package llm provides a client for interacting with Large Language Models.
package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/johnpham4/legal-rag-llm/internal/config"
	"github.com/johnpham4/legal-rag-llm/pkg/log"
)

// Client generates a completion for a single prompt.
type Client interface {
	Generate(ctx context.Context, prompt string, temperature float64) (string, error)
}

type openAIClient struct {
	model llms.Model
	name  string
}

// NewClient creates an OpenAI-compatible chat client from config.
func NewClient(cfg config.LLMConfig) (Client, error) {
	opts := []openai.Option{
		openai.WithToken(cfg.APIKey),
		openai.WithModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	m, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create openai chat client: %w", err)
	}
	return &openAIClient{model: m, name: cfg.Model}, nil
}

// Generate sends prompt as a single user message and returns the trimmed reply.
func (c *openAIClient) Generate(ctx context.Context, prompt string, temperature float64) (string, error) {
	log.Debugf("[LLMClient] 开始调用 LLM, model: %s, prompt_len: %d, temperature: %.2f", c.name, len(prompt), temperature)
	out, err := llms.GenerateFromSinglePrompt(ctx, c.model, prompt, llms.WithTemperature(temperature))
	if err != nil {
		log.Errorf("[LLMClient] 调用 LLM 失败, error: %v", err)
		return "", fmt.Errorf("failed to call llm: %w", err)
	}
	return strings.TrimSpace(out), nil
}
