// Package embedding provides a client for dense embedding models served behind
// an OpenAI-compatible API.
package embedding

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/johnpham4/legal-rag-llm/internal/config"
	"github.com/johnpham4/legal-rag-llm/pkg/log"
)

// Client defines the interface for an embedding client.
type Client interface {
	// Embed returns one vector per input text, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

type langchainClient struct {
	embedder embeddings.Embedder
	model    string
}

// NewClient creates an embedding client from config.
func NewClient(cfg config.EmbeddingConfig) (Client, error) {
	token := cfg.APIKey
	if token == "" {
		// local OpenAI-compatible servers usually ignore the token
		token = "none"
	}
	llm, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithToken(token),
		openai.WithEmbeddingModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("create openai embedding client: %w", err)
	}

	opts := []embeddings.Option{embeddings.WithStripNewLines(true)}
	if cfg.BatchSize > 0 {
		opts = append(opts, embeddings.WithBatchSize(cfg.BatchSize))
	}
	embedder, err := embeddings.NewEmbedder(llm, opts...)
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}
	return &langchainClient{embedder: embedder, model: cfg.Model}, nil
}

// Embed calls the embedding API for a batch of texts.
func (c *langchainClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	log.Debugf("[EmbeddingClient] 开始调用 Embedding API, model: %s, batch: %d", c.model, len(texts))

	vectors, err := c.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		log.Errorf("[EmbeddingClient] 调用 Embedding API 失败, error: %v", err)
		return nil, fmt.Errorf("failed to call embedding api: %w", err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embedding api returned %d vectors for %d texts", len(vectors), len(texts))
	}
	for i, v := range vectors {
		if len(v) == 0 {
			log.Warnf("[EmbeddingClient] Embedding API 返回了空的向量数据, index: %d", i)
			return nil, fmt.Errorf("received empty embedding for text %d", i)
		}
	}
	return vectors, nil
}
