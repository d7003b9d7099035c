// Package crossencoder provides a client for a cross-encoder scoring service.
package crossencoder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/johnpham4/legal-rag-llm/internal/config"
	"github.com/johnpham4/legal-rag-llm/pkg/log"
)

// Pair is a (query, passage) input to the cross-encoder.
type Pair struct {
	Query   string
	Passage string
}

// Scorer returns one relevance score per pair, in input order.
type Scorer interface {
	Score(ctx context.Context, pairs []Pair) ([]float64, error)
}

type httpScorer struct {
	cfg    config.CrossEncoderConfig
	client *http.Client
}

// NewClient creates a scorer that calls POST {base_url}/score.
func NewClient(cfg config.CrossEncoderConfig) Scorer {
	return &httpScorer{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

type scoreRequest struct {
	Model string      `json:"model,omitempty"`
	Pairs [][2]string `json:"pairs"`
}

type scoreResponse struct {
	Scores []float64 `json:"scores"`
}

// Score calls the scoring service. The response must carry exactly one score per pair.
func (c *httpScorer) Score(ctx context.Context, pairs []Pair) ([]float64, error) {
	if len(pairs) == 0 {
		return []float64{}, nil
	}
	log.Debugf("[CrossEncoderClient] 开始调用重排序服务, model: %s, pairs: %d", c.cfg.Model, len(pairs))

	reqBody := scoreRequest{Model: c.cfg.Model, Pairs: make([][2]string, len(pairs))}
	for i, p := range pairs {
		reqBody.Pairs[i] = [2]string{p.Query, p.Passage}
	}
	reqBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal score request: %w", err)
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/score"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create score request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		log.Errorf("[CrossEncoderClient] 调用重排序服务失败, error: %v", err)
		return nil, fmt.Errorf("failed to call cross-encoder: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		log.Errorf("[CrossEncoderClient] 重排序服务返回非 200 状态码: %s, body: %s", resp.Status, string(body))
		return nil, fmt.Errorf("cross-encoder returned non-200 status: %s", resp.Status)
	}

	var scoreResp scoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&scoreResp); err != nil {
		return nil, fmt.Errorf("failed to decode score response: %w", err)
	}
	if len(scoreResp.Scores) != len(pairs) {
		return nil, fmt.Errorf("cross-encoder returned %d scores for %d pairs", len(scoreResp.Scores), len(pairs))
	}
	return scoreResp.Scores, nil
}
