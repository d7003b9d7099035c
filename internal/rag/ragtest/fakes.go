// Package ragtest 提供检索链路测试中共用的外部依赖替身。
package ragtest

import (
	"context"
	"hash/fnv"
	"sync"

	"github.com/johnpham4/legal-rag-llm/pkg/crossencoder"
)

// LLM 按顺序返回预置的响应，记录收到的提示词。
type LLM struct {
	mu        sync.Mutex
	Responses []string
	Err       error
	Prompts   []string
}

func (f *LLM) Generate(_ context.Context, prompt string, _ float64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Prompts = append(f.Prompts, prompt)
	if f.Err != nil {
		return "", f.Err
	}
	if len(f.Responses) == 0 {
		return "", nil
	}
	resp := f.Responses[0]
	if len(f.Responses) > 1 {
		f.Responses = f.Responses[1:]
	}
	return resp, nil
}

// Calls 返回 Generate 被调用的次数。
func (f *LLM) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Prompts)
}

// Scorer 用 ScoreFn 为每个 (query, passage) 打分。
type Scorer struct {
	ScoreFn func(p crossencoder.Pair) float64
	Err     error
	// Short 为 true 时少返回一个分数。
	Short bool
}

func (s *Scorer) Score(_ context.Context, pairs []crossencoder.Pair) ([]float64, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	out := make([]float64, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, s.ScoreFn(p))
	}
	if s.Short && len(out) > 0 {
		out = out[:len(out)-1]
	}
	return out, nil
}

// Embedder 根据文本哈希生成确定性的向量。
type Embedder struct {
	mu    sync.Mutex
	Dims  int
	Err   error
	Texts []string
}

func (e *Embedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.Texts = append(e.Texts, texts...)
	e.mu.Unlock()
	if e.Err != nil {
		return nil, e.Err
	}
	dims := e.Dims
	if dims <= 0 {
		dims = 4
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		h := fnv.New32a()
		_, _ = h.Write([]byte(t))
		seed := h.Sum32()
		vec := make([]float32, dims)
		for d := range vec {
			vec[d] = float32((seed>>(uint(d)%32))&0xff) / 255
		}
		out[i] = vec
	}
	return out, nil
}
