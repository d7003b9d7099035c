// Package service 提供了检索与问答相关的业务逻辑。
package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/johnpham4/legal-rag-llm/internal/model"
	"github.com/johnpham4/legal-rag-llm/internal/rag"
	"github.com/johnpham4/legal-rag-llm/internal/repository"
	"github.com/johnpham4/legal-rag-llm/pkg/embedding"
	"github.com/johnpham4/legal-rag-llm/pkg/log"
	"github.com/johnpham4/legal-rag-llm/pkg/metrics"
	"github.com/johnpham4/legal-rag-llm/pkg/sparse"
)

// MinK 是 Search 接受的最小 k，每个分支取 k/3 条结果。
const MinK = 3

const defaultPoolSize = 16

// SearchService 接口定义了检索编排操作。
type SearchService interface {
	// Search 执行自查询 → 查询扩展 → 并发分支检索 → 去重 → 重排序，返回最多 k 个片段。
	Search(ctx context.Context, queryText string, k, expandToN int, useSparse bool) ([]model.EmbeddedChunk, error)
	// Rerank 对调用方给出的片段单独执行重排序。
	Rerank(ctx context.Context, queryText string, chunks []model.EmbeddedChunk, keepTopK int) ([]model.EmbeddedChunk, error)
	// Close 释放内部创建的 worker pool。
	Close()
}

// SearchDependencies 汇总 SearchService 的依赖。Encoder 为 nil 时只做稠密检索；
// Pool 为 nil 时按 PoolSize 创建并在 Close 时释放。
type SearchDependencies struct {
	Embedder      embedding.Client
	Store         repository.VectorStore
	Extractor     *rag.MetadataExtractor
	Expander      *rag.QueryExpander
	Reranker      *rag.Reranker
	Encoder       sparse.Encoder
	Pool          *ants.Pool
	PoolSize      int
	BranchTimeout time.Duration
}

type searchService struct {
	embedder      embedding.Client
	store         repository.VectorStore
	extractor     *rag.MetadataExtractor
	expander      *rag.QueryExpander
	reranker      *rag.Reranker
	encoder       sparse.Encoder
	pool          *ants.Pool
	ownsPool      bool
	branchTimeout time.Duration
}

// NewSearchService 创建一个新的 SearchService 实例。配置了稀疏编码器但尚未训练时返回错误。
func NewSearchService(deps SearchDependencies) (SearchService, error) {
	switch {
	case deps.Embedder == nil:
		return nil, fmt.Errorf("%w: embedding client", model.ErrNilDependency)
	case deps.Store == nil:
		return nil, fmt.Errorf("%w: vector store", model.ErrNilDependency)
	case deps.Extractor == nil:
		return nil, fmt.Errorf("%w: metadata extractor", model.ErrNilDependency)
	case deps.Expander == nil:
		return nil, fmt.Errorf("%w: query expander", model.ErrNilDependency)
	case deps.Reranker == nil:
		return nil, fmt.Errorf("%w: reranker", model.ErrNilDependency)
	}
	if deps.Encoder != nil && !deps.Encoder.Fitted() {
		return nil, fmt.Errorf("sparse encoder (%s) must be fitted before serving: %w", deps.Encoder.Algorithm(), sparse.ErrNotFitted)
	}

	s := &searchService{
		embedder:      deps.Embedder,
		store:         deps.Store,
		extractor:     deps.Extractor,
		expander:      deps.Expander,
		reranker:      deps.Reranker,
		encoder:       deps.Encoder,
		pool:          deps.Pool,
		branchTimeout: deps.BranchTimeout,
	}
	if s.pool == nil {
		size := deps.PoolSize
		if size <= 0 {
			size = defaultPoolSize
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return nil, fmt.Errorf("failed to create worker pool: %w", err)
		}
		s.pool = pool
		s.ownsPool = true
	}
	return s, nil
}

func (s *searchService) Close() {
	if s.ownsPool {
		s.pool.Release()
	}
}

func (s *searchService) Search(ctx context.Context, queryText string, k, expandToN int, useSparse bool) (result []model.EmbeddedChunk, err error) {
	start := time.Now()
	defer func() {
		status := "ok"
		if err != nil {
			status = "error"
		}
		metrics.SearchDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())
	}()

	if k < MinK {
		return nil, fmt.Errorf("%w: k must be at least %d, got %d", model.ErrInvalidArgument, MinK, k)
	}
	if expandToN <= 0 {
		return nil, fmt.Errorf("%w: expand_to_n must be positive, got %d", model.ErrInvalidArgument, expandToN)
	}
	query := model.NewQuery(queryText)
	if query.Content == "" {
		return nil, fmt.Errorf("%w: empty query", model.ErrInvalidArgument)
	}
	log.Infof("[SearchService] 开始检索, query: '%s', k: %d, expand_to_n: %d, use_sparse: %t", query.Content, k, expandToN, useSparse)

	extracted := s.extractor.Extract(ctx, query)
	query = extracted.Query
	log.Infof("[SearchService] 元数据抽取结果: %s, metadata: %v", extracted.Outcome, query.Metadata)

	variants, err := s.expander.Expand(ctx, query, expandToN)
	if err != nil {
		return nil, err
	}

	branchResults, err := s.fanOut(ctx, variants, k/MinK, useSparse && s.encoder != nil)
	if err != nil {
		log.Errorf("[SearchService] 分支检索失败: %v", err)
		return nil, err
	}

	merged := dedupByID(branchResults)
	log.Infof("[SearchService] %d 个分支合并去重后共 %d 个候选片段", len(variants), len(merged))
	if len(merged) == 0 {
		return []model.EmbeddedChunk{}, nil
	}

	rerankStart := time.Now()
	reranked, err := s.reranker.Rerank(ctx, query, merged, k)
	metrics.RerankDuration.Observe(time.Since(rerankStart).Seconds())
	if err != nil {
		return nil, err
	}
	return reranked, nil
}

// fanOut 在共享 pool 上为每个问题变体提交一个分支任务。任一分支出错即取消其余分支，
// 返回第一个错误并丢弃已有结果；每个分支只写自己的槽位。
func (s *searchService) fanOut(ctx context.Context, variants []model.Query, limit int, withSparse bool) ([][]model.EmbeddedChunk, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([][]model.EmbeddedChunk, len(variants))
	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
	)
	fail := func(err error) {
		once.Do(func() {
			firstErr = err
			cancel()
		})
	}

	for i, q := range variants {
		i, q := i, q
		wg.Add(1)
		task := func() {
			defer wg.Done()
			branchCtx := ctx
			if s.branchTimeout > 0 {
				var branchCancel context.CancelFunc
				branchCtx, branchCancel = context.WithTimeout(ctx, s.branchTimeout)
				defer branchCancel()
			}
			hits, err := s.searchBranch(branchCtx, q, limit, withSparse)
			if err != nil {
				fail(err)
				return
			}
			results[i] = hits
		}
		if err := s.pool.Submit(task); err != nil {
			wg.Done()
			fail(fmt.Errorf("failed to submit branch search: %w", err))
			break
		}
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return results, nil
}

// searchBranch 对单个问题变体执行检索；带过滤条件但无结果时立即去掉过滤重试一次。
func (s *searchService) searchBranch(ctx context.Context, q model.Query, limit int, withSparse bool) ([]model.EmbeddedChunk, error) {
	eq, err := s.embedQuery(ctx, q, withSparse)
	if err != nil {
		return nil, err
	}

	filter := rag.BuildFilter(q)
	hits, err := s.query(ctx, eq, filter, limit)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 && !filter.IsEmpty() {
		metrics.FilterFallbacks.Inc()
		log.Infof("[SearchService] 过滤条件 %v 无结果，去掉过滤重试, query: '%s'", q.Metadata, q.Content)
		return s.query(ctx, eq, nil, limit)
	}
	return hits, nil
}

func (s *searchService) embedQuery(ctx context.Context, q model.Query, withSparse bool) (model.EmbeddedQuery, error) {
	vectors, err := s.embedder.Embed(ctx, []string{q.Content})
	if err != nil {
		return model.EmbeddedQuery{}, fmt.Errorf("%w: embed query: %v", model.ErrCollaboratorFailure, err)
	}
	if len(vectors) != 1 {
		return model.EmbeddedQuery{}, fmt.Errorf("%w: expected 1 embedding, got %d", model.ErrCollaboratorFailure, len(vectors))
	}

	eq := model.EmbeddedQuery{Query: q, Embedding: vectors[0]}
	if withSparse {
		vec, err := s.encoder.Encode(q.Content)
		if err != nil {
			return model.EmbeddedQuery{}, fmt.Errorf("sparse encode query: %w", err)
		}
		eq.SparseEmbedding = &vec
	}
	return eq, nil
}

func (s *searchService) query(ctx context.Context, eq model.EmbeddedQuery, filter *repository.Filter, limit int) ([]model.EmbeddedChunk, error) {
	var (
		hits []model.EmbeddedChunk
		err  error
	)
	if eq.SparseEmbedding != nil {
		metrics.BranchSearches.WithLabelValues("hybrid").Inc()
		hits, err = s.store.HybridSearch(ctx, eq.Embedding, *eq.SparseEmbedding, filter, limit)
	} else {
		metrics.BranchSearches.WithLabelValues("dense").Inc()
		hits, err = s.store.Search(ctx, eq.Embedding, filter, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: vector store: %v", model.ErrCollaboratorFailure, err)
	}
	return hits, nil
}

// dedupByID 按分支顺序合并结果，同一 ID 只保留第一次出现的片段。
func dedupByID(lists [][]model.EmbeddedChunk) []model.EmbeddedChunk {
	seen := make(map[string]struct{})
	merged := make([]model.EmbeddedChunk, 0)
	for _, list := range lists {
		for _, c := range list {
			if _, ok := seen[c.ID]; ok {
				continue
			}
			seen[c.ID] = struct{}{}
			merged = append(merged, c)
		}
	}
	return merged
}

func (s *searchService) Rerank(ctx context.Context, queryText string, chunks []model.EmbeddedChunk, keepTopK int) ([]model.EmbeddedChunk, error) {
	if strings.TrimSpace(queryText) == "" {
		return nil, fmt.Errorf("%w: empty query", model.ErrInvalidArgument)
	}
	if keepTopK <= 0 {
		return nil, fmt.Errorf("%w: keep_top_k must be positive, got %d", model.ErrInvalidArgument, keepTopK)
	}
	return s.reranker.Rerank(ctx, model.NewQuery(queryText), chunks, keepTopK)
}
