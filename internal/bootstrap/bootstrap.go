// Package bootstrap 按配置组装检索链路，供 server 与 legalctl 共用。
package bootstrap

import (
	"context"
	"fmt"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/go-redis/redis/v8"

	"github.com/johnpham4/legal-rag-llm/internal/config"
	"github.com/johnpham4/legal-rag-llm/internal/rag"
	"github.com/johnpham4/legal-rag-llm/internal/repository"
	"github.com/johnpham4/legal-rag-llm/internal/service"
	"github.com/johnpham4/legal-rag-llm/pkg/crossencoder"
	"github.com/johnpham4/legal-rag-llm/pkg/embedding"
	"github.com/johnpham4/legal-rag-llm/pkg/llm"
	"github.com/johnpham4/legal-rag-llm/pkg/log"
	"github.com/johnpham4/legal-rag-llm/pkg/sparse"
)

// SearchStack 是组装好的检索链路及其依赖。
type SearchStack struct {
	Store    repository.VectorStore
	Embedder embedding.Client
	// LLM 在 mock 模式下为 nil。
	LLM     llm.Client
	Encoder sparse.Encoder
	Search  service.SearchService
}

// Close 释放检索链路持有的 worker pool。
func (s *SearchStack) Close() {
	if s.Search != nil {
		s.Search.Close()
	}
}

// NewEncoder 按配置创建未训练的稀疏编码器。
func NewEncoder(cfg config.SparseConfig) (sparse.Encoder, error) {
	return sparse.NewEncoder(cfg.Algorithm,
		sparse.WithMaxTerms(cfg.MaxTerms),
		sparse.WithK1(cfg.K1),
		sparse.WithB(cfg.B),
	)
}

// SparseModelRepository 返回配置对应的模型仓库，objects 可以为 nil。
func SparseModelRepository(cfg config.SparseConfig, objects repository.ObjectStore) repository.SparseModelRepository {
	return repository.NewSparseModelRepository(cfg.SparseModelFile(), cfg.SparseObjectName(), objects)
}

// LoadEncoder 创建编码器并加载已训练的模型；加载失败作为初始化错误返回。
func LoadEncoder(ctx context.Context, cfg config.SparseConfig, objects repository.ObjectStore) (sparse.Encoder, error) {
	enc, err := NewEncoder(cfg)
	if err != nil {
		return nil, err
	}
	if err := SparseModelRepository(cfg, objects).Load(ctx, enc); err != nil {
		return nil, fmt.Errorf("load sparse model: %w", err)
	}
	return enc, nil
}

// NewSearchStack 组装检索链路。use_sparse 开启时必须能加载稀疏模型；rdb 非 nil 时启用 LLM 缓存。
func NewSearchStack(ctx context.Context, cfg config.Config, esClient *elasticsearch.Client, rdb *redis.Client, objects repository.ObjectStore) (*SearchStack, error) {
	embedder, err := embedding.NewClient(cfg.Embedding)
	if err != nil {
		return nil, err
	}
	stack := &SearchStack{
		Store:    repository.NewVectorStore(esClient, cfg.Elasticsearch.IndexName),
		Embedder: embedder,
	}

	mock := cfg.Retrieval.Mock
	var scorer crossencoder.Scorer
	if !mock {
		client, err := llm.NewClient(cfg.LLM)
		if err != nil {
			return nil, err
		}
		stack.LLM = llm.NewCachedClient(client, rdb, cfg.LLM.CacheTTL)
		scorer = crossencoder.NewClient(cfg.CrossEncoder)
	} else {
		log.Warnf("[Bootstrap] retrieval.mock 已开启，跳过 LLM 与重排序调用")
	}

	if cfg.Retrieval.UseSparse {
		stack.Encoder, err = LoadEncoder(ctx, cfg.Sparse, objects)
		if err != nil {
			return nil, err
		}
	}

	extractor, err := rag.NewMetadataExtractor(stack.LLM, mock)
	if err != nil {
		return nil, err
	}
	expander, err := rag.NewQueryExpander(stack.LLM, mock)
	if err != nil {
		return nil, err
	}
	reranker, err := rag.NewReranker(scorer, mock)
	if err != nil {
		return nil, err
	}

	stack.Search, err = service.NewSearchService(service.SearchDependencies{
		Embedder:      embedder,
		Store:         stack.Store,
		Extractor:     extractor,
		Expander:      expander,
		Reranker:      reranker,
		Encoder:       stack.Encoder,
		PoolSize:      cfg.Retrieval.WorkerPoolSize,
		BranchTimeout: cfg.Retrieval.BranchTimeout,
	})
	if err != nil {
		return nil, err
	}
	return stack, nil
}
