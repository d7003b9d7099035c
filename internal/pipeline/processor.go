// Package pipeline 定义了片段索引的核心流程：落库、向量化、写入向量库。
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/johnpham4/legal-rag-llm/internal/model"
	"github.com/johnpham4/legal-rag-llm/internal/repository"
	"github.com/johnpham4/legal-rag-llm/pkg/embedding"
	"github.com/johnpham4/legal-rag-llm/pkg/log"
	"github.com/johnpham4/legal-rag-llm/pkg/metrics"
	"github.com/johnpham4/legal-rag-llm/pkg/sparse"
	"github.com/johnpham4/legal-rag-llm/pkg/tasks"
)

const defaultEmbedBatch = 32

// Processor 封装了片段索引的所有依赖和逻辑。
type Processor struct {
	embeddingClient embedding.Client
	encoder         sparse.Encoder
	chunkRepo       repository.ChunkRepository
	store           repository.VectorStore
	batchSize       int
	modelVersion    string
}

// NewProcessor 创建一个新的 Processor 实例。encoder 与 chunkRepo 可以为 nil：
// 前者表示不写入稀疏向量，后者表示不保存训练语料。
func NewProcessor(
	embeddingClient embedding.Client,
	encoder sparse.Encoder,
	chunkRepo repository.ChunkRepository,
	store repository.VectorStore,
	batchSize int,
	modelVersion string,
) *Processor {
	if batchSize <= 0 {
		batchSize = defaultEmbedBatch
	}
	return &Processor{
		embeddingClient: embeddingClient,
		encoder:         encoder,
		chunkRepo:       chunkRepo,
		store:           store,
		batchSize:       batchSize,
		modelVersion:    modelVersion,
	}
}

// ChunkID 为缺少 ID 的片段生成确定性的 ID，同一文件的同一内容总是得到相同的 ID。
func ChunkID(c model.Chunk) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(c.DocumentID+"\x00"+c.Content)).String()
}

// Process 是片段索引的主函数。
func (p *Processor) Process(ctx context.Context, task tasks.ChunkIndexTask) (err error) {
	defer func() {
		result := "ok"
		if err != nil {
			result = "error"
		}
		metrics.IndexTasks.WithLabelValues(result).Inc()
	}()

	chunks := prepare(task.Chunks)
	log.Infof("[Processor] 开始处理索引任务, batch: %s, 有效片段: %d/%d", task.BatchID, len(chunks), len(task.Chunks))
	if len(chunks) == 0 {
		log.Warnf("[Processor] 任务 %s 没有有效片段, 跳过", task.BatchID)
		return nil
	}

	// 1. 保存片段原文，作为稀疏模型的训练语料
	if p.chunkRepo != nil {
		if err := p.chunkRepo.Upsert(ctx, chunks, p.modelVersion); err != nil {
			log.Errorf("[Processor] 步骤1: 保存片段到数据库失败, Error: %v", err)
			return fmt.Errorf("保存片段失败: %w", err)
		}
		log.Infof("[Processor] 步骤1: 成功保存 %d 个片段到数据库", len(chunks))
	}

	// 2. 分批向量化
	embedded := make([]model.EmbeddedChunk, 0, len(chunks))
	for start := 0; start < len(chunks); start += p.batchSize {
		end := start + p.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch, err := p.embedBatch(ctx, chunks[start:end])
		if err != nil {
			log.Errorf("[Processor] 步骤2: 向量化失败, 片段 %d-%d, Error: %v", start, end, err)
			return err
		}
		embedded = append(embedded, batch...)
	}
	log.Infof("[Processor] 步骤2: 成功向量化 %d 个片段", len(embedded))

	// 3. 写入向量库
	if err := p.store.Upsert(ctx, embedded); err != nil {
		log.Errorf("[Processor] 步骤3: 写入向量库失败, Error: %v", err)
		return fmt.Errorf("%w: vector store upsert: %v", model.ErrCollaboratorFailure, err)
	}
	log.Infof("[Processor] 索引任务完成, batch: %s", task.BatchID)
	return nil
}

func (p *Processor) embedBatch(ctx context.Context, chunks []model.Chunk) ([]model.EmbeddedChunk, error) {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vectors, err := p.embeddingClient.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: embed chunks: %v", model.ErrCollaboratorFailure, err)
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("%w: expected %d embeddings, got %d", model.ErrCollaboratorFailure, len(chunks), len(vectors))
	}

	out := make([]model.EmbeddedChunk, len(chunks))
	for i, c := range chunks {
		out[i] = model.EmbeddedChunk{Chunk: c, Embedding: vectors[i]}
		if p.encoder == nil {
			continue
		}
		vec, err := p.encoder.Encode(c.Content)
		if errors.Is(err, sparse.ErrNotFitted) {
			// 稀疏模型尚未训练时只写入稠密向量
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("sparse encode chunk %s: %w", c.ID, err)
		}
		if !vec.IsEmpty() {
			out[i].SparseEmbedding = &vec
		}
	}
	return out, nil
}

// prepare 去掉空内容的片段、补齐 ID 与平台，并按 ID 去重。
func prepare(in []model.Chunk) []model.Chunk {
	seen := make(map[string]struct{}, len(in))
	out := make([]model.Chunk, 0, len(in))
	for _, c := range in {
		c.Content = strings.TrimSpace(c.Content)
		if c.Content == "" {
			continue
		}
		if c.ID == "" {
			c.ID = ChunkID(c)
		}
		if _, ok := seen[c.ID]; ok {
			continue
		}
		seen[c.ID] = struct{}{}
		c.Platform = c.PlatformOrDefault()
		out = append(out, c)
	}
	return out
}
