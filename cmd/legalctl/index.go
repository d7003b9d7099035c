package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/johnpham4/legal-rag-llm/internal/bootstrap"
	"github.com/johnpham4/legal-rag-llm/internal/model"
	"github.com/johnpham4/legal-rag-llm/internal/pipeline"
	"github.com/johnpham4/legal-rag-llm/internal/repository"
	"github.com/johnpham4/legal-rag-llm/pkg/database"
	"github.com/johnpham4/legal-rag-llm/pkg/embedding"
	"github.com/johnpham4/legal-rag-llm/pkg/es"
	"github.com/johnpham4/legal-rag-llm/pkg/kafka"
	"github.com/johnpham4/legal-rag-llm/pkg/log"
	"github.com/johnpham4/legal-rag-llm/pkg/sparse"
	"github.com/johnpham4/legal-rag-llm/pkg/tasks"
)

var (
	indexBatchSize int
	indexDirect    bool
	indexNoCorpus  bool
)

var indexCmd = &cobra.Command{
	Use:   "index [file.jsonl...]",
	Short: "Queue JSONL chunk files for indexing",
	Long: `Reads chunks from JSONL files (one chunk object per line) and publishes them
to Kafka in batches. With --direct the batches are embedded and written to
Elasticsearch in-process instead.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().IntVar(&indexBatchSize, "batch-size", 64, "chunks per task")
	indexCmd.Flags().BoolVar(&indexDirect, "direct", false, "index in-process instead of publishing to Kafka")
	indexCmd.Flags().BoolVar(&indexNoCorpus, "no-corpus", false, "with --direct, skip saving chunks to MySQL")
	rootCmd.AddCommand(indexCmd)
}

// batchSink 接收一批片段任务。
type batchSink func(ctx context.Context, task tasks.ChunkIndexTask) error

// publishBatches 读取所有文件并按 size 分批交给 sink，返回提交的片段数。
func publishBatches(ctx context.Context, files []string, size int, sink batchSink) (int, error) {
	if size <= 0 {
		return 0, fmt.Errorf("%w: batch size must be positive", model.ErrInvalidArgument)
	}
	total := 0
	for _, path := range files {
		batch := make([]model.Chunk, 0, size)
		flush := func() error {
			if len(batch) == 0 {
				return nil
			}
			task := tasks.ChunkIndexTask{BatchID: uuid.NewString(), Source: path, Chunks: batch}
			if err := sink(ctx, task); err != nil {
				return fmt.Errorf("batch %s: %w", task.BatchID, err)
			}
			total += len(batch)
			batch = make([]model.Chunk, 0, size)
			return nil
		}
		err := readChunkFile(path, func(c model.Chunk) error {
			batch = append(batch, c)
			if len(batch) >= size {
				return flush()
			}
			return nil
		})
		if err != nil {
			return total, err
		}
		if err := flush(); err != nil {
			return total, err
		}
	}
	return total, nil
}

// directSink 组装进程内的索引管道，返回的 cleanup 关闭 MySQL 连接。
func directSink(ctx context.Context) (sink batchSink, cleanup func(), err error) {
	cleanup = func() {}
	embedder, err := embedding.NewClient(cfg.Embedding)
	if err != nil {
		return nil, cleanup, err
	}
	esClient, err := es.NewClient(cfg.Elasticsearch)
	if err != nil {
		return nil, cleanup, err
	}
	if err := es.EnsureIndex(esClient, cfg.Elasticsearch.IndexName, cfg.Elasticsearch.Dims); err != nil {
		return nil, cleanup, err
	}

	var encoder sparse.Encoder
	if cfg.Retrieval.UseSparse {
		encoder, err = bootstrap.LoadEncoder(ctx, cfg.Sparse, nil)
		if err != nil {
			log.Warnf("[Index] 稀疏模型不可用，仅写入稠密向量: %v", err)
			encoder = nil
		}
	}

	var chunkRepo repository.ChunkRepository
	if !indexNoCorpus {
		db, err := database.OpenMySQL(cfg.Database.MySQL.DSN)
		if err != nil {
			return nil, cleanup, err
		}
		cleanup = func() { _ = database.Close(db) }
		chunkRepo = repository.NewChunkRepository(db)
	}

	processor := pipeline.NewProcessor(
		embedder,
		encoder,
		chunkRepo,
		repository.NewVectorStore(esClient, cfg.Elasticsearch.IndexName),
		cfg.Embedding.BatchSize,
		cfg.Embedding.Model,
	)
	return processor.Process, cleanup, nil
}

func runIndex(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	var sink batchSink
	if indexDirect {
		s, cleanup, err := directSink(ctx)
		defer cleanup()
		if err != nil {
			return err
		}
		sink = s
	} else {
		producer := kafka.NewProducer(cfg.Kafka)
		defer producer.Close()
		sink = producer.ProduceChunkTask
	}

	total, err := publishBatches(ctx, args, indexBatchSize, sink)
	if err != nil {
		return err
	}
	if indexDirect {
		cmd.Printf("indexed %d chunks\n", total)
	} else {
		cmd.Printf("queued %d chunks to topic %s\n", total, cfg.Kafka.Topic)
	}
	return nil
}
