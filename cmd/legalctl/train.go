package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/johnpham4/legal-rag-llm/internal/bootstrap"
	"github.com/johnpham4/legal-rag-llm/internal/model"
	"github.com/johnpham4/legal-rag-llm/internal/repository"
	"github.com/johnpham4/legal-rag-llm/pkg/database"
	"github.com/johnpham4/legal-rag-llm/pkg/log"
	"github.com/johnpham4/legal-rag-llm/pkg/storage"
)

var (
	trainFromFile  string
	trainAlgorithm string
	trainUpload    bool
	trainBatchSize int
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Fit the sparse encoder on the chunk corpus",
	Long: `Fits the configured sparse encoder (BM25 or TF-IDF) on every indexed chunk
and writes the model to sparse.model_path. The corpus comes from the MySQL
legal_chunks table unless --from-file points at a JSONL chunk file.`,
	Args: cobra.NoArgs,
	RunE: runTrain,
}

func init() {
	trainCmd.Flags().StringVar(&trainFromFile, "from-file", "", "read the corpus from a JSONL chunk file instead of MySQL")
	trainCmd.Flags().StringVar(&trainAlgorithm, "algorithm", "", "override sparse.algorithm (bm25 or tfidf)")
	trainCmd.Flags().BoolVar(&trainUpload, "upload", false, "upload the fitted model to MinIO")
	trainCmd.Flags().IntVar(&trainBatchSize, "batch-size", 1000, "rows read per MySQL batch")
	rootCmd.AddCommand(trainCmd)
}

func loadCorpus(ctx context.Context) ([]string, error) {
	var corpus []string
	if trainFromFile != "" {
		err := readChunkFile(trainFromFile, func(c model.Chunk) error {
			corpus = append(corpus, c.Content)
			return nil
		})
		return corpus, err
	}

	db, err := database.OpenMySQL(cfg.Database.MySQL.DSN)
	if err != nil {
		return nil, err
	}
	defer database.Close(db)
	repo := repository.NewChunkRepository(db)
	err = repo.IterateContents(ctx, trainBatchSize, func(contents []string) error {
		corpus = append(corpus, contents...)
		return nil
	})
	return corpus, err
}

func runTrain(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	sparseCfg := cfg.Sparse
	if trainAlgorithm != "" {
		sparseCfg.Algorithm = trainAlgorithm
	}

	enc, err := bootstrap.NewEncoder(sparseCfg)
	if err != nil {
		return err
	}

	corpus, err := loadCorpus(ctx)
	if err != nil {
		return fmt.Errorf("load corpus: %w", err)
	}
	log.Infof("[Train] 语料加载完成, 文档数: %d", len(corpus))

	if err := enc.Fit(corpus); err != nil {
		return fmt.Errorf("fit %s: %w", enc.Algorithm(), err)
	}
	log.Infof("[Train] %s 模型训练完成, 词表大小: %d", enc.Algorithm(), enc.VocabSize())

	var objects repository.ObjectStore
	if trainUpload {
		bucket, err := storage.NewBucket(ctx, cfg.MinIO)
		if err != nil {
			return err
		}
		objects = bucket
	}
	repo := bootstrap.SparseModelRepository(sparseCfg, objects)
	if err := repo.Save(ctx, enc); err != nil {
		return fmt.Errorf("save model: %w", err)
	}

	cmd.Printf("trained %s on %d documents, vocabulary %d, saved to %s\n", enc.Algorithm(), len(corpus), enc.VocabSize(), repo.Path())
	return nil
}
