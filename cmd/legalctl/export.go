package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/johnpham4/legal-rag-llm/internal/repository"
	"github.com/johnpham4/legal-rag-llm/pkg/es"
	"github.com/johnpham4/legal-rag-llm/pkg/log"
)

var (
	exportOut      string
	exportPageSize int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export every indexed chunk as JSONL",
	Long: `Pages through the chunk index in id order and writes one chunk object per
line, without vectors. The output can be fed back to "legalctl index" or used
as a training corpus with "legalctl train --from-file".`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output file (default stdout)")
	exportCmd.Flags().IntVar(&exportPageSize, "page-size", 500, "chunks per scroll page")
	rootCmd.AddCommand(exportCmd)
}

// exportChunks 逐页读取索引并写出 JSONL，返回写出的片段数。
func exportChunks(ctx context.Context, store repository.VectorStore, w io.Writer, pageSize int) (int, error) {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)

	total := 0
	cursor := ""
	for {
		page, next, err := store.Scroll(ctx, pageSize, cursor)
		if err != nil {
			return total, err
		}
		for _, c := range page {
			if err := enc.Encode(c.Chunk); err != nil {
				return total, err
			}
		}
		total += len(page)
		if next == "" {
			break
		}
		cursor = next
	}
	return total, bw.Flush()
}

func runExport(cmd *cobra.Command, _ []string) error {
	esClient, err := es.NewClient(cfg.Elasticsearch)
	if err != nil {
		return err
	}
	store := repository.NewVectorStore(esClient, cfg.Elasticsearch.IndexName)

	var w io.Writer = cmd.OutOrStdout()
	if exportOut != "" {
		f, err := os.Create(exportOut)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", exportOut, err)
		}
		defer f.Close()
		w = f
	}

	total, err := exportChunks(cmd.Context(), store, w, exportPageSize)
	if err != nil {
		return fmt.Errorf("export stopped after %d chunks: %w", total, err)
	}
	log.Infof("[Export] 导出完成, 片段数: %d", total)
	return nil
}
