package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/johnpham4/legal-rag-llm/internal/bootstrap"
	"github.com/johnpham4/legal-rag-llm/internal/model"
	"github.com/johnpham4/legal-rag-llm/internal/repository"
	"github.com/johnpham4/legal-rag-llm/pkg/es"
	"github.com/johnpham4/legal-rag-llm/pkg/storage"
)

var (
	searchK         int
	searchExpand    int
	searchNoSparse  bool
	searchJSON      bool
	searchFetchModel bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Run the retrieval pipeline for one question",
	Long: `Runs self-query extraction, query expansion, concurrent dense or hybrid
search and cross-encoder reranking, then prints the top-k chunks.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchK, "k", "k", 0, "number of chunks to return (default retrieval.default_k)")
	searchCmd.Flags().IntVar(&searchExpand, "expand", 0, "number of query variants (default retrieval.expand_to_n)")
	searchCmd.Flags().BoolVar(&searchNoSparse, "no-sparse", false, "dense search only")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	searchCmd.Flags().BoolVar(&searchFetchModel, "fetch-model", false, "download the sparse model from MinIO when missing locally")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	k := searchK
	if k == 0 {
		k = cfg.Retrieval.DefaultK
	}
	expand := searchExpand
	if expand == 0 {
		expand = cfg.Retrieval.ExpandToN
	}

	searchCfg := *cfg
	if searchNoSparse {
		searchCfg.Retrieval.UseSparse = false
	}

	esClient, err := es.NewClient(cfg.Elasticsearch)
	if err != nil {
		return err
	}
	var objects repository.ObjectStore
	if searchFetchModel {
		bucket, err := storage.NewBucket(ctx, cfg.MinIO)
		if err != nil {
			return err
		}
		objects = bucket
	}

	stack, err := bootstrap.NewSearchStack(ctx, searchCfg, esClient, nil, objects)
	if err != nil {
		return err
	}
	defer stack.Close()

	results, err := stack.Search.Search(ctx, args[0], k, expand, searchCfg.Retrieval.UseSparse)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	dtos := model.NewChunkDTOs(results)
	if searchJSON {
		data, err := json.MarshalIndent(dtos, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal results: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}
	printChunks(cmd, dtos)
	return nil
}

func printChunks(cmd *cobra.Command, dtos []model.ChunkDTO) {
	if len(dtos) == 0 {
		cmd.Println("No results found.")
		return
	}
	for _, d := range dtos {
		cmd.Printf("  [%d] %s %s (%s, %s)\n", d.Rank, d.DocumentType, d.DocumentNumber, d.Field, d.ID)
		cmd.Printf("      %s\n", preview(d.Content, 160))
		if d.Link != "" {
			cmd.Printf("      %s\n", d.Link)
		}
	}
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
