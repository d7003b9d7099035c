package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
server:
  port: "9000"
jwt:
  secret: "from-file"
elasticsearch:
  addresses: "http://es:9200"
  dims: 768
sparse:
  algorithm: "BM25"
  model_path: "/var/lib/legal-rag/"
retrieval:
  use_sparse: false
  branch_timeout: 5s
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, 768, cfg.Elasticsearch.Dims)
	assert.False(t, cfg.Retrieval.UseSparse)
	assert.Equal(t, 5*time.Second, cfg.Retrieval.BranchTimeout)

	// 未出现在文件中的键取默认值
	assert.Equal(t, "legal_chunks", cfg.Elasticsearch.IndexName)
	assert.Equal(t, 9, cfg.Retrieval.DefaultK)
	assert.Equal(t, 3, cfg.Retrieval.ExpandToN)
	assert.Equal(t, 128, cfg.Sparse.MaxTerms)
	assert.InDelta(t, 1.5, cfg.Sparse.K1, 1e-9)
	assert.Equal(t, 24*time.Hour, cfg.LLM.CacheTTL)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("LEGALRAG_JWT_SECRET", "from-env")
	t.Setenv("LEGALRAG_RETRIEVAL_DEFAULT_K", "12")

	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.JWT.Secret)
	assert.Equal(t, 12, cfg.Retrieval.DefaultK)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestSparsePaths(t *testing.T) {
	c := SparseConfig{Algorithm: "BM25", ModelPath: "/var/lib/legal-rag/"}
	assert.Equal(t, "/var/lib/legal-rag/sparse_bm25_model.bin", c.SparseModelFile())
	assert.Equal(t, "models/sparse_bm25_model.bin", c.SparseObjectName())

	c.ObjectName = "custom/model.bin"
	assert.Equal(t, "custom/model.bin", c.SparseObjectName())
}
