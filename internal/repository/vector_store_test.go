package repository

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johnpham4/legal-rag-llm/internal/model"
	"github.com/johnpham4/legal-rag-llm/pkg/sparse"
)

// fakeES 模拟 Elasticsearch，记录收到的请求体，并按查询类型返回预置结果。
type fakeES struct {
	mu         sync.Mutex
	searches   []map[string]interface{}
	bulkBodies []string
	denseHits  []esChunkDocument
	sparseHits []esChunkDocument
	bulkResp   string
	status     int
}

func (f *fakeES) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		body, _ := io.ReadAll(r.Body)

		if f.status != 0 {
			w.WriteHeader(f.status)
			_, _ = w.Write([]byte(`{"error":"boom"}`))
			return
		}

		switch {
		case strings.HasSuffix(r.URL.Path, "/_bulk"):
			f.mu.Lock()
			f.bulkBodies = append(f.bulkBodies, string(body))
			f.mu.Unlock()
			resp := f.bulkResp
			if resp == "" {
				resp = `{"errors":false,"items":[]}`
			}
			_, _ = w.Write([]byte(resp))
		case strings.HasSuffix(r.URL.Path, "/_search"):
			var q map[string]interface{}
			if err := json.Unmarshal(body, &q); err != nil {
				t.Errorf("invalid search body: %v", err)
			}
			f.mu.Lock()
			f.searches = append(f.searches, q)
			f.mu.Unlock()

			docs := f.sparseHits
			if _, ok := q["knn"]; ok {
				docs = f.denseHits
			}
			hits := make([]map[string]interface{}, 0, len(docs))
			for _, d := range docs {
				hits = append(hits, map[string]interface{}{"_id": d.ID, "_score": 1.0, "_source": d})
			}
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"hits": map[string]interface{}{"hits": hits},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

func newTestStore(t *testing.T, f *fakeES) VectorStore {
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)
	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	return NewVectorStore(client, "legal_chunks")
}

func docs(ids ...string) []esChunkDocument {
	out := make([]esChunkDocument, 0, len(ids))
	for _, id := range ids {
		out = append(out, esChunkDocument{ID: id, Content: "nội dung " + id})
	}
	return out
}

func chunkIDs(chunks []model.EmbeddedChunk) []string {
	ids := make([]string, 0, len(chunks))
	for _, c := range chunks {
		ids = append(ids, c.ID)
	}
	return ids
}

func TestSearchBuildsFilteredKNN(t *testing.T) {
	f := &fakeES{denseHits: docs("a", "b")}
	store := newTestStore(t, f)

	filter := &Filter{Conditions: []FieldCondition{
		{Key: model.MetaDocumentType, Value: "Luật"},
		{Key: model.MetaField, Value: "Thuế"},
	}}
	chunks, err := store.Search(context.Background(), []float32{0.1, 0.2}, filter, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, chunkIDs(chunks))

	require.Len(t, f.searches, 1)
	knn := f.searches[0]["knn"].(map[string]interface{})
	assert.Equal(t, "dense", knn["field"])
	assert.EqualValues(t, 3, knn["k"])
	clauses := knn["filter"].([]interface{})
	require.Len(t, clauses, 2)
	first := clauses[0].(map[string]interface{})["term"].(map[string]interface{})
	assert.Equal(t, "Luật", first[model.MetaDocumentType])
}

func TestSearchWithoutFilter(t *testing.T) {
	f := &fakeES{denseHits: docs("a")}
	store := newTestStore(t, f)

	_, err := store.Search(context.Background(), []float32{1}, nil, 2)
	require.NoError(t, err)
	knn := f.searches[0]["knn"].(map[string]interface{})
	_, hasFilter := knn["filter"]
	assert.False(t, hasFilter)
}

func TestSearchZeroLimit(t *testing.T) {
	f := &fakeES{}
	store := newTestStore(t, f)
	chunks, err := store.Search(context.Background(), []float32{1}, nil, 0)
	require.NoError(t, err)
	assert.Empty(t, chunks)
	assert.Empty(t, f.searches)
}

func TestSearchPropagatesError(t *testing.T) {
	f := &fakeES{status: http.StatusInternalServerError}
	store := newTestStore(t, f)
	_, err := store.Search(context.Background(), []float32{1}, nil, 2)
	assert.Error(t, err)
}

func TestHybridSearchFusesBranches(t *testing.T) {
	f := &fakeES{
		denseHits:  docs("a", "b", "c"),
		sparseHits: docs("c", "d"),
	}
	store := newTestStore(t, f)

	vec := sparse.Vector{Indices: []uint32{4, 1}, Values: []float64{0.9, 0.5}}
	chunks, err := store.HybridSearch(context.Background(), []float32{1}, vec, nil, 3)
	require.NoError(t, err)
	// c 同时出现在两路结果中得分最高；b 与 d 同分，稠密结果优先。
	assert.Equal(t, []string{"c", "a", "b"}, chunkIDs(chunks))

	require.Len(t, f.searches, 2)
	sparseQ := f.searches[1]["query"].(map[string]interface{})["bool"].(map[string]interface{})
	should := sparseQ["should"].([]interface{})
	require.Len(t, should, 2)
	rf := should[0].(map[string]interface{})["rank_feature"].(map[string]interface{})
	assert.Equal(t, "sparse.t4", rf["field"])
	assert.InDelta(t, 0.9, rf["boost"], 1e-9)
}

func TestHybridSearchEmptySparseUsesDenseOnly(t *testing.T) {
	f := &fakeES{denseHits: docs("a", "b")}
	store := newTestStore(t, f)

	chunks, err := store.HybridSearch(context.Background(), []float32{1}, sparse.Vector{}, nil, 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, chunkIDs(chunks))
	assert.Len(t, f.searches, 1)
}

func TestUpsertWritesBulk(t *testing.T) {
	f := &fakeES{}
	store := newTestStore(t, f)

	vec := sparse.Vector{Indices: []uint32{7, 2}, Values: []float64{1.5, 0.25}}
	err := store.Upsert(context.Background(), []model.EmbeddedChunk{
		{Chunk: model.Chunk{ID: "c1", Content: "Điều 1"}, Embedding: []float32{0.5}, SparseEmbedding: &vec},
	})
	require.NoError(t, err)
	require.Len(t, f.bulkBodies, 1)

	lines := strings.Split(strings.TrimSpace(f.bulkBodies[0]), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"_id":"c1"`)

	var doc esChunkDocument
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &doc))
	assert.Equal(t, model.DefaultPlatform, doc.Platform)
	assert.Equal(t, map[string]float64{"t7": 1.5, "t2": 0.25}, doc.Sparse)
}

func TestUpsertReportsItemErrors(t *testing.T) {
	f := &fakeES{bulkResp: `{"errors":true,"items":[{"index":{"_id":"c1","status":400,"error":{"type":"mapper_parsing_exception","reason":"bad dims"}}}]}`}
	store := newTestStore(t, f)

	err := store.Upsert(context.Background(), []model.EmbeddedChunk{{Chunk: model.Chunk{ID: "c1"}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad dims")
}

func TestUpsertRejectsMissingID(t *testing.T) {
	store := newTestStore(t, &fakeES{})
	err := store.Upsert(context.Background(), []model.EmbeddedChunk{{}})
	assert.ErrorIs(t, err, model.ErrInvalidArgument)
}

func TestScrollPaginates(t *testing.T) {
	f := &fakeES{sparseHits: docs("a", "b")}
	store := newTestStore(t, f)

	chunks, next, err := store.Scroll(context.Background(), 2, "")
	require.NoError(t, err)
	assert.Len(t, chunks, 2)
	assert.Equal(t, "b", next)

	_, _, err = store.Scroll(context.Background(), 5, next)
	require.NoError(t, err)
	require.Len(t, f.searches, 2)
	assert.Equal(t, []interface{}{"b"}, f.searches[1]["search_after"])
}

func TestSparseFromFeaturesOrdering(t *testing.T) {
	vec := sparseFromFeatures(map[string]float64{"t9": 0.5, "t3": 0.5, "t1": 2, "bad": 1})
	assert.Equal(t, []uint32{1, 3, 9}, vec.Indices)
	assert.Equal(t, []float64{2, 0.5, 0.5}, vec.Values)
}

func TestFuseRRF(t *testing.T) {
	mk := func(ids ...string) []model.EmbeddedChunk {
		out := make([]model.EmbeddedChunk, 0, len(ids))
		for _, id := range ids {
			out = append(out, model.EmbeddedChunk{Chunk: model.Chunk{ID: id}})
		}
		return out
	}
	fused := FuseRRF([][]model.EmbeddedChunk{mk("x", "y"), mk("y", "z")}, RRFConstant, 10)
	assert.Equal(t, []string{"y", "x", "z"}, chunkIDs(fused))

	assert.Len(t, FuseRRF([][]model.EmbeddedChunk{mk("a", "b", "c")}, RRFConstant, 2), 2)
	assert.Empty(t, FuseRRF(nil, RRFConstant, 3))
}
