package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"

	"github.com/johnpham4/legal-rag-llm/internal/model"
	"github.com/johnpham4/legal-rag-llm/pkg/es"
	"github.com/johnpham4/legal-rag-llm/pkg/log"
	"github.com/johnpham4/legal-rag-llm/pkg/sparse"
)

// FieldCondition 是一个精确匹配条件。
type FieldCondition struct {
	Key   string
	Value string
}

// Filter 是若干 FieldCondition 的合取。
type Filter struct {
	Conditions []FieldCondition
}

// IsEmpty 对 nil 同样成立。
func (f *Filter) IsEmpty() bool {
	return f == nil || len(f.Conditions) == 0
}

// VectorStore 定义了片段向量库的操作接口。
type VectorStore interface {
	// Search 按稠密向量相似度返回最多 limit 个片段。
	Search(ctx context.Context, dense []float32, filter *Filter, limit int) ([]model.EmbeddedChunk, error)
	// HybridSearch 分别执行稠密与稀疏检索，再以 RRF 融合，返回最多 limit 个片段。
	HybridSearch(ctx context.Context, dense []float32, sparseVec sparse.Vector, filter *Filter, limit int) ([]model.EmbeddedChunk, error)
	// Upsert 以片段 ID 为文档 ID 批量写入。
	Upsert(ctx context.Context, chunks []model.EmbeddedChunk) error
	// Scroll 按 ID 升序分页读取全部片段；返回的 cursor 为空表示已读完。
	Scroll(ctx context.Context, limit int, cursor string) ([]model.EmbeddedChunk, string, error)
}

type esVectorStore struct {
	client *elasticsearch.Client
	index  string
}

// NewVectorStore 创建一个基于 Elasticsearch 的 VectorStore 实例。
func NewVectorStore(client *elasticsearch.Client, index string) VectorStore {
	return &esVectorStore{client: client, index: index}
}

// esChunkDocument 是片段在索引中的文档结构。
type esChunkDocument struct {
	ID             string             `json:"id"`
	Content        string             `json:"content"`
	DocumentID     string             `json:"document_id"`
	DocumentNumber string             `json:"document_number"`
	DocumentType   string             `json:"document_type"`
	Field          string             `json:"field"`
	Link           string             `json:"link"`
	Platform       string             `json:"platform"`
	Dense          []float32          `json:"dense,omitempty"`
	Sparse         map[string]float64 `json:"sparse,omitempty"`
}

func newESChunkDocument(c model.EmbeddedChunk) esChunkDocument {
	doc := esChunkDocument{
		ID:             c.ID,
		Content:        c.Content,
		DocumentID:     c.DocumentID,
		DocumentNumber: c.DocumentNumber,
		DocumentType:   c.DocumentType,
		Field:          c.Field,
		Link:           c.Link,
		Platform:       c.PlatformOrDefault(),
		Dense:          c.Embedding,
	}
	if c.SparseEmbedding != nil && !c.SparseEmbedding.IsEmpty() {
		doc.Sparse = make(map[string]float64, c.SparseEmbedding.Len())
		for i, idx := range c.SparseEmbedding.Indices {
			// rank_features 只接受正数
			if v := c.SparseEmbedding.Values[i]; v > 0 {
				doc.Sparse[es.SparseFeatureKey(idx)] = v
			}
		}
	}
	return doc
}

func (d esChunkDocument) toEmbeddedChunk() model.EmbeddedChunk {
	c := model.EmbeddedChunk{
		Chunk: model.Chunk{
			ID:             d.ID,
			Content:        d.Content,
			DocumentID:     d.DocumentID,
			DocumentNumber: d.DocumentNumber,
			DocumentType:   d.DocumentType,
			Field:          d.Field,
			Link:           d.Link,
			Platform:       d.Platform,
		},
		Embedding: d.Dense,
	}
	if len(d.Sparse) > 0 {
		vec := sparseFromFeatures(d.Sparse)
		c.SparseEmbedding = &vec
	}
	return c
}

// sparseFromFeatures 还原稀疏向量，顺序与编码器一致：权重降序，下标升序。
func sparseFromFeatures(features map[string]float64) sparse.Vector {
	type entry struct {
		idx uint32
		val float64
	}
	entries := make([]entry, 0, len(features))
	for key, val := range features {
		idx, err := strconv.ParseUint(strings.TrimPrefix(key, "t"), 10, 32)
		if err != nil {
			continue
		}
		entries = append(entries, entry{idx: uint32(idx), val: val})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].val != entries[j].val {
			return entries[i].val > entries[j].val
		}
		return entries[i].idx < entries[j].idx
	})
	vec := sparse.Vector{Indices: make([]uint32, len(entries)), Values: make([]float64, len(entries))}
	for i, e := range entries {
		vec.Indices[i] = e.idx
		vec.Values[i] = e.val
	}
	return vec
}

type searchHit struct {
	ID     string          `json:"_id"`
	Score  float64         `json:"_score"`
	Source esChunkDocument `json:"_source"`
}

type searchResponse struct {
	Hits struct {
		Hits []searchHit `json:"hits"`
	} `json:"hits"`
}

func termClauses(filter *Filter) []map[string]interface{} {
	clauses := make([]map[string]interface{}, 0, len(filter.Conditions))
	for _, c := range filter.Conditions {
		clauses = append(clauses, map[string]interface{}{
			"term": map[string]interface{}{c.Key: c.Value},
		})
	}
	return clauses
}

func numCandidates(limit int) int {
	if n := limit * 10; n > 100 {
		return n
	}
	return 100
}

var searchSourceExcludes = map[string]interface{}{
	"excludes": []string{es.FieldDense, es.FieldSparse},
}

func (s *esVectorStore) denseQuery(dense []float32, filter *Filter, limit int) map[string]interface{} {
	knn := map[string]interface{}{
		"field":          es.FieldDense,
		"query_vector":   dense,
		"k":              limit,
		"num_candidates": numCandidates(limit),
	}
	if !filter.IsEmpty() {
		knn["filter"] = termClauses(filter)
	}
	return map[string]interface{}{
		"knn":     knn,
		"size":    limit,
		"_source": searchSourceExcludes,
	}
}

// sparseQuery 对每个查询词构造 linear rank_feature 子句，boost 为查询权重，得分即稀疏点积。
func (s *esVectorStore) sparseQuery(vec sparse.Vector, filter *Filter, limit int) map[string]interface{} {
	should := make([]map[string]interface{}, 0, vec.Len())
	for i, idx := range vec.Indices {
		should = append(should, map[string]interface{}{
			"rank_feature": map[string]interface{}{
				"field":  es.FieldSparse + "." + es.SparseFeatureKey(idx),
				"boost":  vec.Values[i],
				"linear": map[string]interface{}{},
			},
		})
	}
	boolQuery := map[string]interface{}{
		"should":               should,
		"minimum_should_match": 1,
	}
	if !filter.IsEmpty() {
		boolQuery["filter"] = termClauses(filter)
	}
	return map[string]interface{}{
		"query":   map[string]interface{}{"bool": boolQuery},
		"size":    limit,
		"_source": searchSourceExcludes,
	}
}

func (s *esVectorStore) search(ctx context.Context, body map[string]interface{}) ([]searchHit, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, fmt.Errorf("failed to encode es query: %w", err)
	}

	res, err := s.client.Search(
		s.client.Search.WithContext(ctx),
		s.client.Search.WithIndex(s.index),
		s.client.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch search failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		bodyBytes, _ := io.ReadAll(res.Body)
		log.Errorf("[VectorStore] Elasticsearch 返回错误, status: %s, body: %s", res.Status(), string(bodyBytes))
		return nil, fmt.Errorf("elasticsearch returned an error: %s", res.Status())
	}

	var esResponse searchResponse
	if err := json.NewDecoder(res.Body).Decode(&esResponse); err != nil {
		return nil, fmt.Errorf("failed to decode es response: %w", err)
	}
	return esResponse.Hits.Hits, nil
}

func hitsToChunks(hits []searchHit) []model.EmbeddedChunk {
	chunks := make([]model.EmbeddedChunk, 0, len(hits))
	for _, h := range hits {
		c := h.Source.toEmbeddedChunk()
		if c.ID == "" {
			c.ID = h.ID
		}
		chunks = append(chunks, c)
	}
	return chunks
}

// Search 执行稠密 kNN 检索。
func (s *esVectorStore) Search(ctx context.Context, dense []float32, filter *Filter, limit int) ([]model.EmbeddedChunk, error) {
	if limit <= 0 {
		return []model.EmbeddedChunk{}, nil
	}
	hits, err := s.search(ctx, s.denseQuery(dense, filter, limit))
	if err != nil {
		return nil, err
	}
	log.Debugf("[VectorStore] 稠密检索命中 %d 条, filter: %v", len(hits), filter)
	return hitsToChunks(hits), nil
}

// HybridSearch 稠密与稀疏各取 limit 条候选，按 RRF 融合后截断到 limit。
func (s *esVectorStore) HybridSearch(ctx context.Context, dense []float32, sparseVec sparse.Vector, filter *Filter, limit int) ([]model.EmbeddedChunk, error) {
	if limit <= 0 {
		return []model.EmbeddedChunk{}, nil
	}
	denseHits, err := s.search(ctx, s.denseQuery(dense, filter, limit))
	if err != nil {
		return nil, err
	}
	lists := [][]model.EmbeddedChunk{hitsToChunks(denseHits)}

	if !sparseVec.IsEmpty() {
		sparseHits, err := s.search(ctx, s.sparseQuery(sparseVec, filter, limit))
		if err != nil {
			return nil, err
		}
		lists = append(lists, hitsToChunks(sparseHits))
	}

	fused := FuseRRF(lists, RRFConstant, limit)
	log.Debugf("[VectorStore] 混合检索融合后 %d 条, filter: %v", len(fused), filter)
	return fused, nil
}

type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []map[string]struct {
		ID     string `json:"_id"`
		Status int    `json:"status"`
		Error  *struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error,omitempty"`
	} `json:"items"`
}

// Upsert 通过 Bulk API 写入片段，任意一条失败即返回错误。
func (s *esVectorStore) Upsert(ctx context.Context, chunks []model.EmbeddedChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, c := range chunks {
		if c.ID == "" {
			return fmt.Errorf("%w: chunk without id", model.ErrInvalidArgument)
		}
		meta := map[string]interface{}{"index": map[string]interface{}{"_index": s.index, "_id": c.ID}}
		if err := enc.Encode(meta); err != nil {
			return fmt.Errorf("failed to encode bulk meta: %w", err)
		}
		if err := enc.Encode(newESChunkDocument(c)); err != nil {
			return fmt.Errorf("failed to encode chunk %s: %w", c.ID, err)
		}
	}

	res, err := s.client.Bulk(
		bytes.NewReader(buf.Bytes()),
		s.client.Bulk.WithContext(ctx),
		s.client.Bulk.WithIndex(s.index),
		s.client.Bulk.WithRefresh("true"),
	)
	if err != nil {
		return fmt.Errorf("elasticsearch bulk failed: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("elasticsearch bulk returned an error: %s", res.Status())
	}

	var bulkResp bulkResponse
	if err := json.NewDecoder(res.Body).Decode(&bulkResp); err != nil {
		return fmt.Errorf("failed to decode bulk response: %w", err)
	}
	if bulkResp.Errors {
		for _, item := range bulkResp.Items {
			for _, r := range item {
				if r.Error != nil {
					log.Errorf("[VectorStore] 写入片段 %s 失败: %s %s", r.ID, r.Error.Type, r.Error.Reason)
					return fmt.Errorf("bulk index chunk %s: %s", r.ID, r.Error.Reason)
				}
			}
		}
		return fmt.Errorf("bulk index reported errors")
	}
	log.Infof("[VectorStore] 成功写入 %d 个片段到索引 '%s'", len(chunks), s.index)
	return nil
}

// Scroll 使用 search_after 按 id 升序分页，cursor 为上一页最后一个片段的 ID。
func (s *esVectorStore) Scroll(ctx context.Context, limit int, cursor string) ([]model.EmbeddedChunk, string, error) {
	if limit <= 0 {
		return nil, "", fmt.Errorf("%w: scroll limit must be positive", model.ErrInvalidArgument)
	}
	body := map[string]interface{}{
		"size":  limit,
		"query": map[string]interface{}{"match_all": map[string]interface{}{}},
		"sort":  []map[string]interface{}{{es.FieldID: "asc"}},
	}
	if cursor != "" {
		body["search_after"] = []string{cursor}
	}

	hits, err := s.search(ctx, body)
	if err != nil {
		return nil, "", err
	}
	chunks := hitsToChunks(hits)
	next := ""
	if len(chunks) == limit {
		next = chunks[len(chunks)-1].ID
	}
	return chunks, next, nil
}
