// Package model 定义了检索链路中的领域对象、数据库模型与接口 DTO。
package model

import (
	"strings"

	"github.com/google/uuid"

	"github.com/johnpham4/legal-rag-llm/pkg/sparse"
)

// Query 是一次检索请求的用户问题，Metadata 保存自查询抽取出的过滤条件。
type Query struct {
	ID       string            `json:"id"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata"`
}

// NewQuery 去掉首尾的换行与空格，并分配新的 UUID。
func NewQuery(text string) Query {
	return Query{
		ID:       uuid.NewString(),
		Content:  strings.Trim(text, "\n "),
		Metadata: map[string]string{},
	}
}

// ReplaceContent 返回一个保留 ID 与 Metadata、只替换内容的新 Query。
// Metadata 被复制，修改返回值不会影响原对象。
func (q Query) ReplaceContent(content string) Query {
	return Query{ID: q.ID, Content: content, Metadata: q.cloneMetadata()}
}

// WithMetadata 返回合并了 kv 的副本，空值会被忽略。
func (q Query) WithMetadata(kv map[string]string) Query {
	md := q.cloneMetadata()
	for k, v := range kv {
		if v == "" {
			continue
		}
		md[k] = v
	}
	return Query{ID: q.ID, Content: q.Content, Metadata: md}
}

func (q Query) cloneMetadata() map[string]string {
	md := make(map[string]string, len(q.Metadata))
	for k, v := range q.Metadata {
		md[k] = v
	}
	return md
}

// EmbeddedQuery 是附带稠密向量与可选稀疏向量的查询。
type EmbeddedQuery struct {
	Query
	Embedding       []float32      `json:"embedding"`
	SparseEmbedding *sparse.Vector `json:"sparse_embedding,omitempty"`
}
