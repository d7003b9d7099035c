package model

import (
	"time"

	"github.com/johnpham4/legal-rag-llm/pkg/sparse"
)

// DefaultPlatform 是语料来源站点。
const DefaultPlatform = "thuvienphapluat.vn"

// Chunk 是法律文件切分后的一个片段。
type Chunk struct {
	ID             string `json:"id"`
	Content        string `json:"content"`
	DocumentID     string `json:"document_id"`
	DocumentNumber string `json:"document_number"`
	DocumentType   string `json:"document_type"`
	Field          string `json:"field"`
	Link           string `json:"link"`
	Platform       string `json:"platform"`
}

// EmbeddedChunk 是写入向量库的片段。去重与比较只看 ID。
type EmbeddedChunk struct {
	Chunk
	Embedding       []float32      `json:"embedding,omitempty"`
	SparseEmbedding *sparse.Vector `json:"sparse_embedding,omitempty"`
}

// PlatformOrDefault 在 Platform 为空时返回 DefaultPlatform。
func (c Chunk) PlatformOrDefault() string {
	if c.Platform == "" {
		return DefaultPlatform
	}
	return c.Platform
}

// Payload 返回用于过滤的元数据字段。
func (c Chunk) Payload() map[string]string {
	return map[string]string{
		MetaDocumentType:   c.DocumentType,
		MetaField:          c.Field,
		MetaDocumentNumber: c.DocumentNumber,
	}
}

// ChunkRecord 对应数据库中的 legal_chunks 表，是稀疏模型训练语料的来源。
type ChunkRecord struct {
	ID             uint      `gorm:"primaryKey;autoIncrement;column:id"`
	ChunkID        string    `gorm:"type:varchar(64);not null;uniqueIndex;column:chunk_id"`
	DocumentID     string    `gorm:"type:varchar(64);not null;index;column:document_id"`
	DocumentNumber string    `gorm:"type:varchar(128);column:document_number"`
	DocumentType   string    `gorm:"type:varchar(64);index;column:document_type"`
	Field          string    `gorm:"type:varchar(64);index;column:field"`
	Link           string    `gorm:"type:varchar(512);column:link"`
	Platform       string    `gorm:"type:varchar(64);column:platform"`
	Content        string    `gorm:"type:longtext;column:content"`
	ModelVersion   string    `gorm:"type:varchar(128);column:model_version"`
	CreatedAt      time.Time `gorm:"autoCreateTime;column:created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime;column:updated_at"`
}

func (ChunkRecord) TableName() string {
	return "legal_chunks"
}

// NewChunkRecord 将 Chunk 转换为数据库记录。
func NewChunkRecord(c Chunk, modelVersion string) *ChunkRecord {
	return &ChunkRecord{
		ChunkID:        c.ID,
		DocumentID:     c.DocumentID,
		DocumentNumber: c.DocumentNumber,
		DocumentType:   c.DocumentType,
		Field:          c.Field,
		Link:           c.Link,
		Platform:       c.PlatformOrDefault(),
		Content:        c.Content,
		ModelVersion:   modelVersion,
	}
}

// ToChunk 将数据库记录转换回 Chunk。
func (r *ChunkRecord) ToChunk() Chunk {
	return Chunk{
		ID:             r.ChunkID,
		Content:        r.Content,
		DocumentID:     r.DocumentID,
		DocumentNumber: r.DocumentNumber,
		DocumentType:   r.DocumentType,
		Field:          r.Field,
		Link:           r.Link,
		Platform:       r.Platform,
	}
}
