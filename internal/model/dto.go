package model

import "unicode/utf8"

// SearchRequest 是 POST /api/v1/search 的请求体。
type SearchRequest struct {
	Query     string `json:"query" binding:"required"`
	K         int    `json:"k"`
	ExpandToN int    `json:"expand_to_n"`
	UseSparse *bool  `json:"use_sparse"`
}

// RerankRequest 是 POST /api/v1/rerank 的请求体。
type RerankRequest struct {
	Query    string  `json:"query" binding:"required"`
	Chunks   []Chunk `json:"chunks" binding:"required"`
	KeepTopK int     `json:"keep_top_k"`
}

// RAGRequest 是 POST /api/v1/rag 的请求体。
type RAGRequest struct {
	Query       string   `json:"query" binding:"required"`
	K           int      `json:"k"`
	Temperature *float64 `json:"temperature"`
}

// ChunkDTO 是返回给调用方的片段，不包含向量。
type ChunkDTO struct {
	ID             string `json:"id"`
	Content        string `json:"content"`
	DocumentID     string `json:"document_id"`
	DocumentNumber string `json:"document_number"`
	DocumentType   string `json:"document_type"`
	Field          string `json:"field"`
	Link           string `json:"link"`
	Platform       string `json:"platform"`
	Rank           int    `json:"rank"`
}

// NewChunkDTOs 按排名顺序转换片段，Rank 从 1 开始。
func NewChunkDTOs(chunks []EmbeddedChunk) []ChunkDTO {
	out := make([]ChunkDTO, 0, len(chunks))
	for i, c := range chunks {
		out = append(out, ChunkDTO{
			ID:             c.ID,
			Content:        c.Content,
			DocumentID:     c.DocumentID,
			DocumentNumber: c.DocumentNumber,
			DocumentType:   c.DocumentType,
			Field:          c.Field,
			Link:           c.Link,
			Platform:       c.PlatformOrDefault(),
			Rank:           i + 1,
		})
	}
	return out
}

// SourceDTO 是问答结果中引用的来源。
type SourceDTO struct {
	DocumentID     string `json:"document_id"`
	DocumentType   string `json:"document_type"`
	Field          string `json:"field"`
	DocumentNumber string `json:"document_number"`
	Link           string `json:"link"`
	ContentPreview string `json:"content_preview"`
}

// PreviewRunes 是来源预览保留的最大字符数。
const PreviewRunes = 200

// NewSourceDTO 从片段构造来源，预览截取内容的前 PreviewRunes 个字符。
func NewSourceDTO(c EmbeddedChunk) SourceDTO {
	preview := c.Content
	if utf8.RuneCountInString(preview) > PreviewRunes {
		preview = string([]rune(preview)[:PreviewRunes])
	}
	return SourceDTO{
		DocumentID:     c.DocumentID,
		DocumentType:   c.DocumentType,
		Field:          c.Field,
		DocumentNumber: c.DocumentNumber,
		Link:           c.Link,
		ContentPreview: preview,
	}
}

// AnswerDTO 是 /api/v1/rag 的响应数据。
type AnswerDTO struct {
	Query       string                 `json:"query"`
	Answer      string                 `json:"answer"`
	Sources     []SourceDTO            `json:"sources"`
	Metadata    map[string]interface{} `json:"metadata"`
	GeneratedAt LocalTime              `json:"generated_at"`
}
