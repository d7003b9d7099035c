package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/johnpham4/legal-rag-llm/internal/model"
	"github.com/johnpham4/legal-rag-llm/pkg/llm"
	"github.com/johnpham4/legal-rag-llm/pkg/log"
)

// Outcome 标记元数据抽取是否改写了查询。
type Outcome int

const (
	OutcomeUnmodified Outcome = iota
	OutcomeEnriched
)

func (o Outcome) String() string {
	if o == OutcomeEnriched {
		return "enriched"
	}
	return "unmodified"
}

// ExtractionResult 是 MetadataExtractor 的返回值。
type ExtractionResult struct {
	Query   model.Query
	Outcome Outcome
}

// MetadataExtractor 通过 LLM 从问题中抽取 document_type、field 与 document_number。
type MetadataExtractor struct {
	llm  llm.Client
	mock bool
}

// NewMetadataExtractor 创建抽取器；mock 为 true 时不调用 LLM。
func NewMetadataExtractor(client llm.Client, mock bool) (*MetadataExtractor, error) {
	if client == nil && !mock {
		return nil, fmt.Errorf("%w: metadata extractor needs an llm client", model.ErrNilDependency)
	}
	return &MetadataExtractor{llm: client, mock: mock}, nil
}

// Extract 永不返回错误：任何调用或解析失败都退回原查询。
func (e *MetadataExtractor) Extract(ctx context.Context, q model.Query) ExtractionResult {
	unmodified := ExtractionResult{Query: q, Outcome: OutcomeUnmodified}
	if e.mock {
		return unmodified
	}

	resp, err := e.llm.Generate(ctx, SelfQueryPrompt(q.Content), 0)
	if err != nil {
		log.Errorf("[MetadataExtractor] 调用 LLM 失败: %v", fmt.Errorf("%w: %v", model.ErrCollaboratorFailure, err))
		return unmodified
	}

	raw, err := decodeMetadata(stripCodeFence(resp))
	if err != nil {
		log.Errorf("[MetadataExtractor] 解析 LLM 返回的 JSON 失败: %v, response: %s", err, resp)
		return unmodified
	}

	md := validateMetadata(raw)
	if len(md) == 0 {
		return unmodified
	}
	log.Infof("[MetadataExtractor] 抽取到元数据: %v", md)
	return ExtractionResult{Query: q.WithMetadata(md), Outcome: OutcomeEnriched}
}

// decodeMetadata 把 LLM 返回解析为键到原始值的映射，数字保留为 json.Number。
func decodeMetadata(text string) (map[string]interface{}, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	var raw map[string]interface{}
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// metadataString 取出字符串值；null 与缺失返回 false，类型不对时告警后返回 false。
// allowNumber 为 true 时数字按原文转为字符串。
func metadataString(raw map[string]interface{}, key string, allowNumber bool) (string, bool) {
	switch v := raw[key].(type) {
	case nil:
		return "", false
	case string:
		v = strings.TrimSpace(v)
		return v, v != ""
	case json.Number:
		if allowNumber {
			return v.String(), true
		}
	}
	log.Warnf("[MetadataExtractor] %v: %s 类型不是字符串: %v", model.ErrInvalidFilterValue, key, raw[key])
	return "", false
}

// validateMetadata 逐个字段校验，单个字段无效只丢弃该字段。
func validateMetadata(raw map[string]interface{}) map[string]string {
	md := make(map[string]string, 3)
	if s, ok := metadataString(raw, model.MetaDocumentType, false); ok {
		if v := model.DocumentType(s); v.IsValid() {
			md[model.MetaDocumentType] = string(v)
		} else {
			log.Warnf("[MetadataExtractor] %v: document_type=%q", model.ErrInvalidFilterValue, s)
		}
	}
	if s, ok := metadataString(raw, model.MetaField, false); ok {
		if v := model.LegalField(s); v.IsValid() {
			md[model.MetaField] = string(v)
		} else {
			log.Warnf("[MetadataExtractor] %v: field=%q", model.ErrInvalidFilterValue, s)
		}
	}
	if s, ok := metadataString(raw, model.MetaDocumentNumber, true); ok {
		md[model.MetaDocumentNumber] = s
	}
	return md
}

// stripCodeFence 去掉 markdown 代码块标记以及紧随其后的 json 语言标注。
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.Trim(s, "`")
	s = strings.TrimPrefix(s, "json")
	return strings.TrimSpace(s)
}
