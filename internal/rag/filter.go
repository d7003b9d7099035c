package rag

import (
	"github.com/johnpham4/legal-rag-llm/internal/model"
	"github.com/johnpham4/legal-rag-llm/internal/repository"
)

// BuildFilter 由查询元数据构造过滤条件，只取非空的 document_type、field、document_number。
// 没有任何条件时返回 nil。
func BuildFilter(q model.Query) *repository.Filter {
	var conds []repository.FieldCondition
	for _, key := range model.FilterKeys {
		if v := q.Metadata[key]; v != "" {
			conds = append(conds, repository.FieldCondition{Key: key, Value: v})
		}
	}
	if len(conds) == 0 {
		return nil
	}
	return &repository.Filter{Conditions: conds}
}
