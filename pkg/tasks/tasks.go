// Package tasks 定义了通过 Kafka 传递的任务结构。
package tasks

import "github.com/johnpham4/legal-rag-llm/internal/model"

// ChunkIndexTask 是一批待索引的法律文件片段。
type ChunkIndexTask struct {
	BatchID string        `json:"batch_id"`
	Source  string        `json:"source,omitempty"`
	Chunks  []model.Chunk `json:"chunks"`
}
