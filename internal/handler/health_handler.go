package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/johnpham4/legal-rag-llm/pkg/sparse"
)

// HealthHandler 报告服务状态与稀疏模型信息。
type HealthHandler struct {
	encoder sparse.Encoder
}

func NewHealthHandler(encoder sparse.Encoder) *HealthHandler {
	return &HealthHandler{encoder: encoder}
}

// Health 处理 GET /health。
func (h *HealthHandler) Health(c *gin.Context) {
	data := map[string]interface{}{"status": "ok", "sparse_enabled": h.encoder != nil}
	if h.encoder != nil {
		data["sparse_algorithm"] = string(h.encoder.Algorithm())
		data["sparse_vocab_size"] = h.encoder.VocabSize()
	}
	success(c, data)
}
