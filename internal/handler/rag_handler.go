package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/johnpham4/legal-rag-llm/internal/model"
	"github.com/johnpham4/legal-rag-llm/internal/service"
	"github.com/johnpham4/legal-rag-llm/pkg/log"
)

// RAGHandler 处理基于检索的问答请求。
type RAGHandler struct {
	qaService service.QAService
}

func NewRAGHandler(qaService service.QAService) *RAGHandler {
	return &RAGHandler{qaService: qaService}
}

// Answer 处理 POST /api/v1/rag，k 默认为 3，temperature 默认为 0.3。
func (h *RAGHandler) Answer(c *gin.Context) {
	var req model.RAGRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "无效的请求参数")
		return
	}
	k := req.K
	if k == 0 {
		k = service.DefaultAnswerK
	}
	temperature := service.DefaultAnswerTemperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}

	answer, err := h.qaService.Answer(c.Request.Context(), req.Query, k, temperature)
	if err != nil {
		log.Errorf("[RAGHandler] 问答失败, query: '%s', error: %v", req.Query, err)
		failWithError(c, err, "问答失败")
		return
	}
	success(c, answer)
}
