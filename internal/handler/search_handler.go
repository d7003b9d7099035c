package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/johnpham4/legal-rag-llm/internal/model"
	"github.com/johnpham4/legal-rag-llm/internal/service"
	"github.com/johnpham4/legal-rag-llm/pkg/log"
)

// SearchDefaults 是请求未指定参数时使用的默认值。
type SearchDefaults struct {
	K         int
	ExpandToN int
	UseSparse bool
}

// SearchHandler 结构体定义了检索与重排序相关的处理器。
type SearchHandler struct {
	searchService service.SearchService
	defaults      SearchDefaults
}

// NewSearchHandler 创建一个新的 SearchHandler 实例。
func NewSearchHandler(searchService service.SearchService, defaults SearchDefaults) *SearchHandler {
	return &SearchHandler{searchService: searchService, defaults: defaults}
}

// Search 处理 POST /api/v1/search。
func (h *SearchHandler) Search(c *gin.Context) {
	var req model.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("[SearchHandler] 请求参数无效: %v", err)
		fail(c, http.StatusBadRequest, "无效的请求参数")
		return
	}
	k := req.K
	if k == 0 {
		k = h.defaults.K
	}
	expandToN := req.ExpandToN
	if expandToN == 0 {
		expandToN = h.defaults.ExpandToN
	}
	useSparse := h.defaults.UseSparse
	if req.UseSparse != nil {
		useSparse = *req.UseSparse
	}
	log.Infof("[SearchHandler] 收到检索请求, query: '%s', k: %d, expand_to_n: %d, use_sparse: %t", req.Query, k, expandToN, useSparse)

	results, err := h.searchService.Search(c.Request.Context(), req.Query, k, expandToN, useSparse)
	if err != nil {
		log.Errorf("[SearchHandler] 检索服务返回错误, error: %v", err)
		failWithError(c, err, "检索失败")
		return
	}

	log.Infof("[SearchHandler] 检索成功, query: '%s', 返回 %d 条结果", req.Query, len(results))
	success(c, model.NewChunkDTOs(results))
}

// Rerank 处理 POST /api/v1/rerank。
func (h *SearchHandler) Rerank(c *gin.Context) {
	var req model.RerankRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("[SearchHandler] 重排序请求参数无效: %v", err)
		fail(c, http.StatusBadRequest, "无效的请求参数")
		return
	}
	keep := req.KeepTopK
	if keep == 0 {
		keep = len(req.Chunks)
	}

	chunks := make([]model.EmbeddedChunk, 0, len(req.Chunks))
	for _, ch := range req.Chunks {
		chunks = append(chunks, model.EmbeddedChunk{Chunk: ch})
	}
	results, err := h.searchService.Rerank(c.Request.Context(), req.Query, chunks, keep)
	if err != nil {
		log.Errorf("[SearchHandler] 重排序失败, error: %v", err)
		failWithError(c, err, "重排序失败")
		return
	}
	success(c, model.NewChunkDTOs(results))
}
