package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/johnpham4/legal-rag-llm/internal/middleware"
	"github.com/johnpham4/legal-rag-llm/pkg/metrics"
	"github.com/johnpham4/legal-rag-llm/pkg/token"
)

// RouterDeps 汇总注册路由所需的处理器。
type RouterDeps struct {
	Search     *SearchHandler
	RAG        *RAGHandler
	Health     *HealthHandler
	JWTManager *token.JWTManager
}

// SetupRouter 注册全部路由。/health 与 /metrics 不需要认证。
func SetupRouter(r *gin.Engine, deps RouterDeps) {
	r.GET("/health", deps.Health.Health)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := r.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(deps.JWTManager))
	{
		api.POST("/search", deps.Search.Search)
		api.POST("/rerank", deps.Search.Rerank)
		if deps.RAG != nil {
			api.POST("/rag", deps.RAG.Answer)
		}
	}
}
