// Package main 是检索服务的入口点。
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/johnpham4/legal-rag-llm/internal/bootstrap"
	"github.com/johnpham4/legal-rag-llm/internal/config"
	"github.com/johnpham4/legal-rag-llm/internal/handler"
	"github.com/johnpham4/legal-rag-llm/internal/middleware"
	"github.com/johnpham4/legal-rag-llm/internal/pipeline"
	"github.com/johnpham4/legal-rag-llm/internal/repository"
	"github.com/johnpham4/legal-rag-llm/internal/service"
	"github.com/johnpham4/legal-rag-llm/pkg/database"
	"github.com/johnpham4/legal-rag-llm/pkg/es"
	"github.com/johnpham4/legal-rag-llm/pkg/kafka"
	"github.com/johnpham4/legal-rag-llm/pkg/log"
	"github.com/johnpham4/legal-rag-llm/pkg/storage"
	"github.com/johnpham4/legal-rag-llm/pkg/token"
)

func configPath() string {
	if p := os.Getenv("LEGALRAG_CONFIG"); p != "" {
		return p
	}
	return "./configs/config.yaml"
}

func main() {
	// 1. 初始化配置
	config.Init(configPath())
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync()
	log.Info("日志记录器初始化成功")

	// 3. 初始化数据库、Redis、MinIO 与 Elasticsearch
	database.InitMySQL(cfg.Database.MySQL.DSN)
	database.InitRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
	bucket := storage.InitMinIO(cfg.MinIO)
	if err := es.InitES(cfg.Elasticsearch); err != nil {
		log.Errorf("es 初始化失败 %s", err)
		return
	}

	// 4. 组装检索链路（稀疏模型在此加载，失败即退出）
	rootCtx, cancelRoot := context.WithCancel(context.Background())
	defer cancelRoot()
	stack, err := bootstrap.NewSearchStack(rootCtx, cfg, es.ESClient, database.RDB, bucket)
	if err != nil {
		log.Fatal("检索链路初始化失败", err)
	}
	defer stack.Close()

	var qaService service.QAService
	if stack.LLM != nil {
		qaService, err = service.NewQAService(stack.Search, stack.LLM, cfg.Retrieval.ExpandToN, cfg.Retrieval.UseSparse)
		if err != nil {
			log.Fatal("问答服务初始化失败", err)
		}
	}

	// 5. 初始化片段索引管道并启动后台 Kafka 消费者
	processor := pipeline.NewProcessor(
		stack.Embedder,
		stack.Encoder,
		repository.NewChunkRepository(database.DB),
		stack.Store,
		cfg.Embedding.BatchSize,
		cfg.Embedding.Model,
	)
	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		kafka.StartConsumer(rootCtx, cfg.Kafka, processor, kafka.NewRedisAttemptCounter(database.RDB, 24*time.Hour))
	}()

	// 6. 设置 Gin 模式并注册路由
	var jwtManager *token.JWTManager
	if cfg.JWT.Secret != "" {
		jwtManager = token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.TokenExpireHours, cfg.JWT.Issuer)
	} else {
		log.Warnf("jwt.secret 未配置，/api/v1 不做认证")
	}

	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(middleware.RequestLogger(), gin.Recovery())

	deps := handler.RouterDeps{
		Search: handler.NewSearchHandler(stack.Search, handler.SearchDefaults{
			K:         cfg.Retrieval.DefaultK,
			ExpandToN: cfg.Retrieval.ExpandToN,
			UseSparse: cfg.Retrieval.UseSparse,
		}),
		Health:     handler.NewHealthHandler(stack.Encoder),
		JWTManager: jwtManager,
	}
	if qaService != nil {
		deps.RAG = handler.NewRAGHandler(qaService)
	}
	handler.SetupRouter(r, deps)

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Errorf("HTTP 服务器关闭失败: %v", err)
	}

	cancelRoot()
	select {
	case <-consumerDone:
	case <-ctx.Done():
		log.Warnf("等待 Kafka 消费者退出超时")
	}
	log.Info("服务已优雅关闭")
}
