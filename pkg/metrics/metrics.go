// Package metrics 定义服务暴露的 Prometheus 指标。
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "legal_rag"

var (
	// SearchDuration 记录一次完整检索（含重排序）的耗时，按结果状态区分。
	SearchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "search_duration_seconds",
		Help:      "End-to-end retrieval latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"status"})

	// BranchSearches 按检索模式（dense/hybrid）统计分支检索次数。
	BranchSearches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "branch_searches_total",
		Help:      "Vector store searches issued by retrieval branches.",
	}, []string{"mode"})

	// FilterFallbacks 统计带过滤条件无结果后触发的无过滤重试次数。
	FilterFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "filter_fallbacks_total",
		Help:      "Unfiltered retries after a filtered search returned no hits.",
	})

	RerankDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "rerank_duration_seconds",
		Help:      "Cross-encoder rerank latency.",
		Buckets:   prometheus.DefBuckets,
	})

	// IndexTasks 按结果统计片段索引任务数。
	IndexTasks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "index_tasks_total",
		Help:      "Chunk index tasks processed, by result.",
	}, []string{"result"})
)

// Handler 返回 /metrics 的 HTTP 处理器。
func Handler() http.Handler {
	return promhttp.Handler()
}
