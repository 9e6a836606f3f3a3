// Package metrics 导出聚合搜索的 Prometheus 指标
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 引擎调用结果标签
const (
	OutcomeSuccess = "success"
	OutcomeEmpty   = "empty"
)

var (
	// SearchesTotal 聚合搜索次数，status 为 ok / partial / failed
	SearchesTotal *prometheus.CounterVec

	// SearchDuration 一次聚合搜索的总耗时
	SearchDuration prometheus.Histogram

	// EngineRequestsTotal 单个引擎的调用结果，outcome 为 success / empty 或错误类型名
	EngineRequestsTotal *prometheus.CounterVec

	// EngineDuration 单个引擎的耗时
	EngineDuration *prometheus.HistogramVec

	// EngineResults 单个引擎返回的结果数
	EngineResults *prometheus.HistogramVec
)

func init() {
	SearchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "metasearch",
			Name:      "searches_total",
			Help:      "Total number of aggregated searches",
		},
		[]string{"status"},
	)

	SearchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "metasearch",
			Name:      "search_duration_seconds",
			Help:      "Aggregated search duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
	)

	EngineRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "metasearch",
			Subsystem: "engine",
			Name:      "requests_total",
			Help:      "Total engine calls by outcome",
		},
		[]string{"engine", "outcome"},
	)

	EngineDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "metasearch",
			Subsystem: "engine",
			Name:      "duration_seconds",
			Help:      "Engine call duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"engine"},
	)

	EngineResults = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "metasearch",
			Subsystem: "engine",
			Name:      "results",
			Help:      "Number of results returned by an engine call",
			Buckets:   []float64{0, 1, 5, 10, 20, 50},
		},
		[]string{"engine"},
	)

	prometheus.MustRegister(SearchesTotal)
	prometheus.MustRegister(SearchDuration)
	prometheus.MustRegister(EngineRequestsTotal)
	prometheus.MustRegister(EngineDuration)
	prometheus.MustRegister(EngineResults)
}

// RecordEngine 记录一次引擎调用
func RecordEngine(engine, outcome string, results int, durationSec float64) {
	if outcome == "" {
		outcome = "unknown"
	}
	EngineRequestsTotal.WithLabelValues(engine, outcome).Inc()
	EngineDuration.WithLabelValues(engine).Observe(durationSec)
	if outcome == OutcomeSuccess {
		EngineResults.WithLabelValues(engine).Observe(float64(results))
	}
}

// RecordSearch 记录一次聚合搜索
func RecordSearch(status string, durationSec float64) {
	SearchesTotal.WithLabelValues(status).Inc()
	SearchDuration.Observe(durationSec)
}

// Handler 暴露 /metrics
func Handler() http.Handler {
	return promhttp.Handler()
}
