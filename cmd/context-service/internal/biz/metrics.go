package biz

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PruneTotal 裁剪调用总数
	PruneTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "context_service",
			Subsystem: "pruning",
			Name:      "total",
			Help:      "Total number of pruning calls",
		},
		[]string{"strategy"},
	)

	// PruneDuration 裁剪耗时
	PruneDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "context_service",
			Subsystem: "pruning",
			Name:      "duration_seconds",
			Help:      "Pruning duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"strategy"},
	)

	// PruneRetainedTokens 裁剪后保留的Token数
	PruneRetainedTokens = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "context_service",
			Subsystem: "pruning",
			Name:      "retained_tokens",
			Help:      "Number of tokens retained after pruning",
			Buckets:   []float64{100, 500, 1000, 2000, 4000, 8000, 16000, 32000},
		},
	)

	// PruneRetainRatio 消息保留比例
	PruneRetainRatio = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "context_service",
			Subsystem: "pruning",
			Name:      "retain_ratio",
			Help:      "Fraction of messages retained after pruning",
			Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		},
	)

	// ResultCacheTotal 结果缓存命中/未命中计数
	ResultCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "context_service",
			Subsystem: "cache",
			Name:      "result_total",
			Help:      "Pruning result cache lookups",
		},
		[]string{"outcome"},
	)
)
