// Package metrics 引擎指标
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nerdneilsfield/go-overlay-translator/pkg/overlay"
)

// Metrics 一组引擎指标，使用独立的注册表
type Metrics struct {
	Registry *prometheus.Registry

	Extractions       prometheus.Counter
	ExtractDuration   prometheus.Histogram
	Descriptors       prometheus.Gauge
	Patches           *prometheus.CounterVec
	Refreshes         prometheus.Counter
	StoreRecords      *prometheus.GaugeVec
	SuggestionResults *prometheus.CounterVec
}

// New 创建并注册指标
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Extractions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "overlay_extractions_total",
			Help: "Total number of text extraction passes.",
		}),
		ExtractDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "overlay_extract_duration_seconds",
			Help:    "Duration of text extraction passes in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
		Descriptors: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "overlay_descriptors",
			Help: "Number of translatable nodes found by the last extraction.",
		}),
		Patches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "overlay_patches_total",
			Help: "Total number of preview patches, labeled by result.",
		}, []string{"result"}),
		Refreshes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "overlay_refreshes_total",
			Help: "Total number of re-extractions triggered by page changes.",
		}),
		StoreRecords: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "overlay_store_records",
			Help: "Number of stored translations, labeled by language and status.",
		}, []string{"lang", "status"}),
		SuggestionResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "overlay_suggestions_total",
			Help: "Total number of suggestion requests, labeled by result.",
		}, []string{"result"}),
	}

	m.Registry.MustRegister(
		m.Extractions,
		m.ExtractDuration,
		m.Descriptors,
		m.Patches,
		m.Refreshes,
		m.StoreRecords,
		m.SuggestionResults,
	)
	return m
}

// Hooks 返回记录指标的引擎回调，next 中已有的回调会继续被调用
func (m *Metrics) Hooks(next overlay.Hooks) overlay.Hooks {
	return overlay.Hooks{
		OnExtract: func(count int, elapsed time.Duration) {
			m.Extractions.Inc()
			m.ExtractDuration.Observe(elapsed.Seconds())
			m.Descriptors.Set(float64(count))
			if next.OnExtract != nil {
				next.OnExtract(count, elapsed)
			}
		},
		OnPatch: func(ok bool) {
			result := "applied"
			if !ok {
				result = "skipped"
			}
			m.Patches.WithLabelValues(result).Inc()
			if next.OnPatch != nil {
				next.OnPatch(ok)
			}
		},
		OnRefresh: func(ds []overlay.Descriptor) {
			m.Refreshes.Inc()
			if next.OnRefresh != nil {
				next.OnRefresh(ds)
			}
		},
	}
}

// ObserveSuggestion 记录一次建议请求的结果
func (m *Metrics) ObserveSuggestion(err error) {
	if err != nil {
		m.SuggestionResults.WithLabelValues("error").Inc()
		return
	}
	m.SuggestionResults.WithLabelValues("ok").Inc()
}

// WriteTextfile 以 node_exporter textfile 格式写出全部指标
func (m *Metrics) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}
