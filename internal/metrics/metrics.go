// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// リポジトリ層、コンテンツサービス、ウォーマーから利用する。
type MetricsCollector interface {
	RecordCacheHit(shape string)
	RecordCacheMiss(shape string)
	RecordQueryLatency(op string, duration time.Duration)
	RecordEntriesPrimed(kind string, count int)
	RecordWarmCycle(duration time.Duration, channels int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	cacheHits      *prometheus.CounterVec
	cacheMisses    *prometheus.CounterVec
	queryLatency   *prometheus.HistogramVec
	entriesPrimed  *prometheus.CounterVec
	warmDuration   prometheus.Histogram
	warmedChannels prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sitecache_cache_hits_total",
			Help: "キャッシュヒットの合計数（キーの形別）",
		}, []string{"shape"}),
		cacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sitecache_cache_misses_total",
			Help: "キャッシュミスの合計数（キーの形別）",
		}, []string{"shape"}),
		queryLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sitecache_query_latency_seconds",
			Help:    "ストレージへのクエリのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		entriesPrimed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sitecache_entries_primed_total",
			Help: "事前に書き込んだキャッシュエントリの合計数",
		}, []string{"kind"}),
		warmDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sitecache_warm_cycle_duration_seconds",
			Help:    "キャッシュウォームサイクルの所要時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		warmedChannels: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sitecache_warmed_channels_total",
			Help: "ウォームサイクルで処理したチャンネルの合計数",
		}),
	}

	reg.MustRegister(
		c.cacheHits,
		c.cacheMisses,
		c.queryLatency,
		c.entriesPrimed,
		c.warmDuration,
		c.warmedChannels,
	)

	return c
}

// RecordCacheHit はキャッシュヒットを記録する。
func (c *Collector) RecordCacheHit(shape string) {
	c.cacheHits.WithLabelValues(shape).Inc()
}

// RecordCacheMiss はキャッシュミスを記録する。
func (c *Collector) RecordCacheMiss(shape string) {
	c.cacheMisses.WithLabelValues(shape).Inc()
}

// RecordQueryLatency はクエリのレイテンシを記録する。
func (c *Collector) RecordQueryLatency(op string, duration time.Duration) {
	c.queryLatency.WithLabelValues(op).Observe(duration.Seconds())
}

// RecordEntriesPrimed は事前に書き込んだエントリ数を記録する。
func (c *Collector) RecordEntriesPrimed(kind string, count int) {
	c.entriesPrimed.WithLabelValues(kind).Add(float64(count))
}

// RecordWarmCycle はウォームサイクルの所要時間と処理チャンネル数を記録する。
func (c *Collector) RecordWarmCycle(duration time.Duration, channels int) {
	c.warmDuration.Observe(duration.Seconds())
	c.warmedChannels.Add(float64(channels))
}

// Nop は何も記録しないMetricsCollector。メトリクスが不要な構成やテストで使う。
type Nop struct{}

func (Nop) RecordCacheHit(string)                   {}
func (Nop) RecordCacheMiss(string)                  {}
func (Nop) RecordQueryLatency(string, time.Duration) {}
func (Nop) RecordEntriesPrimed(string, int)         {}
func (Nop) RecordWarmCycle(time.Duration, int)      {}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
