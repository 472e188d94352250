// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// 生成処理・ジョブキュー・配信ハンドラから利用する。
type MetricsCollector interface {
	RecordGeneration(result string)
	RecordGenerationLatency(duration time.Duration)
	RecordItemsRendered(count int)
	RecordFeedServed(found bool)
	RecordJob(jobType, outcome string)
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	generations       *prometheus.CounterVec
	generationLatency prometheus.Histogram
	itemsRendered     prometheus.Counter
	feedsServed       *prometheus.CounterVec
	jobs              *prometheus.CounterVec
	httpStatus        *prometheus.CounterVec
}

var _ MetricsCollector = (*Collector)(nil)

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shoppingfeed_generations_total",
			Help: "結果別のフィード生成回数",
		}, []string{"result"}),
		generationLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "shoppingfeed_generation_latency_seconds",
			Help:    "フィード生成のレイテンシ（秒）",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 180},
		}),
		itemsRendered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shoppingfeed_items_rendered_total",
			Help: "フィードに出力されたアイテムの合計数",
		}),
		feedsServed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shoppingfeed_feeds_served_total",
			Help: "フィード配信リクエスト数（found=true/false）",
		}, []string{"found"}),
		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shoppingfeed_jobs_total",
			Help: "ジョブ種別・結果別のバックグラウンドジョブ処理数",
		}, []string{"type", "outcome"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shoppingfeed_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.generations,
		c.generationLatency,
		c.itemsRendered,
		c.feedsServed,
		c.jobs,
		c.httpStatus,
	)

	return c
}

// RecordGeneration はフィード生成の結果（regenerated/skipped/failed）を記録する。
func (c *Collector) RecordGeneration(result string) {
	c.generations.WithLabelValues(result).Inc()
}

// RecordGenerationLatency はフィード生成のレイテンシを記録する。
func (c *Collector) RecordGenerationLatency(duration time.Duration) {
	c.generationLatency.Observe(duration.Seconds())
}

// RecordItemsRendered は出力されたアイテム数を記録する。
func (c *Collector) RecordItemsRendered(count int) {
	c.itemsRendered.Add(float64(count))
}

// RecordFeedServed はフィード配信の成否を記録する。
func (c *Collector) RecordFeedServed(found bool) {
	c.feedsServed.WithLabelValues(strconv.FormatBool(found)).Inc()
}

// RecordJob はジョブの処理結果を記録する。
func (c *Collector) RecordJob(jobType, outcome string) {
	c.jobs.WithLabelValues(jobType, outcome).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
