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
// ハンドラーやワーカーから利用する。
type MetricsCollector interface {
	RecordListingCreated()
	RecordListingUpdated()
	RecordListingDeleted()
	RecordHTTPStatus(statusCode int)
	RecordUploadLatency(duration time.Duration)
	RecordUploadBytes(size int64)
	RecordAssetsCleaned(count int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	listingsCreated prometheus.Counter
	listingsUpdated prometheus.Counter
	listingsDeleted prometheus.Counter
	httpStatus      *prometheus.CounterVec
	uploadLatency   prometheus.Histogram
	uploadBytes     prometheus.Counter
	assetsCleaned   prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		listingsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "propman_listings_created_total",
			Help: "作成された物件の合計数",
		}),
		listingsUpdated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "propman_listings_updated_total",
			Help: "更新された物件の合計数",
		}),
		listingsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "propman_listings_deleted_total",
			Help: "削除された物件の合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "propman_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		uploadLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "propman_upload_latency_seconds",
			Help:    "画像アップロードのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		uploadBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "propman_upload_bytes_total",
			Help: "アップロードされた画像の合計バイト数",
		}),
		assetsCleaned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "propman_assets_cleaned_total",
			Help: "GCで削除された孤立アセットの合計数",
		}),
	}

	reg.MustRegister(
		c.listingsCreated,
		c.listingsUpdated,
		c.listingsDeleted,
		c.httpStatus,
		c.uploadLatency,
		c.uploadBytes,
		c.assetsCleaned,
	)

	return c
}

// RecordListingCreated は物件作成を記録する。
func (c *Collector) RecordListingCreated() {
	c.listingsCreated.Inc()
}

// RecordListingUpdated は物件更新を記録する。
func (c *Collector) RecordListingUpdated() {
	c.listingsUpdated.Inc()
}

// RecordListingDeleted は物件削除を記録する。
func (c *Collector) RecordListingDeleted() {
	c.listingsDeleted.Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordUploadLatency は画像アップロードのレイテンシを記録する。
func (c *Collector) RecordUploadLatency(duration time.Duration) {
	c.uploadLatency.Observe(duration.Seconds())
}

// RecordUploadBytes はアップロードされた画像のバイト数を記録する。
func (c *Collector) RecordUploadBytes(size int64) {
	c.uploadBytes.Add(float64(size))
}

// RecordAssetsCleaned はGCで削除された孤立アセット数を記録する。
func (c *Collector) RecordAssetsCleaned(count int) {
	c.assetsCleaned.Add(float64(count))
}

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
