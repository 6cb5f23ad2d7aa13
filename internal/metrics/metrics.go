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
// レシピゲートウェイ、献立サービス、レート制限ミドルウェアから利用する。
type MetricsCollector interface {
	// RecordUpstreamResponse は外部レシピAPIの応答ステータスとレイテンシを記録する。
	RecordUpstreamResponse(endpoint string, statusCode int, duration time.Duration)
	// RecordUpstreamFailure は外部レシピAPI呼び出しの失敗をエラー種別ごとに記録する。
	RecordUpstreamFailure(endpoint string, code string)
	// RecordCapacityRejected は献立の上限超過による追加拒否を記録する。
	RecordCapacityRejected()
	// RecordRateLimited はレート制限による拒否をスコープごとに記録する。
	RecordRateLimited(scope string)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	upstreamStatus   *prometheus.CounterVec
	upstreamLatency  *prometheus.HistogramVec
	upstreamFailures *prometheus.CounterVec
	capacityRejected prometheus.Counter
	rateLimited      *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		upstreamStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mealplan_upstream_responses_total",
			Help: "外部レシピAPIのステータスコード別レスポンス数",
		}, []string{"endpoint", "status_code"}),
		upstreamLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mealplan_upstream_latency_seconds",
			Help:    "外部レシピAPIのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
		upstreamFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mealplan_upstream_failures_total",
			Help: "外部レシピAPI呼び出しのエラー種別ごとの失敗数",
		}, []string{"endpoint", "code"}),
		capacityRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mealplan_capacity_rejected_total",
			Help: "上限超過で拒否された食事追加の合計数",
		}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mealplan_rate_limited_total",
			Help: "レート制限で拒否されたリクエスト数",
		}, []string{"scope"}),
	}

	reg.MustRegister(
		c.upstreamStatus,
		c.upstreamLatency,
		c.upstreamFailures,
		c.capacityRejected,
		c.rateLimited,
	)

	return c
}

// RecordUpstreamResponse は外部レシピAPIの応答を記録する。
func (c *Collector) RecordUpstreamResponse(endpoint string, statusCode int, duration time.Duration) {
	c.upstreamStatus.WithLabelValues(endpoint, strconv.Itoa(statusCode)).Inc()
	c.upstreamLatency.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordUpstreamFailure は外部レシピAPI呼び出しの失敗を記録する。
func (c *Collector) RecordUpstreamFailure(endpoint string, code string) {
	c.upstreamFailures.WithLabelValues(endpoint, code).Inc()
}

// RecordCapacityRejected は上限超過による追加拒否を記録する。
func (c *Collector) RecordCapacityRejected() {
	c.capacityRejected.Inc()
}

// RecordRateLimited はレート制限による拒否を記録する。
func (c *Collector) RecordRateLimited(scope string) {
	c.rateLimited.WithLabelValues(scope).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// NopCollector は何も記録しないMetricsCollector。テストや計測不要な構成で使う。
type NopCollector struct{}

func (NopCollector) RecordUpstreamResponse(string, int, time.Duration) {}
func (NopCollector) RecordUpstreamFailure(string, string) {}
func (NopCollector) RecordCapacityRejected() {}
func (NopCollector) RecordRateLimited(string) {}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = NopCollector{}
)
