// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 同期結果のラベル値
const (
	SyncCreated  = "created"
	SyncUpdated  = "updated"
	SyncRejected = "rejected"
	SyncConflict = "conflict"
	SyncError    = "error"
)

// 購読イベントのラベル値
const (
	PremiumPurchased = "purchased"
	PremiumCancelled = "cancelled"
	PremiumExpired   = "expired"
)

// MetricsCollector はメトリクス収集のインターフェース。
// サービス層、認証、ワーカーから利用する。
type MetricsCollector interface {
	RecordSync(result string)
	RecordAntiCheatRejection(rule string)
	RecordTokenRejected(reason string)
	RecordJWKSFetch(err error, latency time.Duration)
	RecordPremiumEvent(event string, count int)
	RecordPanic(path string)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	syncs         *prometheus.CounterVec
	antiCheat     *prometheus.CounterVec
	tokenRejected *prometheus.CounterVec
	jwksFetches   *prometheus.CounterVec
	jwksLatency   prometheus.Histogram
	premiumEvents *prometheus.CounterVec
	panics        *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		syncs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grosync_sync_total",
			Help: "プロフィール同期の結果別件数",
		}, []string{"result"}),
		antiCheat: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grosync_anticheat_rejections_total",
			Help: "アンチチート検査で拒否した同期の規則別件数",
		}, []string{"rule"}),
		tokenRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grosync_token_rejected_total",
			Help: "認証で拒否したリクエストの理由別件数",
		}, []string{"reason"}),
		jwksFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grosync_jwks_fetch_total",
			Help: "署名鍵セット取得の結果別件数",
		}, []string{"result"}),
		jwksLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "grosync_jwks_fetch_latency_seconds",
			Help:    "署名鍵セット取得のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		premiumEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grosync_premium_events_total",
			Help: "プレミアム購読の購入・解約・失効の件数",
		}, []string{"event"}),
		panics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grosync_http_panics_total",
			Help: "ハンドラーで回復したpanicの件数",
		}, []string{"route"}),
	}

	reg.MustRegister(
		c.syncs,
		c.antiCheat,
		c.tokenRejected,
		c.jwksFetches,
		c.jwksLatency,
		c.premiumEvents,
		c.panics,
	)

	return c
}

// RecordSync は同期結果を記録する。
func (c *Collector) RecordSync(result string) {
	c.syncs.WithLabelValues(result).Inc()
}

// RecordAntiCheatRejection はアンチチートによる拒否を記録する。
func (c *Collector) RecordAntiCheatRejection(rule string) {
	c.antiCheat.WithLabelValues(rule).Inc()
}

// RecordTokenRejected は認証失敗を記録する。
func (c *Collector) RecordTokenRejected(reason string) {
	c.tokenRejected.WithLabelValues(reason).Inc()
}

// RecordJWKSFetch は署名鍵セット取得の結果とレイテンシを記録する。
func (c *Collector) RecordJWKSFetch(err error, latency time.Duration) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	c.jwksFetches.WithLabelValues(result).Inc()
	c.jwksLatency.Observe(latency.Seconds())
}

// RecordPremiumEvent は購読イベントを件数分記録する。
func (c *Collector) RecordPremiumEvent(event string, count int) {
	c.premiumEvents.WithLabelValues(event).Add(float64(count))
}

// RecordPanic は回復したpanicをルートパターン別に記録する。
func (c *Collector) RecordPanic(route string) {
	c.panics.WithLabelValues(route).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop は何も記録しないMetricsCollector。テストやメトリクス無効時に使用する。
type Nop struct{}

func (Nop) RecordSync(string)                    {}
func (Nop) RecordAntiCheatRejection(string)      {}
func (Nop) RecordTokenRejected(string)           {}
func (Nop) RecordJWKSFetch(error, time.Duration) {}
func (Nop) RecordPremiumEvent(string, int)       {}
func (Nop) RecordPanic(string)                   {}
