// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 招待・会話解決の結果ラベル
const (
	OutcomeCreated  = "created"  // 新規作成した
	OutcomeExisting = "existing" // 既存の行を返した
	OutcomeRace     = "race"     // 一意制約違反を再読込で解決した
)

// MetricsCollector はメトリクス収集のインターフェース。
// サービス層、ミドルウェア、ワーカーから利用する。
type MetricsCollector interface {
	RecordInviteRedeemed(outcome string)
	RecordConversationResolved(outcome string)
	RecordViewComputed(duration time.Duration)
	RecordAccessDenied(reason string)
	RecordHTTPStatus(statusCode int)
	RecordSessionsDeleted(count int64)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	invitesRedeemed       *prometheus.CounterVec
	conversationsResolved *prometheus.CounterVec
	viewLatency           prometheus.Histogram
	accessDenied          *prometheus.CounterVec
	httpStatus            *prometheus.CounterVec
	sessionsDeleted       prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		invitesRedeemed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "guildhall_invites_redeemed_total",
			Help: "招待コード利用の結果別件数",
		}, []string{"outcome"}),
		conversationsResolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "guildhall_conversations_resolved_total",
			Help: "1対1会話解決の結果別件数",
		}, []string{"outcome"}),
		viewLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "guildhall_view_compute_seconds",
			Help:    "サーバー表示情報の計算時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		accessDenied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "guildhall_access_denied_total",
			Help: "権限不足・非メンバーによる拒否件数",
		}, []string{"reason"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "guildhall_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		sessionsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "guildhall_sessions_deleted_total",
			Help: "クリーンアップで削除した期限切れセッションの合計数",
		}),
	}

	reg.MustRegister(
		c.invitesRedeemed,
		c.conversationsResolved,
		c.viewLatency,
		c.accessDenied,
		c.httpStatus,
		c.sessionsDeleted,
	)

	return c
}

// RecordInviteRedeemed は招待コード利用の結果を記録する。
func (c *Collector) RecordInviteRedeemed(outcome string) {
	c.invitesRedeemed.WithLabelValues(outcome).Inc()
}

// RecordConversationResolved は会話解決の結果を記録する。
func (c *Collector) RecordConversationResolved(outcome string) {
	c.conversationsResolved.WithLabelValues(outcome).Inc()
}

// RecordViewComputed はサーバー表示情報の計算時間を記録する。
func (c *Collector) RecordViewComputed(duration time.Duration) {
	c.viewLatency.Observe(duration.Seconds())
}

// RecordAccessDenied はアクセス拒否をエラーコード別に記録する。
func (c *Collector) RecordAccessDenied(reason string) {
	c.accessDenied.WithLabelValues(reason).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordSessionsDeleted は削除したセッション数を記録する。
func (c *Collector) RecordSessionsDeleted(count int64) {
	c.sessionsDeleted.Add(float64(count))
}

// NopCollector は何も記録しないMetricsCollector。
type NopCollector struct{}

func (NopCollector) RecordInviteRedeemed(string) {}
func (NopCollector) RecordConversationResolved(string) {}
func (NopCollector) RecordViewComputed(time.Duration) {}
func (NopCollector) RecordAccessDenied(string) {}
func (NopCollector) RecordHTTPStatus(int) {}
func (NopCollector) RecordSessionsDeleted(int64) {}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = NopCollector{}
)

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
