// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ハンドラーやワーカーから利用する。
type MetricsCollector interface {
	RecordLoginSuccess()
	RecordLoginFailure(reason string)
	RecordLogout()
	RecordSessionsSwept(count int64)
	RecordSchemaServed()
	ObserveHTTPStatus(method, path string, status int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	loginSuccess  prometheus.Counter
	loginFail     *prometheus.CounterVec
	logout        prometheus.Counter
	sessionsSwept prometheus.Counter
	schemaServed  prometheus.Counter
	httpStatus    *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		loginSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "colddrive_login_success_total",
			Help: "ログイン成功の合計数",
		}),
		loginFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "colddrive_login_fail_total",
			Help: "ログイン失敗の合計数（失敗段階別）",
		}, []string{"reason"}),
		logout: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "colddrive_logout_total",
			Help: "ログアウトの合計数",
		}),
		sessionsSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "colddrive_sessions_swept_total",
			Help: "スイープで削除された期限切れセッションの合計数",
		}),
		schemaServed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "colddrive_schema_served_total",
			Help: "スキーマ配信の合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "colddrive_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"method", "status_code"}),
	}

	reg.MustRegister(
		c.loginSuccess,
		c.loginFail,
		c.logout,
		c.sessionsSwept,
		c.schemaServed,
		c.httpStatus,
	)

	return c
}

// RecordLoginSuccess はログイン成功を記録する。
func (c *Collector) RecordLoginSuccess() {
	c.loginSuccess.Inc()
}

// RecordLoginFailure はログイン失敗を失敗段階別に記録する。
// reasonにはリダイレクトエラーコード（oauth_error等）を渡す。
func (c *Collector) RecordLoginFailure(reason string) {
	c.loginFail.WithLabelValues(reason).Inc()
}

// RecordLogout はログアウトを記録する。
func (c *Collector) RecordLogout() {
	c.logout.Inc()
}

// RecordSessionsSwept はスイープで削除されたセッション数を記録する。
func (c *Collector) RecordSessionsSwept(count int64) {
	c.sessionsSwept.Add(float64(count))
}

// RecordSchemaServed はスキーマ配信を記録する。
func (c *Collector) RecordSchemaServed() {
	c.schemaServed.Inc()
}

// ObserveHTTPStatus はHTTPステータスコードを記録する。
// pathはカーディナリティ抑制のためラベルに含めない。
func (c *Collector) ObserveHTTPStatus(method, path string, status int) {
	c.httpStatus.WithLabelValues(method, strconv.Itoa(status)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
