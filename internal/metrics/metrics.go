// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder はメトリクス収集のインターフェース。
// クレームエンジンや監査ワーカーから利用する。
type Recorder interface {
	RecordClaimSuccess(amount uint64)
	RecordClaimNoop()
	RecordClaimRejected(code string)
	RecordClaimLatency(duration time.Duration)
	RecordCompanyCreated()
	RecordEmployeeCreated()
	SetUnderfundedCompanies(count int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	claimSuccess    prometheus.Counter
	claimNoop       prometheus.Counter
	claimRejected   *prometheus.CounterVec
	tokensReleased  prometheus.Counter
	claimLatency    prometheus.Histogram
	companyCreated  prometheus.Counter
	employeeCreated prometheus.Counter
	underfunded     prometheus.Gauge
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		claimSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vestry_claim_success_total",
			Help: "払い出しを伴うクレーム成功の合計数",
		}),
		claimNoop: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vestry_claim_noop_total",
			Help: "請求可能額ゼロによるno-opクレームの合計数",
		}),
		claimRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vestry_claim_rejected_total",
			Help: "エラーコード別のクレーム拒否数",
		}, []string{"code"}),
		tokensReleased: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vestry_tokens_released_total",
			Help: "クレームで払い出されたトークンの合計量",
		}),
		claimLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "vestry_claim_latency_seconds",
			Help:    "クレーム処理のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		companyCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vestry_company_created_total",
			Help: "作成された企業レコードの合計数",
		}),
		employeeCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vestry_employee_created_total",
			Help: "作成された従業員レコードの合計数",
		}),
		underfunded: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vestry_underfunded_companies",
			Help: "トレジャリー残高が未払い残債務を下回っている企業数",
		}),
	}

	reg.MustRegister(
		c.claimSuccess,
		c.claimNoop,
		c.claimRejected,
		c.tokensReleased,
		c.claimLatency,
		c.companyCreated,
		c.employeeCreated,
		c.underfunded,
	)

	return c
}

// RecordClaimSuccess は払い出しを伴うクレーム成功を記録する。
func (c *Collector) RecordClaimSuccess(amount uint64) {
	c.claimSuccess.Inc()
	c.tokensReleased.Add(float64(amount))
}

// RecordClaimNoop は請求可能額ゼロのno-opクレームを記録する。
func (c *Collector) RecordClaimNoop() {
	c.claimNoop.Inc()
}

// RecordClaimRejected はクレーム拒否をエラーコード別に記録する。
func (c *Collector) RecordClaimRejected(code string) {
	c.claimRejected.WithLabelValues(code).Inc()
}

// RecordClaimLatency はクレーム処理のレイテンシを記録する。
func (c *Collector) RecordClaimLatency(duration time.Duration) {
	c.claimLatency.Observe(duration.Seconds())
}

// RecordCompanyCreated は企業レコードの作成を記録する。
func (c *Collector) RecordCompanyCreated() {
	c.companyCreated.Inc()
}

// RecordEmployeeCreated は従業員レコードの作成を記録する。
func (c *Collector) RecordEmployeeCreated() {
	c.employeeCreated.Inc()
}

// SetUnderfundedCompanies は資金不足の企業数を記録する。
func (c *Collector) SetUnderfundedCompanies(count int) {
	c.underfunded.Set(float64(count))
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
