package telemetry

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/k1s0-platform/system-server-go-configdeploy/internal/domain/model"
)

// Metrics は Prometheus メトリクスをまとめる。
// HTTP の RED メトリクスに加え、フラグ評価とデプロイメントのカウンタを持つ。
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	GRPCHandledTotal     *prometheus.CounterVec
	FlagEvaluationsTotal *prometheus.CounterVec
	DeploymentsTotal     *prometheus.CounterVec
	DeploymentItemsTotal *prometheus.CounterVec
}

// NewMetrics は専用レジストリにメトリクスを登録して返す。
// serviceName はメトリクスの service ラベルに使用される。
func NewMetrics(serviceName string) *Metrics {
	labels := prometheus.Labels{"service": serviceName}
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "http_requests_total",
				Help:        "Total number of HTTP requests",
				ConstLabels: labels,
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:        "http_request_duration_seconds",
				Help:        "Histogram of HTTP request latency",
				ConstLabels: labels,
				Buckets:     []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		GRPCHandledTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "grpc_server_handled_total",
				Help:        "Total number of RPCs completed on the server",
				ConstLabels: labels,
			},
			[]string{"grpc_method", "grpc_code"},
		),
		FlagEvaluationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "configdeploy_flag_evaluations_total",
				Help:        "Total number of feature flag evaluations",
				ConstLabels: labels,
			},
			[]string{"result", "reason"},
		),
		DeploymentsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "configdeploy_deployments_total",
				Help:        "Total number of deployments reaching a status",
				ConstLabels: labels,
			},
			[]string{"status"},
		),
		DeploymentItemsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "configdeploy_deployment_items_total",
				Help:        "Total number of processed deployment items",
				ConstLabels: labels,
			},
			[]string{"action", "status"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.GRPCHandledTotal,
		m.FlagEvaluationsTotal,
		m.DeploymentsTotal,
		m.DeploymentItemsTotal,
	)
	return m
}

// RecordFlagEvaluation はフラグ評価の結果を記録する。
func (m *Metrics) RecordFlagEvaluation(enabled bool, reason string) {
	m.FlagEvaluationsTotal.WithLabelValues(strconv.FormatBool(enabled), reason).Inc()
}

// RecordDeployment はデプロイメントの到達ステータスを記録する。
func (m *Metrics) RecordDeployment(status model.DeploymentStatus) {
	m.DeploymentsTotal.WithLabelValues(string(status)).Inc()
}

// RecordDeploymentItem は処理済みデプロイメント項目を記録する。
func (m *Metrics) RecordDeploymentItem(action model.DeploymentAction, status model.ItemStatus) {
	m.DeploymentItemsTotal.WithLabelValues(string(action), string(status)).Inc()
}

// RecordGRPC は gRPC 呼び出しの結果を記録する。
func (m *Metrics) RecordGRPC(method, code string) {
	m.GRPCHandledTotal.WithLabelValues(method, code).Inc()
}

// Registry はメトリクスのレジストリを返す。
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler は /metrics エンドポイント用の HTTP ハンドラを返す。
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
