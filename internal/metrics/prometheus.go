package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// MetricPrefix は全メトリクス名の接頭辞
const MetricPrefix = "cakery_"

var operationsDesc = prometheus.NewDesc(
	MetricPrefix+"operations_total",
	"Number of measured operations by outcome",
	[]string{"outcome"},
	nil,
)

var latencyDesc = prometheus.NewDesc(
	MetricPrefix+"operation_latency_seconds",
	"Sampled operation latency",
	[]string{"quantile"},
	nil,
)

var errorsDesc = prometheus.NewDesc(
	MetricPrefix+"backend_errors_total",
	"Cumulative backend failures by operation",
	[]string{"op"},
	nil,
)

var resultDesc = prometheus.NewDesc(
	MetricPrefix+"reported_result_mean",
	"Mean of a value reported by the backend itself",
	[]string{"name"},
	nil,
)

// RunCollector は実行のメトリクスとエラー数と報告値を公開する。どれもnilでよい
type RunCollector struct {
	metrics  *Metrics
	counters *ErrorCounters
	unit     *Unit
}

// NewRunCollector はコレクタを作成する
func NewRunCollector(m *Metrics, c *ErrorCounters, u *Unit) *RunCollector {
	return &RunCollector{metrics: m, counters: c, unit: u}
}

// Register はregにcを登録する
func (c *RunCollector) Register(reg prometheus.Registerer) error {
	return reg.Register(c)
}

// Describe はprometheus.Collectorを実装する
func (c *RunCollector) Describe(desc chan<- *prometheus.Desc) {
	desc <- operationsDesc
	desc <- latencyDesc
	desc <- errorsDesc
	desc <- resultDesc
}

// Collect はprometheus.Collectorを実装する
func (c *RunCollector) Collect(metrics chan<- prometheus.Metric) {
	if c.metrics != nil {
		metrics <- prometheus.MustNewConstMetric(operationsDesc, prometheus.CounterValue,
			float64(c.metrics.SuccessRequests()), "success")
		metrics <- prometheus.MustNewConstMetric(operationsDesc, prometheus.CounterValue,
			float64(c.metrics.FailedRequests()), "failure")
		metrics <- prometheus.MustNewConstMetric(latencyDesc, prometheus.GaugeValue,
			c.metrics.P50Latency().Seconds(), "0.5")
		metrics <- prometheus.MustNewConstMetric(latencyDesc, prometheus.GaugeValue,
			c.metrics.P99Latency().Seconds(), "0.99")
	}
	if c.counters != nil {
		metrics <- prometheus.MustNewConstMetric(errorsDesc, prometheus.CounterValue,
			float64(c.counters.PutErrors()), "put")
		metrics <- prometheus.MustNewConstMetric(errorsDesc, prometheus.CounterValue,
			float64(c.counters.GetErrors()), "get")
	}
	if c.unit != nil {
		for _, s := range c.unit.Summaries() {
			metrics <- prometheus.MustNewConstMetric(resultDesc, prometheus.GaugeValue, s.Mean, s.Name)
		}
	}
}
