package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Maxlinn/LangPipe/internal/core/completion"
)

const namespace = "langpipe"

// Collector は補完呼び出しのメトリクスを Prometheus 形式で集計する
// completion.UsageRecorder と completion.FailureRecorder の両方を実装する
type Collector struct {
	registry *prometheus.Registry

	requests *prometheus.CounterVec
	tokens   *prometheus.CounterVec
	failures *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

// NewCollector は専用のレジストリに登録した Collector を作成する
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "completion_requests_total",
			Help:      "Number of successful completion requests.",
		}, []string{"model"}),
		tokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "completion_tokens_total",
			Help:      "Tokens consumed by completion requests.",
		}, []string{"model", "type"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "completion_failures_total",
			Help:      "Number of failed completion requests by error kind.",
		}, []string{"model", "kind"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "completion_latency_seconds",
			Help:      "Latency of successful completion requests.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		}, []string{"model"}),
	}

	c.registry.MustRegister(c.requests, c.tokens, c.failures, c.latency)
	return c
}

// Registry はメトリクスを登録したレジストリを返す
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler はメトリクスを公開する HTTP ハンドラを返す
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// RecordUsage は成功した呼び出しを集計する
func (c *Collector) RecordUsage(_ context.Context, rec completion.UsageRecord) error {
	c.requests.WithLabelValues(rec.Model).Inc()
	c.tokens.WithLabelValues(rec.Model, "prompt").Add(float64(rec.Usage.PromptTokens))
	c.tokens.WithLabelValues(rec.Model, "completion").Add(float64(rec.Usage.CompletionTokens))
	c.tokens.WithLabelValues(rec.Model, "total").Add(float64(rec.Usage.TotalTokens))
	c.latency.WithLabelValues(rec.Model).Observe(rec.Latency.Seconds())
	return nil
}

// RecordFailure は失敗した呼び出しを集計する
func (c *Collector) RecordFailure(_ context.Context, rec completion.FailureRecord) error {
	c.failures.WithLabelValues(rec.Model, string(rec.Kind)).Inc()
	return nil
}

var (
	_ completion.UsageRecorder   = (*Collector)(nil)
	_ completion.FailureRecorder = (*Collector)(nil)
)
