// Package metrics exposes Prometheus metrics for the API, the LLM client and
// background enrichment.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"issuecompass/internal/ai"
	"issuecompass/internal/enrich"
)

const namespace = "issuecompass"

type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	LLMRequestsTotal   *prometheus.CounterVec
	LLMRequestDuration *prometheus.HistogramVec

	EnrichmentRunsTotal     prometheus.Counter
	EnrichmentItemsTotal    *prometheus.CounterVec
	EnrichmentRequestsTotal prometheus.Counter
}

// New registers every collector on a private registry, so several instances
// can coexist in one process.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route"},
		),

		LLMRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "llm_requests_total",
				Help:      "Total number of analysis requests sent to the LLM service",
			},
			[]string{"kind", "outcome"},
		),
		LLMRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "llm_request_duration_seconds",
				Help:      "Duration of LLM requests in seconds",
				Buckets:   []float64{.25, .5, 1, 2.5, 5, 10, 20, 40, 80},
			},
			[]string{"kind"},
		),

		EnrichmentRunsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enrichment_runs_total",
			Help:      "Total number of drained enrichment runs",
		}),
		EnrichmentItemsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "enrichment_items_total",
				Help:      "Items finished by enrichment runs, by outcome",
			},
			[]string{"outcome"},
		),
		EnrichmentRequestsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enrichment_requests_total",
			Help:      "Detail requests issued by enrichment runs, retries included",
		}),
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// GinMiddleware records every request under its route template, so ids in
// paths do not explode label cardinality.
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.HTTPRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.HTTPRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

// RecordLLMRequest records one remote call. kind is "broad" or "detail".
func (m *Metrics) RecordLLMRequest(kind string, err error, duration time.Duration) {
	m.LLMRequestsTotal.WithLabelValues(kind, outcome(err)).Inc()
	m.LLMRequestDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// EnrichmentDrained records the outcome of one finished run.
func (m *Metrics) EnrichmentDrained(res enrich.RunResult) {
	m.EnrichmentRunsTotal.Inc()
	m.EnrichmentItemsTotal.WithLabelValues("detailed").Add(float64(len(res.Succeeded)))
	m.EnrichmentItemsTotal.WithLabelValues("abandoned").Add(float64(len(res.Abandoned)))
	m.EnrichmentItemsTotal.WithLabelValues("skipped").Add(float64(len(res.Skipped)))
	m.EnrichmentRequestsTotal.Add(float64(res.Requests))
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case ai.IsRateLimited(err):
		return "rate_limited"
	case ai.IsMalformed(err):
		return "malformed"
	default:
		return "error"
	}
}

type analysisClient interface {
	RequestBroadAnalysis(ctx context.Context, req ai.BroadRequest) (*ai.BroadResponse, error)
	RequestItemDetail(ctx context.Context, req ai.DetailRequest) (*ai.DetailResponse, error)
}

// InstrumentedClient times every call of the wrapped analysis client.
type InstrumentedClient struct {
	next    analysisClient
	metrics *Metrics
}

func NewInstrumentedClient(next analysisClient, m *Metrics) *InstrumentedClient {
	return &InstrumentedClient{next: next, metrics: m}
}

func (c *InstrumentedClient) RequestBroadAnalysis(ctx context.Context, req ai.BroadRequest) (*ai.BroadResponse, error) {
	start := time.Now()
	resp, err := c.next.RequestBroadAnalysis(ctx, req)
	c.metrics.RecordLLMRequest("broad", err, time.Since(start))
	return resp, err
}

func (c *InstrumentedClient) RequestItemDetail(ctx context.Context, req ai.DetailRequest) (*ai.DetailResponse, error) {
	start := time.Now()
	resp, err := c.next.RequestItemDetail(ctx, req)
	c.metrics.RecordLLMRequest("detail", err, time.Since(start))
	return resp, err
}
