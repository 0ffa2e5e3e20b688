// Package metrics holds the Prometheus collectors and the OpenTelemetry
// tracer used by the account service.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const namespace = "medaccount"

const (
	ResultOK    = "ok"
	ResultError = "error"
)

type Metrics struct {
	Operations     *prometheus.CounterVec
	Duration       *prometheus.HistogramVec
	ActiveSessions prometheus.Gauge
	Tracer         trace.Tracer

	gatherer prometheus.Gatherer
}

// New creates the collectors and registers them with reg. Collectors that are
// already registered are reused.
func New(reg prometheus.Registerer, gatherer prometheus.Gatherer) (*Metrics, error) {
	operations := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "account",
			Name:      "operations_total",
			Help:      "Total number of account operations by result",
		},
		[]string{"operation", "result"},
	)

	duration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "account",
			Name:      "operation_duration_seconds",
			Help:      "Duration of account operations in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	active := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "active",
			Help:      "Sessions opened minus sessions closed by this process",
		},
	)

	var err error
	if operations, err = register(reg, operations); err != nil {
		return nil, err
	}
	if duration, err = register(reg, duration); err != nil {
		return nil, err
	}
	if active, err = register(reg, active); err != nil {
		return nil, err
	}

	return &Metrics{
		Operations:     operations,
		Duration:       duration,
		ActiveSessions: active,
		Tracer:         otel.Tracer("github.com/dmitrijs2005/medaccount"),
		gatherer:       gatherer,
	}, nil
}

// NewDefault registers with a fresh registry. Each call is independent,
// which is what tests want.
func NewDefault() *Metrics {
	reg := prometheus.NewRegistry()
	m, err := New(reg, reg)
	if err != nil {
		panic(err)
	}
	return m
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// Observe records one finished operation.
func (m *Metrics) Observe(operation string, started time.Time, err error) {
	if m == nil {
		return
	}
	result := ResultOK
	if err != nil {
		result = ResultError
	}
	m.Operations.WithLabelValues(operation, result).Inc()
	m.Duration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}

// SessionsOpened and SessionsClosed move the active sessions gauge.
func (m *Metrics) SessionsOpened(n int) {
	if m != nil {
		m.ActiveSessions.Add(float64(n))
	}
}

func (m *Metrics) SessionsClosed(n int64) {
	if m != nil {
		m.ActiveSessions.Sub(float64(n))
	}
}

// Start opens a span named after the operation.
func (m *Metrics) Start(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := otel.Tracer("github.com/dmitrijs2005/medaccount")
	if m != nil {
		tracer = m.Tracer
	}
	return tracer.Start(ctx, operation, trace.WithAttributes(attrs...))
}

// Handler serves the gathered metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// InitTracing installs an SDK tracer provider as the global one and returns
// its shutdown function. Spans are sampled but not exported until an exporter
// is attached.
func InitTracing(serviceName, version string) func(context.Context) error {
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())),
		sdktrace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", serviceName),
			attribute.String("service.version", version),
		)),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown
}
