// Package telemetry exposes run progress as Prometheus metrics.
package telemetry

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"breachbench/internal/benchmark"
	"breachbench/internal/record"
)

const (
	namespace = "breachbench"
	subsystem = "runner"
)

// Metrics is a benchmark.Observer backed by its own registry.
type Metrics struct {
	Registry *prometheus.Registry

	operations *prometheus.CounterVec
	failures   *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	gas        *prometheus.HistogramVec
	iteration  prometheus.Gauge
	state      *prometheus.GaugeVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "operations_total",
			Help:      "Confirmed operations by kind.",
		}, []string{"kind"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "operation_failures_total",
			Help:      "Failed operations by kind.",
		}, []string{"kind"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "operation_latency_seconds",
			Help:      "Recorded operation latency by kind.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"kind"}),
		gas: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "operation_gas",
			Help:      "Gas used by mutating operations.",
			Buckets:   prometheus.ExponentialBuckets(20000, 1.5, 10),
		}, []string{"kind"}),
		iteration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "iteration",
			Help:      "Current iteration, 1-based.",
		}),
		state: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "state",
			Help:      "1 for the current orchestrator state, 0 otherwise.",
		}, []string{"state"}),
	}
	m.Registry.MustRegister(m.operations, m.failures, m.latency, m.gas, m.iteration, m.state)
	return m
}

func (m *Metrics) StateChanged(from, to benchmark.State, iteration int) {
	m.state.WithLabelValues(from.String()).Set(0)
	m.state.WithLabelValues(to.String()).Set(1)
	m.iteration.Set(float64(iteration))
}

func (m *Metrics) OperationCompleted(o record.Outcome) {
	kind := o.Op.Kind.String()
	m.operations.WithLabelValues(kind).Inc()
	m.latency.WithLabelValues(kind).Observe(o.Latency.Seconds())
	if o.Op.Kind.Mutating() {
		m.gas.WithLabelValues(kind).Observe(float64(o.Cost))
	}
}

func (m *Metrics) OperationFailed(op record.Operation, _ error) {
	m.failures.WithLabelValues(op.Kind.String()).Inc()
}

// Serve exposes /metrics on addr until ctx is done. It returns the bound
// address, which differs from addr when the port is 0.
func (m *Metrics) Serve(ctx context.Context, addr string, log logrus.FieldLogger) (string, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", errors.Wrapf(err, "listen %s", addr)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("metrics server stopped")
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	bound := ln.Addr().String()
	log.WithField("listen", bound).Info("metrics enabled")
	return bound, nil
}
