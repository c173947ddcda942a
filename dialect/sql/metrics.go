package sql

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsDriver wraps an Executor and exports statement latency and error
// counts as Prometheus metrics.
type MetricsDriver struct {
	observed
	duration *prometheus.SummaryVec
	errs     *prometheus.CounterVec
}

// MetricsOption configures the MetricsDriver.
type MetricsOption func(*metricsConfig)

type metricsConfig struct {
	namespace  string
	subsystem  string
	registerer prometheus.Registerer
}

// WithNamespace sets the metric namespace. Default is "rowlink".
func WithNamespace(ns string) MetricsOption {
	return func(c *metricsConfig) { c.namespace = ns }
}

// WithSubsystem sets the metric subsystem.
func WithSubsystem(s string) MetricsOption {
	return func(c *metricsConfig) { c.subsystem = s }
}

// WithRegisterer sets the registerer the metrics are added to.
// Default is prometheus.DefaultRegisterer.
func WithRegisterer(r prometheus.Registerer) MetricsOption {
	return func(c *metricsConfig) { c.registerer = r }
}

// NewMetricsDriver wraps e with Prometheus instrumentation. Two collectors
// are registered: <ns>_statement_duration_seconds, a summary labeled by
// op and dialect, and <ns>_statement_errors_total, a counter with the same
// labels. Registering a second driver with the same names reuses the
// collectors already registered.
func NewMetricsDriver(e Executor, opts ...MetricsOption) (*MetricsDriver, error) {
	cfg := metricsConfig{namespace: "rowlink", registerer: prometheus.DefaultRegisterer}
	for _, opt := range opts {
		opt(&cfg)
	}
	labels := []string{"op", "dialect"}
	duration := prometheus.NewSummaryVec(prometheus.SummaryOpts{
		Namespace: cfg.namespace,
		Subsystem: cfg.subsystem,
		Name:      "statement_duration_seconds",
		Help:      "Duration of SQL statements run through rowlink.",
		Objectives: map[float64]float64{
			0.5:  0.05,
			0.9:  0.01,
			0.99: 0.001,
		},
	}, labels)
	errs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: cfg.namespace,
		Subsystem: cfg.subsystem,
		Name:      "statement_errors_total",
		Help:      "SQL statements run through rowlink that returned an error.",
	}, labels)
	var err error
	if duration, err = register(cfg.registerer, duration); err != nil {
		return nil, err
	}
	if errs, err = register(cfg.registerer, errs); err != nil {
		return nil, err
	}
	d := &MetricsDriver{duration: duration, errs: errs}
	name := dialectOf(e)
	d.observed = observed{Executor: e, observe: func(_ context.Context, op Op, _ string, _ []Value, start time.Time, err error) {
		d.duration.WithLabelValues(string(op), name).Observe(time.Since(start).Seconds())
		if err != nil {
			d.errs.WithLabelValues(string(op), name).Inc()
		}
	}}
	return d, nil
}

// Collectors returns the collectors of the driver.
func (d *MetricsDriver) Collectors() []prometheus.Collector {
	return []prometheus.Collector{d.duration, d.errs}
}

func register[C prometheus.Collector](r prometheus.Registerer, c C) (C, error) {
	if err := r.Register(c); err != nil {
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

// dialectOf returns the dialect of e when it reports one.
func dialectOf(e Executor) string {
	if d, ok := e.(interface{ Dialect() string }); ok {
		return d.Dialect()
	}
	return "unknown"
}
