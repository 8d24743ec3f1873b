// Package metrics exposes Prometheus collectors for generation passes,
// template writes and watch events.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Config configures the collectors.
type Config struct {
	// Namespace is the metrics namespace (default: "pagegen").
	Namespace string

	// Buckets are the histogram buckets for durations.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// Option configures the collectors.
type Option func(*Config)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) Option {
	return func(c *Config) {
		c.Namespace = namespace
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) Option {
	return func(c *Config) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) Option {
	return func(c *Config) {
		c.Registry = registry
	}
}

func defaultConfig() Config {
	return Config{
		Namespace: "pagegen",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Collector records build activity. A nil *Collector discards everything.
type Collector struct {
	templatesTotal   *prometheus.CounterVec
	templateDuration prometheus.Histogram
	passesTotal      *prometheus.CounterVec
	passDuration     prometheus.Histogram
	passesCoalesced  prometheus.Counter
	watchEvents      *prometheus.CounterVec
}

// New creates and registers the collectors.
func New(opts ...Option) *Collector {
	config := defaultConfig()
	for _, opt := range opts {
		opt(&config)
	}
	factory := promauto.With(config.Registry)

	return &Collector{
		templatesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "templates_total",
			Help:      "Total number of compiled templates by outcome",
		}, []string{"status"}),

		templateDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Name:      "template_duration_seconds",
			Help:      "Time to render and write one template",
			Buckets:   config.Buckets,
		}),

		passesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "generation_passes_total",
			Help:      "Total number of generation passes by result",
		}, []string{"result"}),

		passDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Name:      "generation_pass_duration_seconds",
			Help:      "Duration of a generation pass",
			Buckets:   config.Buckets,
		}),

		passesCoalesced: factory.NewCounter(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "generation_requests_coalesced_total",
			Help:      "Generation requests folded into a pass already in flight",
		}),

		watchEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "watch_events_total",
			Help:      "File-system events delivered after debouncing",
		}, []string{"kind"}),
	}
}

// TemplateCompiled records one compiled template.
func (c *Collector) TemplateCompiled(status string, d time.Duration) {
	if c == nil {
		return
	}
	c.templatesTotal.WithLabelValues(status).Inc()
	c.templateDuration.Observe(d.Seconds())
}

// PassCompleted records a finished generation pass.
func (c *Collector) PassCompleted(err error, d time.Duration) {
	if c == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	c.passesTotal.WithLabelValues(result).Inc()
	c.passDuration.Observe(d.Seconds())
}

// PassCoalesced records a request served by a pass already in flight.
func (c *Collector) PassCoalesced() {
	if c == nil {
		return
	}
	c.passesCoalesced.Inc()
}

// WatchEvent records one debounced file event.
func (c *Collector) WatchEvent(kind string) {
	if c == nil {
		return
	}
	c.watchEvents.WithLabelValues(kind).Inc()
}
