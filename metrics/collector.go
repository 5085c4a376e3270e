package metrics

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/wippyai/go-rados/resource"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "rados"

// Collector turns resource lifecycle events into Prometheus metrics. It
// implements resource.Observer; subscribe it with rados.WithObserver.
type Collector struct {
	registry *prometheus.Registry
	logger   *zap.Logger

	live           *prometheus.GaugeVec
	created        *prometheus.CounterVec
	released       *prometheus.CounterVec
	releaseFailed  *prometheus.CounterVec
	collectedTotal *prometheus.CounterVec
}

var _ resource.Observer = (*Collector)(nil)

// Option configures a Collector.
type Option func(*options)

type options struct {
	logger     *zap.Logger
	namespace  string
	runtimeCol bool
}

// WithNamespace replaces DefaultNamespace.
func WithNamespace(ns string) Option {
	return func(o *options) { o.namespace = ns }
}

// WithLogger sets the logger used by Serve.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithRuntimeMetrics also exports Go runtime and process metrics.
func WithRuntimeMetrics() Option {
	return func(o *options) { o.runtimeCol = true }
}

// NewCollector creates a collector with its own registry.
func NewCollector(opts ...Option) (*Collector, error) {
	o := options{namespace: DefaultNamespace, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	c := &Collector{
		registry: prometheus.NewRegistry(),
		logger:   o.logger,
		live: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: o.namespace,
			Name:      "resources_live",
			Help:      "Native handles currently open, by kind.",
		}, []string{"kind"}),
		created: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: o.namespace,
			Name:      "resources_created_total",
			Help:      "Native handles wrapped, by kind.",
		}, []string{"kind"}),
		released: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: o.namespace,
			Name:      "resources_released_total",
			Help:      "Native handles released, by kind.",
		}, []string{"kind"}),
		releaseFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: o.namespace,
			Name:      "resource_release_failures_total",
			Help:      "Native release routines that reported a failure, by kind.",
		}, []string{"kind"}),
		collectedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: o.namespace,
			Name:      "resources_collected_total",
			Help:      "Native handles released by the garbage collector instead of an explicit release, by kind.",
		}, []string{"kind"}),
	}

	cs := []prometheus.Collector{c.live, c.created, c.released, c.releaseFailed, c.collectedTotal}
	if o.runtimeCol {
		cs = append(cs,
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	for _, col := range cs {
		if err := c.registry.Register(col); err != nil {
			return nil, err
		}
	}

	// Every kind is exported from the start so dashboards see zeros.
	for _, k := range resource.Kinds() {
		c.live.WithLabelValues(k.String())
		c.created.WithLabelValues(k.String())
		c.released.WithLabelValues(k.String())
	}
	return c, nil
}

// OnResourceEvent implements resource.Observer.
func (c *Collector) OnResourceEvent(e resource.Event) {
	kind := e.Kind.String()
	switch e.Type {
	case resource.EventCreated:
		c.created.WithLabelValues(kind).Inc()
		c.live.WithLabelValues(kind).Inc()
	case resource.EventReleased, resource.EventReleaseFailed:
		c.released.WithLabelValues(kind).Inc()
		c.live.WithLabelValues(kind).Dec()
		if e.Type == resource.EventReleaseFailed {
			c.releaseFailed.WithLabelValues(kind).Inc()
		}
		if e.Collected {
			c.collectedTotal.WithLabelValues(kind).Inc()
		}
	}
}

// Registry returns the registry the metrics are registered in.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the metrics in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Serve exposes Handler on /metrics at addr until ctx is done.
func (c *Collector) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return c.ServeListener(ctx, ln)
}

// ServeListener is Serve on an existing listener.
func (c *Collector) ServeListener(ctx context.Context, ln net.Listener) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	c.logger.Info("metrics endpoint listening", zap.String("addr", ln.Addr().String()))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			c.logger.Warn("metrics endpoint shutdown", zap.Error(err))
		}
		<-errCh
		return nil
	}
}
