package observe

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsConfig configures the engine metrics.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "livedom").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for render durations.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// Option configures the engine metrics.
type Option func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) Option {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) Option {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) Option {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) Option {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) Option {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "livedom",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Patch operation labels.
const (
	OpCreate  = "create"
	OpRemove  = "remove"
	OpReplace = "replace"
	OpMove    = "move"
	OpAttr    = "attr"
	OpText    = "text"
	OpBind    = "bind"
)

// Render phase labels.
const (
	PhaseRender  = "render"
	PhasePatch   = "patch"
	PhaseHydrate = "hydrate"
)

// Chain step modes.
const (
	ModeEager    = "eager"
	ModeDeferred = "deferred"
)

// Async outcomes.
const (
	OutcomeLoaded = "loaded"
	OutcomeFailed = "failed"
	OutcomeStale  = "stale"
)

// Metrics holds the Prometheus collectors of the engine.
type Metrics struct {
	patchOps            *prometheus.CounterVec
	renderDuration      *prometheus.HistogramVec
	hydrationMismatches *prometheus.CounterVec
	lifecycleEvents     *prometheus.CounterVec
	handlerErrors       prometheus.Counter
	chainSteps          *prometheus.CounterVec
	chainTimeouts       prometheus.Counter
	asyncResolutions    *prometheus.CounterVec
}

var (
	globalMetrics   *Metrics
	globalMetricsMu sync.Mutex
)

// NewMetrics creates and registers the engine collectors.
// Registering twice on the same registry panics, as with promauto.
func NewMetrics(opts ...Option) *Metrics {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}
	factory := promauto.With(config.Registry)

	return &Metrics{
		patchOps: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "patch_ops_total",
			Help:        "Total number of live document mutations by operation",
			ConstLabels: config.ConstLabels,
		}, []string{"op"}),

		renderDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "render_duration_seconds",
			Help:        "Duration of render, patch and hydrate passes in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"phase"}),

		hydrationMismatches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "hydration_mismatches_total",
			Help:        "Total number of hydration mismatches repaired in non-strict mode",
			ConstLabels: config.ConstLabels,
		}, []string{"kind"}),

		lifecycleEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "lifecycle_events_total",
			Help:        "Total number of component lifecycle events",
			ConstLabels: config.ConstLabels,
		}, []string{"event"}),

		handlerErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "handler_errors_total",
			Help:        "Total number of failed interaction handlers",
			ConstLabels: config.ConstLabels,
		}),

		chainSteps: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "chain_steps_total",
			Help:        "Total number of query chain steps by execution mode",
			ConstLabels: config.ConstLabels,
		}, []string{"mode"}),

		chainTimeouts: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "chain_timeouts_total",
			Help:        "Total number of query chains that timed out waiting for a reference",
			ConstLabels: config.ConstLabels,
		}),

		asyncResolutions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "async_resolutions_total",
			Help:        "Total number of settled async containers by outcome",
			ConstLabels: config.ConstLabels,
		}, []string{"outcome"}),
	}
}

// Prometheus returns the process-wide metrics registered on the default
// registerer. Options only apply to the first call.
func Prometheus(opts ...Option) *Metrics {
	globalMetricsMu.Lock()
	defer globalMetricsMu.Unlock()
	if globalMetrics == nil {
		globalMetrics = NewMetrics(opts...)
	}
	return globalMetrics
}

// PatchOp records n live document mutations of the given operation.
func (m *Metrics) PatchOp(op string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.patchOps.WithLabelValues(op).Add(float64(n))
}

// ObserveRender records the duration of a pass that started at start.
func (m *Metrics) ObserveRender(phase string, start time.Time) {
	if m == nil {
		return
	}
	m.renderDuration.WithLabelValues(phase).Observe(time.Since(start).Seconds())
}

// HydrationMismatch records a repaired mismatch of the given kind
// ("count", "tag", "text", "missing", "extra").
func (m *Metrics) HydrationMismatch(kind string) {
	if m == nil {
		return
	}
	m.hydrationMismatches.WithLabelValues(kind).Inc()
}

// LifecycleEvent records a lifecycle transition or boundary event.
func (m *Metrics) LifecycleEvent(event string) {
	if m == nil {
		return
	}
	m.lifecycleEvents.WithLabelValues(event).Inc()
}

// HandlerError records a failed interaction handler.
func (m *Metrics) HandlerError() {
	if m == nil {
		return
	}
	m.handlerErrors.Inc()
}

// ChainStep records a query chain step run in the given mode.
func (m *Metrics) ChainStep(mode string) {
	if m == nil {
		return
	}
	m.chainSteps.WithLabelValues(mode).Inc()
}

// ChainTimeout records a chain that gave up waiting for its reference.
func (m *Metrics) ChainTimeout() {
	if m == nil {
		return
	}
	m.chainTimeouts.Inc()
}

// AsyncResolution records a settled async container.
func (m *Metrics) AsyncResolution(outcome string) {
	if m == nil {
		return
	}
	m.asyncResolutions.WithLabelValues(outcome).Inc()
}
