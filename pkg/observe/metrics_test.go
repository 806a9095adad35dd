package observe

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func histogramCount(t *testing.T, o prometheus.Observer) uint64 {
	t.Helper()
	metric, ok := o.(prometheus.Metric)
	if !ok {
		t.Fatalf("observer %T does not implement prometheus.Metric", o)
	}
	var m dto.Metric
	if err := metric.Write(&m); err != nil {
		t.Fatalf("histogram Write() error: %v", err)
	}
	if m.Histogram == nil {
		t.Fatal("expected histogram metric to have Histogram field")
	}
	return m.GetHistogram().GetSampleCount()
}

func TestMetricsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(WithRegistry(reg), WithNamespace("test"))

	m.PatchOp(OpCreate, 3)
	m.PatchOp(OpCreate, 0)
	m.PatchOp(OpMove, 1)
	m.HydrationMismatch("text")
	m.LifecycleEvent("mount")
	m.LifecycleEvent("mount")
	m.HandlerError()
	m.ChainStep(ModeEager)
	m.ChainStep(ModeDeferred)
	m.ChainStep(ModeDeferred)
	m.ChainTimeout()
	m.AsyncResolution(OutcomeLoaded)
	m.ObserveRender(PhasePatch, time.Now())

	tests := []struct {
		name string
		c    prometheus.Collector
		want float64
	}{
		{"create ops", m.patchOps.WithLabelValues(OpCreate), 3},
		{"move ops", m.patchOps.WithLabelValues(OpMove), 1},
		{"text mismatches", m.hydrationMismatches.WithLabelValues("text"), 1},
		{"mount events", m.lifecycleEvents.WithLabelValues("mount"), 2},
		{"handler errors", m.handlerErrors, 1},
		{"eager steps", m.chainSteps.WithLabelValues(ModeEager), 1},
		{"deferred steps", m.chainSteps.WithLabelValues(ModeDeferred), 2},
		{"timeouts", m.chainTimeouts, 1},
		{"loaded", m.asyncResolutions.WithLabelValues(OutcomeLoaded), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := testutil.ToFloat64(tt.c); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}

	if got := histogramCount(t, m.renderDuration.WithLabelValues(PhasePatch)); got != 1 {
		t.Errorf("render duration samples = %d, want 1", got)
	}
}

func TestMetricsExposition(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(WithRegistry(reg), WithConstLabels(prometheus.Labels{"app": "demo"}))
	m.ChainTimeout()

	expected := `
# HELP livedom_chain_timeouts_total Total number of query chains that timed out waiting for a reference
# TYPE livedom_chain_timeouts_total counter
livedom_chain_timeouts_total{app="demo"} 1
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "livedom_chain_timeouts_total"); err != nil {
		t.Fatal(err)
	}
}

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics
	m.PatchOp(OpCreate, 1)
	m.ObserveRender(PhaseRender, time.Now())
	m.HydrationMismatch("tag")
	m.LifecycleEvent("unmount")
	m.HandlerError()
	m.ChainStep(ModeEager)
	m.ChainTimeout()
	m.AsyncResolution(OutcomeFailed)
}

func TestPrometheusSingleton(t *testing.T) {
	globalMetricsMu.Lock()
	globalMetrics = nil
	globalMetricsMu.Unlock()

	reg := prometheus.NewRegistry()
	a := Prometheus(WithRegistry(reg))
	b := Prometheus(WithRegistry(prometheus.NewRegistry()))
	if a != b {
		t.Fatal("Prometheus() returned different instances")
	}
}
