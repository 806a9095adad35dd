// Package observe exposes Prometheus metrics and OpenTelemetry tracing for the
// rendering engine.
//
// A *Metrics value is passed to the renderer, the query chain and the async
// container through their WithMetrics options. Every recording method accepts
// a nil receiver, so components can be built without metrics at no cost.
//
//	m := observe.NewMetrics(observe.WithNamespace("myapp"))
//	r := render.New(doc, loop, render.WithMetrics(m))
//	http.Handle("/metrics", promhttp.Handler())
package observe
