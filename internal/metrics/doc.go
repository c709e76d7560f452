// Package metrics provides observability hooks for mdcompile builds.
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder, so call sites never need nil checks:
//
//	recorder := metrics.Recorder(metrics.NoopRecorder{})
//	if cfg.Watch.MetricsAddr != "" {
//	    reg := prom.NewRegistry()
//	    recorder = metrics.NewPrometheusRecorder(reg)
//	    http.Handle("/metrics", metrics.HTTPHandler(reg))
//	}
//
// The Prometheus recorder is activated by watch mode when a metrics address
// is configured. One-shot builds use NoopRecorder.
package metrics
