// Package metrics provides build observability hooks for sitebuilder.
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder, so no call site needs a nil check:
//
//	s := build.NewScheduler(cfg, build.WithRecorder(metrics.NewPrometheusRecorder(reg)))
//
// The serve command exposes the registry through HTTPHandler at /metrics.
package metrics
