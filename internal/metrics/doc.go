// Package metrics provides the observability hooks for the pipeline.
//
// Components receive a Recorder through their constructors and default to
// NoopRecorder, so metrics never require nil checks at call sites:
//
//	runner := workflow.NewRunner(machine, workflow.WithRecorder(metrics.NewPrometheusRecorder(reg)))
//
// The daemon serves the registry through HTTPHandler on /metrics.
package metrics
