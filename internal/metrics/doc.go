// Package metrics provides publish metrics behind a small Recorder interface.
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder, so metrics cost nothing unless configured:
//
//	p := publisher.New(strategy).WithRecorder(metrics.NewPrometheusRecorder(reg))
//
// The CLI has no long-running HTTP surface; when metrics.textfile is set it
// gathers the registry once per command and writes it with WriteTextfile.
package metrics
