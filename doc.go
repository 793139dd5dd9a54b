// Package backend provides the hum2song API server.

// The server's entry point is cmd/server. The actual API
// documentation is organized into subpackages:

// - internal/handlers: HTTP request handlers for generate/tasks/score/export
// - internal/jobstore: in-memory job state machine
// - internal/pipeline: worker-pool orchestrator driving the stage pipeline
// - internal/stages: preprocess/transcribe/synthesize adapter contracts
// - internal/score: canonical Score model, normalizer, optimizer
// - internal/codec: MIDI <-> Score conversion
// - internal/config: process-wide Settings loading
// - internal/errors: typed API error kinds
// - internal/logger: structured logging
// - internal/metrics: Prometheus counters and histograms
// - internal/middleware: request id, logging, and metrics middleware
// - internal/util: HTTP response and file helpers

// See the individual package documentation for detailed API reference.
package backend
