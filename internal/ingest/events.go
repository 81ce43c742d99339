package ingest

import "context"

// Wire events emitted during an ingestion run. Field names are a published
// contract consumed by the dashboard; they must not change.

// ProgressEvent is emitted periodically while rows are being processed.
type ProgressEvent struct {
	Progress           float64 `json:"progress"` // percent, 0..100
	Processed          int     `json:"processed"`
	Frauds             int     `json:"frauds"`
	Analyses           int     `json:"claude_analyses"`
	CurrentTransaction string  `json:"current_transaction"`
	ErrorsCount        int     `json:"errors_count"`
}

// CompletedEvent is the single success-terminal event.
type CompletedEvent struct {
	Completed bool     `json:"completed"` // always true
	Total     int      `json:"total"`
	Frauds    int      `json:"frauds"`
	Analyses  int      `json:"claude_analyses"`
	Errors    []string `json:"errors"`
}

// FailedEvent is the single failure-terminal event.
type FailedEvent struct {
	Error     string `json:"error"`
	Completed bool   `json:"completed"` // always true
}

// Sink receives pipeline events. A sink error means the consumer is gone
// and the run is abandoned.
type Sink interface {
	Emit(ctx context.Context, event interface{}) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, event interface{}) error

func (f SinkFunc) Emit(ctx context.Context, event interface{}) error {
	return f(ctx, event)
}
