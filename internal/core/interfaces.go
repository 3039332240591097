package core

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/log"
)

// LineCounts is what one run did to its input.
type LineCounts struct {
	Read      int64
	New       int64
	Duplicate int64
	Seeded    int64
}

type Telemetry interface {
	// StartRun opens the span covering a whole run.
	StartRun(ctx context.Context, runID string) (context.Context, func(err error))
	RecordRun(ctx context.Context, counts LineCounts, duration time.Duration, success bool)
	// LoggerProvider is nil when log records are not exported.
	LoggerProvider() log.LoggerProvider
	Close() error
}
