// Package sink defines the output sink abstraction the streamer
// writes to, plus the provided implementations: a frame sink over an
// io.Writer, a recording stub for tests, and a metrics-instrumented
// wrapper.
package sink

import (
	"context"
	"errors"

	"github.com/loamdata/strata/types"
)

// ErrClosed is returned for writes after Close.
var ErrClosed = errors.New("sink is closed")

// Sink is the ordered, reliable, single-consumer output channel for
// one stream. Writes may block under backpressure; the streamer
// blocks synchronously at each write rather than buffering, which
// bounds its memory to roughly one in-flight batch.
//
// Implementations never inspect transport details beyond their own
// layer; the streamer never inspects any.
type Sink interface {
	// WriteBatch writes a data batch message.
	WriteBatch(ctx context.Context, msg *types.DataBatchMessage) error

	// WriteTrailer writes the metrics trailer.
	WriteTrailer(ctx context.Context, msg *types.MetricsTrailerMessage) error

	// WriteCompletion signals normal end of stream.
	WriteCompletion(ctx context.Context, msg *types.CompletionMessage) error

	// WriteError signals abnormal termination.
	WriteError(ctx context.Context, msg *types.ErrorMessage) error

	// Close releases the sink. Further writes fail with ErrClosed.
	Close() error
}
