package sink

import (
	"context"

	"github.com/loamdata/strata/metrics"
	"github.com/loamdata/strata/types"
)

// InstrumentedSink wraps a Sink and records write metrics. Each
// write increments sink_write_success or sink_write_failure on the
// collector; data batch writes additionally record row and payload
// byte counts.
type InstrumentedSink struct {
	inner     Sink
	collector *metrics.Collector
}

// NewInstrumentedSink wraps a sink with metrics instrumentation.
func NewInstrumentedSink(inner Sink, collector *metrics.Collector) *InstrumentedSink {
	return &InstrumentedSink{inner: inner, collector: collector}
}

// WriteBatch delegates to the inner sink and records the outcome.
func (s *InstrumentedSink) WriteBatch(ctx context.Context, msg *types.DataBatchMessage) error {
	err := s.inner.WriteBatch(ctx, msg)
	if err != nil {
		s.collector.IncSinkWriteFailure()
	} else {
		s.collector.IncSinkWriteSuccess()
		s.collector.AddBatchSent(msg.RowCount, len(msg.Payload))
	}
	return err
}

// WriteTrailer delegates to the inner sink and records the outcome.
func (s *InstrumentedSink) WriteTrailer(ctx context.Context, msg *types.MetricsTrailerMessage) error {
	err := s.inner.WriteTrailer(ctx, msg)
	if err != nil {
		s.collector.IncSinkWriteFailure()
	} else {
		s.collector.IncSinkWriteSuccess()
		s.collector.IncTrailerSent()
	}
	return err
}

// WriteCompletion delegates to the inner sink and records the outcome.
func (s *InstrumentedSink) WriteCompletion(ctx context.Context, msg *types.CompletionMessage) error {
	err := s.inner.WriteCompletion(ctx, msg)
	if err != nil {
		s.collector.IncSinkWriteFailure()
	} else {
		s.collector.IncSinkWriteSuccess()
	}
	return err
}

// WriteError delegates to the inner sink. Error frames are not
// counted as sink failures; the failure they report was already
// recorded where it happened.
func (s *InstrumentedSink) WriteError(ctx context.Context, msg *types.ErrorMessage) error {
	return s.inner.WriteError(ctx, msg)
}

// Close delegates to the inner sink.
func (s *InstrumentedSink) Close() error {
	return s.inner.Close()
}

// Verify InstrumentedSink implements Sink.
var _ Sink = (*InstrumentedSink)(nil)
