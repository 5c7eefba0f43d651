package sink

import (
	"context"

	"github.com/loamdata/strata/types"
)

// StubSink records every message in arrival order without
// transporting anything. Use in tests; FailAfter injects a write
// failure once the given number of writes has succeeded.
type StubSink struct {
	// Messages holds the written messages in order. Entries are the
	// concrete *types.XxxMessage values.
	Messages []any
	// Closed reports whether Close was called.
	Closed bool

	// FailAfter, when non-nil, makes the write after *FailAfter
	// successful writes (0-based) fail with FailErr.
	FailAfter *int
	// FailErr is the error injected by FailAfter.
	FailErr error

	writes int
}

// NewStubSink creates an empty recording sink.
func NewStubSink() *StubSink {
	return &StubSink{}
}

// FailOn makes the n-th write (0-based) fail with err.
func (s *StubSink) FailOn(n int, err error) {
	s.FailAfter = &n
	s.FailErr = err
}

func (s *StubSink) record(msg any) error {
	if s.FailAfter != nil && s.writes == *s.FailAfter {
		s.writes++
		return s.FailErr
	}
	s.writes++
	s.Messages = append(s.Messages, msg)
	return nil
}

// WriteBatch implements Sink.
func (s *StubSink) WriteBatch(_ context.Context, msg *types.DataBatchMessage) error {
	return s.record(msg)
}

// WriteTrailer implements Sink.
func (s *StubSink) WriteTrailer(_ context.Context, msg *types.MetricsTrailerMessage) error {
	return s.record(msg)
}

// WriteCompletion implements Sink.
func (s *StubSink) WriteCompletion(_ context.Context, msg *types.CompletionMessage) error {
	return s.record(msg)
}

// WriteError implements Sink.
func (s *StubSink) WriteError(_ context.Context, msg *types.ErrorMessage) error {
	return s.record(msg)
}

// Close implements Sink.
func (s *StubSink) Close() error {
	s.Closed = true
	return nil
}

// Batches returns the recorded data batch messages in order.
func (s *StubSink) Batches() []*types.DataBatchMessage {
	var out []*types.DataBatchMessage
	for _, msg := range s.Messages {
		if b, ok := msg.(*types.DataBatchMessage); ok {
			out = append(out, b)
		}
	}
	return out
}

// Verify StubSink implements Sink.
var _ Sink = (*StubSink)(nil)
