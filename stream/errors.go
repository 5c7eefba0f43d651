// Package stream drives one result-streaming call: it encodes
// partitioned rows into budget-bounded batches, writes them to the
// output sink in a single deterministic order, and terminates the
// stream with a metrics trailer and a completion signal.
package stream

import (
	"errors"
	"fmt"
)

// Sentinel errors for stream failure classification.
// Use errors.Is(err, ErrXxx) for typed assertions.
var (
	// ErrUnsupportedRequest indicates the request's operation kind is
	// not one this protocol handles. Nothing is written to the sink.
	ErrUnsupportedRequest = errors.New("unsupported request")

	// ErrEncoding indicates a row could not be encoded into the batch
	// payload format. Fatal for the stream: remaining partitions and
	// the metrics trailer are not sent.
	ErrEncoding = errors.New("encoding failure")

	// ErrSink indicates the output channel rejected a write. Fatal:
	// no retry happens at this layer.
	ErrSink = errors.New("sink failure")

	// ErrCancelled indicates the consumer or caller cancelled the
	// stream mid-flight. Terminal, not retried.
	ErrCancelled = errors.New("stream cancelled")
)

// StreamError wraps an underlying failure with stream classification.
// It preserves the original error in the chain for errors.As.
type StreamError struct {
	// Kind is the sentinel error for classification.
	Kind error
	// Op is the step that failed (e.g. "encode", "write batch").
	Op string
	// ClientID is the consumer the stream was serving.
	ClientID string
	// Err is the underlying error, if any.
	Err error
}

func (e *StreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s (client %s): %v: %v", e.Op, e.ClientID, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s (client %s): %v", e.Op, e.ClientID, e.Kind)
}

// Unwrap returns the underlying error for errors.Is/As traversal.
func (e *StreamError) Unwrap() error {
	return e.Err
}

// Is reports whether the error matches the target sentinel.
func (e *StreamError) Is(target error) bool {
	return errors.Is(e.Kind, target)
}

func newStreamError(kind error, op, clientID string, err error) *StreamError {
	return &StreamError{
		Kind:     kind,
		Op:       op,
		ClientID: clientID,
		Err:      err,
	}
}

// kindLabel is the short classification string carried on the wire
// in an error message.
func kindLabel(kind error) string {
	switch kind {
	case ErrUnsupportedRequest:
		return "unsupported_request"
	case ErrEncoding:
		return "encoding"
	case ErrSink:
		return "sink"
	case ErrCancelled:
		return "cancelled"
	default:
		return "internal"
	}
}
