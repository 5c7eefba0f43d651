package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/loamdata/strata/colenc"
	"github.com/loamdata/strata/log"
	"github.com/loamdata/strata/metrics"
	"github.com/loamdata/strata/plan"
	"github.com/loamdata/strata/sink"
	"github.com/loamdata/strata/types"
)

// RequestKind is the operation kind of an inbound request.
type RequestKind string

// Request kind constants. Anything else fails with
// ErrUnsupportedRequest before a single message is written.
const (
	// RequestKindQuery is a data-producing plan.
	RequestKindQuery RequestKind = "query"
	// RequestKindCommand is a side-effecting statement with no result
	// rows; its stream consists of the empty fallback batch, the
	// trailer, and completion.
	RequestKindCommand RequestKind = "command"
)

// Request is one inbound result-streaming request, already planned
// and executed: partitions arrive materialized and in index order
// (the caller buffers or reorders parallel execution output before
// handing it over).
type Request struct {
	// Kind is the operation kind.
	Kind RequestKind
	// Session is the per-call session (client id + budget).
	Session *types.StreamSession
	// Schema describes the result columns.
	Schema types.Schema
	// Partitions are the result partitions in index order. May be
	// empty; individual partitions may yield zero rows.
	Partitions []types.Partition
	// Plan is the executed physical plan, flattened into the metrics
	// trailer. May be nil for a planless command; the trailer is then
	// sent with no records.
	Plan *plan.Node
}

// Options configures a Streamer.
type Options struct {
	// Location renders timestamp values in batch payloads. Defaults
	// to UTC.
	Location *time.Location
	// Logger is an optional logger; defaults to a nop logger.
	// A session-scoped logger (log.NewLogger) is the usual choice.
	Logger *log.Logger
	// Collector is the optional metrics collector. Nil disables
	// recording.
	Collector *metrics.Collector
}

// Streamer converts an executed, partitioned result into the wire
// message sequence for one consumer. It is sequential, single-
// producer logic: it launches no workers and writes to the sink from
// one goroutine, blocking at each write under backpressure.
type Streamer struct {
	loc       *time.Location
	logger    *log.Logger
	collector *metrics.Collector
}

// New creates a Streamer.
func New(opts Options) *Streamer {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Nop()
	}
	return &Streamer{
		loc:       loc,
		logger:    logger,
		collector: opts.Collector,
	}
}

// Stream writes the request's full message sequence to out:
// every data batch in partition order (within-partition batch order
// preserved), exactly one empty batch if no batch was produced at
// all, then exactly one metrics trailer, then completion. Nothing is
// written after completion.
//
// On failure the streamer stops immediately, writes a single error
// message (best effort), and returns a *StreamError. Partially
// streamed results are not retried or rolled back here.
func (s *Streamer) Stream(ctx context.Context, req *Request, out sink.Sink) error {
	if err := validateRequest(req); err != nil {
		return err
	}

	session := req.Session
	s.collector.IncStreamStarted()
	s.logger.Info("starting result stream", map[string]any{
		"kind":       string(req.Kind),
		"partitions": len(req.Partitions),
		"max_rows":   session.Budget.MaxRows,
		"max_bytes":  session.Budget.MaxBytes,
	})

	var seq int64
	nextSeq := func() int64 {
		seq++
		return seq
	}

	var sentBatches int
	var sentRows int

	for _, partition := range req.Partitions {
		if err := ctx.Err(); err != nil {
			return s.fail(ctx, out, session, nextSeq,
				newStreamError(ErrCancelled, "stream partition", session.ClientID, err))
		}

		enc, err := colenc.NewEncoder(req.Schema, partition.Rows, colenc.Options{
			Budget:   session.Budget,
			Location: s.loc,
		})
		if err != nil {
			return s.fail(ctx, out, session, nextSeq,
				newStreamError(ErrEncoding, "open partition encoder", session.ClientID, err))
		}

		for {
			batch, err := enc.Next()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				s.collector.IncEncodeError()
				return s.fail(ctx, out, session, nextSeq,
					newStreamError(ErrEncoding,
						fmt.Sprintf("encode partition %d", partition.Index),
						session.ClientID, err))
			}

			if err := s.writeBatch(ctx, out, session, nextSeq(), batch); err != nil {
				return s.fail(ctx, out, session, nextSeq, err)
			}
			sentBatches++
			sentRows += batch.RowCount
		}
	}

	// A consumer always receives at least one data message, so an
	// all-empty result needs no client-side special case.
	if sentBatches == 0 {
		batch, err := colenc.EmptyBatch(req.Schema)
		if err != nil {
			return s.fail(ctx, out, session, nextSeq,
				newStreamError(ErrEncoding, "encode empty batch", session.ClientID, err))
		}
		if err := s.writeBatch(ctx, out, session, nextSeq(), batch); err != nil {
			return s.fail(ctx, out, session, nextSeq, err)
		}
		s.collector.IncEmptyFallback()
		sentBatches++
	}

	trailer := &types.MetricsTrailerMessage{
		Type:     types.MessageTypeMetricsTrailer,
		ClientID: session.ClientID,
		Seq:      nextSeq(),
		Records:  plan.Flatten(req.Plan),
	}
	if err := out.WriteTrailer(ctx, trailer); err != nil {
		return s.fail(ctx, out, session, nextSeq,
			newStreamError(sinkKind(ctx, err), "write metrics trailer", session.ClientID, err))
	}

	completion := &types.CompletionMessage{
		Type:     types.MessageTypeCompletion,
		ClientID: session.ClientID,
		Seq:      nextSeq(),
	}
	if err := out.WriteCompletion(ctx, completion); err != nil {
		return s.fail(ctx, out, session, nextSeq,
			newStreamError(sinkKind(ctx, err), "write completion", session.ClientID, err))
	}

	s.collector.IncStreamCompleted()
	s.logger.Info("result stream complete", map[string]any{
		"batches": sentBatches,
		"rows":    sentRows,
		"records": len(trailer.Records),
	})
	return nil
}

func validateRequest(req *Request) error {
	if req == nil {
		return fmt.Errorf("request is nil")
	}
	if req.Session == nil {
		return fmt.Errorf("request has no session")
	}

	switch req.Kind {
	case RequestKindQuery, RequestKindCommand:
	default:
		return newStreamError(ErrUnsupportedRequest, "validate request",
			req.Session.ClientID, fmt.Errorf("kind %q", req.Kind))
	}

	if err := req.Schema.Validate(); err != nil {
		return fmt.Errorf("invalid schema: %w", err)
	}
	if err := req.Session.Budget.Validate(); err != nil {
		return fmt.Errorf("invalid budget: %w", err)
	}
	return nil
}

func (s *Streamer) writeBatch(ctx context.Context, out sink.Sink, session *types.StreamSession, seq int64, batch colenc.Batch) *StreamError {
	msg := &types.DataBatchMessage{
		Type:     types.MessageTypeDataBatch,
		ClientID: session.ClientID,
		Seq:      seq,
		RowCount: batch.RowCount,
		Payload:  batch.Payload,
	}
	if err := out.WriteBatch(ctx, msg); err != nil {
		return newStreamError(sinkKind(ctx, err), "write batch", session.ClientID, err)
	}
	return nil
}

// sinkKind maps a sink write failure to its sentinel: a write that
// failed because the context was cancelled is a cancellation, not a
// sink fault.
func sinkKind(ctx context.Context, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ErrCancelled
	}
	return ErrSink
}

// fail records the failure, writes a best-effort error message, and
// returns the stream error. The error frame is the only write allowed
// after a failure; it intentionally ignores the (possibly already
// cancelled) stream context.
func (s *Streamer) fail(ctx context.Context, out sink.Sink, session *types.StreamSession, nextSeq func() int64, streamErr *StreamError) error {
	s.collector.IncStreamFailed()
	s.logger.Error("result stream failed", map[string]any{
		"op":    streamErr.Op,
		"kind":  kindLabel(streamErr.Kind),
		"error": streamErr.Error(),
	})

	msg := &types.ErrorMessage{
		Type:     types.MessageTypeError,
		ClientID: session.ClientID,
		Seq:      nextSeq(),
		Kind:     kindLabel(streamErr.Kind),
		Cause:    streamErr.Error(),
	}
	if err := out.WriteError(context.WithoutCancel(ctx), msg); err != nil {
		s.logger.Warn("could not deliver error message", map[string]any{
			"error": err.Error(),
		})
	}

	return streamErr
}
