package sink

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/golang/snappy"

	"github.com/loamdata/strata/types"
	"github.com/loamdata/strata/wire"
)

// Compression defaults, used when FrameSinkConfig leaves them unset.
const (
	// DefaultCompressionMinSize is the smallest payload worth
	// compressing.
	DefaultCompressionMinSize = 1024
	// DefaultCompressionMinRatio is the maximum compressed:original
	// ratio at which the compressed form is kept.
	DefaultCompressionMinRatio = 0.85
)

// FrameSinkConfig configures a FrameSink.
type FrameSinkConfig struct {
	// Compress enables snappy compression of batch payloads.
	Compress bool
	// CompressionMinSize is the minimum payload size to attempt
	// compression. Zero uses DefaultCompressionMinSize.
	CompressionMinSize int
	// CompressionMinRatio keeps the compressed form only when
	// compressed/original is at or below this ratio. Zero uses
	// DefaultCompressionMinRatio.
	CompressionMinRatio float64
}

// FrameSink writes messages to an io.Writer as length-prefixed
// msgpack frames. Batch payloads may be snappy-compressed when that
// actually pays off; the message's Compressed flag tells the consumer
// which form it received. Only data batch payloads are compressed:
// the remaining message kinds are small control frames.
//
// Writes are serialized by a mutex, but a stream has a single
// producer anyway; the mutex guards Close racing a write.
type FrameSink struct {
	mu     sync.Mutex
	w      io.Writer
	config FrameSinkConfig
	closed bool
}

// NewFrameSink creates a frame sink over w. If w is an io.Closer it
// is closed by Close.
func NewFrameSink(w io.Writer, config FrameSinkConfig) *FrameSink {
	if config.CompressionMinSize == 0 {
		config.CompressionMinSize = DefaultCompressionMinSize
	}
	if config.CompressionMinRatio == 0 {
		config.CompressionMinRatio = DefaultCompressionMinRatio
	}
	return &FrameSink{w: w, config: config}
}

// WriteBatch implements Sink. The message is owned by the sink from
// this point; compression may rewrite its payload in place.
func (s *FrameSink) WriteBatch(ctx context.Context, msg *types.DataBatchMessage) error {
	if s.config.Compress && !msg.Compressed {
		payload, compressed := s.maybeCompress(msg.Payload)
		msg.Payload = payload
		msg.Compressed = compressed
	}
	return s.write(ctx, msg)
}

// WriteTrailer implements Sink.
func (s *FrameSink) WriteTrailer(ctx context.Context, msg *types.MetricsTrailerMessage) error {
	return s.write(ctx, msg)
}

// WriteCompletion implements Sink.
func (s *FrameSink) WriteCompletion(ctx context.Context, msg *types.CompletionMessage) error {
	return s.write(ctx, msg)
}

// WriteError implements Sink.
func (s *FrameSink) WriteError(ctx context.Context, msg *types.ErrorMessage) error {
	return s.write(ctx, msg)
}

// Close implements Sink.
func (s *FrameSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if c, ok := s.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (s *FrameSink) write(ctx context.Context, msg any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if err := wire.WriteMessage(s.w, msg); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// maybeCompress returns the snappy-compressed payload when the
// payload is large enough and compression achieves the configured
// ratio; otherwise the original payload unchanged.
func (s *FrameSink) maybeCompress(payload []byte) ([]byte, bool) {
	if len(payload) < s.config.CompressionMinSize {
		return payload, false
	}

	compressed := snappy.Encode(nil, payload)
	if float64(len(compressed))/float64(len(payload)) > s.config.CompressionMinRatio {
		return payload, false
	}
	return compressed, true
}

// DecompressPayload restores a compressed batch payload. Consumers
// and the inspect tooling call this before decoding; uncompressed
// payloads pass through.
func DecompressPayload(msg *types.DataBatchMessage) ([]byte, error) {
	if !msg.Compressed {
		return msg.Payload, nil
	}
	payload, err := snappy.Decode(nil, msg.Payload)
	if err != nil {
		return nil, fmt.Errorf("decompress batch payload: %w", err)
	}
	return payload, nil
}

// Verify FrameSink implements Sink.
var _ Sink = (*FrameSink)(nil)
