// Package wire implements the stream's frame layer: each message is
// a 4-byte big-endian length prefix followed by a msgpack body.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/loamdata/strata/types"
)

// Frame size constants.
const (
	// MaxFrameSize is the maximum frame size (16 MiB), including the
	// length prefix. Batch budgets sit far below this; the cap guards
	// against corrupt prefixes on the read side.
	MaxFrameSize = 16 * 1024 * 1024
	// MaxPayloadSize is the maximum frame body size.
	MaxPayloadSize = MaxFrameSize - LengthPrefixSize
	// LengthPrefixSize is the size of the length prefix in bytes.
	LengthPrefixSize = 4
)

// FrameErrorKind classifies frame errors.
type FrameErrorKind int

const (
	// FrameErrorPartial indicates a truncated or incomplete frame.
	FrameErrorPartial FrameErrorKind = iota
	// FrameErrorTooLarge indicates a frame exceeding MaxFrameSize.
	FrameErrorTooLarge
	// FrameErrorDecode indicates a msgpack decoding error.
	FrameErrorDecode
)

// FrameError represents a frame encoding or decoding error.
type FrameError struct {
	Kind FrameErrorKind
	Msg  string
	Err  error
}

func (e *FrameError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *FrameError) Unwrap() error {
	return e.Err
}

// IsFatal returns true if this error must terminate the stream.
// Partial and oversized frames leave the channel unsynchronised, so
// they are fatal; a body decode error leaves framing intact.
func (e *FrameError) IsFatal() bool {
	return e.Kind == FrameErrorPartial || e.Kind == FrameErrorTooLarge
}

// IsFatalFrameError returns true if the error is a fatal frame error.
func IsFatalFrameError(err error) bool {
	var frameErr *FrameError
	if errors.As(err, &frameErr) {
		return frameErr.IsFatal()
	}
	return false
}

// WriteMessage msgpack-encodes msg and writes it to w as one
// length-prefixed frame.
func WriteMessage(w io.Writer, msg any) error {
	body, err := msgpack.Marshal(msg)
	if err != nil {
		return &FrameError{
			Kind: FrameErrorDecode,
			Msg:  "failed to encode message",
			Err:  err,
		}
	}

	if len(body) > MaxPayloadSize {
		return &FrameError{
			Kind: FrameErrorTooLarge,
			Msg:  fmt.Sprintf("message size %d exceeds maximum %d", len(body), MaxPayloadSize),
		}
	}

	var lengthBuf [LengthPrefixSize]byte
	binary.BigEndian.PutUint32(lengthBuf[:], uint32(len(body)))

	if _, err := w.Write(lengthBuf[:]); err != nil {
		return fmt.Errorf("write length prefix: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("write frame body: %w", err)
	}
	return nil
}

// FrameReader reads length-prefixed msgpack frames from a stream.
type FrameReader struct {
	reader io.Reader
}

// NewFrameReader creates a frame reader over r.
func NewFrameReader(r io.Reader) *FrameReader {
	return &FrameReader{reader: r}
}

// ReadFrame reads a single frame and returns its raw body.
//
// Errors:
//   - io.EOF: stream ended cleanly between frames
//   - *FrameError with Kind=FrameErrorPartial: incomplete frame (fatal)
//   - *FrameError with Kind=FrameErrorTooLarge: frame exceeds limit (fatal)
func (r *FrameReader) ReadFrame() ([]byte, error) {
	var lengthBuf [LengthPrefixSize]byte
	_, err := io.ReadFull(r.reader, lengthBuf[:])
	if err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, &FrameError{
			Kind: FrameErrorPartial,
			Msg:  "failed to read length prefix",
			Err:  err,
		}
	}

	bodySize := binary.BigEndian.Uint32(lengthBuf[:])
	if bodySize > MaxPayloadSize {
		return nil, &FrameError{
			Kind: FrameErrorTooLarge,
			Msg:  fmt.Sprintf("frame body size %d exceeds maximum %d", bodySize, MaxPayloadSize),
		}
	}

	body := make([]byte, bodySize)
	if _, err := io.ReadFull(r.reader, body); err != nil {
		return nil, &FrameError{
			Kind: FrameErrorPartial,
			Msg:  "failed to read frame body",
			Err:  err,
		}
	}

	return body, nil
}

// messageTypeProbe peeks at the type field without a full decode.
type messageTypeProbe struct {
	Type types.MessageType `msgpack:"type"`
}

// DecodeMessage decodes a frame body into its concrete message type,
// discriminated by the type field.
func DecodeMessage(body []byte) (any, error) {
	var probe messageTypeProbe
	if err := msgpack.Unmarshal(body, &probe); err != nil {
		return nil, &FrameError{
			Kind: FrameErrorDecode,
			Msg:  "failed to decode message type",
			Err:  err,
		}
	}

	switch probe.Type {
	case types.MessageTypeDataBatch:
		return decodeInto[types.DataBatchMessage](body, "data batch")
	case types.MessageTypeMetricsTrailer:
		return decodeInto[types.MetricsTrailerMessage](body, "metrics trailer")
	case types.MessageTypeCompletion:
		return decodeInto[types.CompletionMessage](body, "completion")
	case types.MessageTypeError:
		return decodeInto[types.ErrorMessage](body, "error message")
	default:
		return nil, &FrameError{
			Kind: FrameErrorDecode,
			Msg:  fmt.Sprintf("unknown message type %q", probe.Type),
		}
	}
}

func decodeInto[T any](body []byte, what string) (*T, error) {
	var msg T
	if err := msgpack.Unmarshal(body, &msg); err != nil {
		return nil, &FrameError{
			Kind: FrameErrorDecode,
			Msg:  "failed to decode " + what,
			Err:  err,
		}
	}
	return &msg, nil
}
