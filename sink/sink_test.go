package sink

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/loamdata/strata/types"
	"github.com/loamdata/strata/wire"
)

func TestFrameSink_WritesDecodableFrames(t *testing.T) {
	var buf bytes.Buffer
	s := NewFrameSink(&buf, FrameSinkConfig{})
	ctx := context.Background()

	batch := &types.DataBatchMessage{
		Type: types.MessageTypeDataBatch, ClientID: "c", Seq: 1,
		RowCount: 2, Payload: []byte("payload"),
	}
	if err := s.WriteBatch(ctx, batch); err != nil {
		t.Fatalf("WriteBatch failed: %v", err)
	}
	if err := s.WriteCompletion(ctx, &types.CompletionMessage{
		Type: types.MessageTypeCompletion, ClientID: "c", Seq: 2,
	}); err != nil {
		t.Fatalf("WriteCompletion failed: %v", err)
	}

	reader := wire.NewFrameReader(&buf)

	body, err := reader.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame failed: %v", err)
	}
	decoded, err := wire.DecodeMessage(body)
	if err != nil {
		t.Fatalf("DecodeMessage failed: %v", err)
	}
	got, ok := decoded.(*types.DataBatchMessage)
	if !ok || got.RowCount != 2 {
		t.Errorf("first frame = %+v, want data batch with 2 rows", decoded)
	}

	body, err = reader.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame failed: %v", err)
	}
	if _, err := wire.DecodeMessage(body); err != nil {
		t.Fatalf("DecodeMessage failed: %v", err)
	}

	if _, err := reader.ReadFrame(); err != io.EOF {
		t.Errorf("trailing ReadFrame error = %v, want io.EOF", err)
	}
}

func TestFrameSink_Compression(t *testing.T) {
	ctx := context.Background()

	t.Run("compressible payload", func(t *testing.T) {
		var buf bytes.Buffer
		s := NewFrameSink(&buf, FrameSinkConfig{Compress: true, CompressionMinSize: 64})

		original := []byte(strings.Repeat("abcdefgh", 512))
		msg := &types.DataBatchMessage{
			Type: types.MessageTypeDataBatch, ClientID: "c", Seq: 1,
			RowCount: 1, Payload: append([]byte(nil), original...),
		}
		if err := s.WriteBatch(ctx, msg); err != nil {
			t.Fatalf("WriteBatch failed: %v", err)
		}
		if !msg.Compressed {
			t.Fatal("repetitive payload above min size should compress")
		}
		if len(msg.Payload) >= len(original) {
			t.Errorf("compressed size %d, want < %d", len(msg.Payload), len(original))
		}

		restored, err := DecompressPayload(msg)
		if err != nil {
			t.Fatalf("DecompressPayload failed: %v", err)
		}
		if !bytes.Equal(restored, original) {
			t.Error("decompressed payload differs from original")
		}
	})

	t.Run("small payload skipped", func(t *testing.T) {
		var buf bytes.Buffer
		s := NewFrameSink(&buf, FrameSinkConfig{Compress: true})

		msg := &types.DataBatchMessage{
			Type: types.MessageTypeDataBatch, ClientID: "c", Seq: 1,
			RowCount: 1, Payload: []byte("tiny"),
		}
		if err := s.WriteBatch(ctx, msg); err != nil {
			t.Fatalf("WriteBatch failed: %v", err)
		}
		if msg.Compressed {
			t.Error("payload below min size should not compress")
		}
	})

	t.Run("incompressible payload skipped", func(t *testing.T) {
		var buf bytes.Buffer
		s := NewFrameSink(&buf, FrameSinkConfig{Compress: true, CompressionMinSize: 16})

		// Pseudo-random bytes do not meet the ratio.
		payload := make([]byte, 4096)
		state := uint32(0x9e3779b9)
		for i := range payload {
			state = state*1664525 + 1013904223
			payload[i] = byte(state >> 24)
		}
		msg := &types.DataBatchMessage{
			Type: types.MessageTypeDataBatch, ClientID: "c", Seq: 1,
			RowCount: 1, Payload: payload,
		}
		if err := s.WriteBatch(ctx, msg); err != nil {
			t.Fatalf("WriteBatch failed: %v", err)
		}
		if msg.Compressed {
			t.Error("incompressible payload should be sent uncompressed")
		}
	})
}

func TestFrameSink_ClosedAndCancelled(t *testing.T) {
	var buf bytes.Buffer
	s := NewFrameSink(&buf, FrameSinkConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := s.WriteCompletion(ctx, &types.CompletionMessage{Type: types.MessageTypeCompletion})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("write on cancelled ctx error = %v, want context.Canceled", err)
	}

	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	err = s.WriteCompletion(context.Background(), &types.CompletionMessage{Type: types.MessageTypeCompletion})
	if !errors.Is(err, ErrClosed) {
		t.Errorf("write after Close error = %v, want ErrClosed", err)
	}
}

func TestStubSink_RecordsInOrder(t *testing.T) {
	s := NewStubSink()
	ctx := context.Background()

	_ = s.WriteBatch(ctx, &types.DataBatchMessage{Type: types.MessageTypeDataBatch, Seq: 1})
	_ = s.WriteTrailer(ctx, &types.MetricsTrailerMessage{Type: types.MessageTypeMetricsTrailer, Seq: 2})
	_ = s.WriteCompletion(ctx, &types.CompletionMessage{Type: types.MessageTypeCompletion, Seq: 3})

	if len(s.Messages) != 3 {
		t.Fatalf("len(Messages) = %d, want 3", len(s.Messages))
	}
	if _, ok := s.Messages[0].(*types.DataBatchMessage); !ok {
		t.Errorf("message 0 = %T, want data batch", s.Messages[0])
	}
	if _, ok := s.Messages[2].(*types.CompletionMessage); !ok {
		t.Errorf("message 2 = %T, want completion", s.Messages[2])
	}
	if len(s.Batches()) != 1 {
		t.Errorf("Batches() len = %d, want 1", len(s.Batches()))
	}

	if err := s.Close(); err != nil || !s.Closed {
		t.Errorf("Close: err = %v, Closed = %v", err, s.Closed)
	}
}

func TestStubSink_FailOn(t *testing.T) {
	s := NewStubSink()
	injected := errors.New("pipe broken")
	s.FailOn(1, injected)
	ctx := context.Background()

	if err := s.WriteBatch(ctx, &types.DataBatchMessage{Seq: 1}); err != nil {
		t.Fatalf("first write failed: %v", err)
	}
	if err := s.WriteBatch(ctx, &types.DataBatchMessage{Seq: 2}); !errors.Is(err, injected) {
		t.Fatalf("second write error = %v, want injected", err)
	}
	if len(s.Messages) != 1 {
		t.Errorf("failed write should not be recorded, got %d messages", len(s.Messages))
	}
}
