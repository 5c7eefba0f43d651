package types

// MessageType is the wire message discriminator.
type MessageType string

// Message type constants. Within one stream, messages appear in the
// order data_batch*, metrics_trailer, completion — or end early with
// a single error message. Nothing follows completion or error.
const (
	MessageTypeDataBatch      MessageType = "data_batch"
	MessageTypeMetricsTrailer MessageType = "metrics_trailer"
	MessageTypeCompletion     MessageType = "completion"
	MessageTypeError          MessageType = "error"
)

// IsTerminal reports whether this message type ends a stream.
func (m MessageType) IsTerminal() bool {
	return m == MessageTypeCompletion || m == MessageTypeError
}

// DataBatchMessage carries one encoded columnar batch.
// All fields use msgpack tags to match the consumer SDK wire format.
type DataBatchMessage struct {
	// Type is always MessageTypeDataBatch.
	Type MessageType `msgpack:"type"`
	// ClientID tags the message with the consuming client.
	ClientID string `msgpack:"client_id"`
	// Seq is the monotonic message sequence number, starts at 1.
	Seq int64 `msgpack:"seq"`
	// RowCount is the exact number of rows in the payload. A zero
	// RowCount batch still carries a valid schema-conformant payload.
	RowCount int `msgpack:"row_count"`
	// Payload is the encoded columnar batch, opaque to the transport.
	Payload []byte `msgpack:"payload"`
	// Compressed marks a snappy-compressed payload. Set by the
	// transport adapter, never by the streamer itself.
	Compressed bool `msgpack:"compressed"`
}

// MetricsTrailerMessage carries the flattened execution metrics.
// Its arrival is the sole indicator that data transfer completed:
// a consumer that never sees a trailer must treat the result as
// incomplete.
type MetricsTrailerMessage struct {
	// Type is always MessageTypeMetricsTrailer.
	Type MessageType `msgpack:"type"`
	// ClientID tags the message with the consuming client.
	ClientID string `msgpack:"client_id"`
	// Seq is the monotonic message sequence number.
	Seq int64 `msgpack:"seq"`
	// Records is the pre-order, wrapper-elided flattening of the
	// executed plan.
	Records []MetricRecord `msgpack:"records"`
}

// CompletionMessage signals normal end of stream.
type CompletionMessage struct {
	// Type is always MessageTypeCompletion.
	Type MessageType `msgpack:"type"`
	// ClientID tags the message with the consuming client.
	ClientID string `msgpack:"client_id"`
	// Seq is the monotonic message sequence number.
	Seq int64 `msgpack:"seq"`
}

// ErrorMessage signals abnormal termination. No further messages
// follow it; partially delivered batches are not retried or rolled
// back at this layer.
type ErrorMessage struct {
	// Type is always MessageTypeError.
	Type MessageType `msgpack:"type"`
	// ClientID tags the message with the consuming client.
	ClientID string `msgpack:"client_id"`
	// Seq is the monotonic message sequence number.
	Seq int64 `msgpack:"seq"`
	// Kind is the error classification (e.g. "encoding", "sink").
	Kind string `msgpack:"kind"`
	// Cause is the human-readable failure description.
	Cause string `msgpack:"cause"`
}
