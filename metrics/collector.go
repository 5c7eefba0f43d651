// Package metrics provides per-stream metrics collection.
//
// The Collector accumulates counters during a single streaming call.
// It is a leaf package with no internal dependencies; sink-level
// counters are recorded by the instrumented sink wrapper rather than
// by the streamer, avoiding double-counting.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of all stream metrics.
// Returned by Collector.Snapshot(). Safe to read concurrently after
// creation.
type Snapshot struct {
	// Stream lifecycle
	StreamsStarted   int64
	StreamsCompleted int64
	StreamsFailed    int64

	// Data transfer
	BatchesSent    int64
	RowsSent       int64
	PayloadBytes   int64
	EmptyFallbacks int64
	TrailersSent   int64

	// Failures
	EncodeErrors int64

	// Sink (recorded by the instrumented sink wrapper, per-call)
	SinkWriteSuccess int64
	SinkWriteFailure int64

	// Dimensions (informational, set at construction)
	ClientID string
	SinkKind string
}

// Collector accumulates metrics during a single streaming call.
// Thread-safe via sync.Mutex. All increment methods are nil-receiver
// safe, so callers can pass a nil collector to disable recording.
type Collector struct {
	mu sync.Mutex

	streamsStarted   int64
	streamsCompleted int64
	streamsFailed    int64

	batchesSent    int64
	rowsSent       int64
	payloadBytes   int64
	emptyFallbacks int64
	trailersSent   int64

	encodeErrors int64

	sinkWriteSuccess int64
	sinkWriteFailure int64

	clientID string
	sinkKind string
}

// NewCollector creates a Collector with dimension labels.
func NewCollector(clientID, sinkKind string) *Collector {
	return &Collector{
		clientID: clientID,
		sinkKind: sinkKind,
	}
}

// --- Stream lifecycle ---

// IncStreamStarted records the start of a streaming call.
func (c *Collector) IncStreamStarted() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.streamsStarted++
	c.mu.Unlock()
}

// IncStreamCompleted records a stream that reached completion.
func (c *Collector) IncStreamCompleted() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.streamsCompleted++
	c.mu.Unlock()
}

// IncStreamFailed records a stream terminated by an error.
func (c *Collector) IncStreamFailed() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.streamsFailed++
	c.mu.Unlock()
}

// --- Data transfer ---

// AddBatchSent records one emitted data batch with its row count and
// payload size.
func (c *Collector) AddBatchSent(rows int, payloadBytes int) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.batchesSent++
	c.rowsSent += int64(rows)
	c.payloadBytes += int64(payloadBytes)
	c.mu.Unlock()
}

// IncEmptyFallback records an empty-result fallback batch.
func (c *Collector) IncEmptyFallback() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.emptyFallbacks++
	c.mu.Unlock()
}

// IncTrailerSent records an emitted metrics trailer.
func (c *Collector) IncTrailerSent() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.trailersSent++
	c.mu.Unlock()
}

// --- Failures ---

// IncEncodeError records a row encoding failure.
func (c *Collector) IncEncodeError() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.encodeErrors++
	c.mu.Unlock()
}

// --- Sink ---
// Sink counters are per-call, not per-row. A single write carrying a
// batch of N rows counts as 1 success; row granularity is tracked by
// AddBatchSent.

// IncSinkWriteSuccess records a successful sink write.
func (c *Collector) IncSinkWriteSuccess() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.sinkWriteSuccess++
	c.mu.Unlock()
}

// IncSinkWriteFailure records a failed sink write.
func (c *Collector) IncSinkWriteFailure() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.sinkWriteFailure++
	c.mu.Unlock()
}

// Snapshot returns an immutable point-in-time view of all metrics.
// The Collector can continue to be mutated independently.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	return Snapshot{
		StreamsStarted:   c.streamsStarted,
		StreamsCompleted: c.streamsCompleted,
		StreamsFailed:    c.streamsFailed,

		BatchesSent:    c.batchesSent,
		RowsSent:       c.rowsSent,
		PayloadBytes:   c.payloadBytes,
		EmptyFallbacks: c.emptyFallbacks,
		TrailersSent:   c.trailersSent,

		EncodeErrors: c.encodeErrors,

		SinkWriteSuccess: c.sinkWriteSuccess,
		SinkWriteFailure: c.sinkWriteFailure,

		ClientID: c.clientID,
		SinkKind: c.sinkKind,
	}
}
