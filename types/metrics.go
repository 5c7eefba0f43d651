package types

// MetricKind classifies how a metric value should be interpreted
// and rendered by the consumer.
type MetricKind string

// Metric kind constants.
const (
	// MetricKindSum is a plain additive counter (rows, bytes, spills).
	MetricKindSum MetricKind = "sum"
	// MetricKindSize is a byte size.
	MetricKindSize MetricKind = "size"
	// MetricKindTiming is a duration in nanoseconds.
	MetricKindTiming MetricKind = "timing"
)

// MetricValue is a single named execution metric.
type MetricValue struct {
	Name  string     `msgpack:"name"`
	Value int64      `msgpack:"value"`
	Kind  MetricKind `msgpack:"kind"`
}

// MetricRecord is one flattened plan-node entry in the metrics
// trailer. Read as (PlanID, ParentID) edges, the record sequence
// reconstructs the plan's logical tree exactly: ParentID is the id of
// the nearest non-wrapper ancestor, or -1 for the root.
type MetricRecord struct {
	NodeName string                 `msgpack:"node_name"`
	PlanID   int64                  `msgpack:"plan_id"`
	ParentID int64                  `msgpack:"parent_id"`
	Metrics  map[string]MetricValue `msgpack:"metrics"`
}
