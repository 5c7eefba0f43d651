package types

import "io"

// Row is an ordered sequence of values conforming to a Schema.
// Rows are produced by the execution engine and never mutated here.
type Row []any

// RowSource is a single-use forward iterator over rows.
//
// Next returns the next row, or io.EOF once the source is exhausted.
// A source is not restartable: after io.EOF every subsequent call
// must also return io.EOF. Partition sizes are not known up front,
// so there is deliberately no length method.
type RowSource interface {
	Next() (Row, error)
}

// Partition is one ordered subset of the full result's rows,
// identified by its partition index. Partitions are consumed and
// emitted strictly in index order; the backend may have computed
// them in parallel, but they arrive here already ordered.
type Partition struct {
	Index int
	Rows  RowSource
}

// sliceSource iterates over an in-memory row slice.
type sliceSource struct {
	rows []Row
	pos  int
}

// SliceRows wraps an in-memory row slice as a RowSource.
func SliceRows(rows []Row) RowSource {
	return &sliceSource{rows: rows}
}

// Next implements RowSource.
func (s *sliceSource) Next() (Row, error) {
	if s.pos >= len(s.rows) {
		return nil, io.EOF
	}
	row := s.rows[s.pos]
	s.pos++
	return row, nil
}

// SlicePartitions builds index-ordered partitions from in-memory row
// slices. Partition i receives index i.
func SlicePartitions(partitions ...[]Row) []Partition {
	out := make([]Partition, len(partitions))
	for i, rows := range partitions {
		out[i] = Partition{Index: i, Rows: SliceRows(rows)}
	}
	return out
}
