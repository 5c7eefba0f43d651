package colenc

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/loamdata/strata/types"
)

// Options configures an Encoder.
type Options struct {
	// Budget bounds every emitted batch. Required.
	Budget types.BatchBudget
	// Location renders timestamp values. Defaults to UTC.
	Location *time.Location
}

// Encoder packs rows from a single-use source into encoded batches.
//
// It is a forward-only iterator: each Next call consumes just enough
// rows to fill one batch and emits it. Rows accumulate while adding
// the next row keeps the batch within Budget.MaxRows and the
// estimated encoded size within Budget.MaxBytes; the row that would
// overflow starts the next batch. A row whose estimate alone exceeds
// MaxBytes is emitted as a singleton batch — forward progress over
// strict size compliance.
//
// The sequence is finite and not restartable. Each batch carries its
// exact row count.
type Encoder struct {
	schema  types.Schema
	src     types.RowSource
	budget  types.BatchBudget
	loc     *time.Location
	pending types.Row
	done    bool
}

// NewEncoder creates an encoder over one partition's rows.
func NewEncoder(schema types.Schema, src types.RowSource, opts Options) (*Encoder, error) {
	if err := schema.Validate(); err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}
	if err := opts.Budget.Validate(); err != nil {
		return nil, fmt.Errorf("invalid budget: %w", err)
	}
	if src == nil {
		return nil, fmt.Errorf("row source is nil")
	}

	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}

	return &Encoder{
		schema: schema,
		src:    src,
		budget: opts.Budget,
		loc:    loc,
	}, nil
}

// Next returns the next encoded batch, or io.EOF once the source is
// exhausted. An empty source yields io.EOF on the first call; the
// at-least-one-batch guarantee lives in the streamer, not here.
func (e *Encoder) Next() (Batch, error) {
	if e.done {
		return Batch{}, io.EOF
	}

	rows, err := e.fillBatch()
	if err != nil {
		e.done = true
		return Batch{}, err
	}
	if len(rows) == 0 {
		e.done = true
		return Batch{}, io.EOF
	}

	payload, err := EncodePayload(rows, e.schema, e.loc)
	if err != nil {
		e.done = true
		return Batch{}, err
	}

	return Batch{Payload: payload, RowCount: len(rows)}, nil
}

// fillBatch accumulates rows for one batch, leaving the first
// overflowing row in e.pending for the next call.
func (e *Encoder) fillBatch() ([]types.Row, error) {
	var rows []types.Row
	var sizeEst int

	// A row carried over from the previous batch opens this one,
	// even if it alone exceeds the byte budget.
	if e.pending != nil {
		rows = append(rows, e.pending)
		sizeEst = EstimateRowSize(e.pending)
		e.pending = nil
	}

	for {
		if len(rows) >= e.budget.MaxRows {
			return rows, nil
		}

		row, err := e.src.Next()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}

		rowEst := EstimateRowSize(row)
		if len(rows) > 0 && sizeEst+rowEst > e.budget.MaxBytes {
			// Close the current batch; this row starts the next one.
			e.pending = row
			return rows, nil
		}

		rows = append(rows, row)
		sizeEst += rowEst
	}
}
