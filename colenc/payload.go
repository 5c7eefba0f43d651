// Package colenc encodes rows into size- and row-count-bounded
// columnar batches.
//
// The payload format is column-major msgpack: pivoting rows into
// per-column value slices lets the consumer process batches
// vectorised without re-shaping. A batch payload is self-describing
// (column names and types travel with the values), so a zero-row
// payload is still a valid, schema-conformant encoding.
package colenc

import (
	"errors"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/loamdata/strata/types"
)

// ErrUnsupportedValue indicates a row value that cannot be encoded
// under its column's declared type.
var ErrUnsupportedValue = errors.New("unsupported value for column type")

// Batch is one encoded columnar batch. Payload is owned by the
// producer until handed to the sink, then logically transferred.
type Batch struct {
	// Payload is the msgpack-encoded column-major batch.
	Payload []byte
	// RowCount is the exact number of rows in the payload.
	RowCount int
}

// Payload is the decoded form of a batch payload. Used by consumers,
// the inspect tooling, and tests; the streaming path never decodes.
type Payload struct {
	Columns  []string `msgpack:"columns"`
	Types    []string `msgpack:"types"`
	RowCount int      `msgpack:"row_count"`
	// Values holds one slice per column, each of length RowCount.
	Values [][]any `msgpack:"values"`
}

// Row reconstructs row i of the payload in column order.
func (p *Payload) Row(i int) types.Row {
	row := make(types.Row, len(p.Values))
	for c := range p.Values {
		row[c] = p.Values[c][i]
	}
	return row
}

// EncodePayload encodes rows belonging to one batch into the
// column-major payload format. Timestamp values are rendered in loc
// (UTC if nil). Every row must conform to the schema; a mismatched
// value aborts the encoding.
func EncodePayload(rows []types.Row, schema types.Schema, loc *time.Location) ([]byte, error) {
	if loc == nil {
		loc = time.UTC
	}

	ncols := len(schema.Columns)
	values := make([][]any, ncols)
	for c := range values {
		values[c] = make([]any, 0, len(rows))
	}

	for ri, row := range rows {
		if len(row) != ncols {
			return nil, fmt.Errorf("row %d has %d values, schema has %d columns",
				ri, len(row), ncols)
		}
		for c, col := range schema.Columns {
			v, err := convertValue(row[c], col.Type, loc)
			if err != nil {
				return nil, fmt.Errorf("row %d column %q: %w", ri, col.Name, err)
			}
			values[c] = append(values[c], v)
		}
	}

	colTypes := make([]string, ncols)
	for c, col := range schema.Columns {
		colTypes[c] = string(col.Type)
	}

	return msgpack.Marshal(&Payload{
		Columns:  schema.Names(),
		Types:    colTypes,
		RowCount: len(rows),
		Values:   values,
	})
}

// EmptyBatch returns the zero-row batch for a schema: RowCount 0 with
// a payload a decoder recognises as a valid, schema-conformant,
// empty encoding. Used when a result produced no batches at all, so
// the consumer always receives at least one data message.
func EmptyBatch(schema types.Schema) (Batch, error) {
	payload, err := EncodePayload(nil, schema, nil)
	if err != nil {
		return Batch{}, err
	}
	return Batch{Payload: payload, RowCount: 0}, nil
}

// DecodePayload decodes a batch payload and restores the declared
// column types: msgpack shrinks integers to their smallest wire width,
// so decoded values are widened back to the schema representation and
// timestamps are parsed back from their rendered form.
func DecodePayload(data []byte) (*Payload, error) {
	var p Payload
	if err := msgpack.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode batch payload: %w", err)
	}
	if len(p.Values) != len(p.Types) {
		return nil, fmt.Errorf("decode batch payload: %d value columns, %d types",
			len(p.Values), len(p.Types))
	}
	for c, t := range p.Types {
		for i, v := range p.Values[c] {
			rv, err := restoreValue(v, types.ColumnType(t))
			if err != nil {
				return nil, fmt.Errorf("decode batch payload: column %d row %d: %w", c, i, err)
			}
			p.Values[c][i] = rv
		}
	}
	return &p, nil
}

// restoreValue widens a decoded value back to its column type's
// in-memory representation. Values of unexpected shape pass through
// untouched; the consumer's own type switch decides what to reject.
func restoreValue(v any, t types.ColumnType) (any, error) {
	if v == nil {
		return nil, nil
	}

	switch t {
	case types.ColumnTypeInt64:
		switch n := v.(type) {
		case int8:
			return int64(n), nil
		case int16:
			return int64(n), nil
		case int32:
			return int64(n), nil
		case int64:
			return n, nil
		case uint8:
			return int64(n), nil
		case uint16:
			return int64(n), nil
		case uint32:
			return int64(n), nil
		case uint64:
			return int64(n), nil
		}
	case types.ColumnTypeFloat64:
		switch f := v.(type) {
		case float32:
			return float64(f), nil
		case float64:
			return f, nil
		}
	case types.ColumnTypeTimestamp:
		if s, ok := v.(string); ok {
			ts, err := time.Parse(time.RFC3339Nano, s)
			if err != nil {
				return nil, fmt.Errorf("malformed timestamp %q: %w", s, err)
			}
			return ts, nil
		}
	}
	return v, nil
}

// convertValue normalises a row value to the encodable representation
// for its column type. Nil is allowed for every type.
func convertValue(v any, t types.ColumnType, loc *time.Location) (any, error) {
	if v == nil {
		return nil, nil
	}

	switch t {
	case types.ColumnTypeBool:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case types.ColumnTypeInt64:
		switch n := v.(type) {
		case int64:
			return n, nil
		case int:
			return int64(n), nil
		case int32:
			return int64(n), nil
		}
	case types.ColumnTypeFloat64:
		switch f := v.(type) {
		case float64:
			return f, nil
		case float32:
			return float64(f), nil
		}
	case types.ColumnTypeString:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case types.ColumnTypeBytes:
		if b, ok := v.([]byte); ok {
			return b, nil
		}
	case types.ColumnTypeTimestamp:
		if ts, ok := v.(time.Time); ok {
			return ts.In(loc).Format(time.RFC3339Nano), nil
		}
	}

	return nil, fmt.Errorf("%w: %T as %s", ErrUnsupportedValue, v, t)
}

// Estimated encoded sizes per value kind. The byte budget is
// advisory, so these only need to be close enough that packing stays
// conservatively under the transport cap.
const (
	estNilBytes       = 1
	estBoolBytes      = 1
	estNumberBytes    = 9
	estTimestampBytes = 36
	estVarlenOverhead = 5
	estRowOverhead    = 4
)

// EstimateRowSize returns the estimated encoded size of one row in
// bytes. It is deliberately an estimate: packing closes a batch when
// the estimate would exceed the budget, and the effective byte budget
// is already a conservative fraction of the transport cap.
func EstimateRowSize(row types.Row) int {
	size := estRowOverhead
	for _, v := range row {
		switch val := v.(type) {
		case nil:
			size += estNilBytes
		case bool:
			size += estBoolBytes
		case string:
			size += len(val) + estVarlenOverhead
		case []byte:
			size += len(val) + estVarlenOverhead
		case time.Time:
			size += estTimestampBytes
		default:
			size += estNumberBytes
		}
	}
	return size
}
