package colenc

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/loamdata/strata/types"
)

func intRows(n int) []types.Row {
	rows := make([]types.Row, n)
	for i := range rows {
		rows[i] = types.Row{int64(i), "row"}
	}
	return rows
}

func drain(t *testing.T, e *Encoder) []Batch {
	t.Helper()
	var batches []Batch
	for {
		batch, err := e.Next()
		if errors.Is(err, io.EOF) {
			return batches
		}
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		batches = append(batches, batch)
	}
}

func TestEncoder_RowBound(t *testing.T) {
	// 3 rows with MaxRows=2 and a generous byte budget: [2, 1].
	enc, err := NewEncoder(testSchema(), types.SliceRows(intRows(3)), Options{
		Budget: types.BatchBudget{MaxRows: 2, MaxBytes: 1 << 20},
	})
	if err != nil {
		t.Fatalf("NewEncoder failed: %v", err)
	}

	batches := drain(t, enc)
	if len(batches) != 2 {
		t.Fatalf("len(batches) = %d, want 2", len(batches))
	}
	if batches[0].RowCount != 2 || batches[1].RowCount != 1 {
		t.Errorf("row counts = [%d %d], want [2 1]",
			batches[0].RowCount, batches[1].RowCount)
	}
}

func TestEncoder_ByteBound(t *testing.T) {
	// Each row estimates well above half the budget, so rows pack one
	// per batch once a second row would overflow.
	rows := []types.Row{
		{int64(1), strings.Repeat("a", 600)},
		{int64(2), strings.Repeat("b", 600)},
		{int64(3), strings.Repeat("c", 600)},
	}
	enc, err := NewEncoder(testSchema(), types.SliceRows(rows), Options{
		Budget: types.BatchBudget{MaxRows: 100, MaxBytes: 1000},
	})
	if err != nil {
		t.Fatalf("NewEncoder failed: %v", err)
	}

	batches := drain(t, enc)
	if len(batches) != 3 {
		t.Fatalf("len(batches) = %d, want 3", len(batches))
	}
	for i, b := range batches {
		if b.RowCount != 1 {
			t.Errorf("batch %d RowCount = %d, want 1", i, b.RowCount)
		}
	}
}

func TestEncoder_OversizedSingleton(t *testing.T) {
	// A single row whose estimate alone exceeds MaxBytes is still
	// emitted, alone, rather than looping or failing.
	rows := []types.Row{
		{int64(1), strings.Repeat("x", 4096)},
		{int64(2), "small"},
	}
	enc, err := NewEncoder(testSchema(), types.SliceRows(rows), Options{
		Budget: types.BatchBudget{MaxRows: 100, MaxBytes: 512},
	})
	if err != nil {
		t.Fatalf("NewEncoder failed: %v", err)
	}

	batches := drain(t, enc)
	if len(batches) != 2 {
		t.Fatalf("len(batches) = %d, want 2", len(batches))
	}
	if batches[0].RowCount != 1 {
		t.Errorf("oversized row batch RowCount = %d, want 1", batches[0].RowCount)
	}
	if batches[1].RowCount != 1 {
		t.Errorf("trailing batch RowCount = %d, want 1", batches[1].RowCount)
	}
}

func TestEncoder_RowConservation(t *testing.T) {
	// Decoding every batch back reconstructs the input row sequence.
	const n = 25
	enc, err := NewEncoder(testSchema(), types.SliceRows(intRows(n)), Options{
		Budget: types.BatchBudget{MaxRows: 4, MaxBytes: 1 << 20},
	})
	if err != nil {
		t.Fatalf("NewEncoder failed: %v", err)
	}

	var got []int64
	for _, batch := range drain(t, enc) {
		p, err := DecodePayload(batch.Payload)
		if err != nil {
			t.Fatalf("DecodePayload failed: %v", err)
		}
		if p.RowCount != batch.RowCount {
			t.Errorf("payload RowCount = %d, batch RowCount = %d", p.RowCount, batch.RowCount)
		}
		for i := 0; i < p.RowCount; i++ {
			got = append(got, p.Row(i)[0].(int64))
		}
	}

	if len(got) != n {
		t.Fatalf("reconstructed %d rows, want %d", len(got), n)
	}
	for i, v := range got {
		if v != int64(i) {
			t.Fatalf("row %d = %d, order not preserved", i, v)
		}
	}
}

func TestEncoder_EmptySource(t *testing.T) {
	enc, err := NewEncoder(testSchema(), types.SliceRows(nil), Options{
		Budget: types.BatchBudget{MaxRows: 10, MaxBytes: 1024},
	})
	if err != nil {
		t.Fatalf("NewEncoder failed: %v", err)
	}

	if _, err := enc.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("Next() on empty source error = %v, want io.EOF", err)
	}
	// Exhausted encoder stays exhausted.
	if _, err := enc.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("second Next() error = %v, want io.EOF", err)
	}
}

func TestEncoder_EncodeFailureStops(t *testing.T) {
	rows := []types.Row{{int64(1), "ok"}, {"bad", "row"}}
	enc, err := NewEncoder(testSchema(), types.SliceRows(rows), Options{
		Budget: types.BatchBudget{MaxRows: 1, MaxBytes: 1 << 20},
	})
	if err != nil {
		t.Fatalf("NewEncoder failed: %v", err)
	}

	if _, err := enc.Next(); err != nil {
		t.Fatalf("first batch failed: %v", err)
	}
	if _, err := enc.Next(); err == nil || errors.Is(err, io.EOF) {
		t.Fatalf("second Next() error = %v, want encoding failure", err)
	}
	if _, err := enc.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("Next() after failure error = %v, want io.EOF", err)
	}
}

func TestEncoder_InvalidOptions(t *testing.T) {
	if _, err := NewEncoder(testSchema(), types.SliceRows(nil), Options{}); err == nil {
		t.Error("expected error for zero budget")
	}
	if _, err := NewEncoder(types.Schema{}, types.SliceRows(nil), Options{
		Budget: types.BatchBudget{MaxRows: 1, MaxBytes: 1},
	}); err == nil {
		t.Error("expected error for invalid schema")
	}
	if _, err := NewEncoder(testSchema(), nil, Options{
		Budget: types.BatchBudget{MaxRows: 1, MaxBytes: 1},
	}); err == nil {
		t.Error("expected error for nil source")
	}
}
