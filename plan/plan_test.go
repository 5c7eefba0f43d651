package plan

import (
	"testing"

	"github.com/loamdata/strata/types"
)

func regular(id int64, name string, children ...*Node) *Node {
	return &Node{ID: id, Name: name, Kind: KindRegular, Children: children}
}

func wrapper(id int64, child *Node) *Node {
	return &Node{ID: id, Name: "Reoptimize", Kind: KindWrapper, Children: []*Node{child}}
}

func edges(records []types.MetricRecord) map[int64]int64 {
	m := make(map[int64]int64, len(records))
	for _, r := range records {
		m[r.PlanID] = r.ParentID
	}
	return m
}

func TestFlatten_WrapperElision(t *testing.T) {
	// Root(0) -> Wrapper(1) -> Stage(2) -> Leaf(3)
	// Node 1 is elided; node 2 attaches directly to node 0.
	root := regular(0, "Root",
		wrapper(1,
			regular(2, "Stage",
				regular(3, "Leaf"))))

	records := Flatten(root)
	if len(records) != 3 {
		t.Fatalf("len(records) = %d, want 3", len(records))
	}

	want := map[int64]int64{0: RootParentID, 2: 0, 3: 2}
	got := edges(records)
	for id, parent := range want {
		if got[id] != parent {
			t.Errorf("node %d parent = %d, want %d", id, got[id], parent)
		}
	}

	for _, r := range records {
		if r.PlanID == 1 {
			t.Error("wrapper node 1 should not appear in output")
		}
	}
}

func TestFlatten_PreOrder(t *testing.T) {
	root := regular(0, "Join",
		regular(1, "ScanLeft"),
		regular(2, "Exchange",
			regular(3, "ScanRight")))

	records := Flatten(root)

	var order []int64
	for _, r := range records {
		order = append(order, r.PlanID)
	}

	want := []int64{0, 1, 2, 3}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestFlatten_NestedWrappers(t *testing.T) {
	// Two stacked wrappers both collapse onto the same logical parent.
	root := regular(0, "Root",
		wrapper(1,
			&Node{ID: 2, Name: "Restage", Kind: KindWrapper, Children: []*Node{
				regular(3, "Scan"),
			}}))

	records := Flatten(root)
	got := edges(records)

	if got[3] != 0 {
		t.Errorf("node 3 parent = %d, want 0", got[3])
	}
	if len(records) != 2 {
		t.Errorf("len(records) = %d, want 2", len(records))
	}
}

func TestFlatten_WrapperRoot(t *testing.T) {
	// A wrapper at the root passes RootParentID through to its child.
	root := wrapper(10, regular(11, "Scan"))

	records := Flatten(root)
	if len(records) != 1 {
		t.Fatalf("len(records) = %d, want 1", len(records))
	}
	if records[0].PlanID != 11 || records[0].ParentID != RootParentID {
		t.Errorf("record = (%d, %d), want (11, %d)",
			records[0].PlanID, records[0].ParentID, RootParentID)
	}
}

func TestFlatten_CarriesMetrics(t *testing.T) {
	leaf := regular(1, "Scan")
	leaf.Metrics = map[string]types.MetricValue{
		"rows_read": {Name: "rows_read", Value: 42, Kind: types.MetricKindSum},
	}
	records := Flatten(regular(0, "Root", leaf))

	if len(records) != 2 {
		t.Fatalf("len(records) = %d, want 2", len(records))
	}
	mv, ok := records[1].Metrics["rows_read"]
	if !ok || mv.Value != 42 {
		t.Errorf("rows_read = %+v, want value 42", mv)
	}
}

func TestFlatten_Nil(t *testing.T) {
	if records := Flatten(nil); records != nil {
		t.Errorf("Flatten(nil) = %v, want nil", records)
	}
}

func TestValidate(t *testing.T) {
	t.Run("valid tree", func(t *testing.T) {
		root := regular(0, "Root", wrapper(1, regular(2, "Scan")))
		if err := Validate(root); err != nil {
			t.Errorf("Validate() error = %v, want nil", err)
		}
	})

	t.Run("nil root", func(t *testing.T) {
		if err := Validate(nil); err == nil {
			t.Error("expected error for nil root")
		}
	})

	t.Run("shared node", func(t *testing.T) {
		shared := regular(2, "Scan")
		root := regular(0, "Join", shared, shared)
		if err := Validate(root); err == nil {
			t.Error("expected error for node reachable twice")
		}
	})

	t.Run("duplicate id", func(t *testing.T) {
		root := regular(0, "Join", regular(1, "ScanA"), regular(1, "ScanB"))
		if err := Validate(root); err == nil {
			t.Error("expected error for duplicate node id")
		}
	})

	t.Run("childless wrapper", func(t *testing.T) {
		root := regular(0, "Root",
			&Node{ID: 1, Name: "Restage", Kind: KindWrapper})
		if err := Validate(root); err == nil {
			t.Error("expected error for wrapper without child")
		}
	})

	t.Run("wrapper with two children", func(t *testing.T) {
		root := &Node{ID: 0, Name: "Restage", Kind: KindWrapper, Children: []*Node{
			regular(1, "ScanA"), regular(2, "ScanB"),
		}}
		if err := Validate(root); err == nil {
			t.Error("expected error for wrapper with more than one child")
		}
	})

	t.Run("nil child", func(t *testing.T) {
		root := &Node{ID: 0, Name: "Root", Kind: KindRegular, Children: []*Node{nil}}
		if err := Validate(root); err == nil {
			t.Error("expected error for nil child")
		}
	})
}
