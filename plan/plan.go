// Package plan models the executed physical plan tree and its
// flattening into the metrics trailer records.
//
// The tree arrives post-adaptive-execution: runtime re-planning and
// re-staging leave behind transparent wrapper nodes that hold exactly
// one meaningful child and contribute no metrics of their own.
// Flatten elides them so the record list describes the logical plan.
package plan

import (
	"fmt"

	"github.com/loamdata/strata/types"
)

// NodeKind discriminates regular plan nodes from transparent wrappers.
type NodeKind string

// Node kind constants.
const (
	// KindRegular is an ordinary operator node. It contributes one
	// metric record to the flattened output.
	KindRegular NodeKind = "regular"
	// KindWrapper is a transparent re-planning/re-staging node. It has
	// exactly one meaningful child and contributes no record of its
	// own; its child attaches to the wrapper's own logical parent.
	KindWrapper NodeKind = "wrapper"
)

// RootParentID is the parent id recorded for the logical root node.
const RootParentID int64 = -1

// Node is one node of the executed physical plan tree.
// The tree is read-only during flattening; concurrent flattening of
// independent plans needs no locking.
type Node struct {
	// ID uniquely identifies the node within the plan.
	ID int64
	// Name is the operator name (e.g. "HashAggregate", "Scan").
	Name string
	// Kind discriminates regular nodes from transparent wrappers.
	Kind NodeKind
	// Children are the declared children in execution order. A
	// wrapper's single meaningful child is Children[0].
	Children []*Node
	// Metrics are the node's execution metrics, keyed by metric name.
	Metrics map[string]types.MetricValue
}

// Flatten walks the plan tree depth-first and returns one metric
// record per regular node, in pre-order: a node's record always
// precedes all of its descendants' records, and children are emitted
// in declared order.
//
// Wrapper nodes are elided, not relabeled: no record is emitted for a
// wrapper, and its child is visited with the parent id the wrapper
// itself would have carried. The (PlanID, ParentID) pairs of the
// output therefore reconstruct the tree with wrappers contracted.
//
// A malformed tree (cycle, wrapper without a child) is a caller
// precondition violation; use Validate to check it up front.
func Flatten(root *Node) []types.MetricRecord {
	if root == nil {
		return nil
	}

	records := make([]types.MetricRecord, 0, 8)
	flattenInto(root, RootParentID, &records)
	return records
}

func flattenInto(n *Node, parentID int64, out *[]types.MetricRecord) {
	if n.Kind == KindWrapper {
		// Transparent: the wrapped sub-plan attaches directly to the
		// wrapper's own logical parent.
		if len(n.Children) > 0 {
			flattenInto(n.Children[0], parentID, out)
		}
		return
	}

	*out = append(*out, types.MetricRecord{
		NodeName: n.Name,
		PlanID:   n.ID,
		ParentID: parentID,
		Metrics:  n.Metrics,
	})

	for _, child := range n.Children {
		flattenInto(child, n.ID, out)
	}
}

// Validate checks the structural preconditions Flatten assumes:
// no nil children, no node reachable twice (shared node or cycle),
// no duplicate node ids, and every wrapper has exactly one child.
func Validate(root *Node) error {
	if root == nil {
		return fmt.Errorf("plan root is nil")
	}

	seen := make(map[*Node]bool)
	ids := make(map[int64]string)
	return validateNode(root, seen, ids)
}

func validateNode(n *Node, seen map[*Node]bool, ids map[int64]string) error {
	if seen[n] {
		return fmt.Errorf("node %d (%s) reachable more than once", n.ID, n.Name)
	}
	seen[n] = true

	if prev, ok := ids[n.ID]; ok {
		return fmt.Errorf("duplicate node id %d (%s and %s)", n.ID, prev, n.Name)
	}
	ids[n.ID] = n.Name

	if n.Kind == KindWrapper && len(n.Children) != 1 {
		return fmt.Errorf("wrapper node %d (%s) must have exactly one child, has %d",
			n.ID, n.Name, len(n.Children))
	}

	for i, child := range n.Children {
		if child == nil {
			return fmt.Errorf("node %d (%s) has nil child %d", n.ID, n.Name, i)
		}
		if err := validateNode(child, seen, ids); err != nil {
			return err
		}
	}
	return nil
}
