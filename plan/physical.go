package plan

import "github.com/prismquery/planner/planerr"

// smallSideThreshold is the row-count cutoff below which a NestedLoopJoin
// beats a HashJoin: hash-table build overhead isn't worth it when one side
// is already tiny, per spec.md §4.4.
const smallSideThreshold = 1000

// ConvertPhysical maps a LogicalNode tree to its cost-driven physical
// equivalent: Join becomes HashJoin unless one side is smaller than
// smallSideThreshold rows, in which case NestedLoopJoin is cheaper;
// Aggregate always becomes HashAggregate (the only aggregate strategy this
// planner implements, per spec.md's "HashAggregate by default"). Every
// other Kind maps one-to-one. Cost is accumulated bottom-up using the same
// three-term model optimizer.Cost uses.
func ConvertPhysical(n *LogicalNode) (*PhysicalNode, error) {
	if n == nil {
		return nil, nil
	}

	switch n.Kind {
	case LogicalScan:
		return &PhysicalNode{
			Kind:          PhysicalScan,
			Entity:        n.Entity,
			OutputSchema:  n.OutputSchema,
			EstimatedRows: n.EstimatedRows,
			Cost:          CostEstimate{CPU: n.EstimatedRows},
		}, nil

	case LogicalFilter:
		input, err := ConvertPhysical(n.Input)
		if err != nil {
			return nil, err
		}
		return &PhysicalNode{
			Kind:          PhysicalFilter,
			Input:         input,
			Predicates:    n.Predicates,
			OutputSchema:  n.OutputSchema,
			EstimatedRows: n.EstimatedRows,
			Cost:          input.Cost,
		}, nil

	case LogicalJoin:
		left, err := ConvertPhysical(n.Left)
		if err != nil {
			return nil, err
		}
		right, err := ConvertPhysical(n.Right)
		if err != nil {
			return nil, err
		}

		kind := PhysicalHashJoin
		buildSide := "left"
		if right.EstimatedRows < left.EstimatedRows {
			buildSide = "right"
		}
		if left.EstimatedRows < smallSideThreshold || right.EstimatedRows < smallSideThreshold {
			kind = PhysicalNestedLoopJoin
			buildSide = ""
		}

		cost := CostEstimate{
			CPU:    left.Cost.CPU + right.Cost.CPU + n.EstimatedRows,
			IO:     left.Cost.IO + right.Cost.IO + 0.1*n.EstimatedRows,
			Memory: max3(left.Cost.Memory, right.Cost.Memory, n.EstimatedRows),
		}

		return &PhysicalNode{
			Kind:          kind,
			Left:          left,
			Right:         right,
			On:            n.On,
			JoinKind:      n.JoinKind,
			BuildSide:     buildSide,
			OutputSchema:  n.OutputSchema,
			EstimatedRows: n.EstimatedRows,
			Cost:          cost,
		}, nil

	case LogicalAggregate:
		input, err := ConvertPhysical(n.Input)
		if err != nil {
			return nil, err
		}
		return &PhysicalNode{
			Kind:         PhysicalHashAggregate,
			Input:        input,
			GroupBy:      n.GroupBy,
			Aggregates:   n.Aggregates,
			OutputSchema: n.OutputSchema,
			Cost:         input.Cost,
		}, nil

	case LogicalProject:
		input, err := ConvertPhysical(n.Input)
		if err != nil {
			return nil, err
		}
		return &PhysicalNode{
			Kind:         PhysicalProject,
			Input:        input,
			Columns:      n.Columns,
			OutputSchema: n.OutputSchema,
			Cost:         input.Cost,
		}, nil

	case LogicalSort:
		input, err := ConvertPhysical(n.Input)
		if err != nil {
			return nil, err
		}
		return &PhysicalNode{
			Kind:         PhysicalSort,
			Input:        input,
			SortKeys:     n.SortKeys,
			OutputSchema: n.OutputSchema,
			Cost:         input.Cost,
		}, nil

	case LogicalLimit:
		input, err := ConvertPhysical(n.Input)
		if err != nil {
			return nil, err
		}
		return &PhysicalNode{
			Kind:         PhysicalLimit,
			Input:        input,
			LimitN:       n.LimitN,
			OutputSchema: n.OutputSchema,
			Cost:         input.Cost,
		}, nil

	default:
		return nil, planerr.Newf(planerr.KindInternal, "plan: no physical conversion for logical kind %v", n.Kind)
	}
}

func max3(a, b, c float64) float64 {
	m := a
	if b > m {
		m = b
	}
	if c > m {
		m = c
	}
	return m
}
