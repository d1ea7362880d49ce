// Package plan defines the logical/physical plan IR between the DP join
// optimizer's table-ordering decision and SQL text: a closed, Kind-
// discriminated node tree (no interface{} polymorphism, the same shape
// model.Expr and graph's node arena use) plus the pure function that
// renders a physical tree to SQL.
package plan

import (
	"github.com/prismquery/planner/graph"
	"github.com/prismquery/planner/model"
)

// LogicalKind discriminates the LogicalNode variants.
type LogicalKind int

const (
	LogicalScan LogicalKind = iota
	LogicalFilter
	LogicalJoin
	LogicalAggregate
	LogicalProject
	LogicalSort
	LogicalLimit
)

func (k LogicalKind) String() string {
	switch k {
	case LogicalScan:
		return "Scan"
	case LogicalFilter:
		return "Filter"
	case LogicalJoin:
		return "Join"
	case LogicalAggregate:
		return "Aggregate"
	case LogicalProject:
		return "Project"
	case LogicalSort:
		return "Sort"
	case LogicalLimit:
		return "Limit"
	default:
		return "Unknown"
	}
}

// JoinKind enumerates SQL join types.
type JoinKind int

const (
	JoinInner JoinKind = iota
	JoinLeft
	JoinRight
	JoinFull
)

func (k JoinKind) String() string {
	switch k {
	case JoinInner:
		return "INNER JOIN"
	case JoinLeft:
		return "LEFT JOIN"
	case JoinRight:
		return "RIGHT JOIN"
	case JoinFull:
		return "FULL JOIN"
	default:
		return "INNER JOIN"
	}
}

// OnPair is one column-pair equality in a Join's on-condition.
type OnPair struct {
	Left, Right string // entity-qualified "entity.column"
}

// AggregateExpr is one computed output column of an Aggregate node.
type AggregateExpr struct {
	Output       string // output alias, the measure's qualified name
	Aggregation  string // "sum", "count", "avg", "min", "max", ...
	SourceColumn string // entity-qualified source column
}

// LogicalNode is the closed logical-plan node sum. Exactly one group of
// fields is meaningful per Kind:
//
//	Scan:      Entity
//	Filter:    Input, Predicates
//	Join:      Left, Right, On, JoinKind, Cardinality
//	Aggregate: Input, GroupBy, Aggregates
//	Project:   Input, Columns
//	Sort:      Input, SortKeys
//	Limit:     Input, LimitN
type LogicalNode struct {
	Kind LogicalKind

	InputSchema  []string
	OutputSchema []string

	Entity string

	Input      *LogicalNode
	Predicates []model.Expr

	Left, Right *LogicalNode
	On          []OnPair
	JoinKind    JoinKind
	Cardinality graph.Cardinality

	GroupBy    []string
	Aggregates []AggregateExpr

	Columns []string

	SortKeys []model.SortKey

	LimitN int

	// EstimatedRows is carried over from optimizer.SubsetPlan for Scan,
	// Filter and Join nodes only (the nodes the physical converter needs row
	// counts for to choose a join algorithm); zero for every other Kind.
	EstimatedRows float64
}

// PhysicalKind discriminates the PhysicalNode variants.
type PhysicalKind int

const (
	PhysicalScan PhysicalKind = iota
	PhysicalFilter
	PhysicalHashJoin
	PhysicalNestedLoopJoin
	PhysicalHashAggregate
	PhysicalProject
	PhysicalSort
	PhysicalLimit
)

func (k PhysicalKind) String() string {
	switch k {
	case PhysicalScan:
		return "Scan"
	case PhysicalFilter:
		return "Filter"
	case PhysicalHashJoin:
		return "HashJoin"
	case PhysicalNestedLoopJoin:
		return "NestedLoopJoin"
	case PhysicalHashAggregate:
		return "HashAggregate"
	case PhysicalProject:
		return "Project"
	case PhysicalSort:
		return "Sort"
	case PhysicalLimit:
		return "Limit"
	default:
		return "Unknown"
	}
}

// CostEstimate mirrors optimizer.Cost's three-term shape, carried forward
// onto the physical tree so the planner can report a bottom-up total
// alongside the chosen plan without re-deriving it from the optimizer.
type CostEstimate struct {
	CPU, IO, Memory float64
}

// Total combines the three terms, weighted identically to optimizer.Cost.
func (c CostEstimate) Total() float64 {
	return c.CPU + c.IO*0.1 + c.Memory*0.01
}

// PhysicalNode is the closed physical-plan node sum, one per LogicalNode
// after the cost-driven conversion in physical.go. BuildSide ("left" or
// "right") names which child a HashJoin builds its hash table from.
type PhysicalNode struct {
	Kind PhysicalKind

	EstimatedRows float64
	Cost          CostEstimate
	OutputSchema  []string

	Entity string

	Input      *PhysicalNode
	Predicates []model.Expr

	Left, Right *PhysicalNode
	On          []OnPair
	JoinKind    JoinKind
	BuildSide   string

	GroupBy    []string
	Aggregates []AggregateExpr

	Columns []string

	SortKeys []model.SortKey

	LimitN int
}
