package plan

import (
	"github.com/prismquery/planner/graph"
	"github.com/prismquery/planner/model"
	"github.com/prismquery/planner/optimizer"
	"github.com/prismquery/planner/planerr"
)

// BuildLogical consumes a Report and the optimizer's winning join tree and
// produces the Scan/Join -> Filter -> Aggregate -> Project -> Sort -> Limit
// chain spec.md §4.4 mandates. The join tree itself (table order, shape,
// and per-node pushed-down filters) comes from optimizer.Solve; this
// builder is only responsible for wrapping it with the report's grouping,
// projection, ordering, and limiting.
func BuildLogical(g *graph.UnifiedGraph, report *model.Report, joinPlan *optimizer.SubsetPlan) (*LogicalNode, error) {
	node, err := fromSubsetPlan(g, joinPlan)
	if err != nil {
		return nil, err
	}

	groupBy, err := resolveGroupBy(g, report.Group)
	if err != nil {
		return nil, err
	}
	aggregates, err := resolveAggregates(g, report.Show)
	if err != nil {
		return nil, err
	}

	node = &LogicalNode{
		Kind:       LogicalAggregate,
		Input:      node,
		GroupBy:    groupBy,
		Aggregates: aggregates,
	}
	node.OutputSchema = append(append([]string(nil), groupBy...), aggregateOutputs(aggregates)...)

	projectCols := append([]string(nil), node.OutputSchema...)
	node = &LogicalNode{
		Kind:         LogicalProject,
		Input:        node,
		Columns:      projectCols,
		OutputSchema: projectCols,
	}

	if len(report.Sort) > 0 {
		node = &LogicalNode{
			Kind:         LogicalSort,
			Input:        node,
			SortKeys:     report.Sort,
			OutputSchema: node.OutputSchema,
		}
	}

	if report.Limit != nil {
		node = &LogicalNode{
			Kind:         LogicalLimit,
			Input:        node,
			LimitN:       *report.Limit,
			OutputSchema: node.OutputSchema,
		}
	}

	return node, nil
}

// fromSubsetPlan converts an optimizer.SubsetPlan bushy tree into a
// Scan/Join LogicalNode tree, wrapping each node in a Filter when the
// optimizer pushed predicates down to it.
func fromSubsetPlan(g *graph.UnifiedGraph, sp *optimizer.SubsetPlan) (*LogicalNode, error) {
	var node *LogicalNode

	if sp.IsLeaf() {
		schema, err := entityOutputSchema(g, sp.Entity)
		if err != nil {
			return nil, err
		}
		node = &LogicalNode{Kind: LogicalScan, Entity: sp.Entity, OutputSchema: schema, EstimatedRows: sp.EstimatedRows}
	} else {
		left, err := fromSubsetPlan(g, sp.Left)
		if err != nil {
			return nil, err
		}
		right, err := fromSubsetPlan(g, sp.Right)
		if err != nil {
			return nil, err
		}
		schema := append(append([]string(nil), left.OutputSchema...), right.OutputSchema...)
		node = &LogicalNode{
			Kind:  LogicalJoin,
			Left:  left,
			Right: right,
			On: []OnPair{
				{Left: sp.Edge.LeftColumn, Right: sp.Edge.RightColumn},
			},
			JoinKind:      JoinInner,
			Cardinality:   sp.Edge.Cardinality,
			OutputSchema:  schema,
			EstimatedRows: sp.EstimatedRows,
		}
	}

	if len(sp.AppliedFilters) > 0 {
		node = &LogicalNode{
			Kind:          LogicalFilter,
			Input:         node,
			Predicates:    sp.AppliedFilters,
			OutputSchema:  node.OutputSchema,
			EstimatedRows: node.EstimatedRows,
		}
	}
	return node, nil
}

// entityOutputSchema returns entity's columns in declaration order via its
// BELONGS_TO in-edges (each column points at its owning entity).
func entityOutputSchema(g *graph.UnifiedGraph, entity string) ([]string, error) {
	h, ok := g.EntityHandle(entity)
	if !ok {
		return nil, planerr.UnknownEntity(entity, g.EntityNames())
	}
	edges := g.InEdges(h, graph.EdgeBelongsTo)
	cols := make([]string, 0, len(edges))
	for _, e := range edges {
		cols = append(cols, g.Column(e.From).QualifiedName())
	}
	return cols, nil
}

// resolveGroupBy converts Report.Group refs into qualified column names,
// resolving drill-path references against their named calendar.
func resolveGroupBy(g *graph.UnifiedGraph, refs []model.GroupRef) ([]string, error) {
	out := make([]string, 0, len(refs))
	for _, ref := range refs {
		if ref.DrillPath != "" {
			resolved, err := g.ResolveDrillPath(ref.Calendar, []string{ref.DrillPath})
			if err != nil {
				return nil, err
			}
			out = append(out, ref.Calendar+"."+resolved[0])
			continue
		}
		out = append(out, ref.Column)
	}
	return out, nil
}

// resolveAggregates looks up each requested measure's aggregation and
// source column in the graph.
func resolveAggregates(g *graph.UnifiedGraph, show []string) ([]AggregateExpr, error) {
	out := make([]AggregateExpr, 0, len(show))
	for _, qname := range show {
		h, ok := g.MeasureHandle(qname)
		if !ok {
			return nil, planerr.UnknownMeasure(qname, g.MeasureNames())
		}
		m := g.Measure(h)
		src := m.SourceColumn
		if src != "" {
			src = m.Entity + "." + src
		}
		out = append(out, AggregateExpr{Output: qname, Aggregation: m.Aggregation, SourceColumn: src})
	}
	return out, nil
}

func aggregateOutputs(aggregates []AggregateExpr) []string {
	out := make([]string, len(aggregates))
	for i, a := range aggregates {
		out[i] = a.Output
	}
	return out
}
