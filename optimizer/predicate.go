package optimizer

import (
	"strings"

	"github.com/prismquery/planner/graph"
	"github.com/prismquery/planner/model"
	"github.com/prismquery/planner/planerr"
)

// Predicate is a classified filter: its referenced tables (for placement)
// and its estimated selectivity (for cardinality estimation).
type Predicate struct {
	Expr             model.Expr
	ReferencedTables map[string]bool
	Selectivity      float64
}

// ClassifyPredicates converts a Report's raw filter expressions into
// Predicates, walking each expression's referenced columns to determine
// which tables it touches and estimating its selectivity per the fixed
// table below (graph metadata overrides the high/low-cardinality split on
// equality predicates).
func ClassifyPredicates(g *graph.UnifiedGraph, filters []model.Expr) ([]Predicate, error) {
	out := make([]Predicate, 0, len(filters))
	for _, f := range filters {
		tables := map[string]bool{}
		for _, col := range f.ReferencedColumns() {
			if entity, _, ok := strings.Cut(col, "."); ok {
				tables[entity] = true
			}
		}
		sel, err := selectivityOf(g, f)
		if err != nil {
			return nil, err
		}
		out = append(out, Predicate{Expr: f, ReferencedTables: tables, Selectivity: sel})
	}
	return out, nil
}

// selectivityOf estimates a predicate's selectivity per spec's fixed table:
// equality on a high-cardinality column is very selective (0.001), on a
// low-cardinality column much less so (0.1); range comparisons are 0.33;
// AND multiplies, OR uses inclusion-exclusion; anything else defaults to
// 0.5. A result outside [0,1] is not clamped; it is reported as
// SelectivityRangeInvalid.
func selectivityOf(g *graph.UnifiedGraph, e model.Expr) (float64, error) {
	var sel float64
	var err error

	switch e.Kind {
	case model.ExprBinary:
		switch e.Op {
		case "=", "==":
			sel, err = equalitySelectivity(g, e)
		case "<", ">", "<=", ">=":
			sel = 0.33
		case "AND", "and", "&&":
			left, lerr := selectivityOf(g, *e.Left)
			if lerr != nil {
				return 0, lerr
			}
			right, rerr := selectivityOf(g, *e.Right)
			if rerr != nil {
				return 0, rerr
			}
			sel = left * right
		case "OR", "or", "||":
			left, lerr := selectivityOf(g, *e.Left)
			if lerr != nil {
				return 0, lerr
			}
			right, rerr := selectivityOf(g, *e.Right)
			if rerr != nil {
				return 0, rerr
			}
			sel = left + right - left*right
		default:
			sel = 0.5
		}
	default:
		sel = 0.5
	}

	if sel < 0 || sel > 1 {
		return 0, planerr.SelectivityRangeInvalid(sel)
	}
	return sel, err
}

// equalitySelectivity classifies a "col = literal" comparison by consulting
// the graph's column-uniqueness/high-cardinality metadata; either operand
// of the binary expression may be the column reference.
func equalitySelectivity(g *graph.UnifiedGraph, e model.Expr) (float64, error) {
	col := columnOperand(e)
	if col == "" {
		return 0.5, nil
	}
	high, err := g.IsHighCardinality(col)
	if err != nil {
		return 0.5, nil // unresolvable column metadata: fall back to the default bucket
	}
	if high {
		return 0.001, nil
	}
	return 0.1, nil
}

func columnOperand(e model.Expr) string {
	if e.Left != nil && e.Left.Kind == model.ExprColumn {
		return e.Left.Column
	}
	if e.Right != nil && e.Right.Kind == model.ExprColumn {
		return e.Right.Column
	}
	return ""
}
