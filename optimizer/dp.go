package optimizer

import (
	"context"
	"math/bits"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/prismquery/planner/graph"
	"github.com/prismquery/planner/model"
	"github.com/prismquery/planner/planerr"
)

// dpTableLimit is the hard cap on DP's table count: above it, time
// complexity (O(3^n)) makes the exact algorithm impractical and Solve
// either falls back to greedySolve or returns OptimizerBudgetExceeded.
const dpTableLimit = 10

// SubsetPlan is one candidate (sub)plan covering a bushy subtree of
// tables, kept in the DP memo keyed by its table set. A leaf SubsetPlan
// (IsLeaf) is a single Scan(Entity); an interior one is a Join(Left,
// Right) along Edge.
type SubsetPlan struct {
	Tables []string // sorted

	Entity string // leaf only

	Left, Right *SubsetPlan // join only
	Edge        JoinEdge    // join only

	AppliedFilters []model.Expr
	EstimatedRows  float64
	Cost           Cost
}

// IsLeaf reports whether sp is a Scan rather than a Join.
func (sp *SubsetPlan) IsLeaf() bool { return sp.Left == nil && sp.Right == nil }

func (sp *SubsetPlan) tablesSet() map[string]bool {
	m := make(map[string]bool, len(sp.Tables))
	for _, t := range sp.Tables {
		m[t] = true
	}
	return m
}

// Result is Solve's return value: the winning plan plus a subset count for
// planner.OptimizerStats telemetry.
type Result struct {
	Plan         *SubsetPlan
	SubsetsTried int
}

// Solve produces the minimum-cost join tree over tables. It runs the exact
// DP algorithm for up to dpTableLimit tables; above that it falls back to
// greedySolve when allowGreedy is set, and otherwise returns
// OptimizerBudgetExceeded so the orchestrator can decide whether to retry
// with greedy enabled.
func Solve(g *graph.UnifiedGraph, tables []string, filters []model.Expr, allowGreedy bool) (*Result, error) {
	if len(tables) == 0 {
		return nil, planerr.Newf(planerr.KindInternal, "optimizer.Solve called with no tables")
	}
	if len(tables) > dpTableLimit {
		if !allowGreedy {
			return nil, planerr.OptimizerBudgetExceeded(len(tables), dpTableLimit)
		}
		plan, err := greedySolve(g, tables, filters)
		if err != nil {
			return nil, err
		}
		return &Result{Plan: plan}, nil
	}
	return dpSolve(g, tables, filters)
}

// dpSolve implements the Selinger-style bottom-up DP described in
// spec.md §4.3: base cases are single-table scans with single-table
// filters applied; each inductive step considers every bipartition of
// every k-subset whose two halves are directly connected in the
// restricted JoinGraph, keeping the cheapest plan per subset. Per-subset-
// size candidate evaluation fans out across golang.org/x/sync/errgroup
// workers, capped at GOMAXPROCS, since every candidate for a given size
// reads only already-settled smaller-subset memo entries and writes its
// own independent memo slot.
func dpSolve(g *graph.UnifiedGraph, tables []string, rawFilters []model.Expr) (*Result, error) {
	sorted := append([]string(nil), tables...)
	sort.Strings(sorted)
	n := len(sorted)

	jg, err := BuildJoinGraph(g, sorted)
	if err != nil {
		return nil, err
	}
	preds, err := ClassifyPredicates(g, rawFilters)
	if err != nil {
		return nil, err
	}

	memo := make(map[uint16]*SubsetPlan, 1<<uint(n))
	subsetsTried := 0

	for i, t := range sorted {
		mask := uint16(1) << uint(i)
		rows := rowCountOf(g, t)
		var applied []model.Expr
		for _, p := range preds {
			switch {
			case len(p.ReferencedTables) == 0 && i == 0:
				// Table-less predicates (bare literals, NOW()-style
				// comparisons) have nowhere principled to attach, so they
				// ride along on the first leaf rather than being dropped.
				applied = append(applied, p.Expr)
				rows *= p.Selectivity
			case len(p.ReferencedTables) == 1 && p.ReferencedTables[t]:
				applied = append(applied, p.Expr)
				rows *= p.Selectivity
			}
		}
		memo[mask] = &SubsetPlan{
			Tables:         []string{t},
			Entity:         t,
			AppliedFilters: applied,
			EstimatedRows:  rows,
		}
		subsetsTried++
	}

	for size := 2; size <= n; size++ {
		masks := subsetsOfSize(n, size)
		results := make([]*SubsetPlan, len(masks))

		eg, ctx := errgroup.WithContext(context.Background())
		eg.SetLimit(runtime.GOMAXPROCS(0))
		for idx, mask := range masks {
			idx, mask := idx, mask
			eg.Go(func() error {
				select {
				case <-ctx.Done():
					return ctx.Err()
				default:
				}
				results[idx] = bestPlanForMask(g, jg, preds, sorted, mask, memo)
				return nil
			})
		}
		if err := eg.Wait(); err != nil {
			return nil, err
		}

		for i, mask := range masks {
			if results[i] != nil {
				memo[mask] = results[i]
				subsetsTried++
			}
		}
	}

	full := uint16(1)<<uint(n) - 1
	winner, ok := memo[full]
	if !ok {
		return nil, planerr.Newf(planerr.KindNoJoinPath, "no connected join plan covers tables %v", sorted)
	}
	return &Result{Plan: winner, SubsetsTried: subsetsTried}, nil
}

// bestPlanForMask evaluates every bipartition of mask (both orientations,
// per spec's "form a candidate Join(S1,S2) and its mirror") against the
// already-memoized smaller subsets, returning the cheapest connected
// candidate or nil if mask's induced subgraph is disconnected.
func bestPlanForMask(g *graph.UnifiedGraph, jg *JoinGraph, preds []Predicate, sorted []string, mask uint16, memo map[uint16]*SubsetPlan) *SubsetPlan {
	fullTables := tablesForMask(sorted, mask)
	fullSet := make(map[string]bool, len(fullTables))
	for _, t := range fullTables {
		fullSet[t] = true
	}

	var best *SubsetPlan
	for sub := (mask - 1) & mask; sub != 0; sub = (sub - 1) & mask {
		other := mask &^ sub
		left, ok1 := memo[sub]
		right, ok2 := memo[other]
		if !ok1 || !ok2 {
			continue
		}

		edge, ok := jg.Connects(left.Tables, right.Tables)
		if !ok {
			continue
		}

		distinctL := distinctEstimate(g, edge.LeftColumn, left.EstimatedRows)
		distinctR := distinctEstimate(g, edge.RightColumn, right.EstimatedRows)
		outputRows := estimateOutputRows(edge.Cardinality, left.EstimatedRows, right.EstimatedRows, distinctL, distinctR)

		leftSet, rightSet := left.tablesSet(), right.tablesSet()
		var applied []model.Expr
		for _, p := range preds {
			if !tablesSubsetOf(p.ReferencedTables, fullSet) {
				continue
			}
			if tablesSubsetOf(p.ReferencedTables, leftSet) || tablesSubsetOf(p.ReferencedTables, rightSet) {
				continue
			}
			applied = append(applied, p.Expr)
			outputRows *= p.Selectivity
		}

		candidate := &SubsetPlan{
			Tables:         fullTables,
			Left:           left,
			Right:          right,
			Edge:           edge,
			AppliedFilters: applied,
			EstimatedRows:  outputRows,
			Cost:           joinCost(left.Cost, right.Cost, outputRows),
		}
		if best == nil || candidate.Cost.Total() < best.Cost.Total() {
			best = candidate
		}
	}
	return best
}

// tablesSubsetOf reports whether every key of sub is also a key of super.
func tablesSubsetOf(sub, super map[string]bool) bool {
	for t := range sub {
		if !super[t] {
			return false
		}
	}
	return true
}

func tablesForMask(sorted []string, mask uint16) []string {
	out := make([]string, 0, bits.OnesCount16(mask))
	for i, t := range sorted {
		if mask&(1<<uint(i)) != 0 {
			out = append(out, t)
		}
	}
	return out
}

func subsetsOfSize(n, size int) []uint16 {
	var out []uint16
	full := uint16(1)<<uint(n) - 1
	for mask := uint16(1); mask <= full; mask++ {
		if bits.OnesCount16(mask) == size {
			out = append(out, mask)
		}
	}
	return out
}

// rowCountOf returns entity's known row count, or a conservative default
// when the inference engine reported none.
func rowCountOf(g *graph.UnifiedGraph, entity string) float64 {
	h, ok := g.EntityHandle(entity)
	if !ok {
		return 1000
	}
	e := g.Entity(h)
	if e.RowCount == nil {
		return 1000
	}
	return float64(*e.RowCount)
}

// distinctEstimate approximates a join column's distinct-value count for
// the N:N cardinality formula. The graph exposes column uniqueness but not
// a precise distinct count, so a unique column's distinct count is taken
// to equal its side's row estimate and a non-unique column defaults to 1
// (the formula then degrades toward a full cross-product estimate, the
// conservative worst case for an unmodeled N:N join).
func distinctEstimate(g *graph.UnifiedGraph, qualifiedCol string, sideRows float64) float64 {
	unique, err := g.IsColumnUnique(qualifiedCol)
	if err == nil && unique {
		return sideRows
	}
	return 1
}

// greedySolve repeatedly joins the pair of partial plans with the smallest
// expected output cardinality until one plan remains, per spec's >10-table
// fallback strategy.
func greedySolve(g *graph.UnifiedGraph, tables []string, rawFilters []model.Expr) (*SubsetPlan, error) {
	sorted := append([]string(nil), tables...)
	sort.Strings(sorted)

	jg, err := BuildJoinGraph(g, sorted)
	if err != nil {
		return nil, err
	}
	preds, err := ClassifyPredicates(g, rawFilters)
	if err != nil {
		return nil, err
	}

	plans := make([]*SubsetPlan, 0, len(sorted))
	for i, t := range sorted {
		rows := rowCountOf(g, t)
		var applied []model.Expr
		for _, p := range preds {
			switch {
			case len(p.ReferencedTables) == 0 && i == 0:
				applied = append(applied, p.Expr)
				rows *= p.Selectivity
			case len(p.ReferencedTables) == 1 && p.ReferencedTables[t]:
				applied = append(applied, p.Expr)
				rows *= p.Selectivity
			}
		}
		plans = append(plans, &SubsetPlan{Tables: []string{t}, Entity: t, AppliedFilters: applied, EstimatedRows: rows})
	}

	for len(plans) > 1 {
		bestI, bestJ := -1, -1
		var bestEdge JoinEdge
		var bestRows float64

		for i := 0; i < len(plans); i++ {
			for j := i + 1; j < len(plans); j++ {
				edge, ok := jg.Connects(plans[i].Tables, plans[j].Tables)
				if !ok {
					continue
				}
				distinctL := distinctEstimate(g, edge.LeftColumn, plans[i].EstimatedRows)
				distinctR := distinctEstimate(g, edge.RightColumn, plans[j].EstimatedRows)
				rows := estimateOutputRows(edge.Cardinality, plans[i].EstimatedRows, plans[j].EstimatedRows, distinctL, distinctR)
				if bestI == -1 || rows < bestRows {
					bestI, bestJ, bestEdge, bestRows = i, j, edge, rows
				}
			}
		}
		if bestI == -1 {
			return nil, planerr.Newf(planerr.KindNoJoinPath, "no connected join plan covers tables %v", sorted)
		}

		left, right := plans[bestI], plans[bestJ]
		fullTables := append(append([]string(nil), left.Tables...), right.Tables...)
		sort.Strings(fullTables)
		fullSet := make(map[string]bool, len(fullTables))
		for _, t := range fullTables {
			fullSet[t] = true
		}
		leftSet, rightSet := left.tablesSet(), right.tablesSet()

		outputRows := bestRows
		var applied []model.Expr
		for _, p := range preds {
			if !tablesSubsetOf(p.ReferencedTables, fullSet) {
				continue
			}
			if tablesSubsetOf(p.ReferencedTables, leftSet) || tablesSubsetOf(p.ReferencedTables, rightSet) {
				continue
			}
			applied = append(applied, p.Expr)
			outputRows *= p.Selectivity
		}

		joined := &SubsetPlan{
			Tables:         fullTables,
			Left:           left,
			Right:          right,
			Edge:           bestEdge,
			AppliedFilters: applied,
			EstimatedRows:  outputRows,
			Cost:           joinCost(left.Cost, right.Cost, outputRows),
		}

		next := make([]*SubsetPlan, 0, len(plans)-1)
		for k, p := range plans {
			if k == bestI || k == bestJ {
				continue
			}
			next = append(next, p)
		}
		plans = append(next, joined)
	}
	return plans[0], nil
}
