// Package optimizer implements the Selinger-style dynamic-programming join
// orderer: given a set of tables, a set of filter predicates, and a
// *graph.UnifiedGraph to consult for join topology and cardinality, it
// produces the cheapest join tree over all tables (bushy, not just
// left-deep), with filters pushed to their earliest legal position.
package optimizer

import (
	"github.com/prismquery/planner/graph"
	"github.com/prismquery/planner/planerr"
)

// JoinEdge is one direct JOINS_TO adjacency between two tables, restricted
// to a report's table set.
type JoinEdge struct {
	Left, Right           string
	Cardinality           graph.Cardinality
	LeftColumn, RightColumn string
}

// reversed returns the same edge walked from Right to Left.
func (e JoinEdge) reversed() JoinEdge {
	card := e.Cardinality
	switch card {
	case graph.Card1toN:
		card = graph.CardNto1
	case graph.CardNto1:
		card = graph.Card1toN
	}
	return JoinEdge{Left: e.Right, Right: e.Left, Cardinality: card, LeftColumn: e.RightColumn, RightColumn: e.LeftColumn}
}

// JoinGraph is the pairwise adjacency among a report's tables, built once
// up front so the DP loop never re-walks the unified graph per candidate.
type JoinGraph struct {
	tables []string
	edges  map[string]map[string]JoinEdge // edges[a][b] is the edge oriented a -> b
}

// BuildJoinGraph restricts the unified graph's JOINS_TO topology to tables:
// for every unordered pair it calls FindPath and records a direct edge only
// when the path is a single hop. Tables connected only through an
// intermediate table not in the set are left unconnected here — the DP
// step discovers multi-hop connectivity itself by composing subset plans.
func BuildJoinGraph(g *graph.UnifiedGraph, tables []string) (*JoinGraph, error) {
	jg := &JoinGraph{
		tables: append([]string(nil), tables...),
		edges:  make(map[string]map[string]JoinEdge, len(tables)),
	}
	for _, t := range tables {
		jg.edges[t] = map[string]JoinEdge{}
	}

	for i := 0; i < len(tables); i++ {
		for j := i + 1; j < len(tables); j++ {
			a, b := tables[i], tables[j]
			path, err := g.FindPath(a, b)
			if err != nil {
				if perr, ok := err.(*planerr.Error); ok && perr.Kind == planerr.KindNoJoinPath {
					continue
				}
				return nil, err
			}
			if len(path.Edges) != 1 {
				continue
			}
			hop := path.Edges[0]
			edge := JoinEdge{
				Left:        hop.FromEntity,
				Right:       hop.ToEntity,
				Cardinality: hop.Cardinality,
				LeftColumn:  hop.FromColumn,
				RightColumn: hop.ToColumn,
			}
			jg.edges[a][b] = edge
			jg.edges[b][a] = edge.reversed()
		}
	}
	return jg, nil
}

// EdgeBetween returns the direct join edge oriented from -> to, if tables
// a and b are directly adjacent in the restricted graph.
func (jg *JoinGraph) EdgeBetween(from, to string) (JoinEdge, bool) {
	e, ok := jg.edges[from][to]
	return e, ok
}

// Connects reports whether any table in s1 is directly adjacent to any
// table in s2, returning the first such edge found (oriented from the s1
// side). Candidate composition in the DP step calls this once per
// bipartition to decide whether S1 and S2 can be joined without an
// implicit cartesian product.
func (jg *JoinGraph) Connects(s1, s2 []string) (JoinEdge, bool) {
	for _, a := range s1 {
		for _, b := range s2 {
			if e, ok := jg.edges[a][b]; ok {
				return e, true
			}
		}
	}
	return JoinEdge{}, false
}
