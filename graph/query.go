package graph

import (
	"sort"

	"github.com/prismquery/planner/planerr"
)

// JoinPath is an ordered sequence of JOINS_TO edges connecting two entities.
type JoinPath struct {
	From  string
	To    string
	Edges []PathHop
}

// PathHop is one traversed JOINS_TO edge, oriented in the walking
// direction (which may be the reverse of the edge's stored From/To, since
// path discovery treats JOINS_TO as undirected).
type PathHop struct {
	FromEntity  string
	ToEntity    string
	Cardinality Cardinality // as seen walking FromEntity -> ToEntity
	FromColumn  string
	ToColumn    string
}

// candidate is an in-flight BFS path during FindPath's frontier expansion.
type candidate struct {
	path    []PathHop
	nnHops  int
	visited map[NodeHandle]bool
}

// FindPath returns the shortest JOINS_TO path between two entities,
// breaking ties by (1) shorter path, (2) fewer N:N hops, (3) lexicographic
// entity order for determinism. JOINS_TO edges are traversed in both
// directions for discovery even though each carries directional
// cardinality.
func (g *UnifiedGraph) FindPath(from, to string) (JoinPath, error) {
	fromH, ok := g.EntityHandle(from)
	if !ok {
		return JoinPath{}, planerr.UnknownEntity(from, g.EntityNames())
	}
	toH, ok := g.EntityHandle(to)
	if !ok {
		return JoinPath{}, planerr.UnknownEntity(to, g.EntityNames())
	}
	if fromH == toH {
		return JoinPath{From: from, To: to}, nil
	}

	start := candidate{visited: map[NodeHandle]bool{fromH: true}}
	frontier := []candidate{start}

	best := map[NodeHandle]*candidate{fromH: &start}

	for len(frontier) > 0 {
		// updated holds, per node, the single best candidate discovered at
		// this depth. Collecting into a map (rather than appending every
		// candidate straight to next) means a later, better candidate for
		// the same node replaces the earlier one instead of leaving it
		// behind to be redundantly expanded next round.
		updated := map[NodeHandle]*candidate{}

		for _, c := range frontier {
			lastH := fromH
			if len(c.path) > 0 {
				last := c.path[len(c.path)-1]
				h, _ := g.EntityHandle(last.ToEntity)
				lastH = h
			}

			neighbors := g.neighborsOf(lastH)
			sort.Slice(neighbors, func(i, j int) bool {
				return neighbors[i].entityName < neighbors[j].entityName
			})

			for _, nb := range neighbors {
				if c.visited[nb.handle] {
					continue
				}
				if _, settled := best[nb.handle]; settled {
					// Reached at a strictly shorter depth already; BFS
					// guarantees that's optimal, so there's nothing a
					// same-or-later-depth path through here could improve.
					continue
				}

				newVisited := make(map[NodeHandle]bool, len(c.visited)+1)
				for k := range c.visited {
					newVisited[k] = true
				}
				newVisited[nb.handle] = true

				newPath := append(append([]PathHop(nil), c.path...), nb.hop)
				newNN := c.nnHops
				if nb.hop.Cardinality == CardNtoN {
					newNN++
				}
				nc := candidate{path: newPath, nnHops: newNN, visited: newVisited}

				if existing, ok := updated[nb.handle]; !ok || betterCandidate(nc, *existing) {
					updated[nb.handle] = &nc
				}
			}
		}

		next := make([]candidate, 0, len(updated))
		for h, nc := range updated {
			best[h] = nc
			next = append(next, *nc)
		}

		// Every candidate reaching the target at this depth has now been
		// compared (via updated/betterCandidate), so the tie-break by
		// fewest N:N hops is resolved before returning.
		if target, ok := best[toH]; ok {
			return JoinPath{From: from, To: to, Edges: target.path}, nil
		}

		frontier = next
	}

	return JoinPath{}, planerr.NoJoinPath(from, to)
}

func betterCandidate(a, b candidate) bool {
	if len(a.path) != len(b.path) {
		return len(a.path) < len(b.path)
	}
	if a.nnHops != b.nnHops {
		return a.nnHops < b.nnHops
	}
	for i := range a.path {
		if a.path[i].ToEntity != b.path[i].ToEntity {
			return a.path[i].ToEntity < b.path[i].ToEntity
		}
	}
	return false
}

type neighbor struct {
	handle     NodeHandle
	entityName string
	hop        PathHop
}

func (g *UnifiedGraph) neighborsOf(h NodeHandle) []neighbor {
	var out []neighbor
	for _, e := range g.adjOut[h] {
		edge := g.edges[e]
		if edge.Kind != EdgeJoinsTo {
			continue
		}
		jd, _ := edge.Data.(JoinData)
		toEntity := g.Entity(edge.To)
		out = append(out, neighbor{
			handle:     edge.To,
			entityName: toEntity.Name,
			hop: PathHop{
				FromEntity:  g.Entity(h).Name,
				ToEntity:    toEntity.Name,
				Cardinality: jd.Cardinality,
				FromColumn:  jd.FromColumn,
				ToColumn:    jd.ToColumn,
			},
		})
	}
	for _, e := range g.adjIn[h] {
		edge := g.edges[e]
		if edge.Kind != EdgeJoinsTo {
			continue
		}
		jd, _ := edge.Data.(JoinData)
		fromEntity := g.Entity(edge.From)
		out = append(out, neighbor{
			handle:     edge.From,
			entityName: fromEntity.Name,
			hop: PathHop{
				FromEntity:  g.Entity(h).Name,
				ToEntity:    fromEntity.Name,
				Cardinality: reverseCardinality(jd.Cardinality),
				FromColumn:  jd.ToColumn,
				ToColumn:    jd.FromColumn,
			},
		})
	}
	return out
}

func reverseCardinality(c Cardinality) Cardinality {
	switch c {
	case Card1toN:
		return CardNto1
	case CardNto1:
		return Card1toN
	default:
		return c
	}
}

// ValidateSafePath walks the path from "from" to "to" and rejects any hop
// that fans rows out: traversing from the "many" side across a 1:N edge in
// its natural direction would duplicate rows of the origin side.
func (g *UnifiedGraph) ValidateSafePath(from, to string) error {
	path, err := g.FindPath(from, to)
	if err != nil {
		return err
	}
	for _, hop := range path.Edges {
		if hop.Cardinality == Card1toN {
			return planerr.FanOutUnsafe(hop.FromEntity, hop.ToEntity)
		}
	}
	return nil
}

// RequiredColumns returns every column reachable from a measure via
// DEPENDS_ON, transitively through DERIVED_FROM.
func (g *UnifiedGraph) RequiredColumns(measureQName string) ([]string, error) {
	h, ok := g.MeasureHandle(measureQName)
	if !ok {
		return nil, planerr.UnknownMeasure(measureQName, g.MeasureNames())
	}

	seen := map[NodeHandle]bool{}
	var out []string

	var walkColumn func(colH NodeHandle)
	walkColumn = func(colH NodeHandle) {
		if seen[colH] {
			return
		}
		seen[colH] = true
		out = append(out, g.Column(colH).QualifiedName())
		for _, e := range g.OutEdges(colH, EdgeDerivedFrom) {
			walkColumn(e.To)
		}
	}

	for _, e := range g.OutEdges(h, EdgeDependsOn) {
		walkColumn(e.To)
	}

	sort.Strings(out)
	return out, nil
}

// ColumnLineage returns the ordered, depth-first list of source columns a
// computed column derives from.
func (g *UnifiedGraph) ColumnLineage(columnQName string) ([]string, error) {
	h, ok := g.ColumnHandle(columnQName)
	if !ok {
		return nil, planerr.UnknownColumn(columnQName, g.ColumnNames())
	}

	var out []string
	seen := map[NodeHandle]bool{}

	var walk func(colH NodeHandle)
	walk = func(colH NodeHandle) {
		for _, e := range g.OutEdges(colH, EdgeDerivedFrom) {
			if seen[e.To] {
				continue
			}
			seen[e.To] = true
			out = append(out, g.Column(e.To).QualifiedName())
			walk(e.To)
		}
	}
	walk(h)
	return out, nil
}

// IsColumnUnique reports whether col is marked unique.
func (g *UnifiedGraph) IsColumnUnique(col string) (bool, error) {
	h, ok := g.ColumnHandle(col)
	if !ok {
		return false, planerr.UnknownColumn(col, g.ColumnNames())
	}
	return g.Column(h).Unique, nil
}

// IsHighCardinality reports whether col is unique or, when row-count
// statistics are available on its owning entity, whether that entity is in
// the SizeLarge category. No per-column distinct counts beyond Unique are
// consulted, so every column of a SizeLarge entity counts as high-cardinality.
func (g *UnifiedGraph) IsHighCardinality(col string) (bool, error) {
	h, ok := g.ColumnHandle(col)
	if !ok {
		return false, planerr.UnknownColumn(col, g.ColumnNames())
	}
	c := g.Column(h)
	if c.Unique {
		return true, nil
	}
	entityH, ok := g.EntityHandle(c.Entity)
	if !ok {
		return false, nil
	}
	return g.Entity(entityH).SizeCategory == SizeLarge, nil
}

// InferGrain returns the coarsest grain entity supported by row counts
// along inbound 1:N edges: the entity itself, unless a neighboring entity
// on the "many" side of an N:1 JOINS_TO edge pointing into it (a 1:N
// relationship seen from this entity) has a strictly larger row count, in
// which case that finer-grained neighbor's name is returned. Only JOINS_TO
// edges stored as pointing into the entity are inspected.
// This is the planner's interpretation of spec.md §4.1's
// "coarsest grain supported by row counts along inbound 1:N edges",
// since the source spec leaves the exact algorithm unspecified.
func (g *UnifiedGraph) InferGrain(entity string) (string, error) {
	h, ok := g.EntityHandle(entity)
	if !ok {
		return "", planerr.UnknownEntity(entity, g.EntityNames())
	}

	best := entity
	var bestRows int64
	if rc := g.Entity(h).RowCount; rc != nil {
		bestRows = *rc
	}

	for _, e := range g.InEdges(h, EdgeJoinsTo) {
		jd, _ := e.Data.(JoinData)
		if jd.Cardinality != CardNto1 {
			continue
		}
		manySide := g.Entity(e.From)
		if manySide.RowCount != nil && *manySide.RowCount > bestRows {
			bestRows = *manySide.RowCount
			best = manySide.Name
		}
	}
	return best, nil
}

// ResolveDrillPath resolves an ordered sequence of grain level names
// against a calendar's declared Grains and returns the validated grain
// names in the order given (grains are names, not graph nodes), for the
// caller (the logical plan builder) to use as group keys.
func (g *UnifiedGraph) ResolveDrillPath(calendarName string, path []string) ([]string, error) {
	h, ok := g.CalendarHandle(calendarName)
	if !ok {
		return nil, planerr.Newf(planerr.KindUnknownEntity, "unknown calendar %q", calendarName).WithName(calendarName)
	}
	cal := g.Calendar(h)

	index := make(map[string]int, len(cal.Grains))
	for i, grain := range cal.Grains {
		index[grain] = i
	}

	resolved := make([]string, 0, len(path))
	for _, p := range path {
		if _, ok := index[p]; !ok {
			return nil, planerr.Newf(planerr.KindInternal, "calendar %q has no grain level %q", calendarName, p).WithSuggestions(cal.Grains)
		}
		resolved = append(resolved, p)
	}
	return resolved, nil
}
