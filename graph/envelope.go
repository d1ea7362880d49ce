package graph

import "github.com/prismquery/planner/planerr"

// NodesEnvelope is the materialized, JSON-serializable node list for one
// table or dimension: its EntityNode, its ColumnNodes, its MeasureNodes,
// and the DERIVED_FROM links out of its columns (a link's source column may
// belong to another entity). It is the unit the two-tier
// cache stores per-entity (spec.md §3.2 CachedNodes).
type NodesEnvelope struct {
	Entity      EntityNode
	Columns     []ColumnNode
	Measures    []MeasureNode
	DerivedFrom []DerivedFromLink
}

// DerivedFromLink is one column's lineage source, by qualified name.
type DerivedFromLink struct {
	Column string // "entity.column"
	Source string // "entity.column"
}

// EdgesEnvelope is the materialized set of cross-entity edges
// (REFERENCES, JOINS_TO, DEPENDS_ON) the cache stores as a single unit
// (spec.md §3.2 CachedEdges).
type EdgesEnvelope struct {
	References []ReferenceLink
	Joins      []JoinLink
	DependsOn  []DependsOnLink
}

// ReferenceLink is one REFERENCES edge, by qualified column names.
type ReferenceLink struct {
	FromColumn string
	ToColumn   string
	Provenance ReferenceProvenance
}

// JoinLink is one JOINS_TO edge, by entity names.
type JoinLink struct {
	FromEntity  string
	ToEntity    string
	Cardinality Cardinality
	FromColumn  string
	ToColumn    string
	Provenance  ReferenceProvenance
}

// DependsOnLink is one DEPENDS_ON edge, by qualified measure/column names.
type DependsOnLink struct {
	Measure string
	Column  string
}

// EntityNodesEnvelope extracts the NodesEnvelope for one entity from a
// built graph, for the cache layer to store as a per-table/per-dimension
// CachedNodes entry.
func (g *UnifiedGraph) EntityNodesEnvelope(entity string) (NodesEnvelope, error) {
	h, ok := g.EntityHandle(entity)
	if !ok {
		return NodesEnvelope{}, planerr.UnknownEntity(entity, g.EntityNames())
	}

	env := NodesEnvelope{Entity: *g.Entity(h)}

	for _, be := range g.InEdges(h, EdgeBelongsTo) {
		colH := be.From
		col := g.Column(colH)
		env.Columns = append(env.Columns, *col)
		for _, e := range g.OutEdges(colH, EdgeDerivedFrom) {
			env.DerivedFrom = append(env.DerivedFrom, DerivedFromLink{
				Column: col.QualifiedName(),
				Source: g.Column(e.To).QualifiedName(),
			})
		}
	}
	for measH := NodeHandle(1); int(measH) < len(g.nodes); measH++ {
		if g.nodes[measH].kind != NodeMeasure {
			continue
		}
		meas := g.Measure(measH)
		if meas.Entity != entity {
			continue
		}
		env.Measures = append(env.Measures, *meas)
	}

	return env, nil
}

// EdgesEnvelope extracts every cross-entity edge from a built graph, for
// the cache layer to store as the single CachedEdges entry.
func (g *UnifiedGraph) EdgesEnvelope() EdgesEnvelope {
	var env EdgesEnvelope
	for _, e := range g.edges {
		switch e.Kind {
		case EdgeReferences:
			rd, _ := e.Data.(ReferenceData)
			env.References = append(env.References, ReferenceLink{
				FromColumn: g.Column(e.From).QualifiedName(),
				ToColumn:   g.Column(e.To).QualifiedName(),
				Provenance: rd.Provenance,
			})
		case EdgeJoinsTo:
			jd, _ := e.Data.(JoinData)
			env.Joins = append(env.Joins, JoinLink{
				FromEntity:  g.Entity(e.From).Name,
				ToEntity:    g.Entity(e.To).Name,
				Cardinality: jd.Cardinality,
				FromColumn:  jd.FromColumn,
				ToColumn:    jd.ToColumn,
				Provenance:  jd.Provenance,
			})
		case EdgeDependsOn:
			env.DependsOn = append(env.DependsOn, DependsOnLink{
				Measure: g.Measure(e.From).QualifiedName(),
				Column:  g.Column(e.To).QualifiedName(),
			})
		}
	}
	return env
}

// ComposeFromEnvelopes rebuilds a complete UnifiedGraph from per-entity
// NodesEnvelopes, calendar definitions, and one EdgesEnvelope — the
// cache-hit path that reconstructs a graph without re-running inference or
// the full builder's validation (the envelopes were already valid when
// they were cached).
func ComposeFromEnvelopes(entities []NodesEnvelope, calendars []CalendarNode, edges EdgesEnvelope) (*UnifiedGraph, error) {
	g := newGraph()

	for _, env := range entities {
		entity := env.Entity
		g.addNode(node{kind: NodeEntity, key: entity.Name, entity: &entity})
	}
	for i := range calendars {
		cal := calendars[i]
		g.addNode(node{kind: NodeCalendar, key: cal.Name, calendar: &cal})
	}

	entityHandle := func(name string) (NodeHandle, error) {
		h, ok := g.handleByName(NodeEntity, name)
		if !ok {
			return 0, planerr.UnknownEntity(name, g.EntityNames())
		}
		return h, nil
	}

	for _, env := range entities {
		entH, err := entityHandle(env.Entity.Name)
		if err != nil {
			return nil, err
		}
		for i := range env.Columns {
			col := env.Columns[i]
			colH := g.addNode(node{kind: NodeColumn, key: col.QualifiedName(), column: &col})
			g.addEdge(Edge{From: colH, To: entH, Kind: EdgeBelongsTo})
		}
		for i := range env.Measures {
			meas := env.Measures[i]
			g.addNode(node{kind: NodeMeasure, key: meas.QualifiedName(), measure: &meas})
		}
	}

	for _, env := range entities {
		for _, link := range env.DerivedFrom {
			colH, ok := g.handleByName(NodeColumn, link.Column)
			if !ok {
				return nil, planerr.UnknownColumn(link.Column, g.ColumnNames())
			}
			srcH, ok := g.handleByName(NodeColumn, link.Source)
			if !ok {
				return nil, planerr.UnknownColumn(link.Source, g.ColumnNames())
			}
			g.addEdge(Edge{From: colH, To: srcH, Kind: EdgeDerivedFrom, Data: DerivedFromData{}})
		}
	}

	for _, link := range edges.References {
		fromH, ok := g.handleByName(NodeColumn, link.FromColumn)
		if !ok {
			return nil, planerr.UnknownColumn(link.FromColumn, g.ColumnNames())
		}
		toH, ok := g.handleByName(NodeColumn, link.ToColumn)
		if !ok {
			return nil, planerr.UnknownColumn(link.ToColumn, g.ColumnNames())
		}
		g.addEdge(Edge{From: fromH, To: toH, Kind: EdgeReferences, Data: ReferenceData{Provenance: link.Provenance}})
	}
	for _, link := range edges.Joins {
		fromH, err := entityHandle(link.FromEntity)
		if err != nil {
			return nil, err
		}
		toH, err := entityHandle(link.ToEntity)
		if err != nil {
			return nil, err
		}
		g.addEdge(Edge{From: fromH, To: toH, Kind: EdgeJoinsTo, Data: JoinData{
			Cardinality: link.Cardinality,
			FromColumn:  link.FromColumn,
			ToColumn:    link.ToColumn,
			Provenance:  link.Provenance,
		}})
	}
	for _, link := range edges.DependsOn {
		measH, ok := g.handleByName(NodeMeasure, link.Measure)
		if !ok {
			return nil, planerr.UnknownMeasure(link.Measure, g.MeasureNames())
		}
		colH, ok := g.handleByName(NodeColumn, link.Column)
		if !ok {
			return nil, planerr.UnknownColumn(link.Column, g.ColumnNames())
		}
		g.addEdge(Edge{From: measH, To: colH, Kind: EdgeDependsOn, Data: DependsOnData{}})
	}

	return g, nil
}
