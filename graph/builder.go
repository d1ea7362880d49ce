package graph

import (
	"sort"

	"github.com/prismquery/planner/model"
	"github.com/prismquery/planner/planerr"
)

// Builder constructs a UnifiedGraph in two phases: node creation (entities,
// then calendars, then each entity's columns followed by its measures)
// followed by edge creation (references, joins, depends-on, derived-from).
// Calendars are created before any column or measure, and columns and
// measures are interleaved per entity. Phases are separated for
// testability, per spec.md §4.1 — a test can build nodes and inspect the
// arena before any edge logic runs.
type Builder struct {
	g       *UnifiedGraph
	stats   *InferenceStats
	nodesOK bool // true once Phase 1 has completed without error
}

// InferenceStats is the subset of inference.Results the builder consults
// to derive Unique flags and size categories. Kept as a small local
// interface-free struct (rather than importing the inference package
// directly) so graph has no dependency on the inference contract package —
// callers (the cache/planner layer) adapt inference.Results into this shape.
type InferenceStats struct {
	EntityRowCount map[string]int64           // entity name -> row count
	ColumnUnique   map[string]bool            // "entity.column" -> unique
	ForeignKeys    []InferredForeignKey
}

// InferredForeignKey is one FK discovered (or declared) between two columns.
type InferredForeignKey struct {
	FromColumn string
	ToColumn   string
	Provenance ReferenceProvenance
}

// NewBuilder starts a build against model-derived statistics.
func NewBuilder(stats *InferenceStats) *Builder {
	if stats == nil {
		stats = &InferenceStats{}
	}
	return &Builder{g: newGraph(), stats: stats}
}

// BuildPhase1 creates all nodes from m in this order: every entity, then
// every calendar, then for each entity its columns (each with its
// BELONGS_TO edge) followed by its measures. Calendars therefore precede
// all columns and measures, and one entity's measures precede the next
// entity's columns.
func (b *Builder) BuildPhase1(m *model.Model) error {
	seenEntity := map[string]bool{}
	for _, e := range m.Entities {
		if seenEntity[e.Name] {
			return planerr.Newf(planerr.KindDuplicateEntity, "duplicate entity %q", e.Name).WithName(e.Name)
		}
		seenEntity[e.Name] = true

		var rowCount *int64
		if rc, ok := b.stats.EntityRowCount[e.Name]; ok {
			v := rc
			rowCount = &v
		}
		b.g.addNode(node{
			kind: NodeEntity,
			key:  e.Name,
			entity: &EntityNode{
				Name:         e.Name,
				Kind:         e.Kind,
				PhysicalName: e.PhysicalName,
				Schema:       e.Schema,
				RowCount:     rowCount,
				SizeCategory: sizeCategoryFor(rowCount),
				Metadata:     e.Metadata,
			},
		})
	}

	for _, cal := range m.Calendars {
		if _, exists := b.g.handleByName(NodeCalendar, cal.Name); exists {
			return planerr.Newf(planerr.KindDuplicateCalendar, "duplicate calendar %q", cal.Name).WithName(cal.Name)
		}
		if _, exists := b.g.handleByName(NodeEntity, cal.Name); exists {
			return planerr.Newf(planerr.KindDuplicateEntity, "calendar name %q collides with an entity", cal.Name).WithName(cal.Name)
		}
		b.g.addNode(node{
			kind: NodeCalendar,
			key:  cal.Name,
			calendar: &CalendarNode{
				Name:         cal.Name,
				PhysicalName: cal.PhysicalName,
				DateColumn:   cal.DateColumn,
				Grains:       append([]string(nil), cal.Grains...),
				Metadata:     cal.Metadata,
			},
		})
	}

	for _, e := range m.Entities {
		entityHandle, ok := b.g.handleByName(NodeEntity, e.Name)
		if !ok {
			return planerr.Newf(planerr.KindUnknownEntity, "internal: entity %q vanished during build", e.Name).WithName(e.Name)
		}

		seenCol := map[string]bool{}
		for _, c := range e.Columns {
			if seenCol[c.Name] {
				return planerr.Newf(planerr.KindDuplicateColumn, "duplicate column %q on entity %q", c.Name, e.Name).WithName(e.Name + "." + c.Name)
			}
			seenCol[c.Name] = true

			qualified := e.Name + "." + c.Name
			unique := b.stats.ColumnUnique[qualified]
			colHandle := b.g.addNode(node{
				kind: NodeColumn,
				key:  qualified,
				column: &ColumnNode{
					Entity:   e.Name,
					Name:     c.Name,
					DataType: c.DataType,
					Nullable: c.Nullable,
					Unique:   unique,
				},
			})
			b.g.addEdge(Edge{From: colHandle, To: entityHandle, Kind: EdgeBelongsTo})
		}

		seenMeasure := map[string]bool{}
		for _, me := range e.Measures {
			if seenMeasure[me.Name] {
				return planerr.Newf(planerr.KindDuplicateMeasure, "duplicate measure %q on entity %q", me.Name, e.Name).WithName(e.Name + "." + me.Name)
			}
			seenMeasure[me.Name] = true

			b.g.addNode(node{
				kind: NodeMeasure,
				key:  e.Name + "." + me.Name,
				measure: &MeasureNode{
					Entity:       e.Name,
					Name:         me.Name,
					Aggregation:  me.Aggregation,
					SourceColumn: me.SourceColumn,
					Expression:   me.Expression,
				},
			})
		}
	}

	b.nodesOK = true
	return nil
}

// BuildPhase2 creates REFERENCES, JOINS_TO, and DEPENDS_ON edges from the
// model's explicit joins and the builder's inference stats, then validates
// every cross-reference invariant from spec.md §3.1.
func (b *Builder) BuildPhase2(m *model.Model) (*UnifiedGraph, error) {
	if !b.nodesOK {
		return nil, planerr.New(planerr.KindInternal, "BuildPhase2 called before BuildPhase1")
	}

	if err := b.addReferences(); err != nil {
		return nil, err
	}
	b.aggregateJoinsFromReferences()
	if err := b.addExplicitJoins(m); err != nil {
		return nil, err
	}
	if err := b.addDependsOn(m); err != nil {
		return nil, err
	}
	if err := b.addDerivedFrom(m); err != nil {
		return nil, err
	}

	if err := b.validate(); err != nil {
		return nil, err
	}
	if err := b.detectCycles(); err != nil {
		return nil, err
	}

	return b.g, nil
}

// Build runs both phases in sequence; a convenience for callers that don't
// need to inspect the node-only graph between phases.
func Build(m *model.Model, stats *InferenceStats) (*UnifiedGraph, error) {
	b := NewBuilder(stats)
	if err := b.BuildPhase1(m); err != nil {
		return nil, err
	}
	return b.BuildPhase2(m)
}

func (b *Builder) addReferences() error {
	for _, fk := range b.stats.ForeignKeys {
		fromH, ok := b.g.handleByName(NodeColumn, fk.FromColumn)
		if !ok {
			return planerr.UnknownColumn(fk.FromColumn, b.g.ColumnNames())
		}
		toH, ok := b.g.handleByName(NodeColumn, fk.ToColumn)
		if !ok {
			return planerr.UnknownColumn(fk.ToColumn, b.g.ColumnNames())
		}
		b.g.addEdge(Edge{
			From: fromH,
			To:   toH,
			Kind: EdgeReferences,
			Data: ReferenceData{Provenance: fk.Provenance},
		})
	}
	return nil
}

func (b *Builder) addExplicitJoins(m *model.Model) error {
	for _, e := range m.Entities {
		for _, j := range e.Joins {
			fromH, ok := b.g.handleByName(NodeEntity, j.FromEntity)
			if !ok {
				return planerr.UnknownEntity(j.FromEntity, b.g.EntityNames())
			}
			toH, ok := b.g.handleByName(NodeEntity, j.ToEntity)
			if !ok {
				return planerr.UnknownEntity(j.ToEntity, b.g.EntityNames())
			}
			if existingJoinsTo(b.g, fromH, toH) {
				continue // already aggregated from REFERENCES; explicit joins supplement, not duplicate
			}
			b.g.addEdge(Edge{
				From: fromH,
				To:   toH,
				Kind: EdgeJoinsTo,
				Data: JoinData{
					Cardinality: cardinalityFromString(j.Cardinality),
					FromColumn:  j.FromColumn,
					ToColumn:    j.ToColumn,
					Provenance:  RefExplicit,
				},
			})
		}
	}
	return nil
}

func cardinalityFromString(s string) Cardinality {
	switch s {
	case "1:1":
		return Card1to1
	case "1:N":
		return Card1toN
	case "N:1":
		return CardNto1
	case "N:N":
		return CardNtoN
	default:
		return CardinalityUnknown
	}
}

func existingJoinsTo(g *UnifiedGraph, from, to NodeHandle) bool {
	for _, e := range g.OutEdges(from, EdgeJoinsTo) {
		if e.To == to {
			return true
		}
	}
	return false
}

// aggregateJoinsFromReferences derives JOINS_TO edges between entities
// connected by a REFERENCES edge, with cardinality derived from endpoint
// column uniqueness: if the "from" FK column is unique, the join is 1:1 or
// 1:N; otherwise N:1 or N:N.
func (b *Builder) aggregateJoinsFromReferences() {
	type pairKey struct{ from, to NodeHandle }
	seen := map[pairKey]bool{}

	// deterministic iteration order for reproducible edge ordering
	indices := make([]int, len(b.g.edges))
	for i := range indices {
		indices[i] = i
	}

	for _, idx := range indices {
		e := b.g.edges[idx]
		if e.Kind != EdgeReferences {
			continue
		}
		fromCol := b.g.Column(e.From)
		toCol := b.g.Column(e.To)
		fromEntityH, _ := b.g.handleByName(NodeEntity, fromCol.Entity)
		toEntityH, _ := b.g.handleByName(NodeEntity, toCol.Entity)

		if fromEntityH == toEntityH {
			continue // same-entity reference, no JOINS_TO needed
		}
		key := pairKey{fromEntityH, toEntityH}
		if seen[key] || existingJoinsTo(b.g, fromEntityH, toEntityH) {
			continue
		}
		seen[key] = true

		toUnique := toCol.Unique
		fromUnique := fromCol.Unique
		var card Cardinality
		switch {
		case fromUnique && toUnique:
			card = Card1to1
		case fromUnique && !toUnique:
			card = Card1toN
		case !fromUnique && toUnique:
			card = CardNto1
		default:
			card = CardNtoN
		}

		refData, _ := e.Data.(ReferenceData)
		b.g.addEdge(Edge{
			From: fromEntityH,
			To:   toEntityH,
			Kind: EdgeJoinsTo,
			Data: JoinData{
				Cardinality: card,
				FromColumn:  fromCol.QualifiedName(),
				ToColumn:    toCol.QualifiedName(),
				Provenance:  refData.Provenance,
			},
		})
	}
}

func (b *Builder) addDependsOn(m *model.Model) error {
	for _, e := range m.Entities {
		for _, me := range e.Measures {
			measureH, ok := b.g.handleByName(NodeMeasure, e.Name+"."+me.Name)
			if !ok {
				continue
			}
			cols := measureSourceColumns(e.Name, me)
			for _, col := range cols {
				colH, ok := b.g.handleByName(NodeColumn, col)
				if !ok {
					return planerr.UnknownColumn(col, b.g.ColumnNames()).WithName(e.Name + "." + me.Name)
				}
				b.g.addEdge(Edge{From: measureH, To: colH, Kind: EdgeDependsOn, Data: DependsOnData{}})
			}
		}
	}
	return nil
}

// measureSourceColumns returns the qualified column a measure depends on:
// its declared SourceColumn, qualified with the measure's entity when it
// has no dot. A measure's Expression text is not parsed anywhere in this
// module, so a measure defined only by Expression gets no DEPENDS_ON edges.
func measureSourceColumns(entity string, me model.MeasureDef) []string {
	if me.SourceColumn == "" {
		return nil
	}
	if containsDot(me.SourceColumn) {
		return []string{me.SourceColumn}
	}
	return []string{entity + "." + me.SourceColumn}
}

func containsDot(s string) bool {
	for _, r := range s {
		if r == '.' {
			return true
		}
	}
	return false
}

func (b *Builder) addDerivedFrom(m *model.Model) error {
	// Derived-from edges are discovered directly from each column's
	// declared DerivedFrom sources. This keeps the builder free of any
	// expression parser (out of scope per spec.md §1) while still
	// exercising the DERIVED_FROM edge kind.
	for _, e := range m.Entities {
		for _, c := range e.Columns {
			if len(c.DerivedFrom) == 0 {
				continue
			}
			colH, _ := b.g.handleByName(NodeColumn, e.Name+"."+c.Name)
			for _, src := range c.DerivedFrom {
				srcH, ok := b.g.handleByName(NodeColumn, src)
				if !ok {
					return planerr.UnknownColumn(src, b.g.ColumnNames()).WithName(e.Name + "." + c.Name)
				}
				b.g.addEdge(Edge{From: colH, To: srcH, Kind: EdgeDerivedFrom, Data: DerivedFromData{}})
			}
		}
	}
	return nil
}

func (b *Builder) validate() error {
	// Every column has exactly one BELONGS_TO edge: guaranteed by
	// construction (addNode+addEdge pair in BuildPhase1); re-checked here
	// defensively since it's a cheap O(V) walk and a testable property.
	for h := NodeHandle(1); int(h) < len(b.g.nodes); h++ {
		if b.g.nodes[h].kind != NodeColumn {
			continue
		}
		if len(b.g.OutEdges(h, EdgeBelongsTo)) != 1 {
			col := b.g.Column(h)
			return planerr.Newf(planerr.KindInternal, "column %q does not have exactly one BELONGS_TO edge", col.QualifiedName())
		}
	}

	// Cardinality on JOINS_TO is consistent with endpoint column
	// uniqueness where known: if the "from" FK column is unique, the
	// edge must be 1:1 or 1:N; otherwise N:1 or N:N.
	for _, e := range b.g.edges {
		if e.Kind != EdgeJoinsTo {
			continue
		}
		jd, ok := e.Data.(JoinData)
		if !ok || jd.FromColumn == "" {
			continue
		}
		fromColH, ok := b.g.handleByName(NodeColumn, jd.FromColumn)
		if !ok {
			continue
		}
		fromUnique := b.g.Column(fromColH).Unique
		oneSide := jd.Cardinality == Card1to1 || jd.Cardinality == Card1toN
		manySide := jd.Cardinality == CardNto1 || jd.Cardinality == CardNtoN
		if fromUnique && manySide {
			return planerr.Newf(planerr.KindInternal,
				"JOINS_TO %s has unique FK column %q but cardinality %v", e.Kind, jd.FromColumn, jd.Cardinality)
		}
		if !fromUnique && oneSide && jd.Cardinality != CardinalityUnknown {
			return planerr.Newf(planerr.KindInternal,
				"JOINS_TO %s has non-unique FK column %q but cardinality %v", e.Kind, jd.FromColumn, jd.Cardinality)
		}
	}

	// REFERENCES edge exists only when both endpoints' entities are
	// linked by JOINS_TO (or are the same entity).
	for _, e := range b.g.edges {
		if e.Kind != EdgeReferences {
			continue
		}
		fromCol := b.g.Column(e.From)
		toCol := b.g.Column(e.To)
		if fromCol.Entity == toCol.Entity {
			continue
		}
		fromEntityH, _ := b.g.handleByName(NodeEntity, fromCol.Entity)
		toEntityH, _ := b.g.handleByName(NodeEntity, toCol.Entity)
		if !existingJoinsTo(b.g, fromEntityH, toEntityH) && !existingJoinsTo(b.g, toEntityH, fromEntityH) {
			return planerr.Newf(planerr.KindInternal,
				"REFERENCES edge %s -> %s has no corresponding JOINS_TO edge",
				fromCol.QualifiedName(), toCol.QualifiedName())
		}
	}

	return nil
}

// detectCycles rejects circular DERIVED_FROM or circular DEPENDS_ON chains
// (a measure depending, transitively, on a column derived from itself).
func (b *Builder) detectCycles() error {
	for _, kind := range []EdgeKind{EdgeDerivedFrom, EdgeDependsOn} {
		const (
			white = 0
			gray  = 1
			black = 2
		)
		color := make(map[NodeHandle]int)

		var visit func(h NodeHandle) error
		visit = func(h NodeHandle) error {
			color[h] = gray
			for _, e := range b.g.OutEdges(h, kind) {
				switch color[e.To] {
				case gray:
					return planerr.Newf(planerr.KindInternal, "cycle detected in %v chain", kind)
				case white:
					if err := visit(e.To); err != nil {
						return err
					}
				}
			}
			color[h] = black
			return nil
		}

		handles := make([]NodeHandle, 0, len(b.g.nodes)-1)
		for h := NodeHandle(1); int(h) < len(b.g.nodes); h++ {
			handles = append(handles, h)
		}
		sort.Slice(handles, func(i, j int) bool { return handles[i] < handles[j] })

		for _, h := range handles {
			if color[h] == white {
				if err := visit(h); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
