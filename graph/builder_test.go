package graph

import (
	"testing"

	"github.com/prismquery/planner/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func starSchemaModel() *model.Model {
	return &model.Model{
		Entities: []model.EntityDef{
			{
				Name: "sales",
				Kind: model.EntityFact,
				Columns: []model.ColumnDef{
					{Name: "id", DataType: model.TypeInteger},
					{Name: "product_id", DataType: model.TypeInteger},
					{Name: "amount", DataType: model.TypeFloat},
				},
				Measures: []model.MeasureDef{
					{Name: "total_revenue", Aggregation: "sum", SourceColumn: "amount"},
				},
			},
			{
				Name: "products",
				Kind: model.EntityDimension,
				Columns: []model.ColumnDef{
					{Name: "id", DataType: model.TypeInteger},
					{Name: "category_id", DataType: model.TypeInteger},
					{Name: "name", DataType: model.TypeString},
				},
			},
			{
				Name: "categories",
				Kind: model.EntityDimension,
				Columns: []model.ColumnDef{
					{Name: "id", DataType: model.TypeInteger},
					{Name: "category_name", DataType: model.TypeString},
				},
			},
		},
	}
}

func starSchemaStats() *InferenceStats {
	return &InferenceStats{
		EntityRowCount: map[string]int64{
			"sales":      10_000_000,
			"products":   500,
			"categories": 20,
		},
		ColumnUnique: map[string]bool{
			"sales.id":        true,
			"products.id":     true,
			"categories.id":   true,
			"sales.product_id":    false,
			"products.category_id": false,
		},
		ForeignKeys: []InferredForeignKey{
			{FromColumn: "sales.product_id", ToColumn: "products.id", Provenance: RefForeignKey},
			{FromColumn: "products.category_id", ToColumn: "categories.id", Provenance: RefForeignKey},
		},
	}
}

func TestBuild_EveryColumnHasExactlyOneBelongsTo(t *testing.T) {
	g, err := Build(starSchemaModel(), starSchemaStats())
	require.NoError(t, err)

	for h := NodeHandle(1); int(h) < len(g.nodes); h++ {
		if g.nodes[h].kind != NodeColumn {
			continue
		}
		edges := g.OutEdges(h, EdgeBelongsTo)
		assert.Len(t, edges, 1, "column %q should have exactly one BELONGS_TO edge", g.Column(h).QualifiedName())
	}
}

func TestBuild_ReferencesResolveToExistingColumns(t *testing.T) {
	g, err := Build(starSchemaModel(), starSchemaStats())
	require.NoError(t, err)

	found := false
	for _, e := range g.edges {
		if e.Kind != EdgeReferences {
			continue
		}
		found = true
		assert.NotNil(t, g.Column(e.From))
		assert.NotNil(t, g.Column(e.To))
	}
	assert.True(t, found, "expected at least one REFERENCES edge")
}

func TestBuild_JoinsToEndpointsResolveToExistingEntities(t *testing.T) {
	g, err := Build(starSchemaModel(), starSchemaStats())
	require.NoError(t, err)

	found := false
	for _, e := range g.edges {
		if e.Kind != EdgeJoinsTo {
			continue
		}
		found = true
		assert.NotNil(t, g.Entity(e.From))
		assert.NotNil(t, g.Entity(e.To))
	}
	assert.True(t, found, "expected at least one JOINS_TO edge")
}

func TestBuild_CardinalityDerivedFromUniqueness(t *testing.T) {
	g, err := Build(starSchemaModel(), starSchemaStats())
	require.NoError(t, err)

	salesH, _ := g.EntityHandle("sales")
	edges := g.OutEdges(salesH, EdgeJoinsTo)
	require.Len(t, edges, 1)
	jd := edges[0].Data.(JoinData)
	assert.Equal(t, CardNto1, jd.Cardinality, "many sales rows reference one product")
}

func TestBuild_DuplicateEntityRejected(t *testing.T) {
	m := starSchemaModel()
	m.Entities = append(m.Entities, m.Entities[0])

	_, err := Build(m, starSchemaStats())
	require.Error(t, err)
}

func TestBuild_DuplicateColumnRejected(t *testing.T) {
	m := starSchemaModel()
	m.Entities[0].Columns = append(m.Entities[0].Columns, m.Entities[0].Columns[0])

	_, err := Build(m, starSchemaStats())
	require.Error(t, err)
}

func TestBuild_DependsOnResolvesMeasureSourceColumn(t *testing.T) {
	g, err := Build(starSchemaModel(), starSchemaStats())
	require.NoError(t, err)

	cols, err := g.RequiredColumns("sales.total_revenue")
	require.NoError(t, err)
	assert.Equal(t, []string{"sales.amount"}, cols)
}

func TestBuild_UnknownMeasureDependencyColumnRejected(t *testing.T) {
	m := starSchemaModel()
	m.Entities[0].Measures[0].SourceColumn = "does_not_exist"

	_, err := Build(m, starSchemaStats())
	require.Error(t, err)
}

func TestBuild_DerivedFromCycleRejected(t *testing.T) {
	m := starSchemaModel()
	m.Entities[0].Columns = append(m.Entities[0].Columns, model.ColumnDef{
		Name: "amount_doubled", DataType: model.TypeFloat, DerivedFrom: []string{"sales.amount_doubled"},
	})

	_, err := Build(m, starSchemaStats())
	require.Error(t, err)
}
