package optimizer

import (
	"testing"

	"github.com/prismquery/planner/graph"
	"github.com/prismquery/planner/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chainModel builds a sales -> products -> categories star, each hop a
// single explicit 1:N/N:1 join, mirroring graph package's own star fixture.
func chainModel() (*model.Model, *graph.InferenceStats) {
	m := &model.Model{
		Entities: []model.EntityDef{
			{
				Name: "sales",
				Kind: model.EntityFact,
				Columns: []model.ColumnDef{
					{Name: "id", DataType: model.TypeInteger},
					{Name: "product_id", DataType: model.TypeInteger},
				},
				Joins: []model.JoinDef{
					{FromEntity: "sales", ToEntity: "products", FromColumn: "sales.product_id", ToColumn: "products.id", Cardinality: "N:1"},
				},
			},
			{
				Name: "products",
				Kind: model.EntityDimension,
				Columns: []model.ColumnDef{
					{Name: "id", DataType: model.TypeInteger},
					{Name: "category_id", DataType: model.TypeInteger},
				},
				Joins: []model.JoinDef{
					{FromEntity: "products", ToEntity: "categories", FromColumn: "products.category_id", ToColumn: "categories.id", Cardinality: "N:1"},
				},
			},
			{
				Name: "categories",
				Kind: model.EntityDimension,
				Columns: []model.ColumnDef{
					{Name: "id", DataType: model.TypeInteger},
				},
			},
		},
	}
	stats := &graph.InferenceStats{
		EntityRowCount: map[string]int64{"sales": 10_000_000, "products": 500, "categories": 20},
		ColumnUnique: map[string]bool{
			"products.id":   true,
			"categories.id": true,
		},
	}
	return m, stats
}

func TestBuildJoinGraph_DirectAdjacency(t *testing.T) {
	m, stats := chainModel()
	g, err := graph.Build(m, stats)
	require.NoError(t, err)

	jg, err := BuildJoinGraph(g, []string{"sales", "products"})
	require.NoError(t, err)

	edge, ok := jg.EdgeBetween("sales", "products")
	require.True(t, ok)
	assert.Equal(t, graph.CardNto1, edge.Cardinality)

	reverse, ok := jg.EdgeBetween("products", "sales")
	require.True(t, ok)
	assert.Equal(t, graph.Card1toN, reverse.Cardinality)
}

func TestBuildJoinGraph_SkipsMultiHopPairs(t *testing.T) {
	m, stats := chainModel()
	g, err := graph.Build(m, stats)
	require.NoError(t, err)

	jg, err := BuildJoinGraph(g, []string{"sales", "categories"})
	require.NoError(t, err)

	_, ok := jg.EdgeBetween("sales", "categories")
	assert.False(t, ok, "sales and categories are two hops apart and should not get a direct edge")
}

func TestJoinGraph_Connects(t *testing.T) {
	m, stats := chainModel()
	g, err := graph.Build(m, stats)
	require.NoError(t, err)

	jg, err := BuildJoinGraph(g, []string{"sales", "products", "categories"})
	require.NoError(t, err)

	edge, ok := jg.Connects([]string{"sales"}, []string{"products", "categories"})
	require.True(t, ok)
	assert.Equal(t, "sales", edge.Left)

	_, ok = jg.Connects([]string{"sales"}, []string{"categories"})
	assert.False(t, ok)
}
