package optimizer

import (
	"testing"

	"github.com/prismquery/planner/graph"
	"github.com/prismquery/planner/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyPredicates_EqualityHighCardinality(t *testing.T) {
	m, stats := chainModel()
	g, err := graph.Build(m, stats)
	require.NoError(t, err)

	preds, err := ClassifyPredicates(g, []model.Expr{
		model.Bin("=", model.Col("products.id"), model.Lit(7)),
	})
	require.NoError(t, err)
	require.Len(t, preds, 1)
	assert.InDelta(t, 0.001, preds[0].Selectivity, 1e-9)
	assert.True(t, preds[0].ReferencedTables["products"])
}

func TestClassifyPredicates_EqualityLowCardinality(t *testing.T) {
	m, stats := chainModel()
	g, err := graph.Build(m, stats)
	require.NoError(t, err)

	preds, err := ClassifyPredicates(g, []model.Expr{
		model.Bin("=", model.Col("products.category_id"), model.Lit(3)),
	})
	require.NoError(t, err)
	require.Len(t, preds, 1)
	assert.InDelta(t, 0.1, preds[0].Selectivity, 1e-9)
}

func TestClassifyPredicates_Range(t *testing.T) {
	m, stats := chainModel()
	g, err := graph.Build(m, stats)
	require.NoError(t, err)

	preds, err := ClassifyPredicates(g, []model.Expr{
		model.Bin(">", model.Col("sales.id"), model.Lit(100)),
	})
	require.NoError(t, err)
	require.Len(t, preds, 1)
	assert.InDelta(t, 0.33, preds[0].Selectivity, 1e-9)
}

func TestClassifyPredicates_AndCombination(t *testing.T) {
	m, stats := chainModel()
	g, err := graph.Build(m, stats)
	require.NoError(t, err)

	preds, err := ClassifyPredicates(g, []model.Expr{
		model.Bin("AND",
			model.Bin("=", model.Col("products.id"), model.Lit(7)),
			model.Bin("=", model.Col("products.category_id"), model.Lit(3)),
		),
	})
	require.NoError(t, err)
	require.Len(t, preds, 1)
	assert.InDelta(t, 0.001*0.1, preds[0].Selectivity, 1e-9)
	assert.True(t, preds[0].ReferencedTables["products"])
	assert.Len(t, preds[0].ReferencedTables, 1)
}

func TestClassifyPredicates_MultiTableReference(t *testing.T) {
	m, stats := chainModel()
	g, err := graph.Build(m, stats)
	require.NoError(t, err)

	preds, err := ClassifyPredicates(g, []model.Expr{
		model.Bin("=", model.Col("sales.product_id"), model.Col("products.id")),
	})
	require.NoError(t, err)
	require.Len(t, preds, 1)
	assert.True(t, preds[0].ReferencedTables["sales"])
	assert.True(t, preds[0].ReferencedTables["products"])
}
