package cache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/prismquery/planner/dbclient"
	"github.com/prismquery/planner/inference"
	"github.com/prismquery/planner/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingEngine struct {
	runs    int
	version string
}

func (e *countingEngine) Run(ctx context.Context, m *model.Model) (inference.Results, error) {
	e.runs++
	return inference.Results{
		Version: e.version,
		EntityStats: map[string]inference.EntityStats{
			"sales":    {RowCount: 10_000_000},
			"products": {RowCount: 500},
		},
		ColumnStats: map[string]inference.ColumnStats{
			"sales.id":         {DistinctCount: 10_000_000, TotalCount: 10_000_000},
			"sales.product_id": {DistinctCount: 400, TotalCount: 10_000_000},
			"products.id":      {DistinctCount: 500, TotalCount: 500},
		},
		ForeignKeys: []inference.ForeignKeyResult{
			{FromColumn: "sales.product_id", ToColumn: "products.id", Provenance: inference.ProvenanceForeignKey},
		},
	}, nil
}

type fakeDBClient struct{}

func (fakeDBClient) Ping() error { return nil }

func testModel() *model.Model {
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
					{Name: "name", DataType: model.TypeString},
				},
			},
		},
	}
}

func newTestCoordinator(t *testing.T) *Coordinator {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cache.db")
	c, err := NewCoordinator(path, GraphCacheConfig{InferenceTTL: time.Hour})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestGetOrBuild_FirstCallRunsInference(t *testing.T) {
	c := newTestCoordinator(t)
	engine := &countingEngine{version: "v1"}

	g, err := c.GetOrBuild(context.Background(), testModel(), engine, fakeDBClient{})
	require.NoError(t, err)
	assert.Equal(t, 1, engine.runs)

	_, ok := g.EntityHandle("sales")
	assert.True(t, ok)
}

func TestGetOrBuild_SecondCallHitsCache(t *testing.T) {
	c := newTestCoordinator(t)
	engine := &countingEngine{version: "v1"}
	m := testModel()

	_, err := c.GetOrBuild(context.Background(), m, engine, fakeDBClient{})
	require.NoError(t, err)
	_, err = c.GetOrBuild(context.Background(), m, engine, fakeDBClient{})
	require.NoError(t, err)

	assert.Equal(t, 1, engine.runs, "inference engine must not run twice when the TTL has not expired")
}

func TestGetOrBuild_InvalidateInferenceCascades(t *testing.T) {
	c := newTestCoordinator(t)
	engine := &countingEngine{version: "v1"}
	m := testModel()

	_, err := c.GetOrBuild(context.Background(), m, engine, fakeDBClient{})
	require.NoError(t, err)

	require.NoError(t, c.InvalidateInference(context.Background(), m))
	engine.version = "v2"

	_, err = c.GetOrBuild(context.Background(), m, engine, fakeDBClient{})
	require.NoError(t, err)
	assert.Equal(t, 2, engine.runs, "invalidating inference must force a rerun")
}

func TestGetOrBuild_ExpiredTTLRerunsInference(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	c, err := NewCoordinator(path, GraphCacheConfig{InferenceTTL: -1 * time.Second})
	require.NoError(t, err)
	defer c.Close()

	engine := &countingEngine{version: "v1"}
	m := testModel()

	_, err = c.GetOrBuild(context.Background(), m, engine, fakeDBClient{})
	require.NoError(t, err)
	_, err = c.GetOrBuild(context.Background(), m, engine, fakeDBClient{})
	require.NoError(t, err)

	assert.Equal(t, 2, engine.runs, "an already-expired TTL must force a rerun on every call")
}

func TestClearGraphCache_LeavesInferenceIntact(t *testing.T) {
	c := newTestCoordinator(t)
	engine := &countingEngine{version: "v1"}
	m := testModel()

	_, err := c.GetOrBuild(context.Background(), m, engine, fakeDBClient{})
	require.NoError(t, err)

	require.NoError(t, c.ClearGraphCache())

	_, err = c.GetOrBuild(context.Background(), m, engine, fakeDBClient{})
	require.NoError(t, err)
	assert.Equal(t, 1, engine.runs, "clearing the graph cache must not force an inference rerun")

	stats, err := c.Stats()
	require.NoError(t, err)
	assert.Greater(t, stats.EntryCounts["graph"], 0, "graph cache should be repopulated after the clear+rebuild")
}

func TestClearAll_RemovesEverything(t *testing.T) {
	c := newTestCoordinator(t)
	engine := &countingEngine{version: "v1"}
	m := testModel()

	_, err := c.GetOrBuild(context.Background(), m, engine, fakeDBClient{})
	require.NoError(t, err)

	require.NoError(t, c.ClearAll())

	stats, err := c.Stats()
	require.NoError(t, err)
	assert.Equal(t, 0, stats.EntryCounts["graph"])
	assert.Equal(t, 0, stats.EntryCounts["inference"])
}

func TestStats_CountsEntriesByPrefix(t *testing.T) {
	c := newTestCoordinator(t)
	engine := &countingEngine{version: "v1"}

	_, err := c.GetOrBuild(context.Background(), testModel(), engine, fakeDBClient{})
	require.NoError(t, err)

	stats, err := c.Stats()
	require.NoError(t, err)
	assert.Greater(t, stats.EntryCounts["inference"], 0)
	assert.Greater(t, stats.EntryCounts["graph"], 0)
}
