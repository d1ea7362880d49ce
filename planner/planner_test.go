package planner

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/prismquery/planner/activity"
	"github.com/prismquery/planner/cache"
	"github.com/prismquery/planner/inference"
	"github.com/prismquery/planner/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingEngine struct {
	runs int
}

func (e *countingEngine) Run(ctx context.Context, m *model.Model) (inference.Results, error) {
	e.runs++
	return inference.Results{
		Version: "v1",
		EntityStats: map[string]inference.EntityStats{
			"sales":    {RowCount: 2_000_000},
			"products": {RowCount: 300},
		},
		ColumnStats: map[string]inference.ColumnStats{
			"sales.id":         {DistinctCount: 2_000_000, TotalCount: 2_000_000},
			"sales.product_id": {DistinctCount: 250, TotalCount: 2_000_000},
			"products.id":      {DistinctCount: 300, TotalCount: 300},
		},
		ForeignKeys: []inference.ForeignKeyResult{
			{FromColumn: "sales.product_id", ToColumn: "products.id", Provenance: inference.ProvenanceForeignKey},
		},
	}, nil
}

type fakeDBClient struct{}

func (fakeDBClient) Ping() error { return nil }

func reportingModel() *model.Model {
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
				},
			},
		},
	}
}

func newTestCoordinator(t *testing.T) *cache.Coordinator {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cache.db")
	c, err := cache.NewCoordinator(path, cache.GraphCacheConfig{InferenceTTL: time.Hour})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestPlan_EmitsJoinedAggregatedSQL(t *testing.T) {
	coordinator := newTestCoordinator(t)
	engine := &countingEngine{}
	tracker := activity.New(activity.Config{})
	p := New(coordinator, engine, fakeDBClient{}, tracker, Config{})

	limit := 10
	report := &model.Report{
		From:    []string{"sales", "products"},
		Filters: []model.Expr{model.Bin("=", model.Col("products.id"), model.Lit(7))},
		Group:   []model.GroupRef{{Column: "products.category_id"}},
		Show:    []string{"sales.total_revenue"},
		Sort:    []model.SortKey{{Column: "sales.total_revenue", Desc: true}},
		Limit:   &limit,
	}

	result, err := p.Plan(context.Background(), reportingModel(), report)
	require.NoError(t, err)

	assert.Contains(t, result.SQL, `SELECT "products"."category_id"`)
	assert.Contains(t, result.SQL, `FROM "sales"`)
	assert.Contains(t, result.SQL, `JOIN "products"`)
	assert.Contains(t, result.SQL, `WHERE ("products"."id" = 7)`)
	assert.Contains(t, result.SQL, `GROUP BY "products"."category_id"`)
	assert.Contains(t, result.SQL, `ORDER BY "sales.total_revenue" DESC`)
	assert.Contains(t, result.SQL, `LIMIT 10`)
	assert.NotNil(t, result.Physical)

	entries := tracker.List()
	require.Len(t, entries, 1)
	assert.Equal(t, activity.StatusCompleted, entries[0].Status)
	assert.Equal(t, "plan", entries[0].Operation)
}

func TestPlan_ReusesCachedGraphAcrossCalls(t *testing.T) {
	coordinator := newTestCoordinator(t)
	engine := &countingEngine{}
	p := New(coordinator, engine, fakeDBClient{}, nil, Config{})

	report := &model.Report{
		From: []string{"sales", "products"},
		Show: []string{"sales.total_revenue"},
	}
	m := reportingModel()

	_, err := p.Plan(context.Background(), m, report)
	require.NoError(t, err)
	_, err = p.Plan(context.Background(), m, report)
	require.NoError(t, err)

	assert.Equal(t, 1, engine.runs, "second Plan call should hit the cached graph, not rerun inference")
}

func TestPlan_UnknownMeasureSurfacesPlanerr(t *testing.T) {
	coordinator := newTestCoordinator(t)
	engine := &countingEngine{}
	p := New(coordinator, engine, fakeDBClient{}, nil, Config{})

	report := &model.Report{
		From: []string{"sales"},
		Show: []string{"sales.nonexistent_measure"},
	}

	_, err := p.Plan(context.Background(), reportingModel(), report)
	require.Error(t, err)
}
