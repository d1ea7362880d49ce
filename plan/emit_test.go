package plan

import (
	"testing"

	"github.com/prismquery/planner/graph"
	"github.com/prismquery/planner/model"
	"github.com/prismquery/planner/optimizer"
	"github.com/stretchr/testify/require"
)

func TestEmit_TwoTableJoinWithFilterGroupSortLimit(t *testing.T) {
	m, stats := salesProductsModel()
	g, err := graph.Build(m, stats)
	require.NoError(t, err)

	limit := 10
	report := &model.Report{
		From:    []string{"sales", "products"},
		Filters: []model.Expr{model.Bin("=", model.Col("products.id"), model.Lit(7))},
		Group:   []model.GroupRef{{Column: "products.category_id"}},
		Show:    []string{"sales.total_revenue"},
		Sort:    []model.SortKey{{Column: "sales.total_revenue", Desc: true}},
		Limit:   &limit,
	}

	joinResult, err := optimizer.Solve(g, report.From, report.Filters, false)
	require.NoError(t, err)

	logical, err := BuildLogical(g, report, joinResult.Plan)
	require.NoError(t, err)

	physical, err := ConvertPhysical(logical)
	require.NoError(t, err)

	sql, err := Emit(physical)
	require.NoError(t, err)

	want := `SELECT "products"."category_id", SUM("sales"."amount") AS "sales.total_revenue" FROM "sales" INNER JOIN "products" ON "sales"."product_id" = "products"."id" WHERE ("products"."id" = 7) GROUP BY "products"."category_id" ORDER BY "sales.total_revenue" DESC LIMIT 10`
	require.Equal(t, want, sql)
}

func TestEmit_RejectsNonAggregateShapedTree(t *testing.T) {
	malformed := &PhysicalNode{Kind: PhysicalProject, Input: &PhysicalNode{Kind: PhysicalScan, Entity: "sales"}}
	_, err := Emit(malformed)
	require.Error(t, err)
}

func TestEmit_NilTreeErrors(t *testing.T) {
	_, err := Emit(nil)
	require.Error(t, err)
}
