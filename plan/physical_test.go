package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertPhysical_HashJoinWhenBothSidesLarge(t *testing.T) {
	logical := &LogicalNode{
		Kind: LogicalJoin,
		Left: &LogicalNode{Kind: LogicalScan, Entity: "sales", EstimatedRows: 2_000_000},
		Right: &LogicalNode{Kind: LogicalScan, Entity: "products", EstimatedRows: 5_000},
		On:            []OnPair{{Left: "sales.product_id", Right: "products.id"}},
		EstimatedRows: 2_000_000,
	}

	physical, err := ConvertPhysical(logical)
	require.NoError(t, err)
	assert.Equal(t, PhysicalHashJoin, physical.Kind)
	assert.Equal(t, "right", physical.BuildSide)
}

func TestConvertPhysical_NestedLoopWhenOneSideTiny(t *testing.T) {
	logical := &LogicalNode{
		Kind: LogicalJoin,
		Left: &LogicalNode{Kind: LogicalScan, Entity: "sales", EstimatedRows: 2_000_000},
		Right: &LogicalNode{Kind: LogicalScan, Entity: "regions", EstimatedRows: 6},
		On:            []OnPair{{Left: "sales.region_id", Right: "regions.id"}},
		EstimatedRows: 2_000_000,
	}

	physical, err := ConvertPhysical(logical)
	require.NoError(t, err)
	assert.Equal(t, PhysicalNestedLoopJoin, physical.Kind)
	assert.Empty(t, physical.BuildSide)
}

func TestConvertPhysical_AggregateBecomesHashAggregate(t *testing.T) {
	logical := &LogicalNode{
		Kind:  LogicalAggregate,
		Input: &LogicalNode{Kind: LogicalScan, Entity: "sales", EstimatedRows: 100},
		GroupBy: []string{"sales.region_id"},
	}

	physical, err := ConvertPhysical(logical)
	require.NoError(t, err)
	assert.Equal(t, PhysicalHashAggregate, physical.Kind)
}

func TestConvertPhysical_UnknownKindErrors(t *testing.T) {
	logical := &LogicalNode{Kind: LogicalKind(99)}
	_, err := ConvertPhysical(logical)
	require.Error(t, err)
}
