// Package inference defines the Go-typed contract the (out-of-scope)
// schema-inference engine satisfies. The planner consumes InferenceResults
// and reacts to its Version; it never produces them itself.
package inference

import (
	"context"

	"github.com/prismquery/planner/model"
)

// ColumnStats carries the per-column statistics the graph builder needs to
// derive uniqueness and size category.
type ColumnStats struct {
	DistinctCount int64
	NullCount     int64
	TotalCount    int64
}

// Unique reports whether the column is unique per spec.md's rule:
// distinct_count == total_count - null_count.
func (s ColumnStats) Unique() bool {
	return s.DistinctCount == s.TotalCount-s.NullCount
}

// EntityStats carries the per-entity statistics the graph builder needs to
// derive size category.
type EntityStats struct {
	RowCount int64
}

// ForeignKeyProvenance classifies how a REFERENCES edge was discovered.
type ForeignKeyProvenance int

const (
	ProvenanceExplicit ForeignKeyProvenance = iota
	ProvenanceForeignKey
	ProvenanceConvention
	ProvenanceStatistical
)

// ForeignKeyResult is one discovered (or declared) column-to-column
// reference, the raw material for REFERENCES edges.
type ForeignKeyResult struct {
	FromColumn string // "entity.column"
	ToColumn   string // "entity.column"
	Provenance ForeignKeyProvenance
}

// Results is the schema-inference engine's output: per-entity and
// per-column statistics plus discovered foreign keys, stamped with an
// opaque Version token the cache uses to cascade invalidation.
type Results struct {
	Version     string // e.g. "v1_<unix_seconds>"
	EntityStats map[string]EntityStats
	ColumnStats map[string]ColumnStats // keyed by "entity.column"
	ForeignKeys []ForeignKeyResult
}

// Engine is the capability contract the schema-inference engine satisfies.
// The planner calls Run and reacts only to the returned Results' Version;
// it never inspects live database metadata itself.
type Engine interface {
	Run(ctx context.Context, m *model.Model) (Results, error)
}
