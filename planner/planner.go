// Package planner ties the semantic graph, the two-tier cache, the DP
// join optimizer, and the logical/physical plan IR into the single
// entry point a host application calls: Plan(ctx, m, report) -> SQL. It is
// a thin orchestrator over the components it composes, in the style of
// the teacher's statemanager handlers delegating to a Manager rather
// than reimplementing logic of their own.
package planner

import (
	"context"
	"time"

	"github.com/prismquery/planner/activity"
	"github.com/prismquery/planner/cache"
	"github.com/prismquery/planner/dbclient"
	"github.com/prismquery/planner/inference"
	"github.com/prismquery/planner/model"
	"github.com/prismquery/planner/optimizer"
	"github.com/prismquery/planner/plan"
	"github.com/prismquery/planner/planlog"
)

// Config controls a Planner's behavior beyond what the cache and
// inference engine already own.
type Config struct {
	// AllowGreedyFallback permits optimizer.Solve to fall back to the
	// greedy heuristic for reports spanning more tables than the DP
	// algorithm's exact table limit, rather than failing the Plan call.
	AllowGreedyFallback bool
}

// OptimizerStats surfaces the DP join optimizer's own telemetry for a
// single Plan call, per spec.md §4.5.
type OptimizerStats struct {
	SubsetsTried int
	Elapsed      time.Duration
}

// Result is the outcome of a successful Plan call.
type Result struct {
	SQL      string
	Physical *plan.PhysicalNode
	Stats    OptimizerStats
}

// Planner is the planner's single public entry point. It owns no state
// of its own beyond the components passed to New: the cache coordinator
// resolves (and rebuilds, on drift) the semantic graph, the DP optimizer
// orders the joins, and the plan package builds and emits the resulting
// SQL.
type Planner struct {
	coordinator *cache.Coordinator
	engine      inference.Engine
	dbClient    dbclient.Client
	tracker     *activity.Tracker
	cfg         Config
}

// New constructs a Planner. tracker may be nil, in which case Plan calls
// are not recorded (useful for tests that don't care about introspection).
func New(coordinator *cache.Coordinator, engine inference.Engine, dbClient dbclient.Client, tracker *activity.Tracker, cfg Config) *Planner {
	return &Planner{coordinator: coordinator, engine: engine, dbClient: dbClient, tracker: tracker, cfg: cfg}
}

// Plan compiles report against m into SQL: resolve the semantic graph
// (cache.Coordinator.GetOrBuild), order the joins (optimizer.Solve),
// build and cost the logical/physical plan (plan.BuildLogical,
// plan.ConvertPhysical), and emit SQL text (plan.Emit).
func (p *Planner) Plan(ctx context.Context, m *model.Model, report *model.Report) (*Result, error) {
	var activityID string
	if p.tracker != nil {
		entry := p.tracker.Begin("plan", map[string]interface{}{"from": report.From})
		activityID = entry.ID
	}

	result, err := p.plan(ctx, m, report)

	if p.tracker != nil {
		p.tracker.Complete(activityID, err)
	}
	return result, err
}

func (p *Planner) plan(ctx context.Context, m *model.Model, report *model.Report) (*Result, error) {
	g, err := p.coordinator.GetOrBuild(ctx, m, p.engine, p.dbClient)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	joinResult, err := optimizer.Solve(g, report.From, report.Filters, p.cfg.AllowGreedyFallback)
	if err != nil {
		return nil, err
	}
	elapsed := time.Since(start)

	logical, err := plan.BuildLogical(g, report, joinResult.Plan)
	if err != nil {
		return nil, err
	}

	physical, err := plan.ConvertPhysical(logical)
	if err != nil {
		return nil, err
	}

	sql, err := plan.Emit(physical)
	if err != nil {
		return nil, err
	}

	planlog.Logger.WithField("subsets_tried", joinResult.SubsetsTried).
		WithField("elapsed", elapsed).
		Debug("planner: plan compiled")

	return &Result{
		SQL:      sql,
		Physical: physical,
		Stats: OptimizerStats{
			SubsetsTried: joinResult.SubsetsTried,
			Elapsed:      elapsed,
		},
	}, nil
}
