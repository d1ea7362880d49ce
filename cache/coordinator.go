package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prismquery/planner/dbclient"
	"github.com/prismquery/planner/graph"
	"github.com/prismquery/planner/hashutil"
	"github.com/prismquery/planner/inference"
	"github.com/prismquery/planner/model"
	"github.com/prismquery/planner/planlog"
)

// Coordinator implements get_or_build and the cache's invalidation/stats
// contract. Its single RWMutex generalizes the teacher's
// statemanager.Manager sync.RWMutex-guarded map pattern from an in-memory
// map to guarding reads and writes against bbolt: a pure cache hit (fresh
// inference entry, complete-graph entry present and composable) only ever
// reads, so GetOrBuild takes RLock for that fast path; any rebuild calls
// the inference engine and writes back one or more envelopes, so it
// re-enters under the full Lock. bbolt itself additionally serializes
// writers internally, but the Lock here prevents a concurrent GetOrBuild
// from observing a half-written complete-graph entry.
type Coordinator struct {
	mu    sync.RWMutex
	store *Store
	redis *redisTier
	cfg   GraphCacheConfig
}

// NewCoordinator opens (or creates) a bbolt-backed store at dbPath and
// wires an optional Redis L1 tier when cfg.RedisURL is set. A Redis
// connection failure degrades to bbolt-only rather than failing the
// whole cache, since the Redis tier is purely an optimization.
func NewCoordinator(dbPath string, cfg GraphCacheConfig) (*Coordinator, error) {
	store, err := OpenStore(dbPath)
	if err != nil {
		return nil, err
	}

	var tier *redisTier
	if cfg.RedisURL != "" {
		tier, err = newRedisTier(cfg.RedisURL)
		if err != nil {
			planlog.Logger.WithError(err).Warn("cache: redis tier unavailable, falling back to bbolt-only")
			tier = nil
		}
	}

	return &Coordinator{store: store, redis: tier, cfg: cfg}, nil
}

// Close releases the store's and (if present) the Redis tier's handles.
func (c *Coordinator) Close() error {
	if err := c.redis.close(); err != nil {
		return err
	}
	return c.store.Close()
}

// GetOrBuild resolves a UnifiedGraph for m, hitting as much of the cache
// as possible and rebuilding only the misses, per spec.md §4.2's
// five-step sequence:
//  1. resolve (results, version) via the inference cache, honoring TTL
//  2. attempt a complete-graph hit
//  3. otherwise, attempt a per-entity hit for each table/dimension
//  4. attempt an edges hit; rebuild if any node was rebuilt or it's missing
//  5. write back every rebuilt component plus the composed complete graph
func (c *Coordinator) GetOrBuild(ctx context.Context, m *model.Model, engine inference.Engine, dbClient dbclient.Client) (*graph.UnifiedGraph, error) {
	mHash, err := modelHash(m)
	if err != nil {
		return nil, err
	}

	if g, hit := c.tryFastHit(ctx, mHash); hit {
		return g, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.getOrBuildLocked(ctx, m, mHash, engine, dbClient)
}

// tryFastHit attempts the read-only path under RLock: a fresh inference
// entry plus a composable complete-graph entry means no engine call and
// no write-back is needed. Any miss, staleness, or decode failure falls
// through to the Lock-guarded rebuild path in getOrBuildLocked, which
// re-derives everything from scratch rather than trying to promote a
// partial read under a fresh Lock.
func (c *Coordinator) tryFastHit(ctx context.Context, mHash hashutil.Hash) (*graph.UnifiedGraph, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, hit := c.getInferenceCached(ctx, inferenceKey(mHash))
	if !hit || time.Since(entry.CachedAt) > c.cfg.InferenceTTL {
		return nil, false
	}

	completeKey := completeGraphKey(mHash, entry.Results.Version)
	cached, hit, err := get[CachedGraph](c.store, completeKey)
	if err != nil || !hit {
		return nil, false
	}

	g, err := graph.ComposeFromEnvelopes(cached.Entities, cached.Calendars, cached.Edges)
	if err != nil {
		return nil, false
	}
	return g, true
}

// getOrBuildLocked runs the full five-step resolve/rebuild/write-back
// sequence under the caller's write Lock. It re-checks the complete-graph
// entry itself (tryFastHit's Redis-accelerated inference read and this
// method's bbolt-only read can race independently, and InferenceTTL may
// have lapsed between the two calls), so no state from tryFastHit carries
// over.
func (c *Coordinator) getOrBuildLocked(ctx context.Context, m *model.Model, mHash hashutil.Hash, engine inference.Engine, dbClient dbclient.Client) (*graph.UnifiedGraph, error) {
	results, version, err := c.resolveInference(ctx, mHash, m, engine)
	if err != nil {
		return nil, err
	}

	completeKey := completeGraphKey(mHash, version)
	if cached, hit, err := get[CachedGraph](c.store, completeKey); err != nil {
		planlog.Logger.WithError(err).WithField("key", completeKey).Warn("cache: complete-graph entry unreadable, rebuilding")
	} else if hit {
		if g, composeErr := graph.ComposeFromEnvelopes(cached.Entities, cached.Calendars, cached.Edges); composeErr == nil {
			return g, nil
		}
		planlog.Logger.WithField("key", completeKey).Warn("cache: complete-graph entry failed to compose, rebuilding")
	}

	stats := adaptInferenceResults(results)

	entityEnvelopes := make([]graph.NodesEnvelope, len(m.Entities))
	var missed []int
	for i, e := range m.Entities {
		eHash, err := entityHash(e)
		if err != nil {
			return nil, err
		}
		key := entityNodesKey(mHash, version, e.Kind, eHash)
		if cached, hit, err := get[CachedNodes](c.store, key); err == nil && hit {
			entityEnvelopes[i] = cached.Envelope
			continue
		}
		missed = append(missed, i)
	}
	anyNodeMiss := len(missed) > 0

	// graph.Build has no incremental per-entity mode, so a single missed
	// entity still requires building the whole graph once. But only the
	// missed entities' envelopes are re-derived and re-put: the ones
	// already collected above from a cache hit are left untouched rather
	// than needlessly re-serialized and rewritten to bbolt.
	var fresh *graph.UnifiedGraph
	if anyNodeMiss {
		fresh, err = graph.Build(m, stats)
		if err != nil {
			return nil, err
		}
		for _, i := range missed {
			e := m.Entities[i]
			env, err := fresh.EntityNodesEnvelope(e.Name)
			if err != nil {
				return nil, err
			}
			entityEnvelopes[i] = env

			eHash, err := entityHash(e)
			if err != nil {
				return nil, err
			}
			key := entityNodesKey(mHash, version, e.Kind, eHash)
			if err := put(c.store, key, c.cfg.EnableCompression, CachedNodes{SchemaVersion: currentSchemaVersion, Envelope: env}); err != nil {
				planlog.Logger.WithError(err).WithField("key", key).Warn("cache: failed to persist node envelope")
			}
		}
	}

	eKey := edgesKey(mHash, version)
	var edgesEnv graph.EdgesEnvelope
	rebuildEdges := anyNodeMiss
	if !rebuildEdges {
		cached, hit, err := get[CachedEdges](c.store, eKey)
		if err == nil && hit {
			edgesEnv = cached.Envelope
		} else {
			rebuildEdges = true
		}
	}
	if rebuildEdges {
		if fresh == nil {
			fresh, err = graph.Build(m, stats)
			if err != nil {
				return nil, err
			}
		}
		edgesEnv = fresh.EdgesEnvelope()
		if err := put(c.store, eKey, c.cfg.EnableCompression, CachedEdges{SchemaVersion: currentSchemaVersion, Envelope: edgesEnv}); err != nil {
			planlog.Logger.WithError(err).WithField("key", eKey).Warn("cache: failed to persist edges envelope")
		}
	}

	calendars := make([]graph.CalendarNode, 0, len(m.Calendars))
	for _, cal := range m.Calendars {
		calendars = append(calendars, graph.CalendarNode{
			Name:         cal.Name,
			PhysicalName: cal.PhysicalName,
			DateColumn:   cal.DateColumn,
			Grains:       append([]string(nil), cal.Grains...),
			Metadata:     cal.Metadata,
		})
	}

	if err := put(c.store, completeKey, c.cfg.EnableCompression, CachedGraph{
		SchemaVersion: currentSchemaVersion,
		Entities:      entityEnvelopes,
		Calendars:     calendars,
		Edges:         edgesEnv,
	}); err != nil {
		planlog.Logger.WithError(err).WithField("key", completeKey).Warn("cache: failed to persist complete-graph entry")
	}

	return graph.ComposeFromEnvelopes(entityEnvelopes, calendars, edgesEnv)
}

// resolveInference returns (results, inference_version), running the
// inference engine and writing back a fresh entry when the cached one is
// missing, version-mismatched, or past InferenceTTL. At age == TTL the
// entry is still considered fresh.
func (c *Coordinator) resolveInference(ctx context.Context, mHash hashutil.Hash, m *model.Model, engine inference.Engine) (inference.Results, string, error) {
	key := inferenceKey(mHash)

	if entry, hit := c.getInferenceCached(ctx, key); hit {
		if time.Since(entry.CachedAt) <= c.cfg.InferenceTTL {
			return entry.Results, entry.Results.Version, nil
		}
	}

	results, err := engine.Run(ctx, m)
	if err != nil {
		return inference.Results{}, "", fmt.Errorf("cache: inference engine run: %w", err)
	}

	c.putInferenceCached(ctx, key, CachedInference{
		SchemaVersion: currentSchemaVersion,
		Results:       results,
		CachedAt:      time.Now(),
	})

	return results, results.Version, nil
}

func (c *Coordinator) getInferenceCached(ctx context.Context, key string) (CachedInference, bool) {
	if data, ok := c.redis.get(ctx, key); ok {
		var entry CachedInference
		if hit, err := decodeEnvelope(data, &entry); err == nil && hit {
			return entry, true
		}
	}

	entry, hit, err := get[CachedInference](c.store, key)
	if err != nil {
		planlog.Logger.WithError(err).WithField("key", key).Warn("cache: inference entry unreadable, treating as miss")
		return CachedInference{}, false
	}
	return entry, hit
}

func (c *Coordinator) putInferenceCached(ctx context.Context, key string, entry CachedInference) {
	if err := put(c.store, key, c.cfg.EnableCompression, entry); err != nil {
		planlog.Logger.WithError(err).WithField("key", key).Warn("cache: failed to persist inference entry")
		return
	}
	if data, err := encodeEnvelope(entry, false); err == nil {
		c.redis.set(ctx, key, data, c.cfg.InferenceTTL)
	}
}

// adaptInferenceResults converts the inference package's Results contract
// into the graph package's builder-facing InferenceStats shape.
func adaptInferenceResults(results inference.Results) *graph.InferenceStats {
	stats := &graph.InferenceStats{
		EntityRowCount: make(map[string]int64, len(results.EntityStats)),
		ColumnUnique:   make(map[string]bool, len(results.ColumnStats)),
	}
	for name, es := range results.EntityStats {
		stats.EntityRowCount[name] = es.RowCount
	}
	for col, cs := range results.ColumnStats {
		stats.ColumnUnique[col] = cs.Unique()
	}
	for _, fk := range results.ForeignKeys {
		stats.ForeignKeys = append(stats.ForeignKeys, graph.InferredForeignKey{
			FromColumn: fk.FromColumn,
			ToColumn:   fk.ToColumn,
			Provenance: graph.ReferenceProvenance(fk.Provenance),
		})
	}
	return stats
}

// InvalidateInference deletes the inference entry for m (and thus, since
// every graph key embeds the inference version, cascades a full rebuild
// on the next GetOrBuild).
func (c *Coordinator) InvalidateInference(ctx context.Context, m *model.Model) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	mHash, err := modelHash(m)
	if err != nil {
		return err
	}
	key := inferenceKey(mHash)
	c.redis.del(ctx, key)
	return c.store.delete(key)
}

// ClearGraphCache removes every graph:* entry, leaving inference entries
// in place.
func (c *Coordinator) ClearGraphCache() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.store.deletePrefix("graph:")
	return err
}

// ClearAll removes every entry in the cache.
func (c *Coordinator) ClearAll() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.store.deletePrefix("graph:"); err != nil {
		return err
	}
	_, err := c.store.deletePrefix("inference:")
	return err
}

// Stats reports entry counts and byte sizes grouped by key prefix
// ("inference", "graph").
type Stats struct {
	EntryCounts map[string]int
	ByteSizes   map[string]int64
}

// Stats computes Stats over the current store contents.
func (c *Coordinator) Stats() (Stats, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	counts, sizes, err := c.store.prefixStats()
	return Stats{EntryCounts: counts, ByteSizes: sizes}, err
}
