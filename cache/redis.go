package cache

import (
	"context"
	"time"

	"github.com/prismquery/planner/planlog"
	"github.com/redis/go-redis/v9"
)

// redisTier is an optional read-through accelerator for the inference
// cache entry only (the hottest, smallest key). bbolt remains
// authoritative: a Redis miss or error always falls through silently and
// never surfaces to the caller, mirroring the teacher's SetCache/GetCache
// redis.Nil handling in db/repository/redis.go.
type redisTier struct {
	client *redis.Client
}

func newRedisTier(url string) (*redisTier, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return &redisTier{client: client}, nil
}

func (r *redisTier) get(ctx context.Context, key string) ([]byte, bool) {
	if r == nil {
		return nil, false
	}
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			planlog.Logger.WithError(err).WithField("key", key).Debug("cache: redis get failed, falling through to bbolt")
		}
		return nil, false
	}
	return data, true
}

func (r *redisTier) set(ctx context.Context, key string, data []byte, ttl time.Duration) {
	if r == nil {
		return
	}
	if err := r.client.Set(ctx, key, data, ttl).Err(); err != nil {
		planlog.Logger.WithError(err).WithField("key", key).Debug("cache: redis set failed, bbolt entry still authoritative")
	}
}

func (r *redisTier) del(ctx context.Context, key string) {
	if r == nil {
		return
	}
	if err := r.client.Del(ctx, key).Err(); err != nil {
		planlog.Logger.WithError(err).WithField("key", key).Debug("cache: redis delete failed")
	}
}

func (r *redisTier) close() error {
	if r == nil {
		return nil
	}
	return r.client.Close()
}
