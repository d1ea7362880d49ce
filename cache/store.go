// Package cache implements the planner's two-tier persistent cache: a
// bbolt-backed content-hash keyed store of serialized graph fragments and
// schema-inference results, with an optional Redis accelerator in front of
// the hottest (inference) entry.
//
// Store generalizes the teacher's db/bolt/bolt.go wrapper (Open,
// CreateBucket, PutJSON/GetJSON) from ad hoc interface{} values to the
// four typed, schema-versioned envelope kinds this cache defines.
package cache

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"
)

const (
	bucketCache = "cache"
	bucketMeta  = "meta"
	metaVersionKey = "version"

	// currentCacheFormatVersion is the cache-format constant (distinct
	// from the per-entry SchemaVersion): a mismatch on startup clears
	// the entire cache bucket rather than risk deserializing bytes this
	// build no longer understands.
	currentCacheFormatVersion = 1
)

// Store wraps a bbolt database with two buckets: cache (content-hash keyed
// envelope bytes) and meta (a single version row).
type Store struct {
	db *bolt.DB
}

// OpenStore opens or creates a bbolt database at path, creates its buckets
// if absent, and clears the cache bucket if the stored cache-format
// version doesn't match currentCacheFormatVersion.
func OpenStore(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("cache: open bbolt database: %w", err)
	}

	s := &Store{db: db}
	if err := s.ensureFormat(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureFormat() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(bucketCache)); err != nil {
			return fmt.Errorf("cache: create bucket %s: %w", bucketCache, err)
		}
		metaB, err := tx.CreateBucketIfNotExists([]byte(bucketMeta))
		if err != nil {
			return fmt.Errorf("cache: create bucket %s: %w", bucketMeta, err)
		}

		raw := metaB.Get([]byte(metaVersionKey))
		if raw != nil {
			stored, err := strconv.Atoi(string(raw))
			if err == nil && stored == currentCacheFormatVersion {
				return nil
			}
		}

		// Absent or mismatched cache-format version: wipe the cache
		// bucket and re-stamp it, per spec.md's "meta.version row...
		// mismatch on startup clears the cache table" rule.
		if err := tx.DeleteBucket([]byte(bucketCache)); err != nil && err != bolt.ErrBucketNotFound {
			return fmt.Errorf("cache: reset bucket %s: %w", bucketCache, err)
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(bucketCache)); err != nil {
			return fmt.Errorf("cache: recreate bucket %s: %w", bucketCache, err)
		}
		return metaB.Put([]byte(metaVersionKey), []byte(strconv.Itoa(currentCacheFormatVersion)))
	})
}

// Close releases the underlying bbolt file handle.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) putRaw(key string, data []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketCache)).Put([]byte(key), data)
	})
}

func (s *Store) getRaw(key string) (data []byte, found bool, err error) {
	err = s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(bucketCache)).Get([]byte(key))
		if v == nil {
			return nil
		}
		found = true
		data = append([]byte(nil), v...)
		return nil
	})
	return data, found, err
}

func (s *Store) delete(key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketCache)).Delete([]byte(key))
	})
}

// deletePrefix removes every cache key beginning with prefix, returning
// the count removed.
func (s *Store) deletePrefix(prefix string) (int, error) {
	var removed int
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketCache))
		c := b.Cursor()
		var keys [][]byte
		for k, _ := c.Seek([]byte(prefix)); k != nil && strings.HasPrefix(string(k), prefix); k, _ = c.Next() {
			keys = append(keys, append([]byte(nil), k...))
		}
		for _, k := range keys {
			if err := b.Delete(k); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	return removed, err
}

// prefixStats counts entries and total byte sizes grouped by the key's
// prefix up to (not including) its first colon — e.g. "inference" or
// "graph" — for Coordinator.Stats.
func (s *Store) prefixStats() (counts map[string]int, sizes map[string]int64, err error) {
	counts = map[string]int{}
	sizes = map[string]int64{}
	err = s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketCache)).ForEach(func(k, v []byte) error {
			prefix := string(k)
			if idx := strings.IndexByte(prefix, ':'); idx >= 0 {
				prefix = prefix[:idx]
			}
			counts[prefix]++
			sizes[prefix] += int64(len(v))
			return nil
		})
	})
	return counts, sizes, err
}

func put[T any](s *Store, key string, compress bool, v T) error {
	data, err := encodeEnvelope(v, compress)
	if err != nil {
		return err
	}
	return s.putRaw(key, data)
}

// get reads and decodes the envelope at key. A version-mismatched or
// absent entry returns hit=false with a nil error; only storage and
// decode failures return a non-nil error.
func get[T any](s *Store, key string) (out T, hit bool, err error) {
	data, found, err := s.getRaw(key)
	if err != nil || !found {
		return out, false, err
	}
	hit, err = decodeEnvelope(data, &out)
	return out, hit, err
}
