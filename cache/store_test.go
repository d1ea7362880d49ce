package cache

import (
	"path/filepath"
	"strconv"
	"testing"

	bolt "go.etcd.io/bbolt"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixtureEnvelope struct {
	SchemaVersion int
	Value         string
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cache.db")
	s, err := OpenStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_PutGetRoundTrip(t *testing.T) {
	s := openTestStore(t)

	in := fixtureEnvelope{SchemaVersion: currentSchemaVersion, Value: "hello"}
	require.NoError(t, put(s, "inference:abc", false, in))

	out, hit, err := get[fixtureEnvelope](s, "inference:abc")
	require.NoError(t, err)
	require.True(t, hit)
	assert.Equal(t, in, out)
}

func TestStore_GetMissingKeyIsNotAnError(t *testing.T) {
	s := openTestStore(t)

	_, hit, err := get[fixtureEnvelope](s, "inference:nonexistent")
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestStore_SchemaVersionMismatchIsAMiss(t *testing.T) {
	s := openTestStore(t)

	stale := fixtureEnvelope{SchemaVersion: currentSchemaVersion + 1, Value: "stale"}
	require.NoError(t, put(s, "inference:stale", false, stale))

	_, hit, err := get[fixtureEnvelope](s, "inference:stale")
	require.NoError(t, err)
	assert.False(t, hit, "a version-mismatched entry is a miss, not an error")
}

func TestStore_CompressedRoundTrip(t *testing.T) {
	s := openTestStore(t)

	in := fixtureEnvelope{SchemaVersion: currentSchemaVersion, Value: "compress me, this is a longer string to make gzip worthwhile"}
	require.NoError(t, put(s, "inference:gz", true, in))

	out, hit, err := get[fixtureEnvelope](s, "inference:gz")
	require.NoError(t, err)
	require.True(t, hit)
	assert.Equal(t, in, out)
}

func TestStore_DeletePrefix(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, put(s, "graph:a:complete", false, fixtureEnvelope{SchemaVersion: currentSchemaVersion}))
	require.NoError(t, put(s, "graph:b:complete", false, fixtureEnvelope{SchemaVersion: currentSchemaVersion}))
	require.NoError(t, put(s, "inference:a", false, fixtureEnvelope{SchemaVersion: currentSchemaVersion}))

	removed, err := s.deletePrefix("graph:")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	_, hit, _ := get[fixtureEnvelope](s, "inference:a")
	assert.True(t, hit, "inference entries must survive a graph-prefix delete")
}

func TestStore_PrefixStats(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, put(s, "graph:a:complete", false, fixtureEnvelope{SchemaVersion: currentSchemaVersion, Value: "x"}))
	require.NoError(t, put(s, "inference:a", false, fixtureEnvelope{SchemaVersion: currentSchemaVersion, Value: "y"}))

	counts, sizes, err := s.prefixStats()
	require.NoError(t, err)
	assert.Equal(t, 1, counts["graph"])
	assert.Equal(t, 1, counts["inference"])
	assert.Greater(t, sizes["graph"], int64(0))
}

func TestOpenStore_FormatVersionMismatchClearsCache(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")

	s, err := OpenStore(path)
	require.NoError(t, err)
	require.NoError(t, put(s, "inference:a", false, fixtureEnvelope{SchemaVersion: currentSchemaVersion, Value: "x"}))
	require.NoError(t, s.Close())

	// Rewrite meta.version to simulate a cache-format bump before reopening.
	raw, err := bolt.Open(path, 0600, nil)
	require.NoError(t, err)
	require.NoError(t, raw.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketMeta)).Put([]byte(metaVersionKey), []byte(strconv.Itoa(currentCacheFormatVersion+1)))
	}))
	require.NoError(t, raw.Close())

	s2, err := OpenStore(path)
	require.NoError(t, err)
	defer s2.Close()

	_, hit, err := get[fixtureEnvelope](s2, "inference:a")
	require.NoError(t, err)
	assert.False(t, hit, "a cache-format mismatch on startup must clear the cache bucket")
}
