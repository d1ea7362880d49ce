package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisTier_SetGetRoundTrip(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	tier, err := newRedisTier("redis://" + mr.Addr())
	require.NoError(t, err)
	defer tier.close()

	ctx := context.Background()
	tier.set(ctx, "inference:abc", []byte("payload"), time.Minute)

	data, hit := tier.get(ctx, "inference:abc")
	require.True(t, hit)
	assert.Equal(t, []byte("payload"), data)
}

func TestRedisTier_MissFallsThroughWithoutError(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	tier, err := newRedisTier("redis://" + mr.Addr())
	require.NoError(t, err)
	defer tier.close()

	_, hit := tier.get(context.Background(), "inference:nonexistent")
	assert.False(t, hit)
}

func TestRedisTier_NilReceiverIsANoOp(t *testing.T) {
	var tier *redisTier

	_, hit := tier.get(context.Background(), "anything")
	assert.False(t, hit)

	tier.set(context.Background(), "anything", []byte("x"), time.Minute) // must not panic
	tier.del(context.Background(), "anything")                          // must not panic
	assert.NoError(t, tier.close())
}

func TestRedisTier_Delete(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	tier, err := newRedisTier("redis://" + mr.Addr())
	require.NoError(t, err)
	defer tier.close()

	ctx := context.Background()
	tier.set(ctx, "inference:abc", []byte("payload"), time.Minute)
	tier.del(ctx, "inference:abc")

	_, hit := tier.get(ctx, "inference:abc")
	assert.False(t, hit)
}
