package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestRedisLock_AcquireRelease(t *testing.T) {
	mr, client := newClient(t)
	ctx := context.Background()

	l := NewRedisLock(client, "jobs:expiry-sweep")
	ok, err := l.TryLock(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, l.IsHeld())
	assert.True(t, mr.Exists("jobs:expiry-sweep"))

	require.NoError(t, l.Unlock(ctx))
	assert.False(t, l.IsHeld())
	assert.False(t, mr.Exists("jobs:expiry-sweep"))
}

func TestRedisLock_SecondOwnerBlocked(t *testing.T) {
	_, client := newClient(t)
	ctx := context.Background()

	a := NewRedisLock(client, "k")
	b := NewRedisLock(client, "k")

	ok, err := a.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = b.TryLock(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	// b never held it, so releasing must not drop a's key
	require.NoError(t, b.Unlock(ctx))
	assert.True(t, a.IsHeld())

	require.NoError(t, a.Unlock(ctx))

	ok, err = b.TryLock(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, b.Unlock(ctx))
}

func TestRedisLock_ExpiresAfterTTL(t *testing.T) {
	mr, client := newClient(t)
	ctx := context.Background()

	a := NewRedisLockWithTTL(client, "k", 10*time.Second)
	b := NewRedisLockWithTTL(client, "k", 10*time.Second)

	ok, err := a.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(11 * time.Second)

	ok, err = b.TryLock(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	// a's release must leave b's ownership intact
	require.NoError(t, a.Unlock(ctx))
	assert.True(t, mr.Exists("k"))
	require.NoError(t, b.Unlock(ctx))
	assert.False(t, mr.Exists("k"))
}

func TestRedisLock_Reacquire(t *testing.T) {
	_, client := newClient(t)
	ctx := context.Background()
	l := NewRedisLock(client, "k")

	for i := 0; i < 3; i++ {
		ok, err := l.TryLock(ctx)
		require.NoError(t, err)
		require.True(t, ok)
		require.NoError(t, l.Unlock(ctx))
	}
}

func TestRedisLock_NilClient(t *testing.T) {
	ctx := context.Background()
	l := NewRedisLock(nil, "k")

	ok, err := l.TryLock(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, l.IsHeld())

	require.NoError(t, l.Unlock(ctx))
	assert.False(t, l.IsHeld())
}
