package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/waypoint/pkg/adapters/redis"
	"github.com/aretw0/waypoint/pkg/persistence"
	"github.com/aretw0/waypoint/pkg/ports"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisStore_Contract(t *testing.T) {
	_, client := newClient(t)
	ports.RunStoreContract(t, redis.NewFromClient(client))
}

func TestRedisStore_PersisterContract(t *testing.T) {
	_, client := newClient(t)
	ports.RunPersisterContract(t, persistence.New(redis.NewFromClient(client)))
}

func TestRedisStore_PrefixAndTTL(t *testing.T) {
	mr, client := newClient(t)
	store := redis.NewFromClient(client, redis.WithPrefix("app:"), redis.WithTTL(time.Minute))
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "waypoint:flow=a", "{}"))
	assert.True(t, mr.Exists("app:waypoint:flow=a"))
	assert.Equal(t, time.Minute, mr.TTL("app:waypoint:flow=a"))

	keys, err := store.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"waypoint:flow=a"}, keys)
}

func TestRedisStore_KeysPrunesExpired(t *testing.T) {
	mr, client := newClient(t)
	store := redis.NewFromClient(client, redis.WithTTL(time.Second))
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", "v"))

	// Move redis and the index score past the expiry.
	mr.FastForward(2 * time.Second)
	require.NoError(t, client.ZAdd(ctx, redis.DefaultPrefix+"index", backend.Z{Score: 1, Member: "k"}).Err())

	keys, err := store.Keys(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)

	_, err = store.Get(ctx, "k")
	assert.Error(t, err)
}
