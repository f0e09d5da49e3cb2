package redis

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := Wrap(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = client.Close() })

	return client, mr
}

func TestClient_SetGetDelete(t *testing.T) {
	client, mr := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, "k", "v", time.Minute))

	got, err := client.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
	assert.Equal(t, time.Minute, mr.TTL("k"))

	require.NoError(t, client.Delete(ctx, "k"))

	_, err = client.Get(ctx, "k")
	assert.True(t, errors.Is(err, Nil))
}

func TestClient_ScanKeys(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	for _, key := range []string{"state:1", "state:2", "state:3", "other:1"} {
		require.NoError(t, client.Set(ctx, key, "x", 0))
	}

	keys, err := client.ScanKeys(ctx, "state:*")
	require.NoError(t, err)

	sort.Strings(keys)
	assert.Equal(t, []string{"state:1", "state:2", "state:3"}, keys)
}

func TestMetricsClient_Delegates(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()
	instrumented := NewMetricsClient(client)

	require.NoError(t, instrumented.Set(ctx, "a", "1", 0))

	got, err := instrumented.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "1", got)

	keys, err := instrumented.ScanKeys(ctx, "*")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, keys)

	require.NoError(t, instrumented.Delete(ctx, "a"))

	_, err = instrumented.Get(ctx, "a")
	assert.ErrorIs(t, err, Nil)
}
