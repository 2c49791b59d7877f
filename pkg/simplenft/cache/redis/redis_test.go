package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, prefix string) (*Store, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewWithClient(client, Config{KeyPrefix: prefix, ScanCount: 2}), srv
}

func TestNew_RequiresURL(t *testing.T) {
	_, err := New(context.Background(), Config{})
	assert.Error(t, err)
}

func TestNew_ConnectsByURL(t *testing.T) {
	srv := miniredis.RunT(t)
	store, err := New(context.Background(), Config{URL: "redis://" + srv.Addr() + "/0"})
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Set(context.Background(), "k", []byte("v"), time.Minute))
	assert.True(t, srv.Exists("k"))
}

func TestStore_SetGetExpiry(t *testing.T) {
	ctx := context.Background()
	store, srv := newTestStore(t, "")

	require.NoError(t, store.Set(ctx, "token:A", []byte(`{"name":"A"}`), 10*time.Second))

	value, ok, err := store.Get(ctx, "token:A")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte(`{"name":"A"}`), value)
	assert.Equal(t, 10*time.Second, srv.TTL("token:A"))

	srv.FastForward(11 * time.Second)
	_, ok, err = store.Get(ctx, "token:A")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_NonPositiveTTLRemovesKey(t *testing.T) {
	ctx := context.Background()
	store, srv := newTestStore(t, "")

	require.NoError(t, store.Set(ctx, "k", []byte("1"), time.Minute))
	require.NoError(t, store.Set(ctx, "k", []byte("2"), 0))

	assert.False(t, srv.Exists("k"))
	_, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_KeysWithPrefix(t *testing.T) {
	ctx := context.Background()
	store, srv := newTestStore(t, "api:")

	for _, key := range []string{"nftThumbnail:A-1:aaaa", "nftThumbnail:A-1:bbbb", "nftThumbnail:A-1:cccc", "nftMedia:A-1"} {
		require.NoError(t, store.Set(ctx, key, []byte("true"), time.Hour))
	}
	assert.True(t, srv.Exists("api:nftMedia:A-1"))

	keys, err := store.Keys(ctx, "nftThumbnail:A-1:*")
	require.NoError(t, err)
	assert.Equal(t, []string{"nftThumbnail:A-1:aaaa", "nftThumbnail:A-1:bbbb", "nftThumbnail:A-1:cccc"}, keys)

	keys, err = store.Keys(ctx, "nftMedia:A-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"nftMedia:A-1"}, keys)

	keys, err = store.Keys(ctx, "nftMedia:B-1")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestStore_Delete(t *testing.T) {
	ctx := context.Background()
	store, srv := newTestStore(t, "")

	require.NoError(t, store.Set(ctx, "k", []byte("1"), time.Minute))
	require.NoError(t, store.Delete(ctx, "k"))
	require.NoError(t, store.Delete(ctx, "k"))
	assert.False(t, srv.Exists("k"))
}

// repeatingScan doubles every SCAN page, as a rehashing server may
type repeatingScan struct{}

func (repeatingScan) DialHook(next goredis.DialHook) goredis.DialHook {
	return next
}

func (repeatingScan) ProcessHook(next goredis.ProcessHook) goredis.ProcessHook {
	return func(ctx context.Context, cmd goredis.Cmder) error {
		err := next(ctx, cmd)
		if scan, ok := cmd.(*goredis.ScanCmd); ok && err == nil {
			page, cursor := scan.Val()
			scan.SetVal(append(page, page...), cursor)
		}
		return err
	}
}

func (repeatingScan) ProcessPipelineHook(next goredis.ProcessPipelineHook) goredis.ProcessPipelineHook {
	return next
}

func TestStore_KeysDeduplicatesScanResults(t *testing.T) {
	ctx := context.Background()
	srv := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	client.AddHook(repeatingScan{})
	store := NewWithClient(client, Config{KeyPrefix: "nft:", ScanCount: 2})

	for _, key := range []string{"nftThumbnail:A-1:aa", "nftThumbnail:A-1:bb", "nftThumbnail:A-1:cc"} {
		require.NoError(t, store.Set(ctx, key, []byte("true"), time.Minute))
	}

	keys, err := store.Keys(ctx, "nftThumbnail:A-1:*")
	require.NoError(t, err)
	assert.Equal(t, []string{"nftThumbnail:A-1:aa", "nftThumbnail:A-1:bb", "nftThumbnail:A-1:cc"}, keys)
}
