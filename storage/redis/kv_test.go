package redisrepos

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/schoolconnect/core"
	"github.com/trezcool/schoolconnect/core/user"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *KVStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := NewClient(context.Background(), core.StorageConfig{RedisAddr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return mr, NewKVStore(client, "schoolconnect:")
}

func TestKVStore(t *testing.T) {
	ctx := context.Background()
	mr, kv := setupTestRedis(t)
	require.NoError(t, mr.Set("other-app:key", "untouched"))

	_, err := kv.Get(ctx, "deviceKey")
	assert.Equal(t, user.ErrKeyNotFound, err)

	require.NoError(t, kv.Set(ctx, "deviceKey", []byte("abc")))
	require.NoError(t, kv.Set(ctx, "cv123_contentData", []byte(`{"page":1}`)))
	got, err := kv.Get(ctx, "deviceKey")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), got)

	raw, err := mr.Get("schoolconnect:deviceKey")
	require.NoError(t, err)
	assert.Equal(t, "abc", raw, "keys live under the prefix")

	keys, err := kv.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"cv123_contentData", "deviceKey"}, keys)

	require.NoError(t, kv.Delete(ctx, "deviceKey"))
	require.NoError(t, kv.Delete(ctx, "deviceKey"), "deleting a missing key is fine")
	keys, err = kv.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"cv123_contentData"}, keys)

	require.NoError(t, kv.Clear(ctx))
	keys, err = kv.Keys(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)
	assert.True(t, mr.Exists("other-app:key"), "clear only touches the prefix")
}

func TestKVStore_unreachable(t *testing.T) {
	mr, kv := setupTestRedis(t)
	mr.Close()

	_, err := kv.Get(context.Background(), "deviceKey")
	require.Error(t, err)
	assert.NotEqual(t, user.ErrKeyNotFound, err)
}

func TestNewClient_unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewClient(context.Background(), core.StorageConfig{RedisAddr: addr})
	assert.Error(t, err)
}

func TestEscapeGlob(t *testing.T) {
	assert.Equal(t, `app\*:\[x\]`, escapeGlob("app*:[x]"))
}
