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

func setupStore(t *testing.T) (*KVStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewKVStore(client), mr
}

func TestKVStore_HashAndMissingKeys(t *testing.T) {
	ctx := context.Background()
	s, _ := setupStore(t)

	require.NoError(t, s.HSet(ctx, "room:A", map[string]string{"admin_mode": "transferable", "admin_conn": "c1"}))

	v, ok, err := s.HGet(ctx, "room:A", "admin_conn")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "c1", v)

	_, ok, err = s.HGet(ctx, "room:B", "admin_conn")
	require.NoError(t, err)
	assert.False(t, ok)

	all, err := s.HGetAll(ctx, "room:B")
	require.NoError(t, err)
	assert.Empty(t, all)

	_, ok, err = s.Get(ctx, "nothing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestKVStore_SortedSet(t *testing.T) {
	ctx := context.Background()
	s, _ := setupStore(t)

	require.NoError(t, s.ZAdd(ctx, "members", 20, "c2"))
	require.NoError(t, s.ZAdd(ctx, "members", 10, "c1"))
	require.NoError(t, s.ZAdd(ctx, "members", 30, "c3"))

	members, err := s.ZRange(ctx, "members")
	require.NoError(t, err)
	assert.Equal(t, []string{"c1", "c2", "c3"}, members)

	require.NoError(t, s.ZRem(ctx, "members", "c1"))
	n, err := s.ZCard(ctx, "members")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestKVStore_ListTrim(t *testing.T) {
	ctx := context.Background()
	s, _ := setupStore(t)

	require.NoError(t, s.RPush(ctx, "history", "1", "2", "3", "4"))
	require.NoError(t, s.LTrim(ctx, "history", -2, -1))

	values, err := s.LRange(ctx, "history", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"3", "4"}, values)
}

func TestKVStore_SetNXAndExpire(t *testing.T) {
	ctx := context.Background()
	s, mr := setupStore(t)

	set, err := s.SetNX(ctx, "kicked", "1", 10*time.Second)
	require.NoError(t, err)
	assert.True(t, set)

	set, err = s.SetNX(ctx, "kicked", "1", 10*time.Second)
	require.NoError(t, err)
	assert.False(t, set)

	require.NoError(t, s.SAdd(ctx, "rooms", "A"))
	require.NoError(t, s.Expire(ctx, "rooms", 5*time.Second))

	mr.FastForward(11 * time.Second)

	_, ok, err := s.Get(ctx, "kicked")
	require.NoError(t, err)
	assert.False(t, ok)

	members, err := s.SMembers(ctx, "rooms")
	require.NoError(t, err)
	assert.Empty(t, members)
}

func TestKVStore_UnavailableServer(t *testing.T) {
	ctx := context.Background()
	s, mr := setupStore(t)

	mr.Close()

	assert.Error(t, s.Ping(ctx))
	_, err := s.HGetAll(ctx, "room:A")
	assert.Error(t, err)
}

func TestConnect_BadURL(t *testing.T) {
	_, err := Connect(context.Background(), "not-a-url", time.Second)
	assert.Error(t, err)
}
