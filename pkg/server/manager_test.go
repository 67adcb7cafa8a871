package server

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/erain9/orderlab/pkg/core"
	"github.com/erain9/orderlab/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testGeneratorConfig() core.GeneratorConfig {
	cfg := core.DefaultGeneratorConfig()
	cfg.Seed = 42
	return cfg
}

func newTestManager(t *testing.T) *DeskManager {
	t.Helper()
	m := NewDeskManager(testGeneratorConfig(), zap.NewNop())
	t.Cleanup(m.Close)
	return m
}

func TestDeskManager_CreateMemoryDesk(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	info, err := m.CreateMemoryDesk(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, "alpha", info.Name)
	assert.Equal(t, BackendMemory, info.Backend)
	assert.Equal(t, 0, info.OrderCount)
	assert.False(t, info.CreatedAt.IsZero())

	_, err = m.CreateMemoryDesk(ctx, "alpha")
	assert.ErrorIs(t, err, ErrDeskExists)

	desk, got, err := m.GetDesk(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, "alpha", desk.Name())
	assert.Equal(t, info.CreatedAt, got.CreatedAt)
	assert.Equal(t, 1, m.Len())
}

func TestDeskManager_InvalidNames(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	for _, name := range []string{"", "has space", "slash/name", string(make([]byte, 65))} {
		_, err := m.CreateMemoryDesk(ctx, name)
		assert.ErrorIs(t, err, core.ErrInvalidArgument, "name %q", name)
	}
	assert.Equal(t, 0, m.Len())
}

func TestDeskManager_GetDeleteList(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	_, _, err := m.GetDesk(ctx, "missing")
	assert.ErrorIs(t, err, ErrDeskNotFound)
	assert.ErrorIs(t, m.DeleteDesk(ctx, "missing"), ErrDeskNotFound)

	for _, name := range []string{"charlie", "alpha", "bravo"} {
		_, err := m.CreateMemoryDesk(ctx, name)
		require.NoError(t, err)
	}

	desks := m.ListDesks(ctx)
	require.Len(t, desks, 3)
	assert.Equal(t, "alpha", desks[0].Name)
	assert.Equal(t, "bravo", desks[1].Name)
	assert.Equal(t, "charlie", desks[2].Name)

	require.NoError(t, m.DeleteDesk(ctx, "bravo"))
	_, _, err = m.GetDesk(ctx, "bravo")
	assert.ErrorIs(t, err, ErrDeskNotFound)
	assert.Len(t, m.ListDesks(ctx), 2)

	// a deleted name can be reused
	_, err = m.CreateMemoryDesk(ctx, "bravo")
	assert.NoError(t, err)
}

func TestDeskManager_UpdateDeskInfo(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	_, err := m.CreateMemoryDesk(ctx, "alpha")
	require.NoError(t, err)

	require.NoError(t, m.UpdateDeskInfo(ctx, "alpha", 12))
	_, info, err := m.GetDesk(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, 12, info.OrderCount)

	// returned info is a copy
	info.OrderCount = 99
	_, info, err = m.GetDesk(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, 12, info.OrderCount)

	assert.ErrorIs(t, m.UpdateDeskInfo(ctx, "missing", 1), ErrDeskNotFound)
}

func TestDeskManager_CreateDesk(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	info, err := m.CreateDesk(ctx, "plain", "", nil)
	require.NoError(t, err)
	assert.Equal(t, BackendMemory, info.Backend)

	_, err = m.CreateDesk(ctx, "other", "cassandra", nil)
	assert.ErrorIs(t, err, ErrUnsupportedBackend)

	_, err = m.CreateDesk(ctx, "pg", BackendPostgres, map[string]string{})
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
}

func TestDeskManager_CreateRedisDesk(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)
	addr := testutil.StartMiniRedis(t)

	info, err := m.CreateRedisDesk(ctx, "redis-desk", map[string]string{"addr": addr, "prefix": "test:redis-desk"})
	require.NoError(t, err)
	assert.Equal(t, BackendRedis, info.Backend)

	desk, _, err := m.GetDesk(ctx, "redis-desk")
	require.NoError(t, err)
	require.NoError(t, desk.Do(func(d *core.Dispatcher) error {
		return d.Generate(20)
	}))

	// a second desk on the same server shares the client and sees stored orders
	info, err = m.CreateRedisDesk(ctx, "redis-copy", map[string]string{"addr": addr, "prefix": "test:redis-desk"})
	require.NoError(t, err)
	assert.Equal(t, 20, info.OrderCount)
	assert.Len(t, m.redisPool, 1)

	_, err = m.CreateRedisDesk(ctx, "bad-db", map[string]string{"addr": addr, "db": "zero"})
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
}

func TestDeskManager_RedisClientPerPassword(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)
	mr := miniredis.RunT(t)
	mr.RequireAuth("secret")

	_, err := m.CreateRedisDesk(ctx, "authed", map[string]string{"addr": mr.Addr(), "password": "secret"})
	require.NoError(t, err)

	// same addr and db with the wrong password must not reuse the authed client
	_, err = m.CreateRedisDesk(ctx, "intruder", map[string]string{"addr": mr.Addr(), "password": "guess"})
	require.Error(t, err)
	assert.Equal(t, 1, m.Len())
	assert.Len(t, m.redisPool, 1)
	assert.Contains(t, m.redisPool, redisPoolKey{addr: mr.Addr(), password: "secret"})
}

func TestDeskManager_StoreDefaults(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)
	addr := testutil.StartMiniRedis(t)

	m.SetStoreDefaults(StoreDefaults{RedisAddr: addr, RedisDB: 2})
	info, err := m.CreateDesk(ctx, "from-defaults", BackendRedis, nil)
	require.NoError(t, err)
	assert.Equal(t, BackendRedis, info.Backend)
	assert.Contains(t, m.redisPool, redisPoolKey{addr: addr, db: 2})

	// an empty default keeps the previous redis address
	m.SetStoreDefaults(StoreDefaults{})
	assert.Equal(t, addr, m.defaults.RedisAddr)
}

func TestDeskManager_CreateRedisDeskUnreachable(t *testing.T) {
	m := newTestManager(t)

	_, err := m.CreateRedisDesk(context.Background(), "down", map[string]string{"addr": "127.0.0.1:1"})
	require.Error(t, err)
	assert.Equal(t, 0, m.Len())
	assert.Empty(t, m.redisPool)
}

func TestDeskManager_CreatePostgresDesk(t *testing.T) {
	url := testutil.PostgresURLOrSkip(t)
	ctx := context.Background()
	m := newTestManager(t)

	info, err := m.CreatePostgresDesk(ctx, "pg-desk", map[string]string{"url": url, "max_conns": "2"})
	require.NoError(t, err)
	assert.Equal(t, BackendPostgres, info.Backend)

	_, err = m.CreatePostgresDesk(ctx, "pg-bad", map[string]string{"url": url, "max_conns": "-1"})
	assert.ErrorIs(t, err, core.ErrInvalidArgument)

	// the shared pool keeps its limit, so a different max_conns is rejected
	_, err = m.CreatePostgresDesk(ctx, "pg-wide", map[string]string{"url": url, "max_conns": "8"})
	assert.ErrorIs(t, err, core.ErrInvalidArgument)

	info, err = m.CreatePostgresDesk(ctx, "pg-same", map[string]string{"url": url, "max_conns": "2"})
	require.NoError(t, err)
	assert.Equal(t, BackendPostgres, info.Backend)
	assert.Len(t, m.pgPool, 1)
}

func TestDeskManager_Close(t *testing.T) {
	ctx := context.Background()
	m := NewDeskManager(testGeneratorConfig(), nil)

	_, err := m.CreateMemoryDesk(ctx, "alpha")
	require.NoError(t, err)

	m.Close()
	assert.Equal(t, 0, m.Len())
	assert.Empty(t, m.ListDesks(ctx))
}

func TestDeskManager_InvalidGenerator(t *testing.T) {
	m := NewDeskManager(core.GeneratorConfig{}, nil)
	defer m.Close()

	_, err := m.CreateMemoryDesk(context.Background(), "alpha")
	assert.ErrorIs(t, err, core.ErrInvalidGenerator)
	assert.Equal(t, 0, m.Len())
}
