package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/erain9/orderlab/pkg/core"
	"github.com/erain9/orderlab/pkg/testutil"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// setupTestPool connects to ORDERLAB_POSTGRES_URL or skips the test
func setupTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	url := testutil.PostgresURLOrSkip(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := NewPool(ctx, &PostgresOptions{URL: url, MaxConns: 4})
	if err != nil {
		t.Skipf("Skipping Postgres tests: Cannot connect to Postgres (%v)", err)
	}
	t.Cleanup(pool.Close)

	return pool
}

func newOrder(t testing.TB, id int, priority core.Priority, courierID int) *core.Order {
	t.Helper()

	if courierID > 0 {
		order, err := core.NewAssignedOrder(id, priority, courierID, core.FormatStreetAddress(id))
		require.NoError(t, err)
		return order
	}

	order, err := core.NewOrder(id, priority, core.FormatStreetAddress(id))
	require.NoError(t, err)
	return order
}

func TestNewPoolRejectsEmptyURL(t *testing.T) {
	_, err := NewPool(context.Background(), &PostgresOptions{})
	assert.ErrorIs(t, err, core.ErrInvalidArgument)

	_, err = NewPool(context.Background(), nil)
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
}

func storedOrders(t testing.TB, backend *PostgresBackend) []*core.Order {
	t.Helper()
	orders, err := backend.Orders()
	require.NoError(t, err)
	return orders
}

func storedLen(t testing.TB, backend *PostgresBackend) int {
	t.Helper()
	n, err := backend.Len()
	require.NoError(t, err)
	return n
}

func TestNewPoolRejectsMalformedURL(t *testing.T) {
	_, err := NewPool(context.Background(), &PostgresOptions{URL: "postgres://%zz"})
	assert.Error(t, err)
}

func TestPostgresBackend_String(t *testing.T) {
	backend := NewPostgresBackend(nil, "alpha", nil)
	assert.Equal(t, "postgres(alpha)", backend.String())
	assert.NotNil(t, backend.logger)
}

func TestPostgresBackend_AppendReplaceOrders(t *testing.T) {
	pool := setupTestPool(t)
	backend := NewPostgresBackend(pool, "test-append", zap.NewNop())
	require.NoError(t, backend.Clear())
	t.Cleanup(func() { _ = backend.Clear() })

	require.NoError(t, backend.Append(newOrder(t, 2, core.PriorityLow, 150)))
	require.NoError(t, backend.Append(newOrder(t, 1, core.PriorityHigh, 0)))
	assert.Equal(t, 2, storedLen(t, backend))

	orders := storedOrders(t, backend)
	require.Len(t, orders, 2)
	assert.Equal(t, 2, orders[0].ID())
	assert.True(t, orders[0].AssignedTo(150))
	assert.Equal(t, 1, orders[1].ID())

	require.NoError(t, backend.Replace([]*core.Order{
		newOrder(t, 5, core.PriorityMedium, 0),
		newOrder(t, 6, core.PriorityMedium, 0),
		newOrder(t, 7, core.PriorityMedium, 0),
	}))
	orders = storedOrders(t, backend)
	require.Len(t, orders, 3)
	assert.Equal(t, 5, orders[0].ID())

	require.NoError(t, backend.Replace(nil))
	assert.Zero(t, storedLen(t, backend))
}

func TestPostgresBackend_DesksAreIsolated(t *testing.T) {
	pool := setupTestPool(t)
	a := NewPostgresBackend(pool, "test-a", zap.NewNop())
	b := NewPostgresBackend(pool, "test-b", zap.NewNop())
	t.Cleanup(func() {
		_ = a.Clear()
		_ = b.Clear()
	})

	require.NoError(t, a.Replace([]*core.Order{newOrder(t, 1, core.PriorityHigh, 0)}))
	require.NoError(t, b.Replace(nil))

	assert.Equal(t, 1, storedLen(t, a))
	assert.Zero(t, storedLen(t, b))
}

func TestPostgresBackend_CorruptRowFailsLoad(t *testing.T) {
	pool := setupTestPool(t)
	backend := NewPostgresBackend(pool, "test-corrupt", zap.NewNop())
	require.NoError(t, backend.Clear())
	t.Cleanup(func() { _ = backend.Clear() })

	require.NoError(t, backend.Append(newOrder(t, 1, core.PriorityHigh, 0)))
	_, err := pool.Exec(context.Background(),
		`INSERT INTO desk_orders(desk, position, payload) VALUES ($1, 2, '{"id":1,"priority":9}'::jsonb)`, "test-corrupt")
	require.NoError(t, err)

	orders, err := backend.Orders()
	assert.ErrorIs(t, err, core.ErrStorage)
	assert.Nil(t, orders)
}

func TestPostgresBackend_ClosedPool(t *testing.T) {
	url := testutil.PostgresURLOrSkip(t)
	pool, err := NewPool(context.Background(), &PostgresOptions{URL: url})
	if err != nil {
		t.Skipf("Skipping Postgres tests: Cannot connect to Postgres (%v)", err)
	}
	backend := NewPostgresBackend(pool, "test-closed", zap.NewNop())

	pool.Close()

	_, err = backend.Orders()
	assert.ErrorIs(t, err, core.ErrStorage)
	_, err = backend.Len()
	assert.ErrorIs(t, err, core.ErrStorage)
	assert.ErrorIs(t, backend.Append(newOrder(t, 1, core.PriorityHigh, 0)), core.ErrStorage)
}
