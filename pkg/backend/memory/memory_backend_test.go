package memory

import (
	"sync"
	"testing"

	"github.com/erain9/orderlab/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

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

func storedOrders(t testing.TB, backend *MemoryBackend) []*core.Order {
	t.Helper()
	orders, err := backend.Orders()
	require.NoError(t, err)
	return orders
}

func storedLen(t testing.TB, backend *MemoryBackend) int {
	t.Helper()
	n, err := backend.Len()
	require.NoError(t, err)
	return n
}

func TestNewMemoryBackend(t *testing.T) {
	backend := NewMemoryBackend()
	assert.NotNil(t, backend)
	assert.NotNil(t, storedOrders(t, backend))
	assert.Zero(t, storedLen(t, backend))
}

func TestMemoryBackend_AppendKeepsOrder(t *testing.T) {
	backend := NewMemoryBackend()

	for _, id := range []int{3, 1, 2, 1} {
		require.NoError(t, backend.Append(newOrder(t, id, core.PriorityHigh, 0)))
	}

	orders := storedOrders(t, backend)
	require.Len(t, orders, 4)
	for i, want := range []int{3, 1, 2, 1} {
		assert.Equal(t, want, orders[i].ID())
	}

	assert.ErrorIs(t, backend.Append(nil), core.ErrInvalidArgument)
	assert.Equal(t, 4, storedLen(t, backend))
}

func TestMemoryBackend_Replace(t *testing.T) {
	backend := NewMemoryBackend()
	require.NoError(t, backend.Append(newOrder(t, 99, core.PriorityLow, 0)))

	batch := []*core.Order{
		newOrder(t, 1, core.PriorityHigh, 150),
		newOrder(t, 2, core.PriorityMedium, 0),
	}
	require.NoError(t, backend.Replace(batch))
	assert.Equal(t, 2, storedLen(t, backend))

	// mutating the caller's slice must not leak into the backend
	batch[0] = newOrder(t, 42, core.PriorityLow, 0)
	assert.Equal(t, 1, storedOrders(t, backend)[0].ID())

	require.NoError(t, backend.Replace(nil))
	assert.Zero(t, storedLen(t, backend))
	assert.NotNil(t, storedOrders(t, backend))
}

func TestMemoryBackend_OrdersReturnsCopy(t *testing.T) {
	backend := NewMemoryBackend()
	require.NoError(t, backend.Append(newOrder(t, 1, core.PriorityHigh, 0)))

	orders := storedOrders(t, backend)
	orders[0] = nil

	assert.NotNil(t, storedOrders(t, backend)[0])
}

func TestMemoryBackend_String(t *testing.T) {
	backend := NewMemoryBackend()
	require.NoError(t, backend.Append(newOrder(t, 1, core.PriorityHigh, 150)))
	require.NoError(t, backend.Append(newOrder(t, 2, core.PriorityLow, 0)))

	out := backend.String()
	assert.Contains(t, out, "orders: 2, assigned: 1")
	assert.Contains(t, out, "HIGH -> orders: 1")
	assert.Contains(t, out, "MEDIUM -> orders: 0")
	assert.Contains(t, out, "LOW -> orders: 1")
}

func TestMemoryBackend_ConcurrentAppend(t *testing.T) {
	backend := NewMemoryBackend()

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 1; i <= 50; i++ {
				order, err := core.NewOrder(w*100+i, core.PriorityMedium, "Street 1")
				if err == nil {
					_ = backend.Append(order)
				}
				_, _ = backend.Orders()
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, 400, storedLen(t, backend))
}

func TestMemoryBackend_WithDispatcher(t *testing.T) {
	cfg := core.DefaultGeneratorConfig()
	cfg.Seed = 1
	gen, err := core.NewGenerator(cfg)
	require.NoError(t, err)

	dispatcher := core.NewDispatcher(NewMemoryBackend(), gen)
	require.NoError(t, dispatcher.Generate(100))

	_, steps, err := dispatcher.SearchLinearByCourier(150)
	require.NoError(t, err)
	assert.Equal(t, 100, steps)

	_, steps, err = dispatcher.SortBubbleByPriority()
	require.NoError(t, err)
	assert.Equal(t, 4950, steps)
}
