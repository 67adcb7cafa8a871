package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

// sliceBackend is an unsynchronized OrderBackend for package tests. err
// fails every call, readErr only Orders and Len.
type sliceBackend struct {
	orders  []*Order
	err     error
	readErr error
}

func (b *sliceBackend) fail() error {
	if b.err != nil {
		return b.err
	}
	return b.readErr
}

func (b *sliceBackend) Orders() ([]*Order, error) {
	if err := b.fail(); err != nil {
		return nil, err
	}
	return append(make([]*Order, 0, len(b.orders)), b.orders...), nil
}

func (b *sliceBackend) Append(order *Order) error {
	if b.err != nil {
		return b.err
	}
	b.orders = append(b.orders, order)
	return nil
}

func (b *sliceBackend) Replace(orders []*Order) error {
	if b.err != nil {
		return b.err
	}
	b.orders = append(make([]*Order, 0, len(orders)), orders...)
	return nil
}

func (b *sliceBackend) Len() (int, error) {
	if err := b.fail(); err != nil {
		return 0, err
	}
	return len(b.orders), nil
}

var errBackendDown = errors.New("backend down")

func newTestOrder(t testing.TB, id int, priority Priority, courierID int) *Order {
	t.Helper()

	var (
		order *Order
		err   error
	)
	if courierID > 0 {
		order, err = NewAssignedOrder(id, priority, courierID, FormatStreetAddress(1))
	} else {
		order, err = NewOrder(id, priority, FormatStreetAddress(1))
	}
	require.NoError(t, err)
	return order
}

func dispatcherOrders(t testing.TB, d *Dispatcher) []*Order {
	t.Helper()
	orders, err := d.Orders()
	require.NoError(t, err)
	return orders
}

func dispatcherLen(t testing.TB, d *Dispatcher) int {
	t.Helper()
	n, err := d.Len()
	require.NoError(t, err)
	return n
}

func ordersWithPriorities(t testing.TB, priorities ...Priority) []*Order {
	t.Helper()

	orders := make([]*Order, 0, len(priorities))
	for i, p := range priorities {
		orders = append(orders, newTestOrder(t, i+1, p, 0))
	}
	return orders
}

func ordersWithIDs(t testing.TB, ids ...int) []*Order {
	t.Helper()

	orders := make([]*Order, 0, len(ids))
	for _, id := range ids {
		orders = append(orders, newTestOrder(t, id, PriorityMedium, 0))
	}
	return orders
}

func priorities(orders []*Order) []Priority {
	out := make([]Priority, 0, len(orders))
	for _, o := range orders {
		out = append(out, o.Priority())
	}
	return out
}

func ids(orders []*Order) []int {
	out := make([]int, 0, len(orders))
	for _, o := range orders {
		out = append(out, o.ID())
	}
	return out
}

func testGenerator(t testing.TB, seed int64) *Generator {
	t.Helper()

	cfg := DefaultGeneratorConfig()
	cfg.Seed = seed
	gen, err := NewGenerator(cfg)
	require.NoError(t, err)
	return gen
}
