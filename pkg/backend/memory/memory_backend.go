package memory

import (
	"fmt"
	"strings"
	"sync"

	"github.com/erain9/orderlab/pkg/core"
)

// MemoryBackend implements core.OrderBackend with an in-process slice
type MemoryBackend struct {
	sync.RWMutex
	orders []*core.Order
}

// NewMemoryBackend creates new instance of MemoryBackend
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		orders: make([]*core.Order, 0),
	}
}

// Orders returns a copy of the stored orders in insertion order
func (b *MemoryBackend) Orders() ([]*core.Order, error) {
	b.RLock()
	defer b.RUnlock()

	orders := make([]*core.Order, len(b.orders))
	copy(orders, b.orders)
	return orders, nil
}

// Append stores an order after the existing ones
func (b *MemoryBackend) Append(order *core.Order) error {
	if order == nil {
		return fmt.Errorf("%w: order is nil", core.ErrInvalidArgument)
	}

	b.Lock()
	defer b.Unlock()

	b.orders = append(b.orders, order)
	return nil
}

// Replace drops the stored orders and keeps the given ones
func (b *MemoryBackend) Replace(orders []*core.Order) error {
	replaced := make([]*core.Order, len(orders))
	copy(replaced, orders)

	b.Lock()
	defer b.Unlock()

	b.orders = replaced
	return nil
}

// Len returns the number of stored orders
func (b *MemoryBackend) Len() (int, error) {
	b.RLock()
	defer b.RUnlock()
	return len(b.orders), nil
}

// String implements fmt.Stringer interface
func (b *MemoryBackend) String() string {
	b.RLock()
	defer b.RUnlock()

	counts := make(map[core.Priority]int)
	assigned := 0
	for _, order := range b.orders {
		counts[order.Priority()]++
		if order.IsAssigned() {
			assigned++
		}
	}

	sb := strings.Builder{}
	sb.WriteString(fmt.Sprintf("orders: %d, assigned: %d", len(b.orders), assigned))
	for _, p := range []core.Priority{core.PriorityHigh, core.PriorityMedium, core.PriorityLow} {
		sb.WriteString(fmt.Sprintf("\n%s -> orders: %d", p, counts[p]))
	}

	return sb.String()
}
