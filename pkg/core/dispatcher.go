package core

import (
	"fmt"
)

// Dispatcher owns an order collection and runs the step-counted search and
// sort algorithms over it.
//
// A Dispatcher is meant for a single caller: the collection and the step
// counter are shared by every operation without any locking. Callers that
// serve concurrent requests must serialize access to one instance.
type Dispatcher struct {
	backend   OrderBackend
	generator *Generator
	steps     int
}

// NewDispatcher creates a Dispatcher over a backend
func NewDispatcher(backend OrderBackend, generator *Generator) *Dispatcher {
	return &Dispatcher{
		backend:   backend,
		generator: generator,
	}
}

// Generate replaces the collection with count random orders.
// A negative count fails with ErrInvalidArgument and leaves the state untouched.
func (d *Dispatcher) Generate(count int) error {
	if count < 0 {
		return fmt.Errorf("%w: count must be non-negative, got %d", ErrInvalidArgument, count)
	}
	if d.generator == nil {
		return fmt.Errorf("%w: dispatcher has no generator", ErrInvalidArgument)
	}

	orders, err := d.generator.Batch(count)
	if err != nil {
		return err
	}

	if err := d.backend.Replace(orders); err != nil {
		return fmt.Errorf("replace orders: %w", err)
	}

	d.steps = 0
	return nil
}

// Add appends an order to the collection
func (d *Dispatcher) Add(order *Order) error {
	if order == nil {
		return fmt.Errorf("%w: order is nil", ErrInvalidArgument)
	}

	if err := d.backend.Append(order); err != nil {
		return fmt.Errorf("append order %d: %w", order.ID(), err)
	}

	return nil
}

// Orders returns the collection in storage order
func (d *Dispatcher) Orders() ([]*Order, error) {
	orders, err := d.backend.Orders()
	if err != nil {
		return nil, fmt.Errorf("load orders: %w", err)
	}
	return orders, nil
}

// Len returns the collection size
func (d *Dispatcher) Len() (int, error) {
	n, err := d.backend.Len()
	if err != nil {
		return 0, fmt.Errorf("count orders: %w", err)
	}
	return n, nil
}

// Steps returns the step count of the last operation
func (d *Dispatcher) Steps() int {
	return d.steps
}

// SearchLinearByCourier returns every order assigned to courierID.
// A storage failure leaves the step count at zero.
func (d *Dispatcher) SearchLinearByCourier(courierID int) ([]*Order, int, error) {
	d.steps = 0
	orders, err := d.Orders()
	if err != nil {
		return nil, 0, err
	}
	results, steps := LinearSearchByCourier(orders, courierID)
	d.steps = steps
	return results, d.steps, nil
}

// SearchBinaryByID returns an order with the given id, or nil
func (d *Dispatcher) SearchBinaryByID(id int) (*Order, int, error) {
	d.steps = 0
	orders, err := d.Orders()
	if err != nil {
		return nil, 0, err
	}
	order, steps := BinarySearchByID(orders, id)
	d.steps = steps
	return order, d.steps, nil
}

// SortBubbleByPriority returns a bubble-sorted copy of the collection
func (d *Dispatcher) SortBubbleByPriority() ([]*Order, int, error) {
	d.steps = 0
	orders, err := d.Orders()
	if err != nil {
		return nil, 0, err
	}
	sorted, steps := BubbleSortByPriority(orders)
	d.steps = steps
	return sorted, d.steps, nil
}

// SortInsertionByPriority returns an insertion-sorted copy of the collection
func (d *Dispatcher) SortInsertionByPriority() ([]*Order, int, error) {
	d.steps = 0
	orders, err := d.Orders()
	if err != nil {
		return nil, 0, err
	}
	sorted, steps := InsertionSortByPriority(orders)
	d.steps = steps
	return sorted, d.steps, nil
}
