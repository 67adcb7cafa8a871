package core

import (
	"encoding/json"
	"fmt"
)

// Outcome contains the result of one dispatcher operation
type Outcome struct {
	// Algorithm that produced the outcome
	Algorithm Algorithm
	// Orders returned by linear search or by a sort
	Orders []*Order
	// Order found by binary search, nil when absent
	Order *Order
	// Steps counted by the algorithm
	Steps int
	// Collection size the algorithm ran over
	Collection int
}

// Found reports whether a binary search outcome holds an order
func (o *Outcome) Found() bool {
	return o.Order != nil
}

// Matches returns the number of orders in the outcome
func (o *Outcome) Matches() int {
	if o.Algorithm == AlgorithmBinarySearch {
		if o.Order != nil {
			return 1
		}
		return 0
	}
	return len(o.Orders)
}

// Preview returns at most n leading orders of the outcome
func (o *Outcome) Preview(n int) []*Order {
	if n < 0 || n >= len(o.Orders) {
		return o.Orders
	}
	return o.Orders[:n]
}

// MarshalJSON implements Marshaler interface
func (o *Outcome) MarshalJSON() ([]byte, error) {
	customStruct := struct {
		Algorithm  Algorithm `json:"algorithm"`
		Complexity string    `json:"complexity,omitempty"`
		Orders     []*Order  `json:"orders,omitempty"`
		Order      *Order    `json:"order,omitempty"`
		Steps      int       `json:"steps"`
		Collection int       `json:"collection"`
	}{
		Algorithm:  o.Algorithm,
		Complexity: o.Algorithm.Complexity(),
		Orders:     o.Orders,
		Order:      o.Order,
		Steps:      o.Steps,
		Collection: o.Collection,
	}
	return json.Marshal(customStruct)
}

// Run executes the search or sort named by algorithm. arg is the courier id
// for linear search and the order id for binary search; sorts ignore it.
// The collection is loaded once, so Collection always matches the input the
// algorithm counted its steps over.
func (d *Dispatcher) Run(algorithm Algorithm, arg int) (*Outcome, error) {
	switch algorithm {
	case AlgorithmLinearSearch, AlgorithmBinarySearch, AlgorithmBubbleSort, AlgorithmInsertionSort:
	default:
		return nil, fmt.Errorf("%w: unknown algorithm %q", ErrInvalidArgument, algorithm)
	}

	d.steps = 0
	orders, err := d.Orders()
	if err != nil {
		return nil, err
	}

	out := &Outcome{Algorithm: algorithm, Collection: len(orders)}
	switch algorithm {
	case AlgorithmLinearSearch:
		out.Orders, out.Steps = LinearSearchByCourier(orders, arg)
	case AlgorithmBinarySearch:
		out.Order, out.Steps = BinarySearchByID(orders, arg)
	case AlgorithmBubbleSort:
		out.Orders, out.Steps = BubbleSortByPriority(orders)
	case AlgorithmInsertionSort:
		out.Orders, out.Steps = InsertionSortByPriority(orders)
	}

	d.steps = out.Steps
	return out, nil
}

// ParseAlgorithm maps a user supplied name onto an Algorithm
func ParseAlgorithm(name string) (Algorithm, error) {
	switch name {
	case "linear", "LINEAR_SEARCH":
		return AlgorithmLinearSearch, nil
	case "binary", "BINARY_SEARCH":
		return AlgorithmBinarySearch, nil
	case "bubble", "BUBBLE_SORT":
		return AlgorithmBubbleSort, nil
	case "insertion", "INSERTION_SORT":
		return AlgorithmInsertionSort, nil
	default:
		return "", fmt.Errorf("%w: unknown algorithm %q", ErrInvalidArgument, name)
	}
}
