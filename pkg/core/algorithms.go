package core

import (
	"cmp"
	"slices"
)

// Algorithm names a search or sort routine of the dispatcher
type Algorithm string

// Algorithms
const (
	AlgorithmGenerate      Algorithm = "GENERATE"
	AlgorithmAdd           Algorithm = "ADD"
	AlgorithmLinearSearch  Algorithm = "LINEAR_SEARCH"
	AlgorithmBinarySearch  Algorithm = "BINARY_SEARCH"
	AlgorithmBubbleSort    Algorithm = "BUBBLE_SORT"
	AlgorithmInsertionSort Algorithm = "INSERTION_SORT"
)

// Complexity returns the asymptotic step bound of the algorithm
func (a Algorithm) Complexity() string {
	switch a {
	case AlgorithmLinearSearch:
		return "O(n)"
	case AlgorithmBinarySearch:
		return "O(log n)"
	case AlgorithmBubbleSort, AlgorithmInsertionSort:
		return "O(n²)"
	default:
		return ""
	}
}

func cloneOrders(orders []*Order) []*Order {
	return append(make([]*Order, 0, len(orders)), orders...)
}

// LinearSearchByCourier scans every order once and returns the ones assigned
// to courierID in collection order. Steps always equal len(orders).
func LinearSearchByCourier(orders []*Order, courierID int) ([]*Order, int) {
	steps := 0
	results := make([]*Order, 0)

	for _, order := range orders {
		steps++
		if order.AssignedTo(courierID) {
			results = append(results, order)
		}
	}

	return results, steps
}

// SortedByID returns a copy of orders sorted ascending by id. Equal ids keep
// their collection order.
func SortedByID(orders []*Order) []*Order {
	sorted := cloneOrders(orders)
	slices.SortStableFunc(sorted, func(a, b *Order) int {
		return cmp.Compare(a.id, b.id)
	})
	return sorted
}

// BinarySearchByID sorts a copy of orders by id and runs an iterative binary
// search over it, counting one step per midpoint comparison.
func BinarySearchByID(orders []*Order, id int) (*Order, int) {
	sorted := SortedByID(orders)
	steps := 0

	low, high := 0, len(sorted)-1
	for low <= high {
		steps++
		mid := (low + high) / 2

		switch {
		case sorted[mid].id == id:
			return sorted[mid], steps
		case sorted[mid].id < id:
			low = mid + 1
		default:
			high = mid - 1
		}
	}

	return nil, steps
}

// BubbleSortByPriority sorts a copy of orders by priority with an exchange
// sort that never exits early. Steps are n*(n-1)/2.
func BubbleSortByPriority(orders []*Order) ([]*Order, int) {
	sorted := cloneOrders(orders)
	n := len(sorted)
	steps := 0

	for i := 0; i < n; i++ {
		for j := 0; j < n-i-1; j++ {
			steps++
			if sorted[j].priority > sorted[j+1].priority {
				sorted[j], sorted[j+1] = sorted[j+1], sorted[j]
			}
		}
	}

	return sorted, steps
}

// InsertionSortByPriority sorts a copy of orders by priority. One step is
// counted per shift and one per placement of the key, so an already sorted
// input costs n-1 steps.
func InsertionSortByPriority(orders []*Order) ([]*Order, int) {
	sorted := cloneOrders(orders)
	steps := 0

	for i := 1; i < len(sorted); i++ {
		key := sorted[i]
		j := i - 1

		for j >= 0 && sorted[j].priority > key.priority {
			steps++
			sorted[j+1] = sorted[j]
			j--
		}

		sorted[j+1] = key
		steps++
	}

	return sorted, steps
}
