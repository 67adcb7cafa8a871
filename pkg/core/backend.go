package core

// OrderBackend defines the storage of a dispatcher's order collection.
// Implementations keep orders in insertion order and report storage
// failures instead of answering with an empty collection.
type OrderBackend interface {
	// Orders returns a fresh slice holding the collection in storage order
	Orders() ([]*Order, error)
	// Append adds one order at the end of the collection
	Append(order *Order) error
	// Replace swaps the whole collection for the given orders
	Replace(orders []*Order) error
	// Len returns the collection size
	Len() (int, error)
}
