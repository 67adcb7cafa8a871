package core

import (
	"encoding/json"
	"fmt"
	"time"
)

// Priority represents delivery urgency of an order. Lower values sort first.
type Priority int

// Order priorities
const (
	PriorityHigh   Priority = 1
	PriorityMedium Priority = 2
	PriorityLow    Priority = 3
)

// String returns priority as string
func (p Priority) String() string {
	switch p {
	case PriorityHigh:
		return "HIGH"
	case PriorityMedium:
		return "MEDIUM"
	case PriorityLow:
		return "LOW"
	default:
		return "UNKNOWN"
	}
}

// Valid reports whether p is one of the known priorities
func (p Priority) Valid() bool {
	return p >= PriorityHigh && p <= PriorityLow
}

// Order stores information about a delivery order
type Order struct {
	id         int
	priority   Priority
	courierID  int
	hasCourier bool
	address    string
	createdAt  time.Time
}

type orderJSON struct {
	ID        int       `json:"id"`
	Priority  Priority  `json:"priority"`
	CourierID *int      `json:"courier_id"`
	Address   string    `json:"address"`
	CreatedAt time.Time `json:"created_at"`
}

// MarshalJSON implements custom JSON marshaling for Order
func (o *Order) MarshalJSON() ([]byte, error) {
	out := orderJSON{
		ID:        o.id,
		Priority:  o.priority,
		Address:   o.address,
		CreatedAt: o.createdAt,
	}
	if o.hasCourier {
		courierID := o.courierID
		out.CourierID = &courierID
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements custom JSON unmarshaling for Order. Decoded
// orders are held to the same rules as NewOrder and NewAssignedOrder.
func (o *Order) UnmarshalJSON(data []byte) error {
	var in orderJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	if err := validateOrder(in.ID, in.Priority); err != nil {
		return fmt.Errorf("order %d: %w", in.ID, err)
	}
	if in.CourierID != nil && *in.CourierID <= 0 {
		return fmt.Errorf("order %d: %w", in.ID, ErrInvalidCourier)
	}

	o.id = in.ID
	o.priority = in.Priority
	o.address = in.Address
	o.createdAt = in.CreatedAt
	o.courierID = 0
	o.hasCourier = false
	if in.CourierID != nil {
		o.courierID = *in.CourierID
		o.hasCourier = true
	}

	return nil
}

// NewOrder creates an order not yet assigned to a courier
func NewOrder(id int, priority Priority, address string) (*Order, error) {
	if err := validateOrder(id, priority); err != nil {
		return nil, err
	}

	return &Order{
		id:        id,
		priority:  priority,
		address:   address,
		createdAt: time.Now(),
	}, nil
}

// NewAssignedOrder creates an order assigned to the given courier
func NewAssignedOrder(id int, priority Priority, courierID int, address string) (*Order, error) {
	if err := validateOrder(id, priority); err != nil {
		return nil, err
	}

	if courierID <= 0 {
		return nil, ErrInvalidCourier
	}

	return &Order{
		id:         id,
		priority:   priority,
		courierID:  courierID,
		hasCourier: true,
		address:    address,
		createdAt:  time.Now(),
	}, nil
}

func validateOrder(id int, priority Priority) error {
	if id <= 0 {
		return ErrInvalidID
	}
	if !priority.Valid() {
		return ErrInvalidPriority
	}
	return nil
}

// ID returns order id
func (o *Order) ID() int {
	return o.id
}

// Priority returns priority of the order
func (o *Order) Priority() Priority {
	return o.priority
}

// CourierID returns the assigned courier and whether one is assigned
func (o *Order) CourierID() (int, bool) {
	return o.courierID, o.hasCourier
}

// IsAssigned returns true if a courier is assigned to the order
func (o *Order) IsAssigned() bool {
	return o.hasCourier
}

// AssignedTo reports whether the order is assigned to courierID.
// An unassigned order never matches.
func (o *Order) AssignedTo(courierID int) bool {
	return o.hasCourier && o.courierID == courierID
}

// Address returns the address label
func (o *Order) Address() string {
	return o.address
}

// CreatedAt returns construction time
func (o *Order) CreatedAt() time.Time {
	return o.createdAt
}

// String implements Stringer interface
func (o *Order) String() string {
	courier := "none"
	if o.hasCourier {
		courier = fmt.Sprintf("%d", o.courierID)
	}
	return fmt.Sprintf("Order %d - Priority: %d - Courier: %s", o.id, o.priority, courier)
}
