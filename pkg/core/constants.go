package core

import "errors"

// Errors
var (
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrInvalidID        = errors.New("invalid order id")
	ErrInvalidPriority  = errors.New("invalid priority")
	ErrInvalidCourier   = errors.New("invalid courier id")
	ErrInvalidGenerator = errors.New("invalid generator config")

	// ErrStorage wraps every failure to read or write the order collection
	ErrStorage = errors.New("order storage failure")
)

// Defaults used by the order generator
const (
	DefaultCourierProbability = 0.7
	DefaultCourierMin         = 100
	DefaultCourierMax         = 999
	DefaultStreetMin          = 1
	DefaultStreetMax          = 100
)
