package core

import (
	"fmt"
	"math/rand"
	"time"
)

// GeneratorConfig holds the demo constants used to build random orders
type GeneratorConfig struct {
	// CourierProbability is the chance an order is assigned to a courier
	CourierProbability float64 `yaml:"courier_probability"`
	CourierMin         int     `yaml:"courier_min"`
	CourierMax         int     `yaml:"courier_max"`
	StreetMin          int     `yaml:"street_min"`
	StreetMax          int     `yaml:"street_max"`
	// Seed makes generation reproducible. Zero seeds from the clock.
	Seed int64 `yaml:"seed"`
}

// DefaultGeneratorConfig returns the classic demo constants
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		CourierProbability: DefaultCourierProbability,
		CourierMin:         DefaultCourierMin,
		CourierMax:         DefaultCourierMax,
		StreetMin:          DefaultStreetMin,
		StreetMax:          DefaultStreetMax,
	}
}

// Validate checks ranges and probability
func (c GeneratorConfig) Validate() error {
	if c.CourierProbability < 0 || c.CourierProbability > 1 {
		return fmt.Errorf("%w: courier probability %v outside [0,1]", ErrInvalidGenerator, c.CourierProbability)
	}
	if c.CourierMin <= 0 || c.CourierMin > c.CourierMax {
		return fmt.Errorf("%w: courier range [%d,%d]", ErrInvalidGenerator, c.CourierMin, c.CourierMax)
	}
	if c.StreetMin <= 0 || c.StreetMin > c.StreetMax {
		return fmt.Errorf("%w: street range [%d,%d]", ErrInvalidGenerator, c.StreetMin, c.StreetMax)
	}
	return nil
}

// Generator builds batches of random orders. It is not safe for concurrent use.
type Generator struct {
	cfg GeneratorConfig
	rnd *rand.Rand
	now func() time.Time
}

// NewGenerator creates a generator from a validated config
func NewGenerator(cfg GeneratorConfig) (*Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	return &Generator{
		cfg: cfg,
		rnd: rand.New(rand.NewSource(seed)),
		now: time.Now,
	}, nil
}

// Config returns the generator configuration
func (g *Generator) Config() GeneratorConfig {
	return g.cfg
}

// Batch builds count orders with ids 1..count
func (g *Generator) Batch(count int) ([]*Order, error) {
	if count < 0 {
		return nil, fmt.Errorf("%w: count must be non-negative, got %d", ErrInvalidArgument, count)
	}

	orders := make([]*Order, 0, count)
	for i := 1; i <= count; i++ {
		orders = append(orders, g.next(i))
	}

	return orders, nil
}

func (g *Generator) next(id int) *Order {
	order := &Order{
		id:        id,
		priority:  Priority(1 + g.rnd.Intn(3)),
		createdAt: g.now(),
	}

	if g.rnd.Float64() < g.cfg.CourierProbability {
		order.courierID = g.between(g.cfg.CourierMin, g.cfg.CourierMax)
		order.hasCourier = true
	}

	order.address = FormatStreetAddress(g.between(g.cfg.StreetMin, g.cfg.StreetMax))
	return order
}

func (g *Generator) between(lo, hi int) int {
	return lo + g.rnd.Intn(hi-lo+1)
}
