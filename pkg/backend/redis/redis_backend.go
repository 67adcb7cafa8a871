package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/erain9/orderlab/pkg/core"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisOptions represents configuration options for Redis connection
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

var defaultOptions = &RedisOptions{
	Addr:     "localhost:6379",
	Password: "",
	DB:       0,
}

// NewClient creates a Redis client from options, falling back to the defaults when nil
func NewClient(options *RedisOptions) *redis.Client {
	if options == nil {
		options = defaultOptions
	}
	return redis.NewClient(&redis.Options{
		Addr:     options.Addr,
		Password: options.Password,
		DB:       options.DB,
	})
}

// RedisBackend implements core.OrderBackend by keeping the collection as a
// list of JSON encoded orders under <prefix>:orders
type RedisBackend struct {
	sync.RWMutex
	client    *redis.Client
	ctx       context.Context
	prefix    string
	ordersKey string
	logger    *zap.Logger
}

// NewRedisBackend creates a new instance of RedisBackend
func NewRedisBackend(client *redis.Client, prefix string, logger *zap.Logger) *RedisBackend {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisBackend{
		client:    client,
		ctx:       context.Background(),
		prefix:    prefix,
		ordersKey: fmt.Sprintf("%s:orders", prefix),
		logger:    logger,
	}
}

// Ping checks the connection to Redis
func (b *RedisBackend) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

// Orders loads the collection in insertion order. A storage failure or an
// entry that does not decode fails the whole load.
func (b *RedisBackend) Orders() ([]*core.Order, error) {
	b.RLock()
	defer b.RUnlock()

	values, err := b.client.LRange(b.ctx, b.ordersKey, 0, -1).Result()
	if err != nil {
		b.logger.Error("failed to load orders",
			zap.String("key", b.ordersKey),
			zap.Error(err))
		return nil, fmt.Errorf("%w: load %s: %w", core.ErrStorage, b.ordersKey, err)
	}

	orders := make([]*core.Order, 0, len(values))
	for i, value := range values {
		var order core.Order
		if err := json.Unmarshal([]byte(value), &order); err != nil {
			b.logger.Error("failed to unmarshal order",
				zap.String("key", b.ordersKey),
				zap.Int("position", i),
				zap.Error(err))
			return nil, fmt.Errorf("%w: decode %s[%d]: %w", core.ErrStorage, b.ordersKey, i, err)
		}
		orders = append(orders, &order)
	}

	return orders, nil
}

// Append pushes an order to the tail of the list
func (b *RedisBackend) Append(order *core.Order) error {
	if order == nil {
		return fmt.Errorf("%w: order is nil", core.ErrInvalidArgument)
	}

	data, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("marshal order %d: %w", order.ID(), err)
	}

	b.Lock()
	defer b.Unlock()

	if err := b.client.RPush(b.ctx, b.ordersKey, data).Err(); err != nil {
		b.logger.Error("failed to append order",
			zap.Int("orderID", order.ID()),
			zap.Error(err))
		return fmt.Errorf("%w: append order %d: %w", core.ErrStorage, order.ID(), err)
	}

	return nil
}

// Replace swaps the whole list in one transaction
func (b *RedisBackend) Replace(orders []*core.Order) error {
	values := make([]interface{}, 0, len(orders))
	for _, order := range orders {
		data, err := json.Marshal(order)
		if err != nil {
			return fmt.Errorf("marshal order %d: %w", order.ID(), err)
		}
		values = append(values, data)
	}

	b.Lock()
	defer b.Unlock()

	_, err := b.client.TxPipelined(b.ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(b.ctx, b.ordersKey)
		if len(values) > 0 {
			pipe.RPush(b.ctx, b.ordersKey, values...)
		}
		return nil
	})
	if err != nil {
		b.logger.Error("failed to replace orders",
			zap.String("key", b.ordersKey),
			zap.Int("count", len(orders)),
			zap.Error(err))
		return fmt.Errorf("%w: replace %s: %w", core.ErrStorage, b.ordersKey, err)
	}

	return nil
}

// Len returns the list length
func (b *RedisBackend) Len() (int, error) {
	b.RLock()
	defer b.RUnlock()

	n, err := b.client.LLen(b.ctx, b.ordersKey).Result()
	if err != nil {
		b.logger.Error("failed to count orders",
			zap.String("key", b.ordersKey),
			zap.Error(err))
		return 0, fmt.Errorf("%w: count %s: %w", core.ErrStorage, b.ordersKey, err)
	}
	return int(n), nil
}

// Clear removes the stored collection
func (b *RedisBackend) Clear() error {
	b.Lock()
	defer b.Unlock()
	return b.client.Del(b.ctx, b.ordersKey).Err()
}

// String implements fmt.Stringer interface
func (b *RedisBackend) String() string {
	return fmt.Sprintf("redis(%s)", b.ordersKey)
}
