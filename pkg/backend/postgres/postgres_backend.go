package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/erain9/orderlab/pkg/core"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// PostgresOptions represents configuration options for the Postgres connection
type PostgresOptions struct {
	URL      string
	MaxConns int32
}

const schema = `
CREATE TABLE IF NOT EXISTS desk_orders (
  desk     text    NOT NULL,
  position integer NOT NULL,
  payload  jsonb   NOT NULL,
  PRIMARY KEY (desk, position)
);`

// NewPool opens a connection pool and makes sure the orders table exists
func NewPool(ctx context.Context, options *PostgresOptions) (*pgxpool.Pool, error) {
	if options == nil || options.URL == "" {
		return nil, fmt.Errorf("%w: postgres url is empty", core.ErrInvalidArgument)
	}

	cfg, err := pgxpool.ParseConfig(options.URL)
	if err != nil {
		return nil, fmt.Errorf("parse postgres url: %w", err)
	}
	if options.MaxConns > 0 {
		cfg.MaxConns = options.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return pool, nil
}

// EnsureSchema creates the orders table when missing
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// PostgresBackend implements core.OrderBackend with one jsonb row per order,
// keyed by desk name and position
type PostgresBackend struct {
	sync.RWMutex
	pool   *pgxpool.Pool
	ctx    context.Context
	desk   string
	logger *zap.Logger
}

// NewPostgresBackend creates a new instance of PostgresBackend
func NewPostgresBackend(pool *pgxpool.Pool, desk string, logger *zap.Logger) *PostgresBackend {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostgresBackend{
		pool:   pool,
		ctx:    context.Background(),
		desk:   desk,
		logger: logger,
	}
}

// Orders loads the desk's orders by position. A storage failure or a row
// that does not decode fails the whole load.
func (b *PostgresBackend) Orders() ([]*core.Order, error) {
	b.RLock()
	defer b.RUnlock()

	rows, err := b.pool.Query(b.ctx,
		`SELECT payload FROM desk_orders WHERE desk = $1 ORDER BY position`, b.desk)
	if err != nil {
		b.logger.Error("failed to load orders", zap.String("desk", b.desk), zap.Error(err))
		return nil, fmt.Errorf("%w: load desk %s: %w", core.ErrStorage, b.desk, err)
	}
	defer rows.Close()

	orders := make([]*core.Order, 0)
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			b.logger.Error("failed to scan order", zap.String("desk", b.desk), zap.Error(err))
			return nil, fmt.Errorf("%w: scan desk %s: %w", core.ErrStorage, b.desk, err)
		}

		var order core.Order
		if err := json.Unmarshal(raw, &order); err != nil {
			b.logger.Error("failed to unmarshal order",
				zap.String("desk", b.desk),
				zap.Int("position", len(orders)+1),
				zap.Error(err))
			return nil, fmt.Errorf("%w: decode desk %s position %d: %w", core.ErrStorage, b.desk, len(orders)+1, err)
		}
		orders = append(orders, &order)
	}

	if err := rows.Err(); err != nil {
		b.logger.Error("failed to read orders", zap.String("desk", b.desk), zap.Error(err))
		return nil, fmt.Errorf("%w: read desk %s: %w", core.ErrStorage, b.desk, err)
	}

	return orders, nil
}

// Append inserts an order after the desk's last position
func (b *PostgresBackend) Append(order *core.Order) error {
	if order == nil {
		return fmt.Errorf("%w: order is nil", core.ErrInvalidArgument)
	}

	data, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("marshal order %d: %w", order.ID(), err)
	}

	b.Lock()
	defer b.Unlock()

	_, err = b.pool.Exec(b.ctx, `
INSERT INTO desk_orders(desk, position, payload)
SELECT $1::text, COALESCE(MAX(position), 0) + 1, $2::jsonb FROM desk_orders WHERE desk = $1::text`,
		b.desk, string(data))
	if err != nil {
		b.logger.Error("failed to append order",
			zap.String("desk", b.desk),
			zap.Int("orderID", order.ID()),
			zap.Error(err))
		return fmt.Errorf("%w: append order %d: %w", core.ErrStorage, order.ID(), err)
	}

	return nil
}

// Replace deletes the desk's orders and inserts the new batch in one transaction
func (b *PostgresBackend) Replace(orders []*core.Order) error {
	batch := &pgx.Batch{}
	for i, order := range orders {
		data, err := json.Marshal(order)
		if err != nil {
			return fmt.Errorf("marshal order %d: %w", order.ID(), err)
		}
		batch.Queue(`INSERT INTO desk_orders(desk, position, payload) VALUES ($1, $2, $3)`,
			b.desk, i+1, string(data))
	}

	b.Lock()
	defer b.Unlock()

	err := pgx.BeginFunc(b.ctx, b.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(b.ctx, `DELETE FROM desk_orders WHERE desk = $1`, b.desk); err != nil {
			return err
		}
		if batch.Len() == 0 {
			return nil
		}
		return tx.SendBatch(b.ctx, batch).Close()
	})
	if err != nil {
		b.logger.Error("failed to replace orders",
			zap.String("desk", b.desk),
			zap.Int("count", len(orders)),
			zap.Error(err))
		return fmt.Errorf("%w: replace desk %s: %w", core.ErrStorage, b.desk, err)
	}

	return nil
}

// Len counts the desk's orders
func (b *PostgresBackend) Len() (int, error) {
	b.RLock()
	defer b.RUnlock()

	var n int
	err := b.pool.QueryRow(b.ctx, `SELECT COUNT(*) FROM desk_orders WHERE desk = $1`, b.desk).Scan(&n)
	if err != nil {
		b.logger.Error("failed to count orders", zap.String("desk", b.desk), zap.Error(err))
		return 0, fmt.Errorf("%w: count desk %s: %w", core.ErrStorage, b.desk, err)
	}
	return n, nil
}

// Clear removes the desk's orders
func (b *PostgresBackend) Clear() error {
	b.Lock()
	defer b.Unlock()

	_, err := b.pool.Exec(b.ctx, `DELETE FROM desk_orders WHERE desk = $1`, b.desk)
	return err
}

// String implements fmt.Stringer interface
func (b *PostgresBackend) String() string {
	return fmt.Sprintf("postgres(%s)", b.desk)
}
