package server

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/erain9/orderlab/pkg/backend/memory"
	"github.com/erain9/orderlab/pkg/backend/postgres"
	"github.com/erain9/orderlab/pkg/backend/redis"
	"github.com/erain9/orderlab/pkg/core"
	"github.com/erain9/orderlab/pkg/logging"
	"github.com/erain9/orderlab/pkg/metrics"
	"github.com/jackc/pgx/v5/pgxpool"
	redisClient "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.uber.org/zap"
)

var (
	// ErrDeskExists is returned when trying to create a desk that already exists
	ErrDeskExists = errors.New("desk with this name already exists")

	// ErrDeskNotFound is returned when trying to access a non-existent desk
	ErrDeskNotFound = errors.New("desk not found")

	// ErrUnsupportedBackend is returned for an unknown storage backend name
	ErrUnsupportedBackend = errors.New("unsupported backend")
)

// Storage backends of a desk
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

var deskNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// DeskInfo contains metadata about a desk
type DeskInfo struct {
	Name       string    `json:"name"`
	Backend    string    `json:"backend"`
	CreatedAt  time.Time `json:"created_at"`
	OrderCount int       `json:"order_count"`
}

// Desk is a named dispatcher together with the lock that serializes its
// operations
type Desk struct {
	mu         sync.Mutex
	name       string
	backend    core.OrderBackend
	dispatcher *core.Dispatcher
}

// Name returns the desk name
func (d *Desk) Name() string {
	return d.name
}

// Do runs fn with exclusive access to the desk's dispatcher
func (d *Desk) Do(fn func(*core.Dispatcher) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return fn(d.dispatcher)
}

// StoreDefaults fills connection options a create request leaves out
type StoreDefaults struct {
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	PostgresURL      string
	PostgresMaxConns int32
}

// redisPoolKey identifies a shared Redis client. The password is part of
// the key so desks with different credentials never share a connection.
type redisPoolKey struct {
	addr     string
	db       int
	password string
}

// DeskManager manages multiple desks
type DeskManager struct {
	mu        sync.RWMutex
	desks     map[string]*Desk
	info      map[string]*DeskInfo
	redisPool map[redisPoolKey]*redisClient.Client
	pgPool    map[string]*pgxpool.Pool
	generator core.GeneratorConfig
	defaults  StoreDefaults
	storeLog  *zap.Logger
}

// NewDeskManager creates a new DeskManager. Every desk gets its own
// generator built from generator; storeLog receives storage adapter errors.
func NewDeskManager(generator core.GeneratorConfig, storeLog *zap.Logger) *DeskManager {
	if storeLog == nil {
		storeLog = zap.NewNop()
	}
	return &DeskManager{
		desks:     make(map[string]*Desk),
		info:      make(map[string]*DeskInfo),
		redisPool: make(map[redisPoolKey]*redisClient.Client),
		pgPool:    make(map[string]*pgxpool.Pool),
		generator: generator,
		defaults:  StoreDefaults{RedisAddr: "localhost:6379"},
		storeLog:  storeLog,
	}
}

// SetStoreDefaults replaces the connection defaults used by later creates
func (m *DeskManager) SetStoreDefaults(defaults StoreDefaults) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if defaults.RedisAddr == "" {
		defaults.RedisAddr = m.defaults.RedisAddr
	}
	m.defaults = defaults
}

func validateDeskName(name string) error {
	if !deskNamePattern.MatchString(name) {
		return fmt.Errorf("%w: desk name %q must be 1-64 letters, digits, '-' or '_'", core.ErrInvalidArgument, name)
	}
	return nil
}

// register stores a desk under m.mu, which the caller must hold
func (m *DeskManager) register(name, backendName string, backend core.OrderBackend) (*DeskInfo, error) {
	gen, err := core.NewGenerator(m.generator)
	if err != nil {
		return nil, err
	}

	count, err := backend.Len()
	if err != nil {
		return nil, err
	}

	m.desks[name] = &Desk{
		name:       name,
		backend:    backend,
		dispatcher: core.NewDispatcher(backend, gen),
	}

	info := &DeskInfo{
		Name:       name,
		Backend:    backendName,
		CreatedAt:  time.Now(),
		OrderCount: count,
	}
	m.info[name] = info

	metrics.Desks.Set(float64(len(m.desks)))
	metrics.DeskOrders.WithLabelValues(name).Set(float64(info.OrderCount))

	return info, nil
}

func (m *DeskManager) checkNew(logger zerolog.Logger, name string) error {
	if err := validateDeskName(name); err != nil {
		return err
	}
	if _, exists := m.desks[name]; exists {
		logger.Error().Msg("Desk already exists")
		return ErrDeskExists
	}
	return nil
}

// CreateMemoryDesk creates a new desk with in-memory backend
func (m *DeskManager) CreateMemoryDesk(ctx context.Context, name string) (*DeskInfo, error) {
	logger := logging.FromContext(ctx).With().Str("desk", name).Logger()

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkNew(logger, name); err != nil {
		return nil, err
	}

	info, err := m.register(name, BackendMemory, memory.NewMemoryBackend())
	if err != nil {
		return nil, err
	}

	logger.Info().Str("backend", BackendMemory).Msg("Created new memory desk")
	return info, nil
}

// CreateRedisDesk creates a new desk with Redis backend. Recognized options
// are addr, password, db and prefix; clients are shared per addr, db and
// password.
func (m *DeskManager) CreateRedisDesk(ctx context.Context, name string, options map[string]string) (*DeskInfo, error) {
	logger := logging.FromContext(ctx).With().Str("desk", name).Logger()

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkNew(logger, name); err != nil {
		return nil, err
	}

	addr := m.defaults.RedisAddr
	password := m.defaults.RedisPassword
	db := m.defaults.RedisDB
	prefix := "orderlab:" + name

	if val, ok := options["addr"]; ok && val != "" {
		addr = val
	}
	if val, ok := options["password"]; ok {
		password = val
	}
	if val, ok := options["db"]; ok && val != "" {
		parsed, err := strconv.Atoi(val)
		if err != nil || parsed < 0 {
			return nil, fmt.Errorf("%w: redis db %q", core.ErrInvalidArgument, val)
		}
		db = parsed
	}
	if val, ok := options["prefix"]; ok && val != "" {
		prefix = val
	}

	redisKey := redisPoolKey{addr: addr, db: db, password: password}

	client, exists := m.redisPool[redisKey]
	if !exists {
		client = redis.NewClient(&redis.RedisOptions{
			Addr:     addr,
			Password: password,
			DB:       db,
		})

		if _, err := client.Ping(ctx).Result(); err != nil {
			logger.Error().Err(err).Msg("Failed to connect to Redis")
			_ = client.Close()
			return nil, fmt.Errorf("connect redis %s: %w", addr, err)
		}

		m.redisPool[redisKey] = client
	}

	info, err := m.register(name, BackendRedis, redis.NewRedisBackend(client, prefix, m.storeLog))
	if err != nil {
		return nil, err
	}

	logger.Info().
		Str("backend", BackendRedis).
		Str("addr", addr).
		Int("db", db).
		Str("prefix", prefix).
		Msg("Created new Redis desk")
	return info, nil
}

// CreatePostgresDesk creates a new desk with Postgres backend. Recognized
// options are url and max_conns; pools are shared per url, and a max_conns
// that differs from an existing pool's limit is rejected.
func (m *DeskManager) CreatePostgresDesk(ctx context.Context, name string, options map[string]string) (*DeskInfo, error) {
	logger := logging.FromContext(ctx).With().Str("desk", name).Logger()

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkNew(logger, name); err != nil {
		return nil, err
	}

	url := options["url"]
	if url == "" {
		url = m.defaults.PostgresURL
	}
	if url == "" {
		return nil, fmt.Errorf("%w: postgres desk needs a url option", core.ErrInvalidArgument)
	}

	var maxConns int32
	if val := options["max_conns"]; val != "" {
		n, err := strconv.ParseInt(val, 10, 32)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("%w: max_conns %q", core.ErrInvalidArgument, val)
		}
		maxConns = int32(n)
	}

	pool, exists := m.pgPool[url]
	if exists && maxConns > 0 && maxConns != pool.Config().MaxConns {
		return nil, fmt.Errorf("%w: max_conns %d conflicts with the shared pool limit of %d",
			core.ErrInvalidArgument, maxConns, pool.Config().MaxConns)
	}
	if !exists {
		opts := &postgres.PostgresOptions{URL: url, MaxConns: m.defaults.PostgresMaxConns}
		if maxConns > 0 {
			opts.MaxConns = maxConns
		}

		var err error
		pool, err = postgres.NewPool(ctx, opts)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to connect to Postgres")
			return nil, err
		}
		m.pgPool[url] = pool
	}

	info, err := m.register(name, BackendPostgres, postgres.NewPostgresBackend(pool, name, m.storeLog))
	if err != nil {
		return nil, err
	}

	logger.Info().Str("backend", BackendPostgres).Msg("Created new Postgres desk")
	return info, nil
}

// CreateDesk creates a desk on the named backend. An empty backend means memory.
func (m *DeskManager) CreateDesk(ctx context.Context, name, backend string, options map[string]string) (*DeskInfo, error) {
	switch backend {
	case "", BackendMemory:
		return m.CreateMemoryDesk(ctx, name)
	case BackendRedis:
		return m.CreateRedisDesk(ctx, name, options)
	case BackendPostgres:
		return m.CreatePostgresDesk(ctx, name, options)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedBackend, backend)
	}
}

// GetDesk retrieves a desk by name
func (m *DeskManager) GetDesk(ctx context.Context, name string) (*Desk, *DeskInfo, error) {
	logger := logging.FromContext(ctx).With().Str("desk", name).Logger()

	m.mu.RLock()
	defer m.mu.RUnlock()

	desk, exists := m.desks[name]
	if !exists {
		logger.Debug().Msg("Desk not found")
		return nil, nil, ErrDeskNotFound
	}

	info := *m.info[name]
	return desk, &info, nil
}

// DeleteDesk removes a desk. Orders kept by Redis or Postgres stay in storage
// and are picked up again by a desk created with the same prefix or name.
func (m *DeskManager) DeleteDesk(ctx context.Context, name string) error {
	logger := logging.FromContext(ctx).With().Str("desk", name).Logger()

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.desks[name]; !exists {
		logger.Debug().Msg("Desk not found")
		return ErrDeskNotFound
	}

	delete(m.desks, name)
	delete(m.info, name)

	metrics.Desks.Set(float64(len(m.desks)))
	metrics.ForgetDesk(name)

	logger.Info().Msg("Deleted desk")
	return nil
}

// ListDesks returns information about all desks sorted by name
func (m *DeskManager) ListDesks(ctx context.Context) []*DeskInfo {
	logger := logging.FromContext(ctx)

	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*DeskInfo, 0, len(m.info))
	for _, info := range m.info {
		copied := *info
		result = append(result, &copied)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})

	logger.Debug().Int("count", len(result)).Msg("Listed desks")
	return result
}

// UpdateDeskInfo updates the order count for a desk
func (m *DeskManager) UpdateDeskInfo(ctx context.Context, name string, orderCount int) error {
	logger := logging.FromContext(ctx).With().Str("desk", name).Logger()

	m.mu.Lock()
	defer m.mu.Unlock()

	info, exists := m.info[name]
	if !exists {
		logger.Debug().Msg("Desk not found")
		return ErrDeskNotFound
	}

	info.OrderCount = orderCount
	metrics.DeskOrders.WithLabelValues(name).Set(float64(orderCount))
	return nil
}

// Len returns the number of desks
func (m *DeskManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.desks)
}

// Close closes all resources used by the manager
func (m *DeskManager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, client := range m.redisPool {
		_ = client.Close()
	}
	for _, pool := range m.pgPool {
		pool.Close()
	}

	m.desks = make(map[string]*Desk)
	m.info = make(map[string]*DeskInfo)
	m.redisPool = make(map[redisPoolKey]*redisClient.Client)
	m.pgPool = make(map[string]*pgxpool.Pool)
	metrics.Desks.Set(0)
}

// LogDeskSummary logs summary information about a desk
func LogDeskSummary(logger zerolog.Logger, info *DeskInfo) {
	logger.Info().
		Str("name", info.Name).
		Str("backend", info.Backend).
		Time("created_at", info.CreatedAt).
		Int("order_count", info.OrderCount).
		Msg("Desk summary")
}
