package pool

import (
	"context"
	"time"
)

// Rows is the cursor handed back by Connection.Query. It is the smallest
// surface shared by pgx.Rows and database/sql rows, which lets result
// extraction stay driver-agnostic.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close()
}

// Connection is a single physical connection borrowed from a Backend.
// It is owned exclusively by one logical call chain between Acquire and
// Release and must never be shared across concurrently running chains.
type Connection interface {
	Exec(ctx context.Context, sql string, args ...any) error
	Query(ctx context.Context, sql string, args ...any) (Rows, error)
}

// Backend is the uniform contract over one native connection pool.
// Implementations exist per dialect (pgxpool, a puddle-based simple pool,
// database/sql with lib/pq or go-sql-driver/mysql); differences between the
// native pool APIs are normalized behind this interface so the rest of the
// system stays driver-agnostic.
type Backend interface {
	// Connect materializes the native pool. It is idempotent: concurrent
	// callers block on the same initialization and never create a second
	// pool. Driver rejection surfaces as ErrPoolCreation.
	Connect(ctx context.Context) error

	// Acquire borrows a connection, connecting first if needed. When the
	// pool is saturated it suspends the calling goroutine until a slot
	// frees or the configured acquire timeout elapses (ErrAcquireTimeout).
	Acquire(ctx context.Context) (Connection, error)

	// Release returns a connection to the pool. Must be called exactly
	// once per successful Acquire. On a closed backend it returns
	// ErrNotConnected instead of panicking.
	Release(conn Connection) error

	// Close force-closes the native pool and resets the backend to its
	// uninitialized state; Connect may be called again afterwards.
	// Idempotent: a second call is a no-op.
	Close() error

	IsConnected() bool

	// HasAcquiredConnections reports whether at least one connection is
	// currently checked out. Callers use it to verify nothing leaked
	// after a scope exits.
	HasAcquiredConnections() bool

	MinSize() int32
	MaxSize() int32
}

// Config holds pool sizing and lifecycle parameters shared by all backends.
// Fields carry env tags for parsing with caarlos0/env in the consuming
// application; programmatic construction goes through the Option functions.
type Config struct {
	// Native connection string (postgres://... URL, lib/pq keyword/value
	// form, or a go-sql-driver/mysql DSN depending on the backend).
	DSN string `env:"DATABASE_CONN_URL,required"`

	// Pool size bounds. The max bound is what Acquire waits on.
	MinSize int32 `env:"DATABASE_POOL_MIN_SIZE" envDefault:"1"`
	MaxSize int32 `env:"DATABASE_POOL_MAX_SIZE" envDefault:"20"`

	// How long Acquire waits for a free slot when the pool is saturated.
	// Zero means wait as long as the caller's context allows.
	AcquireTimeout time.Duration `env:"DATABASE_ACQUIRE_TIMEOUT" envDefault:"10s"`

	// Connection recycle interval. Connections older than this are closed
	// and replaced instead of being handed out again; prevents stale
	// connections behind load balancers and connection poolers.
	MaxConnLifetime time.Duration `env:"DATABASE_MAX_CONN_LIFETIME" envDefault:"30m"`

	// Idle connections are dropped after this period.
	MaxConnIdleTime time.Duration `env:"DATABASE_MAX_CONN_IDLE_TIME" envDefault:"10m"`
}

func defaultConfig(dsn string) Config {
	return Config{
		DSN:             dsn,
		MinSize:         1,
		MaxSize:         20,
		AcquireTimeout:  10 * time.Second,
		MaxConnLifetime: 30 * time.Minute,
		MaxConnIdleTime: 10 * time.Minute,
	}
}

// Option overrides a Config field on backend construction.
type Option func(*Config)

// WithMinSize sets the minimum number of connections kept open.
// Default: 1
func WithMinSize(n int32) Option {
	return func(c *Config) {
		c.MinSize = n
	}
}

// WithMaxSize sets the maximum number of connections in the pool.
// Default: 20
func WithMaxSize(n int32) Option {
	return func(c *Config) {
		c.MaxSize = n
	}
}

// WithAcquireTimeout bounds how long Acquire waits on a saturated pool.
// Zero disables the backend-level bound. Default: 10s
func WithAcquireTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.AcquireTimeout = d
	}
}

// WithConnLifetime sets the connection recycle interval.
// Default: 30 minutes
func WithConnLifetime(d time.Duration) Option {
	return func(c *Config) {
		c.MaxConnLifetime = d
	}
}

// WithConnIdleTime sets how long an idle connection survives.
// Default: 10 minutes
func WithConnIdleTime(d time.Duration) Option {
	return func(c *Config) {
		c.MaxConnIdleTime = d
	}
}

func buildConfig(dsn string, opts []Option) Config {
	cfg := defaultConfig(dsn)
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// acquireContext applies the configured acquire timeout, if any.
func acquireContext(ctx context.Context, cfg Config) (context.Context, context.CancelFunc) {
	if cfg.AcquireTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, cfg.AcquireTimeout)
}
