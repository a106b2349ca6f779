// Package pool provides a uniform contract over native database connection
// pools, one adapter per dialect.
//
// The [Backend] interface hides pool-API differences between drivers so
// higher layers (connection scoping, transaction orchestration) stay
// driver-agnostic. Four adapters ship with the package:
//
//   - [NewPgx] — pgxpool-based Postgres backend (default choice)
//   - [NewSimple] — puddle-based pool of single pgx connections, with no
//     background management; predictable under external poolers
//   - [NewPostgres] — database/sql backend over lib/pq
//   - [NewMySQL] — database/sql backend over go-sql-driver/mysql
//
// # Lifecycle
//
// Backends are created unconnected; the native pool is materialized lazily
// on first use, guarded so that concurrent first calls create exactly one
// pool. [Backend.Close] tears the pool down and resets the backend so
// Connect may be called again. Close is idempotent.
//
// # Configuration
//
// [Config] carries env tags for parsing with caarlos0/env:
//
//	DATABASE_CONN_URL           - native connection string (required)
//	DATABASE_POOL_MIN_SIZE      - minimum pool size (default: 1)
//	DATABASE_POOL_MAX_SIZE      - maximum pool size (default: 20)
//	DATABASE_ACQUIRE_TIMEOUT    - wait bound on a saturated pool (default: 10s)
//	DATABASE_MAX_CONN_LIFETIME  - connection recycle interval (default: 30m)
//	DATABASE_MAX_CONN_IDLE_TIME - idle connection lifetime (default: 10m)
//
// Programmatic configuration uses functional options:
//
//	backend := pool.NewPgx(os.Getenv("DATABASE_CONN_URL"),
//	    pool.WithMaxSize(50),
//	    pool.WithAcquireTimeout(5*time.Second),
//	)
//
// # Errors
//
//   - [ErrPoolCreation] - driver refused pool setup (malformed connection
//     string, bad credentials, unreachable host); surfaced immediately,
//     never retried
//   - [ErrFailedToParseConfig] - narrows ErrPoolCreation to the
//     malformed-connection-string case
//   - [ErrAcquireTimeout] - no connection freed up within the acquire
//     timeout; safe to retry
//   - [ErrNotConnected] - operation on a closed or never-connected backend
//
// Errors are wrapped with [errors.Join] so the driver cause stays
// inspectable.
package pool
