package txpool

import (
	"context"
	"log/slog"

	"github.com/dmitrymomot/txpool/pkg/logger"
	"github.com/dmitrymomot/txpool/pkg/pool"
)

// Database composes a pool backend, connection scoping, and transaction
// orchestration into the caller-facing surface. It is safe for concurrent
// use; each logical call chain gets its own connection for the lifetime of
// its outermost scope.
type Database struct {
	backend pool.Backend
	log     *slog.Logger
}

// New creates a Database over the given backend. The backend stays
// unconnected until Connect or the first operation that needs a
// connection.
func New(backend pool.Backend, opts ...Option) *Database {
	db := &Database{backend: backend}
	for _, opt := range opts {
		opt(db)
	}
	if db.log == nil {
		db.log = logger.NewNope()
	}
	return db
}

// Connect materializes the underlying connection pool. Idempotent.
func (db *Database) Connect(ctx context.Context) error {
	return db.backend.Connect(ctx)
}

// Close terminates the underlying pool. Idempotent; Connect may be called
// again afterwards.
func (db *Database) Close() error {
	return db.backend.Close()
}

// IsConnected reports whether the underlying pool exists.
func (db *Database) IsConnected() bool {
	return db.backend.IsConnected()
}

// Backend exposes the pool backend for introspection (pool sizes, leak
// checks in tests).
func (db *Database) Backend() pool.Backend {
	return db.backend
}

// WithConnection runs fn with the connection bound to the current scope,
// acquiring one first if this is the outermost entry. The context passed
// to fn carries the binding, so nested calls into Database reuse the same
// connection. Combine with NewTx/NewSavepoint for manual transaction
// control.
func (db *Database) WithConnection(ctx context.Context, fn func(ctx context.Context, conn pool.Connection) error) error {
	return db.withScope(ctx, func(ctx context.Context, cc *ConnContext) error {
		return fn(ctx, cc.conn)
	})
}

// ExecSQL runs one statement on the scope's connection, or on a transiently
// acquired one when called outside any scope.
func (db *Database) ExecSQL(ctx context.Context, sqlText string, args ...any) error {
	return db.withScope(ctx, func(ctx context.Context, cc *ConnContext) error {
		db.log.DebugContext(ctx, "executing sql", slog.String("sql", sqlText), slog.Int("args", len(args)))
		return cc.conn.Exec(ctx, sqlText, args...)
	})
}

// QuerySQL runs one statement and hands the resulting cursor to fetch. The
// cursor is closed when fetch returns; fetch must not retain it.
func (db *Database) QuerySQL(ctx context.Context, sqlText string, args []any, fetch func(rows pool.Rows) error) error {
	return db.withScope(ctx, func(ctx context.Context, cc *ConnContext) error {
		db.log.DebugContext(ctx, "executing sql", slog.String("sql", sqlText), slog.Int("args", len(args)))
		rows, err := cc.conn.Query(ctx, sqlText, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		if fetch != nil {
			if err := fetch(rows); err != nil {
				return err
			}
		}
		return rows.Err()
	})
}

// withScope enters the connection scope, runs fn, and guarantees the scope
// exits exactly once on every path out, panics included.
func (db *Database) withScope(ctx context.Context, fn func(ctx context.Context, cc *ConnContext) error) (err error) {
	ctx, scope, err := enterScope(ctx, db.backend)
	if err != nil {
		return err
	}
	defer func() {
		if relErr := scope.exit(); relErr != nil && err == nil {
			err = relErr
		}
	}()
	return fn(ctx, scope.cc)
}
