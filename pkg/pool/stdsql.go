package pool

import (
	"context"
	"database/sql"
	"errors"
	"sync"
)

// SQLBackend adapts the database/sql native pool to the Backend contract.
// It is dialect-agnostic; the Postgres (lib/pq) and MySQL constructors in
// postgres.go and mysql.go pick the registered driver and normalize DSN
// differences.
type SQLBackend struct {
	mu     sync.Mutex
	db     *sql.DB
	driver string
	cfg    Config
}

func newSQL(driver, dsn string, opts []Option) *SQLBackend {
	return &SQLBackend{driver: driver, cfg: buildConfig(dsn, opts)}
}

func (b *SQLBackend) Connect(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.db != nil {
		return nil
	}

	db, err := sql.Open(b.driver, b.cfg.DSN)
	if err != nil {
		return errors.Join(ErrPoolCreation, ErrFailedToParseConfig, err)
	}
	db.SetMaxOpenConns(int(b.cfg.MaxSize))
	// database/sql has no minimum-size notion; keeping MinSize idle
	// connections around is the closest equivalent.
	db.SetMaxIdleConns(int(b.cfg.MinSize))
	db.SetConnMaxLifetime(b.cfg.MaxConnLifetime)
	db.SetConnMaxIdleTime(b.cfg.MaxConnIdleTime)

	// sql.Open validates nothing; the ping is what actually reaches the
	// server and surfaces bad credentials or unreachable hosts.
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return errors.Join(ErrPoolCreation, err)
	}

	b.db = db
	return nil
}

func (b *SQLBackend) Acquire(ctx context.Context) (Connection, error) {
	if err := b.Connect(ctx); err != nil {
		return nil, err
	}

	b.mu.Lock()
	db := b.db
	b.mu.Unlock()
	if db == nil {
		return nil, ErrNotConnected
	}

	acqCtx, cancel := acquireContext(ctx, b.cfg)
	defer cancel()

	conn, err := db.Conn(acqCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, errors.Join(ErrAcquireTimeout, err)
		}
		return nil, err
	}
	return &sqlConn{conn: conn}, nil
}

func (b *SQLBackend) Release(conn Connection) error {
	sc, ok := conn.(*sqlConn)
	if !ok {
		return ErrInvalidConnection
	}

	// sql.Conn.Close returns the connection to the pool; double close
	// yields sql.ErrConnDone, which is swallowed so unwind paths stay
	// safe for other in-flight users.
	if err := sc.conn.Close(); err != nil && !errors.Is(err, sql.ErrConnDone) {
		return err
	}

	b.mu.Lock()
	connected := b.db != nil
	b.mu.Unlock()
	if !connected {
		return ErrNotConnected
	}
	return nil
}

func (b *SQLBackend) Close() error {
	// Swap-then-close, as in PgxBackend, so a draining Close never holds
	// b.mu against Release or the introspection methods.
	b.mu.Lock()
	db := b.db
	b.db = nil
	b.mu.Unlock()
	if db == nil {
		return nil
	}
	return db.Close()
}

func (b *SQLBackend) IsConnected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.db != nil
}

func (b *SQLBackend) HasAcquiredConnections() bool {
	b.mu.Lock()
	db := b.db
	b.mu.Unlock()
	if db == nil {
		return false
	}
	return db.Stats().InUse > 0
}

func (b *SQLBackend) MinSize() int32 { return b.cfg.MinSize }
func (b *SQLBackend) MaxSize() int32 { return b.cfg.MaxSize }

type sqlConn struct {
	conn *sql.Conn
}

func (c *sqlConn) Exec(ctx context.Context, query string, args ...any) error {
	_, err := c.conn.ExecContext(ctx, query, args...)
	return err
}

func (c *sqlConn) Query(ctx context.Context, query string, args ...any) (Rows, error) {
	rows, err := c.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return &sqlRows{rows: rows}, nil
}

type sqlRows struct {
	rows *sql.Rows
}

func (r *sqlRows) Next() bool             { return r.rows.Next() }
func (r *sqlRows) Scan(dest ...any) error { return r.rows.Scan(dest...) }
func (r *sqlRows) Err() error             { return r.rows.Err() }
func (r *sqlRows) Close()                 { _ = r.rows.Close() }
