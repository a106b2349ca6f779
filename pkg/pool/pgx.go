package pool

import (
	"context"
	"errors"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgxBackend adapts a pgxpool.Pool to the Backend contract. This is the
// default Postgres backend: pgxpool handles health checks, connection
// recycling, and fair acquisition ordering on its own.
type PgxBackend struct {
	mu   sync.Mutex
	pool *pgxpool.Pool
	cfg  Config
}

// NewPgx creates an unconnected pgxpool-based backend. The native pool is
// materialized lazily on the first Connect or Acquire call.
func NewPgx(dsn string, opts ...Option) *PgxBackend {
	return &PgxBackend{cfg: buildConfig(dsn, opts)}
}

func (b *PgxBackend) Connect(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pool != nil {
		return nil
	}

	pc, err := pgxpool.ParseConfig(b.cfg.DSN)
	if err != nil {
		// A parse rejection is still the driver refusing the connect
		// parameters, so it carries ErrPoolCreation too.
		return errors.Join(ErrPoolCreation, ErrFailedToParseConfig, err)
	}
	pc.MinConns = b.cfg.MinSize
	pc.MaxConns = b.cfg.MaxSize
	pc.MaxConnLifetime = b.cfg.MaxConnLifetime
	pc.MaxConnIdleTime = b.cfg.MaxConnIdleTime

	p, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return errors.Join(ErrPoolCreation, err)
	}
	// Ping catches bad credentials and unreachable hosts immediately
	// instead of on the first query.
	if err := p.Ping(ctx); err != nil {
		p.Close()
		return errors.Join(ErrPoolCreation, err)
	}

	b.pool = p
	return nil
}

func (b *PgxBackend) Acquire(ctx context.Context) (Connection, error) {
	if err := b.Connect(ctx); err != nil {
		return nil, err
	}

	b.mu.Lock()
	p := b.pool
	b.mu.Unlock()
	if p == nil {
		return nil, ErrNotConnected
	}

	acqCtx, cancel := acquireContext(ctx, b.cfg)
	defer cancel()

	conn, err := p.Acquire(acqCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, errors.Join(ErrAcquireTimeout, err)
		}
		return nil, err
	}
	return &pgxConn{conn: conn}, nil
}

func (b *PgxBackend) Release(conn Connection) error {
	pc, ok := conn.(*pgxConn)
	if !ok {
		return ErrInvalidConnection
	}

	b.mu.Lock()
	connected := b.pool != nil
	b.mu.Unlock()
	if !connected {
		// The pool was terminated while the connection was checked out;
		// pgxpool destroys the connection on release, so hand it back
		// but tell the caller the backend is gone.
		pc.conn.Release()
		return ErrNotConnected
	}

	pc.conn.Release()
	return nil
}

func (b *PgxBackend) Close() error {
	// Swap the pool out before closing: pgxpool.Close blocks until every
	// acquired connection is returned, and returns go through Release,
	// which takes b.mu. Holding the mutex across Close would deadlock
	// against any in-flight scope and stall every other method behind it.
	b.mu.Lock()
	p := b.pool
	b.pool = nil
	b.mu.Unlock()
	if p != nil {
		p.Close()
	}
	return nil
}

func (b *PgxBackend) IsConnected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pool != nil
}

func (b *PgxBackend) HasAcquiredConnections() bool {
	b.mu.Lock()
	p := b.pool
	b.mu.Unlock()
	if p == nil {
		return false
	}
	return p.Stat().AcquiredConns() > 0
}

func (b *PgxBackend) MinSize() int32 { return b.cfg.MinSize }
func (b *PgxBackend) MaxSize() int32 { return b.cfg.MaxSize }

type pgxConn struct {
	conn *pgxpool.Conn
}

func (c *pgxConn) Exec(ctx context.Context, sql string, args ...any) error {
	_, err := c.conn.Exec(ctx, sql, args...)
	return err
}

func (c *pgxConn) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	rows, err := c.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return pgxRows{rows}, nil
}

// pgxRows narrows pgx.Rows to the Rows contract.
type pgxRows struct {
	pgx.Rows
}
