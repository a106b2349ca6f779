package pool

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/puddle/v2"
)

// SimpleBackend pools individual pgx connections through puddle, the pool
// engine pgxpool itself is built on. Compared to PgxBackend it performs no
// background health checking or recycling, which makes it the predictable
// choice for tests and for environments where an external pooler
// (e.g. PgBouncer) already manages connection lifetimes.
type SimpleBackend struct {
	mu   sync.Mutex
	pool *puddle.Pool[*pgx.Conn]
	cfg  Config
}

// NewSimple creates an unconnected puddle-based backend over single pgx
// connections.
func NewSimple(dsn string, opts ...Option) *SimpleBackend {
	return &SimpleBackend{cfg: buildConfig(dsn, opts)}
}

func (b *SimpleBackend) Connect(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pool != nil {
		return nil
	}

	connConfig, err := pgx.ParseConfig(b.cfg.DSN)
	if err != nil {
		return errors.Join(ErrPoolCreation, ErrFailedToParseConfig, err)
	}

	p, err := puddle.NewPool(&puddle.Config[*pgx.Conn]{
		Constructor: func(ctx context.Context) (*pgx.Conn, error) {
			return pgx.ConnectConfig(ctx, connConfig)
		},
		Destructor: func(conn *pgx.Conn) {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = conn.Close(closeCtx)
		},
		MaxSize: b.cfg.MaxSize,
	})
	if err != nil {
		return errors.Join(ErrPoolCreation, err)
	}

	// Warm the pool up to MinSize so the first acquisitions do not pay
	// connection setup cost, and so bad connect parameters fail here
	// rather than on first use.
	warm := b.cfg.MinSize
	if warm < 1 {
		warm = 1
	}
	for i := int32(0); i < warm; i++ {
		if err := p.CreateResource(ctx); err != nil {
			p.Close()
			return errors.Join(ErrPoolCreation, err)
		}
	}

	b.pool = p
	return nil
}

func (b *SimpleBackend) Acquire(ctx context.Context) (Connection, error) {
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

	res, err := p.Acquire(acqCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, errors.Join(ErrAcquireTimeout, err)
		}
		return nil, err
	}
	return &simpleConn{res: res}, nil
}

func (b *SimpleBackend) Release(conn Connection) error {
	sc, ok := conn.(*simpleConn)
	if !ok {
		return ErrInvalidConnection
	}

	// A connection broken mid-use must not be handed out again.
	if sc.res.Value().IsClosed() {
		sc.res.Destroy()
	} else {
		sc.res.Release()
	}

	b.mu.Lock()
	connected := b.pool != nil
	b.mu.Unlock()
	if !connected {
		return ErrNotConnected
	}
	return nil
}

func (b *SimpleBackend) Close() error {
	// Swap-then-close, as in PgxBackend: puddle's Close waits for
	// outstanding resources, and waiting while holding b.mu would stall
	// Acquire and the introspection methods behind a draining pool.
	b.mu.Lock()
	p := b.pool
	b.pool = nil
	b.mu.Unlock()
	if p != nil {
		p.Close()
	}
	return nil
}

func (b *SimpleBackend) IsConnected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pool != nil
}

func (b *SimpleBackend) HasAcquiredConnections() bool {
	b.mu.Lock()
	p := b.pool
	b.mu.Unlock()
	if p == nil {
		return false
	}
	return p.Stat().AcquiredResources() > 0
}

func (b *SimpleBackend) MinSize() int32 { return b.cfg.MinSize }
func (b *SimpleBackend) MaxSize() int32 { return b.cfg.MaxSize }

type simpleConn struct {
	res *puddle.Resource[*pgx.Conn]
}

func (c *simpleConn) Exec(ctx context.Context, sql string, args ...any) error {
	_, err := c.res.Value().Exec(ctx, sql, args...)
	return err
}

func (c *simpleConn) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	rows, err := c.res.Value().Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return pgxRows{rows}, nil
}
