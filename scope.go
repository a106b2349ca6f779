package txpool

import (
	"context"
	"log/slog"

	"github.com/dmitrymomot/txpool/pkg/pool"
)

// ConnContext binds one physical connection to a logical call chain. It is
// the sole owner of the connection while alive: created by the outermost
// scope entry, destroyed (connection released, exactly once) when that
// entry exits. The txOpened flag is what tells the orchestrator whether
// the next Atomic level begins a transaction or a savepoint.
type ConnContext struct {
	conn     pool.Connection
	txOpened bool
}

// Connection exposes the bound physical connection.
func (c *ConnContext) Connection() pool.Connection {
	return c.conn
}

type scopeKey struct{}

// connContextFrom returns the ConnContext bound to this call chain, if any.
func connContextFrom(ctx context.Context) *ConnContext {
	cc, _ := ctx.Value(scopeKey{}).(*ConnContext)
	return cc
}

// connScope is one entry into the connection scope. The first entry in a
// chain acquires from the backend and owns the binding; nested entries
// reuse the bound connection and are no-ops on exit. This guarantees all
// SQL inside one outer scope runs on the same physical connection and that
// the connection is returned to the pool exactly once.
type connScope struct {
	backend pool.Backend
	cc      *ConnContext
	owned   bool
}

// enterScope returns a context carrying the chain's ConnContext and the
// scope entry tracking ownership. The caller must call exit on every
// non-error return, including panic unwinds.
func enterScope(ctx context.Context, backend pool.Backend) (context.Context, *connScope, error) {
	if cc := connContextFrom(ctx); cc != nil {
		return ctx, &connScope{backend: backend, cc: cc}, nil
	}

	conn, err := backend.Acquire(ctx)
	if err != nil {
		return ctx, nil, err
	}
	cc := &ConnContext{conn: conn}
	return context.WithValue(ctx, scopeKey{}, cc), &connScope{backend: backend, cc: cc, owned: true}, nil
}

// exit releases the connection for owning entries. Release runs regardless
// of how the scope unwinds (error, panic, cancelled context); a cancelled
// task therefore never leaks its connection, though the connection's
// transactional state may be indeterminate and is left to the backend to
// sort out on release.
func (s *connScope) exit() error {
	if !s.owned {
		return nil
	}
	return s.backend.Release(s.cc.conn)
}

// ScopeLogAttr is a logger.ContextExtractor marking log records emitted
// inside a bound connection scope.
func ScopeLogAttr(ctx context.Context) (slog.Attr, bool) {
	cc := connContextFrom(ctx)
	if cc == nil {
		return slog.Attr{}, false
	}
	return slog.Bool("in_transaction", cc.txOpened), true
}
