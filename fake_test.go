package txpool_test

import (
	"context"
	"fmt"
	"sync"

	"github.com/dmitrymomot/txpool/pkg/pool"
)

// fakeBackend records every acquire, release, and statement so tests can
// assert on the exact SQL protocol and on leak-freedom without a server.
type fakeBackend struct {
	mu        sync.Mutex
	connected bool
	acquired  int
	acquires  int
	releases  int
	nextID    int
	log       []fakeStmt
	execHook  func(connID int, sql string) error
	queryRows [][]any
}

type fakeStmt struct {
	connID int
	sql    string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{}
}

func (b *fakeBackend) Connect(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connected = true
	return nil
}

func (b *fakeBackend) Acquire(ctx context.Context) (pool.Connection, error) {
	if err := b.Connect(ctx); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	b.acquired++
	b.acquires++
	return &fakeConn{backend: b, id: b.nextID}, nil
}

func (b *fakeBackend) Release(conn pool.Connection) error {
	fc, ok := conn.(*fakeConn)
	if !ok {
		return pool.ErrInvalidConnection
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.connected {
		return pool.ErrNotConnected
	}
	if fc.released {
		return fmt.Errorf("connection %d released twice", fc.id)
	}
	fc.released = true
	b.acquired--
	b.releases++
	return nil
}

func (b *fakeBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connected = false
	return nil
}

func (b *fakeBackend) IsConnected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connected
}

func (b *fakeBackend) HasAcquiredConnections() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.acquired > 0
}

func (b *fakeBackend) MinSize() int32 { return 1 }
func (b *fakeBackend) MaxSize() int32 { return 10 }

func (b *fakeBackend) record(connID int, sql string) error {
	b.mu.Lock()
	hook := b.execHook
	b.mu.Unlock()
	if hook != nil {
		if err := hook(connID, sql); err != nil {
			return err
		}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.log = append(b.log, fakeStmt{connID: connID, sql: sql})
	return nil
}

// statements returns all recorded SQL in issue order.
func (b *fakeBackend) statements() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.log))
	for i, s := range b.log {
		out[i] = s.sql
	}
	return out
}

// statementsFor returns the SQL issued on one specific connection.
func (b *fakeBackend) statementsFor(connID int) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []string
	for _, s := range b.log {
		if s.connID == connID {
			out = append(out, s.sql)
		}
	}
	return out
}

func (b *fakeBackend) connIDs() []int {
	b.mu.Lock()
	defer b.mu.Unlock()
	seen := map[int]bool{}
	var out []int
	for _, s := range b.log {
		if !seen[s.connID] {
			seen[s.connID] = true
			out = append(out, s.connID)
		}
	}
	return out
}

type fakeConn struct {
	backend  *fakeBackend
	id       int
	released bool
}

func (c *fakeConn) Exec(_ context.Context, sql string, _ ...any) error {
	return c.backend.record(c.id, sql)
}

func (c *fakeConn) Query(_ context.Context, sql string, _ ...any) (pool.Rows, error) {
	if err := c.backend.record(c.id, sql); err != nil {
		return nil, err
	}
	c.backend.mu.Lock()
	rows := c.backend.queryRows
	c.backend.mu.Unlock()
	return &fakeRows{rows: rows, idx: -1}, nil
}

type fakeRows struct {
	rows [][]any
	idx  int
}

func (r *fakeRows) Next() bool {
	r.idx++
	return r.idx < len(r.rows)
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.rows[r.idx]
	for i, d := range dest {
		switch p := d.(type) {
		case *int:
			*p = row[i].(int)
		case *string:
			*p = row[i].(string)
		default:
			return fmt.Errorf("unsupported scan target %T", d)
		}
	}
	return nil
}

func (r *fakeRows) Err() error { return nil }
func (r *fakeRows) Close()     {}
