package txpool_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/txpool"
)

func TestAtomic_Nesting(t *testing.T) {
	t.Parallel()

	t.Run("single level issues BEGIN and COMMIT", func(t *testing.T) {
		t.Parallel()

		b := newFakeBackend()
		db := txpool.New(b)

		err := db.Atomic(context.Background(), func(ctx context.Context) error {
			return db.ExecSQL(ctx, "INSERT INTO t VALUES(1)")
		})
		require.NoError(t, err)
		require.Equal(t, []string{"BEGIN", "INSERT INTO t VALUES(1)", "COMMIT"}, b.statements())
		require.False(t, b.HasAcquiredConnections())
	})

	t.Run("depth N issues one BEGIN/COMMIT and N-1 savepoint pairs", func(t *testing.T) {
		t.Parallel()

		const depth = 4

		b := newFakeBackend()
		db := txpool.New(b)

		var run func(ctx context.Context, level int) error
		run = func(ctx context.Context, level int) error {
			return db.Atomic(ctx, func(ctx context.Context) error {
				if level < depth {
					return run(ctx, level+1)
				}
				return nil
			})
		}
		require.NoError(t, run(context.Background(), 1))

		stmts := b.statements()
		require.Equal(t, "BEGIN", stmts[0])
		require.Equal(t, "COMMIT", stmts[len(stmts)-1])

		var saves, releases int
		for _, s := range stmts {
			if strings.HasPrefix(s, "SAVEPOINT ") {
				saves++
			}
			if strings.HasPrefix(s, "RELEASE SAVEPOINT ") {
				releases++
			}
		}
		require.Equal(t, depth-1, saves)
		require.Equal(t, depth-1, releases)

		require.Equal(t, 1, b.acquires, "all levels must share one connection")
		require.False(t, b.HasAcquiredConnections())
	})

	t.Run("all levels run on the same physical connection", func(t *testing.T) {
		t.Parallel()

		b := newFakeBackend()
		db := txpool.New(b)

		err := db.Atomic(context.Background(), func(ctx context.Context) error {
			if err := db.ExecSQL(ctx, "INSERT INTO outer_t VALUES(1)"); err != nil {
				return err
			}
			return db.Atomic(ctx, func(ctx context.Context) error {
				return db.ExecSQL(ctx, "INSERT INTO inner_t VALUES(2)")
			})
		})
		require.NoError(t, err)
		require.Len(t, b.connIDs(), 1)
	})

	t.Run("sequential atomics after a nested one start fresh transactions", func(t *testing.T) {
		t.Parallel()

		b := newFakeBackend()
		db := txpool.New(b)
		ctx := context.Background()

		require.NoError(t, db.Atomic(ctx, func(ctx context.Context) error {
			return db.Atomic(ctx, func(context.Context) error { return nil })
		}))
		require.NoError(t, db.Atomic(ctx, func(context.Context) error { return nil }))

		var begins int
		for _, s := range b.statements() {
			if s == "BEGIN" {
				begins++
			}
		}
		require.Equal(t, 2, begins, "txOpened flag must reset when the outermost level exits")
	})
}

func TestAtomic_Failures(t *testing.T) {
	t.Parallel()

	t.Run("body error rolls back and propagates", func(t *testing.T) {
		t.Parallel()

		b := newFakeBackend()
		db := txpool.New(b)

		boom := errors.New("constraint violated")
		err := db.Atomic(context.Background(), func(ctx context.Context) error {
			if err := db.ExecSQL(ctx, "INSERT INTO t VALUES(1)"); err != nil {
				return err
			}
			if err := db.ExecSQL(ctx, "INSERT INTO t VALUES(2)"); err != nil {
				return err
			}
			return boom
		})
		require.ErrorIs(t, err, boom)
		require.Equal(t, []string{"BEGIN", "INSERT INTO t VALUES(1)", "INSERT INTO t VALUES(2)", "ROLLBACK"}, b.statements())
		require.False(t, b.HasAcquiredConnections())
	})

	t.Run("inner failure caught by outer rolls back only the savepoint", func(t *testing.T) {
		t.Parallel()

		b := newFakeBackend()
		db := txpool.New(b)

		boom := errors.New("inner failed")
		err := db.Atomic(context.Background(), func(ctx context.Context) error {
			// First sibling succeeds and releases its savepoint.
			if err := db.Atomic(ctx, func(ctx context.Context) error {
				return db.ExecSQL(ctx, "INSERT INTO t VALUES(1)")
			}); err != nil {
				return err
			}
			// Second sibling fails; its rollback must not undo the first.
			if err := db.Atomic(ctx, func(context.Context) error {
				return boom
			}); !errors.Is(err, boom) {
				return fmt.Errorf("expected inner error, got %w", err)
			}
			return nil
		})
		require.NoError(t, err)

		stmts := b.statements()
		require.Equal(t, "BEGIN", stmts[0])
		require.Equal(t, "COMMIT", stmts[len(stmts)-1])

		var sawRelease, sawRollbackTo bool
		for _, s := range stmts {
			if strings.HasPrefix(s, "RELEASE SAVEPOINT ") {
				sawRelease = true
			}
			if strings.HasPrefix(s, "ROLLBACK TO SAVEPOINT ") {
				sawRollbackTo = true
			}
			require.NotEqual(t, "ROLLBACK", s, "outer transaction must not roll back")
		}
		require.True(t, sawRelease)
		require.True(t, sawRollbackTo)
		require.False(t, b.HasAcquiredConnections())
	})

	t.Run("begin failure releases the connection and leaves no flag", func(t *testing.T) {
		t.Parallel()

		b := newFakeBackend()
		db := txpool.New(b)

		boom := errors.New("connection broken")
		b.execHook = func(_ int, sql string) error {
			if sql == "BEGIN" {
				return boom
			}
			return nil
		}
		require.ErrorIs(t, db.Atomic(context.Background(), func(context.Context) error {
			t.Fatal("body must not run when begin fails")
			return nil
		}), boom)
		require.False(t, b.HasAcquiredConnections())

		// Flag must not be left set: the next Atomic begins a plain
		// transaction, not a savepoint.
		b.execHook = nil
		require.NoError(t, db.Atomic(context.Background(), func(context.Context) error { return nil }))
		require.Contains(t, b.statements(), "BEGIN")
	})

	t.Run("commit failure propagates and still releases", func(t *testing.T) {
		t.Parallel()

		b := newFakeBackend()
		db := txpool.New(b)

		boom := errors.New("commit refused")
		b.execHook = func(_ int, sql string) error {
			if sql == "COMMIT" {
				return boom
			}
			return nil
		}
		err := db.Atomic(context.Background(), func(context.Context) error { return nil })
		require.ErrorIs(t, err, boom)
		require.False(t, b.HasAcquiredConnections())
	})

	t.Run("rollback failure replaces the body error", func(t *testing.T) {
		t.Parallel()

		b := newFakeBackend()
		db := txpool.New(b)

		rollbackErr := errors.New("connection lost")
		b.execHook = func(_ int, sql string) error {
			if sql == "ROLLBACK" {
				return rollbackErr
			}
			return nil
		}
		err := db.Atomic(context.Background(), func(context.Context) error {
			return errors.New("body failed")
		})
		require.ErrorIs(t, err, txpool.ErrRollbackFailed)
		require.ErrorIs(t, err, rollbackErr)
		require.False(t, b.HasAcquiredConnections())
	})

	t.Run("connection breakage mid-transaction never commits partially", func(t *testing.T) {
		t.Parallel()

		b := newFakeBackend()
		db := txpool.New(b)

		// The connection dies after the first write: every later
		// statement, the rollback attempt included, fails.
		broken := errors.New("connection reset by peer")
		var writes int
		b.execHook = func(_ int, sql string) error {
			if strings.HasPrefix(sql, "INSERT") {
				writes++
				if writes > 1 {
					return broken
				}
			}
			if sql == "ROLLBACK" || sql == "COMMIT" {
				return broken
			}
			return nil
		}

		err := db.Atomic(context.Background(), func(ctx context.Context) error {
			for i := 0; i < 3; i++ {
				if err := db.ExecSQL(ctx, fmt.Sprintf("INSERT INTO t VALUES(%d)", i)); err != nil {
					return err
				}
			}
			return nil
		})
		require.ErrorIs(t, err, txpool.ErrRollbackFailed)
		require.NotContains(t, b.statements(), "COMMIT", "no COMMIT may reach a broken connection")
		require.False(t, b.HasAcquiredConnections(), "connection must be released even when rollback fails")
	})

	t.Run("panic rolls back, releases, and re-panics", func(t *testing.T) {
		t.Parallel()

		b := newFakeBackend()
		db := txpool.New(b)

		require.PanicsWithValue(t, "boom", func() {
			_ = db.Atomic(context.Background(), func(context.Context) error {
				panic("boom")
			})
		})
		require.Equal(t, []string{"BEGIN", "ROLLBACK"}, b.statements())
		require.False(t, b.HasAcquiredConnections())
	})
}

func TestTransaction(t *testing.T) {
	t.Parallel()

	t.Run("runs a plain transaction", func(t *testing.T) {
		t.Parallel()

		b := newFakeBackend()
		db := txpool.New(b)

		err := db.Transaction(context.Background(), func(ctx context.Context) error {
			return db.ExecSQL(ctx, "INSERT INTO t VALUES(1)")
		})
		require.NoError(t, err)
		require.Equal(t, []string{"BEGIN", "INSERT INTO t VALUES(1)", "COMMIT"}, b.statements())
	})

	t.Run("nesting inside atomic is a usage error", func(t *testing.T) {
		t.Parallel()

		b := newFakeBackend()
		db := txpool.New(b)

		err := db.Atomic(context.Background(), func(ctx context.Context) error {
			return db.Transaction(ctx, func(context.Context) error {
				t.Fatal("nested transaction body must not run")
				return nil
			})
		})
		require.ErrorIs(t, err, txpool.ErrTxAlreadyOpened)
		require.False(t, b.HasAcquiredConnections())

		// The usage error must surface before any nested SQL: only the
		// outer BEGIN and its ROLLBACK may appear.
		require.Equal(t, []string{"BEGIN", "ROLLBACK"}, b.statements())
	})

	t.Run("nesting inside transaction is a usage error", func(t *testing.T) {
		t.Parallel()

		b := newFakeBackend()
		db := txpool.New(b)

		err := db.Transaction(context.Background(), func(ctx context.Context) error {
			return db.Transaction(ctx, func(context.Context) error { return nil })
		})
		require.ErrorIs(t, err, txpool.ErrTxAlreadyOpened)
		require.False(t, b.HasAcquiredConnections())
	})

	t.Run("atomic nests inside transaction via savepoint", func(t *testing.T) {
		t.Parallel()

		b := newFakeBackend()
		db := txpool.New(b)

		err := db.Transaction(context.Background(), func(ctx context.Context) error {
			return db.Atomic(ctx, func(context.Context) error { return nil })
		})
		require.NoError(t, err)

		stmts := b.statements()
		require.Len(t, stmts, 4)
		require.True(t, strings.HasPrefix(stmts[1], "SAVEPOINT "))
	})
}

func TestAtomic_Concurrency(t *testing.T) {
	t.Parallel()

	t.Run("independent chains never share a connection", func(t *testing.T) {
		t.Parallel()

		const chains = 8

		b := newFakeBackend()
		db := txpool.New(b)

		var g errgroup.Group
		for i := 0; i < chains; i++ {
			i := i
			g.Go(func() error {
				return db.Atomic(context.Background(), func(ctx context.Context) error {
					return db.ExecSQL(ctx, fmt.Sprintf("INSERT INTO t VALUES(%d)", i))
				})
			})
		}
		require.NoError(t, g.Wait())

		require.Equal(t, chains, b.acquires)
		require.Equal(t, chains, b.releases)
		require.Len(t, b.connIDs(), chains)
		require.False(t, b.HasAcquiredConnections())

		// Per connection the protocol must be untangled: exactly
		// BEGIN, one insert, COMMIT, in order.
		for _, id := range b.connIDs() {
			stmts := b.statementsFor(id)
			require.Len(t, stmts, 3)
			require.Equal(t, "BEGIN", stmts[0])
			require.True(t, strings.HasPrefix(stmts[1], "INSERT INTO t VALUES("), stmts[1])
			require.Equal(t, "COMMIT", stmts[2])
		}
	})
}
