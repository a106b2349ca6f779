// Package txpool provides pooled database access with nested-transaction
// semantics over interchangeable pool backends.
//
// A [Database] ties three pieces together: a [pool.Backend] adapting one
// native connection pool (pgxpool, a puddle-based simple pool, or
// database/sql with lib/pq or go-sql-driver/mysql), a connection scope that
// binds one physical connection to a logical call chain, and a transaction
// orchestrator that nests via savepoints.
//
// # Connection scoping
//
// The first operation in a call chain acquires a connection and binds it to
// the context it hands to the callback; every nested operation on that
// context reuses the same connection instead of going back to the pool.
// When the outermost scope exits the connection is released exactly once,
// whether the body returned, failed, or panicked. This is what makes
// savepoints work and keeps transaction visibility consistent across
// nested calls.
//
// # Atomic blocks
//
// [Database.Atomic] opens a transaction, or a savepoint when one is
// already open in the scope, so business logic composes without caring
// about nesting depth:
//
//	backend := pool.NewPgx(os.Getenv("DATABASE_CONN_URL"))
//	db := txpool.New(backend)
//
//	err := db.Atomic(ctx, func(ctx context.Context) error {
//	    if err := db.ExecSQL(ctx, "INSERT INTO accounts(name) VALUES($1)", "alice"); err != nil {
//	        return err
//	    }
//	    // Nested: runs in a savepoint on the same connection.
//	    return db.Atomic(ctx, func(ctx context.Context) error {
//	        return db.ExecSQL(ctx, "INSERT INTO audit(event) VALUES($1)", "created")
//	    })
//	})
//
// An error returned from the body rolls the level back and propagates; a
// nested level that fails only unwinds its own savepoint unless the outer
// body re-returns the error.
//
// [Database.Transaction] is the non-nesting variant: it fails with
// [ErrTxAlreadyOpened] when a transaction is already open rather than
// silently nesting.
//
// # Manual control
//
// [Database.WithConnection] exposes the bound connection for advanced use,
// paired with [NewTx] and [NewSavepoint]:
//
//	err := db.WithConnection(ctx, func(ctx context.Context, conn pool.Connection) error {
//	    tx := txpool.NewTx(conn)
//	    if err := tx.Begin(ctx); err != nil {
//	        return err
//	    }
//	    if err := conn.Exec(ctx, "DELETE FROM sessions"); err != nil {
//	        _ = tx.Rollback(ctx)
//	        return err
//	    }
//	    return tx.Commit(ctx)
//	})
//
// # What this package does not do
//
// One transaction means one physical connection; there is no multiplexing
// inside a transaction, no automatic retry or reconnection of a broken
// connection (detect the failure, recreate the pool, re-enter a fresh
// scope), and no cross-database distributed transactions. SQL generation
// and row mapping belong to the query layer on top.
package txpool
