package txpool

import (
	"context"
	"errors"
	"log/slog"
)

// Atomic runs fn inside a transaction on the scope's connection. At the
// outermost level it issues BEGIN/COMMIT; when called while a transaction
// is already open in the current scope it transparently downgrades to a
// savepoint, so Atomic blocks nest to arbitrary depth. All levels of one
// nesting run on the same physical connection.
//
// If fn returns an error or panics, the level rolls back and the error (or
// panic) propagates. A commit failure propagates as-is. A rollback failure
// replaces fn's error (see ErrRollbackFailed). The connection is returned
// to the pool when the outermost scope exits, on every path out — errors,
// panics, and cancelled contexts included; after a cancellation the
// released connection's transactional state is indeterminate and is left
// to the backend to settle.
func (db *Database) Atomic(ctx context.Context, fn func(ctx context.Context) error) error {
	return db.withScope(ctx, func(ctx context.Context, cc *ConnContext) error {
		return db.runTx(ctx, cc, cc.txOpened, fn)
	})
}

// Transaction is Atomic without the savepoint downgrade: it must be the
// only transaction in its scope. Calling it while one is already open
// fails with ErrTxAlreadyOpened before any SQL is issued.
func (db *Database) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return db.withScope(ctx, func(ctx context.Context, cc *ConnContext) error {
		if cc.txOpened {
			return ErrTxAlreadyOpened
		}
		return db.runTx(ctx, cc, false, fn)
	})
}

func (db *Database) runTx(ctx context.Context, cc *ConnContext, nested bool, fn func(ctx context.Context) error) error {
	var tx *Tx
	if nested {
		tx = NewSavepoint(cc.conn)
	} else {
		tx = NewTx(cc.conn)
	}

	// A begin failure leaves no transaction open and no flag set; the
	// scope unwind in withScope still releases the connection.
	if err := tx.Begin(ctx); err != nil {
		return err
	}
	db.log.DebugContext(ctx, "transaction begun", slog.Bool("savepoint", tx.IsSavepoint()))

	prev := cc.txOpened
	cc.txOpened = true
	defer func() {
		cc.txOpened = prev
	}()

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(ctx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			db.log.ErrorContext(ctx, "rollback failed", slog.String("error", rbErr.Error()))
			return errors.Join(ErrRollbackFailed, rbErr)
		}
		db.log.DebugContext(ctx, "transaction rolled back", slog.Bool("savepoint", tx.IsSavepoint()))
		return err
	}

	return tx.Commit(ctx)
}
