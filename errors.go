package txpool

import "errors"

var (
	// ErrTxAlreadyOpened is returned by Database.Transaction when a
	// transaction is already open in the current scope. Plain
	// transactions do not nest; nesting goes through Database.Atomic.
	ErrTxAlreadyOpened = errors.New("txpool: transaction already opened")

	// ErrTxBegun is returned by Tx.Begin when the transaction was
	// already begun.
	ErrTxBegun = errors.New("txpool: transaction already begun")

	// ErrTxNotBegun is returned by Tx.Commit and Tx.Rollback before
	// Begin has run.
	ErrTxNotBegun = errors.New("txpool: transaction has not begun")

	// ErrTxDone is returned when a transaction that already committed or
	// rolled back is used again. Transactions transition through their
	// states exactly once.
	ErrTxDone = errors.New("txpool: transaction already committed or rolled back")

	// ErrRollbackFailed wraps the error of a failed rollback. It
	// replaces the body error that triggered the rollback: a failed
	// rollback leaves the connection in an unknown state, which is the
	// more urgent condition to surface.
	ErrRollbackFailed = errors.New("txpool: rollback failed, connection state unknown")
)
