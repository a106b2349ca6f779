package txpool

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/dmitrymomot/txpool/pkg/pool"
)

type txState uint8

const (
	txCreated txState = iota
	txBegun
	txCommitted
	txRolledBack
)

// Tx is a single transaction level on one bound connection: either a
// top-level transaction (BEGIN/COMMIT/ROLLBACK) or a savepoint
// (SAVEPOINT/RELEASE/ROLLBACK TO). It moves through its states exactly
// once: created → begun → committed or rolled back.
//
// Database.Atomic and Database.Transaction manage Tx instances internally;
// construct one directly only together with Database.WithConnection for
// manual transaction control.
type Tx struct {
	conn      pool.Connection
	savepoint string
	state     txState
}

// NewTx creates a top-level transaction on conn. Begin must be called
// before Commit or Rollback.
func NewTx(conn pool.Connection) *Tx {
	return &Tx{conn: conn}
}

// NewSavepoint creates a savepoint-level transaction on conn. The savepoint
// identifier is generated fresh for this instance so that concurrently
// nested levels in other scopes can never collide, and so a retried level
// never references an identifier that was already released or rolled back.
func NewSavepoint(conn pool.Connection) *Tx {
	return &Tx{conn: conn, savepoint: fmt.Sprintf("txp_%x", [16]byte(uuid.New()))}
}

// IsSavepoint reports whether this level is a savepoint rather than a
// top-level transaction.
func (t *Tx) IsSavepoint() bool {
	return t.savepoint != ""
}

// Begin issues BEGIN, or SAVEPOINT for a savepoint level. On failure the
// transaction stays in its created state and the connection has no open
// transaction to clean up.
func (t *Tx) Begin(ctx context.Context) error {
	switch t.state {
	case txBegun:
		return ErrTxBegun
	case txCommitted, txRolledBack:
		return ErrTxDone
	}

	stmt := "BEGIN"
	if t.savepoint != "" {
		stmt = "SAVEPOINT " + t.savepoint
	}
	if err := t.conn.Exec(ctx, stmt); err != nil {
		return err
	}
	t.state = txBegun
	return nil
}

// Commit issues COMMIT, or RELEASE SAVEPOINT for a savepoint level. On
// failure the error propagates as-is and the transaction stays begun; the
// caller decides whether to roll back.
func (t *Tx) Commit(ctx context.Context) error {
	if err := t.checkBegun(); err != nil {
		return err
	}

	stmt := "COMMIT"
	if t.savepoint != "" {
		stmt = "RELEASE SAVEPOINT " + t.savepoint
	}
	if err := t.conn.Exec(ctx, stmt); err != nil {
		return err
	}
	t.state = txCommitted
	return nil
}

// Rollback issues ROLLBACK, or ROLLBACK TO SAVEPOINT for a savepoint
// level. A rollback failure means the connection state is unknown; the
// connection must not be reused for further statements.
func (t *Tx) Rollback(ctx context.Context) error {
	if err := t.checkBegun(); err != nil {
		return err
	}

	stmt := "ROLLBACK"
	if t.savepoint != "" {
		stmt = "ROLLBACK TO SAVEPOINT " + t.savepoint
	}
	if err := t.conn.Exec(ctx, stmt); err != nil {
		return err
	}
	t.state = txRolledBack
	return nil
}

func (t *Tx) checkBegun() error {
	switch t.state {
	case txCreated:
		return ErrTxNotBegun
	case txCommitted, txRolledBack:
		return ErrTxDone
	}
	return nil
}
