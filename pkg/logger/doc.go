// Package logger provides slog construction helpers for database-access
// components: a JSON factory, a no-op default, and a handler decorator that
// injects context-extracted attributes into every record.
//
// The decorator is how transaction-scoped markers end up on SQL log lines
// without threading a logger through every call:
//
//	log := logger.New(slog.LevelDebug, txpool.ScopeLogAttr)
//	db := txpool.New(backend, txpool.WithLogger(log))
//
// Components that receive no logger should default to [NewNope] rather than
// logging unconditionally.
package logger
