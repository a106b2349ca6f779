package txpool

import "log/slog"

// Option configures a Database.
type Option func(*Database)

// WithLogger sets the logger used for SQL and transaction debug output.
// Default: a no-op logger.
func WithLogger(log *slog.Logger) Option {
	return func(db *Database) {
		if log != nil {
			db.log = log
		}
	}
}
