package pool

import (
	"fmt"
	"strings"

	// Registers the "postgres" driver with database/sql.
	_ "github.com/lib/pq"
)

// NewPostgres creates a database/sql backend over lib/pq. It accepts both
// postgres:// URLs and lib/pq keyword/value connection strings.
//
// Prefer PgxBackend unless the deployment is already standardized on
// database/sql drivers.
func NewPostgres(dsn string, opts ...Option) *SQLBackend {
	return newSQL("postgres", dsn, opts)
}

// PostgresDSN builds a lib/pq keyword/value connection string from the
// standard connect parameters. Values containing spaces or quotes are
// escaped per the lib/pq rules.
func PostgresDSN(host string, port int, user, password, dbname string) string {
	parts := []string{
		"host=" + pqEscape(host),
		fmt.Sprintf("port=%d", port),
		"user=" + pqEscape(user),
		"dbname=" + pqEscape(dbname),
	}
	if password != "" {
		parts = append(parts, "password="+pqEscape(password))
	}
	return strings.Join(parts, " ")
}

// pqEscape quotes a keyword/value connection-string value for lib/pq.
// Inside single quotes lib/pq (like libpq) accepts both backslash-escaped
// characters and doubled quotes; this uses the backslash form: \ becomes
// \\ and ' becomes \'.
func pqEscape(v string) string {
	if v == "" {
		return "''"
	}
	if !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}
