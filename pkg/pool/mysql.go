package pool

import (
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
)

// NewMySQL creates a database/sql backend over go-sql-driver/mysql. The dsn
// is in the driver's native form (user:pass@tcp(host:port)/dbname); use
// MySQLDSN to build one from discrete connect parameters.
func NewMySQL(dsn string, opts ...Option) *SQLBackend {
	return newSQL("mysql", dsn, opts)
}

// MySQLDSN builds a go-sql-driver/mysql DSN from the standard connect
// parameters, normalizing the dialect quirks the rest of the system should
// not care about (TCP transport, parseTime for temporal scans, a dial
// timeout so pool creation fails promptly on unreachable hosts).
func MySQLDSN(host string, port int, user, password, dbname string) string {
	cfg := mysql.NewConfig()
	cfg.User = user
	cfg.Passwd = password
	cfg.Net = "tcp"
	cfg.Addr = fmt.Sprintf("%s:%d", host, port)
	cfg.DBName = dbname
	cfg.ParseTime = true
	cfg.Timeout = 10 * time.Second
	return cfg.FormatDSN()
}
