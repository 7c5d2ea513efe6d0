// Package repository provides provisioning of the article storage and access to stored articles.
package repository

import (
	"context"
	"embed"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // pure Go SQLite driver
)

//go:embed sql/schema_mysql.sql sql/schema_sqlite.sql
var schemaFS embed.FS

// ArticlesTable is the name of the table holding collected articles
const ArticlesTable = "security_articles"

// supported drivers
const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

// Config represents database configuration
type Config struct {
	Driver         string
	Host           string
	Port           int
	User           string
	Password       string
	Name           string // target database, mysql only
	Path           string // database file, sqlite only
	ConnectTimeout time.Duration
}

// mysqlDSN builds a DSN for the mysql driver, dbName may be empty for a server-level connection
func (c Config) mysqlDSN(dbName string) string {
	mc := mysql.NewConfig()
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
	mc.User = c.User
	mc.Passwd = c.Password
	mc.DBName = dbName
	mc.ParseTime = true
	mc.Collation = "utf8mb4_general_ci"
	if c.ConnectTimeout > 0 {
		mc.Timeout = c.ConnectTimeout
	}
	return mc.FormatDSN()
}

// openSQLite opens sqlite database and applies connection settings
func openSQLite(ctx context.Context, open opener, path string) (*sqlx.DB, error) {
	db, err := open(DriverSQLite, path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// single writer, also keeps ":memory:" databases on one connection
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA busy_timeout = 5000", // 5 second timeout for locks
	}

	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("execute %s: %w", pragma, err)
		}
	}

	return db, nil
}

// initSchema creates the articles table if it doesn't exist
func initSchema(ctx context.Context, db *sqlx.DB, driver string) error {
	schema, err := schemaFS.ReadFile("sql/schema_" + driver + ".sql")
	if err != nil {
		return fmt.Errorf("read schema: %w", err)
	}

	if _, err := db.ExecContext(ctx, string(schema)); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}

	return nil
}
