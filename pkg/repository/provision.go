package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-pkgz/lgr"
	"github.com/jmoiron/sqlx"
)

// ErrInfrastructure is returned when the storage can't be made usable
var ErrInfrastructure = errors.New("infrastructure unavailable")

var identRe = regexp.MustCompile(`^[A-Za-z0-9_$]+$`)

// opener opens a database handle, replaced in tests
type opener func(driver, dsn string) (*sqlx.DB, error)

// Provisioner makes sure the target database and articles table exist.
// It never alters or drops existing structures, every statement is idempotent.
type Provisioner struct {
	cfg  Config
	log  lgr.L
	open opener
}

// NewProvisioner creates a provisioner for the given database configuration
func NewProvisioner(cfg Config, log lgr.L) *Provisioner {
	if log == nil {
		log = lgr.NoOp
	}
	return &Provisioner{cfg: cfg, log: log, open: sqlx.Open}
}

// Provision connects to the database server, creates the database and table if missing
// and returns a connection bound to the target database.
// Any failure is wrapped with ErrInfrastructure.
func (p *Provisioner) Provision(ctx context.Context) (*sqlx.DB, error) {
	var db *sqlx.DB
	var err error

	switch p.cfg.Driver {
	case DriverMySQL:
		db, err = p.provisionMySQL(ctx)
	case DriverSQLite:
		db, err = p.provisionSQLite(ctx)
	default:
		err = fmt.Errorf("unsupported driver %q", p.cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInfrastructure, err)
	}
	return db, nil
}

func (p *Provisioner) provisionMySQL(ctx context.Context) (*sqlx.DB, error) {
	if !identRe.MatchString(p.cfg.Name) {
		return nil, fmt.Errorf("invalid database name %q", p.cfg.Name)
	}

	// server-level connection, no database selected
	p.log.Logf("[INFO] connecting to database server %s:%d as %s", p.cfg.Host, p.cfg.Port, p.cfg.User)
	server, err := p.connect(ctx, DriverMySQL, p.cfg.mysqlDSN(""))
	if err != nil {
		return nil, fmt.Errorf("connect to server: %w", err)
	}
	defer server.Close()

	p.log.Logf("[INFO] checking permissions to create database and tables")
	var grants []string
	if err := server.SelectContext(ctx, &grants, "SHOW GRANTS FOR CURRENT_USER()"); err != nil {
		return nil, fmt.Errorf("show grants: %w", err)
	}
	for _, g := range grants {
		p.log.Logf("[INFO] grant: %s", g)
	}
	if HasCreatePrivilege(grants) {
		p.log.Logf("[INFO] user has CREATE privileges")
	} else {
		p.log.Logf("[WARN] user lacks CREATE privileges, creation may still succeed")
	}

	p.log.Logf("[INFO] creating database %s if not exists", p.cfg.Name)
	query := fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s CHARACTER SET utf8mb4 COLLATE utf8mb4_general_ci", quoteIdent(p.cfg.Name))
	if _, err := server.ExecContext(ctx, query); err != nil {
		return nil, fmt.Errorf("create database %s: %w", p.cfg.Name, err)
	}

	// pooled connections can't share USE, so the target database goes into the DSN
	db, err := p.connect(ctx, DriverMySQL, p.cfg.mysqlDSN(p.cfg.Name))
	if err != nil {
		return nil, fmt.Errorf("connect to database %s: %w", p.cfg.Name, err)
	}

	p.log.Logf("[INFO] checking table schema of %s", ArticlesTable)
	if err := initSchema(ctx, db, DriverMySQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create table %s: %w", ArticlesTable, err)
	}

	p.log.Logf("[INFO] infrastructure initialization completed")
	return db, nil
}

func (p *Provisioner) provisionSQLite(ctx context.Context) (*sqlx.DB, error) {
	p.log.Logf("[INFO] opening sqlite database %s", p.cfg.Path)
	db, err := openSQLite(ctx, p.open, p.cfg.Path)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	p.log.Logf("[DEBUG] grant check and database creation skipped for sqlite")

	p.log.Logf("[INFO] checking table schema of %s", ArticlesTable)
	if err := initSchema(ctx, db, DriverSQLite); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create table %s: %w", ArticlesTable, err)
	}

	p.log.Logf("[INFO] infrastructure initialization completed")
	return db, nil
}

// connect opens and pings a database handle
func (p *Provisioner) connect(ctx context.Context, driver, dsn string) (*sqlx.DB, error) {
	db, err := p.open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return db, nil
}

// HasCreatePrivilege reports whether any grant line allows creating databases or tables
func HasCreatePrivilege(grants []string) bool {
	for _, g := range grants {
		if strings.Contains(g, "ALL PRIVILEGES") || strings.Contains(g, "CREATE") {
			return true
		}
	}
	return false
}

func quoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}
