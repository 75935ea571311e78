// Package database opens the relational store and hides the differences
// between the PostgreSQL deployment and the embedded SQLite store used for
// development and tests.
package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/nonsonwune/censo_db/errors"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config selects the driver and the connection string.
type Config struct {
	Driver string
	DSN    string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DB is the storage handle shared by ingestion and the HTTP resources. It is
// opened once per process and closed on shutdown.
type DB struct {
	*sql.DB
	Dialect Dialect
}

// New wraps an already opened *sql.DB.
func New(db *sql.DB, d Dialect) *DB {
	return &DB{DB: db, Dialect: d}
}

// Open connects to the store described by cfg and pings it.
func Open(ctx context.Context, cfg Config) (*DB, error) {
	d, err := DialectFor(cfg.Driver)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(d.DriverName(), cfg.DSN)
	if err != nil {
		return nil, errors.WithCodef(err, errors.ErrStorage, "opening %s database", cfg.Driver)
	}

	if cfg.Driver == DriverSQLite {
		// One writer at a time; a second connection would also see a
		// different database when the DSN is :memory:.
		db.SetMaxOpenConns(1)
	} else {
		if cfg.MaxOpenConns > 0 {
			db.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		if cfg.MaxIdleConns > 0 {
			db.SetMaxIdleConns(cfg.MaxIdleConns)
		}
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.WithCodef(err, errors.ErrStorage, "connecting to %s database", cfg.Driver)
	}

	if cfg.Driver == DriverSQLite {
		if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
			db.Close()
			return nil, errors.WithCode(err, errors.ErrStorage, "configuring sqlite")
		}
	}

	return New(db, d), nil
}

// Querier is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}
