package database

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"
	"github.com/nonsonwune/censo_db/errors"
	"github.com/nonsonwune/censo_db/schema"

	_ "modernc.org/sqlite"
)

// Dialect covers the SQL that differs between the supported stores. Queries
// throughout the repository are written with '?' placeholders and passed
// through Rebind.
type Dialect interface {
	Name() string
	DriverName() string
	// Quote quotes an identifier. Column names of the census table are
	// upper case and must keep their case.
	Quote(ident string) string
	Rebind(query string) string
	ColumnType(t schema.Type) string
	// BulkInsert returns the statement to prepare inside a transaction for
	// loading rows into table. When FlushBulk is true the prepared
	// statement needs a final Exec without arguments to flush buffered rows.
	BulkInsert(table string, columns []string) string
	FlushBulk() bool
	TableExists(ctx context.Context, q Querier, table string) (bool, error)
}

// DialectFor returns the dialect registered for driver.
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case DriverPostgres:
		return Postgres, nil
	case DriverSQLite:
		return SQLite, nil
	}
	return nil, errors.Newf(errors.ErrStorage, "unsupported database driver %q", driver)
}

var (
	Postgres Dialect = postgresDialect{}
	SQLite   Dialect = sqliteDialect{}
)

type postgresDialect struct{}

func (postgresDialect) Name() string       { return DriverPostgres }
func (postgresDialect) DriverName() string { return "postgres" }

func (postgresDialect) Quote(ident string) string {
	return pq.QuoteIdentifier(ident)
}

// Rebind rewrites '?' placeholders into $1, $2, ... skipping quoted text.
func (postgresDialect) Rebind(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	var quote rune
	for _, r := range query {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"':
			quote = r
		case r == '?':
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (postgresDialect) ColumnType(t schema.Type) string {
	switch t {
	case schema.Integer:
		return "INTEGER"
	case schema.BigInt:
		return "BIGINT"
	}
	return "TEXT"
}

// BulkInsert uses COPY FROM STDIN, which lib/pq drives through a prepared
// statement.
func (postgresDialect) BulkInsert(table string, columns []string) string {
	return pq.CopyIn(table, columns...)
}

func (postgresDialect) FlushBulk() bool { return true }

func (postgresDialect) TableExists(ctx context.Context, q Querier, table string) (bool, error) {
	var exists bool
	query := `
		SELECT EXISTS (
			SELECT FROM information_schema.tables
			WHERE table_schema = current_schema()
			AND table_name = $1
		)`
	if err := q.QueryRowContext(ctx, query, table).Scan(&exists); err != nil {
		return false, errors.WithCodef(err, errors.ErrStorage, "checking table %s", table)
	}
	return exists, nil
}

type sqliteDialect struct{}

func (sqliteDialect) Name() string       { return DriverSQLite }
func (sqliteDialect) DriverName() string { return "sqlite" }

func (sqliteDialect) Quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func (sqliteDialect) Rebind(query string) string { return query }

func (sqliteDialect) ColumnType(t schema.Type) string {
	if t == schema.Text {
		return "TEXT"
	}
	// SQLite stores every integer width in INTEGER.
	return "INTEGER"
}

func (d sqliteDialect) BulkInsert(table string, columns []string) string {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = d.Quote(c)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		d.Quote(table),
		strings.Join(quoted, ", "),
		strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", "))
}

func (sqliteDialect) FlushBulk() bool { return false }

func (sqliteDialect) TableExists(ctx context.Context, q Querier, table string) (bool, error) {
	var n int
	query := `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`
	if err := q.QueryRowContext(ctx, query, table).Scan(&n); err != nil {
		return false, errors.WithCodef(err, errors.ErrStorage, "checking table %s", table)
	}
	return n > 0, nil
}

// QuoteAll quotes every identifier in idents.
func QuoteAll(d Dialect, idents []string) []string {
	out := make([]string, len(idents))
	for i, s := range idents {
		out[i] = d.Quote(s)
	}
	return out
}
