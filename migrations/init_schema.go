package migrations

import (
	"context"
	"fmt"
	"strings"

	"github.com/nonsonwune/censo_db/database"
	"github.com/nonsonwune/censo_db/errors"
	"github.com/nonsonwune/censo_db/schema"
)

// InitSchema creates the given tables and their indexes when they are
// missing, then verifies that every one of them exists.
func InitSchema(ctx context.Context, db *database.DB, tables ...schema.Table) error {
	if len(tables) == 0 {
		tables = schema.All()
	}

	for _, t := range tables {
		for _, stmt := range CreateStatements(db.Dialect, t) {
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				return errors.WithCodef(err, errors.ErrStorage, "creating table %s", t.Name)
			}
		}
	}

	return VerifySchema(ctx, db, tables...)
}

// VerifySchema checks that all required tables exist.
func VerifySchema(ctx context.Context, db *database.DB, tables ...schema.Table) error {
	if len(tables) == 0 {
		tables = schema.All()
	}

	for _, t := range tables {
		exists, err := db.Dialect.TableExists(ctx, db, t.Name)
		if err != nil {
			return err
		}
		if !exists {
			return errors.Newf(errors.ErrStorage, "required table %s does not exist", t.Name)
		}
	}

	return nil
}

// DropSchema drops the given tables, all of them when none are given.
func DropSchema(ctx context.Context, db *database.DB, tables ...schema.Table) error {
	if len(tables) == 0 {
		tables = schema.All()
	}

	for _, t := range tables {
		if _, err := db.ExecContext(ctx, "DROP TABLE IF EXISTS "+db.Dialect.Quote(t.Name)); err != nil {
			return errors.WithCodef(err, errors.ErrStorage, "dropping table %s", t.Name)
		}
	}
	return nil
}

// CreateStatements renders the DDL of t for dialect d.
func CreateStatements(d database.Dialect, t schema.Table) []string {
	defs := make([]string, 0, len(t.Fields)+1)
	for _, f := range t.Fields {
		def := d.Quote(f.Name) + " " + d.ColumnType(f.Type)
		switch {
		case !f.Nullable && f.Type == schema.Text:
			def += " NOT NULL DEFAULT ''"
		case !f.Nullable:
			def += " NOT NULL"
		}
		defs = append(defs, def)
	}
	if t.Unique && len(t.Key) > 0 {
		defs = append(defs, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(database.QuoteAll(d, t.Key), ", ")))
	}

	stmts := []string{fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)", d.Quote(t.Name), strings.Join(defs, ",\n\t"))}

	indexes := t.Indexes
	if !t.Unique && len(t.Key) > 0 {
		indexes = append([][]string{t.Key}, indexes...)
	}
	for _, cols := range indexes {
		name := "idx_" + t.Name + "_" + strings.ToLower(strings.Join(cols, "_"))
		stmts = append(stmts, fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)",
			d.Quote(name), d.Quote(t.Name), strings.Join(database.QuoteAll(d, cols), ", ")))
	}
	return stmts
}
