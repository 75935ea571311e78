package importer

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/nonsonwune/censo_db/database"
	"github.com/nonsonwune/censo_db/errors"
	"github.com/nonsonwune/censo_db/schema"
)

// Mode selects how a load treats existing rows.
type Mode int

const (
	// Append adds rows and never touches existing ones.
	Append Mode = iota
	// Replace swaps the whole table contents for the new rows.
	Replace
)

func (m Mode) String() string {
	if m == Replace {
		return "replace"
	}
	return "append"
}

// Loader writes projected record sets into the store.
type Loader struct {
	db        *database.DB
	batchSize int
	logger    *slog.Logger
}

// NewLoader returns a loader committing batchSize rows per transaction in
// Append mode.
func NewLoader(db *database.DB, batchSize int, logger *slog.Logger) *Loader {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{db: db, batchSize: batchSize, logger: logger}
}

// BatchSize is the number of rows committed per Append transaction.
func (l *Loader) BatchSize() int { return l.batchSize }

// Load writes rs into table t and returns the number of committed rows.
//
// Append commits one transaction per batch; when a batch fails the load
// stops and the returned count holds the rows committed by earlier batches.
// Replace deletes the old contents and inserts the new rows in a single
// transaction, so readers see either the old or the new table. Empty input
// is a no-op in both modes.
func (l *Loader) Load(ctx context.Context, t schema.Table, rs *RecordSet, mode Mode) (int, error) {
	if rs.Len() == 0 {
		return 0, nil
	}
	fields, err := resolveFields(t, rs.Columns)
	if err != nil {
		return 0, err
	}

	if mode == Replace {
		return l.replace(ctx, t, fields, rs)
	}

	committed := 0
	for from := 0; from < rs.Len(); from += l.batchSize {
		if err := ctx.Err(); err != nil {
			return committed, errors.WithCodef(err, errors.ErrStorage, "loading %s", t.Name)
		}
		to := from + l.batchSize
		if to > rs.Len() {
			to = rs.Len()
		}
		if err := l.inTx(ctx, func(tx *sql.Tx) error {
			return l.insert(ctx, tx, t, fields, rs.Slice(from, to))
		}); err != nil {
			return committed, errors.Wrapf(err, "%s: batch at row %d", t.Name, from)
		}
		committed += to - from
		l.logger.Debug("batch committed", "table", t.Name, "rows", to-from, "total", committed)
	}
	return committed, nil
}

func (l *Loader) replace(ctx context.Context, t schema.Table, fields []schema.Field, rs *RecordSet) (int, error) {
	err := l.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+l.db.Dialect.Quote(t.Name)); err != nil {
			return errors.WithCodef(err, errors.ErrStorage, "clearing %s", t.Name)
		}
		for from := 0; from < rs.Len(); from += l.batchSize {
			to := from + l.batchSize
			if to > rs.Len() {
				to = rs.Len()
			}
			if err := l.insert(ctx, tx, t, fields, rs.Slice(from, to)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, errors.Wrapf(err, "replacing %s", t.Name)
	}
	l.logger.Debug("table replaced", "table", t.Name, "rows", rs.Len())
	return rs.Len(), nil
}

// inTx runs fn in a transaction committed only when fn succeeds.
func (l *Loader) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.WithCode(err, errors.ErrStorage, "starting transaction")
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return errors.WithCode(err, errors.ErrStorage, "committing transaction")
	}
	return nil
}

func (l *Loader) insert(ctx context.Context, tx *sql.Tx, t schema.Table, fields []schema.Field, rs *RecordSet) error {
	d := l.db.Dialect
	stmt, err := tx.PrepareContext(ctx, d.BulkInsert(t.Name, rs.Columns))
	if err != nil {
		return errors.WithCodef(err, errors.ErrStorage, "preparing insert into %s", t.Name)
	}
	defer stmt.Close()

	values := make([]interface{}, len(fields))
	for i, row := range rs.Rows {
		for j, f := range fields {
			v, err := f.Coerce(row[j])
			if err != nil {
				return errors.Wrapf(err, "row %d", i)
			}
			values[j] = v
		}
		if _, err := stmt.ExecContext(ctx, values...); err != nil {
			return errors.WithCodef(err, errors.ErrStorage, "inserting row %d into %s", i, t.Name)
		}
	}
	if d.FlushBulk() {
		if _, err := stmt.ExecContext(ctx); err != nil {
			return errors.WithCodef(err, errors.ErrStorage, "flushing copy into %s", t.Name)
		}
	}
	return nil
}

// CountPartition returns the number of rows of t whose column equals value.
func (l *Loader) CountPartition(ctx context.Context, t schema.Table, column string, value interface{}) (int64, error) {
	if _, ok := t.Field(column); !ok {
		return 0, errors.Newf(errors.ErrSchemaMismatch, "table %s has no column %s", t.Name, column)
	}
	d := l.db.Dialect
	query := d.Rebind("SELECT COUNT(*) FROM " + d.Quote(t.Name) + " WHERE " + d.Quote(column) + " = ?")
	var n int64
	if err := l.db.QueryRowContext(ctx, query, value).Scan(&n); err != nil {
		return 0, errors.WithCodef(err, errors.ErrStorage, "counting %s", t.Name)
	}
	return n, nil
}

// DeletePartition removes the rows of t whose column equals value.
func (l *Loader) DeletePartition(ctx context.Context, t schema.Table, column string, value interface{}) (int64, error) {
	if _, ok := t.Field(column); !ok {
		return 0, errors.Newf(errors.ErrSchemaMismatch, "table %s has no column %s", t.Name, column)
	}
	d := l.db.Dialect
	query := d.Rebind("DELETE FROM " + d.Quote(t.Name) + " WHERE " + d.Quote(column) + " = ?")
	res, err := l.db.ExecContext(ctx, query, value)
	if err != nil {
		return 0, errors.WithCodef(err, errors.ErrStorage, "deleting from %s", t.Name)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.WithCode(err, errors.ErrStorage, "rows affected")
	}
	return n, nil
}

// resolveFields maps every column of a record set to its table field.
func resolveFields(t schema.Table, columns []string) ([]schema.Field, error) {
	fields := make([]schema.Field, len(columns))
	for i, c := range columns {
		f, ok := t.Field(c)
		if !ok {
			return nil, errors.Newf(errors.ErrSchemaMismatch, "table %s has no column %s", t.Name, c)
		}
		fields[i] = f
	}
	return fields, nil
}
