// Package store implements the record-level operations behind the HTTP
// resources on top of the instituicoes table.
package store

import (
	"context"
	"database/sql"
	"strings"

	"github.com/nonsonwune/censo_db/database"
	"github.com/nonsonwune/censo_db/errors"
	"github.com/nonsonwune/censo_db/models"
	"github.com/nonsonwune/censo_db/schema"
)

// Instituicoes reads and writes single institution-years.
type Instituicoes struct {
	db      *database.DB
	table   string
	columns string
}

// NewInstituicoes returns a store over db.
func NewInstituicoes(db *database.DB) *Instituicoes {
	d := db.Dialect
	return &Instituicoes{
		db:      db,
		table:   d.Quote(schema.Instituicoes.Name),
		columns: strings.Join(database.QuoteAll(d, schema.Instituicoes.Columns()), ", "),
	}
}

func (s *Instituicoes) q(query string) string {
	return s.db.Dialect.Rebind(query)
}

func (s *Instituicoes) keyClause() string {
	d := s.db.Dialect
	return d.Quote(schema.ColEntidadeCodigo) + " = ? AND " + d.Quote(schema.ColAno) + " = ?"
}

// Ping checks that the store is reachable.
func (s *Instituicoes) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return errors.WithCode(err, errors.ErrStorage, "pinging database")
	}
	return nil
}

// List returns one page of the institutions of a state across all census
// years, ordered by year and institution code.
func (s *Instituicoes) List(ctx context.Context, uf string, page, perPage int) ([]models.Instituicao, models.Pagination, error) {
	d := s.db.Dialect
	uf = strings.ToUpper(strings.TrimSpace(uf))
	where := " WHERE " + d.Quote(schema.ColUFSigla) + " = ?"

	var total int64
	if err := s.db.QueryRowContext(ctx, s.q("SELECT COUNT(*) FROM "+s.table+where), uf).Scan(&total); err != nil {
		return nil, models.Pagination{}, errors.WithCodef(err, errors.ErrStorage, "counting instituicoes of %s", uf)
	}
	p := models.NewPagination(page, perPage, total)
	if int64(p.Page) > p.TotalPages {
		return []models.Instituicao{}, p, nil
	}

	query := "SELECT " + s.columns + " FROM " + s.table + where +
		" ORDER BY " + d.Quote(schema.ColAno) + ", " + d.Quote(schema.ColEntidadeCodigo) +
		" LIMIT ? OFFSET ?"
	rows, err := s.db.QueryContext(ctx, s.q(query), uf, p.PerPage, p.Offset())
	if err != nil {
		return nil, p, errors.WithCodef(err, errors.ErrStorage, "listing instituicoes of %s", uf)
	}
	defer rows.Close()

	items := make([]models.Instituicao, 0, p.PerPage)
	for rows.Next() {
		var inst models.Instituicao
		if err := rows.Scan(inst.Targets()...); err != nil {
			return nil, p, errors.WithCode(err, errors.ErrStorage, "scanning instituicao")
		}
		items = append(items, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, p, errors.WithCode(err, errors.ErrStorage, "iterating instituicoes")
	}
	return items, p, nil
}

// Get returns the institution-year identified by (id, ano).
func (s *Instituicoes) Get(ctx context.Context, id int64, ano int) (*models.Instituicao, error) {
	return s.get(ctx, s.db, id, ano)
}

func (s *Instituicoes) get(ctx context.Context, q database.Querier, id int64, ano int) (*models.Instituicao, error) {
	query := "SELECT " + s.columns + " FROM " + s.table + " WHERE " + s.keyClause() + " LIMIT 1"
	var inst models.Instituicao
	err := q.QueryRowContext(ctx, s.q(query), id, ano).Scan(inst.Targets()...)
	if err == sql.ErrNoRows {
		return nil, errors.Newf(errors.ErrNotFound, "instituicao %d/%d not found", id, ano)
	}
	if err != nil {
		return nil, errors.WithCodef(err, errors.ErrStorage, "reading instituicao %d/%d", id, ano)
	}
	return &inst, nil
}

// Create inserts inst. An existing (CO_ENTIDADE, ano) is a Conflict.
func (s *Instituicoes) Create(ctx context.Context, inst *models.Instituicao) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		var one int
		err := tx.QueryRowContext(ctx, s.q("SELECT 1 FROM "+s.table+" WHERE "+s.keyClause()+" LIMIT 1"), inst.CoEntidade, inst.Ano).Scan(&one)
		switch {
		case err == nil:
			return errors.Newf(errors.ErrConflict, "instituicao %d/%d already exists", inst.CoEntidade, inst.Ano)
		case err != sql.ErrNoRows:
			return errors.WithCode(err, errors.ErrStorage, "checking instituicao")
		}

		cols := schema.Instituicoes.Columns()
		query := "INSERT INTO " + s.table + " (" + s.columns + ") VALUES (" +
			strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ") + ")"
		if _, err := tx.ExecContext(ctx, s.q(query), inst.Values()...); err != nil {
			return errors.WithCodef(err, errors.ErrStorage, "inserting instituicao %d/%d", inst.CoEntidade, inst.Ano)
		}
		return nil
	})
}

// Update applies patch to the institution-year (id, ano) and returns the
// updated record. Only the supplied columns change. The identity columns
// may be repeated in the patch but not changed.
func (s *Instituicoes) Update(ctx context.Context, id int64, ano int, patch models.InstituicaoPatch) (*models.Instituicao, error) {
	if err := checkIdentity(patch, id, ano); err != nil {
		return nil, err
	}

	var inst *models.Instituicao
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		if inst, err = s.get(ctx, tx, id, ano); err != nil {
			return err
		}
		if err := patch.Apply(inst); err != nil {
			return err
		}
		cols := patch.Columns()
		if len(cols) == 0 {
			return nil
		}

		d := s.db.Dialect
		sets := make([]string, len(cols))
		args := make([]interface{}, 0, len(cols)+2)
		for i, c := range cols {
			sets[i] = d.Quote(c) + " = ?"
			v, _ := patch.Value(c)
			args = append(args, v)
		}
		args = append(args, id, ano)
		query := "UPDATE " + s.table + " SET " + strings.Join(sets, ", ") + " WHERE " + s.keyClause()
		if _, err := tx.ExecContext(ctx, s.q(query), args...); err != nil {
			return errors.WithCodef(err, errors.ErrStorage, "updating instituicao %d/%d", id, ano)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return inst, nil
}

// Delete removes the institution-year (id, ano).
func (s *Instituicoes) Delete(ctx context.Context, id int64, ano int) error {
	res, err := s.db.ExecContext(ctx, s.q("DELETE FROM "+s.table+" WHERE "+s.keyClause()), id, ano)
	if err != nil {
		return errors.WithCodef(err, errors.ErrStorage, "deleting instituicao %d/%d", id, ano)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.WithCode(err, errors.ErrStorage, "rows affected")
	}
	if n == 0 {
		return errors.Newf(errors.ErrNotFound, "instituicao %d/%d not found", id, ano)
	}
	return nil
}

func (s *Instituicoes) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
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

func checkIdentity(patch models.InstituicaoPatch, id int64, ano int) error {
	fe := models.FieldErrors{}
	if v, ok := patch.Value(schema.ColEntidadeCodigo); ok && v != id {
		fe[schema.ColEntidadeCodigo] = []string{"Identity columns cannot be changed."}
	}
	if v, ok := patch.Value(schema.ColAno); ok && v != int64(ano) {
		fe[schema.ColAno] = []string{"Identity columns cannot be changed."}
	}
	if len(fe) > 0 {
		return errors.WithCode(fe, errors.ErrValidation, "invalid instituicao")
	}
	return nil
}
