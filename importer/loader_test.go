package importer_test

import (
	"context"
	"fmt"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/nonsonwune/censo_db/database"
	"github.com/nonsonwune/censo_db/errors"
	"github.com/nonsonwune/censo_db/importer"
	"github.com/nonsonwune/censo_db/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ufRecords() *importer.RecordSet {
	return &importer.RecordSet{
		Columns: schema.UFs.Columns(),
		Rows: [][]interface{}{
			{"12", "AC", "Acre", "1", "N", "Norte"},
			{"35", "SP", "São Paulo", "3", "SE", "Sudeste"},
			{"53", "DF", "Distrito Federal", "5", "CO", "Centro-Oeste"},
		},
	}
}

func TestLoaderReplace(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)
	l := importer.NewLoader(db, 2, discardLogger())

	for i := 0; i < 2; i++ {
		n, err := l.Load(ctx, schema.UFs, ufRecords(), importer.Replace)
		require.NoError(t, err)
		assert.Equal(t, 3, n)
	}
	assert.Equal(t, 3, countRows(t, db, "ufs"))

	var nome string
	var regiao int64
	require.NoError(t, db.QueryRow(`SELECT "nome", "regiao_id" FROM "ufs" WHERE "sigla" = 'SP'`).Scan(&nome, &regiao))
	assert.Equal(t, "São Paulo", nome)
	assert.Equal(t, int64(3), regiao)
}

func TestLoaderAppend(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)
	l := importer.NewLoader(db, 2, discardLogger())

	rs := &importer.RecordSet{
		Columns: []string{schema.ColEntidadeCodigo, schema.ColEntidadeNome, schema.ColAno},
		Rows: [][]interface{}{
			{"1", "Escola A", int64(2023)},
			{"2", "Escola B", int64(2023)},
			{"3", "Escola C", int64(2023)},
		},
	}
	// Appending is not idempotent: the same rows land twice.
	for i := 0; i < 2; i++ {
		n, err := l.Load(ctx, schema.Instituicoes, rs, importer.Append)
		require.NoError(t, err)
		assert.Equal(t, 3, n)
	}
	assert.Equal(t, 6, countRows(t, db, "instituicoes"))
}

func TestLoaderEmptyInput(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)
	l := importer.NewLoader(db, 2, discardLogger())

	_, err := l.Load(ctx, schema.UFs, ufRecords(), importer.Replace)
	require.NoError(t, err)

	for _, mode := range []importer.Mode{importer.Append, importer.Replace} {
		n, err := l.Load(ctx, schema.UFs, &importer.RecordSet{Columns: schema.UFs.Columns()}, mode)
		require.NoError(t, err, mode.String())
		assert.Zero(t, n)
		n, err = l.Load(ctx, schema.UFs, nil, mode)
		require.NoError(t, err, mode.String())
		assert.Zero(t, n)
	}
	assert.Equal(t, 3, countRows(t, db, "ufs"))
}

func TestLoaderUnknownColumn(t *testing.T) {
	db := openDB(t)
	l := importer.NewLoader(db, 2, discardLogger())

	rs := &importer.RecordSet{Columns: []string{"id", "capital"}, Rows: [][]interface{}{{1, "Rio Branco"}}}
	_, err := l.Load(context.Background(), schema.UFs, rs, importer.Append)
	assert.True(t, errors.Is(err, errors.ErrSchemaMismatch))
}

func TestLoaderDecodeError(t *testing.T) {
	db := openDB(t)
	l := importer.NewLoader(db, 10, discardLogger())
	_, err := l.Load(context.Background(), schema.UFs, ufRecords(), importer.Replace)
	require.NoError(t, err)

	rs := ufRecords()
	rs.Rows[2][0] = "cinquenta e três"
	n, err := l.Load(context.Background(), schema.UFs, rs, importer.Replace)
	assert.Zero(t, n)
	assert.True(t, errors.Is(err, errors.ErrDecode))
	// The failed swap leaves the previous contents in place.
	assert.Equal(t, 3, countRows(t, db, "ufs"))
}

func TestLoaderPartition(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)
	l := importer.NewLoader(db, 100, discardLogger())

	rs := &importer.RecordSet{
		Columns: []string{schema.ColEntidadeCodigo, schema.ColEntidadeNome, schema.ColAno},
		Rows: [][]interface{}{
			{"1", "Escola A", int64(2023)},
			{"2", "Escola B", int64(2023)},
			{"1", "Escola A", int64(2024)},
		},
	}
	_, err := l.Load(ctx, schema.Instituicoes, rs, importer.Append)
	require.NoError(t, err)

	n, err := l.CountPartition(ctx, schema.Instituicoes, schema.ColAno, 2023)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	deleted, err := l.DeletePartition(ctx, schema.Instituicoes, schema.ColAno, 2023)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)
	assert.Equal(t, 1, countRows(t, db, "instituicoes"))

	_, err = l.CountPartition(ctx, schema.Instituicoes, "ANO", 2023)
	assert.True(t, errors.Is(err, errors.ErrSchemaMismatch))
}

func TestLoaderReportsCommittedRows(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	table := schema.Table{Name: "t", Fields: []schema.Field{{Name: "n", Type: schema.Integer}}}
	insert := regexp.QuoteMeta(`INSERT INTO "t" ("n") VALUES (?)`)

	mock.ExpectBegin()
	prep := mock.ExpectPrepare(insert)
	prep.ExpectExec().WithArgs(int64(1)).WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().WithArgs(int64(2)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectBegin()
	prep = mock.ExpectPrepare(insert)
	prep.ExpectExec().WithArgs(int64(3)).WillReturnError(fmt.Errorf("disk full"))
	mock.ExpectRollback()

	l := importer.NewLoader(database.New(sqlDB, database.SQLite), 2, discardLogger())
	rs := &importer.RecordSet{
		Columns: []string{"n"},
		Rows:    [][]interface{}{{1}, {2}, {3}, {4}, {5}},
	}
	n, err := l.Load(context.Background(), table, rs, importer.Append)
	require.Error(t, err)
	assert.Equal(t, 2, n)
	assert.True(t, errors.Is(err, errors.ErrStorage))
	assert.Contains(t, err.Error(), "disk full")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoaderReplaceFailureKeepsTable(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	table := schema.Table{Name: "t", Fields: []schema.Field{{Name: "n", Type: schema.Integer}}}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "t"`)).WillReturnResult(sqlmock.NewResult(0, 7))
	prep := mock.ExpectPrepare(regexp.QuoteMeta(`INSERT INTO "t"`))
	prep.ExpectExec().WithArgs(int64(1)).WillReturnError(fmt.Errorf("constraint failed"))
	mock.ExpectRollback()

	l := importer.NewLoader(database.New(sqlDB, database.SQLite), 10, discardLogger())
	rs := &importer.RecordSet{Columns: []string{"n"}, Rows: [][]interface{}{{1}}}
	n, err := l.Load(context.Background(), table, rs, importer.Replace)
	assert.Zero(t, n)
	assert.True(t, errors.Is(err, errors.ErrStorage))
	assert.NoError(t, mock.ExpectationsWereMet())
}
