package store_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nonsonwune/censo_db/database"
	"github.com/nonsonwune/censo_db/errors"
	"github.com/nonsonwune/censo_db/migrations"
	"github.com/nonsonwune/censo_db/models"
	"github.com/nonsonwune/censo_db/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) *store.Instituicoes {
	t.Helper()
	ctx := context.Background()
	db, err := database.Open(ctx, database.Config{
		Driver: database.DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "censo.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, migrations.InitSchema(ctx, db))
	return store.NewInstituicoes(db)
}

func escola(id int64, ano int, uf string) *models.Instituicao {
	return &models.Instituicao{
		CoEntidade:  id,
		Ano:         ano,
		NoEntidade:  "Escola Municipal",
		NoMunicipio: "Rio Branco",
		CoUF:        models.IntPtr(12),
		NoUF:        "Acre",
		SgUF:        uf,
		QtMatInf:    models.IntPtr(10),
		QtMatFund:   models.IntPtr(0),
	}
}

func TestCreateGetDelete(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	require.NoError(t, s.Create(ctx, escola(12345, 2023, "AC")))
	err := s.Create(ctx, escola(12345, 2023, "AC"))
	assert.True(t, errors.Is(err, errors.ErrConflict))
	// Same school, another year.
	require.NoError(t, s.Create(ctx, escola(12345, 2024, "AC")))

	got, err := s.Get(ctx, 12345, 2023)
	require.NoError(t, err)
	assert.Equal(t, "Escola Municipal", got.NoEntidade)
	assert.Equal(t, 10, *got.QtMatInf)
	assert.Nil(t, got.QtMatMed)

	require.NoError(t, s.Delete(ctx, 12345, 2023))
	_, err = s.Get(ctx, 12345, 2023)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
	assert.True(t, errors.Is(s.Delete(ctx, 12345, 2023), errors.ErrNotFound))

	_, err = s.Get(ctx, 12345, 2024)
	assert.NoError(t, err)
}

func TestList(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	for i := 0; i < 45; i++ {
		require.NoError(t, s.Create(ctx, escola(int64(100+i), 2023+i%2, "AC")))
	}
	require.NoError(t, s.Create(ctx, escola(999, 2023, "RO")))

	items, p, err := s.List(ctx, "ac", 3, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(45), p.TotalItems)
	assert.Equal(t, int64(3), p.TotalPages)
	assert.Len(t, items, 5)

	items, _, err = s.List(ctx, "AC", 1, 20)
	require.NoError(t, err)
	require.Len(t, items, 20)
	// Ordered by year, then code.
	assert.Equal(t, 2023, items[0].Ano)
	assert.Equal(t, int64(100), items[0].CoEntidade)
	assert.Equal(t, int64(102), items[1].CoEntidade)

	// Pages past the end are empty, however large the offset would be.
	for _, page := range []int{13, 4611686018427387905} {
		items, p, err = s.List(ctx, "AC", page, 4)
		require.NoError(t, err)
		assert.Empty(t, items)
		assert.Equal(t, page, p.Page)
		assert.Equal(t, int64(12), p.TotalPages)
	}

	items, p, err = s.List(ctx, "SP", 1, 20)
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Equal(t, int64(0), p.TotalPages)
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	require.NoError(t, s.Create(ctx, escola(12345, 2023, "AC")))

	patch, err := models.DecodeInstituicaoPatch(strings.NewReader(`{"QT_MAT_FUND": 300, "QT_MAT_INF": null, "CO_ENTIDADE": 12345}`))
	require.NoError(t, err)
	updated, err := s.Update(ctx, 12345, 2023, patch)
	require.NoError(t, err)
	assert.Equal(t, 300, *updated.QtMatFund)
	assert.Nil(t, updated.QtMatInf)
	assert.Equal(t, "Escola Municipal", updated.NoEntidade)

	got, err := s.Get(ctx, 12345, 2023)
	require.NoError(t, err)
	assert.Equal(t, updated, got)

	_, err = s.Update(ctx, 1, 2023, patch)
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	rekey, err := models.DecodeInstituicaoPatch(strings.NewReader(`{"ano": 2030}`))
	require.NoError(t, err)
	_, err = s.Update(ctx, 12345, 2023, rekey)
	assert.True(t, errors.Is(err, errors.ErrValidation))

	empty, err := models.DecodeInstituicaoPatch(strings.NewReader(`{}`))
	require.NoError(t, err)
	same, err := s.Update(ctx, 12345, 2023, empty)
	require.NoError(t, err)
	assert.Equal(t, got, same)
}
