package importer_test

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/nonsonwune/censo_db/database"
	"github.com/nonsonwune/censo_db/migrations"
	"github.com/nonsonwune/censo_db/schema"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// openDB returns a migrated SQLite store in a temporary directory.
func openDB(t *testing.T) *database.DB {
	t.Helper()
	ctx := context.Background()
	db, err := database.Open(ctx, database.Config{
		Driver: database.DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "censo.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, migrations.InitSchema(ctx, db))
	return db
}

func countRows(t *testing.T, db *database.DB, table string) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM "+db.Dialect.Quote(table)).Scan(&n))
	return n
}

// censusHeader is the export header: every projected column plus one the
// projection drops.
func censusHeader() []string {
	var h []string
	for _, f := range schema.Instituicoes.Fields {
		if !f.Derived {
			h = append(h, f.Name)
		}
	}
	return append(h, "TP_DEPENDENCIA")
}

// censusRow builds an export line for one school with the remaining
// columns left blank.
func censusRow(code int, uf, ufNome, nome string) []string {
	values := map[string]string{
		schema.ColRegiaoNome:     "Sudeste",
		schema.ColRegiaoCodigo:   "3",
		schema.ColUFNome:         ufNome,
		schema.ColUFSigla:        uf,
		schema.ColUFCodigo:       "35",
		schema.ColMunicipioNome:  "Campinas",
		schema.ColEntidadeNome:   nome,
		schema.ColEntidadeCodigo: strconv.Itoa(code),
		"QT_MAT_BAS":             "120",
		"QT_MAT_INF":             "30",
		"TP_DEPENDENCIA":         "2",
	}
	header := censusHeader()
	row := make([]string, len(header))
	for i, h := range header {
		row[i] = values[h]
	}
	return row
}

// writeCensus writes a ';'-separated Latin-1 export and returns its path.
func writeCensus(t *testing.T, dir, name string, rows ...[]string) string {
	t.Helper()
	lines := []string{strings.Join(censusHeader(), ";")}
	for _, r := range rows {
		lines = append(lines, strings.Join(r, ";"))
	}
	text := strings.Join(lines, "\n") + "\n"
	encoded, err := charmap.ISO8859_1.NewEncoder().String(text)
	require.NoError(t, err)

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(encoded), 0o644))
	return path
}
