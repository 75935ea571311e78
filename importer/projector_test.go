package importer_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/nonsonwune/censo_db/errors"
	"github.com/nonsonwune/censo_db/importer"
	"github.com/nonsonwune/censo_db/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProject(t *testing.T) {
	p, err := importer.NewProjection([]string{"b", "a"}, map[string]string{"a": "alpha"})
	require.NoError(t, err)

	in := []importer.Record{
		{"a": 1, "b": "x", "c": true},
		{"c": false, "b": "y", "a": 2},
	}
	rs, err := p.Project(in)
	require.NoError(t, err)

	assert.Equal(t, []string{"b", "alpha"}, rs.Columns)
	assert.Equal(t, [][]interface{}{{"x", 1}, {"y", 2}}, rs.Rows)
	// Input untouched.
	assert.Len(t, in[0], 3)
	assert.Equal(t, true, in[0]["c"])
}

func TestProjectMissingColumn(t *testing.T) {
	p, err := importer.NewProjection([]string{"a", "b"}, nil)
	require.NoError(t, err)

	_, err = p.Project([]importer.Record{{"a": 1, "b": 2}, {"a": 3}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrSchemaMismatch))
}

func TestNewProjectionDuplicateTarget(t *testing.T) {
	_, err := importer.NewProjection([]string{"a", "b"}, map[string]string{"b": "a"})
	assert.True(t, errors.Is(err, errors.ErrSchemaMismatch))
}

const municipioJSON = `{
	"id": 1100015,
	"nome": "Alta Floresta D'Oeste",
	"microrregiao": {
		"id": 11006,
		"nome": "Cacoal",
		"mesorregiao": {
			"id": 1102,
			"nome": "Leste Rondoniense",
			"UF": {
				"id": 11,
				"sigla": "RO",
				"nome": "Rondônia",
				"regiao": {"id": 1, "sigla": "N", "nome": "Norte"}
			}
		}
	},
	"regiao-imediata": {"id": 110005, "nome": "Cacoal"}
}`

func decodeObject(t *testing.T, s string) map[string]interface{} {
	t.Helper()
	dec := json.NewDecoder(bytes.NewBufferString(s))
	dec.UseNumber()
	var obj map[string]interface{}
	require.NoError(t, dec.Decode(&obj))
	return obj
}

func TestProjectMunicipio(t *testing.T) {
	rec := importer.Flatten(decodeObject(t, municipioJSON))
	assert.Equal(t, "RO", rec["microrregiao.mesorregiao.UF.sigla"])

	rs, err := importer.TableProjection(schema.Municipios).Project([]importer.Record{rec})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"id", "nome",
		"microrregiao_id", "microrregiao_nome",
		"mesorregiao_id", "mesorregiao_nome",
		"uf_id", "uf_sigla", "uf_nome",
		"regiao_id", "regiao_sigla", "regiao_nome",
	}, rs.Columns)

	row := rs.Map(0)
	assert.Equal(t, json.Number("1100015"), row["id"])
	assert.Equal(t, "Cacoal", row["microrregiao_nome"])
	assert.Equal(t, json.Number("1102"), row["mesorregiao_id"])
	assert.Equal(t, "RO", row["uf_sigla"])
	assert.Equal(t, "Rondônia", row["uf_nome"])
	assert.Equal(t, "Norte", row["regiao_nome"])
}

func TestProjectNullParent(t *testing.T) {
	rec := importer.Flatten(decodeObject(t, `{"id": 5300108, "nome": "Brasília", "microrregiao": null}`))

	rs, err := importer.TableProjection(schema.Municipios).Project([]importer.Record{rec})
	require.NoError(t, err)
	row := rs.Map(0)
	assert.Equal(t, "Brasília", row["nome"])
	assert.Nil(t, row["uf_sigla"])
	assert.Nil(t, row["regiao_id"])
}

func TestProjectStrict(t *testing.T) {
	meso := `{"id": 1102, "nome": "Leste Rondoniense", "UF": {"id": 11, "sigla": "RO", "nome": "Rondônia", "regiao": {"id": 1, "sigla": "N", "nome": "Norte"}}}`
	p := importer.TableProjection(schema.Mesorregioes)
	require.True(t, p.Strict)

	rs, err := p.Project([]importer.Record{importer.Flatten(decodeObject(t, meso))})
	require.NoError(t, err)
	assert.Equal(t, "Norte", rs.Map(0)["UF_regiao_nome"])

	changed := `{"id": 1102, "nome": "Leste Rondoniense", "codigo": "x", "UF": {"id": 11, "sigla": "RO", "nome": "Rondônia", "regiao": {"id": 1, "sigla": "N", "nome": "Norte"}}}`
	_, err = p.Project([]importer.Record{importer.Flatten(decodeObject(t, changed))})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrSchemaMismatch))
	assert.Contains(t, err.Error(), "codigo")
}

func TestFlatten(t *testing.T) {
	rec := importer.Flatten(map[string]interface{}{
		"a":     map[string]interface{}{"b": map[string]interface{}{"c": 1}},
		"empty": map[string]interface{}{},
		"list":  []interface{}{1, "x"},
		"nil":   nil,
	})
	assert.Equal(t, importer.Record{
		"a.b.c": 1,
		"empty": nil,
		"list":  `[1,"x"]`,
		"nil":   nil,
	}, rec)
}

func TestRecordSetStamp(t *testing.T) {
	rs := &importer.RecordSet{Columns: []string{"a"}, Rows: [][]interface{}{{1}, {2}}}
	rs.Stamp("ano", 2023)
	assert.Equal(t, []string{"a", "ano"}, rs.Columns)
	assert.Equal(t, map[string]interface{}{"a": 2, "ano": 2023}, rs.Map(1))
	assert.Equal(t, 1, rs.Slice(1, 2).Len())
}
