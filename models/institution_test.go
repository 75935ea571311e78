package models_test

import (
	"strings"
	"testing"

	"github.com/nonsonwune/censo_db/errors"
	"github.com/nonsonwune/censo_db/models"
	"github.com/nonsonwune/censo_db/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const escolaX = `{
	"CO_ENTIDADE": 12345,
	"ano": 2023,
	"NO_ENTIDADE": "Escola X",
	"NO_MUNICIPIO": "Campinas",
	"CO_UF": 35,
	"NO_UF": "São Paulo",
	"SG_UF": "sp",
	"QT_MAT_BAS": 120
}`

func TestTargetsMatchSchema(t *testing.T) {
	inst := &models.Instituicao{}
	assert.Len(t, inst.Targets(), len(schema.Instituicoes.Fields))
	assert.Len(t, inst.Values(), len(schema.Instituicoes.Fields))
}

func TestDecodeInstituicao(t *testing.T) {
	inst, err := models.DecodeInstituicao(strings.NewReader(escolaX))
	require.NoError(t, err)

	assert.Equal(t, int64(12345), inst.CoEntidade)
	assert.Equal(t, 2023, inst.Ano)
	assert.Equal(t, "Escola X", inst.NoEntidade)
	assert.Equal(t, "SP", inst.SgUF)
	assert.Equal(t, 35, *inst.CoUF)
	assert.Equal(t, 120, *inst.QtMatBas)
	// Defaults from the create schema.
	assert.Equal(t, 0, *inst.QtMatInf)
	assert.Equal(t, 0, *inst.QtMatFund)
	assert.Nil(t, inst.QtMatMed)
	assert.Equal(t, "", inst.NoRegiao)
}

func TestDecodeInstituicaoStringNumbers(t *testing.T) {
	// Form posts send numbers as strings.
	body := strings.Replace(escolaX, `"CO_ENTIDADE": 12345`, `"CO_ENTIDADE": "12345"`, 1)
	inst, err := models.DecodeInstituicao(strings.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, int64(12345), inst.CoEntidade)
}

func TestDecodeInstituicaoErrors(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{name: "missing", body: `{"CO_ENTIDADE": 1}`, field: "NO_ENTIDADE"},
		{name: "short name", body: strings.Replace(escolaX, `"Escola X"`, `"EX"`, 1), field: "NO_ENTIDADE"},
		{name: "sigla length", body: strings.Replace(escolaX, `"sp"`, `"SPA"`, 1), field: "SG_UF"},
		{name: "unknown", body: strings.Replace(escolaX, `"ano": 2023`, `"ano": 2023, "foo": 1`, 1), field: "foo"},
		{name: "negative", body: strings.Replace(escolaX, `"QT_MAT_BAS": 120`, `"QT_MAT_BAS": -1`, 1), field: "QT_MAT_BAS"},
		{name: "not integer", body: strings.Replace(escolaX, `"ano": 2023`, `"ano": "dois mil"`, 1), field: "ano"},
		{name: "null required", body: strings.Replace(escolaX, `"CO_UF": 35`, `"CO_UF": null`, 1), field: "CO_UF"},
		{name: "text type", body: strings.Replace(escolaX, `"Campinas"`, `42`, 1), field: "NO_MUNICIPIO"},
		{name: "not object", body: `[1, 2]`, field: "_schema"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := models.DecodeInstituicao(strings.NewReader(test.body))
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrValidation))

			var fe models.FieldErrors
			require.True(t, errors.As(err, &fe))
			assert.Contains(t, fe, test.field)
		})
	}
}

func TestDecodeInstituicaoPatch(t *testing.T) {
	patch, err := models.DecodeInstituicaoPatch(strings.NewReader(`{"QT_MAT_FUND": 300, "NO_ENTIDADE": "Escola Y", "QT_MAT_MED": null}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"NO_ENTIDADE", "QT_MAT_FUND", "QT_MAT_MED"}, patch.Columns())

	inst := &models.Instituicao{NoEntidade: "Escola X", QtMatMed: models.IntPtr(9), QtMatInf: models.IntPtr(4)}
	require.NoError(t, patch.Apply(inst))
	assert.Equal(t, "Escola Y", inst.NoEntidade)
	assert.Equal(t, 300, *inst.QtMatFund)
	assert.Nil(t, inst.QtMatMed)
	assert.Equal(t, 4, *inst.QtMatInf)

	_, err = models.DecodeInstituicaoPatch(strings.NewReader(`{"SG_UF": "SPX"}`))
	assert.True(t, errors.Is(err, errors.ErrValidation))

	empty, err := models.DecodeInstituicaoPatch(strings.NewReader(`{}`))
	require.NoError(t, err)
	assert.True(t, empty.Empty())
}

func TestPagination(t *testing.T) {
	p := models.NewPagination(3, 20, 45)
	assert.Equal(t, int64(3), p.TotalPages)
	assert.Equal(t, int64(40), p.Offset())

	assert.Equal(t, int64(0), models.NewPagination(1, 20, 0).TotalPages)
	assert.Equal(t, int64(2), models.NewPagination(1, 20, 40).TotalPages)
}

func TestView(t *testing.T) {
	inst := &models.Instituicao{CoEntidade: 12345, Ano: 2023, NoEntidade: "Escola X", SgUF: "SP", QtMatInf: models.IntPtr(3)}
	v := inst.View()
	assert.Equal(t, int64(12345), v.ID)
	assert.Equal(t, "Escola X", v.Nome)
	assert.Equal(t, "SP", v.UFSigla)
	assert.Equal(t, 3, *v.QtMatInf)
}
