package models

import (
	"github.com/nonsonwune/censo_db/errors"
	"github.com/nonsonwune/censo_db/schema"
)

// Instituicao represents one row of the instituicoes table: a school as
// reported by one census year.
type Instituicao struct {
	NoRegiao       string `db:"NO_REGIAO" json:"NO_REGIAO"`
	CoRegiao       *int   `db:"CO_REGIAO" json:"CO_REGIAO"`
	NoUF           string `db:"NO_UF" json:"NO_UF"`
	SgUF           string `db:"SG_UF" json:"SG_UF"`
	CoUF           *int   `db:"CO_UF" json:"CO_UF"`
	NoMunicipio    string `db:"NO_MUNICIPIO" json:"NO_MUNICIPIO"`
	CoMunicipio    *int   `db:"CO_MUNICIPIO" json:"CO_MUNICIPIO"`
	NoMesorregiao  string `db:"NO_MESORREGIAO" json:"NO_MESORREGIAO"`
	NoMicrorregiao string `db:"NO_MICRORREGIAO" json:"NO_MICRORREGIAO"`
	NoEntidade     string `db:"NO_ENTIDADE" json:"NO_ENTIDADE"`
	CoEntidade     int64  `db:"CO_ENTIDADE" json:"CO_ENTIDADE"`
	QtMatBas       *int   `db:"QT_MAT_BAS" json:"QT_MAT_BAS"`
	QtMatInf       *int   `db:"QT_MAT_INF" json:"QT_MAT_INF"`
	QtMatFund      *int   `db:"QT_MAT_FUND" json:"QT_MAT_FUND"`
	QtMatMed       *int   `db:"QT_MAT_MED" json:"QT_MAT_MED"`
	QtMatEja       *int   `db:"QT_MAT_EJA" json:"QT_MAT_EJA"`
	QtMatEjaFund   *int   `db:"QT_MAT_EJA_FUND" json:"QT_MAT_EJA_FUND"`
	QtMatEsp       *int   `db:"QT_MAT_ESP" json:"QT_MAT_ESP"`
	QtMatBasEad    *int   `db:"QT_MAT_BAS_EAD" json:"QT_MAT_BAS_EAD"`
	QtMatFundInt   *int   `db:"QT_MAT_FUND_INT" json:"QT_MAT_FUND_INT"`
	QtMatMedInt    *int   `db:"QT_MAT_MED_INT" json:"QT_MAT_MED_INT"`
	Ano            int    `db:"ano" json:"ano"`
}

// Targets returns pointers to every field, in schema.Instituicoes column
// order, for use with rows.Scan.
func (i *Instituicao) Targets() []interface{} {
	return []interface{}{
		&i.NoRegiao, &i.CoRegiao, &i.NoUF, &i.SgUF, &i.CoUF,
		&i.NoMunicipio, &i.CoMunicipio, &i.NoMesorregiao, &i.NoMicrorregiao,
		&i.NoEntidade, &i.CoEntidade,
		&i.QtMatBas, &i.QtMatInf, &i.QtMatFund, &i.QtMatMed, &i.QtMatEja,
		&i.QtMatEjaFund, &i.QtMatEsp, &i.QtMatBasEad, &i.QtMatFundInt, &i.QtMatMedInt,
		&i.Ano,
	}
}

// Values returns the field values in schema.Instituicoes column order.
func (i *Instituicao) Values() []interface{} {
	return []interface{}{
		i.NoRegiao, nullInt(i.CoRegiao), i.NoUF, i.SgUF, nullInt(i.CoUF),
		i.NoMunicipio, nullInt(i.CoMunicipio), i.NoMesorregiao, i.NoMicrorregiao,
		i.NoEntidade, i.CoEntidade,
		nullInt(i.QtMatBas), nullInt(i.QtMatInf), nullInt(i.QtMatFund), nullInt(i.QtMatMed), nullInt(i.QtMatEja),
		nullInt(i.QtMatEjaFund), nullInt(i.QtMatEsp), nullInt(i.QtMatBasEad), nullInt(i.QtMatFundInt), nullInt(i.QtMatMedInt),
		i.Ano,
	}
}

// Set assigns a coerced value (see schema.Field.Coerce) to column col.
func (i *Instituicao) Set(col string, v interface{}) error {
	cols := schema.Instituicoes.Columns()
	for idx, target := range i.Targets() {
		if cols[idx] != col {
			continue
		}
		switch p := target.(type) {
		case *string:
			s, ok := v.(string)
			if !ok {
				return errors.Newf(errors.ErrValidation, "%s: expected text, got %T", col, v)
			}
			*p = s
		case **int:
			if v == nil {
				*p = nil
				return nil
			}
			n, ok := v.(int64)
			if !ok {
				return errors.Newf(errors.ErrValidation, "%s: expected integer, got %T", col, v)
			}
			m := int(n)
			*p = &m
		case *int64:
			n, ok := v.(int64)
			if !ok {
				return errors.Newf(errors.ErrValidation, "%s: expected integer, got %T", col, v)
			}
			*p = n
		case *int:
			n, ok := v.(int64)
			if !ok {
				return errors.Newf(errors.ErrValidation, "%s: expected integer, got %T", col, v)
			}
			*p = int(n)
		}
		return nil
	}
	return errors.Newf(errors.ErrValidation, "unknown column %s", col)
}

func nullInt(p *int) interface{} {
	if p == nil {
		return nil
	}
	return int64(*p)
}

// IntPtr is a convenience for building optional counters.
func IntPtr(n int) *int {
	return &n
}
