package models

// InstituicaoView is the JSON shape returned by the HTTP resources. The first
// block of keys is what the web front-end reads; the rest exposes the
// remaining columns under the same naming.
type InstituicaoView struct {
	ID        int64  `json:"id"`
	Nome      string `json:"nome"`
	Municipio string `json:"municipio"`
	UFCodigo  *int   `json:"uf_codigo"`
	UFNome    string `json:"uf_nome"`
	UFSigla   string `json:"uf_sigla"`
	QtMatInf  *int   `json:"qt_mat_inf"`
	QtMatFund *int   `json:"qt_mat_fund"`
	Ano       int    `json:"ano"`

	Regiao          string `json:"regiao"`
	RegiaoCodigo    *int   `json:"regiao_codigo"`
	MunicipioCodigo *int   `json:"municipio_codigo"`
	Mesorregiao     string `json:"mesorregiao"`
	Microrregiao    string `json:"microrregiao"`
	QtMatBas        *int   `json:"qt_mat_bas"`
	QtMatMed        *int   `json:"qt_mat_med"`
	QtMatEja        *int   `json:"qt_mat_eja"`
	QtMatEjaFund    *int   `json:"qt_mat_eja_fund"`
	QtMatEsp        *int   `json:"qt_mat_esp"`
	QtMatBasEad     *int   `json:"qt_mat_bas_ead"`
	QtMatFundInt    *int   `json:"qt_mat_fund_int"`
	QtMatMedInt     *int   `json:"qt_mat_med_int"`
}

// View converts the row into its HTTP representation.
func (i *Instituicao) View() InstituicaoView {
	return InstituicaoView{
		ID:        i.CoEntidade,
		Nome:      i.NoEntidade,
		Municipio: i.NoMunicipio,
		UFCodigo:  i.CoUF,
		UFNome:    i.NoUF,
		UFSigla:   i.SgUF,
		QtMatInf:  i.QtMatInf,
		QtMatFund: i.QtMatFund,
		Ano:       i.Ano,

		Regiao:          i.NoRegiao,
		RegiaoCodigo:    i.CoRegiao,
		MunicipioCodigo: i.CoMunicipio,
		Mesorregiao:     i.NoMesorregiao,
		Microrregiao:    i.NoMicrorregiao,
		QtMatBas:        i.QtMatBas,
		QtMatMed:        i.QtMatMed,
		QtMatEja:        i.QtMatEja,
		QtMatEjaFund:    i.QtMatEjaFund,
		QtMatEsp:        i.QtMatEsp,
		QtMatBasEad:     i.QtMatBasEad,
		QtMatFundInt:    i.QtMatFundInt,
		QtMatMedInt:     i.QtMatMedInt,
	}
}

// Pagination describes one page of a listing.
type Pagination struct {
	Page       int   `json:"page"`
	PerPage    int   `json:"per_page"`
	TotalItems int64 `json:"total_items"`
	TotalPages int64 `json:"total_pages"`
}

// NewPagination computes the page count with a ceiling division.
func NewPagination(page, perPage int, totalItems int64) Pagination {
	var pages int64
	if perPage > 0 {
		pages = (totalItems + int64(perPage) - 1) / int64(perPage)
	}
	return Pagination{
		Page:       page,
		PerPage:    perPage,
		TotalItems: totalItems,
		TotalPages: pages,
	}
}

// Offset is the number of rows skipped before the page starts.
func (p Pagination) Offset() int64 {
	if p.Page < 1 {
		return 0
	}
	return int64(p.Page-1) * int64(p.PerPage)
}

// InstituicaoPage is the response of the listing endpoint.
type InstituicaoPage struct {
	Items      []InstituicaoView `json:"items"`
	Pagination Pagination        `json:"pagination"`
}
