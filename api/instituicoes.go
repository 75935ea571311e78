package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/nonsonwune/censo_db/models"
)

const (
	defaultPerPage = 20
	maxPerPage     = 1000
	maxBodyBytes   = 1 << 20

	msgUFRequired = "O parâmetro 'uf' é obrigatório."
	msgPagination = "Os parâmetros page e per_page devem ser números inteiros positivos."
	msgPerPageMax = "O parâmetro per_page deve ser no máximo 1000."
	msgKey        = "Identificador ou ano inválido."
)

func (h *Handler) handleListInstituicoes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	uf := strings.TrimSpace(q.Get("uf"))
	if uf == "" {
		writeError(w, r, h.logger, badRequest("uf", msgUFRequired))
		return
	}
	page, err := positiveParam(q.Get("page"), 1)
	if err != nil {
		writeError(w, r, h.logger, badRequest("page", msgPagination))
		return
	}
	perPage, err := positiveParam(q.Get("per_page"), defaultPerPage)
	if err != nil {
		writeError(w, r, h.logger, badRequest("per_page", msgPagination))
		return
	}
	if perPage > maxPerPage {
		writeError(w, r, h.logger, badRequest("per_page", msgPerPageMax))
		return
	}

	items, p, err := h.store.List(r.Context(), uf, page, perPage)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	resp := models.InstituicaoPage{Items: make([]models.InstituicaoView, len(items)), Pagination: p}
	for i := range items {
		resp.Items[i] = items[i].View()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handlePostInstituicao(w http.ResponseWriter, r *http.Request) {
	inst, err := models.DecodeInstituicao(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := h.store.Create(r.Context(), inst); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, inst.View())
}

func (h *Handler) handleGetInstituicao(w http.ResponseWriter, r *http.Request) {
	id, ano, err := instituicaoKey(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	inst, err := h.store.Get(r.Context(), id, ano)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, inst.View())
}

// handlePatchInstituicao serves both PUT and PATCH: only the supplied
// fields change. A missing record is reported before a bad body.
func (h *Handler) handlePatchInstituicao(w http.ResponseWriter, r *http.Request) {
	id, ano, err := instituicaoKey(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if _, err := h.store.Get(r.Context(), id, ano); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	patch, err := models.DecodeInstituicaoPatch(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	inst, err := h.store.Update(r.Context(), id, ano, patch)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, inst.View())
}

func (h *Handler) handleDeleteInstituicao(w http.ResponseWriter, r *http.Request) {
	id, ano, err := instituicaoKey(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := h.store.Delete(r.Context(), id, ano); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// instituicaoKey reads (CO_ENTIDADE, ano) from the route. The route only
// matches digits, so failures are overflows.
func instituicaoKey(r *http.Request) (int64, int, error) {
	vars := mux.Vars(r)
	id, err := strconv.ParseInt(vars["id"], 10, 64)
	if err != nil {
		return 0, 0, badRequest("id", msgKey)
	}
	ano, err := strconv.ParseInt(vars["ano"], 10, 32)
	if err != nil {
		return 0, 0, badRequest("ano", msgKey)
	}
	return id, int(ano), nil
}

// positiveParam parses an optional positive integer query parameter.
func positiveParam(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	if n < 1 {
		return 0, strconv.ErrRange
	}
	return n, nil
}
