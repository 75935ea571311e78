package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/nonsonwune/censo_db/errors"
	"github.com/nonsonwune/censo_db/models"
)

const (
	msgValidation = "Erro de validação"
	msgNotFound   = "Instituição não encontrada"
	msgConflict   = "Uma instituição com este ID e ano já existe."
	msgInternal   = "Ocorreu um erro interno no servidor."
)

// errorResponse is the body of every error answer. The web front-end reads
// message, and errors when present.
type errorResponse struct {
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// badRequest builds a BadRequest error for one query parameter.
func badRequest(param, message string) error {
	return errors.WithCode(models.FieldErrors{param: {message}}, errors.ErrBadRequest, message)
}

// writeError maps err to its status code. Unexpected errors are logged and
// answered with a generic 500 that reveals nothing about the cause.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var fields models.FieldErrors
	errors.As(err, &fields)

	switch errors.CodeOf(err) {
	case errors.ErrValidation:
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: msgValidation, Errors: fields})
	case errors.ErrBadRequest:
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: errors.Message(err), Errors: fields})
	case errors.ErrNotFound:
		writeJSON(w, http.StatusNotFound, errorResponse{Message: msgNotFound})
	case errors.ErrConflict:
		writeJSON(w, http.StatusConflict, errorResponse{Message: msgConflict})
	default:
		logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"code", string(errors.CodeOf(err)),
			"err", err,
			"request_id", requestIDFrom(r.Context()))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Message: msgInternal})
	}
}
