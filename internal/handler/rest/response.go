package hrest

import (
	"encoding/json"
	"errors"
	"net/http"

	"settlement-service/internal/pkg/xerrors"
)

type APIResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := APIResponse{
		Status: "success",
		Data:   data,
	}
	_ = json.NewEncoder(w).Encode(resp)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := APIResponse{
		Status:  "error",
		Message: msg,
	}
	_ = json.NewEncoder(w).Encode(resp)
}

// respondDomainError maps the core's typed outcomes onto HTTP statuses.
// The mapping lives only here; the core never sees HTTP.
func respondDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, xerrors.ErrInvalidInput):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, xerrors.ErrAccountNotFound),
		errors.Is(err, xerrors.ErrTransactionNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, xerrors.ErrAlreadySettled),
		errors.Is(err, xerrors.ErrOwnerAlreadyExists):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, xerrors.ErrInsufficientFunds):
		respondError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, xerrors.ErrStorageUnavailable):
		// Driver detail stays in the logs, not in the body.
		respondError(w, http.StatusServiceUnavailable, xerrors.ErrStorageUnavailable.Error())
	default:
		respondError(w, http.StatusInternalServerError, "internal server error")
	}
}
