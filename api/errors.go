package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jmcleod/certhand/ca"
	"github.com/jmcleod/certhand/storage"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

func mapError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ca.ErrCertNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ca.ErrRequestNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ca.ErrAlreadyRevoked):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ca.ErrAlreadyIssued):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ca.ErrDisallowedAltNames):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
