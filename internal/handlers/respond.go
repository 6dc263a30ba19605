package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"ingest-control-plane/internal/repository"
)

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// writeRepoError maps store sentinels onto HTTP statuses: not-found and
// conflict are distinct caller-visible outcomes, everything else is internal.
func writeRepoError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		http.Error(w, "Not found", http.StatusNotFound)
	case errors.Is(err, repository.ErrSourceInactive):
		http.Error(w, "Source not active", http.StatusConflict)
	case errors.Is(err, repository.ErrInvalidTransition):
		http.Error(w, "Invalid status transition", http.StatusConflict)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
