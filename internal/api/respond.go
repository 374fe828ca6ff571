package api

import (
	"encoding/json"
	"net/http"

	"parkgrid/internal/errors"
)

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// writeError maps error kinds to HTTP statuses and always returns a
// structured body so the caller can decide whether to retry, pick another
// slot, or abandon.
func writeError(w http.ResponseWriter, err error) {
	status := errors.HTTPStatus(err)
	body := map[string]string{"error": err.Error()}
	if kind := errors.KindOf(err); kind != "" {
		body["kind"] = string(kind)
	}
	writeJSON(w, status, body)
}
