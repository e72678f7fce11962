package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dennisdiepolder/monti/console/internal/backend"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeBackendError maps a backend failure onto the console response
func writeBackendError(w http.ResponseWriter, err error) {
	var (
		ve *backend.ValidationError
		ce *backend.CommandError
		fe *backend.FetchError
	)
	switch {
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, ve.Error())
	case errors.As(err, &ce):
		status := http.StatusBadGateway
		if ce.Status == http.StatusConflict || ce.Status == http.StatusBadRequest {
			status = ce.Status
		}
		writeError(w, status, ce.Error())
	case errors.As(err, &fe) && fe.Kind == backend.KindHTTP && fe.Status == http.StatusNotFound:
		writeError(w, http.StatusNotFound, fe.Error())
	case errors.As(err, &fe) && fe.Kind == backend.KindNetwork:
		writeError(w, http.StatusBadGateway, "backend unavailable")
	default:
		writeError(w, http.StatusBadGateway, err.Error())
	}
}
