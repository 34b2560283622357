package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/elibrary/backend/models"
	"github.com/elibrary/backend/service"
)

// Envelope is the JSON shape of every response from this API:
// {"success": bool, "message": "...", "data": {...}} on success,
// {"success": false, "message": "..."} on failure.
type Envelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, env Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(env)
}

func writeSuccess(w http.ResponseWriter, message string, data interface{}) {
	writeJSON(w, http.StatusOK, Envelope{Success: true, Message: message, Data: data})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, Envelope{Success: false, Message: message})
}

// writeServiceError maps engagement errors onto HTTP statuses. Anything not
// in the taxonomy is a persistence or internal failure.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrUserNotFound),
		errors.Is(err, service.ErrBookNotFound),
		errors.Is(err, models.ErrEntryNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, models.ErrDuplicateEntry):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "server error")
	}
}
