package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"consentra/agreement"
	"consentra/auth"
	"consentra/notification"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func readJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}

// writeDomainError maps service errors onto HTTP statuses. Unrecognized
// errors become opaque 500s so persistence details never leak to callers.
func writeDomainError(w http.ResponseWriter, err error) {
	var (
		validationErr *agreement.ValidationError
		stateErr      *agreement.InvalidStateError
	)

	switch {
	case errors.As(err, &validationErr):
		writeError(w, http.StatusBadRequest, validationErr.Error())
	case errors.As(err, &stateErr):
		writeError(w, http.StatusConflict, stateErr.Error())
	case errors.Is(err, agreement.ErrNotFound),
		errors.Is(err, notification.ErrNotFound),
		errors.Is(err, auth.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, agreement.ErrEmailUndeliverable):
		writeError(w, http.StatusBadGateway, err.Error())
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, auth.ErrDuplicateEmail),
		errors.Is(err, auth.ErrWeakPassword):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
