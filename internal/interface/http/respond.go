package http

import (
	"encoding/json"
	"net/http"

	"github.com/ctf-hub/ctf-community-hub/internal/domain/shared"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), errorResponse{Error: publicMessage(err)})
}

// statusFor maps domain error kinds to HTTP status codes.
func statusFor(err error) int {
	switch {
	case shared.IsNotFound(err):
		return http.StatusNotFound
	case shared.IsValidation(err):
		return http.StatusBadRequest
	case shared.IsConstraintViolation(err):
		return http.StatusConflict
	case shared.IsAlreadyDecided(err):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// publicMessage keeps storage internals out of responses; client-caused
// errors pass through as-is.
func publicMessage(err error) string {
	if shared.IsStorageFailure(err) || shared.IsCorruptRecord(err) {
		return "internal error"
	}
	return err.Error()
}
