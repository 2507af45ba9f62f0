package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/stockscan/stockscan/internal/app"
	"github.com/stockscan/stockscan/internal/cooldown"
)

// jsonError represents a JSON error payload.
type jsonError struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// WriteJSONError writes a JSON error payload with the given status code.
func WriteJSONError(w http.ResponseWriter, status int, message, details string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(jsonError{Error: message, Details: details})
}

// writeOperationError maps a submit failure onto a status and stable code.
func writeOperationError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, app.ErrDuplicateBlocked):
		WriteJSONError(w, http.StatusTooManyRequests, "duplicate_blocked", err.Error())
	case errors.Is(err, cooldown.ErrCooldownActive):
		WriteJSONError(w, http.StatusTooManyRequests, "cooldown_active", err.Error())
	case errors.Is(err, app.ErrInsufficientStock):
		WriteJSONError(w, http.StatusUnprocessableEntity, "insufficient_stock", err.Error())
	default:
		WriteJSONError(w, http.StatusBadGateway, "store_error", err.Error())
	}
}
