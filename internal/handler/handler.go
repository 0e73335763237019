package handler

import (
	"encoding/json"
	"net/http"

	"techshop/internal/model"

	"github.com/rs/zerolog"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Log the error but don't expose it to the client
		return
	}
}

// writeError writes an error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string, logger zerolog.Logger) {
	logger.Error().Str("error", message).Int("status", status).Msg("handler error")
	writeJSON(w, status, ErrorResponse{Error: message})
}

// writeDomainError maps a service-layer error onto an HTTP status via its
// domain code. Unknown errors become a generic 500 without leaking detail.
func writeDomainError(w http.ResponseWriter, err error, logger zerolog.Logger) {
	code := model.ErrorCode(err)
	status := statusForCode(code)

	message := "internal server error"
	if status != http.StatusInternalServerError {
		message = err.Error()
	}

	logger.Error().
		Err(err).
		Str("code", code).
		Int("status", status).
		Msg("handler error")

	writeJSON(w, status, ErrorResponse{Error: message, Code: code})
}

func statusForCode(code string) int {
	switch code {
	case model.ErrCodeOrderNotFound:
		return http.StatusNotFound
	case model.ErrCodeForbidden:
		return http.StatusForbidden
	case model.ErrCodeUnauthorised:
		return http.StatusUnauthorized
	case model.ErrCodeOutOfStock,
		model.ErrCodeInsufficientStock,
		model.ErrCodeTerminalState,
		model.ErrCodeInvalidState:
		return http.StatusConflict
	case model.ErrCodeWindowExpired:
		return http.StatusUnprocessableEntity
	case model.ErrCodeEmptyCart,
		model.ErrCodeInvalidJSON,
		model.ErrCodeMissingField,
		model.ErrCodeInvalidQuantity,
		model.ErrCodeProductNotFound,
		model.ErrCodeInvalidVoucher,
		model.ErrCodeReasonRequired,
		model.ErrCodeInvalidSignature:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
