package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/hlog"

	"github.com/robalobadob/dailypuzzle/internal/game"
)

// errorBody is the shape of every error response.
type errorBody struct {
	Error   string `json:"error"`
	Details string `json:"details"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusOf maps an error code onto an HTTP status.
func statusOf(code string) int {
	switch code {
	case game.ErrCodeInvalidInput:
		return http.StatusBadRequest
	case game.ErrCodeAuthorization:
		return http.StatusUnauthorized
	case game.ErrCodeNotFound:
		return http.StatusNotFound
	case game.ErrCodeSessionTerminal, game.ErrCodeAttemptLimit:
		return http.StatusConflict
	case game.ErrCodeStorage, game.ErrCodePoolExhausted:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err as {error, details}. Engine errors expose their
// message; anything else is logged and reported as INTERNAL.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var e *game.Error
	if !errors.As(err, &e) {
		hlog.FromRequest(r).Error().Err(err).Msg("unhandled error")
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "INTERNAL", Details: "internal error"})
		return
	}
	status := statusOf(e.Code)
	if status >= 500 {
		hlog.FromRequest(r).Error().Err(err).Str("code", e.Code).Msg("request failed")
	}
	writeJSON(w, status, errorBody{Error: e.Code, Details: e.Message})
}
