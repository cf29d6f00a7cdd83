package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/anilistx/internal/shared"
)

const maxBodyBytes = 1 << 20

// errorBody is the JSON error envelope. Extra keys are merged alongside "error".
type errorBody map[string]any

func respond(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respond(w, status, errorBody{"error": msg})
}

// statusFor maps the shared error taxonomy onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, shared.ErrInvalidInput),
		errors.Is(err, shared.ErrInvalidArgument),
		errors.Is(err, shared.ErrMissingArgument):
		return http.StatusBadRequest
	case errors.Is(err, shared.ErrUnauthorized), errors.Is(err, shared.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, shared.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, shared.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, shared.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, shared.ErrServiceUnavailable),
		errors.Is(err, shared.ErrRateLimited),
		errors.Is(err, shared.ErrTimeout),
		errors.Is(err, shared.ErrAPIRequest):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// respondErr writes err with its mapped status. Server-side failures are logged and their
// details withheld; fallback replaces the generic 500 message when non-empty.
func respondErr(w http.ResponseWriter, r *http.Request, logger *log.Logger, err error, fallback string) {
	status := statusFor(err)
	msg := err.Error()
	switch {
	case status == http.StatusInternalServerError:
		logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		msg = "Internal server error"
		if fallback != "" {
			msg = fallback
		}
	case status == http.StatusBadGateway:
		logger.Warn("upstream failure", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	respondError(w, status, msg)
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
}

// queryInt parses an optional integer query parameter; absent yields def.
func queryInt(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q", shared.ErrInvalidArgument, key, v)
	}
	return n, nil
}
