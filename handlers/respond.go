package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"coparent/backend/config"
	"coparent/backend/middleware"
	"coparent/backend/models"
	"coparent/backend/services"

	"github.com/rs/zerolog/hlog"
)

// maxJSONBody bounds every JSON request body.
const maxJSONBody = 1 << 20

// cfg is the server configuration, set by Configure.
var cfg = &config.Config{}

// Configure hands the server configuration to the handlers.
func Configure(c *config.Config) {
	cfg = c
}

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps service errors onto status codes. Unexpected errors are
// logged and hidden from the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *services.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: ve.Message, Field: ve.Field})
	case errors.Is(err, services.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, services.ErrForbidden):
		writeJSON(w, http.StatusForbidden, errorResponse{Error: "you do not have permission to do this"})
	case errors.Is(err, services.ErrConflict):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	default:
		hlog.FromRequest(r).Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
}

// decodeJSON reads the request body into v. A malformed body is reported
// as a validation error.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	if err := dec.Decode(v); err != nil {
		return &services.ValidationError{Message: "invalid request body: " + err.Error()}
	}
	return nil
}

func principal(r *http.Request) models.Principal {
	p, _ := middleware.PrincipalFromContext(r.Context())
	return p
}

func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
