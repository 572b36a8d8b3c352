package handlers

import (
	"net/http"
	"strings"

	"coparent/backend/middleware"
	"coparent/backend/services"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/hlog"
)

// SyncUser creates or refreshes the caller's profile after sign-in. The
// email of a verified token wins over the one in the body.
func SyncUser(w http.ResponseWriter, r *http.Request) {
	var in services.SyncUserInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	in.ID = middleware.UserIDFromContext(r.Context())
	if email := middleware.EmailFromContext(r.Context()); email != "" {
		in.Email = email
	}
	in.Administrator = cfg.IsAdminEmail(strings.TrimSpace(in.Email))

	u, err := services.SyncUser(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	hlog.FromRequest(r).Info().Str("user_id", u.ID).Str("role", u.Role).Msg("Synced user")
	writeJSON(w, http.StatusOK, u)
}

func GetMe(w http.ResponseWriter, r *http.Request) {
	u, err := services.GetUser(r.Context(), principal(r).UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := services.ListUsersByRole(r.Context(), principal(r), r.URL.Query().Get("role"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func SetUserRole(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Role string `json:"role"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	if err := services.SetUserRole(r.Context(), principal(r), mux.Vars(r)["id"], body.Role); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
