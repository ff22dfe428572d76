package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"server/internal/sqlinline"
)

type visibilityRequest struct {
	Hidden bool `json:"hidden"`
}

// requireAdmin checks the caller's email against the configured allowlist.
func (a *App) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	email := a.currentUserEmail(r)
	if email == "" || !a.Config.IsAdminEmail(email) {
		a.error(w, http.StatusForbidden, "forbidden", "admin access required")
		return false
	}
	return true
}

// AdminArtistVisibility hides or unhides an artist in the gallery.
func (a *App) AdminArtistVisibility(w http.ResponseWriter, r *http.Request) {
	a.setVisibility(w, r, sqlinline.QSetArtistHidden, "artist")
}

// AdminTattooVisibility hides or unhides a single tattoo.
func (a *App) AdminTattooVisibility(w http.ResponseWriter, r *http.Request) {
	a.setVisibility(w, r, sqlinline.QSetTattooHidden, "tattoo")
}

func (a *App) setVisibility(w http.ResponseWriter, r *http.Request, query, kind string) {
	if !a.requireAdmin(w, r) {
		return
	}
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid "+kind+" id")
		return
	}
	var req visibilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	tag, err := a.SQL.Exec(r.Context(), query, id, req.Hidden)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to update visibility")
		return
	}
	if tag.RowsAffected() == 0 {
		a.error(w, http.StatusNotFound, "not_found", kind+" not found")
		return
	}
	a.json(w, http.StatusOK, map[string]any{"id": id, "hidden": req.Hidden})
}
