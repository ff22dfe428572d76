package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"server/internal/sqlinline"
)

// The unnamed filter set saved through PUT /api/preferences.
const defaultFilterSetName = "default"

type filterSetRequest struct {
	Name            string   `json:"name"`
	Styles          []string `json:"styles"`
	BodyParts       []string `json:"bodyParts"`
	ColorPreference string   `json:"colorPreference"`
	SizePreference  string   `json:"sizePreference"`
	UserEmail       string   `json:"userEmail"`
}

type filterSetDTO struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Styles          []string  `json:"styles"`
	BodyParts       []string  `json:"bodyParts"`
	ColorPreference string    `json:"colorPreference"`
	SizePreference  string    `json:"sizePreference"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// PreferencesGet lists the caller's saved filter sets.
func (a *App) PreferencesGet(w http.ResponseWriter, r *http.Request) {
	identityKey, _, _, err := a.identity(r, r.URL.Query().Get("email"))
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "a user identity or email is required")
		return
	}
	rows, err := a.SQL.Query(r.Context(), sqlinline.QSelectFilterSetsByUser, identityKey)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to load preferences")
		return
	}
	defer rows.Close()

	items := []filterSetDTO{}
	for rows.Next() {
		var fs filterSetDTO
		if err := rows.Scan(&fs.ID, &fs.Name, &fs.Styles, &fs.BodyParts, &fs.ColorPreference, &fs.SizePreference, &fs.UpdatedAt); err != nil {
			continue
		}
		items = append(items, fs)
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}

// PreferencesPut upserts the caller's default filter set.
func (a *App) PreferencesPut(w http.ResponseWriter, r *http.Request) {
	a.saveFilterSet(w, r, defaultFilterSetName)
}

// FilterSetCreate upserts a named filter set.
func (a *App) FilterSetCreate(w http.ResponseWriter, r *http.Request) {
	a.saveFilterSet(w, r, "")
}

func (a *App) saveFilterSet(w http.ResponseWriter, r *http.Request, forcedName string) {
	var req filterSetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	name := forcedName
	if name == "" {
		name = req.Name
	}
	if name == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "name required")
		return
	}
	identityKey, _, _, err := a.identity(r, req.UserEmail)
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "a user identity or email is required")
		return
	}

	row := a.SQL.QueryRow(r.Context(), sqlinline.QUpsertFilterSet,
		identityKey, name, req.Styles, req.BodyParts, req.ColorPreference, req.SizePreference)
	var id string
	if err := row.Scan(&id); err != nil {
		a.Logger.Error().Err(err).Msg("save filter set failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to save preferences")
		return
	}
	a.json(w, http.StatusOK, map[string]any{"id": id, "name": name})
}

// FilterSetDelete removes one of the caller's filter sets.
func (a *App) FilterSetDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid filter set id")
		return
	}
	identityKey, _, _, err := a.identity(r, r.URL.Query().Get("email"))
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "a user identity or email is required")
		return
	}
	tag, err := a.SQL.Exec(r.Context(), sqlinline.QDeleteFilterSet, id, identityKey)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to delete filter set")
		return
	}
	if tag.RowsAffected() == 0 {
		a.error(w, http.StatusNotFound, "not_found", "filter set not found")
		return
	}
	a.json(w, http.StatusOK, map[string]any{"deleted": true})
}
