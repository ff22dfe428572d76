package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"server/internal/infra"
	"server/internal/sqlinline"
	"server/pkg/zip"
)

const defaultGeneratedPageSize = 50

type generatedDesignDTO struct {
	ID        string    `json:"id"`
	Prompt    string    `json:"prompt"`
	Styles    []string  `json:"styles"`
	BodyParts []string  `json:"bodyParts"`
	Provider  string    `json:"provider"`
	Model     string    `json:"model"`
	Image     string    `json:"image"`
	MimeType  string    `json:"mimeType"`
	CreatedAt time.Time `json:"createdAt"`
}

// GeneratedList returns the caller's generated designs, newest first.
func (a *App) GeneratedList(w http.ResponseWriter, r *http.Request) {
	identityKey, _, _, err := a.identity(r, r.URL.Query().Get("email"))
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "a user identity or email is required")
		return
	}
	limit := defaultGeneratedPageSize
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 && v <= 200 {
		limit = v
	}

	items, err := a.loadGeneratedDesigns(r, identityKey, limit)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to load designs")
		return
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}

type styleVariantDTO struct {
	Style    string `json:"style"`
	Image    string `json:"image"`
	MimeType string `json:"mimeType"`
}

// GeneratedGet returns one of the caller's designs with its style variants.
// Designs owned by another identity read as not found.
func (a *App) GeneratedGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid design id")
		return
	}
	identityKey, _, _, err := a.identity(r, r.URL.Query().Get("email"))
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "a user identity or email is required")
		return
	}

	var d generatedDesignDTO
	var owner string
	err = a.SQL.QueryRow(r.Context(), sqlinline.QSelectGeneratedDesignByID, id).Scan(
		&d.ID, &owner, &d.Prompt, &d.Styles, &d.BodyParts, &d.Provider, &d.Model, &d.Image, &d.MimeType, &d.CreatedAt)
	if infra.IsNoRows(err) || (err == nil && owner != identityKey) {
		a.error(w, http.StatusNotFound, "not_found", "design not found")
		return
	}
	if err != nil {
		a.Logger.Error().Err(err).Msg("load generated design failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load design")
		return
	}

	variants, err := a.loadStyleVariants(r, d.ID)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to load design")
		return
	}
	a.json(w, http.StatusOK, map[string]any{"design": d, "variants": variants})
}

func (a *App) loadStyleVariants(r *http.Request, designID string) ([]styleVariantDTO, error) {
	rows, err := a.SQL.Query(r.Context(), sqlinline.QSelectStyleVariantsByDesign, designID)
	if err != nil {
		a.Logger.Error().Err(err).Msg("load style variants failed")
		return nil, err
	}
	defer rows.Close()

	variants := []styleVariantDTO{}
	for rows.Next() {
		var v styleVariantDTO
		if err := rows.Scan(&v.Style, &v.Image, &v.MimeType); err != nil {
			continue
		}
		variants = append(variants, v)
	}
	return variants, nil
}

// GeneratedDownload streams the caller's designs as a zip archive.
func (a *App) GeneratedDownload(w http.ResponseWriter, r *http.Request) {
	identityKey, _, _, err := a.identity(r, r.URL.Query().Get("email"))
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "a user identity or email is required")
		return
	}
	items, err := a.loadGeneratedDesigns(r, identityKey, defaultGeneratedPageSize)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to load designs")
		return
	}
	if len(items) == 0 {
		a.error(w, http.StatusNotFound, "not_found", "no designs to download")
		return
	}

	entries := make([]zip.Entry, 0, len(items))
	for i, item := range items {
		name := fmt.Sprintf("design-%02d", i+1)
		if len(item.Styles) > 0 {
			name = fmt.Sprintf("%s-%s", name, item.Styles[0])
		}
		entries = append(entries, zip.Entry{Name: name, MIME: item.MimeType, Base64: item.Image})
	}
	archive, err := zip.ArchiveImages(entries)
	if err != nil {
		a.Logger.Error().Err(err).Msg("archive designs failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to build archive")
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="tattoo-designs.zip"`)
	_, _ = w.Write(archive)
}

func (a *App) loadGeneratedDesigns(r *http.Request, identityKey string, limit int) ([]generatedDesignDTO, error) {
	rows, err := a.SQL.Query(r.Context(), sqlinline.QSelectGeneratedDesignsByUser, identityKey, limit)
	if err != nil {
		a.Logger.Error().Err(err).Msg("load generated designs failed")
		return nil, err
	}
	defer rows.Close()

	items := []generatedDesignDTO{}
	for rows.Next() {
		var d generatedDesignDTO
		if err := rows.Scan(&d.ID, &d.Prompt, &d.Styles, &d.BodyParts, &d.Provider, &d.Model, &d.Image, &d.MimeType, &d.CreatedAt); err != nil {
			continue
		}
		items = append(items, d)
	}
	return items, nil
}
