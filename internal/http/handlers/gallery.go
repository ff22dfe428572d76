package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"server/internal/infra"
	"server/internal/middleware"
	"server/internal/sqlinline"
)

type artistDTO struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Studio    string    `json:"studio"`
	City      string    `json:"city"`
	Country   string    `json:"country"`
	Styles    []string  `json:"styles"`
	Instagram string    `json:"instagram"`
	CreatedAt time.Time `json:"createdAt"`
}

type tattooDTO struct {
	ID        string    `json:"id"`
	ArtistID  string    `json:"artistId"`
	ImageURL  string    `json:"imageUrl"`
	Styles    []string  `json:"styles"`
	BodyParts []string  `json:"bodyParts"`
	Color     string    `json:"color"`
	Size      string    `json:"size"`
	LikeCount int       `json:"likeCount"`
	CreatedAt time.Time `json:"createdAt"`
}

// ArtistsList returns all visible artists.
func (a *App) ArtistsList(w http.ResponseWriter, r *http.Request) {
	rows, err := a.SQL.Query(r.Context(), sqlinline.QSelectArtists)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to load artists")
		return
	}
	defer rows.Close()

	items := []artistDTO{}
	for rows.Next() {
		var artist artistDTO
		if err := rows.Scan(&artist.ID, &artist.Name, &artist.Studio, &artist.City, &artist.Country, &artist.Styles, &artist.Instagram, &artist.CreatedAt); err != nil {
			continue
		}
		items = append(items, artist)
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}

// ArtistGet returns one visible artist together with portfolio stats.
func (a *App) ArtistGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid artist id")
		return
	}
	var artist artistDTO
	row := a.SQL.QueryRow(r.Context(), sqlinline.QSelectArtistByID, id)
	if err := row.Scan(&artist.ID, &artist.Name, &artist.Studio, &artist.City, &artist.Country, &artist.Styles, &artist.Instagram, &artist.CreatedAt); err != nil {
		if infra.IsNoRows(err) {
			a.error(w, http.StatusNotFound, "not_found", "artist not found")
			return
		}
		a.error(w, http.StatusInternalServerError, "internal", "failed to load artist")
		return
	}

	var tattooCount, likeTotal, inquiryCount int
	statsRow := a.SQL.QueryRow(r.Context(), sqlinline.QSelectArtistStats, id)
	if err := statsRow.Scan(&tattooCount, &likeTotal, &inquiryCount); err != nil {
		a.Logger.Warn().Err(err).Str("artist", id).Msg("load artist stats failed")
	}
	a.json(w, http.StatusOK, map[string]any{
		"artist": artist,
		"stats": map[string]int{
			"tattoos":   tattooCount,
			"likes":     likeTotal,
			"inquiries": inquiryCount,
		},
	})
}

// TattoosList returns visible tattoos, filtered by artist or by gallery
// facets.
func (a *App) TattoosList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if artistID := q.Get("artistId"); artistID != "" {
		if _, err := uuid.Parse(artistID); err != nil {
			a.error(w, http.StatusBadRequest, "bad_request", "invalid artist id")
			return
		}
		rows, err := a.SQL.Query(r.Context(), sqlinline.QSelectTattoosByArtist, artistID)
		if err != nil {
			a.error(w, http.StatusInternalServerError, "internal", "failed to load tattoos")
			return
		}
		a.respondTattoos(w, rows)
		return
	}

	limit := 100
	if v, err := strconv.Atoi(q.Get("limit")); err == nil && v > 0 && v <= 200 {
		limit = v
	}
	rows, err := a.SQL.Query(r.Context(), sqlinline.QSelectTattoosFiltered,
		splitCSV(q.Get("styles")), splitCSV(q.Get("bodyParts")),
		q.Get("color"), q.Get("size"), limit)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to load tattoos")
		return
	}
	a.respondTattoos(w, rows)
}

func (a *App) respondTattoos(w http.ResponseWriter, rows pgx.Rows) {
	defer rows.Close()
	items := []tattooDTO{}
	for rows.Next() {
		var t tattooDTO
		if err := rows.Scan(&t.ID, &t.ArtistID, &t.ImageURL, &t.Styles, &t.BodyParts, &t.Color, &t.Size, &t.LikeCount, &t.CreatedAt); err != nil {
			continue
		}
		items = append(items, t)
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}

// TattooLikeToggle likes or unlikes a tattoo for the authenticated user and
// refreshes the denormalized counter.
func (a *App) TattooLikeToggle(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	tattooID := chi.URLParam(r, "id")
	if _, err := uuid.Parse(tattooID); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid tattoo id")
		return
	}

	tag, err := a.SQL.Exec(r.Context(), sqlinline.QInsertLike, tattooID, userID)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to record like")
		return
	}
	liked := tag.RowsAffected() > 0
	if !liked {
		// Insert was a no-op, so the like already existed: toggle it off.
		if _, err := a.SQL.Exec(r.Context(), sqlinline.QDeleteLike, tattooID, userID); err != nil {
			a.error(w, http.StatusInternalServerError, "internal", "failed to remove like")
			return
		}
	}
	if _, err := a.SQL.Exec(r.Context(), sqlinline.QRefreshTattooLikeCount, tattooID); err != nil {
		a.Logger.Warn().Err(err).Str("tattoo", tattooID).Msg("refresh like count failed")
	}
	a.json(w, http.StatusOK, map[string]any{"liked": liked})
}

// LikesList returns the tattoos the authenticated user has liked.
func (a *App) LikesList(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	rows, err := a.SQL.Query(r.Context(), sqlinline.QSelectLikedTattoosByUser, userID)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to load likes")
		return
	}
	a.respondTattoos(w, rows)
}

type inquiryRequest struct {
	ArtistID     string `json:"artistId"`
	Message      string `json:"message"`
	ContactEmail string `json:"contactEmail"`
}

// InquiryCreate records a consultation inquiry for an artist. The country
// comes from the request context resolved by the i18n middleware.
func (a *App) InquiryCreate(w http.ResponseWriter, r *http.Request) {
	var req inquiryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if _, err := uuid.Parse(req.ArtistID); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid artist id")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "message required")
		return
	}
	userID := a.currentUserID(r)
	if userID == "" && strings.TrimSpace(req.ContactEmail) == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "contactEmail required for anonymous inquiries")
		return
	}

	country := middleware.CountryFromContext(r.Context())
	row := a.SQL.QueryRow(r.Context(), sqlinline.QInsertInquiry,
		req.ArtistID, userID, req.Message, strings.TrimSpace(req.ContactEmail), country)
	var inquiryID string
	if err := row.Scan(&inquiryID); err != nil {
		a.Logger.Error().Err(err).Msg("record inquiry failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to record inquiry")
		return
	}
	a.json(w, http.StatusCreated, map[string]any{"id": inquiryID})
}

func splitCSV(raw string) []string {
	items := []string{}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			items = append(items, part)
		}
	}
	return items
}
