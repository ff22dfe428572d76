package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"server/internal/http/handlers"
	"server/internal/middleware"
)

// NewRouter wires every route behind the shared middleware chain. The
// generation route additionally carries a per-IP rate limit: a single
// request can hold a paid vendor busy for minutes.
func NewRouter(app *handlers.App, lookup middleware.CountryLookup, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(app.Logger))
	r.Use(middleware.CORS(allowedOrigins))
	r.Use(middleware.I18N("en", lookup))

	r.Get("/v1/healthz", app.Health)

	r.Route("/api", func(r chi.Router) {
		// Payment-gated generation accepts anonymous paid-by-email callers,
		// so auth here is optional and identity falls back to the payload.
		r.Group(func(r chi.Router) {
			r.Use(middleware.OptionalAuthJWT(app.Config.JWTSecret))
			r.With(middleware.RateLimit(app.Config.RateLimitPerMin, time.Minute)).
				Post("/generate-tattoo", app.GenerateTattoo)

			r.Route("/payments", func(r chi.Router) {
				r.Post("/checkout-session", app.PaymentsCheckoutSession)
				r.Post("/record", app.PaymentsRecord)
				r.Post("/verify-email", app.PaymentsVerifyEmail)
			})

			r.Get("/usage", app.UsageGet)

			r.Get("/generated", app.GeneratedList)
			r.Get("/generated/download", app.GeneratedDownload)
			r.Get("/generated/{id}", app.GeneratedGet)

			r.Route("/preferences", func(r chi.Router) {
				r.Get("/", app.PreferencesGet)
				r.Put("/", app.PreferencesPut)
				r.Post("/filter-sets", app.FilterSetCreate)
				r.Delete("/filter-sets/{id}", app.FilterSetDelete)
			})

			r.Post("/inquiries", app.InquiryCreate)
		})

		r.Get("/artists", app.ArtistsList)
		r.Get("/artists/{id}", app.ArtistGet)
		r.Get("/tattoos", app.TattoosList)

		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthJWT(app.Config.JWTSecret))
			r.Post("/tattoos/{id}/like", app.TattooLikeToggle)
			r.Get("/me/likes", app.LikesList)

			r.Route("/admin", func(r chi.Router) {
				r.Patch("/artists/{id}/visibility", app.AdminArtistVisibility)
				r.Patch("/tattoos/{id}/visibility", app.AdminTattooVisibility)
			})
		})
	})

	return r
}
