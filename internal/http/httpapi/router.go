package httpapi

import (
	"net/http"
	"time"

	"studio/internal/http/handlers"
	"studio/internal/infra"
	mw "studio/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Options configures the cross-cutting middleware.
type Options struct {
	AllowedOrigins  []string
	DefaultLanguage string
	CountryLookup   mw.CountryLookup
	RateLimitPerMin int
	Logger          infra.Logger
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		mw.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		mw.CORS(opts.AllowedOrigins),
		mw.I18N(opts.DefaultLanguage, opts.CountryLookup),
		mw.Logger(opts.Logger),
	)

	// Health
	r.Get("/v1/healthz", app.Health)

	r.Get("/v1/previews/*", app.Preview)

	r.Group(func(r chi.Router) {
		if opts.RateLimitPerMin > 0 {
			r.Use(mw.RateLimit(opts.RateLimitPerMin, time.Minute))
		}

		r.Route("/v1/sessions", func(r chi.Router) {
			r.Post("/", app.CreateSession)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", app.GetSession)
				r.Patch("/", app.UpdateSession)
				r.Delete("/", app.DeleteSession)
				r.Post("/reset", app.ResetSession)

				r.Post("/media/{slot}", app.UploadMedia)
				r.Delete("/media/{slot}", app.DetachMedia)
				r.Post("/text", app.AttachText)

				r.Post("/generate", app.Generate)
				r.Post("/refine", app.Refine)
				r.Post("/advance", app.Advance)
				r.Post("/retry", app.Retry)
				r.Post("/seo", app.GenerateSeo)

				r.Get("/fields/{field}", app.CopyField)

				r.Post("/dictation/start", app.StartDictation)
				r.Post("/dictation/audio", app.DictationAudio)
				r.Post("/dictation/stop", app.StopDictation)

				r.Post("/styles/save", app.SaveStyle)
				r.Post("/styles/{styleID}/select", app.SelectStyle)
				r.Delete("/styles/selection", app.ClearStyleSelection)
			})
		})

		r.Route("/v1/styles", func(r chi.Router) {
			r.Get("/", app.ListStyles)
			r.Get("/export", app.ExportStyles)
			r.Post("/import", app.ImportStyle)
			r.Delete("/{styleID}", app.DeleteStyle)
		})

		r.Route("/v1/insights", func(r chi.Router) {
			r.Get("/", app.GetInsights)
			r.Post("/refresh", app.RefreshInsights)
			r.Post("/events/{name}/select", app.SelectInsightEvent)
		})
	})

	return r
}
