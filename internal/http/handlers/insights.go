package handlers

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"studio/internal/middleware"
)

// GetInsights activates the market panel. By default it answers at once with a
// pending snapshot; wait=true blocks until the fetch finished.
func (a *App) GetInsights(w http.ResponseWriter, r *http.Request) {
	lang := middleware.LanguageFromContext(r.Context())
	if wait, _ := strconv.ParseBool(r.URL.Query().Get("wait")); wait {
		a.json(w, http.StatusOK, a.Insights.Activate(r.Context(), lang))
		return
	}
	a.json(w, http.StatusOK, a.Insights.ActivateInBackground(lang))
}

func (a *App) RefreshInsights(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, a.Insights.Refresh(r.Context(), middleware.LanguageFromContext(r.Context())))
}

func (a *App) SelectInsightEvent(w http.ResponseWriter, r *http.Request) {
	name, err := url.PathUnescape(chi.URLParam(r, "name"))
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid event name")
		return
	}
	snap, err := a.Insights.SelectEvent(middleware.LanguageFromContext(r.Context()), name)
	if err != nil {
		a.fail(w, r, err, nil)
		return
	}
	a.json(w, http.StatusOK, snap)
}
