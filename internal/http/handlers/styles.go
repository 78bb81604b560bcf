package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"studio/internal/domain"
	"studio/internal/middleware"
	"studio/internal/styles"
	"studio/internal/workflow"
)

type stylesResponse struct {
	Styles []domain.SavedStyle `json:"styles"`
}

type styleResponse struct {
	Style   domain.SavedStyle `json:"style"`
	Warning string            `json:"warning,omitempty"`
}

func (a *App) ListStyles(w http.ResponseWriter, r *http.Request) {
	list, err := a.Styles.List(r.Context())
	if err != nil {
		a.fail(w, r, err, nil)
		return
	}
	if list == nil {
		list = []domain.SavedStyle{}
	}
	a.json(w, http.StatusOK, stylesResponse{Styles: list})
}

// ImportStyle analyzes an uploaded image and adds it to the library.
func (a *App) ImportStyle(w http.ResponseWriter, r *http.Request) {
	img, err := a.ingestUpload(w, r)
	if err != nil {
		a.fail(w, r, err, nil)
		return
	}
	// The library keeps a thumbnail, not the upload.
	defer a.releasePreview(r, img)
	style, err := a.Styles.ImportFromImage(r.Context(), middleware.LanguageFromContext(r.Context()), img)
	a.styleSaved(w, r, style, err)
}

// SaveStyle stores the analysis of the session's current director result.
func (a *App) SaveStyle(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.session(w, r)
	if !ok {
		return
	}
	st := sess.Workflow.State()
	res, ok := st.Result.Director()
	if !ok {
		a.fail(w, r, domain.ErrNoResult, nil)
		return
	}
	style, err := a.Styles.SaveCurrent(r.Context(), styles.SaveRequest{
		Result:        res,
		SourceStyleID: st.Origin.StyleID,
		StyleImage:    st.Origin.Image,
	})
	a.styleSaved(w, r, style, err)
}

// styleSaved reports a new style. A persistence failure still returns the
// style since it stays in the library until the process exits.
func (a *App) styleSaved(w http.ResponseWriter, r *http.Request, style domain.SavedStyle, err error) {
	var perr *domain.PersistenceError
	switch {
	case err == nil:
		a.json(w, http.StatusCreated, styleResponse{Style: style})
	case errors.As(err, &perr) && style.ID != "":
		a.Logger.Warn().Err(err).Str("style_id", style.ID).Msg("style kept in memory only")
		a.json(w, http.StatusCreated, styleResponse{Style: style, Warning: "the style could not be saved permanently"})
	default:
		a.fail(w, r, err, nil)
	}
}

// SelectStyle makes a saved style the style source of the session.
func (a *App) SelectStyle(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.session(w, r)
	if !ok {
		return
	}
	style, err := a.Styles.Select(r.Context(), chi.URLParam(r, "styleID"))
	if err != nil {
		a.fail(w, r, err, nil)
		return
	}
	st, err := sess.Workflow.Update(func(s workflow.State) (workflow.State, error) {
		return s.SelectStyle(style.ID, style.Analysis), nil
	})
	if err != nil {
		a.fail(w, r, err, viewState(sess, st))
		return
	}
	a.json(w, http.StatusOK, viewState(sess, st))
}

func (a *App) ClearStyleSelection(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.session(w, r)
	if !ok {
		return
	}
	st, err := sess.Workflow.Update(func(s workflow.State) (workflow.State, error) {
		return s.ClearStyle(""), nil
	})
	if err != nil {
		a.fail(w, r, err, viewState(sess, st))
		return
	}
	a.json(w, http.StatusOK, viewState(sess, st))
}

// DeleteStyle removes a style when called with confirm=true and clears it
// from every session that had it selected.
func (a *App) DeleteStyle(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "styleID")
	confirmed, _ := strconv.ParseBool(r.URL.Query().Get("confirm"))
	if err := a.Styles.Delete(r.Context(), id, confirmed); err != nil {
		var perr *domain.PersistenceError
		if !errors.As(err, &perr) {
			a.fail(w, r, err, nil)
			return
		}
		a.Logger.Warn().Err(err).Str("style_id", id).Msg("style deleted in memory only")
	}
	a.Sessions.ForgetStyle(id)
	w.WriteHeader(http.StatusNoContent)
}

// ExportStyles downloads the library as a zip archive.
func (a *App) ExportStyles(w http.ResponseWriter, r *http.Request) {
	archive, err := a.Styles.Export(r.Context())
	if err != nil {
		a.fail(w, r, err, nil)
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="style-library.zip"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(archive)
}
