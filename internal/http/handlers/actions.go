package handlers

import (
	"context"
	"net/http"

	"studio/internal/workflow"
)

type actionFunc func(c *workflow.Controller, ctx context.Context) (workflow.State, error)

// action runs one AI-backed workflow step and reports the resulting state.
// Failures still carry the state so the recorded error can be shown.
func (a *App) action(run actionFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := a.session(w, r)
		if !ok {
			return
		}
		st, err := run(sess.Workflow, r.Context())
		if err != nil {
			a.fail(w, r, err, viewState(sess, st))
			return
		}
		a.json(w, http.StatusOK, viewState(sess, st))
	}
}

func (a *App) Generate(w http.ResponseWriter, r *http.Request) {
	a.action((*workflow.Controller).Generate)(w, r)
}

func (a *App) Refine(w http.ResponseWriter, r *http.Request) {
	a.action((*workflow.Controller).Refine)(w, r)
}

func (a *App) Advance(w http.ResponseWriter, r *http.Request) {
	a.action((*workflow.Controller).Advance)(w, r)
}

func (a *App) Retry(w http.ResponseWriter, r *http.Request) {
	a.action((*workflow.Controller).Retry)(w, r)
}

func (a *App) GenerateSeo(w http.ResponseWriter, r *http.Request) {
	a.action((*workflow.Controller).GenerateSeo)(w, r)
}
