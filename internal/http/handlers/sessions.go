package handlers

import (
	"net/http"
	"strings"

	"studio/internal/middleware"
	"studio/internal/workflow"
)

type createSessionRequest struct {
	Mode string `json:"mode"`
}

type updateSessionRequest struct {
	Mode        *string `json:"mode"`
	Language    *string `json:"language"`
	Feedback    *string `json:"feedback"`
	Requirement *string `json:"requirement"`
}

// CreateSession starts a workflow in the requested mode, director by default.
func (a *App) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if !a.decode(w, r, &req) {
		return
	}
	mode := workflow.ModeDirector
	if strings.TrimSpace(req.Mode) != "" {
		m, err := workflow.ParseMode(req.Mode)
		if err != nil {
			a.fail(w, r, err, nil)
			return
		}
		mode = m
	}
	sess := a.Sessions.Create(mode, middleware.LanguageFromContext(r.Context()))
	a.json(w, http.StatusCreated, viewState(sess, sess.Workflow.State()))
}

func (a *App) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.session(w, r)
	if !ok {
		return
	}
	a.json(w, http.StatusOK, viewState(sess, sess.Workflow.State()))
}

// UpdateSession switches mode or narrative language and edits the free-text
// inputs. A mode switch starts over.
func (a *App) UpdateSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.session(w, r)
	if !ok {
		return
	}
	var req updateSessionRequest
	if !a.decode(w, r, &req) {
		return
	}
	st, err := sess.Workflow.Update(func(s workflow.State) (workflow.State, error) {
		if req.Mode != nil {
			m, err := workflow.ParseMode(*req.Mode)
			if err != nil {
				return s, err
			}
			s = s.WithMode(m)
		}
		if req.Language != nil {
			s = s.WithLanguage(middleware.MatchLanguage(*req.Language))
		}
		if req.Feedback != nil {
			s = s.WithFeedback(*req.Feedback)
		}
		if req.Requirement != nil {
			s = s.WithRequirement(*req.Requirement)
		}
		return s, nil
	})
	if err != nil {
		a.fail(w, r, err, viewState(sess, st))
		return
	}
	a.json(w, http.StatusOK, viewState(sess, st))
}

func (a *App) ResetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.session(w, r)
	if !ok {
		return
	}
	st, err := sess.Workflow.Reset()
	if err != nil {
		a.fail(w, r, err, viewState(sess, st))
		return
	}
	a.json(w, http.StatusOK, viewState(sess, st))
}

func (a *App) DeleteSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.session(w, r)
	if !ok {
		return
	}
	a.Sessions.Delete(sess.ID)
	w.WriteHeader(http.StatusNoContent)
}
