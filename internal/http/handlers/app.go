package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"studio/internal/domain"
	"studio/internal/infra"
	"studio/internal/insights"
	"studio/internal/media"
	"studio/internal/session"
	"studio/internal/styles"
)

const maxJSONBody = 1 << 20

// PreviewReader serves stored upload previews back to the browser.
type PreviewReader interface {
	Read(ctx context.Context, key string) ([]byte, error)
}

// App carries the dependencies shared by every handler.
type App struct {
	Sessions *session.Store
	Styles   *styles.Library
	Insights *insights.Fetcher
	Ingestor *media.Ingestor
	Previews PreviewReader
	Logger   infra.Logger
}

type errorBody struct {
	Error errorDetail `json:"error"`
	State *stateView  `json:"state,omitempty"`
}

type errorDetail struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, status int, code, message string) {
	a.json(w, status, errorBody{Error: errorDetail{Code: code, Message: message}})
}

// fail maps a domain error onto a status code. state, when non-nil, is sent
// along so the client can render the recorded failure.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error, state *stateView) {
	status, detail := classify(err)
	if status >= http.StatusInternalServerError {
		a.Logger.Warn().Err(err).Str("path", r.URL.Path).Int("status", status).Msg("request failed")
	}
	a.json(w, status, errorBody{Error: detail, State: state})
}

func classify(err error) (int, errorDetail) {
	var (
		verr *domain.ValidationError
		eerr *domain.EncodingError
		gerr *domain.GatewayError
		perr *domain.PersistenceError
		cerr *domain.CapabilityUnavailableError
	)
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, errorDetail{Code: "validation_failed", Message: verr.Error()}
	case errors.As(err, &eerr):
		return http.StatusUnprocessableEntity, errorDetail{Code: "unreadable_file", Message: eerr.Error()}
	case errors.As(err, &gerr):
		return http.StatusBadGateway, errorDetail{Code: "ai_unavailable", Message: gerr.Message, Retryable: true}
	case errors.As(err, &perr):
		return http.StatusInsufficientStorage, errorDetail{Code: "storage_failed", Message: "the style library could not be saved"}
	case errors.As(err, &cerr):
		return http.StatusNotImplemented, errorDetail{Code: "capability_unavailable", Message: cerr.Error()}
	case errors.Is(err, domain.ErrBusy):
		return http.StatusConflict, errorDetail{Code: "busy", Message: err.Error(), Retryable: true}
	case errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict, errorDetail{Code: "invalid_transition", Message: err.Error()}
	case errors.Is(err, domain.ErrConfirmationRequired):
		return http.StatusPreconditionRequired, errorDetail{Code: "confirmation_required", Message: err.Error()}
	case errors.Is(err, domain.ErrNoResult), errors.Is(err, domain.ErrNoLastAction):
		return http.StatusConflict, errorDetail{Code: "nothing_to_do", Message: err.Error()}
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, errorDetail{Code: "not_found", Message: "not found"}
	}
	return http.StatusInternalServerError, errorDetail{Code: "internal", Message: "unexpected error"}
}

func (a *App) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return false
	}
	return true
}

// session resolves the {id} route parameter, writing a 404 when absent.
func (a *App) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, err := a.Sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		a.error(w, http.StatusNotFound, "session_not_found", "session not found or expired")
		return nil, false
	}
	return sess, true
}
