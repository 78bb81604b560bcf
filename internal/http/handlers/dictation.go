package handlers

import (
	"errors"
	"io"
	"net/http"

	"studio/internal/dictation"
	"studio/internal/domain"
	"studio/internal/workflow"
)

type startDictationRequest struct {
	MIMEType string `json:"mimeType"`
}

type dictationResponse struct {
	Text  string     `json:"text"`
	State *stateView `json:"state"`
}

func (a *App) StartDictation(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.session(w, r)
	if !ok {
		return
	}
	var req startDictationRequest
	if !a.decode(w, r, &req) {
		return
	}
	if err := sess.Dictation.Start(req.MIMEType); err != nil {
		a.fail(w, r, err, nil)
		return
	}
	a.json(w, http.StatusOK, viewState(sess, sess.Workflow.State()))
}

// DictationAudio appends the raw request body to the running recording.
func (a *App) DictationAudio(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.session(w, r)
	if !ok {
		return
	}
	chunk, err := io.ReadAll(http.MaxBytesReader(w, r.Body, dictation.MaxRecordingBytes))
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			a.fail(w, r, domain.NewValidationError("dictation", "recording is too long"), nil)
			return
		}
		a.error(w, http.StatusBadRequest, "bad_request", "could not read audio")
		return
	}
	if err := sess.Dictation.Write(chunk); err != nil {
		a.fail(w, r, err, nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// StopDictation transcribes the recording and appends it to the feedback.
func (a *App) StopDictation(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.session(w, r)
	if !ok {
		return
	}
	text, err := sess.Dictation.Stop(r.Context(), sess.Workflow.State().Language)
	if err != nil {
		a.fail(w, r, err, nil)
		return
	}
	st, err := sess.Workflow.Update(func(s workflow.State) (workflow.State, error) {
		return s.AppendFeedback(text), nil
	})
	if err != nil {
		a.fail(w, r, err, viewState(sess, st))
		return
	}
	a.json(w, http.StatusOK, dictationResponse{Text: text, State: viewState(sess, st)})
}
