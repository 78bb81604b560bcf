package handlers

import (
	"time"

	"studio/internal/domain"
	"studio/internal/session"
	"studio/internal/workflow"
)

// mediaView describes an attachment without its payload.
type mediaView struct {
	Kind     domain.MediaKind `json:"kind"`
	MIMEType string           `json:"mimeType,omitempty"`
	Preview  string           `json:"preview,omitempty"`
	Filename string           `json:"filename,omitempty"`
	Text     string           `json:"text,omitempty"`
	Size     int              `json:"size,omitempty"`
}

func viewMedia(m domain.MediaDescriptor) *mediaView {
	if m.IsZero() {
		return nil
	}
	return &mediaView{
		Kind:     m.Kind(),
		MIMEType: m.MIMEType(),
		Preview:  m.PreviewHandle(),
		Filename: m.Filename(),
		Text:     m.Text(),
		Size:     m.Size(),
	}
}

type inputsView struct {
	Source      *mediaView `json:"source,omitempty"`
	Style       *mediaView `json:"style,omitempty"`
	StyleID     string     `json:"styleId,omitempty"`
	Subject     *mediaView `json:"subject,omitempty"`
	Good        *mediaView `json:"good,omitempty"`
	Bad         *mediaView `json:"bad,omitempty"`
	Extra       *mediaView `json:"extra,omitempty"`
	Feedback    string     `json:"feedback,omitempty"`
	Requirement string     `json:"requirement,omitempty"`
}

type stateView struct {
	SessionID  string          `json:"sessionId"`
	CreatedAt  time.Time       `json:"createdAt"`
	Mode       workflow.Mode   `json:"mode"`
	Phase      workflow.Phase  `json:"phase"`
	Language   string          `json:"language"`
	Loading    bool            `json:"loading"`
	LastError  string          `json:"lastError,omitempty"`
	LastAction workflow.Action `json:"lastAction,omitempty"`
	Result     workflow.Result `json:"result"`
	Inputs     inputsView      `json:"inputs"`
	Dictation  dictationView   `json:"dictation"`
}

type dictationView struct {
	Available bool `json:"available"`
	Listening bool `json:"listening"`
}

func viewState(sess *session.Session, s workflow.State) *stateView {
	in := s.Inputs
	return &stateView{
		SessionID:  sess.ID,
		CreatedAt:  sess.CreatedAt,
		Mode:       s.Mode,
		Phase:      s.Phase,
		Language:   s.Language.String(),
		Loading:    s.Loading,
		LastError:  s.LastError,
		LastAction: s.LastAction,
		Result:     s.Result,
		Inputs: inputsView{
			Source:      viewMedia(in.Source),
			Style:       viewMedia(in.StyleImage),
			StyleID:     in.StyleID,
			Subject:     viewMedia(in.Subject),
			Good:        viewMedia(in.Good),
			Bad:         viewMedia(in.Bad),
			Extra:       viewMedia(in.Extra),
			Feedback:    in.Feedback,
			Requirement: in.Requirement,
		},
		Dictation: dictationView{
			Available: sess.Dictation.Available(),
			Listening: sess.Dictation.Listening(),
		},
	}
}
