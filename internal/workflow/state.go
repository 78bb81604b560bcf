// Package workflow owns the per-session creative workflow: which phase it is
// in, the active result and the attachments that feed the next call.
package workflow

import (
	"encoding/json"
	"strings"

	"golang.org/x/text/language"

	"studio/internal/domain"
)

// Phase is the current pipeline stage of the director workflow.
type Phase string

const (
	PhaseImagePrompt Phase = "image-prompt"
	PhaseVideoPrompt Phase = "video-prompt"
)

// Mode selects which result shape the workflow produces.
type Mode string

const (
	ModeDirector Mode = "director"
	ModeStockSeo Mode = "stock-seo"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.TrimSpace(s)) {
	case ModeDirector:
		return ModeDirector, nil
	case ModeStockSeo:
		return ModeStockSeo, nil
	}
	return "", domain.NewValidationError("mode", "mode must be director or stock-seo")
}

// Action names a dispatched call, kept so a failed call can be retried.
type Action string

const (
	ActionNone     Action = ""
	ActionGenerate Action = "generate"
	ActionRefine   Action = "refine"
	ActionAdvance  Action = "advance"
	ActionSeo      Action = "seo"
)

// ResultKind tags the active result.
type ResultKind string

const (
	ResultNone     ResultKind = "none"
	ResultDirector ResultKind = "director"
	ResultStockSeo ResultKind = "stock-seo"
)

// Result holds at most one of the two result shapes.
type Result struct {
	kind     ResultKind
	director domain.DirectorResult
	seo      domain.StockSeoResult
}

// DirectorOutcome wraps a director result.
func DirectorOutcome(r domain.DirectorResult) Result {
	return Result{kind: ResultDirector, director: r}
}

// SeoOutcome wraps a stock SEO result.
func SeoOutcome(r domain.StockSeoResult) Result {
	r.Titles = append([]string(nil), r.Titles...)
	return Result{kind: ResultStockSeo, seo: r}
}

// Kind reports which variant is held.
func (r Result) Kind() ResultKind {
	if r.kind == "" {
		return ResultNone
	}
	return r.kind
}

// Director returns the director variant.
func (r Result) Director() (domain.DirectorResult, bool) {
	return r.director, r.kind == ResultDirector
}

// StockSeo returns the stock SEO variant.
func (r Result) StockSeo() (domain.StockSeoResult, bool) {
	if r.kind != ResultStockSeo {
		return domain.StockSeoResult{}, false
	}
	out := r.seo
	out.Titles = append([]string(nil), r.seo.Titles...)
	return out, true
}

func (r Result) MarshalJSON() ([]byte, error) {
	switch r.Kind() {
	case ResultDirector:
		return json.Marshal(struct {
			Kind     ResultKind            `json:"kind"`
			Director domain.DirectorResult `json:"director"`
		}{ResultDirector, r.director})
	case ResultStockSeo:
		return json.Marshal(struct {
			Kind     ResultKind            `json:"kind"`
			StockSeo domain.StockSeoResult `json:"stockSeo"`
		}{ResultStockSeo, r.seo})
	}
	return json.Marshal(struct {
		Kind ResultKind `json:"kind"`
	}{ResultNone})
}

// Slot names an attachment position.
type Slot string

const (
	SlotSource  Slot = "source"
	SlotStyle   Slot = "style"
	SlotSubject Slot = "subject"
	SlotGood    Slot = "good"
	SlotBad     Slot = "bad"
	SlotExtra   Slot = "extra"
)

// ParseSlot validates a slot name.
func ParseSlot(s string) (Slot, error) {
	switch slot := Slot(strings.TrimSpace(s)); slot {
	case SlotSource, SlotStyle, SlotSubject, SlotGood, SlotBad, SlotExtra:
		return slot, nil
	}
	return "", domain.NewValidationError("slot", "unknown attachment slot")
}

// Inputs are the attachments and texts that feed the next call. A style
// image and a saved style are mutually exclusive.
type Inputs struct {
	Source      domain.MediaDescriptor
	StyleImage  domain.MediaDescriptor
	StyleID     string
	StyleText   string
	Subject     domain.MediaDescriptor
	Good        domain.MediaDescriptor
	Bad         domain.MediaDescriptor
	Extra       domain.MediaDescriptor
	Feedback    string
	Requirement string
}

// Media returns the descriptor in a slot.
func (in Inputs) Media(slot Slot) domain.MediaDescriptor {
	switch slot {
	case SlotSource:
		return in.Source
	case SlotStyle:
		return in.StyleImage
	case SlotSubject:
		return in.Subject
	case SlotGood:
		return in.Good
	case SlotBad:
		return in.Bad
	case SlotExtra:
		return in.Extra
	}
	return domain.MediaDescriptor{}
}

// original is the reference every director recipe compares against.
func (in Inputs) original() domain.MediaDescriptor {
	switch {
	case !in.Source.IsZero():
		return in.Source
	case !in.StyleImage.IsZero():
		return in.StyleImage
	default:
		return in.Subject
	}
}

// Previews lists the preview handles the inputs reference.
func (in Inputs) Previews() []string {
	var handles []string
	for _, m := range []domain.MediaDescriptor{in.Source, in.StyleImage, in.Subject, in.Good, in.Bad, in.Extra} {
		if h := m.PreviewHandle(); h != "" {
			handles = append(handles, h)
		}
	}
	return handles
}

func (in Inputs) hasStyle() bool {
	return !in.StyleImage.IsZero() || strings.TrimSpace(in.StyleText) != ""
}

// StyleOrigin is the style source the current director result was generated
// from: a saved style or an uploaded style image. It is zero for results
// without a style.
type StyleOrigin struct {
	StyleID string
	Image   domain.MediaDescriptor
}

// IsZero reports whether the result had no style source.
func (o StyleOrigin) IsZero() bool { return o.StyleID == "" && o.Image.IsZero() }

// State is one session's workflow. Values are snapshots; the controller is the
// only writer.
type State struct {
	Mode       Mode
	Phase      Phase
	Result     Result
	Origin     StyleOrigin
	Loading    bool
	LastError  string
	LastAction Action
	Language   language.Tag
	Inputs     Inputs
}

// NewState returns the initial state of a workflow.
func NewState(mode Mode, lang language.Tag) State {
	if mode == "" {
		mode = ModeDirector
	}
	return State{Mode: mode, Phase: PhaseImagePrompt, Language: lang}
}

// Reset re-enters the image-prompt phase with no result or attachments.
func (s State) Reset() State {
	return NewState(s.Mode, s.Language)
}

// WithMode switches mode. The result shape changes, so everything else resets.
func (s State) WithMode(mode Mode) State {
	if mode == s.Mode {
		return s
	}
	return NewState(mode, s.Language)
}

// WithLanguage sets the narrative language.
func (s State) WithLanguage(lang language.Tag) State {
	s.Language = lang
	return s
}

// Attach places media in a slot. Good must be an image, bad an image or a
// video. Attaching a style image drops any selected saved style.
func (s State) Attach(slot Slot, m domain.MediaDescriptor) (State, error) {
	switch slot {
	case SlotSource:
		s.Inputs.Source = m
	case SlotStyle:
		if m.Kind() == domain.MediaVideo {
			return s, domain.NewValidationError("style", "a style source must be an image or a description")
		}
		s.Inputs.StyleImage = m
		s.Inputs.StyleID = ""
		s.Inputs.StyleText = ""
	case SlotSubject:
		s.Inputs.Subject = m
	case SlotGood:
		if m.Kind() != domain.MediaImage {
			return s, domain.NewValidationError("good", "the confirmed result must be an image")
		}
		s.Inputs.Good = m
	case SlotBad:
		if !m.IsBinary() {
			return s, domain.NewValidationError("bad", "the bad result must be an image or a video")
		}
		s.Inputs.Bad = m
	case SlotExtra:
		s.Inputs.Extra = m
	default:
		return s, domain.NewValidationError("slot", "unknown attachment slot")
	}
	return s, nil
}

// Detach clears a slot.
func (s State) Detach(slot Slot) State {
	switch slot {
	case SlotSource:
		s.Inputs.Source = domain.MediaDescriptor{}
	case SlotStyle:
		s.Inputs.StyleImage = domain.MediaDescriptor{}
	case SlotSubject:
		s.Inputs.Subject = domain.MediaDescriptor{}
	case SlotGood:
		s.Inputs.Good = domain.MediaDescriptor{}
	case SlotBad:
		s.Inputs.Bad = domain.MediaDescriptor{}
	case SlotExtra:
		s.Inputs.Extra = domain.MediaDescriptor{}
	}
	return s
}

// SelectStyle uses a saved style's analysis as the style source and drops any
// uploaded style image.
func (s State) SelectStyle(id, analysis string) State {
	s.Inputs.StyleID = id
	s.Inputs.StyleText = analysis
	s.Inputs.StyleImage = domain.MediaDescriptor{}
	return s
}

// ClearStyle drops the saved style selection if it is id. An empty id always clears.
func (s State) ClearStyle(id string) State {
	if id == "" || s.Inputs.StyleID == id {
		s.Inputs.StyleID = ""
		s.Inputs.StyleText = ""
	}
	return s
}

// WithFeedback replaces the refinement feedback.
func (s State) WithFeedback(text string) State {
	s.Inputs.Feedback = text
	return s
}

// AppendFeedback adds dictated text to the feedback.
func (s State) AppendFeedback(text string) State {
	text = strings.TrimSpace(text)
	if text == "" {
		return s
	}
	if cur := strings.TrimSpace(s.Inputs.Feedback); cur != "" {
		s.Inputs.Feedback = cur + " " + text
	} else {
		s.Inputs.Feedback = text
	}
	return s
}

// WithRequirement replaces the free-text fusion requirement.
func (s State) WithRequirement(text string) State {
	s.Inputs.Requirement = text
	return s
}

// phaseBad returns the bad-result media when it matches the phase.
func (s State) phaseBad() domain.MediaDescriptor {
	want := domain.MediaImage
	if s.Phase == PhaseVideoPrompt {
		want = domain.MediaVideo
	}
	if s.Inputs.Bad.Kind() == want {
		return s.Inputs.Bad
	}
	return domain.MediaDescriptor{}
}

// Field returns a textual field of the active result, for copying.
func (s State) Field(name string) (string, error) {
	if d, ok := s.Result.Director(); ok {
		switch name {
		case "title":
			return nonEmpty(d.Title)
		case "analysis":
			return nonEmpty(d.Analysis)
		case "prompt":
			return nonEmpty(d.Prompt)
		}
	}
	if seo, ok := s.Result.StockSeo(); ok {
		switch name {
		case "bestTitle":
			return nonEmpty(seo.BestTitle)
		case "keywords":
			return nonEmpty(seo.Keywords)
		case "title1", "title2":
			idx := int(name[len(name)-1] - '1')
			if idx < len(seo.Titles) {
				return nonEmpty(seo.Titles[idx])
			}
			return "", domain.ErrNotFound
		}
	}
	if s.Result.Kind() == ResultNone {
		return "", domain.ErrNoResult
	}
	return "", domain.ErrNotFound
}

func nonEmpty(s string) (string, error) {
	if strings.TrimSpace(s) == "" {
		return "", domain.ErrNotFound
	}
	return s, nil
}
