// Package session keeps one workflow controller and dictation recorder per
// browser session.
package session

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"golang.org/x/text/language"

	"studio/internal/dictation"
	"studio/internal/domain"
	"studio/internal/infra"
	"studio/internal/workflow"
)

// ClipboardWriter receives text the user asked to copy.
type ClipboardWriter interface {
	WriteText(ctx context.Context, text string) error
}

// PreviewReleaser deletes stored previews once no session references them.
type PreviewReleaser interface {
	Release(ctx context.Context, handles ...string) error
}

// Session is one browser session's state.
type Session struct {
	ID        string
	CreatedAt time.Time
	Workflow  *workflow.Controller
	Dictation *dictation.Recorder
}

// CopyField writes a textual field of the active result to the clipboard.
func (s *Session) CopyField(ctx context.Context, field string, clip ClipboardWriter) error {
	text, err := s.Workflow.State().Field(field)
	if err != nil {
		return err
	}
	return clip.WriteText(ctx, text)
}

// Store holds sessions in memory and expires them after ttl of inactivity.
type Store struct {
	sessions    *cache.Cache
	gateway     workflow.Gateway
	transcriber dictation.SpeechTranscriber
	previews    PreviewReleaser
	logger      infra.Logger
	now         func() time.Time
}

// NewStore returns an empty store. transcriber and previews may be nil.
// Deleted and expired sessions release their previews.
func NewStore(gw workflow.Gateway, transcriber dictation.SpeechTranscriber, previews PreviewReleaser, ttl time.Duration, logger infra.Logger) *Store {
	s := &Store{
		sessions:    cache.New(ttl, ttl/2+time.Minute),
		gateway:     gw,
		transcriber: transcriber,
		previews:    previews,
		logger:      infra.Component(logger, "session"),
		now:         time.Now,
	}
	s.sessions.OnEvicted(func(id string, v interface{}) {
		if sess, ok := v.(*Session); ok {
			sess.Workflow.Discard()
			s.logger.Debug().Str("session_id", id).Msg("session ended")
		}
	})
	return s
}

// Create starts a new session.
func (s *Store) Create(mode workflow.Mode, lang language.Tag) *Session {
	sess := &Session{
		ID:        uuid.NewString(),
		CreatedAt: s.now().UTC(),
		Workflow:  workflow.NewController(s.gateway, workflow.NewState(mode, lang), s.logger),
		Dictation: dictation.NewRecorder(s.transcriber),
	}
	sess.Workflow.OnRelease(s.releasePreviews)
	s.sessions.SetDefault(sess.ID, sess)
	s.logger.Debug().Str("session_id", sess.ID).Str("mode", string(mode)).Msg("session created")
	return sess
}

// Get returns a live session and extends its lifetime.
func (s *Store) Get(id string) (*Session, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrNotFound
	}
	v, ok := s.sessions.Get(id)
	if !ok {
		return nil, domain.ErrNotFound
	}
	sess := v.(*Session)
	s.sessions.SetDefault(id, sess)
	return sess, nil
}

// Delete ends a session.
func (s *Store) Delete(id string) {
	s.sessions.Delete(id)
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	return s.sessions.ItemCount()
}

// ForgetStyle clears a deleted saved style from every session that selected it.
func (s *Store) ForgetStyle(styleID string) {
	for _, item := range s.sessions.Items() {
		if sess, ok := item.Object.(*Session); ok {
			sess.Workflow.ForgetStyle(styleID)
		}
	}
}

func (s *Store) releasePreviews(handles []string) {
	if s.previews == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.previews.Release(ctx, handles...); err != nil {
		s.logger.Warn().Err(err).Int("previews", len(handles)).Msg("failed to delete previews")
	}
}
