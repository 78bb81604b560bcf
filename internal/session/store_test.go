package session

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"golang.org/x/text/language"

	"studio/internal/domain"
	"studio/internal/gateway"
	"studio/internal/infra"
	"studio/internal/workflow"
)

type nopGateway struct{}

func (nopGateway) ReverseEngineer(ctx context.Context, lang language.Tag, m domain.MediaDescriptor) (domain.DirectorResult, error) {
	return domain.DirectorResult{Title: "Dusk", Analysis: "violet", Prompt: "violet dusk skyline"}, nil
}
func (nopGateway) Refine(context.Context, gateway.RefineInput) (domain.DirectorResult, error) {
	return domain.DirectorResult{}, errors.New("unused")
}
func (nopGateway) ImageToVideo(context.Context, gateway.VideoInput) (domain.DirectorResult, error) {
	return domain.DirectorResult{}, errors.New("unused")
}
func (nopGateway) RefineVideo(context.Context, gateway.VideoInput) (domain.DirectorResult, error) {
	return domain.DirectorResult{}, errors.New("unused")
}
func (nopGateway) WallpaperFusion(context.Context, gateway.FusionInput) (domain.DirectorResult, error) {
	return domain.DirectorResult{}, errors.New("unused")
}
func (nopGateway) StockSeo(context.Context, domain.MediaDescriptor) (domain.StockSeoResult, error) {
	return domain.StockSeoResult{}, errors.New("unused")
}

type memClipboard struct{ text string }

func (m *memClipboard) WriteText(ctx context.Context, text string) error {
	m.text = text
	return nil
}

type recordingReleaser struct {
	mu       sync.Mutex
	released []string
}

func (r *recordingReleaser) Release(ctx context.Context, handles ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.released = append(r.released, handles...)
	return nil
}

func (r *recordingReleaser) take() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.released
	r.released = nil
	sort.Strings(out)
	return out
}

func previewMedia(t *testing.T, name string) domain.MediaDescriptor {
	t.Helper()
	m, err := domain.NewBinaryMedia(domain.MediaImage, []byte{1, 2, 3}, "image/png", "/v1/previews/previews/"+name+".png", name+".png")
	if err != nil {
		t.Fatalf("NewBinaryMedia: %v", err)
	}
	return m
}

func attach(t *testing.T, sess *Session, slot workflow.Slot, m domain.MediaDescriptor) {
	t.Helper()
	if _, err := sess.Workflow.Update(func(s workflow.State) (workflow.State, error) {
		return s.Attach(slot, m)
	}); err != nil {
		t.Fatalf("attach %s: %v", slot, err)
	}
}

func TestPreviewsReleasedWhenDiscarded(t *testing.T) {
	rel := &recordingReleaser{}
	store := NewStore(nopGateway{}, nil, rel, time.Hour, infra.NopLogger())
	sess := store.Create(workflow.ModeDirector, language.English)

	first, second := previewMedia(t, "first"), previewMedia(t, "second")
	attach(t, sess, workflow.SlotSource, first)
	attach(t, sess, workflow.SlotSource, second)
	if got := rel.take(); len(got) != 1 || got[0] != first.PreviewHandle() {
		t.Fatalf("replaced source released %v", got)
	}

	attach(t, sess, workflow.SlotExtra, previewMedia(t, "extra"))
	sess.Workflow.Update(func(s workflow.State) (workflow.State, error) {
		return s.Detach(workflow.SlotExtra), nil
	})
	if got := rel.take(); len(got) != 1 || got[0] != "/v1/previews/previews/extra.png" {
		t.Fatalf("detach released %v", got)
	}

	attach(t, sess, workflow.SlotGood, previewMedia(t, "good"))
	if _, err := sess.Workflow.Reset(); err != nil {
		t.Fatal(err)
	}
	if got := rel.take(); len(got) != 2 || got[0] != "/v1/previews/previews/good.png" || got[1] != second.PreviewHandle() {
		t.Fatalf("reset released %v", got)
	}

	attach(t, sess, workflow.SlotSource, previewMedia(t, "kept"))
	store.Delete(sess.ID)
	if got := rel.take(); len(got) != 1 || got[0] != "/v1/previews/previews/kept.png" {
		t.Fatalf("delete released %v", got)
	}
}

func TestExpiredSessionReleasesPreviews(t *testing.T) {
	rel := &recordingReleaser{}
	store := NewStore(nopGateway{}, nil, rel, 10*time.Millisecond, infra.NopLogger())
	sess := store.Create(workflow.ModeDirector, language.English)
	attach(t, sess, workflow.SlotSource, previewMedia(t, "stale"))

	time.Sleep(30 * time.Millisecond)
	store.sessions.DeleteExpired()
	if got := rel.take(); len(got) != 1 || got[0] != "/v1/previews/previews/stale.png" {
		t.Fatalf("expiry released %v", got)
	}
}

func TestCreateGetDelete(t *testing.T) {
	store := NewStore(nopGateway{}, nil, nil, time.Hour, infra.NopLogger())
	sess := store.Create(workflow.ModeDirector, language.Chinese)

	got, err := store.Get(sess.ID)
	if err != nil || got != sess {
		t.Fatalf("Get = %v, %v", got, err)
	}
	if st := got.Workflow.State(); st.Phase != workflow.PhaseImagePrompt || st.Language != language.Chinese {
		t.Fatalf("initial state = %+v", st)
	}
	if got.Dictation.Available() {
		t.Fatal("dictation must be unavailable without a transcriber")
	}
	if _, err := store.Get("not-a-uuid"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("bad id err = %v", err)
	}
	store.Delete(sess.ID)
	if _, err := store.Get(sess.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("deleted session err = %v", err)
	}
}

func TestSessionsExpire(t *testing.T) {
	store := NewStore(nopGateway{}, nil, nil, 20*time.Millisecond, infra.NopLogger())
	sess := store.Create(workflow.ModeDirector, language.English)
	time.Sleep(40 * time.Millisecond)
	if _, err := store.Get(sess.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expired session err = %v", err)
	}
}

func TestCopyField(t *testing.T) {
	store := NewStore(nopGateway{}, nil, nil, time.Hour, infra.NopLogger())
	sess := store.Create(workflow.ModeDirector, language.English)
	clip := &memClipboard{}

	if err := sess.CopyField(context.Background(), "prompt", clip); !errors.Is(err, domain.ErrNoResult) {
		t.Fatalf("before generate err = %v", err)
	}

	text, _ := domain.NewTextMedia("violet dusk over a harbor")
	if _, err := sess.Workflow.Update(func(s workflow.State) (workflow.State, error) {
		return s.Attach(workflow.SlotSource, text)
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := sess.Workflow.Generate(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := sess.CopyField(context.Background(), "prompt", clip); err != nil {
		t.Fatalf("CopyField: %v", err)
	}
	if clip.text != "violet dusk skyline" {
		t.Fatalf("clipboard = %q", clip.text)
	}
}

func TestForgetStyleClearsSelections(t *testing.T) {
	store := NewStore(nopGateway{}, nil, nil, time.Hour, infra.NopLogger())
	a := store.Create(workflow.ModeDirector, language.English)
	b := store.Create(workflow.ModeDirector, language.English)
	for _, sess := range []*Session{a, b} {
		sess.Workflow.Update(func(s workflow.State) (workflow.State, error) {
			return s.SelectStyle("style-"+sess.ID, "analysis"), nil
		})
	}

	store.ForgetStyle("style-" + a.ID)
	if a.Workflow.State().Inputs.StyleID != "" {
		t.Fatal("selection of the deleted style must be cleared")
	}
	if b.Workflow.State().Inputs.StyleID == "" {
		t.Fatal("other selections must be untouched")
	}
	if store.Len() != 2 {
		t.Fatalf("Len = %d", store.Len())
	}
}
