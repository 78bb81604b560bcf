package dictation

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"golang.org/x/text/language"

	"studio/internal/domain"
)

type fakeTranscriber struct {
	gotMIME  string
	gotAudio []byte
	text     string
	err      error
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, lang language.Tag, mimeType string, audio []byte) (string, error) {
	f.gotMIME = mimeType
	f.gotAudio = audio
	return f.text, f.err
}

func TestRecorderWithoutTranscriber(t *testing.T) {
	r := NewRecorder(nil)
	var capErr *domain.CapabilityUnavailableError
	if err := r.Start("audio/webm"); !errors.As(err, &capErr) {
		t.Fatalf("err = %v, want CapabilityUnavailableError", err)
	}
	if r.Available() || r.Listening() {
		t.Fatal("recorder without transcriber must stay idle")
	}
}

func TestRecorderRoundTrip(t *testing.T) {
	fake := &fakeTranscriber{text: "  make it brighter "}
	r := NewRecorder(fake)
	if err := r.Write([]byte{1}); !domain.IsValidation(err) {
		t.Fatalf("write before start: err = %v", err)
	}
	if err := r.Start("audio/webm;codecs=opus"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	for _, chunk := range [][]byte{{1, 2}, {3}} {
		if err := r.Write(chunk); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	text, err := r.Stop(context.Background(), language.English)
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if text != "make it brighter" || !bytes.Equal(fake.gotAudio, []byte{1, 2, 3}) || fake.gotMIME != "audio/webm;codecs=opus" {
		t.Fatalf("text=%q audio=%v mime=%q", text, fake.gotAudio, fake.gotMIME)
	}
	if r.Listening() {
		t.Fatal("Stop must end listening")
	}
	// A second stop is a no-op.
	if text, err := r.Stop(context.Background(), language.English); err != nil || text != "" {
		t.Fatalf("second Stop = %q, %v", text, err)
	}
}

func TestRecorderRejectsNonAudioAndOverflow(t *testing.T) {
	r := NewRecorder(&fakeTranscriber{})
	if err := r.Start("video/mp4"); !domain.IsValidation(err) {
		t.Fatalf("err = %v", err)
	}
	if err := r.Start("audio/ogg"); err != nil {
		t.Fatal(err)
	}
	if err := r.Write(make([]byte, MaxRecordingBytes+1)); !domain.IsValidation(err) {
		t.Fatalf("overflow err = %v", err)
	}
	if r.Listening() {
		t.Fatal("overflow must stop listening")
	}
}

func TestRecorderStopPropagatesGatewayError(t *testing.T) {
	r := NewRecorder(&fakeTranscriber{err: &domain.GatewayError{Recipe: "transcribe", Message: "down"}})
	if err := r.Start("audio/webm"); err != nil {
		t.Fatal(err)
	}
	_ = r.Write([]byte{9})
	if _, err := r.Stop(context.Background(), language.English); !domain.IsGateway(err) {
		t.Fatalf("err = %v", err)
	}
}
