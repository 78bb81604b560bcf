// Package dictation turns recorded speech into feedback text.
package dictation

import (
	"bytes"
	"context"
	"strings"
	"sync"

	"golang.org/x/text/language"

	"studio/internal/domain"
)

// MaxRecordingBytes bounds one dictation.
const MaxRecordingBytes = 10 << 20

// SpeechTranscriber converts an audio recording to text.
type SpeechTranscriber interface {
	Transcribe(ctx context.Context, lang language.Tag, mimeType string, audio []byte) (string, error)
}

// Recorder buffers audio between Start and Stop. It runs independently of
// generation calls; stopping never waits on them.
type Recorder struct {
	transcriber SpeechTranscriber

	mu        sync.Mutex
	listening bool
	mimeType  string
	buf       bytes.Buffer
}

// NewRecorder returns a recorder. A nil transcriber makes every Start fail
// with CapabilityUnavailableError.
func NewRecorder(t SpeechTranscriber) *Recorder {
	return &Recorder{transcriber: t}
}

// Available reports whether dictation can be used at all.
func (r *Recorder) Available() bool { return r.transcriber != nil }

// Listening reports whether a dictation is in progress.
func (r *Recorder) Listening() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.listening
}

// Start begins a new dictation, discarding any unfinished one.
func (r *Recorder) Start(mimeType string) error {
	if r.transcriber == nil {
		return &domain.CapabilityUnavailableError{Capability: "voice dictation"}
	}
	mimeType = strings.TrimSpace(mimeType)
	if !strings.HasPrefix(mimeType, "audio/") {
		return domain.NewValidationError("mimeType", "dictation needs an audio/* recording type")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listening = true
	r.mimeType = mimeType
	r.buf.Reset()
	return nil
}

// Write appends a recorded chunk.
func (r *Recorder) Write(chunk []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.listening {
		return domain.NewValidationError("dictation", "start dictation before sending audio")
	}
	if r.buf.Len()+len(chunk) > MaxRecordingBytes {
		r.listening = false
		r.buf.Reset()
		return domain.NewValidationError("dictation", "recording is too long")
	}
	r.buf.Write(chunk)
	return nil
}

// Stop ends listening and transcribes what was recorded. Stopping with
// nothing recorded returns "".
func (r *Recorder) Stop(ctx context.Context, lang language.Tag) (string, error) {
	r.mu.Lock()
	if !r.listening {
		r.mu.Unlock()
		return "", nil
	}
	r.listening = false
	audio := append([]byte(nil), r.buf.Bytes()...)
	mimeType := r.mimeType
	r.buf.Reset()
	r.mu.Unlock()

	if len(audio) == 0 {
		return "", nil
	}
	text, err := r.transcriber.Transcribe(ctx, lang, mimeType, audio)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}
