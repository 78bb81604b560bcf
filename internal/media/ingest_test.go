package media

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"strings"
	"testing"

	"studio/internal/domain"
)

type memPreviews struct {
	writes map[string][]byte
	err    error
}

func (m *memPreviews) Write(ctx context.Context, key string, data []byte) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	if m.writes == nil {
		m.writes = map[string][]byte{}
	}
	m.writes[key] = data
	return key, nil
}

func (m *memPreviews) Delete(ctx context.Context, key string) error {
	delete(m.writes, key)
	return nil
}

type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 0
	}
	return len(p), nil
}

func openBytes(data []byte) func() (io.ReadCloser, error) {
	return func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(data)), nil }
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png encode: %v", err)
	}
	return buf.Bytes()
}

func TestIngestAcceptsImageAndVideo(t *testing.T) {
	tests := []struct {
		name     string
		mime     string
		size     int
		wantKind domain.MediaKind
	}{
		{name: "jpeg photo", mime: "image/jpeg", size: 2 << 20, wantKind: domain.MediaImage},
		{name: "mp4 clip", mime: "video/mp4", size: 1024, wantKind: domain.MediaVideo},
		{name: "mime with params", mime: "image/webp; q=1", size: 10, wantKind: domain.MediaImage},
		{name: "exactly at limit", mime: "video/webm", size: MaxUploadBytes, wantKind: domain.MediaVideo},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			previews := &memPreviews{}
			payload := bytes.Repeat([]byte{1}, tc.size)
			desc, err := NewIngestor(previews).Ingest(context.Background(), FileInput{
				Filename:     "photo.jpg",
				DeclaredMIME: tc.mime,
				Size:         int64(tc.size),
				Open:         openBytes(payload),
			})
			if err != nil {
				t.Fatalf("Ingest error: %v", err)
			}
			if desc.Kind() != tc.wantKind {
				t.Fatalf("Kind = %q, want %q", desc.Kind(), tc.wantKind)
			}
			if desc.Size() != tc.size {
				t.Fatalf("Size = %d, want %d", desc.Size(), tc.size)
			}
			if !strings.HasPrefix(desc.PreviewHandle(), PreviewPrefix+"previews/") {
				t.Fatalf("PreviewHandle = %q", desc.PreviewHandle())
			}
			if len(previews.writes) != 1 {
				t.Fatalf("expected one preview write, got %d", len(previews.writes))
			}
		})
	}
}

func TestIngestRejectsOversizedWithoutReading(t *testing.T) {
	_, err := NewIngestor(nil).Ingest(context.Background(), FileInput{
		Filename:     "huge.jpg",
		DeclaredMIME: "image/jpeg",
		Size:         25 << 20,
		Open: func() (io.ReadCloser, error) {
			t.Fatal("Open must not be called for oversized input")
			return nil, nil
		},
	})
	if !domain.IsValidation(err) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
}

func TestIngestRejectsOversizedStreamWithUnderstatedSize(t *testing.T) {
	_, err := NewIngestor(nil).Ingest(context.Background(), FileInput{
		Filename:     "liar.mp4",
		DeclaredMIME: "video/mp4",
		Size:         10,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(io.LimitReader(zeroReader{}, MaxUploadBytes+10)), nil
		},
	})
	if !domain.IsValidation(err) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
}

func TestIngestRejectsWrongMIMEClass(t *testing.T) {
	for _, mime := range []string{"text/plain", "application/pdf", "audio/mpeg"} {
		_, err := NewIngestor(nil).Ingest(context.Background(), FileInput{
			Filename:     "notes.txt",
			DeclaredMIME: mime,
			Size:         5,
			Open:         openBytes([]byte("hello")),
		})
		if !domain.IsValidation(err) {
			t.Fatalf("%s: err = %v, want ValidationError", mime, err)
		}
	}
}

func TestIngestSniffsUndeclaredType(t *testing.T) {
	data := pngBytes(t, 4, 4)
	desc, err := NewIngestor(nil).IngestBytes(context.Background(), "blob", "", data)
	if err != nil {
		t.Fatalf("IngestBytes error: %v", err)
	}
	if desc.MIMEType() != "image/png" {
		t.Fatalf("MIMEType = %q, want image/png", desc.MIMEType())
	}
	if desc.PreviewHandle() != "" {
		t.Fatalf("expected no preview handle without a writer, got %q", desc.PreviewHandle())
	}

	_, err = NewIngestor(nil).IngestBytes(context.Background(), "blob", "application/octet-stream", []byte("plain words"))
	if !domain.IsValidation(err) {
		t.Fatalf("err = %v, want ValidationError for sniffed text", err)
	}
}

func TestIngestEncodingFailureIsDistinct(t *testing.T) {
	_, err := NewIngestor(nil).Ingest(context.Background(), FileInput{
		Filename:     "broken.jpg",
		DeclaredMIME: "image/jpeg",
		Size:         100,
		Open: func() (io.ReadCloser, error) {
			return nil, errors.New("disk unplugged")
		},
	})
	var encErr *domain.EncodingError
	if !errors.As(err, &encErr) {
		t.Fatalf("err = %v, want EncodingError", err)
	}
	if domain.IsValidation(err) {
		t.Fatal("encoding failure must not be reported as validation")
	}

	_, err = NewIngestor(&memPreviews{err: errors.New("disk full")}).IngestBytes(context.Background(), "a.png", "image/png", []byte{1, 2, 3})
	if !errors.As(err, &encErr) {
		t.Fatalf("preview failure err = %v, want EncodingError", err)
	}
}

func TestReleaseDeletesIssuedPreviews(t *testing.T) {
	previews := &memPreviews{}
	ing := NewIngestor(previews)
	a, err := ing.IngestBytes(context.Background(), "a.png", "image/png", pngBytes(t, 4, 4))
	if err != nil {
		t.Fatalf("IngestBytes error: %v", err)
	}
	b, err := ing.IngestBytes(context.Background(), "b.png", "image/png", pngBytes(t, 4, 4))
	if err != nil {
		t.Fatalf("IngestBytes error: %v", err)
	}

	if err := ing.Release(context.Background(), a.PreviewHandle(), "", "https://elsewhere/x.png"); err != nil {
		t.Fatalf("Release error: %v", err)
	}
	if len(previews.writes) != 1 {
		t.Fatalf("previews left = %d, want 1", len(previews.writes))
	}
	if _, ok := previews.writes[strings.TrimPrefix(b.PreviewHandle(), PreviewPrefix)]; !ok {
		t.Fatal("unrelated preview was deleted")
	}
	if err := NewIngestor(nil).Release(context.Background(), b.PreviewHandle()); err != nil {
		t.Fatalf("Release without store: %v", err)
	}
}

func TestIngestText(t *testing.T) {
	desc, err := NewIngestor(nil).IngestText("  a quiet harbor at dawn ")
	if err != nil {
		t.Fatalf("IngestText error: %v", err)
	}
	if desc.Kind() != domain.MediaText || desc.Text() != "a quiet harbor at dawn" {
		t.Fatalf("unexpected descriptor: %q %q", desc.Kind(), desc.Text())
	}
	if desc.MIMEType() != "" || desc.Size() != 0 {
		t.Fatal("text descriptor must not carry payload or MIME")
	}
	if _, err := NewIngestor(nil).IngestText(" \n "); !domain.IsValidation(err) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
}

func TestClassifyAndFilenameStem(t *testing.T) {
	if Classify("VIDEO/quicktime") != domain.MediaVideo {
		t.Fatal("uppercase video not classified as video")
	}
	if Classify("image/heic") != domain.MediaImage {
		t.Fatal("heic not classified as image")
	}
	stems := map[string]string{
		"neon_dusk.png":          "neon_dusk",
		"C:\\shots\\sunset.JPG":  "sunset",
		"archive.tar.gz":         "archive.tar",
		"":                       "",
		"/var/uploads/.hidden":   "",
	}
	for in, want := range stems {
		if got := FilenameStem(in); got != want {
			t.Fatalf("FilenameStem(%q) = %q, want %q", in, got, want)
		}
	}
}
