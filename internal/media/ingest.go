// Package media turns user uploads into immutable media descriptors.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"studio/internal/domain"
)

// MaxUploadBytes is the hard ceiling for any single upload.
const MaxUploadBytes = 20 << 20

// PreviewPrefix is the URL path under which stored previews are served.
const PreviewPrefix = "/v1/previews/"

// PreviewStore keeps the raw payload so the browser can display it, until the
// descriptor is discarded.
type PreviewStore interface {
	Write(ctx context.Context, key string, data []byte) (string, error)
	Delete(ctx context.Context, key string) error
}

// FileInput is a file-like upload. Open is only called once the declared size
// and type passed validation.
type FileInput struct {
	Filename     string
	DeclaredMIME string
	Size         int64
	Open         func() (io.ReadCloser, error)
}

// Ingestor validates uploads and produces descriptors with a preview handle.
type Ingestor struct {
	previews PreviewStore
}

// NewIngestor builds an Ingestor. previews may be nil, in which case
// descriptors carry no preview handle.
func NewIngestor(previews PreviewStore) *Ingestor {
	return &Ingestor{previews: previews}
}

// Ingest validates and reads one upload.
func (i *Ingestor) Ingest(ctx context.Context, in FileInput) (domain.MediaDescriptor, error) {
	if in.Size > MaxUploadBytes {
		return domain.MediaDescriptor{}, tooLarge(in.Size)
	}
	declared := normalizeMIME(in.DeclaredMIME)
	if declared != "" && declared != "application/octet-stream" && !acceptedMIME(declared) {
		return domain.MediaDescriptor{}, unsupported(declared)
	}
	if in.Open == nil {
		return domain.MediaDescriptor{}, &domain.EncodingError{Filename: in.Filename, Err: errors.New("no content")}
	}

	data, err := readBounded(in.Open)
	if err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			return domain.MediaDescriptor{}, err
		}
		return domain.MediaDescriptor{}, &domain.EncodingError{Filename: in.Filename, Err: err}
	}
	if len(data) == 0 {
		return domain.MediaDescriptor{}, &domain.EncodingError{Filename: in.Filename, Err: errors.New("file is empty")}
	}

	mimeType := declared
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = normalizeMIME(mimetype.Detect(data).String())
	}
	if !acceptedMIME(mimeType) {
		return domain.MediaDescriptor{}, unsupported(mimeType)
	}

	kind := Classify(mimeType)
	handle := ""
	if i.previews != nil {
		key, err := i.previews.Write(ctx, previewKey(mimeType), data)
		if err != nil {
			return domain.MediaDescriptor{}, &domain.EncodingError{Filename: in.Filename, Err: err}
		}
		handle = PreviewPrefix + key
	}

	return domain.NewBinaryMedia(kind, data, mimeType, handle, in.Filename)
}

// IngestBytes is a convenience for payloads already held in memory.
func (i *Ingestor) IngestBytes(ctx context.Context, filename, declaredMIME string, data []byte) (domain.MediaDescriptor, error) {
	return i.Ingest(ctx, FileInput{
		Filename:     filename,
		DeclaredMIME: declaredMIME,
		Size:         int64(len(data)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	})
}

// Release deletes the stored previews behind handles. Empty handles and
// handles this ingestor did not issue are skipped.
func (i *Ingestor) Release(ctx context.Context, handles ...string) error {
	if i.previews == nil {
		return nil
	}
	var errs []error
	for _, handle := range handles {
		key, ok := strings.CutPrefix(handle, PreviewPrefix)
		if !ok || key == "" {
			continue
		}
		if err := i.previews.Delete(ctx, key); err != nil {
			errs = append(errs, fmt.Errorf("release %s: %w", handle, err))
		}
	}
	return errors.Join(errs...)
}

// IngestText builds a text descriptor from a free-form description.
func (i *Ingestor) IngestText(text string) (domain.MediaDescriptor, error) {
	return domain.NewTextMedia(text)
}

// Classify maps a MIME type to a media kind: video/* is video, anything else image.
func Classify(mimeType string) domain.MediaKind {
	if strings.HasPrefix(normalizeMIME(mimeType), "video/") {
		return domain.MediaVideo
	}
	return domain.MediaImage
}

// FilenameStem returns the base name of filename without its extension.
func FilenameStem(filename string) string {
	base := path.Base(strings.ReplaceAll(strings.TrimSpace(filename), "\\", "/"))
	if base == "." || base == "/" {
		return ""
	}
	return strings.TrimSpace(strings.TrimSuffix(base, path.Ext(base)))
}

func readBounded(open func() (io.ReadCloser, error)) ([]byte, error) {
	rc, err := open()
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, MaxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	if len(data) > MaxUploadBytes {
		return nil, tooLarge(int64(len(data)))
	}
	return data, nil
}

func acceptedMIME(mimeType string) bool {
	return strings.HasPrefix(mimeType, "image/") || strings.HasPrefix(mimeType, "video/")
}

func normalizeMIME(mimeType string) string {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if idx := strings.IndexByte(mimeType, ';'); idx >= 0 {
		mimeType = strings.TrimSpace(mimeType[:idx])
	}
	return mimeType
}

func previewKey(mimeType string) string {
	ext := ""
	if m := mimetype.Lookup(mimeType); m != nil {
		ext = m.Extension()
	}
	return "previews/" + uuid.NewString() + ext
}

func tooLarge(size int64) error {
	return domain.NewValidationError("file", fmt.Sprintf("file is %.1f MiB, the limit is 20 MiB", float64(size)/(1<<20)))
}

func unsupported(mimeType string) error {
	return domain.NewValidationError("file", fmt.Sprintf("unsupported file type %q, upload an image or a video", mimeType))
}
