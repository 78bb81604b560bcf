package domain

import (
	"encoding/base64"
	"strings"
)

// MediaKind classifies a piece of user supplied or AI produced content.
type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
	MediaText  MediaKind = "text"
)

// MediaDescriptor is an immutable, normalized view of one media input. Binary
// kinds carry a payload and MIME type, text carries only a body.
type MediaDescriptor struct {
	kind          MediaKind
	data          []byte
	mimeType      string
	text          string
	previewHandle string
	filename      string
}

// NewBinaryMedia builds an image or video descriptor. The payload is copied.
func NewBinaryMedia(kind MediaKind, data []byte, mimeType, previewHandle, filename string) (MediaDescriptor, error) {
	if kind != MediaImage && kind != MediaVideo {
		return MediaDescriptor{}, NewValidationError("media", "binary media must be an image or a video")
	}
	mimeType = strings.TrimSpace(mimeType)
	if len(data) == 0 || mimeType == "" {
		return MediaDescriptor{}, NewValidationError("media", "media payload and type are required")
	}
	return MediaDescriptor{
		kind:          kind,
		data:          append([]byte(nil), data...),
		mimeType:      mimeType,
		previewHandle: previewHandle,
		filename:      filename,
	}, nil
}

// NewTextMedia builds a text descriptor.
func NewTextMedia(text string) (MediaDescriptor, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return MediaDescriptor{}, NewValidationError("text", "description must not be empty")
	}
	return MediaDescriptor{kind: MediaText, text: text}, nil
}

func (m MediaDescriptor) Kind() MediaKind       { return m.kind }
func (m MediaDescriptor) MIMEType() string      { return m.mimeType }
func (m MediaDescriptor) Text() string          { return m.text }
func (m MediaDescriptor) PreviewHandle() string { return m.previewHandle }
func (m MediaDescriptor) Filename() string      { return m.filename }

// IsZero reports whether the descriptor was never initialized.
func (m MediaDescriptor) IsZero() bool { return m.kind == "" }

// IsBinary reports whether the descriptor carries an image or video payload.
func (m MediaDescriptor) IsBinary() bool {
	return m.kind == MediaImage || m.kind == MediaVideo
}

// Data returns a copy of the raw payload.
func (m MediaDescriptor) Data() []byte {
	return append([]byte(nil), m.data...)
}

// Size returns the payload size in bytes.
func (m MediaDescriptor) Size() int { return len(m.data) }

// Base64 returns the transport encoding of the payload.
func (m MediaDescriptor) Base64() string {
	if len(m.data) == 0 {
		return ""
	}
	return base64.StdEncoding.EncodeToString(m.data)
}

// DataURL renders the payload as a data URL, or "" for text media.
func (m MediaDescriptor) DataURL() string {
	if !m.IsBinary() {
		return ""
	}
	return "data:" + m.mimeType + ";base64," + m.Base64()
}
