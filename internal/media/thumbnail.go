package media

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"studio/internal/domain"
)

const (
	// ThumbnailMaxEdge bounds the longer side of persisted style thumbnails.
	ThumbnailMaxEdge = 256
	// ThumbnailQuality is the JPEG quality of persisted style thumbnails.
	ThumbnailQuality = 70
	// MaxDecodePixels bounds the declared size of an image we agree to decode.
	MaxDecodePixels = 40_000_000
)

// ErrImageTooLarge is wrapped in the EncodingError for images over MaxDecodePixels.
var ErrImageTooLarge = errors.New("image dimensions are too large")

// Thumbnail decodes an image payload and re-encodes it as a small JPEG data
// URL whose longer edge is at most maxEdge. Images already smaller are only
// re-encoded.
func Thumbnail(data []byte, maxEdge, quality int) (string, error) {
	// The header is checked first: decoding allocates for the declared size.
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", &domain.EncodingError{Filename: "image", Err: fmt.Errorf("decode image header: %w", err)}
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > MaxDecodePixels {
		return "", &domain.EncodingError{Filename: "image", Err: fmt.Errorf("%w: %dx%d", ErrImageTooLarge, cfg.Width, cfg.Height)}
	}
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", &domain.EncodingError{Filename: "image", Err: fmt.Errorf("decode image: %w", err)}
	}
	if maxEdge <= 0 {
		maxEdge = ThumbnailMaxEdge
	}
	if quality <= 0 || quality > 100 {
		quality = ThumbnailQuality
	}

	b := src.Bounds()
	w, h := fitWithin(b.Dx(), b.Dy(), maxEdge)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	// JPEG has no alpha; flatten onto white first.
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: quality}); err != nil {
		return "", fmt.Errorf("encode thumbnail: %w", err)
	}
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func fitWithin(w, h, maxEdge int) (int, int) {
	if w <= 0 || h <= 0 {
		return 1, 1
	}
	if w <= maxEdge && h <= maxEdge {
		return w, h
	}
	if w >= h {
		nh := h * maxEdge / w
		if nh < 1 {
			nh = 1
		}
		return maxEdge, nh
	}
	nw := w * maxEdge / h
	if nw < 1 {
		nw = 1
	}
	return nw, maxEdge
}
