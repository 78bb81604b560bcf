package styles

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"studio/pkg/zip"
)

const jpegDataURLPrefix = "data:image/jpeg;base64,"

// Export packs the library into a zip: styles.json in the persisted envelope
// layout plus one thumbnails/<id>.jpg per style that has a thumbnail.
func (l *Library) Export(ctx context.Context) ([]byte, error) {
	list, err := l.List(ctx)
	if err != nil {
		return nil, err
	}
	doc, err := encodeCollection(list)
	if err != nil {
		return nil, err
	}
	entries := []zip.Entry{{Filename: "styles.json", Data: doc, Modified: l.now().UTC()}}
	for _, s := range list {
		if !strings.HasPrefix(s.Thumbnail, jpegDataURLPrefix) {
			continue
		}
		img, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(s.Thumbnail, jpegDataURLPrefix))
		if err != nil {
			l.logger.Warn().Err(err).Str("style_id", s.ID).Msg("skipping unreadable thumbnail")
			continue
		}
		entries = append(entries, zip.Entry{
			Filename: fmt.Sprintf("thumbnails/%s.jpg", s.ID),
			Data:     img,
			Modified: s.CreatedAt,
		})
	}
	return zip.Archive(entries)
}
