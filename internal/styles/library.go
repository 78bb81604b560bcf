// Package styles keeps the persisted library of reusable creative styles.
package styles

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"

	"studio/internal/domain"
	"studio/internal/infra"
	"studio/internal/media"
)

// Analyzer reverse engineers a style image.
type Analyzer interface {
	ReverseEngineer(ctx context.Context, lang language.Tag, m domain.MediaDescriptor) (domain.DirectorResult, error)
}

// Library is the in-memory style collection mirrored to a
// PersistentKeyValueStore. The in-memory copy is authoritative for the
// process: a failed write is reported but never rolled back.
type Library struct {
	mu       sync.Mutex
	store    PersistentKeyValueStore
	analyzer Analyzer
	logger   infra.Logger
	styles   []domain.SavedStyle
	loaded   bool

	now       func() time.Time
	newID     func() string
	thumbnail func([]byte) (string, error)
}

// NewLibrary builds a library. The collection is loaded lazily on first use.
func NewLibrary(store PersistentKeyValueStore, analyzer Analyzer, logger infra.Logger) *Library {
	return &Library{
		store:    store,
		analyzer: analyzer,
		logger:   infra.Component(logger, "styles"),
		now:      time.Now,
		newID:    uuid.NewString,
		thumbnail: func(data []byte) (string, error) {
			return media.Thumbnail(data, media.ThumbnailMaxEdge, media.ThumbnailQuality)
		},
	}
}

// List returns the collection, newest first.
func (l *Library) List(ctx context.Context) ([]domain.SavedStyle, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.loadLocked(ctx); err != nil {
		return nil, err
	}
	return append([]domain.SavedStyle(nil), l.styles...), nil
}

// Get returns one style.
func (l *Library) Get(ctx context.Context, id string) (domain.SavedStyle, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.loadLocked(ctx); err != nil {
		return domain.SavedStyle{}, err
	}
	for _, s := range l.styles {
		if s.ID == id {
			return s, nil
		}
	}
	return domain.SavedStyle{}, domain.ErrNotFound
}

// Select returns the analysis a saved style contributes as the style source
// of the next generation.
func (l *Library) Select(ctx context.Context, id string) (domain.SavedStyle, error) {
	return l.Get(ctx, id)
}

// ImportFromImage analyzes a style image and prepends it to the collection.
// The returned style is valid even when the error is a PersistenceError.
func (l *Library) ImportFromImage(ctx context.Context, lang language.Tag, img domain.MediaDescriptor) (domain.SavedStyle, error) {
	if img.Kind() != domain.MediaImage {
		return domain.SavedStyle{}, domain.NewValidationError("file", "a style must be imported from an image")
	}

	var (
		result domain.DirectorResult
		thumb  string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		result, err = l.analyzer.ReverseEngineer(gctx, lang, img)
		return err
	})
	g.Go(func() error {
		thumb = l.makeThumbnail(img)
		return nil
	})
	if err := g.Wait(); err != nil {
		return domain.SavedStyle{}, err
	}

	name := strings.TrimSpace(result.Title)
	if name == "" {
		name = media.FilenameStem(img.Filename())
	}
	if name == "" {
		name = l.timestampName()
	}
	style := domain.SavedStyle{
		ID:        l.newID(),
		Name:      name,
		Analysis:  result.Analysis,
		Thumbnail: thumb,
		CreatedAt: l.now().UTC(),
	}
	return style, l.prepend(ctx, style)
}

// SaveRequest describes the generation being saved. Exactly one of
// SourceStyleID and StyleImage identify where the style came from.
type SaveRequest struct {
	Result        domain.DirectorResult
	SourceStyleID string
	StyleImage    domain.MediaDescriptor
}

// SaveCurrent stores the analysis behind a completed generation.
func (l *Library) SaveCurrent(ctx context.Context, req SaveRequest) (domain.SavedStyle, error) {
	if strings.TrimSpace(req.Result.Analysis) == "" {
		return domain.SavedStyle{}, domain.ErrNoResult
	}

	var thumb string
	switch {
	case req.SourceStyleID != "":
		src, err := l.Get(ctx, req.SourceStyleID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return domain.SavedStyle{}, err
		}
		thumb = src.Thumbnail
	case req.StyleImage.Kind() == domain.MediaImage:
		thumb = l.makeThumbnail(req.StyleImage)
	default:
		return domain.SavedStyle{}, domain.NewValidationError("style", "only generations from a style image or a saved style can be saved")
	}

	name := strings.TrimSpace(req.Result.Title)
	if name == "" {
		name = l.timestampName()
	}
	style := domain.SavedStyle{
		ID:        l.newID(),
		Name:      name,
		Analysis:  req.Result.Analysis,
		Thumbnail: thumb,
		CreatedAt: l.now().UTC(),
	}
	return style, l.prepend(ctx, style)
}

// Delete removes a style after explicit confirmation.
func (l *Library) Delete(ctx context.Context, id string, confirmed bool) error {
	if !confirmed {
		return domain.ErrConfirmationRequired
	}
	return l.mutate(ctx, "delete", func(cur []domain.SavedStyle) ([]domain.SavedStyle, error) {
		for i, s := range cur {
			if s.ID == id {
				return append(cur[:i:i], cur[i+1:]...), nil
			}
		}
		return nil, domain.ErrNotFound
	})
}

func (l *Library) prepend(ctx context.Context, style domain.SavedStyle) error {
	return l.mutate(ctx, "save", func(cur []domain.SavedStyle) ([]domain.SavedStyle, error) {
		return append([]domain.SavedStyle{style}, cur...), nil
	})
}

// mutate runs one read-modify-write of the whole collection under the lock.
// On a write conflict the collection is re-read and fn applied once more.
func (l *Library) mutate(ctx context.Context, op string, fn func([]domain.SavedStyle) ([]domain.SavedStyle, error)) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.loadLocked(ctx); err != nil {
		return err
	}

	next, err := fn(append([]domain.SavedStyle(nil), l.styles...))
	if err != nil {
		return err
	}
	l.styles = next

	err = l.writeLocked(ctx, next)
	if errors.Is(err, ErrConflict) {
		l.logger.Info().Str("op", op).Msg("style library changed concurrently, reapplying")
		if reloadErr := l.reloadLocked(ctx); reloadErr != nil {
			return &domain.PersistenceError{Op: op, Err: reloadErr}
		}
		next, err = fn(append([]domain.SavedStyle(nil), l.styles...))
		if err != nil {
			return err
		}
		l.styles = next
		err = l.writeLocked(ctx, next)
	}
	if err != nil {
		l.logger.Warn().Err(err).Str("op", op).Int("styles", len(next)).Msg("style library write failed")
		return &domain.PersistenceError{Op: op, Err: err}
	}
	return nil
}

func (l *Library) writeLocked(ctx context.Context, styles []domain.SavedStyle) error {
	data, err := encodeCollection(styles)
	if err != nil {
		return err
	}
	return l.store.Set(ctx, StorageKey, data)
}

func (l *Library) loadLocked(ctx context.Context) error {
	if l.loaded {
		return nil
	}
	return l.reloadLocked(ctx)
}

// reloadLocked replaces the in-memory copy with the stored one. Unreadable
// data starts an empty library rather than failing every request.
func (l *Library) reloadLocked(ctx context.Context) error {
	data, err := l.store.Get(ctx, StorageKey)
	switch {
	case errors.Is(err, ErrKeyNotFound):
		l.styles = nil
	case err != nil:
		return fmt.Errorf("load style library: %w", err)
	default:
		styles, decodeErr := decodeCollection(data)
		if decodeErr != nil {
			l.logger.Warn().Err(decodeErr).Msg("discarding unreadable style library")
		}
		l.styles = styles
	}
	l.loaded = true
	return nil
}

// makeThumbnail returns "" when the image cannot be thumbnailed.
func (l *Library) makeThumbnail(img domain.MediaDescriptor) string {
	thumb, err := l.thumbnail(img.Data())
	if err != nil {
		l.logger.Warn().Err(err).Str("filename", img.Filename()).Msg("style thumbnail failed")
		return ""
	}
	return thumb
}

func (l *Library) timestampName() string {
	return "Style " + l.now().Format("2006-01-02 15:04:05")
}
