package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

// responseClipboard collects copied text for the browser, which owns the real
// clipboard.
type responseClipboard struct {
	buf strings.Builder
}

func (c *responseClipboard) WriteText(_ context.Context, text string) error {
	c.buf.Reset()
	c.buf.WriteString(text)
	return nil
}

// CopyField returns one textual field of the active result as text/plain.
func (a *App) CopyField(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.session(w, r)
	if !ok {
		return
	}
	var clip responseClipboard
	if err := sess.CopyField(r.Context(), chi.URLParam(r, "field"), &clip); err != nil {
		a.fail(w, r, err, nil)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(clip.buf.String()))
}
