package handlers

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"

	"studio/internal/domain"
	"studio/internal/media"
	"studio/internal/storage"
	"studio/internal/workflow"
)

const multipartMemory = 8 << 20

type attachTextRequest struct {
	Slot string `json:"slot"`
	Text string `json:"text"`
}

// UploadMedia ingests a multipart "file" field into an attachment slot.
func (a *App) UploadMedia(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.session(w, r)
	if !ok {
		return
	}
	slot, err := workflow.ParseSlot(chi.URLParam(r, "slot"))
	if err != nil {
		a.fail(w, r, err, nil)
		return
	}
	desc, err := a.ingestUpload(w, r)
	if err != nil {
		a.fail(w, r, err, nil)
		return
	}
	st, err := sess.Workflow.Update(func(s workflow.State) (workflow.State, error) {
		return s.Attach(slot, desc)
	})
	if err != nil {
		a.releasePreview(r, desc)
		a.fail(w, r, err, viewState(sess, st))
		return
	}
	a.json(w, http.StatusOK, viewState(sess, st))
}

// AttachText places a text description in the source, style or subject slot.
func (a *App) AttachText(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.session(w, r)
	if !ok {
		return
	}
	var req attachTextRequest
	if !a.decode(w, r, &req) {
		return
	}
	slot, err := workflow.ParseSlot(req.Slot)
	if err != nil {
		a.fail(w, r, err, nil)
		return
	}
	if slot != workflow.SlotSource && slot != workflow.SlotStyle && slot != workflow.SlotSubject {
		a.fail(w, r, domain.NewValidationError("slot", "only the source, style and subject accept a description"), nil)
		return
	}
	desc, err := a.Ingestor.IngestText(req.Text)
	if err != nil {
		a.fail(w, r, err, nil)
		return
	}
	st, err := sess.Workflow.Update(func(s workflow.State) (workflow.State, error) {
		return s.Attach(slot, desc)
	})
	if err != nil {
		a.fail(w, r, err, viewState(sess, st))
		return
	}
	a.json(w, http.StatusOK, viewState(sess, st))
}

func (a *App) DetachMedia(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.session(w, r)
	if !ok {
		return
	}
	slot, err := workflow.ParseSlot(chi.URLParam(r, "slot"))
	if err != nil {
		a.fail(w, r, err, nil)
		return
	}
	st, err := sess.Workflow.Update(func(s workflow.State) (workflow.State, error) {
		return s.Detach(slot), nil
	})
	if err != nil {
		a.fail(w, r, err, viewState(sess, st))
		return
	}
	a.json(w, http.StatusOK, viewState(sess, st))
}

// Preview serves a stored upload by its handle.
func (a *App) Preview(w http.ResponseWriter, r *http.Request) {
	if a.Previews == nil {
		a.error(w, http.StatusNotFound, "not_found", "previews are disabled")
		return
	}
	key := chi.URLParam(r, "*")
	data, err := a.Previews.Read(r.Context(), key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "preview not found")
			return
		}
		a.error(w, http.StatusBadRequest, "bad_request", "invalid preview key")
		return
	}
	w.Header().Set("Content-Type", mimetype.Detect(data).String())
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// ingestUpload reads the "file" form field. The body is capped just above the
// upload ceiling so oversized files fail before they are buffered.
func (a *App) ingestUpload(w http.ResponseWriter, r *http.Request) (domain.MediaDescriptor, error) {
	r.Body = http.MaxBytesReader(w, r.Body, media.MaxUploadBytes+multipartMemory)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return domain.MediaDescriptor{}, domain.NewValidationError("file", "file is larger than 20 MiB")
		}
		return domain.MediaDescriptor{}, domain.NewValidationError("file", "expected a multipart upload with a file field")
	}
	defer r.MultipartForm.RemoveAll()
	file, header, err := r.FormFile("file")
	if err != nil {
		return domain.MediaDescriptor{}, domain.NewValidationError("file", "expected a multipart upload with a file field")
	}
	_ = file.Close()
	return a.Ingestor.Ingest(r.Context(), fileInput(header))
}

// releasePreview deletes the preview of an upload no session kept.
func (a *App) releasePreview(r *http.Request, m domain.MediaDescriptor) {
	if err := a.Ingestor.Release(context.WithoutCancel(r.Context()), m.PreviewHandle()); err != nil {
		a.Logger.Warn().Err(err).Str("preview", m.PreviewHandle()).Msg("failed to delete preview")
	}
}

func fileInput(h *multipart.FileHeader) media.FileInput {
	return media.FileInput{
		Filename:     h.Filename,
		DeclaredMIME: strings.TrimSpace(h.Header.Get("Content-Type")),
		Size:         h.Size,
		Open: func() (io.ReadCloser, error) {
			return h.Open()
		},
	}
}
