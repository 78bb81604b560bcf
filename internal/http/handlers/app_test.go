package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"studio/internal/domain"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		status    int
		code      string
		retryable bool
	}{
		{"validation", domain.NewValidationError("file", "too big"), http.StatusBadRequest, "validation_failed", false},
		{"encoding", &domain.EncodingError{Filename: "a.png", Err: errors.New("eof")}, http.StatusUnprocessableEntity, "unreadable_file", false},
		{"gateway", &domain.GatewayError{Recipe: "refine", Message: "try again"}, http.StatusBadGateway, "ai_unavailable", true},
		{"persistence", &domain.PersistenceError{Op: "save", Err: errors.New("quota")}, http.StatusInsufficientStorage, "storage_failed", false},
		{"capability", &domain.CapabilityUnavailableError{Capability: "voice dictation"}, http.StatusNotImplemented, "capability_unavailable", false},
		{"busy", domain.ErrBusy, http.StatusConflict, "busy", true},
		{"wrapped transition", fmt.Errorf("%w: reset first", domain.ErrInvalidTransition), http.StatusConflict, "invalid_transition", false},
		{"confirmation", domain.ErrConfirmationRequired, http.StatusPreconditionRequired, "confirmation_required", false},
		{"no result", domain.ErrNoResult, http.StatusConflict, "nothing_to_do", false},
		{"nothing to retry", domain.ErrNoLastAction, http.StatusConflict, "nothing_to_do", false},
		{"not found", fmt.Errorf("style: %w", domain.ErrNotFound), http.StatusNotFound, "not_found", false},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "internal", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			status, detail := classify(tc.err)
			if status != tc.status || detail.Code != tc.code || detail.Retryable != tc.retryable {
				t.Fatalf("classify() = %d %+v, want %d %s retryable=%v", status, detail, tc.status, tc.code, tc.retryable)
			}
		})
	}
}

func TestGatewayMessageIsShownVerbatim(t *testing.T) {
	_, detail := classify(&domain.GatewayError{Recipe: "stock_seo", Message: "Quota exhausted for today", Err: errors.New("429")})
	if detail.Message != "Quota exhausted for today" {
		t.Fatalf("message = %q", detail.Message)
	}
}
