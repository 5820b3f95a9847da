package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cutbench/cutbench-agent/internal/overlay"
	"github.com/cutbench/cutbench-agent/internal/suggest"
	"github.com/cutbench/cutbench-agent/internal/timeline"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	handler := RequestIDMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = r.Context().Value(RequestIDKey).(string)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	if seen == "" {
		t.Fatal("request id missing from context")
	}
	if got := rr.Header().Get("X-Request-ID"); got != seen {
		t.Errorf("X-Request-ID header = %q, want %q", got, seen)
	}
	if len(seen) != 8 {
		t.Errorf("request id length = %d, want 8", len(seen))
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	handler := RecoveryMiddleware(discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	if rr.Code != http.StatusInternalServerError {
		t.Errorf("status code = %d, want %d", rr.Code, http.StatusInternalServerError)
	}
}

func TestWriteCommandError(t *testing.T) {
	rejection := &timeline.Rejection{Op: "split_clip", Reason: timeline.ReasonSplitOutOfRange}
	notFound := &timeline.Rejection{Op: "remove_clip", Reason: timeline.ReasonClipNotFound}

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"rejection", rejection, http.StatusUnprocessableEntity, "split_out_of_range"},
		{"rejection on missing entity", notFound, http.StatusNotFound, "clip_not_found"},
		{"overlay item not found", overlay.ErrItemNotFound, http.StatusNotFound, "NOT_FOUND"},
		{"drag already active", overlay.ErrDragActive, http.StatusConflict, "DRAG_ACTIVE"},
		{"no viewport", overlay.ErrNoViewport, http.StatusUnprocessableEntity, "UNPROCESSABLE"},
		{"unknown suggestion", suggest.ErrUnknownSuggestion, http.StatusNotFound, "NOT_FOUND"},
		{"no insights", suggest.ErrNoInsights, http.StatusUnprocessableEntity, "UNPROCESSABLE"},
		{"infrastructure failure", errors.New("disk full"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			writeCommandError(rr, tt.err)

			if rr.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			if got := decodeJSONBody(t, rr)["code"]; got != tt.wantCode {
				t.Errorf("code = %v, want %s", got, tt.wantCode)
			}
		})
	}
}
