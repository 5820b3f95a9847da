package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cutbench/cutbench-agent/internal/logging"
	"github.com/cutbench/cutbench-agent/internal/overlay"
	"github.com/cutbench/cutbench-agent/internal/project"
	"github.com/cutbench/cutbench-agent/internal/session"
	"github.com/cutbench/cutbench-agent/internal/suggest"
	"github.com/cutbench/cutbench-agent/internal/timeline"
)

type contextKey string

const RequestIDKey contextKey = "request_id"

func AuthMiddleware(repo project.Repository, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if auth == "" {
				WriteError(w, http.StatusUnauthorized, "missing authorization header", "UNAUTHORIZED")
				return
			}

			if !strings.HasPrefix(auth, "Bearer ") {
				WriteError(w, http.StatusUnauthorized, "invalid authorization format", "UNAUTHORIZED")
				return
			}

			token := strings.TrimPrefix(auth, "Bearer ")

			storedToken, err := repo.GetConfig(r.Context(), "auth_token")
			if err != nil || storedToken == "" {
				logger.Error("failed to get auth token from config", "error", err)
				WriteError(w, http.StatusInternalServerError, "auth configuration error", "INTERNAL_ERROR")
				return
			}

			if token != storedToken {
				logger.Warn("invalid auth token", "provided", logging.SanitizeToken(token))
				WriteError(w, http.StatusUnauthorized, "invalid token", "UNAUTHORIZED")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func LoggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			requestID, _ := r.Context().Value(RequestIDKey).(string)
			logger.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", wrapped.status,
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", requestID,
			)
		})
	}
}

func RecoveryMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					requestID, _ := r.Context().Value(RequestIDKey).(string)
					logger.Error("panic recovered", "error", err, "request_id", requestID)
					WriteError(w, http.StatusInternalServerError, "internal server error", "INTERNAL_ERROR")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func RequestIDMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := uuid.NewString()[:8]
			ctx := context.WithValue(r.Context(), RequestIDKey, requestID)
			w.Header().Set("X-Request-ID", requestID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (w *responseWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func WriteError(w http.ResponseWriter, status int, message, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: message, Code: code})
}

func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeCommandError maps an edit-command failure onto the HTTP error
// envelope. Rejected commands are 422 with the rejection reason as the code;
// unknown entities are 404; a live drag blocking a second one is 409.
func writeCommandError(w http.ResponseWriter, err error) {
	switch {
	case timeline.IsRejection(err):
		reason := timeline.ReasonOf(err)
		if reason == timeline.ReasonClipNotFound || reason == timeline.ReasonMarkerNotFound || reason == timeline.ReasonTransitionNotFound {
			WriteError(w, http.StatusNotFound, err.Error(), string(reason))
			return
		}
		WriteError(w, http.StatusUnprocessableEntity, err.Error(), string(reason))
	case errors.Is(err, session.ErrProjectNotFound),
		errors.Is(err, overlay.ErrItemNotFound),
		errors.Is(err, suggest.ErrUnknownSuggestion):
		WriteError(w, http.StatusNotFound, err.Error(), "NOT_FOUND")
	case errors.Is(err, overlay.ErrDragActive):
		WriteError(w, http.StatusConflict, err.Error(), "DRAG_ACTIVE")
	case errors.Is(err, overlay.ErrZeroDimensions),
		errors.Is(err, overlay.ErrNoViewport),
		errors.Is(err, overlay.ErrInvalidRange),
		errors.Is(err, overlay.ErrUnknownKind),
		errors.Is(err, overlay.ErrNoDrag),
		errors.Is(err, suggest.ErrNoInsights):
		WriteError(w, http.StatusUnprocessableEntity, err.Error(), "UNPROCESSABLE")
	default:
		WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
	}
}
