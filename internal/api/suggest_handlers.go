package api

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// maxInsightsBytes bounds the uploaded analysis document.
const maxInsightsBytes = 8 << 20

func putInsightsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := openSession(w, r, cfg)
		if s == nil {
			return
		}

		raw, err := io.ReadAll(io.LimitReader(r.Body, maxInsightsBytes+1))
		if err != nil {
			WriteError(w, http.StatusBadRequest, "failed to read request body", "BAD_REQUEST")
			return
		}
		if len(raw) == 0 {
			WriteError(w, http.StatusBadRequest, "insights document is empty", "BAD_REQUEST")
			return
		}
		if len(raw) > maxInsightsBytes {
			WriteError(w, http.StatusRequestEntityTooLarge, "insights document too large", "TOO_LARGE")
			return
		}

		if err := s.LoadInsights(r.Context(), raw); err != nil {
			WriteError(w, http.StatusUnprocessableEntity, err.Error(), "INVALID_INSIGHTS")
			return
		}
		WriteJSON(w, http.StatusOK, SuggestionsResponse{
			Suggestions: s.Suggestions.Suggestions(),
			Statuses:    s.Suggestions.Statuses(),
		})
	}
}

// getInsightsHandler serves the stored document byte for byte; it is never
// re-serialized.
func getInsightsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, err := cfg.Service.GetInsights(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		if raw == nil {
			WriteError(w, http.StatusNotFound, "no insights for project", "NOT_FOUND")
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(raw)
	}
}

func listSuggestionsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := openSession(w, r, cfg)
		if s == nil {
			return
		}
		WriteJSON(w, http.StatusOK, SuggestionsResponse{
			Suggestions: s.Suggestions.Suggestions(),
			Statuses:    s.Suggestions.Statuses(),
		})
	}
}

func applySuggestionHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := openSession(w, r, cfg)
		if s == nil {
			return
		}

		d, err := s.ApplySuggestion(r.Context(), chi.URLParam(r, "suggestionID"))
		if err != nil {
			writeCommandError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, TimelineResponse{Timeline: d})
	}
}

func ignoreSuggestionHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := openSession(w, r, cfg)
		if s == nil {
			return
		}

		if err := s.IgnoreSuggestion(r.Context(), chi.URLParam(r, "suggestionID")); err != nil {
			writeCommandError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, SuggestionsResponse{
			Suggestions: s.Suggestions.Suggestions(),
			Statuses:    s.Suggestions.Statuses(),
		})
	}
}

func resetSuggestionHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := openSession(w, r, cfg)
		if s == nil {
			return
		}

		if err := s.ResetSuggestion(r.Context(), chi.URLParam(r, "suggestionID")); err != nil {
			writeCommandError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, SuggestionsResponse{
			Suggestions: s.Suggestions.Suggestions(),
			Statuses:    s.Suggestions.Statuses(),
		})
	}
}

func analyzeHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := openSession(w, r, cfg)
		if s == nil {
			return
		}

		var req AnalyzeRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.VideoID == "" {
			WriteError(w, http.StatusBadRequest, "videoId is required", "BAD_REQUEST")
			return
		}

		job, err := s.RequestAnalysis(r.Context(), req.VideoID)
		if err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}
		WriteJSON(w, http.StatusAccepted, job)
	}
}

func analyzeCaptionsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := openSession(w, r, cfg)
		if s == nil {
			return
		}

		var req AnalyzeRequest
		if !decodeBody(w, r, &req) {
			return
		}

		video, err := cfg.Service.GetVideo(r.Context(), req.VideoID)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		if video == nil {
			WriteError(w, http.StatusNotFound, "video not found", "NOT_FOUND")
			return
		}

		items, err := s.GenerateCaptions(r.Context(), video)
		if err != nil {
			WriteError(w, http.StatusBadGateway, err.Error(), "INFERENCE_FAILED")
			return
		}
		WriteJSON(w, http.StatusOK, map[string]any{"captions": items})
	}
}

func analyzeScenesHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := openSession(w, r, cfg)
		if s == nil {
			return
		}

		var req AnalyzeRequest
		if !decodeBody(w, r, &req) {
			return
		}

		video, err := cfg.Service.GetVideo(r.Context(), req.VideoID)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		if video == nil {
			WriteError(w, http.StatusNotFound, "video not found", "NOT_FOUND")
			return
		}

		scenes, err := s.DetectScenes(r.Context(), video)
		if err != nil {
			WriteError(w, http.StatusBadGateway, err.Error(), "INFERENCE_FAILED")
			return
		}
		WriteJSON(w, http.StatusOK, map[string]any{
			"scenes":   scenes,
			"timeline": s.Store.Snapshot(),
		})
	}
}
