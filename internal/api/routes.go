package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cutbench/cutbench-agent/internal/config"
	"github.com/cutbench/cutbench-agent/internal/session"
)

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))

	r.Get("/health", healthHandler(cfg))
	r.Get("/ws", wsHandler(cfg))

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Repository, cfg.Logger))

		r.Get("/status", statusHandler(cfg))

		r.Get("/projects", listProjectsHandler(cfg))
		r.Post("/projects", createProjectHandler(cfg))
		r.Get("/projects/{id}", getProjectHandler(cfg))
		r.Patch("/projects/{id}", renameProjectHandler(cfg))
		r.Delete("/projects/{id}", deleteProjectHandler(cfg))

		r.Post("/projects/{id}/videos", importVideoHandler(cfg))
		r.Get("/projects/{id}/videos", listVideosHandler(cfg))
		r.Get("/videos/{id}", getVideoHandler(cfg))
		r.Delete("/videos/{id}", deleteVideoHandler(cfg))
		r.Get("/videos/{id}/stream", streamVideoHandler(cfg))

		r.Get("/projects/{id}/timeline", getTimelineHandler(cfg))
		r.Put("/projects/{id}/timeline", putTimelineHandler(cfg))
		r.Delete("/projects/{id}/timeline", clearTimelineHandler(cfg))

		r.Post("/projects/{id}/timeline/clips", addClipHandler(cfg))
		r.Post("/projects/{id}/timeline/clips/reorder", reorderClipsHandler(cfg))
		r.Post("/projects/{id}/timeline/clips/select", selectClipHandler(cfg))
		r.Patch("/projects/{id}/timeline/clips/{clipID}", updateClipHandler(cfg))
		r.Delete("/projects/{id}/timeline/clips/{clipID}", removeClipHandler(cfg))
		r.Post("/projects/{id}/timeline/clips/{clipID}/split", splitClipHandler(cfg))
		r.Post("/projects/{id}/timeline/clips/{clipID}/trim-in", trimClipInHandler(cfg))
		r.Post("/projects/{id}/timeline/clips/{clipID}/trim-out", trimClipOutHandler(cfg))
		r.Post("/projects/{id}/timeline/clips/{clipID}/speed", clipSpeedHandler(cfg))

		r.Get("/transitions/types", transitionTypesHandler())
		r.Put("/projects/{id}/timeline/transitions", setTransitionHandler(cfg))
		r.Delete("/projects/{id}/timeline/transitions", removeTransitionHandler(cfg))
		r.Post("/projects/{id}/timeline/transitions/auto", autoTransitionsHandler(cfg))

		r.Post("/projects/{id}/timeline/markers", addMarkerHandler(cfg))
		r.Delete("/projects/{id}/timeline/markers/{markerID}", removeMarkerHandler(cfg))

		r.Get("/projects/{id}/playback", playbackStateHandler(cfg))
		r.Post("/projects/{id}/playback/play", playHandler(cfg))
		r.Post("/projects/{id}/playback/pause", pauseHandler(cfg))
		r.Post("/projects/{id}/playback/seek", seekHandler(cfg))

		r.Get("/projects/{id}/overlays", listOverlaysHandler(cfg))
		r.Post("/projects/{id}/overlays", addOverlayHandler(cfg))
		r.Post("/projects/{id}/overlays/viewport", viewportHandler(cfg))
		r.Patch("/projects/{id}/overlays/{overlayID}", updateOverlayHandler(cfg))
		r.Delete("/projects/{id}/overlays/{overlayID}", removeOverlayHandler(cfg))

		r.Put("/projects/{id}/insights", putInsightsHandler(cfg))
		r.Get("/projects/{id}/insights", getInsightsHandler(cfg))
		r.Get("/projects/{id}/suggestions", listSuggestionsHandler(cfg))
		r.Post("/projects/{id}/suggestions/{suggestionID}/apply", applySuggestionHandler(cfg))
		r.Post("/projects/{id}/suggestions/{suggestionID}/ignore", ignoreSuggestionHandler(cfg))
		r.Post("/projects/{id}/suggestions/{suggestionID}/reset", resetSuggestionHandler(cfg))

		r.Post("/projects/{id}/analyze", analyzeHandler(cfg))
		r.Post("/projects/{id}/analyze/captions", analyzeCaptionsHandler(cfg))
		r.Post("/projects/{id}/analyze/scenes", analyzeScenesHandler(cfg))

		r.Get("/projects/{id}/timeline/export", exportTimelineHandler(cfg))
		r.Post("/projects/{id}/exports", enqueueExportHandler(cfg))
		r.Get("/projects/{id}/jobs", listJobsHandler(cfg))
		r.Get("/jobs/{id}", getJobHandler(cfg))
		r.Get("/jobs/{id}/download", downloadArtifactHandler(cfg))
	})

	return r
}

// openSession resolves the project id from the URL and opens (or returns)
// its live session. A nil return means the error response has been written.
func openSession(w http.ResponseWriter, r *http.Request, cfg ServerConfig) *session.Session {
	projectID := chi.URLParam(r, "id")
	if projectID == "" {
		WriteError(w, http.StatusBadRequest, "project id required", "BAD_REQUEST")
		return nil
	}

	s, err := cfg.Sessions.Open(r.Context(), projectID)
	if err != nil {
		if errors.Is(err, session.ErrProjectNotFound) {
			WriteError(w, http.StatusNotFound, "project not found", "NOT_FOUND")
		} else {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
		}
		return nil
	}
	return s
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
		return false
	}
	return true
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uptime := int64(time.Since(cfg.StartTime).Seconds())
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:   "ok",
			Version:  config.Version,
			UptimeS:  uptime,
			DeviceID: cfg.DeviceID,
		})
	}
}

func statusHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		projects, _ := cfg.Repository.CountProjects(ctx)
		videos, _ := cfg.Repository.CountVideos(ctx)
		jobsRunning, _ := cfg.Repository.CountActiveJobs(ctx)

		state := "idle"
		if cfg.Runner != nil && cfg.Runner.IsPaused() {
			state = "paused"
		} else if jobsRunning > 0 {
			state = "busy"
		}

		resp := StatusResponse{
			State:         state,
			Version:       config.Version,
			ProjectsCount: projects,
			VideosCount:   videos,
			JobsRunning:   jobsRunning,
			OpenSessions:  cfg.Sessions.OpenCount(),
		}

		if cfg.Doctor != nil {
			if caps, err := cfg.Doctor.Get(ctx); err == nil && caps != nil {
				resp.Media = &MediaStatusResponse{
					FFprobeAvailable: caps.FFprobeAvailable,
					FFprobeVersion:   caps.FFprobeVersion,
					LastProbeAt:      caps.ProbedAt.Format(time.RFC3339),
				}
			}
		}

		WriteJSON(w, http.StatusOK, resp)
	}
}

func listProjectsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		projects, err := cfg.Service.ListProjects(r.Context())
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list projects", "INTERNAL_ERROR")
			return
		}
		WriteJSON(w, http.StatusOK, map[string]any{"projects": projects})
	}
}

func createProjectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateProjectRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.Name == "" {
			WriteError(w, http.StatusBadRequest, "name is required", "BAD_REQUEST")
			return
		}

		p, err := cfg.Service.CreateProject(r.Context(), req.Name)
		if err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}
		WriteJSON(w, http.StatusCreated, p)
	}
}

func getProjectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := cfg.Service.GetProject(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		if p == nil {
			WriteError(w, http.StatusNotFound, "project not found", "NOT_FOUND")
			return
		}
		WriteJSON(w, http.StatusOK, p)
	}
}

func renameProjectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RenameProjectRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.Name == "" {
			WriteError(w, http.StatusBadRequest, "name is required", "BAD_REQUEST")
			return
		}

		p, err := cfg.Service.RenameProject(r.Context(), chi.URLParam(r, "id"), req.Name)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		if p == nil {
			WriteError(w, http.StatusNotFound, "project not found", "NOT_FOUND")
			return
		}
		WriteJSON(w, http.StatusOK, p)
	}
}

func deleteProjectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		cfg.Sessions.Close(id)
		if err := cfg.Service.DeleteProject(r.Context(), id); err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func importVideoHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ImportVideoRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.Path == "" {
			WriteError(w, http.StatusBadRequest, "path is required", "BAD_REQUEST")
			return
		}

		video, err := cfg.Service.ImportVideo(r.Context(), chi.URLParam(r, "id"), req.Path)
		if err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}
		WriteJSON(w, http.StatusCreated, video)
	}
}

func listVideosHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		videos, err := cfg.Service.ListVideos(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list videos", "INTERNAL_ERROR")
			return
		}
		WriteJSON(w, http.StatusOK, map[string]any{"videos": videos})
	}
}

func getVideoHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		video, err := cfg.Service.GetVideo(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		if video == nil {
			WriteError(w, http.StatusNotFound, "video not found", "NOT_FOUND")
			return
		}
		WriteJSON(w, http.StatusOK, video)
	}
}

func deleteVideoHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := cfg.Service.DeleteVideo(r.Context(), chi.URLParam(r, "id")); err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func streamVideoHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		video, err := cfg.Service.GetVideo(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		if video == nil {
			WriteError(w, http.StatusNotFound, "video not found", "NOT_FOUND")
			return
		}

		if err := cfg.Streamer.ServeFile(w, r, video.Path); err != nil {
			cfg.Logger.Error("stream error", "error", err, "video_id", video.ID)
		}
	}
}
