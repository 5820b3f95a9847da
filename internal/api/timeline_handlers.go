package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cutbench/cutbench-agent/internal/timeline"
)

func getTimelineHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := openSession(w, r, cfg)
		if s == nil {
			return
		}
		WriteJSON(w, http.StatusOK, TimelineResponse{
			Timeline:       s.Store.Snapshot(),
			SelectedClipID: s.Store.SelectedClipID(),
		})
	}
}

func putTimelineHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := openSession(w, r, cfg)
		if s == nil {
			return
		}

		var doc timeline.Data
		if !decodeBody(w, r, &doc) {
			return
		}

		if err := s.Store.Load(doc); err != nil {
			writeCommandError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, TimelineResponse{Timeline: s.Store.Snapshot()})
	}
}

func clearTimelineHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := openSession(w, r, cfg)
		if s == nil {
			return
		}
		d := s.Store.Clear()
		WriteJSON(w, http.StatusOK, TimelineResponse{Timeline: d})
	}
}

func addClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := openSession(w, r, cfg)
		if s == nil {
			return
		}

		var req AddClipRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.SourceVideoID == "" {
			WriteError(w, http.StatusBadRequest, "sourceVideoId is required", "BAD_REQUEST")
			return
		}

		video, err := cfg.Service.GetVideo(r.Context(), req.SourceVideoID)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		if video == nil {
			WriteError(w, http.StatusNotFound, "source video not found", "NOT_FOUND")
			return
		}

		// An omitted out point takes the whole source.
		outPoint := video.Duration
		if req.OutPoint != nil {
			outPoint = *req.OutPoint
		}

		label := req.Label
		if label == "" {
			label = video.Filename
		}

		d, err := s.Store.AddClip(timeline.ClipInput{
			SourceVideoID:  video.ID,
			SourceFilename: video.Filename,
			InPoint:        req.InPoint,
			OutPoint:       outPoint,
			Speed:          req.Speed,
			Label:          label,
		})
		if err != nil {
			writeCommandError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, TimelineResponse{Timeline: d})
	}
}

func updateClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := openSession(w, r, cfg)
		if s == nil {
			return
		}

		var req UpdateClipRequest
		if !decodeBody(w, r, &req) {
			return
		}

		d, err := s.Store.UpdateClip(chi.URLParam(r, "clipID"), timeline.ClipPatch{
			InPoint:  req.InPoint,
			OutPoint: req.OutPoint,
			Label:    req.Label,
		})
		if err != nil {
			writeCommandError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, TimelineResponse{Timeline: d})
	}
}

func removeClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := openSession(w, r, cfg)
		if s == nil {
			return
		}

		d, err := s.Store.RemoveClip(chi.URLParam(r, "clipID"))
		if err != nil {
			writeCommandError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, TimelineResponse{Timeline: d})
	}
}

func splitClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := openSession(w, r, cfg)
		if s == nil {
			return
		}

		var req SplitClipRequest
		if !decodeBody(w, r, &req) {
			return
		}

		d, err := s.Store.SplitClip(chi.URLParam(r, "clipID"), req.Time)
		if err != nil {
			writeCommandError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, TimelineResponse{Timeline: d})
	}
}

func trimClipInHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := openSession(w, r, cfg)
		if s == nil {
			return
		}

		var req TrimClipRequest
		if !decodeBody(w, r, &req) {
			return
		}

		d, err := s.Store.TrimClipIn(chi.URLParam(r, "clipID"), req.Time)
		if err != nil {
			writeCommandError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, TimelineResponse{Timeline: d})
	}
}

func trimClipOutHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := openSession(w, r, cfg)
		if s == nil {
			return
		}

		var req TrimClipRequest
		if !decodeBody(w, r, &req) {
			return
		}

		d, err := s.Store.TrimClipOut(chi.URLParam(r, "clipID"), req.Time)
		if err != nil {
			writeCommandError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, TimelineResponse{Timeline: d})
	}
}

func clipSpeedHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := openSession(w, r, cfg)
		if s == nil {
			return
		}

		var req ClipSpeedRequest
		if !decodeBody(w, r, &req) {
			return
		}

		d, err := s.Store.SetClipSpeed(chi.URLParam(r, "clipID"), req.Speed)
		if err != nil {
			writeCommandError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, TimelineResponse{Timeline: d})
	}
}

func reorderClipsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := openSession(w, r, cfg)
		if s == nil {
			return
		}

		var req ReorderClipsRequest
		if !decodeBody(w, r, &req) {
			return
		}

		d, err := s.Store.ReorderClips(req.ClipIDs)
		if err != nil {
			writeCommandError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, TimelineResponse{Timeline: d})
	}
}

func selectClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := openSession(w, r, cfg)
		if s == nil {
			return
		}

		var req SelectClipRequest
		if !decodeBody(w, r, &req) {
			return
		}

		if err := s.Store.SelectClip(req.ClipID); err != nil {
			writeCommandError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]string{"selectedClipId": s.Store.SelectedClipID()})
	}
}

func transitionTypesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, TransitionTypesResponse{Types: timeline.TransitionTypes()})
	}
}

func setTransitionHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := openSession(w, r, cfg)
		if s == nil {
			return
		}

		var req TransitionRequest
		if !decodeBody(w, r, &req) {
			return
		}

		d, err := s.Store.SetTransition(req.FromClipID, req.ToClipID, req.Type, req.Duration)
		if err != nil {
			writeCommandError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, TimelineResponse{Timeline: d})
	}
}

func removeTransitionHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := openSession(w, r, cfg)
		if s == nil {
			return
		}

		from := r.URL.Query().Get("from")
		to := r.URL.Query().Get("to")
		if from == "" || to == "" {
			WriteError(w, http.StatusBadRequest, "from and to clip ids are required", "BAD_REQUEST")
			return
		}

		d, err := s.Store.RemoveTransition(from, to)
		if err != nil {
			writeCommandError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, TimelineResponse{Timeline: d})
	}
}

func autoTransitionsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := openSession(w, r, cfg)
		if s == nil {
			return
		}

		var req AutoTransitionsRequest
		if !decodeBody(w, r, &req) {
			return
		}

		d, err := s.Store.AutoTransitions(req.Type)
		if err != nil {
			writeCommandError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, TimelineResponse{Timeline: d})
	}
}

func addMarkerHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := openSession(w, r, cfg)
		if s == nil {
			return
		}

		var req AddMarkerRequest
		if !decodeBody(w, r, &req) {
			return
		}

		mtype := req.Type
		if mtype == "" {
			mtype = timeline.MarkerUser
		}

		d, err := s.Store.AddMarker(req.Position, req.Label, req.Color, mtype)
		if err != nil {
			writeCommandError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, TimelineResponse{Timeline: d})
	}
}

func removeMarkerHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := openSession(w, r, cfg)
		if s == nil {
			return
		}

		d, err := s.Store.RemoveMarker(chi.URLParam(r, "markerID"))
		if err != nil {
			writeCommandError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, TimelineResponse{Timeline: d})
	}
}

func playbackStateHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := openSession(w, r, cfg)
		if s == nil {
			return
		}
		WriteJSON(w, http.StatusOK, PlaybackResponse{State: s.Clock.State()})
	}
}

func playHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := openSession(w, r, cfg)
		if s == nil {
			return
		}
		WriteJSON(w, http.StatusOK, PlaybackResponse{State: s.Clock.Play()})
	}
}

func pauseHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := openSession(w, r, cfg)
		if s == nil {
			return
		}
		WriteJSON(w, http.StatusOK, PlaybackResponse{State: s.Clock.Pause()})
	}
}

func seekHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := openSession(w, r, cfg)
		if s == nil {
			return
		}

		var req SeekRequest
		if !decodeBody(w, r, &req) {
			return
		}
		WriteJSON(w, http.StatusOK, PlaybackResponse{State: s.Clock.SeekTo(req.Time)})
	}
}
