package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cutbench/cutbench-agent/internal/overlay"
)

func listOverlaysHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := openSession(w, r, cfg)
		if s == nil {
			return
		}

		captions, texts := s.Compositor.Items()
		WriteJSON(w, http.StatusOK, OverlaysResponse{
			Captions:  captions,
			Texts:     texts,
			VideoRect: s.Compositor.VideoRect(),
		})
	}
}

func addOverlayHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := openSession(w, r, cfg)
		if s == nil {
			return
		}

		var req AddOverlayRequest
		if !decodeBody(w, r, &req) {
			return
		}

		item, err := s.AddOverlay(r.Context(), overlay.ItemInput{
			Kind:     req.Kind,
			Text:     req.Text,
			Start:    req.Start,
			End:      req.End,
			Position: req.Position,
			Style:    req.Style,
		})
		if err != nil {
			writeCommandError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, item)
	}
}

func updateOverlayHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := openSession(w, r, cfg)
		if s == nil {
			return
		}

		var req UpdateOverlayRequest
		if !decodeBody(w, r, &req) {
			return
		}

		item, err := s.UpdateOverlay(r.Context(), chi.URLParam(r, "overlayID"), overlay.ItemPatch{
			Text:     req.Text,
			Start:    req.Start,
			End:      req.End,
			Position: req.Position,
			Style:    req.Style,
		})
		if err != nil {
			writeCommandError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, item)
	}
}

func removeOverlayHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := openSession(w, r, cfg)
		if s == nil {
			return
		}

		if err := s.RemoveOverlay(r.Context(), chi.URLParam(r, "overlayID")); err != nil {
			writeCommandError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// viewportHandler updates the compositor geometry. Container and source
// dimensions may arrive together or separately; the video rect reflects
// whatever is known so far.
func viewportHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := openSession(w, r, cfg)
		if s == nil {
			return
		}

		var req ViewportRequest
		if !decodeBody(w, r, &req) {
			return
		}

		if req.ContainerWidth > 0 || req.ContainerHeight > 0 {
			if _, err := s.SetViewport(req.ContainerWidth, req.ContainerHeight); err != nil {
				writeCommandError(w, err)
				return
			}
		}
		if req.SourceWidth > 0 || req.SourceHeight > 0 {
			if _, err := s.SetSourceSize(req.SourceWidth, req.SourceHeight); err != nil {
				writeCommandError(w, err)
				return
			}
		}

		WriteJSON(w, http.StatusOK, ViewportResponse{VideoRect: s.Compositor.VideoRect()})
	}
}
