package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cutbench/cutbench-agent/internal/session"
	"github.com/cutbench/cutbench-agent/internal/ws"
)

// wsHandler upgrades a browser connection into a project room. Browsers
// cannot set headers on WebSocket requests, so the auth token rides in the
// query string instead of the Authorization header.
func wsHandler(cfg ServerConfig) http.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		// The server binds to 127.0.0.1 only; cross-origin pages on the
		// same machine are the expected callers.
		CheckOrigin: func(*http.Request) bool { return true },
	}

	return func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("token")
		storedToken, err := cfg.Repository.GetConfig(r.Context(), "auth_token")
		if err != nil || storedToken == "" || token != storedToken {
			WriteError(w, http.StatusUnauthorized, "invalid token", "UNAUTHORIZED")
			return
		}

		projectID := r.URL.Query().Get("project_id")
		if projectID == "" {
			WriteError(w, http.StatusBadRequest, "project_id is required", "BAD_REQUEST")
			return
		}

		s, err := cfg.Sessions.Open(r.Context(), projectID)
		if err != nil {
			if err == session.ErrProjectNotFound {
				WriteError(w, http.StatusNotFound, "project not found", "NOT_FOUND")
			} else {
				WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			}
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			cfg.Logger.Warn("ws upgrade failed", "error", err, "project_id", projectID)
			return
		}

		client := ws.NewClient(cfg.Hub, conn, projectID, cfg.Logger)
		cfg.Hub.Register(client)

		go client.WritePump()
		client.ReadPump(mediaEventHandler(cfg, s))
	}
}

type timePayload struct {
	Time float64 `json:"time"`
}

type playResultPayload struct {
	OK     bool   `json:"ok"`
	Reason string `json:"reason,omitempty"`
}

type sizePayload struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type dragBeginPayload struct {
	ID string  `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
}

type dragMovePayload struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// mediaEventHandler routes the browser's media feedback into the session.
// Playback ticks and drag moves are high-frequency, so failures are
// answered on the sending client only, never broadcast.
func mediaEventHandler(cfg ServerConfig, s *session.Session) func(c *ws.Client, msg ws.Message) {
	return func(c *ws.Client, msg ws.Message) {
		switch msg.Type {
		case ws.MsgTimeUpdate:
			var p timePayload
			if json.Unmarshal(msg.Data, &p) == nil {
				s.Clock.HandleTimeUpdate(p.Time)
			}

		case ws.MsgEnded:
			s.Clock.HandleEnded()

		case ws.MsgPlayResult:
			var p playResultPayload
			if json.Unmarshal(msg.Data, &p) == nil && !p.OK {
				s.Clock.HandlePlayRejected(p.Reason)
			}

		case ws.MsgSeek:
			var p timePayload
			if json.Unmarshal(msg.Data, &p) == nil {
				s.Clock.SeekTo(p.Time)
			}

		case ws.MsgPlay:
			s.Clock.Play()

		case ws.MsgPause:
			s.Clock.Pause()

		case ws.MsgViewport:
			var p sizePayload
			if json.Unmarshal(msg.Data, &p) != nil {
				return
			}
			if _, err := s.SetViewport(p.Width, p.Height); err != nil {
				sendClientError(c, err)
			}

		case ws.MsgSourceSize:
			var p sizePayload
			if json.Unmarshal(msg.Data, &p) != nil {
				return
			}
			if _, err := s.SetSourceSize(p.Width, p.Height); err != nil {
				sendClientError(c, err)
			}

		case ws.MsgDragBegin:
			var p dragBeginPayload
			if json.Unmarshal(msg.Data, &p) != nil {
				return
			}
			if _, err := s.BeginDrag(p.ID, p.X, p.Y); err != nil {
				sendClientError(c, err)
			}

		case ws.MsgDragMove:
			var p dragMovePayload
			if json.Unmarshal(msg.Data, &p) != nil {
				return
			}
			if _, err := s.DragMove(p.X, p.Y); err != nil {
				sendClientError(c, err)
			}

		case ws.MsgDragEnd:
			s.EndDrag(context.Background())

		default:
			if cfg.Logger != nil {
				cfg.Logger.Warn("unknown ws message", "type", msg.Type, "project_id", c.ProjectID())
			}
		}
	}
}

func sendClientError(c *ws.Client, err error) {
	data, mErr := json.Marshal(map[string]string{"error": err.Error()})
	if mErr != nil {
		return
	}
	c.Send(ws.Message{
		Type:      ws.EventError,
		ProjectID: c.ProjectID(),
		Data:      data,
		Timestamp: time.Now().UnixMilli(),
	})
}
