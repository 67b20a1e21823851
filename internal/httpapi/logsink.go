package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// LogEvent is a client-side diagnostic event shipped to the server so
// browser logs and backend logs end up in one place.
type LogEvent struct {
	ClientID string         `json:"client_id"`
	Type     string         `json:"type"`
	Message  string         `json:"message,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
}

func (e LogEvent) validate() error {
	if strings.TrimSpace(e.ClientID) == "" {
		return errors.New("client_id is required")
	}
	if strings.TrimSpace(e.Type) == "" {
		return errors.New("type is required")
	}
	return nil
}

func (s *Server) handleClientLog(w http.ResponseWriter, r *http.Request) {
	var evt LogEvent
	if err := decodeJSON(r, &evt); err != nil {
		respondError(w, http.StatusUnprocessableEntity, "invalid_log_event", err.Error())
		return
	}
	if err := evt.validate(); err != nil {
		respondError(w, http.StatusUnprocessableEntity, "invalid_log_event", err.Error())
		return
	}

	s.recordClientLog(evt, r.RemoteAddr, "http")
	respondJSON(w, http.StatusOK, map[string]any{"ok": true})
}

const logWSReadDeadline = 120 * time.Second

// handleClientLogWS accepts a stream of LogEvent frames over a
// websocket. Malformed frames are rejected individually; the stream
// stays open so a single bad event does not drop the client's pipe.
func (s *Server) handleClientLogWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	conn.SetReadLimit(64 << 10)
	_ = conn.SetReadDeadline(time.Now().Add(logWSReadDeadline))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(logWSReadDeadline))
		return nil
	})

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(logWSReadDeadline))
		if msgType != websocket.TextMessage {
			continue
		}

		var evt LogEvent
		if err := json.Unmarshal(data, &evt); err != nil {
			if err := s.writeAck(conn, map[string]any{"ok": false, "error": "invalid log event"}); err != nil {
				return
			}
			continue
		}
		if err := evt.validate(); err != nil {
			if err := s.writeAck(conn, map[string]any{"ok": false, "error": err.Error()}); err != nil {
				return
			}
			continue
		}

		s.recordClientLog(evt, r.RemoteAddr, "ws")
		if err := s.writeAck(conn, map[string]any{"ok": true}); err != nil {
			return
		}
	}
}

func (s *Server) writeAck(conn *websocket.Conn, v any) error {
	_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return conn.WriteJSON(v)
}

func (s *Server) recordClientLog(evt LogEvent, remote, transport string) {
	s.log.Info().
		Str("client_id", evt.ClientID).
		Str("evt_type", evt.Type).
		Str("evt_message", evt.Message).
		Interface("evt_data", evt.Data).
		Str("remote", remote).
		Msg("client.log")
	s.metrics.ClientLogEvents.WithLabelValues(transport).Inc()
}
