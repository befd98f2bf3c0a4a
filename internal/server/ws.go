package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/boshu2/ghost-sentry/internal/bus"
	"github.com/boshu2/ghost-sentry/internal/cot"
	"github.com/boshu2/ghost-sentry/internal/track"
)

const (
	wsWriteTimeout = 5 * time.Second
	wsPingInterval = 30 * time.Second
	// wsBuffer bounds the per-client event queue; a client that falls this
	// far behind starts losing events.
	wsBuffer = 64
)

// handleTrackStream streams the live picture as JSON events. On connect the
// client receives a snapshot (every persisted track, then one telemetry
// event per asset) before the live feed starts.
func (s *Server) handleTrackStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}

	sub := s.bus.Watch(wsBuffer)
	defer s.bus.Unwatch(sub)
	defer conn.Close()

	tracks, err := s.store.Tracks()
	if err != nil {
		slog.Error("track stream snapshot failed", "error", err)
		return
	}
	for _, t := range tracks {
		if err := s.writeEvent(conn, bus.Event{Type: bus.EventTrack, EntityID: t.EntityID, Data: t}); err != nil {
			return
		}
	}
	for _, a := range s.fleet.List() {
		if err := s.writeEvent(conn, bus.Event{Type: bus.EventAssetTelemetry, Data: a}); err != nil {
			return
		}
	}

	done := readUntilClose(conn)
	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()

	for {
		select {
		case ev, ok := <-sub.C:
			if !ok {
				return
			}
			if err := s.writeEvent(conn, ev); err != nil {
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// handleCoTStream streams the picture as CoT XML text frames: a snapshot of
// the persisted tracks, then one frame per live track event.
func (s *Server) handleCoTStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}

	sub := s.bus.Watch(wsBuffer)
	defer s.bus.Unwatch(sub)
	defer conn.Close()

	tracks, err := s.store.Tracks()
	if err != nil {
		slog.Error("cot stream snapshot failed", "error", err)
		return
	}
	for _, t := range tracks {
		if xml, ok := cot.FromTrack(t); ok {
			if err := writeText(conn, xml); err != nil {
				return
			}
		}
	}

	done := readUntilClose(conn)
	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()

	for {
		select {
		case ev, ok := <-sub.C:
			if !ok {
				return
			}
			if ev.Type != bus.EventTrack {
				continue
			}
			t, ok := ev.Data.(track.Track)
			if !ok {
				continue
			}
			if xml, ok := cot.FromTrack(t); ok {
				if err := writeText(conn, xml); err != nil {
					return
				}
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func (s *Server) writeEvent(conn *websocket.Conn, ev bus.Event) error {
	conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return conn.WriteJSON(ev)
}

func writeText(conn *websocket.Conn, payload string) error {
	conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return conn.WriteMessage(websocket.TextMessage, []byte(payload))
}

// readUntilClose drains inbound frames so pongs and close frames are
// processed, signalling on the returned channel when the peer goes away.
func readUntilClose(conn *websocket.Conn) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	return done
}
