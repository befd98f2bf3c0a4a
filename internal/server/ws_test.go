package server

import (
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boshu2/ghost-sentry/internal/bus"
	"github.com/boshu2/ghost-sentry/internal/track"
)

func dialWS(t *testing.T, env *testEnv, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(env.ts.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func TestTrackStream_SnapshotThenLive(t *testing.T) {
	env := newTestEnv(t)
	entityID, _ := env.injectDetection(t)

	conn := dialWS(t, env, "/ws/tracks")

	// Snapshot: one persisted track, then one telemetry event per asset.
	var ev bus.Event
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, bus.EventTrack, ev.Type)
	assert.Equal(t, entityID, ev.EntityID)

	seen := map[string]bool{}
	for i := 0; i < 3; i++ {
		require.NoError(t, conn.ReadJSON(&ev))
		require.Equal(t, bus.EventAssetTelemetry, ev.Type)
		data, ok := ev.Data.(map[string]any)
		require.True(t, ok)
		seen[data["id"].(string)] = true
	}
	assert.True(t, seen["drone-alpha"] && seen["drone-beta"] && seen["ugv-sierra"])

	// Live: a published event reaches the client.
	env.bus.Publish(bus.Event{
		Type:     bus.EventTrack,
		EntityID: "live-entity",
		Data:     track.Track{EntityID: "live-entity"},
	})
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, "live-entity", ev.EntityID)
}

func TestCoTStream_SnapshotThenLive(t *testing.T) {
	env := newTestEnv(t)
	env.injectDetection(t)

	conn := dialWS(t, env, "/ws/cot")

	msgType, payload, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, msgType)
	assert.Contains(t, string(payload), `type="a-f-A"`)
	assert.Contains(t, string(payload), "GS-AIR")

	env.bus.Publish(bus.Event{
		Type:     bus.EventTrack,
		EntityID: "live-entity",
		Data: track.Track{
			EntityID:   "live-entity",
			Ontology:   track.Ontology{PlatformType: "Boat"},
			Confidence: 0.9,
			Location: track.Location{Position: &track.Position{
				LatitudeDegrees:  33.9,
				LongitudeDegrees: -118.4,
			}},
		},
	})
	_, payload, err = conn.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(payload), `type="a-u-S"`)
}

func TestCoTStream_IgnoresNonTrackEvents(t *testing.T) {
	env := newTestEnv(t)
	conn := dialWS(t, env, "/ws/cot")

	// Non-track events never reach the CoT client; the next readable frame
	// is the subsequent track.
	env.bus.Publish(bus.Event{Type: bus.EventTaskAck, Data: map[string]string{"task_id": "t1"}})
	env.bus.Publish(bus.Event{
		Type: bus.EventTrack,
		Data: track.Track{
			EntityID: "e1",
			Ontology: track.Ontology{PlatformType: "Truck"},
			Location: track.Location{Position: &track.Position{
				LatitudeDegrees:  33.9,
				LongitudeDegrees: -118.4,
			}},
		},
	})

	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(payload), `type="a-u-G-E-V"`)
}
