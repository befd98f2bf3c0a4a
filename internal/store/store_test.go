package store

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boshu2/ghost-sentry/internal/task"
	"github.com/boshu2/ghost-sentry/internal/track"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "sentry.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func makeTrack(entityID string, lat float64) track.Track {
	return track.Track{
		EntityID:   entityID,
		Ontology:   track.Ontology{Template: "TEMPLATE_TRACK", PlatformType: "Truck"},
		Confidence: 0.8,
		Location: track.Location{Position: &track.Position{
			LatitudeDegrees:  lat,
			LongitudeDegrees: -118.40,
		}},
		IsLive: true,
	}
}

func TestTracks_NewestFirst(t *testing.T) {
	s := openTestStore(t)

	for i := 0; i < 3; i++ {
		tr := makeTrack(fmt.Sprintf("e%d", i), 33.0+float64(i))
		require.NoError(t, s.AddEvent("track", tr.EntityID, tr))
	}

	tracks, err := s.Tracks()
	require.NoError(t, err)
	require.Len(t, tracks, 3)
	assert.Equal(t, "e2", tracks[0].EntityID)
	assert.Equal(t, "e0", tracks[2].EntityID)
}

func TestTrackHistory_PerEntityInsertionOrder(t *testing.T) {
	s := openTestStore(t)

	for i := 0; i < 5; i++ {
		require.NoError(t, s.AddEvent("track", "e1", makeTrack("e1", 33.0+float64(i))))
	}
	require.NoError(t, s.AddEvent("track", "other", makeTrack("other", 40.0)))

	history, err := s.TrackHistory("e1", 3)
	require.NoError(t, err)
	require.Len(t, history, 3)

	// Newest first: lat 37, 36, 35.
	for i, wantLat := range []float64{37, 36, 35} {
		var tr track.Track
		require.NoError(t, json.Unmarshal(history[i].Data, &tr))
		assert.Equal(t, wantLat, tr.Location.Position.LatitudeDegrees)
		assert.Equal(t, "e1", tr.EntityID)
	}
}

func TestTrackHistory_DefaultLimit(t *testing.T) {
	s := openTestStore(t)

	for i := 0; i < 15; i++ {
		require.NoError(t, s.AddEvent("track", "e1", makeTrack("e1", float64(i))))
	}

	history, err := s.TrackHistory("e1", 0)
	require.NoError(t, err)
	assert.Len(t, history, 10)
}

func TestTasks_AddUpdateFilter(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.AddTask(task.Task{
		ID:         "task-1",
		EntityID:   "entity-1",
		Type:       task.TypeVerificationRequest,
		AssignedTo: "drone-alpha",
		Data:       &task.Payload{Priority: task.PriorityHigh, Description: "Confirm truck"},
	}))
	require.NoError(t, s.AddTask(task.Task{
		ID:       "task-2",
		EntityID: "entity-2",
		Type:     task.TypeAnomalyVerification,
	}))

	all, err := s.Tasks("")
	require.NoError(t, err)
	require.Len(t, all, 2)

	got, err := s.GetTask("task-1")
	require.NoError(t, err)
	assert.Equal(t, task.StatePending, got.State)
	assert.Equal(t, "drone-alpha", got.AssignedTo)
	require.NotNil(t, got.Data)
	assert.Equal(t, task.PriorityHigh, got.Data.Priority)

	require.NoError(t, s.UpdateTaskState("task-2", task.StateCompleted))

	pending, err := s.Tasks(task.StatePending)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "task-1", pending[0].ID)

	completed, err := s.Tasks(task.StateCompleted)
	require.NoError(t, err)
	require.Len(t, completed, 1)
	assert.Equal(t, "task-2", completed[0].ID)
}

func TestUpdateTaskState_Unknown(t *testing.T) {
	s := openTestStore(t)
	err := s.UpdateTaskState("ghost", task.StateCompleted)
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestGetTask_Unknown(t *testing.T) {
	s := openTestStore(t)
	_, err := s.GetTask("ghost")
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestMissions_RoundTrip(t *testing.T) {
	s := openTestStore(t)

	coords, _ := json.Marshal([][]float64{{33.94, -118.41}, {33.95, -118.40}, {33.93, -118.42}})
	require.NoError(t, s.AddMission(Mission{
		ID:   "mission-1",
		Name: "perimeter",
		Geometries: []Geometry{
			{Type: "polygon", Coords: coords, Label: "AO"},
		},
	}))

	missions, err := s.Missions()
	require.NoError(t, err)
	require.Len(t, missions, 1)
	assert.Equal(t, "perimeter", missions[0].Name)
	require.Len(t, missions[0].Geometries, 1)
	assert.Equal(t, "polygon", missions[0].Geometries[0].Type)
	assert.Equal(t, "AO", missions[0].Geometries[0].Label)
}

func TestLatestEvents_CrossType(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.AddEvent("track", "e1", makeTrack("e1", 33.0)))
	require.NoError(t, s.AddEvent("task", "e1", map[string]string{"id": "task-1"}))
	require.NoError(t, s.AddEvent("asset_telemetry", "", map[string]string{"id": "drone-alpha"}))

	events, err := s.LatestEvents(2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "asset_telemetry", events[0].Type)
	assert.Empty(t, events[0].EntityID)
	assert.Equal(t, "task", events[1].Type)

	all, err := s.LatestEvents(0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestEventOrder_PerEntityMatchesCommitOrder(t *testing.T) {
	s := openTestStore(t)

	for i := 0; i < 8; i++ {
		require.NoError(t, s.AddEvent("track", "e1", map[string]int{"seq": i}))
	}

	history, err := s.TrackHistory("e1", 8)
	require.NoError(t, err)
	require.Len(t, history, 8)

	// Newest-first read reverses commit order exactly.
	for i, entry := range history {
		var payload struct {
			Seq int `json:"seq"`
		}
		require.NoError(t, json.Unmarshal(entry.Data, &payload))
		assert.Equal(t, 7-i, payload.Seq)
	}
}
