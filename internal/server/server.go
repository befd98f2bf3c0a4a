// Package server is the HTTP gateway: REST surface over the tactical
// picture, WebSocket streaming, and the CoT feed. Routes are mounted both at
// the root and under /v1 so legacy consumers keep working.
package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/boshu2/ghost-sentry/internal/assets"
	"github.com/boshu2/ghost-sentry/internal/bus"
	"github.com/boshu2/ghost-sentry/internal/correlate"
	"github.com/boshu2/ghost-sentry/internal/cot"
	"github.com/boshu2/ghost-sentry/internal/detect"
	"github.com/boshu2/ghost-sentry/internal/sentry"
	"github.com/boshu2/ghost-sentry/internal/store"
	"github.com/boshu2/ghost-sentry/internal/task"
	"github.com/boshu2/ghost-sentry/internal/track"
)

const version = "1.0.0"

// Config holds gateway settings.
type Config struct {
	CORSOrigins []string
}

// Server owns the HTTP surface. Construct with New, serve via Handler.
type Server struct {
	cfg      Config
	store    *store.Store
	bus      *bus.Bus
	fleet    *assets.Registry
	matcher  *correlate.Matcher
	engine   *sentry.Engine
	upgrader websocket.Upgrader
}

// New wires the gateway to its collaborators.
func New(cfg Config, st *store.Store, b *bus.Bus, fleet *assets.Registry, matcher *correlate.Matcher, engine *sentry.Engine) *Server {
	return &Server{
		cfg:     cfg,
		store:   st,
		bus:     b,
		fleet:   fleet,
		matcher: matcher,
		engine:  engine,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Browser origin policy is enforced by the CORS layer.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Handler builds the chi router with all routes mounted at the root and
// under /v1.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
	}))

	s.registerRoutes(r)
	r.Route("/v1", func(v1 chi.Router) {
		s.registerRoutes(v1)
	})
	return r
}

func (s *Server) registerRoutes(r chi.Router) {
	r.Get("/health", s.handleHealth)

	r.Get("/tracks", s.handleTracks)
	r.Get("/tracks/cot", s.handleCoTFeed)
	r.Get("/tracks/{entity_id}/history", s.handleTrackHistory)

	r.Get("/entities", s.handleEntities)
	r.Post("/detections", s.handleDetections)

	r.Get("/tasks", s.handleTasks)
	r.Get("/tasks/{task_id}", s.handleGetTask)
	r.Patch("/tasks/{task_id}/state", s.handleTaskState)
	r.Post("/tasks/{task_id}/ack", s.handleTaskAck)

	r.Get("/timeline", s.handleTimeline)

	r.Get("/assets", s.handleAssets)
	r.Post("/assets/telemetry", s.handleAssetTelemetry)

	r.Get("/missions", s.handleMissions)
	r.Post("/missions", s.handleCreateMission)

	r.Get("/ws/tracks", s.handleTrackStream)
	r.Get("/ws/cot", s.handleCoTStream)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": version})
}

func (s *Server) handleTracks(w http.ResponseWriter, _ *http.Request) {
	tracks, err := s.store.Tracks()
	if err != nil {
		writeServerError(w, "list tracks", err)
		return
	}
	if tracks == nil {
		tracks = []track.Track{}
	}
	writeJSON(w, http.StatusOK, tracks)
}

func (s *Server) handleTrackHistory(w http.ResponseWriter, r *http.Request) {
	entityID := chi.URLParam(r, "entity_id")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	history, err := s.store.TrackHistory(entityID, limit)
	if err != nil {
		writeServerError(w, "track history", err)
		return
	}
	if history == nil {
		history = []store.HistoryEntry{}
	}
	writeJSON(w, http.StatusOK, history)
}

func (s *Server) handleCoTFeed(w http.ResponseWriter, _ *http.Request) {
	tracks, err := s.store.Tracks()
	if err != nil {
		writeServerError(w, "cot feed", err)
		return
	}
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(cot.Feed(tracks)))
}

func (s *Server) handleEntities(w http.ResponseWriter, _ *http.Request) {
	entities := s.matcher.ActiveEntities()
	writeJSON(w, http.StatusOK, map[string]any{
		"entities": entities,
		"counts":   s.matcher.EntityCounts(),
	})
}

// handleDetections injects detections straight into the pipeline. Accepts
// either a bare detection array (pre-fused) or an {optical, sar} pair that
// is run through sensor fusion first.
func (s *Server) handleDetections(w http.ResponseWriter, r *http.Request) {
	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"status":  "error",
			"message": "invalid detection payload: " + err.Error(),
		})
		return
	}

	var (
		result sentry.Result
		err    error
	)
	var detections []detect.Detection
	if json.Unmarshal(raw, &detections) == nil {
		result, err = s.engine.ProcessDetections(detections)
	} else {
		var sweep struct {
			Optical []detect.Detection `json:"optical"`
			SAR     []detect.Detection `json:"sar"`
		}
		if err := json.Unmarshal(raw, &sweep); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"status":  "error",
				"message": "invalid detection payload: " + err.Error(),
			})
			return
		}
		result, err = s.engine.ProcessSweep(sweep.Optical, sweep.SAR)
	}
	if err != nil {
		writeServerError(w, "process detections", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	state := task.State(r.URL.Query().Get("state"))
	if state != "" && !task.ValidState(state) {
		writeLegacyError(w, "invalid task state filter")
		return
	}

	tasks, err := s.store.Tasks(state)
	if err != nil {
		writeServerError(w, "list tasks", err)
		return
	}
	if tasks == nil {
		tasks = []task.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	t, err := s.store.GetTask(chi.URLParam(r, "task_id"))
	if errors.Is(err, store.ErrTaskNotFound) {
		writeLegacyError(w, "task not found")
		return
	}
	if err != nil {
		writeServerError(w, "get task", err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleTaskState(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "task_id")

	// State arrives as a query parameter; a JSON body works too.
	state := task.State(r.URL.Query().Get("state"))
	if state == "" {
		var body struct {
			State task.State `json:"state"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
			state = body.State
		}
	}
	if !task.ValidState(state) {
		writeLegacyError(w, "invalid task state")
		return
	}

	if err := s.store.UpdateTaskState(taskID, state); err != nil {
		if errors.Is(err, store.ErrTaskNotFound) {
			writeLegacyError(w, "task not found")
			return
		}
		writeServerError(w, "update task state", err)
		return
	}

	// Terminal states free the serving asset for new cues.
	if state == task.StateCompleted || state == task.StateCancelled {
		if t, err := s.store.GetTask(taskID); err == nil &&
			t.AssignedTo != "" && t.AssignedTo != task.DispatchPending {
			if err := s.fleet.Release(t.AssignedTo); err != nil {
				slog.Warn("could not release asset", "asset_id", t.AssignedTo, "error", err)
			}
		}
	}

	update := map[string]string{"task_id": taskID, "state": string(state)}
	if err := s.store.AddEvent(bus.EventTaskUpdate, "", update); err != nil {
		slog.Warn("could not persist task update event", "task_id", taskID, "error", err)
	}
	s.bus.Publish(bus.Event{Type: bus.EventTaskUpdate, Data: update})

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "updated",
		"task_id": taskID,
		"state":   string(state),
	})
}

func (s *Server) handleTaskAck(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "task_id")

	t, err := s.store.GetTask(taskID)
	if errors.Is(err, store.ErrTaskNotFound) {
		writeLegacyError(w, "task not found")
		return
	}
	if err != nil {
		writeServerError(w, "ack task", err)
		return
	}

	next, ok := task.Ack(t.State)
	if !ok {
		writeLegacyError(w, "task is not pending")
		return
	}
	if err := s.store.UpdateTaskState(taskID, next); err != nil {
		writeServerError(w, "ack task", err)
		return
	}

	ack := map[string]string{
		"task_id":     taskID,
		"asset_id":    t.AssignedTo,
		"operator_id": r.URL.Query().Get("operator_id"),
		"timestamp":   task.Timestamp(time.Now()),
	}
	if err := s.store.AddEvent(bus.EventTaskAck, t.EntityID, ack); err != nil {
		slog.Warn("could not persist task ack event", "task_id", taskID, "error", err)
	}
	s.bus.Publish(bus.Event{Type: bus.EventTaskAck, EntityID: t.EntityID, Data: ack})

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "state": string(next)})
}

func (s *Server) handleTimeline(w http.ResponseWriter, _ *http.Request) {
	events, err := s.store.LatestEvents(100)
	if err != nil {
		writeServerError(w, "timeline", err)
		return
	}
	if events == nil {
		events = []store.EventRow{}
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) handleAssets(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.fleet.List())
}

func (s *Server) handleAssetTelemetry(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	assetID := q.Get("asset_id")
	if assetID == "" {
		writeLegacyError(w, "asset_id is required")
		return
	}

	lat, errLat := strconv.ParseFloat(q.Get("lat"), 64)
	lon, errLon := strconv.ParseFloat(q.Get("lon"), 64)
	battery, errBat := strconv.ParseFloat(q.Get("battery"), 64)
	signal, errSig := strconv.ParseFloat(q.Get("signal"), 64)
	if errLat != nil || errLon != nil || errBat != nil || errSig != nil {
		writeLegacyError(w, "lat, lon, battery, and signal must be numeric")
		return
	}

	if err := s.fleet.UpdateTelemetry(assetID, lat, lon, battery, signal); err != nil {
		writeLegacyError(w, "asset not found")
		return
	}

	a, _ := s.fleet.Get(assetID)
	if err := s.store.AddEvent(bus.EventAssetTelemetry, "", a); err != nil {
		slog.Warn("could not persist telemetry event", "asset_id", assetID, "error", err)
	}
	s.bus.Publish(bus.Event{Type: bus.EventAssetTelemetry, Data: a})

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleMissions(w http.ResponseWriter, _ *http.Request) {
	missions, err := s.store.Missions()
	if err != nil {
		writeServerError(w, "list missions", err)
		return
	}
	if missions == nil {
		missions = []store.Mission{}
	}
	writeJSON(w, http.StatusOK, missions)
}

func (s *Server) handleCreateMission(w http.ResponseWriter, r *http.Request) {
	var m store.Mission
	if err := json.NewDecoder(r.Body).Decode(&m); err != nil || m.Name == "" {
		writeLegacyError(w, "mission requires a name")
		return
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}

	if err := s.store.AddMission(m); err != nil {
		writeServerError(w, "create mission", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "mission_id": m.ID})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

// writeLegacyError keeps the original 200-with-error-body contract that
// existing dashboard clients depend on.
func writeLegacyError(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "error",
		"message": message,
	})
}

func writeServerError(w http.ResponseWriter, op string, err error) {
	slog.Error("request failed", "op", op, "error", err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{
		"status":  "error",
		"message": "internal error",
	})
}
