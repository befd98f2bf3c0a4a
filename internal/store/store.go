// Package store is the durable repository for events, tasks, and missions,
// backed by sqlite. Events are append-only; tasks carry a mutable state
// column; reads return newest-first.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite"

	"github.com/boshu2/ghost-sentry/internal/task"
	"github.com/boshu2/ghost-sentry/internal/track"
)

// ErrTaskNotFound is returned when a task id has no row.
var ErrTaskNotFound = errors.New("task not found")

// Store wraps the sqlite handle.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies pending
// migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// sqlite serializes writers; a single connection avoids SQLITE_BUSY
	// under concurrent request handlers.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// HistoryEntry is one persisted track observation for an entity.
type HistoryEntry struct {
	Data      json.RawMessage `json:"data"`
	CreatedAt string          `json:"created_at"`
}

// EventRow is a persisted event of any type.
type EventRow struct {
	ID        int64           `json:"id"`
	Type      string          `json:"type"`
	EntityID  string          `json:"entity_id,omitempty"`
	Data      json.RawMessage `json:"data"`
	CreatedAt string          `json:"created_at"`
}

// Geometry is one mission overlay shape.
type Geometry struct {
	Type   string          `json:"type"` // polygon, linestring, point
	Coords json.RawMessage `json:"coords"`
	Label  string          `json:"label,omitempty"`
}

// Mission is a named set of overlay geometries.
type Mission struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Geometries []Geometry `json:"geometries"`
	CreatedAt  string     `json:"created_at,omitempty"`
}

// AddEvent appends an event. Data is serialized as a JSON blob; the write
// is committed before AddEvent returns.
func (s *Store) AddEvent(eventType, entityID string, data any) error {
	blob, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal event data: %w", err)
	}

	var eid any
	if entityID != "" {
		eid = entityID
	}
	if _, err := s.db.Exec(
		"INSERT INTO events (type, entity_id, data) VALUES (?, ?, ?)",
		eventType, eid, string(blob),
	); err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// Tracks returns every persisted track record, newest first. Rows that no
// longer parse as track records are skipped.
func (s *Store) Tracks() ([]track.Track, error) {
	rows, err := s.db.Query(
		"SELECT data FROM events WHERE type = 'track' ORDER BY created_at DESC, id DESC")
	if err != nil {
		return nil, fmt.Errorf("query tracks: %w", err)
	}
	defer rows.Close()

	var tracks []track.Track
	for rows.Next() {
		var blob string
		if err := rows.Scan(&blob); err != nil {
			return nil, err
		}
		var t track.Track
		if err := json.Unmarshal([]byte(blob), &t); err != nil {
			slog.Warn("skipping unparseable track row", "error", err)
			continue
		}
		tracks = append(tracks, t)
	}
	return tracks, rows.Err()
}

// TrackHistory returns up to limit track events for one entity, newest
// first.
func (s *Store) TrackHistory(entityID string, limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.Query(
		"SELECT data, created_at FROM events WHERE entity_id = ? AND type = 'track' ORDER BY created_at DESC, id DESC LIMIT ?",
		entityID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query track history: %w", err)
	}
	defer rows.Close()

	var history []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		var blob string
		if err := rows.Scan(&blob, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Data = json.RawMessage(blob)
		history = append(history, e)
	}
	return history, rows.Err()
}

// LatestEvents returns the newest events across all types.
func (s *Store) LatestEvents(limit int) ([]EventRow, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(
		"SELECT id, type, entity_id, data, created_at FROM events ORDER BY created_at DESC, id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query latest events: %w", err)
	}
	defer rows.Close()

	var events []EventRow
	for rows.Next() {
		var e EventRow
		var entityID sql.NullString
		var blob string
		if err := rows.Scan(&e.ID, &e.Type, &entityID, &blob, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.EntityID = entityID.String
		e.Data = json.RawMessage(blob)
		events = append(events, e)
	}
	return events, rows.Err()
}

// AddTask inserts a task row in state pending (or the task's own state if
// set).
func (s *Store) AddTask(t task.Task) error {
	state := t.State
	if state == "" {
		state = task.StatePending
	}

	var blob any
	if t.Data != nil {
		raw, err := json.Marshal(t.Data)
		if err != nil {
			return fmt.Errorf("marshal task data: %w", err)
		}
		blob = string(raw)
	}

	var assigned any
	if t.AssignedTo != "" {
		assigned = t.AssignedTo
	}
	if _, err := s.db.Exec(
		"INSERT INTO tasks (id, entity_id, type, state, assigned_to, data) VALUES (?, ?, ?, ?, ?, ?)",
		t.ID, t.EntityID, t.Type, string(state), assigned, blob,
	); err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

// UpdateTaskState sets a task's state and bumps updated_at.
func (s *Store) UpdateTaskState(taskID string, state task.State) error {
	res, err := s.db.Exec(
		"UPDATE tasks SET state = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		string(state), taskID,
	)
	if err != nil {
		return fmt.Errorf("update task state: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrTaskNotFound
	}
	return nil
}

// GetTask returns a single task by id.
func (s *Store) GetTask(taskID string) (task.Task, error) {
	row := s.db.QueryRow(
		"SELECT id, entity_id, type, state, assigned_to, data, created_at, updated_at FROM tasks WHERE id = ?",
		taskID,
	)
	t, err := scanTask(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return task.Task{}, ErrTaskNotFound
	}
	return t, err
}

// Tasks returns tasks newest first, optionally filtered by state (empty
// string means all).
func (s *Store) Tasks(state task.State) ([]task.Task, error) {
	query := "SELECT id, entity_id, type, state, assigned_to, data, created_at, updated_at FROM tasks ORDER BY created_at DESC, id DESC"
	args := []any{}
	if state != "" {
		query = "SELECT id, entity_id, type, state, assigned_to, data, created_at, updated_at FROM tasks WHERE state = ? ORDER BY created_at DESC, id DESC"
		args = append(args, string(state))
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []task.Task
	for rows.Next() {
		t, err := scanTask(rows.Scan)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func scanTask(scan func(...any) error) (task.Task, error) {
	var t task.Task
	var state string
	var assigned, blob sql.NullString
	if err := scan(&t.ID, &t.EntityID, &t.Type, &state, &assigned, &blob, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return task.Task{}, err
	}
	t.State = task.State(state)
	t.AssignedTo = assigned.String
	if blob.Valid && blob.String != "" {
		var p task.Payload
		if err := json.Unmarshal([]byte(blob.String), &p); err == nil {
			t.Data = &p
		}
	}
	return t, nil
}

// AddMission inserts a mission row.
func (s *Store) AddMission(m Mission) error {
	blob, err := json.Marshal(m.Geometries)
	if err != nil {
		return fmt.Errorf("marshal geometries: %w", err)
	}
	if _, err := s.db.Exec(
		"INSERT INTO missions (id, name, geometries) VALUES (?, ?, ?)",
		m.ID, m.Name, string(blob),
	); err != nil {
		return fmt.Errorf("insert mission: %w", err)
	}
	return nil
}

// Missions returns all missions, newest first.
func (s *Store) Missions() ([]Mission, error) {
	rows, err := s.db.Query(
		"SELECT id, name, geometries, created_at FROM missions ORDER BY created_at DESC, id DESC")
	if err != nil {
		return nil, fmt.Errorf("query missions: %w", err)
	}
	defer rows.Close()

	var missions []Mission
	for rows.Next() {
		var m Mission
		var blob string
		if err := rows.Scan(&m.ID, &m.Name, &blob, &m.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(blob), &m.Geometries); err != nil {
			slog.Warn("skipping mission with unparseable geometries", "mission_id", m.ID, "error", err)
			continue
		}
		missions = append(missions, m)
	}
	return missions, rows.Err()
}
