// Package task defines the cueing task record and its state machine.
package task

import "time"

// State is the task lifecycle state.
type State string

const (
	StatePending    State = "pending"
	StateAssigned   State = "assigned"
	StateInProgress State = "in_progress"
	StateCompleted  State = "completed"
	StateCancelled  State = "cancelled"
)

// Task types.
const (
	TypeVerificationRequest = "VERIFICATION_REQUEST"
	TypeAnomalyVerification = "ANOMALY_VERIFICATION"
)

// DispatchPending marks a task that could not be matched to an asset.
const DispatchPending = "DISPATCH_PENDING"

// Priorities carried in the task payload.
const (
	PriorityHigh   = "HIGH"
	PriorityMedium = "MEDIUM"
)

// Payload is the structured task data blob.
type Payload struct {
	Priority      string `json:"priority"`
	Description   string `json:"description"`
	ThreatLevel   string `json:"threat_level,omitempty"`
	PriorityScore int    `json:"priority_score,omitempty"`
}

// Task is a cueing task issued against a tracked entity.
type Task struct {
	ID         string   `json:"id"`
	EntityID   string   `json:"entity_id"`
	Type       string   `json:"type"`
	State      State    `json:"state"`
	AssignedTo string   `json:"assigned_to,omitempty"`
	Data       *Payload `json:"data,omitempty"`
	CreatedAt  string   `json:"created_at,omitempty"`
	UpdatedAt  string   `json:"updated_at,omitempty"`
}

// ValidState reports whether s is one of the task states.
func ValidState(s State) bool {
	switch s {
	case StatePending, StateAssigned, StateInProgress, StateCompleted, StateCancelled:
		return true
	}
	return false
}

// Ack transitions a pending task to assigned. Used by the operator
// acknowledgement flow; any other state is left untouched.
func Ack(current State) (State, bool) {
	if current == StatePending {
		return StateAssigned, true
	}
	return current, false
}

// Timestamp formats a time the way task acknowledgements are published:
// ISO-8601 UTC with seconds.
func Timestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05Z07:00")
}
