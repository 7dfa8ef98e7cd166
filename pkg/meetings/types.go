// Package meetings provides the meeting domain model and database operations,
// including the conditional status transitions the lifecycle orchestrator
// relies on for idempotency under duplicate webhook delivery.
package meetings

import (
	"time"

	"github.com/google/uuid"

	"github.com/ismaeeldev/nexa-server/pkg/stream"
)

// Status is the meeting lifecycle state. It only ever advances through the
// directed transitions below; every transition is expressed as a conditional
// update ("set status=X where current status=Y") so replays and out-of-order
// deliveries are rejected instead of corrupting state.
//
//	upcoming -> active     (call.session_started)
//	active   -> processing (call.session_ended)
//	active   -> completed  (optional participant-left strengthening)
//	upcoming -> cancelled  (user action)
type Status string

const (
	StatusUpcoming   Status = "upcoming"
	StatusActive     Status = "active"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// Valid reports whether s is a known lifecycle status.
func (s Status) Valid() bool {
	switch s {
	case StatusUpcoming, StatusActive, StatusProcessing, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no event handler may transition a meeting out of s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Meeting is a scheduled, agent-bound video session. The meeting id doubles
// as the call platform's call identifier (call type "default").
type Meeting struct {
	ID            uuid.UUID  `json:"id"`
	Name          string     `json:"name"`
	AgentID       uuid.UUID  `json:"agentId"`
	UserID        string     `json:"userId"`
	Status        Status     `json:"status"`
	StartedAt     *time.Time `json:"startedAt"`
	EndedAt       *time.Time `json:"endedAt"`
	TranscriptURL *string    `json:"transcriptUrl"`
	RecordingURL  *string    `json:"recordingUrl"`
	Summary       *string    `json:"summary"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// MeetingWithAgent is a meeting joined with its agent's display name,
// returned by list queries.
type MeetingWithAgent struct {
	Meeting
	AgentName *string `json:"agentName"`
}

// CallType is the call platform call type used for every meeting; one call
// per meeting, identified by "default:<meeting id>".
const CallType = stream.DefaultCallType
