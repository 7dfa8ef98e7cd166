// Package agents provides the agent domain model and database operations.
// An agent is a reusable AI persona (name plus free-text instructions) owned
// by a single user and attachable to many meetings.
package agents

import (
	"time"

	"github.com/google/uuid"
)

// Agent is an AI persona configurable by its owner.
type Agent struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Instructions string    `json:"instructions"`
	UserID       string    `json:"userId"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}
