// Package stream is the client for the external call platform. It covers the
// slice of the platform the server uses: webhook signature verification, call
// control, user upserts, call token minting, and attaching the realtime AI
// participant to live calls.
package stream

// DefaultCallType is the platform call type the server uses for every call.
const DefaultCallType = "default"

// User is a platform-side identity. Human participants and AI agents are
// both represented as users; the Role distinguishes them.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Role  string `json:"role"`
	Image string `json:"image,omitempty"`
}

// CallSession is the live session state of a call.
type CallSession struct {
	ParticipantCount int `json:"participant_count"`
}

// SessionConfig is the behavioral configuration pushed onto an active AI
// session. Zero-valued fields are omitted from the update.
type SessionConfig struct {
	Instructions string `json:"instructions,omitempty"`
	Voice        string `json:"voice,omitempty"`
}
