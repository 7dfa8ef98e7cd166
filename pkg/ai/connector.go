// Package ai orchestrates the realtime AI participant: registering the
// agent's platform identity, attaching it to a live call, and pushing its
// behavioral configuration onto the session.
package ai

import (
	"context"
	"fmt"

	"github.com/ismaeeldev/nexa-server/pkg/avatar"
	"github.com/ismaeeldev/nexa-server/pkg/logging"
	"github.com/ismaeeldev/nexa-server/pkg/stream"
)

// Platform is the slice of the call platform the connector needs.
type Platform interface {
	UpsertUsers(ctx context.Context, users []stream.User) error
	ConnectAIParticipant(ctx context.Context, callType, callID, agentUserID, aiAPIKey, model string) (stream.RealtimeSession, error)
}

// Config holds the realtime engine settings.
type Config struct {
	// APIKey authenticates against the realtime AI engine.
	APIKey string

	// Model is the realtime conversational model.
	Model string

	// Voice is the voice identifier pushed to every session.
	Voice string
}

// Connector joins AI agents into live calls.
type Connector struct {
	platform Platform
	cfg      Config
	logger   logging.Logger
}

// NewConnector creates a connector backed by the given platform.
func NewConnector(platform Platform, cfg Config, logger logging.Logger) *Connector {
	return &Connector{
		platform: platform,
		cfg:      cfg,
		logger:   logger.With(logging.F("component", "ai_connector")),
	}
}

// EnsureAgentIdentity registers (or refreshes) the agent's platform identity
// so it can appear as a call participant. Idempotent.
func (c *Connector) EnsureAgentIdentity(ctx context.Context, agentID, name string) error {
	user := stream.User{
		ID:    agentID,
		Name:  name,
		Role:  "user",
		Image: avatar.URL(name, avatar.VariantBot),
	}

	if err := c.platform.UpsertUsers(ctx, []stream.User{user}); err != nil {
		return fmt.Errorf("failed to register agent identity %s: %w", agentID, err)
	}
	return nil
}

// Join attaches the agent to the live call and configures its session:
// instructions first so the agent knows its role before it can speak, then
// the voice. A failure at any step leaves no configured session behind and
// the caller is expected to compensate.
func (c *Connector) Join(ctx context.Context, callID, agentID, instructions string) error {
	session, err := c.platform.ConnectAIParticipant(ctx, stream.DefaultCallType, callID, agentID, c.cfg.APIKey, c.cfg.Model)
	if err != nil {
		return fmt.Errorf("failed to attach agent %s to call %s: %w", agentID, callID, err)
	}

	if err := session.UpdateSession(ctx, stream.SessionConfig{Instructions: instructions}); err != nil {
		return fmt.Errorf("failed to configure agent instructions on call %s: %w", callID, err)
	}

	if err := session.UpdateSession(ctx, stream.SessionConfig{Voice: c.cfg.Voice}); err != nil {
		return fmt.Errorf("failed to configure agent voice on call %s: %w", callID, err)
	}

	c.logger.Info("Agent joined call",
		logging.F("call_id", callID),
		logging.F("agent_id", agentID))

	return nil
}
