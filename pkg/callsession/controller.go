// Package callsession drives one participant's join lifecycle for a meeting:
// acquire the transport identity, join the call, and guarantee teardown on
// every exit path. The controller owns the transport connection as a scoped
// resource; nothing here touches meeting status, which belongs to the
// server-side orchestrator.
package callsession

import (
	"context"
	"fmt"
	"sync"

	nxerrors "github.com/ismaeeldev/nexa-server/pkg/errors"
	"github.com/ismaeeldev/nexa-server/pkg/logging"
)

// State is the controller's lifecycle position.
type State string

const (
	StateLobby  State = "lobby"
	StateJoined State = "joined"
	StateEnded  State = "ended"
)

// MediaPermissions reports which capture devices the participant granted.
type MediaPermissions struct {
	Camera     bool
	Microphone bool
}

// Granted reports whether both devices are available.
func (p MediaPermissions) Granted() bool {
	return p.Camera && p.Microphone
}

// TokenProvider mints a call token for the participant.
type TokenProvider interface {
	CallToken(ctx context.Context) (string, error)
}

// CallHandle is a live handle on one call through the transport.
type CallHandle interface {
	Join(ctx context.Context) error
	Leave(ctx context.Context) error
	End(ctx context.Context) error
	DisableCamera(ctx context.Context) error
	DisableMicrophone(ctx context.Context) error
}

// Transport is the media transport connection for one participant identity.
type Transport interface {
	// Connect authenticates the participant and returns a handle on the
	// meeting's call.
	Connect(ctx context.Context, token string) (CallHandle, error)

	// Disconnect releases the participant's transport identity. Must be
	// safe to call when Connect never succeeded.
	Disconnect(ctx context.Context) error
}

// Controller runs the lobby -> joined -> ended lifecycle for one meeting.
type Controller struct {
	meetingID string
	transport Transport
	tokens    TokenProvider
	logger    logging.Logger

	mu     sync.Mutex
	state  State
	call   CallHandle
	closed bool
}

// NewController creates a controller in the lobby state.
func NewController(meetingID string, transport Transport, tokens TokenProvider, logger logging.Logger) *Controller {
	return &Controller{
		meetingID: meetingID,
		transport: transport,
		tokens:    tokens,
		logger:    logger.With(logging.F("component", "callsession"), logging.F("meeting_id", meetingID)),
		state:     StateLobby,
	}
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Join moves lobby -> joined: both media permissions must be granted, a call
// token is minted, the transport connects, capture devices start disabled,
// and the call is joined. Any failure leaves the controller in the lobby
// with no dangling transport connection.
func (c *Controller) Join(ctx context.Context, perms MediaPermissions) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateLobby {
		return fmt.Errorf("cannot join from state %s: %w", c.state, nxerrors.ErrConflict)
	}
	if !perms.Granted() {
		return fmt.Errorf("camera and microphone permissions are required: %w", nxerrors.ErrForbidden)
	}

	token, err := c.tokens.CallToken(ctx)
	if err != nil {
		return fmt.Errorf("failed to get call token: %w", err)
	}

	call, err := c.transport.Connect(ctx, token)
	if err != nil {
		return fmt.Errorf("failed to connect transport: %w", err)
	}

	// Devices start muted in the lobby; the participant enables them
	// explicitly once in the call.
	if err := call.DisableCamera(ctx); err != nil {
		c.logger.Warn("Failed to disable camera", logging.Err(err))
	}
	if err := call.DisableMicrophone(ctx); err != nil {
		c.logger.Warn("Failed to disable microphone", logging.Err(err))
	}

	if err := call.Join(ctx); err != nil {
		if derr := c.transport.Disconnect(ctx); derr != nil {
			c.logger.Warn("Failed to disconnect after join failure", logging.Err(derr))
		}
		return fmt.Errorf("failed to join call: %w", err)
	}

	c.call = call
	c.state = StateJoined
	c.logger.Info("Joined call")
	return nil
}

// Leave exits the call but keeps the meeting running for other participants.
func (c *Controller) Leave(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateJoined {
		return fmt.Errorf("cannot leave from state %s: %w", c.state, nxerrors.ErrConflict)
	}

	if err := c.call.Leave(ctx); err != nil {
		return fmt.Errorf("failed to leave call: %w", err)
	}
	c.state = StateEnded
	return c.teardownLocked(ctx)
}

// End exits and ends the call for everyone.
func (c *Controller) End(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateJoined {
		return fmt.Errorf("cannot end from state %s: %w", c.state, nxerrors.ErrConflict)
	}

	if err := c.call.Leave(ctx); err != nil {
		c.logger.Warn("Failed to leave before ending call", logging.Err(err))
	}
	if err := c.call.End(ctx); err != nil {
		return fmt.Errorf("failed to end call: %w", err)
	}
	c.state = StateEnded
	return c.teardownLocked(ctx)
}

// Close guarantees teardown from any state and is safe to call repeatedly.
// If still joined it leaves the call first; the transport identity is always
// released. Every exit path funnels through here.
func (c *Controller) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	if c.state == StateJoined {
		if err := c.call.Leave(ctx); err != nil {
			c.logger.Warn("Failed to leave call during close", logging.Err(err))
		}
		if err := c.call.End(ctx); err != nil {
			c.logger.Warn("Failed to end call during close", logging.Err(err))
		}
	}
	c.state = StateEnded
	return c.teardownLocked(ctx)
}

// teardownLocked releases the transport identity exactly once. Callers hold
// the mutex.
func (c *Controller) teardownLocked(ctx context.Context) error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.call = nil

	if err := c.transport.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to disconnect transport: %w", err)
	}
	return nil
}
