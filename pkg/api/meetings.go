package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ismaeeldev/nexa-server/pkg/avatar"
	nxerrors "github.com/ismaeeldev/nexa-server/pkg/errors"
	"github.com/ismaeeldev/nexa-server/pkg/logging"
	"github.com/ismaeeldev/nexa-server/pkg/meetings"
	"github.com/ismaeeldev/nexa-server/pkg/stream"
)

// MeetingStore is the meetings repository surface the handlers need.
type MeetingStore interface {
	Create(ctx context.Context, m *meetings.Meeting) error
	GetOwned(ctx context.Context, id uuid.UUID, userID string) (*meetings.Meeting, error)
	List(ctx context.Context, userID string) ([]*meetings.MeetingWithAgent, error)
	Update(ctx context.Context, m *meetings.Meeting, userID string) error
	Delete(ctx context.Context, id uuid.UUID, userID string) error
	Cancel(ctx context.Context, id uuid.UUID, userID string) (*meetings.Meeting, error)
}

// CallPlatform is the platform client surface the handlers need: call
// creation at meeting creation, identity upserts and token minting for the
// join flow.
type CallPlatform interface {
	CreateCall(ctx context.Context, callType, id string, custom map[string]interface{}) error
	UpsertUsers(ctx context.Context, users []stream.User) error
	GenerateUserToken(userID string, validity time.Duration) (string, error)
}

// IdentityRegistrar registers the agent's AI identity with the platform.
type IdentityRegistrar interface {
	EnsureAgentIdentity(ctx context.Context, agentID, name string) error
}

// MeetingsHandler serves the owner-scoped meeting routes.
type MeetingsHandler struct {
	store         MeetingStore
	agents        AgentStore
	platform      CallPlatform
	identities    IdentityRegistrar
	tokenValidity time.Duration
	logger        logging.Logger
}

// NewMeetingsHandler creates the meetings handler.
func NewMeetingsHandler(
	store MeetingStore,
	agentStore AgentStore,
	platform CallPlatform,
	identities IdentityRegistrar,
	tokenValidity time.Duration,
	logger logging.Logger,
) *MeetingsHandler {
	if tokenValidity <= 0 {
		tokenValidity = time.Hour
	}
	return &MeetingsHandler{
		store:         store,
		agents:        agentStore,
		platform:      platform,
		identities:    identities,
		tokenValidity: tokenValidity,
		logger:        logger.With(logging.F("component", "meetings_api")),
	}
}

// meetingRequest is the create/update payload.
type meetingRequest struct {
	Name    string `json:"name"`
	AgentID string `json:"agentId"`
}

func (r *meetingRequest) validate() (uuid.UUID, error) {
	if strings.TrimSpace(r.Name) == "" {
		return uuid.Nil, fmt.Errorf("name is required: %w", nxerrors.ErrValidation)
	}
	agentID, err := uuid.Parse(r.AgentID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid agent id: %w", nxerrors.ErrValidation)
	}
	return agentID, nil
}

// List handles GET /api/meetings.
func (h *MeetingsHandler) List(c *gin.Context) {
	items, err := h.store.List(c.Request.Context(), currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// Get handles GET /api/meetings/:id.
func (h *MeetingsHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, fmt.Errorf("invalid meeting id: %w", nxerrors.ErrValidation))
		return
	}

	meeting, err := h.store.GetOwned(c.Request.Context(), id, currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, meeting)
}

// Create handles POST /api/meetings: persist the meeting, create the backing
// platform call with the meeting id stamped into its custom metadata, and
// register the agent's platform identity so it can join later.
func (h *MeetingsHandler) Create(c *gin.Context) {
	var req meetingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, fmt.Errorf("invalid request body: %w", nxerrors.ErrValidation))
		return
	}
	agentID, err := req.validate()
	if err != nil {
		respondError(c, err)
		return
	}

	ctx := c.Request.Context()
	userID := currentUser(c)

	// The agent must exist and belong to the caller.
	agent, err := h.agents.GetOwned(ctx, agentID, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	meeting := &meetings.Meeting{
		Name:    strings.TrimSpace(req.Name),
		AgentID: agent.ID,
		UserID:  userID,
	}
	if err := h.store.Create(ctx, meeting); err != nil {
		respondError(c, err)
		return
	}

	custom := map[string]interface{}{
		"meetingId":   meeting.ID.String(),
		"meetingName": meeting.Name,
	}
	if err := h.platform.CreateCall(ctx, meetings.CallType, meeting.ID.String(), custom); err != nil {
		respondError(c, err)
		return
	}

	if err := h.identities.EnsureAgentIdentity(ctx, agent.ID.String(), agent.Name); err != nil {
		respondError(c, err)
		return
	}

	h.logger.Info("Meeting created",
		logging.F("meeting_id", meeting.ID.String()),
		logging.F("agent_id", agent.ID.String()))
	c.JSON(http.StatusCreated, meeting)
}

// Update handles PUT /api/meetings/:id.
func (h *MeetingsHandler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, fmt.Errorf("invalid meeting id: %w", nxerrors.ErrValidation))
		return
	}

	var req meetingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, fmt.Errorf("invalid request body: %w", nxerrors.ErrValidation))
		return
	}
	agentID, err := req.validate()
	if err != nil {
		respondError(c, err)
		return
	}

	ctx := c.Request.Context()
	userID := currentUser(c)

	if _, err := h.agents.GetOwned(ctx, agentID, userID); err != nil {
		respondError(c, err)
		return
	}

	meeting := &meetings.Meeting{
		ID:      id,
		Name:    strings.TrimSpace(req.Name),
		AgentID: agentID,
	}
	if err := h.store.Update(ctx, meeting, userID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, meeting)
}

// Delete handles DELETE /api/meetings/:id.
func (h *MeetingsHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, fmt.Errorf("invalid meeting id: %w", nxerrors.ErrValidation))
		return
	}

	if err := h.store.Delete(c.Request.Context(), id, currentUser(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Meeting deleted"})
}

// Cancel handles POST /api/meetings/:id/cancel: a conditional
// upcoming -> cancelled transition. Meetings that already started cannot be
// cancelled.
func (h *MeetingsHandler) Cancel(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, fmt.Errorf("invalid meeting id: %w", nxerrors.ErrValidation))
		return
	}

	meeting, err := h.store.Cancel(c.Request.Context(), id, currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}

	h.logger.Info("Meeting cancelled", logging.F("meeting_id", id.String()))
	c.JSON(http.StatusOK, meeting)
}

// Token handles POST /api/meetings/:id/token: register the caller's platform
// identity and mint a short-lived call token.
func (h *MeetingsHandler) Token(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, fmt.Errorf("invalid meeting id: %w", nxerrors.ErrValidation))
		return
	}

	ctx := c.Request.Context()
	userID := currentUser(c)

	// Caller must own the meeting to get a token for it.
	if _, err := h.store.GetOwned(ctx, id, userID); err != nil {
		respondError(c, err)
		return
	}

	name := c.GetString(ctxUserName)
	if name == "" {
		name = userID
	}
	image := c.GetString(ctxUserImage)
	if image == "" {
		image = avatar.URL(name, avatar.VariantInitials)
	}

	user := stream.User{
		ID:    userID,
		Name:  name,
		Role:  "admin",
		Image: image,
	}
	if err := h.platform.UpsertUsers(ctx, []stream.User{user}); err != nil {
		respondError(c, err)
		return
	}

	token, err := h.platform.GenerateUserToken(userID, h.tokenValidity)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token})
}
