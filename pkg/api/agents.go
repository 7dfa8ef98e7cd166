package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ismaeeldev/nexa-server/pkg/agents"
	nxerrors "github.com/ismaeeldev/nexa-server/pkg/errors"
	"github.com/ismaeeldev/nexa-server/pkg/logging"
)

// AgentStore is the agents repository surface the handlers need.
type AgentStore interface {
	Create(ctx context.Context, a *agents.Agent) error
	GetOwned(ctx context.Context, id uuid.UUID, userID string) (*agents.Agent, error)
	List(ctx context.Context, userID string) ([]*agents.Agent, error)
	Update(ctx context.Context, a *agents.Agent, userID string) error
	Delete(ctx context.Context, id uuid.UUID, userID string) error
}

// AgentsHandler serves the owner-scoped agent CRUD routes.
type AgentsHandler struct {
	store  AgentStore
	logger logging.Logger
}

// NewAgentsHandler creates the agents handler.
func NewAgentsHandler(store AgentStore, logger logging.Logger) *AgentsHandler {
	return &AgentsHandler{
		store:  store,
		logger: logger.With(logging.F("component", "agents_api")),
	}
}

// agentRequest is the create/update payload.
type agentRequest struct {
	Name         string `json:"name"`
	Instructions string `json:"instructions"`
}

func (r *agentRequest) validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("name is required: %w", nxerrors.ErrValidation)
	}
	if strings.TrimSpace(r.Instructions) == "" {
		return fmt.Errorf("instructions are required: %w", nxerrors.ErrValidation)
	}
	return nil
}

// List handles GET /api/agents.
func (h *AgentsHandler) List(c *gin.Context) {
	items, err := h.store.List(c.Request.Context(), currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// Get handles GET /api/agents/:id.
func (h *AgentsHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, fmt.Errorf("invalid agent id: %w", nxerrors.ErrValidation))
		return
	}

	agent, err := h.store.GetOwned(c.Request.Context(), id, currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, agent)
}

// Create handles POST /api/agents.
func (h *AgentsHandler) Create(c *gin.Context) {
	var req agentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, fmt.Errorf("invalid request body: %w", nxerrors.ErrValidation))
		return
	}
	if err := req.validate(); err != nil {
		respondError(c, err)
		return
	}

	agent := &agents.Agent{
		Name:         strings.TrimSpace(req.Name),
		Instructions: req.Instructions,
		UserID:       currentUser(c),
	}
	if err := h.store.Create(c.Request.Context(), agent); err != nil {
		respondError(c, err)
		return
	}

	h.logger.Info("Agent created", logging.F("agent_id", agent.ID.String()))
	c.JSON(http.StatusCreated, agent)
}

// Update handles PUT /api/agents/:id.
func (h *AgentsHandler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, fmt.Errorf("invalid agent id: %w", nxerrors.ErrValidation))
		return
	}

	var req agentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, fmt.Errorf("invalid request body: %w", nxerrors.ErrValidation))
		return
	}
	if err := req.validate(); err != nil {
		respondError(c, err)
		return
	}

	agent := &agents.Agent{
		ID:           id,
		Name:         strings.TrimSpace(req.Name),
		Instructions: req.Instructions,
	}
	if err := h.store.Update(c.Request.Context(), agent, currentUser(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, agent)
}

// Delete handles DELETE /api/agents/:id. Agents still referenced by meetings
// cannot be removed; the store reports a conflict.
func (h *AgentsHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, fmt.Errorf("invalid agent id: %w", nxerrors.ErrValidation))
		return
	}

	if err := h.store.Delete(c.Request.Context(), id, currentUser(c)); err != nil {
		respondError(c, err)
		return
	}

	h.logger.Info("Agent deleted", logging.F("agent_id", id.String()))
	c.JSON(http.StatusOK, gin.H{"message": "Agent deleted"})
}
