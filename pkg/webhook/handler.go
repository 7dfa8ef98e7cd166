package webhook

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	nxerrors "github.com/ismaeeldev/nexa-server/pkg/errors"
	"github.com/ismaeeldev/nexa-server/pkg/logging"
)

// Webhook request headers.
const (
	HeaderSignature = "X-Signature"
	HeaderAPIKey    = "X-Api-Key"
)

// Verifier authenticates raw webhook bodies.
type Verifier interface {
	VerifyWebhook(body []byte, signature string) bool
	APIKey() string
}

// Handler is the HTTP boundary for platform webhooks. It gates on the
// signature and API key headers, verifies the signature over the exact raw
// bytes before any JSON parsing, and only then decodes and dispatches.
type Handler struct {
	verifier     Verifier
	orchestrator *Orchestrator
	logger       logging.Logger
}

// NewHandler creates the webhook HTTP handler.
func NewHandler(verifier Verifier, orchestrator *Orchestrator, logger logging.Logger) *Handler {
	return &Handler{
		verifier:     verifier,
		orchestrator: orchestrator,
		logger:       logger.With(logging.F("component", "webhook_handler")),
	}
}

// Handle is the gin handler for POST /api/webhook.
func (h *Handler) Handle(c *gin.Context) {
	signature := c.GetHeader(HeaderSignature)
	apiKey := c.GetHeader(HeaderAPIKey)

	if signature == "" || apiKey == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Missing signature or API key"})
		return
	}

	if apiKey != h.verifier.APIKey() {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid API key"})
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read request body"})
		return
	}

	if !h.verifier.VerifyWebhook(body, signature) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid signature"})
		return
	}

	evt, err := Decode(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}

	if err := h.orchestrator.HandleEvent(c.Request.Context(), evt); err != nil {
		outcome := nxerrors.OutcomeForError(err)
		c.JSON(nxerrors.HTTPStatus(outcome), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Event received"})
}
