package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	nxerrors "github.com/ismaeeldev/nexa-server/pkg/errors"
	"github.com/ismaeeldev/nexa-server/pkg/logging"
)

// DefaultBaseURL is the production call platform endpoint.
const DefaultBaseURL = "https://video.stream-io-api.com/api/v2"

// Config holds call platform credentials.
type Config struct {
	// APIKey identifies the application.
	APIKey string

	// APISecret signs webhooks, user tokens, and server requests.
	APISecret string

	// BaseURL overrides the platform endpoint. Defaults to DefaultBaseURL.
	BaseURL string

	// HTTPClient overrides the HTTP client. Defaults to a 15s-timeout client.
	HTTPClient *http.Client
}

// Client talks to the call platform. All network operations are bounded by
// the HTTP client timeout and the caller's context; the client performs no
// retries of its own.
type Client struct {
	apiKey    string
	apiSecret string
	baseURL   string
	http      *http.Client
	logger    logging.Logger
}

// NewClient creates a call platform client.
func NewClient(cfg Config, logger logging.Logger) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}

	return &Client{
		apiKey:    cfg.APIKey,
		apiSecret: cfg.APISecret,
		baseURL:   baseURL,
		http:      httpClient,
		logger:    logger.With(logging.F("component", "stream_client")),
	}
}

// APIKey returns the configured application key.
func (c *Client) APIKey() string {
	return c.apiKey
}

// CreateCall creates (or idempotently fetches) the call identified by
// callType and id, attaching the custom metadata map. Meeting creation uses
// this to stamp the meeting id into the call so webhooks can correlate back.
func (c *Client) CreateCall(ctx context.Context, callType, id string, custom map[string]interface{}) error {
	body := map[string]interface{}{
		"data": map[string]interface{}{
			"custom": custom,
		},
	}

	path := fmt.Sprintf("/video/call/%s/%s", callType, id)
	if err := c.doRequest(ctx, http.MethodPost, path, body, nil); err != nil {
		return fmt.Errorf("failed to create call %s:%s: %w", callType, id, err)
	}

	c.logger.Debug("Call created", logging.F("call_id", id))
	return nil
}

// EndCall ends the call for all participants.
func (c *Client) EndCall(ctx context.Context, callType, id string) error {
	path := fmt.Sprintf("/video/call/%s/%s/mark_ended", callType, id)
	if err := c.doRequest(ctx, http.MethodPost, path, struct{}{}, nil); err != nil {
		return fmt.Errorf("failed to end call %s:%s: %w", callType, id, err)
	}
	return nil
}

// SessionParticipantCount returns the number of participants currently in
// the call's session.
func (c *Client) SessionParticipantCount(ctx context.Context, callType, id string) (int, error) {
	var resp struct {
		Call struct {
			Session struct {
				Participants []struct {
					UserID string `json:"user_id"`
				} `json:"participants"`
			} `json:"session"`
		} `json:"call"`
	}

	path := fmt.Sprintf("/video/call/%s/%s", callType, id)
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return 0, fmt.Errorf("failed to get call %s:%s: %w", callType, id, err)
	}

	return len(resp.Call.Session.Participants), nil
}

// UpsertUsers registers or updates platform identities. Safe to call
// repeatedly; the platform applies upsert semantics.
func (c *Client) UpsertUsers(ctx context.Context, users []User) error {
	if len(users) == 0 {
		return nil
	}

	byID := make(map[string]User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	body := map[string]interface{}{"users": byID}
	if err := c.doRequest(ctx, http.MethodPost, "/users", body, nil); err != nil {
		return fmt.Errorf("failed to upsert users: %w", err)
	}
	return nil
}

// RealtimeSession is a handle on an AI participant's live session.
type RealtimeSession interface {
	// UpdateSession pushes behavioral configuration onto the session.
	UpdateSession(ctx context.Context, cfg SessionConfig) error
}

// realtimeSession implements RealtimeSession against the platform API.
type realtimeSession struct {
	client    *Client
	callType  string
	callID    string
	sessionID string
}

// ConnectAIParticipant joins the conversational AI identity agentUserID into
// the call, backed by the given model and API key, and returns a session
// handle for configuration.
func (c *Client) ConnectAIParticipant(ctx context.Context, callType, callID, agentUserID, aiAPIKey, model string) (RealtimeSession, error) {
	if aiAPIKey == "" {
		return nil, fmt.Errorf("ai engine api key is not configured: %w", nxerrors.ErrDependency)
	}

	body := map[string]interface{}{
		"agent_user_id":  agentUserID,
		"openai_api_key": aiAPIKey,
		"model":          model,
	}

	var resp struct {
		SessionID string `json:"session_id"`
	}

	path := fmt.Sprintf("/video/call/%s/%s/connect_agent", callType, callID)
	if err := c.doRequest(ctx, http.MethodPost, path, body, &resp); err != nil {
		return nil, fmt.Errorf("failed to connect ai participant to call %s: %w", callID, err)
	}

	c.logger.Info("AI participant connected",
		logging.F("call_id", callID),
		logging.F("agent_user_id", agentUserID))

	return &realtimeSession{
		client:    c,
		callType:  callType,
		callID:    callID,
		sessionID: resp.SessionID,
	}, nil
}

// UpdateSession pushes behavioral configuration onto the AI session.
func (s *realtimeSession) UpdateSession(ctx context.Context, cfg SessionConfig) error {
	path := fmt.Sprintf("/video/call/%s/%s/agent_session/%s", s.callType, s.callID, s.sessionID)
	if err := s.client.doRequest(ctx, http.MethodPost, path, cfg, nil); err != nil {
		return fmt.Errorf("failed to update ai session on call %s: %w", s.callID, err)
	}
	return nil
}

// doRequest performs one authenticated request against the platform and
// decodes the response into out when non-nil. Any non-2xx status is an error
// wrapping ErrDependency.
func (c *Client) doRequest(ctx context.Context, method, path string, body, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	url := fmt.Sprintf("%s%s?api_key=%s", c.baseURL, path, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	token, err := c.serverToken()
	if err != nil {
		return err
	}

	req.Header.Set("Authorization", token)
	req.Header.Set("stream-auth-type", "jwt")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("platform request failed: %w: %v", nxerrors.ErrDependency, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("platform returned %d for %s %s: %s: %w",
			resp.StatusCode, method, path, string(snippet), nxerrors.ErrDependency)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode platform response: %w", err)
		}
	}

	return nil
}
