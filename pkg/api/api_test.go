package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ismaeeldev/nexa-server/pkg/agents"
	nxerrors "github.com/ismaeeldev/nexa-server/pkg/errors"
	"github.com/ismaeeldev/nexa-server/pkg/logging"
	"github.com/ismaeeldev/nexa-server/pkg/meetings"
	"github.com/ismaeeldev/nexa-server/pkg/stream"
)

const sessionSecret = "session-secret"

// ==================== Fakes ====================

type fakeAgentStore struct {
	byID      map[uuid.UUID]*agents.Agent
	deleteErr error
}

func newFakeAgentStore() *fakeAgentStore {
	return &fakeAgentStore{byID: make(map[uuid.UUID]*agents.Agent)}
}

func (s *fakeAgentStore) Create(_ context.Context, a *agents.Agent) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	s.byID[a.ID] = a
	return nil
}

func (s *fakeAgentStore) GetOwned(_ context.Context, id uuid.UUID, userID string) (*agents.Agent, error) {
	a, ok := s.byID[id]
	if !ok || a.UserID != userID {
		return nil, nxerrors.ErrNotFound
	}
	return a, nil
}

func (s *fakeAgentStore) List(_ context.Context, userID string) ([]*agents.Agent, error) {
	var out []*agents.Agent
	for _, a := range s.byID {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *fakeAgentStore) Update(_ context.Context, a *agents.Agent, userID string) error {
	existing, ok := s.byID[a.ID]
	if !ok || existing.UserID != userID {
		return nxerrors.ErrNotFound
	}
	existing.Name = a.Name
	existing.Instructions = a.Instructions
	return nil
}

func (s *fakeAgentStore) Delete(_ context.Context, id uuid.UUID, userID string) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	a, ok := s.byID[id]
	if !ok || a.UserID != userID {
		return nxerrors.ErrNotFound
	}
	delete(s.byID, id)
	return nil
}

type fakeMeetingStore struct {
	byID map[uuid.UUID]*meetings.Meeting
}

func newFakeMeetingStore() *fakeMeetingStore {
	return &fakeMeetingStore{byID: make(map[uuid.UUID]*meetings.Meeting)}
}

func (s *fakeMeetingStore) Create(_ context.Context, m *meetings.Meeting) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.Status == "" {
		m.Status = meetings.StatusUpcoming
	}
	s.byID[m.ID] = m
	return nil
}

func (s *fakeMeetingStore) GetOwned(_ context.Context, id uuid.UUID, userID string) (*meetings.Meeting, error) {
	m, ok := s.byID[id]
	if !ok || m.UserID != userID {
		return nil, nxerrors.ErrNotFound
	}
	return m, nil
}

func (s *fakeMeetingStore) List(_ context.Context, userID string) ([]*meetings.MeetingWithAgent, error) {
	var out []*meetings.MeetingWithAgent
	for _, m := range s.byID {
		if m.UserID == userID {
			out = append(out, &meetings.MeetingWithAgent{Meeting: *m})
		}
	}
	return out, nil
}

func (s *fakeMeetingStore) Update(_ context.Context, m *meetings.Meeting, userID string) error {
	existing, ok := s.byID[m.ID]
	if !ok || existing.UserID != userID {
		return nxerrors.ErrNotFound
	}
	existing.Name = m.Name
	existing.AgentID = m.AgentID
	return nil
}

func (s *fakeMeetingStore) Delete(_ context.Context, id uuid.UUID, userID string) error {
	m, ok := s.byID[id]
	if !ok || m.UserID != userID {
		return nxerrors.ErrNotFound
	}
	delete(s.byID, id)
	return nil
}

func (s *fakeMeetingStore) Cancel(_ context.Context, id uuid.UUID, userID string) (*meetings.Meeting, error) {
	m, ok := s.byID[id]
	if !ok || m.UserID != userID || m.Status != meetings.StatusUpcoming {
		return nil, nxerrors.ErrNotFound
	}
	m.Status = meetings.StatusCancelled
	return m, nil
}

type fakePlatform struct {
	createdCalls []string
	customs      []map[string]interface{}
	upserted     []stream.User
	tokenErr     error
}

func (p *fakePlatform) CreateCall(_ context.Context, callType, id string, custom map[string]interface{}) error {
	p.createdCalls = append(p.createdCalls, callType+":"+id)
	p.customs = append(p.customs, custom)
	return nil
}

func (p *fakePlatform) UpsertUsers(_ context.Context, users []stream.User) error {
	p.upserted = append(p.upserted, users...)
	return nil
}

func (p *fakePlatform) GenerateUserToken(userID string, validity time.Duration) (string, error) {
	if p.tokenErr != nil {
		return "", p.tokenErr
	}
	return "call-token-for-" + userID, nil
}

type fakeRegistrar struct {
	registered []string
	err        error
}

func (r *fakeRegistrar) EnsureAgentIdentity(_ context.Context, agentID, name string) error {
	if r.err != nil {
		return r.err
	}
	r.registered = append(r.registered, agentID+"/"+name)
	return nil
}

// ==================== Rig ====================

type rig struct {
	server    *Server
	agents    *fakeAgentStore
	meetings  *fakeMeetingStore
	platform  *fakePlatform
	registrar *fakeRegistrar
}

func newRig(t *testing.T) *rig {
	t.Helper()
	gin.SetMode(gin.TestMode)

	agentStore := newFakeAgentStore()
	meetingStore := newFakeMeetingStore()
	platform := &fakePlatform{}
	registrar := &fakeRegistrar{}
	logger := logging.NewNopLogger()

	server := NewServer(ServerConfig{
		Address:       ":0",
		SessionSecret: sessionSecret,
	}, Deps{
		Agents:   NewAgentsHandler(agentStore, logger),
		Meetings: NewMeetingsHandler(meetingStore, agentStore, platform, registrar, time.Hour, logger),
		Registry: prometheus.NewRegistry(),
		Logger:   logger,
	})

	return &rig{
		server:    server,
		agents:    agentStore,
		meetings:  meetingStore,
		platform:  platform,
		registrar: registrar,
	}
}

func sessionToken(t *testing.T, userID, name string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub": userID,
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	if name != "" {
		claims["name"] = name
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(sessionSecret))
	require.NoError(t, err)
	return token
}

func (r *rig) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reqBody *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reqBody = bytes.NewReader(data)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	r.server.Engine().ServeHTTP(rec, req)
	return rec
}

func (r *rig) seedAgent(userID string) *agents.Agent {
	a := &agents.Agent{Name: "Coach", Instructions: "be concise", UserID: userID}
	r.agents.Create(context.Background(), a)
	return a
}

// ==================== Auth ====================

func TestRoutesRequireSession(t *testing.T) {
	r := newRig(t)

	rec := r.do(t, http.MethodGet, "/api/agents", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = r.do(t, http.MethodGet, "/api/meetings", "garbage-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthRejectsWrongSecret(t *testing.T) {
	r := newRig(t)

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-1",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("other-secret"))
	require.NoError(t, err)

	rec := r.do(t, http.MethodGet, "/api/agents", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthRejectsTokenWithoutSubject(t *testing.T) {
	r := newRig(t)

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(sessionSecret))
	require.NoError(t, err)

	rec := r.do(t, http.MethodGet, "/api/agents", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

// ==================== Agents ====================

func TestAgentCRUD(t *testing.T) {
	r := newRig(t)
	token := sessionToken(t, "user-1", "Ada")

	// Create.
	rec := r.do(t, http.MethodPost, "/api/agents", token,
		map[string]string{"name": "Coach", "instructions": "be concise"})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created agents.Agent
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "Coach", created.Name)
	assert.Equal(t, "user-1", created.UserID)

	// Get.
	rec = r.do(t, http.MethodGet, "/api/agents/"+created.ID.String(), token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Update.
	rec = r.do(t, http.MethodPut, "/api/agents/"+created.ID.String(), token,
		map[string]string{"name": "Mentor", "instructions": "be kind"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Mentor", r.agents.byID[created.ID].Name)

	// Delete.
	rec = r.do(t, http.MethodDelete, "/api/agents/"+created.ID.String(), token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = r.do(t, http.MethodGet, "/api/agents/"+created.ID.String(), token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAgentCreateValidation(t *testing.T) {
	r := newRig(t)
	token := sessionToken(t, "user-1", "")

	rec := r.do(t, http.MethodPost, "/api/agents", token, map[string]string{"name": "Coach"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = r.do(t, http.MethodPost, "/api/agents", token, map[string]string{"instructions": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAgentOwnershipIsEnforced(t *testing.T) {
	r := newRig(t)
	agent := r.seedAgent("user-1")
	otherToken := sessionToken(t, "user-2", "")

	rec := r.do(t, http.MethodGet, "/api/agents/"+agent.ID.String(), otherToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = r.do(t, http.MethodDelete, "/api/agents/"+agent.ID.String(), otherToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAgentDeleteConflictWhenReferenced(t *testing.T) {
	r := newRig(t)
	agent := r.seedAgent("user-1")
	token := sessionToken(t, "user-1", "")
	r.agents.deleteErr = fmt.Errorf("meetings still reference agent: %w", nxerrors.ErrConflict)

	rec := r.do(t, http.MethodDelete, "/api/agents/"+agent.ID.String(), token, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

// ==================== Meetings ====================

func TestMeetingCreateProvisionsCall(t *testing.T) {
	r := newRig(t)
	agent := r.seedAgent("user-1")
	token := sessionToken(t, "user-1", "Ada")

	rec := r.do(t, http.MethodPost, "/api/meetings", token,
		map[string]string{"name": "standup", "agentId": agent.ID.String()})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created meetings.Meeting
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, meetings.StatusUpcoming, created.Status)

	// The platform call is created with the meeting id stamped into the
	// custom metadata, which is how webhooks correlate back.
	require.Len(t, r.platform.createdCalls, 1)
	assert.Equal(t, "default:"+created.ID.String(), r.platform.createdCalls[0])
	assert.Equal(t, created.ID.String(), r.platform.customs[0]["meetingId"])

	// The agent's AI identity was registered.
	assert.Equal(t, []string{agent.ID.String() + "/Coach"}, r.registrar.registered)
}

func TestMeetingCreateRejectsForeignAgent(t *testing.T) {
	r := newRig(t)
	agent := r.seedAgent("user-2")
	token := sessionToken(t, "user-1", "")

	rec := r.do(t, http.MethodPost, "/api/meetings", token,
		map[string]string{"name": "standup", "agentId": agent.ID.String()})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, r.platform.createdCalls)
}

func TestMeetingCancel(t *testing.T) {
	r := newRig(t)
	agent := r.seedAgent("user-1")
	token := sessionToken(t, "user-1", "")

	m := &meetings.Meeting{Name: "standup", AgentID: agent.ID, UserID: "user-1"}
	r.meetings.Create(context.Background(), m)

	rec := r.do(t, http.MethodPost, "/api/meetings/"+m.ID.String()+"/cancel", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, meetings.StatusCancelled, m.Status)

	// Cancelling twice fails the precondition.
	rec = r.do(t, http.MethodPost, "/api/meetings/"+m.ID.String()+"/cancel", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMeetingCancelRejectsActiveMeeting(t *testing.T) {
	r := newRig(t)
	agent := r.seedAgent("user-1")
	token := sessionToken(t, "user-1", "")

	m := &meetings.Meeting{Name: "standup", AgentID: agent.ID, UserID: "user-1", Status: meetings.StatusActive}
	r.meetings.Create(context.Background(), m)

	rec := r.do(t, http.MethodPost, "/api/meetings/"+m.ID.String()+"/cancel", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, meetings.StatusActive, m.Status)
}

func TestMeetingToken(t *testing.T) {
	r := newRig(t)
	agent := r.seedAgent("user-1")
	token := sessionToken(t, "user-1", "Ada")

	m := &meetings.Meeting{Name: "standup", AgentID: agent.ID, UserID: "user-1"}
	r.meetings.Create(context.Background(), m)

	rec := r.do(t, http.MethodPost, "/api/meetings/"+m.ID.String()+"/token", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "call-token-for-user-1", resp["token"])

	// The caller's platform identity was upserted with their display name.
	require.Len(t, r.platform.upserted, 1)
	assert.Equal(t, "user-1", r.platform.upserted[0].ID)
	assert.Equal(t, "Ada", r.platform.upserted[0].Name)
	assert.NotEmpty(t, r.platform.upserted[0].Image)
}

func TestMeetingTokenRequiresOwnership(t *testing.T) {
	r := newRig(t)
	agent := r.seedAgent("user-1")
	m := &meetings.Meeting{Name: "standup", AgentID: agent.ID, UserID: "user-1"}
	r.meetings.Create(context.Background(), m)

	rec := r.do(t, http.MethodPost, "/api/meetings/"+m.ID.String()+"/token",
		sessionToken(t, "user-2", ""), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, r.platform.upserted)
}

// ==================== Operational endpoints ====================

func TestHealthz(t *testing.T) {
	r := newRig(t)
	rec := r.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestVersion(t *testing.T) {
	r := newRig(t)
	rec := r.do(t, http.MethodGet, "/version", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "nexa-server")
}

func TestMetricsEndpoint(t *testing.T) {
	r := newRig(t)
	rec := r.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
