package webhook

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ismaeeldev/nexa-server/pkg/logging"
	"github.com/ismaeeldev/nexa-server/pkg/meetings"
	"github.com/ismaeeldev/nexa-server/pkg/stream"
)

const handlerAPIKey = "app-key"

func newHandlerRig(t *testing.T) (*fixture, *stream.Client, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := newFixture(t, Options{})
	client := stream.NewClient(stream.Config{
		APIKey:    handlerAPIKey,
		APISecret: "signing-secret",
	}, logging.NewNopLogger())

	handler := NewHandler(client, f.orch, logging.NewNopLogger())
	router := gin.New()
	router.POST("/api/webhook", handler.Handle)
	return f, client, router
}

func postWebhook(router *gin.Engine, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/webhook", bytes.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func signedHeaders(client *stream.Client, body []byte) map[string]string {
	return map[string]string{
		HeaderSignature: client.Sign(body),
		HeaderAPIKey:    handlerAPIKey,
	}
}

func startedBody(id uuid.UUID) []byte {
	body, _ := json.Marshal(map[string]interface{}{
		"type": "call.session_started",
		"call": map[string]interface{}{
			"cid":    "default:" + id.String(),
			"custom": map[string]interface{}{"meetingId": id.String()},
		},
	})
	return body
}

// ==================== Authentication gate ====================

func TestWebhookRejectsMissingHeaders(t *testing.T) {
	f, client, router := newHandlerRig(t)
	body := startedBody(f.meetingID)

	// Each header alone is not enough.
	rec := postWebhook(router, body, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = postWebhook(router, body, map[string]string{HeaderSignature: client.Sign(body)})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = postWebhook(router, body, map[string]string{HeaderAPIKey: handlerAPIKey})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Nothing reached the store.
	assert.Equal(t, meetings.StatusUpcoming, f.meeting().Status)
}

func TestWebhookRejectsWrongAPIKey(t *testing.T) {
	f, client, router := newHandlerRig(t)
	body := startedBody(f.meetingID)

	rec := postWebhook(router, body, map[string]string{
		HeaderSignature: client.Sign(body),
		HeaderAPIKey:    "other-key",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, meetings.StatusUpcoming, f.meeting().Status)
}

func TestWebhookRejectsBadSignatureForEveryEventKind(t *testing.T) {
	f, _, router := newHandlerRig(t)

	kinds := []EventType{
		EventSessionStarted,
		EventSessionEnded,
		EventParticipantLeft,
		EventTranscriptionReady,
		EventRecordingReady,
	}

	for _, kind := range kinds {
		body := []byte(fmt.Sprintf(`{"type":%q,"call_cid":"default:%s"}`, kind, f.meetingID))
		rec := postWebhook(router, body, map[string]string{
			HeaderSignature: "deadbeef",
			HeaderAPIKey:    handlerAPIKey,
		})
		assert.Equal(t, http.StatusUnauthorized, rec.Code, string(kind))
	}

	assert.Equal(t, meetings.StatusUpcoming, f.meeting().Status)
	assert.Empty(t, f.platform.endedCalls)
}

func TestWebhookSignatureIsOverRawBytes(t *testing.T) {
	f, client, router := newHandlerRig(t)
	body := startedBody(f.meetingID)
	sig := client.Sign(body)

	// A semantically identical but re-serialized body fails verification.
	tampered := append(bytes.TrimSuffix(body, []byte("}")), ' ', '}')
	rec := postWebhook(router, tampered, map[string]string{
		HeaderSignature: sig,
		HeaderAPIKey:    handlerAPIKey,
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

// ==================== Responses ====================

func TestWebhookAcceptsSignedEvent(t *testing.T) {
	f, client, router := newHandlerRig(t)
	body := startedBody(f.meetingID)

	rec := postWebhook(router, body, signedHeaders(client, body))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Event received"}`, rec.Body.String())
	assert.Equal(t, meetings.StatusActive, f.meeting().Status)
}

func TestWebhookAcknowledgesUnknownEventKind(t *testing.T) {
	_, client, router := newHandlerRig(t)
	body := []byte(`{"type":"call.reaction_new"}`)

	rec := postWebhook(router, body, signedHeaders(client, body))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Event received"}`, rec.Body.String())
}

func TestWebhookRejectsMalformedJSONAfterVerification(t *testing.T) {
	_, client, router := newHandlerRig(t)
	body := []byte(`{not json`)

	rec := postWebhook(router, body, signedHeaders(client, body))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhookMapsErrorTaxonomy(t *testing.T) {
	f, client, router := newHandlerRig(t)

	// Unknown meeting -> 404.
	body := startedBody(uuid.New())
	rec := postWebhook(router, body, signedHeaders(client, body))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Missing meeting id -> 400.
	body = []byte(`{"type":"call.session_started","call":{"custom":{}}}`)
	rec = postWebhook(router, body, signedHeaders(client, body))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Connector dependency failure -> 500, retryable.
	f.connector.err = fmt.Errorf("engine unavailable")
	body = startedBody(f.meetingID)
	rec = postWebhook(router, body, signedHeaders(client, body))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	// The compensation left the meeting retryable; recovery succeeds.
	f.connector.err = nil
	rec = postWebhook(router, body, signedHeaders(client, body))
	assert.Equal(t, http.StatusOK, rec.Code)
}
