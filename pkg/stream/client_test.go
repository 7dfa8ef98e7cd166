package stream

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	nxerrors "github.com/ismaeeldev/nexa-server/pkg/errors"
	"github.com/ismaeeldev/nexa-server/pkg/logging"
)

const testSecret = "test-secret"

func newTestClient(baseURL string) *Client {
	return NewClient(Config{
		APIKey:    "test-key",
		APISecret: testSecret,
		BaseURL:   baseURL,
	}, logging.NewNopLogger())
}

func hmacHex(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// ==================== Webhook signatures ====================

func TestVerifyWebhookValidSignature(t *testing.T) {
	c := newTestClient("")
	body := []byte(`{"type":"call.session_started"}`)

	assert.True(t, c.VerifyWebhook(body, hmacHex(testSecret, body)))
}

func TestVerifyWebhookRejectsBadSignature(t *testing.T) {
	c := newTestClient("")
	body := []byte(`{"type":"call.session_started"}`)

	assert.False(t, c.VerifyWebhook(body, hmacHex("other-secret", body)))
	assert.False(t, c.VerifyWebhook(body, "deadbeef"))
	assert.False(t, c.VerifyWebhook(body, ""))
}

func TestVerifyWebhookIsByteExact(t *testing.T) {
	c := newTestClient("")
	body := []byte(`{"type":"call.session_started"}`)
	sig := hmacHex(testSecret, body)

	// Any change to the raw bytes invalidates the signature.
	tampered := []byte(`{"type":"call.session_ended"}`)
	assert.False(t, c.VerifyWebhook(tampered, sig))

	reformatted := []byte(`{"type": "call.session_started"}`)
	assert.False(t, c.VerifyWebhook(reformatted, sig))
}

func TestSignRoundTrips(t *testing.T) {
	c := newTestClient("")
	body := []byte("arbitrary bytes")
	assert.True(t, c.VerifyWebhook(body, c.Sign(body)))
}

// ==================== User tokens ====================

func TestGenerateUserToken(t *testing.T) {
	c := newTestClient("")

	signed, err := c.GenerateUserToken("user-1", time.Hour)
	require.NoError(t, err)

	token, err := jwt.Parse(signed, func(tok *jwt.Token) (interface{}, error) {
		return []byte(testSecret), nil
	})
	require.NoError(t, err)
	require.True(t, token.Valid)

	claims, ok := token.Claims.(jwt.MapClaims)
	require.True(t, ok)
	assert.Equal(t, "user-1", claims["user_id"])

	now := time.Now()
	iat := time.Unix(int64(claims["iat"].(float64)), 0)
	exp := time.Unix(int64(claims["exp"].(float64)), 0)

	// Issued-at is backdated for clock skew; expiry honors the validity window.
	assert.True(t, iat.Before(now), "iat should be in the past")
	assert.WithinDuration(t, now.Add(time.Hour), exp, 5*time.Second)
	assert.WithinDuration(t, now.Add(-clockSkewAllowance), iat, 5*time.Second)
}

func TestGenerateUserTokenValidation(t *testing.T) {
	c := newTestClient("")

	_, err := c.GenerateUserToken("", time.Hour)
	require.Error(t, err)

	_, err = c.GenerateUserToken("user-1", 0)
	require.Error(t, err)
}

// ==================== REST calls ====================

func TestEndCallSendsAuthenticatedRequest(t *testing.T) {
	var gotPath, gotAuth, gotAuthType string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotAuthType = r.Header.Get("stream-auth-type")
		assert.Equal(t, "test-key", r.URL.Query().Get("api_key"))
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	require.NoError(t, c.EndCall(t.Context(), "default", "m1"))

	assert.Equal(t, "/video/call/default/m1/mark_ended", gotPath)
	assert.Equal(t, "jwt", gotAuthType)

	// The Authorization header carries a server-scoped token.
	token, err := jwt.Parse(gotAuth, func(tok *jwt.Token) (interface{}, error) {
		return []byte(testSecret), nil
	})
	require.NoError(t, err)
	claims := token.Claims.(jwt.MapClaims)
	assert.Equal(t, true, claims["server"])
}

func TestCreateCallAttachesCustomMetadata(t *testing.T) {
	var gotBody map[string]interface{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(data, &gotBody))
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	err := c.CreateCall(t.Context(), "default", "m1", map[string]interface{}{"meetingId": "m1"})
	require.NoError(t, err)

	data := gotBody["data"].(map[string]interface{})
	custom := data["custom"].(map[string]interface{})
	assert.Equal(t, "m1", custom["meetingId"])
}

func TestSessionParticipantCount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"call":{"session":{"participants":[{"user_id":"u1"},{"user_id":"u2"}]}}}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	count, err := c.SessionParticipantCount(t.Context(), "default", "m1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestUpsertUsersSkipsEmptySlice(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	require.NoError(t, c.UpsertUsers(t.Context(), nil))
	assert.False(t, called)
}

func TestPlatformErrorsWrapDependencyFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)

	err := c.EndCall(t.Context(), "default", "m1")
	require.Error(t, err)
	assert.True(t, nxerrors.IsDependency(err))
}

func TestConnectAIParticipantRequiresEngineKey(t *testing.T) {
	c := newTestClient("")

	_, err := c.ConnectAIParticipant(t.Context(), "default", "m1", "a1", "", "gpt-4o-realtime-preview")
	require.Error(t, err)
	assert.True(t, nxerrors.IsDependency(err))
}

func TestConnectAIParticipantAndUpdateSession(t *testing.T) {
	var paths []string
	var sessionUpdate SessionConfig

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		switch {
		case r.URL.Path == "/video/call/default/m1/connect_agent":
			w.Write([]byte(`{"session_id":"sess-1"}`))
		default:
			data, _ := io.ReadAll(r.Body)
			require.NoError(t, json.Unmarshal(data, &sessionUpdate))
			w.Write([]byte(`{}`))
		}
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	handle, err := c.ConnectAIParticipant(t.Context(), "default", "m1", "a1", "sk-test", "gpt-4o-realtime-preview")
	require.NoError(t, err)

	require.NoError(t, handle.UpdateSession(t.Context(), SessionConfig{Instructions: "be helpful"}))

	require.Len(t, paths, 2)
	assert.Equal(t, "/video/call/default/m1/agent_session/sess-1", paths[1])
	assert.Equal(t, "be helpful", sessionUpdate.Instructions)
}
