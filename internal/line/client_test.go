package line

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/heartlog/rehab-api/internal/config"
	apperrors "github.com/heartlog/rehab-api/pkg/util/errorutil"
)

type captured struct {
	path string
	auth string
	body map[string]any
}

func newTestServer(t *testing.T, status int) (*httptest.Server, *captured) {
	t.Helper()
	got := &captured{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.path = r.URL.Path
		got.auth = r.Header.Get("Authorization")
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &got.body)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"message":"nope"}`))
	}))
	t.Cleanup(srv.Close)
	return srv, got
}

func testClient(baseURL, token string) *Client {
	return NewClient(config.LineConfig{
		APIBaseURL:            baseURL,
		ChannelAccessToken:    token,
		RequestTimeoutSeconds: 2,
	}, zap.NewNop(), nil)
}

func TestClient_Reply(t *testing.T) {
	srv, got := newTestServer(t, http.StatusOK)
	client := testClient(srv.URL+"/", "access-token")

	require.NoError(t, client.Reply(context.Background(), "reply-token", "hello"))
	assert.Equal(t, replyPath, got.path)
	assert.Equal(t, "Bearer access-token", got.auth)
	assert.Equal(t, "reply-token", got.body["replyToken"])

	messages := got.body["messages"].([]any)
	require.Len(t, messages, 1)
	message := messages[0].(map[string]any)
	assert.Equal(t, "text", message["type"])
	assert.Equal(t, "hello", message["text"])
}

func TestClient_Push(t *testing.T) {
	srv, got := newTestServer(t, http.StatusOK)
	client := testClient(srv.URL, "access-token")

	require.NoError(t, client.Push(context.Background(), "U123", "reminder"))
	assert.Equal(t, pushPath, got.path)
	assert.Equal(t, "U123", got.body["to"])
}

func TestClient_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	err := testClient(url, "access-token").Push(context.Background(), "U123", "x")
	var domainErr *apperrors.DomainError
	require.True(t, errors.As(err, &domainErr))
	assert.Equal(t, "UPSTREAM_FAILURE", domainErr.Code)
	assert.Equal(t, 0, domainErr.Details["upstream_status"])
}

func TestClient_DeadlineBoundsCall(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	start := time.Now()
	err := testClient(srv.URL, "access-token").Reply(ctx, "rt", "x")

	assert.Less(t, time.Since(start), 2*time.Second)
	var domainErr *apperrors.DomainError
	require.True(t, errors.As(err, &domainErr))
	assert.Equal(t, "UPSTREAM_FAILURE", domainErr.Code)
}

func TestClient_UpstreamFailure(t *testing.T) {
	srv, _ := newTestServer(t, http.StatusBadRequest)
	client := testClient(srv.URL, "access-token")

	err := client.Push(context.Background(), "U123", "x")
	var domainErr *apperrors.DomainError
	require.True(t, errors.As(err, &domainErr))
	assert.Equal(t, "UPSTREAM_FAILURE", domainErr.Code)
	assert.Equal(t, http.StatusBadRequest, domainErr.Details["upstream_status"])
}

func TestClient_MissingToken(t *testing.T) {
	client := testClient("http://127.0.0.1:1", "")

	err := client.Reply(context.Background(), "rt", "x")
	var domainErr *apperrors.DomainError
	require.True(t, errors.As(err, &domainErr))
	assert.Equal(t, "CONFIGURATION_ERROR", domainErr.Code)
}

func TestClient_RequiresRecipient(t *testing.T) {
	client := testClient("http://127.0.0.1:1", "token")
	assert.Error(t, client.Reply(context.Background(), "", "x"))
	assert.Error(t, client.Push(context.Background(), "", "x"))
}

func TestClient_CancelledContext(t *testing.T) {
	client := testClient("http://127.0.0.1:1", "token")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, client.Push(ctx, "U1", "x"), context.Canceled)
}
