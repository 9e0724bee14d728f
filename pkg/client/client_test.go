package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/telekom/exception-subscriptions/pkg/api"
	"github.com/telekom/exception-subscriptions/pkg/config"
	"github.com/telekom/exception-subscriptions/pkg/store"
)

func TestNewClient(t *testing.T) {
	tests := []struct {
		name    string
		opts    []Option
		wantErr bool
	}{
		{
			name:    "missing server",
			opts:    []Option{},
			wantErr: true,
		},
		{
			name:    "no scheme",
			opts:    []Option{WithServer("localhost:8080")},
			wantErr: true,
		},
		{
			name: "valid config",
			opts: []Option{
				WithServer("https://example.com/"),
				WithToken("test-token"),
			},
		},
		{
			name:    "negative retries",
			opts:    []Option{WithServer("https://example.com"), WithRetries(-1)},
			wantErr: true,
		},
		{
			name:    "missing CA file",
			opts:    []Option{WithServer("https://example.com"), WithTLSConfig("/does/not/exist.pem", false)},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := New(tt.opts...)
			if tt.wantErr {
				require.Error(t, err)
				require.Nil(t, client)
			} else {
				require.NoError(t, err)
				require.NotNil(t, client)
			}
		})
	}
}

func TestClientHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"version": "1.2.3"})
	}))
	defer server.Close()

	client, err := New(WithServer(server.URL), WithToken("test-token"), WithUserAgent("test-agent"))
	require.NoError(t, err)

	info, err := client.Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1.2.3", info.Version)
}

func TestClientRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"version":"dev"}`))
	}))
	defer server.Close()

	client, err := New(WithServer(server.URL), WithRetries(1))
	require.NoError(t, err)

	_, err = client.Version(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, calls.Load())
}

// newAPIServer runs the real admin API on an in-memory store.
func newAPIServer(t *testing.T, secret string) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := zaptest.NewLogger(t)
	subs := store.NewSubscriptionStore(store.NewMemoryStore(), 0, log.Sugar())
	auth := api.NewAuth(log.Sugar(), config.Auth{JWTSecret: secret})

	s := api.NewServer(log, config.Config{}, false, nil)
	require.NoError(t, s.RegisterAll([]api.APIController{
		api.NewSubscriptionController(subs, log.Sugar(), auth.Middleware()),
	}))
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return srv
}

func TestSubscriptionRoundTrip(t *testing.T) {
	srv := newAPIServer(t, "")
	client, err := New(WithServer(srv.URL), WithRetries(0))
	require.NoError(t, err)
	ctx := context.Background()

	text := "shop.views.* alice@example.com\nshop.* ops@example.com,bob@example.com"

	valid, err := client.ValidateSubscriptions(ctx, "shop", text)
	require.NoError(t, err)
	assert.True(t, valid.Valid)

	applied, err := client.ApplySubscriptions(ctx, "shop", text)
	require.NoError(t, err)
	assert.Len(t, applied.Rules, 2)

	got, err := client.GetSubscriptions(ctx, "shop")
	require.NoError(t, err)
	assert.Equal(t, text, got.Subscriptions)

	matches, err := client.Matches(ctx, "shop", "shop.views.cart")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice@example.com", "ops@example.com", "bob@example.com"}, matches.Recipients)

	require.NoError(t, client.DeleteSubscriptions(ctx, "shop"))
	got, err = client.GetSubscriptions(ctx, "shop")
	require.NoError(t, err)
	assert.Empty(t, got.Rules)
}

func TestApplyValidationError(t *testing.T) {
	srv := newAPIServer(t, "")
	client, err := New(WithServer(srv.URL), WithRetries(0))
	require.NoError(t, err)

	_, err = client.ApplySubscriptions(context.Background(), "shop", "shop.* ok@example.com\nbilling.* nope")
	require.Error(t, err)

	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusUnprocessableEntity, httpErr.StatusCode)
	assert.Equal(t, 2, httpErr.Line)
	assert.Contains(t, httpErr.Message, "nope is not a valid email address")
}

func TestUnauthorized(t *testing.T) {
	const secret = "0123456789abcdef0123456789abcdef"
	srv := newAPIServer(t, secret)

	client, err := New(WithServer(srv.URL), WithRetries(0))
	require.NoError(t, err)
	_, err = client.GetSubscriptions(context.Background(), "shop")
	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusUnauthorized, httpErr.StatusCode)

	token, err := api.IssueToken(secret, "alice", "", time.Minute)
	require.NoError(t, err)
	client, err = New(WithServer(srv.URL), WithToken(token), WithRetries(0))
	require.NoError(t, err)
	_, err = client.GetSubscriptions(context.Background(), "shop")
	assert.NoError(t, err)
}

func TestHTTPErrorMessage(t *testing.T) {
	assert.Equal(t, "request failed (404): not found", (&HTTPError{StatusCode: 404, Message: "not found"}).Error())
	assert.Equal(t, "request failed (422): line 3: bad", (&HTTPError{StatusCode: 422, Message: "bad", Line: 3}).Error())
}
