package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/telekom/exception-subscriptions/pkg/apiresponses"
	"github.com/telekom/exception-subscriptions/pkg/config"
	"github.com/telekom/exception-subscriptions/pkg/subscription"
)

type memoryRepo struct {
	mu   sync.Mutex
	sets map[string]*subscription.Set
	err  error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{sets: map[string]*subscription.Set{}}
}

func (r *memoryRepo) Load(_ context.Context, project string) (*subscription.Set, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	if s, ok := r.sets[project]; ok {
		return s, nil
	}
	return subscription.NewSet()
}

func (r *memoryRepo) Save(_ context.Context, project string, set *subscription.Set) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.sets[project] = set
	return nil
}

func (r *memoryRepo) Delete(_ context.Context, project string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	delete(r.sets, project)
	return nil
}

func subsServer(t *testing.T, repo SubscriptionRepository) http.Handler {
	t.Helper()
	return newTestServer(t, nil, NewSubscriptionController(repo, zaptest.NewLogger(t).Sugar())).Handler()
}

func jsonBody(t *testing.T, v interface{}) *strings.Reader {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return strings.NewReader(string(b))
}

func TestPutAndGetSubscriptions(t *testing.T) {
	repo := newMemoryRepo()
	h := subsServer(t, repo)

	text := "shop.views.* alice@example.com,bob@example.com\nshop.* ops@example.com"
	req := httptest.NewRequest(http.MethodPut, "/api/projects/1/subscriptions", jsonBody(t, SubscriptionsRequest{Subscriptions: "\n" + text + "\n"}))
	req.Header.Set("Content-Type", "application/json")
	w := doRequest(t, h, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doRequest(t, h, httptest.NewRequest(http.MethodGet, "/api/projects/1/subscriptions", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp SubscriptionsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "1", resp.Project)
	assert.Equal(t, text, resp.Subscriptions)
	require.Len(t, resp.Rules, 2)
	assert.Equal(t, "shop.views.*", resp.Rules[0].Pattern)
	assert.Equal(t, []string{"alice@example.com", "bob@example.com"}, resp.Rules[0].Emails)
}

func TestGetUnconfiguredProject(t *testing.T) {
	w := doRequest(t, subsServer(t, newMemoryRepo()), httptest.NewRequest(http.MethodGet, "/api/projects/42/subscriptions", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"project":"42","subscriptions":"","rules":[]}`, w.Body.String())
}

func TestPutInvalidSubscriptions(t *testing.T) {
	tests := []struct {
		name string
		text string
		line int
	}{
		{name: "missing emails", text: "shop.*", line: 1},
		{name: "bad email on second line", text: "shop.* a@example.com\nbilling.* not-an-email", line: 2},
		{name: "blank line inside", text: "shop.* a@example.com\n\nbilling.* b@example.com", line: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMemoryRepo()
			req := httptest.NewRequest(http.MethodPut, "/api/projects/1/subscriptions", jsonBody(t, SubscriptionsRequest{Subscriptions: tt.text}))
			req.Header.Set("Content-Type", "application/json")
			w := doRequest(t, subsServer(t, repo), req)
			require.Equal(t, http.StatusUnprocessableEntity, w.Code)

			var resp apiresponses.ValidationErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.line, resp.Line)
			assert.Empty(t, repo.sets)
		})
	}
}

func TestPutMalformedBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPut, "/api/projects/1/subscriptions", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	w := doRequest(t, subsServer(t, newMemoryRepo()), req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestValidateDoesNotPersist(t *testing.T) {
	repo := newMemoryRepo()
	req := httptest.NewRequest(http.MethodPost, "/api/projects/1/subscriptions/validate", jsonBody(t, SubscriptionsRequest{Subscriptions: "shop.* a@example.com"}))
	req.Header.Set("Content-Type", "application/json")
	w := doRequest(t, subsServer(t, repo), req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp ValidateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Valid)
	assert.Len(t, resp.Rules, 1)
	assert.Empty(t, repo.sets)
}

func TestDeleteSubscriptions(t *testing.T) {
	repo := newMemoryRepo()
	set, err := subscription.Parse("shop.* a@example.com")
	require.NoError(t, err)
	repo.sets["1"] = set

	w := doRequest(t, subsServer(t, repo), httptest.NewRequest(http.MethodDelete, "/api/projects/1/subscriptions", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, repo.sets)
}

func TestMatches(t *testing.T) {
	repo := newMemoryRepo()
	set, err := subscription.Parse("shop.views.* alice@example.com\nbilling.* bob@example.com\nshop.* ops@example.com")
	require.NoError(t, err)
	repo.sets["1"] = set
	h := subsServer(t, repo)

	w := doRequest(t, h, httptest.NewRequest(http.MethodGet, "/api/projects/1/matches?culprit=shop.views.checkout", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var resp MatchesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []string{"shop.views.*", "shop.*"}, resp.Patterns)
	assert.Equal(t, []string{"alice@example.com", "ops@example.com"}, resp.Recipients)

	w = doRequest(t, h, httptest.NewRequest(http.MethodGet, "/api/projects/1/matches?culprit=other", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"recipients":[]`)

	w = doRequest(t, h, httptest.NewRequest(http.MethodGet, "/api/projects/1/matches", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRepositoryErrors(t *testing.T) {
	repo := newMemoryRepo()
	repo.err = errors.New("database is locked")
	h := subsServer(t, repo)

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/api/projects/1/subscriptions", nil),
		httptest.NewRequest(http.MethodDelete, "/api/projects/1/subscriptions", nil),
		httptest.NewRequest(http.MethodGet, "/api/projects/1/matches?culprit=x", nil),
	} {
		w := doRequest(t, h, req)
		assert.Equal(t, http.StatusInternalServerError, w.Code, req.Method+" "+req.URL.String())
		assert.NotContains(t, w.Body.String(), "locked")
	}
}

func TestSubscriptionsRequireToken(t *testing.T) {
	auth := NewAuth(zaptest.NewLogger(t).Sugar(), config.Auth{JWTSecret: testSecret})
	h := newTestServer(t, nil, NewSubscriptionController(newMemoryRepo(), zaptest.NewLogger(t).Sugar(), auth.Middleware())).Handler()

	w := doRequest(t, h, httptest.NewRequest(http.MethodGet, "/api/projects/1/subscriptions", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	tok, err := IssueToken(testSecret, "alice", "", time.Hour)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/api/projects/1/subscriptions", nil)
	req.Header.Set(AuthHeaderKey, "Bearer "+tok)
	w = doRequest(t, h, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
