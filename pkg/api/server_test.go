package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumen-arcade/saveguard/pkg/baseline"
	"github.com/lumen-arcade/saveguard/pkg/docstore"
	"github.com/lumen-arcade/saveguard/pkg/ledger"
	"github.com/lumen-arcade/saveguard/pkg/limiter"
	"github.com/lumen-arcade/saveguard/pkg/progression"
	"github.com/lumen-arcade/saveguard/pkg/verify"
)

var testSecret = []byte("test-secret")

func newTestServer(t *testing.T, mutate func(cfg *ServerConfig)) (*httptest.Server, *docstore.MemoryStore) {
	t.Helper()
	baselines := baseline.NewMemoryStore()
	docs := docstore.NewMemoryStore()
	svc, err := verify.NewService(verify.ServiceConfig{
		Validator: progression.NewValidator(progression.DefaultLimits()),
		Baselines: baselines,
		Documents: docs,
		Flags:     ledger.New(baselines),
	})
	require.NoError(t, err)

	cfg := ServerConfig{
		Service:   svc,
		Documents: docs,
		Auth:      NewTokenValidator(testSecret, []string{"reviewer-1"}),
	}
	if mutate != nil {
		mutate(&cfg)
	}
	ts := httptest.NewServer(NewServer(cfg).Routes())
	t.Cleanup(ts.Close)
	return ts, docs
}

func token(t *testing.T, subject string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := tok.SignedString(testSecret)
	require.NoError(t, err)
	return signed
}

func doRequest(t *testing.T, method, url, bearer string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeProblem(t *testing.T, resp *http.Response) ProblemDetail {
	t.Helper()
	assert.Equal(t, "application/problem+json", resp.Header.Get("Content-Type"))
	var p ProblemDetail
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&p))
	return p
}

func TestSubmit_RequiresAuth(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	resp := doRequest(t, http.MethodPost, ts.URL+"/api/v1/saves/game_u1", "", map[string]any{})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, CodeUnauthenticated, decodeProblem(t, resp).Code)
}

func TestSubmit_RejectsForeignSave(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	resp := doRequest(t, http.MethodPost, ts.URL+"/api/v1/saves/game_u1", token(t, "u2"), map[string]any{})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, CodePermissionDenied, decodeProblem(t, resp).Code)
}

func TestSubmit_AcceptsOwnedSave(t *testing.T) {
	ts, docs := newTestServer(t, nil)
	resp := doRequest(t, http.MethodPost, ts.URL+"/api/v1/saves/game_u1", token(t, "u1"),
		map[string]any{"bankBalance": 100.0})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, true, out["ok"])

	_, err := docs.Get(context.Background(), "game_u1")
	assert.NoError(t, err)
}

func TestSubmit_FailedPreconditionCarriesIssues(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	resp := doRequest(t, http.MethodPost, ts.URL+"/api/v1/saves/game_u1", token(t, "u1"),
		map[string]any{"bankBalance": "not a number"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	p := decodeProblem(t, resp)
	assert.Equal(t, CodeFailedPrecondition, p.Code)
	assert.NotEmpty(t, p.Issues)
}

func TestGet_NotFound(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	resp := doRequest(t, http.MethodGet, ts.URL+"/api/v1/saves/game_u1", token(t, "u1"), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAdmin_FlaggedRequiresAllowList(t *testing.T) {
	ts, docs := newTestServer(t, nil)
	require.NoError(t, docs.Put(context.Background(), "game_u9", map[string]any{}, true))

	resp := doRequest(t, http.MethodGet, ts.URL+"/api/v1/admin/flagged", token(t, "u1"), nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = doRequest(t, http.MethodGet, ts.URL+"/api/v1/admin/flagged", token(t, "reviewer-1"), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var out map[string][]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, []string{"game_u9"}, out["owners"])
}

func TestAdmin_UnflagAndDelete(t *testing.T) {
	ts, docs := newTestServer(t, nil)
	require.NoError(t, docs.Put(context.Background(), "game_u9", map[string]any{"x": 1.0}, true))

	resp := doRequest(t, http.MethodPost, ts.URL+"/api/v1/admin/saves/game_u9/unflag", token(t, "reviewer-1"), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	owners, err := docs.QueryFlagged(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, owners)

	resp = doRequest(t, http.MethodDelete, ts.URL+"/api/v1/admin/saves/game_u9", token(t, "reviewer-1"), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	_, err = docs.Get(context.Background(), "game_u9")
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}

func TestRateLimit_Returns429(t *testing.T) {
	ts, _ := newTestServer(t, func(cfg *ServerConfig) {
		cfg.Limits = limiter.NewMemoryStore()
		cfg.LimitPolicy = limiter.Policy{RPM: 60, Burst: 2}
	})

	bearer := token(t, "u1")
	for i := 0; i < 2; i++ {
		resp := doRequest(t, http.MethodGet, ts.URL+"/api/v1/saves/game_u1", bearer, nil)
		assert.NotEqual(t, http.StatusTooManyRequests, resp.StatusCode)
	}
	resp := doRequest(t, http.MethodGet, ts.URL+"/api/v1/saves/game_u1", bearer, nil)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))
}

func TestOwnsSave(t *testing.T) {
	assert.True(t, OwnsSave("u1", "game_u1"))
	assert.True(t, OwnsSave("user_1", "game_user_1"), "uid may itself contain underscores")
	assert.False(t, OwnsSave("u2", "game_u1"))
	assert.False(t, OwnsSave("u1", "gameu1"), "owner id needs the separator")
	assert.False(t, OwnsSave("u1", "_"))
}
