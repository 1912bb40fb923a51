package api_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jroosing/hydradns/internal/api"
	"github.com/jroosing/hydradns/internal/api/handlers"
	"github.com/jroosing/hydradns/internal/api/models"
	"github.com/jroosing/hydradns/internal/cache"
	"github.com/jroosing/hydradns/internal/config"
	"github.com/jroosing/hydradns/internal/core"
	"github.com/jroosing/hydradns/internal/proxy"
	"github.com/jroosing/hydradns/internal/resolver"
	"github.com/jroosing/hydradns/internal/rewrite"
	"github.com/jroosing/hydradns/internal/upstream"
)

func newTestServer() *api.Server {
	cfg := &config.Config{
		API: config.APIConfig{Enabled: true, Host: "127.0.0.1", Port: 8080},
	}
	rw := rewrite.New()
	c := cache.New(cache.Config{MaxEntries: 100})
	u := upstream.New()
	p := proxy.New(u, core.StrategyRoundRobin)
	r := resolver.New(rw, c, p)
	h := handlers.New(nil, rw, c, u, p, r)
	return api.New(cfg, nil, h)
}

func performRequest(eng http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	eng.ServeHTTP(rec, req)
	return rec
}

func TestStatusEndpoint(t *testing.T) {
	s := newTestServer()
	rec := performRequest(s.Engine(), http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestStrategyRoundTrip(t *testing.T) {
	s := newTestServer()

	rec := performRequest(s.Engine(), http.MethodGet, "/api/strategy", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = performRequest(s.Engine(), http.MethodPut, "/api/strategy", `{"strategy":"fastest"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = performRequest(s.Engine(), http.MethodGet, "/api/strategy", "")
	var resp models.StrategyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "fastest", resp.Strategy)
}

func TestRuleCRUD(t *testing.T) {
	s := newTestServer()

	body := `{"id":1,"pattern":"ads.example.com","match_type":"suffix","action":"block","priority":10,"enabled":true}`
	rec := performRequest(s.Engine(), http.MethodPost, "/api/rules", body)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = performRequest(s.Engine(), http.MethodGet, "/api/rules", "")
	var rules []models.RuleResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rules))
	require.Len(t, rules, 1)
	assert.Equal(t, "block", rules[0].Action)

	rec = performRequest(s.Engine(), http.MethodPut, "/api/rules/1/enabled", `{"enabled":false}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = performRequest(s.Engine(), http.MethodDelete, "/api/rules/1", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestQueryToolAgainstRewriteRule(t *testing.T) {
	s := newTestServer()

	body := `{"id":1,"pattern":"blocked.test","match_type":"exact","action":"nxdomain","priority":10,"enabled":true}`
	rec := performRequest(s.Engine(), http.MethodPost, "/api/rules", body)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = performRequest(s.Engine(), http.MethodPost, "/api/query", `{"name":"blocked.test","type":"A"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.QueryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "NXDOMAIN", resp.RCode)
	assert.True(t, resp.RewriteApplied)
}
