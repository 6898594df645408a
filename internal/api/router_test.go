package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/pagegate/internal/audit"
	"github.com/nikhilbhutani/pagegate/internal/config"
	"github.com/nikhilbhutani/pagegate/internal/decision"
	"github.com/nikhilbhutani/pagegate/internal/judge"
	"github.com/nikhilbhutani/pagegate/internal/llm"
	"github.com/nikhilbhutani/pagegate/internal/logging"
	"github.com/nikhilbhutani/pagegate/internal/models"
	"github.com/nikhilbhutani/pagegate/internal/policy"
	"github.com/nikhilbhutani/pagegate/internal/rules"
	"github.com/nikhilbhutani/pagegate/internal/store/sqlite"
)

// replyProvider is a completion backend that always answers reply.
type replyProvider struct {
	mu    sync.Mutex
	reply string
	calls int
}

func (p *replyProvider) ChatCompletion(context.Context, llm.ChatRequest) (*llm.ChatResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return &llm.ChatResponse{Content: p.reply, Provider: "fake"}, nil
}

func (p *replyProvider) Name() string     { return "fake" }
func (p *replyProvider) Models() []string { return []string{"fake-1"} }

type fixedCounter struct{ count int64 }

func (c *fixedCounter) Hit(context.Context, string, time.Duration) (int64, time.Duration, error) {
	c.count++
	return c.count, time.Minute, nil
}

type testServer struct {
	handler  http.Handler
	store    *sqlite.Store
	provider *replyProvider
}

func newTestServer(t *testing.T, limiter *fixedCounter) *testServer {
	t.Helper()
	ctx := context.Background()
	log := logging.NewNoopLogger()

	store, err := sqlite.Open(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	require.NoError(t, store.PutRule(ctx, "key-1", models.RuleData{
		UserID:            "u1",
		Prompt:            "Only allow work-related sites.",
		AllowList:         []string{"docs.python.org"},
		BlockList:         []string{"reddit.com"},
		BlockedCategories: map[models.CategoryKey]bool{models.CategorySocial: true},
	}))

	cfg := config.Defaults()
	cfg.Judge.Model = "fake-1"
	if limiter != nil {
		cfg.RateLimit.Enabled = true
		cfg.RateLimit.Requests = 2
	}

	provider := &replyProvider{reply: "ALLOW"}
	gw := llm.NewGatewayWithProviders([]llm.Provider{provider}, llm.Routing{Default: "fake"}, log)

	ruleGW := rules.NewGateway(store, time.Second, log)
	pipeline := decision.NewPipeline(
		ruleGW,
		policy.NewTable(cfg.Policy.InfraDomains),
		judge.New(gw, cfg.Judge, log),
		audit.NewRecorder(store, time.Second, log),
		log,
	)

	deps := Deps{Pipeline: pipeline, Rules: ruleGW}
	if limiter != nil {
		deps.Limiter = limiter
	}
	return &testServer{
		handler:  NewRouter(&cfg, deps, log).Setup(),
		store:    store,
		provider: provider,
	}
}

func (s *testServer) check(t *testing.T, key, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/check-url", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func TestRouter_CheckURL(t *testing.T) {
	srv := newTestServer(t, nil)

	tests := []struct {
		name     string
		key      string
		body     string
		status   int
		response string
	}{
		{"allow list", "key-1", `{"url":"https://docs.python.org/3/library/"}`, http.StatusOK, `{"decision":"ALLOW"}`},
		{"block list", "key-1", `{"url":"https://www.reddit.com/r/golang"}`, http.StatusOK, `{"decision":"BLOCK"}`},
		{"infra", "key-1", `{"url":"https://accounts.google.com/signin"}`, http.StatusOK, `{"decision":"ALLOW"}`},
		{"judge", "key-1", `{"url":"https://golang.org/doc","title":"Documentation"}`, http.StatusOK, `{"decision":"ALLOW"}`},
		{"missing url", "key-1", `{"title":"x"}`, http.StatusBadRequest, `{"error":"url and api key are required"}`},
		{"missing key", "", `{"url":"https://golang.org"}`, http.StatusBadRequest, `{"error":"url and api key are required"}`},
		{"unknown key", "nope", `{"url":"https://golang.org"}`, http.StatusUnauthorized, `{"error":"invalid api key"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := srv.check(t, tt.key, tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.JSONEq(t, tt.response, rec.Body.String())
		})
	}

	assert.Equal(t, 1, srv.provider.calls)

	entries, err := srv.store.RecentAudits(context.Background(), "u1", 10)
	require.NoError(t, err)
	reasons := map[models.Reason]models.Decision{}
	for _, e := range entries {
		reasons[e.Reason] = e.Decision
	}
	assert.Equal(t, map[models.Reason]models.Decision{
		models.ReasonAllowList:  models.DecisionAllow,
		models.ReasonBlockList:  models.DecisionBlock,
		models.ReasonAIDecision: models.DecisionAllow,
	}, reasons)
}

func TestRouter_Heartbeat(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	srv.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/heartbeat?key=key-1", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	r, err := srv.store.FindByAPIKey(context.Background(), "key-1")
	require.NoError(t, err)
	assert.NotNil(t, r.LastSeen)

	rec = httptest.NewRecorder()
	srv.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/heartbeat?key=unknown", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_RateLimitOnlyOnCheck(t *testing.T) {
	srv := newTestServer(t, &fixedCounter{})

	for i := 0; i < 2; i++ {
		rec := srv.check(t, "key-1", `{"url":"https://reddit.com"}`)
		assert.Equal(t, http.StatusOK, rec.Code)
	}
	rec := srv.check(t, "key-1", `{"url":"https://reddit.com"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec = httptest.NewRecorder()
	srv.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
