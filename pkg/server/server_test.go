package server

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hectorcore/agentcore/pkg/agentcore"
	"github.com/hectorcore/agentcore/pkg/ctxassembly"
	"github.com/hectorcore/agentcore/pkg/llmclient"
	"github.com/hectorcore/agentcore/pkg/observability"
	"github.com/hectorcore/agentcore/pkg/planning"
	"github.com/hectorcore/agentcore/pkg/ratelimit"
	"github.com/hectorcore/agentcore/pkg/runloop"
	"github.com/hectorcore/agentcore/pkg/tokencount"
	"github.com/hectorcore/agentcore/pkg/toolorch"
	"github.com/hectorcore/agentcore/pkg/turn"
)

// fakeTransport always answers with a single fixed text response.
type fakeTransport struct{}

func (f *fakeTransport) Generate(ctx context.Context, req llmclient.Request) (*agentcore.Response, error) {
	return &agentcore.Response{Parts: []agentcore.Part{agentcore.TextPart("done")}}, nil
}

func (f *fakeTransport) CountTokens(ctx context.Context, model, text string) (int, error) {
	return len(text) / 4, nil
}

func newTestAgent() *runloop.Agent {
	counter := tokencount.New("test-model")
	cm := ctxassembly.New(counter, ctxassembly.DefaultLimits(), ctxassembly.DefaultSummaryLimits())
	pm := planning.New(false, planning.DefaultVocabularies())
	source := toolorch.NewLocalToolSource()
	orch := toolorch.New(source, cm)
	return runloop.New("test-model", turn.NewStateManager(), cm, pm, orch, &fakeTransport{}, counter, runloop.DefaultConfig())
}

func TestHealthReturnsOK(t *testing.T) {
	s := New(":0", func(string) (*runloop.Agent, error) { return nil, nil }, nil, observability.NewNoop())
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPostMessageUnknownConversationReturns404(t *testing.T) {
	s := New(":0", func(string) (*runloop.Agent, error) { return nil, assert.AnError }, nil, observability.NewNoop())
	req := httptest.NewRequest(http.MethodPost, "/conversations/missing/messages", strings.NewReader(`{"message":"hi"}`))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPostMessageStreamsEventsAsSSE(t *testing.T) {
	agent := newTestAgent()
	s := New(":0", func(string) (*runloop.Agent, error) { return agent, nil }, nil, observability.NewNoop())

	req := httptest.NewRequest(http.MethodPost, "/conversations/c1/messages", strings.NewReader(`{"message":"what does this repo do?"}`))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	scanner := bufio.NewScanner(strings.NewReader(rec.Body.String()))
	var sawTextEvent bool
	for scanner.Scan() {
		if strings.HasPrefix(scanner.Text(), "event: text") {
			sawTextEvent = true
		}
	}
	assert.True(t, sawTextEvent, "expected at least one text event in the SSE stream:\n%s", rec.Body.String())
}

func TestPostMessageRejectsEmptyMessage(t *testing.T) {
	s := New(":0", func(string) (*runloop.Agent, error) { return nil, nil }, nil, observability.NewNoop())
	req := httptest.NewRequest(http.MethodPost, "/conversations/c1/messages", strings.NewReader(`{"message":""}`))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetricsEndpointServesRegisteredCounters(t *testing.T) {
	obs := observability.NewNoop()
	s := New(":0", func(string) (*runloop.Agent, error) { return nil, nil }, nil, obs)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimitMiddlewareRejectsOverLimitConversation(t *testing.T) {
	limiter, err := ratelimit.NewRateLimiter(&ratelimit.Config{
		Enabled: true,
		Limits:  []ratelimit.LimitRule{{Type: ratelimit.LimitTypeCount, Window: ratelimit.WindowMinute, Limit: 1}},
	}, ratelimit.NewMemoryStore())
	require.NoError(t, err)
	require.NoError(t, limiter.Record(context.Background(), ratelimit.ScopeSession, "c1", 0, 2))

	agent := newTestAgent()
	s := New(":0", func(string) (*runloop.Agent, error) { return agent, nil }, limiter, observability.NewNoop())

	req := httptest.NewRequest(http.MethodPost, "/conversations/c1/messages", strings.NewReader(`{"message":"hi"}`))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}
