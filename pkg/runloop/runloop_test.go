package runloop

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hectorcore/agentcore/pkg/agentcore"
	"github.com/hectorcore/agentcore/pkg/ctxassembly"
	"github.com/hectorcore/agentcore/pkg/llmclient"
	"github.com/hectorcore/agentcore/pkg/planning"
	"github.com/hectorcore/agentcore/pkg/ratelimit"
	"github.com/hectorcore/agentcore/pkg/tokencount"
	"github.com/hectorcore/agentcore/pkg/toolorch"
	"github.com/hectorcore/agentcore/pkg/turn"
)

// fakeTransport lets each test script a fixed sequence of responses (or
// errors) without touching a real LLM transport.
type fakeTransport struct {
	calls     int
	responses []*agentcore.Response
	errs      []error
}

func (f *fakeTransport) Generate(ctx context.Context, req llmclient.Request) (*agentcore.Response, error) {
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	if i < len(f.responses) {
		return f.responses[i], nil
	}
	return &agentcore.Response{Parts: []agentcore.Part{agentcore.TextPart("done")}}, nil
}

func (f *fakeTransport) CountTokens(ctx context.Context, model, text string) (int, error) {
	return len(text) / 4, nil
}

func newTestAgent(t *testing.T, transport llmclient.Transport, cfg Config) (*Agent, *turn.StateManager) {
	t.Helper()
	sm := turn.NewStateManager()
	counter := tokencount.New("test-model")
	cm := ctxassembly.New(counter, ctxassembly.DefaultLimits(), ctxassembly.DefaultSummaryLimits())
	pm := planning.New(false, planning.DefaultVocabularies())
	source := toolorch.NewLocalToolSource()
	orch := toolorch.New(source, cm)

	a := New("test-model", sm, cm, pm, orch, transport, counter, cfg)
	return a, sm
}

func drain(seq func(func(Event, error) bool)) []Event {
	var events []Event
	seq(func(e Event, _ error) bool {
		events = append(events, e)
		return true
	})
	return events
}

func TestProcessMessagePlainExplorationCompletesOneTurnNoRetries(t *testing.T) {
	transport := &fakeTransport{}
	a, sm := newTestAgent(t, transport, DefaultConfig())

	events := drain(a.ProcessMessage(context.Background(), "what does this repo do?"))

	require.Len(t, events, 1)
	assert.Equal(t, EventText, events[0].Kind)
	assert.Equal(t, "done", events[0].Text)
	assert.Equal(t, 1, transport.calls)

	history := sm.History()
	require.Len(t, history, 1)
	assert.Equal(t, turn.Completed, history[0].Phase)
	assert.Nil(t, sm.Current())
}

func TestProcessMessageRetriesOnceOnRetryableTransportError(t *testing.T) {
	transport := &fakeTransport{
		errs: []error{errors.New("503 Service Unavailable")},
	}
	cfg := DefaultConfig()
	a, sm := newTestAgent(t, transport, cfg)

	events := drain(a.ProcessMessage(context.Background(), "list the files"))

	var kinds []EventKind
	for _, e := range events {
		kinds = append(kinds, e.Kind)
	}
	assert.Contains(t, kinds, EventRetrying)
	assert.Contains(t, kinds, EventText)
	assert.Equal(t, 2, transport.calls)

	history := sm.History()
	require.Len(t, history, 1, "one user message still produces exactly one completed turn")
}

func TestProcessMessageSurfacesNonRetryableTransportErrorImmediately(t *testing.T) {
	transport := &fakeTransport{
		errs: []error{errors.New("PERMISSION_DENIED: invalid api key")},
	}
	a, sm := newTestAgent(t, transport, DefaultConfig())

	events := drain(a.ProcessMessage(context.Background(), "do something"))

	require.Len(t, events, 1)
	assert.Equal(t, EventError, events[0].Kind)
	assert.Equal(t, 1, transport.calls, "a non-retryable error must not trigger a second attempt")

	history := sm.History()
	require.Len(t, history, 1)
	assert.NotEmpty(t, history[0].Errors)
}

func TestProcessMessageStopsAfterMaxRetries(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxRetries = 2

	transport := &fakeTransport{
		errs: []error{
			errors.New("503 Service Unavailable"),
			errors.New("503 Service Unavailable"),
			errors.New("503 Service Unavailable"),
		},
	}
	a, _ := newTestAgent(t, transport, cfg)

	events := drain(a.ProcessMessage(context.Background(), "do something"))

	last := events[len(events)-1]
	assert.Equal(t, EventError, last.Kind)
	// first attempt + MaxRetries retries = 3 transport calls total, never more.
	assert.Equal(t, cfg.MaxRetries+1, transport.calls)
}

func TestProcessMessageEventCapTripsCircuitBreaker(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxEventsPerAttempt = 1

	toolCallResp := &agentcore.Response{
		Parts: []agentcore.Part{agentcore.FunctionCallPart("list_files", map[string]interface{}{}, "call-1")},
	}
	transport := &fakeTransport{responses: []*agentcore.Response{toolCallResp, toolCallResp, toolCallResp}}
	a, _ := newTestAgent(t, transport, cfg)

	events := drain(a.ProcessMessage(context.Background(), "keep going forever"))

	last := events[len(events)-1]
	require.Equal(t, EventError, last.Kind)
	var trip *agentcore.CircuitBreakerTrip
	require.True(t, errors.As(last.Err, &trip))
	assert.Equal(t, agentcore.CircuitBreakerEventCap, trip.Kind)
}

func TestIsRetryableErrorClassification(t *testing.T) {
	cases := []struct {
		name      string
		message   string
		retryable bool
	}{
		{"rate limit", "429 RESOURCE_EXHAUSTED: quota exceeded", true},
		{"server error", "500 INTERNAL: ServerError occurred", true},
		{"network blip", "connection reset by peer", true},
		{"deadline", "context deadline exceeded (DEADLINE_EXCEEDED)", true},
		{"permission denied", "PERMISSION_DENIED: invalid api key", false},
		{"not found", "NOT_FOUND: model not found", false},
		{"unrecognized", "some bizarre failure nobody classified", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.retryable, isRetryableError(tc.message, ""))
		})
	}
}

func TestApplyShrinkageIsIdempotentAtEachLevel(t *testing.T) {
	counter := tokencount.New("test-model")
	for level := 1; level <= 3; level++ {
		cm := ctxassembly.New(counter, ctxassembly.DefaultLimits(), ctxassembly.DefaultSummaryLimits())
		for i := 0; i < 5; i++ {
			cm.AddCodeSnippet("a.go", "package a", 1, 1, i)
			cm.AddToolResult("read_file", map[string]interface{}{"ok": true}, "", i, false)
		}

		applyShrinkage(level, cm, 5)
		after1 := cm.State()
		snippets1 := cm.Snippets()
		results1 := cm.ToolResults()

		applyShrinkage(level, cm, 5)
		after2 := cm.State()
		snippets2 := cm.Snippets()
		results2 := cm.ToolResults()

		assert.Equal(t, after1, after2, "level %d must be idempotent on reapplication", level)
		assert.Equal(t, snippets1, snippets2, "level %d snippets must be stable on reapplication", level)
		assert.Equal(t, results1, results2, "level %d tool results must be stable on reapplication", level)
	}
}

func TestProcessMessageRateLimitedConversationRetriesThenExhausts(t *testing.T) {
	transport := &fakeTransport{}
	cfg := DefaultConfig()
	a, _ := newTestAgent(t, transport, cfg)

	limiter, err := ratelimit.NewRateLimiter(&ratelimit.Config{
		Enabled: true,
		Limits:  []ratelimit.LimitRule{{Type: ratelimit.LimitTypeCount, Window: ratelimit.WindowMinute, Limit: 1}},
	}, ratelimit.NewMemoryStore())
	require.NoError(t, err)
	a.SetRateLimiter(limiter, ratelimit.ScopeSession, "conversation-1")

	// Push usage past the one allowed request for this window up front so
	// every attempt of the ProcessMessage call is rejected by the limiter.
	require.NoError(t, limiter.Record(context.Background(), ratelimit.ScopeSession, "conversation-1", 0, 2))

	events := drain(a.ProcessMessage(context.Background(), "what does this repo do?"))

	var kinds []EventKind
	for _, e := range events {
		kinds = append(kinds, e.Kind)
	}
	assert.Contains(t, kinds, EventRetrying)
	last := events[len(events)-1]
	assert.Equal(t, EventError, last.Kind, "limit never clears within MaxRetries so the call ultimately fails")
	assert.True(t, ratelimit.IsRateLimitError(last.Err))
}

func TestSleepBackoffRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	sleepBackoff(ctx, 10) // would otherwise sleep ~30s
	assert.Less(t, time.Since(start), time.Second)
}
