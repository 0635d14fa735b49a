// Package runloop implements the Run Loop (spec §4.7): the outer
// retry-and-circuit-breaker driver that turns one user message into a
// completed Turn, calling the LLM transport, dispatching tool calls
// through the ToolOrchestrator, and consulting the PlanningManager
// before and after every model call.
package runloop

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"math/rand"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hectorcore/agentcore/pkg/agentcore"
	"github.com/hectorcore/agentcore/pkg/ctxassembly"
	"github.com/hectorcore/agentcore/pkg/llmclient"
	"github.com/hectorcore/agentcore/pkg/logger"
	"github.com/hectorcore/agentcore/pkg/observability"
	"github.com/hectorcore/agentcore/pkg/planning"
	"github.com/hectorcore/agentcore/pkg/ratelimit"
	"github.com/hectorcore/agentcore/pkg/tokencount"
	"github.com/hectorcore/agentcore/pkg/toolorch"
	"github.com/hectorcore/agentcore/pkg/turn"
)

// Agent wires the four Agent Core subsystems into the single driver a
// caller talks to: one ProcessMessage call per user turn.
type Agent struct {
	Model          string
	state          *turn.StateManager
	context        *ctxassembly.ContextManager
	planning       *planning.PlanningManager
	tools          *toolorch.Orchestrator
	transport      llmclient.Transport
	counter        *tokencount.TokenCounter
	toolDefs       []agentcore.ToolDefinition
	limiter        ratelimit.RateLimiter
	limiterScope   ratelimit.Scope
	conversationID string
	obs            *observability.Observability

	cfg Config
}

// SetRateLimiter installs the limiter gating outbound transport calls for
// this conversation and the identifier it is keyed by. A nil limiter (the
// default) disables gating entirely.
func (a *Agent) SetRateLimiter(limiter ratelimit.RateLimiter, scope ratelimit.Scope, conversationID string) {
	a.limiter = limiter
	a.limiterScope = scope
	a.conversationID = conversationID
}

// SetObservability installs the tracer and metrics every attempt spans
// and every turn/retry/circuit-breaker event is recorded against. Not
// calling this leaves a no-op Observability in place.
func (a *Agent) SetObservability(obs *observability.Observability) {
	a.obs = obs
}

// SetToolDefinitions installs the tool schemas advertised to the LLM
// transport on every non-plan-generation request. Call this once after
// registering tools with the Orchestrator's ToolSource.
func (a *Agent) SetToolDefinitions(defs []agentcore.ToolDefinition) {
	a.toolDefs = defs
}

// New constructs an Agent from its collaborators. cfg is copied; pass
// DefaultConfig() for the original devops agent's retry/circuit-breaker
// defaults.
func New(
	model string,
	state *turn.StateManager,
	context *ctxassembly.ContextManager,
	planningMgr *planning.PlanningManager,
	tools *toolorch.Orchestrator,
	transport llmclient.Transport,
	counter *tokencount.TokenCounter,
	cfg Config,
) *Agent {
	return &Agent{
		Model:     model,
		state:     state,
		context:   context,
		planning:  planningMgr,
		tools:     tools,
		transport: transport,
		counter:   counter,
		cfg:       cfg,
		obs:       observability.NewNoop(),
	}
}

// ProcessMessage runs one user message through the full turn lifecycle
// and returns an iterator of Events, in the teacher's range-over-func
// streaming style. The sequence always ends with either one final
// EventText (success) or one EventError (failure); EventToolCall /
// EventToolResult / EventRetrying may appear any number of times before
// it.
func (a *Agent) ProcessMessage(ctx context.Context, message string) iter.Seq2[Event, error] {
	return func(yield func(Event, error) bool) {
		userMsg := agentcore.NewUserMessage(message)
		if _, err := a.state.StartTurn(&userMsg); err != nil {
			yield(errorEvent(err), err)
			return
		}

		decision := a.planning.HandleUserMessage(message, "")
		if decision.Kind == planning.SynthesizeResponse {
			a.finishWithText(decision.Text, nil)
			a.obs.Metrics().recordTurn("success")
			yield(textEvent(decision.Text), nil)
			return
		}

		effectiveMessage := message
		clearTools := false
		if decision.Kind == planning.RewriteRequest {
			effectiveMessage = decision.RewrittenMessage
			clearTools = decision.ClearTools
			if decision.ApprovedPlan != "" {
				_ = a.state.UpdateCurrentTurn(map[string]interface{}{
					"system_message": "plan approved: " + decision.ApprovedPlan,
				})
			}
		}

		consecutiveErrors := 0
		for retryCount := 0; ; retryCount++ {
			result, attemptErr := a.runAttempt(ctx, effectiveMessage, clearTools, yield)
			if attemptErr == nil {
				a.finishWithText(result, nil)
				a.obs.Metrics().recordTurn("success")
				yield(textEvent(result), nil)
				return
			}

			if cbErr, ok := attemptErr.(*agentcore.CircuitBreakerTrip); ok {
				a.finishWithText("", cbErr)
				a.obs.Metrics().recordCircuitBreakerTrip(string(cbErr.Kind))
				a.obs.Metrics().recordTurn("error")
				yield(errorEvent(cbErr), cbErr)
				return
			}

			consecutiveErrors++
			if consecutiveErrors >= a.cfg.MaxConsecutiveErrors {
				a.finishWithText("", attemptErr)
				a.obs.Metrics().recordTurn("error")
				yield(errorEvent(attemptErr), attemptErr)
				return
			}

			if retryCount >= a.cfg.MaxRetries || !isRetryableError(attemptErr.Error(), fmt.Sprintf("%T", attemptErr)) {
				a.finishWithText("", attemptErr)
				a.obs.Metrics().recordTurn("error")
				yield(errorEvent(attemptErr), attemptErr)
				return
			}

			applyShrinkage(retryCount+1, a.context, a.currentTurnNumber())
			a.obs.Metrics().recordRetry(classifyRetryReason(attemptErr))
			if !yield(Event{Kind: EventRetrying, RetryCount: retryCount + 1, Err: attemptErr}, nil) {
				return
			}
			sleepBackoff(ctx, retryCount)
		}
	}
}

// runAttempt drives the LLM-call / tool-dispatch cycle for one attempt,
// under the event-count and wall-clock circuit breakers (spec §4.7). It
// returns the final response text on success. The whole attempt runs
// inside one OpenTelemetry span per spec §4.7's ADDED detail.
func (a *Agent) runAttempt(ctx context.Context, effectiveMessage string, clearTools bool, yield func(Event, error) bool) (string, error) {
	ctx, span := a.obs.Tracer().Start(ctx, "runloop.attempt",
		trace.WithAttributes(attribute.String("agentcore.model", a.Model)))
	defer span.End()

	result, err := a.runAttemptBody(ctx, effectiveMessage, clearTools, yield)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	return result, err
}

func (a *Agent) runAttemptBody(ctx context.Context, effectiveMessage string, clearTools bool, yield func(Event, error) bool) (string, error) {
	deadline := time.Now().Add(a.cfg.AttemptTimeout)
	events := 0

	currentMessage := effectiveMessage
	for {
		if events >= a.cfg.MaxEventsPerAttempt {
			return "", &agentcore.CircuitBreakerTrip{
				Kind:    agentcore.CircuitBreakerEventCap,
				Limit:   a.cfg.MaxEventsPerAttempt,
				Message: fmt.Sprintf("attempt exceeded %d events", a.cfg.MaxEventsPerAttempt),
			}
		}
		if time.Now().After(deadline) {
			return "", &agentcore.CircuitBreakerTrip{
				Kind:    agentcore.CircuitBreakerWallClock,
				Limit:   a.cfg.AttemptTimeout,
				Message: fmt.Sprintf("attempt exceeded %s", a.cfg.AttemptTimeout),
			}
		}
		events++

		if a.limiter != nil {
			tokens := int64(a.counter.Count(currentMessage))
			result, err := a.limiter.CheckAndRecord(ctx, a.limiterScope, a.conversationID, tokens, 1)
			if err != nil {
				return "", err
			}
			if !result.Allowed {
				return "", ratelimit.NewRateLimitError(result)
			}
		}

		req, err := a.buildRequest(ctx, currentMessage, clearTools)
		if err != nil {
			return "", err
		}

		_ = a.state.UpdateCurrentTurn(map[string]interface{}{"phase": turn.CallingLLM})
		resp, err := a.transport.Generate(ctx, req)
		if err != nil {
			return "", err
		}
		_ = a.state.UpdateCurrentTurn(map[string]interface{}{"phase": turn.ProcessingLLMResponse})

		if a.planning.IsPlanGenerationTurn() {
			planDecision := a.planning.HandleModelResponse(resp.Text())
			return planDecision.Text, nil
		}

		if !resp.HasFunctionCalls() {
			return resp.Text(), nil
		}

		_ = a.state.UpdateCurrentTurn(map[string]interface{}{"phase": turn.ExecutingTools})
		execs, err := a.dispatchToolCalls(ctx, resp.FunctionCalls(), yield)
		if err != nil {
			return "", err
		}
		if events+len(execs) > a.cfg.MaxEventsPerAttempt {
			return "", &agentcore.CircuitBreakerTrip{
				Kind:    agentcore.CircuitBreakerEventCap,
				Limit:   a.cfg.MaxEventsPerAttempt,
				Message: fmt.Sprintf("attempt exceeded %d events", a.cfg.MaxEventsPerAttempt),
			}
		}
		events += len(execs)

		// The next Generate call re-assembles context from everything
		// just recorded (tool results, updated snippets); the textual
		// prompt collapses to a synthetic continuation cue.
		currentMessage = "Continue based on the tool results above."
	}
}

// dispatchToolCalls executes every function call from one LLM response
// in parallel (they carry no inter-call dependency within a single
// response, spec §5) and records each into both StateManager's opaque
// turn log and ContextManager's summarized store.
func (a *Agent) dispatchToolCalls(ctx context.Context, calls []agentcore.Part, yield func(Event, error) bool) ([]*toolorch.ToolExecution, error) {
	turnNumber := a.currentTurnNumber()

	invocations := make([]toolorch.Invocation, 0, len(calls))
	for _, c := range calls {
		name, args, id := c.FunctionCall()
		invocations = append(invocations, toolorch.Invocation{ID: id, Name: name, Args: args})
		_ = a.state.AddToolCall(name, args)
		if !yield(Event{Kind: EventToolCall, ToolName: name, ToolArgs: args}, nil) {
			return nil, nil
		}
	}

	execs := a.tools.ExecuteParallel(ctx, turnNumber, invocations)
	for _, exec := range execs {
		_ = a.state.AddToolResult(exec.Name, exec.Result)
		if !yield(Event{Kind: EventToolResult, ToolName: exec.Name, ToolResult: exec}, nil) {
			return execs, nil
		}
	}
	return execs, nil
}

// buildRequest assembles the next context block and turns it into an
// LLM transport request.
func (a *Agent) buildRequest(ctx context.Context, currentMessage string, clearTools bool) (llmclient.Request, error) {
	basePromptTokens := a.counter.Count(currentMessage)
	assembled, err := a.context.Assemble(ctx, ctxassembly.AssembleInput{
		BasePromptTokens: basePromptTokens,
		Snapshot:         a.state.SnapshotForContext(),
		CurrentContext:   currentMessage,
	})
	if err != nil {
		return llmclient.Request{}, err
	}

	contextJSON, err := json.Marshal(assembled)
	if err != nil {
		return llmclient.Request{}, err
	}
	systemMsg := agentcore.NewSystemMessage(string(contextJSON))
	userMsg := agentcore.NewUserMessage(currentMessage)

	req := llmclient.Request{
		Model:    a.Model,
		Contents: []agentcore.Message{systemMsg, userMsg},
	}
	if !clearTools {
		req.Tools = a.toolDefs
	}
	return req, nil
}

func (a *Agent) currentTurnNumber() int {
	if c := a.state.Current(); c != nil {
		return c.Number
	}
	return 0
}

// finishWithText completes the current turn, recording either the
// agent's final message or a terminal error.
func (a *Agent) finishWithText(text string, failErr error) {
	fields := map[string]interface{}{"phase": turn.Finalizing}
	if text != "" {
		msg := agentcore.NewSystemMessage(text)
		msg.Role = agentcore.RoleAssistant
		fields["agent_message"] = &msg
	}
	if failErr != nil {
		fields["error"] = failErr.Error()
	}
	_ = a.state.UpdateCurrentTurn(fields)

	if err := a.state.CompleteCurrentTurn(); err != nil {
		if agentcore.IsStateValidationError(err) {
			logger.GetLogger().Error("turn failed validation on completion, resetting state", "error", err)
			a.state.Reset()
		}
	}
}

func sleepBackoff(ctx context.Context, retryCount int) {
	backoff := float64(int(1) << retryCount)
	if backoff > 30 {
		backoff = 30
	}
	jitter := 0.1 + rand.Float64()*0.4
	d := time.Duration((backoff + jitter) * float64(time.Second))

	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
