package runloop

import "github.com/hectorcore/agentcore/pkg/toolorch"

// EventKind tags what a yielded Event carries.
type EventKind int

const (
	// EventText carries a piece of the agent's final response text,
	// either LLM-generated or synthesized by the PlanningManager.
	EventText EventKind = iota

	// EventToolCall reports a tool dispatch about to run.
	EventToolCall

	// EventToolResult reports one tool's terminal outcome.
	EventToolResult

	// EventRetrying reports an attempt failing with a retryable error
	// and a new attempt about to start.
	EventRetrying

	// EventError reports the turn ending in failure: retries exhausted,
	// a non-retryable transport error, or a circuit breaker tripped.
	EventError
)

// Event is one step of a ProcessMessage call, yielded as the turn
// progresses so a caller can stream partial output rather than wait for
// the whole turn to finish.
type Event struct {
	Kind EventKind

	Text string

	ToolName   string
	ToolArgs   map[string]interface{}
	ToolResult *toolorch.ToolExecution

	RetryCount int
	Err        error
}

func textEvent(text string) Event { return Event{Kind: EventText, Text: text} }

func errorEvent(err error) Event { return Event{Kind: EventError, Err: err} }
