// Package turn implements the per-conversation Turn State Machine
// described in spec §4.2: an ordered history of completed turns plus at
// most one in-progress turn, with phase transitions enforced by a
// single-writer StateManager.
package turn

import (
	"time"

	"github.com/google/uuid"

	"github.com/hectorcore/agentcore/pkg/agentcore"
)

// Phase is one stage of a turn's lifecycle. Transitions are linear
// through the declaration order below; a turn may jump forward (e.g.
// straight from ProcessingUserInput to Completed on a trivial answer)
// but never backward.
type Phase int

const (
	Initializing Phase = iota
	ProcessingUserInput
	CallingLLM
	ProcessingLLMResponse
	ExecutingTools
	Finalizing
	Completed
)

func (p Phase) String() string {
	switch p {
	case Initializing:
		return "initializing"
	case ProcessingUserInput:
		return "processing_user_input"
	case CallingLLM:
		return "calling_llm"
	case ProcessingLLMResponse:
		return "processing_llm_response"
	case ExecutingTools:
		return "executing_tools"
	case Finalizing:
		return "finalizing"
	case Completed:
		return "completed"
	default:
		return "unknown"
	}
}

// ToolCallEntry records one tool invocation made during a turn.
type ToolCallEntry struct {
	Name      string
	Args      map[string]interface{}
	Timestamp time.Time
}

// ToolResultEntry records one tool result produced during a turn. The
// Result is opaque; ContextManager derives its own bounded,
// summarized ToolResult records from these (§4.4).
type ToolResultEntry struct {
	Name      string
	Result    interface{}
	Timestamp time.Time
}

// Turn is a single user<->agent exchange. It is mutable only while it
// is the StateManager's current turn; once appended to history it must
// never be mutated again (callers only ever see copies via Snapshot /
// History).
type Turn struct {
	ID             string
	Number         int
	Phase          Phase
	UserMessage    *agentcore.Message
	AgentMessage   *agentcore.Message
	ToolCalls      []ToolCallEntry
	ToolResults    []ToolResultEntry
	SystemMessages []string
	Errors         []string
	CreatedAt      time.Time
	CompletedAt    *time.Time
}

func newTurn(number int, userMessage *agentcore.Message) *Turn {
	return &Turn{
		ID:          uuid.NewString(),
		Number:      number,
		Phase:       ProcessingUserInput,
		UserMessage: userMessage,
		CreatedAt:   time.Now(),
	}
}

// clone makes a deep-enough copy so callers can't mutate stored history
// or the live current turn through a returned value.
func (t *Turn) clone() *Turn {
	if t == nil {
		return nil
	}
	cp := *t
	cp.ToolCalls = append([]ToolCallEntry(nil), t.ToolCalls...)
	cp.ToolResults = append([]ToolResultEntry(nil), t.ToolResults...)
	cp.SystemMessages = append([]string(nil), t.SystemMessages...)
	cp.Errors = append([]string(nil), t.Errors...)
	if t.CompletedAt != nil {
		completed := *t.CompletedAt
		cp.CompletedAt = &completed
	}
	return &cp
}

// validate checks the invariants from spec §3 that must hold for any
// turn being moved into history.
func (t *Turn) validate() error {
	if t.Phase == Completed {
		if t.CompletedAt == nil {
			return agentcore.NewStateValidationError("Turn", "phase is completed but completed_at is unset")
		}
		if !t.CompletedAt.After(t.CreatedAt) && !t.CompletedAt.Equal(t.CreatedAt) {
			return agentcore.NewStateValidationError("Turn", "completed_at must not precede created_at")
		}
	}
	return nil
}
