package turn

import (
	"log/slog"
	"sync"
	"time"

	"github.com/hectorcore/agentcore/pkg/agentcore"
)

// StateManager owns a single conversation's Turn history and
// in-progress turn. It is the only component permitted to mutate a
// Turn (§3 Ownership). Every mutating method except Reset takes the
// single-writer lock with TryLock: contention is a hard error per spec
// §4.2/§5, never a wait, since the core is single-threaded per
// conversation by contract. Reset takes the lock with a blocking Lock.
type StateManager struct {
	mu      sync.Mutex
	history []*Turn
	current *Turn
}

// NewStateManager returns a StateManager for a fresh, empty conversation.
func NewStateManager() *StateManager {
	return &StateManager{}
}

func (sm *StateManager) acquire() error {
	if !sm.mu.TryLock() {
		return agentcore.NewStateValidationError("StateManager", "writer lock contention: a mutating call is already in flight")
	}
	return nil
}

// StartTurn begins a new turn. If a current turn exists and is not
// Completed, it is force-completed first (with a logged warning) so
// that no partial turn is ever silently dropped.
func (sm *StateManager) StartTurn(userMessage *agentcore.Message) (*Turn, error) {
	if err := sm.acquire(); err != nil {
		return nil, err
	}
	defer sm.mu.Unlock()

	if sm.current != nil && sm.current.Phase != Completed {
		slog.Warn("force-completing in-progress turn before starting a new one",
			"turn_number", sm.current.Number, "phase", sm.current.Phase.String())
		sm.forceCompleteLocked("superseded by a new turn before completion")
	}

	t := newTurn(len(sm.history)+1, userMessage)
	sm.current = t
	return t.clone(), nil
}

func (sm *StateManager) forceCompleteLocked(reason string) {
	t := sm.current
	t.Errors = append(t.Errors, reason)
	now := time.Now()
	t.CompletedAt = &now
	t.Phase = Completed
	sm.history = append(sm.history, t)
	sm.current = nil
}

// UpdateCurrentTurn mutates the current turn in place. Recognized keys:
// "phase" (Phase), "agent_message" (*agentcore.Message),
// "system_message" (string, appended), "error" (string, appended).
// Unrecognized keys are warned and ignored, matching spec §4.2.
func (sm *StateManager) UpdateCurrentTurn(fields map[string]interface{}) error {
	if err := sm.acquire(); err != nil {
		return err
	}
	defer sm.mu.Unlock()

	if sm.current == nil {
		return agentcore.NewStateValidationError("StateManager", "no current turn to update")
	}

	for key, value := range fields {
		switch key {
		case "phase":
			ph, ok := value.(Phase)
			if !ok {
				slog.Warn("ignoring update_current_turn field with wrong type", "field", key)
				continue
			}
			if ph < sm.current.Phase {
				return agentcore.NewStateValidationError("StateManager", "turn phase cannot move backward")
			}
			sm.current.Phase = ph
		case "agent_message":
			msg, ok := value.(*agentcore.Message)
			if !ok {
				slog.Warn("ignoring update_current_turn field with wrong type", "field", key)
				continue
			}
			sm.current.AgentMessage = msg
		case "system_message":
			text, ok := value.(string)
			if !ok {
				slog.Warn("ignoring update_current_turn field with wrong type", "field", key)
				continue
			}
			sm.current.SystemMessages = append(sm.current.SystemMessages, text)
		case "error":
			text, ok := value.(string)
			if !ok {
				slog.Warn("ignoring update_current_turn field with wrong type", "field", key)
				continue
			}
			sm.current.Errors = append(sm.current.Errors, text)
		default:
			slog.Warn("ignoring unknown update_current_turn field", "field", key)
		}
	}
	return nil
}

// AddToolCall appends a tool-call record to the current turn.
func (sm *StateManager) AddToolCall(name string, args map[string]interface{}) error {
	if err := sm.acquire(); err != nil {
		return err
	}
	defer sm.mu.Unlock()

	if sm.current == nil {
		return agentcore.NewStateValidationError("StateManager", "no current turn to record a tool call on")
	}
	sm.current.ToolCalls = append(sm.current.ToolCalls, ToolCallEntry{
		Name: name, Args: args, Timestamp: time.Now(),
	})
	return nil
}

// AddToolResult appends a tool-result record to the current turn.
func (sm *StateManager) AddToolResult(name string, result interface{}) error {
	if err := sm.acquire(); err != nil {
		return err
	}
	defer sm.mu.Unlock()

	if sm.current == nil {
		return agentcore.NewStateValidationError("StateManager", "no current turn to record a tool result on")
	}
	sm.current.ToolResults = append(sm.current.ToolResults, ToolResultEntry{
		Name: name, Result: result, Timestamp: time.Now(),
	})
	return nil
}

// CompleteCurrentTurn validates the current turn's invariants, stamps
// CompletedAt, moves it into history, and clears the current turn.
func (sm *StateManager) CompleteCurrentTurn() error {
	if err := sm.acquire(); err != nil {
		return err
	}
	defer sm.mu.Unlock()

	if sm.current == nil {
		return agentcore.NewStateValidationError("StateManager", "no current turn to complete")
	}

	now := time.Now()
	sm.current.CompletedAt = &now
	sm.current.Phase = Completed

	if err := sm.current.validate(); err != nil {
		return err
	}
	if sm.current.Number != len(sm.history)+1 {
		return agentcore.NewStateValidationError("StateManager", "turn number does not equal history length + 1")
	}

	sm.history = append(sm.history, sm.current)
	sm.current = nil
	return nil
}

// Reset discards all history and the current turn. The run loop calls
// this after catching a StateValidationError, per spec §4.2's failure
// semantics ("resets the StateManager to a fresh instance").
func (sm *StateManager) Reset() {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.history = nil
	sm.current = nil
}

// History returns defensive copies of every completed turn, oldest first.
func (sm *StateManager) History() []*Turn {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	out := make([]*Turn, len(sm.history))
	for i, t := range sm.history {
		out[i] = t.clone()
	}
	return out
}

// Current returns a defensive copy of the in-progress turn, or nil.
func (sm *StateManager) Current() *Turn {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.current.clone()
}
