package turn

import (
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/hectorcore/agentcore/pkg/agentcore"
)

// Legacy key prefixes for the §6 "external legacy-state representation"
// used when this core is embedded inside a host that persists state
// itself. Mirrors the teacher's pkg/session scope prefixes
// (app:/user:/temp:) one-for-one.
const (
	KeyConversationHistory = "user:conversation_history"
	KeyCurrentTurn         = "temp:current_turn"
	KeyIsNewConversation   = "temp:is_new_conversation"
)

// legacyTurn is the flat, mapstructure-decodable shape of one turn in
// the external representation.
type legacyTurn struct {
	TurnNumber     int                      `mapstructure:"turn_number"`
	Phase          string                   `mapstructure:"phase"`
	UserMessage    string                   `mapstructure:"user_message"`
	AgentMessage   string                   `mapstructure:"agent_message"`
	ToolCalls      []map[string]interface{} `mapstructure:"tool_calls"`
	ToolResults    []map[string]interface{} `mapstructure:"tool_results"`
	SystemMessages []string                 `mapstructure:"system_messages"`
	Errors         []string                 `mapstructure:"errors"`
	CreatedAt      time.Time                `mapstructure:"created_at"`
	CompletedAt    *time.Time               `mapstructure:"completed_at"`
}

func phaseFromString(s string) Phase {
	switch s {
	case "initializing":
		return Initializing
	case "processing_user_input":
		return ProcessingUserInput
	case "calling_llm":
		return CallingLLM
	case "processing_llm_response":
		return ProcessingLLMResponse
	case "executing_tools":
		return ExecutingTools
	case "finalizing":
		return Finalizing
	default:
		return Completed
	}
}

func turnToLegacy(t *Turn) map[string]interface{} {
	if t == nil {
		return nil
	}
	var userMsg, agentMsg string
	if t.UserMessage != nil {
		userMsg = t.UserMessage.Text()
	}
	if t.AgentMessage != nil {
		agentMsg = t.AgentMessage.Text()
	}
	calls := make([]map[string]interface{}, 0, len(t.ToolCalls))
	for _, c := range t.ToolCalls {
		calls = append(calls, map[string]interface{}{
			"name": c.Name, "args": c.Args, "timestamp": c.Timestamp,
		})
	}
	results := make([]map[string]interface{}, 0, len(t.ToolResults))
	for _, r := range t.ToolResults {
		results = append(results, map[string]interface{}{
			"name": r.Name, "result": r.Result, "timestamp": r.Timestamp,
		})
	}
	return map[string]interface{}{
		"turn_number":     t.Number,
		"phase":           t.Phase.String(),
		"user_message":    userMsg,
		"agent_message":   agentMsg,
		"tool_calls":      calls,
		"tool_results":    results,
		"system_messages": append([]string(nil), t.SystemMessages...),
		"errors":          append([]string(nil), t.Errors...),
		"created_at":      t.CreatedAt,
		"completed_at":    t.CompletedAt,
	}
}

func legacyToTurn(lt legacyTurn) *Turn {
	t := &Turn{
		Number:         lt.TurnNumber,
		Phase:          phaseFromString(lt.Phase),
		SystemMessages: lt.SystemMessages,
		Errors:         lt.Errors,
		CreatedAt:      lt.CreatedAt,
		CompletedAt:    lt.CompletedAt,
	}
	if lt.UserMessage != "" {
		msg := agentcore.NewUserMessage(lt.UserMessage)
		t.UserMessage = &msg
	}
	if lt.AgentMessage != "" {
		msg := agentcore.Message{Role: agentcore.RoleAssistant, Parts: []agentcore.Part{agentcore.TextPart(lt.AgentMessage)}}
		t.AgentMessage = &msg
	}
	for _, c := range lt.ToolCalls {
		name, _ := c["name"].(string)
		args, _ := c["args"].(map[string]interface{})
		ts, _ := c["timestamp"].(time.Time)
		t.ToolCalls = append(t.ToolCalls, ToolCallEntry{Name: name, Args: args, Timestamp: ts})
	}
	for _, r := range lt.ToolResults {
		name, _ := r["name"].(string)
		ts, _ := r["timestamp"].(time.Time)
		t.ToolResults = append(t.ToolResults, ToolResultEntry{Name: name, Result: r["result"], Timestamp: ts})
	}
	return t
}

// SnapshotToLegacyState emits the §6 external flat-map representation
// equivalent to the current snapshot.
func (sm *StateManager) SnapshotToLegacyState() map[string]interface{} {
	snap := sm.SnapshotForContext()

	history := make([]map[string]interface{}, 0, len(snap.Turns))
	for _, t := range snap.Turns {
		history = append(history, turnToLegacy(t))
	}

	out := map[string]interface{}{
		KeyConversationHistory: history,
		KeyIsNewConversation:   len(snap.Turns) == 0 && snap.Current == nil,
	}
	if snap.Current != nil {
		out[KeyCurrentTurn] = turnToLegacy(snap.Current)
	} else {
		out[KeyCurrentTurn] = nil
	}
	return out
}

// SyncFromLegacyState rebuilds StateManager's history and current turn
// from an external key-value representation (§6), replacing whatever
// state was present before the call.
func (sm *StateManager) SyncFromLegacyState(external map[string]interface{}) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	var rawHistory []map[string]interface{}
	if raw, ok := external[KeyConversationHistory]; ok && raw != nil {
		if err := mapstructure.Decode(raw, &rawHistory); err != nil {
			return fmt.Errorf("decoding %s: %w", KeyConversationHistory, err)
		}
	}

	history := make([]*Turn, 0, len(rawHistory))
	for _, raw := range rawHistory {
		var lt legacyTurn
		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			Result:     &lt,
			TagName:    "mapstructure",
			ZeroFields: true,
		})
		if err != nil {
			return err
		}
		if err := dec.Decode(raw); err != nil {
			return fmt.Errorf("decoding turn: %w", err)
		}
		history = append(history, legacyToTurn(lt))
	}

	sm.history = history
	sm.current = nil

	if raw, ok := external[KeyCurrentTurn]; ok && raw != nil {
		rawMap, ok := raw.(map[string]interface{})
		if ok && len(rawMap) > 0 {
			var lt legacyTurn
			dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{Result: &lt, TagName: "mapstructure"})
			if err != nil {
				return err
			}
			if err := dec.Decode(rawMap); err != nil {
				return fmt.Errorf("decoding current turn: %w", err)
			}
			sm.current = legacyToTurn(lt)
		}
	}

	return nil
}
