package ctxassembly

import (
	"context"
	"log/slog"

	"github.com/hectorcore/agentcore/pkg/agentcore"
	"github.com/hectorcore/agentcore/pkg/prioritize"
	"github.com/hectorcore/agentcore/pkg/turn"
)

// wrapperOverhead accounts for the JSON structural characters (braces,
// quotes, separators) the serialized context block adds beyond its raw
// text content.
const wrapperOverhead = 20

// safetyMargin is the fixed reserve §4.4 subtracts from the available
// budget (≈50 tokens).
const safetyMargin = 50

// jsonElementOverhead is the constant-per-element structural-token
// estimate §4.4 calls for when sizing list-valued output keys.
const jsonElementOverhead = 4

// ProactiveGatherer produces repository-wide context (project files, git
// log, docs) to fill the proactive_context output key. It is an external
// collaborator (§6); ContextManager only decides how much of its output
// fits.
type ProactiveGatherer interface {
	Gather(ctx context.Context) (map[string]interface{}, error)
}

// AssembleInput is everything ContextManager needs to produce one
// context block.
type AssembleInput struct {
	BasePromptTokens int
	Snapshot         turn.Snapshot
	CurrentContext   string // typically the most recent user message
}

// Assemble produces the JSON-serializable context mapping described in
// §4.4, packing output keys in priority order under the computed token
// budget.
func (cm *ContextManager) Assemble(ctx context.Context, in AssembleInput) (map[string]interface{}, error) {
	cm.mu.Lock()
	state := cm.state
	keyDecisions := append([]string(nil), cm.state.KeyDecisions...)
	modifiedFiles := append([]string(nil), cm.state.LastModifiedFiles...)
	snippets := append([]CodeSnippet(nil), cm.snippets...)
	toolResults := append([]ToolResult(nil), cm.toolResults...)
	cm.mu.Unlock()

	available := cm.limits.MaxLLMTokenLimit - in.BasePromptTokens - wrapperOverhead - safetyMargin

	minimalRequired := cm.counter.Count(state.CoreGoal) + cm.counter.Count(in.CurrentContext)
	if available < 0 || (available < minimalRequired && available < jsonElementOverhead) {
		return nil, &agentcore.BudgetExceeded{Available: available, Required: minimalRequired}
	}

	out := map[string]interface{}{}
	used := 0

	if available < minimalRequired+200 {
		slog.Warn("context assembly falling back to emergency minimal context",
			"available", available, "minimal_required", minimalRequired)
		return cm.assembleEmergency(in, state, available), nil
	}

	// 1. core_goal
	if state.CoreGoal != "" {
		cm.packScalar(out, &used, available, "core_goal", state.CoreGoal)
	}
	// 2. current_phase
	if state.CurrentPhase != "" {
		cm.packScalar(out, &used, available, "current_phase", state.CurrentPhase)
	}
	// 3. system_notes
	notes := in.Snapshot.SystemNotes()
	if len(notes) > 0 {
		cm.packStringList(out, &used, available, "system_notes", notes, len(notes))
	}
	// 4. recent_conversation
	cm.packRecentConversation(out, &used, available, in.Snapshot)
	// 5. relevant_code
	cm.packRelevantCode(out, &used, available, snippets, in.CurrentContext, currentTurnNumber(in.Snapshot))
	// 6. recent_tool_results
	cm.packToolResults(out, &used, available, toolResults, in.CurrentContext, currentTurnNumber(in.Snapshot))
	// 7. key_decisions (tail of up to 15)
	if len(keyDecisions) > 0 {
		cm.packStringList(out, &used, available, "key_decisions", keyDecisions, maxScalarListLen)
	}
	// 8. recent_modified_files
	if len(modifiedFiles) > 0 {
		cm.packStringList(out, &used, available, "recent_modified_files", modifiedFiles, len(modifiedFiles))
	}
	// 9. proactive_context
	if cm.proactive != nil {
		cm.packProactiveContext(ctx, out, &used, available)
	}

	return out, nil
}

func currentTurnNumber(snap turn.Snapshot) int {
	if snap.Current != nil {
		return snap.Current.Number
	}
	if len(snap.Turns) > 0 {
		return snap.Turns[len(snap.Turns)-1].Number
	}
	return 1
}

func (cm *ContextManager) assembleEmergency(in AssembleInput, state ContextState, available int) map[string]interface{} {
	out := map[string]interface{}{}
	used := 0
	if state.CoreGoal != "" {
		cm.packScalar(out, &used, available, "core_goal", state.CoreGoal)
	}
	if in.CurrentContext != "" {
		cm.packScalar(out, &used, available, "current_user_message", in.CurrentContext)
	}
	return out
}

func (cm *ContextManager) packScalar(out map[string]interface{}, used *int, available int, key, value string) {
	tok := cm.counter.Count(value)
	if *used+tok > available {
		return
	}
	out[key] = value
	*used += tok
}

// packStringList includes tail elements (the list is assumed already in
// priority order, most-important-last for caps like key_decisions) while
// they fit, capped at maxCount.
func (cm *ContextManager) packStringList(out map[string]interface{}, used *int, available int, key string, list []string, maxCount int) {
	if len(list) > maxCount {
		list = list[len(list)-maxCount:]
	}
	included := []string{}
	for _, v := range list {
		tok := cm.counter.Count(v) + jsonElementOverhead
		if *used+tok > available {
			break
		}
		included = append(included, v)
		*used += tok
	}
	if len(included) > 0 {
		out[key] = included
	}
}

func (cm *ContextManager) packRecentConversation(out map[string]interface{}, used *int, available int, snap turn.Snapshot) {
	all := snap.AllTurns()
	capN := cm.limits.TargetRecentTurns
	// Newest first for packing; reversed to chronological once selected.
	var included []RecentConversationEntry
	for i := len(all) - 1; i >= 0 && len(included) < capN; i-- {
		t := all[i]
		entry := RecentConversationEntry{Turn: t.Number}
		if t.UserMessage != nil {
			entry.User = t.UserMessage.Text()
		}
		if t.AgentMessage != nil {
			entry.Agent = t.AgentMessage.Text()
		}
		for _, c := range t.ToolCalls {
			entry.ToolCalls = append(entry.ToolCalls, map[string]interface{}{"name": c.Name, "args": c.Args})
		}

		tok := cm.estimateConversationEntryTokens(entry) + jsonElementOverhead
		if *used+tok > available {
			break
		}
		included = append(included, entry)
		*used += tok
	}

	if len(included) == 0 {
		return
	}
	for i, j := 0, len(included)-1; i < j; i, j = i+1, j-1 {
		included[i], included[j] = included[j], included[i]
	}
	out["recent_conversation"] = included
}

func (cm *ContextManager) estimateConversationEntryTokens(e RecentConversationEntry) int {
	n := cm.counter.Count(e.User) + cm.counter.Count(e.Agent)
	for _, tc := range e.ToolCalls {
		if name, ok := tc["name"].(string); ok {
			n += cm.counter.Count(name)
		}
	}
	return n
}

func (cm *ContextManager) packRelevantCode(out map[string]interface{}, used *int, available int, snippets []CodeSnippet, currentContext string, currentTurn int) {
	if len(snippets) == 0 {
		return
	}
	items := make([]snippetItem, len(snippets))
	for i, s := range snippets {
		items[i] = snippetItem{s}
	}
	ranked := prioritize.Prioritize(items, currentContext, currentTurn)

	var included []map[string]interface{}
	for i, r := range ranked {
		if i >= cm.limits.TargetCodeSnippets {
			break
		}
		s := r.Item.CodeSnippet
		entry := map[string]interface{}{"file": s.FilePath, "start_line": s.StartLine, "end_line": s.EndLine, "code": s.Code}
		tok := cm.counter.Count(s.Code) + jsonElementOverhead
		if *used+tok > available {
			break
		}
		included = append(included, entry)
		*used += tok
	}
	if len(included) > 0 {
		out["relevant_code"] = included
	}
}

func (cm *ContextManager) packToolResults(out map[string]interface{}, used *int, available int, results []ToolResult, currentContext string, currentTurn int) {
	if len(results) == 0 {
		return
	}
	items := make([]toolResultItem, len(results))
	for i, r := range results {
		items[i] = toolResultItem{r}
	}
	ranked := prioritize.Prioritize(items, currentContext, currentTurn)

	var included []map[string]interface{}
	for i, r := range ranked {
		if i >= cm.limits.TargetToolResults {
			break
		}
		tr := r.Item.ToolResult
		entry := map[string]interface{}{"tool": tr.ToolName, "turn": tr.Turn, "summary": tr.Summary, "is_error": tr.IsError}
		tok := cm.counter.Count(tr.Summary) + jsonElementOverhead
		if *used+tok > available {
			break
		}
		included = append(included, entry)
		*used += tok
	}
	if len(included) > 0 {
		out["recent_tool_results"] = included
	}
}

func (cm *ContextManager) packProactiveContext(ctx context.Context, out map[string]interface{}, used *int, available int) {
	data, err := cm.proactive.Gather(ctx)
	if err != nil || len(data) == 0 {
		if err != nil {
			slog.Warn("proactive context gatherer failed", "error", err)
		}
		return
	}

	full := estimateMapTokens(cm.counter, data)
	if *used+full <= available {
		out["proactive_context"] = data
		*used += full
		return
	}

	remaining := available - *used
	if remaining < 1000 {
		return
	}

	partial := map[string]interface{}{}
	for _, key := range []string{"project_files", "git_history", "documentation"} {
		v, ok := data[key]
		if !ok {
			continue
		}
		tok := estimateValueTokens(cm.counter, v)
		if remaining-tok < 0 {
			break
		}
		partial[key] = v
		remaining -= tok
	}
	if len(partial) > 0 {
		out["proactive_context"] = partial
		*used = available - remaining
	}
}
