package ctxassembly

import (
	"sync"

	"github.com/hectorcore/agentcore/pkg/tokencount"
)

// Limits configures the storage caps and packing targets from spec §6's
// configuration table.
type Limits struct {
	MaxLLMTokenLimit      int
	TargetRecentTurns     int
	TargetCodeSnippets    int
	TargetToolResults     int
	MaxStoredCodeSnippets int
	MaxStoredToolResults  int
}

// DefaultLimits are sane defaults for an interactive coding-agent session.
func DefaultLimits() Limits {
	return Limits{
		MaxLLMTokenLimit:      128000,
		TargetRecentTurns:     5,
		TargetCodeSnippets:    10,
		TargetToolResults:     10,
		MaxStoredCodeSnippets: 100,
		MaxStoredToolResults:  100,
	}
}

// ContextManager stores conversation-derived working memory and, on
// demand, assembles a size-bounded context mapping for the next LLM call
// (§4.4). It owns its own snapshot of relevant data; it never mutates
// StateManager's Turn history.
type ContextManager struct {
	mu sync.Mutex

	limits  Limits
	summary SummaryLimits
	counter *tokencount.TokenCounter

	snippets    []CodeSnippet
	toolResults []ToolResult
	state       ContextState

	proactive ProactiveGatherer
}

// New constructs a ContextManager bound to a TokenCounter for size
// accounting.
func New(counter *tokencount.TokenCounter, limits Limits, summary SummaryLimits) *ContextManager {
	return &ContextManager{
		limits:  limits,
		summary: summary,
		counter: counter,
	}
}

// SetProactiveGatherer installs the collaborator consulted for the
// proactive_context output key. Nil disables it.
func (cm *ContextManager) SetProactiveGatherer(g ProactiveGatherer) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.proactive = g
}

// AddCodeSnippet stores or refreshes a code snippet. Snippets sharing
// (file, start, end) are deduplicated: the existing entry's last_accessed
// is refreshed and its relevance bumped rather than inserting a
// duplicate (§3 Data Model, §8 idempotence property).
func (cm *ContextManager) AddCodeSnippet(filePath, code string, start, end, turnNumber int) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	cand := CodeSnippet{FilePath: filePath, Code: code, StartLine: start, EndLine: end}
	key := cand.dedupeKey()

	for i := range cm.snippets {
		if cm.snippets[i].dedupeKey() == key {
			cm.snippets[i].LastAccessed = turnNumber
			cm.snippets[i].Relevance += relevanceBumpOnRefresh
			if cm.snippets[i].Relevance > 1.0 {
				cm.snippets[i].Relevance = 1.0
			}
			return
		}
	}

	if len(cm.snippets) >= cm.limits.MaxStoredCodeSnippets {
		cm.evictLowestRelevanceSnippet()
	}

	cm.snippets = append(cm.snippets, CodeSnippet{
		FilePath:     filePath,
		Code:         code,
		StartLine:    start,
		EndLine:      end,
		LastAccessed: turnNumber,
		Relevance:    0.5,
		TokenCount:   cm.counter.Count(code),
	})
}

// evictLowestRelevanceSnippet removes the snippet with the lowest
// (relevance_score, last_accessed) lexicographic key. Caller holds cm.mu.
func (cm *ContextManager) evictLowestRelevanceSnippet() {
	worst := 0
	for i := 1; i < len(cm.snippets); i++ {
		a, b := cm.snippets[i], cm.snippets[worst]
		if a.Relevance < b.Relevance || (a.Relevance == b.Relevance && a.LastAccessed < b.LastAccessed) {
			worst = i
		}
	}
	cm.snippets = append(cm.snippets[:worst], cm.snippets[worst+1:]...)
}

// AddToolResult stores a tool invocation's result. If summary is empty, one
// is generated from fullResult per §4.4's cascading summarization rules.
func (cm *ContextManager) AddToolResult(toolName string, fullResult interface{}, summary string, turnNumber int, isError bool) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if summary == "" {
		summary = summarizeToolResult(toolName, fullResult, cm.summary)
	}

	if len(cm.toolResults) >= cm.limits.MaxStoredToolResults {
		cm.evictOldestToolResult()
	}

	cm.toolResults = append(cm.toolResults, ToolResult{
		ToolName:   toolName,
		FullResult: fullResult,
		Summary:    summary,
		Turn:       turnNumber,
		IsError:    isError,
		Relevance:  0.5,
		TokenCount: cm.counter.Count(summary),
	})
}

// evictOldestToolResult removes the stored result with the lowest turn
// number (FIFO by turn). Caller holds cm.mu.
func (cm *ContextManager) evictOldestToolResult() {
	oldest := 0
	for i := 1; i < len(cm.toolResults); i++ {
		if cm.toolResults[i].Turn < cm.toolResults[oldest].Turn {
			oldest = i
		}
	}
	cm.toolResults = append(cm.toolResults[:oldest], cm.toolResults[oldest+1:]...)
}

// SetCoreGoal sets the free-text goal for the conversation.
func (cm *ContextManager) SetCoreGoal(goal string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.state.CoreGoal = goal
}

// SetCurrentPhase sets the free-text phase description.
func (cm *ContextManager) SetCurrentPhase(phase string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.state.CurrentPhase = phase
}

// AddKeyDecision appends a decision, capping the stored list at 15 by
// dropping the oldest.
func (cm *ContextManager) AddKeyDecision(decision string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.state.KeyDecisions = appendCapped(cm.state.KeyDecisions, decision, maxScalarListLen)
}

// AddModifiedFile records a path, capping the stored list at 15 by
// dropping the oldest.
func (cm *ContextManager) AddModifiedFile(path string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.state.LastModifiedFiles = appendCapped(cm.state.LastModifiedFiles, path, maxScalarListLen)
}

func appendCapped(list []string, item string, max int) []string {
	list = append(list, item)
	if len(list) > max {
		list = list[len(list)-max:]
	}
	return list
}

// State returns a copy of the current scalar ContextState.
func (cm *ContextManager) State() ContextState {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cp := cm.state
	cp.KeyDecisions = append([]string(nil), cm.state.KeyDecisions...)
	cp.LastModifiedFiles = append([]string(nil), cm.state.LastModifiedFiles...)
	return cp
}

// Snippets returns a defensive copy of all stored code snippets.
func (cm *ContextManager) Snippets() []CodeSnippet {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return append([]CodeSnippet(nil), cm.snippets...)
}

// ToolResults returns a defensive copy of all stored tool results.
func (cm *ContextManager) ToolResults() []ToolResult {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return append([]ToolResult(nil), cm.toolResults...)
}

// Reset clears all stored snippets, tool results, and scalar state. Used
// by the run loop's retry-level-3 progressive shrinkage (§4.7).
func (cm *ContextManager) Reset() {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.snippets = nil
	cm.toolResults = nil
	cm.state = ContextState{}
}

// ShrinkSnippetsTo keeps only the target count of most-recently-accessed
// snippets (ties broken by relevance), for progressive shrinkage.
func (cm *ContextManager) ShrinkSnippetsTo(n int) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if n <= 0 {
		cm.snippets = nil
		return
	}
	if len(cm.snippets) <= n {
		return
	}
	sorted := append([]CodeSnippet(nil), cm.snippets...)
	sortByMostRecentThenRelevance(sorted)
	cm.snippets = sorted[:n]
}

// SetTargets adjusts the packing targets consulted by Assemble, used by
// the Run Loop's progressive context shrinkage (spec §4.7). Negative
// values leave the corresponding target unchanged; zero sets it to zero.
func (cm *ContextManager) SetTargets(recentTurns, codeSnippets, toolResults int) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if recentTurns >= 0 {
		cm.limits.TargetRecentTurns = recentTurns
	}
	if codeSnippets >= 0 {
		cm.limits.TargetCodeSnippets = codeSnippets
	}
	if toolResults >= 0 {
		cm.limits.TargetToolResults = toolResults
	}
}

// ClearToolResultsForTurn drops tool results recorded during turnNumber.
func (cm *ContextManager) ClearToolResultsForTurn(turnNumber int) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	kept := cm.toolResults[:0:0]
	for _, r := range cm.toolResults {
		if r.Turn != turnNumber {
			kept = append(kept, r)
		}
	}
	cm.toolResults = kept
}

func sortByMostRecentThenRelevance(s []CodeSnippet) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0; j-- {
			a, b := s[j], s[j-1]
			less := a.LastAccessed > b.LastAccessed ||
				(a.LastAccessed == b.LastAccessed && a.Relevance > b.Relevance)
			if !less {
				break
			}
			s[j], s[j-1] = s[j-1], s[j]
		}
	}
}
