package runloop

import (
	"github.com/hectorcore/agentcore/pkg/ctxassembly"
)

// applyShrinkage narrows what the next Assemble call will pack, in three
// escalating levels (spec §4.7 progressive context shrinkage). Turn
// history itself is never truncated — only StateManager owns it, and
// truncating it would violate the append-only history invariant (§8);
// shrinkage instead narrows ContextManager's packing targets and its own
// derived snippet/tool-result stores, which is where spec §4.7's
// token-budget pressure actually needs relief.
//
// Each level is idempotent: reapplying the same level after it has
// already been applied changes nothing further, since SetTargets and
// ShrinkSnippetsTo/ClearToolResultsForTurn are themselves idempotent at
// a fixed target.
func applyShrinkage(level int, cm *ctxassembly.ContextManager, currentTurnNumber int) {
	switch {
	case level <= 0:
		return
	case level == 1:
		cm.SetTargets(2, 3, 3)
		cm.ShrinkSnippetsTo(3)
	case level == 2:
		cm.SetTargets(1, 0, 1)
		cm.ShrinkSnippetsTo(0)
		cm.ClearToolResultsForTurn(currentTurnNumber)
	default: // level >= 3
		cm.SetTargets(1, 0, 0)
		cm.Reset()
	}
}
