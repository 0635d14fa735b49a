package ctxassembly

import (
	"fmt"

	"github.com/hectorcore/agentcore/pkg/tokencount"
)

// estimateValueTokens sizes an arbitrary proactive_context payload value
// (string, list, or nested map) for budget accounting.
func estimateValueTokens(counter *tokencount.TokenCounter, v interface{}) int {
	switch val := v.(type) {
	case string:
		return counter.Count(val)
	case map[string]interface{}:
		return estimateMapTokens(counter, val)
	case []interface{}:
		total := 0
		for _, e := range val {
			total += estimateValueTokens(counter, e) + jsonElementOverhead
		}
		return total
	default:
		return counter.Count(fmt.Sprintf("%v", val))
	}
}

func estimateMapTokens(counter *tokencount.TokenCounter, m map[string]interface{}) int {
	total := 0
	for k, v := range m {
		total += counter.Count(k) + jsonElementOverhead + estimateValueTokens(counter, v)
	}
	return total
}
