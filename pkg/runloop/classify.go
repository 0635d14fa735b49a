package runloop

import "strings"

// retryablePatterns are substrings (checked case-sensitively against the
// raw message, matching the original's mixed case-sensitive/
// case-insensitive checks) that mark a transport error retryable.
var retryablePatterns = []string{
	"429", "RESOURCE_EXHAUSTED", "quota", "rate limit",
	"500", "502", "503", "504", "INTERNAL", "ServerError", "timeout",
	"DEADLINE_EXCEEDED", "UNAVAILABLE", "ABORTED",
}

// retryablePatternsLower are checked case-insensitively.
var retryablePatternsLower = []string{
	"connection", "network", "timeout", "unreachable",
	"token", "context length", "too long", "maximum context",
	"limit exceeded",
}

// nonRetryablePatternsLower are checked case-insensitively and override
// a retryable match made only by the generic patterns above.
var nonRetryablePatternsLower = []string{
	"permission_denied", "unauthenticated", "invalid_argument",
	"not_found", "already_exists", "failed_precondition",
	"authentication", "authorization", "invalid api key",
	"model not found", "unsupported",
}

// isRetryableError classifies a transport failure by message text and
// type name, grounded on the original devops agent's
// _is_retryable_error (spec §4.7, §7 RetryableTransportError /
// NonRetryableTransportError).
func isRetryableError(errMessage, errType string) bool {
	lower := strings.ToLower(errMessage)
	typeLower := strings.ToLower(errType)

	for _, p := range retryablePatterns {
		if strings.Contains(errMessage, p) {
			return true
		}
	}
	for _, p := range nonRetryablePatternsLower {
		if strings.Contains(lower, p) {
			return false
		}
	}
	for _, p := range retryablePatternsLower {
		if strings.Contains(lower, p) {
			return true
		}
	}
	if strings.Contains(typeLower, "json") || strings.Contains(lower, "json") {
		return true
	}

	// Unknown errors default to non-retryable to avoid infinite loops.
	return false
}

// classifyRetryReason labels a retryable error for the
// agentcore_retries_total{reason} counter, grouping by the same
// substrings isRetryableError keys off of rather than the raw message
// (which would blow up cardinality).
func classifyRetryReason(err error) string {
	lower := strings.ToLower(err.Error())
	switch {
	case strings.Contains(lower, "limit exceeded"), strings.Contains(lower, "quota"), strings.Contains(lower, "rate limit"):
		return "rate_limited"
	case strings.Contains(lower, "timeout"), strings.Contains(lower, "deadline_exceeded"):
		return "timeout"
	case strings.Contains(lower, "connection"), strings.Contains(lower, "network"), strings.Contains(lower, "unreachable"), strings.Contains(lower, "unavailable"):
		return "connection"
	case strings.Contains(lower, "token"), strings.Contains(lower, "context length"), strings.Contains(lower, "too long"), strings.Contains(lower, "maximum context"):
		return "context_length"
	case strings.Contains(lower, "json"):
		return "malformed_response"
	default:
		return "transport_error"
	}
}
