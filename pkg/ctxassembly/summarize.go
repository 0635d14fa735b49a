package ctxassembly

import (
	"fmt"
	"strings"
)

// SummaryLimits holds the truncation constants for automatic tool-result
// summarization (§4.4). Per the spec's open question, these are kept
// configurable per tool kind rather than collapsed to a single value.
type SummaryLimits struct {
	FileReadHeadTail int // chars kept from each end of file content, default 500
	ShellHalf        int // chars kept per stream (stdout/stderr), default MaxSummaryLen/2
	GenericDictField int // chars kept per known dict field, default 300
	GenericOther     int // chars kept for an unrecognized payload, default 800
	MaxSummaryLen    int // hard cap on the final summary, default 2000
}

// DefaultSummaryLimits mirrors the literal constants named in spec §4.4.
func DefaultSummaryLimits() SummaryLimits {
	return SummaryLimits{
		FileReadHeadTail: 500,
		ShellHalf:        1000, // MAX_SUMMARY_LEN(2000)/2
		GenericDictField: 300,
		GenericOther:     800,
		MaxSummaryLen:    2000,
	}
}

var codeKeywords = []string{"def ", "class ", "import ", "function("}

var importantDictKeys = []string{"status", "message", "summary", "error", "output", "stdout", "stderr"}

const truncationSuffix = "...[truncated]"

// summarizeToolResult produces the short human-readable summary for a tool
// result that didn't come with one already, per the cascading rules in
// spec §4.4.
func summarizeToolResult(toolName string, result interface{}, limits SummaryLimits) string {
	var summary string

	m, isMap := result.(map[string]interface{})
	switch {
	case isMap && isFileReadResult(m):
		summary = summarizeFileRead(m, limits)
	case isMap && isShellResult(m):
		summary = summarizeShell(m, limits)
	case isMap && isSearchResult(m):
		summary = summarizeSearch(m)
	case isMap:
		summary = summarizeGenericDict(m, limits)
	default:
		summary = truncate(fmt.Sprintf("%v", result), limits.GenericOther)
	}

	return capSummary(summary, limits.MaxSummaryLen)
}

func isFileReadResult(m map[string]interface{}) bool {
	_, hasContent := m["content"]
	_, hasPath := m["path"]
	return hasContent && hasPath
}

func isShellResult(m map[string]interface{}) bool {
	_, hasCmd := m["command"]
	_, hasExit := m["exit_code"]
	return hasCmd && hasExit
}

func isSearchResult(m map[string]interface{}) bool {
	_, hasMatches := m["matches"]
	_, hasChunks := m["retrieved_chunks"]
	return hasMatches || hasChunks
}

func summarizeFileRead(m map[string]interface{}, limits SummaryLimits) string {
	content, _ := m["content"].(string)
	prefix := "Read file."
	if containsCodeKeyword(content) {
		prefix = "Read code file."
	}

	head, tail := splitHeadTail(content, limits.FileReadHeadTail)
	return fmt.Sprintf("%s Length: %d chars. Content (truncated): %s…%s", prefix, len(content), head, tail)
}

func containsCodeKeyword(content string) bool {
	for _, kw := range codeKeywords {
		if strings.Contains(content, kw) {
			return true
		}
	}
	return false
}

func splitHeadTail(s string, n int) (string, string) {
	if len(s) <= 2*n {
		return s, ""
	}
	return s[:n], s[len(s)-n:]
}

func summarizeShell(m map[string]interface{}, limits SummaryLimits) string {
	cmd, _ := m["command"].(string)
	exitCode := m["exit_code"]
	stdout, _ := m["stdout"].(string)
	stderr, _ := m["stderr"].(string)

	if !strings.Contains(stdout, "[Output truncated]") {
		stdout = truncate(stdout, limits.ShellHalf)
	}
	if !strings.Contains(stderr, "[Output truncated]") {
		stderr = truncate(stderr, limits.ShellHalf)
	}

	return fmt.Sprintf("Ran `%s` (exit %v). stdout: %s stderr: %s", cmd, exitCode, stdout, stderr)
}

func summarizeSearch(m map[string]interface{}) string {
	if chunks, ok := m["retrieved_chunks"].([]interface{}); ok {
		return fmt.Sprintf("Retrieved %d code chunks.", len(chunks))
	}
	if matches, ok := m["matches"]; ok {
		switch v := matches.(type) {
		case []interface{}:
			return fmt.Sprintf("Search returned %d matches.", len(v))
		case int:
			return fmt.Sprintf("Search returned %d matches.", v)
		}
	}
	return "Search returned 0 matches."
}

func summarizeGenericDict(m map[string]interface{}, limits SummaryLimits) string {
	keys := make([]string, 0, len(importantDictKeys))
	for _, k := range importantDictKeys {
		if _, ok := m[k]; ok {
			keys = append(keys, k)
		}
	}

	var parts []string
	for _, k := range keys {
		parts = append(parts, truncate(fmt.Sprintf("%v", m[k]), limits.GenericDictField))
	}
	if len(parts) == 0 {
		return truncate(fmt.Sprintf("%v", m), limits.GenericOther)
	}
	return strings.Join(parts, " | ")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func capSummary(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max - len(truncationSuffix)
	if cut < 0 {
		cut = 0
	}
	return s[:cut] + truncationSuffix
}
