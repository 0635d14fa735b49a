package toolorch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShellToolExecutesSimpleCommand(t *testing.T) {
	tool := NewShellTool(nil, false)
	result, err := tool.Invoke(context.Background(), map[string]interface{}{"command": "echo hello"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "executed", result["status"])
	assert.Equal(t, "hello", result["stdout"])
	assert.Equal(t, 0, result["return_code"])
}

func TestShellToolMissingCommandReportsError(t *testing.T) {
	tool := NewShellTool(nil, false)
	result, err := tool.Invoke(context.Background(), map[string]interface{}{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "error", result["status"])
}

func TestShellToolFallsBackToShellTrueOnUnterminatedQuote(t *testing.T) {
	tool := NewShellTool(nil, false)
	result, err := tool.Invoke(context.Background(), map[string]interface{}{"command": `echo "unterminated`}, nil)
	require.NoError(t, err)
	// shlex_split fails to parse; shell_true executes the raw string, whose
	// own quoting error surfaces as a non-zero exit from /bin/sh.
	assert.Contains(t, []interface{}{"executed", "error"}, result["status"])
}

func TestShellToolNonZeroExitStillReportsExecuted(t *testing.T) {
	tool := NewShellTool(nil, false)
	result, err := tool.Invoke(context.Background(), map[string]interface{}{"command": "false"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "executed", result["status"])
	assert.Equal(t, 1, result["return_code"])
}

func TestShellToolRefusesUnapprovedCommandWhenApprovalRequired(t *testing.T) {
	tool := NewShellTool([]string{"ls", "cat"}, true)
	result, err := tool.Invoke(context.Background(), map[string]interface{}{"command": "rm -rf /tmp/x"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "error", result["status"])
	assert.Contains(t, result["message"], "requires approval")
}

func TestShellToolAllowsWhitelistedCommandWhenApprovalRequired(t *testing.T) {
	tool := NewShellTool([]string{"echo"}, true)
	result, err := tool.Invoke(context.Background(), map[string]interface{}{"command": "echo hello"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "executed", result["status"])
}

func TestShellToolAllowsUnwhitelistedCommandWhenContextApproved(t *testing.T) {
	tool := NewShellTool(nil, true)
	toolCtx := NewToolContext()
	toolCtx.Set("shell_approved", true)
	result, err := tool.Invoke(context.Background(), map[string]interface{}{"command": "echo hello"}, toolCtx)
	require.NoError(t, err)
	assert.Equal(t, "executed", result["status"])
}

func TestParseShellCommandStrategies(t *testing.T) {
	parts, shellMode, err := parseShellCommand("shlex_split", "echo hello world")
	require.NoError(t, err)
	assert.False(t, shellMode)
	assert.Equal(t, []string{"echo", "hello", "world"}, parts)

	parts, shellMode, err = parseShellCommand("shell_true", "echo hello | wc -l")
	require.NoError(t, err)
	assert.True(t, shellMode)
	assert.Equal(t, []string{"echo hello | wc -l"}, parts)

	parts, shellMode, err = parseShellCommand("simple_split", "echo  hello   world")
	require.NoError(t, err)
	assert.False(t, shellMode)
	assert.Equal(t, []string{"echo", "hello", "world"}, parts)
}
