package toolorch

import (
	"context"
	"fmt"
	"testing"

	"github.com/hectorcore/agentcore/pkg/agentcore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingRecorder captures every AddToolResult call for assertions.
type recordingRecorder struct {
	calls []recordedResult
}

type recordedResult struct {
	ToolName string
	Summary  string
	Turn     int
	IsError  bool
}

func (r *recordingRecorder) AddToolResult(toolName string, fullResult interface{}, summary string, turnNumber int, isError bool) {
	r.calls = append(r.calls, recordedResult{ToolName: toolName, Summary: summary, Turn: turnNumber, IsError: isError})
}

// fakeReadFileTool simulates file reads that succeed only on specific
// paths, used to pin the file_not_found recovery order from scenario 6.
type fakeReadFileTool struct {
	succeedsOn map[string]bool
}

func (t *fakeReadFileTool) Name() string        { return "read_file" }
func (t *fakeReadFileTool) Description() string { return "reads a file" }
func (t *fakeReadFileTool) Schema() map[string]interface{} {
	return map[string]interface{}{"properties": map[string]interface{}{"path": map[string]interface{}{"type": "string"}}}
}

func (t *fakeReadFileTool) Invoke(_ context.Context, args map[string]interface{}, _ *ToolContext) (map[string]interface{}, error) {
	path, _ := args["path"].(string)
	if t.succeedsOn[path] {
		return map[string]interface{}{"content": "ok:" + path}, nil
	}
	return nil, &agentcore.ToolRecoverableError{
		ToolName: "read_file",
		Class:    agentcore.ToolErrorFileNotFound,
		Cause:    fmt.Errorf("FileNotFoundError: %s", path),
	}
}

func TestFileNotFoundRecoveryTriesAlternativesInOrder(t *testing.T) {
	tool := &fakeReadFileTool{succeedsOn: map[string]bool{"/src/auth.py.backup": true}}
	source := NewLocalToolSource()
	require.NoError(t, source.Register(tool))

	rec := &recordingRecorder{}
	orch := New(source, rec)

	execs := orch.ExecuteSequence(context.Background(), 1, []Invocation{
		{ID: "a", Name: "read_file", Args: map[string]interface{}{"path": "/src/auth.py"}},
	})

	require.Len(t, execs, 1)
	exec := execs[0]
	assert.Equal(t, StatusCompleted, exec.Status)
	assert.Equal(t, 3, exec.RetryCount)
	assert.Equal(t, "ok:/src/auth.py.backup", exec.Result["content"])

	require.Len(t, rec.calls, 1)
	assert.False(t, rec.calls[0].IsError)
}

func TestFileNotFoundRecoveryExhaustsAndFails(t *testing.T) {
	tool := &fakeReadFileTool{succeedsOn: map[string]bool{}}
	source := NewLocalToolSource()
	require.NoError(t, source.Register(tool))

	rec := &recordingRecorder{}
	orch := New(source, rec)

	execs := orch.ExecuteSequence(context.Background(), 1, []Invocation{
		{ID: "a", Name: "read_file", Args: map[string]interface{}{"path": "/src/auth.py"}},
	})

	exec := execs[0]
	assert.Equal(t, StatusFailed, exec.Status)
	require.Len(t, rec.calls, 1)
	assert.True(t, rec.calls[0].IsError)
}

func TestClassifyErrorTable(t *testing.T) {
	cases := []struct {
		msg  string
		want agentcore.ToolErrorClass
	}{
		{"FileNotFoundError: /tmp/x", agentcore.ToolErrorFileNotFound},
		{"no such file or directory", agentcore.ToolErrorFileNotFound},
		{"permission denied", agentcore.ToolErrorPermissionDenied},
		{"command timed out after 60 seconds", agentcore.ToolErrorTimeout},
		{"resource exhausted: quota limit", agentcore.ToolErrorResourceExhausted},
		{"command failed with non-zero exit code", agentcore.ToolErrorCommandFailed},
		{"something bizarre happened", agentcore.ToolErrorUnknown},
	}
	for _, c := range cases {
		got := classifyError(fmt.Errorf("%s", c.msg))
		assert.Equal(t, c.want, got, "msg: %q", c.msg)
	}
}

func TestPermissionDeniedRecoveryPrependsSudo(t *testing.T) {
	next, ok := recoverPermissionDenied(map[string]interface{}{"command": "mount /dev/sda1"})
	require.True(t, ok)
	assert.Equal(t, "sudo mount /dev/sda1", next["command"])

	_, ok = recoverPermissionDenied(map[string]interface{}{"command": "sudo mount /dev/sda1"})
	assert.False(t, ok)
}

func TestTimeoutRecoveryDoublesTimeout(t *testing.T) {
	next, ok := recoverTimeout(map[string]interface{}{"timeout": 60})
	require.True(t, ok)
	assert.Equal(t, 120, next["timeout"])

	next, ok = recoverTimeout(map[string]interface{}{})
	require.True(t, ok)
	assert.Equal(t, 120, next["timeout"])
}

func TestCommandFailedSubstitution(t *testing.T) {
	next, ok := recoverCommandFailed(map[string]interface{}{"command": "npm install left-pad"})
	require.True(t, ok)
	assert.Equal(t, "yarn install left-pad", next["command"])

	_, ok = recoverCommandFailed(map[string]interface{}{"command": "make build"})
	assert.False(t, ok)
}

func TestUnknownClassHasNoRecovery(t *testing.T) {
	_, ok := recoverArgs(agentcore.ToolErrorUnknown, map[string]interface{}{}, map[string]interface{}{}, 0)
	assert.False(t, ok)
}

func TestExecuteParallelPreservesSubmissionOrder(t *testing.T) {
	source := NewLocalToolSource()
	require.NoError(t, source.Register(&fakeReadFileTool{succeedsOn: map[string]bool{
		"a": true, "b": true, "c": true,
	}}))
	orch := New(source, nil)

	invocations := []Invocation{
		{ID: "1", Name: "read_file", Args: map[string]interface{}{"path": "a"}},
		{ID: "2", Name: "read_file", Args: map[string]interface{}{"path": "b"}},
		{ID: "3", Name: "read_file", Args: map[string]interface{}{"path": "c"}},
	}
	execs := orch.ExecuteParallel(context.Background(), 1, invocations)

	require.Len(t, execs, 3)
	assert.Equal(t, "ok:a", execs[0].Result["content"])
	assert.Equal(t, "ok:b", execs[1].Result["content"])
	assert.Equal(t, "ok:c", execs[2].Result["content"])
}

func TestValidateSchemaRejectsUnderscorePrefixedParam(t *testing.T) {
	err := ValidateSchema(map[string]interface{}{
		"properties": map[string]interface{}{
			"_internal": map[string]interface{}{"type": "string"},
		},
	})
	assert.Error(t, err)
}

func TestReflectSchemaProducesValidPropertiesFromStructTags(t *testing.T) {
	schema := ReflectSchema(shellCommandArgs{})
	require.NoError(t, ValidateSchema(schema))

	props, ok := schema["properties"].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, props, "command")
	assert.Contains(t, props, "working_directory")
	assert.Contains(t, props, "timeout")
}

func TestShellToolSchemaMatchesReflectedArgs(t *testing.T) {
	tool := NewShellTool(nil, false)
	schema := tool.Schema()
	props, ok := schema["properties"].(map[string]interface{})
	require.True(t, ok)
	assert.Len(t, props, 3)
}

func TestShlexSplitHandlesQuotedStrings(t *testing.T) {
	parts, err := shlexSplit(`git commit -m "fix: handle edge case"`)
	require.NoError(t, err)
	assert.Equal(t, []string{"git", "commit", "-m", "fix: handle edge case"}, parts)
}

func TestShlexSplitReportsUnterminatedQuote(t *testing.T) {
	_, err := shlexSplit(`git commit -m "unterminated`)
	assert.Error(t, err)
}
