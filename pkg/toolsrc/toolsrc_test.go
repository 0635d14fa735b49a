package toolsrc

import (
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequiresCommand(t *testing.T) {
	_, err := New(Config{Name: "no-command"})
	require.Error(t, err)
}

func TestParseToolResponseSingleTextResult(t *testing.T) {
	resp := &mcp.CallToolResult{Content: []mcp.Content{mcp.TextContent{Type: "text", Text: "42"}}}
	result := parseToolResponse(resp)
	assert.Equal(t, "executed", result["status"])
	assert.Equal(t, "42", result["result"])
}

func TestParseToolResponseMultipleTextResults(t *testing.T) {
	resp := &mcp.CallToolResult{Content: []mcp.Content{
		mcp.TextContent{Type: "text", Text: "a"},
		mcp.TextContent{Type: "text", Text: "b"},
	}}
	result := parseToolResponse(resp)
	assert.Equal(t, "executed", result["status"])
	assert.Equal(t, []string{"a", "b"}, result["results"])
}

func TestParseToolResponseError(t *testing.T) {
	resp := &mcp.CallToolResult{}
	resp.IsError = true
	resp.Content = []mcp.Content{mcp.TextContent{Type: "text", Text: "boom"}}
	result := parseToolResponse(resp)
	assert.Equal(t, "error", result["status"])
	assert.Equal(t, "boom", result["message"])
}

func TestConvertSchemaRoundTripsToPlainMap(t *testing.T) {
	schema := mcp.ToolInputSchema{
		Type:       "object",
		Properties: map[string]interface{}{"path": map[string]interface{}{"type": "string"}},
	}
	m := convertSchema(schema)
	require.NotNil(t, m)
	assert.Equal(t, "object", m["type"])
}
