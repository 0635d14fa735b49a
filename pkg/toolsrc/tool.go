package toolsrc

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hectorcore/agentcore/pkg/toolorch"
)

// mcpTool adapts one tool exposed by an MCP server to toolorch.Tool.
type mcpTool struct {
	client *client.Client
	name   string
	desc   string
	schema map[string]interface{}
}

func (t *mcpTool) Name() string                      { return t.name }
func (t *mcpTool) Description() string                { return t.desc }
func (t *mcpTool) Schema() map[string]interface{}     { return t.schema }

func (t *mcpTool) Invoke(ctx context.Context, args map[string]interface{}, _ *toolorch.ToolContext) (map[string]interface{}, error) {
	req := mcp.CallToolRequest{}
	req.Params.Name = t.name
	req.Params.Arguments = args

	resp, err := t.client.CallTool(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("toolsrc: call %s: %w", t.name, err)
	}
	return parseToolResponse(resp), nil
}

// parseToolResponse flattens an MCP CallToolResult's text content into
// the {status, result|message} shape spec §6 asks tools to return.
func parseToolResponse(resp *mcp.CallToolResult) map[string]interface{} {
	if resp.IsError {
		message := "unknown error"
		for _, content := range resp.Content {
			if tc, ok := content.(mcp.TextContent); ok {
				message = tc.Text
				break
			}
		}
		return map[string]interface{}{"status": "error", "message": message}
	}

	var texts []string
	for _, content := range resp.Content {
		if tc, ok := content.(mcp.TextContent); ok {
			texts = append(texts, tc.Text)
		}
	}
	switch len(texts) {
	case 0:
		return map[string]interface{}{"status": "executed"}
	case 1:
		return map[string]interface{}{"status": "executed", "result": texts[0]}
	default:
		return map[string]interface{}{"status": "executed", "results": texts}
	}
}
