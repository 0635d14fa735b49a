// Package toolsrc implements the second toolorch.ToolSource named in
// spec §4.6's ADDED detail: tools discovered from a remote MCP server
// over stdio, alongside toolorch.LocalToolSource's in-process tools.
package toolsrc

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hectorcore/agentcore/pkg/toolorch"
)

// Config names one MCP server launched as a subprocess over stdio.
type Config struct {
	// Name identifies this source in logs/errors.
	Name string

	// Command and Args launch the MCP server subprocess.
	Command string
	Args    []string
	Env     map[string]string

	// Filter, if non-empty, restricts exposed tools to this set.
	Filter []string
}

// MCPToolSource is a toolorch.ToolSource backed by one MCP server,
// connected lazily on first Tools() call and cached thereafter.
type MCPToolSource struct {
	cfg Config

	mu        sync.Mutex
	client    *client.Client
	tools     []toolorch.Tool
	connected bool
	connErr   error
}

// New validates cfg and returns an MCPToolSource that has not yet
// connected to the server.
func New(cfg Config) (*MCPToolSource, error) {
	if cfg.Command == "" {
		return nil, fmt.Errorf("toolsrc: command is required")
	}
	return &MCPToolSource{cfg: cfg}, nil
}

// Tools implements toolorch.ToolSource, connecting to the MCP server on
// first call. A connection failure is cached and returns an empty tool
// list on every subsequent call rather than retrying per request.
func (s *MCPToolSource) Tools() []toolorch.Tool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected {
		s.tools, s.connErr = s.connect(context.Background())
		s.connected = true
	}
	return s.tools
}

// Err returns the error from the most recent connection attempt, if any.
func (s *MCPToolSource) Err() error { return s.connErr }

// Close releases the subprocess and its stdio pipes.
func (s *MCPToolSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}

func (s *MCPToolSource) connect(ctx context.Context) ([]toolorch.Tool, error) {
	mcpClient, err := client.NewStdioMCPClient(s.cfg.Command, envSlice(s.cfg.Env), s.cfg.Args...)
	if err != nil {
		return nil, fmt.Errorf("toolsrc %s: create client: %w", s.cfg.Name, err)
	}
	if err := mcpClient.Start(ctx); err != nil {
		return nil, fmt.Errorf("toolsrc %s: start: %w", s.cfg.Name, err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ClientInfo = mcp.Implementation{Name: "agentcore", Version: "0.1.0"}
	initReq.Params.ProtocolVersion = "2024-11-05"
	if _, err := mcpClient.Initialize(ctx, initReq); err != nil {
		mcpClient.Close()
		return nil, fmt.Errorf("toolsrc %s: initialize: %w", s.cfg.Name, err)
	}

	listResp, err := mcpClient.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		mcpClient.Close()
		return nil, fmt.Errorf("toolsrc %s: list tools: %w", s.cfg.Name, err)
	}

	var filterSet map[string]bool
	if len(s.cfg.Filter) > 0 {
		filterSet = make(map[string]bool, len(s.cfg.Filter))
		for _, name := range s.cfg.Filter {
			filterSet[name] = true
		}
	}

	tools := make([]toolorch.Tool, 0, len(listResp.Tools))
	for _, t := range listResp.Tools {
		if filterSet != nil && !filterSet[t.Name] {
			continue
		}
		tools = append(tools, &mcpTool{
			client: mcpClient,
			name:   t.Name,
			desc:   t.Description,
			schema: convertSchema(t.InputSchema),
		})
	}

	s.client = mcpClient
	return tools, nil
}

func envSlice(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	return out
}

// convertSchema round-trips an mcp.ToolInputSchema through JSON into a
// plain map, matching the shape toolorch.Tool.Schema() expects.
func convertSchema(schema mcp.ToolInputSchema) map[string]interface{} {
	data, err := json.Marshal(schema)
	if err != nil {
		return nil
	}
	var result map[string]interface{}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil
	}
	return result
}
