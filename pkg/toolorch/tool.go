// Package toolorch implements ToolOrchestrator (spec §4.6): dependency-
// ordered tool execution with classified-error recovery, handing every
// result — success or failure — back to a result recorder.
package toolorch

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// ToolContext is the mutable shared state map scoped to one invocation
// (spec §6 external interfaces: "tool_context carries a mutable shared
// state map scoped to the current invocation").
type ToolContext struct {
	data map[string]interface{}
}

// NewToolContext returns an empty ToolContext.
func NewToolContext() *ToolContext {
	return &ToolContext{data: make(map[string]interface{})}
}

func (tc *ToolContext) Get(key string) (interface{}, bool) {
	v, ok := tc.data[key]
	return v, ok
}

func (tc *ToolContext) Set(key string, value interface{}) {
	tc.data[key] = value
}

// Tool is the capability interface the LLM sees and ToolOrchestrator
// dispatches against (§6, §9 design notes: "a mapping from string to a
// capability interface"). No parameter name in Schema may begin with an
// underscore.
type Tool interface {
	Name() string
	Description() string
	Schema() map[string]interface{}
	Invoke(ctx context.Context, args map[string]interface{}, toolCtx *ToolContext) (map[string]interface{}, error)
}

// ValidateSchema rejects any top-level schema property name beginning
// with an underscore, per the transport's function-calling constraint.
func ValidateSchema(schema map[string]interface{}) error {
	props, ok := schema["properties"].(map[string]interface{})
	if !ok {
		return nil
	}
	for name := range props {
		if len(name) > 0 && name[0] == '_' {
			return fmt.Errorf("tool parameter %q must not begin with an underscore", name)
		}
	}
	return nil
}

// ResultRecorder is satisfied structurally by ctxassembly.ContextManager;
// ToolOrchestrator depends only on this narrow interface, not on the
// ctxassembly package, per spec §9's "no back-pointers" design note.
type ResultRecorder interface {
	AddToolResult(toolName string, fullResult interface{}, summary string, turnNumber int, isError bool)
}

// ToolSource supplies the tools available for a conversation (spec §6
// "Tool interface"). LocalToolSource in this package and MCPToolSource in
// pkg/toolsrc both implement it.
type ToolSource interface {
	Tools() []Tool
}

// ReflectSchema derives a tool's Schema() from a typed Go arguments
// struct via struct tags, rather than hand-building the map literal.
// args should be passed by value, e.g. ReflectSchema(shellCommandArgs{}).
func ReflectSchema(args interface{}) map[string]interface{} {
	reflector := &jsonschema.Reflector{
		DoNotReference:            true,
		ExpandedStruct:            true,
		RequiredFromJSONSchemaTags: true,
	}
	schema := reflector.Reflect(args)
	raw, err := json.Marshal(schema)
	if err != nil {
		return map[string]interface{}{}
	}
	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return map[string]interface{}{}
	}
	return out
}

// findTool scans a ToolSource's Tools() for one matching name. Sources
// that can look up by name more efficiently (LocalToolSource) aren't
// special-cased here; the Orchestrator only depends on the narrow
// ToolSource interface.
func findTool(source ToolSource, name string) (Tool, bool) {
	for _, t := range source.Tools() {
		if t.Name() == name {
			return t, true
		}
	}
	return nil, false
}
