package toolorch

import (
	"github.com/hectorcore/agentcore/pkg/registry"
)

// LocalToolSource adapts the teacher's generic BaseRegistry[T] into a
// ToolSource for in-process tools (shell, file I/O, code search).
type LocalToolSource struct {
	reg *registry.BaseRegistry[Tool]
}

// NewLocalToolSource returns an empty, in-process tool source.
func NewLocalToolSource() *LocalToolSource {
	return &LocalToolSource{reg: registry.NewBaseRegistry[Tool]()}
}

// Register adds a tool, rejecting schemas with underscore-prefixed
// parameter names up front rather than at first invocation.
func (s *LocalToolSource) Register(t Tool) error {
	if err := ValidateSchema(t.Schema()); err != nil {
		return err
	}
	return s.reg.Register(t.Name(), t)
}

// Tools implements ToolSource.
func (s *LocalToolSource) Tools() []Tool {
	return s.reg.List()
}

// Get looks up a single tool by name.
func (s *LocalToolSource) Get(name string) (Tool, bool) {
	return s.reg.Get(name)
}
