// Package llmclient defines the LLM transport contract the Run Loop
// consumes (spec §6) and a reference adapter over google.golang.org/genai.
package llmclient

import (
	"context"

	"github.com/hectorcore/agentcore/pkg/agentcore"
)

// GenerateConfig carries per-call generation parameters.
type GenerateConfig struct {
	Temperature     *float64
	MaxOutputTokens *int
	ThinkingConfig  *ThinkingConfig
}

// ThinkingConfig enables and bounds a model's extended-reasoning budget.
type ThinkingConfig struct {
	Enabled       bool
	BudgetTokens  int
	IncludeInResp bool
}

// Request is the full payload a Transport.Generate call receives: an
// ordered, role-tagged message list plus the tool schemas currently
// available (spec §6 "LLM transport (consumed)").
type Request struct {
	Model    string
	Contents []agentcore.Message
	Tools    []agentcore.ToolDefinition
	Config   GenerateConfig
}

// Transport is the LLM collaborator the Run Loop calls once per attempt
// step.
type Transport interface {
	Generate(ctx context.Context, req Request) (*agentcore.Response, error)

	// CountTokens is probed once at startup by tokencount.NativeCounter
	// wiring; transports that cannot report an exact count may return
	// an estimate or ErrCountTokensUnsupported.
	CountTokens(ctx context.Context, model string, text string) (int, error)
}

// ErrCountTokensUnsupported signals a transport without a native counter.
type ErrCountTokensUnsupported struct{ Model string }

func (e *ErrCountTokensUnsupported) Error() string {
	return "transport does not support count_tokens for model " + e.Model
}
