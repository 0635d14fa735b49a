// Package config loads the single YAML root covering every table in
// spec §6: context-assembly limits, planning vocabularies, run-loop
// guard rails, rate limiting, and the shell tool's command whitelist.
// It is the one place SPEC_FULL's component constructors are wired
// together from a file plus an environment overlay.
package config

import (
	"context"
	"time"

	"github.com/hectorcore/agentcore/pkg/ctxassembly"
	"github.com/hectorcore/agentcore/pkg/observability"
	"github.com/hectorcore/agentcore/pkg/planning"
	"github.com/hectorcore/agentcore/pkg/ratelimit"
	"github.com/hectorcore/agentcore/pkg/runloop"
)

// Config is the root configuration document (config.yaml).
type Config struct {
	Model     ModelConfig     `yaml:"model"`
	Context   ContextConfig   `yaml:"context"`
	Planning  PlanningConfig  `yaml:"planning"`
	RunLoop   RunLoopConfig   `yaml:"run_loop"`
	RateLimit RateLimitConfig `yaml:"rate_limiting"`
	Shell     ShellConfig     `yaml:"shell"`
	Server    ServerConfig    `yaml:"server"`
	Observ    ObservConfig    `yaml:"observability"`
	MCP       []MCPServer     `yaml:"mcp_servers"`
}

// ObservConfig configures pkg/observability's tracer and metrics.
type ObservConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"` // "otlp" or "stdout"
	Endpoint     string  `yaml:"endpoint"`
	ServiceName  string  `yaml:"service_name"`
	SamplingRate float64 `yaml:"sampling_rate"`
}

// ModelConfig names the LLM transport's model and credential source.
type ModelConfig struct {
	Name      string `yaml:"name"`
	APIKeyEnv string `yaml:"api_key_env"`
}

// ContextConfig mirrors spec §6's context-assembly configuration table.
type ContextConfig struct {
	MaxLLMTokenLimit      int `yaml:"max_llm_token_limit"`
	TargetRecentTurns     int `yaml:"target_recent_turns"`
	TargetCodeSnippets    int `yaml:"target_code_snippets"`
	TargetToolResults     int `yaml:"target_tool_results"`
	MaxStoredCodeSnippets int `yaml:"max_stored_code_snippets"`
	MaxStoredToolResults  int `yaml:"max_stored_tool_results"`
}

// PlanningConfig is the §4.3 master switch plus vocabulary overrides.
// A nil slice field in the YAML document leaves the matching default
// vocabulary untouched rather than clearing it.
type PlanningConfig struct {
	Enabled                      bool     `yaml:"enable_interactive_planning"`
	PlanningKeywords             []string `yaml:"planning_keywords"`
	ExplorationPatterns          []string `yaml:"exploration_patterns"`
	ComplexImplementationPhrases []string `yaml:"complex_implementation_phrases"`
	MultiStepSequenceRegexes     []string `yaml:"multi_step_sequence_regexes"`
	MultiStepIndicators          []string `yaml:"multi_step_indicators"`
	ActionVerbs                  []string `yaml:"action_verbs"`
	DeliverableNouns             []string `yaml:"deliverable_nouns"`
	UnrelatedDomainNouns         []string `yaml:"unrelated_domain_nouns"`
	ModificationLanguage         []string `yaml:"modification_language"`
	PlanFeedbackWords            []string `yaml:"plan_feedback_words"`
}

// RunLoopConfig mirrors spec §6's Run Loop guard rails.
type RunLoopConfig struct {
	MaxRetries           int `yaml:"max_retries"`
	MaxEventsPerAttempt  int `yaml:"max_events_per_attempt"`
	AttemptTimeoutSec    int `yaml:"attempt_timeout_sec"`
	MaxConsecutiveErrors int `yaml:"max_consecutive_errors"`
}

// RateLimitConfig configures the per-conversation fixed-window usage
// limits gating outbound LLM calls (pkg/ratelimit).
type RateLimitConfig struct {
	Enabled bool            `yaml:"enabled"`
	Scope   string          `yaml:"scope"` // "session" or "user"
	Limits  []RateLimitRule `yaml:"limits"`
}

// RateLimitRule is one token-count or request-count rule over a window.
type RateLimitRule struct {
	Type   string `yaml:"type"`   // "token" or "count"
	Window string `yaml:"window"` // "minute", "hour", "day", "week", "month"
	Limit  int64  `yaml:"limit"`
}

// ShellConfig gates execute_shell_command (spec §6 default_safe_commands
// / require_shell_approval).
type ShellConfig struct {
	DefaultSafeCommands  []string `yaml:"default_safe_commands"`
	RequireShellApproval bool     `yaml:"require_shell_approval"`
}

// ServerConfig configures pkg/server's HTTP front door.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// MCPServer names one remote MCP tool source (pkg/toolsrc), launched
// over stdio.
type MCPServer struct {
	Name    string   `yaml:"name"`
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
}

// Default returns the built-in defaults named throughout spec §4 and §6.
func Default() *Config {
	return &Config{
		Model: ModelConfig{Name: "gemini-2.0-flash", APIKeyEnv: "GEMINI_API_KEY"},
		Context: ContextConfig{
			MaxLLMTokenLimit:      128000,
			TargetRecentTurns:     5,
			TargetCodeSnippets:    10,
			TargetToolResults:     10,
			MaxStoredCodeSnippets: 100,
			MaxStoredToolResults:  100,
		},
		Planning: PlanningConfig{Enabled: true},
		RunLoop: RunLoopConfig{
			MaxRetries:           3,
			MaxEventsPerAttempt:  50,
			AttemptTimeoutSec:    300,
			MaxConsecutiveErrors: 5,
		},
		RateLimit: RateLimitConfig{Enabled: false, Scope: "session"},
		Shell: ShellConfig{
			DefaultSafeCommands:  []string{"ls", "cat", "git", "docker", "kubectl", "grep", "find", "pwd", "echo"},
			RequireShellApproval: true,
		},
		Server: ServerConfig{Addr: ":8080"},
	}
}

// ContextLimits converts the §6 context table into ctxassembly.Limits.
func (c *Config) ContextLimits() ctxassembly.Limits {
	return ctxassembly.Limits{
		MaxLLMTokenLimit:      c.Context.MaxLLMTokenLimit,
		TargetRecentTurns:     c.Context.TargetRecentTurns,
		TargetCodeSnippets:    c.Context.TargetCodeSnippets,
		TargetToolResults:     c.Context.TargetToolResults,
		MaxStoredCodeSnippets: c.Context.MaxStoredCodeSnippets,
		MaxStoredToolResults:  c.Context.MaxStoredToolResults,
	}
}

// Vocabularies overlays any non-empty configured vocabulary list onto
// planning.DefaultVocabularies(), leaving the rest at their defaults.
func (c *Config) Vocabularies() planning.HeuristicVocabularies {
	v := planning.DefaultVocabularies()
	p := c.Planning
	overlay(&v.PlanningKeywords, p.PlanningKeywords)
	overlay(&v.ExplorationPatterns, p.ExplorationPatterns)
	overlay(&v.ComplexImplementationPhrases, p.ComplexImplementationPhrases)
	overlay(&v.MultiStepSequenceRegexes, p.MultiStepSequenceRegexes)
	overlay(&v.MultiStepIndicators, p.MultiStepIndicators)
	overlay(&v.ActionVerbs, p.ActionVerbs)
	overlay(&v.DeliverableNouns, p.DeliverableNouns)
	overlay(&v.UnrelatedDomainNouns, p.UnrelatedDomainNouns)
	overlay(&v.ModificationLanguage, p.ModificationLanguage)
	overlay(&v.PlanFeedbackWords, p.PlanFeedbackWords)
	return v
}

func overlay(dst *[]string, src []string) {
	if len(src) > 0 {
		*dst = src
	}
}

// RunLoopConfig converts the §6 guard-rail table into runloop.Config.
func (c *Config) RunLoopConfig() runloop.Config {
	return runloop.Config{
		MaxRetries:           c.RunLoop.MaxRetries,
		MaxEventsPerAttempt:  c.RunLoop.MaxEventsPerAttempt,
		AttemptTimeout:       time.Duration(c.RunLoop.AttemptTimeoutSec) * time.Second,
		MaxConsecutiveErrors: c.RunLoop.MaxConsecutiveErrors,
	}
}

// RateLimiter builds the RateLimiter pkg/runloop gates outbound LLM
// calls with, or nil if rate limiting is disabled.
func (c *Config) RateLimiter() (ratelimit.RateLimiter, error) {
	if !c.RateLimit.Enabled {
		return nil, nil
	}
	rules := make([]ratelimit.LimitRule, len(c.RateLimit.Limits))
	for i, r := range c.RateLimit.Limits {
		rules[i] = ratelimit.LimitRule{
			Type:   ratelimit.ParseLimitType(r.Type),
			Window: ratelimit.ParseTimeWindow(r.Window),
			Limit:  r.Limit,
		}
	}
	return ratelimit.NewRateLimiter(&ratelimit.Config{Enabled: true, Limits: rules}, ratelimit.NewMemoryStore())
}

// Observability builds the tracer and metrics pkg/runloop instruments
// against, or a no-op instance when observability is disabled.
func (c *Config) Observability(ctx context.Context) (*observability.Observability, error) {
	return observability.New(ctx, observability.Config{
		Enabled:      c.Observ.Enabled,
		Exporter:     c.Observ.Exporter,
		Endpoint:     c.Observ.Endpoint,
		ServiceName:  c.Observ.ServiceName,
		SamplingRate: c.Observ.SamplingRate,
	})
}

// RateLimitScope returns the configured rate-limit scope, defaulting to
// per-conversation (ScopeSession) as spec §6 implies by listing session
// before user.
func (c *Config) RateLimitScope() ratelimit.Scope {
	if c.RateLimit.Scope == "user" {
		return ratelimit.ScopeUser
	}
	return ratelimit.ScopeSession
}
