// Command agentcore is the CLI surface named in spec §6: boundary only,
// a `run` subcommand that loads a conversation, drives it through an
// interactive loop, and exits with {0, 1, 130} for success, failure, or
// user interrupt, plus a `serve` subcommand that exposes the same agent
// over HTTP.
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"

	agentcore "github.com/hectorcore/agentcore"
	"github.com/hectorcore/agentcore/pkg/config"
	"github.com/hectorcore/agentcore/pkg/ctxassembly"
	"github.com/hectorcore/agentcore/pkg/hoststore"
	"github.com/hectorcore/agentcore/pkg/llmclient"
	"github.com/hectorcore/agentcore/pkg/logger"
	"github.com/hectorcore/agentcore/pkg/observability"
	"github.com/hectorcore/agentcore/pkg/planning"
	"github.com/hectorcore/agentcore/pkg/ratelimit"
	"github.com/hectorcore/agentcore/pkg/runloop"
	"github.com/hectorcore/agentcore/pkg/server"
	"github.com/hectorcore/agentcore/pkg/tokencount"
	"github.com/hectorcore/agentcore/pkg/toolorch"
	"github.com/hectorcore/agentcore/pkg/turn"
)

// CLI is the kong root: a single `run` subcommand plus global flags, per
// spec §6 ("No flags beyond --save-session, --session-id, --input-file,
// --ui-theme, --tui"). `serve` is an enrichment beyond that boundary,
// exposing the same wiring over pkg/server's HTTP front door instead of
// stdin/stdout.
type CLI struct {
	Run     RunCmd           `cmd:"" default:"withargs" help:"Load an agent module and enter an interactive loop."`
	Serve   ServeCmd         `cmd:"" help:"Load an agent module and expose it over pkg/server's HTTP API."`
	Version kong.VersionFlag `name:"version" help:"Print version information and exit."`
}

// ServeCmd implements `agentcore serve <agent-module>`.
type ServeCmd struct {
	AgentModule string `arg:"" help:"Agent module to load (its exported root agent is discovered and run)."`
	Addr        string `name:"addr" help:"Override the configured server.addr."`
}

func (c *ServeCmd) Run() error {
	ctx := context.Background()

	cfg, err := config.Load(os.Getenv("AGENTCORE_CONFIG"))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := config.LoadEnvFiles(); err != nil {
		return fmt.Errorf("load .env: %w", err)
	}

	sessionID := c.AgentModule + "-server"
	sm := turn.NewStateManager()
	agent, limiter, obs, cleanup, err := buildAgent(ctx, cfg, sm, sessionID)
	if err != nil {
		return err
	}
	defer cleanup()

	addr := c.Addr
	if addr == "" {
		addr = cfg.Server.Addr
	}

	lookup := func(conversationID string) (*runloop.Agent, error) {
		return agent, nil
	}

	srv := server.New(addr, lookup, limiter, obs)
	logger.GetLogger().Info("serving", "addr", addr, "agent_module", c.AgentModule)
	return srv.Start(ctx)
}

// RunCmd implements `agentcore run <agent-module>`.
type RunCmd struct {
	AgentModule string `arg:"" help:"Agent module to load (its exported root agent is discovered and run)."`

	SaveSession bool   `name:"save-session" help:"Persist the conversation's legacy state to the host store on exit."`
	SessionID   string `name:"session-id" help:"Resume a previously saved conversation by ID. Defaults to a generated ID."`
	InputFile   string `name:"input-file" type:"path" help:"Read the turn sequence from a file instead of stdin, one message per line."`
	UITheme     string `name:"ui-theme" default:"dark" help:"Cosmetic theme name for terminal output (dark, light)."`
	TUI         bool   `name:"tui" help:"Reserved for a richer terminal UI; currently runs the same line-oriented loop."`
}

func main() {
	var cli CLI
	parser := kong.Parse(&cli,
		kong.Name("agentcore"),
		kong.Description("Run an Agent Core conversation."),
		kong.Vars{"version": agentcore.GetVersion().String()},
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	err := parser.Run()
	select {
	case <-ctx.Done():
		os.Exit(130)
	default:
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "agentcore:", err)
		os.Exit(1)
	}
	os.Exit(0)
}

// Run wires the four Agent Core subsystems from pkg/config and drives
// one conversation to completion, per RunCmd's flags.
func (c *RunCmd) Run() error {
	ctx := context.Background()

	cfg, err := config.Load(os.Getenv("AGENTCORE_CONFIG"))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := config.LoadEnvFiles(); err != nil {
		return fmt.Errorf("load .env: %w", err)
	}

	sessionID := c.SessionID
	if sessionID == "" {
		sessionID = fmt.Sprintf("%s-%d", c.AgentModule, os.Getpid())
	}

	store, err := hoststore.Open(hoststorePath())
	if err != nil {
		return fmt.Errorf("open session store: %w", err)
	}
	defer store.Close()

	sm := turn.NewStateManager()
	if legacy, ok, err := store.Load(ctx, sessionID); err != nil {
		return fmt.Errorf("load session %s: %w", sessionID, err)
	} else if ok {
		if err := sm.SyncFromLegacyState(legacy); err != nil {
			return fmt.Errorf("restore session %s: %w", sessionID, err)
		}
		logger.GetLogger().Info("resumed session", "session_id", sessionID, "turns", len(sm.History()))
	}

	agent, _, _, cleanup, err := buildAgent(ctx, cfg, sm, sessionID)
	if err != nil {
		return err
	}
	defer cleanup()

	input, closeInput, err := c.inputSource()
	if err != nil {
		return err
	}
	defer closeInput()

	if err := c.loop(ctx, agent, input); err != nil {
		return err
	}

	if c.SaveSession {
		if err := store.Save(ctx, sessionID, sm.SnapshotToLegacyState()); err != nil {
			return fmt.Errorf("save session %s: %w", sessionID, err)
		}
	}
	return nil
}

// buildAgent constructs the Run Loop agent and its supporting
// subsystems (context assembly, planning, tool orchestration, rate
// limiting, observability) shared by `run` and `serve`. The returned
// cleanup func shuts down observability and must be deferred by the
// caller.
func buildAgent(ctx context.Context, cfg *config.Config, sm *turn.StateManager, sessionID string) (*runloop.Agent, ratelimit.RateLimiter, *observability.Observability, func(), error) {
	apiKey := os.Getenv(cfg.Model.APIKeyEnv)
	if apiKey == "" {
		return nil, nil, nil, nil, fmt.Errorf("environment variable %s is required for model %s", cfg.Model.APIKeyEnv, cfg.Model.Name)
	}
	transport, err := llmclient.NewGenaiTransport(ctx, llmclient.GenaiConfig{APIKey: apiKey, Model: cfg.Model.Name})
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("build transport: %w", err)
	}

	counter := tokencount.New(cfg.Model.Name)
	contextMgr := ctxassembly.New(counter, cfg.ContextLimits(), ctxassembly.DefaultSummaryLimits())
	planningMgr := planning.New(cfg.Planning.Enabled, cfg.Vocabularies())

	toolSource := toolorch.NewLocalToolSource()
	if err := toolSource.Register(toolorch.NewShellTool(cfg.Shell.DefaultSafeCommands, cfg.Shell.RequireShellApproval)); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("register shell tool: %w", err)
	}
	orchestrator := toolorch.New(toolSource, contextMgr)

	agent := runloop.New(cfg.Model.Name, sm, contextMgr, planningMgr, orchestrator, transport, counter, cfg.RunLoopConfig())

	limiter, err := cfg.RateLimiter()
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("build rate limiter: %w", err)
	}
	if limiter != nil {
		agent.SetRateLimiter(limiter, cfg.RateLimitScope(), sessionID)
	}

	obs, err := cfg.Observability(ctx)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("build observability: %w", err)
	}
	agent.SetObservability(obs)

	cleanup := func() { obs.Shutdown(context.Background()) }
	return agent, limiter, obs, cleanup, nil
}

func (c *RunCmd) inputSource() (*bufio.Scanner, func() error, error) {
	if c.InputFile == "" {
		return bufio.NewScanner(os.Stdin), func() error { return nil }, nil
	}
	f, err := os.Open(c.InputFile)
	if err != nil {
		return nil, nil, fmt.Errorf("open input file: %w", err)
	}
	return bufio.NewScanner(f), f.Close, nil
}

// loop reads one message per line from input and drives it through the
// agent's Run Loop, printing each event to stdout as it's yielded.
func (c *RunCmd) loop(ctx context.Context, agent *runloop.Agent, input *bufio.Scanner) error {
	for input.Scan() {
		message := strings.TrimSpace(input.Text())
		if message == "" {
			continue
		}
		if err := c.runTurn(ctx, agent, message); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	if err := input.Err(); err != nil && err != io.EOF {
		return fmt.Errorf("read input: %w", err)
	}
	return nil
}

func (c *RunCmd) runTurn(ctx context.Context, agent *runloop.Agent, message string) error {
	for event, err := range agent.ProcessMessage(ctx, message) {
		if err != nil {
			return err
		}
		printEvent(event)
	}
	return nil
}

func printEvent(e runloop.Event) {
	switch e.Kind {
	case runloop.EventText:
		fmt.Println(e.Text)
	case runloop.EventToolCall:
		fmt.Printf("  -> %s(%v)\n", e.ToolName, e.ToolArgs)
	case runloop.EventToolResult:
		fmt.Printf("  <- %s: %s\n", e.ToolResult.Name, e.ToolResult.Status)
	case runloop.EventRetrying:
		fmt.Fprintf(os.Stderr, "retrying (attempt %d): %v\n", e.RetryCount, e.Err)
	case runloop.EventError:
		fmt.Fprintf(os.Stderr, "error: %v\n", e.Err)
	}
}

func hoststorePath() string {
	if path := os.Getenv("AGENTCORE_SESSION_DB"); path != "" {
		return path
	}
	return "agentcore_sessions.db"
}
