package toolorch

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hectorcore/agentcore/pkg/agentcore"
)

// Status is a ToolExecution's lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// ToolExecution tracks one invocation through dispatch, retry, and
// terminal outcome (spec §4.6).
type ToolExecution struct {
	ID        string
	Name      string
	Args      map[string]interface{}
	DependsOn []string

	Status        Status
	Result        map[string]interface{}
	Err           error
	ExecutionTime time.Duration
	RetryCount    int
	StartedAt     time.Time
}

const defaultMaxRetries = 3

// Orchestrator dispatches tool invocations against a ToolSource, applies
// classified-error recovery, and records every terminal result into a
// ResultRecorder.
type Orchestrator struct {
	source     ToolSource
	recorder   ResultRecorder
	maxRetries int

	mu         sync.Mutex
	executions map[string]*ToolExecution
}

// New constructs an Orchestrator. recorder may be nil, in which case
// results are not recorded (useful in tests).
func New(source ToolSource, recorder ResultRecorder) *Orchestrator {
	return &Orchestrator{
		source:     source,
		recorder:   recorder,
		maxRetries: defaultMaxRetries,
		executions: make(map[string]*ToolExecution),
	}
}

// Invocation is one requested (name, args) pair submitted to ExecuteSequence
// or ExecuteParallel.
type Invocation struct {
	ID   string
	Name string
	Args map[string]interface{}
}

// ExecuteSequence runs each invocation in order; each depends on all
// prior invocations completing (spec §4.6).
func (o *Orchestrator) ExecuteSequence(ctx context.Context, turnNumber int, invocations []Invocation) []*ToolExecution {
	results := make([]*ToolExecution, 0, len(invocations))
	var deps []string
	for _, inv := range invocations {
		exec := o.execute(ctx, turnNumber, inv, deps)
		results = append(results, exec)
		deps = append(deps, inv.ID)
	}
	return results
}

// ExecuteParallel runs every invocation concurrently with no inter-item
// dependencies. The returned slice preserves submission order regardless
// of completion order (spec §5 ordering guarantee).
func (o *Orchestrator) ExecuteParallel(ctx context.Context, turnNumber int, invocations []Invocation) []*ToolExecution {
	results := make([]*ToolExecution, len(invocations))
	var wg sync.WaitGroup
	for i, inv := range invocations {
		wg.Add(1)
		go func(idx int, inv Invocation) {
			defer wg.Done()
			results[idx] = o.execute(ctx, turnNumber, inv, nil)
		}(i, inv)
	}
	wg.Wait()
	return results
}

// WaitForDependencies polls until every named execution reaches a
// terminal state (completed or failed), sleeping briefly between polls.
// A failed dependency does not cancel the caller; it simply returns.
func (o *Orchestrator) WaitForDependencies(ctx context.Context, ids []string) {
	for {
		if o.allTerminal(ids) {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func (o *Orchestrator) allTerminal(ids []string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, id := range ids {
		exec, ok := o.executions[id]
		if !ok {
			continue
		}
		if exec.Status != StatusCompleted && exec.Status != StatusFailed {
			return false
		}
	}
	return true
}

func (o *Orchestrator) execute(ctx context.Context, turnNumber int, inv Invocation, dependsOn []string) *ToolExecution {
	exec := &ToolExecution{
		ID:        inv.ID,
		Name:      inv.Name,
		Args:      inv.Args,
		DependsOn: dependsOn,
		Status:    StatusPending,
	}
	o.mu.Lock()
	o.executions[inv.ID] = exec
	o.mu.Unlock()

	if len(dependsOn) > 0 {
		o.WaitForDependencies(ctx, dependsOn)
	}

	tool, ok := findTool(o.source, inv.Name)
	if !ok {
		exec.Status = StatusFailed
		exec.Err = fmt.Errorf("tool %q not found", inv.Name)
		o.record(turnNumber, exec)
		return exec
	}

	exec.Status = StatusRunning
	exec.StartedAt = time.Now()

	origArgs := inv.Args
	args := inv.Args
	toolCtx := NewToolContext()

	for {
		start := time.Now()
		result, err := tool.Invoke(ctx, args, toolCtx)
		exec.ExecutionTime += time.Since(start)

		if err == nil {
			exec.Status = StatusCompleted
			exec.Result = result
			exec.Err = nil
			o.record(turnNumber, exec)
			return exec
		}

		if exec.RetryCount >= o.maxRetries {
			exec.Status = StatusFailed
			exec.Err = err
			o.record(turnNumber, exec)
			return exec
		}

		class := classifyError(err)
		recoveredArgs, recoverable := recoverArgs(class, args, origArgs, exec.RetryCount)
		if !recoverable {
			exec.Status = StatusFailed
			exec.Err = err
			o.record(turnNumber, exec)
			return exec
		}

		if class == agentcore.ToolErrorResourceExhausted {
			sleepResourceBackoff(ctx, exec.RetryCount)
		}

		exec.RetryCount++
		exec.Err = err
		args = recoveredArgs
	}
}

func (o *Orchestrator) record(turnNumber int, exec *ToolExecution) {
	if o.recorder == nil {
		return
	}
	isError := exec.Status == StatusFailed
	var full interface{} = exec.Result
	if isError {
		full = map[string]interface{}{"status": "error", "message": exec.Err.Error()}
	}
	summary := exec.Name + " " + string(exec.Status)
	o.recorder.AddToolResult(exec.Name, full, summary, turnNumber, isError)
}

func sleepResourceBackoff(ctx context.Context, retryCount int) {
	d := time.Duration(1<<uint(retryCount)) * time.Second
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

// classifyError maps a raised tool error's message text into a recovery
// bucket (spec §4.6).
func classifyError(err error) agentcore.ToolErrorClass {
	if err == nil {
		return agentcore.ToolErrorUnknown
	}

	var class agentcore.ToolErrorClass
	var rerr *agentcore.ToolRecoverableError
	if ok := asRecoverable(err, &rerr); ok {
		return rerr.Class
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "not found") || strings.Contains(msg, "filenotfound") || strings.Contains(msg, "no such file"):
		class = agentcore.ToolErrorFileNotFound
	case strings.Contains(msg, "permission denied"):
		class = agentcore.ToolErrorPermissionDenied
	case strings.Contains(msg, "timed out") || strings.Contains(msg, "timeout"):
		class = agentcore.ToolErrorTimeout
	case strings.Contains(msg, "resource") && (strings.Contains(msg, "exhausted") || strings.Contains(msg, "limit")):
		class = agentcore.ToolErrorResourceExhausted
	case strings.Contains(msg, "exit code") || strings.Contains(msg, "command failed") || strings.Contains(msg, "non-zero"):
		class = agentcore.ToolErrorCommandFailed
	default:
		class = agentcore.ToolErrorUnknown
	}
	return class
}

func asRecoverable(err error, target **agentcore.ToolRecoverableError) bool {
	if rerr, ok := err.(*agentcore.ToolRecoverableError); ok {
		*target = rerr
		return true
	}
	return false
}
