// Package planning implements PlanningManager (spec §4.3): a sub-state
// machine that lets the user force the LLM to emit a step-by-step plan
// and explicitly approve it before any tools execute.
package planning

import (
	"fmt"
	"sync"
)

// SubState is PlanningManager's current mode.
type SubState int

const (
	Idle SubState = iota
	PlanGenerationPending
	AwaitingApproval
)

func (s SubState) String() string {
	switch s {
	case Idle:
		return "idle"
	case PlanGenerationPending:
		return "plan_generation_pending"
	case AwaitingApproval:
		return "awaiting_approval"
	default:
		return "unknown"
	}
}

// DecisionKind distinguishes the three outcomes PlanningManager can hand
// back to the Run Loop, replacing the source's exception-as-control-flow
// with a result type (spec §9).
type DecisionKind int

const (
	PassThrough DecisionKind = iota
	SynthesizeResponse
	RewriteRequest
)

// Decision is PlanningManager's verdict on what the Run Loop should do
// next, for either an inbound user message or an LLM response.
type Decision struct {
	Kind DecisionKind

	// Set when Kind == SynthesizeResponse: the text to return to the user
	// without calling the LLM.
	Text string

	// Set when Kind == RewriteRequest: the single message that should
	// replace the outgoing request's contents.
	RewrittenMessage string

	// ClearTools is true when the outgoing tool list must be emptied
	// (plan-generation turns never call tools).
	ClearTools bool

	// ApprovedPlan is set on the turn a plan is approved, so the Run Loop
	// can record it in the turn's system messages.
	ApprovedPlan string
}

const approvalPrompt = "Does this plan look correct? Please type 'approve' to proceed, or provide feedback to revise the plan."

const planGenerationApologyText = "I wasn't able to produce a plan for that request. Could you rephrase it?"

// PlanningManager owns PlanningState; the Run Loop consults it before and
// after every LLM call.
type PlanningManager struct {
	mu      sync.Mutex
	enabled bool
	vocab   HeuristicVocabularies

	state       SubState
	pendingPlan string
}

// New constructs a PlanningManager. When enabled is false, HandleUserMessage
// always returns PassThrough (the master switch, spec §6
// enable_interactive_planning).
func New(enabled bool, vocab HeuristicVocabularies) *PlanningManager {
	return &PlanningManager{enabled: enabled, vocab: vocab, state: Idle}
}

// State reports the current sub-state.
func (pm *PlanningManager) State() SubState {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	return pm.state
}

// IsPlanGenerationTurn reports whether the request about to be sent to the
// LLM should be a plan-generation request.
func (pm *PlanningManager) IsPlanGenerationTurn() bool {
	return pm.State() == PlanGenerationPending
}

// HandleUserMessage is called at the start of a turn, before context
// assembly. From idle it may trigger planning; from awaiting_approval it
// classifies the message as approval, feedback, or an unrelated request.
func (pm *PlanningManager) HandleUserMessage(message, retrievedContext string) Decision {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if !pm.enabled {
		return Decision{Kind: PassThrough}
	}

	switch pm.state {
	case Idle:
		if !shouldTrigger(message, pm.vocab) {
			return Decision{Kind: PassThrough}
		}
		pm.state = PlanGenerationPending
		return Decision{
			Kind:             RewriteRequest,
			RewrittenMessage: buildPlanGenerationPrompt(message, retrievedContext),
			ClearTools:       true,
		}

	case AwaitingApproval:
		switch classifyApproval(message, pm.vocab) {
		case approvalApprove:
			plan := pm.pendingPlan
			pm.state = Idle
			pm.pendingPlan = ""
			return Decision{
				Kind:             RewriteRequest,
				RewrittenMessage: buildExecutionPrompt(plan),
				ApprovedPlan:     plan,
			}
		case approvalFeedback:
			pm.state = Idle
			pm.pendingPlan = ""
			return Decision{Kind: SynthesizeResponse, Text: "Thanks, I've noted your feedback on the plan."}
		default:
			pm.state = Idle
			pm.pendingPlan = ""
			return Decision{Kind: PassThrough}
		}

	default:
		// PlanGenerationPending is an internal, single-turn state; a new
		// user message should never arrive while in it.
		return Decision{Kind: PassThrough}
	}
}

// HandleModelResponse is called only when IsPlanGenerationTurn() was true
// for the request that produced responseText.
func (pm *PlanningManager) HandleModelResponse(responseText string) Decision {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if responseText == "" {
		pm.state = Idle
		return Decision{Kind: SynthesizeResponse, Text: planGenerationApologyText}
	}

	pm.pendingPlan = responseText
	pm.state = AwaitingApproval
	return Decision{Kind: SynthesizeResponse, Text: responseText + "\n\n" + approvalPrompt}
}

func buildPlanGenerationPrompt(userRequest, retrievedContext string) string {
	if retrievedContext == "" {
		return fmt.Sprintf("Create a detailed, step-by-step plan to accomplish the following request. Do not take any actions yet, only describe the plan.\n\nRequest: %s", userRequest)
	}
	return fmt.Sprintf("Create a detailed, step-by-step plan to accomplish the following request. Do not take any actions yet, only describe the plan.\n\nRequest: %s\n\nRelevant context:\n%s", userRequest, retrievedContext)
}

func buildExecutionPrompt(approvedPlan string) string {
	return fmt.Sprintf("The following plan has been approved. Execute it now, step by step, using the available tools.\n\nApproved plan:\n%s", approvedPlan)
}
