// Package agentcore defines the shared message, part, and error vocabulary
// used across the run loop, context assembler, planning manager, and tool
// orchestrator.
package agentcore

import "time"

// Role identifies who produced a Message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Part is one piece of a Message's content. It replaces the duck-typed
// "probe the response object for attributes" pattern with a closed sum
// type: exactly one of Text, Thought, or FunctionCall is populated,
// mirroring which constructor built the value.
type Part struct {
	kind         partKind
	text         string
	functionName string
	functionArgs map[string]interface{}
	functionID   string
}

type partKind int

const (
	partKindText partKind = iota
	partKindThought
	partKindFunctionCall
)

// TextPart builds a Part carrying plain response text.
func TextPart(text string) Part {
	return Part{kind: partKindText, text: text}
}

// ThoughtPart builds a Part carrying transport-supplied internal reasoning.
func ThoughtPart(text string) Part {
	return Part{kind: partKindThought, text: text}
}

// FunctionCallPart builds a Part carrying a tool-invocation intent.
func FunctionCallPart(name string, args map[string]interface{}, id string) Part {
	return Part{kind: partKindFunctionCall, functionName: name, functionArgs: args, functionID: id}
}

// IsText reports whether this part carries response text.
func (p Part) IsText() bool { return p.kind == partKindText }

// IsThought reports whether this part carries a thought summary.
func (p Part) IsThought() bool { return p.kind == partKindThought }

// IsFunctionCall reports whether this part carries a tool-invocation intent.
func (p Part) IsFunctionCall() bool { return p.kind == partKindFunctionCall }

// Text returns the text payload for a text or thought part ("" otherwise).
func (p Part) Text() string { return p.text }

// FunctionCall returns the (name, args, id) of a function-call part.
// Callers must check IsFunctionCall first.
func (p Part) FunctionCall() (name string, args map[string]interface{}, id string) {
	return p.functionName, p.functionArgs, p.functionID
}

// Message is a single role-tagged entry in a conversation, composed of
// zero or more Parts.
type Message struct {
	Role      Role
	Parts     []Part
	Timestamp time.Time
}

// Text concatenates every text part in the message (thoughts excluded).
func (m Message) Text() string {
	var out string
	for _, p := range m.Parts {
		if p.IsText() {
			out += p.text
		}
	}
	return out
}

// FunctionCalls returns every function-call part in the message, in order.
func (m Message) FunctionCalls() []Part {
	var out []Part
	for _, p := range m.Parts {
		if p.IsFunctionCall() {
			out = append(out, p)
		}
	}
	return out
}

// NewUserMessage builds a single-text-part user message.
func NewUserMessage(text string) Message {
	return Message{Role: RoleUser, Parts: []Part{TextPart(text)}, Timestamp: time.Now()}
}

// NewSystemMessage builds a single-text-part system message.
func NewSystemMessage(text string) Message {
	return Message{Role: RoleSystem, Parts: []Part{TextPart(text)}, Timestamp: time.Now()}
}

// UsageMetadata mirrors the LLM transport's reported token accounting.
type UsageMetadata struct {
	PromptTokenCount     int
	CandidatesTokenCount int
	TotalTokenCount      int
	ThoughtsTokenCount   int
}

// Response is the transport-agnostic result of one LLM call.
type Response struct {
	Parts []Part
	Usage *UsageMetadata
	Raw   interface{}
}

// HasFunctionCalls reports whether any part of the response requests a tool.
func (r *Response) HasFunctionCalls() bool {
	if r == nil {
		return false
	}
	for _, p := range r.Parts {
		if p.IsFunctionCall() {
			return true
		}
	}
	return false
}

// Text concatenates every text part of the response.
func (r *Response) Text() string {
	if r == nil {
		return ""
	}
	var out string
	for _, p := range r.Parts {
		if p.IsText() {
			out += p.text
		}
	}
	return out
}

// ToolDefinition describes a tool as exposed to the LLM transport's
// function-calling configuration.
type ToolDefinition struct {
	Name        string
	Description string
	Schema      map[string]interface{}
}
