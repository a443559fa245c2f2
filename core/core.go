// Package core contains the shared data types exchanged between the agent
// registry, model gateway, tool registry, session store and execution engine.
// Keeping these in one dependency-free package lets every subsystem speak the
// same message and usage vocabulary without import cycles.
package core

import (
	"encoding/json"
	"time"
)

// Role identifies the author of a conversation message.
type Role string

const (
	// RoleSystem marks instruction messages injected at the start of a run.
	RoleSystem Role = "system"
	// RoleUser marks caller supplied input messages.
	RoleUser Role = "user"
	// RoleAssistant marks model generated messages (text and/or tool calls).
	RoleAssistant Role = "assistant"
	// RoleTool marks tool observations fed back into the model context.
	RoleTool Role = "tool"
)

// ToolCall is a structured request, emitted by a model, to invoke a named
// capability with JSON encoded arguments. Unified across providers so
// downstream logic does not need per-provider branching.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// Message is a single entry in a conversation transcript. Content carries the
// free text; ToolCalls is populated on assistant messages that request tool
// execution; ToolCallID/ToolName associate a tool observation with the call
// that produced it.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolName   string     `json:"tool_name,omitempty"`
	Timestamp  time.Time  `json:"timestamp,omitempty"`
}

// NewSystemMessage creates a system instruction message.
func NewSystemMessage(text string) Message {
	return Message{Role: RoleSystem, Content: text, Timestamp: time.Now()}
}

// NewUserMessage creates a user input message.
func NewUserMessage(text string) Message {
	return Message{Role: RoleUser, Content: text, Timestamp: time.Now()}
}

// NewAssistantMessage creates an assistant message carrying free text and any
// tool calls the model requested in the same turn.
func NewAssistantMessage(text string, toolCalls []ToolCall) Message {
	return Message{Role: RoleAssistant, Content: text, ToolCalls: toolCalls, Timestamp: time.Now()}
}

// NewToolMessage creates a tool observation message for the given call.
func NewToolMessage(toolCallID, toolName, content string) Message {
	return Message{
		Role:       RoleTool,
		Content:    content,
		ToolCallID: toolCallID,
		ToolName:   toolName,
		Timestamp:  time.Now(),
	}
}

// Clone returns a deep copy of the message. Tool call argument payloads are
// copied so callers cannot mutate shared transcript state.
func (m Message) Clone() Message {
	clone := m
	if len(m.ToolCalls) > 0 {
		clone.ToolCalls = make([]ToolCall, len(m.ToolCalls))
		for i, tc := range m.ToolCalls {
			clone.ToolCalls[i] = tc
			if tc.Arguments != nil {
				clone.ToolCalls[i].Arguments = append(json.RawMessage(nil), tc.Arguments...)
			}
		}
	}
	return clone
}

// TokenUsage accounts prompt and completion tokens consumed by model calls.
type TokenUsage struct {
	InputTokens  int `json:"input"`
	OutputTokens int `json:"output"`
}

// Add accumulates another usage sample into u.
func (u *TokenUsage) Add(other TokenUsage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
}

// Total returns the combined token count.
func (u TokenUsage) Total() int { return u.InputTokens + u.OutputTokens }
