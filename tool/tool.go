// Package tool implements the function / tool calling subsystem that lets
// agents invoke structured capabilities (computations, file access, HTTP,
// shell commands) with schema validated arguments, guarded execution and
// consistent error handling.
package tool

import (
	"context"
	"fmt"
)

// Tool defines the interface for extending agent capabilities with external functions.
//
// Tools can be registered with the registry to enable function calling,
// allowing agents to perform actions beyond text generation.
//
// Tool implementations should:
//   - Provide clear, descriptive names and descriptions
//   - Define proper JSON schema for parameters
//   - Handle errors gracefully
//   - Be thread-safe if used concurrently
type Tool interface {
	// Name returns the unique identifier for this tool.
	// Names should be descriptive and follow function naming conventions (snake_case recommended).
	Name() string

	// Description returns a human-readable description of what this tool does.
	// This description is provided to the LLM to help it understand when and how to use the tool.
	Description() string

	// Parameters returns a JSON schema describing the expected input format.
	// This schema is used for parameter validation and LLM function calling.
	Parameters() map[string]any

	// Call executes the tool with already-decoded arguments. Arguments are
	// validated against the tool's schema before the underlying capability runs.
	Call(ctx context.Context, args map[string]any) (any, error)
}

// Capability is the pure function contract behind a tool: validated arguments
// in, output or error out. Modeling capabilities as plain functions keeps each
// one independently unit-testable without constructing a full agent.
type Capability func(ctx context.Context, args map[string]any) (any, error)

// ErrorKind categorizes tool failures for the engine's recovery policy.
type ErrorKind string

const (
	// ErrInvalidArguments means arguments failed schema validation; the
	// capability was never invoked.
	ErrInvalidArguments ErrorKind = "invalid_arguments"
	// ErrUnknownTool means no tool with the requested name is registered.
	ErrUnknownTool ErrorKind = "unknown_tool"
	// ErrExecutionFailed means the capability ran and failed (error, panic,
	// non-zero exit).
	ErrExecutionFailed ErrorKind = "execution_failed"
	// ErrTimeout means the capability exceeded its execution deadline.
	ErrTimeout ErrorKind = "timeout"
)

// ToolError represents errors that occur during tool lookup or execution.
// Tool errors never abort an engine run; they are surfaced to the model as
// observations so the model can recover.
type ToolError struct {
	Tool    string    `json:"tool"`              // Name of the tool that failed
	Kind    ErrorKind `json:"kind"`              // Error kind for categorization
	Message string    `json:"message"`           // Error message
	Details any       `json:"details,omitempty"` // Additional error details
}

func (e *ToolError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Kind, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool string, kind ErrorKind, message string) *ToolError {
	return &ToolError{Tool: tool, Kind: kind, Message: message}
}
