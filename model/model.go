// Package model defines the provider-agnostic model invocation contract and
// the gateway that dispatches a bound ModelSpec to the matching provider
// adapter. Adapters translate the normalized request into the vendor's call
// shape and fold the vendor response (free text, tool call requests, token
// usage) back into the shared Response type.
package model

import (
	"context"

	"github.com/hupe1980/agentforge/core"
)

// ToolDefinition declaratively exposes a callable function to the model.
// Parameters is a JSON Schema object (draft agnostic, minimal subset expected).
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Request captures the normalized model input assembled by the engine.
type Request struct {
	ModelName   string           `json:"model_name"`
	Temperature float64          `json:"temperature"`
	MaxTokens   int              `json:"max_tokens,omitempty"` // 0 = provider default
	TopP        *float64         `json:"top_p,omitempty"`
	Messages    []core.Message   `json:"messages"`
	Tools       []ToolDefinition `json:"tools,omitempty"`
	Stream      bool             `json:"stream,omitempty"`
}

// Response is the normalized model output: free text, tool call requests the
// model made in the same turn (possibly several), and token accounting.
type Response struct {
	Content      string          `json:"content"`
	ToolCalls    []core.ToolCall `json:"tool_calls,omitempty"`
	Usage        core.TokenUsage `json:"token_usage"`
	FinishReason string          `json:"finish_reason,omitempty"`
}

// Info contains metadata about a model adapter implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"`
	SupportsTools bool   `json:"supports_tools"`
}

// Model is the minimal interface a provider adapter must satisfy. Invoke
// performs exactly one inference call; it never retries — retry policy, if
// any, belongs to callers above the gateway.
type Model interface {
	Invoke(ctx context.Context, req Request) (*Response, error)

	// Info returns information about the model implementation.
	Info() Info
}
