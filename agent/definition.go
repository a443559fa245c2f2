// Package agent defines the declarative agent configuration model: model and
// tool specifications, the validated immutable Definition compiled from a
// Config, and the in-memory registry that stores definitions by id.
package agent

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hupe1980/agentforge/core"
)

// Provider identifies a model-serving backend reachable through the gateway.
type Provider string

const (
	// ProviderOpenAI targets the OpenAI Chat Completions API.
	ProviderOpenAI Provider = "openai"
	// ProviderAnthropic targets the Anthropic Messages API.
	ProviderAnthropic Provider = "anthropic"
	// ProviderBedrock targets the AWS Bedrock Converse API.
	ProviderBedrock Provider = "bedrock"
)

// Known reports whether p is a supported provider.
func (p Provider) Known() bool {
	switch p {
	case ProviderOpenAI, ProviderAnthropic, ProviderBedrock:
		return true
	default:
		return false
	}
}

// ModelSpec configures the language model bound to a definition. Immutable
// once the definition is created.
type ModelSpec struct {
	Provider    Provider `json:"provider"`
	ModelName   string   `json:"model_name"`
	Temperature float64  `json:"temperature"`
	MaxTokens   *int     `json:"max_tokens,omitempty"`
	TopP        *float64 `json:"top_p,omitempty"`
}

// Validate checks provider and sampling parameter ranges.
func (s ModelSpec) Validate() error {
	if !s.Provider.Known() {
		return core.NewValidationError("model.provider", fmt.Sprintf("unknown provider %q", s.Provider))
	}
	if s.ModelName == "" {
		return core.NewValidationError("model.model_name", "model name is required")
	}
	if s.Temperature < 0 || s.Temperature > 2 {
		return core.NewValidationError("model.temperature", "temperature must be within [0, 2]")
	}
	if s.MaxTokens != nil && *s.MaxTokens <= 0 {
		return core.NewValidationError("model.max_tokens", "max_tokens must be greater than zero")
	}
	if s.TopP != nil && (*s.TopP < 0 || *s.TopP > 1) {
		return core.NewValidationError("model.top_p", "top_p must be within [0, 1]")
	}
	return nil
}

// ParamSpec describes a single tool parameter.
type ParamSpec struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

// ToolSpec declares a tool exposed to an agent: the model-facing name and
// description, the capability key resolved against the tool registry, and the
// parameter schema the arguments are validated against.
type ToolSpec struct {
	Name         string               `json:"name"`
	Description  string               `json:"description"`
	FunctionName string               `json:"function_name"`
	Parameters   map[string]ParamSpec `json:"parameters,omitempty"`
	Required     []string             `json:"required_params,omitempty"`
}

// Validate checks that the tool declaration is complete and that every
// required parameter is declared in the parameter schema.
func (s ToolSpec) Validate() error {
	if s.Name == "" {
		return core.NewValidationError("tool.name", "tool name is required")
	}
	if s.FunctionName == "" {
		return core.NewValidationError("tool.function_name", fmt.Sprintf("tool %q has no function name", s.Name))
	}
	for _, req := range s.Required {
		if _, ok := s.Parameters[req]; !ok {
			return core.NewValidationError(
				"tool.required_params",
				fmt.Sprintf("tool %q requires parameter %q which is not declared in the schema", s.Name, req),
			)
		}
	}
	return nil
}

// Schema renders the spec as the minimal JSON-Schema object shape shared with
// the model gateway and the tool registry.
func (s ToolSpec) Schema() map[string]any {
	properties := make(map[string]any, len(s.Parameters))
	for name, p := range s.Parameters {
		prop := map[string]any{"type": p.Type}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		properties[name] = prop
	}
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(s.Required) > 0 {
		required := make([]string, len(s.Required))
		copy(required, s.Required)
		schema["required"] = required
	}
	return schema
}

// DefaultMaxIterations bounds the reasoning loop when a config leaves
// MaxIterations unset.
const DefaultMaxIterations = 10

// Config is the declarative input for creating an agent definition.
type Config struct {
	Name          string     `json:"name"`
	Description   string     `json:"description"`
	Instructions  string     `json:"instructions"`
	Model         ModelSpec  `json:"model"`
	Tools         []ToolSpec `json:"tools,omitempty"`
	MaxIterations int        `json:"max_iterations,omitempty"`
	MemoryEnabled bool       `json:"memory_enabled"`
	Streaming     bool       `json:"streaming"`
}

// Validate checks the full configuration. A zero MaxIterations is accepted and
// replaced with DefaultMaxIterations at definition time; negative values are
// rejected.
func (c Config) Validate() error {
	if c.Name == "" {
		return core.NewValidationError("name", "agent name is required")
	}
	if err := c.Model.Validate(); err != nil {
		return err
	}
	if c.MaxIterations < 0 {
		return core.NewValidationError("max_iterations", "max_iterations must be at least 1")
	}
	seen := make(map[string]struct{}, len(c.Tools))
	for _, t := range c.Tools {
		if err := t.Validate(); err != nil {
			return err
		}
		if _, dup := seen[t.Name]; dup {
			return core.NewValidationError("tools", fmt.Sprintf("duplicate tool name %q", t.Name))
		}
		seen[t.Name] = struct{}{}
	}
	return nil
}

// Definition is the immutable, validated execution plan compiled from a
// Config. Updates require delete and recreate; the struct is never mutated
// after creation.
type Definition struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Description   string     `json:"description"`
	Instructions  string     `json:"instructions"`
	Model         ModelSpec  `json:"model"`
	Tools         []ToolSpec `json:"tools,omitempty"`
	MaxIterations int        `json:"max_iterations"`
	MemoryEnabled bool       `json:"memory_enabled"`
	Streaming     bool       `json:"streaming"`
	CreatedAt     time.Time  `json:"created_at"`
}

// NewDefinition validates cfg and compiles it into a Definition with a fresh
// unique id.
func NewDefinition(cfg Config) (*Definition, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	maxIterations := cfg.MaxIterations
	if maxIterations == 0 {
		maxIterations = DefaultMaxIterations
	}

	tools := make([]ToolSpec, len(cfg.Tools))
	copy(tools, cfg.Tools)

	return &Definition{
		ID:            uuid.NewString(),
		Name:          cfg.Name,
		Description:   cfg.Description,
		Instructions:  cfg.Instructions,
		Model:         cfg.Model,
		Tools:         tools,
		MaxIterations: maxIterations,
		MemoryEnabled: cfg.MemoryEnabled,
		Streaming:     cfg.Streaming,
		CreatedAt:     time.Now(),
	}, nil
}

// SystemPrompt assembles the system instruction for a run: identity,
// caller instructions, available tool names and the iteration budget.
func (d *Definition) SystemPrompt() string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s.", d.Name)
	if d.Description != "" {
		b.WriteString(" ")
		b.WriteString(d.Description)
	}
	if d.Instructions != "" {
		b.WriteString("\n\n")
		b.WriteString(d.Instructions)
	}
	if len(d.Tools) > 0 {
		names := make([]string, len(d.Tools))
		for i, t := range d.Tools {
			names[i] = t.Name
		}
		fmt.Fprintf(&b, "\n\nYou have access to the following tools: %s.", strings.Join(names, ", "))
		b.WriteString(" Use tools when appropriate and wait for each result before continuing.")
	}
	fmt.Fprintf(&b, "\n\nMaximum iterations allowed: %d.", d.MaxIterations)
	return b.String()
}

// ToolSpecByName returns the tool spec with the given model-facing name.
func (d *Definition) ToolSpecByName(name string) (ToolSpec, bool) {
	for _, t := range d.Tools {
		if t.Name == name {
			return t, true
		}
	}
	return ToolSpec{}, false
}

// Clone returns a deep copy of the definition.
func (d *Definition) Clone() *Definition {
	clone := *d
	clone.Tools = make([]ToolSpec, len(d.Tools))
	for i, t := range d.Tools {
		ct := t
		if t.Parameters != nil {
			ct.Parameters = make(map[string]ParamSpec, len(t.Parameters))
			for k, v := range t.Parameters {
				ct.Parameters[k] = v
			}
		}
		if t.Required != nil {
			ct.Required = append([]string(nil), t.Required...)
		}
		clone.Tools[i] = ct
	}
	if d.Model.MaxTokens != nil {
		v := *d.Model.MaxTokens
		clone.Model.MaxTokens = &v
	}
	if d.Model.TopP != nil {
		v := *d.Model.TopP
		clone.Model.TopP = &v
	}
	return &clone
}
