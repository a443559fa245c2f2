package agent

import (
	"testing"

	"github.com/hupe1980/agentforge/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newValidConfig() Config {
	return Config{
		Name:         "TestAgent",
		Description:  "An agent used in tests",
		Instructions: "Answer concisely.",
		Model: ModelSpec{
			Provider:  ProviderOpenAI,
			ModelName: "gpt-4o-mini",
		},
	}
}

func TestModelSpec_Validate(t *testing.T) {
	spec := ModelSpec{Provider: ProviderAnthropic, ModelName: "claude-3-5-sonnet-20241022"}
	assert.NoError(t, spec.Validate())

	spec.Provider = "cohere"
	assert.Error(t, spec.Validate())

	spec = ModelSpec{Provider: ProviderOpenAI}
	assert.Error(t, spec.Validate())

	spec = ModelSpec{Provider: ProviderOpenAI, ModelName: "gpt-4o-mini", Temperature: 2.5}
	assert.Error(t, spec.Validate())

	topP := 1.5
	spec = ModelSpec{Provider: ProviderOpenAI, ModelName: "gpt-4o-mini", TopP: &topP}
	assert.Error(t, spec.Validate())
}

func TestToolSpec_Validate(t *testing.T) {
	spec := ToolSpec{
		Name:         "calculator",
		Description:  "Evaluates arithmetic",
		FunctionName: "calculate",
		Parameters: map[string]ParamSpec{
			"expression": {Type: "string", Description: "Expression to evaluate"},
		},
		Required: []string{"expression"},
	}
	assert.NoError(t, spec.Validate())

	// Required field must exist in parameters.
	spec.Required = []string{"missing"}
	err := spec.Validate()
	require.Error(t, err)
	assert.True(t, core.IsValidation(err))

	// Name and function name are mandatory.
	assert.Error(t, ToolSpec{FunctionName: "calculate"}.Validate())
	assert.Error(t, ToolSpec{Name: "calculator"}.Validate())
}

func TestToolSpec_Schema(t *testing.T) {
	spec := ToolSpec{
		Name:         "calculator",
		Description:  "Evaluates arithmetic",
		FunctionName: "calculate",
		Parameters: map[string]ParamSpec{
			"expression": {Type: "string", Description: "Expression to evaluate"},
			"precision":  {Type: "integer", Description: "Digits after the decimal point"},
		},
		Required: []string{"expression"},
	}

	schema := spec.Schema()
	assert.Equal(t, "object", schema["type"])

	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "expression")
	assert.Contains(t, props, "precision")

	required, ok := schema["required"].([]string)
	require.True(t, ok)
	assert.Equal(t, []string{"expression"}, required)
}

func TestConfig_Validate(t *testing.T) {
	cfg := newValidConfig()
	assert.NoError(t, cfg.Validate())

	cfg.Name = ""
	assert.Error(t, cfg.Validate())

	cfg = newValidConfig()
	cfg.MaxIterations = -1
	assert.Error(t, cfg.Validate())

	cfg = newValidConfig()
	cfg.Tools = []ToolSpec{
		{Name: "t", Description: "d", FunctionName: "f"},
		{Name: "t", Description: "d", FunctionName: "g"},
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}

func TestNewDefinition_Defaults(t *testing.T) {
	def, err := NewDefinition(newValidConfig())
	require.NoError(t, err)

	assert.NotEmpty(t, def.ID)
	assert.Equal(t, DefaultMaxIterations, def.MaxIterations)
	assert.False(t, def.CreatedAt.IsZero())

	// Distinct definitions receive distinct ids.
	other, err := NewDefinition(newValidConfig())
	require.NoError(t, err)
	assert.NotEqual(t, def.ID, other.ID)
}

func TestNewDefinition_RejectsInvalid(t *testing.T) {
	cfg := newValidConfig()
	cfg.Model.Provider = "unknown"

	_, err := NewDefinition(cfg)
	require.Error(t, err)
	assert.True(t, core.IsValidation(err))
}

func TestDefinition_SystemPrompt(t *testing.T) {
	cfg := newValidConfig()
	cfg.Instructions = "Always answer in haiku."
	cfg.Tools = []ToolSpec{
		{Name: "calculator", Description: "math", FunctionName: "calculate"},
	}

	def, err := NewDefinition(cfg)
	require.NoError(t, err)

	prompt := def.SystemPrompt()
	assert.Contains(t, prompt, def.Name)
	assert.Contains(t, prompt, "Always answer in haiku.")
	assert.Contains(t, prompt, "calculator")
}

func TestDefinition_Clone(t *testing.T) {
	cfg := newValidConfig()
	cfg.Tools = []ToolSpec{
		{Name: "calculator", Description: "math", FunctionName: "calculate",
			Parameters: map[string]ParamSpec{"expression": {Type: "string"}}},
	}

	def, err := NewDefinition(cfg)
	require.NoError(t, err)

	clone := def.Clone()
	clone.Tools[0].Name = "mutated"
	clone.Tools[0].Parameters["expression"] = ParamSpec{Type: "integer"}

	assert.Equal(t, "calculator", def.Tools[0].Name)
	assert.Equal(t, "string", def.Tools[0].Parameters["expression"].Type)
}
