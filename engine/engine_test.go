package engine

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/hupe1980/agentforge/agent"
	"github.com/hupe1980/agentforge/core"
	"github.com/hupe1980/agentforge/metrics"
	"github.com/hupe1980/agentforge/model"
	"github.com/hupe1980/agentforge/session"
	"github.com/hupe1980/agentforge/tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testHarness struct {
	engine    *Engine
	mock      *model.MockModel
	sessions  *session.InMemoryStore
	collector *metrics.Collector
}

func newHarness(t *testing.T) *testHarness {
	t.Helper()

	mock := model.NewMockModel("gpt-4o-mini")
	gateway := model.NewGateway()
	gateway.RegisterProvider(agent.ProviderOpenAI, mock)

	registry := tool.NewRegistry()
	require.NoError(t, registry.Register(tool.NewCalculateTool()))

	sessions := session.NewInMemoryStore()
	collector := metrics.NewCollector()

	eng := New(func(o *Options) {
		o.Gateway = gateway
		o.Tools = registry
		o.Sessions = sessions
		o.Metrics = collector
	})

	return &testHarness{engine: eng, mock: mock, sessions: sessions, collector: collector}
}

func newTestDefinition(t *testing.T, mutate ...func(cfg *agent.Config)) *agent.Definition {
	t.Helper()

	cfg := agent.Config{
		Name:         "TestAgent",
		Instructions: "Answer concisely.",
		Model: agent.ModelSpec{
			Provider:  agent.ProviderOpenAI,
			ModelName: "gpt-4o-mini",
		},
		Tools: []agent.ToolSpec{
			{
				Name:         "calculator",
				Description:  "Evaluates arithmetic expressions",
				FunctionName: "calculate",
				Parameters: map[string]agent.ParamSpec{
					"expression": {Type: "string", Description: "Expression to evaluate"},
				},
				Required: []string{"expression"},
			},
		},
	}
	for _, fn := range mutate {
		fn(&cfg)
	}

	def, err := agent.NewDefinition(cfg)
	require.NoError(t, err)
	return def
}

func TestEngine_SingleStepCompletion(t *testing.T) {
	h := newHarness(t)
	def := newTestDefinition(t)

	h.mock.EnqueueTextResponse("The answer is 42.")

	result, err := h.engine.Execute(context.Background(), def, "What is the answer?", "")
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, result.Status)
	assert.Equal(t, "The answer is 42.", result.FinalResponse)
	require.Len(t, result.Steps, 1)
	assert.Empty(t, result.Steps[0].ToolCalls)
	assert.Equal(t, 15, result.Usage.Total())
	assert.Greater(t, result.Duration.Nanoseconds(), int64(0))

	// Exactly one metric event per run.
	summary, ok := h.collector.AgentSummary(def.ID)
	require.True(t, ok)
	assert.Equal(t, 1, summary.TotalExecutions)
}

func TestEngine_EmptyResponseCompletes(t *testing.T) {
	h := newHarness(t)
	def := newTestDefinition(t)

	// A turn with neither content nor tool calls is a terminal answer.
	h.mock.EnqueueResponse(&model.Response{FinishReason: "stop"})

	result, err := h.engine.Execute(context.Background(), def, "Say nothing.", "")
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, result.Status)
	assert.Empty(t, result.FinalResponse)
	require.Len(t, result.Steps, 1)
	assert.Empty(t, result.Steps[0].ToolCalls)
}

func TestEngine_SystemPromptAndInputAssembled(t *testing.T) {
	h := newHarness(t)
	def := newTestDefinition(t)

	h.mock.EnqueueTextResponse("done")

	_, err := h.engine.Execute(context.Background(), def, "hello", "")
	require.NoError(t, err)

	requests := h.mock.Requests()
	require.Len(t, requests, 1)

	msgs := requests[0].Messages
	require.GreaterOrEqual(t, len(msgs), 2)
	assert.Equal(t, core.RoleSystem, msgs[0].Role)
	assert.Contains(t, msgs[0].Content, "TestAgent")
	assert.Equal(t, core.RoleUser, msgs[len(msgs)-1].Role)
	assert.Equal(t, "hello", msgs[len(msgs)-1].Content)

	require.Len(t, requests[0].Tools, 1)
	assert.Equal(t, "calculator", requests[0].Tools[0].Name)
}

func TestEngine_ToolLoop(t *testing.T) {
	h := newHarness(t)
	def := newTestDefinition(t)

	h.mock.EnqueueToolCallResponse("Let me calculate that.", core.ToolCall{
		ID:        "call-1",
		Name:      "calculator",
		Arguments: json.RawMessage(`{"expression":"15 * 23 + 47 - 12"}`),
	})
	h.mock.EnqueueTextResponse("The result is 380.")

	result, err := h.engine.Execute(context.Background(), def, "What is 15 * 23 + 47 - 12?", "")
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, result.Status)
	assert.Equal(t, "The result is 380.", result.FinalResponse)
	require.Len(t, result.Steps, 2)

	// First step carries the tool call and its observation.
	require.Len(t, result.Steps[0].ToolResults, 1)
	assert.Equal(t, "calculator", result.Steps[0].ToolResults[0].ToolName)
	assert.Equal(t, "380", result.Steps[0].ToolResults[0].Output)
	assert.Empty(t, result.Steps[0].ToolResults[0].Error)

	// The second model call sees the assistant turn and the observation.
	requests := h.mock.Requests()
	require.Len(t, requests, 2)
	msgs := requests[1].Messages
	last := msgs[len(msgs)-1]
	assert.Equal(t, core.RoleTool, last.Role)
	assert.Equal(t, "call-1", last.ToolCallID)
	assert.Equal(t, "380", last.Content)
	assert.Equal(t, core.RoleAssistant, msgs[len(msgs)-2].Role)
}

func TestEngine_UnknownToolBecomesObservation(t *testing.T) {
	h := newHarness(t)
	def := newTestDefinition(t)

	h.mock.EnqueueToolCallResponse("", core.ToolCall{
		ID:        "call-1",
		Name:      "teleport",
		Arguments: json.RawMessage(`{}`),
	})
	h.mock.EnqueueTextResponse("I cannot teleport, sorry.")

	result, err := h.engine.Execute(context.Background(), def, "Teleport me home.", "")
	require.NoError(t, err)

	// An unknown tool is recoverable: the model sees the error and continues.
	assert.Equal(t, StatusCompleted, result.Status)
	require.Len(t, result.Steps, 2)
	require.Len(t, result.Steps[0].ToolResults, 1)
	assert.NotEmpty(t, result.Steps[0].ToolResults[0].Error)

	requests := h.mock.Requests()
	msgs := requests[1].Messages
	last := msgs[len(msgs)-1]
	assert.Equal(t, core.RoleTool, last.Role)
	assert.Contains(t, last.Content, "Error:")
}

func TestEngine_InvalidArgumentsBecomeObservation(t *testing.T) {
	h := newHarness(t)
	def := newTestDefinition(t)

	h.mock.EnqueueToolCallResponse("", core.ToolCall{
		ID:        "call-1",
		Name:      "calculator",
		Arguments: json.RawMessage(`{}`),
	})
	h.mock.EnqueueTextResponse("I need an expression to calculate.")

	result, err := h.engine.Execute(context.Background(), def, "Calculate.", "")
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, result.Status)
	require.Len(t, result.Steps[0].ToolResults, 1)
	assert.Contains(t, result.Steps[0].ToolResults[0].Error, "expression")
}

func TestEngine_MaxIterations(t *testing.T) {
	h := newHarness(t)
	def := newTestDefinition(t, func(cfg *agent.Config) {
		cfg.MaxIterations = 2
	})

	for i := 0; i < 3; i++ {
		h.mock.EnqueueToolCallResponse("still working", core.ToolCall{
			ID:        "call",
			Name:      "calculator",
			Arguments: json.RawMessage(`{"expression":"1+1"}`),
		})
	}

	result, err := h.engine.Execute(context.Background(), def, "Keep calculating forever.", "")
	require.NoError(t, err)

	assert.Equal(t, StatusMaxIterations, result.Status)
	assert.Len(t, result.Steps, 2)
	assert.Equal(t, "still working", result.FinalResponse)

	// The budget bounds the number of model calls too.
	assert.Len(t, h.mock.Requests(), 2)
}

func TestEngine_MaxIterationsFallbackNotice(t *testing.T) {
	h := newHarness(t)
	def := newTestDefinition(t, func(cfg *agent.Config) {
		cfg.MaxIterations = 1
	})

	h.mock.EnqueueToolCallResponse("", core.ToolCall{
		ID:        "call",
		Name:      "calculator",
		Arguments: json.RawMessage(`{"expression":"1+1"}`),
	})

	result, err := h.engine.Execute(context.Background(), def, "Loop forever.", "")
	require.NoError(t, err)

	assert.Equal(t, StatusMaxIterations, result.Status)
	assert.Contains(t, result.FinalResponse, "maximum of 1 iterations")
}

func TestEngine_ProviderErrorFailsFast(t *testing.T) {
	h := newHarness(t)
	def := newTestDefinition(t)

	h.mock.EnqueueError(model.NewProviderError("openai", model.ErrRateLimited, "throttled", nil))

	result, err := h.engine.Execute(context.Background(), def, "hello", "")
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, result.Status)
	assert.Equal(t, "rate_limited", result.ErrorKind)
	assert.NotEmpty(t, result.ErrorMessage)
	assert.Empty(t, result.Steps)

	// No retry: a single model call was made.
	assert.Len(t, h.mock.Requests(), 1)

	// The failure still produces exactly one metric event.
	summary, ok := h.collector.AgentSummary(def.ID)
	require.True(t, ok)
	assert.Equal(t, 1, summary.TotalExecutions)
	assert.Equal(t, 1, summary.Failed)
}

func TestEngine_TokenUsageAccumulates(t *testing.T) {
	h := newHarness(t)
	def := newTestDefinition(t)

	h.mock.EnqueueToolCallResponse("", core.ToolCall{
		ID:        "call-1",
		Name:      "calculator",
		Arguments: json.RawMessage(`{"expression":"2+2"}`),
	})
	h.mock.EnqueueTextResponse("4")

	result, err := h.engine.Execute(context.Background(), def, "2+2?", "")
	require.NoError(t, err)

	// Two model turns at 15 tokens each.
	assert.Equal(t, 30, result.Usage.Total())
}

func TestEngine_MemoryRoundTrip(t *testing.T) {
	h := newHarness(t)
	def := newTestDefinition(t, func(cfg *agent.Config) {
		cfg.MemoryEnabled = true
	})

	h.mock.EnqueueTextResponse("Nice to meet you, Ada.")
	h.mock.EnqueueTextResponse("Your name is Ada.")

	first, err := h.engine.Execute(context.Background(), def, "My name is Ada.", "s1")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, first.Status)

	_, err = h.engine.Execute(context.Background(), def, "What is my name?", "s1")
	require.NoError(t, err)

	// The second run replays the first exchange in order.
	requests := h.mock.Requests()
	require.Len(t, requests, 2)
	msgs := requests[1].Messages
	require.Len(t, msgs, 4)
	assert.Equal(t, core.RoleSystem, msgs[0].Role)
	assert.Equal(t, "My name is Ada.", msgs[1].Content)
	assert.Equal(t, "Nice to meet you, Ada.", msgs[2].Content)
	assert.Equal(t, "What is my name?", msgs[3].Content)

	sess, err := h.sessions.Get("s1")
	require.NoError(t, err)
	assert.Len(t, sess.Messages, 4)
}

func TestEngine_MemoryDisabledSkipsStore(t *testing.T) {
	h := newHarness(t)
	def := newTestDefinition(t)

	h.mock.EnqueueTextResponse("done")

	_, err := h.engine.Execute(context.Background(), def, "hello", "s1")
	require.NoError(t, err)

	assert.Equal(t, 0, h.sessions.Len())
}

func TestEngine_FailedRunNotPersisted(t *testing.T) {
	h := newHarness(t)
	def := newTestDefinition(t, func(cfg *agent.Config) {
		cfg.MemoryEnabled = true
	})

	h.mock.EnqueueError(model.NewProviderError("openai", model.ErrUnavailable, "down", nil))

	result, err := h.engine.Execute(context.Background(), def, "hello", "s1")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, result.Status)

	// The broken turn must not poison later context windows.
	assert.Equal(t, 0, h.sessions.Len())
}

func TestEngine_HistoryTruncation(t *testing.T) {
	h := newHarness(t)
	def := newTestDefinition(t, func(cfg *agent.Config) {
		cfg.MemoryEnabled = true
	})

	// Preload more history than the engine replays.
	for i := 0; i < 30; i++ {
		require.NoError(t, h.sessions.Append("long", core.NewUserMessage("old")))
	}

	h.mock.EnqueueTextResponse("ok")

	_, err := h.engine.Execute(context.Background(), def, "latest", "long")
	require.NoError(t, err)

	msgs := h.mock.Requests()[0].Messages
	// system + capped history + new input.
	assert.Len(t, msgs, 1+DefaultMaxHistoryMessages+1)
}

func TestEngine_Cancellation(t *testing.T) {
	h := newHarness(t)
	def := newTestDefinition(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := h.engine.Execute(ctx, def, "hello", "")
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, result.Status)
	assert.Equal(t, "cancelled", result.ErrorKind)
}

func TestEngine_RejectsEmptyInput(t *testing.T) {
	h := newHarness(t)
	def := newTestDefinition(t)

	_, err := h.engine.Execute(context.Background(), def, "", "")
	require.Error(t, err)
	assert.True(t, core.IsValidation(err))
}

func TestEngine_RejectsNilDefinition(t *testing.T) {
	h := newHarness(t)

	_, err := h.engine.Execute(context.Background(), nil, "hello", "")
	require.Error(t, err)
	assert.True(t, core.IsValidation(err))
}

func TestEngine_ParallelToolCallsDispatchedInOrder(t *testing.T) {
	h := newHarness(t)
	def := newTestDefinition(t)

	h.mock.EnqueueToolCallResponse("",
		core.ToolCall{ID: "c1", Name: "calculator", Arguments: json.RawMessage(`{"expression":"1+1"}`)},
		core.ToolCall{ID: "c2", Name: "calculator", Arguments: json.RawMessage(`{"expression":"2+2"}`)},
	)
	h.mock.EnqueueTextResponse("2 and 4")

	result, err := h.engine.Execute(context.Background(), def, "Compute both.", "")
	require.NoError(t, err)

	require.Len(t, result.Steps[0].ToolResults, 2)
	assert.Equal(t, "2", result.Steps[0].ToolResults[0].Output)
	assert.Equal(t, "4", result.Steps[0].ToolResults[1].Output)

	// Observations appear in request order with matching call ids.
	msgs := h.mock.Requests()[1].Messages
	n := len(msgs)
	assert.Equal(t, "c1", msgs[n-2].ToolCallID)
	assert.Equal(t, "c2", msgs[n-1].ToolCallID)
}
