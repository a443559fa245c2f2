// Package engine runs agent definitions through a bounded think-act loop: the
// model proposes, bound tools execute, observations feed back in, until the
// model stops requesting tools or the iteration budget runs out. Tool
// failures are recoverable (the model sees them as observations); provider
// failures are fatal and end the run immediately.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/agentforge/agent"
	"github.com/hupe1980/agentforge/core"
	"github.com/hupe1980/agentforge/logging"
	"github.com/hupe1980/agentforge/metrics"
	"github.com/hupe1980/agentforge/model"
	"github.com/hupe1980/agentforge/session"
	"github.com/hupe1980/agentforge/tool"
)

// DefaultMaxHistoryMessages bounds how much stored conversation is replayed
// into the model context when memory is enabled.
const DefaultMaxHistoryMessages = 20

// Options configures an Engine.
type Options struct {
	// Gateway dispatches model calls. Required.
	Gateway *model.Gateway
	// Tools supplies the capabilities definitions bind against. Required.
	Tools *tool.Registry
	// Sessions persists conversation history for memory-enabled agents.
	// Required.
	Sessions session.Store
	// Metrics receives exactly one event per execution. Optional.
	Metrics *metrics.Collector
	// Logger receives structured execution events. Defaults to NoOpLogger.
	Logger logging.Logger
	// MaxHistoryMessages caps replayed history per run. Zero means unbounded;
	// negative values fall back to the default.
	MaxHistoryMessages int
}

// Engine executes agent definitions. It holds no per-run state and is safe
// for concurrent use.
type Engine struct {
	gateway    *model.Gateway
	tools      *tool.Registry
	sessions   session.Store
	metrics    *metrics.Collector
	logger     logging.Logger
	maxHistory int
}

// New creates an engine from the given options.
func New(optFns ...func(o *Options)) *Engine {
	opts := Options{
		Logger:             logging.NoOpLogger{},
		MaxHistoryMessages: DefaultMaxHistoryMessages,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxHistoryMessages < 0 {
		opts.MaxHistoryMessages = DefaultMaxHistoryMessages
	}
	return &Engine{
		gateway:    opts.Gateway,
		tools:      opts.Tools,
		sessions:   opts.Sessions,
		metrics:    opts.Metrics,
		logger:     opts.Logger,
		maxHistory: opts.MaxHistoryMessages,
	}
}

// Execute runs one input through the definition's think-act loop and returns
// the terminal result. The returned error is non-nil only for invalid
// arguments; execution failures are reported through the result's status so
// the caller always receives the step trace and token accounting.
func (e *Engine) Execute(ctx context.Context, def *agent.Definition, input, sessionID string) (*Result, error) {
	if def == nil {
		return nil, core.NewValidationError("definition", "agent definition is required")
	}
	if input == "" {
		return nil, core.NewValidationError("input", "input must not be empty")
	}

	start := time.Now()

	result := &Result{
		AgentID:   def.ID,
		SessionID: sessionID,
	}

	toolset := e.tools.Bind(def.Tools)
	toolDefs := toolDefinitions(toolset)

	messages, err := e.assembleContext(def, input, sessionID)
	if err != nil {
		return nil, err
	}

	e.logger.Info("engine.execute.start",
		"agent_id", def.ID,
		"session_id", sessionID,
		"tools", toolset.Len(),
		"max_iterations", def.MaxIterations,
	)

	var lastContent string

	for iteration := 0; iteration < def.MaxIterations; iteration++ {
		resp, err := e.gateway.Invoke(ctx, def.Model, messages, toolDefs, def.Streaming)
		if err != nil {
			e.fail(ctx, result, err)
			break
		}

		result.Usage.Add(resp.Usage)

		step := Step{
			Index:     iteration,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
			Timestamp: time.Now(),
		}

		if resp.Content != "" {
			lastContent = resp.Content
		}

		if len(resp.ToolCalls) == 0 {
			result.Steps = append(result.Steps, step)
			result.Status = StatusCompleted
			result.FinalResponse = resp.Content
			break
		}

		messages = append(messages, core.NewAssistantMessage(resp.Content, resp.ToolCalls))

		observations, err := e.dispatch(ctx, def, toolset, resp.ToolCalls, &step, result)
		result.Steps = append(result.Steps, step)
		if err != nil {
			// Context cancellation between tool calls ends the run.
			e.fail(ctx, result, err)
			break
		}

		messages = append(messages, observations...)
	}

	if result.Status == "" {
		result.Status = StatusMaxIterations
		if lastContent != "" {
			result.FinalResponse = lastContent
		} else {
			result.FinalResponse = fmt.Sprintf(
				"Stopped after reaching the maximum of %d iterations without a final answer.",
				def.MaxIterations,
			)
		}
	}

	result.Duration = time.Since(start)

	e.persist(def, sessionID, input, result)
	e.record(result)

	e.logger.Info("engine.execute.done",
		"agent_id", def.ID,
		"status", result.Status,
		"steps", len(result.Steps),
		"duration_ms", result.Duration.Milliseconds(),
		"total_tokens", result.Usage.Total(),
	)

	return result, nil
}

// assembleContext builds the initial message window: system prompt, replayed
// history when memory is enabled, then the new user input.
func (e *Engine) assembleContext(def *agent.Definition, input, sessionID string) ([]core.Message, error) {
	messages := []core.Message{core.NewSystemMessage(def.SystemPrompt())}

	if def.MemoryEnabled && sessionID != "" {
		sess, err := e.sessions.Get(sessionID)
		if err != nil {
			return nil, err
		}
		history := sess.Messages
		if e.maxHistory > 0 && len(history) > e.maxHistory {
			history = history[len(history)-e.maxHistory:]
		}
		messages = append(messages, history...)
	}

	return append(messages, core.NewUserMessage(input)), nil
}

// dispatch executes the requested tool calls sequentially in request order.
// Tool failures become observations; only context cancellation aborts the
// sequence.
func (e *Engine) dispatch(
	ctx context.Context,
	def *agent.Definition,
	toolset *tool.Toolset,
	calls []core.ToolCall,
	step *Step,
	result *Result,
) ([]core.Message, error) {
	observations := make([]core.Message, 0, len(calls))

	for _, call := range calls {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		output, err := toolset.Invoke(ctx, call.Name, call.Arguments)

		tr := ToolResult{ToolName: call.Name}
		var content string
		if err != nil {
			tr.Error = err.Error()
			content = "Error: " + err.Error()
			e.logger.Warn("engine.tool.failed",
				"agent_id", def.ID,
				"tool", call.Name,
				"error", err.Error(),
			)
		} else {
			content = fmt.Sprintf("%v", output)
			tr.Output = content
		}

		step.ToolResults = append(step.ToolResults, tr)
		observations = append(observations, core.NewToolMessage(call.ID, call.Name, content))
	}

	return observations, nil
}

// fail marks the result as failed, classifying the error for the caller.
func (e *Engine) fail(ctx context.Context, result *Result, err error) {
	result.Status = StatusFailed
	result.ErrorMessage = err.Error()

	switch {
	case ctx.Err() != nil:
		result.ErrorKind = "cancelled"
	default:
		if pe, ok := model.AsProviderError(err); ok {
			result.ErrorKind = string(pe.Kind)
		} else {
			result.ErrorKind = "internal"
		}
	}
}

// persist appends the exchange to the session store. Failed runs are not
// persisted so a broken turn cannot poison later context windows.
func (e *Engine) persist(def *agent.Definition, sessionID, input string, result *Result) {
	if !def.MemoryEnabled || sessionID == "" || result.Status == StatusFailed {
		return
	}

	err := e.sessions.Append(sessionID,
		core.NewUserMessage(input),
		core.NewAssistantMessage(result.FinalResponse, nil),
	)
	if err != nil {
		e.logger.Error("engine.session.append_failed",
			"agent_id", def.ID,
			"session_id", sessionID,
			"error", err.Error(),
		)
	}
}

// record emits exactly one metric event for the run.
func (e *Engine) record(result *Result) {
	if e.metrics == nil {
		return
	}

	var toolCalls []string
	for _, step := range result.Steps {
		for _, tr := range step.ToolResults {
			toolCalls = append(toolCalls, tr.ToolName)
		}
	}

	e.metrics.Record(metrics.Event{
		AgentID:   result.AgentID,
		Status:    string(result.Status),
		Duration:  result.Duration,
		Usage:     result.Usage,
		ToolCalls: toolCalls,
	})

	if result.Status == StatusFailed && result.ErrorKind != "" {
		e.metrics.RecordError(result.ErrorKind)
	}
}

// toolDefinitions converts a bound toolset into the model-facing declarations.
func toolDefinitions(ts *tool.Toolset) []model.ToolDefinition {
	tools := ts.Tools()
	if len(tools) == 0 {
		return nil
	}
	defs := make([]model.ToolDefinition, len(tools))
	for i, t := range tools {
		defs[i] = model.ToolDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		}
	}
	return defs
}
