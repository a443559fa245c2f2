package model

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/agentforge/agent"
	"github.com/hupe1980/agentforge/core"
	"github.com/hupe1980/agentforge/logging"
)

// GatewayOptions configures a Gateway instance.
type GatewayOptions struct {
	// Logger receives structured model call events. Defaults to NoOpLogger.
	Logger logging.Logger
}

// Gateway is the uniform entry point for model inference. It holds the closed
// set of provider adapters and dispatches each invocation by the spec's
// provider tag, so the engine never branches per vendor.
//
// The gateway performs no retries: masking provider failures would hide cost
// and latency problems from the caller.
type Gateway struct {
	mu        sync.RWMutex
	providers map[agent.Provider]Model
	logger    logging.Logger
}

// NewGateway constructs a gateway with no adapters registered.
func NewGateway(optFns ...func(o *GatewayOptions)) *Gateway {
	opts := GatewayOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Gateway{
		providers: make(map[agent.Provider]Model),
		logger:    opts.Logger,
	}
}

// RegisterProvider binds an adapter to a provider tag, replacing any previous
// binding.
func (g *Gateway) RegisterProvider(p agent.Provider, m Model) {
	g.mu.Lock()
	g.providers[p] = m
	g.mu.Unlock()
}

// Provider returns the adapter registered for p.
func (g *Gateway) Provider(p agent.Provider) (Model, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	m, ok := g.providers[p]
	return m, ok
}

// Invoke translates the spec and normalized messages/tools into one inference
// call against the matching provider adapter. Transport or provider-side
// failures surface as *ProviderError.
func (g *Gateway) Invoke(
	ctx context.Context,
	spec agent.ModelSpec,
	messages []core.Message,
	tools []ToolDefinition,
	stream bool,
) (*Response, error) {
	m, ok := g.Provider(spec.Provider)
	if !ok {
		return nil, NewProviderError(
			string(spec.Provider),
			ErrUnavailable,
			fmt.Sprintf("no adapter registered for provider %q", spec.Provider),
			nil,
		)
	}

	req := Request{
		ModelName:   spec.ModelName,
		Temperature: spec.Temperature,
		TopP:        spec.TopP,
		Messages:    messages,
		Tools:       tools,
		Stream:      stream,
	}
	if spec.MaxTokens != nil {
		req.MaxTokens = *spec.MaxTokens
	}

	start := time.Now()
	resp, err := m.Invoke(ctx, req)
	if err != nil {
		g.logger.Error("model.invoke.failed",
			"provider", spec.Provider,
			"model", spec.ModelName,
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err.Error(),
		)
		if _, ok := AsProviderError(err); ok {
			return nil, err
		}
		return nil, NewProviderError(string(spec.Provider), ErrUnavailable, err.Error(), err)
	}

	g.logger.Info("model.invoke.completed",
		"provider", spec.Provider,
		"model", spec.ModelName,
		"duration_ms", time.Since(start).Milliseconds(),
		"input_tokens", resp.Usage.InputTokens,
		"output_tokens", resp.Usage.OutputTokens,
		"tool_calls", len(resp.ToolCalls),
	)

	return resp, nil
}
