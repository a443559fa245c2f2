// Package agentforge is the top-level entry point tying together the agent
// registry, model gateway, tool registry, session store and metrics behind a
// single type. Typical usage:
//  1. Build an AgentForge with New(), overriding services as needed
//  2. Register agents from declarative configurations (CreateAgent)
//  3. Run inputs through them synchronously (Execute)
//
// Everything New() wires by default runs in-process with no external
// dependencies, so a bare New() is enough for tests and local experiments.
// Real deployments swap in provider credentials, a persistent session store
// and their own logger through Options.
package agentforge

import (
	"context"

	"github.com/google/uuid"
	"github.com/hupe1980/agentforge/agent"
	"github.com/hupe1980/agentforge/config"
	"github.com/hupe1980/agentforge/engine"
	"github.com/hupe1980/agentforge/logging"
	"github.com/hupe1980/agentforge/metrics"
	"github.com/hupe1980/agentforge/model"
	"github.com/hupe1980/agentforge/model/anthropic"
	"github.com/hupe1980/agentforge/model/bedrock"
	"github.com/hupe1980/agentforge/model/openai"
	"github.com/hupe1980/agentforge/session"
	"github.com/hupe1980/agentforge/tool"
)

// Options configures the AgentForge instance.
type Options struct {
	// Config supplies process-level settings for the default tool registry.
	Config config.Config

	// Gateway dispatches model calls. When nil, a gateway with the openai,
	// anthropic and bedrock adapters is created; credentials are read from
	// the environment at call time.
	Gateway *model.Gateway

	// ToolRegistry supplies the capability implementations agents bind
	// against. When nil, a registry preloaded with the builtin tools is
	// created.
	ToolRegistry *tool.Registry

	// SessionStore persists conversation history (defaults to in-memory).
	SessionStore session.Store

	// Metrics collects execution telemetry (defaults to a fresh collector).
	Metrics *metrics.Collector

	// Logger receives structured events from every service. When nil, a
	// slog-backed logger is built from Config.LogLevel and Config.LogFormat.
	Logger logging.Logger

	// MaxHistoryMessages caps replayed history per run for memory-enabled
	// agents.
	MaxHistoryMessages int
}

// AgentForge is the high-level façade aggregating the engine and services.
type AgentForge struct {
	opts     Options
	registry *agent.Registry
	engine   *engine.Engine
}

// New creates a new AgentForge instance with optional overrides. Any unset
// service is initialized with a default implementation.
func New(optFns ...func(o *Options)) *AgentForge {
	opts := Options{
		Config:             config.Default(),
		MaxHistoryMessages: engine.DefaultMaxHistoryMessages,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NewLogger(&logging.LoggerConfig{
			Level:  logging.ParseLevel(opts.Config.LogLevel),
			Format: opts.Config.LogFormat,
		})
	}

	if opts.Gateway == nil {
		gw := model.NewGateway(func(o *model.GatewayOptions) { o.Logger = opts.Logger })
		gw.RegisterProvider(agent.ProviderOpenAI, openai.NewModel())
		gw.RegisterProvider(agent.ProviderAnthropic, anthropic.NewModel())
		gw.RegisterProvider(agent.ProviderBedrock, bedrock.NewModel(func(o *bedrock.Options) {
			o.Region = opts.Config.AWSRegion
		}))
		opts.Gateway = gw
	}

	if opts.ToolRegistry == nil {
		registry := tool.NewRegistry(func(o *tool.RegistryOptions) {
			o.InvokeTimeout = opts.Config.ToolTimeout
			o.Logger = opts.Logger
		})
		for _, t := range tool.Builtins(func(o *tool.BuiltinOptions) {
			o.FileRoot = opts.Config.FileRoot
			o.HTTPAllowlist = opts.Config.HTTPAllowlist
		}) {
			_ = registry.Register(t)
		}
		opts.ToolRegistry = registry
	}

	if opts.SessionStore == nil {
		opts.SessionStore = session.NewInMemoryStore()
	}

	if opts.Metrics == nil {
		opts.Metrics = metrics.NewCollector(func(o *metrics.CollectorOptions) {
			o.Logger = opts.Logger
		})
	}

	eng := engine.New(func(o *engine.Options) {
		o.Gateway = opts.Gateway
		o.Tools = opts.ToolRegistry
		o.Sessions = opts.SessionStore
		o.Metrics = opts.Metrics
		o.Logger = opts.Logger
		o.MaxHistoryMessages = opts.MaxHistoryMessages
	})

	return &AgentForge{
		opts:     opts,
		registry: agent.NewRegistry(func(o *agent.RegistryOptions) { o.Logger = opts.Logger }),
		engine:   eng,
	}
}

// CreateAgent validates the configuration and registers a new immutable agent
// definition.
func (f *AgentForge) CreateAgent(cfg agent.Config) (*agent.Definition, error) {
	return f.registry.Create(cfg)
}

// GetAgent returns the definition with the given id.
func (f *AgentForge) GetAgent(agentID string) (*agent.Definition, error) {
	return f.registry.Get(agentID)
}

// ListAgents returns all registered definitions.
func (f *AgentForge) ListAgents() []*agent.Definition {
	return f.registry.List()
}

// DeleteAgent removes the definition with the given id.
func (f *AgentForge) DeleteAgent(agentID string) error {
	return f.registry.Delete(agentID)
}

// Execute runs one input through the named agent. When the agent has memory
// enabled and sessionID is empty, a fresh session id is generated and
// returned in the result so callers can continue the conversation.
func (f *AgentForge) Execute(ctx context.Context, agentID, input, sessionID string) (*engine.Result, error) {
	def, err := f.registry.Get(agentID)
	if err != nil {
		return nil, err
	}

	if def.MemoryEnabled && sessionID == "" {
		sessionID = uuid.NewString()
	}

	return f.engine.Execute(ctx, def, input, sessionID)
}

// Tools exposes the tool registry, e.g. for registering custom capabilities.
func (f *AgentForge) Tools() *tool.Registry {
	return f.opts.ToolRegistry
}

// Metrics exposes the metrics collector for summaries and Prometheus export.
func (f *AgentForge) Metrics() *metrics.Collector {
	return f.opts.Metrics
}

// Sessions exposes the session store.
func (f *AgentForge) Sessions() session.Store {
	return f.opts.SessionStore
}
