package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hupe1980/agentforge/agent"
	"github.com/hupe1980/agentforge/logging"
)

// DefaultInvokeTimeout bounds a single tool execution so one misbehaving
// capability cannot stall a run indefinitely.
const DefaultInvokeTimeout = 30 * time.Second

// RegistryOptions configures a Registry instance.
type RegistryOptions struct {
	// InvokeTimeout is the per-call execution deadline. Zero disables it.
	InvokeTimeout time.Duration
	// Logger receives structured tool events. Defaults to NoOpLogger.
	Logger logging.Logger
}

// Registry maps tool names to executable capabilities. Registration binds a
// declared parameter schema to an implementation; invocation validates
// arguments, guards the capability against panics and timeouts, and converts
// every failure into a *ToolError so a single failing tool call never aborts
// an engine run.
type Registry struct {
	mu      sync.RWMutex
	tools   map[string]Tool
	timeout time.Duration
	logger  logging.Logger
}

// NewRegistry constructs an empty tool registry.
func NewRegistry(optFns ...func(o *RegistryOptions)) *Registry {
	opts := RegistryOptions{
		InvokeTimeout: DefaultInvokeTimeout,
		Logger:        logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Registry{
		tools:   make(map[string]Tool),
		timeout: opts.InvokeTimeout,
		logger:  opts.Logger,
	}
}

// Register adds a tool to the registry. Registering a name twice replaces the
// previous binding.
func (r *Registry) Register(t Tool) error {
	if t == nil || t.Name() == "" {
		return errors.New("tool must have a non-empty name")
	}
	r.mu.Lock()
	r.tools[t.Name()] = t
	r.mu.Unlock()
	return nil
}

// RegisterFunc binds a declared ToolSpec to a capability function. The spec
// invariant (required ⊆ parameters) is enforced at registration time.
func (r *Registry) RegisterFunc(spec agent.ToolSpec, fn Capability) error {
	if err := spec.Validate(); err != nil {
		return err
	}
	return r.Register(NewFunctionTool(spec.Name, spec.Description, spec.Schema(), fn))
}

// Get returns the tool registered under name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// List returns all registered tools sorted by name.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	tools := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		tools = append(tools, t)
	}
	r.mu.RUnlock()

	sort.Slice(tools, func(i, j int) bool { return tools[i].Name() < tools[j].Name() })
	return tools
}

// Names returns the sorted names of all registered tools.
func (r *Registry) Names() []string {
	tools := r.List()
	names := make([]string, len(tools))
	for i, t := range tools {
		names[i] = t.Name()
	}
	return names
}

// Invoke executes the named tool with raw JSON arguments. Unknown names,
// malformed argument payloads, validation failures, panics and timeouts all
// come back as *ToolError with the matching kind.
func (r *Registry) Invoke(ctx context.Context, name string, args json.RawMessage) (any, error) {
	t, ok := r.Get(name)
	if !ok {
		return nil, NewToolError(name, ErrUnknownTool, fmt.Sprintf("tool %q is not registered", name))
	}
	return invokeGuarded(ctx, t, args, r.timeout, r.logger)
}

// Bind resolves a definition's tool specs against the registry's capability
// catalog, producing the per-run tool set the engine dispatches against. Each
// spec's FunctionName keys the capability; the spec's own name, description
// and schema are what the model sees. Specs whose capability is missing are
// skipped with a warning, matching definition-time validation that checks
// schemas but not capability wiring.
func (r *Registry) Bind(specs []agent.ToolSpec) *Toolset {
	ts := &Toolset{
		tools:   make(map[string]Tool, len(specs)),
		timeout: r.timeout,
		logger:  r.logger,
	}
	for _, spec := range specs {
		impl, ok := r.Get(spec.FunctionName)
		if !ok {
			r.logger.Warn("tool.bind.unknown_capability", "tool", spec.Name, "function", spec.FunctionName)
			continue
		}
		bound := NewFunctionTool(spec.Name, spec.Description, spec.Schema(), impl.Call)
		ts.tools[spec.Name] = bound
		ts.order = append(ts.order, spec.Name)
	}
	return ts
}

// Toolset is the bound, ordered tool collection for a single agent
// definition. It shares the registry's guarded invocation path but dispatches
// by the definition's model-facing tool names.
type Toolset struct {
	tools   map[string]Tool
	order   []string
	timeout time.Duration
	logger  logging.Logger
}

// Tools returns the bound tools in definition order.
func (ts *Toolset) Tools() []Tool {
	tools := make([]Tool, 0, len(ts.order))
	for _, name := range ts.order {
		tools = append(tools, ts.tools[name])
	}
	return tools
}

// Len returns the number of bound tools.
func (ts *Toolset) Len() int { return len(ts.order) }

// Invoke executes the named bound tool with raw JSON arguments.
func (ts *Toolset) Invoke(ctx context.Context, name string, args json.RawMessage) (any, error) {
	t, ok := ts.tools[name]
	if !ok {
		return nil, NewToolError(name, ErrUnknownTool, fmt.Sprintf("tool %q is not bound to this agent", name))
	}
	return invokeGuarded(ctx, t, args, ts.timeout, ts.logger)
}

// invokeGuarded decodes arguments and runs the tool with panic recovery and a
// bounded execution deadline. The capability's raw failure modes never escape:
// they are folded into *ToolError values.
func invokeGuarded(
	ctx context.Context,
	t Tool,
	args json.RawMessage,
	timeout time.Duration,
	logger logging.Logger,
) (result any, err error) {
	argMap := map[string]any{}
	if len(args) > 0 {
		if uerr := json.Unmarshal(args, &argMap); uerr != nil {
			return nil, &ToolError{
				Tool:    t.Name(),
				Kind:    ErrInvalidArguments,
				Message: fmt.Sprintf("arguments are not a JSON object: %v", uerr),
			}
		}
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	logger.Debug("tool.call.start", "tool", t.Name())

	func() { // panic safety
		defer func() {
			if r := recover(); r != nil {
				logger.Error("tool.call.panic", "tool", t.Name(), "recover", r)
				err = &ToolError{
					Tool:    t.Name(),
					Kind:    ErrExecutionFailed,
					Message: fmt.Sprintf("tool panicked: %v", r),
				}
			}
		}()
		result, err = t.Call(ctx, argMap)
	}()

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || (ctx.Err() == context.DeadlineExceeded && !isToolError(err)) {
			err = NewToolError(t.Name(), ErrTimeout, fmt.Sprintf("execution exceeded %s", timeout))
		} else if !isToolError(err) {
			err = &ToolError{Tool: t.Name(), Kind: ErrExecutionFailed, Message: err.Error()}
		}
		logger.Warn("tool.call.error", "tool", t.Name(), "error", err.Error())
		return nil, err
	}

	logger.Info("tool.call.success", "tool", t.Name(), "duration_ms", time.Since(start).Milliseconds())
	return result, nil
}

func isToolError(err error) bool {
	var te *ToolError
	return errors.As(err, &te)
}
