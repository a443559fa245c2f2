package agent

import (
	"sort"
	"sync"

	"github.com/hupe1980/agentforge/core"
	"github.com/hupe1980/agentforge/logging"
)

// RegistryOptions configures a Registry instance.
type RegistryOptions struct {
	// Logger receives structured registry events. Defaults to NoOpLogger.
	Logger logging.Logger
}

// Registry stores agent definitions keyed by id. Reads are concurrent;
// create and delete are mutually exclusive. Definitions are cloned on the way
// in and out so stored state can never be mutated by callers.
type Registry struct {
	mu     sync.RWMutex
	defs   map[string]*Definition
	logger logging.Logger
}

// NewRegistry constructs an empty definition registry.
func NewRegistry(optFns ...func(o *RegistryOptions)) *Registry {
	opts := RegistryOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Registry{
		defs:   make(map[string]*Definition),
		logger: opts.Logger,
	}
}

// Create validates cfg, compiles it into a Definition, stores it and returns
// it. A validation failure leaves the registry untouched.
func (r *Registry) Create(cfg Config) (*Definition, error) {
	def, err := NewDefinition(cfg)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.defs[def.ID] = def
	r.mu.Unlock()

	r.logger.Info("agent.registry.created", "agent_id", def.ID, "name", def.Name, "tools", len(def.Tools))

	return def.Clone(), nil
}

// Get returns a clone of the definition with the given id.
func (r *Registry) Get(id string) (*Definition, error) {
	r.mu.RLock()
	def, ok := r.defs[id]
	r.mu.RUnlock()

	if !ok {
		return nil, core.NewNotFoundError("agent", id)
	}
	return def.Clone(), nil
}

// List returns clones of all stored definitions ordered by creation time.
func (r *Registry) List() []*Definition {
	r.mu.RLock()
	defs := make([]*Definition, 0, len(r.defs))
	for _, def := range r.defs {
		defs = append(defs, def.Clone())
	}
	r.mu.RUnlock()

	sort.Slice(defs, func(i, j int) bool {
		if defs[i].CreatedAt.Equal(defs[j].CreatedAt) {
			return defs[i].ID < defs[j].ID
		}
		return defs[i].CreatedAt.Before(defs[j].CreatedAt)
	})
	return defs
}

// Delete removes the definition with the given id. Deleting an absent (or
// already deleted) id reports NotFound rather than success.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	_, ok := r.defs[id]
	if ok {
		delete(r.defs, id)
	}
	r.mu.Unlock()

	if !ok {
		return core.NewNotFoundError("agent", id)
	}

	r.logger.Info("agent.registry.deleted", "agent_id", id)
	return nil
}

// Count returns the number of stored definitions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.defs)
}
