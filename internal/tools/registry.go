// Package tools implements the tool registry (C4): a mapping from tool
// name to shared-owned Tool, plus a definitions cache and a single
// dispatch operation.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ErrToolNotFound is returned by Call and Get when no tool is registered
// under the given name.
var ErrToolNotFound = errors.New("tool not found")

// ArgumentsError classifies a tool-argument parsing failure so the agent
// loop can surface it back to the model instead of aborting the turn.
type ArgumentsError struct {
	Name    string
	Message string
}

func (e *ArgumentsError) Error() string {
	return fmt.Sprintf("tool %q: invalid arguments: %s", e.Name, e.Message)
}

// Definition is a tool's machine-readable description: name, description,
// JSON-schema parameters, and flags controlling dispatch.
type Definition struct {
	Name        string
	Description string
	Parameters  map[string]any
	Binary      bool
	Verified    bool
}

// Tool is the capability set every registered tool implements.
type Tool interface {
	Name() string
	Definition() Definition
	Call(ctx context.Context, args string) (string, error)
}

// Registry is a shared-owned, concurrency-safe map from name to Tool.
// Registration is exclusive; lookup and dispatch are shared for reads.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
	defs  []Definition
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Add registers a tool, validating its JSON-schema parameters at
// registration time rather than at first call.
func (r *Registry) Add(t Tool) error {
	def := t.Definition()
	if def.Parameters != nil {
		if _, err := jsonschema.CompileString(def.Name+"#", schemaWrapper(def.Parameters)); err != nil {
			return fmt.Errorf("tool %q: invalid parameter schema: %w", def.Name, err)
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
	r.defs = nil
	return nil
}

// Get returns the tool registered under name, if any.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Contains reports whether a tool is registered under name.
func (r *Registry) Contains(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// Remove unregisters a tool by name.
func (r *Registry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tools, name)
	r.defs = nil
}

// Definitions materialises every registered tool's Definition, caching the
// result until the next registration change.
func (r *Registry) Definitions() []Definition {
	r.mu.RLock()
	if r.defs != nil {
		defer r.mu.RUnlock()
		return r.defs
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.defs == nil {
		defs := make([]Definition, 0, len(r.tools))
		for _, t := range r.tools {
			defs = append(defs, t.Definition())
		}
		r.defs = defs
	}
	return r.defs
}

// Call is the registry's single dispatch operation: look up name and
// invoke it with args, classifying a missing tool as ErrToolNotFound.
func (r *Registry) Call(ctx context.Context, name, args string) (string, error) {
	t, ok := r.Get(name)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	return t.Call(ctx, args)
}

// Iterate calls fn for every registered tool; fn returning false stops
// iteration early.
func (r *Registry) Iterate(fn func(Tool) bool) {
	r.mu.RLock()
	snapshot := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		snapshot = append(snapshot, t)
	}
	r.mu.RUnlock()
	for _, t := range snapshot {
		if !fn(t) {
			return
		}
	}
}

func schemaWrapper(params map[string]any) string {
	b, err := json.Marshal(params)
	if err != nil {
		return `{}`
	}
	return string(b)
}
