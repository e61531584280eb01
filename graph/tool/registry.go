package tool

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/dshills/agentcrew/graph/model"
)

// ErrToolNotFound is returned when a call names a tool that is not registered.
var ErrToolNotFound = errors.New("tool not found")

// ErrDuplicateTool is returned when registering a name twice.
var ErrDuplicateTool = errors.New("tool already registered")

// ArgumentError reports a call whose arguments do not satisfy the tool's
// schema. The tool is not invoked.
type ArgumentError struct {
	Tool     string
	Argument string
	Reason   string
}

// Error implements the error interface.
func (e *ArgumentError) Error() string {
	return fmt.Sprintf("tool %s: argument %q %s", e.Tool, e.Argument, e.Reason)
}

// Registry maps tool names to tools for one workflow.
//
// Lookups resolve by exact name. Call validates arguments before dispatch:
//   - every required argument must be present and non-null
//   - every declared argument that is present must have its declared JSON type
//   - enum arguments must hold one of the allowed values
//
// Undeclared extra arguments are ignored. Safe for concurrent use.
type Registry[S any] struct {
	mu    sync.RWMutex
	tools map[string]Tool[S]
}

// NewRegistry creates a registry holding tools.
func NewRegistry[S any](tools ...Tool[S]) (*Registry[S], error) {
	r := &Registry[S]{tools: make(map[string]Tool[S])}
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds t under its spec name.
func (r *Registry[S]) Register(t Tool[S]) error {
	if t == nil {
		return errors.New("tool is nil")
	}
	name := t.Spec().Name
	if name == "" {
		return errors.New("tool name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, name)
	}
	r.tools[name] = t
	return nil
}

// Lookup returns the tool registered under name.
func (r *Registry[S]) Lookup(name string) (Tool[S], bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tools[name]
	return t, ok
}

// Names returns all registered tool names, sorted.
func (r *Registry[S]) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Specs returns the specs of the named tools in the given order.
func (r *Registry[S]) Specs(names []string) ([]model.ToolSpec, error) {
	specs := make([]model.ToolSpec, 0, len(names))
	for _, name := range names {
		t, ok := r.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
		}
		specs = append(specs, t.Spec())
	}
	return specs, nil
}

// Call resolves call.Name, validates call.Input against the tool's schema
// and invokes the tool.
func (r *Registry[S]) Call(ctx context.Context, tc *Context[S], call model.ToolCall) (string, error) {
	t, ok := r.Lookup(call.Name)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrToolNotFound, call.Name)
	}

	args := call.Input
	if args == nil {
		args = map[string]any{}
	}
	if err := Validate(t.Spec(), args); err != nil {
		return "", err
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}
	return t.Call(ctx, tc, args)
}

// Validate checks args against spec.Schema.
func Validate(spec model.ToolSpec, args map[string]any) error {
	if spec.Schema == nil {
		return nil
	}

	properties, _ := spec.Schema["properties"].(map[string]any)

	for _, name := range requiredNames(spec.Schema["required"]) {
		if v, ok := args[name]; !ok || v == nil {
			return &ArgumentError{Tool: spec.Name, Argument: name, Reason: "is required"}
		}
	}

	for name, prop := range properties {
		v, ok := args[name]
		if !ok || v == nil {
			continue
		}
		propMap, _ := prop.(map[string]any)
		want, _ := propMap["type"].(string)
		if want != "" && !hasType(v, want) {
			return &ArgumentError{Tool: spec.Name, Argument: name, Reason: fmt.Sprintf("must be of type %s, got %T", want, v)}
		}
		if enum := requiredNames(propMap["enum"]); len(enum) > 0 {
			s, _ := v.(string)
			if !contains(enum, s) {
				return &ArgumentError{Tool: spec.Name, Argument: name, Reason: fmt.Sprintf("must be one of %v", enum)}
			}
		}
	}

	return nil
}

// hasType reports whether v, as decoded from JSON, matches a JSON schema type.
func hasType(v any, want string) bool {
	switch want {
	case "string":
		_, ok := v.(string)
		return ok
	case "boolean":
		_, ok := v.(bool)
		return ok
	case "number":
		switch v.(type) {
		case float64, float32, int, int64, int32:
			return true
		}
		return false
	case "integer":
		switch n := v.(type) {
		case int, int64, int32:
			return true
		case float64:
			return n == math.Trunc(n)
		}
		return false
	case "object":
		_, ok := v.(map[string]any)
		return ok
	case "array":
		_, ok := v.([]any)
		return ok
	}
	return true
}

func requiredNames(v any) []string {
	switch list := v.(type) {
	case []string:
		return list
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
