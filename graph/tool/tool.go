// Package tool provides the tool abstraction agents call through, a
// name-keyed registry that validates arguments against each tool's schema,
// and test doubles.
package tool

import (
	"context"

	"github.com/dshills/agentcrew/graph/model"
	"github.com/dshills/agentcrew/graph/state"
)

// Tool is an operation an agent can invoke by name.
//
// Tools receive the run's explicit Context instead of reaching for globals,
// and return opaque text that is fed back to the model as the call result.
// A returned error aborts the run.
//
// Type parameter S is the shared state type of the workflow.
type Tool[S any] interface {
	// Spec describes the tool to the model: name, description and the
	// JSON schema of its arguments.
	Spec() model.ToolSpec

	// Call executes the tool with arguments that have already been
	// validated against Spec().Schema.
	Call(ctx context.Context, tc *Context[S], args map[string]any) (string, error)
}

// Context is the explicit context handed to every tool call.
type Context[S any] struct {
	// RunID identifies the workflow run.
	RunID string

	// Agent is the name of the agent making the call.
	Agent string

	// State is the run's shared state. Tools mutate it only through Edit.
	State *state.Shared[S]
}

// Param declares one argument of a function tool.
type Param struct {
	Name        string
	Type        string // JSON schema type: string, number, integer, boolean, object, array
	Description string
	Required    bool
	Enum        []string
}

// Func builds a Tool from a function and a parameter list. The JSON schema
// sent to the model is generated from params.
//
// Example:
//
//	write := tool.Func[ReportState]("write_report",
//	    "Useful for writing a report on a given topic.",
//	    []tool.Param{{Name: "report_content", Type: "string", Required: true}},
//	    func(ctx context.Context, tc *tool.Context[ReportState], args map[string]any) (string, error) {
//	        ...
//	    })
func Func[S any](name, description string, params []Param, fn func(ctx context.Context, tc *Context[S], args map[string]any) (string, error)) Tool[S] {
	return &funcTool[S]{
		spec: model.ToolSpec{
			Name:        name,
			Description: description,
			Schema:      Schema(params),
		},
		fn: fn,
	}
}

type funcTool[S any] struct {
	spec model.ToolSpec
	fn   func(ctx context.Context, tc *Context[S], args map[string]any) (string, error)
}

func (f *funcTool[S]) Spec() model.ToolSpec { return f.spec }

func (f *funcTool[S]) Call(ctx context.Context, tc *Context[S], args map[string]any) (string, error) {
	return f.fn(ctx, tc, args)
}

// Schema renders params as a JSON schema object.
func Schema(params []Param) map[string]any {
	properties := make(map[string]any, len(params))
	required := make([]string, 0, len(params))

	for _, p := range params {
		prop := map[string]any{"type": p.Type}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		if len(p.Enum) > 0 {
			prop["enum"] = append([]string(nil), p.Enum...)
		}
		properties[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}

	return map[string]any{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
}
