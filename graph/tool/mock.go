package tool

import (
	"context"
	"sync"

	"github.com/dshills/agentcrew/graph/model"
)

// MockTool is a test implementation of Tool.
//
// Each call returns the next entry of Responses, repeating the last one
// once exhausted, or Err if set. Every call is recorded.
//
// Example:
//
//	mock := &tool.MockTool[MyState]{
//	    ToolName:  "search_web",
//	    Params:    []tool.Param{{Name: "query", Type: "string", Required: true}},
//	    Responses: []string{"result"},
//	}
type MockTool[S any] struct {
	// ToolName is the name returned in Spec().
	ToolName string

	// Params declares the argument schema.
	Params []Param

	// Responses contains the sequence of results to return.
	Responses []string

	// Err, if set, is returned by Call instead of a response.
	Err error

	// Calls tracks the history of all Call invocations.
	Calls []MockToolCall

	mu        sync.Mutex
	callIndex int
}

// MockToolCall records a single invocation of Call.
type MockToolCall struct {
	Agent string
	Input map[string]any
}

// Spec implements the Tool interface.
func (m *MockTool[S]) Spec() model.ToolSpec {
	return model.ToolSpec{
		Name:        m.ToolName,
		Description: "mock tool " + m.ToolName,
		Schema:      Schema(m.Params),
	}
}

// Call implements the Tool interface.
func (m *MockTool[S]) Call(ctx context.Context, tc *Context[S], args map[string]any) (string, error) {
	if ctx.Err() != nil {
		return "", ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	agent := ""
	if tc != nil {
		agent = tc.Agent
	}
	m.Calls = append(m.Calls, MockToolCall{Agent: agent, Input: args})

	if m.Err != nil {
		return "", m.Err
	}
	if len(m.Responses) == 0 {
		return "", nil
	}

	idx := m.callIndex
	if idx >= len(m.Responses) {
		idx = len(m.Responses) - 1
	} else {
		m.callIndex++
	}
	return m.Responses[idx], nil
}

// CallCount returns the number of times Call has been invoked.
func (m *MockTool[S]) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.Calls)
}
