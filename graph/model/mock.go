package model

import (
	"context"
	"sync"
)

// MockChatModel is a scripted ChatModel for tests.
//
// Each call to Chat returns the next entry of Responses; once they are
// consumed the last one repeats. Err, if set, is returned instead. Every
// call is recorded in Calls.
//
// Example:
//
//	mock := &MockChatModel{
//	    Responses: []ChatOut{
//	        {ToolCalls: []ToolCall{{ID: "c1", Name: "search_web", Input: map[string]any{"query": "ux"}}}},
//	        {Text: "Done."},
//	    },
//	}
type MockChatModel struct {
	// Responses contains the sequence of responses to return.
	Responses []ChatOut

	// Err, if set, will be returned by Chat() instead of a response.
	Err error

	// Calls tracks the history of all Chat() invocations.
	Calls []MockChatCall

	mu        sync.Mutex
	callIndex int
}

// MockChatCall records a single invocation of Chat().
type MockChatCall struct {
	Messages []Message
	Tools    []ToolSpec
}

// Chat implements the ChatModel interface.
func (m *MockChatModel) Chat(ctx context.Context, messages []Message, tools []ToolSpec) (ChatOut, error) {
	if ctx.Err() != nil {
		return ChatOut{}, ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	recorded := make([]Message, len(messages))
	copy(recorded, messages)
	m.Calls = append(m.Calls, MockChatCall{Messages: recorded, Tools: tools})

	if m.Err != nil {
		return ChatOut{}, m.Err
	}
	if len(m.Responses) == 0 {
		return ChatOut{}, nil
	}

	idx := m.callIndex
	if idx >= len(m.Responses) {
		idx = len(m.Responses) - 1
	} else {
		m.callIndex++
	}
	return m.Responses[idx], nil
}

// Reset clears the call history and rewinds the responses.
func (m *MockChatModel) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = nil
	m.callIndex = 0
}

// CallCount returns the number of times Chat() has been called.
func (m *MockChatModel) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.Calls)
}

// MockSearcher is a Searcher for tests. It returns Result (or Err) and
// records every query.
type MockSearcher struct {
	Result string
	Err    error

	mu      sync.Mutex
	Queries []string
}

// Search implements the Searcher interface.
func (m *MockSearcher) Search(ctx context.Context, query string) (string, error) {
	if ctx.Err() != nil {
		return "", ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.Queries = append(m.Queries, query)
	if m.Err != nil {
		return "", m.Err
	}
	return m.Result, nil
}
