// Package model provides the conversation types and LLM provider interfaces
// shared by agents and provider adapters.
package model

import "context"

// ChatModel defines the interface for LLM chat providers with function calling.
//
// Implementations should:
//   - Convert the full transcript, including tool calls and tool results,
//     to the provider's wire format
//   - Convert ToolSpec schemas to the provider's function declarations
//   - Map provider tool calls back to ToolCall values with stable IDs
//   - Respect context cancellation
//   - Not retry: provider errors are returned to the caller as-is
//
// Example:
//
//	out, err := m.Chat(ctx, []Message{
//	    {Role: RoleSystem, Content: "You are the WriteAgent."},
//	    {Role: RoleUser, Content: "Write a PRD."},
//	}, specs)
//	for _, call := range out.ToolCalls {
//	    fmt.Printf("Tool: %s, Input: %v\n", call.Name, call.Input)
//	}
type ChatModel interface {
	// Chat sends the conversation to the LLM and returns its reply.
	//
	// The reply may contain text, tool calls, or both. tools may be nil.
	Chat(ctx context.Context, messages []Message, tools []ToolSpec) (ChatOut, error)
}

// Searcher is an LLM with built-in web search grounding.
//
// Search sends a research request for query and returns the model's
// synthesized answer as plain text.
type Searcher interface {
	Search(ctx context.Context, query string) (string, error)
}

// Message represents a single message in an LLM conversation.
//
// Besides plain text, assistant messages may carry the tool calls the model
// requested, and tool messages carry the result of one call, bound to it by
// ToolCallID.
type Message struct {
	// Role identifies the message sender. Use the Role* constants.
	Role string `json:"role"`

	// Content contains the message text. May be empty for assistant
	// messages that only contain tool calls.
	Content string `json:"content,omitempty"`

	// ToolCalls lists the calls requested by an assistant message.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// ToolCallID binds a tool message to the call it answers.
	ToolCallID string `json:"tool_call_id,omitempty"`

	// Name is the tool name for tool messages, or the agent name for
	// assistant messages.
	Name string `json:"name,omitempty"`
}

// Standard role constants for LLM conversations.
const (
	// RoleSystem indicates a system message that sets context or instructions.
	RoleSystem = "system"

	// RoleUser indicates a message from the human user.
	RoleUser = "user"

	// RoleAssistant indicates a response from the LLM.
	RoleAssistant = "assistant"

	// RoleTool indicates the result of a tool call.
	RoleTool = "tool"
)

// ToolSpec describes a tool that an LLM can call.
//
// Schema follows JSON Schema and describes the expected input object:
//
//	ToolSpec{
//	    Name:        "record_notes",
//	    Description: "Useful for recording notes on a given topic.",
//	    Schema: map[string]any{
//	        "type": "object",
//	        "properties": map[string]any{
//	            "notes":       map[string]any{"type": "string"},
//	            "notes_title": map[string]any{"type": "string"},
//	        },
//	        "required": []string{"notes", "notes_title"},
//	    },
//	}
type ToolSpec struct {
	// Name uniquely identifies the tool.
	Name string

	// Description explains what the tool does. The LLM uses this to decide
	// when to call the tool.
	Description string

	// Schema defines the tool's input parameters. Optional for tools with
	// no parameters.
	Schema map[string]any
}

// ChatOut represents the output from an LLM chat completion.
type ChatOut struct {
	// Text contains the LLM's generated response. May be empty if the LLM
	// only wants to call tools.
	Text string

	// ToolCalls contains tools the LLM wants to invoke, in the order the
	// provider returned them.
	ToolCalls []ToolCall

	// Usage reports token consumption for cost tracking. Zero if the
	// provider did not report it.
	Usage Usage

	// Model is the model name that produced the reply.
	Model string
}

// Usage holds token counts for one completion.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// ToolCall represents a request from the LLM to invoke a specific tool.
type ToolCall struct {
	// ID identifies this call within the conversation. Providers without
	// native call IDs get a synthesized one.
	ID string `json:"id"`

	// Name identifies which tool to call.
	Name string `json:"name"`

	// Input contains the arguments, shaped by the tool's ToolSpec.Schema.
	Input map[string]any `json:"input,omitempty"`
}

// Names returns the tool names of calls, in order.
func Names(calls []ToolCall) []string {
	if len(calls) == 0 {
		return nil
	}
	names := make([]string, len(calls))
	for i, c := range calls {
		names[i] = c.Name
	}
	return names
}
