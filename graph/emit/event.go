package emit

// Kind discriminates the Event union.
type Kind string

// Event kinds streamed during a workflow run.
const (
	// KindAgentTransition marks a change of the active agent. From holds
	// the previous agent (empty at the start), NodeID the new one.
	KindAgentTransition Kind = "agent_transition"

	// KindAgentOutput carries an agent's reply: Text plus the names of the
	// tools it plans to call in ToolCalls.
	KindAgentOutput Kind = "agent_output"

	// KindToolCall announces a tool invocation with ToolName and ToolArgs.
	KindToolCall Kind = "tool_call"

	// KindToolCallResult carries the ToolOutput of a finished call.
	// IsError is set when the tool failed.
	KindToolCallResult Kind = "tool_call_result"

	// KindWorkflowStart is emitted once when the run begins.
	KindWorkflowStart Kind = "workflow_start"

	// KindWorkflowEnd is emitted once when the run finishes successfully.
	KindWorkflowEnd Kind = "workflow_end"

	// KindWorkflowError is emitted once when the run aborts.
	KindWorkflowError Kind = "workflow_error"

	// KindStepSaved is emitted after a state snapshot is persisted.
	KindStepSaved Kind = "step_saved"
)

// Event is an observation emitted during workflow execution.
//
// It is a tagged union: Kind says which of the payload fields are
// meaningful. All events carry RunID, Step and NodeID.
//
// Example:
//
//	emitter.Emit(Event{
//	    Kind:     KindToolCall,
//	    RunID:    "run-001",
//	    Step:     2,
//	    NodeID:   "ResearchAgent",
//	    ToolName: "search_web",
//	    ToolArgs: map[string]any{"query": "translation app UI"},
//	})
type Event struct {
	// Kind identifies the event variant.
	Kind Kind

	// RunID identifies the workflow execution that emitted this event.
	RunID string

	// Step is the agent turn number (1-indexed). Zero for workflow-level
	// events.
	Step int

	// NodeID is the name of the agent the event belongs to.
	NodeID string

	// Msg is a short human-readable description.
	Msg string

	// Text is the agent reply for KindAgentOutput.
	Text string

	// ToolCalls lists planned tool names for KindAgentOutput.
	ToolCalls []string

	// ToolName is the tool for KindToolCall and KindToolCallResult.
	ToolName string

	// ToolArgs are the call arguments for KindToolCall.
	ToolArgs map[string]any

	// ToolOutput is the result for KindToolCallResult. Usually a string,
	// but consumers must accept any value.
	ToolOutput any

	// IsError marks a failed tool call or workflow error.
	IsError bool

	// From is the previous agent for KindAgentTransition.
	From string

	// Meta contains additional structured data. Common keys:
	//   - "duration_ms": turn duration in milliseconds
	//   - "error": error text
	//   - "tokens_in", "tokens_out", "cost_usd", "model": LLM usage
	//   - "version": state version for KindStepSaved
	Meta map[string]any
}
