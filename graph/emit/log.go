package emit

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
)

// LogEmitter implements Emitter by writing one line per event to a writer.
//
// Supports two output modes:
//   - Text mode (default): Human-readable format with key=value pairs
//   - JSON mode: Machine-readable JSON format, one event per line
//
// Example text output:
//
//	[tool_call] runID=run-001 step=2 nodeID=ResearchAgent tool=search_web args={"query":"ui"}
//
// Example JSON output:
//
//	{"kind":"tool_call","runID":"run-001","step":2,"nodeID":"ResearchAgent","tool":"search_web","args":{"query":"ui"}}
type LogEmitter struct {
	mu       sync.Mutex
	writer   io.Writer
	jsonMode bool
}

// NewLogEmitter creates a new LogEmitter. A nil writer selects os.Stdout.
func NewLogEmitter(writer io.Writer, jsonMode bool) *LogEmitter {
	if writer == nil {
		writer = os.Stdout
	}
	return &LogEmitter{
		writer:   writer,
		jsonMode: jsonMode,
	}
}

// Emit writes an event to the configured writer.
func (l *LogEmitter) Emit(event Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.jsonMode {
		l.emitJSON(event)
	} else {
		l.emitText(event)
	}
}

type jsonEvent struct {
	Kind      Kind           `json:"kind"`
	RunID     string         `json:"runID"`
	Step      int            `json:"step"`
	NodeID    string         `json:"nodeID"`
	Msg       string         `json:"msg,omitempty"`
	From      string         `json:"from,omitempty"`
	Text      string         `json:"text,omitempty"`
	ToolCalls []string       `json:"toolCalls,omitempty"`
	ToolName  string         `json:"tool,omitempty"`
	ToolArgs  map[string]any `json:"args,omitempty"`
	Output    any            `json:"output,omitempty"`
	IsError   bool           `json:"isError,omitempty"`
	Meta      map[string]any `json:"meta,omitempty"`
}

func (l *LogEmitter) emitJSON(event Event) {
	data, err := json.Marshal(jsonEvent{
		Kind:      event.Kind,
		RunID:     event.RunID,
		Step:      event.Step,
		NodeID:    event.NodeID,
		Msg:       event.Msg,
		From:      event.From,
		Text:      event.Text,
		ToolCalls: event.ToolCalls,
		ToolName:  event.ToolName,
		ToolArgs:  event.ToolArgs,
		Output:    event.ToolOutput,
		IsError:   event.IsError,
		Meta:      event.Meta,
	})
	if err != nil {
		fmt.Fprintf(l.writer, "{\"error\":\"failed to marshal event: %v\"}\n", err)
		return
	}

	fmt.Fprintf(l.writer, "%s\n", data)
}

func (l *LogEmitter) emitText(event Event) {
	fmt.Fprintf(l.writer, "[%s] runID=%s step=%d nodeID=%s",
		event.Kind, event.RunID, event.Step, event.NodeID)

	switch event.Kind {
	case KindAgentTransition:
		fmt.Fprintf(l.writer, " from=%s", event.From)
	case KindAgentOutput:
		fmt.Fprintf(l.writer, " chars=%d tools=%v", len(event.Text), event.ToolCalls)
	case KindToolCall:
		fmt.Fprintf(l.writer, " tool=%s args=%s", event.ToolName, marshalOrPrint(event.ToolArgs))
	case KindToolCallResult:
		fmt.Fprintf(l.writer, " tool=%s error=%t", event.ToolName, event.IsError)
	}

	if event.Msg != "" {
		fmt.Fprintf(l.writer, " msg=%q", event.Msg)
	}
	if len(event.Meta) > 0 {
		fmt.Fprintf(l.writer, " meta=%s", marshalOrPrint(event.Meta))
	}

	fmt.Fprint(l.writer, "\n")
}

func marshalOrPrint(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
