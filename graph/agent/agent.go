// Package agent provides function-calling agents that run as nodes of a
// handoff graph, and the workflow builder that wires them together.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dshills/agentcrew/graph"
	"github.com/dshills/agentcrew/graph/emit"
	"github.com/dshills/agentcrew/graph/model"
	"github.com/dshills/agentcrew/graph/state"
	"github.com/dshills/agentcrew/graph/tool"
)

// HandoffToolName is the name of the tool agents call to transfer control.
const HandoffToolName = "handoff"

// DefaultMaxToolRounds bounds the model calls of a single turn.
const DefaultMaxToolRounds = 20

// ErrToolRoundsExceeded is returned when an agent keeps calling tools past
// MaxToolRounds without answering or handing off.
var ErrToolRoundsExceeded = errors.New("agent exceeded maximum tool rounds")

// ErrNotBound is returned by Run on an agent that was not built into a
// Workflow.
var ErrNotBound = errors.New("agent is not bound to a workflow")

// Compile-time check that FunctionAgent is a graph node.
var _ graph.Node[struct{}] = (*FunctionAgent[struct{}])(nil)

// FunctionAgent is an LLM persona that works through function calling.
//
// Each turn it sends its system prompt plus the shared transcript to Model,
// executes the tools the model asks for, feeds the results back, and repeats
// until the model answers without tool calls (the run ends) or calls the
// handoff tool with a permitted target (control moves to that agent).
type FunctionAgent[S any] struct {
	// Name identifies the agent. Must be unique within a workflow.
	Name string

	// Description tells other agents what this one is for. It is shown to
	// agents that may hand off to it.
	Description string

	SystemPrompt string

	// Tools lists the registry tools this agent may call.
	Tools []string

	// CanHandoffTo lists the agents this agent may transfer control to.
	CanHandoffTo []string

	Model model.ChatModel

	// MaxToolRounds bounds model calls per turn. Zero means
	// DefaultMaxToolRounds.
	MaxToolRounds int

	registry *tool.Registry[S]
	targets  map[string]string // handoff target -> description
}

func (a *FunctionAgent[S]) bind(registry *tool.Registry[S], targets map[string]string) {
	a.registry = registry
	a.targets = targets
}

// Run executes one turn.
func (a *FunctionAgent[S]) Run(ctx context.Context, rc *graph.RunContext[S]) graph.NodeResult {
	if a.registry == nil {
		return graph.NodeResult{Err: fmt.Errorf("%s: %w", a.Name, ErrNotBound)}
	}

	specs, err := a.registry.Specs(a.Tools)
	if err != nil {
		return graph.NodeResult{Err: fmt.Errorf("%s: %w", a.Name, err)}
	}
	if len(a.targets) > 0 {
		specs = append(specs, a.handoffSpec())
	}

	system := model.Message{Role: model.RoleSystem, Content: a.systemPrompt()}
	logger := rc.Log()

	rounds := a.MaxToolRounds
	if rounds <= 0 {
		rounds = DefaultMaxToolRounds
	}

	for round := 1; round <= rounds; round++ {
		if err := ctx.Err(); err != nil {
			return graph.NodeResult{Err: err}
		}

		messages := append([]model.Message{system}, rc.Transcript.Messages()...)

		began := time.Now()
		out, err := a.Model.Chat(ctx, messages, specs)
		if err != nil {
			return graph.NodeResult{Err: fmt.Errorf("%s: chat: %w", a.Name, err)}
		}
		elapsed := time.Since(began)

		cost := rc.Costs.RecordLLMCall(out.Model, out.Usage.InputTokens, out.Usage.OutputTokens, a.Name)
		rc.Metrics.AddTokens(out.Model, out.Usage.InputTokens, out.Usage.OutputTokens)
		logger.Debug("model replied",
			"round", round,
			"tool_calls", len(out.ToolCalls),
			"tokens_in", out.Usage.InputTokens,
			"tokens_out", out.Usage.OutputTokens,
			"duration", elapsed,
		)

		rc.Transcript.Append(model.Message{
			Role:      model.RoleAssistant,
			Content:   out.Text,
			ToolCalls: out.ToolCalls,
			Name:      a.Name,
		})
		rc.Emit(emit.Event{
			Kind:      emit.KindAgentOutput,
			Text:      out.Text,
			ToolCalls: model.Names(out.ToolCalls),
			Meta: map[string]any{
				"model":       out.Model,
				"tokens_in":   out.Usage.InputTokens,
				"tokens_out":  out.Usage.OutputTokens,
				"cost_usd":    cost,
				"duration_ms": elapsed.Milliseconds(),
			},
		})

		if len(out.ToolCalls) == 0 {
			return graph.NodeResult{Output: out.Text, Route: graph.Stop()}
		}

		next, err := a.callTools(ctx, rc, out.ToolCalls)
		if err != nil {
			return graph.NodeResult{Err: err}
		}
		if next != "" {
			return graph.NodeResult{Output: out.Text, Route: graph.Goto(next)}
		}
	}

	return graph.NodeResult{Err: fmt.Errorf("%s: %w (%d)", a.Name, ErrToolRoundsExceeded, rounds)}
}

// callTools executes calls in order and appends one tool message per call.
// It returns the handoff target when a valid handoff was made.
func (a *FunctionAgent[S]) callTools(ctx context.Context, rc *graph.RunContext[S], calls []model.ToolCall) (string, error) {
	next := ""
	for _, call := range calls {
		if next != "" {
			// Providers require a result for every call of a reply.
			rc.Transcript.Append(toolMessage(call, fmt.Sprintf("Not executed: Agent %s is now handling the request.", next)))
			continue
		}

		rc.Emit(emit.Event{
			Kind:     emit.KindToolCall,
			ToolName: call.Name,
			ToolArgs: call.Input,
		})

		if call.Name == HandoffToolName {
			output, target := a.handoff(call)
			status := "success"
			if target == "" {
				status = "rejected"
			}
			rc.Metrics.IncrementToolCalls(call.Name, status)
			rc.Emit(emit.Event{
				Kind:       emit.KindToolCallResult,
				ToolName:   call.Name,
				ToolOutput: output,
			})
			rc.Transcript.Append(toolMessage(call, output))
			next = target
			continue
		}

		output, err := a.callTool(ctx, rc, call)
		if err != nil {
			rc.Metrics.IncrementToolCalls(call.Name, "error")
			rc.Emit(emit.Event{
				Kind:       emit.KindToolCallResult,
				ToolName:   call.Name,
				ToolOutput: err.Error(),
				IsError:    true,
				Meta:       map[string]any{"error": err.Error()},
			})
			return "", fmt.Errorf("%s: tool %s: %w", a.Name, call.Name, err)
		}

		rc.Metrics.IncrementToolCalls(call.Name, "success")
		rc.Emit(emit.Event{
			Kind:       emit.KindToolCallResult,
			ToolName:   call.Name,
			ToolOutput: output,
		})
		rc.Transcript.Append(toolMessage(call, output))
	}
	return next, nil
}

func (a *FunctionAgent[S]) callTool(ctx context.Context, rc *graph.RunContext[S], call model.ToolCall) (string, error) {
	if !contains(a.Tools, call.Name) {
		return "", fmt.Errorf("%w: %s is not available to %s", tool.ErrToolNotFound, call.Name, a.Name)
	}

	before := rc.State.Version()
	output, err := a.registry.Call(ctx, &tool.Context[S]{
		RunID: rc.RunID,
		Agent: a.Name,
		State: rc.State,
	}, call)
	if rc.State.Version() != before {
		rc.Metrics.IncrementStateEdits(call.Name, "success")
	} else if err != nil {
		var editErr *state.EditError
		if errors.As(err, &editErr) {
			rc.Metrics.IncrementStateEdits(call.Name, "error")
		}
	}
	return output, err
}

// handoff validates a handoff call. An unknown target is not an error: the
// model is told which agents are valid and may try again.
func (a *FunctionAgent[S]) handoff(call model.ToolCall) (output, target string) {
	to, _ := call.Input["to_agent"].(string)
	reason, _ := call.Input["reason"].(string)

	if _, ok := a.targets[to]; !ok {
		return fmt.Sprintf("Agent %s not found. Please select a valid agent to hand off to. Valid agents: %s.",
			to, strings.Join(a.targetNames(), ", ")), ""
	}
	return fmt.Sprintf("Agent %s is now handling the request due to the following reason: %s.", to, reason), to
}

func (a *FunctionAgent[S]) handoffSpec() model.ToolSpec {
	return model.ToolSpec{
		Name:        HandoffToolName,
		Description: "Hand off control to another agent when it is better suited to continue the request.",
		Schema: tool.Schema([]tool.Param{
			{
				Name:        "to_agent",
				Type:        "string",
				Description: "The name of the agent to hand off to.",
				Required:    true,
				Enum:        a.targetNames(),
			},
			{
				Name:        "reason",
				Type:        "string",
				Description: "Why control is being handed off.",
				Required:    true,
			},
		}),
	}
}

func (a *FunctionAgent[S]) systemPrompt() string {
	if len(a.targets) == 0 {
		return a.SystemPrompt
	}

	var b strings.Builder
	b.WriteString(a.SystemPrompt)
	b.WriteString("\n\nIf another agent is better suited to continue, call the ")
	b.WriteString(HandoffToolName)
	b.WriteString(" tool. Agents you can hand off to:\n")
	for _, name := range a.targetNames() {
		fmt.Fprintf(&b, "- %s: %s\n", name, a.targets[name])
	}
	return strings.TrimRight(b.String(), "\n")
}

func (a *FunctionAgent[S]) targetNames() []string {
	names := make([]string, 0, len(a.CanHandoffTo))
	for _, name := range a.CanHandoffTo {
		if _, ok := a.targets[name]; ok {
			names = append(names, name)
		}
	}
	return names
}

func toolMessage(call model.ToolCall, content string) model.Message {
	return model.Message{
		Role:       model.RoleTool,
		Content:    content,
		ToolCallID: call.ID,
		Name:       call.Name,
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
