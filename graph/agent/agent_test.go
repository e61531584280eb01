package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/dshills/agentcrew/graph"
	"github.com/dshills/agentcrew/graph/emit"
	"github.com/dshills/agentcrew/graph/model"
	"github.com/dshills/agentcrew/graph/tool"
)

type docState struct {
	Notes  map[string]string `json:"notes"`
	Report string            `json:"report"`
}

func call(id, name string, input map[string]any) model.ToolCall {
	return model.ToolCall{ID: id, Name: name, Input: input}
}

func handoffTo(id, to string) model.ToolCall {
	return call(id, HandoffToolName, map[string]any{"to_agent": to, "reason": "notes are ready"})
}

func writeTool() tool.Tool[docState] {
	return tool.Func[docState]("write_report", "Write the report.",
		[]tool.Param{{Name: "report_content", Type: "string", Required: true}},
		func(ctx context.Context, tc *tool.Context[docState], args map[string]any) (string, error) {
			content := args["report_content"].(string)
			err := tc.State.Edit(ctx, func(s *docState) error {
				s.Report = content
				return nil
			})
			if err != nil {
				return "", err
			}
			return "Report written.", nil
		})
}

type fixture struct {
	search   *tool.MockTool[docState]
	research *model.MockChatModel
	write    *model.MockChatModel
	review   *model.MockChatModel
	events   *emit.BufferedEmitter
}

func newFixture() *fixture {
	return &fixture{
		search: &tool.MockTool[docState]{
			ToolName:  "search_web",
			Params:    []tool.Param{{Name: "query", Type: "string", Required: true}},
			Responses: []string{"translation apps need offline mode"},
		},
		research: &model.MockChatModel{},
		write:    &model.MockChatModel{},
		review:   &model.MockChatModel{},
		events:   emit.NewBufferedEmitter(),
	}
}

func (f *fixture) workflow(t *testing.T, opts ...graph.Option) *Workflow[docState] {
	t.Helper()
	registry, err := tool.NewRegistry[docState](f.search, writeTool())
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}

	wf, err := NewWorkflow(WorkflowConfig[docState]{
		Agents: []*FunctionAgent[docState]{
			{
				Name:          "ResearchAgent",
				Description:   "Searches the web and records notes.",
				SystemPrompt:  "You research.",
				Tools:         []string{"search_web"},
				CanHandoffTo:  []string{"WriteAgent"},
				Model:         f.research,
				MaxToolRounds: 4,
			},
			{
				Name:         "WriteAgent",
				Description:  "Writes the report.",
				SystemPrompt: "You write.",
				Tools:        []string{"write_report"},
				CanHandoffTo: []string{"ReviewAgent", "ResearchAgent"},
				Model:        f.write,
			},
			{
				Name:         "ReviewAgent",
				Description:  "Reviews the report.",
				SystemPrompt: "You review.",
				CanHandoffTo: []string{"WriteAgent"},
				Model:        f.review,
			},
		},
		Tools:         registry,
		Root:          "ResearchAgent",
		InitialState:  docState{Notes: map[string]string{}},
		Emitter:       f.events,
		EngineOptions: opts,
	})
	if err != nil {
		t.Fatalf("NewWorkflow failed: %v", err)
	}
	return wf
}

// run executes the workflow, draining the live stream.
func run(t *testing.T, wf *Workflow[docState], msg string) ([]emit.Event, graph.Result[docState], error) {
	t.Helper()
	h, err := wf.RunWithID(context.Background(), "run-test", msg)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	var events []emit.Event
	for ev := range h.Events() {
		events = append(events, ev)
	}
	res, err := h.Wait()
	return events, res, err
}

func filter(events []emit.Event, kind emit.Kind) []emit.Event {
	var out []emit.Event
	for _, ev := range events {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

func TestFunctionAgent_HandoffFlow(t *testing.T) {
	f := newFixture()
	f.research.Responses = []model.ChatOut{
		{Text: "Searching.", ToolCalls: []model.ToolCall{call("c1", "search_web", map[string]any{"query": "translation app"})}},
		{ToolCalls: []model.ToolCall{handoffTo("c2", "WriteAgent")}},
	}
	f.write.Responses = []model.ChatOut{
		{ToolCalls: []model.ToolCall{call("c3", "write_report", map[string]any{"report_content": "# PRD"})}},
		{Text: "The report is complete."},
	}

	events, res, err := run(t, f.workflow(t), "Write a PRD")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.Output != "The report is complete." {
		t.Errorf("unexpected output %q", res.Output)
	}
	if res.State.Report != "# PRD" {
		t.Errorf("expected report in final state, got %q", res.State.Report)
	}

	if got := f.search.CallCount(); got != 1 {
		t.Errorf("expected 1 search, got %d", got)
	}
	if f.search.Calls[0].Agent != "ResearchAgent" {
		t.Errorf("expected tool context agent ResearchAgent, got %q", f.search.Calls[0].Agent)
	}

	transitions := filter(events, emit.KindAgentTransition)
	if len(transitions) != 2 || transitions[1].NodeID != "WriteAgent" || transitions[1].From != "ResearchAgent" {
		t.Errorf("unexpected transitions %+v", transitions)
	}

	outputs := filter(events, emit.KindAgentOutput)
	if len(outputs) != 4 {
		t.Fatalf("expected 4 agent outputs, got %d", len(outputs))
	}
	if outputs[0].Text != "Searching." || len(outputs[0].ToolCalls) != 1 || outputs[0].ToolCalls[0] != "search_web" {
		t.Errorf("unexpected first output %+v", outputs[0])
	}

	results := filter(events, emit.KindToolCallResult)
	var handoffOut string
	for _, r := range results {
		if r.ToolName == HandoffToolName {
			handoffOut, _ = r.ToolOutput.(string)
		}
	}
	want := "Agent WriteAgent is now handling the request due to the following reason: notes are ready."
	if handoffOut != want {
		t.Errorf("expected handoff result %q, got %q", want, handoffOut)
	}

	// WriteAgent sees the whole shared transcript, including ResearchAgent's work.
	firstWriteCall := f.write.Calls[0].Messages
	if firstWriteCall[0].Role != model.RoleSystem || !strings.HasPrefix(firstWriteCall[0].Content, "You write.") {
		t.Errorf("expected WriteAgent system prompt first, got %+v", firstWriteCall[0])
	}
	if firstWriteCall[1].Role != model.RoleUser || firstWriteCall[1].Content != "Write a PRD" {
		t.Errorf("expected user message second, got %+v", firstWriteCall[1])
	}
	var sawSearchResult bool
	for _, m := range firstWriteCall {
		if m.Role == model.RoleTool && m.ToolCallID == "c1" {
			sawSearchResult = true
		}
	}
	if !sawSearchResult {
		t.Error("expected search result in WriteAgent's view of the transcript")
	}
}

func TestFunctionAgent_InvalidHandoffTarget(t *testing.T) {
	f := newFixture()
	f.research.Responses = []model.ChatOut{
		{ToolCalls: []model.ToolCall{handoffTo("c1", "ReviewAgent")}},
		{ToolCalls: []model.ToolCall{handoffTo("c2", "WriteAgent")}},
	}
	f.write.Responses = []model.ChatOut{{Text: "done"}}

	events, _, err := run(t, f.workflow(t), "go")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	results := filter(events, emit.KindToolCallResult)
	if len(results) < 1 {
		t.Fatal("expected tool results")
	}
	rejection, _ := results[0].ToolOutput.(string)
	if !strings.Contains(rejection, "Agent ReviewAgent not found") || !strings.Contains(rejection, "WriteAgent") {
		t.Errorf("unexpected rejection %q", rejection)
	}
	if results[0].IsError {
		t.Error("rejected handoff should not be an error result")
	}

	if f.research.CallCount() != 2 {
		t.Errorf("expected ResearchAgent to retry, got %d calls", f.research.CallCount())
	}
	if f.review.CallCount() != 0 {
		t.Error("ReviewAgent must not run")
	}
}

func TestFunctionAgent_ToolErrorAbortsRun(t *testing.T) {
	f := newFixture()
	f.search.Err = errors.New("quota exceeded")
	f.research.Responses = []model.ChatOut{
		{ToolCalls: []model.ToolCall{call("c1", "search_web", map[string]any{"query": "x"})}},
	}

	events, _, err := run(t, f.workflow(t), "go")
	if err == nil || !errors.Is(err, f.search.Err) {
		t.Fatalf("expected tool error, got %v", err)
	}

	results := filter(events, emit.KindToolCallResult)
	if len(results) != 1 || !results[0].IsError {
		t.Errorf("expected one failed tool result, got %+v", results)
	}
	if last := events[len(events)-1]; last.Kind != emit.KindWorkflowError {
		t.Errorf("expected workflow_error last, got %s", last.Kind)
	}
}

func TestFunctionAgent_ToolRoundsExceeded(t *testing.T) {
	f := newFixture()
	f.research.Responses = []model.ChatOut{
		{ToolCalls: []model.ToolCall{call("c1", "search_web", map[string]any{"query": "again"})}},
	}

	_, _, err := run(t, f.workflow(t), "go")
	if !errors.Is(err, ErrToolRoundsExceeded) {
		t.Fatalf("expected ErrToolRoundsExceeded, got %v", err)
	}
	if got := f.search.CallCount(); got != 4 {
		t.Errorf("expected 4 searches, got %d", got)
	}
}

func TestFunctionAgent_ToolNotAvailable(t *testing.T) {
	f := newFixture()
	f.research.Responses = []model.ChatOut{
		{ToolCalls: []model.ToolCall{call("c1", "write_report", map[string]any{"report_content": "x"})}},
	}

	_, res, err := run(t, f.workflow(t), "go")
	if !errors.Is(err, tool.ErrToolNotFound) {
		t.Fatalf("expected ErrToolNotFound, got %v", err)
	}
	if res.State.Report != "" {
		t.Error("tool outside the agent's set must not run")
	}
}

func TestFunctionAgent_BadArguments(t *testing.T) {
	f := newFixture()
	f.research.Responses = []model.ChatOut{
		{ToolCalls: []model.ToolCall{call("c1", "search_web", map[string]any{"query": 42})}},
	}

	_, _, err := run(t, f.workflow(t), "go")
	var argErr *tool.ArgumentError
	if !errors.As(err, &argErr) {
		t.Fatalf("expected ArgumentError, got %v", err)
	}
	if f.search.CallCount() != 0 {
		t.Error("tool must not run with invalid arguments")
	}
}

func TestFunctionAgent_CallsAfterHandoffNotExecuted(t *testing.T) {
	f := newFixture()
	f.research.Responses = []model.ChatOut{
		{ToolCalls: []model.ToolCall{
			handoffTo("c1", "WriteAgent"),
			call("c2", "search_web", map[string]any{"query": "late"}),
		}},
	}
	f.write.Responses = []model.ChatOut{{Text: "done"}}

	_, _, err := run(t, f.workflow(t), "go")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.search.CallCount() != 0 {
		t.Error("expected search after handoff to be skipped")
	}

	var skipped bool
	for _, m := range f.write.Calls[0].Messages {
		if m.Role == model.RoleTool && m.ToolCallID == "c2" && strings.HasPrefix(m.Content, "Not executed") {
			skipped = true
		}
	}
	if !skipped {
		t.Error("expected a tool message for the skipped call")
	}
}

func TestFunctionAgent_ModelError(t *testing.T) {
	f := newFixture()
	f.research.Err = errors.New("503 from provider")

	_, _, err := run(t, f.workflow(t), "go")
	if !errors.Is(err, f.research.Err) {
		t.Errorf("expected model error, got %v", err)
	}
}

func TestFunctionAgent_PromptAndTools(t *testing.T) {
	f := newFixture()
	f.research.Responses = []model.ChatOut{{Text: "nothing to do"}}

	if _, _, err := run(t, f.workflow(t), "go"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	first := f.research.Calls[0]
	system := first.Messages[0].Content
	if !strings.Contains(system, "- WriteAgent: Writes the report.") {
		t.Errorf("expected handoff targets in system prompt, got %q", system)
	}
	if strings.Contains(system, "ReviewAgent") {
		t.Error("system prompt must list only permitted targets")
	}

	var names []string
	var handoffSpec model.ToolSpec
	for _, spec := range first.Tools {
		names = append(names, spec.Name)
		if spec.Name == HandoffToolName {
			handoffSpec = spec
		}
	}
	if len(names) != 2 || names[0] != "search_web" || names[1] != HandoffToolName {
		t.Errorf("unexpected tools %v", names)
	}
	props := handoffSpec.Schema["properties"].(map[string]any)
	enum := props["to_agent"].(map[string]any)["enum"].([]string)
	if len(enum) != 1 || enum[0] != "WriteAgent" {
		t.Errorf("expected enum [WriteAgent], got %v", enum)
	}
}

func TestFunctionAgent_Unbound(t *testing.T) {
	a := &FunctionAgent[docState]{Name: "Loose", Model: &model.MockChatModel{}}
	res := a.Run(context.Background(), &graph.RunContext[docState]{})
	if !errors.Is(res.Err, ErrNotBound) {
		t.Errorf("expected ErrNotBound, got %v", res.Err)
	}
}

func TestFunctionAgent_CostTracking(t *testing.T) {
	f := newFixture()
	f.research.Responses = []model.ChatOut{{
		Text:  "done",
		Model: "gemini-2.5-pro",
		Usage: model.Usage{InputTokens: 1000, OutputTokens: 100},
	}}
	tracker := graph.NewCostTracker("run-test", "USD")

	events, _, err := run(t, f.workflow(t, graph.WithCostTracker(tracker)), "go")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	in, out := tracker.GetTokenUsage()
	if in != 1000 || out != 100 {
		t.Errorf("expected 1000/100 tokens, got %d/%d", in, out)
	}
	outputs := filter(events, emit.KindAgentOutput)
	if outputs[0].Meta["model"] != "gemini-2.5-pro" {
		t.Errorf("expected model in meta, got %v", outputs[0].Meta)
	}
}
