package render

import (
	"bytes"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dshills/agentcrew/graph/emit"
	"github.com/dshills/agentcrew/internal/report"
)

func mustNew(t *testing.T, w io.Writer, opts Options) *Renderer {
	t.Helper()
	r, err := New(w, opts)
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}
	return r
}

func TestNew_MarkdownStyle(t *testing.T) {
	t.Run("named style", func(t *testing.T) {
		r, err := New(io.Discard, Options{Markdown: true, Style: "dark"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if r.md == nil {
			t.Error("expected markdown renderer to be set")
		}
	})

	t.Run("missing style file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "missing.json")
		r, err := New(io.Discard, Options{Markdown: true, Style: path})
		if err == nil {
			t.Fatal("expected error for missing style file, got nil")
		}
		if r != nil {
			t.Errorf("expected nil renderer, got %+v", r)
		}
	})

	t.Run("markdown off ignores style", func(t *testing.T) {
		r, err := New(io.Discard, Options{Style: "/no/such/style.json"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if r.md != nil {
			t.Error("expected no markdown renderer")
		}
	})
}

func TestRender_Banner(t *testing.T) {
	var buf bytes.Buffer
	r := mustNew(t, &buf, Options{})

	events := []emit.Event{
		{Kind: emit.KindWorkflowStart},
		{Kind: emit.KindAgentTransition, NodeID: "ResearchAgent"},
		{Kind: emit.KindAgentOutput, NodeID: "ResearchAgent", Text: "Searching."},
		{Kind: emit.KindAgentOutput, NodeID: "WriteAgent", Text: "Drafting."},
	}
	for _, ev := range events {
		if err := r.Render(ev); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	out := buf.String()
	if n := strings.Count(out, "🤖 Agent: ResearchAgent"); n != 1 {
		t.Errorf("expected one ResearchAgent banner, got %d", n)
	}
	if !strings.Contains(out, "🤖 Agent: WriteAgent") {
		t.Error("expected banner for WriteAgent")
	}
	// The event that changes the agent is rendered after its banner.
	if !strings.Contains(out, "📤 Output: Drafting.") {
		t.Errorf("expected output after banner, got:\n%s", out)
	}
	if strings.Index(out, "WriteAgent") > strings.Index(out, "Drafting.") {
		t.Error("expected banner before the output")
	}
}

func TestRender_AgentOutput(t *testing.T) {
	tests := []struct {
		name    string
		event   emit.Event
		want    []string
		notWant []string
	}{
		{
			name:    "text only",
			event:   emit.Event{Kind: emit.KindAgentOutput, Text: "Hello"},
			want:    []string{"📤 Output: Hello"},
			notWant: []string{"Planning"},
		},
		{
			name:    "tools only",
			event:   emit.Event{Kind: emit.KindAgentOutput, ToolCalls: []string{"search_web", "record_notes"}},
			want:    []string{"🛠️ Planning to use tools: [search_web, record_notes]"},
			notWant: []string{"📤"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := mustNew(t, &buf, Options{}).Render(tt.event); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			for _, w := range tt.want {
				if !strings.Contains(buf.String(), w) {
					t.Errorf("expected %q in %q", w, buf.String())
				}
			}
			for _, w := range tt.notWant {
				if strings.Contains(buf.String(), w) {
					t.Errorf("did not expect %q in %q", w, buf.String())
				}
			}
		})
	}
}

func TestRender_ToolResult(t *testing.T) {
	t.Run("long output truncated", func(t *testing.T) {
		var buf bytes.Buffer
		long := strings.Repeat("é", 500)
		err := mustNew(t, &buf, Options{}).Render(emit.Event{Kind: emit.KindToolCallResult, ToolName: "search_web", ToolOutput: long})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "🔧 Tool Result (search_web):") {
			t.Errorf("missing header in %q", buf.String())
		}
		if n := strings.Count(buf.String(), "é"); n != MaxToolOutput {
			t.Errorf("expected %d characters, got %d", MaxToolOutput, n)
		}
	})

	t.Run("non-text output", func(t *testing.T) {
		var buf bytes.Buffer
		err := mustNew(t, &buf, Options{}).Render(emit.Event{Kind: emit.KindToolCallResult, ToolName: "x", ToolOutput: map[string]int{"a": 1}})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "Output: map[a:1]...") {
			t.Errorf("unexpected output %q", buf.String())
		}
	})

	t.Run("nil output", func(t *testing.T) {
		var buf bytes.Buffer
		if err := mustNew(t, &buf, Options{}).Render(emit.Event{Kind: emit.KindToolCallResult, ToolName: "x"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}

func TestRender_ToolCall(t *testing.T) {
	var buf bytes.Buffer
	r := mustNew(t, &buf, Options{})

	_ = r.Render(emit.Event{Kind: emit.KindToolCall, ToolName: "handoff", ToolArgs: map[string]any{"to_agent": "WriteAgent"}})
	if buf.Len() != 0 {
		t.Errorf("expected handoff call hidden, got %q", buf.String())
	}

	_ = r.Render(emit.Event{Kind: emit.KindToolCall, ToolName: "search_web", ToolArgs: map[string]any{"query": "ux"}})
	out := buf.String()
	if !strings.Contains(out, "🔨 Calling Tool: search_web") {
		t.Errorf("missing tool name in %q", out)
	}
	if !strings.Contains(out, `With arguments: {"query":"ux"}`) {
		t.Errorf("missing arguments in %q", out)
	}
}

func TestRender_IgnoresOtherKinds(t *testing.T) {
	var buf bytes.Buffer
	r := mustNew(t, &buf, Options{})
	for _, k := range []emit.Kind{emit.KindWorkflowStart, emit.KindStepSaved, emit.KindWorkflowEnd} {
		if err := r.Render(emit.Event{Kind: k}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if buf.Len() != 0 {
		t.Errorf("expected no output, got %q", buf.String())
	}
}

func TestFinal(t *testing.T) {
	var buf bytes.Buffer
	s := report.NewState()
	s.ReportContent = "# PRD"
	s.Review = "Approved."

	if err := mustNew(t, &buf, Options{}).Final(s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Workflow Complete", "Final Report Content", "# PRD", "Final Review", "Approved."} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output", want)
		}
	}
}

type failWriter struct{}

func (failWriter) Write([]byte) (int, error) { return 0, errors.New("closed pipe") }

func TestRender_WriteError(t *testing.T) {
	r := mustNew(t, failWriter{}, Options{})
	if err := r.Render(emit.Event{Kind: emit.KindAgentOutput, NodeID: "A", Text: "x"}); err == nil {
		t.Error("expected write error")
	}
	if err := r.Final(report.NewState()); err == nil {
		t.Error("expected write error from Final")
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("abc", 5); got != "abc" {
		t.Errorf("expected abc, got %q", got)
	}
	if got := Truncate("abcdef", 3); got != "abc" {
		t.Errorf("expected abc, got %q", got)
	}
}
