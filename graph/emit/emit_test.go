package emit

import (
	"bytes"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestLogEmitter_Text(t *testing.T) {
	var buf bytes.Buffer
	emitter := NewLogEmitter(&buf, false)

	emitter.Emit(Event{
		Kind:     KindToolCall,
		RunID:    "run-001",
		Step:     2,
		NodeID:   "ResearchAgent",
		ToolName: "search_web",
		ToolArgs: map[string]any{"query": "translation UI"},
	})

	output := buf.String()
	for _, want := range []string{"[tool_call]", "runID=run-001", "step=2", "nodeID=ResearchAgent", "tool=search_web", `"query":"translation UI"`} {
		if !strings.Contains(output, want) {
			t.Errorf("expected output to contain %q, got: %s", want, output)
		}
	}
	if !strings.HasSuffix(output, "\n") {
		t.Error("expected trailing newline")
	}
}

func TestLogEmitter_JSON(t *testing.T) {
	var buf bytes.Buffer
	emitter := NewLogEmitter(&buf, true)

	emitter.Emit(Event{Kind: KindAgentTransition, RunID: "run-001", Step: 1, NodeID: "WriteAgent", From: "ResearchAgent"})
	emitter.Emit(Event{Kind: KindToolCallResult, RunID: "run-001", Step: 1, NodeID: "WriteAgent", ToolName: "write_report", ToolOutput: "Report written."})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}

	var first map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("expected valid JSON, got %v", err)
	}
	if first["kind"] != "agent_transition" || first["from"] != "ResearchAgent" {
		t.Errorf("unexpected first event %v", first)
	}

	var second map[string]any
	if err := json.Unmarshal([]byte(lines[1]), &second); err != nil {
		t.Fatalf("expected valid JSON, got %v", err)
	}
	if second["output"] != "Report written." {
		t.Errorf("expected output field, got %v", second)
	}
}

func TestLogEmitter_UnmarshalableMeta(t *testing.T) {
	var buf bytes.Buffer
	emitter := NewLogEmitter(&buf, true)

	emitter.Emit(Event{Kind: KindStepSaved, Meta: map[string]any{"ch": make(chan int)}})

	if !strings.Contains(buf.String(), "failed to marshal event") {
		t.Errorf("expected marshal error line, got %s", buf.String())
	}
}

func TestBufferedEmitter(t *testing.T) {
	emitter := NewBufferedEmitter()
	emitter.Emit(Event{Kind: KindAgentTransition, RunID: "r1", Step: 1, NodeID: "ResearchAgent"})
	emitter.Emit(Event{Kind: KindToolCall, RunID: "r1", Step: 1, NodeID: "ResearchAgent", ToolName: "search_web"})
	emitter.Emit(Event{Kind: KindToolCall, RunID: "r1", Step: 2, NodeID: "WriteAgent", ToolName: "write_report"})
	emitter.Emit(Event{Kind: KindToolCall, RunID: "r2", Step: 1, NodeID: "ResearchAgent"})

	t.Run("history preserves order", func(t *testing.T) {
		events := emitter.GetHistory("r1")
		if len(events) != 3 {
			t.Fatalf("expected 3 events, got %d", len(events))
		}
		if events[0].Kind != KindAgentTransition || events[2].NodeID != "WriteAgent" {
			t.Errorf("unexpected order %+v", events)
		}
	})

	t.Run("filter by kind and node", func(t *testing.T) {
		events := emitter.GetHistoryWithFilter("r1", HistoryFilter{Kind: KindToolCall, NodeID: "ResearchAgent"})
		if len(events) != 1 || events[0].ToolName != "search_web" {
			t.Errorf("unexpected filtered events %+v", events)
		}
	})

	t.Run("filter by step range", func(t *testing.T) {
		minStep := 2
		events := emitter.GetHistoryWithFilter("r1", HistoryFilter{MinStep: &minStep})
		if len(events) != 1 {
			t.Errorf("expected 1 event, got %d", len(events))
		}
	})

	t.Run("unknown run returns empty slice", func(t *testing.T) {
		events := emitter.GetHistory("missing")
		if events == nil || len(events) != 0 {
			t.Errorf("expected empty non-nil slice, got %v", events)
		}
	})

	t.Run("clear", func(t *testing.T) {
		emitter.Clear("r2")
		if len(emitter.GetHistory("r2")) != 0 {
			t.Error("expected r2 cleared")
		}
		if len(emitter.GetHistory("r1")) != 3 {
			t.Error("expected r1 untouched")
		}
		emitter.Clear("")
		if len(emitter.GetHistory("r1")) != 0 {
			t.Error("expected all cleared")
		}
	})
}

func TestStream(t *testing.T) {
	t.Run("delivers events in order and closes", func(t *testing.T) {
		stream := NewStream(0)

		go func() {
			defer stream.Close()
			for i := 1; i <= 5; i++ {
				stream.Emit(Event{Kind: KindAgentOutput, Step: i})
			}
		}()

		var steps []int
		for ev := range stream.Events() {
			steps = append(steps, ev.Step)
		}
		if len(steps) != 5 {
			t.Fatalf("expected 5 events, got %d", len(steps))
		}
		for i, s := range steps {
			if s != i+1 {
				t.Errorf("expected step %d at position %d, got %d", i+1, i, s)
			}
		}
	})

	t.Run("emit after close is discarded", func(t *testing.T) {
		stream := NewStream(1)
		stream.Close()
		stream.Close()

		done := make(chan struct{})
		go func() {
			stream.Emit(Event{Kind: KindWorkflowEnd})
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("emit after close blocked")
		}

		if _, ok := <-stream.Events(); ok {
			t.Error("expected closed channel")
		}
	})

	t.Run("abandon unblocks producer", func(t *testing.T) {
		stream := NewStream(0)
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			stream.Emit(Event{Kind: KindToolCall})
		}()

		time.Sleep(10 * time.Millisecond)
		stream.Abandon()

		done := make(chan struct{})
		go func() {
			wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("producer still blocked after Abandon")
		}
	})
}

func TestMulti(t *testing.T) {
	a := NewBufferedEmitter()
	b := NewBufferedEmitter()
	m := Multi(a, nil, b, NewNullEmitter())

	m.Emit(Event{Kind: KindWorkflowStart, RunID: "r"})

	if len(a.GetHistory("r")) != 1 || len(b.GetHistory("r")) != 1 {
		t.Error("expected event fanned out to both buffers")
	}
}
