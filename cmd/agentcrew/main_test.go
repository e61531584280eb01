package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dshills/agentcrew/graph/agent"
	"github.com/dshills/agentcrew/graph/emit"
	"github.com/dshills/agentcrew/graph/model"
	"github.com/dshills/agentcrew/graph/model/anthropic"
	"github.com/dshills/agentcrew/graph/model/google"
	"github.com/dshills/agentcrew/graph/model/openai"
	"github.com/dshills/agentcrew/internal/config"
	"github.com/dshills/agentcrew/internal/render"
	"github.com/dshills/agentcrew/internal/report"
)

func TestNewChatModel(t *testing.T) {
	tests := []struct {
		provider string
		check    func(any) bool
	}{
		{config.ProviderGoogle, func(m any) bool { _, ok := m.(*google.ChatModel); return ok }},
		{config.ProviderOpenAI, func(m any) bool { _, ok := m.(*openai.ChatModel); return ok }},
		{config.ProviderAnthropic, func(m any) bool { _, ok := m.(*anthropic.ChatModel); return ok }},
	}
	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			cfg := config.Default()
			cfg.Provider = tt.provider
			m, err := newChatModel(&cfg)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tt.check(m) {
				t.Errorf("unexpected model type %T", m)
			}
		})
	}

	cfg := config.Default()
	cfg.Provider = "cohere"
	if _, err := newChatModel(&cfg); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestNewLogger(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		cfg := config.Default()
		cfg.Log.Format = "json"
		logger, err := newLogger(&cfg, &buf)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		logger.Info("hello", "run_id", "r1")
		if !strings.Contains(buf.String(), `"run_id":"r1"`) {
			t.Errorf("expected JSON output, got %q", buf.String())
		}
	})

	t.Run("level filters", func(t *testing.T) {
		var buf bytes.Buffer
		cfg := config.Default()
		cfg.Log.Level = "warn"
		logger, err := newLogger(&cfg, &buf)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		logger.Info("hidden")
		if buf.Len() != 0 {
			t.Errorf("expected info to be filtered, got %q", buf.String())
		}
	})
}

func TestNewTracing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.json")
	em, shutdown, err := newTracing(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	em.Emit(emit.Event{Kind: emit.KindWorkflowStart, RunID: "run-1", Msg: "start"})
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read trace: %v", err)
	}
	if !strings.Contains(string(data), "run-1") {
		t.Errorf("expected span for run-1 in trace file, got %q", data)
	}
}

type failWriter struct{}

func (failWriter) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }

func TestExecute(t *testing.T) {
	script := func() *model.MockChatModel {
		return &model.MockChatModel{Responses: []model.ChatOut{
			{ToolCalls: []model.ToolCall{{ID: "n1", Name: report.ToolRecordNotes, Input: map[string]any{"notes": "Big buttons.", "notes_title": "UI"}}}},
			{Text: "Done."},
		}}
	}
	newWorkflow := func(t *testing.T, chat model.ChatModel) *agent.Workflow[report.State] {
		t.Helper()
		wf, err := report.NewWorkflow(report.Deps{Model: chat, Searcher: &model.MockSearcher{Result: "r"}})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		return wf
	}

	t.Run("renders the run", func(t *testing.T) {
		var buf bytes.Buffer
		r, err := render.New(&buf, render.Options{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		res, err := execute(context.Background(), newWorkflow(t, script()), "run-ok", "reqs", r)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.State.ResearchNotes["UI"] != "Big buttons." {
			t.Errorf("expected notes in final state, got %v", res.State.ResearchNotes)
		}
		if !strings.Contains(buf.String(), "🤖 Agent: "+report.ResearchAgent) {
			t.Errorf("expected agent banner, got %q", buf.String())
		}
	})

	t.Run("render error stops the run", func(t *testing.T) {
		chat := script()
		r, err := render.New(failWriter{}, render.Options{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		_, err = execute(context.Background(), newWorkflow(t, chat), "run-fail", "reqs", r)
		if err == nil || !strings.Contains(err.Error(), "broken pipe") {
			t.Fatalf("expected render error, got %v", err)
		}
		if n := chat.CallCount(); n != 0 {
			t.Errorf("expected no model calls after the render error, got %d", n)
		}
	})
}
