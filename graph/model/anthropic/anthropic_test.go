package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/dshills/agentcrew/graph/model"
)

func TestAnthropicChatModel_Construction(t *testing.T) {
	m := NewChatModel("test-key", "")
	if m.modelName != DefaultModel {
		t.Errorf("expected default model %q, got %q", DefaultModel, m.modelName)
	}
	if m.maxTokens != defaultMaxTokens {
		t.Errorf("expected max tokens %d, got %d", defaultMaxTokens, m.maxTokens)
	}
}

func TestAnthropicChatModel_Chat(t *testing.T) {
	t.Run("converts text and tool_use blocks", func(t *testing.T) {
		client := &mockAnthropicClient{message: &anthropic.Message{
			Content: []anthropic.ContentBlockUnion{
				{Type: "text", Text: "Reviewing now."},
				{Type: "tool_use", ID: "toolu_1", Name: "review_report", Input: json.RawMessage(`{"review":"Approved."}`)},
			},
			Usage: anthropic.Usage{InputTokens: 50, OutputTokens: 7},
		}}
		m := &ChatModel{modelName: DefaultModel, maxTokens: 100, client: client}

		out, err := m.Chat(context.Background(),
			[]model.Message{
				{Role: model.RoleSystem, Content: "You are the ReviewAgent."},
				{Role: model.RoleUser, Content: "review"},
			},
			[]model.ToolSpec{{Name: "review_report", Schema: map[string]any{
				"type":       "object",
				"properties": map[string]any{"review": map[string]any{"type": "string"}},
				"required":   []string{"review"},
			}}})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if out.Text != "Reviewing now." {
			t.Errorf("unexpected text %q", out.Text)
		}
		if len(out.ToolCalls) != 1 || out.ToolCalls[0].Input["review"] != "Approved." {
			t.Errorf("unexpected tool calls %+v", out.ToolCalls)
		}
		if out.Usage.InputTokens != 50 || out.Usage.OutputTokens != 7 {
			t.Errorf("unexpected usage %+v", out.Usage)
		}

		if len(client.params.System) != 1 || client.params.System[0].Text != "You are the ReviewAgent." {
			t.Errorf("expected system prompt to be lifted, got %+v", client.params.System)
		}
		if len(client.params.Tools) != 1 || client.params.Tools[0].OfTool == nil {
			t.Fatal("expected one custom tool")
		}
		if req := client.params.Tools[0].OfTool.InputSchema.Required; len(req) != 1 || req[0] != "review" {
			t.Errorf("unexpected required %v", req)
		}
	})

	t.Run("propagates API errors", func(t *testing.T) {
		boom := errors.New("overloaded")
		m := &ChatModel{modelName: DefaultModel, client: &mockAnthropicClient{err: boom}}

		if _, err := m.Chat(context.Background(), nil, nil); !errors.Is(err, boom) {
			t.Errorf("expected API error, got %v", err)
		}
	})

	t.Run("empty API key", func(t *testing.T) {
		m := NewChatModel("", "")
		if _, err := m.Chat(context.Background(), nil, nil); !errors.Is(err, ErrMissingAPIKey) {
			t.Errorf("expected ErrMissingAPIKey, got %v", err)
		}
	})
}

func TestConvertMessages(t *testing.T) {
	system, msgs := convertMessages([]model.Message{
		{Role: model.RoleSystem, Content: "first"},
		{Role: model.RoleSystem, Content: "second"},
		{Role: model.RoleUser, Content: "brief"},
		{Role: model.RoleAssistant, ToolCalls: []model.ToolCall{
			{ID: "t1", Name: "search_web", Input: map[string]any{"query": "a"}},
			{ID: "t2", Name: "search_web", Input: map[string]any{"query": "b"}},
		}},
		{Role: model.RoleTool, ToolCallID: "t1", Content: "one"},
		{Role: model.RoleTool, ToolCallID: "t2", Content: "two"},
	})

	if system != "first\n\nsecond" {
		t.Errorf("unexpected system prompt %q", system)
	}
	if len(msgs) != 3 {
		t.Fatalf("expected 3 alternating messages, got %d", len(msgs))
	}
	if msgs[1].Role != anthropic.MessageParamRoleAssistant || len(msgs[1].Content) != 2 {
		t.Errorf("expected assistant turn with 2 tool_use blocks")
	}
	if msgs[1].Content[0].OfToolUse == nil || msgs[1].Content[0].OfToolUse.ID != "t1" {
		t.Errorf("expected first tool_use block with id t1")
	}
	last := msgs[2]
	if last.Role != anthropic.MessageParamRoleUser || len(last.Content) != 2 {
		t.Fatalf("expected merged user turn with 2 tool results")
	}
	if last.Content[1].OfToolResult == nil || last.Content[1].OfToolResult.ToolUseID != "t2" {
		t.Errorf("expected second tool result for t2")
	}
}

type mockAnthropicClient struct {
	message *anthropic.Message
	err     error
	params  anthropic.MessageNewParams
}

func (m *mockAnthropicClient) createMessage(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error) {
	m.params = params
	if m.err != nil {
		return nil, m.err
	}
	return m.message, nil
}
