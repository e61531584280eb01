// Package anthropic provides a ChatModel adapter for Anthropic's Messages API.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/dshills/agentcrew/graph/model"
)

// DefaultModel is the Claude model used when none is configured.
const DefaultModel = "claude-sonnet-4-5"

// defaultMaxTokens bounds each reply. Reports can be long.
const defaultMaxTokens = 8192

// ErrMissingAPIKey is returned when a request is attempted without a key.
var ErrMissingAPIKey = errors.New("anthropic API key is required")

// ChatModel implements model.ChatModel for Anthropic's Messages API.
//
// System messages are lifted into the request's system prompt. Tool calls
// become tool_use blocks and tool results become tool_result blocks, with
// consecutive same-role messages merged so turns alternate as the API
// requires.
//
// Example usage:
//
//	m := anthropic.NewChatModel(os.Getenv("ANTHROPIC_API_KEY"), "")
//	out, err := m.Chat(ctx, messages, specs)
type ChatModel struct {
	modelName string
	maxTokens int64
	client    anthropicClient
}

// anthropicClient defines the interface for Anthropic API operations.
// This allows for easy mocking in tests.
type anthropicClient interface {
	createMessage(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error)
}

// NewChatModel creates a new Anthropic ChatModel. An empty modelName
// selects DefaultModel.
func NewChatModel(apiKey, modelName string) *ChatModel {
	if modelName == "" {
		modelName = DefaultModel
	}

	return &ChatModel{
		modelName: modelName,
		maxTokens: defaultMaxTokens,
		client:    &defaultClient{apiKey: apiKey},
	}
}

// Chat implements the model.ChatModel interface.
func (m *ChatModel) Chat(ctx context.Context, messages []model.Message, tools []model.ToolSpec) (model.ChatOut, error) {
	if ctx.Err() != nil {
		return model.ChatOut{}, ctx.Err()
	}

	system, msgs := convertMessages(messages)
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(m.modelName),
		MaxTokens: m.maxTokens,
		Messages:  msgs,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if len(tools) > 0 {
		params.Tools = convertTools(tools)
	}

	message, err := m.client.createMessage(ctx, params)
	if err != nil {
		return model.ChatOut{}, err
	}

	out, err := convertResponse(message)
	if err != nil {
		return model.ChatOut{}, err
	}
	out.Model = m.modelName
	return out, nil
}

// defaultClient wraps the official Anthropic SDK client.
type defaultClient struct {
	apiKey string
	client *anthropic.Client
}

func (c *defaultClient) createMessage(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error) {
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	if c.client == nil {
		client := anthropic.NewClient(option.WithAPIKey(c.apiKey), option.WithMaxRetries(0))
		c.client = &client
	}

	message, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic API error: %w", err)
	}
	return message, nil
}

// convertMessages splits out the system prompt and converts the rest of
// the transcript to alternating user/assistant message params.
func convertMessages(messages []model.Message) (string, []anthropic.MessageParam) {
	var system []string
	var out []anthropic.MessageParam

	appendBlocks := func(role anthropic.MessageParamRole, blocks ...anthropic.ContentBlockParamUnion) {
		if len(blocks) == 0 {
			return
		}
		if n := len(out); n > 0 && out[n-1].Role == role {
			out[n-1].Content = append(out[n-1].Content, blocks...)
			return
		}
		if role == anthropic.MessageParamRoleAssistant {
			out = append(out, anthropic.NewAssistantMessage(blocks...))
		} else {
			out = append(out, anthropic.NewUserMessage(blocks...))
		}
	}

	for _, msg := range messages {
		switch msg.Role {
		case model.RoleSystem:
			system = append(system, msg.Content)

		case model.RoleAssistant:
			var blocks []anthropic.ContentBlockParamUnion
			if msg.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
			}
			for _, call := range msg.ToolCalls {
				input := call.Input
				if input == nil {
					input = map[string]any{}
				}
				blocks = append(blocks, anthropic.NewToolUseBlock(call.ID, input, call.Name))
			}
			appendBlocks(anthropic.MessageParamRoleAssistant, blocks...)

		case model.RoleTool:
			appendBlocks(anthropic.MessageParamRoleUser, anthropic.NewToolResultBlock(msg.ToolCallID, msg.Content, false))

		default:
			if msg.Content != "" {
				appendBlocks(anthropic.MessageParamRoleUser, anthropic.NewTextBlock(msg.Content))
			}
		}
	}

	return strings.Join(system, "\n\n"), out
}

// convertTools converts tool specs to Anthropic custom tools.
func convertTools(tools []model.ToolSpec) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, len(tools))
	for i, tool := range tools {
		schema := anthropic.ToolInputSchemaParam{}
		if tool.Schema != nil {
			schema.Properties = tool.Schema["properties"]
			switch req := tool.Schema["required"].(type) {
			case []string:
				schema.Required = req
			case []any:
				for _, r := range req {
					if s, ok := r.(string); ok {
						schema.Required = append(schema.Required, s)
					}
				}
			}
		}
		out[i] = anthropic.ToolUnionParam{OfTool: &anthropic.ToolParam{
			Name:        tool.Name,
			Description: anthropic.String(tool.Description),
			InputSchema: schema,
		}}
	}
	return out
}

// convertResponse converts the response content blocks to ChatOut.
func convertResponse(message *anthropic.Message) (model.ChatOut, error) {
	out := model.ChatOut{}
	if message == nil {
		return out, nil
	}

	out.Usage = model.Usage{
		InputTokens:  int(message.Usage.InputTokens),
		OutputTokens: int(message.Usage.OutputTokens),
	}

	for _, block := range message.Content {
		switch block.Type {
		case "text":
			if out.Text != "" {
				out.Text += "\n"
			}
			out.Text += block.Text

		case "tool_use":
			var input map[string]any
			if len(block.Input) > 0 {
				if err := json.Unmarshal(block.Input, &input); err != nil {
					return model.ChatOut{}, fmt.Errorf("invalid input for tool %q: %w", block.Name, err)
				}
			}
			out.ToolCalls = append(out.ToolCalls, model.ToolCall{
				ID:    block.ID,
				Name:  block.Name,
				Input: input,
			})
		}
	}

	return out, nil
}
