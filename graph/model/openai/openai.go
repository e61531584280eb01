// Package openai provides a ChatModel adapter for OpenAI chat completions.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dshills/agentcrew/graph/model"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// DefaultModel is the OpenAI model used when none is configured.
const DefaultModel = "gpt-4o"

// ErrMissingAPIKey is returned when a request is attempted without a key.
var ErrMissingAPIKey = errors.New("OpenAI API key is required")

// ChatModel implements model.ChatModel for OpenAI's chat completions API.
//
// Tool calls and tool results map directly onto OpenAI's native
// tool_calls / tool message pairs, so call IDs are preserved end to end.
// Requests are not retried.
//
// Example usage:
//
//	m := openai.NewChatModel(os.Getenv("OPENAI_API_KEY"), "gpt-4o")
//	out, err := m.Chat(ctx, messages, specs)
type ChatModel struct {
	modelName string
	client    openaiClient
}

// openaiClient defines the interface for OpenAI API operations.
// This allows for easy mocking in tests.
type openaiClient interface {
	createChatCompletion(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error)
}

// NewChatModel creates a new OpenAI ChatModel. An empty modelName selects
// DefaultModel.
func NewChatModel(apiKey, modelName string) *ChatModel {
	if modelName == "" {
		modelName = DefaultModel
	}

	return &ChatModel{
		modelName: modelName,
		client:    &defaultClient{apiKey: apiKey},
	}
}

// Chat implements the model.ChatModel interface.
func (m *ChatModel) Chat(ctx context.Context, messages []model.Message, tools []model.ToolSpec) (model.ChatOut, error) {
	if ctx.Err() != nil {
		return model.ChatOut{}, ctx.Err()
	}

	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(m.modelName),
		Messages: convertMessages(messages),
	}
	if len(tools) > 0 {
		params.Tools = convertTools(tools)
	}

	completion, err := m.client.createChatCompletion(ctx, params)
	if err != nil {
		return model.ChatOut{}, err
	}

	out, err := convertResponse(completion)
	if err != nil {
		return model.ChatOut{}, err
	}
	out.Model = m.modelName
	return out, nil
}

// defaultClient wraps the official OpenAI SDK client.
type defaultClient struct {
	apiKey string
	client *openai.Client
}

func (c *defaultClient) createChatCompletion(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	if c.client == nil {
		client := openai.NewClient(option.WithAPIKey(c.apiKey), option.WithMaxRetries(0))
		c.client = &client
	}

	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("OpenAI API error: %w", err)
	}
	return completion, nil
}

// convertMessages converts the transcript to OpenAI message params.
func convertMessages(messages []model.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))

	for _, msg := range messages {
		switch msg.Role {
		case model.RoleSystem:
			out = append(out, openai.SystemMessage(msg.Content))

		case model.RoleAssistant:
			if len(msg.ToolCalls) == 0 {
				out = append(out, openai.AssistantMessage(msg.Content))
				continue
			}
			assistant := openai.ChatCompletionAssistantMessageParam{}
			if msg.Content != "" {
				assistant.Content.OfString = openai.String(msg.Content)
			}
			for _, call := range msg.ToolCalls {
				args, err := json.Marshal(call.Input)
				if err != nil || call.Input == nil {
					args = []byte("{}")
				}
				assistant.ToolCalls = append(assistant.ToolCalls, openai.ChatCompletionMessageToolCallParam{
					ID: call.ID,
					Function: openai.ChatCompletionMessageToolCallFunctionParam{
						Name:      call.Name,
						Arguments: string(args),
					},
				})
			}
			out = append(out, openai.ChatCompletionMessageParamUnion{OfAssistant: &assistant})

		case model.RoleTool:
			out = append(out, openai.ToolMessage(msg.Content, msg.ToolCallID))

		default:
			out = append(out, openai.UserMessage(msg.Content))
		}
	}

	return out
}

// convertTools converts tool specs to OpenAI function tools.
func convertTools(tools []model.ToolSpec) []openai.ChatCompletionToolParam {
	out := make([]openai.ChatCompletionToolParam, len(tools))
	for i, tool := range tools {
		fn := shared.FunctionDefinitionParam{
			Name:        tool.Name,
			Description: openai.String(tool.Description),
		}
		if tool.Schema != nil {
			fn.Parameters = shared.FunctionParameters(tool.Schema)
		}
		out[i] = openai.ChatCompletionToolParam{Function: fn}
	}
	return out
}

// convertResponse converts the first choice to ChatOut.
func convertResponse(completion *openai.ChatCompletion) (model.ChatOut, error) {
	out := model.ChatOut{}
	if completion == nil {
		return out, nil
	}

	out.Usage = model.Usage{
		InputTokens:  int(completion.Usage.PromptTokens),
		OutputTokens: int(completion.Usage.CompletionTokens),
	}

	if len(completion.Choices) == 0 {
		return out, nil
	}

	msg := completion.Choices[0].Message
	out.Text = msg.Content

	for _, call := range msg.ToolCalls {
		var input map[string]any
		if call.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(call.Function.Arguments), &input); err != nil {
				return model.ChatOut{}, fmt.Errorf("invalid arguments for tool %q: %w", call.Function.Name, err)
			}
		}
		out.ToolCalls = append(out.ToolCalls, model.ToolCall{
			ID:    call.ID,
			Name:  call.Function.Name,
			Input: input,
		})
	}

	return out, nil
}
